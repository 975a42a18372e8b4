package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"chatrelay/internal/api"
	"chatrelay/internal/config"
	"chatrelay/internal/gateway"
	"chatrelay/internal/interaction"
	"chatrelay/internal/logger"
	"chatrelay/internal/storage"
	"chatrelay/internal/upload"
)

func main() {
	loadEnvFiles()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg)

	if cfg.APIKey == "" {
		log.Warn().Msg("OPENAI_API_KEY is not set; generation requests will fail upstream")
	}

	store := storage.New(cfg, log)
	if err := store.EnsureReady(); err != nil {
		log.Fatal().Err(err).Msg("prepare upload storage")
	}

	interactions := interaction.New(cfg, log)
	client := gateway.New(cfg, interactions, log)
	uploads := upload.New(store, log)
	handler := api.NewHandler(cfg, store, uploads, client, log)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.Default())
	handler.RegisterRoutes(router)

	// The configured port may already be taken by another instance; walk
	// forward a bounded number of ports before giving up.
	port := cfg.Port
	for attempt := 0; attempt < cfg.PortAttempts; attempt++ {
		addr := cfg.Addr(port)
		log.Info().Str("addr", addr).Msg("starting server")
		err = router.Run(addr)
		if err == nil {
			return
		}
		if strings.Contains(err.Error(), "address already in use") && attempt < cfg.PortAttempts-1 {
			log.Warn().Int("port", port).Msg("port in use, trying next")
			port++
			continue
		}
		break
	}
	log.Fatal().Err(err).Msg("server stopped")
}

func loadEnvFiles() {
	for _, path := range []string{".env", "../.env"} {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Overload(path); err != nil {
				fmt.Fprintf(os.Stderr, "warning: failed to load %s: %v\n", path, err)
			}
		}
	}
}
