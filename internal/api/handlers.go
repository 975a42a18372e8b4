package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"chatrelay/internal/config"
	"chatrelay/internal/gateway"
	"chatrelay/internal/metrics"
	"chatrelay/internal/models"
	"chatrelay/internal/storage"
	"chatrelay/internal/upload"
)

// 10 MB ceiling, enforced at the transport boundary before the pipeline runs.
const maxUploadBytes = 10 << 20

// Generator is the outbound generation surface the handlers depend on.
type Generator interface {
	GenerateText(ctx context.Context, req gateway.TextRequest) (string, error)
	GenerateImage(ctx context.Context, prompt, size string) (string, error)
	ListModels(ctx context.Context) ([]gateway.ModelStatus, error)
}

// Handler wires HTTP routes to the upload pipeline and generation gateway.
type Handler struct {
	cfg      *config.Config
	store    *storage.Store
	uploads  *upload.Pipeline
	generate Generator
	log      zerolog.Logger
}

// NewHandler constructs a Handler instance.
func NewHandler(cfg *config.Config, store *storage.Store, uploads *upload.Pipeline, generate Generator, log zerolog.Logger) *Handler {
	return &Handler{
		cfg:      cfg,
		store:    store,
		uploads:  uploads,
		generate: generate,
		log:      log.With().Str("component", "api").Logger(),
	}
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(requestMetrics())

	router.POST("/upload", h.uploadFile)
	router.POST("/generate", h.generateText)
	router.POST("/generate-image", h.generateImage)
	router.GET("/files", h.listFiles)
	router.GET("/models", h.listModels)
	router.GET("/health", h.healthCheck)
	router.GET("/upload-test", h.uploadTest)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.Static("/static/uploads", h.store.PublicDir())

	// The front-end is a single page; unknown paths get it with a 200 so
	// client-side routes survive a refresh.
	router.GET("/", h.home)
	router.NoRoute(h.home)
}

func requestMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		metrics.RecordRequest(
			c.Request.Method,
			endpoint,
			strconv.Itoa(c.Writer.Status()),
			time.Since(start).Seconds(),
		)
	}
}

func (h *Handler) home(c *gin.Context) {
	index := filepath.Join(h.cfg.WebDir, "index.html")
	if _, err := os.Stat(index); err == nil {
		c.File(index)
		return
	}
	c.String(http.StatusOK, "chatrelay is running")
}

func (h *Handler) uploadFile(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)

	file, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			metrics.RecordUpload("unknown", "too_large", 0)
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file part"})
		return
	}
	if file.Filename == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No selected file"})
		return
	}

	f, err := file.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Upload failed: %v", err)})
		return
	}
	data, err := io.ReadAll(f)
	_ = f.Close()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			metrics.RecordUpload("unknown", "too_large", 0)
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Upload failed: %v", err)})
		return
	}

	meta, err := h.uploads.Accept(file.Filename, file.Header.Get("Content-Type"), data)
	if err != nil {
		switch {
		case errors.Is(err, upload.ErrMissingFile):
			c.JSON(http.StatusBadRequest, gin.H{"error": "No selected file"})
		case errors.Is(err, upload.ErrUnsupportedType):
			metrics.RecordUpload("unknown", "rejected", 0)
			c.JSON(http.StatusBadRequest, gin.H{
				"error": fmt.Sprintf("File type not allowed. Allowed types: %s", strings.Join(upload.AllowedExtensions(), ", ")),
			})
		default:
			h.log.Error().Err(err).Msg("upload failed")
			metrics.RecordUpload("unknown", "error", 0)
			c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Upload failed: %v", err)})
		}
		return
	}

	metrics.RecordUpload(meta.MimeType, "success", meta.Size)
	c.JSON(http.StatusOK, meta)
}

// generateRequest mirrors the front-end payload. MaxLength and Temperature
// are pointers so an explicit 0 survives the decode instead of being
// replaced by the defaults.
type generateRequest struct {
	Prompt      string            `json:"prompt"`
	MaxLength   *int              `json:"max_length"`
	Temperature *float64          `json:"temperature"`
	Context     []models.ChatTurn `json:"context"`
	Model       string            `json:"model"`
	Image       string            `json:"image"`
}

func (h *Handler) generateText(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	text, err := h.generate.GenerateText(c.Request.Context(), gateway.TextRequest{
		Prompt:      req.Prompt,
		Context:     req.Context,
		Model:       req.Model,
		MaxTokens:   req.MaxLength,
		Temperature: req.Temperature,
		ImageData:   req.Image,
	})
	if err != nil {
		metrics.RecordGeneration("text", "error")
		h.generationError(c, err)
		return
	}
	metrics.RecordGeneration("text", "success")
	c.JSON(http.StatusOK, gin.H{"response": text})
}

type generateImageRequest struct {
	Prompt string `json:"prompt"`
	Size   string `json:"size"`
}

func (h *Handler) generateImage(c *gin.Context) {
	var req generateImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	url, err := h.generate.GenerateImage(c.Request.Context(), req.Prompt, req.Size)
	if err != nil {
		metrics.RecordGeneration("image", "error")
		h.generationError(c, err)
		return
	}
	metrics.RecordGeneration("image", "success")
	c.JSON(http.StatusOK, gin.H{"image_url": url})
}

// generationError maps a classified gateway failure to its HTTP response.
func (h *Handler) generationError(c *gin.Context, err error) {
	var apiErr *gateway.APIError
	if !errors.As(err, &apiErr) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	switch apiErr.Kind {
	case gateway.KindMissingPrompt:
		c.JSON(apiErr.Status, gin.H{"error": apiErr.Message})
	case gateway.KindBillingLimit:
		c.JSON(apiErr.Status, gin.H{
			"error":      apiErr.Message,
			"details":    apiErr.Details,
			"resolution": apiErr.Resolution,
		})
	case gateway.KindRateLimited:
		c.JSON(apiErr.Status, gin.H{
			"error":   apiErr.Message,
			"details": apiErr.Details,
		})
	default:
		c.JSON(apiErr.Status, gin.H{"error": fmt.Sprintf("API Error: %s", apiErr.Message)})
	}
}

func (h *Handler) listFiles(c *gin.Context) {
	files, err := h.store.List()
	if err != nil {
		h.log.Error().Err(err).Msg("list uploads failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, files)
}

func (h *Handler) listModels(c *gin.Context) {
	statuses, err := h.generate.ListModels(c.Request.Context())
	if err != nil {
		// Degrade to the static allow-list rather than failing the page.
		h.log.Warn().Err(err).Msg("provider model catalog unavailable")
		fallback := make([]gateway.ModelStatus, 0, len(gateway.AllowedModelIDs()))
		for _, id := range gateway.AllowedModelIDs() {
			fallback = append(fallback, gateway.ModelStatus{ID: id})
		}
		c.JSON(http.StatusOK, gin.H{"models": fallback, "degraded": true})
		return
	}
	c.JSON(http.StatusOK, gin.H{"models": statuses})
}

func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// uploadTest reports upload directory diagnostics, useful when wiring a new
// deployment.
func (h *Handler) uploadTest(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"upload_dir": dirStatus(h.store.PrivateDir()),
		"public_dir": dirStatus(h.store.PublicDir()),
	})
}

func dirStatus(dir string) gin.H {
	info, err := os.Stat(dir)
	exists := err == nil && info.IsDir()
	writable := false
	if exists {
		probe := filepath.Join(dir, ".write_check")
		if err := os.WriteFile(probe, []byte("ok"), 0o644); err == nil {
			writable = true
			_ = os.Remove(probe)
		}
	}
	return gin.H{
		"path":     dir,
		"exists":   exists,
		"writable": writable,
	}
}
