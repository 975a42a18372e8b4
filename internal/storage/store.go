package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"chatrelay/internal/config"
	"chatrelay/internal/models"
)

// ErrUnavailable reports that the backing directories could not be prepared.
// It is fatal at startup and mapped to a 500 per request thereafter.
var ErrUnavailable = fmt.Errorf("upload storage unavailable")

// Store wraps the private upload directory and its public mirror. The private
// copy is authoritative; the mirror only exists so files can be fetched over
// /static/uploads and its absence degrades to a broken link, never a failed
// upload.
type Store struct {
	privateDir string
	publicDir  string
	baseURL    string
	log        zerolog.Logger
}

// New constructs a Store from configuration. Call EnsureReady before use.
func New(cfg *config.Config, log zerolog.Logger) *Store {
	return &Store{
		privateDir: cfg.UploadDir,
		publicDir:  cfg.PublicDir,
		baseURL:    strings.TrimSuffix(cfg.PublicBaseURL, "/"),
		log:        log.With().Str("component", "storage").Logger(),
	}
}

// EnsureReady creates both directories. Idempotent.
func (s *Store) EnsureReady() error {
	for _, dir := range []string{s.privateDir, s.publicDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("%w: create %s: %v", ErrUnavailable, dir, err)
		}
	}
	s.log.Info().
		Str("private_dir", s.privateDir).
		Str("public_dir", s.publicDir).
		Msg("upload storage ready")
	return nil
}

// Save writes data under storedName in the private directory and then mirrors
// it into the public directory. The mirror write is best-effort: its failure
// is logged and the save still succeeds.
func (s *Store) Save(storedName string, data []byte) (string, error) {
	privatePath := filepath.Join(s.privateDir, storedName)
	if err := os.WriteFile(privatePath, data, 0o644); err != nil {
		return "", fmt.Errorf("save upload %s: %w", storedName, err)
	}

	publicPath := filepath.Join(s.publicDir, storedName)
	if err := os.WriteFile(publicPath, data, 0o644); err != nil {
		s.log.Warn().Err(err).Str("file", storedName).Msg("mirror to public directory failed")
	} else {
		s.log.Debug().Str("file", storedName).Str("path", publicPath).Msg("file mirrored to public directory")
	}

	return privatePath, nil
}

// List returns the regular files in the private directory, in filesystem
// order. No ordering beyond that is guaranteed.
func (s *Store) List() ([]models.FileEntry, error) {
	entries, err := os.ReadDir(s.privateDir)
	if err != nil {
		return nil, fmt.Errorf("list uploads: %w", err)
	}
	files := make([]models.FileEntry, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, models.FileEntry{
			Filename: entry.Name(),
			URL:      s.PublicURL(entry.Name()),
			Size:     info.Size(),
			Modified: info.ModTime().Unix(),
		})
	}
	return files, nil
}

// Exists reports whether storedName is present in the private directory.
func (s *Store) Exists(storedName string) bool {
	info, err := os.Stat(filepath.Join(s.privateDir, storedName))
	return err == nil && info.Mode().IsRegular()
}

// PublicURL builds the externally fetchable URL for a stored name.
func (s *Store) PublicURL(storedName string) string {
	return fmt.Sprintf("%s/static/uploads/%s", s.baseURL, storedName)
}

// PrivateDir returns the authoritative upload directory.
func (s *Store) PrivateDir() string { return s.privateDir }

// PublicDir returns the statically served mirror directory.
func (s *Store) PublicDir() string { return s.publicDir }
