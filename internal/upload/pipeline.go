package upload

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"

	"chatrelay/internal/models"
	"chatrelay/internal/storage"
)

var (
	// ErrMissingFile reports an absent or unnamed file part.
	ErrMissingFile = errors.New("no file provided")
	// ErrUnsupportedType reports an extension outside the allow-list.
	ErrUnsupportedType = errors.New("file type not allowed")
)

// allowedExtensions is the fixed set of permitted upload extensions,
// matched case-insensitively.
var allowedExtensions = map[string]struct{}{
	"png": {}, "jpg": {}, "jpeg": {}, "gif": {}, "webp": {},
	"pdf": {}, "txt": {}, "doc": {}, "docx": {}, "xlsx": {},
	"csv": {}, "md": {}, "json": {},
}

// AllowedExtensions returns the allow-list for error messages.
func AllowedExtensions() []string {
	out := make([]string, 0, len(allowedExtensions))
	for ext := range allowedExtensions {
		out = append(out, ext)
	}
	return out
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

// Pipeline validates inbound files, derives collision-resistant names and
// persists them through the storage adapter.
type Pipeline struct {
	store *storage.Store
	log   zerolog.Logger
	now   func() time.Time
}

// New constructs a Pipeline. The clock is injectable for tests.
func New(store *storage.Store, log zerolog.Logger) *Pipeline {
	return &Pipeline{
		store: store,
		log:   log.With().Str("component", "upload").Logger(),
		now:   time.Now,
	}
}

// Accept validates rawName and data, stores the file in both directories and
// returns its metadata. No filesystem write happens on a validation failure.
//
// Two uploads of the same original name within the same second derive the
// same stored name and the second overwrites the first. Known limitation,
// kept to match the naming scheme rather than silently corrected.
func (p *Pipeline) Accept(rawName, contentType string, data []byte) (*models.UploadedFile, error) {
	if strings.TrimSpace(rawName) == "" {
		return nil, ErrMissingFile
	}
	if !Allowed(rawName) {
		return nil, ErrUnsupportedType
	}

	original := Sanitize(rawName)
	if original == "" {
		return nil, ErrUnsupportedType
	}

	now := p.now()
	storedName := timestampedName(original, now)
	path, err := p.store.Save(storedName, data)
	if err != nil {
		return nil, err
	}

	if contentType == "" {
		contentType = mimetype.Detect(data).String()
	}

	p.log.Info().
		Str("file", storedName).
		Str("original", original).
		Int("size", len(data)).
		Msg("file uploaded")

	return &models.UploadedFile{
		StoredName:   storedName,
		OriginalName: original,
		Path:         path,
		URL:          p.store.PublicURL(storedName),
		Size:         int64(len(data)),
		MimeType:     contentType,
		StoredAt:     now,
	}, nil
}

// Allowed reports whether the filename carries an allow-listed extension.
func Allowed(name string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	if ext == "" {
		return false
	}
	_, ok := allowedExtensions[ext]
	return ok
}

// Sanitize strips directory components and non-portable characters from a
// user-supplied filename, leaving a flat base.ext name. Returns "" when
// nothing safe remains.
func Sanitize(name string) string {
	// Drop directory components from either separator convention.
	if idx := strings.LastIndexAny(name, `/\`); idx >= 0 {
		name = name[idx+1:]
	}
	name = strings.ReplaceAll(name, " ", "_")
	name = unsafeChars.ReplaceAllString(name, "")
	name = strings.Trim(name, "._-")
	if name == "" || name == "." || name == ".." {
		return ""
	}
	return name
}

// timestampedName appends _YYYYMMDD-HHMMSS before the extension.
func timestampedName(name string, at time.Time) string {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	return fmt.Sprintf("%s_%s%s", base, at.Format("20060102-150405"), ext)
}
