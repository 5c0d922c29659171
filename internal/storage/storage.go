package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"regexp"
	"strings"
	"time"

	"alcyxob/course-media/internal/domain"

	"github.com/google/uuid"
)

// Default expiry duration for presigned URLs
const DefaultPresignedURLExpiry = 15 * time.Minute

// Error constants for the storage layer
var (
	ErrObjectNotFound     = errors.New("object not found in storage")
	ErrInvalidKey         = errors.New("invalid storage key")
	ErrMissingCredentials = errors.New("object storage credentials are incomplete")
	ErrUnknownProvider    = errors.New("unknown storage provider")
)

// Object is an opened stored artifact. Body must be closed by the caller.
// Local disk bodies also implement io.Seeker.
type Object struct {
	Body        io.ReadCloser
	Size        int64
	ContentType string
}

// Provider is the uniform contract over every storage backend.
type Provider interface {
	// Kind reports which backend this is.
	Kind() domain.Provider

	// PutAtKey writes body under exactly key, replacing any existing object.
	// The object is never observable under key in a partially written state.
	PutAtKey(ctx context.Context, key string, body io.Reader, size int64, contentType string) (*domain.MediaDescriptor, error)

	// PutRandomKey stores body under prefix with a generated unique name.
	PutRandomKey(ctx context.Context, prefix, filename string, body io.Reader, size int64, contentType string) (*domain.MediaDescriptor, error)

	// Get opens the artifact for reading.
	Get(ctx context.Context, key string) (*Object, error)

	// URL returns a URL the client can fetch the artifact from.
	URL(ctx context.Context, key string) (string, error)

	// Delete removes the artifact. Callers treat failures as non-fatal.
	Delete(ctx context.Context, key string) error
}

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// SanitizeSegment strips every character outside [A-Za-z0-9._-]. The
// result may be empty.
func SanitizeSegment(s string) string {
	return unsafeNameChars.ReplaceAllString(s, "")
}

// SanitizeName is SanitizeSegment for filenames; a result that is empty or
// only dots becomes "file".
func SanitizeName(name string) string {
	cleaned := SanitizeSegment(name)
	if strings.Trim(cleaned, ".") == "" {
		return "file"
	}
	return cleaned
}

// ValidateKey rejects keys that could escape the storage root.
func ValidateKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, `\`) {
		return ErrInvalidKey
	}
	if path.Clean(key) != key {
		return ErrInvalidKey
	}
	for _, segment := range strings.Split(key, "/") {
		if segment == ".." || segment == "." {
			return ErrInvalidKey
		}
	}
	return nil
}

// randomKey builds {prefix}/{uuid}-{sanitized filename}.
func randomKey(prefix, filename string) string {
	name := uuid.New().String() + "-" + SanitizeName(filename)
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}
