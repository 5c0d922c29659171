package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"alcyxob/course-media/internal/domain"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"
)

// LocalDisk stores artifacts under a base directory that is also exposed
// through a static-file mount.
type LocalDisk struct {
	basePath string
	baseURL  string // public base URL including the static mount
	log      zerolog.Logger
}

// NewLocalDisk creates the base directory if needed.
func NewLocalDisk(basePath, baseURL string, log zerolog.Logger) (*LocalDisk, error) {
	basePath = strings.TrimSpace(basePath)
	if basePath == "" {
		return nil, errors.New("local storage path is not configured")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create local storage directory: %w", err)
	}
	return &LocalDisk{
		basePath: basePath,
		baseURL:  strings.TrimSuffix(strings.TrimSpace(baseURL), "/"),
		log:      log.With().Str("component", "local-storage").Logger(),
	}, nil
}

func (l *LocalDisk) Kind() domain.Provider { return domain.ProviderLocal }

func (l *LocalDisk) fullPath(key string) (string, error) {
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	return filepath.Join(l.basePath, filepath.FromSlash(key)), nil
}

// PutAtKey writes to a temp file next to the destination and renames it into
// place, so readers see either the old object or the complete new one.
func (l *LocalDisk) PutAtKey(ctx context.Context, key string, body io.Reader, size int64, contentType string) (*domain.MediaDescriptor, error) {
	fullPath, err := l.fullPath(key)
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	written, err := io.Copy(tmp, body)
	if err != nil {
		tmp.Close()
		return nil, fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("failed to sync file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("failed to close file: %w", err)
	}
	if err := os.Rename(tmpName, fullPath); err != nil {
		return nil, fmt.Errorf("failed to move file into place: %w", err)
	}
	committed = true

	l.log.Debug().Str("key", key).Int64("bytes", written).Msg("file stored on local disk")

	url, _ := l.URL(ctx, key)
	return &domain.MediaDescriptor{Name: path.Base(key), Key: key, URL: url}, nil
}

func (l *LocalDisk) PutRandomKey(ctx context.Context, prefix, filename string, body io.Reader, size int64, contentType string) (*domain.MediaDescriptor, error) {
	desc, err := l.PutAtKey(ctx, randomKey(prefix, filename), body, size, contentType)
	if err != nil {
		return nil, err
	}
	desc.Name = filename
	return desc, nil
}

// Get opens the file. The returned Body is an *os.File and can be seeked.
func (l *LocalDisk) Get(ctx context.Context, key string) (*Object, error) {
	fullPath, err := l.fullPath(key)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	if info.IsDir() {
		file.Close()
		return nil, ErrObjectNotFound
	}

	contentType := "application/octet-stream"
	if mt, err := mimetype.DetectReader(file); err == nil {
		contentType = mt.String()
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to rewind file: %w", err)
	}

	return &Object{Body: file, Size: info.Size(), ContentType: contentType}, nil
}

// URL returns the static-mount URL. Existence is not checked.
func (l *LocalDisk) URL(ctx context.Context, key string) (string, error) {
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	return l.baseURL + "/" + key, nil
}

func (l *LocalDisk) Delete(ctx context.Context, key string) error {
	fullPath, err := l.fullPath(key)
	if err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil {
		if os.IsNotExist(err) {
			return ErrObjectNotFound
		}
		return fmt.Errorf("failed to delete file: %w", err)
	}
	l.log.Info().Str("key", key).Msg("deleted file from local disk")
	return nil
}
