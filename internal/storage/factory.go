package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"alcyxob/course-media/internal/domain"

	"github.com/rs/zerolog"
)

// Options carries the process-level settings that are not part of the
// persisted storage configuration.
type Options struct {
	LocalPath     string
	PublicBaseURL string
	StaticMount   string
	PresignTTL    time.Duration
}

// LocalBaseURL is the URL prefix under which local-disk files are served.
func (o Options) LocalBaseURL() string {
	mount := "/" + strings.Trim(o.StaticMount, "/")
	return strings.TrimSuffix(o.PublicBaseURL, "/") + mount
}

// New builds the provider selected by settings.
func New(ctx context.Context, settings domain.StorageSettings, opts Options, log zerolog.Logger) (Provider, error) {
	switch settings.Provider {
	case domain.ProviderLocal, "":
		return NewLocalDisk(opts.LocalPath, opts.LocalBaseURL(), log)
	case domain.ProviderS3:
		return NewObjectStorage(ctx, settings.Credentials, opts.PresignTTL, log)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, settings.Provider)
	}
}
