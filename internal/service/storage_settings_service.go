package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"alcyxob/course-media/internal/domain"
	"alcyxob/course-media/internal/repository"
	"alcyxob/course-media/internal/storage"

	"github.com/rs/zerolog"
)

const maskedSecret = "********"

// StorageResolver hands out the provider selected by the persisted
// configuration. It is consulted on every operation.
type StorageResolver interface {
	Resolve(ctx context.Context) (storage.Provider, domain.StorageSettings, error)
}

// StorageSettingsService is the resolver plus the admin read/write surface.
type StorageSettingsService interface {
	StorageResolver
	Get(ctx context.Context) (*domain.StorageSettings, error)
	Update(ctx context.Context, settings domain.StorageSettings, updatedBy string) (*domain.StorageSettings, error)
}

// ProviderFactory builds a provider for a configuration.
type ProviderFactory func(ctx context.Context, settings domain.StorageSettings) (storage.Provider, error)

type storageSettingsService struct {
	repo            repository.StorageSettingsRepository
	defaultProvider domain.Provider
	newProvider     ProviderFactory
	log             zerolog.Logger
}

// NewStorageSettingsService creates the resolver. defaultProvider is used
// until the first configuration is saved.
func NewStorageSettingsService(
	repo repository.StorageSettingsRepository,
	defaultProvider domain.Provider,
	opts storage.Options,
	log zerolog.Logger,
) StorageSettingsService {
	logger := log.With().Str("component", "storage-settings").Logger()
	return &storageSettingsService{
		repo:            repo,
		defaultProvider: defaultProvider,
		newProvider: func(ctx context.Context, settings domain.StorageSettings) (storage.Provider, error) {
			return storage.New(ctx, settings, opts, logger)
		},
		log: logger,
	}
}

func (s *storageSettingsService) current(ctx context.Context) (domain.StorageSettings, error) {
	settings, err := s.repo.Get(ctx)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.StorageSettings{Provider: s.defaultProvider}, nil
		}
		return domain.StorageSettings{}, fmt.Errorf("load storage settings: %w", err)
	}
	return *settings, nil
}

// Resolve reads the configuration fresh and builds its provider. A switch
// only affects operations that resolve after it.
func (s *storageSettingsService) Resolve(ctx context.Context) (storage.Provider, domain.StorageSettings, error) {
	settings, err := s.current(ctx)
	if err != nil {
		return nil, domain.StorageSettings{}, err
	}
	provider, err := s.newProvider(ctx, settings)
	if err != nil {
		return nil, settings, fmt.Errorf("build %s provider: %w", settings.Provider, err)
	}
	return provider, settings, nil
}

// Get returns the active configuration with the secret masked.
func (s *storageSettingsService) Get(ctx context.Context) (*domain.StorageSettings, error) {
	settings, err := s.current(ctx)
	if err != nil {
		return nil, err
	}
	masked := settings.Masked()
	return &masked, nil
}

// Update validates and saves a new configuration.
func (s *storageSettingsService) Update(ctx context.Context, settings domain.StorageSettings, updatedBy string) (*domain.StorageSettings, error) {
	settings.Provider = domain.Provider(strings.ToLower(strings.TrimSpace(string(settings.Provider))))
	settings.UpdatedBy = updatedBy

	switch settings.Provider {
	case domain.ProviderLocal:
		settings.Credentials = nil
	case domain.ProviderS3:
		if settings.Credentials == nil {
			return nil, fmt.Errorf("%w: credentials are required for s3", ErrInvalidStorageConfig)
		}
		creds := *settings.Credentials
		// A masked or blank secret means "keep the stored one".
		if creds.SecretAccessKey == "" || creds.SecretAccessKey == maskedSecret {
			creds.SecretAccessKey = ""
			if existing, err := s.repo.Get(ctx); err == nil && existing.Credentials != nil {
				creds.SecretAccessKey = existing.Credentials.SecretAccessKey
			}
		}
		if missing := creds.Missing(); len(missing) > 0 {
			return nil, fmt.Errorf("%w: missing %s", ErrInvalidStorageConfig, strings.Join(missing, ", "))
		}
		settings.Credentials = &creds
	default:
		return nil, fmt.Errorf("%w: unsupported provider %q", ErrInvalidStorageConfig, settings.Provider)
	}

	if err := s.repo.Save(ctx, &settings); err != nil {
		return nil, fmt.Errorf("save storage settings: %w", err)
	}

	s.log.Info().Str("provider", string(settings.Provider)).Str("updated_by", updatedBy).Msg("storage configuration updated")

	masked := settings.Masked()
	return &masked, nil
}
