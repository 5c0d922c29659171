package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"alcyxob/course-media/internal/domain"
	"alcyxob/course-media/internal/metrics"
	"alcyxob/course-media/internal/repository"
	"alcyxob/course-media/internal/storage"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"
)

// sniffLen matches mimetype's default read limit.
const sniffLen = 3072

// MediaUpload is one direct (non-chunked) upload.
type MediaUpload struct {
	Context      domain.UploadContext
	Filename     string
	DeclaredType string
	Size         int64
	Body         io.Reader // Seekable bodies are rewound after sniffing instead of re-joined

	UserID   string
	CourseID string
	LessonID string

	// ReplaceKey is deleted after a successful upload. It must sit under the
	// new key's prefix. Delete failures are logged only.
	ReplaceKey string
	OwnerID    string
}

type MediaService interface {
	Upload(ctx context.Context, in MediaUpload) (*domain.MediaDescriptor, error)
	Delete(ctx context.Context, key string, caller domain.Principal) error
}

type mediaService struct {
	resolver        StorageResolver
	assets          repository.MediaAssetRepository
	maxGenericBytes int64
	now             func() time.Time
	log             zerolog.Logger
}

// NewMediaService creates the validation and key service. assets may be nil.
func NewMediaService(resolver StorageResolver, assets repository.MediaAssetRepository, maxGenericBytes int64, log zerolog.Logger) MediaService {
	if maxGenericBytes <= 0 {
		maxGenericBytes = 50 * MiB
	}
	return &mediaService{
		resolver:        resolver,
		assets:          assets,
		maxGenericBytes: maxGenericBytes,
		now:             time.Now,
		log:             log.With().Str("component", "media-service").Logger(),
	}
}

// Upload validates a file against its context, derives its key and stores it
// on the active provider.
func (s *mediaService) Upload(ctx context.Context, in MediaUpload) (*domain.MediaDescriptor, error) {
	rule, ok := uploadRules[in.Context]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownContext, in.Context)
	}
	if in.Body == nil {
		// Only a path and no buffer: the transport was wired wrong, not the client.
		return nil, ErrMissingPayload
	}
	if strings.TrimSpace(in.Filename) == "" {
		return nil, fmt.Errorf("%w: filename is required", ErrValidationFailed)
	}

	limit := rule.limit(s.maxGenericBytes)
	if in.Size > limit {
		metrics.RecordUpload(string(in.Context), "", "rejected", 0)
		return nil, fmt.Errorf("%w: %d bytes allowed for %s", ErrFileTooLarge, limit, in.Context)
	}
	if in.Size <= 0 {
		return nil, fmt.Errorf("%w: file is empty", ErrValidationFailed)
	}

	prefix, err := rule.prefix(in)
	if err != nil {
		return nil, err
	}
	key := prefix + "/" + timestampedName(s.now().UnixMilli(), in.Filename)
	if in.ReplaceKey != "" {
		if storage.ValidateKey(in.ReplaceKey) != nil || !strings.HasPrefix(in.ReplaceKey, prefix+"/") {
			return nil, fmt.Errorf("%w: replaceKey must be under %s", ErrForbidden, prefix)
		}
	}

	body, contentType, err := s.sniff(in, rule)
	if err != nil {
		metrics.RecordUpload(string(in.Context), "", "rejected", 0)
		return nil, err
	}

	provider, settings, err := s.resolver.Resolve(ctx)
	if err != nil {
		return nil, err
	}

	desc, err := provider.PutAtKey(ctx, key, body, in.Size, contentType)
	if err != nil {
		metrics.RecordUpload(string(in.Context), string(settings.Provider), "error", 0)
		return nil, fmt.Errorf("store %s: %w", key, err)
	}
	desc.Name = in.Filename
	metrics.RecordUpload(string(in.Context), string(settings.Provider), "success", in.Size)

	s.log.Info().
		Str("context", string(in.Context)).
		Str("key", desc.Key).
		Str("content_type", contentType).
		Int64("bytes", in.Size).
		Str("provider", string(settings.Provider)).
		Msg("media stored")

	if in.ReplaceKey != "" && in.ReplaceKey != desc.Key {
		s.replace(ctx, provider, in.ReplaceKey)
	}

	recordAsset(ctx, s.assets, s.log, &domain.MediaAsset{
		Key:         desc.Key,
		Name:        desc.Name,
		URL:         desc.URL,
		Provider:    settings.Provider,
		Source:      string(in.Context),
		ContentType: contentType,
		Size:        in.Size,
		OwnerID:     in.OwnerID,
	})

	return desc, nil
}

// sniff checks the magic number first and the declared type second. The
// returned reader yields the full body again.
func (s *mediaService) sniff(in MediaUpload, rule uploadRule) (io.Reader, string, error) {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(in.Body, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, "", fmt.Errorf("read upload head: %w", err)
	}
	head = head[:n]

	var body io.Reader
	if seeker, ok := in.Body.(io.Seeker); ok {
		if _, err := seeker.Seek(0, io.SeekStart); err != nil {
			return nil, "", fmt.Errorf("rewind upload: %w", err)
		}
		body = in.Body
	} else {
		body = io.MultiReader(bytes.NewReader(head), in.Body)
	}

	allowed := rule.allowedTypes()
	detected := mimetype.Detect(head)
	for _, t := range allowed {
		if detected.Is(t) {
			return body, t, nil
		}
	}

	declared := strings.TrimSpace(in.DeclaredType)
	inconclusive := detected.Is("application/octet-stream") || isAncestorOf(detected, declared)
	if inconclusive && declared != "" && mimetype.EqualsAny(declared, allowed...) {
		metrics.RecordTypeFallback(string(in.Context))
		s.log.Warn().
			Str("context", string(in.Context)).
			Str("filename", in.Filename).
			Str("declared_type", declared).
			Str("fallback", "declared_type").
			Msg("content sniffing inconclusive; accepting declared type")
		return body, declared, nil
	}

	return nil, "", fmt.Errorf("%w: detected %s; allowed: %s", ErrUnsupportedType, detected.String(), strings.Join(allowed, ", "))
}

// isAncestorOf reports whether declared is a known subtype of detected, as
// with OOXML documents that only sniff as application/zip.
func isAncestorOf(detected *mimetype.MIME, declared string) bool {
	if declared == "" {
		return false
	}
	m := mimetype.Lookup(declared)
	if m == nil {
		return false
	}
	for p := m.Parent(); p != nil; p = p.Parent() {
		if detected.Is(p.String()) {
			return true
		}
	}
	return false
}

// replace deletes the media being replaced. Errors never fail the upload.
func (s *mediaService) replace(ctx context.Context, provider storage.Provider, oldKey string) {
	if err := provider.Delete(ctx, oldKey); err != nil {
		s.log.Warn().Err(err).Str("key", oldKey).Msg("failed to delete replaced media")
		return
	}
	if s.assets != nil {
		if err := s.assets.DeleteByKey(ctx, oldKey); err != nil && !errors.Is(err, repository.ErrNotFound) {
			s.log.Warn().Err(err).Str("key", oldKey).Msg("failed to drop replaced media from ledger")
		}
	}
}

// Delete removes a stored artifact from the active provider. Admins may
// delete any key; other callers only their own media.
func (s *mediaService) Delete(ctx context.Context, key string, caller domain.Principal) error {
	if err := storage.ValidateKey(key); err != nil {
		return ErrMediaNotFound
	}
	if err := s.authorizeDelete(ctx, key, caller); err != nil {
		return err
	}
	provider, _, err := s.resolver.Resolve(ctx)
	if err != nil {
		return err
	}
	if err := provider.Delete(ctx, key); err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return ErrMediaNotFound
		}
		return err
	}
	if s.assets != nil {
		if err := s.assets.DeleteByKey(ctx, key); err != nil && !errors.Is(err, repository.ErrNotFound) {
			s.log.Warn().Err(err).Str("key", key).Msg("failed to drop media from ledger")
		}
	}
	return nil
}

// authorizeDelete allows keys under the caller's users/ prefix and keys the
// ledger records as owned by the caller.
func (s *mediaService) authorizeDelete(ctx context.Context, key string, caller domain.Principal) error {
	if caller.IsAdmin() {
		return nil
	}
	if caller.UserID == "" {
		return ErrForbidden
	}
	if userID := storage.SanitizeSegment(caller.UserID); userID != "" && strings.HasPrefix(key, "users/"+userID+"/") {
		return nil
	}
	if s.assets == nil {
		return ErrForbidden
	}
	asset, err := s.assets.GetByKey(ctx, key)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return ErrForbidden
	case err != nil:
		return fmt.Errorf("look up media owner: %w", err)
	case asset.OwnerID != caller.UserID:
		return ErrForbidden
	}
	return nil
}

// recordAsset writes the ledger entry. The artifact is already stored, so a
// failure here is only logged.
func recordAsset(ctx context.Context, assets repository.MediaAssetRepository, log zerolog.Logger, asset *domain.MediaAsset) {
	if assets == nil {
		return
	}
	if err := assets.Upsert(ctx, asset); err != nil {
		log.Warn().Err(err).Str("key", asset.Key).Msg("failed to record media asset")
	}
}
