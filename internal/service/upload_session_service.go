package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"alcyxob/course-media/internal/domain"
	"alcyxob/course-media/internal/metrics"
	"alcyxob/course-media/internal/repository"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Staging layout, one directory per session:
//
//	{root}/{uploadId}/meta.json
//	{root}/{uploadId}/state.json
//	{root}/{uploadId}/parts/{n}.part
//	{root}/{uploadId}/merged.bin
//	{root}/{uploadId}/merged.sha256
const (
	metaFile     = "meta.json"
	stateFile    = "state.json"
	partsDir     = "parts"
	partSuffix   = ".part"
	mergedFile   = "merged.bin"
	checksumFile = "merged.sha256"
)

// SessionInit is the metadata a client declares when opening a session.
type SessionInit struct {
	CourseID string
	LessonID string
	Kind     domain.UploadKind
	Filename string
	Mime     string
	Size     int64
	Sha256   string
	OwnerID  string
}

// CompleteResult is returned once all parts are merged.
type CompleteResult struct {
	UploadID      string `json:"uploadId"`
	Size          int64  `json:"size"`
	Sha256        string `json:"sha256"`
	ChecksumMatch *bool  `json:"checksumMatch,omitempty"` // nil when no checksum was declared
}

type UploadSessionService interface {
	Init(ctx context.Context, in SessionInit) (string, error)
	PutPart(ctx context.Context, uploadID string, partNumber int, body io.Reader) error
	Complete(ctx context.Context, uploadID string) (*CompleteResult, error)
	Finalize(ctx context.Context, uploadID string) (*domain.MediaDescriptor, error)
	Status(ctx context.Context, uploadID string) (*domain.UploadSession, error)
	Abort(ctx context.Context, uploadID string) error
	ReapExpired(ctx context.Context, ttl time.Duration) (int, error)
	RunReaper(ctx context.Context, interval, ttl time.Duration)
}

type uploadSessionService struct {
	root         string
	maxPartBytes int64
	resolver     StorageResolver
	assets       repository.MediaAssetRepository
	locks        *sessionLocks
	now          func() time.Time
	log          zerolog.Logger
}

// NewUploadSessionService creates the session manager staging under root.
func NewUploadSessionService(root string, maxPartBytes int64, resolver StorageResolver, assets repository.MediaAssetRepository, log zerolog.Logger) (UploadSessionService, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create staging directory: %w", err)
	}
	return &uploadSessionService{
		root:         root,
		maxPartBytes: maxPartBytes,
		resolver:     resolver,
		assets:       assets,
		locks:        newSessionLocks(),
		now:          time.Now,
		log:          log.With().Str("component", "upload-sessions").Logger(),
	}, nil
}

// Init validates the metadata and allocates the session's staging area.
func (s *uploadSessionService) Init(ctx context.Context, in SessionInit) (string, error) {
	if _, err := cleanID("courseId", in.CourseID); err != nil {
		return "", fmt.Errorf("%w: courseId is required", ErrValidationFailed)
	}
	if strings.TrimSpace(in.LessonID) != "" {
		if _, err := cleanID("lessonId", in.LessonID); err != nil {
			return "", fmt.Errorf("%w: lessonId is malformed", ErrValidationFailed)
		}
	}
	if !in.Kind.Valid() {
		return "", fmt.Errorf("%w: kind must be one of images, videos, documents, archives, assets, introduction", ErrValidationFailed)
	}
	if strings.TrimSpace(in.Filename) == "" {
		return "", fmt.Errorf("%w: filename is required", ErrValidationFailed)
	}
	if in.Size < 0 {
		return "", fmt.Errorf("%w: size must not be negative", ErrValidationFailed)
	}
	if in.Sha256 != "" {
		if raw, err := hex.DecodeString(in.Sha256); err != nil || len(raw) != sha256.Size {
			return "", fmt.Errorf("%w: sha256 must be 64 hex characters", ErrValidationFailed)
		}
	}

	id := uuid.NewString()
	dir := s.sessionDir(id)
	if err := os.MkdirAll(filepath.Join(dir, partsDir), 0o755); err != nil {
		return "", fmt.Errorf("create session directory: %w", err)
	}

	now := s.now().UTC()
	meta := domain.SessionMeta{
		CourseID:  strings.TrimSpace(in.CourseID),
		LessonID:  strings.TrimSpace(in.LessonID),
		Kind:      in.Kind,
		Filename:  in.Filename,
		Mime:      in.Mime,
		Size:      in.Size,
		Sha256:    strings.ToLower(in.Sha256),
		OwnerID:   in.OwnerID,
		CreatedAt: now,
	}
	if err := writeJSONAtomic(filepath.Join(dir, metaFile), meta); err != nil {
		_ = os.RemoveAll(dir)
		return "", err
	}
	if err := s.saveStatus(id, domain.SessionStatus{State: domain.SessionInitialized, UpdatedAt: now}); err != nil {
		_ = os.RemoveAll(dir)
		return "", err
	}

	metrics.RecordSession("init")
	s.log.Info().Str("upload_id", id).Str("course_id", meta.CourseID).Str("kind", string(meta.Kind)).Msg("upload session created")
	return id, nil
}

// PutPart stages one part. Re-sending a part number replaces the earlier bytes.
// Parts of one session may be written concurrently.
func (s *uploadSessionService) PutPart(ctx context.Context, uploadID string, partNumber int, body io.Reader) error {
	if partNumber < 1 {
		return ErrInvalidPartNumber
	}
	if body == nil {
		return ErrMissingPayload
	}
	if err := checkUploadID(uploadID); err != nil {
		return err
	}

	lock := s.locks.acquire(uploadID)
	defer s.locks.release(uploadID)
	lock.RLock()
	defer lock.RUnlock()

	status, err := s.loadStatus(uploadID)
	if err != nil {
		return err
	}
	if status.State != domain.SessionInitialized && status.State != domain.SessionReceiving {
		return fmt.Errorf("%w: session is %s", ErrInvalidSessionState, status.State)
	}

	dir := filepath.Join(s.sessionDir(uploadID), partsDir)
	tmp, err := os.CreateTemp(dir, ".part-*")
	if err != nil {
		return fmt.Errorf("create part file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op once renamed

	src := body
	if s.maxPartBytes > 0 {
		src = io.LimitReader(body, s.maxPartBytes+1)
	}
	written, err := io.Copy(tmp, src)
	closeErr := tmp.Close()
	if err != nil {
		return fmt.Errorf("write part %d: %w", partNumber, err)
	}
	if closeErr != nil {
		return fmt.Errorf("close part %d: %w", partNumber, closeErr)
	}
	if s.maxPartBytes > 0 && written > s.maxPartBytes {
		return fmt.Errorf("%w: a part may hold at most %d bytes", ErrFileTooLarge, s.maxPartBytes)
	}

	if err := os.Rename(tmpName, filepath.Join(dir, strconv.Itoa(partNumber)+partSuffix)); err != nil {
		return fmt.Errorf("store part %d: %w", partNumber, err)
	}

	// Also refreshes updatedAt so the reaper leaves active sessions alone.
	if err := s.saveStatus(uploadID, domain.SessionStatus{State: domain.SessionReceiving, UpdatedAt: s.now().UTC()}); err != nil {
		return err
	}

	metrics.RecordPart()
	s.log.Debug().Str("upload_id", uploadID).Int("part", partNumber).Int64("bytes", written).Msg("part staged")
	return nil
}

// Complete concatenates the staged parts in ascending part-number order into
// one artifact and records its SHA-256.
func (s *uploadSessionService) Complete(ctx context.Context, uploadID string) (*CompleteResult, error) {
	if err := checkUploadID(uploadID); err != nil {
		return nil, err
	}
	lock := s.locks.acquire(uploadID)
	defer s.locks.release(uploadID)
	lock.Lock()
	defer lock.Unlock()

	meta, err := s.loadMeta(uploadID)
	if err != nil {
		return nil, err
	}
	status, err := s.loadStatus(uploadID)
	if err != nil {
		return nil, err
	}
	switch status.State {
	case domain.SessionInitialized:
		return nil, ErrNoParts
	case domain.SessionReceiving:
	default:
		return nil, fmt.Errorf("%w: session is %s", ErrInvalidSessionState, status.State)
	}

	dir := s.sessionDir(uploadID)
	parts, err := listParts(filepath.Join(dir, partsDir))
	if err != nil {
		return nil, err
	}
	if len(parts) == 0 {
		return nil, ErrNoParts
	}

	size, sum, err := mergeParts(filepath.Join(dir, partsDir), parts, filepath.Join(dir, mergedFile))
	if err != nil {
		return nil, err
	}

	if err := os.WriteFile(filepath.Join(dir, checksumFile), []byte(sum+"\n"), 0o644); err != nil {
		s.log.Warn().Err(err).Str("upload_id", uploadID).Msg("failed to persist checksum")
	}

	if err := s.saveStatus(uploadID, domain.SessionStatus{
		State:     domain.SessionMerged,
		UpdatedAt: s.now().UTC(),
		Size:      size,
		Sha256:    sum,
	}); err != nil {
		return nil, err
	}

	// Parts are no longer needed once merged.
	if err := os.RemoveAll(filepath.Join(dir, partsDir)); err != nil {
		s.log.Warn().Err(err).Str("upload_id", uploadID).Msg("failed to remove merged parts")
	}

	result := &CompleteResult{UploadID: uploadID, Size: size, Sha256: sum}
	if meta.Sha256 != "" {
		match := meta.Sha256 == sum
		result.ChecksumMatch = &match
		if !match {
			s.log.Warn().Str("upload_id", uploadID).Str("declared", meta.Sha256).Str("actual", sum).Msg("checksum mismatch")
		}
	}
	if meta.Size > 0 && meta.Size != size {
		s.log.Warn().Str("upload_id", uploadID).Int64("declared", meta.Size).Int64("actual", size).Msg("merged size differs from declared size")
	}

	metrics.RecordSession("complete")
	s.log.Info().Str("upload_id", uploadID).Int("parts", len(parts)).Int64("bytes", size).Msg("upload session merged")
	return result, nil
}

// Finalize hands the merged artifact to the active provider and removes the
// session's staging data whether or not the upload succeeded.
func (s *uploadSessionService) Finalize(ctx context.Context, uploadID string) (*domain.MediaDescriptor, error) {
	if err := checkUploadID(uploadID); err != nil {
		return nil, err
	}
	lock := s.locks.acquire(uploadID)
	defer s.locks.release(uploadID)
	lock.Lock()
	defer lock.Unlock()

	meta, err := s.loadMeta(uploadID)
	if err != nil {
		return nil, err
	}
	status, err := s.loadStatus(uploadID)
	if err != nil {
		return nil, err
	}
	if status.State != domain.SessionMerged {
		return nil, fmt.Errorf("%w: session is %s", ErrInvalidSessionState, status.State)
	}

	dir := s.sessionDir(uploadID)
	defer s.removeSession(uploadID, dir)

	file, err := os.Open(filepath.Join(dir, mergedFile))
	if err != nil {
		return nil, fmt.Errorf("open merged artifact: %w", err)
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat merged artifact: %w", err)
	}

	contentType := meta.Mime
	if detected, err := mimetype.DetectReader(file); err == nil && !detected.Is("application/octet-stream") {
		contentType = detected.String()
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind merged artifact: %w", err)
	}

	key := sessionKey(meta, s.now().UnixMilli())

	provider, settings, err := s.resolver.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	desc, err := provider.PutAtKey(ctx, key, file, info.Size(), contentType)
	if err != nil {
		metrics.RecordUpload(string(meta.Kind), string(settings.Provider), "error", 0)
		return nil, fmt.Errorf("store %s: %w", key, err)
	}
	desc.Name = meta.Filename
	metrics.RecordUpload(string(meta.Kind), string(settings.Provider), "success", info.Size())
	metrics.RecordSession("finalize")

	recordAsset(ctx, s.assets, s.log, &domain.MediaAsset{
		Key:         desc.Key,
		Name:        desc.Name,
		URL:         desc.URL,
		Provider:    settings.Provider,
		Source:      string(meta.Kind),
		ContentType: contentType,
		Size:        info.Size(),
		Sha256:      status.Sha256,
		OwnerID:     meta.OwnerID,
	})

	s.log.Info().Str("upload_id", uploadID).Str("key", desc.Key).Str("provider", string(settings.Provider)).Msg("upload session finalized")
	return desc, nil
}

// Status reports the session's metadata, state and staged part numbers.
func (s *uploadSessionService) Status(ctx context.Context, uploadID string) (*domain.UploadSession, error) {
	if err := checkUploadID(uploadID); err != nil {
		return nil, err
	}
	lock := s.locks.acquire(uploadID)
	defer s.locks.release(uploadID)
	lock.RLock()
	defer lock.RUnlock()

	meta, err := s.loadMeta(uploadID)
	if err != nil {
		return nil, err
	}
	status, err := s.loadStatus(uploadID)
	if err != nil {
		return nil, err
	}
	parts, err := listParts(filepath.Join(s.sessionDir(uploadID), partsDir))
	if err != nil {
		return nil, err
	}
	if parts == nil {
		parts = []int{}
	}
	return &domain.UploadSession{ID: uploadID, Meta: *meta, Status: *status, Parts: parts}, nil
}

// Abort drops a session and everything staged for it.
func (s *uploadSessionService) Abort(ctx context.Context, uploadID string) error {
	if err := checkUploadID(uploadID); err != nil {
		return err
	}
	lock := s.locks.acquire(uploadID)
	defer s.locks.release(uploadID)
	lock.Lock()
	defer lock.Unlock()

	dir := s.sessionDir(uploadID)
	if _, err := os.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			return ErrSessionNotFound
		}
		return err
	}
	s.removeSession(uploadID, dir)
	metrics.RecordSession("abort")
	return nil
}

// ReapExpired removes sessions with no activity for longer than ttl.
func (s *uploadSessionService) ReapExpired(ctx context.Context, ttl time.Duration) (int, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return 0, fmt.Errorf("list staging directory: %w", err)
	}
	cutoff := s.now().Add(-ttl)
	reaped := 0
	for _, entry := range entries {
		if ctx.Err() != nil {
			return reaped, ctx.Err()
		}
		if !entry.IsDir() || checkUploadID(entry.Name()) != nil {
			continue
		}
		if s.reapOne(entry.Name(), cutoff) {
			reaped++
		}
	}
	return reaped, nil
}

func (s *uploadSessionService) reapOne(uploadID string, cutoff time.Time) bool {
	lock := s.locks.acquire(uploadID)
	defer s.locks.release(uploadID)
	lock.Lock()
	defer lock.Unlock()

	dir := s.sessionDir(uploadID)
	lastActivity := time.Time{}
	if status, err := s.loadStatus(uploadID); err == nil {
		lastActivity = status.UpdatedAt
	} else if info, statErr := os.Stat(dir); statErr == nil {
		// Unreadable state: fall back to the directory's mtime.
		lastActivity = info.ModTime()
	} else {
		return false
	}
	if lastActivity.After(cutoff) {
		return false
	}

	s.removeSession(uploadID, dir)
	metrics.RecordSession("reap")
	s.log.Info().Str("upload_id", uploadID).Time("last_activity", lastActivity).Msg("reaped abandoned upload session")
	return true
}

// RunReaper calls ReapExpired every interval until ctx is cancelled.
func (s *uploadSessionService) RunReaper(ctx context.Context, interval, ttl time.Duration) {
	if interval <= 0 || ttl <= 0 {
		s.log.Warn().Msg("session reaper disabled")
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.ReapExpired(ctx, ttl)
			if err != nil && !errors.Is(err, context.Canceled) {
				s.log.Error().Err(err).Msg("session reaper failed")
				continue
			}
			if n > 0 {
				s.log.Info().Int("reaped", n).Msg("session reaper pass finished")
			}
		}
	}
}

func (s *uploadSessionService) sessionDir(uploadID string) string {
	return filepath.Join(s.root, uploadID)
}

func (s *uploadSessionService) removeSession(uploadID, dir string) {
	if err := os.RemoveAll(dir); err != nil {
		s.log.Error().Err(err).Str("upload_id", uploadID).Msg("failed to remove session staging data")
	}
}

func (s *uploadSessionService) loadMeta(uploadID string) (*domain.SessionMeta, error) {
	var meta domain.SessionMeta
	if err := readJSON(filepath.Join(s.sessionDir(uploadID), metaFile), &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

func (s *uploadSessionService) loadStatus(uploadID string) (*domain.SessionStatus, error) {
	var status domain.SessionStatus
	if err := readJSON(filepath.Join(s.sessionDir(uploadID), stateFile), &status); err != nil {
		return nil, err
	}
	return &status, nil
}

func (s *uploadSessionService) saveStatus(uploadID string, status domain.SessionStatus) error {
	return writeJSONAtomic(filepath.Join(s.sessionDir(uploadID), stateFile), status)
}

// sessionKey is courses/{courseId}[/lessons/{lessonId}]/{kind}/{millis}-{name}.
func sessionKey(meta *domain.SessionMeta, millis int64) string {
	courseID, _ := cleanID("courseId", meta.CourseID)
	var b strings.Builder
	b.WriteString("courses/")
	b.WriteString(courseID)
	if lessonID, err := cleanID("lessonId", meta.LessonID); err == nil {
		b.WriteString("/lessons/")
		b.WriteString(lessonID)
	}
	b.WriteString("/")
	b.WriteString(string(meta.Kind))
	b.WriteString("/")
	b.WriteString(timestampedName(millis, meta.Filename))
	return b.String()
}

// checkUploadID only admits ids this service could have issued, which also
// keeps them from naming paths outside the staging root.
func checkUploadID(uploadID string) error {
	parsed, err := uuid.Parse(uploadID)
	if err != nil || parsed.String() != uploadID {
		return ErrSessionNotFound
	}
	return nil
}

// listParts returns the staged part numbers in ascending numeric order.
func listParts(dir string) ([]int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list parts: %w", err)
	}
	var parts []int
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, partSuffix) {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(name, partSuffix))
		if err != nil || n < 1 {
			continue
		}
		parts = append(parts, n)
	}
	sort.Ints(parts)
	return parts, nil
}

// mergeParts streams parts into dest through a SHA-256 hasher.
func mergeParts(dir string, parts []int, dest string) (int64, string, error) {
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".merge-*")
	if err != nil {
		return 0, "", fmt.Errorf("create merged artifact: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	hasher := sha256.New()
	out := io.MultiWriter(tmp, hasher)
	var total int64
	for _, n := range parts {
		written, err := appendPart(out, filepath.Join(dir, strconv.Itoa(n)+partSuffix))
		if err != nil {
			tmp.Close()
			return 0, "", fmt.Errorf("merge part %d: %w", n, err)
		}
		total += written
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return 0, "", fmt.Errorf("sync merged artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, "", fmt.Errorf("close merged artifact: %w", err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		return 0, "", fmt.Errorf("store merged artifact: %w", err)
	}
	return total, hex.EncodeToString(hasher.Sum(nil)), nil
}

func appendPart(out io.Writer, path string) (int64, error) {
	part, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer part.Close()
	return io.Copy(out, part)
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrSessionNotFound
		}
		return fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return nil
}

func writeJSONAtomic(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".json-*")
	if err != nil {
		if os.IsNotExist(err) {
			return ErrSessionNotFound
		}
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return os.Rename(tmpName, path)
}

// sessionLocks hands out one RWMutex per session. Part writes share it;
// merge, finalize, abort and reap take it exclusively. An entry lives only
// while some caller holds a reference to it.
type sessionLocks struct {
	mu sync.Mutex
	m  map[string]*sessionLock
}

type sessionLock struct {
	sync.RWMutex
	refs int
}

func newSessionLocks() *sessionLocks {
	return &sessionLocks{m: make(map[string]*sessionLock)}
}

// acquire must be paired with release.
func (l *sessionLocks) acquire(id string) *sessionLock {
	l.mu.Lock()
	defer l.mu.Unlock()
	lock, ok := l.m[id]
	if !ok {
		lock = &sessionLock{}
		l.m[id] = lock
	}
	lock.refs++
	return lock
}

func (l *sessionLocks) release(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	lock, ok := l.m[id]
	if !ok {
		return
	}
	lock.refs--
	if lock.refs <= 0 {
		delete(l.m, id)
	}
}

func (l *sessionLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.m)
}
