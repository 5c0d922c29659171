package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"alcyxob/course-media/internal/domain"
	"alcyxob/course-media/internal/storage"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMediaService(resolver StorageResolver, assets *fakeAssetRepo) *mediaService {
	svc := NewMediaService(resolver, ledger(assets), 50*MiB, zerolog.Nop()).(*mediaService)
	svc.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return svc
}

func TestUploadRejectsUnknownContext(t *testing.T) {
	svc := newTestMediaService(fakeResolver(&fakeProvider{}), nil)

	_, err := svc.Upload(context.Background(), MediaUpload{
		Context:  "bannerImage",
		Filename: "a.png",
		Size:     int64(len(pngHead)),
		Body:     bytes.NewReader(pngHead),
	})
	assert.ErrorIs(t, err, ErrUnknownContext)
}

func TestUploadWithoutPayload(t *testing.T) {
	svc := newTestMediaService(fakeResolver(&fakeProvider{}), nil)

	_, err := svc.Upload(context.Background(), MediaUpload{
		Context:  domain.ContextProfilePic,
		Filename: "a.png",
		Size:     10,
		UserID:   "u1",
	})
	assert.ErrorIs(t, err, ErrMissingPayload)
}

func TestUploadSizeLimitsPerContext(t *testing.T) {
	tests := []struct {
		name  string
		ctx   domain.UploadContext
		limit int64
		head  []byte
	}{
		{"profile picture", domain.ContextProfilePic, 5 * MiB, pngHead},
		{"certificate", domain.ContextCertificate, 20 * MiB, pdfHead},
		{"course thumbnail uses generic ceiling", domain.ContextCourseThumbnail, 50 * MiB, pngHead},
		{"course guidelines", domain.ContextCourseGuidelines, 500 * MiB, pdfHead},
		{"course introduction", domain.ContextCourseIntroduction, 5 * GiB, pngHead},
		{"lesson resource", domain.ContextLessonResource, 500 * MiB, pdfHead},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &fakeProvider{}
			svc := newTestMediaService(fakeResolver(provider), nil)
			upload := func(size int64) error {
				_, err := svc.Upload(context.Background(), MediaUpload{
					Context:  tt.ctx,
					Filename: "file.bin",
					Size:     size,
					Body:     bytes.NewReader(tt.head),
					UserID:   "u1",
					CourseID: "c1",
					LessonID: "l1",
				})
				return err
			}

			require.NoError(t, upload(tt.limit), "exactly at the limit must be accepted")
			assert.Equal(t, tt.limit, provider.lastPut(t).size)

			err := upload(tt.limit + 1)
			require.ErrorIs(t, err, ErrFileTooLarge)
			assert.Contains(t, err.Error(), fmt.Sprint(tt.limit))
		})
	}
}

func TestUploadRejectsEmptyFile(t *testing.T) {
	svc := newTestMediaService(fakeResolver(&fakeProvider{}), nil)

	_, err := svc.Upload(context.Background(), MediaUpload{
		Context:  domain.ContextProfilePic,
		Filename: "a.png",
		Size:     0,
		Body:     bytes.NewReader(nil),
		UserID:   "u1",
	})
	assert.ErrorIs(t, err, ErrValidationFailed)
}

const docxType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

func TestUploadTypeDetection(t *testing.T) {
	tests := []struct {
		name     string
		ctx      domain.UploadContext
		head     []byte
		declared string
		wantType string
		wantErr  error
	}{
		{name: "png by magic number", ctx: domain.ContextProfilePic, head: pngHead, declared: "application/octet-stream", wantType: "image/png"},
		{name: "pdf for lesson resource", ctx: domain.ContextLessonResource, head: pdfHead, wantType: "application/pdf"},
		{name: "pdf is not a profile picture", ctx: domain.ContextProfilePic, head: pdfHead, declared: "image/png", wantErr: ErrUnsupportedType},
		{name: "opaque bytes fall back to allowed declared type", ctx: domain.ContextLessonResource, head: opaqueHead, declared: "application/pdf", wantType: "application/pdf"},
		{name: "opaque bytes with disallowed declared type", ctx: domain.ContextProfilePic, head: opaqueHead, declared: "application/pdf", wantErr: ErrUnsupportedType},
		{name: "opaque bytes without declared type", ctx: domain.ContextLessonResource, head: opaqueHead, wantErr: ErrUnsupportedType},
		{name: "docx that only sniffs as zip falls back to declared type", ctx: domain.ContextCertificate, head: zipHead, declared: docxType, wantType: docxType},
		{name: "zip is not a certificate image", ctx: domain.ContextCertificate, head: zipHead, declared: "image/png", wantErr: ErrUnsupportedType},
		{name: "declared type cannot override conclusive sniff", ctx: domain.ContextProfilePic, head: []byte("just some plain text, not an image"), declared: "image/png", wantErr: ErrUnsupportedType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &fakeProvider{}
			svc := newTestMediaService(fakeResolver(provider), nil)

			_, err := svc.Upload(context.Background(), MediaUpload{
				Context:      tt.ctx,
				Filename:     "upload.dat",
				DeclaredType: tt.declared,
				Size:         int64(len(tt.head)),
				Body:         bytes.NewReader(tt.head),
				UserID:       "u1",
				CourseID:     "c1",
				LessonID:     "l1",
			})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, provider.puts)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantType, provider.lastPut(t).contentType)
		})
	}
}

func TestUploadKeepsFullBodyAfterSniffing(t *testing.T) {
	payload := append(append([]byte{}, pngHead...), bytes.Repeat([]byte{0xab}, 2*sniffLen)...)

	for name, body := range map[string]io.Reader{
		"seekable":     bytes.NewReader(payload),
		"non-seekable": onlyReader{r: bytes.NewReader(payload)},
	} {
		t.Run(name, func(t *testing.T) {
			provider := &fakeProvider{}
			svc := newTestMediaService(fakeResolver(provider), nil)

			in := MediaUpload{
				Context:  domain.ContextProfilePic,
				Filename: "me.png",
				Size:     int64(len(payload)),
				Body:     body,
				UserID:   "u1",
			}

			_, err := svc.Upload(context.Background(), in)
			require.NoError(t, err)
			assert.Equal(t, payload, provider.lastPut(t).body)
		})
	}
}

func TestUploadKeyDerivation(t *testing.T) {
	tests := []struct {
		ctx     domain.UploadContext
		in      MediaUpload
		wantKey string
	}{
		{domain.ContextProfilePic, MediaUpload{UserID: "u1"}, "users/u1/profile-pics/1700000000000-myphoto.png"},
		{domain.ContextCertificate, MediaUpload{UserID: "u1"}, "users/u1/certificates/1700000000000-myphoto.png"},
		{domain.ContextCourseThumbnail, MediaUpload{CourseID: "c9"}, "courses/c9/thumbnails/1700000000000-myphoto.png"},
		{domain.ContextCourseIntroduction, MediaUpload{CourseID: "c9"}, "courses/c9/introduction/1700000000000-myphoto.png"},
	}

	for _, tt := range tests {
		t.Run(string(tt.ctx), func(t *testing.T) {
			provider := &fakeProvider{}
			svc := newTestMediaService(fakeResolver(provider), nil)
			in := tt.in
			in.Context = tt.ctx
			in.Filename = "my photo.png"
			in.Size = int64(len(pngHead))
			in.Body = bytes.NewReader(pngHead)

			desc, err := svc.Upload(context.Background(), in)
			require.NoError(t, err)
			assert.Equal(t, tt.wantKey, desc.Key)
			assert.Equal(t, "my photo.png", desc.Name)
			assert.NoError(t, storage.ValidateKey(desc.Key))
		})
	}
}

func TestUploadRequiresEntityIDs(t *testing.T) {
	svc := newTestMediaService(fakeResolver(&fakeProvider{}), nil)

	_, err := svc.Upload(context.Background(), MediaUpload{
		Context:  domain.ContextLessonResource,
		Filename: "notes.pdf",
		Size:     int64(len(pdfHead)),
		Body:     bytes.NewReader(pdfHead),
		CourseID: "c1",
		LessonID: "..",
	})
	assert.ErrorIs(t, err, ErrMissingEntityID)
}

func TestUploadKeysAreUniqueOverTime(t *testing.T) {
	resolver, _, dir := localResolver(t)
	svc := newTestMediaService(resolver, nil)
	clock := time.UnixMilli(1700000000000)
	svc.now = func() time.Time {
		clock = clock.Add(time.Millisecond)
		return clock
	}

	upload := func() *domain.MediaDescriptor {
		desc, err := svc.Upload(context.Background(), MediaUpload{
			Context:  domain.ContextProfilePic,
			Filename: "avatar.png",
			Size:     int64(len(pngHead)),
			Body:     bytes.NewReader(pngHead),
			UserID:   "u1",
		})
		require.NoError(t, err)
		return desc
	}

	first, second := upload(), upload()
	assert.NotEqual(t, first.Key, second.Key)
	assert.FileExists(t, filepath.Join(dir, filepath.FromSlash(first.Key)))
	assert.FileExists(t, filepath.Join(dir, filepath.FromSlash(second.Key)))
}

func TestUploadReplacesPreviousMedia(t *testing.T) {
	resolver, disk, dir := localResolver(t)
	assets := newFakeAssetRepo()
	svc := newTestMediaService(resolver, assets)

	old, err := disk.PutAtKey(context.Background(), "users/u1/profile-pics/1-old.png", bytes.NewReader(pngHead), int64(len(pngHead)), "image/png")
	require.NoError(t, err)
	require.NoError(t, assets.Upsert(context.Background(), &domain.MediaAsset{Key: old.Key}))

	desc, err := svc.Upload(context.Background(), MediaUpload{
		Context:    domain.ContextProfilePic,
		Filename:   "new.png",
		Size:       int64(len(pngHead)),
		Body:       bytes.NewReader(pngHead),
		UserID:     "u1",
		ReplaceKey: old.Key,
	})
	require.NoError(t, err)

	assert.NoFileExists(t, filepath.Join(dir, filepath.FromSlash(old.Key)))
	_, err = assets.GetByKey(context.Background(), old.Key)
	assert.Error(t, err)
	recorded, err := assets.GetByKey(context.Background(), desc.Key)
	require.NoError(t, err)
	assert.Equal(t, domain.ProviderLocal, recorded.Provider)
	assert.Equal(t, "image/png", recorded.ContentType)
}

func TestUploadIgnoresReplaceFailure(t *testing.T) {
	provider := &fakeProvider{deleteFn: func(string) error { return errors.New("boom") }}
	svc := newTestMediaService(fakeResolver(provider), nil)

	_, err := svc.Upload(context.Background(), MediaUpload{
		Context:    domain.ContextProfilePic,
		Filename:   "new.png",
		Size:       int64(len(pngHead)),
		Body:       bytes.NewReader(pngHead),
		UserID:     "u1",
		ReplaceKey: "users/u1/profile-pics/gone.png",
	})
	assert.NoError(t, err)
}

func TestUploadRejectsReplaceKeyOutsidePrefix(t *testing.T) {
	resolver, disk, dir := localResolver(t)
	svc := newTestMediaService(resolver, nil)

	victim, err := disk.PutAtKey(context.Background(), "users/victim/profile-pics/1-a.png", bytes.NewReader(pngHead), int64(len(pngHead)), "image/png")
	require.NoError(t, err)

	for _, replaceKey := range []string{
		victim.Key,
		"users/attacker/profile-pics/../../victim/profile-pics/1-a.png",
		"users/attacker/certificates/1-a.png",
	} {
		_, err := svc.Upload(context.Background(), MediaUpload{
			Context:    domain.ContextProfilePic,
			Filename:   "new.png",
			Size:       int64(len(pngHead)),
			Body:       bytes.NewReader(pngHead),
			UserID:     "attacker",
			ReplaceKey: replaceKey,
		})
		assert.ErrorIs(t, err, ErrForbidden, replaceKey)
	}

	assert.FileExists(t, filepath.Join(dir, filepath.FromSlash(victim.Key)))
	_, err = os.Stat(filepath.Join(dir, "users", "attacker"))
	assert.True(t, os.IsNotExist(err), "nothing stored for a rejected upload")
}

var admin = domain.Principal{UserID: "a1", Role: domain.RoleAdmin}

func TestDeleteMedia(t *testing.T) {
	resolver, disk, dir := localResolver(t)
	svc := newTestMediaService(resolver, nil)

	desc, err := disk.PutAtKey(context.Background(), "courses/c1/thumbnails/1-a.png", bytes.NewReader(pngHead), int64(len(pngHead)), "image/png")
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), desc.Key, admin))
	_, err = os.Stat(filepath.Join(dir, filepath.FromSlash(desc.Key)))
	assert.True(t, os.IsNotExist(err))

	assert.ErrorIs(t, svc.Delete(context.Background(), desc.Key, admin), ErrMediaNotFound)
	assert.ErrorIs(t, svc.Delete(context.Background(), "../etc/passwd", admin), ErrMediaNotFound)
}

func TestDeleteMediaOwnership(t *testing.T) {
	resolver, disk, dir := localResolver(t)
	assets := newFakeAssetRepo()
	svc := newTestMediaService(resolver, assets)
	ctx := context.Background()

	store := func(key, owner string) string {
		desc, err := disk.PutAtKey(ctx, key, bytes.NewReader(pngHead), int64(len(pngHead)), "image/png")
		require.NoError(t, err)
		if owner != "" {
			require.NoError(t, assets.Upsert(ctx, &domain.MediaAsset{Key: desc.Key, OwnerID: owner}))
		}
		return desc.Key
	}
	exists := func(key string) bool {
		_, err := os.Stat(filepath.Join(dir, filepath.FromSlash(key)))
		return err == nil
	}

	instructor := domain.Principal{UserID: "i1", Role: domain.RoleInstructor}
	other := domain.Principal{UserID: "i2", Role: domain.RoleInstructor}

	victimPic := store("users/victim/profile-pics/1-a.png", "victim")
	assert.ErrorIs(t, svc.Delete(ctx, victimPic, instructor), ErrForbidden)
	assert.True(t, exists(victimPic))

	ownPic := store("users/i1/profile-pics/1-a.png", "")
	require.NoError(t, svc.Delete(ctx, ownPic, instructor), "own user prefix")
	assert.False(t, exists(ownPic))

	thumb := store("courses/c1/thumbnails/1-a.png", "i1")
	assert.ErrorIs(t, svc.Delete(ctx, thumb, other), ErrForbidden)
	require.NoError(t, svc.Delete(ctx, thumb, instructor), "ledger owner")
	assert.False(t, exists(thumb))

	unrecorded := store("courses/c1/thumbnails/2-b.png", "")
	assert.ErrorIs(t, svc.Delete(ctx, unrecorded, instructor), ErrForbidden)
	require.NoError(t, svc.Delete(ctx, unrecorded, admin))
	require.NoError(t, svc.Delete(ctx, victimPic, admin))
}

func TestDeleteMediaWithoutLedgerNeedsAdmin(t *testing.T) {
	resolver, disk, _ := localResolver(t)
	svc := newTestMediaService(resolver, nil)

	desc, err := disk.PutAtKey(context.Background(), "courses/c1/thumbnails/1-a.png", bytes.NewReader(pngHead), int64(len(pngHead)), "image/png")
	require.NoError(t, err)
	assert.ErrorIs(t, svc.Delete(context.Background(), desc.Key, domain.Principal{UserID: "i1", Role: domain.RoleInstructor}), ErrForbidden)
}

func TestUploadWithoutLedger(t *testing.T) {
	provider := &fakeProvider{}
	svc := newTestMediaService(fakeResolver(provider), nil)
	require.Nil(t, svc.assets)

	_, err := svc.Upload(context.Background(), MediaUpload{
		Context:  domain.ContextProfilePic,
		Filename: "me.png",
		Size:     int64(len(pngHead)),
		Body:     bytes.NewReader(pngHead),
		UserID:   "u1",
	})
	require.NoError(t, err)
	assert.Len(t, provider.puts, 1)
}
