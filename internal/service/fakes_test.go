package service

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"sync"
	"testing"

	"alcyxob/course-media/internal/domain"
	"alcyxob/course-media/internal/repository"
	"alcyxob/course-media/internal/storage"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

var (
	pngHead = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")
	pdfHead = []byte("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n1 0 obj\n<< /Type /Catalog >>\nendobj\n")
	// No known signature and not text.
	opaqueHead = []byte{0x13, 0x37, 0xc0, 0xde, 0x00, 0x01, 0x02, 0x03, 0x9a, 0x8b, 0x7c, 0x6d, 0x00, 0x00, 0x42, 0x42}
	// A plain zip with none of the entries that mark an OOXML document.
	zipHead = plainZip()
)

func plainZip() []byte {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("notes.txt")
	if err != nil {
		panic(err)
	}
	if _, err := w.Write([]byte("hello")); err != nil {
		panic(err)
	}
	if err := zw.Close(); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// staticResolver always returns the same provider.
type staticResolver struct {
	provider storage.Provider
	settings domain.StorageSettings
	err      error
}

func (r *staticResolver) Resolve(ctx context.Context) (storage.Provider, domain.StorageSettings, error) {
	if r.err != nil {
		return nil, domain.StorageSettings{}, r.err
	}
	return r.provider, r.settings, nil
}

func localResolver(t *testing.T) (*staticResolver, *storage.LocalDisk, string) {
	t.Helper()
	dir := t.TempDir()
	disk, err := storage.NewLocalDisk(dir, "http://localhost:8080/uploads", zerolog.Nop())
	require.NoError(t, err)
	return &staticResolver{provider: disk, settings: domain.StorageSettings{Provider: domain.ProviderLocal}}, disk, dir
}

type putCall struct {
	key         string
	size        int64
	contentType string
	body        []byte
}

// fakeProvider records writes and lets tests override behaviour per method.
type fakeProvider struct {
	mu      sync.Mutex
	kind    domain.Provider
	puts    []putCall
	deleted []string

	putFn    func(key string) error
	urlFn    func(key string) (string, error)
	deleteFn func(key string) error
}

func (p *fakeProvider) Kind() domain.Provider {
	if p.kind == "" {
		return domain.ProviderS3
	}
	return p.kind
}

func (p *fakeProvider) PutAtKey(ctx context.Context, key string, body io.Reader, size int64, contentType string) (*domain.MediaDescriptor, error) {
	if p.putFn != nil {
		if err := p.putFn(key); err != nil {
			return nil, err
		}
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	p.puts = append(p.puts, putCall{key: key, size: size, contentType: contentType, body: data})
	p.mu.Unlock()
	return &domain.MediaDescriptor{Name: key, Key: key, URL: "https://cdn.example.com/" + key}, nil
}

func (p *fakeProvider) PutRandomKey(ctx context.Context, prefix, filename string, body io.Reader, size int64, contentType string) (*domain.MediaDescriptor, error) {
	return p.PutAtKey(ctx, prefix+"/random-"+filename, body, size, contentType)
}

func (p *fakeProvider) Get(ctx context.Context, key string) (*storage.Object, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := len(p.puts) - 1; i >= 0; i-- {
		if p.puts[i].key == key {
			data := p.puts[i].body
			return &storage.Object{Body: io.NopCloser(bytes.NewReader(data)), Size: int64(len(data)), ContentType: p.puts[i].contentType}, nil
		}
	}
	return nil, storage.ErrObjectNotFound
}

func (p *fakeProvider) URL(ctx context.Context, key string) (string, error) {
	if p.urlFn != nil {
		return p.urlFn(key)
	}
	return "https://cdn.example.com/" + key, nil
}

func (p *fakeProvider) Delete(ctx context.Context, key string) error {
	if p.deleteFn != nil {
		if err := p.deleteFn(key); err != nil {
			return err
		}
	}
	p.mu.Lock()
	p.deleted = append(p.deleted, key)
	p.mu.Unlock()
	return nil
}

func (p *fakeProvider) lastPut(t *testing.T) putCall {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	require.NotEmpty(t, p.puts, "expected a PutAtKey call")
	return p.puts[len(p.puts)-1]
}

func fakeResolver(p *fakeProvider) *staticResolver {
	return &staticResolver{provider: p, settings: domain.StorageSettings{Provider: p.Kind()}}
}

type fakeAssetRepo struct {
	mu     sync.Mutex
	assets map[string]*domain.MediaAsset
}

func newFakeAssetRepo() *fakeAssetRepo {
	return &fakeAssetRepo{assets: make(map[string]*domain.MediaAsset)}
}

// ledger keeps a nil *fakeAssetRepo from becoming a non-nil interface.
func ledger(assets *fakeAssetRepo) repository.MediaAssetRepository {
	if assets == nil {
		return nil
	}
	return assets
}

func (r *fakeAssetRepo) Upsert(ctx context.Context, asset *domain.MediaAsset) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *asset
	r.assets[asset.Key] = &copied
	return nil
}

func (r *fakeAssetRepo) GetByKey(ctx context.Context, key string) (*domain.MediaAsset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	asset, ok := r.assets[key]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return asset, nil
}

func (r *fakeAssetRepo) DeleteByKey(ctx context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.assets[key]; !ok {
		return repository.ErrNotFound
	}
	delete(r.assets, key)
	return nil
}

type fakeSettingsRepo struct {
	settings *domain.StorageSettings
	saves    int
	err      error
}

func (r *fakeSettingsRepo) Get(ctx context.Context) (*domain.StorageSettings, error) {
	if r.err != nil {
		return nil, r.err
	}
	if r.settings == nil {
		return nil, repository.ErrNotFound
	}
	copied := *r.settings
	if r.settings.Credentials != nil {
		creds := *r.settings.Credentials
		copied.Credentials = &creds
	}
	return &copied, nil
}

func (r *fakeSettingsRepo) Save(ctx context.Context, settings *domain.StorageSettings) error {
	if r.err != nil {
		return r.err
	}
	copied := *settings
	r.settings = &copied
	r.saves++
	return nil
}

// onlyReader hides Seek so the non-seekable sniff path is exercised.
type onlyReader struct{ r io.Reader }

func (o onlyReader) Read(p []byte) (int, error) { return o.r.Read(p) }
