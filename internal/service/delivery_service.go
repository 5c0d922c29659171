package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"

	"alcyxob/course-media/internal/domain"
	"alcyxob/course-media/internal/metrics"
	"alcyxob/course-media/internal/storage"

	"github.com/rs/zerolog"
)

type DeliveryMode string

const (
	DeliveryExternal DeliveryMode = "external" // third-party link returned as-is
	DeliveryRemote   DeliveryMode = "remote"   // object storage URL, bytes not proxied
	DeliveryFull     DeliveryMode = "full"
	DeliveryPartial  DeliveryMode = "partial"
)

// Delivery describes how to answer a stream request. Body is set only for
// DeliveryFull and DeliveryPartial; the caller copies Length() bytes and
// closes it.
type Delivery struct {
	Mode        DeliveryMode
	URL         string
	Provider    domain.Provider
	Body        io.ReadCloser
	ContentType string
	Size        int64
	Start       int64
	End         int64
}

// Length is the number of bytes to send.
func (d *Delivery) Length() int64 {
	if d.Mode == DeliveryPartial {
		return d.End - d.Start + 1
	}
	return d.Size
}

// ContentRange is the Content-Range header value for partial responses.
func (d *Delivery) ContentRange() string {
	return fmt.Sprintf("bytes %d-%d/%d", d.Start, d.End, d.Size)
}

type DeliveryService interface {
	Stream(ctx context.Context, key, rangeHeader string) (*Delivery, error)
}

type deliveryService struct {
	resolver StorageResolver
	log      zerolog.Logger
}

func NewDeliveryService(resolver StorageResolver, log zerolog.Logger) DeliveryService {
	return &deliveryService{
		resolver: resolver,
		log:      log.With().Str("component", "delivery").Logger(),
	}
}

func (s *deliveryService) Stream(ctx context.Context, key, rangeHeader string) (*Delivery, error) {
	key = strings.TrimPrefix(key, "/")
	if key == "" {
		return nil, ErrMediaNotFound
	}

	if link, kind, ok := externalLink(key); ok {
		metrics.RecordStream(string(DeliveryExternal))
		return &Delivery{Mode: DeliveryExternal, URL: link, Provider: kind}, nil
	}

	if err := storage.ValidateKey(key); err != nil {
		return nil, ErrMediaNotFound
	}

	provider, settings, err := s.resolver.Resolve(ctx)
	if err != nil {
		return nil, err
	}

	if provider.Kind() != domain.ProviderLocal {
		u, err := provider.URL(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("url for %s: %w", key, err)
		}
		metrics.RecordStream(string(DeliveryRemote))
		return &Delivery{Mode: DeliveryRemote, URL: u, Provider: settings.Provider}, nil
	}

	obj, err := provider.Get(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) || errors.Is(err, storage.ErrInvalidKey) {
			return nil, ErrMediaNotFound
		}
		return nil, err
	}

	d := &Delivery{
		Mode:        DeliveryFull,
		Provider:    domain.ProviderLocal,
		Body:        obj.Body,
		ContentType: obj.ContentType,
		Size:        obj.Size,
		End:         obj.Size - 1,
	}

	if rangeHeader != "" {
		start, end, ok := parseRange(rangeHeader, obj.Size)
		seeker, seekable := obj.Body.(io.Seeker)
		switch {
		case !ok:
			s.log.Debug().Str("key", key).Str("range", rangeHeader).Msg("unusable range, sending full content")
		case !seekable:
			s.log.Debug().Str("key", key).Msg("body not seekable, sending full content")
		default:
			if _, err := seeker.Seek(start, io.SeekStart); err != nil {
				obj.Body.Close()
				return nil, fmt.Errorf("seek %s: %w", key, err)
			}
			d.Mode = DeliveryPartial
			d.Start = start
			d.End = end
		}
	}

	metrics.RecordStream(string(d.Mode))
	return d, nil
}

// externalLink recognizes keys that are already absolute http(s) URLs.
func externalLink(key string) (string, domain.Provider, bool) {
	if !strings.HasPrefix(key, "http://") && !strings.HasPrefix(key, "https://") {
		return "", "", false
	}
	u, err := url.Parse(key)
	if err != nil || u.Host == "" {
		return "", "", false
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	switch {
	case host == "youtu.be" || host == "youtube.com" || strings.HasSuffix(host, ".youtube.com"):
		return key, domain.ProviderYouTube, true
	case host == "vimeo.com" || strings.HasSuffix(host, ".vimeo.com"):
		return key, domain.ProviderVimeo, true
	}
	return key, domain.ProviderExternal, true
}

// parseRange accepts a single "bytes=start-end", "bytes=start-" or
// "bytes=-suffix" range. ok is false for anything else, including ranges
// that start past the end of the content.
func parseRange(header string, size int64) (start, end int64, ok bool) {
	if size <= 0 {
		return 0, 0, false
	}
	ranges, found := strings.CutPrefix(strings.TrimSpace(header), "bytes=")
	if !found || strings.Contains(ranges, ",") {
		return 0, 0, false
	}
	first, last, found := strings.Cut(strings.TrimSpace(ranges), "-")
	if !found {
		return 0, 0, false
	}
	first, last = strings.TrimSpace(first), strings.TrimSpace(last)

	if first == "" {
		n, err := strconv.ParseInt(last, 10, 64)
		if err != nil || n <= 0 {
			return 0, 0, false
		}
		if n > size {
			n = size
		}
		return size - n, size - 1, true
	}

	start, err := strconv.ParseInt(first, 10, 64)
	if err != nil || start < 0 || start >= size {
		return 0, 0, false
	}
	end = size - 1
	if last != "" {
		end, err = strconv.ParseInt(last, 10, 64)
		if err != nil || end < start {
			return 0, 0, false
		}
		if end > size-1 {
			end = size - 1
		}
	}
	return start, end, true
}
