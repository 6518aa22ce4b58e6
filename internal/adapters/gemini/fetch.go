package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"rental_moderation/internal/adapters/observability"
)

const maxImageBytes = 10 << 20

// Fetcher loads listing photos either from a URL or from the uploads
// directory the web app writes to.
type Fetcher struct {
	http       *resty.Client
	rl         *rate.Limiter
	uploadsDir string
	maxBytes   int
}

func NewFetcher(timeout time.Duration, rps int, uploadsDir string) *Fetcher {
	if rps <= 0 {
		rps = 10
	}
	c := resty.New().
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		SetRetryAfter(func(_ *resty.Client, res *resty.Response) (time.Duration, error) {
			return retryAfter(res), nil
		}).
		SetResponseBodyLimit(maxImageBytes).
		AddRetryCondition(func(res *resty.Response, err error) bool {
			if errors.Is(err, resty.ErrResponseBodyTooLarge) {
				return false
			}
			if err != nil {
				return true
			}
			switch res.StatusCode() {
			case http.StatusTooManyRequests, http.StatusInternalServerError,
				http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
				return true
			}
			return false
		}).
		SetHeader("User-Agent", "rental-moderation/1.0")

	return &Fetcher{
		http:       c,
		rl:         rate.NewLimiter(rate.Limit(rps), rps),
		uploadsDir: uploadsDir,
		maxBytes:   maxImageBytes,
	}
}

// WithMaxBytes lowers or raises the per-image size limit.
func (f *Fetcher) WithMaxBytes(n int) *Fetcher {
	if n > 0 {
		f.maxBytes = n
		f.http.SetResponseBodyLimit(n)
	}
	return f
}

// Load returns the image bytes and their sniffed MIME type.
func (f *Fetcher) Load(ctx context.Context, ref string) ([]byte, string, error) {
	var (
		b   []byte
		err error
	)
	if isRemote(ref) {
		b, err = f.download(ctx, ref)
	} else {
		b, err = f.readLocal(ref)
	}
	if err != nil {
		return nil, "", err
	}
	if len(b) > f.maxBytes {
		return nil, "", fmt.Errorf("image %s is %d bytes, limit is %d", ref, len(b), f.maxBytes)
	}
	mime := http.DetectContentType(b)
	if !strings.HasPrefix(mime, "image/") {
		return nil, "", fmt.Errorf("%s is not an image (%s)", ref, mime)
	}
	return b, mime, nil
}

func isRemote(ref string) bool {
	return strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://")
}

func (f *Fetcher) download(ctx context.Context, url string) ([]byte, error) {
	// client-side rate limiting
	if err := f.rl.Wait(ctx); err != nil {
		return nil, err
	}
	start := time.Now()
	// the body is never buffered past the limit
	res, err := f.http.R().SetContext(ctx).Get(url)
	if err != nil {
		observability.ObserveExternal("images", "download", 0, time.Since(start))
		if errors.Is(err, resty.ErrResponseBodyTooLarge) {
			return nil, fmt.Errorf("download %s: image exceeds %d bytes: %w", url, f.maxBytes, err)
		}
		return nil, fmt.Errorf("download %s: %w", url, err)
	}
	observability.ObserveExternal("images", "download", res.StatusCode(), time.Since(start))
	if res.IsError() {
		return nil, fmt.Errorf("download %s: status %d", url, res.StatusCode())
	}
	return res.Body(), nil
}

func (f *Fetcher) readLocal(ref string) ([]byte, error) {
	if f.uploadsDir == "" {
		return nil, fmt.Errorf("local image %s but no uploads dir configured", ref)
	}
	// Clean against "/" so "../" cannot leave the uploads dir.
	rel := filepath.Clean("/" + ref)
	// the web app stores paths as served, e.g. /uploads/properties/x.jpg
	if strings.HasPrefix(rel, "/uploads/") {
		rel = strings.TrimPrefix(rel, "/uploads")
	}
	p := filepath.Join(f.uploadsDir, rel)
	if fi, err := os.Stat(p); err == nil && fi.Size() > int64(f.maxBytes) {
		return nil, fmt.Errorf("local image %s is %d bytes, limit is %d", ref, fi.Size(), f.maxBytes)
	}
	b, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", ref, err)
	}
	return b, nil
}

// retryAfter parses Retry-After header (seconds or HTTP-date). Returns 0 if absent/invalid,
// which leaves resty on its own jittered backoff.
func retryAfter(res *resty.Response) time.Duration {
	if res == nil {
		return 0
	}
	h := res.Header().Get("Retry-After")
	if h == "" {
		return 0
	}
	// seconds form
	if secs, err := strconv.Atoi(strings.TrimSpace(h)); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	// HTTP-date form
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
