// Package imageload fetches and decodes the image being annotated. Sources
// may be local paths, file:// URLs or http(s):// URLs.
package imageload

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

// MaxBytes caps how much of a remote image is read.
const MaxBytes = 64 << 20

var ErrUnsupportedScheme = errors.New("unsupported image source scheme")

// httpClient is swapped in tests.
var httpClient = http.DefaultClient

// Result is delivered by Load once the image is available or failed.
type Result struct {
	Source string
	Image  image.Image
	Err    error
}

// Load opens src in a new goroutine and calls done with the outcome. done
// runs on that goroutine; UI callers forward it to their event loop.
func Load(ctx context.Context, src string, done func(Result)) {
	go func() {
		img, err := Open(ctx, src)
		done(Result{Source: src, Image: img, Err: err})
	}()
}

// Open fetches and decodes src. EXIF orientation is applied.
func Open(ctx context.Context, src string) (image.Image, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return nil, errors.New("empty image source")
	}
	u, err := url.Parse(src)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 {
		// plain path, including Windows drive letters
		return openFile(src)
	}
	switch u.Scheme {
	case "file":
		p := u.Path
		if p == "" {
			p = u.Opaque
		}
		return openFile(filepath.FromSlash(p))
	case "http", "https":
		return openHTTP(ctx, u.String())
	default:
		return nil, fmt.Errorf("%s: %w", u.Scheme, ErrUnsupportedScheme)
	}
}

func openFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()
	img, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}

func openHTTP(ctx context.Context, u string) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch image: %w", err)
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch image: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch image %s: HTTP %d", u, resp.StatusCode)
	}
	ct := resp.Header.Get("Content-Type")
	if ct != "" && !strings.HasPrefix(ct, "image/") && !strings.HasPrefix(ct, "application/octet-stream") {
		return nil, fmt.Errorf("fetch image %s: not an image (Content-Type: %s)", u, ct)
	}
	img, err := Decode(io.LimitReader(resp.Body, MaxBytes))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", u, err)
	}
	return img, nil
}

// Decode reads any registered format, webp included.
func Decode(r io.Reader) (image.Image, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}
