// Package detect asks an Ollama vision model for object detections and
// returns them in the analysis payload format understood by aimerge.
package detect

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/ollama/ollama/api"
	"github.com/sirupsen/logrus"

	"github.com/example/labelshot/internal/aimerge"
)

const (
	DefaultURL     = "http://localhost:11434"
	DefaultModel   = "llava"
	DefaultTimeout = 5 * time.Minute
	// DefaultMaxDim bounds the longest image side sent to the model.
	DefaultMaxDim = 1024
)

// DefaultPrompt asks for normalized corner coordinates, which vision models
// produce more reliably than pixels.
const DefaultPrompt = `Detect the objects in this image. Reply with JSON only, no prose, in this form:
{"detections":[{"class_name":"person","confidence":0.9,"bbox":{"x1":0.1,"y1":0.2,"x2":0.4,"y2":0.9}}],
 "classification":{"class_name":"street scene","confidence":0.8},
 "suggested_tags":{"tag":["outdoor"],"detailTag":["street"],"hpTag":[]}}
Coordinates are fractions of the image width and height between 0 and 1.`

var ErrEmptyResponse = errors.New("empty response from model")

// Client talks to one Ollama server.
type Client struct {
	api        *api.Client
	httpClient *http.Client
	model      string
	prompt     string
	maxDim     int
	timeout    time.Duration
	log        logrus.FieldLogger
}

type Option func(*Client)

func WithModel(m string) Option {
	return func(c *Client) {
		if m != "" {
			c.model = m
		}
	}
}

func WithPrompt(p string) Option {
	return func(c *Client) {
		if p != "" {
			c.prompt = p
		}
	}
}

func WithMaxDim(n int) Option { return func(c *Client) { c.maxDim = n } }

func WithTimeout(d time.Duration) Option { return func(c *Client) { c.timeout = d } }

func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// WithHTTPClient replaces the HTTP client used for requests.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// New creates a client for the server at rawURL. Any path in rawURL is
// ignored.
func New(rawURL string, opts ...Option) (*Client, error) {
	if rawURL == "" {
		rawURL = DefaultURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid ollama url %q", rawURL)
	}
	c := &Client{
		model:      DefaultModel,
		prompt:     DefaultPrompt,
		maxDim:     DefaultMaxDim,
		timeout:    DefaultTimeout,
		log:        logrus.StandardLogger(),
		httpClient: http.DefaultClient,
	}
	for _, o := range opts {
		o(c)
	}
	c.api = api.NewClient(&url.URL{Scheme: u.Scheme, Host: u.Host}, c.httpClient)
	return c, nil
}

// Detect sends img to the model and converts the reply into a payload with
// pixel coordinates.
func (c *Client) Detect(ctx context.Context, img image.Image) (aimerge.Payload, error) {
	if _, ok := ctx.Deadline(); !ok && c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	data, err := encodeForModel(img, c.maxDim)
	if err != nil {
		return aimerge.Payload{}, err
	}
	stream := false
	req := &api.ChatRequest{
		Model: c.model,
		Messages: []api.Message{{
			Role:    "user",
			Content: c.prompt,
			Images:  []api.ImageData{data},
		}},
		Stream: &stream,
		Format: json.RawMessage(`"json"`),
	}
	var content strings.Builder
	start := time.Now()
	err = c.api.Chat(ctx, req, func(resp api.ChatResponse) error {
		content.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return aimerge.Payload{}, fmt.Errorf("ollama chat: %w", err)
	}
	c.log.WithFields(logrus.Fields{"model": c.model, "elapsed": time.Since(start).Round(time.Millisecond)}).Debug("detection reply received")

	raw := sanitizeModelJSON(content.String())
	if raw == "" {
		return aimerge.Payload{}, ErrEmptyResponse
	}
	p, err := aimerge.DecodePayload(strings.NewReader(raw))
	if err != nil {
		return aimerge.Payload{}, err
	}
	b := img.Bounds()
	scaleNormalized(&p, float64(b.Dx()), float64(b.Dy()))
	return p, nil
}

func encodeForModel(img image.Image, maxDim int) ([]byte, error) {
	if img == nil {
		return nil, errors.New("no image")
	}
	b := img.Bounds()
	if maxDim > 0 && (b.Dx() > maxDim || b.Dy() > maxDim) {
		if b.Dx() >= b.Dy() {
			img = imaging.Resize(img, maxDim, 0, imaging.Lanczos)
		} else {
			img = imaging.Resize(img, 0, maxDim, imaging.Lanczos)
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	return buf.Bytes(), nil
}

// scaleNormalized converts fractional coordinates into pixels. A payload is
// treated as normalized when every coordinate lies within [0,1].
func scaleNormalized(p *aimerge.Payload, w, h float64) {
	normalized := true
	check := func(vs ...float64) {
		for _, v := range vs {
			if v < 0 || v > 1 {
				normalized = false
			}
		}
	}
	for _, d := range p.Detections {
		if d.BBox != nil {
			check(d.BBox.X1, d.BBox.Y1, d.BBox.X2, d.BBox.Y2)
		}
	}
	if p.Segmentation != nil {
		for _, m := range p.Segmentation.Masks {
			for _, pt := range m.Polygon {
				check(pt.X, pt.Y)
			}
		}
	}
	if !normalized {
		return
	}
	for i := range p.Detections {
		if b := p.Detections[i].BBox; b != nil {
			b.X1, b.X2 = b.X1*w, b.X2*w
			b.Y1, b.Y2 = b.Y1*h, b.Y2*h
		}
	}
	if p.Segmentation != nil {
		for i := range p.Segmentation.Masks {
			for j := range p.Segmentation.Masks[i].Polygon {
				pt := &p.Segmentation.Masks[i].Polygon[j]
				pt.X *= w
				pt.Y *= h
			}
		}
	}
}

var (
	reBlockComment = regexp.MustCompile(`(?s)/\*.*?\*/`)
	reLineComment  = regexp.MustCompile(`(?m)^\s*//.*$`)
	reTrailing     = regexp.MustCompile(`,(\s*[}\]])`)
)

// sanitizeModelJSON strips code fences, comments and trailing commas and
// keeps the outermost object.
func sanitizeModelJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		if i := strings.Index(raw, "\n"); i >= 0 {
			raw = raw[i+1:]
		}
		if j := strings.LastIndex(raw, "```"); j >= 0 {
			raw = raw[:j]
		}
	}
	raw = reBlockComment.ReplaceAllString(raw, "")
	raw = reLineComment.ReplaceAllString(raw, "")
	raw = reTrailing.ReplaceAllString(raw, "$1")
	start, end := strings.Index(raw, "{"), strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return ""
	}
	return raw[start : end+1]
}
