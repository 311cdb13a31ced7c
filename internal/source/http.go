package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"slippymap/internal/projection"
)

const defaultUserAgent = "slippymap/1.0"

// HTTPOptions tune an HTTP tile source. Zero values select defaults.
type HTTPOptions struct {
	Client    *http.Client
	UserAgent string
	TileSize  int
	MinZoom   int
	MaxZoom   int
}

// HTTP fetches tiles from a remote server by substituting the address into a
// URL template such as "https://tile.openstreetmap.org/{z}/{x}/{y}.png".
type HTTP struct {
	id        ID
	template  string
	client    *http.Client
	userAgent string
	tileSize  int
	minZoom   int
	maxZoom   int
	log       *zap.Logger
}

func NewHTTP(template string, opts HTTPOptions, log *zap.Logger) (*HTTP, error) {
	if err := validateTemplate(template); err != nil {
		return nil, err
	}
	s := &HTTP{
		id:        DeriveID(template),
		template:  template,
		client:    opts.Client,
		userAgent: opts.UserAgent,
		tileSize:  opts.TileSize,
		minZoom:   opts.MinZoom,
		maxZoom:   opts.MaxZoom,
		log:       log,
	}
	if s.client == nil {
		s.client = &http.Client{Timeout: 15 * time.Second}
	}
	if s.userAgent == "" {
		s.userAgent = defaultUserAgent
	}
	if s.tileSize == 0 {
		s.tileSize = projection.TileSize
	}
	if s.maxZoom == 0 {
		s.maxZoom = 19
	}
	return s, nil
}

func (s *HTTP) ID() ID        { return s.id }
func (s *HTTP) TileSize() int { return s.tileSize }
func (s *HTTP) MinZoom() int  { return s.minZoom }
func (s *HTTP) MaxZoom() int  { return s.maxZoom }

// Resolve performs exactly one GET for the substituted URL. 404 maps to
// NotFoundError; network failures and non-2xx statuses map to FetchError.
func (s *HTTP) Resolve(ctx context.Context, addr projection.TileAddress) ([]byte, error) {
	tileURL := expand(s.template, addr)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, tileURL, nil)
	if err != nil {
		return nil, &NotFoundError{Addr: addr, Ref: tileURL}
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "image/webp,image/png,image/jpeg,*/*")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &FetchError{Addr: addr, Ref: tileURL, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		return nil, &NotFoundError{Addr: addr, Ref: tileURL}
	default:
		return nil, &FetchError{Addr: addr, Ref: tileURL, Status: resp.StatusCode}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{Addr: addr, Ref: tileURL, Err: fmt.Errorf("read body: %w", err)}
	}
	s.log.Debug("fetched tile",
		zap.String("tile", addr.String()),
		zap.String("url", tileURL),
		zap.Int("bytes", len(data)),
	)
	return data, nil
}
