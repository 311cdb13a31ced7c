// Package source abstracts where tile bytes come from: a remote HTTP tile
// server, a local directory of pre-rendered tiles, or a generated
// placeholder. Everything above this package is source-agnostic.
package source

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"slippymap/internal/projection"
)

// ID identifies a tile source for cache namespacing. It is stable across
// process restarts and collision-free across templates, and only contains
// characters safe for directory names.
type ID string

// Source resolves a tile address to raw encoded image bytes.
type Source interface {
	ID() ID
	TileSize() int
	MinZoom() int
	MaxZoom() int
	Resolve(ctx context.Context, addr projection.TileAddress) ([]byte, error)
}

// NotFoundError reports a tile that does not exist at the source. It is
// never retried.
type NotFoundError struct {
	Addr projection.TileAddress
	Ref  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("tile %s not found at %s", e.Addr, e.Ref)
}

// FetchError reports a transient failure (network error, timeout, server
// error). Fetches failing this way are retried with backoff.
type FetchError struct {
	Addr   projection.TileAddress
	Ref    string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch tile %s from %s: status %d", e.Addr, e.Ref, e.Status)
	}
	return fmt.Sprintf("fetch tile %s from %s: %v", e.Addr, e.Ref, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// DeriveID builds a source identity from a template: the sanitized host (or
// "local" for path templates) plus a short digest of the full template.
func DeriveID(template string) ID {
	sum := sha256.Sum256([]byte(template))
	host := "local"
	if u, err := url.Parse(template); err == nil && u.Host != "" {
		host = sanitize(u.Host)
	}
	return ID(host + "-" + hex.EncodeToString(sum[:])[:12])
}

// expand substitutes {z}, {x} and {y} in a template.
func expand(template string, addr projection.TileAddress) string {
	r := strings.NewReplacer(
		"{z}", strconv.Itoa(addr.Zoom),
		"{x}", strconv.Itoa(addr.X),
		"{y}", strconv.Itoa(addr.Y),
	)
	return r.Replace(template)
}

func validateTemplate(template string) error {
	for _, ph := range []string{"{z}", "{x}", "{y}"} {
		if !strings.Contains(template, ph) {
			return fmt.Errorf("template %q is missing the %s placeholder", template, ph)
		}
	}
	return nil
}

func sanitize(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	return b.String()
}
