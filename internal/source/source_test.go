package source

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"slippymap/internal/projection"
)

func TestDeriveIDStableAndDistinct(t *testing.T) {
	a := DeriveID("https://tile.openstreetmap.org/{z}/{x}/{y}.png")
	b := DeriveID("https://tile.openstreetmap.org/{z}/{x}/{y}.png")
	c := DeriveID("https://tile.example.com/{z}/{x}/{y}.png")

	if a != b {
		t.Errorf("same template produced different IDs: %q vs %q", a, b)
	}
	if a == c {
		t.Errorf("different templates collided on ID %q", a)
	}
	if !bytes.HasPrefix([]byte(a), []byte("tile.openstreetmap.org-")) {
		t.Errorf("ID %q does not carry the host", a)
	}
	for _, r := range string(a) {
		if r == '/' || r == ':' {
			t.Errorf("ID %q contains a path-unsafe character", a)
		}
	}
}

func TestExpandTemplate(t *testing.T) {
	got := expand("https://example.com/{z}/{x}/{y}.png", projection.TileAddress{Zoom: 12, X: 2200, Y: 1343})
	want := "https://example.com/12/2200/1343.png"
	if got != want {
		t.Errorf("expand = %q, want %q", got, want)
	}
}

func TestNewHTTPRejectsBadTemplate(t *testing.T) {
	if _, err := NewHTTP("https://example.com/tiles.png", HTTPOptions{}, zap.NewNop()); err == nil {
		t.Error("template without placeholders accepted")
	}
}

func TestHTTPResolveStatusMapping(t *testing.T) {
	tileBytes := encodePNG(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/1/0/0.png":
			w.Write(tileBytes)
		case "/1/0/1.png":
			http.NotFound(w, r)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	s, err := NewHTTP(srv.URL+"/{z}/{x}/{y}.png", HTTPOptions{Client: srv.Client()}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewHTTP: %v", err)
	}

	data, err := s.Resolve(context.Background(), projection.TileAddress{Zoom: 1, X: 0, Y: 0})
	if err != nil {
		t.Fatalf("Resolve 200: %v", err)
	}
	if !bytes.Equal(data, tileBytes) {
		t.Error("Resolve returned wrong bytes")
	}

	_, err = s.Resolve(context.Background(), projection.TileAddress{Zoom: 1, X: 0, Y: 1})
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Errorf("404 mapped to %T (%v), want NotFoundError", err, err)
	}

	_, err = s.Resolve(context.Background(), projection.TileAddress{Zoom: 1, X: 1, Y: 1})
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Errorf("500 mapped to %T (%v), want FetchError", err, err)
	}
	if fe.Status != http.StatusInternalServerError {
		t.Errorf("FetchError status = %d, want 500", fe.Status)
	}
}

func TestFileResolve(t *testing.T) {
	dir := t.TempDir()
	tileBytes := encodePNG(t)
	if err := os.MkdirAll(filepath.Join(dir, "3", "2"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "3", "2", "1.png"), tileBytes, 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := NewFile(filepath.Join(dir, "{z}", "{x}", "{y}.png"), 0, 19, zap.NewNop())
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}

	data, err := s.Resolve(context.Background(), projection.TileAddress{Zoom: 3, X: 2, Y: 1})
	if err != nil {
		t.Fatalf("Resolve existing tile: %v", err)
	}
	if !bytes.Equal(data, tileBytes) {
		t.Error("Resolve returned wrong bytes")
	}

	_, err = s.Resolve(context.Background(), projection.TileAddress{Zoom: 3, X: 0, Y: 0})
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Errorf("missing file mapped to %T (%v), want NotFoundError", err, err)
	}
}

func TestPlaceholderRendersDecodableTile(t *testing.T) {
	s := NewPlaceholder()
	data, err := s.Resolve(context.Background(), projection.TileAddress{Zoom: 5, X: 10, Y: 12})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("placeholder tile does not decode: %v", err)
	}
	if format != "png" {
		t.Errorf("format = %q, want png", format)
	}
	if img.Bounds().Dx() != projection.TileSize || img.Bounds().Dy() != projection.TileSize {
		t.Errorf("bounds = %v, want %dx%d", img.Bounds(), projection.TileSize, projection.TileSize)
	}
}

func encodePNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode test tile: %v", err)
	}
	return buf.Bytes()
}
