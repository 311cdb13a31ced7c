package source

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/draw"
	"image/png"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"slippymap/internal/projection"
)

// Placeholder generates labeled tiles in memory. It is used as a demo source
// and as a stand-in while developing without network access.
type Placeholder struct {
	id ID
}

func NewPlaceholder() *Placeholder {
	return &Placeholder{id: "placeholder"}
}

func (s *Placeholder) ID() ID        { return s.id }
func (s *Placeholder) TileSize() int { return projection.TileSize }
func (s *Placeholder) MinZoom() int  { return 0 }
func (s *Placeholder) MaxZoom() int  { return 22 }

func (s *Placeholder) Resolve(_ context.Context, addr projection.TileAddress) ([]byte, error) {
	const size = projection.TileSize
	img := image.NewRGBA(image.Rect(0, 0, size, size))

	bg := color.RGBA{200, 220, 255, 255}
	draw.Draw(img, img.Bounds(), &image.Uniform{bg}, image.Point{}, draw.Src)

	border := color.RGBA{100, 100, 100, 255}
	for _, rect := range []image.Rectangle{
		image.Rect(0, 0, size, 1),
		image.Rect(0, size-1, size, size),
		image.Rect(0, 0, 1, size),
		image.Rect(size-1, 0, size, size),
	} {
		draw.Draw(img, rect, &image.Uniform{border}, image.Point{}, draw.Src)
	}

	drawLabel(img, addr.String())

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, &FetchError{Addr: addr, Ref: "placeholder", Err: err}
	}
	return buf.Bytes(), nil
}

func drawLabel(img *image.RGBA, text string) {
	const size = projection.TileSize
	face := basicfont.Face7x13
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.RGBA{40, 40, 40, 255}),
		Face: face,
	}
	width := d.MeasureString(text).Round()
	d.Dot = fixed.Point26_6{
		X: fixed.I((size - width) / 2),
		Y: fixed.I(size / 2),
	}
	d.DrawString(text)
}
