// Package viewport models the visible window onto the map: a geographic
// center, a continuous zoom level and a pixel size. It translates pan/zoom
// gestures into a new center and answers which tiles must be drawn where.
package viewport

import (
	"image"
	"math"

	"slippymap/internal/projection"
)

// PlacedTile pairs a tile address with the exact screen rectangle it must be
// drawn into. OnScreen is false for prefetch-margin tiles outside the
// viewport proper.
type PlacedTile struct {
	Addr     projection.TileAddress
	Rect     image.Rectangle
	OnScreen bool
}

// Viewport holds the current view state. It is mutated only by explicit
// pan/zoom/resize calls and is owned by a single context; it is not safe for
// concurrent use.
type Viewport struct {
	center   projection.LonLat
	zoom     float64
	width    int
	height   int
	minZoom  float64
	maxZoom  float64
	tileSize int
	margin   int
}

// New creates a viewport with the default zoom bounds [0, 19], 256px tiles
// and a one-tile prefetch margin.
func New(center projection.LonLat, zoom float64, width, height int) *Viewport {
	v := &Viewport{
		width:    width,
		height:   height,
		minZoom:  0,
		maxZoom:  19,
		tileSize: projection.TileSize,
		margin:   1,
	}
	v.center = center.Clamped()
	v.zoom = clamp(zoom, v.minZoom, v.maxZoom)
	return v
}

// SetZoomBounds constrains the zoom range, typically to the tile source's
// declared min/max. The current zoom is re-clamped.
func (v *Viewport) SetZoomBounds(minZoom, maxZoom float64) {
	v.minZoom = minZoom
	v.maxZoom = maxZoom
	v.zoom = clamp(v.zoom, v.minZoom, v.maxZoom)
}

// SetMargin sets the prefetch border in whole tiles around the viewport.
func (v *Viewport) SetMargin(tiles int) {
	if tiles < 0 {
		tiles = 0
	}
	v.margin = tiles
}

func (v *Viewport) Center() projection.LonLat { return v.center }
func (v *Viewport) Zoom() float64             { return v.zoom }
func (v *Viewport) Size() image.Point         { return image.Pt(v.width, v.height) }

// SetCenter moves the viewport without changing zoom.
func (v *Viewport) SetCenter(center projection.LonLat) {
	v.center = center.Clamped()
}

// Resize updates the output size in pixels.
func (v *Viewport) Resize(width, height int) {
	v.width = width
	v.height = height
}

// Pan shifts the view by a pixel delta at the current zoom. Longitude wraps
// freely across the antimeridian; latitude stops at the Mercator limit.
func (v *Viewport) Pan(dx, dy float64) {
	wx, wy := projection.GeoToWorldPixel(v.center, v.zoom)
	v.center = projection.WorldPixelToGeo(wx+dx, wy+dy, v.zoom)
}

// ZoomTo changes the zoom level such that the geographic point currently
// under anchor stays under anchor. The new zoom is clamped to the bounds.
func (v *Viewport) ZoomTo(newZoom float64, anchor image.Point) {
	newZoom = clamp(newZoom, v.minZoom, v.maxZoom)
	fixed := v.ScreenToLonLat(anchor)
	v.zoom = newZoom

	gx, gy := projection.GeoToWorldPixel(fixed, v.zoom)
	cx := gx - (float64(anchor.X) - float64(v.width)/2)
	cy := gy - (float64(anchor.Y) - float64(v.height)/2)
	v.center = projection.WorldPixelToGeo(cx, cy, v.zoom)
}

// ZoomBy applies a zoom delta anchored at the given point.
func (v *Viewport) ZoomBy(delta float64, anchor image.Point) {
	v.ZoomTo(v.zoom+delta, anchor)
}

// ScreenToLonLat converts a point relative to the viewport's top-left corner
// to a geographic position.
func (v *Viewport) ScreenToLonLat(pt image.Point) projection.LonLat {
	cx, cy := projection.GeoToWorldPixel(v.center, v.zoom)
	wx := cx + float64(pt.X) - float64(v.width)/2
	wy := cy + float64(pt.Y) - float64(v.height)/2
	return projection.WorldPixelToGeo(wx, wy, v.zoom)
}

// LonLatToScreen converts a geographic position to viewport-relative pixel
// coordinates. Positions outside the viewport yield coordinates outside
// [0,width)x[0,height).
func (v *Viewport) LonLatToScreen(ll projection.LonLat) image.Point {
	cx, cy := projection.GeoToWorldPixel(v.center, v.zoom)
	gx, gy := projection.GeoToWorldPixel(ll, v.zoom)
	x := gx - cx + float64(v.width)/2
	y := gy - cy + float64(v.height)/2
	return image.Pt(int(math.Round(x)), int(math.Round(y)))
}

// VisibleTiles enumerates the tiles covering the viewport plus the prefetch
// margin, with the exact placement rectangle for each. Tile selection uses
// the integer zoom nearest the continuous zoom; at fractional zoom the
// rectangles are scaled accordingly. Adjacent rectangles share edges exactly.
// The result is deterministic for a given (center, zoom, size).
func (v *Viewport) VisibleTiles() []PlacedTile {
	izoom := int(math.Round(v.zoom))
	if float64(izoom) > v.maxZoom {
		izoom--
	}
	if izoom < 0 {
		izoom = 0
	}
	scale := math.Pow(2, v.zoom-float64(izoom))
	ts := float64(v.tileSize)

	// Viewport rectangle on the world pixel plane at the integer zoom.
	cx, cy := projection.GeoToWorldPixel(v.center, float64(izoom))
	left := cx - float64(v.width)/(2*scale)
	top := cy - float64(v.height)/(2*scale)
	right := cx + float64(v.width)/(2*scale)
	bottom := cy + float64(v.height)/(2*scale)

	// Tile column/row ranges for the viewport proper and the margin band.
	sx0 := int(math.Floor(left / ts))
	sy0 := int(math.Floor(top / ts))
	sx1 := int(math.Ceil(right/ts)) - 1
	sy1 := int(math.Ceil(bottom/ts)) - 1
	x0, y0 := sx0-v.margin, sy0-v.margin
	x1, y1 := sx1+v.margin, sy1+v.margin

	n := 1 << izoom
	tiles := make([]PlacedTile, 0, (x1-x0+1)*(y1-y0+1))
	for ty := y0; ty <= y1; ty++ {
		if ty < 0 || ty >= n {
			continue
		}
		for tx := x0; tx <= x1; tx++ {
			wrapped := ((tx % n) + n) % n
			rect := image.Rect(
				round((float64(tx)*ts-left)*scale),
				round((float64(ty)*ts-top)*scale),
				round((float64(tx+1)*ts-left)*scale),
				round((float64(ty+1)*ts-top)*scale),
			)
			tiles = append(tiles, PlacedTile{
				Addr:     projection.TileAddress{Zoom: izoom, X: wrapped, Y: ty},
				Rect:     rect,
				OnScreen: tx >= sx0 && tx <= sx1 && ty >= sy0 && ty <= sy1,
			})
		}
	}
	return tiles
}

func round(v float64) int {
	return int(math.Round(v))
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
