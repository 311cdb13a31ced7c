// Package projection implements the Web Mercator math shared by the rest of
// the viewer: geographic <-> world-pixel <-> tile-index conversions. All
// projection trigonometry lives here; other packages route through it.
package projection

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
)

const (
	// TileSize is the edge length in pixels of a standard slippy-map tile.
	TileSize = 256

	// MaxLatitude is the northern/southern limit of the Web Mercator
	// projection. Latitudes beyond it are clamped, never rejected.
	MaxLatitude = 85.05112878
)

// LonLat is a geographic point in degrees.
type LonLat struct {
	Lon float64
	Lat float64
}

// Clamped returns the point constrained to the Mercator-projectable range.
func (ll LonLat) Clamped() LonLat {
	return LonLat{
		Lon: clamp(ll.Lon, -180, 180),
		Lat: clamp(ll.Lat, -MaxLatitude, MaxLatitude),
	}
}

func (ll LonLat) String() string {
	return fmt.Sprintf("(%.6f, %.6f)", ll.Lon, ll.Lat)
}

// TileAddress identifies one cell of the tile pyramid.
type TileAddress struct {
	Zoom int
	X    int
	Y    int
}

// String renders the address as "z/x/y", the form used for cache keys,
// disk paths and log fields.
func (t TileAddress) String() string {
	return fmt.Sprintf("%d/%d/%d", t.Zoom, t.X, t.Y)
}

// Valid reports whether the address lies inside the pyramid for its zoom.
func (t TileAddress) Valid() bool {
	if t.Zoom < 0 || t.Zoom > 30 {
		return false
	}
	n := 1 << t.Zoom
	return t.X >= 0 && t.X < n && t.Y >= 0 && t.Y < n
}

// GeoToWorldPixel projects a geographic point onto the world pixel plane at
// the given zoom. The plane is TileSize*2^zoom pixels square; zoom may be
// fractional. Out-of-range inputs are clamped.
func GeoToWorldPixel(ll LonLat, zoom float64) (float64, float64) {
	ll = ll.Clamped()
	world := TileSize * math.Pow(2, zoom)
	x := (ll.Lon + 180) / 360 * world
	latRad := ll.Lat * math.Pi / 180
	y := (1 - math.Log(math.Tan(latRad)+1/math.Cos(latRad))/math.Pi) / 2 * world
	return x, y
}

// WorldPixelToGeo is the inverse of GeoToWorldPixel. Longitude wraps across
// the antimeridian; latitude is clamped to the Mercator limit.
func WorldPixelToGeo(x, y, zoom float64) LonLat {
	world := TileSize * math.Pow(2, zoom)
	lon := wrapLon(x/world*360 - 180)
	latRad := math.Atan(math.Sinh(math.Pi * (1 - 2*y/world)))
	lat := clamp(latRad*180/math.Pi, -MaxLatitude, MaxLatitude)
	return LonLat{Lon: lon, Lat: lat}
}

// TileContaining returns the tile covering a world-pixel position at an
// integer zoom. X wraps modulo 2^zoom; Y is clamped to the pyramid.
func TileContaining(x, y float64, zoom int) TileAddress {
	n := 1 << zoom
	tx := int(math.Floor(x / TileSize))
	ty := int(math.Floor(y / TileSize))
	tx = ((tx % n) + n) % n
	if ty < 0 {
		ty = 0
	} else if ty >= n {
		ty = n - 1
	}
	return TileAddress{Zoom: zoom, X: tx, Y: ty}
}

// TileAt returns the tile containing a geographic point at an integer zoom.
func TileAt(ll LonLat, zoom int) TileAddress {
	ll = ll.Clamped()
	t := maptile.At(orb.Point{ll.Lon, ll.Lat}, maptile.Zoom(zoom))
	n := 1 << zoom
	addr := TileAddress{Zoom: zoom, X: int(t.X) % n, Y: int(t.Y)}
	if addr.Y >= n {
		addr.Y = n - 1
	}
	return addr
}

func wrapLon(lon float64) float64 {
	lon = math.Mod(lon+180, 360)
	if lon < 0 {
		lon += 360
	}
	return lon - 180
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
