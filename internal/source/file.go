package source

import (
	"context"
	"errors"
	"io/fs"
	"os"

	"go.uber.org/zap"

	"slippymap/internal/projection"
)

// File reads tiles from a local path template such as
// "/var/tiles/{z}/{x}/{y}.png". Missing files map to NotFoundError.
type File struct {
	id       ID
	template string
	tileSize int
	minZoom  int
	maxZoom  int
	log      *zap.Logger
}

func NewFile(template string, minZoom, maxZoom int, log *zap.Logger) (*File, error) {
	if err := validateTemplate(template); err != nil {
		return nil, err
	}
	if maxZoom == 0 {
		maxZoom = 19
	}
	return &File{
		id:       DeriveID(template),
		template: template,
		tileSize: projection.TileSize,
		minZoom:  minZoom,
		maxZoom:  maxZoom,
		log:      log,
	}, nil
}

func (s *File) ID() ID        { return s.id }
func (s *File) TileSize() int { return s.tileSize }
func (s *File) MinZoom() int  { return s.minZoom }
func (s *File) MaxZoom() int  { return s.maxZoom }

func (s *File) Resolve(_ context.Context, addr projection.TileAddress) ([]byte, error) {
	path := expand(s.template, addr)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &NotFoundError{Addr: addr, Ref: path}
		}
		return nil, &FetchError{Addr: addr, Ref: path, Err: err}
	}
	return data, nil
}
