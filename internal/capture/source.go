// Package capture turns camera snapshots into decoded GoCV frames.
package capture

import (
	"context"
	"errors"
	"fmt"

	"gocv.io/x/gocv"
)

// ErrEmptyFrame is returned when a snapshot decodes to an empty image.
var ErrEmptyFrame = errors.New("decoded frame is empty")

// Source provides the latest frame of a camera.
type Source interface {
	// Latest returns the camera's current frame.
	// The caller is responsible for closing the returned Mat.
	Latest(ctx context.Context, camera string) (*gocv.Mat, error)
}

// Fetcher downloads an encoded snapshot for a camera.
type Fetcher interface {
	LatestFrame(ctx context.Context, camera string) ([]byte, error)
}

// SnapshotSource decodes JPEG snapshots pulled from a Fetcher.
type SnapshotSource struct {
	fetcher Fetcher
}

// NewSnapshotSource creates a Source backed by fetcher.
func NewSnapshotSource(fetcher Fetcher) *SnapshotSource {
	return &SnapshotSource{fetcher: fetcher}
}

// Latest fetches and decodes the camera's current snapshot.
func (s *SnapshotSource) Latest(ctx context.Context, camera string) (*gocv.Mat, error) {
	data, err := s.fetcher.LatestFrame(ctx, camera)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}

// Decode decodes an encoded image into a BGR frame.
func Decode(data []byte) (*gocv.Mat, error) {
	mat, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	if mat.Empty() {
		mat.Close()
		return nil, ErrEmptyFrame
	}
	return &mat, nil
}
