package capture

import (
	"context"
	"errors"
	"testing"

	"gocv.io/x/gocv"
)

type fakeFetcher struct {
	data []byte
	err  error
}

func (f *fakeFetcher) LatestFrame(ctx context.Context, camera string) ([]byte, error) {
	return f.data, f.err
}

func encodeJPEG(t *testing.T, rows, cols int) []byte {
	t.Helper()

	mat := gocv.NewMatWithSize(rows, cols, gocv.MatTypeCV8UC3)
	defer mat.Close()

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, mat)
	if err != nil {
		t.Fatalf("IMEncode() error = %v", err)
	}
	defer buf.Close()

	// GetBytes aliases native memory
	return append([]byte(nil), buf.GetBytes()...)
}

func TestSnapshotSource_Latest(t *testing.T) {
	src := NewSnapshotSource(&fakeFetcher{data: encodeJPEG(t, 48, 64)})

	frame, err := src.Latest(context.Background(), "front")
	if err != nil {
		t.Fatalf("Latest() error = %v", err)
	}
	defer frame.Close()

	if frame.Rows() != 48 || frame.Cols() != 64 {
		t.Errorf("frame size = %dx%d, want 64x48", frame.Cols(), frame.Rows())
	}
}

func TestSnapshotSource_Errors(t *testing.T) {
	t.Run("fetch error is returned", func(t *testing.T) {
		fetchErr := errors.New("connection refused")
		src := NewSnapshotSource(&fakeFetcher{err: fetchErr})

		if _, err := src.Latest(context.Background(), "front"); !errors.Is(err, fetchErr) {
			t.Errorf("Latest() error = %v, want %v", err, fetchErr)
		}
	})

	t.Run("garbage bytes", func(t *testing.T) {
		src := NewSnapshotSource(&fakeFetcher{data: []byte("not an image")})

		if _, err := src.Latest(context.Background(), "front"); err == nil {
			t.Error("expected error for undecodable data")
		}
	})
}

func TestMockSource(t *testing.T) {
	frame := gocv.NewMatWithSize(10, 10, gocv.MatTypeCV8UC3)
	defer frame.Close()

	src := NewMockSource()
	src.SetFrame("front", &frame)

	got, err := src.Latest(context.Background(), "front")
	if err != nil {
		t.Fatalf("Latest() error = %v", err)
	}
	got.Close()

	if _, err := src.Latest(context.Background(), "back"); err == nil {
		t.Error("expected error for camera without a frame")
	}

	src.SetError(errors.New("offline"))
	if _, err := src.Latest(context.Background(), "front"); err == nil {
		t.Error("expected configured error")
	}

	if src.Calls() != 3 {
		t.Errorf("Calls() = %d, want 3", src.Calls())
	}
}
