package frigate

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestClient_FrameURL(t *testing.T) {
	c := NewClient("http://nvr:5000/", time.Second)

	if got := c.FrameURL("front"); got != "http://nvr:5000/api/front/latest.jpg" {
		t.Errorf("FrameURL() = %q", got)
	}
	if got := c.FrameURL("back yard"); got != "http://nvr:5000/api/back%20yard/latest.jpg" {
		t.Errorf("FrameURL() should escape names, got %q", got)
	}
}

func TestClient_LatestFrame(t *testing.T) {
	jpeg := []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/front/latest.jpg":
			w.Header().Set("Content-Type", "image/jpeg")
			w.Write(jpeg)
		case "/api/empty/latest.jpg":
			w.WriteHeader(http.StatusOK)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)

	t.Run("returns frame bytes", func(t *testing.T) {
		got, err := c.LatestFrame(context.Background(), "front")
		if err != nil {
			t.Fatalf("LatestFrame() error = %v", err)
		}
		if string(got) != string(jpeg) {
			t.Errorf("LatestFrame() = %v, want %v", got, jpeg)
		}
	})

	t.Run("empty body", func(t *testing.T) {
		_, err := c.LatestFrame(context.Background(), "empty")
		if !errors.Is(err, ErrNoFrame) {
			t.Errorf("LatestFrame() error = %v, want ErrNoFrame", err)
		}
	})

	t.Run("unknown camera", func(t *testing.T) {
		_, err := c.LatestFrame(context.Background(), "attic")
		if err == nil || !strings.Contains(err.Error(), "status 404") {
			t.Errorf("LatestFrame() error = %v, want status 404", err)
		}
	})
}

func TestClient_LatestFrame_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 50*time.Millisecond)
	start := time.Now()
	if _, err := c.LatestFrame(context.Background(), "front"); err == nil {
		t.Error("expected timeout error")
	}
	if time.Since(start) > time.Second {
		t.Errorf("LatestFrame() should give up after the timeout, took %v", time.Since(start))
	}
}

func TestClient_Cameras(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/config" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`{"cameras": {"garage": {"enabled": true}, "front": {}, "back": {}}, "mqtt": {}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	names, err := c.Cameras(context.Background())
	if err != nil {
		t.Fatalf("Cameras() error = %v", err)
	}

	want := []string{"back", "front", "garage"}
	if len(names) != len(want) {
		t.Fatalf("Cameras() = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("Cameras()[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}

func TestClient_Cameras_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	if _, err := c.Cameras(context.Background()); err == nil {
		t.Error("expected error for 502 response")
	}
}
