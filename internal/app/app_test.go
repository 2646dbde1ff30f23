package app

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"testing"

	"github.com/ayusman/mudra/internal/config"
)

type fakeLister struct {
	cameras []string
	err     error
	calls   int
}

func (f *fakeLister) Cameras(ctx context.Context) ([]string, error) {
	f.calls++
	return f.cameras, f.err
}

func TestResolveCameras(t *testing.T) {
	tests := []struct {
		name       string
		configured []string
		lister     *fakeLister
		want       []string
		wantCalls  int
	}{
		{
			name:       "configured list wins",
			configured: []string{"front", "back"},
			lister:     &fakeLister{cameras: []string{"garage"}},
			want:       []string{"front", "back"},
		},
		{
			name:      "discovered",
			lister:    &fakeLister{cameras: []string{"back", "front"}},
			want:      []string{"back", "front"},
			wantCalls: 1,
		},
		{
			name:      "unusable names are skipped",
			lister:    &fakeLister{cameras: []string{"availability", "front", "side/gate", "..", "yard#1"}},
			want:      []string{"front"},
			wantCalls: 1,
		},
		{
			name:      "discovery failure",
			lister:    &fakeLister{err: errors.New("connection refused")},
			want:      []string{},
			wantCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{Frigate: config.FrigateConfig{Cameras: tt.configured}}

			got := ResolveCameras(context.Background(), cfg, tt.lister)

			if got == nil || !slices.Equal(got, tt.want) {
				t.Errorf("ResolveCameras() = %v, want %v", got, tt.want)
			}
			if tt.lister.calls != tt.wantCalls {
				t.Errorf("discovery calls = %d, want %d", tt.lister.calls, tt.wantCalls)
			}
		})
	}
}

func TestNew(t *testing.T) {
	dir := t.TempDir()
	cfg, err := config.Parse([]byte(`
frigate:
  cameras: [front, back]
store:
  path: ` + filepath.Join(dir, "mudra.db") + `
archive:
  enabled: true
  dir: ` + filepath.Join(dir, "snapshots") + `
classifier:
  script: ` + filepath.Join(dir, "missing.py") + `
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	a, err := New(cfg, cfg.Frigate.Cameras)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer a.Close()

	if a.registry.Len() != 2 {
		t.Errorf("registry has %d cameras, want 2", a.registry.Len())
	}
	if a.store == nil {
		t.Error("store should be opened when store.path is set")
	}
	if a.server != nil {
		t.Error("status API should be disabled without server.addr")
	}
	if a.publisher.Topic("front") != "gestures/front" {
		t.Errorf("Topic() = %q", a.publisher.Topic("front"))
	}
}

func TestNew_StoreError(t *testing.T) {
	cfg, err := config.Parse([]byte(`
store:
  path: ` + filepath.Join(t.TempDir(), "missing", "dir", "mudra.db") + `
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if _, err := New(cfg, nil); err == nil {
		t.Error("expected error for unopenable store path")
	}
}
