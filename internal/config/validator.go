package config

import (
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Validate checks if the configuration is valid
func Validate(cfg *Config) error {
	if cfg.MQTT.Port <= 0 || cfg.MQTT.Port > 65535 {
		return fmt.Errorf("mqtt.port must be between 1 and 65535, got %d", cfg.MQTT.Port)
	}

	if cfg.Gesture.HandSize < 0 {
		return fmt.Errorf("gesture.handsize must be >= 0")
	}
	if cfg.Gesture.Confidence < 0 || cfg.Gesture.Confidence > 1 {
		return fmt.Errorf("gesture.confidence must be within [0, 1], got %v", cfg.Gesture.Confidence)
	}
	if strings.ContainsAny(cfg.Gesture.Topic, "+#") {
		return fmt.Errorf("gesture.topic must not contain MQTT wildcards")
	}
	if strings.HasSuffix(cfg.Gesture.Topic, "/") {
		return fmt.Errorf("gesture.topic must not end with '/'")
	}

	seen := make(map[string]bool, len(cfg.Frigate.Cameras))
	for _, name := range cfg.Frigate.Cameras {
		if err := ValidateCameraName(name); err != nil {
			return fmt.Errorf("frigate.cameras: %w", err)
		}
		if seen[name] {
			return fmt.Errorf("camera %q listed twice", name)
		}
		seen[name] = true
	}

	if cfg.Archive.Enabled {
		if cfg.Archive.MaxFiles < 0 {
			return fmt.Errorf("archive.max_files must be >= 0")
		}
		if cfg.Archive.MaxAge < 0 {
			return fmt.Errorf("archive.max_age must be >= 0")
		}
		switch cfg.Archive.Scope {
		case ScopeCamera, ScopeGlobal:
		default:
			return fmt.Errorf("archive.scope must be %q or %q, got %q", ScopeCamera, ScopeGlobal, cfg.Archive.Scope)
		}
	}

	if _, err := log.ParseLevel(cfg.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch cfg.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be 'text' or 'json', got %q", cfg.Log.Format)
	}

	return nil
}

// ValidateCameraName rejects names that cannot serve as a single MQTT topic
// level and a snapshot file name prefix.
func ValidateCameraName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("empty camera name")
	case name == "availability":
		return fmt.Errorf("camera name %q collides with the availability topic", name)
	case strings.ContainsAny(name, "/+#\x00"):
		return fmt.Errorf("camera name %q contains '/', '+', '#' or NUL", name)
	case strings.Contains(name, ".."):
		return fmt.Errorf("camera name %q contains '..'", name)
	}
	return nil
}
