// Package config loads the mudra YAML configuration, applies defaults and
// environment overrides, and answers per-camera policy questions.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPaths are tried in order when no explicit config path is given.
var DefaultPaths = []string{"/config/config.yml", "config.yml"}

// Gesture thresholds used when the config file does not set them.
const (
	DefaultHandSize   = 9000
	DefaultConfidence = 0.75
)

// Retention scopes for archived snapshots.
const (
	ScopeCamera = "camera"
	ScopeGlobal = "global"
)

// Config is the complete service configuration.
type Config struct {
	MQTT       MQTTConfig        `yaml:"mqtt"`
	Frigate    FrigateConfig     `yaml:"frigate"`
	DoubleTake *DoubleTakeConfig `yaml:"double-take"` // nil disables face recognition
	Gesture    GestureConfig     `yaml:"gesture"`
	Archive    ArchiveConfig     `yaml:"archive"`
	Classifier ClassifierConfig  `yaml:"classifier"`
	Store      StoreConfig       `yaml:"store"`
	Server     ServerConfig      `yaml:"server"`
	Log        LogConfig         `yaml:"log"`
}

type MQTTConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	ClientID string `yaml:"client_id"`
}

// Broker returns the broker address in paho form.
func (c MQTTConfig) Broker() string {
	return fmt.Sprintf("tcp://%s:%d", c.Host, c.Port)
}

type FrigateConfig struct {
	URL         string        `yaml:"url"` // overrides host/port when set
	Host        string        `yaml:"host"`
	Port        int           `yaml:"port"`
	Cameras     []string      `yaml:"cameras"`      // empty = discover from the Frigate API
	TopicPrefix string        `yaml:"topic_prefix"` // person counts arrive on <prefix>/<camera>/person
	Timeout     time.Duration `yaml:"timeout"`
}

// BaseURL returns the Frigate API base URL without a trailing slash.
func (c FrigateConfig) BaseURL() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf("http://%s:%d", c.Host, c.Port)
}

type DoubleTakeConfig struct {
	URL              string        `yaml:"url"`
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	Cameras          []string      `yaml:"cameras"` // nil = every camera
	DetectAllResults bool          `yaml:"detect_all_results"`
	Timeout          time.Duration `yaml:"timeout"`
}

// BaseURL returns the Double-Take API base URL without a trailing slash.
func (c DoubleTakeConfig) BaseURL() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf("http://%s:%d", c.Host, c.Port)
}

type GestureConfig struct {
	HandSize       int           `yaml:"handsize"`   // minimum hand box area in px²
	Confidence     float64       `yaml:"confidence"` // minimum gesture score
	Topic          string        `yaml:"topic"`
	AllowedPersons []string      `yaml:"allowed_persons"`
	Interval       time.Duration `yaml:"interval"`
}

type ArchiveConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Dir      string        `yaml:"dir"`
	MaxFiles int           `yaml:"max_files"`
	MaxAge   time.Duration `yaml:"max_age"`
	Scope    string        `yaml:"scope"`
}

type ClassifierConfig struct {
	Python string `yaml:"python"` // interpreter; empty = venv lookup, then python3
	Script string `yaml:"script"` // gesture_service.py; empty = search default locations
}

type StoreConfig struct {
	Path    string `yaml:"path"`    // empty disables the history index
	History int    `yaml:"history"` // status records kept per camera
}

type ServerConfig struct {
	Addr string `yaml:"addr"` // empty disables the status API
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads the configuration file at path, or the first existing file in
// DefaultPaths when path is empty, then applies defaults, environment
// overrides and validation.
func Load(path string) (*Config, error) {
	data, err := readConfigFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes YAML configuration data and finalizes it.
func Parse(data []byte) (*Config, error) {
	// zero is a meaningful threshold, so these defaults are seeded before
	// decoding instead of filled in afterwards
	cfg := Config{
		Gesture: GestureConfig{
			HandSize:   DefaultHandSize,
			Confidence: DefaultConfidence,
		},
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyDefaults()
	cfg.applyEnv()

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func readConfigFile(path string) ([]byte, error) {
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		return data, nil
	}

	for _, p := range DefaultPaths {
		data, err := os.ReadFile(p)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file %s: %w", p, err)
		}
	}
	return nil, fmt.Errorf("no config file found in %v", DefaultPaths)
}

func (c *Config) applyDefaults() {
	if c.MQTT.Host == "" {
		c.MQTT.Host = "localhost"
	}
	if c.MQTT.Port == 0 {
		c.MQTT.Port = 1883
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "mudra"
	}

	if c.Frigate.Host == "" {
		c.Frigate.Host = "localhost"
	}
	if c.Frigate.Port == 0 {
		c.Frigate.Port = 5000
	}
	if c.Frigate.TopicPrefix == "" {
		c.Frigate.TopicPrefix = "frigate"
	}
	if c.Frigate.Timeout <= 0 {
		c.Frigate.Timeout = 10 * time.Second
	}

	if c.DoubleTake != nil {
		if c.DoubleTake.Host == "" {
			c.DoubleTake.Host = "localhost"
		}
		if c.DoubleTake.Port == 0 {
			c.DoubleTake.Port = 3000
		}
		if c.DoubleTake.Timeout <= 0 {
			c.DoubleTake.Timeout = 10 * time.Second
		}
	}

	if c.Gesture.Topic == "" {
		c.Gesture.Topic = "gestures"
	}
	if c.Gesture.Interval <= 0 {
		c.Gesture.Interval = 500 * time.Millisecond
	}

	if c.Archive.Dir == "" {
		c.Archive.Dir = "/config/snapshots"
	}
	if c.Archive.Scope == "" {
		c.Archive.Scope = ScopeCamera
	}

	if c.Store.History <= 0 {
		c.Store.History = 1000
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// applyEnv lets deployments override connection settings without editing
// the YAML file.
func (c *Config) applyEnv() {
	if v := os.Getenv("MQTT_HOST"); v != "" {
		c.MQTT.Host = v
	}
	c.MQTT.Port = envInt("MQTT_PORT", c.MQTT.Port)
	if v := os.Getenv("MQTT_USERNAME"); v != "" {
		c.MQTT.Username = v
	}
	if v := os.Getenv("MQTT_PASSWORD"); v != "" {
		c.MQTT.Password = v
	}
	if v := os.Getenv("FRIGATE_URL"); v != "" {
		c.Frigate.URL = v
	}
	if v := os.Getenv("DOUBLE_TAKE_URL"); v != "" && c.DoubleTake != nil {
		c.DoubleTake.URL = v
	}
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// UsesFaceRecognition reports whether the camera is routed through
// Double-Take before gesture classification.
func (c *Config) UsesFaceRecognition(camera string) bool {
	if c.DoubleTake == nil {
		return false
	}
	if c.DoubleTake.Cameras == nil {
		return true
	}
	return slices.Contains(c.DoubleTake.Cameras, camera)
}

// ProcessAllResults reports whether miss and unknown faces may trigger
// gesture attribution.
func (c *Config) ProcessAllResults() bool {
	return c.DoubleTake != nil && c.DoubleTake.DetectAllResults
}
