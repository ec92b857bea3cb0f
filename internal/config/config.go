package config

import (
	"encoding/json"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultConfigPath string = "config.json"

	EnvConfigPath  = "ANNOTATOR_CONFIG"
	EnvOnnxRuntime = "ONNXRUNTIME_LIB"
	EnvFFmpeg      = "ANNOTATOR_FFMPEG"
	EnvDebug       = "ANNOTATOR_DEBUG"
)

type CanvasConfig struct {
	Width       int `json:"width"`
	Height      int `json:"height"`
	StrokeWidth int `json:"stroke_width"`
	FontSize    int `json:"font_size"`
}

type OnnxConfig struct {
	LibraryPath   string  `json:"library_path"`
	Confidence    float32 `json:"confidence"`
	IoU           float32 `json:"iou"`
	DefaultInput  int     `json:"default_input"`
	IntraOpThread int     `json:"intra_op_threads"`
}

type RemoteConfig struct {
	TimeoutSeconds int `json:"timeout_seconds"`
}

type Config struct {
	mu sync.RWMutex

	Canvas CanvasConfig `json:"canvas"`
	Onnx   OnnxConfig   `json:"onnx"`
	Remote RemoteConfig `json:"remote"`

	MinConfidence float64 `json:"min_confidence"`
	LogRetention  int     `json:"log_retention"`
	FFmpegPath    string  `json:"ffmpeg_path"`
	DarkMode      bool    `json:"dark_mode"`
	Debug         bool    `json:"debug"`
}

func (c *Config) GetMinConfidence() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.MinConfidence
}

func (c *Config) SetMinConfidence(v float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.MinConfidence = clamp01(v)
}

func (c *Config) GetDarkMode() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.DarkMode
}

func (c *Config) SetDarkMode(dark bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.DarkMode = dark
}

// RemoteTimeout is the per-request budget for websocket detectors.
func (c *Config) RemoteTimeout() time.Duration {
	return time.Duration(c.Remote.TimeoutSeconds) * time.Second
}

// Load reads .env, then the JSON config file, then environment overrides.
func Load() *Config {
	_ = godotenv.Load()

	path := os.Getenv(EnvConfigPath)
	if path == "" {
		path = DefaultConfigPath
	}

	cfg := LoadConfigFile(path)
	cfg.applyEnv()
	cfg.normalize()

	return cfg
}

func LoadConfigFile(path string) *Config {
	var cfg *Config = NewDefaultConfig()

	if _, err := os.Stat(path); err == nil {
		f, err := os.Open(path)

		if err != nil {
			return cfg
		}
		defer f.Close()

		dec := json.NewDecoder(f)
		err = dec.Decode(cfg)

		if err != nil {
			return NewDefaultConfig()
		}
	}

	cfg.normalize()

	return cfg
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvOnnxRuntime); v != "" {
		c.Onnx.LibraryPath = v
	}

	if v := os.Getenv(EnvFFmpeg); v != "" {
		c.FFmpegPath = v
	}

	if v := os.Getenv(EnvDebug); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Debug = b
		}
	}
}

// normalize replaces out-of-range values with defaults.
func (c *Config) normalize() {
	def := NewDefaultConfig()

	if c.Canvas.Width <= 0 || c.Canvas.Height <= 0 {
		c.Canvas.Width, c.Canvas.Height = def.Canvas.Width, def.Canvas.Height
	}
	if c.Canvas.StrokeWidth <= 0 {
		c.Canvas.StrokeWidth = def.Canvas.StrokeWidth
	}
	if c.Canvas.FontSize <= 0 {
		c.Canvas.FontSize = def.Canvas.FontSize
	}
	if c.Onnx.Confidence <= 0 || c.Onnx.Confidence > 1 {
		c.Onnx.Confidence = def.Onnx.Confidence
	}
	if c.Onnx.IoU <= 0 || c.Onnx.IoU > 1 {
		c.Onnx.IoU = def.Onnx.IoU
	}
	if c.Onnx.DefaultInput <= 0 {
		c.Onnx.DefaultInput = def.Onnx.DefaultInput
	}
	if c.Onnx.IntraOpThread < 0 {
		c.Onnx.IntraOpThread = 0
	}
	if c.Remote.TimeoutSeconds <= 0 {
		c.Remote.TimeoutSeconds = def.Remote.TimeoutSeconds
	}
	if c.LogRetention < 0 {
		c.LogRetention = def.LogRetention
	}
	if c.FFmpegPath == "" {
		c.FFmpegPath = def.FFmpegPath
	}
	c.MinConfidence = clamp01(c.MinConfidence)
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

func NewDefaultConfig() *Config {
	return &Config{
		Canvas: CanvasConfig{
			Width:       1280,
			Height:      1280,
			StrokeWidth: 3,
			FontSize:    30,
		},
		Onnx: OnnxConfig{
			Confidence:   0.25,
			IoU:          0.45,
			DefaultInput: 640,
		},
		Remote:       RemoteConfig{TimeoutSeconds: 10},
		LogRetention: 1000,
		FFmpegPath:   "ffmpeg",
	}
}
