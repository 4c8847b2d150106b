// Package config provides the configuration schema, loader, and backend
// registry for the Hearken wake-word daemon.
package config

import "github.com/MrWong99/hearken/pkg/audio"

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for Hearken.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Audio     AudioConfig     `yaml:"audio"`
	Detection DetectionConfig `yaml:"detection"`
	Action    ActionConfig    `yaml:"action"`
	Recording RecordingConfig `yaml:"debug_recording"`
}

// ServerConfig holds logging and the optional observability endpoint.
type ServerConfig struct {
	// ListenAddr is an optional TCP address (e.g. ":9102") serving
	// /metrics, /healthz and /readyz. Empty disables the HTTP surface.
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// AudioConfig holds capture parameters.
type AudioConfig struct {
	// Backend selects the capture implementation registered in the
	// [Registry] (e.g. "portaudio", "miniaudio").
	Backend string `yaml:"backend"`

	// SampleRate in Hz. Default 16000; the wake models are trained at this rate.
	SampleRate int `yaml:"sample_rate"`

	// FrameLength is the samples per frame, one inference quantum. Default 1280.
	FrameLength int `yaml:"frame_length"`

	// QueueCapacity bounds the capture queue in frames. Default 100.
	QueueCapacity int `yaml:"queue_capacity"`

	// DropPolicy selects full-queue behaviour: block, drop-oldest or
	// drop-newest. Default block.
	DropPolicy audio.DropPolicy `yaml:"drop_policy"`

	// DeviceHint is a substring matched against input device names during
	// auto-detection. Empty uses the backend default.
	DeviceHint string `yaml:"device_hint"`
}

// DetectionConfig selects and tunes the wake-word engine.
type DetectionConfig struct {
	// Engine selects the registered wake engine (e.g. "porcupine", "sherpa").
	Engine string `yaml:"engine"`

	// Models lists named wake-word models (built-in keywords or .ppn
	// files). Mutually exclusive with CustomModelPath.
	Models []string `yaml:"models"`

	// CustomModelPath points at a custom model directory or file.
	// Mutually exclusive with Models.
	CustomModelPath string `yaml:"custom_model_path"`

	// Threshold is the strict confidence bound a score must exceed to
	// fire. Range (0, 1]. Default 0.5.
	Threshold float64 `yaml:"threshold"`

	// AccessKey authenticates against engines that require one (Porcupine).
	AccessKey string `yaml:"access_key"`
}

// ActionConfig describes the playback action a detection triggers.
type ActionConfig struct {
	// Player selects the registered sink (e.g. "mpv", "builtin").
	Player string `yaml:"player"`

	// AssetPath is the media asset handed to the player.
	AssetPath string `yaml:"asset_path"`
}

// RecordingConfig controls the rotating debug recording ring.
type RecordingConfig struct {
	// Enabled switches the ring on. Off by default.
	Enabled bool `yaml:"enabled"`

	// Dir is the output directory. Default "./debug_recordings".
	Dir string `yaml:"dir"`

	// NumFiles is the rotation count. Default 10.
	NumFiles int `yaml:"num_files"`

	// DurationSeconds is the audio span per file. Default 5.
	DurationSeconds int `yaml:"duration_seconds"`
}
