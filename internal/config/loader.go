package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/hearken/pkg/audio"
)

// Defaults applied by Load for fields left unset.
const (
	DefaultThreshold       = 0.5
	DefaultQueueCapacity   = 100
	DefaultRecordingDir    = "./debug_recordings"
	DefaultEngine          = "porcupine"
	DefaultBackend         = "portaudio"
	DefaultPlayer          = "mpv"
	DefaultModel           = "jarvis"
	defaultNumFiles        = 10
	defaultDurationSeconds = 5
)

// Load reads the YAML configuration file at path, applies environment
// overrides, fills defaults and validates the result. A missing file is not
// an error: Hearken can run entirely from environment variables, matching
// the dotenv-driven deployments.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		cfg := &Config{}
		applyEnv(cfg)
		applyDefaults(cfg)
		if err := Validate(cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies environment
// overrides and defaults, and validates the result. Useful in tests where
// configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	applyEnv(cfg)
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays the environment variables the original deployment
// scripts export (typically via a .env file loaded in main).
func applyEnv(cfg *Config) {
	if v := os.Getenv("WAKE_WORD_MODELS"); v != "" {
		var models []string
		for _, m := range strings.Split(v, ",") {
			if m = strings.TrimSpace(m); m != "" {
				models = append(models, m)
			}
		}
		cfg.Detection.Models = models
	}
	if v := os.Getenv("CUSTOM_MODEL_PATH"); v != "" {
		cfg.Detection.CustomModelPath = v
		// A custom model wins over named models, as it always has.
		cfg.Detection.Models = nil
	}
	if v := os.Getenv("THRESHOLD"); v != "" {
		if t, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Detection.Threshold = t
		}
	}
	if v := os.Getenv("PORCUPINE_ACCESS_KEY"); v != "" {
		cfg.Detection.AccessKey = v
	}
	if v := os.Getenv("ASSET_PATH"); v != "" {
		cfg.Action.AssetPath = v
	}
	if v := os.Getenv("ENABLE_DEBUG_RECORDING"); v != "" {
		cfg.Recording.Enabled = strings.EqualFold(v, "true")
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Audio.Backend == "" {
		cfg.Audio.Backend = DefaultBackend
	}
	if cfg.Audio.SampleRate <= 0 {
		cfg.Audio.SampleRate = audio.DefaultSampleRate
	}
	if cfg.Audio.FrameLength <= 0 {
		cfg.Audio.FrameLength = audio.DefaultFrameLength
	}
	if cfg.Audio.QueueCapacity <= 0 {
		cfg.Audio.QueueCapacity = DefaultQueueCapacity
	}
	if cfg.Audio.DropPolicy == "" {
		cfg.Audio.DropPolicy = audio.PolicyBlock
	}
	if cfg.Detection.Engine == "" {
		cfg.Detection.Engine = DefaultEngine
	}
	if len(cfg.Detection.Models) == 0 && cfg.Detection.CustomModelPath == "" {
		cfg.Detection.Models = []string{DefaultModel}
	}
	if cfg.Detection.Threshold == 0 {
		cfg.Detection.Threshold = DefaultThreshold
	}
	if cfg.Action.Player == "" {
		cfg.Action.Player = DefaultPlayer
	}
	if cfg.Recording.Dir == "" {
		cfg.Recording.Dir = DefaultRecordingDir
	}
	if cfg.Recording.NumFiles <= 0 {
		cfg.Recording.NumFiles = defaultNumFiles
	}
	if cfg.Recording.DurationSeconds <= 0 {
		cfg.Recording.DurationSeconds = defaultDurationSeconds
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if !cfg.Audio.DropPolicy.IsValid() {
		errs = append(errs, fmt.Errorf("audio.drop_policy %q is invalid; valid values: block, drop-oldest, drop-newest", cfg.Audio.DropPolicy))
	}
	if cfg.Audio.SampleRate < 8000 {
		errs = append(errs, fmt.Errorf("audio.sample_rate %d is below the 8000 Hz minimum", cfg.Audio.SampleRate))
	}
	if len(cfg.Detection.Models) > 0 && cfg.Detection.CustomModelPath != "" {
		errs = append(errs, errors.New("detection.models and detection.custom_model_path are mutually exclusive"))
	}
	if cfg.Detection.Threshold <= 0 || cfg.Detection.Threshold > 1 {
		errs = append(errs, fmt.Errorf("detection.threshold %.2f is out of range (0, 1]", cfg.Detection.Threshold))
	}
	if cfg.Action.AssetPath == "" {
		errs = append(errs, errors.New("action.asset_path is required (set it or the ASSET_PATH environment variable)"))
	}

	return errors.Join(errs...)
}
