// Command hearken is the wake-word playback daemon: it listens on a
// microphone, scores every frame against the configured wake-word models,
// and fires the configured action on the first threshold crossing.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/MrWong99/hearken/internal/app"
	"github.com/MrWong99/hearken/internal/config"
	"github.com/MrWong99/hearken/internal/observe"
	"github.com/MrWong99/hearken/pkg/action"
	beepsink "github.com/MrWong99/hearken/pkg/action/beep"
	mpvsink "github.com/MrWong99/hearken/pkg/action/mpv"
	"github.com/MrWong99/hearken/pkg/audio"
	malgosource "github.com/MrWong99/hearken/pkg/audio/malgo"
	pasource "github.com/MrWong99/hearken/pkg/audio/portaudio"
	"github.com/MrWong99/hearken/pkg/detect"
	porcupineengine "github.com/MrWong99/hearken/pkg/detect/porcupine"
	sherpaengine "github.com/MrWong99/hearken/pkg/detect/sherpa"
)

// version is stamped at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	models := flag.String("models", "", "comma-separated wake word models, overrides config and env")
	modelPath := flag.String("model-path", "", "path to a custom wake word model, overrides config and env")
	listDevices := flag.Bool("list-devices", false, "list audio input devices and exit")
	flag.Parse()

	// ── Env file ───────────────────────────────────────────────────────────────
	// Missing .env is fine; real environment variables still apply.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "hearken: load .env: %v\n", err)
		return 1
	}

	// ── Device listing mode ────────────────────────────────────────────────────
	if *listDevices {
		return runListDevices()
	}

	// ── Load configuration ─────────────────────────────────────────────────────
	// Flags beat environment beats file. The flags are routed through the env
	// overlay so Load validates the final values in one place.
	if *models != "" {
		os.Setenv("WAKE_WORD_MODELS", *models)
	}
	if *modelPath != "" {
		os.Setenv("CUSTOM_MODEL_PATH", *modelPath)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hearken: %v\n", err)
		return 1
	}

	// ── Logger ─────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("hearken starting",
		"version", version,
		"config", *configPath,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ─────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Metrics provider ───────────────────────────────────────────────────────
	shutdownMetrics, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "hearken",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise metrics", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownMetrics(shutdownCtx); err != nil {
			slog.Warn("metrics shutdown error", "err", err)
		}
	}()

	// ── Backend registry ───────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltins(reg)

	// ── Startup summary ────────────────────────────────────────────────────────
	printStartupSummary(cfg)

	application, err := app.New(ctx, cfg, reg)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	slog.Info("listening for wake words — press Ctrl+C to shut down")

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	// ── Graceful shutdown ──────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	slog.Info("shutdown signal received, stopping…")

	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// runListDevices prints every audio input device PortAudio can see.
func runListDevices() int {
	devices, err := pasource.ListDevices()
	if err != nil {
		fmt.Fprintf(os.Stderr, "hearken: list devices: %v\n", err)
		return 1
	}
	if len(devices) == 0 {
		fmt.Println("no audio input devices found")
		return 0
	}
	for _, d := range devices {
		fmt.Printf("[%d] %s (%d ch, %d Hz)\n", d.Index, d.Name, d.MaxInputChannels, d.DefaultSampleRate)
	}
	return 0
}

// ── Backend wiring ────────────────────────────────────────────────────────────

// registerBuiltins wires the capture, detection and action backends that ship
// with Hearken into reg. Configs select them by name.
func registerBuiltins(reg *config.Registry) {
	// ── Capture backends ───────────────────────────────────────────────────────

	reg.RegisterSource("portaudio", func(ac config.AudioConfig) (audio.FrameSource, error) {
		return pasource.Open(pasource.Config{
			SampleRate:  ac.SampleRate,
			FrameLength: ac.FrameLength,
			DeviceHint:  ac.DeviceHint,
		})
	})

	reg.RegisterSource("miniaudio", func(ac config.AudioConfig) (audio.FrameSource, error) {
		return malgosource.Open(malgosource.Config{
			SampleRate:  ac.SampleRate,
			FrameLength: ac.FrameLength,
		})
	})

	// ── Detection engines ──────────────────────────────────────────────────────

	reg.RegisterEngine("porcupine", func(dc config.DetectionConfig, _ config.AudioConfig) (detect.Detector, error) {
		keywords := dc.Models
		if dc.CustomModelPath != "" {
			keywords = []string{dc.CustomModelPath}
		}
		return porcupineengine.New(dc.AccessKey, keywords)
	})

	reg.RegisterEngine("sherpa", func(dc config.DetectionConfig, ac config.AudioConfig) (detect.Detector, error) {
		return sherpaengine.New(sherpaengine.Config{
			ModelDir:   dc.CustomModelPath,
			SampleRate: ac.SampleRate,
			Labels:     dc.Models,
		})
	})

	// ── Action sinks ───────────────────────────────────────────────────────────

	reg.RegisterSink("mpv", func(config.ActionConfig) (action.Sink, error) {
		return mpvsink.New(), nil
	})

	reg.RegisterSink("builtin", func(config.ActionConfig) (action.Sink, error) {
		return beepsink.New(), nil
	})

	// mpv with the in-process decoder as backup, for hosts without mpv.
	reg.RegisterSink("auto", func(config.ActionConfig) (action.Sink, error) {
		return action.NewFallback("mpv", mpvsink.New()).Add("builtin", beepsink.New()), nil
	})
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║         Hearken — startup summary     ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printRow("Backend", cfg.Audio.Backend)
	printRow("Engine", cfg.Detection.Engine)
	if cfg.Detection.CustomModelPath != "" {
		printRow("Model", cfg.Detection.CustomModelPath)
	} else {
		printRow("Models", strings.Join(cfg.Detection.Models, ","))
	}
	printRow("Threshold", fmt.Sprintf("%.2f", cfg.Detection.Threshold))
	printRow("Player", cfg.Action.Player)
	printRow("Asset", cfg.Action.AssetPath)
	if cfg.Recording.Enabled {
		printRow("Debug ring", fmt.Sprintf("%d × %ds", cfg.Recording.NumFiles, cfg.Recording.DurationSeconds))
	} else {
		printRow("Debug ring", "(disabled)")
	}
	if cfg.Server.ListenAddr != "" {
		printRow("Listen addr", cfg.Server.ListenAddr)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printRow(label, value string) {
	if value == "" {
		value = "(not configured)"
	}
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-14s  : %-19s ║\n", label, value)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
