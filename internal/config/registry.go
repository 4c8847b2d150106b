package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/MrWong99/hearken/pkg/action"
	"github.com/MrWong99/hearken/pkg/audio"
	"github.com/MrWong99/hearken/pkg/detect"
)

// ErrNotRegistered is returned by Create* methods when no factory has been
// registered under the requested name.
var ErrNotRegistered = errors.New("config: backend not registered")

// Registry maps backend names to their constructor functions for each
// pluggable slot: capture backends, wake engines, and action sinks.
// It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	sources map[string]func(AudioConfig) (audio.FrameSource, error)
	engines map[string]func(DetectionConfig, AudioConfig) (detect.Detector, error)
	sinks   map[string]func(ActionConfig) (action.Sink, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		sources: make(map[string]func(AudioConfig) (audio.FrameSource, error)),
		engines: make(map[string]func(DetectionConfig, AudioConfig) (detect.Detector, error)),
		sinks:   make(map[string]func(ActionConfig) (action.Sink, error)),
	}
}

// RegisterSource registers a capture backend factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterSource(name string, factory func(AudioConfig) (audio.FrameSource, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[name] = factory
}

// RegisterEngine registers a wake engine factory under name.
func (r *Registry) RegisterEngine(name string, factory func(DetectionConfig, AudioConfig) (detect.Detector, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.engines[name] = factory
}

// RegisterSink registers an action sink factory under name.
func (r *Registry) RegisterSink(name string, factory func(ActionConfig) (action.Sink, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sinks[name] = factory
}

// CreateSource instantiates the capture backend named in cfg.Backend.
func (r *Registry) CreateSource(cfg AudioConfig) (audio.FrameSource, error) {
	r.mu.RLock()
	factory, ok := r.sources[cfg.Backend]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: audio backend %q", ErrNotRegistered, cfg.Backend)
	}
	return factory(cfg)
}

// CreateEngine instantiates the wake engine named in cfg.Engine.
func (r *Registry) CreateEngine(cfg DetectionConfig, audioCfg AudioConfig) (detect.Detector, error) {
	r.mu.RLock()
	factory, ok := r.engines[cfg.Engine]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: wake engine %q", ErrNotRegistered, cfg.Engine)
	}
	return factory(cfg, audioCfg)
}

// CreateSink instantiates the action sink named in cfg.Player.
func (r *Registry) CreateSink(cfg ActionConfig) (action.Sink, error) {
	r.mu.RLock()
	factory, ok := r.sinks[cfg.Player]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: player %q", ErrNotRegistered, cfg.Player)
	}
	return factory(cfg)
}
