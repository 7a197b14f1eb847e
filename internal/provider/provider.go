// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Memex Contributors

// Package provider turns text into embedding vectors through an
// OpenAI-compatible embeddings endpoint. Two modes are supported: "api"
// (hosted endpoint, Bearer credential required) and "local" (an
// Ollama-style server on localhost, no credential).
package provider

import (
	"context"
	"time"

	memexerr "github.com/memex-dev/memex/pkg/errors"
)

// Embedder is the core interface for embedding providers.
type Embedder interface {
	// Embed returns one vector per input text, in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Model() string
	Dimensions() int
	Close() error
}

// Mode selects where embeddings are computed.
type Mode string

const (
	// ModeAPI uses a hosted embeddings endpoint with a Bearer credential.
	ModeAPI Mode = "api"
	// ModeLocal uses an OpenAI-compatible server on localhost.
	ModeLocal Mode = "local"
)

// Valid reports whether the mode is a known value.
func (m Mode) Valid() bool {
	return m == ModeAPI || m == ModeLocal
}

// Default endpoints and model parameters.
const (
	DefaultAPIBaseURL   = "https://api.siliconflow.com/v1"
	DefaultLocalBaseURL = "http://localhost:11434/v1"
	DefaultModel        = "bge-m3"
	DefaultDimensions   = 1024
	DefaultTimeout      = 30 * time.Second
)

// Preset maps a short model alias to its full identifier and vector width.
type Preset struct {
	Model      string
	Dimensions int
}

var presets = map[string]Preset{
	"bge-m3":            {Model: "BAAI/bge-m3", Dimensions: 1024},
	"bge-large-zh-v1.5": {Model: "BAAI/bge-large-zh-v1.5", Dimensions: 1024},
	"bge-small-zh-v1.5": {Model: "BAAI/bge-small-zh-v1.5", Dimensions: 512},
}

// LookupPreset resolves a model alias. ok is false for raw model identifiers.
func LookupPreset(name string) (Preset, bool) {
	p, ok := presets[name]
	return p, ok
}

// PresetNames returns the known model aliases in stable order.
func PresetNames() []string {
	return []string{"bge-m3", "bge-large-zh-v1.5", "bge-small-zh-v1.5"}
}

// Config holds embedding provider configuration.
type Config struct {
	Mode       Mode
	BaseURL    string // optional, overrides the mode's default endpoint
	Model      string // preset alias or raw model identifier
	Dimensions int    // expected vector width; 0 resolves from preset or default
	APIKey     string // required in api mode
	Timeout    time.Duration
}

// resolve fills zero-valued fields from mode defaults and presets.
func (c Config) resolve() Config {
	if c.Mode == "" {
		c.Mode = ModeAPI
	}
	if c.BaseURL == "" {
		switch c.Mode {
		case ModeLocal:
			c.BaseURL = DefaultLocalBaseURL
		default:
			c.BaseURL = DefaultAPIBaseURL
		}
	}
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if p, ok := LookupPreset(c.Model); ok {
		c.Model = p.Model
		if c.Dimensions == 0 {
			c.Dimensions = p.Dimensions
		}
	}
	if c.Dimensions == 0 {
		c.Dimensions = DefaultDimensions
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	return c
}

// New creates an embedding client for the configured mode. A missing
// credential in api mode is a configuration error, caught here rather than
// on the first request.
func New(cfg Config) (*Client, error) {
	resolved := cfg.resolve()

	if !resolved.Mode.Valid() {
		return nil, memexerr.Errorf(memexerr.CodeProviderModeUnsupported,
			"unsupported provider mode: %q", cfg.Mode)
	}
	if resolved.Mode == ModeAPI && resolved.APIKey == "" {
		return nil, memexerr.New(memexerr.CodeConfigValidateInvalidValue,
			"api mode requires an API key",
			memexerr.FieldModel(resolved.Model))
	}

	return newClient(resolved)
}
