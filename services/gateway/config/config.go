// Copyright (C) 2026 Mentora Labs (dev@mentora.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package config loads the gateway configuration.
//
// The config is an explicit struct handed to the components that need it;
// nothing in the request path reads the environment. Environment variables
// override the file only at load time.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// Server settings.
	Server ServerConfig `yaml:"server"`

	// Upstream: the hosted LLM gateway.
	Upstream UpstreamConfig `yaml:"upstream"`

	// Store: embedded database location.
	Store StoreConfig `yaml:"store"`

	// Attachments: preprocessing limits.
	Attachments AttachmentConfig `yaml:"attachments"`
}

type ServerConfig struct {
	Port string `yaml:"port"` // e.g. "8080"

	// AllowedOrigin for CORS. "*" permits any origin.
	AllowedOrigin string `yaml:"allowed_origin"`

	// RateLimitPerSecond is the per-client token bucket refill rate.
	// 0 disables rate limiting.
	RateLimitPerSecond float64 `yaml:"rate_limit_per_second"`
	RateLimitBurst     int     `yaml:"rate_limit_burst"`
}

type UpstreamConfig struct {
	APIKey      string        `yaml:"api_key"`
	BaseURL     string        `yaml:"base_url"`
	ChatModel   string        `yaml:"chat_model"`
	ImageModel  string        `yaml:"image_model"`
	HTTPTimeout time.Duration `yaml:"http_timeout"`
}

type StoreConfig struct {
	Path string `yaml:"path"` // empty means ~/.mentora/db
}

type AttachmentConfig struct {
	// MaxPDFPages bounds document extraction. Past the cap, extracted text
	// carries a truncation notice.
	MaxPDFPages int `yaml:"max_pdf_pages"`

	// MaxFileBytes bounds a single attachment's raw size.
	MaxFileBytes int64 `yaml:"max_file_bytes"`
}

// DefaultConfig returns the configuration written on first run.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Port:               "8080",
			AllowedOrigin:      "*",
			RateLimitPerSecond: 10,
			RateLimitBurst:     20,
		},
		Upstream: UpstreamConfig{
			BaseURL:     "https://api.openai.com/v1",
			ChatModel:   "gpt-4o-mini",
			ImageModel:  "gpt-4o-mini",
			HTTPTimeout: 5 * time.Minute,
		},
		Attachments: AttachmentConfig{
			MaxPDFPages:  20,
			MaxFileBytes: 10 * 1024 * 1024, // 10MB
		},
	}
}

// DefaultPath returns ~/.mentora/mentora.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not find the user's home directory: %w", err)
	}
	return filepath.Join(home, ".mentora", "mentora.yaml"), nil
}

// Load reads the config at path, creating a default file on first run, and
// applies environment overrides (MENTORA_API_KEY, MENTORA_BASE_URL, PORT).
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Printf("First run detected, creating the config at %s\n", path)
		if err := createDefault(path); err != nil {
			return nil, err
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read the config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse the config file: %w", err)
	}

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MENTORA_API_KEY"); v != "" {
		cfg.Upstream.APIKey = v
	}
	if v := os.Getenv("MENTORA_BASE_URL"); v != "" {
		cfg.Upstream.BaseURL = v
	}
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Port = v
	}
}

func createDefault(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create the config directory: %w", err)
	}
	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}
