/*
 * Copyright (c) 2025, WSO2 LLC. (https://www.wso2.com).
 *
 * WSO2 LLC. licenses this file to you under the Apache License,
 * Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.
 * You may obtain a copy of the License at
 *
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing,
 * software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
 * KIND, either express or implied.  See the License for the
 * specific language governing permissions and limitations
 * under the License.
 */

// Package config loads the process's ambient configuration (admin/metrics
// ports, xDS timeouts, logging) with koanf: an optional file layered under
// MCPPROXY_-prefixed environment variables, the environment taking
// precedence.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "MCPPROXY_"

// AdminConfig configures the read-only admin HTTP surface.
type AdminConfig struct {
	Enabled    bool     `koanf:"enabled"`
	Port       int      `koanf:"port"`
	AllowedIPs []string `koanf:"allowedIps"`
}

// MetricsConfig configures the Prometheus metrics HTTP surface.
type MetricsConfig struct {
	Enabled bool `koanf:"enabled"`
	Port    int  `koanf:"port"`
}

// XDSConfig configures the delta-xDS client's timeouts and backoff bounds.
type XDSConfig struct {
	ConnectTimeout        time.Duration `koanf:"connectTimeout"`
	RequestTimeout        time.Duration `koanf:"requestTimeout"`
	InitialReconnectDelay time.Duration `koanf:"initialReconnectDelay"`
	MaxReconnectDelay     time.Duration `koanf:"maxReconnectDelay"`
}

// LoggingConfig configures the slog handler installed at startup.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// StoreConfig configures the in-memory resource store.
type StoreConfig struct {
	BroadcastDepth int `koanf:"broadcastDepth"`
}

// Config is the process's full ambient configuration.
type Config struct {
	Admin   AdminConfig   `koanf:"admin"`
	Metrics MetricsConfig `koanf:"metrics"`
	XDS     XDSConfig     `koanf:"xds"`
	Logging LoggingConfig `koanf:"logging"`
	Store   StoreConfig   `koanf:"store"`
}

func defaultConfig() Config {
	return Config{
		Admin:   AdminConfig{Enabled: true, Port: 9901, AllowedIPs: []string{"127.0.0.1"}},
		Metrics: MetricsConfig{Enabled: true, Port: 9902},
		XDS: XDSConfig{
			ConnectTimeout:        10 * time.Second,
			RequestTimeout:        5 * time.Second,
			InitialReconnectDelay: 500 * time.Millisecond,
			MaxReconnectDelay:     30 * time.Second,
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Store:   StoreConfig{BroadcastDepth: 16},
	}
}

// Load reads the process configuration from configPath (optional: "" skips
// the file layer) and MCPPROXY_-prefixed environment variables, environment
// taking precedence over the file, and the file over the built-in defaults.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	def := defaultConfig()
	if err := k.Load(structs.Provider(def, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			if err := k.Load(file.Provider(configPath), json.Parser()); err != nil {
				return nil, fmt.Errorf("load config file %s: %w", configPath, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("stat config file %s: %w", configPath, err)
		}
	}

	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(s, envPrefix)
		return strings.ReplaceAll(strings.ToLower(s), "_", ".")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("load environment overrides: %w", err)
	}

	var cfg Config
	decoderConfig := &mapstructure.DecoderConfig{
		TagName:          "koanf",
		WeaklyTypedInput: true,
		Result:           &cfg,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	}
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{DecoderConfig: decoderConfig}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// Validate checks the exhaustive port-range / required-field constraints on
// a loaded Config.
func (c *Config) Validate() error {
	if c.Admin.Enabled && (c.Admin.Port < 1 || c.Admin.Port > 65535) {
		return fmt.Errorf("admin.port must be in 1..65535, got %d", c.Admin.Port)
	}
	if c.Metrics.Enabled && (c.Metrics.Port < 1 || c.Metrics.Port > 65535) {
		return fmt.Errorf("metrics.port must be in 1..65535, got %d", c.Metrics.Port)
	}
	if c.XDS.ConnectTimeout <= 0 {
		return fmt.Errorf("xds.connectTimeout must be positive")
	}
	if c.XDS.RequestTimeout <= 0 {
		return fmt.Errorf("xds.requestTimeout must be positive")
	}
	if c.XDS.MaxReconnectDelay < c.XDS.InitialReconnectDelay {
		return fmt.Errorf("xds.maxReconnectDelay must be >= xds.initialReconnectDelay")
	}
	return nil
}
