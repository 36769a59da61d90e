package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Server ServerConfig `toml:"server"`
}

type ServerConfig struct {
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Unsecure      bool   `toml:"unsecure"` // serve plain HTTP instead of TLS
	Shell         string `toml:"shell"`    // empty = probe zsh/bash/sh
	Theme         string `toml:"theme"`
	MOTD          string `toml:"motd"` // path to a message-of-the-day file
	CertDir       string `toml:"cert_dir"`
	LogSessions   bool   `toml:"log_sessions"`
	SessionLogDir string `toml:"session_log_dir"`
	HistoryBytes  int    `toml:"history_bytes"` // 0 = default
}

func DefaultConfig() *Config {
	certDir := "/etc/morpho/certs"
	logDir := "/var/log/morpho"
	if home, err := os.UserHomeDir(); err == nil {
		certDir = filepath.Join(home, ".config", "morpho", "certs")
		logDir = filepath.Join(home, ".local", "share", "morpho", "logs")
	}

	return &Config{
		Server: ServerConfig{
			Host:          "localhost",
			Port:          57575,
			Theme:         "default",
			CertDir:       certDir,
			SessionLogDir: logDir,
		},
	}
}

// Load builds the effective config: defaults, then the system file, then
// the user file, then MORPHO_* environment variables. CLI flags override
// on top of this in cmd/morpho.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat("/etc/morpho/config.toml"); err == nil {
		if _, err := toml.DecodeFile("/etc/morpho/config.toml", cfg); err != nil {
			return nil, err
		}
	}

	if home, err := os.UserHomeDir(); err == nil {
		userConfig := filepath.Join(home, ".config", "morpho", "config.toml")
		if _, err := os.Stat(userConfig); err == nil {
			if _, err := toml.DecodeFile(userConfig, cfg); err != nil {
				return nil, err
			}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if host := os.Getenv("MORPHO_HOST"); host != "" {
		c.Server.Host = host
	}
	if portStr := os.Getenv("MORPHO_PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil || port <= 0 || port > 65535 {
			return fmt.Errorf("invalid MORPHO_PORT: %q", portStr)
		}
		c.Server.Port = port
	}
	if v := os.Getenv("MORPHO_UNSECURE"); v != "" {
		unsecure, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid MORPHO_UNSECURE: %q", v)
		}
		c.Server.Unsecure = unsecure
	}
	if shell := os.Getenv("MORPHO_SHELL"); shell != "" {
		c.Server.Shell = shell
	}
	if theme := os.Getenv("MORPHO_THEME"); theme != "" {
		c.Server.Theme = theme
	}
	if motd := os.Getenv("MORPHO_MOTD"); motd != "" {
		c.Server.MOTD = motd
	}
	if dir := os.Getenv("MORPHO_CERT_DIR"); dir != "" {
		c.Server.CertDir = dir
	}
	if v := os.Getenv("MORPHO_LOG_SESSIONS"); v != "" {
		logSessions, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid MORPHO_LOG_SESSIONS: %q", v)
		}
		c.Server.LogSessions = logSessions
	}
	if dir := os.Getenv("MORPHO_SESSION_LOG_DIR"); dir != "" {
		c.Server.SessionLogDir = dir
	}
	return nil
}

// EnsureDirs creates the directories the server writes to.
func (c *Config) EnsureDirs() error {
	dirs := []string{c.Server.CertDir}
	if c.Server.LogSessions {
		dirs = append(dirs, c.Server.SessionLogDir)
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return nil
}

// Addr is the host:port the server binds.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
