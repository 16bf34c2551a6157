// Package config loads the orchestrator's connection defaults —
// device path, baud rate, timeout, and device-id — from a TOML file,
// falling back to an embedded default the way the teacher's config
// package seeds ~/.floppy from floppy.toml.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/BurntSushi/toml"
)

//go:embed defaults.toml
var defaultConfigData []byte

// Defaults mirrors the orchestrator options that have sensible
// machine-wide defaults (spec.md §4.6); everything else (action list,
// input/output paths, address ranges, unsafe flag) is per-invocation
// and has no place in a config file.
type Defaults struct {
	Device       string `toml:"device"`
	BaudRate     int    `toml:"baud-rate"`
	Timeout      int    `toml:"timeout"`
	DeviceID     string `toml:"device-id"`
	DeviceIDAddr uint32 `toml:"device-id-addr"`
}

// configPath mirrors the teacher's per-OS config directory logic,
// retargeted from ~/.floppy to ~/.m16cflash.toml.
func configPath() (string, error) {
	var configDir string
	var err error

	switch runtime.GOOS {
	case "windows":
		configDir, err = os.UserConfigDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine user config directory: %w", err)
		}
		configDir = filepath.Join(configDir, "m16cflash")
	default:
		configDir, err = os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine user home directory: %w", err)
		}
	}

	return filepath.Join(configDir, ".m16cflash.toml"), nil
}

// Load reads the config file at its per-OS default path, creating it
// from the embedded default on first run, and returns the decoded
// defaults. CLI flags always take precedence over whatever Load
// returns; callers overlay their own flags on top.
func Load() (*Defaults, error) {
	path, err := configPath()
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create config directory %s: %w", dir, err)
		}
		if err := os.WriteFile(path, defaultConfigData, 0644); err != nil {
			return nil, fmt.Errorf("failed to create default config file at %s: %w", path, err)
		}
	}

	var d Defaults
	if _, err := toml.DecodeFile(path, &d); err != nil {
		return nil, fmt.Errorf("failed to parse TOML config at %s: %w", path, err)
	}
	if d.BaudRate == 0 {
		d.BaudRate = 9600
	}
	if d.Timeout == 0 {
		d.Timeout = 5
	}
	if d.DeviceIDAddr == 0 {
		d.DeviceIDAddr = defaultDeviceIDAddr
	}
	return &d, nil
}

// defaultDeviceIDAddr is id_validate's default target address
// (M16CFlashApp.py's --device-id-addr default), applied whenever a
// config file predates this field or simply omits it — zero would
// otherwise silently authenticate against address 0 instead.
const defaultDeviceIDAddr = 0x0FFFDF
