package config

import (
	"os"
	"path/filepath"
)

const defaultBaseDir = ".sagebridge"

// Paths holds resolved filesystem paths for sagebridge data.
type Paths struct {
	Base   string // ~/.sagebridge
	Config string // ~/.sagebridge/config.yaml
	Data   string // ~/.sagebridge/data
}

// ResolvePaths computes all standard paths from the home directory.
// If SAGEBRIDGE_HOME is set, it overrides the default base directory.
func ResolvePaths() (Paths, error) {
	base := os.Getenv("SAGEBRIDGE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Paths{}, err
		}
		base = filepath.Join(home, defaultBaseDir)
	}

	return Paths{
		Base:   base,
		Config: filepath.Join(base, "config.yaml"),
		Data:   filepath.Join(base, "data"),
	}, nil
}

// EnsureDirs creates all standard directories if they don't exist.
func (p Paths) EnsureDirs() error {
	for _, d := range []string{p.Base, p.Data} {
		if err := os.MkdirAll(d, 0o700); err != nil {
			return err
		}
	}
	return nil
}

// SessionTablePath returns the location of the session table for the
// configured store, honoring an explicit override.
func (p Paths) SessionTablePath(cfg SessionConfig) string {
	if cfg.Path != "" {
		return cfg.Path
	}
	if cfg.Store == "sqlite" {
		return filepath.Join(p.Data, "sagebridge.db")
	}
	return filepath.Join(p.Data, "sessions.json")
}
