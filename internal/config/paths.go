package config

import (
	"os"
	"path/filepath"
)

const defaultBaseDir = ".validade"

// Paths holds resolved filesystem paths for validade data.
type Paths struct {
	Base     string // ~/.validade
	Config   string // ~/.validade/config.yaml
	Env      string // ~/.validade/.env
	Logs     string // ~/.validade/logs
	Data     string // ~/.validade/data
	Database string // ~/.validade/data/validade.db
}

// ResolvePaths computes all standard paths from the home directory.
// If VALIDADE_HOME is set, it overrides the default base directory.
func ResolvePaths() (Paths, error) {
	base := os.Getenv("VALIDADE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Paths{}, err
		}
		base = filepath.Join(home, defaultBaseDir)
	}

	data := filepath.Join(base, "data")
	return Paths{
		Base:     base,
		Config:   filepath.Join(base, "config.yaml"),
		Env:      filepath.Join(base, ".env"),
		Logs:     filepath.Join(base, "logs"),
		Data:     data,
		Database: filepath.Join(data, "validade.db"),
	}, nil
}

// EnsureDirs creates all standard directories if they don't exist.
func (p Paths) EnsureDirs() error {
	dirs := []string{p.Base, p.Logs, p.Data}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o700); err != nil {
			return err
		}
	}
	return nil
}

// DatabasePath returns the configured SQLite path, or the default one.
func (p Paths) DatabasePath(cfg StorageConfig) string {
	if cfg.Path != "" {
		return cfg.Path
	}
	return p.Database
}
