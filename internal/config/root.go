// Package config provides store-root discovery and service configuration.
package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"
)

// ErrNotInStore is returned when no store root can be located.
var ErrNotInStore = errors.New("not inside a voxvault store")

// MarkerDir is the directory that marks a store root.
const MarkerDir = ".voxvault"

// StoreMetaFile is the metadata file within the marker directory.
const StoreMetaFile = "store.json"

// EnvStoreRoot overrides store root detection when set.
const EnvStoreRoot = "VOXVAULT_ROOT"

// StoreMetadata is the contents of store.json.
type StoreMetadata struct {
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
	Version   string `json:"version"`
}

var (
	ErrStoreExists = errors.New("store already initialized")
	ErrNameEmpty   = errors.New("store name cannot be empty")
)

// IsStoreRoot reports whether path is an initialized store root, meaning it
// contains a .voxvault directory with a parseable store.json.
func IsStoreRoot(path string) bool {
	markerDir := filepath.Join(path, MarkerDir)
	info, err := os.Stat(markerDir)
	if err != nil || !info.IsDir() {
		return false
	}

	data, err := os.ReadFile(filepath.Join(markerDir, StoreMetaFile))
	if err != nil {
		return false
	}

	var meta StoreMetadata
	return json.Unmarshal(data, &meta) == nil
}

// FindStoreRoot locates the store root containing the working directory.
// VOXVAULT_ROOT takes precedence when set and valid.
func FindStoreRoot() (string, error) {
	if envRoot := os.Getenv(EnvStoreRoot); envRoot != "" {
		absPath, err := filepath.Abs(envRoot)
		if err != nil {
			return "", ErrNotInStore
		}
		if IsStoreRoot(absPath) {
			return absPath, nil
		}
		return "", ErrNotInStore
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return FindStoreRootFrom(cwd)
}

// FindStoreRootFrom walks up from startPath looking for a store root.
func FindStoreRootFrom(startPath string) (string, error) {
	absPath, err := filepath.Abs(startPath)
	if err != nil {
		return "", err
	}

	current := absPath
	for {
		if IsStoreRoot(current) {
			return current, nil
		}
		parent := filepath.Dir(current)
		if parent == current {
			return "", ErrNotInStore
		}
		current = parent
	}
}

// InitStore initializes a store root at path: the .voxvault marker directory,
// store.json metadata, and a default config.json.
func InitStore(path, name string) error {
	if name == "" {
		return ErrNameEmpty
	}

	markerDir := filepath.Join(path, MarkerDir)
	if _, err := os.Stat(markerDir); err == nil {
		return ErrStoreExists
	}
	if err := os.MkdirAll(markerDir, 0755); err != nil {
		return err
	}

	meta := StoreMetadata{
		Name:      name,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		Version:   "1.0",
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(markerDir, StoreMetaFile), data, 0644); err != nil {
		return err
	}

	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg.SaveTo(path)
}
