package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestInitStore_CreatesMarkerAndFiles(t *testing.T) {
	root := t.TempDir()

	if err := InitStore(root, "my notes"); err != nil {
		t.Fatalf("InitStore failed: %v", err)
	}

	if !IsStoreRoot(root) {
		t.Error("expected initialized path to be a store root")
	}
	if _, err := os.Stat(filepath.Join(root, MarkerDir, StoreMetaFile)); err != nil {
		t.Errorf("missing store metadata: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, MarkerDir, ConfigFileName)); err != nil {
		t.Errorf("missing default config: %v", err)
	}

	cfg, err := LoadFrom(root)
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}
	if cfg.TranscribeURL != DefaultTranscribeURL {
		t.Errorf("unexpected transcribe URL: %q", cfg.TranscribeURL)
	}
}

func TestInitStore_AlreadyInitialized(t *testing.T) {
	root := t.TempDir()
	if err := InitStore(root, "first"); err != nil {
		t.Fatal(err)
	}

	err := InitStore(root, "second")
	if !errors.Is(err, ErrStoreExists) {
		t.Errorf("expected ErrStoreExists, got: %v", err)
	}
}

func TestInitStore_EmptyName(t *testing.T) {
	err := InitStore(t.TempDir(), "")
	if !errors.Is(err, ErrNameEmpty) {
		t.Errorf("expected ErrNameEmpty, got: %v", err)
	}
}

func TestIsStoreRoot_False(t *testing.T) {
	if IsStoreRoot(t.TempDir()) {
		t.Error("empty directory must not be a store root")
	}
}

func TestIsStoreRoot_CorruptMetadata(t *testing.T) {
	root := t.TempDir()
	markerDir := filepath.Join(root, MarkerDir)
	if err := os.MkdirAll(markerDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(markerDir, StoreMetaFile), []byte("{invalid"), 0o644); err != nil {
		t.Fatal(err)
	}

	if IsStoreRoot(root) {
		t.Error("corrupt store.json must not count as a store root")
	}
}

func TestFindStoreRootFrom_WalksUp(t *testing.T) {
	root := t.TempDir()
	if err := InitStore(root, "walk"); err != nil {
		t.Fatal(err)
	}
	nested := filepath.Join(root, "a", "b", "c")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}

	found, err := FindStoreRootFrom(nested)
	if err != nil {
		t.Fatalf("FindStoreRootFrom failed: %v", err)
	}
	if found != root {
		t.Errorf("expected %s, got %s", root, found)
	}
}

func TestFindStoreRootFrom_NotFound(t *testing.T) {
	_, err := FindStoreRootFrom(t.TempDir())
	if !errors.Is(err, ErrNotInStore) {
		t.Errorf("expected ErrNotInStore, got: %v", err)
	}
}

func TestFindStoreRoot_EnvOverride(t *testing.T) {
	root := t.TempDir()
	if err := InitStore(root, "env"); err != nil {
		t.Fatal(err)
	}
	t.Setenv(EnvStoreRoot, root)

	found, err := FindStoreRoot()
	if err != nil {
		t.Fatalf("FindStoreRoot failed: %v", err)
	}
	if found != root {
		t.Errorf("expected %s, got %s", root, found)
	}
}

func TestFindStoreRoot_EnvOverrideInvalid(t *testing.T) {
	t.Setenv(EnvStoreRoot, t.TempDir())

	_, err := FindStoreRoot()
	if !errors.Is(err, ErrNotInStore) {
		t.Errorf("expected ErrNotInStore for uninitialized env root, got: %v", err)
	}
}
