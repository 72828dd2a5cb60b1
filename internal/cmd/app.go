package cmd

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/voxvault/voxvault/internal/config"
	"github.com/voxvault/voxvault/internal/logging"
	"github.com/voxvault/voxvault/internal/recording"
	"github.com/voxvault/voxvault/internal/recording/index"
	"github.com/voxvault/voxvault/internal/recording/reconcile"
	"github.com/voxvault/voxvault/internal/recording/store"
)

// ErrNotAStore is returned when a command runs outside an initialized store.
var ErrNotAStore = errors.New("not a voxvault store (run voxvault init to create one)")

// app bundles the services every command needs.
type app struct {
	Root      string
	Config    *config.Config
	Store     *store.Store
	Index     *index.Index
	Reconcile *reconcile.Service
	Log       *logging.FileLogger
}

// openApp locates the store root and wires the service graph.
func openApp(component string) (*app, error) {
	root, err := config.FindStoreRoot()
	if err != nil {
		return nil, ErrNotAStore
	}

	cfg, err := config.LoadFrom(root)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logCfg := logging.DefaultConfig()
	if cfg.LogDir != "" {
		logCfg.LogDir = cfg.LogDir
	}
	logCfg.Component = component
	log, err := logging.New(logCfg)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	ix, err := index.Open(filepath.Join(root, config.MarkerDir, index.DBFileName))
	if err != nil {
		log.Close()
		return nil, fmt.Errorf("open index: %w", err)
	}

	st := store.New(root)
	rec := reconcile.New(st, ix, log.WithComponent("reconcile"))

	return &app{
		Root:      root,
		Config:    cfg,
		Store:     st,
		Index:     ix,
		Reconcile: rec,
		Log:       log,
	}, nil
}

func (a *app) Close() {
	a.Index.Close()
	a.Log.Close()
}

// logDir returns the effective logging directory for this app.
func (a *app) logDir() string {
	if a.Config.LogDir != "" {
		return a.Config.LogDir
	}
	return logging.DefaultConfig().LogDir
}

// sortedEntities returns all index entries, newest first.
func (a *app) sortedEntities() []*recording.Entity {
	entities := a.Index.All()
	sort.Slice(entities, func(i, j int) bool {
		return entities[i].CreatedAt.After(entities[j].CreatedAt)
	})
	return entities
}

// resolveID accepts a full identifier or an unambiguous prefix.
func (a *app) resolveID(arg string) (string, error) {
	if id, err := recording.ParseID(arg); err == nil {
		if _, ok := a.Index.Find(id); ok {
			return id, nil
		}
		return "", fmt.Errorf("no recording %s", id)
	}

	var matches []string
	for _, e := range a.Index.All() {
		if len(arg) > 0 && len(arg) <= len(e.ID) && e.ID[:len(arg)] == arg {
			matches = append(matches, e.ID)
		}
	}
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return "", fmt.Errorf("no recording matches %q", arg)
	default:
		return "", fmt.Errorf("%q is ambiguous (%d matches)", arg, len(matches))
	}
}
