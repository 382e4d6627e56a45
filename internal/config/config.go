package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/ipsurveil/ipmetrics/internal/fileutils"
	"github.com/ipsurveil/ipmetrics/internal/surveillance"
)

// Manager keeps the options of an options file, reloading them when the file changes.
type Manager struct {
	file       File
	override   File
	lock       sync.RWMutex
	configPath string

	log *slog.Logger
}

type options struct {
	logger   *slog.Logger
	override File
}

// Options represents an optional function to override Manager default values.
type Options func(*options)

// WithLogger sets the logger of the Manager.
func WithLogger(l *slog.Logger) Options {
	return func(o *options) {
		o.logger = l
	}
}

// WithOverride sets options which take precedence over the ones of the file, like command line flags.
func WithOverride(f File) Options {
	return func(o *options) {
		o.override = f
	}
}

// New creates a new options manager for the file at path.
// An empty path selects no file and only the override and defaults apply.
func New(path string, args ...Options) *Manager {
	opts := options{
		logger: slog.Default(),
	}

	for _, opt := range args {
		opt(&opts)
	}

	return &Manager{
		configPath: path,
		override:   opts.override,
		log:        opts.logger,
	}
}

// Load reads the options file and updates the internal state.
func (cm *Manager) Load() error {
	if cm.configPath == "" {
		return nil
	}

	f, err := LoadFile(cm.configPath)
	if err != nil {
		return err
	}

	cm.lock.Lock()
	cm.file = f
	cm.lock.Unlock()

	cm.log.Info("Options loaded", "path", cm.configPath)
	return nil
}

// Options returns the derivation options currently in effect.
func (cm *Manager) Options() surveillance.Options {
	cm.lock.RLock()
	defer cm.lock.RUnlock()
	return cm.file.Override(cm.override).Options()
}

// Watch starts watching the options file for changes.
//
// It returns two channels: one for changes which result in a successful load and another for unrecoverable watcher errors.
func (cm *Manager) Watch(ctx context.Context) (changes <-chan struct{}, errors <-chan error, err error) {
	if cm.configPath == "" {
		return nil, nil, fmt.Errorf("no options file to watch")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create watcher: %v", err)
	}

	configDir := filepath.Dir(cm.configPath)
	if err := watcher.Add(configDir); err != nil {
		watcher.Close()
		return nil, nil, fmt.Errorf("failed to add directory %s to watcher: %v", configDir, err)
	}

	cm.log.Info("Watching options directory", "dir", configDir)
	changesCh := make(chan struct{}, 1)
	errorsCh := make(chan error, 1)

	// Initial load of the options
	if err := cm.Load(); err != nil {
		cm.log.Warn("Error loading initial options", "err", err)
	}

	go func() {
		defer close(changesCh)
		defer close(errorsCh)
		defer watcher.Close()

		for {
			select {
			case <-ctx.Done():
				cm.log.Info("Options watcher stopped")
				return
			case event, ok := <-watcher.Events:
				if !ok {
					errorsCh <- fmt.Errorf("watcher events channel closed unexpectedly")
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}

				if !fileutils.SameFile(event.Name, cm.configPath) {
					continue
				}

				cm.log.Debug("Options file changed. Reloading...")
				if err := cm.Load(); err != nil {
					cm.log.Warn("Error reloading options", "err", err)
					continue
				}

				select {
				case changesCh <- struct{}{}:
				default:
				}

			case err, ok := <-watcher.Errors:
				if !ok {
					errorsCh <- fmt.Errorf("watcher errors channel closed unexpectedly")
					return
				}
				cm.log.Warn("Watcher error", "err", err)
			}
		}
	}()

	return changesCh, errorsCh, nil
}
