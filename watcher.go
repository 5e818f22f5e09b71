// watcher.go: local connector-config file watching via Argus
//
// Remote pushes are not the only way connector files change: operators edit
// them on the box. The watcher picks those edits up on the periodic check
// interval and runs them through the same reload path, so local and remote
// changes converge on one discipline.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package remoteconfig

import (
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/agilira/argus"
)

// WatcherOptions configures local connector-file watching.
type WatcherOptions struct {
	// PollInterval between file checks. Zero derives the interval from the
	// checkConnectorsConfigurationInSeconds tunable at engine start.
	PollInterval time.Duration

	// CacheTTL for file stat operations.
	CacheTTL time.Duration

	// MaxWatchedFiles caps the number of watched connector files.
	MaxWatchedFiles int

	// ErrorHandler receives watch errors; nil logs them.
	ErrorHandler func(err error, path string)
}

// DefaultWatcherOptions returns the standard watch tuning.
func DefaultWatcherOptions() WatcherOptions {
	return WatcherOptions{
		PollInterval:    10 * time.Second,
		CacheTTL:        5 * time.Second,
		MaxWatchedFiles: 64,
	}
}

func (o WatcherOptions) withPollInterval(interval time.Duration) WatcherOptions {
	def := DefaultWatcherOptions()
	o.PollInterval = interval
	if o.CacheTTL <= 0 {
		o.CacheTTL = def.CacheTTL
	}
	if o.MaxWatchedFiles <= 0 {
		o.MaxWatchedFiles = def.MaxWatchedFiles
	}
	return o
}

// ConnectorFileWatcher watches every configured connector file and reloads
// the connector set when a locally edited file genuinely differs from the
// stored configuration (content digest, same check the remote path uses).
type ConnectorFileWatcher struct {
	engine  *Engine
	logger  Logger
	watcher *argus.Watcher
	options WatcherOptions

	enabled  atomic.Bool
	stopped  atomic.Bool
	stopOnce sync.Once
	mutex    sync.Mutex
}

// NewConnectorFileWatcher creates a watcher over the engine's connector
// files. Start must be called to begin watching.
func NewConnectorFileWatcher(engine *Engine, options WatcherOptions) (*ConnectorFileWatcher, error) {
	w := &ConnectorFileWatcher{
		engine:  engine,
		logger:  engine.logger,
		options: options,
	}

	w.watcher = argus.New(argus.Config{
		PollInterval:         options.PollInterval,
		CacheTTL:             options.CacheTTL,
		MaxWatchedFiles:      options.MaxWatchedFiles,
		OptimizationStrategy: argus.OptimizationSingleEvent,
		ErrorHandler: func(err error, path string) {
			if options.ErrorHandler != nil {
				options.ErrorHandler(err, path)
				return
			}
			w.logger.Error("Connector file watching error", "error", err, "file", path)
		},
	})
	return w, nil
}

// Start registers every configured connector file and begins watching.
func (w *ConnectorFileWatcher) Start() error {
	if w.stopped.Load() {
		return fmt.Errorf("connector file watcher has been permanently stopped and cannot be restarted")
	}

	w.mutex.Lock()
	defer w.mutex.Unlock()

	if !w.enabled.CompareAndSwap(false, true) {
		return nil // already running
	}

	for _, entry := range w.engine.store.Connectors() {
		path := w.engine.files.Path(entry.Configuration)
		if err := w.watcher.Watch(path, w.handleChange); err != nil {
			w.enabled.Store(false)
			return NewConfigReadError(path, err)
		}
	}

	if err := w.watcher.Start(); err != nil {
		w.enabled.Store(false)
		return fmt.Errorf("failed to start connector file watcher: %w", err)
	}

	w.logger.Info("Connector file watcher started",
		"poll_interval", w.options.PollInterval,
		"files", len(w.engine.store.Connectors()))
	return nil
}

// Stop permanently stops the watcher.
func (w *ConnectorFileWatcher) Stop() error {
	var stopErr error
	w.stopOnce.Do(func() {
		w.mutex.Lock()
		defer w.mutex.Unlock()

		if !w.enabled.CompareAndSwap(true, false) {
			return
		}
		w.stopped.Store(true)
		stopErr = w.watcher.Stop()
	})
	return stopErr
}

// IsRunning reports whether the watcher is active.
func (w *ConnectorFileWatcher) IsRunning() bool {
	return w.enabled.Load() && !w.stopped.Load()
}

// handleChange processes one file-change event. It competes for the same
// single-flight guard as remote batches: a local edit observed while a
// remote reconciliation is in flight is skipped and picked up on the next
// poll.
func (w *ConnectorFileWatcher) handleChange(event argus.ChangeEvent) {
	if event.IsDelete {
		w.logger.Warn("Connector configuration file was deleted, skipping reload", "file", event.Path)
		return
	}

	e := w.engine
	if !e.inProcess.CompareAndSwap(false, true) {
		w.logger.Debug("Reconciliation in flight, deferring local file change", "file", event.Path)
		return
	}
	defer e.inProcess.Store(false)

	name := filepath.Base(event.Path)
	var target *ConnectorConfigEntry
	for _, connectorName := range e.store.ConnectorNames() {
		entry, _ := e.store.FindConnector(connectorName)
		if entry.Configuration == name {
			target = entry
			break
		}
	}
	if target == nil {
		return
	}

	onDisk := map[string]any{}
	if err := e.files.ReadConfig(name, &onDisk); err != nil {
		w.logger.Error("Changed connector file could not be read", "file", name, "error", err)
		return
	}
	if sameContent(onDisk, target.ConfigurationJSON) {
		return
	}

	w.logger.Info("Local connector configuration change detected",
		"connector", target.Name, "file", name)

	target.ConfigurationJSON = onDisk
	if level, ok := onDisk["logLevel"].(string); ok {
		target.LogLevel = level
	}

	if err := e.reloadAllConnectors(); err != nil {
		w.logger.Error("Connector reload after local change failed", "error", err)
	}
	e.auditEvent("local_connector_config_changed", map[string]any{
		"connector": target.Name,
		"file":      name,
	})
}
