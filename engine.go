// engine.go: engine construction, startup synchronization and shared state
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package remoteconfig

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/agilira/argus"
)

// Options configures engine construction.
type Options struct {
	// ConfigDir is the gateway's configuration directory holding the
	// general configuration file, the logs tree, per-connector files, the
	// backup/ subdirectory and default-configs/.
	ConfigDir string

	// Version is the local gateway version, compared against the remote
	// peer's reported Version during startup synchronization.
	Version string

	// Connection tunes the dual-candidate reconnection race.
	Connection ConnectionOptions

	// Watcher tunes local connector-file watching. A zero PollInterval
	// falls back to the checkConnectorsConfigurationInSeconds tunable.
	Watcher WatcherOptions

	// Audit enables the Argus audit trail for applied configuration
	// changes.
	Audit argus.AuditConfig
}

// Engine is the remote-configuration reconciliation engine. It owns the
// configuration store exclusively; the surrounding gateway reads state
// through the accessor methods but must not mutate it elsewhere.
type Engine struct {
	logger Logger
	files  *Persistence

	store    *Store
	detector *ChangeDetector
	routes   []route

	deps Dependencies
	opts Options

	// clientMu guards the active client reference, the only state touched
	// concurrently (by the connection race).
	clientMu sync.Mutex
	client   TransportClient

	storage     EventStorage
	grpcService *GRPCService

	watcher *ConnectorFileWatcher
	audit   *argus.AuditLogger

	remoteVersion atomic.Pointer[string]
	inProcess     atomic.Bool
}

// New constructs the engine from the persisted configuration files, builds
// the initial storage backend and internal RPC transport from them, and
// takes the startup backup of the general configuration file.
func New(deps Dependencies, opts Options) (*Engine, error) {
	logger := NewLogger(deps.Logger)
	if deps.Client == nil || deps.NewClient == nil || deps.NewStorage == nil ||
		deps.Connectors == nil || deps.Subsystems == nil {
		return nil, fmt.Errorf("remoteconfig: all collaborators in Dependencies are required")
	}

	files := NewPersistence(opts.ConfigDir, logger)

	var local LocalConfig
	if err := files.ReadConfig(GeneralConfigFileName, &local); err != nil {
		return nil, err
	}

	logs := LogsConfig{}
	if err := files.ReadConfig(LogsConfigFileName, &logs); err != nil {
		logger.Warn("Logs configuration could not be loaded, starting empty", "error", err)
		logs = LogsConfig{}
	}

	store := NewStore(local, logs)

	e := &Engine{
		logger:   logger,
		files:    files,
		store:    store,
		detector: NewChangeDetector(files, logger),
		deps:     deps,
		opts:     opts,
		client:   deps.Client,
	}
	e.opts.Connection = e.opts.Connection.withDefaults()
	e.routes = e.buildRoutes()
	e.loadConnectorDetails()

	storage, err := deps.NewStorage(store.Storage())
	if err != nil {
		return nil, NewStorageApplyError(store.Storage().Type, err)
	}
	e.storage = storage

	if grpcCfg := store.GRPC(); grpcCfg.Enabled {
		service, err := NewGRPCService(grpcCfg, deps.RegisterGRPC, logger)
		if err != nil {
			logger.Error("Internal RPC transport failed to start from persisted configuration",
				"error", err, "port", grpcCfg.ServerPort)
		} else {
			e.grpcService = service
		}
	}

	if opts.Audit.Enabled {
		auditLogger, err := argus.NewAuditLogger(opts.Audit)
		if err != nil {
			return nil, fmt.Errorf("remoteconfig: audit logger: %w", err)
		}
		e.audit = auditLogger
	}

	if _, err := files.Backup(GeneralConfigFileName, store.LocalFormat()); err != nil {
		logger.Error("Startup backup of the general configuration failed", "error", err)
	}

	logger.Info("Remote configurator started", "config_dir", opts.ConfigDir)
	return e, nil
}

// loadConnectorDetails attaches each connector's detailed configuration from
// its own file. A missing or unreadable file is logged and leaves the entry
// without detail; the summary alone still identifies the connector.
func (e *Engine) loadConnectorDetails() {
	for _, name := range e.store.ConnectorNames() {
		entry, _ := e.store.FindConnector(name)
		detail := map[string]any{}
		if err := e.files.ReadConfig(entry.Configuration, &detail); err != nil {
			e.logger.Warn("Connector configuration file could not be loaded",
				"connector", entry.Name, "file", entry.Configuration, "error", err)
			continue
		}
		entry.ConfigurationJSON = detail
		if level, ok := detail["logLevel"].(string); ok {
			entry.LogLevel = level
		}
	}
}

// Start synchronizes state with the management server (full configuration
// push, version fetch, default-config templates) and starts the local
// connector-file watcher.
func (e *Engine) Start(ctx context.Context) error {
	e.fetchRemoteVersion(ctx)
	e.sendCurrentConfiguration()
	e.pushDefaultConfigsIfNewer()

	interval := e.opts.Watcher.PollInterval
	if interval == 0 {
		if secs := e.store.General().CheckConnectorsConfigSeconds; secs > 0 {
			interval = time.Duration(secs) * time.Second
		}
	}
	if interval > 0 {
		watcher, err := NewConnectorFileWatcher(e, e.opts.Watcher.withPollInterval(interval))
		if err != nil {
			return err
		}
		e.watcher = watcher
		if err := e.watcher.Start(); err != nil {
			return err
		}
	}
	return nil
}

// Stop shuts down the watcher, the internal RPC transport and the audit
// trail. The active transport client stays up; it belongs to the host.
func (e *Engine) Stop() {
	if e.watcher != nil {
		if err := e.watcher.Stop(); err != nil {
			e.logger.Warn("Connector file watcher stop failed", "error", err)
		}
	}
	if e.grpcService != nil {
		e.grpcService.Stop()
	}
	if e.audit != nil {
		if err := e.audit.Close(); err != nil {
			e.logger.Warn("Audit logger close failed", "error", err)
		}
	}
}

// Client returns the currently active transport client. The reference
// changes when a connection reconfiguration succeeds.
func (e *Engine) Client() TransportClient {
	e.clientMu.Lock()
	defer e.clientMu.Unlock()
	return e.client
}

func (e *Engine) setClient(client TransportClient) {
	e.clientMu.Lock()
	e.client = client
	e.clientMu.Unlock()
}

// Storage returns the currently active event-storage backend.
func (e *Engine) Storage() EventStorage {
	return e.storage
}

// GRPCService returns the currently active internal RPC transport, nil when
// disabled.
func (e *Engine) GRPCService() *GRPCService {
	return e.grpcService
}

// Configuration returns the engine's configuration store.
func (e *Engine) Configuration() *Store {
	return e.store
}

// sendAttributes publishes attribute key/value pairs upstream, best effort.
func (e *Engine) sendAttributes(attributes map[string]any) {
	if err := e.Client().SendAttributes(attributes); err != nil {
		e.logger.Error("Attribute publish failed", "error", err)
	}
}

// persistGeneral rewrites the whole general configuration file from the
// store. Persistence failures are logged, not propagated: the in-memory
// change already applied and the next successful write converges.
func (e *Engine) persistGeneral() {
	if err := e.files.WriteConfig(GeneralConfigFileName, e.store.LocalFormat()); err != nil {
		e.logger.Error("General configuration file write failed", "error", err)
	}
}

// reloadAllConnectors tears down every active connector and rebuilds the set
// from the store's current projection.
func (e *Engine) reloadAllConnectors() error {
	for _, name := range e.deps.Connectors.ActiveConnectors() {
		if err := e.deps.Connectors.CloseConnector(name); err != nil {
			e.logger.Warn("Connector close failed during reload", "connector", name, "error", err)
		}
	}
	if err := e.deps.Connectors.LoadConnectors(e.store.LocalFormat()); err != nil {
		return NewConnectorReloadError(err)
	}
	if err := e.deps.Connectors.ConnectConnectors(); err != nil {
		return NewConnectorReloadError(err)
	}
	return nil
}

// auditEvent records an applied configuration change on the audit trail.
func (e *Engine) auditEvent(eventType string, context map[string]any) {
	if e.audit == nil {
		return
	}
	e.audit.LogSecurityEvent(eventType, "Remote configuration change", context)
}
