// version.go: startup synchronization and gateway version comparison
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package remoteconfig

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/agilira/go-timecache"
	goversion "github.com/hashicorp/go-version"
)

const fallbackVersion = "0.0"

// fetchRemoteVersion asks the server for the peer's reported Version shared
// attribute. Any lookup failure falls back to "0.0", which makes the local
// gateway look newer and triggers the default-config push.
func (e *Engine) fetchRemoteVersion(ctx context.Context) {
	remote := fallbackVersion
	attrs, err := e.Client().RequestSharedAttributes(ctx, []string{AttrVersion})
	if err != nil {
		e.logger.Warn("Remote version lookup failed, assuming 0.0", "error", err)
	} else if v, ok := attrs[AttrVersion].(string); ok && v != "" {
		remote = v
	} else {
		e.logger.Warn("Remote version attribute missing, assuming 0.0")
	}
	e.remoteVersion.Store(&remote)
}

// RemoteVersion returns the peer's reported version, "0.0" before the first
// successful fetch.
func (e *Engine) RemoteVersion() string {
	if v := e.remoteVersion.Load(); v != nil {
		return *v
	}
	return fallbackVersion
}

// localVersion returns the configured local gateway version, "0.0" when
// unset.
func (e *Engine) localVersion() string {
	if e.opts.Version == "" {
		return fallbackVersion
	}
	return e.opts.Version
}

// versionNewer reports whether a is strictly newer than b under dotted
// total-order comparison. Unparsable inputs are treated as "0.0".
func versionNewer(a, b string) bool {
	va, err := goversion.NewVersion(a)
	if err != nil {
		va = goversion.Must(goversion.NewVersion(fallbackVersion))
	}
	vb, err := goversion.NewVersion(b)
	if err != nil {
		vb = goversion.Must(goversion.NewVersion(fallbackVersion))
	}
	return va.GreaterThan(vb)
}

// sendCurrentConfiguration pushes the full local state upstream so both
// sides start from the same view: every domain, the version, and one
// attribute per configured connector.
func (e *Engine) sendCurrentConfiguration() {
	e.logger.Debug("Sending all configurations for state synchronization")

	nowMS := timecache.CachedTime().UnixMilli()

	e.sendAttributes(map[string]any{AttrGeneralConfiguration: e.store.RemoteGeneral(e.readStatisticsCommands())})
	e.sendAttributes(map[string]any{AttrStorageConfiguration: e.store.Storage()})
	e.sendAttributes(map[string]any{AttrGRPCConfiguration: e.store.GRPC()})

	logsTree := map[string]any{"ts": nowMS}
	for k, v := range e.store.Logs() {
		logsTree[k] = v
	}
	e.sendAttributes(map[string]any{AttrLogsConfiguration: logsTree})

	e.sendAttributes(map[string]any{AttrActiveConnectors: e.store.ConnectorNames()})
	e.sendAttributes(map[string]any{AttrVersion: e.localVersion()})

	for _, entry := range e.store.Connectors() {
		logLevel := entry.LogLevel
		if logLevel == "" {
			logLevel = "INFO"
		}
		e.sendAttributes(map[string]any{entry.Name: map[string]any{
			"name":              entry.Name,
			"type":              entry.Type,
			"configuration":     entry.Configuration,
			"configurationJson": entry.ConfigurationJSON,
			"logLevel":          logLevel,
			"ts":                nowMS,
		}})
	}
}

// readStatisticsCommands loads the externally stored statistics commands
// referenced by the current configuration, nil when none are configured.
func (e *Engine) readStatisticsCommands() []StatisticsCommand {
	general := e.store.General()
	file := general.StatisticsOrDefault().Configuration
	if file == "" {
		return nil
	}
	var commands []StatisticsCommand
	if err := e.files.ReadConfig(file, &commands); err != nil {
		e.logger.Warn("Statistics commands file could not be read", "file", file, "error", err)
		return nil
	}
	return commands
}

// pushDefaultConfigsIfNewer sends the default configuration template for
// every connector type found under default-configs/ when the local gateway
// is newer than the remote peer, keyed <TYPE>_DEFAULT_CONFIG.
func (e *Engine) pushDefaultConfigsIfNewer() {
	if !versionNewer(e.localVersion(), e.RemoteVersion()) {
		return
	}

	dir := e.files.Path(DefaultConfigsDirName)
	entries, err := os.ReadDir(dir)
	if err != nil {
		e.logger.Warn("Default connector configs directory not readable", "dir", dir, "error", err)
		return
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		connectorType := strings.TrimSuffix(entry.Name(), ".json")

		var cfg map[string]any
		if err := e.files.ReadConfig(filepath.Join(DefaultConfigsDirName, entry.Name()), &cfg); err != nil {
			e.logger.Error("Default config file could not be read, passing",
				"connector_type", connectorType, "error", err)
			continue
		}

		e.sendAttributes(map[string]any{
			strings.ToUpper(connectorType) + defaultConfigAttrSuffix: cfg,
		})
		e.logger.Debug("Default config sent", "connector_type", connectorType)
	}
}
