// connector_handler.go: connector lifecycle and active-set reconciliation
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package remoteconfig

import (
	"encoding/json"
)

// handleConnectorUpdate adds or updates one connector instance from its
// attribute payload.
//
// New connectors get their configuration file written, a summary entry
// appended and the connector set reloaded. Existing connectors are compared
// by content digest (backing up the on-disk file when it differs) and by
// summary fields; if either changed, the file is rewritten, the running
// instance is closed and the set reloaded. The received payload is always
// acknowledged upstream keyed by the connector's name.
func (e *Engine) handleConnectorUpdate(attribute string, payload json.RawMessage) error {
	e.logger.Debug("Processing connector configuration update", "attribute", attribute)

	var update ConnectorUpdate
	if err := json.Unmarshal(payload, &update); err != nil {
		return NewInvalidPayloadError(attribute, err)
	}
	if update.Name == "" {
		return NewMissingFieldError(attribute, "name")
	}
	if update.Type == "" {
		return NewMissingFieldError(attribute, "type")
	}
	if update.Configuration == "" {
		return NewMissingFieldError(attribute, "configuration")
	}

	merged := mergedConnectorJSON(update)

	entry, found := e.store.FindConnector(update.Name)
	if !found {
		if err := e.addConnector(update, merged); err != nil {
			return err
		}
	} else {
		if err := e.updateConnector(entry, update, merged); err != nil {
			return err
		}
	}

	// Echo the payload as received, not the merged form.
	var echo any
	if err := json.Unmarshal(payload, &echo); err == nil {
		e.sendAttributes(map[string]any{update.Name: echo})
	}
	return nil
}

// mergedConnectorJSON is the on-disk form of a connector's detailed
// configuration: the payload's configurationJson with logLevel and name
// folded in.
func mergedConnectorJSON(update ConnectorUpdate) map[string]any {
	merged := make(map[string]any, len(update.ConfigurationJSON)+2)
	for k, v := range update.ConfigurationJSON {
		merged[k] = v
	}
	merged["logLevel"] = update.LogLevel
	merged["name"] = update.Name
	return merged
}

func (e *Engine) addConnector(update ConnectorUpdate, merged map[string]any) error {
	e.logger.Info("Adding new connector", "connector", update.Name, "type", update.Type)

	if err := e.files.WriteConfig(update.Configuration, merged); err != nil {
		return NewConnectorApplyError(update.Name, err)
	}

	if err := e.store.AppendConnector(ConnectorConfigEntry{
		Name:              update.Name,
		Type:              update.Type,
		Configuration:     update.Configuration,
		Key:               update.Key,
		Class:             update.Class,
		LogLevel:          update.LogLevel,
		ConfigurationJSON: merged,
	}); err != nil {
		return err
	}
	e.persistGeneral()

	if err := e.deps.Connectors.LoadConnectors(e.store.LocalFormat()); err != nil {
		return NewConnectorApplyError(update.Name, err)
	}
	if err := e.deps.Connectors.ConnectConnectors(); err != nil {
		return NewConnectorApplyError(update.Name, err)
	}
	return nil
}

func (e *Engine) updateConnector(entry *ConnectorConfigEntry, update ConnectorUpdate, merged map[string]any) error {
	contentChanged := true
	if e.files.Exists(update.Configuration) {
		onDisk := map[string]any{}
		if err := e.files.ReadConfig(update.Configuration, &onDisk); err != nil {
			return NewConnectorApplyError(update.Name, err)
		}
		contentChanged = !sameContent(onDisk, merged)
		if contentChanged {
			// The digest both detects the change and gates the backup: an
			// identical payload produces no backup record.
			if _, err := e.files.Backup(update.Configuration, onDisk); err != nil {
				return NewConnectorApplyError(update.Name, err)
			}
		}
	}

	summaryChanged := entry.Type != update.Type ||
		entry.Class != update.Class ||
		entry.Key != update.Key ||
		entry.LogLevel != update.LogLevel
	if summaryChanged {
		entry.Type = update.Type
		entry.Configuration = update.Configuration
		entry.Key = update.Key
		entry.Class = update.Class
		entry.LogLevel = update.LogLevel
	}

	if !contentChanged && !summaryChanged {
		e.logger.Debug("Connector configuration unchanged", "connector", update.Name)
		return nil
	}

	if err := e.files.WriteConfig(update.Configuration, merged); err != nil {
		return NewConnectorApplyError(update.Name, err)
	}
	entry.ConfigurationJSON = merged
	if summaryChanged {
		e.persistGeneral()
	}

	if err := e.deps.Connectors.CloseConnector(update.Name); err != nil {
		e.logger.Warn("Connector close before reload failed", "connector", update.Name, "error", err)
	}
	if err := e.deps.Connectors.LoadConnectors(e.store.LocalFormat()); err != nil {
		return NewConnectorApplyError(update.Name, err)
	}
	if err := e.deps.Connectors.ConnectConnectors(); err != nil {
		return NewConnectorApplyError(update.Name, err)
	}
	return nil
}

// handleActiveConnectorsUpdate reconciles the authoritative set of
// connector names: every active connector not in the set is closed and
// removed, the pruned list is persisted when anything was removed, and the
// received set is always acknowledged upstream.
func (e *Engine) handleActiveConnectorsUpdate(attribute string, payload json.RawMessage) error {
	e.logger.Debug("Processing active connectors update")

	var names []string
	if err := json.Unmarshal(payload, &names); err != nil {
		return NewInvalidPayloadError(attribute, err)
	}

	keep := make(map[string]struct{}, len(names))
	for _, name := range names {
		keep[name] = struct{}{}
	}

	changed := false
	for _, active := range e.deps.Connectors.ActiveConnectors() {
		if _, ok := keep[active]; ok {
			continue
		}
		if err := e.deps.Connectors.CloseConnector(active); err != nil {
			e.logger.Error("Connector close failed", "connector", active, "error", err)
			continue
		}
		changed = true
	}

	if changed {
		e.store.RetainConnectors(names)
		e.persistGeneral()
	}

	e.sendAttributes(map[string]any{AttrActiveConnectors: names})
	return nil
}
