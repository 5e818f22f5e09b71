// dispatcher.go: single-flight attribute-update dispatch
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package remoteconfig

import (
	"encoding/json"
	"strings"
)

// route pairs a match predicate with the handler for one configuration
// domain. Routes are evaluated in order and the first match wins, so the
// catch-all connector route must stay last.
type route struct {
	name   string
	match  func(attribute string) bool
	handle func(attribute string, payload json.RawMessage) error
}

func exactMatch(name string) func(string) bool {
	return func(attribute string) bool { return attribute == name }
}

func matchAny(string) bool { return true }

// buildRoutes assembles the ordered dispatch table. Named domains use exact
// string equality; anything not already matched is treated as a connector
// name.
func (e *Engine) buildRoutes() []route {
	return []route{
		{name: AttrGeneralConfiguration, match: exactMatch(AttrGeneralConfiguration), handle: e.handleGeneralUpdate},
		{name: AttrStorageConfiguration, match: exactMatch(AttrStorageConfiguration), handle: e.handleStorageUpdate},
		{name: AttrGRPCConfiguration, match: exactMatch(AttrGRPCConfiguration), handle: e.handleGRPCUpdate},
		{name: AttrLogsConfiguration, match: exactMatch(AttrLogsConfiguration), handle: e.handleLogsUpdate},
		{name: AttrActiveConnectors, match: exactMatch(AttrActiveConnectors), handle: e.handleActiveConnectorsUpdate},
		{name: AttrRemoteLoggingLevel, match: exactMatch(AttrRemoteLoggingLevel), handle: e.handleRemoteLoggingLevelUpdate},
		{name: "connector", match: matchAny, handle: e.handleConnectorUpdate},
	}
}

// ProcessUpdate reconciles one batch of attribute updates.
//
// At most one batch is processed at a time: a batch arriving while another
// is in flight is rejected outright (logged, not queued, not retried) and
// the rejection is returned so callers can surface it.
//
// Within the batch, tombstone keys are ignored, unchanged payloads are
// skipped, and a failing key is logged without aborting the remaining keys.
func (e *Engine) ProcessUpdate(request AttributeUpdateRequest) error {
	if !e.inProcess.CompareAndSwap(false, true) {
		err := NewUpdateInProgressError()
		e.logger.Error("Remote configuration is already in processing")
		return err
	}
	defer e.inProcess.Store(false)

	e.logger.Debug("Got config update request", "attributes", len(request))

	for attribute, payload := range request {
		if strings.Contains(attribute, tombstoneMarker) {
			continue
		}
		if !e.detector.IsModified(attribute, payload) {
			e.logger.Debug("Attribute unchanged, skipping", "attribute", attribute)
			continue
		}

		for _, r := range e.routes {
			if !r.match(attribute) {
				continue
			}
			if err := r.handle(attribute, payload); err != nil {
				e.logger.Error("Attribute update failed",
					"attribute", attribute, "domain", r.name, "error", err)
				e.auditEvent("attribute_update_failed", map[string]any{
					"attribute": attribute,
					"domain":    r.name,
					"error":     err.Error(),
				})
			} else {
				e.auditEvent("attribute_update_applied", map[string]any{
					"attribute": attribute,
					"domain":    r.name,
				})
			}
			break
		}
	}
	return nil
}
