// storage_handler.go: storage and secondary-transport swap-and-verify
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package remoteconfig

import (
	"encoding/json"
)

// handleStorageUpdate swaps the event-storage backend: keep the current
// instance aside, construct a new one from the payload, and restore the
// saved instance on any construction error. There is no retry.
func (e *Engine) handleStorageUpdate(attribute string, payload json.RawMessage) error {
	e.logger.Debug("Processing storage configuration update")

	var cfg StorageConfig
	if err := json.Unmarshal(payload, &cfg); err != nil {
		return NewInvalidPayloadError(attribute, err)
	}

	old := e.storage
	replacement, err := e.deps.NewStorage(cfg)
	if err != nil {
		e.logger.Error("Applying the new storage configuration failed, reverting", "error", err)
		e.storage = old
		return NewStorageApplyError(cfg.Type, err)
	}

	e.storage = replacement
	if old != nil {
		if err := old.Close(); err != nil {
			e.logger.Warn("Previous storage backend close failed", "error", err)
		}
	}

	e.store.SetStorage(cfg)
	e.persistGeneral()
	e.sendAttributes(map[string]any{AttrStorageConfiguration: cfg})

	e.logger.Info("Processed storage configuration update successfully")
	return nil
}

// handleGRPCUpdate swaps the secondary (internal RPC) transport and reloads
// every connector, since connectors depend on it. A failing swap restores
// the previous transport and reloads connectors again against it.
func (e *Engine) handleGRPCUpdate(attribute string, payload json.RawMessage) error {
	e.logger.Debug("Processing internal RPC transport configuration update")

	var cfg GRPCConfig
	if err := json.Unmarshal(payload, &cfg); err != nil {
		return NewInvalidPayloadError(attribute, err)
	}

	current := e.store.GRPC()
	if sameContent(cfg, current) {
		return nil
	}

	oldService := e.grpcService
	if oldService != nil {
		oldService.Stop()
	}

	applyErr := e.swapGRPCService(cfg)
	if applyErr == nil {
		applyErr = e.reloadAllConnectors()
	}
	if applyErr != nil {
		e.logger.Error("Applying the new internal RPC configuration failed, reverting", "error", applyErr)
		if e.grpcService != nil {
			e.grpcService.Stop()
			e.grpcService = nil
		}
		if revertErr := e.swapGRPCService(current); revertErr != nil {
			e.logger.Error("Internal RPC transport revert failed", "error", revertErr)
		}
		if reloadErr := e.reloadAllConnectors(); reloadErr != nil {
			e.logger.Error("Connector reload after revert failed", "error", reloadErr)
		}
		return NewTransportApplyError(applyErr)
	}

	e.store.SetGRPC(cfg)
	e.persistGeneral()
	e.sendAttributes(map[string]any{AttrGRPCConfiguration: cfg})

	e.logger.Info("Processed internal RPC transport configuration update successfully")
	return nil
}

// swapGRPCService replaces the engine's internal RPC server with one built
// from cfg. A disabled configuration leaves no server running.
func (e *Engine) swapGRPCService(cfg GRPCConfig) error {
	if !cfg.Enabled {
		e.grpcService = nil
		return nil
	}
	service, err := NewGRPCService(cfg, e.deps.RegisterGRPC, e.logger)
	if err != nil {
		return err
	}
	e.grpcService = service
	return nil
}
