// general_handler.go: general configuration updates in reversible sub-steps
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package remoteconfig

import (
	"encoding/json"
)

// handleGeneralUpdate applies a general configuration payload in strict
// order: connection, statistics, device filtering, remote shell -- each
// independently reversible -- then the scalar tunables unconditionally.
//
// A failing sub-step reverts only its own fields in the working payload:
// the rest of the update proceeds with the still-current values recorded
// for that group, and later sub-steps see the incoming values for their
// unrelated fields.
func (e *Engine) handleGeneralUpdate(attribute string, payload json.RawMessage) error {
	var incoming GeneralConfig
	if err := json.Unmarshal(payload, &incoming); err != nil {
		return NewInvalidPayloadError(attribute, err)
	}
	current := e.store.General()

	e.logger.Info("Processing general configuration update")

	e.logger.Info("Checking connection configuration changes")
	if connectionChanged(incoming, current) {
		e.logger.Info("Connection configuration changed, processing")
		if !e.applyConnectionConfig(incoming) {
			incoming.Host = current.Host
			incoming.Port = current.Port
			incoming.QoS = current.QoS
			incoming.Security = current.Security
			incoming.Provisioning = current.Provisioning
		}
	} else {
		e.logger.Info("Connection configuration not changed")
	}

	e.logger.Info("Checking statistics configuration changes")
	if incoming.Statistics == nil {
		// An absent section keeps the stored policy; change detection runs
		// against the default so a gateway without statistics still
		// reconciles a first-time enable correctly.
		incoming.Statistics = current.Statistics
	}
	newStats := incoming.StatisticsOrDefault()
	if e.statisticsChanged(newStats, current) {
		e.logger.Info("Statistics configuration changed, processing")
		applied, ok := e.applyStatisticsConfig(*newStats, current)
		if ok {
			incoming.Statistics = &applied
		} else {
			incoming.Statistics = current.StatisticsOrDefault()
		}
	} else {
		e.logger.Info("Statistics configuration not changed")
	}

	e.logger.Info("Checking device filtering configuration changes")
	if !sameContent(incoming.DeviceFiltering, current.DeviceFiltering) {
		e.logger.Info("Device filtering configuration changed, processing")
		if !e.applyDeviceFilteringConfig(incoming.DeviceFiltering, current) {
			incoming.DeviceFiltering = current.DeviceFiltering
		}
	} else {
		e.logger.Info("Device filtering configuration not changed")
	}

	e.logger.Info("Checking remote shell configuration changes")
	if !sameContent(incoming.RemoteShell, current.RemoteShell) {
		e.logger.Info("Remote shell configuration changed, processing")
		if !e.applyRemoteShellConfig(incoming.RemoteShell, current) {
			incoming.RemoteShell = current.RemoteShell
		}
	} else {
		e.logger.Info("Remote shell configuration not changed")
	}

	// Scalar tunables are safe, non-disruptive settings: applied with the
	// final merge below, no revert path.
	e.logger.Info("Applying other configuration parameters",
		"maxPayloadSizeBytes", incoming.MaxPayloadSizeBytes,
		"minPackSendDelayMS", incoming.MinPackSendDelayMS,
		"minPackSizeToSend", incoming.MinPackSizeToSend,
		"checkConnectorsConfigurationInSeconds", incoming.CheckConnectorsConfigSeconds,
		"handleDeviceRenaming", incoming.HandleDeviceRenaming)

	e.logger.Info("Saving new general configuration")
	e.store.SetGeneral(incoming)
	e.sendAttributes(map[string]any{AttrGeneralConfiguration: incoming})
	e.store.StripStatisticsCommands()
	e.persistGeneral()
	return nil
}

// connectionChanged reports whether any connection-affecting field differs:
// host, port, QoS, security material or provisioning.
func connectionChanged(incoming, current GeneralConfig) bool {
	return incoming.Host != current.Host ||
		incoming.Port != current.Port ||
		incoming.QoS != current.QoS ||
		!sameContent(incoming.Security, current.Security) ||
		!sameContent(incoming.Provisioning, current.Provisioning)
}

// statisticsChanged compares the incoming statistics policy against the
// stored one, including the externally persisted commands list.
func (e *Engine) statisticsChanged(incoming *StatisticsConfig, current GeneralConfig) bool {
	stored := current.StatisticsOrDefault()
	if incoming.Enable != stored.Enable ||
		incoming.StatsSendPeriodInSeconds != stored.StatsSendPeriodInSeconds {
		return true
	}

	var commands []StatisticsCommand
	if stored.Configuration != "" {
		if err := e.files.ReadConfig(stored.Configuration, &commands); err != nil {
			e.logger.Warn("Statistics commands file could not be read",
				"file", stored.Configuration, "error", err)
		}
	}
	return !sameContent(incoming.Commands, commands)
}

// applyStatisticsConfig persists the commands list (when present) to the
// commands file and restarts the statistics service. On failure the service
// is restarted with the stored policy and false is returned.
func (e *Engine) applyStatisticsConfig(cfg StatisticsConfig, current GeneralConfig) (StatisticsConfig, bool) {
	if len(cfg.Commands) > 0 {
		file := current.StatisticsOrDefault().Configuration
		if file == "" {
			file = DefaultStatisticsFile
		}
		if err := e.files.WriteConfig(file, cfg.Commands); err != nil {
			e.logger.Error("Statistics commands file write failed, reverting", "error", err)
			e.revertStatistics(current)
			return cfg, false
		}
		cfg.Configuration = file
	}

	if err := e.deps.Subsystems.InitStatistics(cfg); err != nil {
		e.logger.Error("Applying the new statistics configuration failed, reverting", "error", err)
		e.revertStatistics(current)
		return cfg, false
	}
	return cfg, true
}

func (e *Engine) revertStatistics(current GeneralConfig) {
	if err := e.deps.Subsystems.InitStatistics(*current.StatisticsOrDefault()); err != nil {
		e.logger.Error("Statistics revert failed", "error", err)
	}
}

// applyDeviceFilteringConfig restarts device filtering with the incoming
// policy, reverting to the stored one on failure.
func (e *Engine) applyDeviceFilteringConfig(cfg map[string]any, current GeneralConfig) bool {
	if cfg == nil {
		cfg = map[string]any{"enable": false}
	}
	if err := e.deps.Subsystems.InitDeviceFiltering(cfg); err != nil {
		e.logger.Error("Applying the new device filtering configuration failed, reverting", "error", err)
		fallback := current.DeviceFiltering
		if fallback == nil {
			fallback = map[string]any{"enable": false}
		}
		if revertErr := e.deps.Subsystems.InitDeviceFiltering(fallback); revertErr != nil {
			e.logger.Error("Device filtering revert failed", "error", revertErr)
		}
		return false
	}
	return true
}

// applyRemoteShellConfig applies the remote-shell policy, reverting to the
// stored one on failure.
func (e *Engine) applyRemoteShellConfig(cfg map[string]any, current GeneralConfig) bool {
	if err := e.deps.Subsystems.InitRemoteShell(cfg); err != nil {
		e.logger.Error("Applying the new remote shell configuration failed, reverting", "error", err)
		if revertErr := e.deps.Subsystems.InitRemoteShell(current.RemoteShell); revertErr != nil {
			e.logger.Error("Remote shell revert failed", "error", revertErr)
		}
		return false
	}
	return true
}
