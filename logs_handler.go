// logs_handler.go: logging configuration tree and remote level passthrough
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package remoteconfig

import (
	"encoding/json"
)

// handleLogsUpdate applies a full logging-configuration tree: the active
// logging facade is retuned, a remote log-forwarding handler is installed
// at the current level, the tree is persisted and acknowledged.
//
// This handler has no rollback path. A broken logging configuration
// degrades observability but must not take the engine down.
func (e *Engine) handleLogsUpdate(attribute string, payload json.RawMessage) error {
	e.logger.Debug("Processing logs configuration update")

	var tree LogsConfig
	if err := json.Unmarshal(payload, &tree); err != nil {
		return NewInvalidPayloadError(attribute, err)
	}

	if sw, ok := e.logger.(*SwitchableLogger); ok {
		if level := tree.RootLevel(); level != "" {
			sw.SetLevel(ParseLogLevel(level))
		}
		sw.SetForwarder(&remoteLogForwarder{engine: e, min: sw.Level()})
	} else {
		e.logger.Debug("Logger is not switchable, skipping hot reconfiguration")
	}

	if err := e.files.WriteConfig(LogsConfigFileName, tree); err != nil {
		e.logger.Error("Remote logging configuration is wrong", "error", err)
		return NewLogsApplyError(err)
	}
	e.store.SetLogs(tree)

	e.logger.Debug("Logs configuration has been updated")
	e.sendAttributes(map[string]any{AttrLogsConfiguration: tree})
	return nil
}

// handleRemoteLoggingLevelUpdate is a stateless passthrough: the received
// level is acknowledged upstream, actual level application happens through
// the logs-configuration tree.
func (e *Engine) handleRemoteLoggingLevelUpdate(attribute string, payload json.RawMessage) error {
	var level any
	if err := json.Unmarshal(payload, &level); err != nil {
		return NewInvalidPayloadError(attribute, err)
	}
	e.sendAttributes(map[string]any{AttrRemoteLoggingLevel: level})
	return nil
}

// remoteLogForwarder mirrors local log records to the management server.
// It writes through the transport client directly and swallows publish
// errors: reporting them through the engine logger would feed back into
// this forwarder.
type remoteLogForwarder struct {
	engine *Engine
	min    LogLevel
}

func (f *remoteLogForwarder) forward(level LogLevel, name, msg string) {
	if level < f.min {
		return
	}
	_ = f.engine.Client().SendAttributes(map[string]any{"LOGS": name + ": " + msg})
}

// Debug implements Logger interface
func (f *remoteLogForwarder) Debug(msg string, args ...any) { f.forward(LevelDebug, "DEBUG", msg) }

// Info implements Logger interface
func (f *remoteLogForwarder) Info(msg string, args ...any) { f.forward(LevelInfo, "INFO", msg) }

// Warn implements Logger interface
func (f *remoteLogForwarder) Warn(msg string, args ...any) { f.forward(LevelWarn, "WARN", msg) }

// Error implements Logger interface
func (f *remoteLogForwarder) Error(msg string, args ...any) { f.forward(LevelError, "ERROR", msg) }

// With implements Logger interface (forwarding keeps no context)
func (f *remoteLogForwarder) With(args ...any) Logger { return f }
