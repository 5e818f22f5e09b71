// errors.go: structured error definitions for the reconciliation engine
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package remoteconfig

import (
	"github.com/agilira/go-errors"
)

// Error codes for the reconciliation engine
const (
	// Dispatch errors (1000-1099)
	ErrCodeUpdateInProgress = "RECONF_1001"
	ErrCodeInvalidPayload   = "RECONF_1002"
	ErrCodeMissingField     = "RECONF_1003"

	// Connection errors (1100-1199)
	ErrCodeConnectionApply  = "RECONF_1101"
	ErrCodeConnectionRevert = "RECONF_1102"
	ErrCodeConnectionRace   = "RECONF_1103"

	// Storage errors (1200-1299)
	ErrCodeStorageApply = "RECONF_1201"

	// Secondary transport errors (1300-1399)
	ErrCodeTransportApply  = "RECONF_1301"
	ErrCodeTransportListen = "RECONF_1302"

	// Connector lifecycle errors (1400-1499)
	ErrCodeConnectorApply     = "RECONF_1401"
	ErrCodeDuplicateConnector = "RECONF_1402"
	ErrCodeConnectorReload    = "RECONF_1403"

	// Persistence errors (1500-1599)
	ErrCodeConfigRead   = "RECONF_1501"
	ErrCodeConfigWrite  = "RECONF_1502"
	ErrCodeConfigBackup = "RECONF_1503"

	// Logging configuration errors (1600-1699)
	ErrCodeLogsApply = "RECONF_1601"

	// Version synchronization errors (1700-1799)
	ErrCodeVersionParse = "RECONF_1701"
)

// Dispatch error constructors

func NewUpdateInProgressError() *errors.Error {
	return errors.New(ErrCodeUpdateInProgress, "Remote configuration is already in processing").
		WithUserMessage("Another configuration update is being applied; the new batch was dropped").
		WithSeverity("error")
}

func NewInvalidPayloadError(attribute string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeInvalidPayload, "Invalid attribute payload").
		WithUserMessage("The attribute payload could not be decoded").
		WithContext("attribute", attribute).
		WithSeverity("error")
}

func NewMissingFieldError(attribute, field string) *errors.Error {
	return errors.New(ErrCodeMissingField, "Missing required payload field").
		WithUserMessage("A required field is absent from the attribute payload").
		WithContext("attribute", attribute).
		WithContext("field", field).
		WithSeverity("error")
}

// Connection error constructors

func NewConnectionApplyError(cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeConnectionApply, "Connection reconfiguration failed").
		WithUserMessage("The new connection parameters could not be applied").
		WithSeverity("error").
		AsRetryable()
}

func NewConnectionRevertError(cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeConnectionRevert, "Connection revert failed").
		WithUserMessage("Restoring the previous connection parameters failed").
		WithSeverity("critical")
}

func NewConnectionRaceTimeoutError(timeout interface{}) *errors.Error {
	return errors.New(ErrCodeConnectionRace, "Connection race timed out").
		WithUserMessage("Neither connection candidate reported connected before the timeout").
		WithContext("timeout", timeout).
		WithSeverity("warning").
		AsRetryable()
}

// Storage error constructors

func NewStorageApplyError(storageType string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeStorageApply, "Storage reconfiguration failed").
		WithUserMessage("The new event storage backend could not be constructed").
		WithContext("storage_type", storageType).
		WithSeverity("error")
}

// Secondary transport error constructors

func NewTransportApplyError(cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeTransportApply, "Secondary transport reconfiguration failed").
		WithUserMessage("The new internal RPC transport could not be applied").
		WithSeverity("error")
}

func NewTransportListenError(port int, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeTransportListen, "Secondary transport listen failed").
		WithUserMessage("The internal RPC transport could not bind its port").
		WithContext("port", port).
		WithSeverity("error")
}

// Connector lifecycle error constructors

func NewConnectorApplyError(name string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeConnectorApply, "Connector reconfiguration failed").
		WithUserMessage("The connector configuration could not be applied").
		WithContext("connector_name", name).
		WithSeverity("error")
}

func NewDuplicateConnectorError(name string) *errors.Error {
	return errors.New(ErrCodeDuplicateConnector, "Duplicate connector name").
		WithUserMessage("Connector names must be unique across the connector list").
		WithContext("connector_name", name).
		WithSeverity("error")
}

func NewConnectorReloadError(cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeConnectorReload, "Connector reload failed").
		WithUserMessage("Reloading the connector set failed").
		WithSeverity("error")
}

// Persistence error constructors

func NewConfigReadError(path string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeConfigRead, "Configuration file read failed").
		WithUserMessage("The configuration file could not be read").
		WithContext("config_path", path).
		WithSeverity("error")
}

func NewConfigWriteError(path string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeConfigWrite, "Configuration file write failed").
		WithUserMessage("The configuration file could not be written").
		WithContext("config_path", path).
		WithSeverity("error")
}

func NewConfigBackupError(path string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeConfigBackup, "Configuration backup failed").
		WithUserMessage("The pre-overwrite backup could not be written").
		WithContext("config_path", path).
		WithSeverity("error")
}

// Logging configuration error constructors

func NewLogsApplyError(cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeLogsApply, "Logging reconfiguration failed").
		WithUserMessage("The logging configuration tree could not be applied").
		WithSeverity("warning")
}

// Version synchronization error constructors

func NewVersionParseError(raw string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeVersionParse, "Version parse failed").
		WithUserMessage("The reported gateway version could not be parsed").
		WithContext("version", raw).
		WithSeverity("warning")
}
