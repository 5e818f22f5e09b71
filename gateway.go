// gateway.go: boundary interfaces toward the host gateway process
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package remoteconfig

import "context"

// TransportClient is the engine's view of the primary transport client that
// talks to the management server. The concrete implementation (connect,
// publish, subscribe mechanics) lives in the host gateway.
//
// The engine replaces the active client during connection reconfiguration,
// so implementations must tolerate Disconnect/Connect cycles and a Stop()
// after which the client is never reused.
type TransportClient interface {
	// Connect starts the connection attempt. It may return before the
	// session is established; IsConnected reports the live state.
	Connect(ctx context.Context) error

	// Disconnect closes the current session, keeping the client reusable.
	Disconnect() error

	// Stop releases the client permanently.
	Stop()

	// IsConnected reports whether the session is currently established.
	IsConnected() bool

	// SendAttributes publishes attribute key/value pairs upstream.
	SendAttributes(attributes map[string]any) error

	// RequestSharedAttributes fetches shared attributes from the server.
	RequestSharedAttributes(ctx context.Context, keys []string) (map[string]any, error)

	// SubscribeToRequiredTopics re-establishes the gateway's required
	// subscriptions after a client swap.
	SubscribeToRequiredTopics() error
}

// ClientFactory builds a TransportClient candidate from connection
// parameters. configDir points at the gateway's configuration directory for
// implementations that load certificates or provisioning material from it.
type ClientFactory func(cfg GeneralConfig, configDir string) (TransportClient, error)

// EventStorage is the opaque handle to an event-storage backend instance.
// The engine only constructs and swaps instances; reading and writing events
// belongs to the host gateway.
type EventStorage interface {
	// Close releases the backend's resources.
	Close() error
}

// StorageFactory builds an EventStorage from a storage configuration. A
// construction error triggers the swap-and-verify revert.
type StorageFactory func(cfg StorageConfig) (EventStorage, error)

// ConnectorRuntime manages the device-protocol connector instances on
// behalf of the engine. Implementations own the actual protocol logic.
type ConnectorRuntime interface {
	// LoadConnectors (re)creates connector instances from the given
	// configuration projection.
	LoadConnectors(cfg *LocalConfig) error

	// ConnectConnectors connects every loaded connector to its devices.
	ConnectConnectors() error

	// ActiveConnectors lists the names of currently active connectors.
	ActiveConnectors() []string

	// CloseConnector shuts down and removes one connector instance.
	CloseConnector(name string) error
}

// SubsystemManager reinitializes the auxiliary gateway subsystems driven by
// the general configuration.
type SubsystemManager interface {
	// InitStatistics restarts the statistics service with a new policy.
	InitStatistics(cfg StatisticsConfig) error

	// InitDeviceFiltering restarts device filtering with a new policy.
	InitDeviceFiltering(cfg map[string]any) error

	// InitRemoteShell applies the remote-shell on/off policy.
	InitRemoteShell(cfg map[string]any) error
}

// Dependencies bundles every external collaborator the engine needs. All
// fields except RegisterGRPC and Logger are required.
type Dependencies struct {
	// Client is the initially connected transport client.
	Client TransportClient

	// NewClient builds candidate clients during connection swaps.
	NewClient ClientFactory

	// NewStorage builds event-storage backends during storage swaps.
	NewStorage StorageFactory

	// Connectors manages connector instances.
	Connectors ConnectorRuntime

	// Subsystems reinitializes statistics, filtering and remote shell.
	Subsystems SubsystemManager

	// RegisterGRPC registers the host's services on a rebuilt internal RPC
	// server. Nil leaves the server empty, which is valid for gateways that
	// attach services lazily.
	RegisterGRPC GRPCRegisterFunc

	// Logger receives the engine's own log records. Nil selects a
	// NoOpLogger.
	Logger Logger
}
