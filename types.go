// types.go: configuration data model for the reconciliation engine
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package remoteconfig

import "encoding/json"

// Well-known attribute names recognized by the dispatcher. Any other
// non-tombstone attribute is treated as a connector name.
const (
	AttrGeneralConfiguration = "general_configuration"
	AttrStorageConfiguration = "storage_configuration"
	AttrGRPCConfiguration    = "grpc_configuration"
	AttrLogsConfiguration    = "logs_configuration"
	AttrActiveConnectors     = "active_connectors"
	AttrRemoteLoggingLevel   = "RemoteLoggingLevel"
	AttrVersion              = "Version"
)

// Persisted file names tracked by the engine inside the configuration
// directory.
const (
	GeneralConfigFileName    = "gateway.json"
	LogsConfigFileName       = "logs.json"
	DefaultStatisticsFile    = "statistics.json"
	BackupDirName            = "backup"
	DefaultConfigsDirName    = "default-configs"
	defaultConfigAttrSuffix  = "_DEFAULT_CONFIG"
	tombstoneMarker          = "deleted"
)

// AttributeUpdateRequest is a batch of attribute updates pushed from the
// management server: a flat mapping from attribute name to its raw payload.
type AttributeUpdateRequest map[string]json.RawMessage

// StatisticsConfig controls the statistics collection policy. Commands is
// transient: it travels on the wire and is persisted to its own commands
// file, never inline in the general configuration file.
type StatisticsConfig struct {
	Enable                   bool                `json:"enable"`
	StatsSendPeriodInSeconds int                 `json:"statsSendPeriodInSeconds"`
	Configuration            string              `json:"configuration,omitempty"`
	Commands                 []StatisticsCommand `json:"commands,omitempty"`
}

// StatisticsCommand is one externally defined statistics probe.
type StatisticsCommand map[string]any

// DefaultStatistics returns the fallback statistics policy applied when a
// payload or the stored configuration carries no statistics section.
func DefaultStatistics() *StatisticsConfig {
	return &StatisticsConfig{
		Enable:                   true,
		StatsSendPeriodInSeconds: 3600,
	}
}

// GeneralConfig aggregates the gateway's primary transport endpoint,
// security material, policies and miscellaneous tunables.
//
// Security, Provisioning, DeviceFiltering and RemoteShell are kept as open
// objects: their inner schema belongs to the subsystems that consume them,
// the engine only needs change detection and pass-through.
type GeneralConfig struct {
	Host         string         `json:"host"`
	Port         int            `json:"port"`
	QoS          int            `json:"qos"`
	Security     map[string]any `json:"security,omitempty"`
	Provisioning map[string]any `json:"provisioning,omitempty"`

	Statistics      *StatisticsConfig `json:"statistics,omitempty"`
	DeviceFiltering map[string]any    `json:"deviceFiltering,omitempty"`
	RemoteShell     map[string]any    `json:"remoteShell,omitempty"`

	// Non-disruptive scalar tunables, applied without a revert path.
	MaxPayloadSizeBytes          int  `json:"maxPayloadSizeBytes,omitempty"`
	MinPackSendDelayMS           int  `json:"minPackSendDelayMS,omitempty"`
	MinPackSizeToSend            int  `json:"minPackSizeToSend,omitempty"`
	CheckConnectorsConfigSeconds int  `json:"checkConnectorsConfigurationInSeconds,omitempty"`
	HandleDeviceRenaming         bool `json:"handleDeviceRenaming,omitempty"`
}

// StatisticsOrDefault returns the statistics section, falling back to
// DefaultStatistics when the section is absent.
func (g *GeneralConfig) StatisticsOrDefault() *StatisticsConfig {
	if g.Statistics == nil {
		return DefaultStatistics()
	}
	return g.Statistics
}

// StorageConfig selects the event-storage backend and its parameters.
type StorageConfig struct {
	Type                string `json:"type"`
	ReadRecordsCount    int    `json:"read_records_count,omitempty"`
	MaxRecordsCount     int    `json:"max_records_count,omitempty"`
	DataFolderPath      string `json:"data_folder_path,omitempty"`
	MaxFileCount        int    `json:"max_file_count,omitempty"`
	MaxReadRecordsCount int    `json:"max_read_records_count,omitempty"`
	MaxRecordsPerFile   int    `json:"max_records_per_file,omitempty"`
}

// GRPCConfig holds the secondary (internal RPC) transport parameters.
type GRPCConfig struct {
	Enabled                     bool `json:"enabled"`
	ServerPort                  int  `json:"serverPort"`
	KeepAliveTimeMS             int  `json:"keepAliveTimeMs,omitempty"`
	KeepAliveTimeoutMS          int  `json:"keepAliveTimeoutMs,omitempty"`
	KeepalivePermitWithoutCalls bool `json:"keepalivePermitWithoutCalls,omitempty"`
	MinTimeBetweenPingsMS       int  `json:"minTimeBetweenPingsMs,omitempty"`
	MaxPingsWithoutData         int  `json:"maxPingsWithoutData,omitempty"`
	MaxRecvMsgSizeBytes         int  `json:"maxRecvMsgSizeBytes,omitempty"`
}

// LogsConfig is the structured logging configuration tree. The engine
// persists and forwards it; only the root level is interpreted here.
type LogsConfig map[string]any

// RootLevel extracts the top-level "level" entry of the tree, empty when
// absent or not a string.
func (l LogsConfig) RootLevel() string {
	if lvl, ok := l["level"].(string); ok {
		return lvl
	}
	return ""
}

// ConnectorConfigEntry is the in-memory record of one configured connector.
// Name is unique across the connector sequence; Configuration maps 1:1 to a
// file under the gateway's configuration directory holding the detailed
// ConfigurationJSON.
type ConnectorConfigEntry struct {
	Name          string `json:"name"`
	Type          string `json:"type"`
	Configuration string `json:"configuration"`
	Key           string `json:"key,omitempty"`
	Class         string `json:"class,omitempty"`
	LogLevel      string `json:"logLevel,omitempty"`

	// Detailed settings loaded from the connector's own file; not part of
	// the general configuration file projection.
	ConfigurationJSON map[string]any `json:"configurationJson,omitempty"`
}

// ConnectorSummary is the projection of a connector entry written into the
// general configuration file.
type ConnectorSummary struct {
	Type          string `json:"type"`
	Name          string `json:"name"`
	Configuration string `json:"configuration"`
	Key           string `json:"key,omitempty"`
	Class         string `json:"class,omitempty"`
}

// ConnectorUpdate is the payload of a connector attribute update.
type ConnectorUpdate struct {
	Name              string         `json:"name"`
	Type              string         `json:"type"`
	Configuration     string         `json:"configuration"`
	LogLevel          string         `json:"logLevel"`
	Key               string         `json:"key,omitempty"`
	Class             string         `json:"class,omitempty"`
	ConfigurationJSON map[string]any `json:"configurationJson"`
	TS                int64          `json:"ts,omitempty"`
}

// LocalConfig is the on-disk shape of the general configuration file: the
// full domain sections plus connector summaries. Detailed connector settings
// live in their own files.
type LocalConfig struct {
	General    GeneralConfig      `json:"general"`
	Storage    StorageConfig      `json:"storage"`
	GRPC       GRPCConfig         `json:"grpc"`
	Connectors []ConnectorSummary `json:"connectors"`
}
