// store.go: in-memory configuration store and its file/wire projections
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package remoteconfig

// Store is the single-owner, in-memory representation of the gateway's full
// configuration. It is mutated only by the engine's domain handlers, which
// all run under the dispatcher's single-flight guard, so the store itself
// needs no locking.
type Store struct {
	general    GeneralConfig
	storage    StorageConfig
	grpc       GRPCConfig
	logs       LogsConfig
	connectors []ConnectorConfigEntry
}

// NewStore builds a store from the loaded general configuration file and
// logs tree. Connector detail (ConfigurationJSON) is attached afterwards by
// the engine from the per-connector files.
func NewStore(local LocalConfig, logs LogsConfig) *Store {
	connectors := make([]ConnectorConfigEntry, 0, len(local.Connectors))
	for _, summary := range local.Connectors {
		connectors = append(connectors, ConnectorConfigEntry{
			Name:          summary.Name,
			Type:          summary.Type,
			Configuration: summary.Configuration,
			Key:           summary.Key,
			Class:         summary.Class,
		})
	}
	if logs == nil {
		logs = LogsConfig{}
	}
	return &Store{
		general:    local.General,
		storage:    local.Storage,
		grpc:       local.GRPC,
		logs:       logs,
		connectors: connectors,
	}
}

// General returns a copy of the general configuration.
func (s *Store) General() GeneralConfig {
	g := s.general
	if s.general.Statistics != nil {
		stats := *s.general.Statistics
		g.Statistics = &stats
	}
	return g
}

// SetGeneral replaces the general configuration.
func (s *Store) SetGeneral(cfg GeneralConfig) {
	s.general = cfg
}

// StripStatisticsCommands removes the transient commands list from the
// in-memory statistics section. Commands are persisted to their own file,
// never inline in the general configuration file.
func (s *Store) StripStatisticsCommands() {
	if s.general.Statistics != nil {
		s.general.Statistics.Commands = nil
	}
}

// Storage returns the storage configuration.
func (s *Store) Storage() StorageConfig {
	return s.storage
}

// SetStorage replaces the storage configuration.
func (s *Store) SetStorage(cfg StorageConfig) {
	s.storage = cfg
}

// GRPC returns the secondary transport configuration.
func (s *Store) GRPC() GRPCConfig {
	return s.grpc
}

// SetGRPC replaces the secondary transport configuration.
func (s *Store) SetGRPC(cfg GRPCConfig) {
	s.grpc = cfg
}

// Logs returns the logging configuration tree.
func (s *Store) Logs() LogsConfig {
	return s.logs
}

// SetLogs replaces the logging configuration tree.
func (s *Store) SetLogs(cfg LogsConfig) {
	if cfg == nil {
		cfg = LogsConfig{}
	}
	s.logs = cfg
}

// Connectors returns the connector entries in their configured order.
func (s *Store) Connectors() []ConnectorConfigEntry {
	out := make([]ConnectorConfigEntry, len(s.connectors))
	copy(out, s.connectors)
	return out
}

// FindConnector locates a connector entry by its unique name.
func (s *Store) FindConnector(name string) (*ConnectorConfigEntry, bool) {
	for i := range s.connectors {
		if s.connectors[i].Name == name {
			return &s.connectors[i], true
		}
	}
	return nil, false
}

// AppendConnector adds a new connector entry. Name uniqueness is the
// invariant of the connector sequence; appending an existing name fails.
func (s *Store) AppendConnector(entry ConnectorConfigEntry) error {
	if _, exists := s.FindConnector(entry.Name); exists {
		return NewDuplicateConnectorError(entry.Name)
	}
	s.connectors = append(s.connectors, entry)
	return nil
}

// RetainConnectors drops every connector entry whose name is not in keep,
// reporting whether anything was removed.
func (s *Store) RetainConnectors(keep []string) bool {
	keepSet := make(map[string]struct{}, len(keep))
	for _, name := range keep {
		keepSet[name] = struct{}{}
	}

	retained := s.connectors[:0]
	removed := false
	for _, entry := range s.connectors {
		if _, ok := keepSet[entry.Name]; ok {
			retained = append(retained, entry)
		} else {
			removed = true
		}
	}
	s.connectors = retained
	return removed
}

// ConnectorNames lists the configured connector names in order.
func (s *Store) ConnectorNames() []string {
	names := make([]string, 0, len(s.connectors))
	for _, entry := range s.connectors {
		names = append(names, entry.Name)
	}
	return names
}

// LocalFormat projects the store into the on-disk shape of the general
// configuration file. Connector entries are reduced to their summaries;
// detailed settings stay in the per-connector files.
func (s *Store) LocalFormat() *LocalConfig {
	summaries := make([]ConnectorSummary, 0, len(s.connectors))
	for _, entry := range s.connectors {
		summaries = append(summaries, ConnectorSummary{
			Type:          entry.Type,
			Name:          entry.Name,
			Configuration: entry.Configuration,
			Key:           entry.Key,
			Class:         entry.Class,
		})
	}
	local := &LocalConfig{
		General:    s.General(),
		Storage:    s.storage,
		GRPC:       s.grpc,
		Connectors: summaries,
	}
	// Commands never land in the general configuration file.
	if local.General.Statistics != nil {
		local.General.Statistics.Commands = nil
	}
	return local
}

// RemoteGeneral projects the general configuration into the wire shape sent
// to the management server: the statistics section carries the externally
// stored commands inline.
func (s *Store) RemoteGeneral(commands []StatisticsCommand) GeneralConfig {
	g := s.General()
	stats := g.StatisticsOrDefault()
	stats.Commands = commands
	g.Statistics = stats
	return g
}
