// connector_handler_test.go: connector lifecycle and active-set tests
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package remoteconfig

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mqttUpdatePayload() map[string]any {
	return map[string]any{
		"name":          "Broker",
		"type":          "mqtt",
		"configuration": "mqtt.json",
		"logLevel":      "DEBUG",
		"configurationJson": map[string]any{
			"broker": map[string]any{"host": "mqtt.example.com", "port": 1883},
		},
	}
}

func TestNewConnectorIsCreatedAndStarted(t *testing.T) {
	f := newTestFixture(t)

	// The attribute key and the payload's name may differ; the ack is
	// keyed by the name.
	require.NoError(t, f.engine.ProcessUpdate(AttributeUpdateRequest{
		"newConnector": rawPayload(t, mqttUpdatePayload()),
	}))

	// Configuration file written with logLevel and name folded in.
	var onDisk map[string]any
	readJSONFile(t, f.dir, "mqtt.json", &onDisk)
	assert.Equal(t, "DEBUG", onDisk["logLevel"])
	assert.Equal(t, "Broker", onDisk["name"])
	assert.NotNil(t, onDisk["broker"])

	// Summary appended, persisted, and the set reloaded.
	entry, found := f.engine.Configuration().FindConnector("Broker")
	require.True(t, found)
	assert.Equal(t, "mqtt", entry.Type)

	var local LocalConfig
	readJSONFile(t, f.dir, GeneralConfigFileName, &local)
	require.Len(t, local.Connectors, 2)
	assert.Equal(t, "Broker", local.Connectors[1].Name)

	assert.Equal(t, 1, f.runtime.loadCount())
	assert.Contains(t, f.runtime.ActiveConnectors(), "Broker")

	// Acknowledgment echoes the payload keyed by the connector name.
	ack, ok := f.client.sentValue("Broker")
	require.True(t, ok)
	assert.Equal(t, "mqtt", ack.(map[string]any)["type"])
}

func TestConnectorUpdateBacksUpChangedFileOnly(t *testing.T) {
	f := newTestFixture(t)

	// Matches the seeded modbus.json content exactly once logLevel and
	// name are folded in, and the summary fields match the stored entry.
	identical := map[string]any{
		"name":              "Modbus",
		"type":              "modbus",
		"configuration":     "modbus.json",
		"logLevel":          "INFO",
		"configurationJson": map[string]any{"pollPeriod": 1000},
	}
	require.NoError(t, f.engine.ProcessUpdate(AttributeUpdateRequest{
		"Modbus": rawPayload(t, identical),
	}))

	assert.Empty(t, backupFiles(t, f.dir, "modbus.json"),
		"identical content must not produce a backup")
	assert.Zero(t, f.runtime.loadCount(), "identical update must not reload the set")
	// The payload is still acknowledged.
	assert.Equal(t, 1, f.client.sentCount("Modbus"))

	changed := map[string]any{
		"name":              "Modbus",
		"type":              "modbus",
		"configuration":     "modbus.json",
		"logLevel":          "INFO",
		"configurationJson": map[string]any{"pollPeriod": 500},
	}
	require.NoError(t, f.engine.ProcessUpdate(AttributeUpdateRequest{
		"Modbus": rawPayload(t, changed),
	}))

	assert.Len(t, backupFiles(t, f.dir, "modbus.json"), 1,
		"changed content must produce exactly one backup")

	var onDisk map[string]any
	readJSONFile(t, f.dir, "modbus.json", &onDisk)
	assert.Equal(t, float64(500), onDisk["pollPeriod"])

	assert.Contains(t, f.runtime.closedNames(), "Modbus")
	assert.Equal(t, 1, f.runtime.loadCount())
}

func TestConnectorSummaryChangeIsPersisted(t *testing.T) {
	f := newTestFixture(t)

	// Same file content, different logLevel: summary change only.
	payload := map[string]any{
		"name":              "Modbus",
		"type":              "modbus",
		"configuration":     "modbus.json",
		"logLevel":          "DEBUG",
		"configurationJson": map[string]any{"pollPeriod": 1000},
	}
	require.NoError(t, f.engine.ProcessUpdate(AttributeUpdateRequest{
		"Modbus": rawPayload(t, payload),
	}))

	entry, _ := f.engine.Configuration().FindConnector("Modbus")
	assert.Equal(t, "DEBUG", entry.LogLevel)
	assert.Equal(t, 1, f.runtime.loadCount())

	// Content was identical except for the folded-in logLevel, which makes
	// the merged form differ from disk; one backup of the old content.
	assert.Len(t, backupFiles(t, f.dir, "modbus.json"), 1)
}

func TestConnectorUpdatePreservesNameUniqueness(t *testing.T) {
	f := newTestFixture(t)

	require.NoError(t, f.engine.ProcessUpdate(AttributeUpdateRequest{
		"Broker": rawPayload(t, mqttUpdatePayload()),
	}))
	changed := mqttUpdatePayload()
	changed["configurationJson"] = map[string]any{"broker": map[string]any{"host": "other"}}
	require.NoError(t, f.engine.ProcessUpdate(AttributeUpdateRequest{
		"Broker": rawPayload(t, changed),
	}))

	names := f.engine.Configuration().ConnectorNames()
	seen := map[string]int{}
	for _, name := range names {
		seen[name]++
	}
	assert.Equal(t, 1, seen["Broker"])
	assert.Len(t, names, 2)
}

func TestConnectorValidationFailures(t *testing.T) {
	f := newTestFixture(t)

	cases := []map[string]any{
		{"type": "mqtt", "configuration": "m.json"},   // no name
		{"name": "X", "configuration": "x.json"},      // no type
		{"name": "X", "type": "mqtt"},                 // no configuration
	}
	for _, payload := range cases {
		require.NoError(t, f.engine.ProcessUpdate(AttributeUpdateRequest{
			"X": rawPayload(t, payload),
		}))
	}

	_, found := f.engine.Configuration().FindConnector("X")
	assert.False(t, found)
	assert.Zero(t, f.runtime.loadCount())
	assert.Empty(t, f.client.sent)
}

func TestActiveConnectorsPrunesUnlistedConnectors(t *testing.T) {
	f := newTestFixture(t)

	// Second connector alongside the seeded one.
	require.NoError(t, f.engine.ProcessUpdate(AttributeUpdateRequest{
		"Broker": rawPayload(t, mqttUpdatePayload()),
	}))

	require.NoError(t, f.engine.ProcessUpdate(AttributeUpdateRequest{
		AttrActiveConnectors: rawPayload(t, []string{"Modbus"}),
	}))

	assert.Contains(t, f.runtime.closedNames(), "Broker")
	assert.Equal(t, []string{"Modbus"}, f.engine.Configuration().ConnectorNames())

	var local LocalConfig
	readJSONFile(t, f.dir, GeneralConfigFileName, &local)
	require.Len(t, local.Connectors, 1)
	assert.Equal(t, "Modbus", local.Connectors[0].Name)
}

func TestActiveConnectorsAlwaysAcknowledged(t *testing.T) {
	f := newTestFixture(t)

	// The set already matches; nothing is closed, but the ack still goes.
	require.NoError(t, f.engine.ProcessUpdate(AttributeUpdateRequest{
		AttrActiveConnectors: rawPayload(t, []string{"Modbus"}),
	}))

	assert.Empty(t, f.runtime.closedNames())
	names, ok := f.client.sentValue(AttrActiveConnectors)
	require.True(t, ok)
	assert.Equal(t, []string{"Modbus"}, names)
}
