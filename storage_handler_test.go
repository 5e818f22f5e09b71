// storage_handler_test.go: storage and secondary-transport swap tests
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package remoteconfig

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStorageUpdateSwapsBackend(t *testing.T) {
	f := newTestFixture(t)
	require.Len(t, f.storages, 1)
	initial := f.storages[0]

	payload := map[string]any{
		"type":               "file",
		"data_folder_path":   "./data",
		"read_records_count": 10,
	}
	require.NoError(t, f.engine.ProcessUpdate(AttributeUpdateRequest{
		AttrStorageConfiguration: rawPayload(t, payload),
	}))

	require.Len(t, f.storages, 2)
	assert.True(t, initial.closed, "previous backend must be closed after the swap")
	assert.True(t, f.engine.Storage() == EventStorage(f.storages[1]))
	assert.Equal(t, "file", f.engine.Configuration().Storage().Type)

	var local LocalConfig
	readJSONFile(t, f.dir, GeneralConfigFileName, &local)
	assert.Equal(t, "file", local.Storage.Type)

	ack, ok := f.client.sentValue(AttrStorageConfiguration)
	require.True(t, ok)
	assert.Equal(t, "file", ack.(StorageConfig).Type)
}

func TestStorageUpdateRevertsOnFactoryFailure(t *testing.T) {
	f := newTestFixture(t)
	initial := f.storages[0]
	f.storageErr = errors.New("backend unavailable")

	require.NoError(t, f.engine.ProcessUpdate(AttributeUpdateRequest{
		AttrStorageConfiguration: rawPayload(t, map[string]any{"type": "postgres"}),
	}))

	// The previous backend stays active and open; nothing is persisted or
	// acknowledged.
	assert.True(t, f.engine.Storage() == EventStorage(initial))
	assert.False(t, initial.closed)
	assert.Equal(t, "memory", f.engine.Configuration().Storage().Type)
	assert.Zero(t, f.client.sentCount(AttrStorageConfiguration))

	var local LocalConfig
	readJSONFile(t, f.dir, GeneralConfigFileName, &local)
	assert.Equal(t, "memory", local.Storage.Type)
}

func TestGRPCUpdateEnablesTransportAndReloadsConnectors(t *testing.T) {
	f := newTestFixture(t)
	require.Nil(t, f.engine.GRPCService())

	payload := map[string]any{"enabled": true, "serverPort": 0}
	require.NoError(t, f.engine.ProcessUpdate(AttributeUpdateRequest{
		AttrGRPCConfiguration: rawPayload(t, payload),
	}))

	require.NotNil(t, f.engine.GRPCService())
	assert.True(t, f.engine.Configuration().GRPC().Enabled)

	// Connectors depend on the transport; the whole set is rebuilt.
	assert.Equal(t, 1, f.runtime.loadCount())
	assert.Contains(t, f.runtime.closedNames(), "Modbus")

	ack, ok := f.client.sentValue(AttrGRPCConfiguration)
	require.True(t, ok)
	assert.True(t, ack.(GRPCConfig).Enabled)
}

func TestGRPCUpdateRevertsOnListenFailure(t *testing.T) {
	f := newTestFixture(t)

	payload := map[string]any{"enabled": true, "serverPort": -1}
	require.NoError(t, f.engine.ProcessUpdate(AttributeUpdateRequest{
		AttrGRPCConfiguration: rawPayload(t, payload),
	}))

	// Swap failed; the stored configuration (disabled) is restored and no
	// acknowledgment goes upstream.
	assert.Nil(t, f.engine.GRPCService())
	assert.False(t, f.engine.Configuration().GRPC().Enabled)
	assert.Zero(t, f.client.sentCount(AttrGRPCConfiguration))
}

func TestGRPCUpdateSkipsIdenticalConfiguration(t *testing.T) {
	f := newTestFixture(t)

	// Matches the seeded (disabled) configuration exactly.
	require.NoError(t, f.engine.ProcessUpdate(AttributeUpdateRequest{
		AttrGRPCConfiguration: rawPayload(t, map[string]any{"enabled": false, "serverPort": 0}),
	}))

	assert.Zero(t, f.runtime.loadCount())
	assert.Zero(t, f.client.sentCount(AttrGRPCConfiguration))
}

func TestGRPCDisableStopsTransport(t *testing.T) {
	f := newTestFixture(t)

	require.NoError(t, f.engine.ProcessUpdate(AttributeUpdateRequest{
		AttrGRPCConfiguration: rawPayload(t, map[string]any{"enabled": true, "serverPort": 0}),
	}))
	require.NotNil(t, f.engine.GRPCService())

	require.NoError(t, f.engine.ProcessUpdate(AttributeUpdateRequest{
		AttrGRPCConfiguration: rawPayload(t, map[string]any{"enabled": false, "serverPort": 0}),
	}))
	assert.Nil(t, f.engine.GRPCService())
	assert.False(t, f.engine.Configuration().GRPC().Enabled)
}
