// helpers_test.go: shared fixtures and fake collaborators for engine tests
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package remoteconfig

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeClient is a controllable TransportClient implementation.
type fakeClient struct {
	mu          sync.Mutex
	connected   bool
	stopped     bool
	connectErr  error
	stayOffline bool
	sendErr     error
	sharedAttrs map[string]any
	sharedErr   error
	sent        []map[string]any
	subscribes  int

	// sendStarted receives a signal when SendAttributes is entered;
	// sendBlock, when non-nil, blocks SendAttributes until closed.
	sendStarted chan struct{}
	sendBlock   chan struct{}
}

func (c *fakeClient) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.connectErr != nil {
		return c.connectErr
	}
	if !c.stayOffline {
		c.connected = true
	}
	return nil
}

func (c *fakeClient) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	return nil
}

func (c *fakeClient) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopped = true
}

func (c *fakeClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *fakeClient) SendAttributes(attributes map[string]any) error {
	if c.sendStarted != nil {
		select {
		case c.sendStarted <- struct{}{}:
		default:
		}
	}
	if c.sendBlock != nil {
		<-c.sendBlock
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, attributes)
	return c.sendErr
}

func (c *fakeClient) RequestSharedAttributes(ctx context.Context, keys []string) (map[string]any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sharedErr != nil {
		return nil, c.sharedErr
	}
	return c.sharedAttrs, nil
}

func (c *fakeClient) SubscribeToRequiredTopics() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribes++
	return nil
}

// sentValue returns the last published value for the given attribute key.
func (c *fakeClient) sentValue(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.sent) - 1; i >= 0; i-- {
		if v, ok := c.sent[i][key]; ok {
			return v, true
		}
	}
	return nil, false
}

// sentCount counts publishes carrying the given attribute key.
func (c *fakeClient) sentCount(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, attrs := range c.sent {
		if _, ok := attrs[key]; ok {
			n++
		}
	}
	return n
}

func (c *fakeClient) subscribeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.subscribes
}

// fakeStorage is a controllable EventStorage implementation.
type fakeStorage struct {
	cfg    StorageConfig
	closed bool
}

func (s *fakeStorage) Close() error {
	s.closed = true
	return nil
}

// fakeRuntime is a controllable ConnectorRuntime implementation.
type fakeRuntime struct {
	mu         sync.Mutex
	active     []string
	loads      int
	connects   int
	closed     []string
	loadErr    error
	connectErr error
}

func (r *fakeRuntime) LoadConnectors(cfg *LocalConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.loadErr != nil {
		return r.loadErr
	}
	r.loads++
	r.active = r.active[:0]
	for _, summary := range cfg.Connectors {
		r.active = append(r.active, summary.Name)
	}
	return nil
}

func (r *fakeRuntime) ConnectConnectors() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.connectErr != nil {
		return r.connectErr
	}
	r.connects++
	return nil
}

func (r *fakeRuntime) ActiveConnectors() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.active))
	copy(out, r.active)
	return out
}

func (r *fakeRuntime) CloseConnector(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = append(r.closed, name)
	for i, active := range r.active {
		if active == name {
			r.active = append(r.active[:i], r.active[i+1:]...)
			break
		}
	}
	return nil
}

func (r *fakeRuntime) loadCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loads
}

func (r *fakeRuntime) closedNames() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.closed))
	copy(out, r.closed)
	return out
}

// fakeSubsystems is a controllable SubsystemManager implementation.
// The statsFailures / filterFailures / shellFailures counters make the
// next N calls fail, so apply can fail while the revert succeeds.
type fakeSubsystems struct {
	mu             sync.Mutex
	statsCalls     []StatisticsConfig
	filterCalls    []map[string]any
	shellCalls     []map[string]any
	statsFailures  int
	filterFailures int
	shellFailures  int
}

type subsystemError struct{ what string }

func (e subsystemError) Error() string { return e.what + " subsystem refused the configuration" }

func (s *fakeSubsystems) InitStatistics(cfg StatisticsConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statsCalls = append(s.statsCalls, cfg)
	if s.statsFailures > 0 {
		s.statsFailures--
		return subsystemError{"statistics"}
	}
	return nil
}

func (s *fakeSubsystems) InitDeviceFiltering(cfg map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filterCalls = append(s.filterCalls, cfg)
	if s.filterFailures > 0 {
		s.filterFailures--
		return subsystemError{"device filtering"}
	}
	return nil
}

func (s *fakeSubsystems) InitRemoteShell(cfg map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shellCalls = append(s.shellCalls, cfg)
	if s.shellFailures > 0 {
		s.shellFailures--
		return subsystemError{"remote shell"}
	}
	return nil
}

func (s *fakeSubsystems) statsCallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.statsCalls)
}

// testFixture wires an engine over a seeded temp directory with fake
// collaborators.
type testFixture struct {
	t       *testing.T
	dir     string
	client  *fakeClient
	runtime *fakeRuntime
	subs    *fakeSubsystems
	engine  *Engine

	mu          sync.Mutex
	clients     map[string]*fakeClient
	factoryCfgs []GeneralConfig
	factoryErr  error
	storages    []*fakeStorage
	storageErr  error
}

func baseGeneral() GeneralConfig {
	return GeneralConfig{
		Host: "localhost",
		Port: 1883,
		QoS:  1,
		Security: map[string]any{
			"type":        "accessToken",
			"accessToken": "abc",
		},
		Statistics: &StatisticsConfig{
			Enable:                   true,
			StatsSendPeriodInSeconds: 3600,
		},
		MaxPayloadSizeBytes: 1024,
		MinPackSendDelayMS:  200,
		MinPackSizeToSend:   50,
	}
}

func writeJSONFile(t *testing.T, dir, name string, v any) {
	t.Helper()
	data, err := json.MarshalIndent(v, "", "  ")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o600))
}

func seedConfigDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	local := LocalConfig{
		General: baseGeneral(),
		Storage: StorageConfig{Type: "memory", ReadRecordsCount: 100},
		GRPC:    GRPCConfig{},
		Connectors: []ConnectorSummary{
			{Type: "modbus", Name: "Modbus", Configuration: "modbus.json"},
		},
	}
	writeJSONFile(t, dir, GeneralConfigFileName, local)
	writeJSONFile(t, dir, LogsConfigFileName, map[string]any{"level": "INFO"})
	writeJSONFile(t, dir, "modbus.json", map[string]any{
		"logLevel":   "INFO",
		"name":       "Modbus",
		"pollPeriod": 1000,
	})
	return dir
}

func newTestFixture(t *testing.T) *testFixture {
	t.Helper()

	f := &testFixture{
		t:       t,
		dir:     seedConfigDir(t),
		client:  &fakeClient{connected: true, sharedAttrs: map[string]any{AttrVersion: "9.9"}},
		runtime: &fakeRuntime{active: []string{"Modbus"}},
		subs:    &fakeSubsystems{},
		clients: map[string]*fakeClient{},
	}

	deps := Dependencies{
		Client: f.client,
		NewClient: func(cfg GeneralConfig, configDir string) (TransportClient, error) {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.factoryCfgs = append(f.factoryCfgs, cfg)
			if f.factoryErr != nil {
				return nil, f.factoryErr
			}
			client, ok := f.clients[cfg.Host]
			if !ok {
				client = &fakeClient{}
				f.clients[cfg.Host] = client
			}
			return client, nil
		},
		NewStorage: func(cfg StorageConfig) (EventStorage, error) {
			f.mu.Lock()
			defer f.mu.Unlock()
			if f.storageErr != nil {
				return nil, f.storageErr
			}
			storage := &fakeStorage{cfg: cfg}
			f.storages = append(f.storages, storage)
			return storage, nil
		},
		Connectors: f.runtime,
		Subsystems: f.subs,
		Logger:     NewTestLogger(),
	}

	engine, err := New(deps, Options{
		ConfigDir: f.dir,
		Version:   "3.4",
		Connection: ConnectionOptions{
			PollInterval: 5 * time.Millisecond,
			Timeout:      250 * time.Millisecond,
		},
	})
	require.NoError(t, err)
	f.engine = engine
	t.Cleanup(engine.Stop)
	return f
}

func rawPayload(t *testing.T, v any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

// backupFiles lists the backup records taken for the named config file.
func backupFiles(t *testing.T, dir, name string) []string {
	t.Helper()
	entries, err := os.ReadDir(filepath.Join(dir, BackupDirName))
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(t, err)
	var out []string
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), name+"_backup_") {
			out = append(out, entry.Name())
		}
	}
	return out
}

func readJSONFile(t *testing.T, dir, name string, v any) {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, v))
}
