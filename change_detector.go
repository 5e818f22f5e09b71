// change_detector.go: redundant-update detection for attribute payloads
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package remoteconfig

import (
	"encoding/json"

	"github.com/cespare/xxhash/v2"
)

// ChangeDetector decides whether an incoming attribute payload actually
// differs from the stored state, so unchanged pushes are skipped before any
// handler runs.
//
// Domain configurations are compared by timestamp: a payload whose ts is not
// newer than the backing file's last-modified time is considered already
// applied. Attributes without a backing file (RemoteLoggingLevel,
// active_connectors) always count as modified. Connector payload content is
// additionally compared by digest inside the connector handler.
type ChangeDetector struct {
	files       *Persistence
	staticFiles map[string]string
	logger      Logger
}

// NewChangeDetector creates a detector over the given persistence layer.
// staticFiles maps attribute names that carry no configuration path of their
// own to their backing file (logs_configuration -> logs.json).
func NewChangeDetector(files *Persistence, logger Logger) *ChangeDetector {
	return &ChangeDetector{
		files: files,
		staticFiles: map[string]string{
			AttrLogsConfiguration: LogsConfigFileName,
		},
		logger: NewLogger(logger),
	}
}

// payloadStamp is the minimal view of a payload the detector needs: the
// optional explicit file reference and the server-side timestamp in
// milliseconds.
type payloadStamp struct {
	Configuration string `json:"configuration"`
	TS            int64  `json:"ts"`
}

// IsModified reports whether the payload for the named attribute differs
// from local state and must be processed.
func (d *ChangeDetector) IsModified(attribute string, payload json.RawMessage) bool {
	var stamp payloadStamp
	if err := json.Unmarshal(payload, &stamp); err != nil {
		// Scalar payloads (e.g. a bare logging level) carry no file
		// reference; fall back to the static table.
		stamp = payloadStamp{}
	}

	file := stamp.Configuration
	if file == "" {
		file = d.staticFiles[attribute]
	}
	if file == "" {
		// No persisted timestamp to compare against.
		return true
	}

	modTime, err := d.files.ModTime(file)
	if err != nil {
		d.logger.Warn("Configuration file does not exist", "file", d.files.Path(file))
		return true
	}

	if stamp.TS > 0 && stamp.TS <= modTime.UnixMilli() {
		return false
	}
	return true
}

// ContentDigest computes a checksum over the canonical JSON serialization of
// v. encoding/json emits map keys in sorted order, so structurally equal
// values digest equally regardless of input ordering.
func ContentDigest(v any) uint64 {
	data, err := json.Marshal(v)
	if err != nil {
		return 0
	}
	return xxhash.Sum64(data)
}

// sameContent reports canonical-serialization equality of two values.
func sameContent(a, b any) bool {
	return ContentDigest(a) == ContentDigest(b)
}
