// persistence.go: durable configuration files with pre-overwrite backups
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package remoteconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/agilira/argus"
	"github.com/agilira/go-timecache"
	"gopkg.in/yaml.v3"
)

// Persistence reads and writes the engine's configuration files inside a
// single configuration directory. Every tracked overwrite is preceded by a
// timestamped backup under the backup/ subdirectory, and writes go through
// a temp-file-then-rename step so a crash mid-write never truncates the
// previous content.
type Persistence struct {
	dir    string
	logger Logger
}

// NewPersistence creates a persistence layer rooted at dir.
func NewPersistence(dir string, logger Logger) *Persistence {
	return &Persistence{dir: dir, logger: NewLogger(logger)}
}

// Dir returns the configuration directory.
func (p *Persistence) Dir() string {
	return p.dir
}

// Path resolves a configuration file name inside the directory.
func (p *Persistence) Path(name string) string {
	return filepath.Join(p.dir, name)
}

// Exists reports whether the named configuration file is present.
func (p *Persistence) Exists(name string) bool {
	_, err := os.Stat(p.Path(name))
	return err == nil
}

// ModTime returns the last-modified time of the named file.
func (p *Persistence) ModTime(name string) (time.Time, error) {
	info, err := os.Stat(p.Path(name))
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}

// ReadConfig loads the named configuration file into v. The format follows
// the file extension: JSON is the native format, YAML is accepted as a
// fallback, anything else is tried as JSON first and YAML second.
func (p *Persistence) ReadConfig(name string, v any) error {
	path := p.Path(name)
	data, err := os.ReadFile(path) // #nosec G304 -- path is rooted in the config dir
	if err != nil {
		return NewConfigReadError(path, err)
	}

	switch argus.DetectFormat(path) {
	case argus.FormatJSON:
		err = json.Unmarshal(data, v)
	case argus.FormatYAML:
		err = yaml.Unmarshal(data, v)
	default:
		if err = json.Unmarshal(data, v); err != nil {
			err = yaml.Unmarshal(data, v)
		}
	}
	if err != nil {
		return NewConfigReadError(path, err)
	}
	return nil
}

// WriteConfig serializes v as human-formatted JSON and replaces the named
// file atomically (write to temp, then rename).
func (p *Persistence) WriteConfig(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return NewConfigWriteError(p.Path(name), err)
	}
	return p.writeRaw(p.Path(name), append(data, '\n'))
}

// Backup writes a timestamped copy of data alongside the backup/
// subdirectory, named <file>_backup_<unix-timestamp>. Backups are an
// unbounded append-only history; nothing prunes them.
func (p *Persistence) Backup(name string, data any) (string, error) {
	backupDir := filepath.Join(p.dir, BackupDirName)
	if err := os.MkdirAll(backupDir, 0o750); err != nil {
		return "", NewConfigBackupError(backupDir, err)
	}

	serialized, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", NewConfigBackupError(p.Path(name), err)
	}

	backupPath := filepath.Join(backupDir,
		fmt.Sprintf("%s_backup_%d", name, timecache.CachedTime().Unix()))
	if err := os.WriteFile(backupPath, append(serialized, '\n'), 0o600); err != nil {
		return "", NewConfigBackupError(backupPath, err)
	}

	p.logger.Debug("Backup file created for configuration file",
		"file", name, "backup", backupPath)
	return backupPath, nil
}

// BackupCurrent backs up the named file's current on-disk content as-is.
// Missing files are not an error: there is nothing to preserve yet.
func (p *Persistence) BackupCurrent(name string) (string, error) {
	var current any
	if err := p.ReadConfig(name, &current); err != nil {
		if !p.Exists(name) {
			return "", nil
		}
		return "", err
	}
	return p.Backup(name, current)
}

func (p *Persistence) writeRaw(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return NewConfigWriteError(path, err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return NewConfigWriteError(path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return NewConfigWriteError(path, err)
	}
	if err := os.Chmod(tmpPath, 0o600); err != nil {
		_ = os.Remove(tmpPath)
		return NewConfigWriteError(path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return NewConfigWriteError(path, err)
	}
	return nil
}
