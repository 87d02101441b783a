// Package pairing persists the single PairingRecord for the last successful
// provisioning attempt. The atomic write uses the write-temp/fsync/rename
// idiom (os.CreateTemp/os.Rename); see DESIGN.md for why this stays on the
// standard library rather than a third-party dependency.
package pairing

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/sagehq/provisiond/pkg/errs"
)

// Record is the durable pairing record described in the design.
type Record struct {
	DeviceID   string `json:"device_id"`
	DeviceName string `json:"device_name"`
	PairedAt   string `json:"paired_at"` // ISO-8601 UTC
}

// NewRecord builds a Record stamped with the current time.
func NewRecord(deviceID, deviceName string, pairedAt time.Time) Record {
	return Record{
		DeviceID:   deviceID,
		DeviceName: deviceName,
		PairedAt:   pairedAt.UTC().Format(time.RFC3339),
	}
}

func (r Record) validate() error {
	if r.DeviceID == "" || r.DeviceName == "" || r.PairedAt == "" {
		return errs.New(errs.Internal, "pairing record missing required field")
	}
	if _, err := time.Parse(time.RFC3339, r.PairedAt); err != nil {
		return errs.Wrap(errs.Internal, "pairing record has an invalid paired_at timestamp", err)
	}
	return nil
}

// Store is a single-file persistent record at <state_dir>/pairing.json.
type Store struct {
	path string
}

// NewStore builds a Store rooted at stateDir.
func NewStore(stateDir string) *Store {
	return &Store{path: filepath.Join(stateDir, "pairing.json")}
}

// Load returns the record if and only if the file exists, parses cleanly,
// and validates. Any other condition is treated as "no record".
func (s *Store) Load() (*Record, bool) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.WithError(err).Warn("pairing: failed to read pairing record")
		}
		return nil, false
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		log.WithError(err).Warn("pairing: pairing record is corrupt, ignoring")
		return nil, false
	}
	if err := rec.validate(); err != nil {
		log.WithError(err).Warn("pairing: pairing record failed validation, ignoring")
		return nil, false
	}
	return &rec, true
}

// Save atomically replaces the pairing record: write to a temp sibling,
// fsync, rename. Readers always observe the pre-save or post-save record,
// never a torn one.
func (s *Store) Save(rec Record) error {
	if err := rec.validate(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(rec, "", " ")
	if err != nil {
		return errs.Wrap(errs.Internal, "failed to encode pairing record", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errs.Wrap(errs.PersistenceError, "failed to create state directory", err)
	}

	tmp, err := os.CreateTemp(dir, ".pairing-*.tmp")
	if err != nil {
		return errs.Wrap(errs.PersistenceError, "failed to create temp file", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once the rename below succeeds

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errs.Wrap(errs.PersistenceError, "failed to write temp file", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errs.Wrap(errs.PersistenceError, "failed to fsync temp file", err)
	}
	if err := tmp.Close(); err != nil {
		return errs.Wrap(errs.PersistenceError, "failed to close temp file", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return errs.Wrap(errs.PersistenceError, "failed to rename pairing record into place", err)
	}

	log.WithField("device_id", rec.DeviceID).Info("pairing: record saved")
	return nil
}

// Clear removes the pairing record, if any (used on unpair).
func (s *Store) Clear() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return errs.Wrap(errs.PersistenceError, fmt.Sprintf("failed to remove %s", s.path), err)
	}
	return nil
}
