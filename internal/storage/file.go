package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"harvester/internal/checkpoint"
	"harvester/internal/domain"
)

// FileStore is the default durable store: an append-only JSONL record file
// plus a small JSON state file written via rename so a crash never leaves a
// torn checkpoint.
type FileStore struct {
	recordsPath string
	statePath   string
}

func NewFileStore(recordsPath, statePath string) *FileStore {
	return &FileStore{recordsPath: recordsPath, statePath: statePath}
}

func (s *FileStore) Load(_ context.Context) (checkpoint.State, bool, error) {
	data, err := os.ReadFile(s.statePath)
	if errors.Is(err, fs.ErrNotExist) {
		return checkpoint.State{}, false, nil
	}
	if err != nil {
		return checkpoint.State{}, false, fmt.Errorf("reading state file: %w", err)
	}
	var state checkpoint.State
	if err := json.Unmarshal(data, &state); err != nil {
		return checkpoint.State{}, false, fmt.Errorf("decoding state file: %w", err)
	}
	return state, true, nil
}

func (s *FileStore) Flush(_ context.Context, records []domain.ObjectRecord, state checkpoint.State) error {
	if len(records) > 0 {
		if err := s.appendRecords(records); err != nil {
			return err
		}
	}
	return s.writeState(state)
}

func (s *FileStore) appendRecords(records []domain.ObjectRecord) error {
	f, err := os.OpenFile(s.recordsPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening record file: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for i := range records {
		if err := enc.Encode(&records[i]); err != nil {
			return fmt.Errorf("writing record %d: %w", records[i].ObjectID, err)
		}
	}
	return f.Sync()
}

func (s *FileStore) writeState(state checkpoint.State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	tmp := s.statePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing state file: %w", err)
	}
	return os.Rename(tmp, s.statePath)
}

// ReadRecords loads every record flushed so far, oldest first.
func (s *FileStore) ReadRecords() ([]domain.ObjectRecord, error) {
	f, err := os.Open(s.recordsPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var records []domain.ObjectRecord
	dec := json.NewDecoder(f)
	for dec.More() {
		var rec domain.ObjectRecord
		if err := dec.Decode(&rec); err != nil {
			return records, fmt.Errorf("decoding %s: %w", filepath.Base(s.recordsPath), err)
		}
		records = append(records, rec)
	}
	return records, nil
}
