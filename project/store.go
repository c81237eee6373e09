package project

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"
)

// BucketFiles is the KV bucket holding file records.
const BucketFiles = "DOCFLOW_FILES"

// Store provides file record storage backed by NATS KV. Keys are
// "p<projectID>.<recordID>" so per-project listing is a key-prefix scan.
type Store struct {
	files jetstream.KeyValue
}

// NewStore creates a Store, creating the files bucket if needed.
func NewStore(ctx context.Context, js jetstream.JetStream) (*Store, error) {
	files, err := getOrCreateBucket(ctx, js, BucketFiles)
	if err != nil {
		return nil, fmt.Errorf("create files bucket: %w", err)
	}
	return &Store{files: files}, nil
}

func getOrCreateBucket(ctx context.Context, js jetstream.JetStream, name string) (jetstream.KeyValue, error) {
	kv, err := js.KeyValue(ctx, name)
	if err == nil {
		return kv, nil
	}
	// Bucket doesn't exist, create it
	return js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      name,
		Description: "Docuflow project file records",
		History:     5,
	})
}

// recordKey builds the KV key for a record.
func recordKey(projectID int, recordID string) string {
	return fmt.Sprintf("p%d.%s", projectID, recordID)
}

// CreateRecord stores a new file record and returns its ID.
func (s *Store) CreateRecord(ctx context.Context, rec *FileRecord) (string, error) {
	if rec.ProjectID <= 0 {
		return "", fmt.Errorf("%w: project id %d", ErrInvalidRecord, rec.ProjectID)
	}
	if rec.Path == "" {
		return "", fmt.Errorf("%w: path required", ErrInvalidRecord)
	}

	rec.ID = uuid.New().String()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	rec.Active = true

	data, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("marshal record: %w", err)
	}

	if _, err := s.files.Create(ctx, recordKey(rec.ProjectID, rec.ID), data); err != nil {
		return "", fmt.Errorf("store record: %w", err)
	}
	return rec.ID, nil
}

// GetRecord retrieves one record.
func (s *Store) GetRecord(ctx context.Context, projectID int, recordID string) (*FileRecord, error) {
	entry, err := s.files.Get(ctx, recordKey(projectID, recordID))
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get record: %w", err)
	}

	var rec FileRecord
	if err := json.Unmarshal(entry.Value(), &rec); err != nil {
		return nil, fmt.Errorf("unmarshal record: %w", err)
	}
	return &rec, nil
}

// ListRecords returns every record for a project, active or not.
// Corrupt entries are skipped; bucket-level failures are returned so
// callers never mistake an outage for an empty project.
func (s *Store) ListRecords(ctx context.Context, projectID int) ([]*FileRecord, error) {
	keys, err := s.files.Keys(ctx)
	if err != nil {
		if errors.Is(err, jetstream.ErrNoKeysFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("list record keys: %w", err)
	}

	prefix := fmt.Sprintf("p%d.", projectID)
	records := make([]*FileRecord, 0, len(keys))
	for _, key := range keys {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		entry, err := s.files.Get(ctx, key)
		if err != nil {
			if errors.Is(err, jetstream.ErrKeyNotFound) {
				continue // deleted between Keys and Get
			}
			return nil, fmt.Errorf("get record %s: %w", key, err)
		}
		var rec FileRecord
		if err := json.Unmarshal(entry.Value(), &rec); err != nil {
			continue
		}
		records = append(records, &rec)
	}
	return records, nil
}

// DeactivateRecord marks a record inactive so it no longer contributes
// to project state. The record itself is kept for audit.
func (s *Store) DeactivateRecord(ctx context.Context, projectID int, recordID string) error {
	rec, err := s.GetRecord(ctx, projectID, recordID)
	if err != nil {
		return err
	}
	rec.Active = false

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	if _, err := s.files.Put(ctx, recordKey(projectID, recordID), data); err != nil {
		return fmt.Errorf("update record: %w", err)
	}
	return nil
}
