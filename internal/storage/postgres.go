package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"harvester/internal/checkpoint"
	"harvester/internal/domain"
)

// PostgresStore persists object records and checkpoint state in PostgreSQL.
// One transaction per flush: records and the checkpoint row commit together,
// so a crash can never record progress for rows that were not written.
type PostgresStore struct {
	db      *pgxpool.Pool
	runName string
}

func NewPostgresStore(connStr, runName string) (*PostgresStore, error) {
	db, err := pgxpool.New(context.Background(), connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	return &PostgresStore{db: db, runName: runName}, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *PostgresStore) Close() {
	s.db.Close()
}

func (s *PostgresStore) Load(ctx context.Context) (checkpoint.State, bool, error) {
	var state checkpoint.State
	err := s.db.QueryRow(ctx,
		`SELECT last_index FROM harvest_checkpoints WHERE run_name = $1`,
		s.runName,
	).Scan(&state.LastIndex)
	if err == pgx.ErrNoRows {
		return checkpoint.State{}, false, nil
	}
	if err != nil {
		return checkpoint.State{}, false, err
	}
	return state, true, nil
}

// Flush upserts every buffered record and the checkpoint row in a single
// transaction.
func (s *PostgresStore) Flush(ctx context.Context, records []domain.ObjectRecord, state checkpoint.State) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for i := range records {
		if err := saveRecord(ctx, tx, &records[i]); err != nil {
			return err
		}
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO harvest_checkpoints (run_name, last_index)
		 VALUES ($1, $2)
		 ON CONFLICT (run_name) DO UPDATE SET
		   last_index = EXCLUDED.last_index, updated_at = NOW()`,
		s.runName, state.LastIndex)
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func saveRecord(ctx context.Context, tx pgx.Tx, rec *domain.ObjectRecord) error {
	f := &rec.Fields
	_, err := tx.Exec(ctx,
		`INSERT INTO harvested_objects (
		   object_id, object_name, title, object_date, culture, period,
		   dynasty, reign, artist_display_name, artist_display_bio, medium,
		   dimensions, classification, department, credit_line, repository,
		   object_url, page_title, page_url, description, description_tier,
		   status, fail_reason, harvested_at
		 ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,
		           $17,$18,$19,$20,$21,$22,$23,$24)
		 ON CONFLICT (object_id) DO UPDATE SET
		   title = EXCLUDED.title, description = EXCLUDED.description,
		   description_tier = EXCLUDED.description_tier,
		   status = EXCLUDED.status, fail_reason = EXCLUDED.fail_reason,
		   harvested_at = EXCLUDED.harvested_at`,
		rec.ObjectID, f.ObjectName, f.Title, f.ObjectDate, f.Culture, f.Period,
		f.Dynasty, f.Reign, f.ArtistDisplayName, f.ArtistDisplayBio, f.Medium,
		f.Dimensions, f.Classification, f.Department, f.CreditLine, f.Repository,
		f.ObjectURL, rec.PageTitle, rec.PageURL, rec.Description.Text,
		string(rec.Description.Tier), string(rec.Status), rec.FailReason,
		rec.HarvestedAt)
	if err != nil {
		return fmt.Errorf("upserting object %d: %w", rec.ObjectID, err)
	}

	// Child rows are replaced wholesale; a re-harvested object carries its
	// latest tabs and manifest only.
	batch := &pgx.Batch{}
	batch.Queue(`DELETE FROM object_tabs WHERE object_id = $1`, rec.ObjectID)
	batch.Queue(`DELETE FROM object_images WHERE object_id = $1`, rec.ObjectID)
	for pos, tab := range rec.Tabs {
		batch.Queue(
			`INSERT INTO object_tabs (object_id, position, label, content) VALUES ($1, $2, $3, $4)`,
			rec.ObjectID, pos, tab.Label, tab.Text)
	}
	for pos, asset := range rec.Images {
		batch.Queue(
			`INSERT INTO object_images (object_id, position, url, local_path, role) VALUES ($1, $2, $3, $4, $5)`,
			rec.ObjectID, pos, asset.URL, asset.LocalPath, string(asset.Role))
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("writing child rows for object %d: %w", rec.ObjectID, err)
	}
	return nil
}
