package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/davigarmo/MercaderErrante/server/internal/events"
)

// SaveRecord is one stored save slot.
type SaveRecord struct {
	Slot      string          `json:"slot"`
	SaveID    string          `json:"save_id"`
	CreatedAt time.Time       `json:"created_at"`
	Snapshot  json.RawMessage `json:"snapshot"`
}

// SaveRepository persists whole-simulation snapshots by slot name.
type SaveRepository struct {
	db *DB
}

// NewSaveRepository creates a save repository.
func NewSaveRepository(db *DB) *SaveRepository {
	return &SaveRepository{db: db}
}

// Upsert writes a snapshot into a slot, replacing any previous save there.
func (r *SaveRepository) Upsert(ctx context.Context, slot string, snapshot interface{}) (string, error) {
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}

	saveID := uuid.NewString()
	query := r.db.rebind(`
		INSERT INTO saves (slot, save_id, created_at, snapshot)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(slot) DO UPDATE SET
			save_id=excluded.save_id,
			created_at=excluded.created_at,
			snapshot=excluded.snapshot
	`)
	if _, err := r.db.ExecContext(ctx, query, slot, saveID, time.Now(), string(raw)); err != nil {
		return "", fmt.Errorf("upsert save: %w", err)
	}
	return saveID, nil
}

// Get loads the save in a slot. Returns nil when the slot is empty.
func (r *SaveRepository) Get(ctx context.Context, slot string) (*SaveRecord, error) {
	query := r.db.rebind(`SELECT slot, save_id, created_at, snapshot FROM saves WHERE slot = ?`)

	var rec SaveRecord
	var raw string
	err := r.db.QueryRowContext(ctx, query, slot).Scan(&rec.Slot, &rec.SaveID, &rec.CreatedAt, &raw)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("load save: %w", err)
	}
	rec.Snapshot = json.RawMessage(raw)
	return &rec, nil
}

// List returns all save slots, newest first.
func (r *SaveRepository) List(ctx context.Context) ([]SaveRecord, error) {
	query := `SELECT slot, save_id, created_at, snapshot FROM saves ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list saves: %w", err)
	}
	defer rows.Close()

	var recs []SaveRecord
	for rows.Next() {
		var rec SaveRecord
		var raw string
		if err := rows.Scan(&rec.Slot, &rec.SaveID, &rec.CreatedAt, &raw); err != nil {
			return nil, err
		}
		rec.Snapshot = json.RawMessage(raw)
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// JournalRepository persists simulation events. It satisfies events.Persister
// through the adapter below.
type JournalRepository struct {
	db *DB
}

// NewJournalRepository creates a journal repository.
func NewJournalRepository(db *DB) *JournalRepository {
	return &JournalRepository{db: db}
}

// Append inserts one event into the journal table.
func (r *JournalRepository) Append(ctx context.Context, e events.SimEvent) error {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	query := r.db.rebind(`
		INSERT INTO journal (id, timestamp, event_type, actor, target, payload, game_day)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	_, err = r.db.ExecContext(ctx, query,
		e.ID, e.Timestamp, string(e.Type), e.Actor, e.Target, string(payload), e.GameDay,
	)
	if err != nil {
		return fmt.Errorf("append journal event: %w", err)
	}
	return nil
}

// GetByDay retrieves all persisted events from one absolute game day.
func (r *JournalRepository) GetByDay(ctx context.Context, day int64) ([]events.SimEvent, error) {
	query := r.db.rebind(`
		SELECT id, timestamp, event_type, actor, target, payload, game_day
		FROM journal WHERE game_day = ? ORDER BY timestamp ASC
	`)
	rows, err := r.db.QueryContext(ctx, query, day)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []events.SimEvent
	for rows.Next() {
		var e events.SimEvent
		var eventType, payload string
		if err := rows.Scan(&e.ID, &e.Timestamp, &eventType, &e.Actor, &e.Target, &payload, &e.GameDay); err != nil {
			return nil, err
		}
		e.Type = events.EventType(eventType)
		if err := json.Unmarshal([]byte(payload), &e.Payload); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// PersisterAdapter adapts JournalRepository to the events.Persister interface
// used by the in-memory journal's write-through.
type PersisterAdapter struct {
	Repo *JournalRepository
}

// Append implements events.Persister.
func (a *PersisterAdapter) Append(e events.SimEvent) error {
	return a.Repo.Append(context.Background(), e)
}

var _ events.Persister = (*PersisterAdapter)(nil)
