package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"resume-pricing-api/internal/models"
)

// DefaultHistoryLimit is used by ListSnapshots when limit is not positive.
const DefaultHistoryLimit = 20

// timeLayout has a fixed width so recorded_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// DB wraps the database connection and stores the pricing snapshot history.
type DB struct {
	conn *sql.DB
}

// NewDB creates a new database connection and initializes the schema.
func NewDB(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// initSchema creates the necessary tables if they don't exist.
func (db *DB) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS pricing_snapshots (
			id TEXT PRIMARY KEY,
			currency TEXT NOT NULL,
			status TEXT NOT NULL,
			offer_id TEXT NOT NULL DEFAULT '',
			final_prices TEXT NOT NULL,
			error TEXT NOT NULL DEFAULT '',
			recorded_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_recorded_at ON pricing_snapshots(recorded_at)`,
	}

	for _, query := range queries {
		if _, err := db.conn.Exec(query); err != nil {
			return fmt.Errorf("failed to execute schema query: %w", err)
		}
	}

	return nil
}

// SnapshotFromState condenses a published state into a history record.
func SnapshotFromState(state *models.PricingState, recordedAt time.Time) models.Snapshot {
	snap := models.Snapshot{
		Currency:    state.Currency,
		Status:      state.Status,
		FinalPrices: state.FinalPrices.Clone(),
		Error:       state.Error,
		RecordedAt:  recordedAt.UTC(),
	}
	if state.ActiveOffer != nil {
		snap.OfferID = state.ActiveOffer.ID
	}
	return snap
}

// InsertSnapshot stores a snapshot, assigning an ID when it has none.
func (db *DB) InsertSnapshot(snap models.Snapshot) (models.Snapshot, error) {
	if snap.ID == "" {
		snap.ID = uuid.NewString()
	}
	if snap.RecordedAt.IsZero() {
		snap.RecordedAt = time.Now().UTC()
	}

	prices, err := json.Marshal(snap.FinalPrices)
	if err != nil {
		return snap, fmt.Errorf("failed to encode final prices: %w", err)
	}

	_, err = db.conn.Exec(
		`INSERT INTO pricing_snapshots (
			id, currency, status, offer_id, final_prices, error, recorded_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		snap.ID,
		string(snap.Currency),
		string(snap.Status),
		snap.OfferID,
		string(prices),
		snap.Error,
		snap.RecordedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return snap, fmt.Errorf("failed to insert snapshot: %w", err)
	}

	return snap, nil
}

// ListSnapshots returns the most recent snapshots, newest first.
func (db *DB) ListSnapshots(limit int) ([]models.Snapshot, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	rows, err := db.conn.Query(`SELECT id, currency, status, offer_id, final_prices, error, recorded_at
		FROM pricing_snapshots
		ORDER BY recorded_at DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	snapshots := []models.Snapshot{}
	for rows.Next() {
		var snap models.Snapshot
		var currency, status, prices, recordedAt string

		err := rows.Scan(
			&snap.ID,
			&currency,
			&status,
			&snap.OfferID,
			&prices,
			&snap.Error,
			&recordedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}

		snap.Currency = models.Currency(currency)
		snap.Status = models.Status(status)
		if err := json.Unmarshal([]byte(prices), &snap.FinalPrices); err != nil {
			return nil, fmt.Errorf("failed to decode final prices of %s: %w", snap.ID, err)
		}
		snap.RecordedAt, err = time.Parse(timeLayout, recordedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse recorded_at: %w", err)
		}

		snapshots = append(snapshots, snap)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshots: %w", err)
	}

	return snapshots, nil
}
