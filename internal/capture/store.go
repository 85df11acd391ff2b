package capture

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/scenesync/internal/monitoring"
	"github.com/banshee-data/scenesync/internal/sensor"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store is a SQLite capture index: one raw_samples row per recorded sample,
// plus the history of export runs made from it.
type Store struct {
	*sql.DB
}

// ExportRun summarises one completed batch pass.
type ExportRun struct {
	RunID      string
	Version    string
	Keyframes  int
	SampleData int
	OutputRoot string
	FinishedAt time.Time
}

// OpenStore opens (or creates) the capture index at path and applies any
// pending migrations.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// A single connection keeps ":memory:" databases coherent.
	db.SetMaxOpenConns(1)

	s := &Store{db}
	if err := s.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// MigrateUp runs all pending migrations up to the latest version.
func (s *Store) MigrateUp() error {
	m, err := s.newMigrate()
	if err != nil {
		return err
	}
	// m is not closed: that would close the shared *sql.DB.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// MigrateVersion returns the current schema version; 0 when none is applied.
func (s *Store) MigrateVersion() (uint, bool, error) {
	m, err := s.newMigrate()
	if err != nil {
		return 0, false, err
	}
	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

func (s *Store) newMigrate() (*migrate.Migrate, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(s.DB, &sqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	m.Log = &migrateLogger{}
	return m, nil
}

// migrateLogger implements migrate.Logger on top of the package logger.
type migrateLogger struct{}

func (l *migrateLogger) Printf(format string, v ...interface{}) {
	monitoring.Logf("[migrate] "+format, v...)
}

func (l *migrateLogger) Verbose() bool {
	return false
}

// Insert appends samples in one transaction.
func (s *Store) Insert(ctx context.Context, samples ...sensor.RawSample) error {
	tx, err := s.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO raw_samples (channel, frame_id, timestamp_us, payload_path)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare sample insert: %w", err)
	}
	defer stmt.Close()

	for _, rs := range samples {
		if _, err := stmt.ExecContext(ctx, rs.Channel, rs.FrameID, rs.TimestampUS, rs.PayloadPath); err != nil {
			return fmt.Errorf("failed to insert %s frame %d: %w", rs.Channel, rs.FrameID, err)
		}
	}
	return tx.Commit()
}

// InsertSnapshot stores every sample of a snapshot.
func (s *Store) InsertSnapshot(ctx context.Context, snap Snapshot) error {
	for _, ch := range snap.Channels() {
		if err := s.Insert(ctx, snap.Samples(ch)...); err != nil {
			return err
		}
	}
	return nil
}

// Snapshot reads the whole index, preserving per-channel insertion order.
func (s *Store) Snapshot(ctx context.Context, root string) (Snapshot, error) {
	rows, err := s.QueryContext(ctx, `
		SELECT channel, frame_id, timestamp_us, payload_path
		FROM raw_samples
		ORDER BY sample_id
	`)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to query raw samples: %w", err)
	}
	defer rows.Close()

	chans := make(map[string][]sensor.RawSample)
	for rows.Next() {
		var rs sensor.RawSample
		if err := rows.Scan(&rs.Channel, &rs.FrameID, &rs.TimestampUS, &rs.PayloadPath); err != nil {
			return Snapshot{}, fmt.Errorf("failed to scan raw sample: %w", err)
		}
		chans[rs.Channel] = append(chans[rs.Channel], rs)
	}
	if err := rows.Err(); err != nil {
		return Snapshot{}, err
	}
	return NewSnapshot(root, chans), nil
}

// RecordExport appends an export_runs row.
func (s *Store) RecordExport(ctx context.Context, run ExportRun) error {
	_, err := s.ExecContext(ctx, `
		INSERT INTO export_runs (run_id, version, keyframes, sample_data, output_root, finished_at_us)
		VALUES (?, ?, ?, ?, ?, ?)
	`, run.RunID, run.Version, run.Keyframes, run.SampleData, run.OutputRoot, run.FinishedAt.UnixMicro())
	if err != nil {
		return fmt.Errorf("failed to record export run %s: %w", run.RunID, err)
	}
	return nil
}

// ExportRuns lists recorded runs, oldest first.
func (s *Store) ExportRuns(ctx context.Context) ([]ExportRun, error) {
	rows, err := s.QueryContext(ctx, `
		SELECT run_id, version, keyframes, sample_data, output_root, finished_at_us
		FROM export_runs
		ORDER BY finished_at_us, run_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query export runs: %w", err)
	}
	defer rows.Close()

	var runs []ExportRun
	for rows.Next() {
		var run ExportRun
		var finishedUS int64
		if err := rows.Scan(&run.RunID, &run.Version, &run.Keyframes, &run.SampleData, &run.OutputRoot, &finishedUS); err != nil {
			return nil, fmt.Errorf("failed to scan export run: %w", err)
		}
		run.FinishedAt = time.UnixMicro(finishedUS).UTC()
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
