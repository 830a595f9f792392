package reading

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Repository defines persistence operations for readings.
// Implementations return ErrReadingNotFound for unknown ids.
type Repository interface {
	// Query returns every reading matching f, ordered by id.
	Query(ctx context.Context, f Filter) ([]Reading, error)

	// GetByID retrieves a reading by id.
	GetByID(ctx context.Context, id int64) (*Reading, error)

	// CreateBatch inserts all readings atomically and returns them with
	// their assigned ids. Either every reading is stored or none is.
	CreateBatch(ctx context.Context, readings []Reading) ([]Reading, error)

	// Update overwrites value and loggedAt of the reading with r.ID.
	Update(ctx context.Context, r *Reading) error

	// Delete removes the reading with the given id.
	Delete(ctx context.Context, id int64) error

	// Count returns the number of stored readings.
	Count(ctx context.Context) (int, error)
}

// SQLiteRepository implements Repository on the power_readings table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a SQLite-backed repository.
// The schema must already be migrated.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Query returns every reading matching f, ordered by id.
func (r *SQLiteRepository) Query(ctx context.Context, f Filter) ([]Reading, error) {
	where, args := f.whereClause()
	query := "SELECT id, value, logged_at FROM power_readings" + where + " ORDER BY id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying readings: %w", err)
	}
	defer rows.Close()

	var readings []Reading
	for rows.Next() {
		reading, err := scanReading(rows)
		if err != nil {
			return nil, err
		}
		readings = append(readings, *reading)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating readings: %w", err)
	}
	return readings, nil
}

// GetByID retrieves a reading by id.
func (r *SQLiteRepository) GetByID(ctx context.Context, id int64) (*Reading, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT id, value, logged_at FROM power_readings WHERE id = ?", id)

	reading, err := scanReading(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrReadingNotFound
		}
		return nil, err
	}
	return reading, nil
}

// CreateBatch inserts all readings in one transaction.
func (r *SQLiteRepository) CreateBatch(ctx context.Context, readings []Reading) ([]Reading, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO power_readings (value, logged_at) VALUES (?, ?)")
	if err != nil {
		return nil, fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	created := make([]Reading, 0, len(readings))
	for i, reading := range readings {
		res, err := stmt.ExecContext(ctx, reading.Value, formatTimestamp(reading.LoggedAt))
		if err != nil {
			return nil, fmt.Errorf("inserting reading %d of %d: %w", i+1, len(readings), err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("reading inserted id: %w", err)
		}
		created = append(created, Reading{
			ID:       id,
			Value:    reading.Value,
			LoggedAt: reading.LoggedAt.UTC(),
		})
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing readings: %w", err)
	}
	return created, nil
}

// Update overwrites value and loggedAt of the reading with reading.ID.
func (r *SQLiteRepository) Update(ctx context.Context, reading *Reading) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE power_readings SET value = ?, logged_at = ? WHERE id = ?",
		reading.Value, formatTimestamp(reading.LoggedAt), reading.ID)
	if err != nil {
		return fmt.Errorf("updating reading %d: %w", reading.ID, err)
	}
	if err := requireAffected(res); err != nil {
		return err
	}
	reading.LoggedAt = reading.LoggedAt.UTC()
	return nil
}

// Delete removes the reading with the given id.
func (r *SQLiteRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM power_readings WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting reading %d: %w", id, err)
	}
	return requireAffected(res)
}

// Count returns the number of stored readings.
func (r *SQLiteRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM power_readings").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting readings: %w", err)
	}
	return n, nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrReadingNotFound
	}
	return nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanReading(s rowScanner) (*Reading, error) {
	var (
		reading  Reading
		loggedAt string
	)
	if err := s.Scan(&reading.ID, &reading.Value, &loggedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning reading: %w", err)
	}

	t, err := parseStoredTimestamp(loggedAt)
	if err != nil {
		return nil, err
	}
	reading.LoggedAt = t
	return &reading, nil
}
