package sqlite

import (
	"fmt"

	"objectsguesser/internal/model"
)

// RequestRepository implements repository.RequestRepository for SQLite.
type RequestRepository struct {
	db *DB
}

// NewRequestRepository creates a new SQLite request repository.
func NewRequestRepository(db *DB) *RequestRepository {
	return &RequestRepository{db: db}
}

const insertRequest = `
	INSERT INTO requests (method, path, status, duration_ms, remote_addr, timestamp)
	VALUES (?, ?, ?, ?, ?, ?)
`

// InsertBatch adds multiple records in a single transaction.
func (r *RequestRepository) InsertBatch(records []model.RequestRecord) error {
	r.db.Lock()
	defer r.db.Unlock()

	tx, err := r.db.Conn().Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(insertRequest)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		if _, err := stmt.Exec(rec.Method, rec.Path, rec.Status, rec.DurationMs, rec.RemoteAddr, rec.Timestamp); err != nil {
			return fmt.Errorf("failed to insert request: %w", err)
		}
	}

	return tx.Commit()
}

// whereClause builds the shared WHERE part of filtered queries.
func whereClause(filter *model.RequestFilter) (string, []interface{}) {
	query := " WHERE 1=1"
	args := []interface{}{}

	if filter == nil {
		return query, args
	}

	if filter.Path != "" {
		query += " AND path = ?"
		args = append(args, filter.Path)
	}

	if filter.Status != 0 {
		query += " AND status = ?"
		args = append(args, filter.Status)
	}

	if !filter.Since.IsZero() {
		query += " AND timestamp >= ?"
		args = append(args, filter.Since)
	}

	return query, args
}

// GetAll returns records matching filter, newest first.
func (r *RequestRepository) GetAll(filter *model.RequestFilter) ([]model.RequestRecord, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	where, args := whereClause(filter)
	query := `SELECT id, method, path, status, duration_ms, remote_addr, timestamp FROM requests` +
		where + " ORDER BY timestamp DESC, id DESC"

	if filter != nil && filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)

		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	rows, err := r.db.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query requests: %w", err)
	}
	defer rows.Close()

	records := []model.RequestRecord{}
	for rows.Next() {
		var rec model.RequestRecord
		if err := rows.Scan(&rec.ID, &rec.Method, &rec.Path, &rec.Status, &rec.DurationMs, &rec.RemoteAddr, &rec.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan request: %w", err)
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// GetTotalCount returns the number of records matching filter.
func (r *RequestRepository) GetTotalCount(filter *model.RequestFilter) (int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	where, args := whereClause(filter)

	var count int
	if err := r.db.Conn().QueryRow("SELECT COUNT(*) FROM requests"+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count requests: %w", err)
	}

	return count, nil
}

// GetStats aggregates totals, error counts and per-path counts.
func (r *RequestRepository) GetStats() (*model.RequestStats, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	stats := &model.RequestStats{PerPath: make(map[string]int)}

	err := r.db.Conn().QueryRow(`
		SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN status >= 400 THEN 1 ELSE 0 END), 0),
			COALESCE(AVG(duration_ms), 0)
		FROM requests
	`).Scan(&stats.TotalRequests, &stats.Errors, &stats.AvgDurationMs)
	if err != nil {
		return nil, fmt.Errorf("failed to get request stats: %w", err)
	}

	rows, err := r.db.Conn().Query(`SELECT path, COUNT(*) FROM requests GROUP BY path`)
	if err != nil {
		return nil, fmt.Errorf("failed to query path stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var path string
		var count int
		if err := rows.Scan(&path, &count); err != nil {
			return nil, fmt.Errorf("failed to scan path stats: %w", err)
		}
		stats.PerPath[path] = count
	}

	return stats, rows.Err()
}

// DeleteAll removes every request record.
func (r *RequestRepository) DeleteAll() error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec("DELETE FROM requests"); err != nil {
		return fmt.Errorf("failed to delete requests: %w", err)
	}
	return nil
}
