package store

import (
	"database/sql"
	"errors"
)

// Pending-delete entries are opaque JSON blobs keyed by series id; the
// download package owns the encoding.

func (db *DB) GetPendingDelete(seriesID int64) ([]byte, error) {
	var data []byte
	err := db.Get(&data, `SELECT data FROM pending_deletes WHERE series_id = ?`, seriesID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (db *DB) SetPendingDelete(seriesID int64, data []byte) error {
	_, err := db.Exec(`INSERT INTO pending_deletes (series_id, data) VALUES (?, ?)
		ON CONFLICT(series_id) DO UPDATE SET data = excluded.data`, seriesID, data)
	return err
}

func (db *DB) DeletePendingDelete(seriesID int64) error {
	_, err := db.Exec(`DELETE FROM pending_deletes WHERE series_id = ?`, seriesID)
	return err
}

func (db *DB) ListPendingDeletes() (map[int64][]byte, error) {
	rows, err := db.Queryx(`SELECT series_id, data FROM pending_deletes`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int64][]byte)
	for rows.Next() {
		var seriesID int64
		var data []byte
		if err := rows.Scan(&seriesID, &data); err != nil {
			return nil, err
		}
		out[seriesID] = data
	}
	return out, rows.Err()
}

func (db *DB) ClearPendingDeletes() error {
	_, err := db.Exec(`DELETE FROM pending_deletes`)
	return err
}
