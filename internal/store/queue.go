package store

// QueueRecord is the durable seed for one queued download. Only identity and
// ordering are persisted; everything else is re-resolved from metadata when
// the queue is restored.
type QueueRecord struct {
	ChapterID int64 `db:"chapter_id"`
	SeriesID  int64 `db:"series_id"`
	Position  int   `db:"position"`
}

// PersistQueue upserts one record per job, keyed by chapter id.
func (db *DB) PersistQueue(records []QueueRecord) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := db.Beginx()
	if err != nil {
		return err
	}
	for _, rec := range records {
		if _, err := tx.NamedExec(`INSERT INTO queue (chapter_id, series_id, position)
			VALUES (:chapter_id, :series_id, :position)
			ON CONFLICT(chapter_id) DO UPDATE SET series_id = excluded.series_id, position = excluded.position`,
			rec); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// RemoveQueue deletes the records for the given chapter ids. Missing records
// are not an error.
func (db *DB) RemoveQueue(chapterIDs ...int64) error {
	if len(chapterIDs) == 0 {
		return nil
	}
	tx, err := db.Beginx()
	if err != nil {
		return err
	}
	for _, id := range chapterIDs {
		if _, err := tx.Exec(`DELETE FROM queue WHERE chapter_id = ?`, id); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (db *DB) ClearQueue() error {
	_, err := db.Exec(`DELETE FROM queue`)
	return err
}

// ListQueue returns all records in ascending insertion order.
func (db *DB) ListQueue() ([]QueueRecord, error) {
	var records []QueueRecord
	err := db.Select(&records, `SELECT chapter_id, series_id, position FROM queue ORDER BY position ASC`)
	return records, err
}

// NextQueuePosition returns an insertion position greater than every
// persisted one.
func (db *DB) NextQueuePosition() (int, error) {
	var max int
	err := db.Get(&max, `SELECT COALESCE(MAX(position), 0) FROM queue`)
	return max + 1, err
}
