package store

import (
	"database/sql"
	"errors"

	"github.com/sekaidex/chapterd/internal/domain"
)

// Metadata queries against the series/chapters tables. These back the
// download subsystem's view of the library; a missing row is returned as
// (nil, nil), not an error, since restore paths must skip dangling ids.

func (db *DB) GetSeries(id int64) (*domain.Series, error) {
	series := &domain.Series{}
	err := db.Get(series, `SELECT id, url, title, source FROM series WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return series, nil
}

func (db *DB) GetChapter(id int64) (*domain.Chapter, error) {
	chapter := &domain.Chapter{}
	err := db.Get(chapter, `SELECT id, series_id, url, name, scanlator, remote_id, legacy_id, source_order
		FROM chapters WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return chapter, nil
}

func (db *DB) ListSeries() ([]*domain.Series, error) {
	var series []*domain.Series
	err := db.Select(&series, `SELECT id, url, title, source FROM series ORDER BY id ASC`)
	return series, err
}

func (db *DB) ListChapters(seriesID int64) ([]*domain.Chapter, error) {
	var chapters []*domain.Chapter
	err := db.Select(&chapters, `SELECT id, series_id, url, name, scanlator, remote_id, legacy_id, source_order
		FROM chapters WHERE series_id = ? ORDER BY source_order ASC`, seriesID)
	return chapters, err
}

func (db *DB) UpsertSeries(series *domain.Series) error {
	_, err := db.NamedExec(`INSERT INTO series (id, url, title, source)
		VALUES (:id, :url, :title, :source)
		ON CONFLICT(id) DO UPDATE SET url = excluded.url, title = excluded.title, source = excluded.source`,
		series)
	return err
}

func (db *DB) UpsertChapter(chapter *domain.Chapter) error {
	_, err := db.NamedExec(`INSERT INTO chapters (id, series_id, url, name, scanlator, remote_id, legacy_id, source_order)
		VALUES (:id, :series_id, :url, :name, :scanlator, :remote_id, :legacy_id, :source_order)
		ON CONFLICT(id) DO UPDATE SET url = excluded.url, name = excluded.name,
			scanlator = excluded.scanlator, remote_id = excluded.remote_id,
			legacy_id = excluded.legacy_id, source_order = excluded.source_order`,
		chapter)
	return err
}

func (db *DB) DeleteSeries(id int64) error {
	_, err := db.Exec(`DELETE FROM series WHERE id = ?`, id)
	return err
}
