package charverse

import (
	"context"
	"database/sql"

	"github.com/FocuswithJustin/JuniperScript/core/errors"
	"github.com/FocuswithJustin/JuniperScript/core/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS character_verse (
	book       TEXT    NOT NULL,
	chapter    INTEGER NOT NULL,
	verse      INTEGER NOT NULL,
	character  TEXT    NOT NULL,
	delivery   TEXT    NOT NULL DEFAULT '',
	quote_type TEXT    NOT NULL DEFAULT 'Normal',
	seq        INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_character_verse_ref ON character_verse (book, chapter, verse);
`

// SaveSQLite replaces the control data stored in db with t.
func SaveSQLite(ctx context.Context, db *sql.DB, t *Table) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return errors.Wrap(err, "failed to create control-data schema")
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback() //nolint:errcheck // no-op after Commit

	if _, err := tx.ExecContext(ctx, `DELETE FROM character_verse`); err != nil {
		return errors.Wrap(err, "failed to clear control data")
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO character_verse (book, chapter, verse, character, delivery, quote_type, seq) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return errors.Wrap(err, "failed to prepare insert")
	}
	defer stmt.Close()

	for i, e := range t.Entries() {
		if _, err := stmt.ExecContext(ctx, e.Book, e.Chapter, e.Verse, e.Character, e.Delivery, e.QuoteType.String(), i); err != nil {
			return errors.Wrapf(err, "failed to insert %s %d:%d", e.Book, e.Chapter, e.Verse)
		}
	}
	return errors.Wrap(tx.Commit(), "failed to commit control data")
}

// LoadSQLite reads every row from db into an in-memory Table.
func LoadSQLite(ctx context.Context, db *sql.DB) (*Table, error) {
	rows, err := db.QueryContext(ctx, `SELECT book, chapter, verse, character, delivery, quote_type FROM character_verse ORDER BY seq`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query control data")
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var qt string
		if err := rows.Scan(&e.Book, &e.Chapter, &e.Verse, &e.Character, &e.Delivery, &qt); err != nil {
			return nil, errors.Wrap(err, "failed to scan control data")
		}
		if e.QuoteType, err = ParseQuoteType(qt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read control data")
	}
	return NewTable(entries), nil
}

// OpenSQLite loads the control-data database at path.
func OpenSQLite(ctx context.Context, path string) (*Table, error) {
	db, err := sqlite.OpenReadOnly(path)
	if err != nil {
		return nil, errors.NewIO("open", path, err)
	}
	defer db.Close()
	return LoadSQLite(ctx, db)
}
