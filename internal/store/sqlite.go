package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/mapeo-verde/mapeo-verde-api/internal/model"
)

// SQLiteStore implements Backend using modernc.org/sqlite. List columns
// are stored as JSON text.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	ddl, err := migrationFS.ReadFile("migrations/sqlite.sql")
	if err != nil {
		return eris.Wrap(err, "sqlite: read migration")
	}
	_, err = s.db.ExecContext(ctx, string(ddl))
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GreenAreas(ctx context.Context) ([]model.GreenArea, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, COALESCE(address, ''), COALESCE(lat, 0), COALESCE(lng, 0),
		tags, COALESCE(need, ''), COALESCE(image, '') FROM green_areas ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query green areas")
	}
	defer rows.Close()

	var areas []model.GreenArea
	for rows.Next() {
		var (
			a    model.GreenArea
			tags string
		)
		if err := rows.Scan(&a.ID, &a.Name, &a.Address, &a.Lat, &a.Lng, &tags, &a.Need, &a.Image); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan green area")
		}
		a.Tags = decodeList(tags)
		areas = append(areas, a)
	}
	return areas, eris.Wrap(rows.Err(), "sqlite: iterate green areas")
}

func (s *SQLiteStore) Projects(ctx context.Context) ([]model.Project, error) {
	return s.projectsFrom(ctx, "projects")
}

func (s *SQLiteStore) Gazettes(ctx context.Context) ([]model.Gazette, error) {
	return s.projectsFrom(ctx, "gazettes")
}

func (s *SQLiteStore) projectsFrom(ctx context.Context, table string) ([]model.Project, error) {
	rows, err := s.db.QueryContext(ctx, projectSelect(table))
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: query %s", table)
	}
	defer rows.Close()

	var out []model.Project
	for rows.Next() {
		var (
			p         model.Project
			defaulted string
		)
		if err := rows.Scan(&p.ID, &p.Expediente, &p.Project, &p.Promoter,
			&p.Type, &p.Date, &p.Year, &p.Status,
			&p.Lat, &p.Lng, &p.Description, &p.Impact,
			&p.URL, &p.Filename, &p.Source, &defaulted); err != nil {
			return nil, eris.Wrapf(err, "sqlite: scan %s", table)
		}
		if p.Source == "" {
			p.Source = model.SourceBackend
		}
		if list := decodeList(defaulted); len(list) > 0 {
			p.Defaulted = list
		}
		out = append(out, p)
	}
	return out, eris.Wrapf(rows.Err(), "sqlite: iterate %s", table)
}

func (s *SQLiteStore) Events(ctx context.Context) ([]model.Event, error) {
	rows, err := s.db.QueryContext(ctx, eventSelect)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query events")
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		var e model.Event
		if err := rows.Scan(&e.ID, &e.Title, &e.Date, &e.Time, &e.IsoStart, &e.IsoEnd,
			&e.Location, &e.Category, &e.Image, &e.Description); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan event")
		}
		events = append(events, e)
	}
	return events, eris.Wrap(rows.Err(), "sqlite: iterate events")
}

func (s *SQLiteStore) Document(ctx context.Context, table, name string) ([]byte, error) {
	if err := checkDocumentTable(table); err != nil {
		return nil, err
	}
	var (
		data string
		row  *sql.Row
	)
	if name == "" {
		row = s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT data FROM %s ORDER BY updated_at DESC, id DESC LIMIT 1`, table))
	} else {
		row = s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT data FROM %s WHERE name = ? ORDER BY updated_at DESC, id DESC LIMIT 1`, table), name)
	}
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: get document %s", table)
	}
	return []byte(data), nil
}

func (s *SQLiteStore) PutDocument(ctx context.Context, table, name string, data []byte) error {
	if err := checkDocumentTable(table); err != nil {
		return err
	}
	if !json.Valid(data) {
		return eris.Errorf("sqlite: document for %s is not valid JSON", table)
	}
	_, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (name, data) VALUES (?, ?)`, table),
		name, string(data),
	)
	return eris.Wrapf(err, "sqlite: put document %s", table)
}

func (s *SQLiteStore) InsertSubmission(ctx context.Context, sub *model.Submission) error {
	if err := prepareSubmission(sub); err != nil {
		return err
	}
	var data any
	if len(sub.Data) > 0 {
		data = string(sub.Data)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO participation_submissions (id, type, name, email, whatsapp, data, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sub.ID, sub.Type, sub.Name, sub.Email, sub.WhatsApp, data, sub.CreatedAt.Format(time.RFC3339Nano),
	)
	return eris.Wrap(err, "sqlite: insert submission")
}

// Seed replaces rows by primary key inside one transaction.
func (s *SQLiteStore) Seed(ctx context.Context, data SeedData) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: seed: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	var total int64
	insert := func(table string, cols []string, rows [][]any) error {
		if len(rows) == 0 {
			return nil
		}
		stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT OR REPLACE INTO %s (%s) VALUES (%s)",
			table, strings.Join(cols, ", "), strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")))
		if err != nil {
			return eris.Wrapf(err, "sqlite: seed: prepare %s", table)
		}
		defer stmt.Close()
		for _, row := range rows {
			if _, err := stmt.ExecContext(ctx, row...); err != nil {
				return eris.Wrapf(err, "sqlite: seed %s", table)
			}
			total++
		}
		return nil
	}

	if err := insert("green_areas", greenAreaColumns, mapRows(data.GreenAreas, sqliteGreenAreaRow)); err != nil {
		return 0, err
	}
	if err := insert("projects", projectColumns, mapRows(data.Projects, sqliteProjectRow)); err != nil {
		return 0, err
	}
	if err := insert("gazettes", projectColumns, mapRows(data.Gazettes, sqliteProjectRow)); err != nil {
		return 0, err
	}
	if err := insert("events", eventColumns, mapRows(data.Events, eventRow)); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: seed: commit tx")
	}
	return total, nil
}

func sqliteGreenAreaRow(a model.GreenArea) []any {
	row := greenAreaRow(a)
	row[5] = encodeList(a.Tags)
	return row
}

func sqliteProjectRow(p model.Project) []any {
	row := projectRow(p)
	row[15] = encodeList(p.Defaulted)
	return row
}

func encodeList(list []string) string {
	if len(list) == 0 {
		return "[]"
	}
	b, err := json.Marshal(list)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func decodeList(raw string) []string {
	var list []string
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return nil
	}
	return list
}
