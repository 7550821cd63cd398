package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/mapeo-verde/mapeo-verde-api/internal/db"
	"github.com/mapeo-verde/mapeo-verde-api/internal/model"
)

// PostgresStore implements Backend using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// NewPostgres connects to Postgres and verifies the connection.
func NewPostgres(ctx context.Context, connString string, maxConns int32) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	if maxConns <= 0 {
		maxConns = 5
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = 1
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	ddl, err := migrationFS.ReadFile("migrations/postgres.sql")
	if err != nil {
		return eris.Wrap(err, "postgres: read migration")
	}
	_, err = s.pool.Exec(ctx, string(ddl))
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

const greenAreaSelect = `SELECT id, name, COALESCE(address, ''), COALESCE(lat, 0), COALESCE(lng, 0),
	tags, COALESCE(need, ''), COALESCE(image, '') FROM green_areas ORDER BY id`

func (s *PostgresStore) GreenAreas(ctx context.Context) ([]model.GreenArea, error) {
	rows, err := s.pool.Query(ctx, greenAreaSelect)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query green areas")
	}
	defer rows.Close()

	var areas []model.GreenArea
	for rows.Next() {
		var a model.GreenArea
		if err := rows.Scan(&a.ID, &a.Name, &a.Address, &a.Lat, &a.Lng, &a.Tags, &a.Need, &a.Image); err != nil {
			return nil, eris.Wrap(err, "postgres: scan green area")
		}
		areas = append(areas, a)
	}
	return areas, eris.Wrap(rows.Err(), "postgres: iterate green areas")
}

func (s *PostgresStore) Projects(ctx context.Context) ([]model.Project, error) {
	return s.projectsFrom(ctx, "projects")
}

func (s *PostgresStore) Gazettes(ctx context.Context) ([]model.Gazette, error) {
	return s.projectsFrom(ctx, "gazettes")
}

func projectSelect(table string) string {
	return fmt.Sprintf(`SELECT id, COALESCE(expediente, ''), project, COALESCE(promoter, ''),
	COALESCE(type, ''), COALESCE(date, ''), COALESCE(year, ''), COALESCE(status, ''),
	COALESCE(lat, 0), COALESCE(lng, 0), COALESCE(description, ''), COALESCE(impact, ''),
	COALESCE(url, ''), COALESCE(filename, ''), COALESCE(source, ''), defaulted
	FROM %s ORDER BY date DESC, id`, table)
}

func (s *PostgresStore) projectsFrom(ctx context.Context, table string) ([]model.Project, error) {
	rows, err := s.pool.Query(ctx, projectSelect(table))
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: query %s", table)
	}
	defer rows.Close()

	var out []model.Project
	for rows.Next() {
		var p model.Project
		if err := rows.Scan(&p.ID, &p.Expediente, &p.Project, &p.Promoter,
			&p.Type, &p.Date, &p.Year, &p.Status,
			&p.Lat, &p.Lng, &p.Description, &p.Impact,
			&p.URL, &p.Filename, &p.Source, &p.Defaulted); err != nil {
			return nil, eris.Wrapf(err, "postgres: scan %s", table)
		}
		if p.Source == "" {
			p.Source = model.SourceBackend
		}
		if len(p.Defaulted) == 0 {
			p.Defaulted = nil
		}
		out = append(out, p)
	}
	return out, eris.Wrapf(rows.Err(), "postgres: iterate %s", table)
}

const eventSelect = `SELECT id, title, date, COALESCE(time, ''), iso_start, COALESCE(iso_end, ''),
	COALESCE(location, ''), COALESCE(category, ''), COALESCE(image, ''), COALESCE(description, '')
	FROM events ORDER BY iso_start`

func (s *PostgresStore) Events(ctx context.Context) ([]model.Event, error) {
	rows, err := s.pool.Query(ctx, eventSelect)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query events")
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		var e model.Event
		if err := rows.Scan(&e.ID, &e.Title, &e.Date, &e.Time, &e.IsoStart, &e.IsoEnd,
			&e.Location, &e.Category, &e.Image, &e.Description); err != nil {
			return nil, eris.Wrap(err, "postgres: scan event")
		}
		events = append(events, e)
	}
	return events, eris.Wrap(rows.Err(), "postgres: iterate events")
}

func (s *PostgresStore) Document(ctx context.Context, table, name string) ([]byte, error) {
	if err := checkDocumentTable(table); err != nil {
		return nil, err
	}
	var (
		data []byte
		row  pgx.Row
	)
	if name == "" {
		row = s.pool.QueryRow(ctx, fmt.Sprintf(`SELECT data FROM %s ORDER BY updated_at DESC, id DESC LIMIT 1`, table))
	} else {
		row = s.pool.QueryRow(ctx, fmt.Sprintf(`SELECT data FROM %s WHERE name = $1 ORDER BY updated_at DESC, id DESC LIMIT 1`, table), name)
	}
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get document %s", table)
	}
	return data, nil
}

func (s *PostgresStore) PutDocument(ctx context.Context, table, name string, data []byte) error {
	if err := checkDocumentTable(table); err != nil {
		return err
	}
	if !json.Valid(data) {
		return eris.Errorf("postgres: document for %s is not valid JSON", table)
	}
	_, err := s.pool.Exec(ctx,
		fmt.Sprintf(`INSERT INTO %s (name, data) VALUES ($1, $2)`, table),
		name, json.RawMessage(data),
	)
	return eris.Wrapf(err, "postgres: put document %s", table)
}

func (s *PostgresStore) InsertSubmission(ctx context.Context, sub *model.Submission) error {
	if err := prepareSubmission(sub); err != nil {
		return err
	}
	var data any
	if len(sub.Data) > 0 {
		data = sub.Data
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO participation_submissions (id, type, name, email, whatsapp, data, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		sub.ID, sub.Type, sub.Name, sub.Email, sub.WhatsApp, data, sub.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert submission")
}

var (
	greenAreaColumns = []string{"id", "name", "address", "lat", "lng", "tags", "need", "image"}
	projectColumns   = []string{"id", "expediente", "project", "promoter", "type", "date", "year", "status",
		"lat", "lng", "description", "impact", "url", "filename", "source", "defaulted"}
	eventColumns = []string{"id", "title", "date", "time", "iso_start", "iso_end",
		"location", "category", "image", "description"}
)

func greenAreaRow(a model.GreenArea) []any {
	tags := a.Tags
	if tags == nil {
		tags = []string{}
	}
	return []any{a.ID, a.Name, a.Address, a.Lat, a.Lng, tags, a.Need, a.Image}
}

func projectRow(p model.Project) []any {
	defaulted := p.Defaulted
	if defaulted == nil {
		defaulted = []string{}
	}
	return []any{p.ID, p.Expediente, p.Project, p.Promoter, p.Type, p.Date, p.Year, p.Status,
		p.Lat, p.Lng, p.Description, p.Impact, p.URL, p.Filename, p.Source, defaulted}
}

func eventRow(e model.Event) []any {
	return []any{e.ID, e.Title, e.Date, e.Time, e.IsoStart, e.IsoEnd,
		e.Location, e.Category, e.Image, e.Description}
}

// Seed upserts every record in data, one COPY-backed merge per table.
func (s *PostgresStore) Seed(ctx context.Context, data SeedData) (int64, error) {
	type batch struct {
		cfg  db.UpsertConfig
		rows [][]any
	}
	batches := []batch{
		{db.UpsertConfig{Table: "green_areas", Columns: greenAreaColumns, ConflictKeys: []string{"id"}}, mapRows(data.GreenAreas, greenAreaRow)},
		{db.UpsertConfig{Table: "projects", Columns: projectColumns, ConflictKeys: []string{"id"}}, mapRows(data.Projects, projectRow)},
		{db.UpsertConfig{Table: "gazettes", Columns: projectColumns, ConflictKeys: []string{"id"}}, mapRows(data.Gazettes, projectRow)},
		{db.UpsertConfig{Table: "events", Columns: eventColumns, ConflictKeys: []string{"id"}}, mapRows(data.Events, eventRow)},
	}

	var total int64
	for _, b := range batches {
		n, err := db.BulkUpsert(ctx, s.pool, b.cfg, b.rows)
		if err != nil {
			return total, eris.Wrapf(err, "postgres: seed %s", b.cfg.Table)
		}
		zap.L().Debug("postgres: seeded table", zap.String("table", b.cfg.Table), zap.Int64("rows", n))
		total += n
	}
	return total, nil
}

func mapRows[T any](items []T, fn func(T) []any) [][]any {
	rows := make([][]any, len(items))
	for i, it := range items {
		rows[i] = fn(it)
	}
	return rows
}
