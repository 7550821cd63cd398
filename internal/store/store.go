// Package store is the optional hosted backend: a Postgres database, or a
// local SQLite file with the same tables.
package store

import (
	"context"
	"embed"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/mapeo-verde/mapeo-verde-api/internal/model"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Supported drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// JSON-blob tables, read when the relational tables are empty.
const (
	TableAreasJSON      = "areas_donacion_json"
	TableBoletinesJSON  = "boletines_json"
	TableGacetasJSON    = "gacetas_json"
	TableDocumentosJSON = "documentos_json"
)

// EventsDocument is the documentos_json row holding the events blob.
const EventsDocument = "eventos"

var documentTables = map[string]bool{
	TableAreasJSON:      true,
	TableBoletinesJSON:  true,
	TableGacetasJSON:    true,
	TableDocumentosJSON: true,
}

// ErrNoBackend is returned by operations that need a backend when none is
// configured.
var ErrNoBackend = eris.New("store: no backend configured")

// Backend defines the persistence interface behind the data access layer.
type Backend interface {
	// Relational tables
	GreenAreas(ctx context.Context) ([]model.GreenArea, error)
	Projects(ctx context.Context) ([]model.Project, error)
	Gazettes(ctx context.Context) ([]model.Gazette, error)
	Events(ctx context.Context) ([]model.Event, error)

	// Document returns the newest JSON blob in table, optionally restricted
	// to rows called name. A missing row is (nil, nil).
	Document(ctx context.Context, table, name string) ([]byte, error)
	PutDocument(ctx context.Context, table, name string, data []byte) error

	// InsertSubmission validates sub, fills its ID and CreatedAt when
	// empty, and stores it.
	InsertSubmission(ctx context.Context, sub *model.Submission) error

	// Seed upserts the given records into the relational tables.
	Seed(ctx context.Context, data SeedData) (int64, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// SeedData is a batch of records for Seed.
type SeedData struct {
	GreenAreas []model.GreenArea
	Projects   []model.Project
	Gazettes   []model.Gazette
	Events     []model.Event
}

// Config selects and locates the backend.
type Config struct {
	Driver      string
	DatabaseURL string
	SQLitePath  string
	MaxConns    int32
}

// Configured reports whether New would open a backend.
func (c Config) Configured() bool {
	switch c.Driver {
	case DriverPostgres:
		return c.DatabaseURL != ""
	case DriverSQLite:
		return c.SQLitePath != ""
	}
	return false
}

// New opens the configured backend. It returns (nil, nil) when no backend
// is configured, which callers treat as the normal static-only mode.
func New(ctx context.Context, cfg Config) (Backend, error) {
	if !cfg.Configured() {
		zap.L().Debug("store: no backend configured", zap.String("driver", cfg.Driver))
		return nil, nil
	}
	switch cfg.Driver {
	case DriverPostgres:
		s, err := NewPostgres(ctx, cfg.DatabaseURL, cfg.MaxConns)
		if err != nil {
			return nil, err
		}
		return s, nil
	case DriverSQLite:
		s, err := NewSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
}

func checkDocumentTable(table string) error {
	if !documentTables[table] {
		return eris.Errorf("store: %q is not a document table", table)
	}
	return nil
}

// ValidationError carries a message safe to show to the person who filled
// in the form.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// ValidateSubmission checks the fields every participation form needs.
func ValidateSubmission(sub *model.Submission) error {
	if sub == nil {
		return &ValidationError{Message: "El formulario está vacío."}
	}
	sub.Type = strings.TrimSpace(sub.Type)
	sub.Email = strings.TrimSpace(sub.Email)
	sub.WhatsApp = strings.TrimSpace(sub.WhatsApp)
	switch {
	case sub.Type == "":
		return &ValidationError{Message: "Indica el tipo de participación."}
	case sub.Email == "" && sub.WhatsApp == "":
		return &ValidationError{Message: "Deja un correo o un WhatsApp para contactarte."}
	case sub.Email != "" && !strings.Contains(sub.Email, "@"):
		return &ValidationError{Message: "El correo no parece válido."}
	}
	return nil
}

// prepareSubmission validates sub and assigns the generated fields.
func prepareSubmission(sub *model.Submission) error {
	if err := ValidateSubmission(sub); err != nil {
		return err
	}
	if sub.ID == "" {
		sub.ID = uuid.New().String()
	}
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now().UTC()
	}
	return nil
}
