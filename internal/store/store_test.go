package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mapeo-verde/mapeo-verde-api/internal/model"
)

func TestNew_NotConfigured(t *testing.T) {
	for _, cfg := range []Config{
		{},
		{Driver: DriverPostgres},
		{Driver: DriverSQLite},
		{Driver: "mysql", DatabaseURL: "mysql://x"},
	} {
		b, err := New(context.Background(), cfg)
		require.NoError(t, err)
		assert.Nil(t, b)
	}
}

func TestNew_SQLite(t *testing.T) {
	b, err := New(context.Background(), Config{Driver: DriverSQLite, SQLitePath: filepath.Join(t.TempDir(), "x.db")})
	require.NoError(t, err)
	require.NotNil(t, b)
	defer b.Close()

	require.NoError(t, b.Migrate(context.Background()))
	assert.NoError(t, b.Ping(context.Background()))
}

func TestValidateSubmission(t *testing.T) {
	tests := []struct {
		name string
		sub  *model.Submission
		ok   bool
	}{
		{"nil", nil, false},
		{"no type", &model.Submission{Email: "a@b.mx"}, false},
		{"no contact", &model.Submission{Type: "voluntariado"}, false},
		{"bad email", &model.Submission{Type: "voluntariado", Email: "ana"}, false},
		{"email", &model.Submission{Type: "voluntariado", Email: "ana@example.com"}, true},
		{"whatsapp only", &model.Submission{Type: "donacion", WhatsApp: "4491234567"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSubmission(tt.sub)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.NotEmpty(t, verr.Message)
		})
	}
}

func TestPrepareSubmission_KeepsExistingID(t *testing.T) {
	sub := &model.Submission{ID: "fixed", Type: "voluntariado", Email: "a@b.mx"}
	require.NoError(t, prepareSubmission(sub))
	assert.Equal(t, "fixed", sub.ID)
	assert.False(t, sub.CreatedAt.IsZero())
}
