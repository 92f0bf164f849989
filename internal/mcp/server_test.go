package mcp

import (
	"reflect"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/thinkd/internal/catalog"
	"github.com/fyrsmithlabs/thinkd/internal/orchestrator"
	"github.com/fyrsmithlabs/thinkd/internal/session"
)

func newTestEngine(t *testing.T) *orchestrator.Engine {
	t.Helper()
	cat, err := catalog.Load()
	require.NoError(t, err)
	engine, err := orchestrator.NewEngine(nil, cat, session.NewMemStore(), zap.NewNop())
	require.NoError(t, err)
	return engine
}

func TestNewServer(t *testing.T) {
	engine := newTestEngine(t)

	t.Run("successful creation", func(t *testing.T) {
		srv, err := NewServer(&Config{Name: "thinkd-test", Version: "0.0.1", Logger: zap.NewNop()}, engine)
		require.NoError(t, err)
		assert.NotNil(t, srv)
	})

	t.Run("nil config uses defaults", func(t *testing.T) {
		srv, err := NewServer(nil, engine)
		require.NoError(t, err)
		assert.NotNil(t, srv)
	})

	t.Run("nil engine fails", func(t *testing.T) {
		_, err := NewServer(DefaultConfig(), nil)
		assert.Error(t, err)
	})
}

// The discover tool's schema enumerates the accepted outcome values;
// every value it advertises must actually pass catalog validation.
func TestDiscoverSchemaOutcomesAreValid(t *testing.T) {
	field, ok := reflect.TypeOf(discoverInput{}).FieldByName("Outcome")
	require.True(t, ok)

	desc := field.Tag.Get("jsonschema")
	open := strings.Index(desc, "(")
	end := strings.Index(desc, ")")
	require.True(t, open >= 0 && end > open, "outcome description must list the accepted values")

	values := strings.Split(desc[open+1:end], ",")
	require.Len(t, values, 5)
	for _, v := range values {
		v = strings.TrimSpace(v)
		assert.True(t, catalog.ValidOutcome(catalog.Outcome(v)),
			"advertised outcome %q is rejected by the catalog", v)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "thinkd", cfg.Name)
	assert.NotEmpty(t, cfg.Version)
	assert.NotNil(t, cfg.Logger)
}
