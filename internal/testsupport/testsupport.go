package testsupport

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"

	"newsroom/internal/articles"
	"newsroom/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.APIBind = "127.0.0.1:0"

	for _, opt := range opts {
		opt(&cfg)
	}

	return &cfg
}

// WithSweepInterval overrides the sweep interval (in seconds).
func WithSweepInterval(seconds int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Workflow.SweepInterval = seconds
	}
}

// WithAPIToken sets the API bearer token on the test config.
func WithAPIToken(token string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Paths.APIToken = token
	}
}

// MustOpenStore opens an article store backed by the config's data directory
// and closes it when the test finishes.
func MustOpenStore(t testing.TB, cfg *config.Config) *articles.Store {
	t.Helper()

	store, err := articles.Open(cfg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

// BreakVersionTable drops the revision snapshot table so transition tests can
// exercise the rollback path.
func BreakVersionTable(t testing.TB, store *articles.Store) {
	t.Helper()

	db, err := sql.Open("sqlite", store.Path())
	if err != nil {
		t.Fatalf("open db for fault injection: %v", err)
	}
	defer func() { _ = db.Close() }()

	if _, err := db.Exec("DROP TABLE article_versions"); err != nil {
		t.Fatalf("drop article_versions: %v", err)
	}
}
