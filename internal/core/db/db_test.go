package db

import (
	"context"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/google/go-cmp/cmp"
	"github.com/jmoiron/sqlx"
)

func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	database, err := Open("sqlite://" + filepath.Join(t.TempDir(), "nested", "audit.db"))
	if err != nil {
		t.Fatalf("Open() error = %v, want nil", err)
	}
	t.Cleanup(func() { database.Close() })
	return database
}

func TestOpen(t *testing.T) {
	t.Run("unsupported scheme", func(t *testing.T) {
		if _, err := Open("mysql://localhost/db"); err == nil {
			t.Error("Open(mysql) error = nil, want error")
		}
	})

	t.Run("sqlite without path", func(t *testing.T) {
		if _, err := Open("sqlite://"); err == nil {
			t.Error("Open(sqlite://) error = nil, want error")
		}
	})

	t.Run("sqlite creates parent directory", func(t *testing.T) {
		database := openTestDB(t)
		if database.DriverName() != "sqlite3" {
			t.Errorf("DriverName() = %q, want sqlite3", database.DriverName())
		}
	})
}

func TestDefaultURL(t *testing.T) {
	tests := []struct {
		dataDir string
		want    string
	}{
		{"/var/lib/rulesmith", "sqlite:///var/lib/rulesmith/rulesmith.db"},
		{"./data", "sqlite://./data/rulesmith.db"},
		{"data", "sqlite://./data/rulesmith.db"},
	}
	for _, tt := range tests {
		if got := DefaultURL(tt.dataDir); got != tt.want {
			t.Errorf("DefaultURL(%q) = %q, want %q", tt.dataDir, got, tt.want)
		}
	}
}

func TestMigrateUp(t *testing.T) {
	database := openTestDB(t)

	if err := MigrateUp(database); err != nil {
		t.Fatalf("MigrateUp() error = %v, want nil", err)
	}
	// Second run applies nothing and still validates checksums.
	if err := MigrateUp(database); err != nil {
		t.Fatalf("MigrateUp() second run error = %v, want nil", err)
	}

	statuses, err := MigrateStatus(database)
	if err != nil {
		t.Fatalf("MigrateStatus() error = %v, want nil", err)
	}
	if len(statuses) == 0 {
		t.Fatal("MigrateStatus() returned no migrations")
	}
	for _, s := range statuses {
		if !s.Applied || s.AppliedAt == nil {
			t.Errorf("migration %s: Applied = %v, AppliedAt = %v, want applied with timestamp", s.ID, s.Applied, s.AppliedAt)
		}
	}

	var count int
	if err := database.Get(&count, "SELECT COUNT(*) FROM generation_attempts"); err != nil {
		t.Fatalf("generation_attempts not created: %v", err)
	}
}

func TestMigrateStatus_Pending(t *testing.T) {
	database := openTestDB(t)

	statuses, err := MigrateStatus(database)
	if err != nil {
		t.Fatalf("MigrateStatus() error = %v, want nil", err)
	}
	for _, s := range statuses {
		if s.Applied || s.AppliedAt != nil {
			t.Errorf("migration %s reported applied on a fresh database", s.ID)
		}
		if s.Checksum == "" {
			t.Errorf("migration %s has no checksum", s.ID)
		}
	}
}

func TestMigrateUp_ChecksumMismatch(t *testing.T) {
	database := openTestDB(t)
	if err := MigrateUp(database); err != nil {
		t.Fatalf("MigrateUp() error = %v, want nil", err)
	}
	if _, err := database.Exec("UPDATE migrations SET checksum = 'tampered'"); err != nil {
		t.Fatal(err)
	}
	if err := MigrateUp(database); err == nil {
		t.Error("MigrateUp() error = nil, want checksum mismatch")
	}
}

func TestParseMigrationFiles(t *testing.T) {
	fsys := fstest.MapFS{
		"m/002_second.sql": {Data: []byte("SELECT 2;")},
		"m/001_first.sql":  {Data: []byte("SELECT 1;")},
		"m/README.md":      {Data: []byte("ignored")},
	}
	migrations, err := parseMigrationFiles(fsys, "m")
	if err != nil {
		t.Fatalf("parseMigrationFiles() error = %v, want nil", err)
	}
	var ids []string
	for _, m := range migrations {
		ids = append(ids, m.ID)
	}
	if diff := cmp.Diff([]string{"001_first.sql", "002_second.sql"}, ids); diff != "" {
		t.Errorf("migration order mismatch (-want +got):\n%s", diff)
	}
}

func TestSplitStatements(t *testing.T) {
	script := `-- leading comment
CREATE TABLE a (id TEXT);

-- index comment
CREATE INDEX idx_a ON a (id);
-- trailing comment
`
	want := []string{"CREATE TABLE a (id TEXT)", "CREATE INDEX idx_a ON a (id)"}
	if diff := cmp.Diff(want, splitStatements(script)); diff != "" {
		t.Errorf("splitStatements() mismatch (-want +got):\n%s", diff)
	}
}

func TestQueries(t *testing.T) {
	database := openTestDB(t)
	if err := MigrateUp(database); err != nil {
		t.Fatalf("MigrateUp() error = %v, want nil", err)
	}
	q, err := LoadQueries(database)
	if err != nil {
		t.Fatalf("LoadQueries() error = %v, want nil", err)
	}
	ctx := context.Background()

	if _, err := q.Exec(ctx, "insert-attempt", "a1", "s1", "AWAITING_FIRST_INPUT", "success", "", "groq/llama3", 2, 120, "2024-03-01T12:00:00Z"); err != nil {
		t.Fatalf("Exec(insert-attempt) error = %v, want nil", err)
	}

	var counts []struct {
		Outcome  string `db:"outcome"`
		Attempts int    `db:"attempts"`
	}
	if err := q.Select(ctx, "count-attempts-by-outcome", &counts); err != nil {
		t.Fatalf("Select(count-attempts-by-outcome) error = %v, want nil", err)
	}
	if len(counts) != 1 || counts[0].Outcome != "success" || counts[0].Attempts != 1 {
		t.Errorf("counts = %+v, want one success", counts)
	}

	if _, err := q.Exec(ctx, "no-such-query"); err == nil {
		t.Error("Exec(unknown) error = nil, want error")
	}
}
