package groups

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/nerrad567/scene-rotator/internal/infrastructure/database"
	"github.com/nerrad567/scene-rotator/migrations"
)

func newTestSQLiteRepo(t *testing.T) *SQLiteRepository {
	t.Helper()

	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "groups.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if err := db.Migrate(context.Background(), migrations.FS); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return NewSQLiteRepository(db.DB)
}

func TestSQLiteRepository_Empty(t *testing.T) {
	repo := newTestSQLiteRepo(t)

	got, err := repo.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Load() = %v, want empty", got)
	}
}

func TestSQLiteRepository_SaveLoad(t *testing.T) {
	repo := newTestSQLiteRepo(t)
	ctx := context.Background()

	want := map[string][]string{
		"Main":   {"C", "A", "B", "A"},
		"Breaks": {},
	}
	if err := repo.Save(ctx, want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := repo.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Load() = %v, want %v", got, want)
	}
}

func TestSQLiteRepository_SaveReplaces(t *testing.T) {
	repo := newTestSQLiteRepo(t)
	ctx := context.Background()

	if err := repo.Save(ctx, map[string][]string{"Old": {"A"}, "Kept": {"A", "B"}}); err != nil {
		t.Fatalf("Save() 1 error = %v", err)
	}
	if err := repo.Save(ctx, map[string][]string{"Kept": {"B"}}); err != nil {
		t.Fatalf("Save() 2 error = %v", err)
	}

	got, err := repo.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if want := map[string][]string{"Kept": {"B"}}; !reflect.DeepEqual(got, want) {
		t.Errorf("Load() = %v, want %v", got, want)
	}
}
