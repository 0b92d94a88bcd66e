package seed

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/me/folio/internal/logging"
	"github.com/me/folio/internal/store"
	"github.com/me/folio/pkg/model"
)

const sample = `
projects:
  - title: folio
    tech_stack: [go, sqlite]
    featured: true
    sort_order: 1
  - title: gate
    sort_order: 2
skills:
  - name: Go
    level: 5
posts:
  - title: Hello
    slug: hello
    published: true
    published_at: "2026-01-02T00:00:00Z"
`

func testSeeder(t *testing.T) (*Seeder, *store.SQLiteStore) {
	t.Helper()
	st, err := store.NewSQLiteStore(":memory:", logging.Discard())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return New(st, logging.Discard()), st
}

func TestLoad(t *testing.T) {
	s, st := testSeeder(t)
	ctx := context.Background()

	res, err := s.Load(ctx, []byte(sample))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if res.Total() != 4 {
		t.Errorf("Total = %d, want 4", res.Total())
	}
	if res.Inserted["projects"] != 2 {
		t.Errorf("projects inserted = %d, want 2", res.Inserted["projects"])
	}

	recs, total, err := st.Select(ctx, model.Projects, store.Query{})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if total != 2 || recs[0].String("title") != "folio" {
		t.Fatalf("unexpected projects: %v", recs)
	}
	if recs[0].String("tech_stack") != "go,sqlite" {
		t.Errorf("tech_stack = %q", recs[0].String("tech_stack"))
	}
	if !recs[0].Bool("featured") {
		t.Error("featured should be true")
	}
}

func TestLoad_SkipsExistingSlugs(t *testing.T) {
	s, st := testSeeder(t)
	ctx := context.Background()

	if _, err := s.Load(ctx, []byte(sample)); err != nil {
		t.Fatalf("first Load: %v", err)
	}
	res, err := s.Load(ctx, []byte(sample))
	if err != nil {
		t.Fatalf("second Load: %v", err)
	}
	if res.Skipped["posts"] != 1 || res.Inserted["posts"] != 0 {
		t.Errorf("posts: inserted=%d skipped=%d, want 0/1", res.Inserted["posts"], res.Skipped["posts"])
	}
	n, err := st.Count(ctx, model.Posts)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 1 {
		t.Errorf("posts = %d, want 1", n)
	}
}

func TestLoad_UnknownCollection(t *testing.T) {
	s, st := testSeeder(t)
	_, err := s.Load(context.Background(), []byte("projects:\n  - title: x\nwidgets:\n  - name: y\n"))
	if !errors.Is(err, store.ErrUnknownCollection) {
		t.Fatalf("err = %v, want ErrUnknownCollection", err)
	}
	n, _ := st.Count(context.Background(), model.Projects)
	if n != 0 {
		t.Errorf("nothing should be written, got %d projects", n)
	}
}

func TestLoad_InvalidRecord(t *testing.T) {
	s, _ := testSeeder(t)
	_, err := s.Load(context.Background(), []byte("skills:\n  - category: lang\n"))
	var verr *store.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
}

func TestLoadFile(t *testing.T) {
	s, _ := testSeeder(t)
	path := filepath.Join(t.TempDir(), "seed.yaml")
	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		t.Fatal(err)
	}
	res, err := s.LoadFile(context.Background(), path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if res.Total() != 4 {
		t.Errorf("Total = %d, want 4", res.Total())
	}

	if _, err := s.LoadFile(context.Background(), filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
