package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/me/folio/pkg/model"
)

func testStore(t *testing.T) *SQLiteStore {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelError}))
	st, err := NewSQLiteStore(":memory:", logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func sampleProject(title string, order int) model.Record {
	return model.Record{
		"title":       title,
		"description": "A project called " + title,
		"tech_stack":  []any{"go", "sqlite"},
		"featured":    order == 1,
		"sort_order":  float64(order),
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	st := testStore(t)
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}

func TestInsertAndGet(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	rec, err := st.Insert(ctx, model.Projects, sampleProject("folio", 1))
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if rec.ID() == "" {
		t.Fatal("expected id to be assigned")
	}
	if rec.String("created_at") == "" || rec.String("updated_at") == "" {
		t.Error("expected timestamps to be assigned")
	}

	got, err := st.Get(ctx, model.Projects, rec.ID())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil {
		t.Fatal("expected record")
	}
	if got.String("title") != "folio" {
		t.Errorf("title = %q, want folio", got.String("title"))
	}
	if got.String("tech_stack") != "go,sqlite" {
		t.Errorf("tech_stack = %q, want go,sqlite", got.String("tech_stack"))
	}
	if !got.Bool("featured") {
		t.Error("featured = false, want true")
	}
	if got["sort_order"] != int64(1) {
		t.Errorf("sort_order = %v (%T), want 1", got["sort_order"], got["sort_order"])
	}
	if got.String("live_url") != "" {
		t.Errorf("live_url = %q, want empty default", got.String("live_url"))
	}
}

func TestGet_NotFound(t *testing.T) {
	st := testStore(t)
	got, err := st.Get(context.Background(), model.Projects, "missing")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil, got %v", got)
	}
}

func TestInsert_Validation(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	_, err := st.Insert(ctx, model.Messages, model.Record{"name": "Ada", "message": ""})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	fields := map[string]bool{}
	for _, d := range verr.Details {
		fields[d.Field] = true
	}
	if !fields["email"] || !fields["message"] {
		t.Errorf("expected email and message errors, got %+v", verr.Details)
	}

	_, err = st.Insert(ctx, model.Projects, model.Record{"title": "x", "password": "nope"})
	if !errors.Is(err, ErrUnknownField) {
		t.Errorf("expected ErrUnknownField, got %v", err)
	}

	_, err = st.Insert(ctx, model.Skills, model.Record{"name": "Go", "level": "expert"})
	if !errors.As(err, &verr) {
		t.Errorf("expected ValidationError for non-integer level, got %v", err)
	}
}

func TestInsert_UniqueSlug(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	post := model.Record{"title": "Hello", "slug": "hello"}
	if _, err := st.Insert(ctx, model.Posts, post); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	_, err := st.Insert(ctx, model.Posts, post)
	if !errors.Is(err, ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}
}

func TestSelect_FilterOrderLimit(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	for i := 5; i >= 1; i-- {
		if _, err := st.Insert(ctx, model.Projects, sampleProject(fmt.Sprintf("p%d", i), i)); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	recs, total, err := st.Select(ctx, model.Projects, Query{})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if total != 5 || len(recs) != 5 {
		t.Fatalf("total=%d len=%d, want 5/5", total, len(recs))
	}
	if recs[0].String("title") != "p1" {
		t.Errorf("default order: first = %q, want p1", recs[0].String("title"))
	}

	recs, _, err = st.Select(ctx, model.Projects, Query{Order: "-sort_order", Limit: 2})
	if err != nil {
		t.Fatalf("Select desc: %v", err)
	}
	if len(recs) != 2 || recs[0].String("title") != "p5" || recs[1].String("title") != "p4" {
		t.Errorf("desc page = %v", recs)
	}

	recs, total, err = st.Select(ctx, model.Projects, Query{Order: "sort_order", Limit: 2, Offset: 2})
	if err != nil {
		t.Fatalf("Select offset: %v", err)
	}
	if total != 5 || len(recs) != 2 || recs[0].String("title") != "p3" {
		t.Errorf("offset page total=%d recs=%v", total, recs)
	}

	recs, total, err = st.Select(ctx, model.Projects, Query{}.Where("featured", true))
	if err != nil {
		t.Fatalf("Select filter: %v", err)
	}
	if total != 1 || recs[0].String("title") != "p1" {
		t.Errorf("featured filter total=%d recs=%v", total, recs)
	}
}

func TestSelect_UnknownFields(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	if _, _, err := st.Select(ctx, model.Projects, Query{Order: "password_hash"}); !errors.Is(err, ErrUnknownField) {
		t.Errorf("order: expected ErrUnknownField, got %v", err)
	}
	if _, _, err := st.Select(ctx, model.Projects, Query{}.Where("1=1; --", "x")); !errors.Is(err, ErrUnknownField) {
		t.Errorf("filter: expected ErrUnknownField, got %v", err)
	}
}

func TestSelect_UnknownCollection(t *testing.T) {
	st := testStore(t)
	bogus := model.Collection{Name: "admins", Fields: []model.Field{{Name: "email"}}}
	if _, _, err := st.Select(context.Background(), bogus, Query{}); !errors.Is(err, ErrUnknownCollection) {
		t.Errorf("expected ErrUnknownCollection, got %v", err)
	}
}

func TestUpdate(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	msg, err := st.Insert(ctx, model.Messages, model.Record{
		"name": "Ada", "email": "ada@example.com", "message": "Hi there",
	})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if msg.Bool("read") {
		t.Fatal("new message should be unread")
	}

	updated, err := st.Update(ctx, model.Messages, msg.ID(), model.Record{"read": true})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if !updated.Bool("read") {
		t.Error("read = false after update")
	}
	if updated.String("message") != "Hi there" {
		t.Errorf("partial update clobbered message: %q", updated.String("message"))
	}

	if _, err := st.Update(ctx, model.Messages, msg.ID(), model.Record{"name": " "}); err == nil {
		t.Error("expected validation error blanking a required field")
	}

	missing, err := st.Update(ctx, model.Messages, "nope", model.Record{"read": true})
	if err != nil {
		t.Fatalf("Update missing: %v", err)
	}
	if missing != nil {
		t.Error("expected nil for missing record")
	}
}

func TestDeleteAndCount(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	a, _ := st.Insert(ctx, model.Skills, model.Record{"name": "Go", "category": "language"})
	st.Insert(ctx, model.Skills, model.Record{"name": "SQL", "category": "language"})
	st.Insert(ctx, model.Skills, model.Record{"name": "Docker", "category": "tooling"})

	n, err := st.Count(ctx, model.Skills, Filter{Field: "category", Value: "language"})
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 2 {
		t.Errorf("Count = %d, want 2", n)
	}

	deleted, err := st.Delete(ctx, model.Skills, a.ID())
	if err != nil || !deleted {
		t.Fatalf("Delete = %v, %v", deleted, err)
	}
	deleted, err = st.Delete(ctx, model.Skills, a.ID())
	if err != nil || deleted {
		t.Errorf("second Delete = %v, %v; want false, nil", deleted, err)
	}

	n, _ = st.Count(ctx, model.Skills)
	if n != 2 {
		t.Errorf("Count after delete = %d, want 2", n)
	}
}

func TestGetBy(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	st.Insert(ctx, model.Posts, model.Record{"title": "Hello", "slug": "hello", "published": true})
	got, err := st.GetBy(ctx, model.Posts, "slug", "hello")
	if err != nil {
		t.Fatalf("GetBy: %v", err)
	}
	if got == nil || got.String("title") != "Hello" {
		t.Errorf("GetBy = %v", got)
	}
}

func TestAdmins(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	a := &model.Admin{Email: " Owner@Example.com ", PasswordHash: "hash"}
	if err := st.CreateAdmin(ctx, a); err != nil {
		t.Fatalf("CreateAdmin: %v", err)
	}
	if a.ID == "" {
		t.Fatal("expected admin id")
	}

	got, err := st.GetAdminByEmail(ctx, "owner@example.com")
	if err != nil {
		t.Fatalf("GetAdminByEmail: %v", err)
	}
	if got == nil || got.PasswordHash != "hash" {
		t.Fatalf("GetAdminByEmail = %+v", got)
	}
	if !got.LastLoginAt.IsZero() {
		t.Error("expected zero last login")
	}

	if err := st.TouchAdminLogin(ctx, got.ID); err != nil {
		t.Fatalf("TouchAdminLogin: %v", err)
	}
	got, _ = st.GetAdminByEmail(ctx, "OWNER@example.com")
	if got.LastLoginAt.IsZero() {
		t.Error("expected last login to be set")
	}

	if err := st.CreateAdmin(ctx, &model.Admin{Email: "owner@example.com", PasswordHash: "x"}); !errors.Is(err, ErrConflict) {
		t.Errorf("expected ErrConflict for duplicate admin, got %v", err)
	}

	missing, err := st.GetAdminByEmail(ctx, "nobody@example.com")
	if err != nil || missing != nil {
		t.Errorf("GetAdminByEmail(missing) = %v, %v", missing, err)
	}
}
