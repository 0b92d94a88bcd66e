package cli

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/me/folio/internal/auth"
	"github.com/me/folio/internal/config"
	"github.com/me/folio/internal/logging"
	"github.com/me/folio/internal/store"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()

	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs(args)

	err := root.Execute()
	return buf.String(), err
}

func tempDB(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "data", "folio.db")
}

func openTestStore(t *testing.T, dbPath string) *store.SQLiteStore {
	t.Helper()
	st, err := store.NewSQLiteStore(dbPath, logging.Discard())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestMigrateCommand(t *testing.T) {
	dbPath := tempDB(t)

	out, err := runCLI(t, "--db", dbPath, "--log-level", "error", "migrate")
	if err != nil {
		t.Fatalf("migrate error: %v\noutput: %s", err, out)
	}
	if !strings.Contains(out, "Database schema is up to date") {
		t.Errorf("unexpected output: %s", out)
	}
	if _, err := os.Stat(dbPath); err != nil {
		t.Errorf("database file not created: %v", err)
	}

	// Running again is a no-op.
	if out, err := runCLI(t, "--db", dbPath, "--log-level", "error", "migrate"); err != nil {
		t.Fatalf("second migrate error: %v\noutput: %s", err, out)
	}
}

func TestAdminCreateCommand(t *testing.T) {
	dbPath := tempDB(t)

	out, err := runCLI(t, "--db", dbPath, "--log-level", "error",
		"admin", "create", "--email", "Owner@Example.com", "--password", "correct-horse")
	if err != nil {
		t.Fatalf("admin create error: %v\noutput: %s", err, out)
	}
	if !strings.Contains(out, "Admin created: owner@example.com (adm_") {
		t.Errorf("unexpected output: %s", out)
	}

	st := openTestStore(t, dbPath)
	admin, err := st.GetAdminByEmail(context.Background(), "owner@example.com")
	if err != nil {
		t.Fatalf("GetAdminByEmail: %v", err)
	}
	if admin == nil {
		t.Fatal("admin not stored")
	}
	if err := auth.VerifyPassword(admin, "correct-horse"); err != nil {
		t.Errorf("VerifyPassword: %v", err)
	}

	_, err = runCLI(t, "--db", dbPath, "--log-level", "error",
		"admin", "create", "--email", "owner@example.com", "--password", "another-password")
	if err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Errorf("expected duplicate error, got %v", err)
	}
}

func TestAdminCreateCommand_Invalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing email", []string{"--password", "long-enough"}, "--email is required"},
		{"short password", []string{"--email", "a@example.com", "--password", "short"}, "at least 8"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dbPath := tempDB(t)
			args := append([]string{"--db", dbPath, "--log-level", "error", "admin", "create"}, tt.args...)
			_, err := runCLI(t, args...)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
			if _, err := os.Stat(dbPath); err == nil {
				t.Error("database touched for invalid input")
			}
		})
	}
}

func TestSeedCommand(t *testing.T) {
	dbPath := tempDB(t)
	seedFile := filepath.Join(t.TempDir(), "seed.yaml")
	content := `
projects:
  - title: folio
    featured: true
posts:
  - title: Hello
    slug: hello
    published: true
`
	if err := os.WriteFile(seedFile, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := runCLI(t, "--db", dbPath, "--log-level", "error", "seed", "--file", seedFile)
	if err != nil {
		t.Fatalf("seed error: %v\noutput: %s", err, out)
	}
	if !strings.Contains(out, "Seeded 2 records") {
		t.Errorf("unexpected output: %s", out)
	}

	// The post is skipped by slug on the second run; the project has no slug.
	out, err = runCLI(t, "--db", dbPath, "--log-level", "error", "seed", "-f", seedFile)
	if err != nil {
		t.Fatalf("second seed error: %v\noutput: %s", err, out)
	}
	if !strings.Contains(out, "Seeded 1 records") {
		t.Errorf("unexpected output: %s", out)
	}
	if !strings.Contains(out, "skipped 1") {
		t.Errorf("expected a skipped post, got: %s", out)
	}
}

func TestSeedCommand_MissingFile(t *testing.T) {
	_, err := runCLI(t, "--db", tempDB(t), "--log-level", "error", "seed")
	if err == nil || !strings.Contains(err.Error(), "--file is required") {
		t.Fatalf("expected --file error, got %v", err)
	}

	_, err = runCLI(t, "--db", tempDB(t), "--log-level", "error", "seed", "--file", "/nonexistent/seed.yaml")
	if err == nil {
		t.Fatal("expected error for missing seed file")
	}
}

func TestServeCommand_InvalidConfig(t *testing.T) {
	t.Setenv("FOLIO_BACKEND_URL", "")
	t.Setenv("FOLIO_BACKEND_KEY", "")

	_, err := runCLI(t, "--db", tempDB(t), "serve", "--addr", "127.0.0.1:0")
	if err == nil {
		t.Fatal("expected configuration error")
	}
	if !strings.Contains(err.Error(), "backend URL is required") {
		t.Errorf("unexpected error: %v", err)
	}
}

func testConfig(t *testing.T) config.ServerConfig {
	t.Helper()
	mr := miniredis.RunT(t)
	cfg := config.DefaultServerConfig()
	cfg.BackendURL = "redis://" + mr.Addr()
	cfg.BackendKey = "test-key"
	return cfg
}

func TestBuildServer(t *testing.T) {
	logger = logging.Discard()
	st := openTestStore(t, ":memory:")
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	srv, provider, err := buildServer(context.Background(), testConfig(t), st, logging.Discard())
	if err != nil {
		t.Fatalf("buildServer: %v", err)
	}
	t.Cleanup(func() { provider.Close() })

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}

	resp, err := client.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status = %d, body: %s", resp.StatusCode, body)
	}
	if !strings.Contains(string(body), `"sessions":"ok"`) {
		t.Errorf("healthz missing sessions check: %s", body)
	}

	resp, err = client.Get(ts.URL + "/admin")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusFound || resp.Header.Get("Location") != "/auth/login" {
		t.Errorf("GET /admin = %d %q, want 302 /auth/login", resp.StatusCode, resp.Header.Get("Location"))
	}

	resp, err = client.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	for _, want := range []string{"go_goroutines", "folio_gate_decisions_total"} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics missing %s", want)
		}
	}
}

func TestBuildServer_BadPolicy(t *testing.T) {
	st := openTestStore(t, ":memory:")
	cfg := testConfig(t)
	cfg.AdminHome = "/dashboard"

	if _, _, err := buildServer(context.Background(), cfg, st, logging.Discard()); err == nil {
		t.Fatal("expected error for admin home outside the protected patterns")
	}
}

func TestListenAndServe_Shutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- listenAndServe(ctx, "127.0.0.1:0", http.NotFoundHandler(), logging.Discard())
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("listenAndServe: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestBuildServer_BadBackendURL(t *testing.T) {
	st := openTestStore(t, ":memory:")
	cfg := config.DefaultServerConfig()
	cfg.BackendURL = "not a redis url"
	cfg.BackendKey = "test-key"

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	_, _, err := buildServer(context.Background(), cfg, st, logging.Discard())
	if err == nil {
		t.Fatal("expected startup error for a malformed backend URL")
	}
	if !strings.Contains(err.Error(), "session backend") {
		t.Errorf("unexpected error: %v", err)
	}
}
