package ui

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/me/folio/internal/auth"
	"github.com/me/folio/internal/logging"
	"github.com/me/folio/internal/session"
	"github.com/me/folio/internal/store"
	"github.com/me/folio/pkg/model"
)

type fakeSessions struct {
	created *model.Identity
	revoked bool
}

func (f *fakeSessions) Create(ctx context.Context, id *model.Identity) (*session.Tokens, []*http.Cookie, error) {
	f.created = id
	return &session.Tokens{SessionID: "sess_1"}, []*http.Cookie{{Name: session.AccessCookieName, Value: "tok", Path: "/"}}, nil
}

func (f *fakeSessions) Revoke(ctx context.Context, cookies []*http.Cookie) ([]*http.Cookie, error) {
	f.revoked = true
	return []*http.Cookie{{Name: session.AccessCookieName, Value: "", Path: "/", MaxAge: -1}}, nil
}

type uiFixture struct {
	store    *store.SQLiteStore
	sessions *fakeSessions
	router   chi.Router
}

func newFixture(t *testing.T) *uiFixture {
	t.Helper()
	st, err := store.NewSQLiteStore(":memory:", logging.Discard())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	policy, err := auth.NewRoutePolicy([]string{"/admin/*", "/auth/*"}, "/auth/login", "/admin")
	if err != nil {
		t.Fatalf("policy: %v", err)
	}
	sessions := &fakeSessions{}
	r := chi.NewRouter()
	New(st, sessions, policy, logging.Discard()).RegisterRoutes(r)
	return &uiFixture{store: st, sessions: sessions, router: r}
}

var owner = &model.Identity{UserID: "adm_1", Email: "owner@example.com"}

func (f *uiFixture) do(method, target string, form url.Values, id *model.Identity) *httptest.ResponseRecorder {
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if id != nil {
		req = req.WithContext(auth.WithIdentity(req.Context(), id))
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *uiFixture) insert(t *testing.T, c model.Collection, rec model.Record) model.Record {
	t.Helper()
	out, err := f.store.Insert(context.Background(), c, rec)
	if err != nil {
		t.Fatalf("insert %s: %v", c.Name, err)
	}
	return out
}

func TestHome(t *testing.T) {
	f := newFixture(t)
	f.insert(t, model.Projects, model.Record{"title": "Featured thing", "featured": true, "tech_stack": "go,redis"})
	f.insert(t, model.Projects, model.Record{"title": "Hidden thing"})
	f.insert(t, model.Skills, model.Record{"name": "Go", "category": "Languages"})
	f.insert(t, model.Posts, model.Record{"title": "Draft", "slug": "draft"})

	w := f.do("GET", "/", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body=%s", w.Code, w.Body.String())
	}
	body := w.Body.String()
	if !strings.Contains(body, "Featured thing") {
		t.Error("featured project missing")
	}
	if strings.Contains(body, "Hidden thing") {
		t.Error("non-featured project shown on home page")
	}
	if strings.Contains(body, "Draft") {
		t.Error("unpublished post shown on home page")
	}
	if !strings.Contains(body, "Languages") {
		t.Error("skill category missing")
	}
}

func TestBlogPost(t *testing.T) {
	f := newFixture(t)
	f.insert(t, model.Posts, model.Record{"title": "Hello", "slug": "hello", "published": true,
		"published_at": "2026-01-02T00:00:00Z", "content": "First.\n\nSecond."})
	f.insert(t, model.Posts, model.Record{"title": "Secret", "slug": "secret"})

	w := f.do("GET", "/blog/hello", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "<p class=\"mb-4 text-gray-800\">Second.</p>") {
		t.Errorf("content paragraphs not rendered: %s", w.Body.String())
	}

	if w := f.do("GET", "/blog/secret", nil, nil); w.Code != http.StatusNotFound {
		t.Errorf("unpublished post status = %d, want 404", w.Code)
	}
	if w := f.do("GET", "/blog/missing", nil, nil); w.Code != http.StatusNotFound {
		t.Errorf("missing post status = %d, want 404", w.Code)
	}

	w = f.do("GET", "/blog", nil, nil)
	if w.Code != http.StatusOK || strings.Contains(w.Body.String(), "Secret") {
		t.Errorf("blog list: status=%d, leaked draft=%v", w.Code, strings.Contains(w.Body.String(), "Secret"))
	}
}

func TestContact(t *testing.T) {
	f := newFixture(t)

	if w := f.do("GET", "/contact", nil, nil); w.Code != http.StatusOK {
		t.Fatalf("GET /contact status = %d, body=%s", w.Code, w.Body.String())
	}

	w := f.do("POST", "/contact", url.Values{"name": {"Ada"}, "email": {"not-an-email"}, "message": {"hi"}}, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("invalid contact status = %d, want 400", w.Code)
	}
	if !strings.Contains(w.Body.String(), "not a valid address") {
		t.Error("expected email error in form")
	}

	w = f.do("POST", "/contact", url.Values{"name": {"Ada"}, "email": {"ada@example.com"}, "message": {"hi"}}, nil)
	if w.Code != http.StatusSeeOther || w.Header().Get("Location") != "/contact?sent=1" {
		t.Fatalf("contact post: status=%d location=%q", w.Code, w.Header().Get("Location"))
	}
	n, _ := f.store.Count(context.Background(), model.Messages, store.Filter{Field: "read", Value: false})
	if n != 1 {
		t.Errorf("unread messages = %d, want 1", n)
	}
}

func TestContact_TooLarge(t *testing.T) {
	f := newFixture(t)

	w := f.do("POST", "/contact", url.Values{"name": {"Ada"}, "email": {"ada@example.com"}, "message": {strings.Repeat("x", maxContactForm)}}, nil)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413", w.Code)
	}
	if n, _ := f.store.Count(context.Background(), model.Messages); n != 0 {
		t.Errorf("messages = %d, want 0", n)
	}
}

func TestLogin(t *testing.T) {
	f := newFixture(t)
	hash, err := auth.HashPassword("correct horse")
	if err != nil {
		t.Fatal(err)
	}
	if err := f.store.CreateAdmin(context.Background(), &model.Admin{Email: "Owner@Example.com", PasswordHash: hash}); err != nil {
		t.Fatal(err)
	}

	if w := f.do("GET", "/auth/login", nil, nil); w.Code != http.StatusOK {
		t.Fatalf("GET login status = %d", w.Code)
	}

	w := f.do("POST", "/auth/login", url.Values{"email": {"owner@example.com"}, "password": {"wrong horse"}}, nil)
	if w.Code != http.StatusSeeOther || !strings.HasPrefix(w.Header().Get("Location"), "/auth/login?error=") {
		t.Fatalf("bad password: status=%d location=%q", w.Code, w.Header().Get("Location"))
	}
	if f.sessions.created != nil {
		t.Fatal("session created for wrong password")
	}

	w = f.do("POST", "/auth/login", url.Values{"email": {"owner@example.com"}, "password": {"correct horse"}}, nil)
	if w.Code != http.StatusSeeOther || w.Header().Get("Location") != "/admin" {
		t.Fatalf("login: status=%d location=%q", w.Code, w.Header().Get("Location"))
	}
	if f.sessions.created == nil || f.sessions.created.Email != "owner@example.com" {
		t.Fatalf("session identity = %+v", f.sessions.created)
	}
	if len(w.Result().Cookies()) == 0 {
		t.Error("expected session cookies")
	}

	admin, _ := f.store.GetAdminByEmail(context.Background(), "owner@example.com")
	if admin.LastLoginAt.IsZero() {
		t.Error("last login not recorded")
	}
}

func TestLogout(t *testing.T) {
	f := newFixture(t)
	w := f.do("POST", "/auth/logout", nil, nil)
	if w.Code != http.StatusSeeOther || w.Header().Get("Location") != "/auth/login" {
		t.Fatalf("logout: status=%d location=%q", w.Code, w.Header().Get("Location"))
	}
	if !f.sessions.revoked {
		t.Error("session not revoked")
	}
	cookies := w.Result().Cookies()
	if len(cookies) != 1 || cookies[0].MaxAge >= 0 {
		t.Errorf("expected a clearing cookie, got %v", cookies)
	}
}

func TestAdminRequiresIdentity(t *testing.T) {
	f := newFixture(t)
	for _, path := range []string{"/admin", "/admin/projects", "/admin/projects/new"} {
		w := f.do("GET", path, nil, nil)
		if w.Code != http.StatusFound || w.Header().Get("Location") != "/auth/login" {
			t.Errorf("GET %s: status=%d location=%q", path, w.Code, w.Header().Get("Location"))
		}
	}
}

func TestAdminDashboard(t *testing.T) {
	f := newFixture(t)
	f.insert(t, model.Messages, model.Record{"name": "Ada", "email": "ada@example.com", "message": "Hello there"})

	w := f.do("GET", "/admin", nil, owner)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body=%s", w.Code, w.Body.String())
	}
	body := w.Body.String()
	if !strings.Contains(body, "Unread messages (1)") {
		t.Error("unread count missing")
	}
	if !strings.Contains(body, "owner@example.com") {
		t.Error("identity missing from page")
	}
}

func TestAdminRecordLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if w := f.do("GET", "/admin/projects/new", nil, owner); w.Code != http.StatusOK {
		t.Fatalf("new form status = %d, body=%s", w.Code, w.Body.String())
	}

	w := f.do("POST", "/admin/projects", url.Values{"title": {""}}, owner)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing title status = %d, want 400", w.Code)
	}

	w = f.do("POST", "/admin/projects", url.Values{"title": {"Folio"}, "featured": {"on"}, "sort_order": {"2"}}, owner)
	if w.Code != http.StatusSeeOther || w.Header().Get("Location") != "/admin/projects" {
		t.Fatalf("create: status=%d location=%q body=%s", w.Code, w.Header().Get("Location"), w.Body.String())
	}
	recs, _, _ := f.store.Select(ctx, model.Projects, store.Query{})
	if len(recs) != 1 || !recs[0].Bool("featured") {
		t.Fatalf("records = %v", recs)
	}
	id := recs[0].ID()

	if w := f.do("GET", "/admin/projects/"+id, nil, owner); w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "Folio") {
		t.Fatalf("edit form status = %d", w.Code)
	}

	// Unchecked checkbox clears the flag.
	w = f.do("POST", "/admin/projects/"+id, url.Values{"title": {"Folio 2"}}, owner)
	if w.Code != http.StatusSeeOther {
		t.Fatalf("update status = %d, body=%s", w.Code, w.Body.String())
	}
	rec, _ := f.store.Get(ctx, model.Projects, id)
	if rec.String("title") != "Folio 2" || rec.Bool("featured") {
		t.Errorf("after update: %v", rec)
	}

	if w := f.do("GET", "/admin/projects", nil, owner); w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "Folio 2") {
		t.Errorf("list status = %d", w.Code)
	}

	w = f.do("POST", "/admin/projects/"+id+"/delete", nil, owner)
	if w.Code != http.StatusSeeOther {
		t.Fatalf("delete status = %d", w.Code)
	}
	if rec, _ := f.store.Get(ctx, model.Projects, id); rec != nil {
		t.Error("record still present after delete")
	}
}

func TestAdminMarkRead(t *testing.T) {
	f := newFixture(t)
	msg := f.insert(t, model.Messages, model.Record{"name": "Ada", "email": "ada@example.com", "message": "Hi"})

	w := f.do("POST", "/admin/messages/"+msg.ID()+"/read", nil, owner)
	if w.Code != http.StatusSeeOther {
		t.Fatalf("status = %d", w.Code)
	}
	rec, _ := f.store.Get(context.Background(), model.Messages, msg.ID())
	if !rec.Bool("read") {
		t.Error("message not marked read")
	}

	if w := f.do("POST", "/admin/projects/x/read", nil, owner); w.Code != http.StatusNotFound {
		t.Errorf("mark read on projects status = %d, want 404", w.Code)
	}
}

func TestAdminUnknownCollection(t *testing.T) {
	f := newFixture(t)
	if w := f.do("GET", "/admin/widgets", nil, owner); w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}
