package ui

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/me/folio/internal/auth"
	"github.com/me/folio/internal/session"
	"github.com/me/folio/internal/store"
	"github.com/me/folio/pkg/model"
)

// Sessions creates and revokes admin sessions.
// *session.Manager implements it.
type Sessions interface {
	Create(ctx context.Context, id *model.Identity) (*session.Tokens, []*http.Cookie, error)
	Revoke(ctx context.Context, cookies []*http.Cookie) ([]*http.Cookie, error)
}

// UI handles the web user interface.
type UI struct {
	store     store.Store
	sessions  Sessions
	policy    *auth.RoutePolicy
	logger    *slog.Logger
	startTime time.Time
}

// New creates a new UI handler.
func New(st store.Store, sessions Sessions, policy *auth.RoutePolicy, logger *slog.Logger) *UI {
	return &UI{
		store:     st,
		sessions:  sessions,
		policy:    policy,
		logger:    logger.With("component", "ui"),
		startTime: time.Now(),
	}
}

func (ui *UI) logoutPath() string {
	return path.Join(path.Dir(ui.policy.LoginPath()), "logout")
}

// --- Sign-in ---

// HandleLogin renders the login page. Signed-in visitors never get here;
// the gate sends them to the admin home.
func (ui *UI) HandleLogin(w http.ResponseWriter, r *http.Request) {
	data := map[string]any{
		"Title":     "Sign in - Folio",
		"Error":     r.URL.Query().Get("error"),
		"LoginPath": ui.policy.LoginPath(),
	}
	ui.render(w, http.StatusOK, "login", data)
}

// HandleLoginPost checks the credentials and starts a session.
func (ui *UI) HandleLoginPost(w http.ResponseWriter, r *http.Request) {
	loginPath := ui.policy.LoginPath()
	if err := r.ParseForm(); err != nil {
		http.Redirect(w, r, loginPath+"?error=Invalid+request", http.StatusSeeOther)
		return
	}

	email := strings.TrimSpace(r.FormValue("email"))
	password := r.FormValue("password")
	if email == "" || password == "" {
		http.Redirect(w, r, loginPath+"?error=Email+and+password+required", http.StatusSeeOther)
		return
	}

	admin, err := ui.store.GetAdminByEmail(r.Context(), email)
	if err != nil {
		ui.logger.Error("admin lookup failed", "error", err)
		http.Redirect(w, r, loginPath+"?error=Sign-in+is+unavailable", http.StatusSeeOther)
		return
	}
	if err := auth.VerifyPassword(admin, password); err != nil {
		ui.logger.Warn("login failed", "email", email)
		http.Redirect(w, r, loginPath+"?error=Invalid+credentials", http.StatusSeeOther)
		return
	}

	tokens, cookies, err := ui.sessions.Create(r.Context(), admin.Identity())
	if err != nil {
		ui.logger.Error("create session failed", "error", err)
		http.Redirect(w, r, loginPath+"?error=Sign-in+is+unavailable", http.StatusSeeOther)
		return
	}
	for _, c := range cookies {
		http.SetCookie(w, c)
	}
	if err := ui.store.TouchAdminLogin(r.Context(), admin.ID); err != nil {
		ui.logger.Warn("record last login failed", "admin", admin.ID, "error", err)
	}

	ui.logger.Info("admin logged in", "email", admin.Email, "session", tokens.SessionID)
	http.Redirect(w, r, ui.policy.AdminHome(), http.StatusSeeOther)
}

// HandleLogout revokes the session and clears the cookies.
func (ui *UI) HandleLogout(w http.ResponseWriter, r *http.Request) {
	cookies, err := ui.sessions.Revoke(r.Context(), r.Cookies())
	if err != nil {
		ui.logger.Warn("session revoke failed", "error", err)
	}
	for _, c := range cookies {
		http.SetCookie(w, c)
	}
	http.Redirect(w, r, ui.policy.LoginPath(), http.StatusSeeOther)
}

// --- Public site ---

// HandleHome renders the landing page.
func (ui *UI) HandleHome(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	featured, _, err := ui.store.Select(ctx, model.Projects, store.Query{Limit: 6}.Where("featured", true))
	if err != nil {
		ui.renderError(w, "Failed to load projects", err)
		return
	}
	experiences, _, err := ui.store.Select(ctx, model.Experiences, store.Query{Limit: 20})
	if err != nil {
		ui.renderError(w, "Failed to load experience", err)
		return
	}
	education, _, err := ui.store.Select(ctx, model.Education, store.Query{Limit: 20})
	if err != nil {
		ui.renderError(w, "Failed to load education", err)
		return
	}
	skills, _, err := ui.store.Select(ctx, model.Skills, store.Query{Limit: 100})
	if err != nil {
		ui.renderError(w, "Failed to load skills", err)
		return
	}
	posts, _, err := ui.store.Select(ctx, model.Posts, store.Query{Limit: 3}.Where("published", true))
	if err != nil {
		ui.renderError(w, "Failed to load posts", err)
		return
	}

	ui.render(w, http.StatusOK, "home", map[string]any{
		"Title":       "Folio",
		"Projects":    featured,
		"Experiences": experiences,
		"Education":   education,
		"Skills":      groupSkills(skills),
		"Posts":       posts,
	})
}

// HandleProjects lists every project.
func (ui *UI) HandleProjects(w http.ResponseWriter, r *http.Request) {
	projects, _, err := ui.store.Select(r.Context(), model.Projects, store.Query{Limit: 100})
	if err != nil {
		ui.renderError(w, "Failed to load projects", err)
		return
	}
	ui.render(w, http.StatusOK, "projects", map[string]any{
		"Title":    "Projects - Folio",
		"Projects": projects,
	})
}

// HandleBlog lists published posts.
func (ui *UI) HandleBlog(w http.ResponseWriter, r *http.Request) {
	// A malformed query falls back to the first page.
	opts, _ := model.ParseListOptions(r.URL.Query(), 10)

	posts, total, err := ui.store.Select(r.Context(), model.Posts,
		store.Query{Limit: opts.Limit, Offset: opts.Offset}.Where("published", true))
	if err != nil {
		ui.renderError(w, "Failed to load posts", err)
		return
	}
	ui.render(w, http.StatusOK, "blog/list", map[string]any{
		"Title":      "Blog - Folio",
		"Posts":      posts,
		"Pagination": model.NewPagination(total, opts.Limit, opts.Offset),
	})
}

// HandlePost renders one published post.
func (ui *UI) HandlePost(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	post, err := ui.store.GetBy(r.Context(), model.Posts, "slug", slug)
	if err != nil {
		ui.renderError(w, "Failed to load post", err)
		return
	}
	if post == nil || !post.Bool("published") {
		ui.renderNotFound(w, "Post not found")
		return
	}
	ui.render(w, http.StatusOK, "blog/post", map[string]any{
		"Title": post.String("title") + " - Folio",
		"Post":  post,
	})
}

// maxContactForm caps the contact form body.
const maxContactForm = 64 << 10

// HandleContact renders the contact form.
func (ui *UI) HandleContact(w http.ResponseWriter, r *http.Request) {
	ui.render(w, http.StatusOK, "contact", map[string]any{
		"Title":  "Contact - Folio",
		"Sent":   r.URL.Query().Get("sent") != "",
		"Form":   model.ContactForm{},
		"Errors": map[string]string{},
	})
}

// HandleContactPost stores a message from the contact form.
func (ui *UI) HandleContactPost(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxContactForm)
	if err := r.ParseForm(); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "Message too large", http.StatusRequestEntityTooLarge)
			return
		}
		ui.renderNotFound(w, "Invalid request")
		return
	}
	form := model.ContactForm{
		Name:    r.FormValue("name"),
		Email:   r.FormValue("email"),
		Subject: r.FormValue("subject"),
		Message: r.FormValue("message"),
	}
	if errs := form.Validate(); len(errs) > 0 {
		ui.render(w, http.StatusBadRequest, "contact", map[string]any{
			"Title":  "Contact - Folio",
			"Form":   form,
			"Errors": fieldErrors(errs),
		})
		return
	}
	if _, err := ui.store.Insert(r.Context(), model.Messages, form.Record()); err != nil {
		ui.renderError(w, "Failed to send message", err)
		return
	}
	http.Redirect(w, r, "/contact?sent=1", http.StatusSeeOther)
}

// --- Admin ---

type collectionStat struct {
	Collection model.Collection
	Count      int
}

// HandleDashboard renders the admin landing page.
func (ui *UI) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var stats []collectionStat
	for _, c := range model.Collections() {
		n, err := ui.store.Count(ctx, c)
		if err != nil {
			ui.renderError(w, "Failed to count "+c.Label, err)
			return
		}
		stats = append(stats, collectionStat{Collection: c, Count: n})
	}
	unread, unreadCount, err := ui.store.Select(ctx, model.Messages, store.Query{Limit: 5}.Where("read", false))
	if err != nil {
		ui.renderError(w, "Failed to load messages", err)
		return
	}

	ui.render(w, http.StatusOK, "admin/dashboard", map[string]any{
		"Title":       "Dashboard - Folio",
		"Identity":    auth.IdentityFromContext(ctx),
		"Stats":       stats,
		"Unread":      unread,
		"UnreadCount": unreadCount,
		"Uptime":      time.Since(ui.startTime).Round(time.Second).String(),
	})
}

// HandleCollectionList lists the records of one collection.
func (ui *UI) HandleCollectionList(w http.ResponseWriter, r *http.Request) {
	c, ok := ui.collection(w, r)
	if !ok {
		return
	}
	opts, _ := model.ParseListOptions(r.URL.Query(), 50)

	records, total, err := ui.store.Select(r.Context(), c, store.Query{Limit: opts.Limit, Offset: opts.Offset})
	if err != nil {
		ui.renderError(w, "Failed to load "+c.Label, err)
		return
	}
	ui.render(w, http.StatusOK, "admin/list", map[string]any{
		"Title":      c.Label + " - Folio",
		"Identity":   auth.IdentityFromContext(r.Context()),
		"Collection": c,
		"Columns":    listColumns(c),
		"Records":    records,
		"Pagination": model.NewPagination(total, opts.Limit, opts.Offset),
	})
}

// HandleRecordNew renders an empty record form.
func (ui *UI) HandleRecordNew(w http.ResponseWriter, r *http.Request) {
	c, ok := ui.collection(w, r)
	if !ok {
		return
	}
	ui.renderForm(w, r, http.StatusOK, c, model.Record{}, nil)
}

// HandleRecordEdit renders the form for an existing record.
func (ui *UI) HandleRecordEdit(w http.ResponseWriter, r *http.Request) {
	c, ok := ui.collection(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	rec, err := ui.store.Get(r.Context(), c, id)
	if err != nil {
		ui.renderError(w, "Failed to load record", err)
		return
	}
	if rec == nil {
		ui.renderNotFound(w, c.Label+" record not found: "+id)
		return
	}
	ui.renderForm(w, r, http.StatusOK, c, rec, nil)
}

// HandleRecordSave creates a record, or updates one when the route has an id.
func (ui *UI) HandleRecordSave(w http.ResponseWriter, r *http.Request) {
	c, ok := ui.collection(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		ui.renderNotFound(w, "Invalid request")
		return
	}
	rec := formRecord(c, r)
	id := chi.URLParam(r, "id")

	var saved model.Record
	var err error
	if id == "" {
		saved, err = ui.store.Insert(r.Context(), c, rec)
	} else {
		saved, err = ui.store.Update(r.Context(), c, id, rec)
	}

	var verr *store.ValidationError
	switch {
	case errors.As(err, &verr):
		rec["id"] = id
		ui.renderForm(w, r, http.StatusBadRequest, c, rec, fieldErrors(verr.Details))
		return
	case errors.Is(err, store.ErrConflict):
		rec["id"] = id
		ui.renderForm(w, r, http.StatusConflict, c, rec, map[string]string{"": "A record with the same unique value already exists"})
		return
	case err != nil:
		ui.renderError(w, "Failed to save record", err)
		return
	case saved == nil:
		ui.renderNotFound(w, c.Label+" record not found: "+id)
		return
	}
	ui.logger.Info("record saved", "collection", c.Name, "id", saved.ID())
	http.Redirect(w, r, ui.policy.AdminHome()+"/"+c.Name, http.StatusSeeOther)
}

// HandleRecordDelete removes a record and returns to the list.
func (ui *UI) HandleRecordDelete(w http.ResponseWriter, r *http.Request) {
	c, ok := ui.collection(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	if _, err := ui.store.Delete(r.Context(), c, id); err != nil {
		ui.renderError(w, "Failed to delete record", err)
		return
	}
	ui.logger.Info("record deleted", "collection", c.Name, "id", id)
	http.Redirect(w, r, ui.policy.AdminHome()+"/"+c.Name, http.StatusSeeOther)
}

// HandleMarkRead marks a contact message as read.
func (ui *UI) HandleMarkRead(w http.ResponseWriter, r *http.Request) {
	if chi.URLParam(r, "collection") != model.Messages.Name {
		ui.renderNotFound(w, "Only messages can be marked read")
		return
	}
	id := chi.URLParam(r, "id")
	if _, err := ui.store.Update(r.Context(), model.Messages, id, model.Record{"read": true}); err != nil {
		ui.renderError(w, "Failed to update message", err)
		return
	}
	http.Redirect(w, r, ui.policy.AdminHome()+"/"+model.Messages.Name, http.StatusSeeOther)
}

func (ui *UI) collection(w http.ResponseWriter, r *http.Request) (model.Collection, bool) {
	name := chi.URLParam(r, "collection")
	c, ok := model.LookupCollection(name)
	if !ok {
		ui.renderNotFound(w, "No such collection: "+name)
	}
	return c, ok
}

func (ui *UI) renderForm(w http.ResponseWriter, r *http.Request, status int, c model.Collection, rec model.Record, errs map[string]string) {
	ui.render(w, status, "admin/form", map[string]any{
		"Title":      c.Label + " - Folio",
		"Identity":   auth.IdentityFromContext(r.Context()),
		"Collection": c,
		"Record":     rec,
		"Errors":     errs,
		"AdminHome":  ui.policy.AdminHome(),
	})
}

// formRecord reads every field of c from a submitted form. Unchecked
// checkboxes are absent from the form, so bool fields are always set.
func formRecord(c model.Collection, r *http.Request) model.Record {
	rec := model.Record{}
	for _, f := range c.Fields {
		if f.Type == model.FieldBool {
			rec[f.Name] = r.FormValue(f.Name) != ""
			continue
		}
		rec[f.Name] = r.FormValue(f.Name)
	}
	return rec
}

// listColumns picks the fields shown in an admin table.
func listColumns(c model.Collection) []model.Field {
	var cols []model.Field
	for _, f := range c.Fields {
		if f.Name == "description" || f.Name == "content" || f.Name == "message" {
			continue
		}
		cols = append(cols, f)
		if len(cols) == 4 {
			break
		}
	}
	return cols
}

type skillGroup struct {
	Category string
	Skills   []model.Record
}

func groupSkills(skills []model.Record) []skillGroup {
	var groups []skillGroup
	index := map[string]int{}
	for _, s := range skills {
		cat := s.String("category")
		if cat == "" {
			cat = "Other"
		}
		i, ok := index[cat]
		if !ok {
			i = len(groups)
			index[cat] = i
			groups = append(groups, skillGroup{Category: cat})
		}
		groups[i].Skills = append(groups[i].Skills, s)
	}
	return groups
}

func fieldErrors(details []model.FieldError) map[string]string {
	out := make(map[string]string, len(details))
	for _, d := range details {
		out[d.Field] = d.Message
	}
	return out
}

func (ui *UI) render(w http.ResponseWriter, status int, template string, data map[string]any) {
	var buf bytes.Buffer
	if err := renderTemplate(&buf, template, data); err != nil {
		ui.logger.Error("template render failed", "template", template, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

func (ui *UI) renderError(w http.ResponseWriter, message string, err error) {
	ui.logger.Error(message, "error", err)
	data := map[string]any{
		"Title":   "Error - Folio",
		"Message": message,
	}
	ui.render(w, http.StatusInternalServerError, "error", data)
}

func (ui *UI) renderNotFound(w http.ResponseWriter, message string) {
	data := map[string]any{
		"Title":   "Not Found - Folio",
		"Message": message,
	}
	ui.render(w, http.StatusNotFound, "error", data)
}
