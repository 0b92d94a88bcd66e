package ui

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all UI routes on the given router.
func (ui *UI) RegisterRoutes(r chi.Router) {
	// Public site.
	r.Get("/", ui.HandleHome)
	r.Get("/projects", ui.HandleProjects)
	r.Get("/blog", ui.HandleBlog)
	r.Get("/blog/{slug}", ui.HandlePost)
	r.Get("/contact", ui.HandleContact)
	r.Post("/contact", ui.HandleContactPost)

	// Sign-in and sign-out.
	r.Get(ui.policy.LoginPath(), ui.HandleLogin)
	r.Post(ui.policy.LoginPath(), ui.HandleLoginPost)
	r.Get(ui.logoutPath(), ui.HandleLogout)
	r.Post(ui.logoutPath(), ui.HandleLogout)

	// Admin pages.
	r.Route(ui.policy.AdminHome(), func(r chi.Router) {
		r.Use(ui.RequireIdentity)
		r.Get("/", ui.HandleDashboard)
		r.Route("/{collection}", func(r chi.Router) {
			r.Get("/", ui.HandleCollectionList)
			r.Post("/", ui.HandleRecordSave)
			r.Get("/new", ui.HandleRecordNew)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", ui.HandleRecordEdit)
				r.Post("/", ui.HandleRecordSave)
				r.Post("/delete", ui.HandleRecordDelete)
				r.Post("/read", ui.HandleMarkRead)
			})
		})
	})
}
