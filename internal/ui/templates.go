package ui

import (
	"fmt"
	"html/template"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/me/folio/pkg/model"
)

// longTextFields render as a textarea in admin forms.
var longTextFields = map[string]bool{
	"description": true,
	"content":     true,
	"excerpt":     true,
	"message":     true,
}

// Template functions available in all templates.
var templateFuncs = template.FuncMap{
	"formatDate": func(s string) string {
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"} {
			if t, err := time.Parse(layout, s); err == nil {
				return t.Format("Jan 2, 2006")
			}
		}
		return s
	},
	"formatMonth": func(s string) string {
		for _, layout := range []string{"2006-01-02", "2006-01", time.RFC3339} {
			if t, err := time.Parse(layout, s); err == nil {
				return t.Format("Jan 2006")
			}
		}
		return s
	},
	"field": func(rec model.Record, name string) string {
		return rec.String(name)
	},
	"checked": func(rec model.Record, name string) bool {
		return rec.Bool(name)
	},
	"splitList": func(s string) []string {
		var out []string
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out
	},
	"paragraphs": func(s string) []string {
		var out []string
		for _, p := range strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n\n") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	},
	"inputType": func(f model.Field) string {
		switch {
		case f.Type == model.FieldBool:
			return "checkbox"
		case f.Type == model.FieldInt:
			return "number"
		case longTextFields[f.Name]:
			return "textarea"
		default:
			return "text"
		}
	},
	"label": func(name string) string {
		name = strings.ReplaceAll(name, "_", " ")
		if name == "" {
			return name
		}
		return strings.ToUpper(name[:1]) + name[1:]
	},
	"collections": model.Collections,
	"truncate": func(s string, n int) string {
		if len(s) <= n {
			return s
		}
		return s[:n] + "..."
	},
}

// renderTemplate renders a template with the given data.
func renderTemplate(w io.Writer, name string, data map[string]any) error {
	// Get the template content.
	content, ok := templates[name]
	if !ok {
		return fmt.Errorf("template not found: %s", name)
	}

	// Get the layout template.
	layout, ok := templates["layout"]
	if !ok {
		return fmt.Errorf("layout template not found")
	}

	// Parse templates.
	tmpl, err := template.New("layout").Funcs(templateFuncs).Parse(layout)
	if err != nil {
		return fmt.Errorf("parse layout: %w", err)
	}

	_, err = tmpl.New("content").Parse(content)
	if err != nil {
		return fmt.Errorf("parse content: %w", err)
	}

	// Add shared components.
	for compName, compContent := range templates {
		if strings.HasPrefix(compName, "components/") {
			_, err = tmpl.New(filepath.Base(compName)).Parse(compContent)
			if err != nil {
				return fmt.Errorf("parse component %s: %w", compName, err)
			}
		}
	}

	return tmpl.Execute(w, data)
}

// templates holds all template content.
var templates = map[string]string{
	"layout": `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Title}}</title>
    <script src="https://cdn.tailwindcss.com"></script>
</head>
<body class="bg-gray-50 min-h-screen">
    <nav class="bg-white shadow-sm border-b">
        <div class="max-w-5xl mx-auto px-4 sm:px-6 lg:px-8">
            <div class="flex justify-between h-16">
                <div class="flex">
                    <a href="/" class="flex items-center px-2 py-2 text-xl font-bold text-indigo-600">Folio</a>
                    <div class="hidden sm:ml-6 sm:flex sm:space-x-8">
                        <a href="/projects" class="text-gray-500 hover:text-gray-700 inline-flex items-center px-1 pt-1 text-sm font-medium">Projects</a>
                        <a href="/blog" class="text-gray-500 hover:text-gray-700 inline-flex items-center px-1 pt-1 text-sm font-medium">Blog</a>
                        <a href="/contact" class="text-gray-500 hover:text-gray-700 inline-flex items-center px-1 pt-1 text-sm font-medium">Contact</a>
                    </div>
                </div>
                {{if .Identity}}
                <div class="flex items-center">
                    <a href="/admin" class="text-sm text-indigo-600 mr-4">Admin</a>
                    <span class="text-sm text-gray-500 mr-4">{{.Identity.Email}}</span>
                    <form action="/auth/logout" method="POST"><button class="text-sm text-gray-500 hover:text-gray-700">Sign out</button></form>
                </div>
                {{end}}
            </div>
        </div>
    </nav>
    {{if .Identity}}{{template "admin-nav.html" .}}{{end}}

    <main class="max-w-5xl mx-auto py-6 px-4 sm:px-6 lg:px-8">
        {{template "content" .}}
    </main>
</body>
</html>`,

	"components/admin-nav.html": `<div class="bg-indigo-50 border-b">
    <div class="max-w-5xl mx-auto px-4 sm:px-6 lg:px-8 py-2 flex space-x-4 text-sm">
        <a href="/admin" class="text-indigo-700 font-medium">Dashboard</a>
        {{range collections}}<a href="/admin/{{.Name}}" class="text-indigo-700">{{.Label}}</a>{{end}}
    </div>
</div>`,

	"login": `{{define "content"}}
<div class="flex items-center justify-center py-12">
    <div class="max-w-md w-full space-y-8">
        <h2 class="text-center text-3xl font-extrabold text-gray-900">Sign in</h2>
        {{if .Error}}
        <div class="rounded-md bg-red-50 p-4">
            <div class="text-sm text-red-700">{{.Error}}</div>
        </div>
        {{end}}
        <form class="mt-8 space-y-6" action="{{.LoginPath}}" method="POST">
            <div class="rounded-md shadow-sm -space-y-px">
                <div>
                    <label for="email" class="sr-only">Email</label>
                    <input id="email" name="email" type="email" required autocomplete="username"
                           class="appearance-none rounded-t-md relative block w-full px-3 py-2 border border-gray-300 text-gray-900 sm:text-sm"
                           placeholder="Email">
                </div>
                <div>
                    <label for="password" class="sr-only">Password</label>
                    <input id="password" name="password" type="password" required autocomplete="current-password"
                           class="appearance-none rounded-b-md relative block w-full px-3 py-2 border border-gray-300 text-gray-900 sm:text-sm"
                           placeholder="Password">
                </div>
            </div>
            <button type="submit" class="w-full flex justify-center py-2 px-4 text-sm font-medium rounded-md text-white bg-indigo-600 hover:bg-indigo-700">
                Sign in
            </button>
        </form>
    </div>
</div>
{{end}}`,

	"home": `{{define "content"}}
<section class="mb-12">
    <h1 class="text-4xl font-bold text-gray-900">Hi, welcome to my portfolio.</h1>
    <p class="mt-2 text-gray-600">Selected projects, experience and writing.</p>
</section>

{{if .Projects}}
<section class="mb-12">
    <div class="flex justify-between items-baseline mb-4">
        <h2 class="text-2xl font-semibold text-gray-900">Featured projects</h2>
        <a href="/projects" class="text-sm text-indigo-600">All projects</a>
    </div>
    <div class="grid grid-cols-1 gap-6 sm:grid-cols-2">
        {{range .Projects}}{{template "project-card.html" .}}{{end}}
    </div>
</section>
{{end}}

{{if .Experiences}}
<section class="mb-12">
    <h2 class="text-2xl font-semibold text-gray-900 mb-4">Experience</h2>
    <ul class="space-y-4">
        {{range .Experiences}}
        <li class="bg-white shadow rounded-lg p-4">
            <div class="font-medium">{{field . "role"}} &middot; {{field . "company"}}</div>
            <div class="text-sm text-gray-500">{{formatMonth (field . "start_date")}} - {{if checked . "current"}}present{{else}}{{formatMonth (field . "end_date")}}{{end}}</div>
            <p class="mt-2 text-gray-700">{{field . "description"}}</p>
        </li>
        {{end}}
    </ul>
</section>
{{end}}

{{if .Education}}
<section class="mb-12">
    <h2 class="text-2xl font-semibold text-gray-900 mb-4">Education</h2>
    <ul class="space-y-4">
        {{range .Education}}
        <li class="bg-white shadow rounded-lg p-4">
            <div class="font-medium">{{field . "degree"}}{{with field . "field"}}, {{.}}{{end}}</div>
            <div class="text-sm text-gray-500">{{field . "institution"}} &middot; {{formatMonth (field . "start_date")}} - {{formatMonth (field . "end_date")}}</div>
        </li>
        {{end}}
    </ul>
</section>
{{end}}

{{if .Skills}}
<section class="mb-12">
    <h2 class="text-2xl font-semibold text-gray-900 mb-4">Skills</h2>
    {{range .Skills}}
    <div class="mb-3">
        <div class="text-sm font-medium text-gray-700">{{.Category}}</div>
        <div class="flex flex-wrap gap-2 mt-1">
            {{range .Skills}}<span class="px-2 py-1 text-xs rounded bg-indigo-100 text-indigo-800">{{field . "name"}}</span>{{end}}
        </div>
    </div>
    {{end}}
</section>
{{end}}

{{if .Posts}}
<section>
    <h2 class="text-2xl font-semibold text-gray-900 mb-4">Latest posts</h2>
    {{range .Posts}}{{template "post-summary.html" .}}{{end}}
</section>
{{end}}
{{end}}`,

	"components/project-card.html": `<div class="bg-white shadow rounded-lg p-5">
    {{with field . "image_url"}}<img src="{{.}}" alt="" class="mb-3 rounded">{{end}}
    <h3 class="text-lg font-medium text-gray-900">{{field . "title"}}</h3>
    <p class="mt-1 text-gray-600">{{field . "description"}}</p>
    <div class="flex flex-wrap gap-2 mt-3">
        {{range splitList (field . "tech_stack")}}<span class="px-2 py-1 text-xs rounded bg-gray-100 text-gray-700">{{.}}</span>{{end}}
    </div>
    <div class="mt-3 space-x-4 text-sm">
        {{with field . "github_url"}}<a href="{{.}}" class="text-indigo-600">Source</a>{{end}}
        {{with field . "live_url"}}<a href="{{.}}" class="text-indigo-600">Live</a>{{end}}
    </div>
</div>`,

	"components/post-summary.html": `<article class="mb-6">
    <a href="/blog/{{field . "slug"}}" class="text-xl font-medium text-gray-900 hover:text-indigo-600">{{field . "title"}}</a>
    <div class="text-sm text-gray-500">{{formatDate (field . "published_at")}}</div>
    <p class="mt-1 text-gray-700">{{field . "excerpt"}}</p>
</article>`,

	"projects": `{{define "content"}}
<h1 class="text-2xl font-semibold text-gray-900 mb-6">Projects</h1>
{{if .Projects}}
<div class="grid grid-cols-1 gap-6 sm:grid-cols-2">
    {{range .Projects}}{{template "project-card.html" .}}{{end}}
</div>
{{else}}
<p class="text-gray-500">Nothing here yet.</p>
{{end}}
{{end}}`,

	"blog/list": `{{define "content"}}
<h1 class="text-2xl font-semibold text-gray-900 mb-6">Blog</h1>
{{range .Posts}}{{template "post-summary.html" .}}{{else}}<p class="text-gray-500">No posts yet.</p>{{end}}
<div class="flex justify-between mt-6 text-sm">
    {{if .Pagination.HasPrev}}<a href="/blog?offset={{.Pagination.PrevOffset}}" class="text-indigo-600">Newer</a>{{else}}<span></span>{{end}}
    {{if .Pagination.HasMore}}<a href="/blog?offset={{.Pagination.NextOffset}}" class="text-indigo-600">Older</a>{{end}}
</div>
{{end}}`,

	"blog/post": `{{define "content"}}
<article class="prose max-w-none">
    <h1 class="text-3xl font-bold text-gray-900">{{field .Post "title"}}</h1>
    <div class="text-sm text-gray-500 mb-6">{{formatDate (field .Post "published_at")}}</div>
    {{with field .Post "cover_image"}}<img src="{{.}}" alt="" class="mb-6 rounded">{{end}}
    {{range paragraphs (field .Post "content")}}<p class="mb-4 text-gray-800">{{.}}</p>{{end}}
</article>
<a href="/blog" class="text-sm text-indigo-600">Back to all posts</a>
{{end}}`,

	"contact": `{{define "content"}}
<h1 class="text-2xl font-semibold text-gray-900 mb-6">Contact</h1>
{{if .Sent}}
<div class="rounded-md bg-green-50 p-4 mb-6 text-sm text-green-700">Thanks, your message has been sent.</div>
{{end}}
<form action="/contact" method="POST" class="space-y-4 max-w-lg">
    <div>
        <label for="name" class="block text-sm font-medium text-gray-700">Name</label>
        <input id="name" name="name" value="{{.Form.Name}}" class="mt-1 block w-full border border-gray-300 rounded-md px-3 py-2">
        {{with index .Errors "name"}}<p class="text-sm text-red-600">{{.}}</p>{{end}}
    </div>
    <div>
        <label for="email" class="block text-sm font-medium text-gray-700">Email</label>
        <input id="email" name="email" type="email" value="{{.Form.Email}}" class="mt-1 block w-full border border-gray-300 rounded-md px-3 py-2">
        {{with index .Errors "email"}}<p class="text-sm text-red-600">{{.}}</p>{{end}}
    </div>
    <div>
        <label for="subject" class="block text-sm font-medium text-gray-700">Subject</label>
        <input id="subject" name="subject" value="{{.Form.Subject}}" class="mt-1 block w-full border border-gray-300 rounded-md px-3 py-2">
    </div>
    <div>
        <label for="message" class="block text-sm font-medium text-gray-700">Message</label>
        <textarea id="message" name="message" rows="6" class="mt-1 block w-full border border-gray-300 rounded-md px-3 py-2">{{.Form.Message}}</textarea>
        {{with index .Errors "message"}}<p class="text-sm text-red-600">{{.}}</p>{{end}}
    </div>
    <button type="submit" class="px-4 py-2 text-sm font-medium rounded-md text-white bg-indigo-600 hover:bg-indigo-700">Send</button>
</form>
{{end}}`,

	"admin/dashboard": `{{define "content"}}
<div class="mb-8">
    <h1 class="text-2xl font-semibold text-gray-900">Dashboard</h1>
    <p class="mt-1 text-sm text-gray-500">Signed in as {{.Identity.Email}} &middot; up {{.Uptime}}</p>
</div>
<div class="grid grid-cols-2 gap-5 sm:grid-cols-3 mb-8">
    {{range .Stats}}
    <a href="/admin/{{.Collection.Name}}" class="bg-white shadow rounded-lg p-5 block">
        <div class="text-sm text-gray-500">{{.Collection.Label}}</div>
        <div class="text-2xl font-semibold text-gray-900">{{.Count}}</div>
    </a>
    {{end}}
</div>
<h2 class="text-lg font-medium text-gray-900 mb-3">Unread messages ({{.UnreadCount}})</h2>
<ul class="bg-white shadow rounded-lg divide-y">
    {{range .Unread}}
    <li class="p-4 flex justify-between">
        <div>
            <div class="font-medium">{{field . "name"}} &lt;{{field . "email"}}&gt;</div>
            <div class="text-sm text-gray-600">{{field . "subject"}}</div>
            <p class="text-sm text-gray-700 mt-1">{{truncate (field . "message") 160}}</p>
        </div>
        <form action="/admin/messages/{{field . "id"}}/read" method="POST"><button class="text-sm text-indigo-600">Mark read</button></form>
    </li>
    {{else}}
    <li class="p-4 text-sm text-gray-500">Inbox zero.</li>
    {{end}}
</ul>
{{end}}`,

	"admin/list": `{{define "content"}}
<div class="flex justify-between items-center mb-6">
    <h1 class="text-2xl font-semibold text-gray-900">{{.Collection.Label}}</h1>
    {{if ne .Collection.Name "messages"}}
    <a href="/admin/{{.Collection.Name}}/new" class="px-4 py-2 text-sm font-medium rounded-md text-white bg-indigo-600 hover:bg-indigo-700">New</a>
    {{end}}
</div>
<table class="min-w-full bg-white shadow rounded-lg">
    <thead>
        <tr>
            {{range .Columns}}<th class="px-4 py-2 text-left text-xs font-medium text-gray-500 uppercase">{{label .Name}}</th>{{end}}
            <th class="px-4 py-2 text-left text-xs font-medium text-gray-500 uppercase">Updated</th>
            <th></th>
        </tr>
    </thead>
    <tbody class="divide-y">
        {{$cols := .Columns}}{{$name := .Collection.Name}}
        {{range $rec := .Records}}
        <tr>
            {{range $cols}}<td class="px-4 py-2 text-sm text-gray-700">{{truncate (field $rec .Name) 60}}</td>{{end}}
            <td class="px-4 py-2 text-sm text-gray-500">{{formatDate (field $rec "updated_at")}}</td>
            <td class="px-4 py-2 text-sm text-right space-x-2">
                <a href="/admin/{{$name}}/{{field $rec "id"}}" class="text-indigo-600">Edit</a>
                <form action="/admin/{{$name}}/{{field $rec "id"}}/delete" method="POST" class="inline"><button class="text-red-600">Delete</button></form>
            </td>
        </tr>
        {{else}}
        <tr><td class="px-4 py-6 text-sm text-gray-500" colspan="6">No records.</td></tr>
        {{end}}
    </tbody>
</table>
<div class="flex justify-between mt-4 text-sm">
    {{if .Pagination.HasPrev}}<a href="?offset={{.Pagination.PrevOffset}}" class="text-indigo-600">Previous</a>{{else}}<span></span>{{end}}
    {{if .Pagination.HasMore}}<a href="?offset={{.Pagination.NextOffset}}" class="text-indigo-600">Next</a>{{end}}
</div>
{{end}}`,

	"admin/form": `{{define "content"}}
{{$rec := .Record}}{{$errs := .Errors}}{{$id := field .Record "id"}}
<h1 class="text-2xl font-semibold text-gray-900 mb-6">{{if $id}}Edit{{else}}New{{end}} {{.Collection.Label}}</h1>
{{with index $errs ""}}<div class="rounded-md bg-red-50 p-4 mb-4 text-sm text-red-700">{{.}}</div>{{end}}
<form action="{{.AdminHome}}/{{.Collection.Name}}{{if $id}}/{{$id}}{{end}}" method="POST" class="space-y-4 max-w-2xl">
    {{range .Collection.Fields}}
    <div>
        <label for="{{.Name}}" class="block text-sm font-medium text-gray-700">{{label .Name}}{{if .Required}} *{{end}}</label>
        {{$type := inputType .}}
        {{if eq $type "textarea"}}
        <textarea id="{{.Name}}" name="{{.Name}}" rows="6" class="mt-1 block w-full border border-gray-300 rounded-md px-3 py-2">{{field $rec .Name}}</textarea>
        {{else if eq $type "checkbox"}}
        <input id="{{.Name}}" name="{{.Name}}" type="checkbox" value="on" {{if checked $rec .Name}}checked{{end}}>
        {{else}}
        <input id="{{.Name}}" name="{{.Name}}" type="{{$type}}" value="{{field $rec .Name}}" class="mt-1 block w-full border border-gray-300 rounded-md px-3 py-2">
        {{end}}
        {{with index $errs .Name}}<p class="text-sm text-red-600">{{.}}</p>{{end}}
    </div>
    {{end}}
    <div class="space-x-4">
        <button type="submit" class="px-4 py-2 text-sm font-medium rounded-md text-white bg-indigo-600 hover:bg-indigo-700">Save</button>
        <a href="{{.AdminHome}}/{{.Collection.Name}}" class="text-sm text-gray-600">Cancel</a>
    </div>
</form>
{{end}}`,

	"error": `{{define "content"}}
<div class="flex items-center justify-center py-24">
    <div class="text-center">
        <h1 class="text-4xl font-bold text-gray-900 mb-4">Error</h1>
        <p class="text-gray-600 mb-8">{{.Message}}</p>
        <a href="/" class="text-indigo-600 hover:text-indigo-500">Return home</a>
    </div>
</div>
{{end}}`,
}
