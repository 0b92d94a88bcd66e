package model

import (
	"fmt"
	"strconv"
	"strings"
)

// FieldType is the storage type of a collection field.
type FieldType string

const (
	FieldText FieldType = "text"
	FieldInt  FieldType = "int"
	FieldBool FieldType = "bool"
)

// Field describes one writable column of a collection.
type Field struct {
	Name     string
	Type     FieldType
	Required bool
}

// Record is a single row of a collection, keyed by column name.
type Record map[string]any

// ID returns the record's id column, or "" when absent.
func (r Record) ID() string {
	id, _ := r["id"].(string)
	return id
}

// String returns the named column as a string.
func (r Record) String(name string) string {
	switch v := r[name].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// Bool returns the named column as a bool.
func (r Record) Bool(name string) bool {
	b, _ := r[name].(bool)
	return b
}

// Collection is a named set of records with a fixed field allow-list.
type Collection struct {
	Name string
	// Label is the human-readable name used by admin pages.
	Label string
	// DefaultOrder is applied when a query does not specify one.
	DefaultOrder string
	Fields       []Field
}

// Field returns the field with the given name.
func (c Collection) Field(name string) (Field, bool) {
	for _, f := range c.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// HasColumn reports whether name is a writable field or one of the
// system columns present on every collection.
func (c Collection) HasColumn(name string) bool {
	switch name {
	case "id", "created_at", "updated_at":
		return true
	}
	_, ok := c.Field(name)
	return ok
}

// Coerce converts an input value (typically decoded from JSON, a form or
// YAML) into the Go type used for the field.
func (f Field) Coerce(v any) (any, error) {
	if v == nil {
		return f.zero(), nil
	}
	switch f.Type {
	case FieldInt:
		switch n := v.(type) {
		case int:
			return int64(n), nil
		case int64:
			return n, nil
		case float64:
			return int64(n), nil
		case string:
			if strings.TrimSpace(n) == "" {
				return int64(0), nil
			}
			i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%s: expected integer", f.Name)
			}
			return i, nil
		}
		return nil, fmt.Errorf("%s: expected integer", f.Name)
	case FieldBool:
		switch b := v.(type) {
		case bool:
			return b, nil
		case string:
			switch strings.ToLower(strings.TrimSpace(b)) {
			case "true", "1", "on", "yes":
				return true, nil
			case "", "false", "0", "off", "no":
				return false, nil
			}
		}
		return nil, fmt.Errorf("%s: expected boolean", f.Name)
	default:
		switch s := v.(type) {
		case string:
			return s, nil
		case []any:
			parts := make([]string, 0, len(s))
			for _, p := range s {
				parts = append(parts, fmt.Sprint(p))
			}
			return strings.Join(parts, ","), nil
		}
		return fmt.Sprint(v), nil
	}
}

func (f Field) zero() any {
	switch f.Type {
	case FieldInt:
		return int64(0)
	case FieldBool:
		return false
	default:
		return ""
	}
}

// Content collections managed through the admin panel.
var (
	Projects = Collection{
		Name:         "projects",
		Label:        "Projects",
		DefaultOrder: "sort_order",
		Fields: []Field{
			{Name: "title", Type: FieldText, Required: true},
			{Name: "description", Type: FieldText},
			{Name: "tech_stack", Type: FieldText},
			{Name: "github_url", Type: FieldText},
			{Name: "live_url", Type: FieldText},
			{Name: "image_url", Type: FieldText},
			{Name: "featured", Type: FieldBool},
			{Name: "sort_order", Type: FieldInt},
		},
	}

	Experiences = Collection{
		Name:         "experiences",
		Label:        "Experience",
		DefaultOrder: "sort_order",
		Fields: []Field{
			{Name: "company", Type: FieldText, Required: true},
			{Name: "role", Type: FieldText, Required: true},
			{Name: "description", Type: FieldText},
			{Name: "start_date", Type: FieldText},
			{Name: "end_date", Type: FieldText},
			{Name: "current", Type: FieldBool},
			{Name: "sort_order", Type: FieldInt},
		},
	}

	Education = Collection{
		Name:         "education",
		Label:        "Education",
		DefaultOrder: "sort_order",
		Fields: []Field{
			{Name: "institution", Type: FieldText, Required: true},
			{Name: "degree", Type: FieldText, Required: true},
			{Name: "field", Type: FieldText},
			{Name: "start_date", Type: FieldText},
			{Name: "end_date", Type: FieldText},
			{Name: "description", Type: FieldText},
			{Name: "sort_order", Type: FieldInt},
		},
	}

	Skills = Collection{
		Name:         "skills",
		Label:        "Skills",
		DefaultOrder: "sort_order",
		Fields: []Field{
			{Name: "name", Type: FieldText, Required: true},
			{Name: "category", Type: FieldText},
			{Name: "level", Type: FieldInt},
			{Name: "sort_order", Type: FieldInt},
		},
	}

	Posts = Collection{
		Name:         "posts",
		Label:        "Blog posts",
		DefaultOrder: "-published_at",
		Fields: []Field{
			{Name: "title", Type: FieldText, Required: true},
			{Name: "slug", Type: FieldText, Required: true},
			{Name: "excerpt", Type: FieldText},
			{Name: "content", Type: FieldText},
			{Name: "cover_image", Type: FieldText},
			{Name: "published", Type: FieldBool},
			{Name: "published_at", Type: FieldText},
		},
	}

	Messages = Collection{
		Name:         "messages",
		Label:        "Messages",
		DefaultOrder: "-created_at",
		Fields: []Field{
			{Name: "name", Type: FieldText, Required: true},
			{Name: "email", Type: FieldText, Required: true},
			{Name: "subject", Type: FieldText},
			{Name: "message", Type: FieldText, Required: true},
			{Name: "read", Type: FieldBool},
		},
	}
)

// Collections lists every content collection in admin display order.
func Collections() []Collection {
	return []Collection{Projects, Experiences, Education, Skills, Posts, Messages}
}

// LookupCollection finds a content collection by name.
func LookupCollection(name string) (Collection, bool) {
	for _, c := range Collections() {
		if c.Name == name {
			return c, true
		}
	}
	return Collection{}, false
}
