// Package seed loads portfolio content from a YAML file into the store.
//
// The file maps collection names to lists of records:
//
//	projects:
//	  - title: folio
//	    tech_stack: [go, sqlite]
//	    featured: true
//	posts:
//	  - title: Hello
//	    slug: hello
//	    published: true
//
// Records in collections with a slug field are skipped when a record with
// the same slug already exists, so a seed file can be applied repeatedly.
package seed

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/me/folio/internal/store"
	"github.com/me/folio/pkg/model"
	"gopkg.in/yaml.v3"
)

// Result counts what a load did per collection.
type Result struct {
	Inserted map[string]int
	Skipped  map[string]int
}

// Total returns the number of inserted records.
func (r Result) Total() int {
	n := 0
	for _, v := range r.Inserted {
		n += v
	}
	return n
}

// Seeder writes seed documents through a store.
type Seeder struct {
	store  store.Store
	logger *slog.Logger
}

// New creates a Seeder.
func New(st store.Store, logger *slog.Logger) *Seeder {
	return &Seeder{store: st, logger: logger.With("component", "seed")}
}

// LoadFile reads and applies the seed file at path.
func (s *Seeder) LoadFile(ctx context.Context, path string) (Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("read seed file: %w", err)
	}
	return s.Load(ctx, data)
}

// Load applies a YAML seed document. Unknown collections are rejected
// before anything is written.
func (s *Seeder) Load(ctx context.Context, data []byte) (Result, error) {
	var doc map[string][]map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Result{}, fmt.Errorf("YAML parse error: %w", err)
	}

	names := make([]string, 0, len(doc))
	for name := range doc {
		if _, ok := model.LookupCollection(name); !ok {
			return Result{}, fmt.Errorf("%w: %s", store.ErrUnknownCollection, name)
		}
		names = append(names, name)
	}
	// Apply in admin display order for stable logs.
	order := map[string]int{}
	for i, c := range model.Collections() {
		order[c.Name] = i
	}
	sort.Slice(names, func(i, j int) bool { return order[names[i]] < order[names[j]] })

	res := Result{Inserted: map[string]int{}, Skipped: map[string]int{}}
	for _, name := range names {
		c, _ := model.LookupCollection(name)
		for i, raw := range doc[name] {
			rec := model.Record(raw)
			if exists, err := s.exists(ctx, c, rec); err != nil {
				return res, fmt.Errorf("%s[%d]: %w", name, i, err)
			} else if exists {
				res.Skipped[name]++
				continue
			}
			if _, err := s.store.Insert(ctx, c, rec); err != nil {
				return res, fmt.Errorf("%s[%d]: %w", name, i, err)
			}
			res.Inserted[name]++
		}
		s.logger.Info("seeded", "collection", name, "inserted", res.Inserted[name], "skipped", res.Skipped[name])
	}
	return res, nil
}

func (s *Seeder) exists(ctx context.Context, c model.Collection, rec model.Record) (bool, error) {
	if _, ok := c.Field("slug"); !ok {
		return false, nil
	}
	slug := rec.String("slug")
	if slug == "" {
		return false, nil
	}
	found, err := s.store.GetBy(ctx, c, "slug", slug)
	return found != nil, err
}
