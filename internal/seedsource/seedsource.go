// Package seedsource drafts provisional plan documents from YAML templates
// keyed by destination keywords. It stands in for the content generator that
// seeds a new collaboration.
package seedsource

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"TRIPCOLLAB_BACK-END/internal/models"
)

//go:embed templates.yaml
var defaultTemplates []byte

// ErrNoTemplate is returned when no template matches and there is no fallback.
var ErrNoTemplate = errors.New("no seed template for destination")

const destinationPlaceholder = "{destination}"

// Template is one provisional document and the keywords that select it.
type Template struct {
	Name     string              `yaml:"name"`
	Match    []string            `yaml:"match"`
	Document models.PlanDocument `yaml:"document"`
}

type file struct {
	Templates []Template `yaml:"templates"`
	Fallback  *Template  `yaml:"fallback"`
}

// Source picks templates for plans.
type Source struct {
	templates []Template
	fallback  *Template
}

// Parse reads templates from YAML.
func Parse(data []byte) (*Source, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse seed templates: %w", err)
	}
	for i, t := range f.Templates {
		if len(t.Match) == 0 {
			return nil, fmt.Errorf("seed template %d (%s): match is empty", i, t.Name)
		}
		for j, m := range t.Match {
			f.Templates[i].Match[j] = strings.ToLower(strings.TrimSpace(m))
		}
	}
	return &Source{templates: f.Templates, fallback: f.Fallback}, nil
}

// Load reads templates from path, or the built-in set when path is empty.
func Load(path string) (*Source, error) {
	if path == "" {
		return Parse(defaultTemplates)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed templates: %w", err)
	}
	return Parse(data)
}

// Len is the number of keyword templates.
func (s *Source) Len() int { return len(s.templates) }

func (s *Source) lookup(destination string) (*Template, bool) {
	dest := strings.ToLower(destination)
	for i := range s.templates {
		for _, m := range s.templates[i].Match {
			if m != "" && strings.Contains(dest, m) {
				return &s.templates[i], true
			}
		}
	}
	if s.fallback != nil {
		return s.fallback, true
	}
	return nil, false
}

// Draft returns a document for plan with the destination filled in.
func (s *Source) Draft(ctx context.Context, plan models.Plan) (models.PlanDocument, error) {
	if err := ctx.Err(); err != nil {
		return models.PlanDocument{}, err
	}
	t, ok := s.lookup(plan.Destination)
	if !ok {
		return models.PlanDocument{}, fmt.Errorf("%w: %q", ErrNoTemplate, plan.Destination)
	}
	doc := t.Document.Clone()
	fill := func(v string) string { return strings.ReplaceAll(v, destinationPlaceholder, plan.Destination) }

	doc.Destination = plan.Destination
	if plan.Dates != "" {
		doc.Dates = plan.Dates
	}
	doc.Description = fill(doc.Description)
	for i := range doc.Bookings {
		b := &doc.Bookings[i]
		b.Title = fill(b.Title)
		b.Location = fill(b.Location)
		b.Details = fill(b.Details)
	}
	for i := range doc.DailyItinerary {
		day := &doc.DailyItinerary[i]
		day.Title = fill(day.Title)
		for j := range day.Items {
			day.Items[j].Description = fill(day.Items[j].Description)
			day.Items[j].Location = fill(day.Items[j].Location)
		}
	}
	doc.Normalize()
	return *doc, nil
}
