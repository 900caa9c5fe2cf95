// Package catalog loads the scenario/persona catalog from YAML files.
//
// Scenarios are read once at startup and immutable afterwards; sessions see a
// stable catalog for their whole lifetime.
package catalog

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/nkoval/rolelab/internal/domain"
	"gopkg.in/yaml.v3"
)

// Catalog is an immutable collection of scenarios keyed by id.
type Catalog struct {
	scenarios map[string]*domain.Scenario
	order     []string
}

// Load reads every *.yaml file in dir as one scenario definition.
func Load(dir string) (*Catalog, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read catalog dir: %w", err)
	}

	c := &Catalog{scenarios: make(map[string]*domain.Scenario)}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}

		path := filepath.Join(dir, name)
		scenario, err := loadFile(path)
		if err != nil {
			return nil, fmt.Errorf("load scenario %s: %w", name, err)
		}
		if _, exists := c.scenarios[scenario.ID]; exists {
			return nil, fmt.Errorf("duplicate scenario id %q in %s", scenario.ID, name)
		}
		c.scenarios[scenario.ID] = scenario
		c.order = append(c.order, scenario.ID)
	}

	sort.Strings(c.order)
	slog.Info("Scenario catalog loaded", "dir", dir, "scenarios", len(c.order))
	return c, nil
}

func loadFile(path string) (*domain.Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var scenario domain.Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	if err := validate(&scenario); err != nil {
		return nil, err
	}
	return &scenario, nil
}

func validate(s *domain.Scenario) error {
	if s.ID == "" {
		return fmt.Errorf("scenario id is required")
	}
	if s.Title == "" {
		return fmt.Errorf("scenario %s: title is required", s.ID)
	}
	if len(s.Personas) == 0 {
		return fmt.Errorf("scenario %s: at least one persona is required", s.ID)
	}
	seen := make(map[string]bool, len(s.Personas))
	for i, p := range s.Personas {
		if p.ID == "" {
			return fmt.Errorf("scenario %s: persona %d has no id", s.ID, i)
		}
		if p.Name == "" {
			return fmt.Errorf("scenario %s: persona %s has no name", s.ID, p.ID)
		}
		if seen[p.ID] {
			return fmt.Errorf("scenario %s: duplicate persona id %q", s.ID, p.ID)
		}
		seen[p.ID] = true
	}
	return nil
}

// Scenario returns the scenario with the given id, or nil.
func (c *Catalog) Scenario(id string) *domain.Scenario {
	return c.scenarios[id]
}

// Scenarios returns all scenarios in stable id order.
func (c *Catalog) Scenarios() []*domain.Scenario {
	out := make([]*domain.Scenario, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.scenarios[id])
	}
	return out
}

// Len returns the number of loaded scenarios.
func (c *Catalog) Len() int {
	return len(c.order)
}
