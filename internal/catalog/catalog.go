// Package catalog reads the seed file of emotion labels and coping strategies.
package catalog

import (
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"mindpal/internal/domain"
)

// Strategy is a catalog strategy plus the emotion label names it serves.
type Strategy struct {
	domain.CopingStrategy `yaml:",inline"`
	Emotions              []string `yaml:"emotions"`
}

type Catalog struct {
	Emotions   []domain.EmotionLabel `yaml:"emotions"`
	Strategies []Strategy            `yaml:"strategies"`
}

func LoadFile(path string) (Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Decode parses and validates a YAML catalog. Labels without an id are
// numbered after the highest explicit id.
func Decode(r io.Reader) (Catalog, error) {
	var c Catalog
	if err := yaml.NewDecoder(r).Decode(&c); err != nil {
		return Catalog{}, fmt.Errorf("decode catalog: %w", err)
	}
	if err := c.normalize(); err != nil {
		return Catalog{}, err
	}
	return c, nil
}

func (c *Catalog) normalize() error {
	maxID := 0
	for _, e := range c.Emotions {
		if e.ID > maxID {
			maxID = e.ID
		}
	}
	names := make(map[string]bool, len(c.Emotions))
	ids := make(map[int]bool, len(c.Emotions))
	for i := range c.Emotions {
		e := &c.Emotions[i]
		e.Name = strings.ToLower(strings.TrimSpace(e.Name))
		if e.Name == "" {
			return fmt.Errorf("catalog emotion #%d has no name", i+1)
		}
		if names[e.Name] {
			return fmt.Errorf("catalog emotion %q listed twice", e.Name)
		}
		if e.ID == 0 {
			maxID++
			e.ID = maxID
		}
		if ids[e.ID] {
			return fmt.Errorf("catalog emotion id %d listed twice", e.ID)
		}
		names[e.Name] = true
		ids[e.ID] = true
	}

	seen := make(map[string]bool, len(c.Strategies))
	for i := range c.Strategies {
		s := &c.Strategies[i]
		s.ID = strings.TrimSpace(s.ID)
		s.Name = strings.TrimSpace(s.Name)
		if s.ID == "" || s.Name == "" {
			return fmt.Errorf("catalog strategy #%d needs id and name", i+1)
		}
		if seen[s.ID] {
			return fmt.Errorf("catalog strategy %q listed twice", s.ID)
		}
		seen[s.ID] = true
		for j, name := range s.Emotions {
			name = strings.ToLower(strings.TrimSpace(name))
			if !names[name] {
				return fmt.Errorf("catalog strategy %q references unknown emotion %q", s.ID, name)
			}
			s.Emotions[j] = name
		}
	}
	return nil
}
