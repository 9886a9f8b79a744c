// Package catalog loads activity definitions from YAML and seeds them into a store.
package catalog

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"example.com/mergington/internal/domain"
)

//go:embed default.yaml
var defaultCatalog []byte

// Entry is one activity definition. Participants are optional initial enrollments.
type Entry struct {
	Name            string   `yaml:"name"`
	Description     string   `yaml:"description"`
	Schedule        string   `yaml:"schedule"`
	MaxParticipants int      `yaml:"max_participants"`
	Participants    []string `yaml:"participants,omitempty"`
}

// Catalog is the root of an activity catalog file.
type Catalog struct {
	Activities []Entry `yaml:"activities"`
}

// Default returns the built-in Mergington High School catalog.
func Default() (*Catalog, error) {
	return Parse(bytes.NewReader(defaultCatalog))
}

// Load reads and validates the catalog file at path.
func Load(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse decodes a catalog, rejecting unknown fields, and validates it.
func Parse(r io.Reader) (*Catalog, error) {
	var c Catalog
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&c); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("catalog is empty")
		}
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate reports the first invalid entry.
func (c *Catalog) Validate() error {
	if len(c.Activities) == 0 {
		return errors.New("catalog has no activities")
	}

	names := make(map[string]struct{}, len(c.Activities))
	for i, entry := range c.Activities {
		if strings.TrimSpace(entry.Name) == "" {
			return fmt.Errorf("activity %d: name is required", i)
		}
		if _, dup := names[entry.Name]; dup {
			return fmt.Errorf("activity %q: duplicate name", entry.Name)
		}
		names[entry.Name] = struct{}{}

		if entry.MaxParticipants < 0 {
			return fmt.Errorf("activity %q: max_participants must be >= 0", entry.Name)
		}

		emails := make(map[string]struct{}, len(entry.Participants))
		for _, email := range entry.Participants {
			if strings.TrimSpace(email) == "" || strings.Contains(email, domain.ParticipantSeparator) {
				return fmt.Errorf("activity %q: invalid participant %q", entry.Name, email)
			}
			if _, dup := emails[email]; dup {
				return fmt.Errorf("activity %q: participant %q listed twice", entry.Name, email)
			}
			emails[email] = struct{}{}
		}
	}
	return nil
}

// SeedResult counts what Seed changed.
type SeedResult struct {
	Activities        int `json:"activities"`
	ParticipantsAdded int `json:"participants_added"`
}

// Seed upserts every activity in one unit of work. Descriptions, schedules
// and capacities are overwritten; listed participants are added when missing
// and existing enrollments are never removed.
func Seed(ctx context.Context, store domain.Store, c *Catalog) (SeedResult, error) {
	var result SeedResult

	uow, err := store.Begin(ctx)
	if err != nil {
		return result, fmt.Errorf("begin seed: %w", err)
	}
	defer uow.Rollback(ctx)

	for _, entry := range c.Activities {
		if err := uow.PutActivity(ctx, entry.toActivity()); err != nil {
			return SeedResult{}, fmt.Errorf("put activity %q: %w", entry.Name, err)
		}
		result.Activities++

		for _, email := range entry.Participants {
			added, err := uow.AddParticipant(ctx, entry.Name, email)
			if err != nil {
				return SeedResult{}, fmt.Errorf("add participant %q to %q: %w", email, entry.Name, err)
			}
			if added {
				result.ParticipantsAdded++
			}
		}
	}

	if err := uow.Commit(ctx); err != nil {
		return SeedResult{}, fmt.Errorf("commit seed: %w", err)
	}
	return result, nil
}

func (e Entry) toActivity() domain.Activity {
	return domain.Activity{
		Name:            e.Name,
		Description:     e.Description,
		Schedule:        e.Schedule,
		MaxParticipants: e.MaxParticipants,
	}
}
