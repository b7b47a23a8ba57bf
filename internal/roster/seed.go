package roster

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"example.com/roster/internal/domain"
)

//go:embed catalog.yaml
var defaultCatalog []byte

type seedDocument struct {
	Activities []seedActivity `yaml:"activities"`
}

type seedActivity struct {
	Name            string   `yaml:"name"`
	Description     string   `yaml:"description"`
	Schedule        string   `yaml:"schedule"`
	MaxParticipants int      `yaml:"max_participants"`
	Participants    []string `yaml:"participants"`
}

// DefaultCatalog returns the built-in school catalog.
func DefaultCatalog() (domain.Catalog, error) {
	return ParseCatalog(defaultCatalog)
}

// LoadCatalog reads the catalog from path, or the built-in one when path is empty.
func LoadCatalog(path string) (domain.Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultCatalog()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed catalog: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes a YAML seed document.
// Rosters above max_participants are accepted; capacity is only checked on enroll.
func ParseCatalog(data []byte) (domain.Catalog, error) {
	var doc seedDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("yaml unmarshal: %w", err)
	}
	if len(doc.Activities) == 0 {
		return nil, errors.New("seed catalog has no activities")
	}

	catalog := make(domain.Catalog, len(doc.Activities))
	for i, item := range doc.Activities {
		if strings.TrimSpace(item.Name) == "" {
			return nil, fmt.Errorf("activity #%d: name is required", i+1)
		}
		if _, exists := catalog[item.Name]; exists {
			return nil, fmt.Errorf("activity %q: duplicate name", item.Name)
		}
		if item.MaxParticipants <= 0 {
			return nil, fmt.Errorf("activity %q: max_participants must be > 0", item.Name)
		}
		seen := make(map[string]struct{}, len(item.Participants))
		for _, email := range item.Participants {
			if _, dup := seen[email]; dup {
				return nil, fmt.Errorf("activity %q: duplicate participant %s", item.Name, email)
			}
			seen[email] = struct{}{}
		}

		participants := item.Participants
		if participants == nil {
			participants = []string{}
		}
		catalog[item.Name] = domain.Activity{
			Name:            item.Name,
			Description:     item.Description,
			Schedule:        item.Schedule,
			MaxParticipants: item.MaxParticipants,
			Participants:    participants,
		}
	}
	return catalog, nil
}
