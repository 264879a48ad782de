package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// FacilitySeed is the YAML document that declares a club and its facilities.
//
//	club:
//	  id: riverside
//	  name: Riverside Tennis
//	  timeZone: Europe/London
//	facilities:
//	  - id: court-1
//	    name: Court 1
//	    maxConcurrent: 1
type FacilitySeed struct {
	Club       ClubSeed           `yaml:"club"`
	Facilities []FacilitySeedItem `yaml:"facilities"`
}

// ClubSeed identifies the club the facilities belong to.
type ClubSeed struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	TimeZone string `yaml:"timeZone"`
}

// FacilitySeedItem is one seeded facility. Description is markdown.
type FacilitySeedItem struct {
	ID            string `yaml:"id"`
	Name          string `yaml:"name"`
	Location      string `yaml:"location"`
	Description   string `yaml:"description"`
	MaxConcurrent int    `yaml:"maxConcurrent"`
}

// LoadFacilitySeed reads and validates the seed file at path.
func LoadFacilitySeed(path string) (FacilitySeed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return FacilitySeed{}, fmt.Errorf("read facility seed %s: %w", path, err)
	}
	seed, err := ParseFacilitySeed(data)
	if err != nil {
		return FacilitySeed{}, fmt.Errorf("facility seed %s: %w", path, err)
	}
	return seed, nil
}

// ParseFacilitySeed decodes a seed document. Unknown keys are rejected and a
// missing maxConcurrent defaults to 1.
func ParseFacilitySeed(data []byte) (FacilitySeed, error) {
	var seed FacilitySeed
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&seed); err != nil && !errors.Is(err, io.EOF) {
		return FacilitySeed{}, fmt.Errorf("parse yaml: %w", err)
	}

	var problems []string
	seed.Club.ID = strings.TrimSpace(seed.Club.ID)
	if seed.Club.ID == "" {
		problems = append(problems, "club.id is required")
	}
	if strings.TrimSpace(seed.Club.Name) == "" {
		seed.Club.Name = seed.Club.ID
	}
	if seed.Club.TimeZone == "" {
		seed.Club.TimeZone = "UTC"
	}

	seen := make(map[string]struct{}, len(seed.Facilities))
	for i := range seed.Facilities {
		item := &seed.Facilities[i]
		item.ID = strings.TrimSpace(item.ID)
		item.Name = strings.TrimSpace(item.Name)
		if item.ID == "" {
			problems = append(problems, fmt.Sprintf("facilities[%d].id is required", i))
		} else if _, dup := seen[item.ID]; dup {
			problems = append(problems, fmt.Sprintf("facilities[%d].id %q is duplicated", i, item.ID))
		}
		seen[item.ID] = struct{}{}
		if item.Name == "" {
			problems = append(problems, fmt.Sprintf("facilities[%d].name is required", i))
		}
		switch {
		case item.MaxConcurrent == 0:
			item.MaxConcurrent = 1
		case item.MaxConcurrent < 0:
			problems = append(problems, fmt.Sprintf("facilities[%d].maxConcurrent must be at least 1", i))
		}
	}

	if len(problems) > 0 {
		return FacilitySeed{}, errors.New(strings.Join(problems, "; "))
	}
	return seed, nil
}
