package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseFacilitySeed(t *testing.T) {
	t.Run("valid document", func(t *testing.T) {
		doc := `
club:
  id: riverside
  name: Riverside Tennis
  timeZone: Europe/London
facilities:
  - id: court-1
    name: Court 1
    location: North side
    description: "Floodlit *clay* court"
    maxConcurrent: 2
  - id: pitch
    name: Pitch
`
		seed, err := ParseFacilitySeed([]byte(doc))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if seed.Club.ID != "riverside" || seed.Club.TimeZone != "Europe/London" {
			t.Fatalf("unexpected club %+v", seed.Club)
		}
		if len(seed.Facilities) != 2 {
			t.Fatalf("expected 2 facilities, got %d", len(seed.Facilities))
		}
		if seed.Facilities[0].MaxConcurrent != 2 || seed.Facilities[1].MaxConcurrent != 1 {
			t.Fatalf("unexpected capacities: %+v", seed.Facilities)
		}
	})

	t.Run("reports all problems", func(t *testing.T) {
		doc := `
club:
  name: Nameless
facilities:
  - id: a
    name: A
  - id: a
    maxConcurrent: -1
`
		_, err := ParseFacilitySeed([]byte(doc))
		if err == nil {
			t.Fatalf("expected error")
		}
		for _, want := range []string{"club.id", "duplicated", "facilities[1].name", "maxConcurrent"} {
			if !strings.Contains(err.Error(), want) {
				t.Fatalf("expected %q in %q", want, err.Error())
			}
		}
	})

	t.Run("unknown keys are rejected", func(t *testing.T) {
		doc := "club:\n  id: x\nfacilities:\n  - id: a\n    name: A\n    capacity: 3\n"
		if _, err := ParseFacilitySeed([]byte(doc)); err == nil {
			t.Fatalf("expected unknown key error")
		}
	})
}

func TestLoadFacilitySeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "facilities.yaml")
	if err := os.WriteFile(path, []byte("club:\n  id: c1\nfacilities: []\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	seed, err := LoadFacilitySeed(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seed.Club.Name != "c1" || seed.Club.TimeZone != "UTC" {
		t.Fatalf("expected defaults, got %+v", seed.Club)
	}
	if _, err := LoadFacilitySeed(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
