// Package testutil loads YAML scenario fixtures for reconciliation engine
// tests: each fixture declares a client item set, a server item set, and the
// have/need outcome a full session between them must produce.
package testutil

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// FixtureItem is one (timestamp, id) entry in a fixture's item list. ID is
// hex-encoded in the YAML source.
type FixtureItem struct {
	Timestamp uint64 `yaml:"timestamp"`
	ID        string `yaml:"id"`
}

// Fixture is one reconciliation scenario: two independent item sets and the
// have/need sets a session between them must converge to.
type Fixture struct {
	Name           string        `yaml:"name"`
	IDSize         int           `yaml:"id_size"`
	FrameSizeLimit uint64        `yaml:"frame_size_limit"`
	Client         []FixtureItem `yaml:"client"`
	Server         []FixtureItem `yaml:"server"`
	WantHave       []string      `yaml:"want_have"`
	WantNeed       []string      `yaml:"want_need"`
}

// LoadFixture reads and parses a single fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}

	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}

	if f.IDSize == 0 {
		f.IDSize = 16
	}

	return &f, nil
}

// LoadFixtures parses every *.yaml file directly under dir, in directory
// order.
func LoadFixtures(dir string) ([]*Fixture, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read fixture dir %s: %w", dir, err)
	}

	var fixtures []*Fixture

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		if len(name) < 6 || name[len(name)-5:] != ".yaml" {
			continue
		}

		f, err := LoadFixture(dir + "/" + name)
		if err != nil {
			return nil, err
		}

		fixtures = append(fixtures, f)
	}

	return fixtures, nil
}
