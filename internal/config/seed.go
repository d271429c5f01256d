package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// SeedUser is one family member entry in the seed file.
type SeedUser struct {
	Name  string `yaml:"name"`
	Color string `yaml:"color"`
}

// Seed is the document read by `famcal seed`.
type Seed struct {
	Users []SeedUser `yaml:"users"`
}

// DefaultSeed is the household used when no seed file is configured.
func DefaultSeed() Seed {
	return Seed{Users: []SeedUser{
		{Name: "albin", Color: "#039BE5"},
		{Name: "maria", Color: "#D50000"},
		{Name: "olle", Color: "#F6BF26"},
		{Name: "ellen", Color: "#7986CB"},
		{Name: "familj", Color: "#33B679"},
	}}
}

// LoadSeed reads a YAML seed file. An empty path yields DefaultSeed.
func LoadSeed(path string) (Seed, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultSeed(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Seed{}, fmt.Errorf("failed to read seed file: %w", err)
	}
	return ParseSeed(data)
}

// ParseSeed decodes a seed document and rejects entries without a name.
func ParseSeed(data []byte) (Seed, error) {
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return Seed{}, fmt.Errorf("failed to parse seed file: %w", err)
	}
	for i, user := range seed.Users {
		if strings.TrimSpace(user.Name) == "" {
			return Seed{}, fmt.Errorf("seed user %d has no name", i)
		}
	}
	return seed, nil
}
