package storage

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"cardbill/internal/core"
)

//go:embed seed/categories.yaml
var defaultCategories []byte

type categorySeed struct {
	Categories []struct {
		Name  string `yaml:"name"`
		Label string `yaml:"label"`
	} `yaml:"categories"`
}

// ParseCategorySeed decodes a categories YAML document.
func ParseCategorySeed(data []byte) ([]core.Category, error) {
	var seed categorySeed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse category seed: %w", err)
	}
	cats := make([]core.Category, 0, len(seed.Categories))
	for _, c := range seed.Categories {
		cat := core.Category{Name: strings.TrimSpace(c.Name), Label: strings.TrimSpace(c.Label)}
		if cat.Label == "" {
			cat.Label = cat.Name
		}
		if err := cat.Validate(); err != nil {
			return nil, fmt.Errorf("category seed %q: %w", c.Name, err)
		}
		cats = append(cats, cat)
	}
	return cats, nil
}

// LoadCategorySeed reads the seed file at path, or the embedded default list
// when path is empty.
func LoadCategorySeed(path string) ([]core.Category, error) {
	if path == "" {
		return ParseCategorySeed(defaultCategories)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read category seed %s: %w", path, err)
	}
	return ParseCategorySeed(data)
}

// SeedCategories inserts every missing category; existing ones are left as they are.
func SeedCategories(ctx context.Context, store CategoryStore, cats []core.Category) error {
	for _, c := range cats {
		if err := store.EnsureCategory(ctx, c); err != nil {
			return err
		}
	}
	return nil
}
