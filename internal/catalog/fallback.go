package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"storefront/internal/models"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

//go:embed fallback.yaml
var defaultFallback []byte

type fixtureFile struct {
	Products []fixtureProduct `yaml:"products"`
}

type fixtureProduct struct {
	ID          string  `yaml:"id"`
	Name        string  `yaml:"name"`
	Description string  `yaml:"description"`
	Price       float64 `yaml:"price"`
	Stock       int     `yaml:"stock"`
	ImageURL    string  `yaml:"image_url"`
	Featured    bool    `yaml:"featured"`
	Category    string  `yaml:"category"`
}

// DefaultFallback returns the built-in catalog served when the feed cannot be used.
func DefaultFallback() []models.Product {
	products, err := parseFixture(defaultFallback)
	if err != nil {
		panic(fmt.Sprintf("embedded fallback catalog is invalid: %v", err))
	}
	return products
}

// LoadFallback reads a fallback catalog from a YAML file shaped like fallback.yaml.
func LoadFallback(path string) ([]models.Product, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fallback catalog: %w", err)
	}
	return parseFixture(data)
}

func parseFixture(data []byte) ([]models.Product, error) {
	var file fixtureFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to decode fallback catalog: %w", err)
	}

	products := make([]models.Product, 0, len(file.Products))
	for i, p := range file.Products {
		id, name := strings.TrimSpace(p.ID), strings.TrimSpace(p.Name)
		if id == "" || name == "" {
			return nil, fmt.Errorf("fallback product %d: id and name are required", i)
		}

		if p.Price < 0 || p.Stock < 0 {
			return nil, fmt.Errorf("fallback product %s: price and stock must not be negative", id)
		}

		products = append(products, models.Product{
			ID:          id,
			Name:        name,
			Description: strings.TrimSpace(p.Description),
			Price:       decimal.NewFromFloat(p.Price),
			Stock:       p.Stock,
			ImageURL:    strings.TrimSpace(p.ImageURL),
			Featured:    p.Featured,
			Category:    strings.TrimSpace(p.Category),
		})
	}

	if len(products) == 0 {
		return nil, fmt.Errorf("fallback catalog is empty")
	}
	return products, nil
}
