package catalog

import (
	"context"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

type menuFile struct {
	Products []Product `yaml:"products"`
}

// StaticRepository serves products held in memory, typically loaded from a YAML menu.
type StaticRepository struct {
	mu       sync.RWMutex
	products map[string]Product
}

// NewStaticRepository indexes the given products by id.
func NewStaticRepository(products ...Product) *StaticRepository {
	r := &StaticRepository{products: make(map[string]Product, len(products))}
	for _, p := range products {
		r.products[p.ID] = p
	}
	return r
}

// LoadFile reads a YAML menu from path.
func LoadFile(path string) (*StaticRepository, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read menu: %w", err)
	}
	return Parse(data)
}

// Parse builds a repository from YAML menu bytes.
func Parse(data []byte) (*StaticRepository, error) {
	var menu menuFile
	if err := yaml.Unmarshal(data, &menu); err != nil {
		return nil, fmt.Errorf("failed to parse menu: %w", err)
	}

	for i, p := range menu.Products {
		if p.ID == "" {
			return nil, fmt.Errorf("menu product %d has no id", i)
		}
		if p.BasePrice.IsNegative() {
			return nil, fmt.Errorf("menu product %s has a negative base price", p.ID)
		}
	}

	return NewStaticRepository(menu.Products...), nil
}

// GetProduct returns a copy of the product with the given id.
func (r *StaticRepository) GetProduct(_ context.Context, id string) (*Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.products[id]
	if !ok {
		return nil, ErrProductNotFound
	}
	return &p, nil
}

// Len returns the number of products.
func (r *StaticRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.products)
}
