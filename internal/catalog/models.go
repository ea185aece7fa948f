package catalog

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// ErrProductNotFound is returned when a product id is unknown to the catalog.
var ErrProductNotFound = errors.New("product not found")

// Modifier is a named size or crust option and its price delta.
type Modifier struct {
	Name          string          `json:"name" yaml:"name"`
	PriceModifier decimal.Decimal `json:"price_modifier" yaml:"price_modifier"`
}

// Topping is an optional add-on priced per unit.
type Topping struct {
	Name      string          `json:"name" yaml:"name"`
	Price     decimal.Decimal `json:"price" yaml:"price"`
	Available bool            `json:"is_available" yaml:"is_available"`
}

// Product is the trusted catalog entry used to recompute order prices.
type Product struct {
	ID        string          `json:"id" yaml:"id"`
	Name      string          `json:"name" yaml:"name"`
	BasePrice decimal.Decimal `json:"base_price" yaml:"base_price"`
	Sizes     []Modifier      `json:"sizes,omitempty" yaml:"sizes"`
	Crusts    []Modifier      `json:"crusts,omitempty" yaml:"crusts"`
	Toppings  []Topping       `json:"toppings,omitempty" yaml:"toppings"`
	Available bool            `json:"is_available" yaml:"is_available"`
}

// Size returns the size option with the given name.
func (p *Product) Size(name string) (Modifier, bool) {
	return findModifier(p.Sizes, name)
}

// Crust returns the crust option with the given name.
func (p *Product) Crust(name string) (Modifier, bool) {
	return findModifier(p.Crusts, name)
}

// Topping returns the topping with the given name if it is available.
func (p *Product) Topping(name string) (Topping, bool) {
	for _, t := range p.Toppings {
		if t.Name == name && t.Available {
			return t, true
		}
	}
	return Topping{}, false
}

func findModifier(mods []Modifier, name string) (Modifier, bool) {
	for _, m := range mods {
		if m.Name == name {
			return m, true
		}
	}
	return Modifier{}, false
}

// Repository looks up trusted product data.
type Repository interface {
	GetProduct(ctx context.Context, id string) (*Product, error)
}
