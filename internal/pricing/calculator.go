package pricing

import (
	"github.com/richxcame/pizzaguard/internal/catalog"
	"github.com/richxcame/pizzaguard/pkg/config"
	"github.com/shopspring/decimal"
)

// Policy holds the delivery fee rule and the comparison tolerance.
type Policy struct {
	DeliveryFee           decimal.Decimal
	FreeDeliveryThreshold decimal.Decimal
	Tolerance             decimal.Decimal
}

// PolicyFromConfig builds the pricing policy from configuration.
func PolicyFromConfig(cat config.CatalogConfig, risk config.RiskConfig) Policy {
	return Policy{
		DeliveryFee:           decimal.NewFromFloat(cat.DeliveryFee),
		FreeDeliveryThreshold: decimal.NewFromFloat(cat.FreeDeliveryThreshold),
		Tolerance:             decimal.NewFromFloat(risk.AmountTolerance),
	}
}

// UnitPrice computes the trusted unit price of product with the given
// customization: base + size modifier + crust modifier + available toppings.
// ok is false when a size or crust is named that the product does not offer.
// Unavailable toppings are not charged.
func UnitPrice(p *catalog.Product, c Customization) (price decimal.Decimal, ok bool) {
	price = p.BasePrice

	if c.Size != "" {
		size, found := p.Size(c.Size)
		if !found {
			return price, false
		}
		price = price.Add(size.PriceModifier)
	}

	if c.Crust != "" {
		crust, found := p.Crust(c.Crust)
		if !found {
			return price, false
		}
		price = price.Add(crust.PriceModifier)
	}

	for _, name := range c.Toppings {
		if t, found := p.Topping(name); found {
			price = price.Add(t.Price)
		}
	}

	return price.Round(2), true
}

// DeliveryFeeFor returns the fee owed for a delivery type and subtotal.
// Delivery below the free-delivery threshold pays the flat fee, anything else is free.
func (p Policy) DeliveryFeeFor(deliveryType string, subtotal decimal.Decimal) decimal.Decimal {
	if deliveryType == DeliveryTypeDelivery && subtotal.LessThan(p.FreeDeliveryThreshold) {
		return p.DeliveryFee
	}
	return decimal.Zero
}

func (p Policy) matches(client, actual decimal.Decimal) bool {
	return client.Sub(actual).Abs().LessThanOrEqual(p.Tolerance)
}
