package pricing

import (
	"context"
	"errors"
	"fmt"

	"github.com/richxcame/pizzaguard/internal/catalog"
	"github.com/richxcame/pizzaguard/pkg/logger"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Validator recomputes order prices from the catalog and compares them with
// the client's figures.
type Validator struct {
	catalog catalog.Repository
	policy  Policy
}

// NewValidator creates a Validator.
func NewValidator(repo catalog.Repository, policy Policy) *Validator {
	return &Validator{catalog: repo, policy: policy}
}

// ValidateOrder checks every line, the delivery fee, the total, the delivery
// address and the presence of payment information. All issues are collected.
// A non-nil error means the catalog could not be consulted.
func (v *Validator) ValidateOrder(ctx context.Context, order OrderPayload) (*Result, error) {
	res := &Result{}
	subtotal := decimal.Zero

	for _, item := range order.Items {
		actual, issue, err := v.priceLine(ctx, item)
		if err != nil {
			return nil, err
		}
		if issue != nil {
			res.add(*issue)
			if issue.Kind != IssuePriceMismatch {
				continue
			}
			logger.Security(ctx, "price tampering detected",
				zap.String("product_id", item.ProductID),
				zap.String("client_price", item.Price.String()),
				zap.String("actual_price", actual.String()),
			)
		}
		subtotal = subtotal.Add(actual.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}

	switch order.DeliveryType {
	case DeliveryTypeDelivery, DeliveryTypePickup:
	default:
		res.add(Issue{Kind: IssueInvalidDelivery, Message: "Invalid delivery type"})
	}

	fee := v.policy.DeliveryFeeFor(order.DeliveryType, subtotal)
	total := subtotal.Add(fee)

	if !v.policy.matches(order.DeliveryFee, fee) {
		res.add(mismatch(IssueDeliveryFee, "Invalid delivery fee", order.DeliveryFee, fee))
		logger.Security(ctx, "delivery fee tampering detected",
			zap.String("client_fee", order.DeliveryFee.String()),
			zap.String("expected_fee", fee.String()),
		)
	}

	if !v.policy.matches(order.Total, total) {
		res.add(mismatch(IssueTotalMismatch, "Order total does not match calculation", order.Total, total))
		logger.Security(ctx, "order total tampering detected",
			zap.String("client_total", order.Total.String()),
			zap.String("expected_total", total.String()),
		)
	}

	if order.DeliveryType == DeliveryTypeDelivery {
		if d := order.DeliveryInfo; d == nil || d.Street == "" || d.City == "" {
			res.add(Issue{Kind: IssueIncompleteDelivery, Message: "Incomplete delivery information"})
		}
	}

	if order.PaymentInfo == nil {
		res.add(Issue{Kind: IssueMissingPayment, Message: "Missing payment information"})
	}

	res.ValidatedSubtotal = subtotal
	res.DeliveryFee = fee
	res.ValidatedTotal = total
	res.IsValid = len(res.Errors) == 0
	return res, nil
}

// priceLine returns the trusted unit price of item. A line that cannot be
// priced returns an issue and a zero price.
func (v *Validator) priceLine(ctx context.Context, item LineItem) (decimal.Decimal, *Issue, error) {
	if item.Quantity <= 0 {
		return decimal.Zero, &Issue{
			Kind:      IssueInvalidQuantity,
			ProductID: item.ProductID,
			Message:   "Quantity must be positive",
		}, nil
	}

	product, err := v.catalog.GetProduct(ctx, item.ProductID)
	if errors.Is(err, catalog.ErrProductNotFound) {
		return decimal.Zero, &Issue{
			Kind:      IssueProductNotFound,
			ProductID: item.ProductID,
			Message:   "Product not found",
		}, nil
	}
	if err != nil {
		return decimal.Zero, nil, fmt.Errorf("look up product %s: %w", item.ProductID, err)
	}

	if !product.Available {
		return decimal.Zero, &Issue{
			Kind:        IssueUnavailable,
			ProductID:   product.ID,
			ProductName: product.Name,
			Message:     "Product is no longer available",
		}, nil
	}

	actual, ok := UnitPrice(product, item.Customization)
	if !ok {
		return decimal.Zero, &Issue{
			Kind:        IssueInvalidOption,
			ProductID:   product.ID,
			ProductName: product.Name,
			Message:     "Unknown size or crust",
		}, nil
	}

	if !v.policy.matches(item.Price, actual) {
		issue := mismatch(IssuePriceMismatch, "Price mismatch detected", item.Price, actual)
		issue.ProductID = product.ID
		issue.ProductName = product.Name
		return actual, &issue, nil
	}

	return actual, nil, nil
}
