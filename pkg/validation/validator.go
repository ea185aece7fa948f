package validation

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var (
	// Validate is the global validator instance
	Validate *validator.Validate

	phoneRegex = regexp.MustCompile(`^\+?[1-9]\d{1,14}$`) // E.164 format
	last4Regex = regexp.MustCompile(`^\d{4}$`)
	promoRegex = regexp.MustCompile(`^[A-Za-z0-9_-]{3,32}$`)

	ginOnce sync.Once
	ginErr  error
)

// DeliveryTypes are the accepted fulfilment modes.
var DeliveryTypes = []string{"delivery", "pickup"}

func init() {
	Validate = validator.New()
	_ = Register(Validate)
}

// Register adds the risk layer's custom tags to v.
func Register(v *validator.Validate) error {
	rules := map[string]validator.Func{
		"phone":         validatePhone,
		"delivery_type": validateDeliveryType,
		"card_last4":    validateCardLast4,
		"promo_code":    validatePromoCode,
	}
	for tag, fn := range rules {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return fmt.Errorf("register %s: %w", tag, err)
		}
	}
	return nil
}

// RegisterWithGin installs the custom tags on gin's binding validator so
// `binding:"..."` struct tags can use them. Safe to call more than once.
func RegisterWithGin() error {
	ginOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			ginErr = fmt.Errorf("unexpected gin validator engine %T", binding.Validator.Engine())
			return
		}
		ginErr = Register(v)
	})
	return ginErr
}

// ValidateStruct validates a struct and returns a ValidationError if validation fails
func ValidateStruct(s interface{}) error {
	err := Validate.Struct(s)
	if err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			return NewValidationError(validationErrors)
		}
		return err
	}
	return nil
}

// validatePhone checks if phone number is in E.164 format
func validatePhone(fl validator.FieldLevel) bool {
	return phoneRegex.MatchString(fl.Field().String())
}

func validateDeliveryType(fl validator.FieldLevel) bool {
	return contains(DeliveryTypes, fl.Field().String())
}

func validateCardLast4(fl validator.FieldLevel) bool {
	return last4Regex.MatchString(fl.Field().String())
}

func validatePromoCode(fl validator.FieldLevel) bool {
	return promoRegex.MatchString(fl.Field().String())
}

// contains checks if a string slice contains a specific string
func contains(slice []string, item string) bool {
	item = strings.ToLower(strings.TrimSpace(item))
	for _, s := range slice {
		if strings.ToLower(strings.TrimSpace(s)) == item {
			return true
		}
	}
	return false
}

// ValidatePhoneNumber validates phone number format
func ValidatePhoneNumber(phone string) bool {
	return phoneRegex.MatchString(strings.TrimSpace(phone))
}
