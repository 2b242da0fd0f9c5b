package product

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/productdesk/pkg/errors"
)

// Field messages shown next to the inputs.
const (
	MsgNameRequired        = "Ürün adı gereklidir"
	MsgNameTooShort        = "Ürün adı en az 2 karakter olmalıdır"
	MsgDescriptionRequired = "Ürün açıklaması gereklidir"
	MsgDescriptionTooShort = "Açıklama en az 10 karakter olmalıdır"
	MsgPriceRequired       = "Fiyat gereklidir"
	MsgPriceNotPositive    = "Fiyat 0'dan büyük olmalıdır"
)

var minPrice = decimal.RequireFromString("0.01")

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" {
			return f.Name
		}
		return tag
	})
	return v
}

var fieldMessages = map[string]map[string]string{
	"name":        {"required": MsgNameRequired, "min": MsgNameTooShort},
	"description": {"required": MsgDescriptionRequired, "min": MsgDescriptionTooShort},
	"price":       {"required": MsgPriceRequired},
}

// Normalize trims surrounding whitespace from every field.
func (f Form) Normalize() Form {
	return Form{
		Name:        strings.TrimSpace(f.Name),
		Description: strings.TrimSpace(f.Description),
		Price:       strings.TrimSpace(f.Price),
	}
}

// Validate checks the form and parses the price. The returned error is a VALIDATION_ERROR
// whose details map field names to messages.
func (f Form) Validate() (decimal.Decimal, error) {
	details := map[string]string{}

	if err := validate.Struct(f); err != nil {
		var errs validator.ValidationErrors
		if !errors.As(err, &errs) {
			return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "validation failed")
		}
		for _, fe := range errs {
			msg, ok := fieldMessages[fe.Field()][fe.Tag()]
			if !ok {
				msg = "geçersiz değer"
			}
			details[fe.Field()] = msg
		}
	}

	var price decimal.Decimal
	if _, missing := details["price"]; !missing {
		parsed, err := decimal.NewFromString(strings.ReplaceAll(f.Price, ",", "."))
		if err != nil || parsed.LessThan(minPrice) {
			details["price"] = MsgPriceNotPositive
		} else {
			price = parsed
		}
	}

	if len(details) > 0 {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details)
	}
	return price, nil
}
