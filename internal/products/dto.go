package product

import (
	"io"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Form is the raw add-product form as typed by the user.
type Form struct {
	Name        string `json:"name" validate:"required,min=2"`
	Description string `json:"description" validate:"required,min=10"`
	Price       string `json:"price" validate:"required"`
}

// Image is an optional file attached to the form.
type Image struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Record is the row written to the products table.
type Record struct {
	Name        string          `json:"name" gorm:"column:name"`
	Description string          `json:"description" gorm:"column:description"`
	Price       decimal.Decimal `json:"price" gorm:"column:price;type:numeric(12,2)"`
	ImageURL    string          `json:"image_url" gorm:"column:image_url"`
	UserID      uuid.UUID       `json:"user_id" gorm:"column:user_id;type:uuid"`
}

// Outcome describes a stored product.
type Outcome struct {
	Product   Record
	ImagePath string
}
