package controller

import (
	"context"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/atinyakov/InventarisHub/internal/models"
)

// ProductAPI is the subset of the API client used for products.
type ProductAPI interface {
	ListProducts(ctx context.Context) ([]models.Product, error)
	UpdateProduct(ctx context.Context, id string, fields models.Product, image *models.ImageUpload) (models.Product, error)
	DeleteProduct(ctx context.Context, id string) error
}

// Product field names.
const (
	FieldProductName = "productName"
	FieldCategory    = "category"
	FieldQuantity    = "quantity"
	FieldPrice       = "price"
	FieldTotalPrice  = "totalPrice"
	FieldImage       = "image"
)

var productFields = []Field{
	{Name: FieldProductName, Label: "Product Name", Input: InputText},
	{Name: FieldCategory, Label: "Category", Input: InputText},
	{Name: FieldQuantity, Label: "Quantity", Input: InputNumber},
	{Name: FieldPrice, Label: "Unit Price", Input: InputNumber},
	{Name: FieldTotalPrice, Label: "Total Price", Input: InputReadOnly},
	{Name: FieldImage, Label: "Image", Input: InputFile},
}

// ProductAdapter adapts products to Controller.
type ProductAdapter struct {
	API ProductAPI
}

// NewProducts returns a product screen controller.
func NewProducts(client ProductAPI, sessions Sessions, nav Redirector, opts Options) *Controller[models.Product] {
	return New[models.Product](ProductAdapter{API: client}, sessions, nav, opts)
}

func (ProductAdapter) Entity() string { return "product" }

func (ProductAdapter) ID(p models.Product) string { return p.ID }

func (ProductAdapter) SearchText(p models.Product) []string {
	return []string{p.Name, p.Category}
}

func (ProductAdapter) Fields() []Field { return productFields }

func (ProductAdapter) Value(p models.Product, name string) string {
	switch name {
	case FieldProductName:
		return p.Name
	case FieldCategory:
		return p.Category
	case FieldQuantity:
		return strconv.FormatInt(p.Quantity, 10)
	case FieldPrice:
		return p.Price.String()
	case FieldTotalPrice:
		return p.TotalPrice.String()
	case FieldImage:
		return p.Image
	}
	return ""
}

// Set changes one field. Quantity keeps the integer part of the input and
// empty numbers count as zero. Changing quantity or price recomputes the
// total price.
func (ProductAdapter) Set(p *models.Product, name, value string) error {
	switch name {
	case FieldProductName:
		p.Name = value
	case FieldCategory:
		p.Category = value
	case FieldQuantity:
		n, err := parseAmount(value)
		if err != nil {
			return err
		}
		p.Quantity = n.IntPart()
		p.Recalculate()
	case FieldPrice:
		n, err := parseAmount(value)
		if err != nil {
			return err
		}
		p.Price = n
		p.Recalculate()
	default:
		return fmt.Errorf("%q: %w", name, ErrReadOnlyField)
	}
	return nil
}

func parseAmount(value string) (decimal.Decimal, error) {
	if value == "" {
		return decimal.Zero, nil
	}
	n, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse %q: %w", value, err)
	}
	return n, nil
}

func (a ProductAdapter) List(ctx context.Context) ([]models.Product, error) {
	return a.API.ListProducts(ctx)
}

func (a ProductAdapter) Update(ctx context.Context, id string, d Draft[models.Product]) (models.Product, error) {
	return a.API.UpdateProduct(ctx, id, d.Record, d.Image)
}

func (a ProductAdapter) Delete(ctx context.Context, id string) error {
	return a.API.DeleteProduct(ctx, id)
}
