// Package models defines the records exchanged with the inventory API.
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a single inventory record as returned by GET /products.
type Product struct {
	// ID is the opaque server identifier.
	ID string `json:"_id"`
	// Name is the display name of the product.
	Name string `json:"productName"`
	// Category groups products on the server side.
	Category string `json:"category"`
	// Quantity is the number of units in stock.
	Quantity int64 `json:"quantity"`
	// Price is the unit price.
	Price decimal.Decimal `json:"price"`
	// TotalPrice is Quantity × Price as reported by the server. It is
	// taken verbatim on read and never re-derived.
	TotalPrice decimal.Decimal `json:"totalPrice"`
	// Date is the creation or last modification time.
	Date time.Time `json:"date"`
	// Image is an optional image reference, usually a path relative to the
	// asset origin.
	Image string `json:"image,omitempty"`
}

// Recalculate sets TotalPrice to Quantity × Price.
func (p *Product) Recalculate() {
	p.TotalPrice = p.Price.Mul(decimal.NewFromInt(p.Quantity))
}

// Role is the account role of a user.
type Role string

const (
	// RoleUser is a regular operator.
	RoleUser Role = "User"
	// RoleAdmin may manage other users.
	RoleAdmin Role = "Admin"
)

// Roles lists every valid role in display order.
var Roles = []Role{RoleUser, RoleAdmin}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// User is an account as returned by GET /users/get/all. Passwords are never
// part of this record.
type User struct {
	ID       string `json:"_id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     Role   `json:"role"`
}

// LoginResult is the payload of a successful POST /users/login.
type LoginResult struct {
	Token string `json:"token"`
	Role  Role   `json:"role,omitempty"`
}

// ImageUpload is a binary image attached to a product update.
type ImageUpload struct {
	Filename string
	Data     []byte
}
