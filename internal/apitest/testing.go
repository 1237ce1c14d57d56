package apitest

import (
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/atinyakov/InventarisHub/internal/models"
)

// Seed credentials installed by Seed.
const (
	AdminUsername = "admin"
	AdminPassword = "admin123"
	StaffUsername = "staff"
	StaffPassword = "staff123"
)

// Seed installs two accounts and a few products.
func (s *Server) Seed() {
	s.AddUser(AdminUsername, AdminPassword, "admin@inventaris.local", models.RoleAdmin)
	s.AddUser(StaffUsername, StaffPassword, "staff@inventaris.local", models.RoleUser)

	s.AddProduct(models.Product{ID: "P1", Name: "Laptop", Category: "Electronics", Quantity: 3, Price: decimal.NewFromInt(1000)})
	s.AddProduct(models.Product{ID: "P2", Name: "Office Chair", Category: "Furniture", Quantity: 10, Price: decimal.NewFromInt(250)})
	s.AddProduct(models.Product{ID: "P3", Name: "USB Cable", Category: "Electronics", Quantity: 40, Price: decimal.RequireFromString("2.5")})
}

// NewTestServer starts a seeded Server behind httptest and closes it when
// tb finishes.
func NewTestServer(tb testing.TB) (*Server, *httptest.Server) {
	tb.Helper()
	s := New("test-secret", WithBcryptCost(bcrypt.MinCost), WithLogger(zap.NewNop()))
	s.Seed()
	ts := httptest.NewServer(s.Handler())
	tb.Cleanup(ts.Close)
	return s, ts
}
