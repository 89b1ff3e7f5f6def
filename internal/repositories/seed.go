package repositories

import (
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/your-org/storefront/internal/domain"
)

// Collections present in every fresh snapshot.
const (
	CollectionProducts = "products"
	CollectionOrders   = "orders"
	CollectionUsers    = "users"
	CollectionAdmins   = "admins"
	CollectionImages   = "images"
)

const (
	DefaultAdminEmail    = "admin@storefront.local"
	DefaultAdminPassword = "admin123"
)

// SeedAdmin is the administrator written into a fresh snapshot.
type SeedAdmin struct {
	Email    string
	Password string
}

// seedData builds the data set used when no snapshot file exists. The admin
// password is stored only as a bcrypt hash.
func seedData(admin SeedAdmin, now time.Time) (snapshot, int64, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(admin.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, 0, fmt.Errorf("hash seed admin password: %w", err)
	}

	created := now.UTC().Format(time.RFC3339)
	products := []domain.Document{
		{"name": "Classic Cotton T-Shirt", "category": "apparel", "priceEGP": 450.0, "stock": 120.0, "images": []any{"placeholder_1"}},
		{"name": "Denim Jacket", "category": "apparel", "priceEGP": 1850.0, "stock": 35.0, "images": []any{"placeholder_2"}},
		{"name": "Leather Wallet", "category": "accessories", "priceEGP": 650.0, "stock": 60.0, "images": []any{"placeholder_3"}},
		{"name": "Canvas Sneakers", "category": "footwear", "priceEGP": 1250.0, "stock": 48.0, "images": []any{"placeholder_4"}},
		{"name": "Wool Scarf", "category": "accessories", "priceEGP": 450.0, "stock": 25.0, "images": []any{"placeholder_5"}},
	}

	var counter int64
	for _, p := range products {
		counter++
		p[domain.IDField] = fmt.Sprintf("%s_%d", idPrefix(CollectionProducts), counter)
		p["createdAt"] = created
	}

	counter++
	admins := []domain.Document{{
		domain.IDField: fmt.Sprintf("%s_%d", idPrefix(CollectionAdmins), counter),
		"email":        admin.Email,
		"password":     string(hash),
		"role":         "admin",
		"createdAt":    created,
	}}

	return snapshot{
		CollectionProducts: products,
		CollectionOrders:   {},
		CollectionUsers:    {},
		CollectionAdmins:   admins,
		CollectionImages:   {},
	}, counter, nil
}
