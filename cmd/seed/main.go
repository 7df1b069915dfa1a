package main

import (
	"context"
	"fmt"
	"os"

	"github.com/foodgram/api/internal/auth"
	"github.com/foodgram/api/internal/config"
	"github.com/foodgram/api/internal/database"
	"github.com/foodgram/api/internal/enum"
	"github.com/foodgram/api/internal/logger"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	flag "github.com/spf13/pflag"
	"go.uber.org/zap"
)

type seedItem struct {
	name        string
	description string
	price       string
}

var menu = []struct {
	category string
	items    []seedItem
}{
	{"Rice", []seedItem{
		{"Nasi Goreng", "Fried rice with egg and chicken", "25000"},
		{"Nasi Bakar", "Grilled rice wrapped in banana leaf", "28000"},
	}},
	{"Noodles", []seedItem{
		{"Mie Ayam", "Chicken noodles with pak choy", "22000"},
	}},
	{"Drinks", []seedItem{
		{"Es Teh", "Iced sweet tea", "5000"},
		{"Es Jeruk", "Iced orange juice", "8000"},
	}},
}

func main() {
	adminPhone := flag.String("admin-phone", envOr("SEED_ADMIN_PHONE", "+998900000001"), "Admin phone number")
	adminPassword := flag.String("admin-password", os.Getenv("SEED_ADMIN_PASSWORD"), "Admin password")
	partnerPhone := flag.String("partner-phone", envOr("SEED_PARTNER_PHONE", "+998900000002"), "Demo delivery partner phone number")
	partnerPassword := flag.String("partner-password", os.Getenv("SEED_PARTNER_PASSWORD"), "Demo delivery partner password")
	withMenu := flag.Bool("menu", true, "Seed the sample menu when no categories exist")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := logger.Initialize(cfg.LogLevel); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := zap.L()

	if *adminPassword == "" {
		*adminPassword = "password123"
		log.Warn("using default admin password 'password123', change it immediately in production")
	}
	if *partnerPassword == "" {
		*partnerPassword = "password123"
	}

	ctx := context.Background()
	pool, err := database.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("connect to database", zap.Error(err))
	}
	defer pool.Close()

	// Seed in a transaction: all or nothing
	tx, err := pool.Begin(ctx)
	if err != nil {
		log.Fatal("begin transaction", zap.Error(err))
	}
	defer tx.Rollback(ctx) //nolint:errcheck
	q := database.New(tx)

	admin, err := seedUser(ctx, q, *adminPhone, "Admin", *adminPassword, enum.RoleAdmin)
	if err != nil {
		log.Fatal("seed admin", zap.Error(err))
	}
	partner, err := seedUser(ctx, q, *partnerPhone, "Demo Courier", *partnerPassword, enum.RoleDelivery)
	if err != nil {
		log.Fatal("seed delivery partner", zap.Error(err))
	}

	if *withMenu {
		if err := seedMenu(ctx, q); err != nil {
			log.Fatal("seed menu", zap.Error(err))
		}
	}

	if err := tx.Commit(ctx); err != nil {
		log.Fatal("commit", zap.Error(err))
	}

	log.Info("seed completed",
		zap.String("admin_id", admin.String()),
		zap.String("partner_id", partner.String()),
	)
}

// seedUser creates or refreshes a staff account keyed by phone.
func seedUser(ctx context.Context, q *database.Queries, phone, name, password string, role enum.Role) (uuid.UUID, error) {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return uuid.Nil, err
	}
	u, err := q.UpsertUserByPhone(ctx, database.CreateUserParams{
		Phone:        phone,
		FullName:     name,
		PasswordHash: hash,
		Role:         string(role),
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("upsert %s: %w", role, err)
	}
	zap.L().Info("seeded user", zap.String("role", u.Role), zap.String("phone", u.Phone))
	return u.ID, nil
}

// seedMenu inserts the sample menu unless a menu already exists.
func seedMenu(ctx context.Context, q *database.Queries) error {
	existing, err := q.ListCategories(ctx)
	if err != nil {
		return fmt.Errorf("list categories: %w", err)
	}
	if len(existing) > 0 {
		zap.L().Info("menu already present, skipping", zap.Int("categories", len(existing)))
		return nil
	}

	for i, c := range menu {
		cat, err := q.CreateCategory(ctx, database.CreateCategoryParams{Name: c.category, SortOrder: int32(i + 1)})
		if err != nil {
			return fmt.Errorf("create category %s: %w", c.category, err)
		}
		for _, item := range c.items {
			price, err := decimal.NewFromString(item.price)
			if err != nil {
				return fmt.Errorf("price of %s: %w", item.name, err)
			}
			var n pgtype.Numeric
			if err := n.Scan(price.String()); err != nil {
				return fmt.Errorf("price of %s: %w", item.name, err)
			}
			if _, err := q.CreateMenuItem(ctx, database.CreateMenuItemParams{
				CategoryID:  cat.ID,
				Name:        item.name,
				Description: item.description,
				Price:       n,
			}); err != nil {
				return fmt.Errorf("create menu item %s: %w", item.name, err)
			}
		}
	}
	zap.L().Info("seeded menu", zap.Int("categories", len(menu)))
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
