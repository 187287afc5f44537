package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"cardledger/internal/config"
	"cardledger/internal/db"
	"cardledger/internal/model"
	"cardledger/internal/repository"
	"cardledger/internal/vault"
)

// seedUser describes one demo user with their cards.
type seedUser struct {
	Email    string
	Password string
	Role     model.UserRole
	Cards    []seedCard
}

type seedCard struct {
	Number         string
	ExpirationDate time.Time
	Balance        string
	DailyLimit     string
	MonthlyLimit   string
}

func demoUsers() []seedUser {
	exp := time.Date(2029, time.December, 31, 0, 0, 0, 0, time.UTC)
	return []seedUser{
		{
			Email:    "admin@example.com",
			Password: "admin-password",
			Role:     model.RoleAdmin,
		},
		{
			Email:    "alice@example.com",
			Password: "alice-password",
			Role:     model.RoleUser,
			Cards: []seedCard{
				{Number: "4000001234561111", ExpirationDate: exp, Balance: "1000.00", DailyLimit: "300.00", MonthlyLimit: "5000.00"},
				{Number: "4000001234562222", ExpirationDate: exp, Balance: "250.00"},
			},
		},
		{
			Email:    "bob@example.com",
			Password: "bob-password",
			Role:     model.RoleUser,
			Cards: []seedCard{
				{Number: "4000001234563333", ExpirationDate: exp, Balance: "500.00", DailyLimit: "150.00"},
			},
		},
	}
}

func main() {
	log.Println("Starting seed script...")

	cfg := config.Load()

	gormDB, err := db.NewMySQL(cfg.MySQLDSN)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	log.Println("Connected to database")

	if err := gormDB.AutoMigrate(&model.User{}, &model.Card{}, &model.Limit{}, &model.Transaction{}); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("Database migrations completed")

	cardVault, err := vault.New(cfg.EncryptKey, cfg.LookupKey)
	if err != nil {
		log.Fatalf("Failed to init card vault: %v", err)
	}

	userRepo := repository.NewUserRepository(gormDB)
	cardRepo := repository.NewCardRepository(gormDB)
	ctx := context.Background()

	var users, cards int
	for _, su := range demoUsers() {
		user, created, err := ensureUser(ctx, userRepo, su)
		if err != nil {
			log.Fatalf("Failed to seed user %s: %v", su.Email, err)
		}
		if created {
			users++
		}
		for _, sc := range su.Cards {
			created, err := ensureCard(ctx, cardRepo, cardVault, user, sc)
			if err != nil {
				log.Fatalf("Failed to seed card for %s: %v", su.Email, err)
			}
			if created {
				cards++
			}
		}
	}

	log.Printf("Seed completed successfully!")
	log.Printf("  - New users created: %d", users)
	log.Printf("  - New cards created: %d", cards)
}

// ensureUser creates the user unless one with the same email already exists.
func ensureUser(ctx context.Context, repo repository.UserRepository, su seedUser) (*model.User, bool, error) {
	existing, err := repo.FindByEmail(ctx, su.Email)
	if err == nil {
		return existing, false, nil
	}
	if !stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, fmt.Errorf("check user %s: %w", su.Email, err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(su.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, false, fmt.Errorf("hash password: %w", err)
	}
	user := &model.User{Email: su.Email, PasswordHash: string(hashed), Role: su.Role}
	if err := repo.Create(ctx, user); err != nil {
		return nil, false, fmt.Errorf("create user %s: %w", su.Email, err)
	}
	return user, true, nil
}

// ensureCard creates the card unless the owner already has one with the
// same number.
func ensureCard(ctx context.Context, repo repository.CardRepository, v vault.Vault, owner *model.User, sc seedCard) (bool, error) {
	hash := v.LookupKey(sc.Number)
	if _, err := repo.FindByOwnerAndHash(ctx, owner.ID, hash); err == nil {
		return false, nil
	} else if !stderrors.Is(err, gorm.ErrRecordNotFound) {
		return false, fmt.Errorf("check card: %w", err)
	}

	encrypted, err := v.Encrypt(sc.Number)
	if err != nil {
		return false, fmt.Errorf("encrypt card number: %w", err)
	}
	balance, err := decimal.NewFromString(sc.Balance)
	if err != nil {
		return false, fmt.Errorf("parse balance %q: %w", sc.Balance, err)
	}

	card := &model.Card{
		EncryptedNumber: encrypted,
		NumberHash:      hash,
		MaskedNumber:    v.Mask(sc.Number),
		ExpirationDate:  sc.ExpirationDate,
		UserID:          owner.ID,
		Status:          model.CardStatusActive,
		Balance:         balance,
		Limits:          seedLimits(sc),
	}
	if err := repo.Create(ctx, card); err != nil {
		return false, fmt.Errorf("create card: %w", err)
	}
	return true, nil
}

func seedLimits(sc seedCard) []model.Limit {
	var limits []model.Limit
	if sc.DailyLimit != "" {
		limits = append(limits, model.Limit{
			Type:      model.LimitDaily,
			MaxAmount: decimal.NewNullDecimal(decimal.RequireFromString(sc.DailyLimit)),
		})
	}
	if sc.MonthlyLimit != "" {
		limits = append(limits, model.Limit{
			Type:      model.LimitMonthly,
			MaxAmount: decimal.NewNullDecimal(decimal.RequireFromString(sc.MonthlyLimit)),
		})
	}
	if len(limits) == 0 {
		limits = append(limits, model.Limit{Type: model.LimitNone})
	}
	return limits
}
