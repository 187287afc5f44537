package main

import (
	"log"
	"net/http"

	"cardledger/docs"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"cardledger/internal/auth"
	"cardledger/internal/cache"
	"cardledger/internal/config"
	"cardledger/internal/db"
	"cardledger/internal/handler"
	"cardledger/internal/model"
	"cardledger/internal/repository"
	"cardledger/internal/router"
	"cardledger/internal/service"
	"cardledger/internal/vault"
)

// @title Card Ledger API
// @version 1.0
// @description Bank card management API with encrypted card storage, spending limits, write-offs and transfers.
// @host localhost:8080
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	cfg := config.Load()

	if cfg.SwaggerHost != "" {
		docs.SwaggerInfo.Host = cfg.SwaggerHost
	}

	e := echo.New()
	e.Use(middleware.RequestID())

	gormDB, err := db.NewMySQL(cfg.MySQLDSN)
	if err != nil {
		log.Fatalf("database init: %v", err)
	}

	// Run migrations for all models
	if err := gormDB.AutoMigrate(
		&model.User{},
		&model.Card{},
		&model.Limit{},
		&model.Transaction{},
	); err != nil {
		log.Fatalf("auto-migrate: %v", err)
	}

	cardVault, err := vault.New(cfg.EncryptKey, cfg.LookupKey)
	if err != nil {
		log.Fatalf("vault init: %v", err)
	}

	cacheClient := cache.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)

	// Initialize repositories
	userRepo := repository.NewUserRepository(gormDB)
	cardRepo := repository.NewCardRepository(gormDB)
	txnRepo := repository.NewTransactionRepository(gormDB)
	uow := repository.NewUnitOfWork(gormDB)

	// Initialize auth components
	jwtService := auth.NewJWTService(cfg.JWTSecret)
	tokenStore := auth.NewTokenStore(cacheClient)

	// Initialize services
	authService := service.NewAuthService(userRepo, jwtService, tokenStore)
	userService := service.NewUserService(userRepo)
	locker := service.NewCardLocker(cfg.LockWaitTimeout)
	cardService := service.NewCardService(userRepo, cardRepo, cardVault, cacheClient, locker)
	limitService := service.NewLimitService()
	txnService := service.NewTransactionService(userRepo, cardRepo, txnRepo, cardService, limitService, uow, locker, cacheClient)

	// Initialize handlers
	authHandler := handler.NewAuthHandler(authService)
	userHandler := handler.NewUserHandler(userService)
	cardHandler := handler.NewCardHandler(cardService)
	txnHandler := handler.NewTransactionHandler(txnService)

	// Register routes
	router.Register(e, cfg, tokenStore, authHandler, userHandler, cardHandler, txnHandler)

	addr := ":" + cfg.ServerPort
	if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server start: %v", err)
	}
}
