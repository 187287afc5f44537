package router

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	jwtv5 "github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	echoSwagger "github.com/swaggo/echo-swagger"

	"cardledger/internal/auth"
	"cardledger/internal/config"
	"cardledger/internal/handler"
	"cardledger/internal/model"
)

// Register wires routes and middleware.
func Register(
	e *echo.Echo,
	cfg *config.Config,
	tokenStore auth.TokenStoreInterface,
	authHandler *handler.AuthHandler,
	userHandler *handler.UserHandler,
	cardHandler *handler.CardHandler,
	txnHandler *handler.TransactionHandler,
) {
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	// Add validator
	e.Validator = &CustomValidator{validator: validator.New()}

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	e.GET("/swagger/*", echoSwagger.WrapHandler)

	api := e.Group("/api/v1")

	// Public routes
	api.POST("/auth/register", authHandler.Register)
	api.POST("/auth/login", authHandler.Login)
	api.POST("/auth/refresh", authHandler.Refresh)
	api.POST("/auth/logout", authHandler.Logout)

	// Secured routes (require JWT authentication)
	secured := api.Group("", echojwt.WithConfig(echojwt.Config{
		SigningKey:  []byte(cfg.JWTSecret),
		TokenLookup: "header:" + echo.HeaderAuthorization,
	}), RejectRevoked(tokenStore))

	// Cardholder routes
	secured.GET("/users/cards", cardHandler.ListMyCards)
	secured.GET("/users/cards/:id/transactions", txnHandler.ListCardTransactions)
	secured.POST("/users/transactions/write-off", txnHandler.WriteOff)
	secured.POST("/users/transactions/transfer", txnHandler.Transfer)

	// Administrative routes
	admin := secured.Group("/admin", RequireRole(model.RoleAdmin))

	admin.POST("/users", userHandler.CreateUser)
	admin.GET("/users/:email", userHandler.GetUser)

	admin.POST("/cards", cardHandler.CreateCard)
	admin.GET("/cards", cardHandler.ListCards)
	admin.GET("/cards/:id", cardHandler.GetCard)
	admin.DELETE("/cards/:id", cardHandler.DeleteCard)
	admin.PUT("/cards/:id/block", cardHandler.BlockCard)
	admin.PUT("/cards/:id/activate", cardHandler.ActivateCard)
	admin.PUT("/cards/:id/limits", cardHandler.ReplaceLimits)
	admin.GET("/cards/:id/transactions", txnHandler.ListCardTransactionsAdmin)
}

// RejectRevoked rejects access tokens that were blacklisted at logout.
func RejectRevoked(tokenStore auth.TokenStoreInterface) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, ok := c.Get("user").(*jwtv5.Token)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}
			claims, ok := token.Claims.(jwtv5.MapClaims)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}
			tokenID, _ := claims["jti"].(string)
			if tokenID != "" {
				if revoked, _ := tokenStore.IsAccessTokenBlacklisted(c.Request().Context(), tokenID); revoked {
					return echo.NewHTTPError(http.StatusUnauthorized, "token revoked")
				}
			}
			return next(c)
		}
	}
}

// RequireRole rejects tokens whose role claim does not match.
func RequireRole(role model.UserRole) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, ok := c.Get("user").(*jwtv5.Token)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}
			claims, ok := token.Claims.(jwtv5.MapClaims)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}
			if claimed, _ := claims["role"].(string); model.UserRole(claimed) != role {
				return echo.NewHTTPError(http.StatusForbidden, "insufficient role")
			}
			return next(c)
		}
	}
}

// CustomValidator wraps validator for Echo.
type CustomValidator struct {
	validator *validator.Validate
}

// Validate implements echo.Validator interface.
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}
