package httpserver

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"orderdesk/internal/backend"
	"orderdesk/internal/domain"
	"orderdesk/internal/service/lineitem"
	ordersvc "orderdesk/internal/service/order"
	"orderdesk/internal/service/profile"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

const defaultGuardWait = 2 * time.Second

// Profiles hands out the workspace behind a profile cookie.
type Profiles interface {
	Get(ctx context.Context, id string) (*profile.Workspace, error)
}

// CatalogService lists what can be ordered. backend.Client satisfies it.
type CatalogService interface {
	ListBooks(ctx context.Context, ts backend.TokenSource) ([]domain.CatalogItem, error)
	ListBookItems(ctx context.Context, ts backend.TokenSource) ([]domain.CatalogItem, error)
	ListChannels(ctx context.Context, ts backend.TokenSource) ([]string, error)
}

type CustomerService interface {
	Create(ctx context.Context, profileID string, ts backend.TokenSource, creator string, in domain.CustomerInput) (*domain.Customer, error)
	Get(ctx context.Context, ts backend.TokenSource, id string) (*domain.Customer, error)
	List(ctx context.Context, profileID string, ts backend.TokenSource) ([]domain.Customer, error)
	Recent(ctx context.Context, profileID string) ([]domain.Customer, error)
	ResetRecent(ctx context.Context, profileID string) error
	WatchRecent(ctx context.Context, profileID string) (<-chan []domain.Customer, error)
}

type OrderService interface {
	Submit(ctx context.Context, draft *lineitem.List, ts backend.TokenSource, creator string, in ordersvc.SubmitInput) (*domain.Order, error)
}

// Deps groups the services the router needs.
type Deps struct {
	Profiles    Profiles
	Catalog     CatalogService
	Customers   CustomerService
	Orders      OrderService
	ReadyChecks map[string]ReadyCheck

	CORSOrigins []string
	// GuardWait bounds how long a protected request waits for a pending sign-in check.
	GuardWait     time.Duration
	AuthRateLimit float64
	SecureCookies bool
}

// buildRouter wires routes for the web backend.
func buildRouter(logger *log.Logger, deps Deps) (*gin.Engine, error) {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if deps.Profiles == nil {
		return nil, errors.New("profiles are required")
	}
	if deps.Catalog == nil || deps.Customers == nil || deps.Orders == nil {
		return nil, errors.New("catalog, customer and order services are required")
	}
	wait := deps.GuardWait
	if wait <= 0 {
		wait = defaultGuardWait
	}
	authRate := deps.AuthRateLimit
	if authRate <= 0 {
		authRate = 5
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.LoggerWithWriter(logger.Writer()), gin.Recovery())
	if len(deps.CORSOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     deps.CORSOrigins,
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	router.GET("/healthz", healthHandler)
	router.GET("/readyz", readyHandler(deps.ReadyChecks))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	h := &handlers{logger: logger, deps: deps}
	limiter := newRateLimiter(rate.Limit(authRate), int(authRate)*2)

	app := router.Group("/", profileMiddleware(deps.Profiles, deps.SecureCookies, logger))
	app.GET("/login", limiter.middleware(), h.login)
	app.GET("/auth/callback", limiter.middleware(), h.authCallback)
	app.POST("/auth/callback", limiter.middleware(), h.authCallback)
	app.POST("/logout", h.logout)
	app.GET("/session", h.session)

	protected := app.Group("/", requireSession(wait))
	protected.GET("/catalog/books", h.listBooks)
	protected.GET("/catalog/items", h.listItems)
	protected.GET("/channels", h.listChannels)

	protected.GET("/users", h.listUsers)
	protected.POST("/users", h.createUser)
	protected.GET("/users/:id", h.getUser)
	protected.GET("/customers/recent", h.recentCustomers)
	protected.DELETE("/customers/recent", h.resetRecentCustomers)
	protected.GET("/customers/recent/stream", h.streamRecentCustomers)

	protected.GET("/order/draft", h.getDraft)
	protected.DELETE("/order/draft", h.resetDraft)
	protected.POST("/order/draft/items", h.addDraftItem)
	protected.PATCH("/order/draft/items/:id", h.updateDraftItem)
	protected.DELETE("/order/draft/items/:id", h.removeDraftItem)
	protected.POST("/orders", h.submitOrder)

	return router, nil
}

type handlers struct {
	logger *log.Logger
	deps   Deps
}
