package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/HSouheill/vpn_reseller_backend/affiliate"
	"github.com/HSouheill/vpn_reseller_backend/config"
	"github.com/HSouheill/vpn_reseller_backend/controllers"
	"github.com/HSouheill/vpn_reseller_backend/events"
	"github.com/HSouheill/vpn_reseller_backend/middleware"
	"github.com/HSouheill/vpn_reseller_backend/repositories"
	"github.com/HSouheill/vpn_reseller_backend/routes"
	"github.com/HSouheill/vpn_reseller_backend/services"
	"github.com/HSouheill/vpn_reseller_backend/websocket"
)

// CustomValidator is a custom validator for Echo
type CustomValidator struct {
	validator *validator.Validate
}

// Validate validates the request body
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}

// users is what the controllers and notification sinks need from the user store
type users interface {
	services.UserDirectory
	controllers.ReferralDirectory
	controllers.FCMTokenStore
}

// notificationStore is the inbox behind the in-app sink
type notificationStore interface {
	services.NotificationStore
	controllers.NotificationInbox
}

type storage struct {
	name          string
	relationships affiliate.RelationshipStore
	configs       repositories.AffiliateConfigRepository
	ledger        affiliate.Ledger
	wallet        affiliate.PayoutMutator
	pricing       affiliate.PricingOracle
	users         users
	notifications notificationStore
}

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	settingsFile := os.Getenv("AFFILIATE_SETTINGS_FILE")
	if settingsFile == "" {
		settingsFile = "affiliate.yaml"
	}
	settings, err := config.LoadAffiliateSettings(settingsFile)
	if err != nil {
		log.Fatalf("Failed to load affiliate settings: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient := config.ConnectRedis()
	defer config.CloseRedis()

	store, mongoClient := openStorage(settings)
	if mongoClient != nil {
		defer func() {
			dctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := mongoClient.Disconnect(dctx); err != nil {
				log.Printf("MongoDB disconnect error: %v", err)
			}
		}()
	}

	configStore := repositories.NewCachedConfigStore(store.configs, redisClient, settings.ConfigCacheTTL)

	var locker affiliate.Locker = affiliate.NewKeyedMutex()
	if redisClient != nil {
		locker = repositories.NewRedisLocker(redisClient, 30*time.Second)
	}

	// Create WebSocket hub
	wsHub := websocket.NewHub()
	go wsHub.Run()

	notifier := buildNotifier(ctx, store, wsHub)

	metrics := affiliate.DefaultMetrics()
	deps := affiliate.Dependencies{
		Relationships: store.relationships,
		Config:        configStore,
		Ledger:        store.ledger,
		Payouts:       store.wallet,
		Pricing:       store.pricing,
		Notifier:      notifier,
		Locker:        locker,
		Metrics:       metrics,
		PayoutTimeout: settings.PayoutTimeout,
		NotifyTimeout: settings.NotifyTimeout,
	}
	validatorSvc := affiliate.NewValidator(deps)
	statsSvc := affiliate.NewStatsService(deps)
	engine := affiliate.NewEngine(deps)

	bus := newSalesBus(redisClient, settings)
	bus.Subscribe(engine.HandleSale)

	busCtx, stopBus := context.WithCancel(context.Background())
	busDone := make(chan struct{})
	go func() {
		defer close(busDone)
		if err := bus.Run(busCtx); err != nil {
			log.Printf("Sales bus stopped: %v", err)
		}
	}()

	// Create a new Echo instance
	e := echo.New()
	e.HideBanner = true
	e.Validator = &CustomValidator{validator: validator.New()}

	rateLimiter := middleware.NewRateLimiter()

	e.Use(echoMiddleware.Logger())
	e.Use(echoMiddleware.Recover())
	e.Use(middleware.GlobalCORS())
	e.Use(rateLimiter.RateLimit())
	e.Use(middleware.SecurityHeadersWithConfig(middleware.SecurityConfig{
		AllowInlineJS: false,
		AllowEval:     false,
	}))
	e.Use(httpsRedirect())

	routes.SetupRoutes(e, routes.Controllers{
		Affiliate:     controllers.NewAffiliateController(validatorSvc, statsSvc, store.ledger, store.users),
		Admin:         controllers.NewAdminAffiliateController(configStore, statsSvc, store.ledger, bus),
		Notifications: controllers.NewNotificationController(store.notifications, store.users),
	}, wsHub, prometheus.DefaultGatherer, store.name)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	go func() {
		if err := e.Start(":" + port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown error: %v", err)
	}

	// Sales already picked up finish before the bus returns
	stopBus()
	<-busDone
	engine.Wait()
	log.Println("Shutdown complete")
}

// openStorage picks MongoDB when configured and in-memory stores otherwise
func openStorage(settings config.AffiliateSettings) (storage, *mongo.Client) {
	if strings.EqualFold(os.Getenv("STORAGE"), "memory") || config.MongoURI() == "" {
		log.Println("Warning: using in-memory storage, data is lost on restart")
		return storage{
			name:          "memory",
			relationships: repositories.NewMemoryRelationshipStore(),
			configs:       repositories.NewMemoryConfigStore(settings.Seed),
			ledger:        repositories.NewMemoryLedger(),
			wallet:        repositories.NewMemoryWallet(),
			pricing:       repositories.FixedPrice(settings.CreditUnitPrice),
			users:         repositories.NewMemoryUserDirectory(),
			notifications: repositories.NewMemoryNotificationStore(),
		}, nil
	}

	client := config.ConnectDB()
	db := config.Database(client)
	settingsRepo := repositories.NewSettingsRepository(db, settings.Seed, settings.CreditUnitPrice)
	return storage{
		name:          "mongodb",
		relationships: repositories.NewRelationshipRepository(db),
		configs:       settingsRepo,
		ledger:        repositories.NewCommissionLogRepository(db),
		wallet:        repositories.NewWalletRepository(db),
		pricing:       settingsRepo,
		users:         repositories.NewUserRepository(db),
		notifications: repositories.NewNotificationRepository(db),
	}, client
}

// buildNotifier fans commission notices out to the inbox, websocket, and the
// email and push channels that are configured.
func buildNotifier(ctx context.Context, store storage, hub *websocket.Hub) affiliate.NotificationSink {
	sinks := services.MultiSink{services.NewInAppSink(store.notifications, hub)}

	if host := os.Getenv("SMTP_HOST"); host != "" {
		port := 587
		if p, err := strconv.Atoi(os.Getenv("SMTP_PORT")); err == nil && p > 0 {
			port = p
		}
		from := os.Getenv("SMTP_FROM")
		if from == "" {
			from = os.Getenv("SMTP_USER")
		}
		dialer := services.NewSMTPDialer(host, port, os.Getenv("SMTP_USER"), os.Getenv("SMTP_PASS"))
		sinks = append(sinks, services.NewEmailSink(store.users, dialer, from))
		log.Printf("Commission emails enabled via %s:%d", host, port)
	}

	fcm, err := config.InitMessaging(ctx)
	if err != nil {
		log.Printf("Warning: push notifications disabled: %v", err)
	} else if fcm != nil {
		sinks = append(sinks, services.NewFCMSink(store.users, fcm))
	}
	return sinks
}

func newSalesBus(client *redis.Client, settings config.AffiliateSettings) events.SalesEventBus {
	if client != nil && !strings.EqualFold(os.Getenv("SALES_BUS"), "memory") {
		log.Printf("Sales bus: durable Redis queue with %d workers", settings.BusWorkers)
		return events.NewRedisQueue(client, os.Getenv("SALES_QUEUE_KEY"), settings.BusWorkers)
	}
	log.Printf("Sales bus: in-process queue with %d workers", settings.BusWorkers)
	return events.NewMemoryBus(settings.BusWorkers, settings.BusQueueSize)
}

func httpsRedirect() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().Header.Get("X-Forwarded-Proto") == "http" {
				return c.Redirect(http.StatusMovedPermanently, "https://"+c.Request().Host+c.Request().RequestURI)
			}
			return next(c)
		}
	}
}
