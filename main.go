package main

import (
	"context"
	"log"
	"os"
	"strconv"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/go-monolith/mono"
	fsjetstream "github.com/go-monolith/mono/plugin/fs-jetstream"
	kvjetstream "github.com/go-monolith/mono/plugin/kv-jetstream"
	"github.com/shopspring/decimal"
	catalogdomain "github.com/wighaven/storefront/domain/catalog"
	discountdomain "github.com/wighaven/storefront/domain/discount"
	orderdomain "github.com/wighaven/storefront/domain/order"
	userdomain "github.com/wighaven/storefront/domain/user"
	"github.com/wighaven/storefront/modules/api"
	"github.com/wighaven/storefront/modules/auth"
	"github.com/wighaven/storefront/modules/backup"
	"github.com/wighaven/storefront/modules/cache"
	"github.com/wighaven/storefront/modules/cart"
	"github.com/wighaven/storefront/modules/catalog"
	"github.com/wighaven/storefront/modules/database"
	"github.com/wighaven/storefront/modules/discount"
	"github.com/wighaven/storefront/modules/notification"
	"github.com/wighaven/storefront/modules/order"
	"github.com/wighaven/storefront/modules/payment"
	"github.com/wighaven/storefront/modules/ratelimit"
	"github.com/wighaven/storefront/modules/worker"
	"gorm.io/gorm"
)

func main() {
	httpPort := getEnvInt("HTTP_PORT", 3000)
	natsPort := getEnvInt("NATS_PORT", 4222)
	jetstreamDir := getEnv("JETSTREAM_DIR", "/tmp/wighaven-jetstream")
	redisAddr := getEnv("REDIS_ADDR", "")
	shutdownTimeout := getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second)

	dbConfig := database.Config{
		Driver: getEnv("DB_DRIVER", database.DriverSQLite),
		Path:   getEnv("DB_PATH", "wighaven.db"),
		URL:    getEnv("DATABASE_URL", ""),
		Debug:  getEnvBool("DB_DEBUG", false),
	}

	log.Println("=== WigHaven Storefront ===")
	log.Printf("HTTP Port: %d", httpPort)
	log.Printf("Database: %s", dbConfig.Driver)
	log.Printf("NATS Port: %d", natsPort)
	if redisAddr == "" {
		log.Println("Redis: disabled (in-process cache, no rate limiting)")
	} else {
		log.Printf("Redis: %s", redisAddr)
	}

	app, err := mono.NewMonoApplication(
		mono.WithShutdownTimeout(shutdownTimeout),
		mono.WithLogLevel(mono.LogLevelInfo),
		mono.WithLogFormat(mono.LogFormatText),
		mono.WithJetStreamStorageDir(jetstreamDir),
		mono.WithNATSPort(natsPort),
	)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}

	// Plugins start before every module and stop after them.
	dbPlugin := database.NewPluginModule(dbConfig,
		func(db *gorm.DB) error { return catalogdomain.NewRepository(db).Migrate() },
		func(db *gorm.DB) error { return discountdomain.NewRepository(db).Migrate() },
		func(db *gorm.DB) error { return orderdomain.NewRepository(db).Migrate() },
		func(db *gorm.DB) error { return userdomain.NewRepository(db).Migrate() },
	)
	if err := app.RegisterPlugin(dbPlugin, "db"); err != nil {
		log.Fatalf("Failed to register database plugin: %v", err)
	}

	cachePlugin := cache.NewPluginModule(redisAddr, "wighaven:catalog:", getEnvDuration("CACHE_TTL", 5*time.Minute))
	if err := app.RegisterPlugin(cachePlugin, "cache"); err != nil {
		log.Fatalf("Failed to register cache plugin: %v", err)
	}

	kvPlugin, err := kvjetstream.New(kvjetstream.Config{
		Buckets: []kvjetstream.BucketConfig{
			{
				Name:        cart.BucketName,
				Description: "Shopping cart sessions",
				TTL:         getEnvDuration("CART_TTL", 7*24*time.Hour),
				Storage:     kvjetstream.FileStorage,
			},
		},
	})
	if err != nil {
		log.Fatalf("Failed to create KV plugin: %v", err)
	}
	if err := app.RegisterPlugin(kvPlugin, "kv"); err != nil {
		log.Fatalf("Failed to register KV plugin: %v", err)
	}

	storagePlugin, err := fsjetstream.New(fsjetstream.Config{
		Buckets: []fsjetstream.BucketConfig{
			{
				Name:        backup.BucketName,
				Description: "Database snapshots",
				Storage:     fsjetstream.FileStorage,
				Compression: true,
			},
		},
	})
	if err != nil {
		log.Fatalf("Failed to create storage plugin: %v", err)
	}
	if err := app.RegisterPlugin(storagePlugin, "storage"); err != nil {
		log.Fatalf("Failed to register storage plugin: %v", err)
	}

	logger := app.Logger()

	workerModule := worker.NewModule(worker.DefaultPoolConfig(), logger)
	catalogModule := catalog.NewModule(logger)
	discountModule := discount.NewModule(logger)
	cartModule := cart.NewModule(logger)
	paymentModule := payment.NewModule(payment.Config{
		GatewayURL: getEnv("PAYMENT_GATEWAY_URL", ""),
		APIKey:     getEnv("PAYMENT_API_KEY", ""),
		Timeout:    getEnvDuration("PAYMENT_TIMEOUT", 10*time.Second),
	}, logger)

	orderConfig := order.Config{
		Prefix: getEnv("ORDER_PREFIX", "WH"),
		Pricing: orderdomain.Pricing{
			ShippingFlatFee:       getEnvDecimal("SHIPPING_FLAT_FEE", decimal.Zero),
			FreeShippingThreshold: getEnvDecimal("SHIPPING_FREE_THRESHOLD", decimal.Zero),
			TaxRate:               getEnvDecimal("TAX_RATE", decimal.Zero),
		},
		AutoProcessPaid:   getEnvBool("AUTO_PROCESS_PAID", true),
		ReconcileInterval: getEnvDuration("RECONCILE_INTERVAL", time.Minute),
		PaymentExpiry:     getEnvDuration("PAYMENT_EXPIRY", 24*time.Hour),
	}
	orderModule := order.NewModule(orderConfig, workerModule.Pool(), logger)

	backupModule := backup.NewModule(backup.Config{
		Interval:  getEnvDuration("BACKUP_INTERVAL", 24*time.Hour),
		Retention: getEnvInt("BACKUP_RETENTION", 7),
	}, workerModule.Pool(), logger)

	jwtConfig := auth.DefaultJWTConfig()
	jwtConfig.SecretKey = getEnv("JWT_SECRET", "")
	jwtConfig.AccessTokenDuration = getEnvDuration("ACCESS_TOKEN_TTL", jwtConfig.AccessTokenDuration)
	jwtConfig.RefreshTokenDuration = getEnvDuration("REFRESH_TOKEN_TTL", jwtConfig.RefreshTokenDuration)
	authModule := auth.NewModule(auth.Config{
		JWT:           jwtConfig,
		BcryptCost:    getEnvInt("BCRYPT_COST", auth.DefaultBcryptCost),
		AdminEmail:    getEnv("ADMIN_EMAIL", ""),
		AdminPassword: getEnv("ADMIN_PASSWORD", ""),
	}, logger)

	rateLimitModule := ratelimit.NewModule(redisAddr, ratelimit.Config{
		RequestsPerWindow: getEnvInt("RATE_LIMIT_REQUESTS", 20),
		Window:            getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
	}, logger)

	notificationModule := notification.NewModule(getEnvInt("NOTIFICATION_OUTBOX_SIZE", 200), logger)

	apiModule := api.NewModule(api.Config{
		Port:      httpPort,
		AccessLog: getEnvBool("HTTP_ACCESS_LOG", true),
		Timeout:   getEnvDuration("HTTP_TIMEOUT", 30*time.Second),
	}, logger)
	apiModule.SetAuthModule(authModule)
	apiModule.SetCatalogModule(catalogModule)
	apiModule.SetDiscountModule(discountModule)
	apiModule.SetCartModule(cartModule)
	apiModule.SetOrderModule(orderModule)
	apiModule.SetBackupModule(backupModule)
	apiModule.SetRateLimiter(rateLimitModule)
	apiModule.AddHealthCheck("database", dbPlugin)
	apiModule.AddHealthCheck("catalog", catalogModule)
	apiModule.AddHealthCheck("cart", cartModule)
	apiModule.AddHealthCheck("payment", paymentModule)
	apiModule.AddHealthCheck("worker", workerModule)
	apiModule.AddHealthCheck("backup", backupModule)
	apiModule.AddHealthCheck("auth", authModule)
	apiModule.AddHealthCheck("ratelimit", rateLimitModule)
	apiModule.AddHealthCheck("notification", notificationModule)

	// Order: the worker pool first so order and backup can submit to it,
	// then the domain modules, then the consumers and the HTTP surface.
	modules := []mono.Module{
		workerModule,
		catalogModule,
		discountModule,
		cartModule,
		paymentModule,
		orderModule,
		backupModule,
		authModule,
		rateLimitModule,
		notificationModule,
		apiModule,
	}
	for _, m := range modules {
		if err := app.Register(m); err != nil {
			log.Fatalf("Failed to register %s module: %v", m.Name(), err)
		}
	}

	if err := app.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	printStartupInfo(httpPort)

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		shutdownTimeout,
		map[string]gfshutdown.Operation{
			"mono-app": func(ctx context.Context) error {
				log.Println("Graceful shutdown initiated...")
				return app.Stop(ctx)
			},
		},
	)

	exitCode := <-wait
	log.Printf("Application exited with code: %d", exitCode)
	os.Exit(exitCode)
}

func printStartupInfo(port int) {
	log.Println("")
	log.Println("Application started successfully!")
	log.Println("")
	log.Printf("REST API Endpoints (http://localhost:%d):", port)
	log.Println("  GET    /api/v1/products              - Browse the catalog")
	log.Println("  POST   /api/v1/carts                 - Start a cart")
	log.Println("  POST   /api/v1/carts/:id/items       - Add an item")
	log.Println("  POST   /api/v1/carts/:id/coupon      - Apply a coupon")
	log.Println("  POST   /api/v1/checkout              - Place an order")
	log.Println("  GET    /api/v1/orders/track/:number  - Track an order")
	log.Println("  POST   /api/v1/auth/login            - Sign in")
	log.Println("  *      /api/v1/admin/...             - Admin (catalog, discounts, orders, backups)")
	log.Println("  GET    /health                       - Health check")
	log.Println("")
	log.Println("Press Ctrl+C to shutdown gracefully")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
		log.Printf("Warning: invalid int value for %s: %s, using default: %d", key, value, defaultValue)
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
		log.Printf("Warning: invalid bool value for %s: %s, using default: %t", key, value, defaultValue)
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		log.Printf("Warning: invalid duration for %s: %s, using default: %s", key, value, defaultValue)
	}
	return defaultValue
}

func getEnvDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(value); err == nil && !d.IsNegative() {
			return d
		}
		log.Printf("Warning: invalid amount for %s: %s, using default: %s", key, value, defaultValue)
	}
	return defaultValue
}
