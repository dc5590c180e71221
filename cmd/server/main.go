package main // Entry point package

import (
	"log" // Logging library

	"github.com/joho/godotenv"    // Loads .env files into the environment
	"github.com/labstack/echo/v4" // Echo web framework

	"github.com/iliyamo/content-paywall/internal/cachebuster"
	"github.com/iliyamo/content-paywall/internal/clock"
	"github.com/iliyamo/content-paywall/internal/config"
	"github.com/iliyamo/content-paywall/internal/database"
	"github.com/iliyamo/content-paywall/internal/entitlement"
	"github.com/iliyamo/content-paywall/internal/handler"
	"github.com/iliyamo/content-paywall/internal/middleware"
	"github.com/iliyamo/content-paywall/internal/queue"
	"github.com/iliyamo/content-paywall/internal/repository"
	"github.com/iliyamo/content-paywall/internal/router"
)

func main() {
	// Load .env if present; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.Load()
	paywall := config.LoadPaywallConfig()
	pageCacheCfg := config.LoadPageCacheConfig()
	rateCfg := config.LoadRateLimitConfig()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}

	// Redis is optional: sessions, page cache and rate limiting degrade
	// gracefully when it is absent.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Printf("redis unavailable; sessions, page cache and rate limits disabled")
	}

	clk, err := clock.NewStore(paywall.Timezone)
	if err != nil {
		log.Printf("store timezone %q invalid, using UTC: %v", paywall.Timezone, err)
	}

	// Repositories.
	users := repository.NewUserRepo(db)
	products := repository.NewProductRepo(db)
	orders := repository.NewOrderRepo(db)
	sessions := repository.NewSessionRepo(rdb, 0)

	// Entitlement core.
	builder := entitlement.NewLedgerBuilder(products, orders, paywall.ExpireAfter)
	resolver := entitlement.NewResolver(builder, orders, clk)

	// Cache-consistency protocol: pick the backend, let it register its
	// cookie variance and bypass predicates on the page cache before the
	// middleware is mounted.
	pageCache := middleware.NewPageCache(pageCacheCfg, rdb)
	backend := cachebuster.SelectBackend(pageCache.Enabled() && paywall.CacheBackend == "redispage")
	backend.OnRegister(pageCache)
	ctrl := cachebuster.NewController(backend, paywall.HashSecret)
	cb := middleware.NewCacheBuster(paywall.CacheBusterEnabled, ctrl, sessions)
	log.Printf("cache buster enabled=%v backend=%s", paywall.CacheBusterEnabled, backend.Name())

	// Handlers.
	authH := handler.NewAuthHandler(cfg, users)
	productH := handler.NewProductHandler(paywall, products, sessions, resolver, ctrl)
	purchasesH := handler.NewPurchasesHandler(sessions, resolver)
	cartH := handler.NewCartHandler(products, sessions, ctrl, paywall.CacheBusterEnabled)
	checkoutH := handler.NewCheckoutHandler(products, orders, sessions, resolver, ctrl, clk, paywall.CacheBusterEnabled)

	rateLimit := middleware.NewTokenBucket(rateCfg, rdb)

	e := echo.New()
	router.RegisterRoutes(e)
	router.RegisterAuth(e, authH, rateLimit)
	router.RegisterContent(e, productH, purchasesH, cfg.JWTSecret, pageCache, cb)
	router.RegisterCart(e, cartH, checkoutH, cfg.JWTSecret, rateLimit)
	router.RegisterAdmin(e, productH, cfg.JWTSecret)

	// Order log consumer runs for the lifetime of the process and
	// reconnects on its own.
	go func() {
		if err := queue.StartOrderConsumer(); err != nil {
			log.Printf("order consumer stopped: %v", err)
		}
	}()

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)

	if err := e.Start(addr); err != nil { // Start HTTP server
		log.Fatal(err) // Log and exit if server fails
	}
}
