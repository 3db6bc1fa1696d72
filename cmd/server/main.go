package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/Skotchmaster/shopcore/internal/cart/cache"
	cartrepo "github.com/Skotchmaster/shopcore/internal/cart/repo"
	cartservice "github.com/Skotchmaster/shopcore/internal/cart/service"
	catalogrepo "github.com/Skotchmaster/shopcore/internal/catalog/repo"
	"github.com/Skotchmaster/shopcore/internal/httpserver"
	"github.com/Skotchmaster/shopcore/internal/models"
	"github.com/Skotchmaster/shopcore/internal/mykafka"
	"github.com/Skotchmaster/shopcore/internal/notify"
	orderservice "github.com/Skotchmaster/shopcore/internal/order/service"
	"github.com/Skotchmaster/shopcore/internal/stock"
	"github.com/Skotchmaster/shopcore/pkg/config"
	"github.com/Skotchmaster/shopcore/pkg/db"
	"github.com/Skotchmaster/shopcore/pkg/logging"
	"github.com/Skotchmaster/shopcore/pkg/metrics"
	authmw "github.com/Skotchmaster/shopcore/pkg/middleware/auth"
	"github.com/Skotchmaster/shopcore/pkg/middleware/csrf"
	loggingmw "github.com/Skotchmaster/shopcore/pkg/middleware/logging"
)

func main() {
	cfg := config.Load()
	config.MustNonEmpty(cfg.DatabaseURL, "DATABASE_URL")
	config.MustNonEmptyBytes(cfg.JWTAccessSecret, "JWT_SECRET")
	config.MustOneOf(cfg.DBDriver, "DB_DRIVER", db.DriverPostgres, db.DriverSQLite)

	logger := logging.New(cfg.LogLevel).With("service", cfg.ServiceName)
	slog.SetDefault(logger)

	initCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	gdb, err := db.Open(initCtx, cfg.DBDriver, cfg.DatabaseURL)
	cancel()
	if err != nil {
		log.Fatalf("db init error: %v", err)
	}
	if err := models.Migrate(gdb); err != nil {
		log.Fatalf("db migrate error: %v", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	serverMetrics := metrics.NewServerMetrics(reg, cfg.ServiceName)
	shopMetrics := metrics.NewShopMetrics(reg, cfg.ServiceName)

	var (
		cartCache cache.CartCache
		rdb       *redis.Client
	)
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			logger.Warn("redis unavailable, cart cache degraded", "addr", cfg.RedisAddr, "error", err)
		}
		cancel()
		cartCache = cache.NewRedisCache(rdb, cfg.CartCacheTTL)
	}

	var (
		notifier notify.Dispatcher = notify.LogDispatcher{}
		producer *mykafka.Producer
	)
	if len(cfg.KafkaBrokers) > 0 {
		producer = mykafka.NewProducer(cfg.KafkaBrokers)
		notifier = notify.NewKafkaDispatcher(producer, cfg.OrderTopic)
	}

	catalog := &catalogrepo.GormRepo{DB: gdb}
	carts := cartservice.New(&cartrepo.GormRepo{DB: gdb}, catalog, cartCache, shopMetrics)
	orders := orderservice.New(orderservice.Deps{
		DB:       gdb,
		Carts:    carts,
		Factory:  orderservice.NewFactory(stock.NewLedger()),
		Notifier: notifier,
		Metrics:  shopMetrics,
		Timeout:  cfg.StorageTimeout,
	})

	e := echo.New()
	e.HideBanner = true
	e.Validator = httpserver.NewRequestValidator()

	e.Server.ReadTimeout = 10 * time.Second
	e.Server.WriteTimeout = 15 * time.Second
	e.Server.ReadHeaderTimeout = 3 * time.Second

	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover())
	e.Use(loggingmw.RequestLogger(logger))
	e.Use(serverMetrics.Middleware())
	if cfg.CSRFEnabled {
		csrfCfg := csrf.DefaultConfig()
		csrfCfg.Secure = cfg.SecureCookies
		csrfCfg.SkipPaths = []string{"/health/live", "/health/ready", "/metrics"}
		e.Use(csrf.Middleware(csrfCfg))
	}

	httpserver.Register(e, &httpserver.Deps{
		Cart:     &httpserver.CartHTTP{Svc: carts},
		Order:    &httpserver.OrderHTTP{Svc: orders},
		Admin:    &httpserver.AdminHTTP{Orders: orders, Catalog: catalog},
		Identity: authmw.NewIdentityMiddleware(cfg.JWTAccessSecret, cfg.SecureCookies),
		DB:       gdb,
		Gatherer: reg,
	})

	addr := ":" + strconv.Itoa(cfg.ServerPort)
	go func() {
		logger.Info("server starting", "addr", addr)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("echo start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("echo shutdown", "error", err)
	}
	if producer != nil {
		if err := producer.Close(); err != nil {
			logger.Error("kafka close", "error", err)
		}
	}
	if rdb != nil {
		if err := rdb.Close(); err != nil {
			logger.Error("redis close", "error", err)
		}
	}
	if err := db.Close(gdb); err != nil {
		logger.Error("db close", "error", err)
	}

	logger.Info("server stopped")
}
