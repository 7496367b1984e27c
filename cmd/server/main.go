package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/rl1809/orderbot/internal/adapter/handler"
	"github.com/rl1809/orderbot/internal/adapter/messaging"
	"github.com/rl1809/orderbot/internal/adapter/storage"
	"github.com/rl1809/orderbot/internal/config"
	"github.com/rl1809/orderbot/internal/core/invoice"
	"github.com/rl1809/orderbot/internal/core/service"
	"github.com/rl1809/orderbot/internal/logger"
	"github.com/rl1809/orderbot/internal/port"
)

type store interface {
	port.ProductRepository
	port.OrderRepository
}

func main() {
	configPath := flag.String("config", ".env", "path to an optional env file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel, cfg.LogPretty)
	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func run(cfg *config.Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize storage
	db, closeDB, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeDB()

	catalogOpts := []service.CatalogOption{
		service.WithSearchLimits(cfg.SearchMaxResults, cfg.SearchMinSimilarity),
		service.WithCatalogLogger(log),
	}
	cartOpts := []service.CartOption{service.WithCartLogger(log)}

	// Initialize Redis
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			PoolSize: 100,
		})
		defer rdb.Close()

		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		log.Info().Str("addr", cfg.RedisAddr).Msg("connected to redis")

		cache := storage.NewRedisAdapter(rdb,
			storage.WithKeyPrefix(cfg.RedisKeyPrefix),
			storage.WithTTLs(cfg.CatalogCacheTTL, cfg.InvoiceCacheTTL),
		)
		catalogOpts = append(catalogOpts, service.WithCatalogCache(cache))
		cartOpts = append(cartOpts, service.WithInvoiceCache(cache))
	}

	// Initialize Kafka
	if brokers := cfg.Brokers(); len(brokers) > 0 {
		publisher := messaging.NewKafkaPublisher(brokers, cfg.KafkaTopic, log)
		defer publisher.Close()
		cartOpts = append(cartOpts, service.WithEventPublisher(publisher))
		log.Info().Strs("brokers", brokers).Str("topic", cfg.KafkaTopic).Msg("publishing order events")
	}

	renderer, err := invoice.NewRenderer(cfg.Currency)
	if err != nil {
		return err
	}

	catalog := service.NewCatalogService(db, catalogOpts...)
	cart := service.NewCartService(catalog, db, renderer, cartOpts...)
	bot := service.NewBotService(catalog, cart, log)

	// gRPC health
	grpcServer := grpc.NewServer()
	health := handler.NewHealthReporter(db, cfg.HealthInterval, log)
	health.Register(grpcServer)

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPCPort))
	if err != nil {
		return fmt.Errorf("listen grpc: %w", err)
	}

	// HTTP
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           handler.NewHTTPHandler(bot, catalog, log).Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Int("port", cfg.GRPCPort).Msg("gRPC server listening")
		return grpcServer.Serve(lis)
	})

	g.Go(func() error {
		log.Info().Int("port", cfg.HTTPPort).Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return health.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("HTTP shutdown")
		}
		log.Info().Msg("HTTP server stopped")

		grpcServer.GracefulStop()
		log.Info().Msg("gRPC server stopped")
		return nil
	})

	return g.Wait()
}

func openStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (store, func(), error) {
	switch cfg.StorageDriver {
	case config.DriverPostgres:
		gdb, err := storage.OpenPostgres(cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		pg := storage.NewPostgresAdapter(gdb)
		if err := pg.InitMigrate(); err != nil {
			pg.Close()
			return nil, nil, fmt.Errorf("migrate postgres: %w", err)
		}
		log.Info().Msg("connected to postgres")
		return pg, func() { pg.Close() }, nil

	default:
		if err := storage.MigrateMySQL(cfg.MySQLDSN); err != nil {
			return nil, nil, err
		}
		db, err := storage.OpenMySQL(ctx, cfg.MySQLDSN, cfg.DBMaxOpenConns, cfg.DBMaxIdleConns)
		if err != nil {
			return nil, nil, err
		}
		log.Info().Msg("connected to mysql")
		return storage.NewMySQLAdapter(db), func() { db.Close() }, nil
	}
}
