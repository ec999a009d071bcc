package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/Leganyst/homeservice-platform/internal/auth"
	"github.com/Leganyst/homeservice-platform/internal/config"
	"github.com/Leganyst/homeservice-platform/internal/db"
	"github.com/Leganyst/homeservice-platform/internal/envelope"
	"github.com/Leganyst/homeservice-platform/internal/gateway"
	"github.com/Leganyst/homeservice-platform/internal/httpapi"
	"github.com/Leganyst/homeservice-platform/internal/model"
	"github.com/Leganyst/homeservice-platform/internal/outbox"
	"github.com/Leganyst/homeservice-platform/internal/repository"
	"github.com/Leganyst/homeservice-platform/internal/service"
	"github.com/Leganyst/homeservice-platform/internal/tracing"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. Загружаем конфиг из env (и .env, если есть).
	config.LoadDotEnv()
	dbCfg, err := config.LoadDBConfig()
	if err != nil {
		log.Fatalf("load db config: %v", err)
	}
	appCfg, err := config.LoadAppConfig()
	if err != nil {
		log.Fatalf("load app config: %v", err)
	}

	shutdownTracing, err := tracing.Setup(ctx, "homeservice", appCfg.OTLPEndpoint)
	if err != nil {
		log.Fatalf("init tracing: %v", err)
	}

	// 2. Подключаемся к БД через GORM.
	gormDB, err := db.NewGormDB(dbCfg)
	if err != nil {
		log.Fatalf("init db: %v", err)
	}

	// 3. Миграции моделей.
	if err := model.AutoMigrate(gormDB); err != nil {
		log.Fatalf("auto migrate: %v", err)
	}

	sqlDB, err := gormDB.DB()
	if err != nil {
		log.Fatalf("sql DB: %v", err)
	}
	defer sqlDB.Close()

	// 4. Ключ для конвертов.
	privKey, err := envelope.LoadPrivateKey(appCfg.RSAPrivateKeyPath)
	if err != nil {
		log.Fatalf("load rsa key: %v", err)
	}
	pubPEM, err := envelope.EncodePublicKeyPEM(&privKey.PublicKey)
	if err != nil {
		log.Fatalf("encode public key: %v", err)
	}

	// 5. Репозитории и сервисы.
	store := repository.NewStore(gormDB)
	gw := gateway.New(gateway.Config{
		BaseURL:   appCfg.GatewayBaseURL,
		KeyID:     appCfg.GatewayKeyID,
		KeySecret: appCfg.GatewayKeySecret,
		Currency:  appCfg.GatewayCurrency,
	})
	accounts := service.NewAccountService(store, auth.NewIssuer(appCfg.JWTSecret, appCfg.JWTTTL),
		service.WithResetTTL(appCfg.PasswordResetTTL))
	catalog := service.NewCatalogService(store)
	bookings := service.NewBookingService(store, service.Options{CancelWindow: appCfg.CancelWindow})
	payments := service.NewPaymentService(bookings, gw)

	if appCfg.CatalogSeedPath != "" {
		seedCatalog(ctx, catalog, appCfg.CatalogSeedPath)
	}

	// 6. HTTP API.
	api := httpapi.NewServer(httpapi.Config{
		Accounts:          accounts,
		Catalog:           catalog,
		Bookings:          bookings,
		Payments:          payments,
		PrivateKey:        privKey,
		PublicKeyPEM:      pubPEM,
		AuthRatePerMinute: appCfg.AuthRatePerMin,
		SecureCookies:     appCfg.SecureCookies,
		Health:            store.Ping,
	})
	httpServer := &http.Server{
		Addr:              appCfg.HTTPAddr,
		Handler:           api.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// 7. gRPC: health + reflection.
	grpcServer := grpc.NewServer()
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthSrv)
	reflection.Register(grpcServer)

	lis, err := net.Listen("tcp", appCfg.GRPCAddr)
	if err != nil {
		log.Fatalf("listen %s: %v", appCfg.GRPCAddr, err)
	}

	// 8. Outbox: события аудита в Kafka (без брокеров — в лог).
	var pub outbox.Publisher = outbox.LogPublisher{}
	if len(appCfg.KafkaBrokers) > 0 {
		kp, err := outbox.NewKafkaPublisher(appCfg.KafkaBrokers)
		if err != nil {
			log.Fatalf("init kafka producer: %v", err)
		}
		pub = kp
	}
	defer pub.Close()
	relay := outbox.NewRelay(store.Events, pub, outbox.Config{
		Topic:     appCfg.KafkaTopic,
		Interval:  appCfg.OutboxPollInterval,
		BatchSize: appCfg.OutboxBatch,
	})

	// 9. Запускаем всё и ждём сигнала.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("http server listening on %s", appCfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		log.Printf("gRPC server listening on %s", appCfg.GRPCAddr)
		return grpcServer.Serve(lis)
	})
	g.Go(func() error {
		if err := relay.Run(gctx); !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		watchHealth(gctx, store, healthSrv)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Println("shutting down...")
		healthSrv.Shutdown()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("http shutdown: %v", err)
		}
		grpcServer.GracefulStop()
		if err := shutdownTracing(shutdownCtx); err != nil {
			log.Printf("tracing shutdown: %v", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("server: %v", err)
	}
}

// watchHealth выставляет статус gRPC health по доступности БД.
func watchHealth(ctx context.Context, store *repository.Store, hs *health.Server) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		status := healthpb.HealthCheckResponse_SERVING
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := store.Ping(pingCtx); err != nil {
			log.Printf("health: db ping: %v", err)
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
		cancel()
		hs.SetServingStatus("", status)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func seedCatalog(ctx context.Context, catalog *service.CatalogService, path string) {
	f, err := os.Open(path)
	if err != nil {
		log.Fatalf("open catalog seed: %v", err)
	}
	defer f.Close()
	n, err := catalog.SeedCatalog(ctx, f)
	if err != nil {
		log.Fatalf("seed catalog: %v", err)
	}
	log.Printf("catalog seed: %d new services", n)
}
