package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/redis/go-redis/v9"

	"github.com/hackgods/campus-clinic-scheduling/internal/api"
	"github.com/hackgods/campus-clinic-scheduling/internal/appointment"
	"github.com/hackgods/campus-clinic-scheduling/internal/catalog"
	"github.com/hackgods/campus-clinic-scheduling/internal/config"
	"github.com/hackgods/campus-clinic-scheduling/internal/db"
	"github.com/hackgods/campus-clinic-scheduling/internal/directory"
	"github.com/hackgods/campus-clinic-scheduling/internal/notify"
	redisclient "github.com/hackgods/campus-clinic-scheduling/internal/redis"
	"github.com/hackgods/campus-clinic-scheduling/internal/slotlock"
)

const (
	serviceName = "campus-clinic-api"
	version     = "1.0.0"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("api-server starting up")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	log.Printf("running in env=%s http_port=%s lock_backend=%s assignment_policy=%s",
		cfg.Env, cfg.HTTPPort, cfg.LockBackend, cfg.AssignmentPolicy)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, db.PoolConfig{AppName: serviceName, MaxConns: cfg.PgMaxConns, MinConns: cfg.PgMinConns})
	cancelPg()
	if err != nil {
		log.Fatalf("postgres connection error: %v", err)
	}
	defer pgPool.Close()
	log.Println("connected to Postgres")

	if err := db.Migrate(rootCtx, pgPool); err != nil {
		log.Fatalf("migration error: %v", err)
	}

	rdb := connectRedis(rootCtx, cfg)
	if rdb != nil {
		defer func() {
			if err := rdb.Close(); err != nil {
				log.Printf("error closing redis: %v", err)
			}
		}()
	}

	var locker slotlock.Locker
	if cfg.LockBackend == "redis" {
		locker = redisclient.NewRedisSlotLocker(rdb, cfg.LockTTL, cfg.LockWait)
	} else {
		locker = slotlock.NewLocal(cfg.LockWait)
	}

	var nurses directory.Directory = directory.NewPgDirectory(pgPool)
	if rdb != nil && cfg.NurseCacheTTL > 0 {
		nurses = directory.NewCachedDirectory(nurses, rdb, cfg.NurseCacheTTL)
	}

	repo := appointment.NewPgRepository(pgPool)
	selector, err := appointment.NewSelector(cfg.AssignmentPolicy, repo)
	if err != nil {
		log.Fatalf("assignment policy: %v", err)
	}
	svc := appointment.NewService(repo, nurses, locker, selector, cfg)

	types := catalog.NewPgStore(pgPool)
	if err := types.EnsureDefaults(rootCtx); err != nil {
		log.Fatalf("appointment types: %v", err)
	}
	svc.SetTypeCatalog(types)

	if cfg.SMTP.Enabled() {
		svc.SetNotifier(notify.NewSMTPNotifier(cfg.SMTP))
		log.Printf("booking confirmations enabled via %s:%d", cfg.SMTP.Host, cfg.SMTP.Port)
	}

	var limiter *api.RateLimiter
	if cfg.RateLimitRPS > 0 {
		limiter = api.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
		defer limiter.Close()
	}

	handler := api.NewRouter(api.RouterConfig{
		Scheduler:   svc,
		Types:       types,
		PgPool:      pgPool,
		Redis:       rdb,
		RateLimiter: limiter,
		Env:         cfg.Env,
		Version:     version,
	})

	if cfg.TracingEnabled {
		if err := xray.Configure(xray.Config{
			DaemonAddr:     "127.0.0.1:2000",
			ServiceVersion: version,
		}); err != nil {
			log.Printf("failed to configure X-Ray: %v", err)
		}
		os.Setenv("AWS_XRAY_CONTEXT_MISSING", "LOG_ERROR")
		handler = xray.Handler(xray.NewFixedSegmentNamer(serviceName), handler)
		log.Println("X-Ray tracing enabled")
	}

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Printf("listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-rootCtx.Done():
	case err := <-serveErr:
		if err != nil {
			log.Printf("http server error: %v", err)
		}
	}

	log.Println("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown error: %v", err)
	}

	// let queued confirmation e-mails finish
	svc.Wait()
	log.Println("api-server stopped")
}

// connectRedis returns nil when Redis is only an optional cache and cannot be reached.
func connectRedis(ctx context.Context, cfg config.Config) *redis.Client {
	needed := cfg.LockBackend == "redis"
	if !needed && cfg.NurseCacheTTL <= 0 {
		return nil
	}

	rdb, err := redisclient.NewRedisClient(ctx, redisclient.Options{
		Addr:     cfg.RedisAddr,
		Username: cfg.RedisUsername,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		if needed {
			log.Fatalf("redis connection error: %v", err)
		}
		log.Printf("redis unavailable, nurse cache disabled: %v", err)
		return nil
	}

	log.Println("connected to Redis")
	return rdb
}
