package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/hackgods/campus-clinic-scheduling/internal/appointment"
	"github.com/hackgods/campus-clinic-scheduling/internal/config"
	"github.com/hackgods/campus-clinic-scheduling/internal/db"
	"github.com/hackgods/campus-clinic-scheduling/internal/directory"
	"github.com/hackgods/campus-clinic-scheduling/internal/slotlock"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("noshow-worker starting up")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	log.Printf("running no-show worker in env=%s interval=%s grace=%s", cfg.Env, cfg.WorkerInterval, cfg.NoShowGrace)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, db.PoolConfig{AppName: "clinic-noshow-worker", MaxConns: 2})
	cancelPg()
	if err != nil {
		log.Fatalf("postgres connection error: %v", err)
	}
	defer pgPool.Close()
	log.Println("connected to Postgres")

	if err := db.Migrate(rootCtx, pgPool); err != nil {
		log.Fatalf("migration error: %v", err)
	}

	// status updates only; the worker never books, so no shared slot lock is needed
	repo := appointment.NewPgRepository(pgPool)
	selector, err := appointment.NewSelector(cfg.AssignmentPolicy, repo)
	if err != nil {
		log.Fatalf("assignment policy: %v", err)
	}
	svc := appointment.NewService(repo, directory.NewPgDirectory(pgPool), slotlock.NewLocal(cfg.LockWait), selector, cfg)

	// Run once at startup
	runOnce(rootCtx, svc)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			log.Println("shutdown signal received, stopping no-show worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, svc)
		}
	}
}

func runOnce(ctx context.Context, svc *appointment.Service) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	marked, err := svc.MarkNoShows(runCtx, start)
	if err != nil {
		log.Printf("no-show run error: %v", err)
		return
	}
	log.Printf("no-show run complete marked=%d in %s", marked, time.Since(start))
}
