package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/campus-clinic-scheduling/internal/catalog"
	"github.com/hackgods/campus-clinic-scheduling/internal/config"
	"github.com/hackgods/campus-clinic-scheduling/internal/db"
	"github.com/hackgods/campus-clinic-scheduling/internal/directory"
	redisclient "github.com/hackgods/campus-clinic-scheduling/internal/redis"
)

var shifts = []string{"morning", "afternoon", "evening"}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, db.PoolConfig{AppName: "clinic-seed"})
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	if err := db.Migrate(context.Background(), pool); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	if err := catalog.NewPgStore(pool).EnsureDefaults(context.Background()); err != nil {
		log.Fatalf("seed appointment types: %v", err)
	}
	log.Println("appointment types seeded")

	if err := seedNurses(context.Background(), pool, envInt("SEED_NURSES", 8)); err != nil {
		log.Fatalf("seed nurses: %v", err)
	}
	invalidateNurseCache(context.Background(), cfg, pool)

	if err := seedPatients(context.Background(), pool, envInt("SEED_PATIENTS", 2000)); err != nil {
		log.Fatalf("seed patients: %v", err)
	}

	log.Println("seed complete")
}

// invalidateNurseCache drops the cached nurse list so running servers see the new nurses.
func invalidateNurseCache(ctx context.Context, cfg config.Config, pool *pgxpool.Pool) {
	rdb, err := redisclient.NewRedisClient(ctx, redisclient.Options{
		Addr:     cfg.RedisAddr,
		Username: cfg.RedisUsername,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		log.Printf("redis unavailable, nurse cache not invalidated: %v", err)
		return
	}
	defer rdb.Close()

	cached := directory.NewCachedDirectory(directory.NewPgDirectory(pool), rdb, cfg.NurseCacheTTL)
	if err := cached.Invalidate(ctx); err != nil {
		log.Printf("failed to invalidate nurse cache: %v", err)
		return
	}
	log.Println("nurse cache invalidated")
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func seedNurses(ctx context.Context, pool *pgxpool.Pool, count int) error {
	log.Printf("seeding %d nurses", count)

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for i := 0; i < count; i++ {
		first, last := gofakeit.FirstName(), gofakeit.LastName()
		email := fmt.Sprintf("%s.%s.%d@clinic.campus.edu", strings.ToLower(first), strings.ToLower(last), i)

		_, err := tx.Exec(ctx, `
			INSERT INTO users (id, name, email, role, shift, created_at, updated_at)
			VALUES ($1, $2, $3, 'nurse', $4, now(), now())
			ON CONFLICT (email) DO NOTHING
		`, uuid.New(), first+" "+last, email, shifts[i%len(shifts)])
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Println("nurses seeded")
	return nil
}

// seedPatients inserts students and staff, roughly nine students per staff member.
func seedPatients(ctx context.Context, pool *pgxpool.Pool, count int) error {
	log.Printf("seeding %d patients", count)

	const batchSize = 500

	for offset := 0; offset < count; offset += batchSize {
		end := offset + batchSize
		if end > count {
			end = count
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		for i := offset; i < end; i++ {
			role := "student"
			if i%10 == 0 {
				role = "staff"
			}

			_, err := tx.Exec(ctx, `
				INSERT INTO users (id, name, email, role, created_at, updated_at)
				VALUES ($1, $2, $3, $4, now(), now())
				ON CONFLICT (email) DO NOTHING
			`, uuid.New(), gofakeit.Name(), fmt.Sprintf("%d.%s", i, gofakeit.Email()), role)
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}

		log.Printf("patients seeded: %d/%d", end, count)
	}

	log.Println("patients seeded")
	return nil
}
