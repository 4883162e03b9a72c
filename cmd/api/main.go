package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"goalboard.org/internal/auth"
	"goalboard.org/internal/events"
	"goalboard.org/internal/goals"
	"goalboard.org/internal/httpapi"
	"goalboard.org/internal/obs"
	"goalboard.org/internal/store/pg"
)

var (
	version = "0.3.0"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	// Store selection: PostgreSQL when a DSN is configured, otherwise
	// the in-memory store (demo and test deployments).
	var (
		store goals.Store
		db    *sql.DB
	)
	if dsn := os.Getenv("GOALBOARD_PG_DSN"); dsn != "" {
		pgStore, err := pg.Open(dsn)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		store = pgStore
		db = pgStore.DB()
	} else {
		store = goals.NewInMemory()
	}

	svc := goals.NewService(store, goals.WithTokenIssuer(auth.Issuer{}))
	api := httpapi.New(httpapi.ReadyProbe{DB: db}, version, svc, events.New())

	addr := os.Getenv("GOALBOARD_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting goalboard-api %s on %s", version, srv.Addr)

	// graceful shutdown
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if db != nil {
		_ = db.Close()
	}
	log.Println("Stopped")
}
