package main

import (
	"context"
	"github.com/beldeveloper/release-promoter/internal/app"
	"github.com/beldeveloper/release-promoter/internal/app/objectstore"
	"github.com/beldeveloper/release-promoter/internal/app/pipeline"
	"github.com/beldeveloper/release-promoter/internal/app/postgres"
	"github.com/beldeveloper/release-promoter/internal/app/svc"
	"github.com/beldeveloper/release-promoter/pkg"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/julienschmidt/httprouter"
	"github.com/pkg/errors"
	"google.golang.org/grpc"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func main() {
	// get watcher and router using DI wire
	c, err := initializeContainer()
	if err != nil {
		log.Fatalf("main: %v\n", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	// run watcher that advances the active promotions in background
	go c.watcher.Watch(ctx)
	// run http server
	runHttpServer(ctx, c.router)
}

type container struct {
	watcher svc.Watcher
	router  *httprouter.Router
}

func newContainer(watcher svc.Watcher, router *httprouter.Router) container {
	return container{
		watcher: watcher,
		router:  router,
	}
}

func newAccessKey() app.ApiAccessKey {
	return app.ApiAccessKey(envString("ACCESS_KEY", ""))
}

func newWatchDelay() (app.WatchDelay, error) {
	d, err := envDuration("WATCH_INTERVAL", defaultWatchInterval)
	return app.WatchDelay(d), err
}

func newPolicy() (pipeline.Policy, error) {
	return loadPolicy(envString("POLICY_FILE", ""))
}

func newWatcher(promo app.PromotionSvc, delay app.WatchDelay) svc.Watcher {
	return svc.NewWatcher([]app.WatcherJob{
		{
			Name: "advancePromotions",
			Do:   promo.WatchJob,
		},
	}, delay)
}

func newPostgresConn() (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	conn, err := pgxpool.Connect(ctx, postgresDSN())
	if err != nil {
		return nil, errors.Wrap(err, "main.newPostgresConn: connect")
	}
	err = postgres.EnsureSchema(ctx, conn)
	if err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "main.newPostgresConn")
	}
	return conn, nil
}

func newHookSvc() (pkg.HookSvc, error) {
	addr := envString("HOOK_HANDLER_ADDR", "")
	if addr == "" {
		log.Println("The hook handler address is not set, transitions are not published")
		return svc.NoopHook{}, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()
	conn, err := grpc.DialContext(ctx, addr, grpc.WithInsecure(), grpc.WithBlock())
	if err != nil {
		return nil, errors.Wrapf(err, "main.newHookSvc: dial: addr=%s", addr)
	}
	return svc.NewHook(conn), nil
}

func newArchive() (app.ArchiveSvc, error) {
	cfg, err := archiveConfig()
	if err != nil {
		return nil, errors.Wrap(err, "main.newArchive: config")
	}
	if !cfg.Enabled() {
		log.Println("The archive endpoint is not set, finished promotions are not archived")
		return objectstore.Noop{}, nil
	}
	client, err := objectstore.NewClient(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "main.newArchive")
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	err = objectstore.EnsureBucket(ctx, client, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "main.newArchive")
	}
	return objectstore.NewArchive(client, cfg.Bucket), nil
}

func runHttpServer(ctx context.Context, router *httprouter.Router) {
	httpPort := envString("HTTP_PORT", "8080")
	crtFile := envString("HTTPS_CRT", "")
	keyFile := envString("HTTPS_KEY", "")
	srv := &http.Server{
		Addr:              ":" + httpPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		var err error
		if len(crtFile) > 0 {
			err = srv.ListenAndServeTLS(crtFile, keyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			log.Fatalf("main.runHttpServer: serve http: %v; port = %s\n", err, httpPort)
		}
	}()
	log.Printf("Listening :%s for HTTP connections...\n", httpPort)
	<-ctx.Done()
	log.Print("Stopping the application...\n")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("main.runHttpServer: server shutdown: %v\n", err)
	}
}
