package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"comply/internal/activity"
	activitymem "comply/internal/activity/store/memory"
	activitypg "comply/internal/activity/store/postgres"
	"comply/internal/authz"
	"comply/internal/notify"
	"comply/internal/platform/config"
	"comply/internal/platform/httpserver"
	"comply/internal/platform/logger"
	"comply/internal/platform/metrics"
	"comply/internal/platform/postgres"
	platformredis "comply/internal/platform/redis"
	"comply/internal/session"
	"comply/internal/session/directory"
	"comply/internal/session/handler"
	"comply/internal/session/revocation"
	httptransport "comply/internal/transport/http"
	wfhandler "comply/internal/workflow/handler"
	wfmetrics "comply/internal/workflow/metrics"
	wfservice "comply/internal/workflow/service"
	artifactstore "comply/internal/workflow/store/artifact"
)

// main wires dependencies and owns process lifecycle. Stores are selected by
// configuration: Postgres and Redis back production, in-memory backs dev.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	m := metrics.New(prometheus.DefaultRegisterer)
	wfm := wfmetrics.New(prometheus.DefaultRegisterer)

	db, err := postgres.Open(cfg.PostgresDSN)
	if err != nil {
		log.Error("postgres connect failed", "error", err)
		os.Exit(1)
	}

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("redis connect failed", "error", err)
		os.Exit(1)
	}

	var revoked session.RevocationStore
	if redisClient != nil {
		revoked = revocation.NewRedis(redisClient.Client)
	} else {
		revoked = revocation.NewInMemory()
	}

	var users directory.Store
	var artifacts wfservice.ArtifactStore
	var events activity.Store
	if db != nil {
		users = directory.NewPostgres(db)
		artifacts = artifactstore.NewPostgres(db)
		events = activitypg.New(db)
	} else {
		users = directory.NewInMemory()
		artifacts = artifactstore.NewInMemoryStore()
		events = activitymem.NewInMemoryStore()
	}

	var sender notify.Sender
	if len(cfg.KafkaBrokers) > 0 {
		kafkaSender, err := notify.NewKafkaSender(cfg.KafkaBrokers, cfg.NotificationTopic)
		if err != nil {
			log.Error("kafka connect failed", "error", err)
			os.Exit(1)
		}
		defer kafkaSender.Close()
		sender = kafkaSender
	} else {
		sender = notify.NewLogSender(log)
	}
	dispatcher := notify.NewDispatcher(sender, log, cfg.NotifyTimeout, cfg.NotifyQueueSize)

	tokens := session.NewTokenService(cfg.JWTSigningKey, cfg.SessionTTL)
	sessions := session.NewService(users, tokens, revoked, cfg.SessionTTL,
		session.WithLogger(log),
		session.WithMetrics(m),
	)

	gate := authz.NewGate()
	publisher := activity.NewPublisher(events)

	// No WithBlobStore here: uploads terminate at a signed URL in front of
	// the service, so no deployment has a populated blob store to check file
	// keys against. An empty one would reject every create carrying a key.
	workflowOpts := []wfservice.Option{
		wfservice.WithLogger(log),
		wfservice.WithMetrics(wfm),
		wfservice.WithWarningWindow(cfg.ExpiryWarningWindow),
		wfservice.WithActivityFailureHook(m.ActivityAppendFails.Inc),
	}
	if db != nil {
		workflowOpts = append(workflowOpts, wfservice.WithDB(db))
	}
	workflow := wfservice.New(artifacts, publisher, gate, dispatcher, workflowOpts...)

	checkers := map[string]httptransport.HealthChecker{}
	if db != nil {
		checkers["postgres"] = dbChecker{db: db}
	}
	if redisClient != nil {
		checkers["redis"] = redisClient
	}

	router := httptransport.NewRouter([]httptransport.Registrar{
		handler.New(sessions, tokens, revoked, log, m),
		wfhandler.New(workflow, tokens, revoked, log, m, cfg.ExpiryWarningWindow),
	}, checkers)

	srv := httpserver.New(cfg.Addr, router)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return dispatcher.Run(ctx)
	})
	group.Go(func() error {
		log.Info("server starting", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

type dbChecker struct {
	db interface {
		PingContext(ctx context.Context) error
	}
}

func (c dbChecker) Health(ctx context.Context) error {
	return c.db.PingContext(ctx)
}
