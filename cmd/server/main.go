// Command server runs the enrollment gateway: identity, kingdoms, screening
// tests and the audit trail behind a single HTTP listener.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"crowngate/internal/audit"
	audithandler "crowngate/internal/audit/handler"
	auditmetrics "crowngate/internal/audit/metrics"
	auditmodels "crowngate/internal/audit/models"
	auditstore "crowngate/internal/audit/store"
	identityhandler "crowngate/internal/identity/handler"
	identitymetrics "crowngate/internal/identity/metrics"
	"crowngate/internal/identity/revocation"
	identityservice "crowngate/internal/identity/service"
	identitystore "crowngate/internal/identity/store"
	"crowngate/internal/jwtauth"
	kingdomhandler "crowngate/internal/kingdom/handler"
	kingdommetrics "crowngate/internal/kingdom/metrics"
	kingdomservice "crowngate/internal/kingdom/service"
	kingdomstore "crowngate/internal/kingdom/store"
	"crowngate/internal/notify"
	"crowngate/internal/platform/config"
	"crowngate/internal/platform/database"
	"crowngate/internal/platform/httpserver"
	"crowngate/internal/platform/logger"
	platformredis "crowngate/internal/platform/redis"
	screeninghandler "crowngate/internal/screening/handler"
	screeningmetrics "crowngate/internal/screening/metrics"
	screeningservice "crowngate/internal/screening/service"
	screeningstore "crowngate/internal/screening/store"
	httptransport "crowngate/internal/transport/http"
	id "crowngate/pkg/domain"
)

const shutdownTimeout = 15 * time.Second

// profileBinding defers the identity-to-kingdom dependency: the identity
// service is built before the kingdom service, which registration then
// reaches through this forwarder.
type profileBinding struct {
	svc *kingdomservice.Service
}

func (b *profileBinding) CreateKingProfile(ctx context.Context, userID id.UserID, kingdomID id.KingdomID, maxCitizens int) error {
	return b.svc.CreateKingProfile(ctx, userID, kingdomID, maxCitizens)
}

func (b *profileBinding) CreateCitizenProfile(ctx context.Context, userID id.UserID, kingdomID id.KingdomID, age int, pigeonEmail string) error {
	return b.svc.CreateCitizenProfile(ctx, userID, kingdomID, age, pigeonEmail)
}

type stores struct {
	users       identitystore.UserStore
	revocations revocation.Store
	auditLog    auditstore.Store
	kingdoms    kingdomstore.KingdomStore
	kings       kingdomstore.KingStore
	citizens    kingdomstore.CitizenStore
	tests       screeningstore.TestStore
	questions   screeningstore.QuestionStore
	attempts    screeningstore.AttemptStore
	answers     screeningstore.AnswerStore
}

func memoryStores() stores {
	return stores{
		users:       identitystore.NewInMemory(),
		revocations: revocation.NewInMemory(),
		auditLog:    auditstore.NewInMemory(),
		kingdoms:    kingdomstore.NewInMemoryKingdoms(),
		kings:       kingdomstore.NewInMemoryKings(),
		citizens:    kingdomstore.NewInMemoryCitizens(),
		tests:       screeningstore.NewInMemoryTests(),
		questions:   screeningstore.NewInMemoryQuestions(),
		attempts:    screeningstore.NewInMemoryAttempts(),
		answers:     screeningstore.NewInMemoryAnswers(),
	}
}

func postgresStores(db *sql.DB) stores {
	return stores{
		users:       identitystore.NewPostgres(db),
		revocations: revocation.NewPostgres(db),
		auditLog:    auditstore.NewPostgres(db),
		kingdoms:    kingdomstore.NewPostgresKingdoms(db),
		kings:       kingdomstore.NewPostgresKings(db),
		citizens:    kingdomstore.NewPostgresCitizens(db),
		tests:       screeningstore.NewPostgresTests(db),
		questions:   screeningstore.NewPostgresQuestions(db),
		attempts:    screeningstore.NewPostgresAttempts(db),
		answers:     screeningstore.NewPostgresAnswers(db),
	}
}

func main() {
	cfg := config.FromEnv()
	log := logger.New()
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		db  *sql.DB
		st  stores
		err error
	)
	if cfg.PostgresDSN != "" {
		db, err = database.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			log.Error("failed to open database", "error", err.Error())
			os.Exit(1)
		}
		defer db.Close()
		st = postgresStores(db)
		log.Info("using postgres storage")
	} else {
		st = memoryStores()
		log.Info("using in-memory storage; data will not survive a restart")
	}

	var redisClient *platformredis.Client
	if cfg.RedisURL != "" {
		redisClient, err = platformredis.New(cfg.RedisURL)
		if err != nil {
			log.Error("failed to connect to redis", "error", err.Error())
			os.Exit(1)
		}
		defer redisClient.Close()
		st.revocations = revocation.NewRedis(redisClient.Client)
		log.Info("using redis token revocation list")
	}

	var sinks []audit.Sink
	if len(cfg.KafkaBrokers) > 0 {
		kafkaSink, err := audit.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaAuditTopic)
		if err != nil {
			log.Error("failed to connect to kafka", "error", err.Error())
			os.Exit(1)
		}
		defer kafkaSink.Close()
		sinks = append(sinks, kafkaSink)
		log.Info("publishing audit entries to kafka", "topic", cfg.KafkaAuditTopic)
	}

	inbox := make(chan auditmodels.Entry, cfg.AuditBuffer)
	publisher := audit.NewPublisher(st.auditLog, log, audit.WithInbox(inbox), audit.WithMetrics(auditmetrics.New()))
	auditWorker := audit.NewWorker(st.auditLog, log, inbox, sinks...)

	dispatcher := notify.NewDispatcher(log, cfg.AuditBuffer)

	tokens := jwtauth.NewService(cfg.JWTSigningKey, "crowngate", cfg.AccessTokenTTL)

	profiles := &profileBinding{}
	identitySvc := identityservice.New(st.users, st.revocations, tokens, profiles, publisher, log, identitymetrics.New())
	screeningSvc := screeningservice.New(st.tests, st.questions, st.attempts, st.answers, st.citizens, st.users, identitySvc, publisher, dispatcher, log, screeningmetrics.New())
	kingdomSvc := kingdomservice.New(st.kingdoms, st.kings, st.citizens, screeningSvc, st.users, identitySvc, publisher, dispatcher, log, kingdommetrics.New())
	profiles.svc = kingdomSvc

	auditSvc := audit.NewService(st.auditLog, identitySvc, kingdomSvc)

	router := httptransport.New(httptransport.Config{
		Logger:      log,
		Identity:    identityhandler.New(identitySvc, int64(cfg.AccessTokenTTL.Seconds()), log),
		Kingdom:     kingdomhandler.New(kingdomSvc, log),
		Screening:   screeninghandler.New(screeningSvc, log),
		Audit:       audithandler.New(auditSvc, log),
		Validator:   jwtauth.NewAdapter(tokens),
		Revocations: st.revocations,
		Health: func(ctx context.Context) error {
			if db != nil {
				if err := db.PingContext(ctx); err != nil {
					return err
				}
			}
			if redisClient != nil {
				return redisClient.Health(ctx)
			}
			return nil
		},
	})

	srv := httpserver.New(cfg.Addr, router)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := auditWorker.Run(ctx); !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		if err := dispatcher.Run(ctx, notify.NewLogSender(log)); !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		log.Info("server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server exited with error", "error", err.Error())
		os.Exit(1)
	}
	log.Info("server stopped")
}
