package main

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"

	"github.com/briefmatch/backend/internal/auth"
	"github.com/briefmatch/backend/internal/config"
	"github.com/briefmatch/backend/internal/events"
	"github.com/briefmatch/backend/internal/handlers"
	"github.com/briefmatch/backend/internal/repository"
	"github.com/briefmatch/backend/internal/router"
	"github.com/briefmatch/backend/internal/scheduler"
	"github.com/briefmatch/backend/internal/services"
)

// buildAPI wires repositories, services and handlers and returns the HTTP
// handler plus the River client that must be started alongside the server.
// The expiry insert func is set after the River client exists (breaks the
// init cycle between matcher, hold service and worker).
func buildAPI(cfg *config.Config, pool *pgxpool.Pool, broker events.Broker, logger *slog.Logger) (http.Handler, *river.Client[pgx.Tx], error) {
	userRepo := repository.NewUserRepo(pool)
	jobRepo := repository.NewJobRepo(pool)
	matchRepo := repository.NewMatchRepo(pool)
	txnRepo := repository.NewTransactionRepo(pool)
	reviewRepo := repository.NewReviewRepo(pool)
	checklistRepo := repository.NewChecklistRepo(pool)
	deliverableRepo := repository.NewDeliverableRepo(pool)

	var insertMu sync.Mutex
	var insertFn scheduler.InsertExpireMatchTxFunc
	scheduleExpiry := func(ctx context.Context, tx pgx.Tx, args scheduler.ExpireMatchArgs, runAt time.Time) error {
		insertMu.Lock()
		fn := insertFn
		insertMu.Unlock()
		if fn == nil {
			panic("river insert not wired")
		}
		return fn(ctx, tx, args, runAt)
	}

	matcher := services.NewMatcher(pool, userRepo, matchRepo, scheduleExpiry, broker, logger, services.MatcherConfig{
		BatchSize:    cfg.Matching.BatchSize,
		HoldDuration: cfg.Matching.HoldDuration,
		MinScore:     cfg.Matching.MinScore,
	})
	holds := services.NewHoldService(pool, jobRepo, matchRepo, checklistRepo, matcher, broker, logger)
	escrow := services.NewEscrow(pool, jobRepo, txnRepo, matcher, broker, logger)
	lifecycle := services.NewLifecycle(pool, jobRepo, matchRepo, checklistRepo, deliverableRepo, broker, logger)
	reviewGate := services.NewReviewGate(pool, jobRepo, matchRepo, reviewRepo, escrow, broker, logger)

	workers := river.NewWorkers()
	river.AddWorker(workers, scheduler.NewExpireMatchWorker(holds, logger))
	riverClient, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: 10},
		},
		Workers: workers,
	})
	if err != nil {
		return nil, nil, err
	}
	insertMu.Lock()
	insertFn = func(ctx context.Context, tx pgx.Tx, args scheduler.ExpireMatchArgs, runAt time.Time) error {
		_, err := riverClient.InsertTx(ctx, tx, args, &river.InsertOpts{ScheduledAt: runAt})
		return err
	}
	insertMu.Unlock()

	var oracle services.BriefOracle
	if cfg.Oracle.URL != "" {
		oracle, err = services.NewHTTPOracle(cfg.Oracle.URL, cfg.Oracle.APIKey)
		if err != nil {
			return nil, nil, err
		}
	}
	briefSvc := services.NewBriefService(oracle, logger)

	authRepo := auth.NewRepository(pool)
	authSvc := auth.NewService(authRepo, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	h := router.Handlers{
		Auth:  auth.NewHandler(authSvc, logger),
		Users: &handlers.UserHandler{Users: userRepo, Reviews: reviewRepo, Logger: logger},
		Jobs: &handlers.JobHandler{
			Jobs:        jobRepo,
			Briefs:      briefSvc,
			Escrow:      escrow,
			Reviews:     reviewGate,
			ReviewStore: reviewRepo,
			Lifecycle:   lifecycle,
			Logger:      logger,
		},
		Matches: &handlers.MatchHandler{
			Jobs:    jobRepo,
			Matches: matchRepo,
			Holds:   holds,
			Matcher: matcher,
			Logger:  logger,
		},
		Workroom: &handlers.WorkroomHandler{
			Lifecycle:    lifecycle,
			Jobs:         jobRepo,
			Matches:      matchRepo,
			Deliverables: deliverableRepo,
			Checklists:   checklistRepo,
			Logger:       logger,
		},
		Admin: &handlers.AdminHandler{
			Escrow:       escrow,
			Holds:        holds,
			Transactions: txnRepo,
			Logger:       logger,
		},
	}

	return router.New(h, authSvc), riverClient, nil
}
