// Command recalc recomputes segment membership. With -segment it
// recalculates one segment; without it, every segment of the tenant that is
// due (last calculated before the configured staleness window). It is
// intended to be invoked by an external scheduler, not as an in-process
// goroutine.
//
// Exit codes: 0 = success, 1 = error.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	postgres "github.com/tidemark/recordhub-backend/internal/adapter/postgres"
	"github.com/tidemark/recordhub-backend/internal/adapter/postgres/builtin"
	"github.com/tidemark/recordhub-backend/internal/adapter/postgres/fielddef"
	segmentrepo "github.com/tidemark/recordhub-backend/internal/adapter/postgres/segment"
	"github.com/tidemark/recordhub-backend/internal/app"
	"github.com/tidemark/recordhub-backend/internal/config"
	"github.com/tidemark/recordhub-backend/internal/domain"
	"github.com/tidemark/recordhub-backend/internal/registry"
	"github.com/tidemark/recordhub-backend/internal/service/segment"
)

func main() {
	var (
		tenantFlag  = flag.String("tenant", "", "tenant id (required)")
		segmentFlag = flag.String("segment", "", "segment id (optional; default: all due segments)")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := app.NewLogger(cfg.Log)

	tenantID, err := uuid.Parse(*tenantFlag)
	if err != nil {
		logger.Error("invalid -tenant", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		logger.Error("connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	segRepo := segmentrepo.New(pool)
	fields := registry.New(fielddef.New(pool), cfg.Fields.CacheTTL)

	contacts := builtin.MustNew(pool, domain.EntityTypeContact)
	leads := builtin.MustNew(pool, domain.EntityTypeLead)

	svc := segment.NewService(logger, segRepo,
		map[domain.EntityType]segment.Population{
			domain.EntityTypeContact: contacts,
			domain.EntityTypeLead:    leads,
		},
		fields, postgres.NewTxManager(pool), cfg.Segments,
	)

	var ids []uuid.UUID
	if *segmentFlag != "" {
		id, err := uuid.Parse(*segmentFlag)
		if err != nil {
			logger.Error("invalid -segment", slog.String("error", err.Error()))
			os.Exit(1)
		}
		ids = []uuid.UUID{id}
	} else {
		olderThan := time.Now().Add(-cfg.Segments.RecalcStaleness)
		ids, err = segRepo.ListDueForRecalc(ctx, tenantID, olderThan)
		if err != nil {
			logger.Error("list due segments", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	failed := 0
	for _, id := range ids {
		res, err := svc.Recalculate(ctx, tenantID, id)
		if err != nil {
			logger.Error("recalculate failed",
				slog.String("segment_id", id.String()),
				slog.String("error", err.Error()),
			)
			failed++
			continue
		}
		logger.Info("recalculate completed",
			slog.String("segment_id", id.String()),
			slog.Int("member_count", res.MemberCount),
			slog.Int("added", res.Added),
			slog.Int("removed", res.Removed),
		)
	}

	if failed > 0 {
		logger.Error("recalculation finished with failures",
			slog.Int("failed", failed),
			slog.Int("total", len(ids)),
		)
		os.Exit(1)
	}
}
