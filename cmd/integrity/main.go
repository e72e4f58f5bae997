// Command integrity repairs orphaned relationship references after a record
// deletion: every field whose relationship target is the deleted record's
// type has matching values nulled out. Delete-handlers normally trigger this
// in-process; the command exists for manual repair and backfills.
//
// Exit codes: 0 = success (possibly with per-field errors reported),
// 1 = error.
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
	"github.com/tidemark/recordhub-backend/internal/adapter/postgres/module"
	"github.com/tidemark/recordhub-backend/internal/adapter/postgres/record"
	"github.com/tidemark/recordhub-backend/internal/app"
	"github.com/tidemark/recordhub-backend/internal/config"
	"github.com/tidemark/recordhub-backend/internal/domain"
	"github.com/tidemark/recordhub-backend/internal/registry"
	"github.com/tidemark/recordhub-backend/internal/service/entitystore"
	"github.com/tidemark/recordhub-backend/internal/service/relationship"
)

func main() {
	var (
		tenantFlag = flag.String("tenant", "", "tenant id (required)")
		typeFlag   = flag.String("type", "", "deleted record's entity type (required)")
		idFlag     = flag.String("id", "", "deleted record id (required)")
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
	deletedID, err := uuid.Parse(*idFlag)
	if err != nil {
		logger.Error("invalid -id", slog.String("error", err.Error()))
		os.Exit(1)
	}
	deletedType := domain.EntityType(*typeFlag)
	if deletedType == "" {
		logger.Error("-type is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		logger.Error("connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	modules := module.New(pool)
	stores := entitystore.New(
		map[domain.EntityType]entitystore.Store{
			domain.EntityTypeContact: builtin.MustNew(pool, domain.EntityTypeContact),
			domain.EntityTypeLead:    builtin.MustNew(pool, domain.EntityTypeLead),
			domain.EntityTypeAccount: builtin.MustNew(pool, domain.EntityTypeAccount),
		},
		func(slug string) entitystore.Store { return record.New(pool, modules, slug) },
	)

	fields := registry.New(fielddef.New(pool), cfg.Fields.CacheTTL)
	svc := relationship.NewService(logger, fields, stores, postgres.NewTxManager(pool), cfg.Cleanup)

	res, err := svc.Cleanup(ctx, tenantID, deletedType, deletedID)
	if err != nil {
		logger.Error("cleanup failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("cleanup completed",
		slog.String("deleted_type", deletedType.String()),
		slog.String("deleted_id", deletedID.String()),
		slog.Int("cleaned_count", res.CleanedCount),
		slog.Int("field_errors", len(res.Errors)),
	)
	for _, fe := range res.Errors {
		logger.Warn("field cleanup error",
			slog.String("field_key", fe.Field),
			slog.String("error", fe.Message),
		)
	}
}
