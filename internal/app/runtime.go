package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/meridian-erp/meridian/internal/accounting/accounts"
	"github.com/meridian-erp/meridian/internal/accounting/journals"
	"github.com/meridian-erp/meridian/internal/accounting/rates"
	"github.com/meridian-erp/meridian/internal/accounting/reports"
	"github.com/meridian-erp/meridian/internal/audit"
	"github.com/meridian-erp/meridian/internal/inventory"
	"github.com/meridian-erp/meridian/internal/observability"
	"github.com/meridian-erp/meridian/internal/platform/cache"
	"github.com/meridian-erp/meridian/internal/posting"
)

// Runtime wires every ledger service with its dependencies. Callers
// (binaries, route handlers, batch jobs) consume the services; nothing
// else writes account balances or lot quantities.
type Runtime struct {
	Accounts  *accounts.Service
	Rates     *rates.Service
	Journals  *journals.Service
	Inventory *inventory.Service
	Poster    *posting.Poster
	Reports   *reports.Service
	Metrics   *observability.Metrics
	Auditor   *audit.Interceptor
}

// NewRuntime constructs the full service graph. redisClient may be nil;
// rate lookups then skip the cache.
func NewRuntime(ctx context.Context, cfg *Config, logger *slog.Logger, pool *pgxpool.Pool, redisClient *redis.Client) (*Runtime, error) {
	metrics := observability.NewMetrics()
	auditor := audit.NewInterceptor(audit.NewPGRecorder(pool), logger, metrics)

	accountService := accounts.NewService(accounts.NewRepository(pool), auditor, metrics)

	rateCache := cache.NewRateCache(redisClient, cfg.RateCacheTTL)
	rateService := rates.NewService(rates.NewRepository(pool), rateCache)

	journalService := journals.NewService(journals.NewRepository(pool), rateService, auditor, metrics, cfg.BaseCurrency)
	inventoryService := inventory.NewService(inventory.NewRepository(pool), auditor, metrics)

	accountSet, err := posting.ResolveAccountSet(ctx, accountService, posting.AccountCodes{
		Receivable: cfg.AccountReceivableCode,
		Revenue:    cfg.AccountRevenueCode,
		TaxPayable: cfg.AccountTaxPayableCode,
		Cash:       cfg.AccountCashCode,
		Inventory:  cfg.AccountInventoryCode,
		COGS:       cfg.AccountCOGSCode,
		Payable:    cfg.AccountPayableCode,
	})
	if err != nil {
		return nil, fmt.Errorf("app: resolve default accounts: %w", err)
	}
	poster := posting.NewPoster(journalService, inventoryService, accountSet, logger)

	reportService := reports.NewService(reports.NewRepository(pool), accountService)

	return &Runtime{
		Accounts:  accountService,
		Rates:     rateService,
		Journals:  journalService,
		Inventory: inventoryService,
		Poster:    poster,
		Reports:   reportService,
		Metrics:   metrics,
		Auditor:   auditor,
	}, nil
}
