/*
scheduler.go - Periodic balance audit

PURPOSE:
  Account balances are a cache mutated with each posting. The auditor
  recomputes OpeningBalance + credits - debits from the postings of every
  account and reports accounts whose cached Balance disagrees. It reads
  only; drift is logged and exposed, never repaired.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Audits every active shop on each tick
  - Keeps the last report for GET /api/audit/balances callers and logs

CONFIGURATION:
  - CheckInterval: How often to audit (default: 1 hour)
  - Enabled: Whether the auditor is active (default: true)

USAGE:
  auditor := NewBalanceAuditor(store, log)
  auditor.Start()
  // ... later
  auditor.Stop()

SEE ALSO:
  - banking/postings.go: DerivedBalance
  - handlers.go: AuditBalances endpoint (on-demand audit of one shop)
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/warp/shop-ledger/banking"
	"github.com/warp/shop-ledger/core"
)

// AuditSource is what the auditor reads.
type AuditSource interface {
	ListShops(ctx context.Context) ([]core.Shop, error)
	ListAccounts(ctx context.Context, shopID core.ShopID) ([]core.Account, error)
	ListPostings(ctx context.Context, accountID core.AccountID) ([]core.Posting, error)
}

// Drift is one account whose cached balance disagrees with its postings.
type Drift struct {
	ShopID    core.ShopID
	AccountID core.AccountID
	Name      string
	Cached    decimal.Decimal
	Derived   decimal.Decimal
}

// AuditReport is the outcome of one audit run.
type AuditReport struct {
	RanAt    time.Time
	Accounts int
	Drift    []Drift
	Err      error
}

// BalanceAuditor compares cached and derived balances on a ticker.
type BalanceAuditor struct {
	Source        AuditSource
	CheckInterval time.Duration
	Enabled       bool

	log    zerolog.Logger
	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex

	lastMu sync.RWMutex
	last   AuditReport
}

// NewBalanceAuditor creates an auditor with a one hour interval.
func NewBalanceAuditor(source AuditSource, log zerolog.Logger) *BalanceAuditor {
	return &BalanceAuditor{
		Source:        source,
		CheckInterval: time.Hour,
		Enabled:       true,
		log:           log,
	}
}

// Start begins the audit loop. It runs one audit immediately.
func (a *BalanceAuditor) Start() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.Enabled || a.CheckInterval <= 0 {
		a.log.Info().Msg("balance auditor disabled")
		return
	}
	if a.ticker != nil {
		return
	}

	a.ticker = time.NewTicker(a.CheckInterval)
	a.stop = make(chan struct{})
	a.wg.Add(1)
	go a.run(a.ticker, a.stop)

	a.log.Info().Dur("interval", a.CheckInterval).Msg("balance auditor started")
}

// Stop ends the audit loop and waits for a running audit to finish.
func (a *BalanceAuditor) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.ticker != nil {
		a.ticker.Stop()
		close(a.stop)
		a.wg.Wait()
		a.ticker = nil
		a.log.Info().Msg("balance auditor stopped")
	}
}

func (a *BalanceAuditor) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer a.wg.Done()

	a.AuditAll(context.Background())
	for {
		select {
		case <-ticker.C:
			a.AuditAll(context.Background())
		case <-stop:
			return
		}
	}
}

// Last returns the most recent AuditAll report.
func (a *BalanceAuditor) Last() AuditReport {
	a.lastMu.RLock()
	defer a.lastMu.RUnlock()
	return a.last
}

// AuditAll audits every active shop and records the report.
func (a *BalanceAuditor) AuditAll(ctx context.Context) AuditReport {
	report := AuditReport{RanAt: time.Now().UTC()}

	shops, err := a.Source.ListShops(ctx)
	if err != nil {
		a.log.Error().Err(err).Msg("audit: listing shops")
		report.Err = err
	} else {
		for _, shop := range shops {
			if !shop.Active {
				continue
			}
			r := a.AuditShop(ctx, shop.ID)
			report.Accounts += r.Accounts
			report.Drift = append(report.Drift, r.Drift...)
			if r.Err != nil && report.Err == nil {
				report.Err = r.Err
			}
		}
		a.log.Info().Int("accounts", report.Accounts).Int("drift", len(report.Drift)).Msg("balance audit complete")
	}

	a.lastMu.Lock()
	a.last = report
	a.lastMu.Unlock()
	return report
}

// AuditShop audits the accounts of one shop.
func (a *BalanceAuditor) AuditShop(ctx context.Context, shopID core.ShopID) AuditReport {
	report := AuditReport{RanAt: time.Now().UTC()}

	accounts, err := a.Source.ListAccounts(ctx, shopID)
	if err != nil {
		report.Err = err
		return report
	}
	for _, acct := range accounts {
		postings, err := a.Source.ListPostings(ctx, acct.ID)
		if err != nil {
			a.log.Error().Err(err).Str("account_id", string(acct.ID)).Msg("audit: listing postings")
			report.Err = err
			continue
		}
		report.Accounts++

		derived := banking.DerivedBalance(acct, postings)
		if derived.Equal(acct.Balance) {
			continue
		}
		a.log.Warn().
			Str("shop_id", string(shopID)).
			Str("account_id", string(acct.ID)).
			Str("cached", acct.Balance.String()).
			Str("derived", derived.String()).
			Msg("balance drift")
		report.Drift = append(report.Drift, Drift{
			ShopID:    shopID,
			AccountID: acct.ID,
			Name:      acct.Name,
			Cached:    acct.Balance,
			Derived:   derived,
		})
	}
	return report
}

func toAuditDTO(r AuditReport) AuditDTO {
	dto := AuditDTO{Accounts: r.Accounts, Drift: make([]DriftDTO, len(r.Drift))}
	if !r.RanAt.IsZero() {
		dto.RanAt = r.RanAt.Format(time.RFC3339)
	}
	if r.Err != nil {
		dto.Error = r.Err.Error()
	}
	for i, d := range r.Drift {
		dto.Drift[i] = DriftDTO{AccountID: string(d.AccountID), Name: d.Name, Cached: d.Cached.String(), Derived: d.Derived.String()}
	}
	return dto
}
