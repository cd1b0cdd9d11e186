package banking

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/warp/shop-ledger/core"
	"github.com/warp/shop-ledger/tenant"
)

// Steps of the posting operations, as reported in PartialCompletionError.
const (
	StepInsertPosting  core.Step = "insert_posting"
	StepPostBalance    core.Step = "post_balance"
	StepReverseBalance core.Step = "reverse_balance"
	StepDeletePosting  core.Step = "delete_posting"
)

// Store is what PostingService needs from the record store.
type Store interface {
	core.AccountStore
	core.PostingStore
}

// NewAccount is the input of OpenAccount.
type NewAccount struct {
	Name           string
	Provider       string
	Type           core.AccountType
	OpeningBalance decimal.Decimal
}

// NewPosting is the input of CreatePosting.
type NewPosting struct {
	AccountID core.AccountID
	Direction core.Direction
	Amount    decimal.Decimal
	PostedAt  time.Time // zero = now
	Memo      string
	Reference string
}

// PostingService creates and deletes postings and keeps the account
// balance cache in step with them.
type PostingService struct {
	store  Store
	ledger *BalanceLedger
	log    zerolog.Logger
}

func NewPostingService(store Store, ledger *BalanceLedger, log zerolog.Logger) *PostingService {
	return &PostingService{store: store, ledger: ledger, log: log}
}

// =============================================================================
// ACCOUNTS
// =============================================================================

// OpenAccount creates an account whose balance starts at its opening balance.
func (s *PostingService) OpenAccount(ctx context.Context, in NewAccount) (core.Account, error) {
	shopID, err := tenant.ShopFrom(ctx)
	if err != nil {
		return core.Account{}, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return core.Account{}, core.Invalid("name", "is required")
	}
	if !in.Type.Valid() {
		return core.Account{}, core.Invalid("type", "must be bank, wallet or mobile_money, got %q", in.Type)
	}

	return s.store.InsertAccount(ctx, core.Account{
		ShopID:         shopID,
		Name:           name,
		Provider:       strings.TrimSpace(in.Provider),
		Type:           in.Type,
		OpeningBalance: in.OpeningBalance,
		Balance:        in.OpeningBalance,
	})
}

// ListAccounts returns the bound shop's accounts.
func (s *PostingService) ListAccounts(ctx context.Context) ([]core.Account, error) {
	shopID, err := tenant.ShopFrom(ctx)
	if err != nil {
		return nil, err
	}
	return s.store.ListAccounts(ctx, shopID)
}

// GetAccount returns an account of the bound shop.
func (s *PostingService) GetAccount(ctx context.Context, id core.AccountID) (core.Account, error) {
	shopID, err := tenant.ShopFrom(ctx)
	if err != nil {
		return core.Account{}, err
	}
	acct, err := s.store.GetAccount(ctx, id)
	if err != nil {
		return core.Account{}, err
	}
	if acct.ShopID != shopID {
		return core.Account{}, core.NotFound("account", id)
	}
	return acct, nil
}

// =============================================================================
// POSTINGS
// =============================================================================

// CreatePosting inserts a posting, then applies it to the balance. If the
// balance write fails the posting is deleted again.
func (s *PostingService) CreatePosting(ctx context.Context, in NewPosting) (core.Posting, error) {
	if err := validateAmount(in.Direction, in.Amount); err != nil {
		return core.Posting{}, err
	}
	acct, err := s.GetAccount(ctx, in.AccountID)
	if err != nil {
		return core.Posting{}, err
	}

	log := s.log.With().Str("account_id", string(acct.ID)).Str("direction", string(in.Direction)).Logger()
	saga := core.NewSaga("create_posting")

	posting, err := s.store.InsertPosting(ctx, core.Posting{
		ShopID:    acct.ShopID,
		AccountID: acct.ID,
		Direction: in.Direction,
		Amount:    in.Amount,
		PostedAt:  in.PostedAt,
		Memo:      strings.TrimSpace(in.Memo),
		Reference: strings.TrimSpace(in.Reference),
	})
	if err != nil {
		return core.Posting{}, err
	}
	saga.Record(StepInsertPosting, func(ctx context.Context) error {
		return s.store.DeletePosting(ctx, posting.ID)
	})

	if _, err := s.ledger.Post(ctx, acct.ID, in.Direction, in.Amount); err != nil {
		return core.Posting{}, s.compensate(ctx, log, saga.Fail(StepPostBalance, string(posting.ID), err))
	}

	log.Info().Str("posting_id", string(posting.ID)).Str("amount", in.Amount.String()).Msg("posting created")
	return posting, nil
}

// DeletePosting reverses the posting's effect on the balance, then deletes
// it. If the delete fails the reversal is undone by re-posting. Deleting a
// posting that no longer exists is a NotFoundError and changes nothing.
func (s *PostingService) DeletePosting(ctx context.Context, id core.PostingID) error {
	shopID, err := tenant.ShopFrom(ctx)
	if err != nil {
		return err
	}
	posting, err := s.store.GetPosting(ctx, id)
	if err != nil {
		return err
	}
	if posting.ShopID != shopID {
		return core.NotFound("posting", id)
	}

	log := s.log.With().Str("posting_id", string(id)).Str("account_id", string(posting.AccountID)).Logger()
	saga := core.NewSaga("delete_posting")

	if _, err := s.ledger.Reverse(ctx, posting.AccountID, posting.Direction, posting.Amount); err != nil {
		return err
	}
	saga.Record(StepReverseBalance, func(ctx context.Context) error {
		_, err := s.ledger.Post(ctx, posting.AccountID, posting.Direction, posting.Amount)
		return err
	})

	if err := s.store.DeletePosting(ctx, id); err != nil {
		return s.compensate(ctx, log, saga.Fail(StepDeletePosting, string(id), err))
	}

	log.Info().Msg("posting deleted")
	return nil
}

// compensate undoes the committed steps of a failed operation. When that
// works the original cause is returned; otherwise the partial-completion
// error is.
func (s *PostingService) compensate(ctx context.Context, log zerolog.Logger, partial *core.PartialCompletionError) error {
	cerr := partial.Compensate(ctx)
	if cerr == nil {
		log.Warn().Err(partial.Err).Str("step", string(partial.FailedStep)).Msg("step failed, compensated")
		return partial.Err
	}
	log.Error().Err(cerr).Str("step", string(partial.FailedStep)).Msg("compensation failed")
	partial.Err = fmt.Errorf("%w (compensation failed: %v)", partial.Err, cerr)
	return partial
}

// ListPostings returns an account's postings, newest first.
func (s *PostingService) ListPostings(ctx context.Context, accountID core.AccountID) ([]core.Posting, error) {
	if _, err := s.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}
	return s.store.ListPostings(ctx, accountID)
}

// DerivedBalance recomputes OpeningBalance + Σ credits - Σ debits.
func DerivedBalance(acct core.Account, postings []core.Posting) decimal.Decimal {
	total := acct.OpeningBalance
	for _, p := range postings {
		total = total.Add(p.Direction.Signed(p.Amount))
	}
	return total
}
