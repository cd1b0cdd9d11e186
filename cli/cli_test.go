package cli

import (
	"bytes"
	"context"
	"flag"
	"strings"
	"testing"

	"github.com/google/subcommands"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/shop-ledger/core"
	"github.com/warp/shop-ledger/core/store"
)

func newTestEnv(t *testing.T) (*Env, *store.Memory, *bytes.Buffer) {
	t.Helper()
	mem := store.NewMemory()
	var out bytes.Buffer
	return NewEnv(mem, "shop-1", "USD", 3, &out, zerolog.Nop()), mem, &out
}

// run executes one command line the way ledgerctl does.
func run(t *testing.T, env *Env, args ...string) subcommands.ExitStatus {
	t.Helper()
	fs := flag.NewFlagSet("ledgerctl", flag.ContinueOnError)
	commander := subcommands.NewCommander(fs, "ledgerctl")
	Register(commander, env)
	require.NoError(t, fs.Parse(args))
	return commander.Execute(context.Background())
}

func TestFormatMoney(t *testing.T) {
	assert.Equal(t, "$1,026.50", FormatMoney(decimal.RequireFromString("1026.5"), "USD"))
	assert.Equal(t, "-$5.00", FormatMoney(decimal.NewFromInt(-5), "USD"))
	assert.Equal(t, "$0.13", FormatMoney(decimal.RequireFromString("0.125"), "USD"))
}

func TestStockReceiveAdjust(t *testing.T) {
	// GIVEN: A product with stock 3 and a service
	env, mem, out := newTestEnv(t)
	ctx := context.Background()
	p, err := mem.InsertProduct(ctx, core.Product{ShopID: "shop-1", Name: "Charger", Kind: core.KindProduct, Stock: 3, SalePrice: decimal.NewFromInt(699)})
	require.NoError(t, err)
	_, err = mem.InsertProduct(ctx, core.Product{ShopID: "shop-1", Name: "Repair", Kind: core.KindService, SalePrice: decimal.NewFromInt(1200)})
	require.NoError(t, err)

	// WHEN: Listing stock
	require.Equal(t, subcommands.ExitSuccess, run(t, env, "stock"))

	// THEN: Prices are formatted and services show no stock
	assert.Contains(t, out.String(), "$699.00")
	assert.Contains(t, out.String(), "$1,200.00")
	assert.Regexp(t, `Repair\s+service\s+-`, out.String())

	// WHEN: Receiving 10 at 340
	out.Reset()
	require.Equal(t, subcommands.ExitSuccess, run(t, env, "receive", "-supplier", "Acme", "-product", string(p.ID), "-qty", "10", "-cost", "340"))
	assert.Contains(t, out.String(), "10 x Charger = $3,400.00")
	assert.Contains(t, out.String(), "stock 3 -> 13")

	// AND: Adjusting
	out.Reset()
	require.Equal(t, subcommands.ExitSuccess, run(t, env, "adjust", "-product", string(p.ID), "-delta", "-2"))
	assert.Contains(t, out.String(), "13 -> 11")
	assert.Equal(t, subcommands.ExitFailure, run(t, env, "adjust", "-product", string(p.ID), "-delta", "-20"))
	assert.Equal(t, subcommands.ExitUsageError, run(t, env, "adjust", "-delta", "1"))

	out.Reset()
	require.Equal(t, subcommands.ExitSuccess, run(t, env, "stock", "-low", "5"))
	assert.NotContains(t, out.String(), "Charger")
}

func TestReceive_MissingProductWarns(t *testing.T) {
	env, _, out := newTestEnv(t)

	status := run(t, env, "receive", "-supplier", "Acme", "-product", "ghost", "-qty", "1", "-cost", "5")

	assert.Equal(t, subcommands.ExitSuccess, status)
	assert.Contains(t, out.String(), "warning: stock not updated")
	assert.Equal(t, subcommands.ExitUsageError, run(t, env, "receive", "-supplier", "Acme", "-product", "x", "-qty", "1", "-cost", "abc"))
}

func TestPostUnpostAccounts(t *testing.T) {
	// GIVEN: An account opened at 100
	env, mem, out := newTestEnv(t)
	ctx := context.Background()
	acct, err := mem.InsertAccount(ctx, core.Account{ShopID: "shop-1", Name: "Current", Type: core.AccountBank, OpeningBalance: decimal.NewFromInt(100), Balance: decimal.NewFromInt(100)})
	require.NoError(t, err)

	// WHEN: Debiting 30
	require.Equal(t, subcommands.ExitSuccess, run(t, env, "post", "-account", string(acct.ID), "-dir", "debit", "-amount", "30", "-memo", "rent"))
	fields := strings.Fields(out.String())
	require.GreaterOrEqual(t, len(fields), 2)
	postingID := strings.TrimSuffix(fields[1], ":")

	// THEN: The balance is 70 and consistent with the postings
	out.Reset()
	require.Equal(t, subcommands.ExitSuccess, run(t, env, "accounts", "-check"))
	assert.Contains(t, out.String(), "$70.00")
	assert.NotContains(t, out.String(), "DRIFT")

	// WHEN: Unposting it twice
	require.Equal(t, subcommands.ExitSuccess, run(t, env, "unpost", "-posting", postingID))
	assert.Equal(t, subcommands.ExitFailure, run(t, env, "unpost", "-posting", postingID))

	// THEN: The balance is back to 100
	got, err := mem.GetAccount(ctx, acct.ID)
	require.NoError(t, err)
	assert.Equal(t, "100", got.Balance.String())

	assert.Equal(t, subcommands.ExitFailure, run(t, env, "post", "-account", string(acct.ID), "-dir", "debit", "-amount", "-5"))
	assert.Equal(t, subcommands.ExitUsageError, run(t, env, "post", "-account", string(acct.ID), "-dir", "debit", "-amount", "lots"))
}

func TestAccountsCheck_FlagsDrift(t *testing.T) {
	env, mem, out := newTestEnv(t)
	_, err := mem.InsertAccount(context.Background(), core.Account{ShopID: "shop-1", Name: "Wallet", Type: core.AccountWallet, OpeningBalance: decimal.Zero, Balance: decimal.NewFromInt(9)})
	require.NoError(t, err)

	assert.Equal(t, subcommands.ExitFailure, run(t, env, "accounts", "-check"))
	assert.Contains(t, out.String(), "DRIFT: postings give $0.00")
}

func TestCommandsNeedAShop(t *testing.T) {
	env, _, _ := newTestEnv(t)
	env.ShopID = ""

	assert.Equal(t, subcommands.ExitUsageError, run(t, env, "stock"))
	assert.Equal(t, subcommands.ExitFailure, run(t, env, "accounts"))
}
