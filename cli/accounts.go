package cli

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/google/subcommands"
	"github.com/shopspring/decimal"
	"github.com/warp/shop-ledger/banking"
	"github.com/warp/shop-ledger/core"
)

// =============================================================================
// accounts
// =============================================================================

type accountsCmd struct {
	env   *Env
	check bool
}

func (*accountsCmd) Name() string     { return "accounts" }
func (*accountsCmd) Synopsis() string { return "list money accounts and their balances" }
func (*accountsCmd) Usage() string {
	return `ledgerctl accounts [-check]

  Lists the shop's accounts. With -check, each balance is recomputed from
  the postings and mismatches are flagged.
`
}

func (c *accountsCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.check, "check", false, "Recompute balances from postings.")
}

func (c *accountsCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	ctx = c.env.Context(ctx)
	accounts, err := c.env.Postings.ListAccounts(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	status := subcommands.ExitSuccess
	w := tabwriter.NewWriter(c.env.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tTYPE\tBALANCE")
	for _, a := range accounts {
		line := fmt.Sprintf("%s\t%s\t%s\t%s", a.ID, a.Name, a.Type, c.env.Money(a.Balance))
		if c.check {
			postings, err := c.env.Postings.ListPostings(ctx, a.ID)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				return subcommands.ExitFailure
			}
			if derived := banking.DerivedBalance(a, postings); !derived.Equal(a.Balance) {
				line += "\tDRIFT: postings give " + c.env.Money(derived)
				status = subcommands.ExitFailure
			}
		}
		fmt.Fprintln(w, line)
	}
	w.Flush()
	return status
}

// =============================================================================
// post
// =============================================================================

type postCmd struct {
	env       *Env
	account   string
	direction string
	amount    string
	memo      string
	reference string
}

func (*postCmd) Name() string     { return "post" }
func (*postCmd) Synopsis() string { return "credit or debit an account" }
func (*postCmd) Usage() string {
	return `ledgerctl post -account <id> -dir credit|debit -amount <amount> [-memo <text>] [-ref <text>]
`
}

func (c *postCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.account, "account", "", "Account ID.")
	f.StringVar(&c.direction, "dir", "", "credit or debit.")
	f.StringVar(&c.amount, "amount", "", "Positive amount.")
	f.StringVar(&c.memo, "memo", "", "Free text.")
	f.StringVar(&c.reference, "ref", "", "External reference.")
}

func (c *postCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	amount, err := decimal.NewFromString(c.amount)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid -amount %q: %v\n", c.amount, err)
		return subcommands.ExitUsageError
	}
	posting, err := c.env.Postings.CreatePosting(c.env.Context(ctx), banking.NewPosting{
		AccountID: core.AccountID(c.account),
		Direction: core.Direction(c.direction),
		Amount:    amount,
		Memo:      c.memo,
		Reference: c.reference,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	fmt.Fprintf(c.env.Out, "posting %s: %s %s\n", posting.ID, posting.Direction, c.env.Money(posting.Amount))
	return subcommands.ExitSuccess
}

// =============================================================================
// unpost
// =============================================================================

type unpostCmd struct {
	env     *Env
	posting string
}

func (*unpostCmd) Name() string     { return "unpost" }
func (*unpostCmd) Synopsis() string { return "delete a posting, reversing its balance effect" }
func (*unpostCmd) Usage() string {
	return `ledgerctl unpost -posting <id>
`
}

func (c *unpostCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.posting, "posting", "", "Posting ID.")
}

func (c *unpostCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.posting == "" {
		fmt.Fprintln(os.Stderr, "-posting is required")
		return subcommands.ExitUsageError
	}
	if err := c.env.Postings.DeletePosting(c.env.Context(ctx), core.PostingID(c.posting)); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	fmt.Fprintf(c.env.Out, "posting %s deleted\n", c.posting)
	return subcommands.ExitSuccess
}
