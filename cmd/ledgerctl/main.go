// Command ledgerctl runs operator commands against the shop ledger database.
//
//	ledgerctl -shop <shop id> stock -low 5
//	ledgerctl -shop <shop id> receive -supplier Acme -product <id> -qty 10 -cost 85.50
//	ledgerctl -shop <shop id> post -account <id> -dir debit -amount 300
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path"

	"github.com/google/subcommands"
	"github.com/warp/shop-ledger/cli"
	"github.com/warp/shop-ledger/config"
	"github.com/warp/shop-ledger/core"
	"github.com/warp/shop-ledger/logger"
	"github.com/warp/shop-ledger/store/sqlite"
)

func main() {
	cfg := config.Load()

	dbPath := flag.String("db", cfg.DatabasePath, "SQLite database path")
	// commands without a shop fail with "no shop bound to caller"
	shopID := flag.String("shop", os.Getenv("SHOP_ID"), "Shop to operate on")
	currency := flag.String("currency", cfg.Currency, "Display currency (ISO 4217)")

	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(commander.CommandsCommand(), "")

	env := &cli.Env{}
	cli.Register(commander, env)
	flag.Parse()

	store, err := sqlite.New(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open %s: %v\n", *dbPath, err)
		os.Exit(int(subcommands.ExitFailure))
	}

	log := logger.New(cfg.LogLevel)
	*env = *cli.NewEnv(store, core.ShopID(*shopID), *currency, cfg.StockMaxAttempts, os.Stdout, log)

	status := commander.Execute(context.Background())
	store.Close()
	os.Exit(int(status))
}
