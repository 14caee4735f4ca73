package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/joho/godotenv"
	"github.com/propertydex/propertydex-store/internal/config"
	"github.com/propertydex/propertydex-store/internal/engine"
	"github.com/propertydex/propertydex-store/internal/logging"
	"github.com/propertydex/propertydex-store/pkg/client"
	"github.com/propertydex/propertydex-store/pkg/schema"
	"github.com/propertydex/propertydex-store/pkg/sdk"
	"github.com/shopspring/decimal"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		return
	}
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	// Keep stdout for command output.
	logger := logging.New(cfg.Logging)

	ctx := context.Background()
	c, err := client.New(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer c.Close()

	command := strings.ToLower(os.Args[1])
	args := os.Args[2:]

	switch command {
	case "signup":
		if len(args) < 1 {
			log.Fatal("Usage: propertydex signup <email> [full name]")
		}
		creds := client.Credentials{Email: args[0]}
		if len(args) > 1 {
			creds.Options.Data = map[string]any{"full_name": strings.Join(args[1:], " ")}
		}
		printJSON(c.Auth().SignUp(creds))

	case "signin":
		if len(args) < 1 {
			log.Fatal("Usage: propertydex signin <email>")
		}
		printJSON(c.Auth().SignInWithPassword(client.Credentials{Email: args[0]}))

	case "signout":
		printJSON(c.Auth().SignOut())

	case "session":
		printJSON(c.Auth().GetSession())

	case "buy", "sell":
		if len(args) < 2 {
			log.Fatalf("Usage: propertydex %s <propertyID> <tokens> [unitPriceCents]", command)
		}
		session := c.Auth().GetSession().Data.Session
		if session == nil {
			log.Fatal("Not signed in")
		}
		tokens, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			log.Fatalf("Invalid token count %q", args[1])
		}
		var unit int64
		if len(args) > 2 {
			if unit, err = strconv.ParseInt(args[2], 10, 64); err != nil {
				log.Fatalf("Invalid unit price %q", args[2])
			}
		}
		gross, err := grossCents(tokens, unit)
		if err != nil {
			log.Fatal(err)
		}
		printJSON(c.Orders().InsertOne(schema.OrderInput{
			UserID:           session.User.ID,
			PropertyID:       args[0],
			Tokens:           tokens,
			UnitPriceCents:   unit,
			GrossAmountCents: gross,
			Currency:         cfg.Ledger.DefaultCurrency,
			Status:           schema.OrderPaid,
			PaymentMethod:    "cli",
			TxType:           schema.TxType(command),
		}))

	case "portfolio":
		session := c.Auth().GetSession().Data.Session
		if session == nil {
			log.Fatal("Not signed in")
		}
		for _, inv := range c.Investments().Select().Data {
			if inv.UserID != session.User.ID {
				continue
			}
			cost := toMoney(inv.InvestmentAmount, cfg.Ledger.DefaultCurrency)
			avg := toMoney(inv.AvgPurchasePrice, cfg.Ledger.DefaultCurrency)
			fmt.Printf("%-24s %8d tokens  cost %12s  avg %10s\n", inv.PropertyID, inv.TokensOwned, cost.Display(), avg.Display())
		}

	case "select":
		if len(args) < 1 {
			log.Fatal("Usage: propertydex select <table>")
		}
		printJSON(c.From(args[0]).Select())

	case "migrate":
		if len(args) < 1 {
			log.Fatal("Usage: propertydex migrate <dataDir>")
		}
		dst, err := sdk.Open(ctx, config.StoreConfig{DataDir: args[0], Namespace: cfg.Store.Namespace}, logger)
		if err != nil {
			log.Fatal(err)
		}
		n, err := engine.Migrate(c.Storage(), dst)
		if cerr := dst.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			log.Fatal(err)
		}
		fmt.Printf("Copied %d keys to %s\n", n, args[0])

	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
	}
}

func printUsage() {
	fmt.Println("PropertyDex CLI - Interface for propertydex-store")
	fmt.Println("\nUsage:")
	fmt.Println("  propertydex signup <email> [full name]")
	fmt.Println("  propertydex signin <email>")
	fmt.Println("  propertydex signout")
	fmt.Println("  propertydex session")
	fmt.Println("  propertydex buy <propertyID> <tokens> <unitPriceCents>")
	fmt.Println("  propertydex sell <propertyID> <tokens>")
	fmt.Println("  propertydex portfolio")
	fmt.Println("  propertydex select <table>")
	fmt.Println("  propertydex migrate <dataDir>")
	fmt.Println("\nEnvironment Variables:")
	fmt.Println("  PROPERTYDEX_STORE_ADDR   Address of a running daemon (default: embedded store)")
	fmt.Println("  PROPERTYDEX_DATA_DIR     Embedded store directory (default: ./data)")
	fmt.Println("  DATABASE_URL             Postgres connection string")
}

var maxCents = decimal.NewFromInt(math.MaxInt64)

// grossCents returns tokens*unit, rejecting products that do not fit in int64 cents.
func grossCents(tokens, unit int64) (int64, error) {
	gross := decimal.NewFromInt(tokens).Mul(decimal.NewFromInt(unit))
	if gross.Abs().GreaterThan(maxCents) {
		return 0, fmt.Errorf("order amount %s cents is out of range", gross)
	}
	return gross.IntPart(), nil
}

// toMoney converts an amount in currency units to minor units for display.
func toMoney(units float64, currency string) *money.Money {
	cents := decimal.NewFromFloat(units).Shift(2).Round(0).IntPart()
	return money.New(cents, currency)
}

func printJSON(v any) {
	bytes, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Println(v)
		return
	}
	fmt.Println(string(bytes))
}
