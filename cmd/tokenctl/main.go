package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/aman-zulfiqar/spl-token-manager/internal/config"
	"github.com/aman-zulfiqar/spl-token-manager/internal/constants"
	"github.com/aman-zulfiqar/spl-token-manager/internal/poller"
	"github.com/aman-zulfiqar/spl-token-manager/internal/tokenengine"
	"github.com/gagliardetto/solana-go"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func loadEnv() {
	_, filename, _, _ := runtime.Caller(0)
	projectRoot := filepath.Join(filepath.Dir(filename), "../..")
	_ = godotenv.Load(filepath.Join(projectRoot, ".env"))
}

// errUsage marks failures caused by bad flags or configuration.
var errUsage = errors.New("usage")

func usagef(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{errUsage}, args...)...)
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errUsage):
		return 2
	default:
		return 1
	}
}

func main() {
	os.Exit(run())
}

func run() int {
	loadEnv()

	mode := flag.String("mode", "balance", "create | mint | send | balance | history")
	mint := flag.String("mint", "", "mint address (mint, send, token balance)")
	to := flag.String("to", "", "destination owner (mint: defaults to the wallet, send: required)")
	amt := flag.String("amt", "", "amount in human units (e.g. 1.5)")
	decimals := flag.Int("decimals", constants.DefaultTokenDecimals, "token decimals")
	name := flag.String("name", "", "token name label (create)")
	symbol := flag.String("symbol", "", "token symbol label (create)")
	owner := flag.String("owner", "", "wallet to read (balance, history); defaults to the connected wallet")
	limit := flag.Int("limit", constants.DefaultHistoryLimit, "number of history entries")
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	logger.SetLevel(logrus.WarnLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		fmt.Println("invalid configuration:", err)
		return 2
	}

	engine, err := tokenengine.NewEngine(ctx, cfg, logger)
	if err != nil {
		fmt.Println("failed to init token engine:", err)
		return 1
	}
	defer engine.Close()

	switch *mode {
	case "create":
		out, err := engine.CreateMint(ctx, tokenengine.CreateMintRequest{Decimals: *decimals, Name: *name, Symbol: *symbol})
		if err = report(out, err); err == nil {
			fmt.Printf("mint=%s url=%s\n", out.Mint, out.MintURL)
		}
		return exitCode(err)
	case "mint":
		out, err := engine.MintTo(ctx, tokenengine.MintToRequest{
			MintAddress:      *mint,
			DestinationOwner: *to,
			Amount:           *amt,
			Decimals:         *decimals,
		})
		return exitCode(report(out, err))
	case "send":
		out, err := engine.Transfer(ctx, tokenengine.TransferRequest{
			MintAddress:    *mint,
			RecipientOwner: *to,
			Amount:         *amt,
			Decimals:       *decimals,
		})
		return exitCode(report(out, err))
	case "balance":
		err := printBalance(ctx, engine, *owner, *mint, *decimals)
		if err != nil {
			fmt.Println("balance failed:", err)
		}
		return exitCode(err)
	case "history":
		pk, err := resolveOwner(engine, *owner)
		if err != nil {
			fmt.Println(err)
			return exitCode(err)
		}
		items, err := poller.NewHistoryReader(engine.RPC(), cfg.Cluster, logger).Recent(ctx, pk, *limit)
		if err != nil {
			fmt.Println("history failed:", err)
			return 1
		}
		for _, it := range items {
			fmt.Printf("%s  %-8s %-12s %s\n", it.ShortSignature, it.Status, it.Type, it.ExplorerURL)
		}
		return 0
	default:
		fmt.Println("invalid -mode (use create|mint|send|balance|history)")
		return 2
	}
}

func printBalance(ctx context.Context, engine *tokenengine.Engine, owner, mint string, decimals int) error {
	pk, err := resolveOwner(engine, owner)
	if err != nil {
		return err
	}
	reader := poller.NewBalanceReader(engine.RPC())
	if mint == "" {
		bal, err := reader.SOL(ctx, pk)
		if err != nil {
			return err
		}
		fmt.Printf("owner=%s sol=%s lamports=%d\n", bal.Owner, bal.SOL, bal.Lamports)
		return nil
	}
	mintPK, err := tokenengine.ParseAddress(mint)
	if err != nil {
		return usagef("invalid -mint: %v", err)
	}
	bal, err := reader.Token(ctx, pk, mintPK, uint8(decimals))
	if err != nil {
		return err
	}
	fmt.Printf("owner=%s mint=%s account=%s amount=%s decimals=%d exists=%v\n",
		bal.Owner, bal.Mint, bal.TokenAccount, bal.UIAmount, bal.Decimals, bal.Exists)
	return nil
}

func resolveOwner(engine *tokenengine.Engine, raw string) (solana.PublicKey, error) {
	if raw != "" {
		pk, err := tokenengine.ParseAddress(raw)
		if err != nil {
			return solana.PublicKey{}, usagef("invalid -owner: %v", err)
		}
		return pk, nil
	}
	pk := engine.Requester()
	if pk.IsZero() {
		return solana.PublicKey{}, usagef("no wallet connected: set WALLET_PRIVATE_KEY or pass -owner")
	}
	return pk, nil
}

// report prints the outcome of a write operation and hands back err.
func report(out *tokenengine.Outcome, err error) error {
	if err != nil {
		fmt.Println("failed:", reason(err))
		if out != nil && out.Hint != "" {
			fmt.Println("hint:", out.Hint)
		}
		if out != nil && out.Signature != "" {
			fmt.Println("signature:", out.Signature)
		}
		return err
	}
	fmt.Println(out.Message)
	fmt.Printf("status=%s sig=%s explorer=%s\n", out.Status, out.Signature, out.ExplorerURL)
	return nil
}

func reason(err error) string {
	var opErr *tokenengine.OperationError
	if errors.As(err, &opErr) {
		return fmt.Sprintf("%s (%s)", opErr.Reason(), tokenengine.KindOf(err))
	}
	return err.Error()
}
