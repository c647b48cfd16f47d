package main

import (
	"bufio"
	"context"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/log"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Divido5555/Pulse-Plinko-Jackpot/config"
	"github.com/Divido5555/Pulse-Plinko-Jackpot/core/types"
	"github.com/Divido5555/Pulse-Plinko-Jackpot/node/chain"
	"github.com/Divido5555/Pulse-Plinko-Jackpot/node/game"
	"github.com/Divido5555/Pulse-Plinko-Jackpot/node/history"
)

const (
	FlagConfigFile = "config-file"
	FlagYes        = "yes"
)

var (
	configPath  string
	skipConfirm bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "plinko",
		Short: "PulseChain Plinko jackpot client",
		Long: `A command-line client for the Plinko jackpot game: read the jackpots,
approve the entry token, play and review past plays.

Settings come from the configuration file and PLINKO_* environment variables.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, FlagConfigFile, "f", "", "Path to the client configuration file")
	rootCmd.PersistentFlags().BoolVarP(&skipConfirm, FlagYes, "y", false, "Sign transactions without asking")

	rootCmd.AddCommand(
		stateCmd(),
		allowanceCmd(),
		approveCmd(),
		playCmd(),
		watchCmd(),
		historyCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		errColor.Println(err)
		os.Exit(1)
	}
}

// client bundles what a command needs and releases it on close.
type client struct {
	cfg     *config.Config
	network config.Network
	rpc     *chain.Client
	store   *history.Store
	session *game.Session
}

func (c *client) close() {
	c.session.Close()
	if c.store != nil {
		if err := c.store.Close(); err != nil {
			log.Warn("Failed to close history", "err", err)
		}
	}
	c.rpc.Close()
}

// openClient loads the configuration and wires a session. The session is not
// started.
func openClient(ctx context.Context) (*client, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	lvl, err := log.LvlFromString(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	log.SetDefault(log.NewLogger(log.NewTerminalHandlerWithLevel(os.Stderr, lvl, !color.NoColor)))
	logger := log.Root()

	network, ok := cfg.Network()
	if !ok {
		logger.Warn("Unknown network, explorer links disabled", "chainId", cfg.ChainID)
	}

	rpcClient, err := chain.Dial(ctx, cfg.RPC, chain.Options{
		RequestsPerSecond: cfg.RequestsPerSecond,
		Burst:             cfg.Burst,
		HTTPTimeout:       cfg.HTTPTimeout,
		Logger:            logger,
	})
	if err != nil {
		return nil, err
	}

	var wallet chain.Wallet
	if cfg.PrivateKey != "" {
		kw, err := chain.NewKeyedWallet(cfg.PrivateKey, new(big.Int).SetUint64(cfg.ChainID), rpcClient, logger)
		if err != nil {
			rpcClient.Close()
			return nil, err
		}
		if !skipConfirm {
			kw.SetConfirm(promptConfirm(cfg.Decimals))
		}
		wallet = kw
	} else {
		wallet = chain.NewRPCWallet(rpcClient.RPC(), cfg.SenderAddress())
	}

	var store *history.Store
	if cfg.HistoryPath != "" {
		if store, err = history.Open(cfg.HistoryPath); err != nil {
			rpcClient.Close()
			return nil, err
		}
	}

	sc, err := cfg.SessionConfig()
	if err == nil {
		var s *game.Session
		if s, err = game.NewSession(sc, rpcClient, wallet, store, logger); err == nil {
			return &client{cfg: cfg, network: network, rpc: rpcClient, store: store, session: s}, nil
		}
	}
	if store != nil {
		store.Close()
	}
	rpcClient.Close()
	return nil, err
}

// promptConfirm asks on the terminal before every signature.
func promptConfirm(decimals uint8) chain.ConfirmFunc {
	in := bufio.NewReader(os.Stdin)
	return func(ctx context.Context, req chain.SignRequest) (bool, error) {
		fmt.Printf("Sign transaction to %s (value %s, gas %d)? [y/N] ",
			req.To.Hex(), types.FormatTokenAmount(req.Value, decimals, 4), req.Gas)
		line, err := in.ReadString('\n')
		if err != nil {
			return false, err
		}
		answer := strings.ToLower(strings.TrimSpace(line))
		return answer == "y" || answer == "yes", nil
	}
}
