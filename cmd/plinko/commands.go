package main

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/Divido5555/Pulse-Plinko-Jackpot/core/types"
)

const (
	FlagCount = "count"
	FlagLimit = "limit"
)

var (
	jackpotColor = color.New(color.FgYellow, color.Bold)
	winColor     = color.New(color.FgGreen)
	loseColor    = color.New(color.FgHiBlack)
	errColor     = color.New(color.FgRed)
)

// withClient runs fn with an opened client, cancelled on SIGINT or SIGTERM.
func withClient(fn func(ctx context.Context, c *client) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := openClient(ctx)
	if err != nil {
		return err
	}
	defer c.close()
	return fn(ctx, c)
}

func stateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "state",
		Short: "Print the jackpots and game counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(func(ctx context.Context, c *client) error {
				snap, err := c.session.GameState(ctx)
				if err != nil {
					return err
				}
				printSnapshot(c, snap)
				return nil
			})
		},
	}
}

func allowanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "allowance",
		Short: "Print the game's allowance over your tokens",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(func(ctx context.Context, c *client) error {
				state, err := c.session.Allowance(ctx)
				if err != nil {
					return err
				}
				printAllowance(c, state)
				return nil
			})
		},
	}
}

func approveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "approve [amount]",
		Short: "Approve the game to spend entry tokens",
		Long: `Approve the game to spend entry tokens. Without an amount the approval
covers the configured number of entries.

Example:
  plinko approve 500 -f ./plinko.yaml`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(func(ctx context.Context, c *client) error {
				var amount *big.Int
				if len(args) == 1 {
					v, err := types.ParseTokenAmount(args[0], c.cfg.Decimals)
					if err != nil {
						return err
					}
					amount = v
				} else {
					amount = new(big.Int).Mul(c.session.EntryPrice(), big.NewInt(c.cfg.ApprovalMultiplier))
				}
				state, err := c.session.Approve(ctx, amount)
				if err != nil {
					return describe(c, err)
				}
				printAllowance(c, state)
				return nil
			})
		},
	}
}

func playCmd() *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Drop balls",
		Long: `Play one or more rounds in sequence. Approval is requested first when the
allowance does not cover an entry.

Example:
  plinko play --count 3 -f ./plinko.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if count < 1 {
				return fmt.Errorf("--%s must be at least 1", FlagCount)
			}
			return withClient(func(ctx context.Context, c *client) error {
				if err := c.session.Start(ctx); err != nil {
					return err
				}
				for i := 0; i < count; i++ {
					if ctx.Err() != nil {
						return ctx.Err()
					}
					res, err := c.session.Play(ctx)
					if err != nil {
						return describe(c, err)
					}
					printResult(c, i+1, res)
				}
				if count > 1 {
					fmt.Print("\n" + c.session.Stats().Render(c.cfg.Decimals))
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&count, FlagCount, "n", 1, "Number of plays")
	return cmd
}

func watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Follow the jackpots until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(func(ctx context.Context, c *client) error {
				states := make(chan types.GameStateSnapshot, 4)
				sub := c.session.SubscribeGameState(states)
				defer sub.Unsubscribe()

				if err := c.session.Start(ctx); err != nil {
					return err
				}
				for {
					select {
					case <-ctx.Done():
						return nil
					case err := <-sub.Err():
						return err
					case snap := <-states:
						printSnapshot(c, snap)
					}
				}
			})
		},
	}
}

func historyCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded plays",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(func(ctx context.Context, c *client) error {
				if c.store == nil {
					return errors.New("historyPath is not configured")
				}
				recs, err := c.session.History(limit)
				if err != nil {
					return err
				}
				table := tablewriter.NewWriter(os.Stdout)
				table.SetHeader([]string{"Time", "Play", "Slot", "Result", "Payout", "Tx"})
				for _, r := range recs {
					table.Append([]string{
						r.RecordedAt.Format(time.DateTime),
						r.PlayID.String(),
						strconv.FormatUint(r.Slot, 10),
						types.SlotDescription(r.Slot),
						types.FormatTokenAmount(r.Payout, c.cfg.Decimals, 2),
						types.ShortenAddress(r.TxHash.Hex(), 6),
					})
				}
				table.Render()
				fmt.Printf("%d of %d plays\n", len(recs), c.store.Count())
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, FlagLimit, 20, "Maximum number of plays to list, 0 for all")
	return cmd
}

func printSnapshot(c *client, snap types.GameStateSnapshot) {
	d := c.cfg.Decimals
	fmt.Printf("Main jackpot:  %s\n", jackpotColor.Sprint(types.FormatTokenAmount(snap.MainJackpot, d, 2)))
	fmt.Printf("Mini jackpot:  %s\n", jackpotColor.Sprint(types.FormatTokenAmount(snap.MiniJackpot, d, 2)))
	fmt.Printf("Entry price:   %s\n", types.FormatTokenAmount(snap.EntryPrice, d, 4))
	fmt.Printf("Plays:         %s\n", snap.PlayCount)
	fmt.Printf("DAO accrued:   %s\n", types.FormatTokenAmount(snap.DaoAccrued, d, 2))
	fmt.Printf("Dev accrued:   %s\n", types.FormatTokenAmount(snap.DevAccrued, d, 2))
	if snap.RandomPool != nil {
		fmt.Printf("Random pool:   %s of %s left\n", snap.RandomPool.Remaining(), snap.RandomPool.Size)
	}
	fmt.Printf("Updated:       %s\n", snap.UpdatedAt.Format(time.DateTime))
}

func printAllowance(c *client, state types.AllowanceState) {
	entries := new(big.Int)
	if entry := c.session.EntryPrice(); entry.Sign() > 0 {
		entries.Quo(state.Amount, entry)
	}
	fmt.Printf("Allowance for %s: %s (%s entries)\n",
		types.ShortenAddress(state.Spender.Hex(), 4),
		types.FormatTokenAmount(state.Amount, c.cfg.Decimals, 2), entries)
}

func printResult(c *client, n int, res types.PlayResult) {
	line := fmt.Sprintf("#%d slot %d %s, payout %s", n, res.Slot,
		types.SlotDescription(res.Slot), types.FormatTokenAmount(res.Payout, c.cfg.Decimals, 2))
	switch {
	case res.MainJackpotHit || res.MiniJackpotHit:
		jackpotColor.Println(line)
	case res.Won():
		winColor.Println(line)
	default:
		loseColor.Println(line)
	}
	if url := txURL(c, res.TxHash); url != "" {
		fmt.Printf("   %s\n", url)
	}
}

// describe points a transaction whose outcome is not known to the explorer.
// A declined signature is not an error.
func describe(c *client, err error) error {
	if !types.UserFacing(err) {
		fmt.Println("Cancelled.")
		return nil
	}
	if hash, ok := types.TxHashOf(err); ok && types.OutcomeUnknown(err) {
		if url := txURL(c, hash); url != "" {
			fmt.Printf("Check the transaction at %s\n", url)
		}
	}
	return fmt.Errorf("%s: %w", types.KindOf(err), err)
}

func txURL(c *client, hash common.Hash) string {
	if c.network.Explorer == "" {
		return ""
	}
	return c.network.ExplorerTxURL(hash)
}
