package main

import (
	"net/url"
	"strconv"

	"github.com/spf13/cobra"

	"rebasevault/native/amm"
	"rebasevault/rpc"
)

func ledgerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ledger",
		Short: "Show token supply and share totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, ctx, cancel := session(cmd)
			defer cancel()
			var out map[string]interface{}
			if err := c.get(ctx, "/v1/ledger", nil, &out); err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}
}

func balanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "balance <address>",
		Short: "Show the token, share and plain asset balances of an address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, ctx, cancel := session(cmd)
			defer cancel()
			var out map[string]interface{}
			if err := c.get(ctx, "/v1/ledger/accounts/"+url.PathEscape(args[0]), nil, &out); err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}
}

func transferCmd() *cobra.Command {
	var memo string
	cmd := &cobra.Command{
		Use:   "transfer <to> <amount>",
		Short: "Transfer rebasing tokens; amount is in whole tokens, e.g. 12.5",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, ctx, cancel := session(cmd)
			defer cancel()
			decimals, err := c.tokenDecimals(ctx)
			if err != nil {
				return err
			}
			amount, err := rpc.ParseUnits(args[1], decimals)
			if err != nil {
				return err
			}
			var out map[string]interface{}
			body := map[string]string{"to": args[0], "amount": amount.Dec(), "memo": memo}
			if err := c.post(ctx, "/v1/ledger/transfer", body, &out); err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}
	cmd.Flags().StringVar(&memo, "memo", "", "transfer memo")
	return cmd
}

func poolsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pools [id]",
		Short: "List pools or show one pool",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, ctx, cancel := session(cmd)
			defer cancel()
			path := "/v1/pools"
			if len(args) == 1 {
				path += "/" + url.PathEscape(args[0])
			}
			var out interface{}
			if err := c.get(ctx, path, nil, &out); err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}
}

// inputDecimals picks the decimals of the side paid into a pool.
func inputDecimals(info poolInfo, dir amm.Direction) uint8 {
	if dir == amm.BToA {
		return info.DecimalsB
	}
	return info.DecimalsA
}

func outputDecimals(info poolInfo, dir amm.Direction) uint8 {
	if dir == amm.BToA {
		return info.DecimalsA
	}
	return info.DecimalsB
}

func quoteCmd() *cobra.Command {
	var direction string
	var fresh bool
	cmd := &cobra.Command{
		Use:   "quote <pool> <amount>",
		Short: "Price a swap without executing it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := amm.ParseDirection(direction)
			if err != nil {
				return err
			}
			c, ctx, cancel := session(cmd)
			defer cancel()
			info, err := c.pool(ctx, args[0])
			if err != nil {
				return err
			}
			amount, err := rpc.ParseUnits(args[1], inputDecimals(info, dir))
			if err != nil {
				return err
			}
			query := url.Values{}
			query.Set("amountIn", amount.Dec())
			query.Set("direction", dir.String())
			query.Set("fresh", strconv.FormatBool(fresh))
			var out map[string]interface{}
			if err := c.get(ctx, "/v1/pools/"+url.PathEscape(info.ID)+"/quote", query, &out); err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}
	cmd.Flags().StringVar(&direction, "direction", amm.AToB.String(), "a_to_b pays the plain asset, b_to_a pays the rebasing token")
	cmd.Flags().BoolVar(&fresh, "fresh", false, "rebase before pricing")
	return cmd
}

func swapCmd() *cobra.Command {
	var direction, minOut string
	cmd := &cobra.Command{
		Use:   "swap <pool> <amount>",
		Short: "Execute a swap with an optional minimum output",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := amm.ParseDirection(direction)
			if err != nil {
				return err
			}
			c, ctx, cancel := session(cmd)
			defer cancel()
			info, err := c.pool(ctx, args[0])
			if err != nil {
				return err
			}
			amount, err := rpc.ParseUnits(args[1], inputDecimals(info, dir))
			if err != nil {
				return err
			}
			body := map[string]string{"direction": dir.String(), "amountIn": amount.Dec()}
			if minOut != "" {
				floor, err := rpc.ParseUnits(minOut, outputDecimals(info, dir))
				if err != nil {
					return err
				}
				body["minOut"] = floor.Dec()
			}
			var out map[string]interface{}
			if err := c.post(ctx, "/v1/pools/"+url.PathEscape(info.ID)+"/swap", body, &out); err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}
	cmd.Flags().StringVar(&direction, "direction", amm.AToB.String(), "a_to_b or b_to_a")
	cmd.Flags().StringVar(&minOut, "min-out", "", "minimum acceptable output in whole units")
	return cmd
}

func addLiquidityCmd() *cobra.Command {
	var minLP string
	cmd := &cobra.Command{
		Use:   "add-liquidity <pool> <amountA> <amountB>",
		Short: "Deposit both sides of a pool",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, ctx, cancel := session(cmd)
			defer cancel()
			info, err := c.pool(ctx, args[0])
			if err != nil {
				return err
			}
			amountA, err := rpc.ParseUnits(args[1], info.DecimalsA)
			if err != nil {
				return err
			}
			amountB, err := rpc.ParseUnits(args[2], info.DecimalsB)
			if err != nil {
				return err
			}
			body := map[string]string{"amountA": amountA.Dec(), "amountB": amountB.Dec(), "minLP": minLP}
			var out map[string]interface{}
			if err := c.post(ctx, "/v1/pools/"+url.PathEscape(info.ID)+"/liquidity/add", body, &out); err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}
	cmd.Flags().StringVar(&minLP, "min-lp", "", "minimum LP shares, in raw share units")
	return cmd
}

func removeLiquidityCmd() *cobra.Command {
	var minA, minB string
	cmd := &cobra.Command{
		Use:   "remove-liquidity <pool> <lp-shares>",
		Short: "Redeem LP shares; share counts are raw units",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, ctx, cancel := session(cmd)
			defer cancel()
			info, err := c.pool(ctx, args[0])
			if err != nil {
				return err
			}
			body := map[string]string{"lp": args[1]}
			if minA != "" {
				floor, err := rpc.ParseUnits(minA, info.DecimalsA)
				if err != nil {
					return err
				}
				body["minA"] = floor.Dec()
			}
			if minB != "" {
				floor, err := rpc.ParseUnits(minB, info.DecimalsB)
				if err != nil {
					return err
				}
				body["minB"] = floor.Dec()
			}
			var out map[string]interface{}
			if err := c.post(ctx, "/v1/pools/"+url.PathEscape(info.ID)+"/liquidity/remove", body, &out); err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}
	cmd.Flags().StringVar(&minA, "min-a", "", "minimum plain asset returned, in whole units")
	cmd.Flags().StringVar(&minB, "min-b", "", "minimum rebasing tokens returned, in whole units")
	return cmd
}

func reserveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reserve",
		Short: "Show the reserve book, or administer it with a subcommand",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, ctx, cancel := session(cmd)
			defer cancel()
			var out map[string]interface{}
			if err := c.get(ctx, "/v1/reserve", nil, &out); err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}
	for _, action := range []struct{ name, short string }{
		{"deploy", "Move liquid backing into the yield strategy"},
		{"recall", "Return deployed backing to liquid holdings"},
		{"report", "Report the current value of deployed backing"},
		{"pending", "Record backing received for a deposit not yet credited"},
	} {
		cmd.AddCommand(reserveAmountCmd(action.name, action.short))
	}
	cmd.AddCommand(reserveAccountCmd("deposit", "Credit backed tokens to an account"))
	cmd.AddCommand(reserveAccountCmd("withdraw", "Redeem an account's tokens against liquid backing"))
	cmd.AddCommand(&cobra.Command{
		Use:   "withdraw-all <account>",
		Short: "Redeem every share an account holds",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, ctx, cancel := session(cmd)
			defer cancel()
			var out map[string]interface{}
			if err := c.post(ctx, "/v1/reserve/withdraw-all", map[string]string{"account": args[0]}, &out); err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	})
	return cmd
}

func reserveAmountCmd(action, short string) *cobra.Command {
	return &cobra.Command{
		Use:   action + " <amount>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, ctx, cancel := session(cmd)
			defer cancel()
			decimals, err := c.tokenDecimals(ctx)
			if err != nil {
				return err
			}
			amount, err := rpc.ParseUnits(args[0], decimals)
			if err != nil {
				return err
			}
			var out map[string]interface{}
			if err := c.post(ctx, "/v1/reserve/"+action, map[string]string{"amount": amount.Dec()}, &out); err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}
}

func reserveAccountCmd(action, short string) *cobra.Command {
	return &cobra.Command{
		Use:   action + " <account> <amount>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, ctx, cancel := session(cmd)
			defer cancel()
			decimals, err := c.tokenDecimals(ctx)
			if err != nil {
				return err
			}
			amount, err := rpc.ParseUnits(args[1], decimals)
			if err != nil {
				return err
			}
			var out map[string]interface{}
			body := map[string]string{"account": args[0], "amount": amount.Dec()}
			if err := c.post(ctx, "/v1/reserve/"+action, body, &out); err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}
}

func journalCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Show recently journaled operations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, ctx, cancel := session(cmd)
			defer cancel()
			query := url.Values{}
			query.Set("limit", strconv.Itoa(limit))
			var out map[string]interface{}
			if err := c.get(ctx, "/v1/journal", query, &out); err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of entries")
	return cmd
}

func pausesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pauses",
		Short: "Show the module pause switches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, ctx, cancel := session(cmd)
			defer cancel()
			var out map[string]bool
			if err := c.get(ctx, "/v1/pauses", nil, &out); err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}
	var rebasePaused, bankPaused, ammPaused bool
	set := &cobra.Command{
		Use:   "set",
		Short: "Replace the pause switches; unset flags unpause",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, ctx, cancel := session(cmd)
			defer cancel()
			body := map[string]bool{"rebase": rebasePaused, "bank": bankPaused, "amm": ammPaused}
			var out map[string]bool
			if err := c.post(ctx, "/v1/pauses", body, &out); err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}
	set.Flags().BoolVar(&rebasePaused, "rebase", false, "pause the rebasing ledger")
	set.Flags().BoolVar(&bankPaused, "bank", false, "pause plain asset transfers")
	set.Flags().BoolVar(&ammPaused, "amm", false, "pause the pools")
	cmd.AddCommand(set)
	return cmd
}
