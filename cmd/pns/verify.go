package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"pepu-name-service/internal/chain"
	"pepu-name-service/internal/payment"
)

var verifyCmd = &cobra.Command{
	Use:   "verify <txHash> <wallet>",
	Short: "Check whether a transaction pays the registration fee",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		val, closeFn, err := dialValidator(ctx)
		if err != nil {
			return err
		}
		defer closeFn()

		res := val.Check(ctx, args[0], args[1])
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "strategy: %s\n", val.Detector().Name())
		fmt.Fprintf(out, "valid:    %t\n", res.Valid)
		fmt.Fprintf(out, "reason:   %s\n", res.Reason)
		if res.Amount != nil {
			fmt.Fprintf(out, "amount:   %s\n", res.Amount)
		}
		if res.Err != nil {
			return res.Err
		}
		return nil
	},
}

var findCmd = &cobra.Command{
	Use:   "find <wallet>",
	Short: "Search recent blocks for a registration payment from wallet",
	Long: `Scans payment.lookback_blocks blocks for a qualifying token transfer from
wallet to the treasury, retrying until payment.poll_max_wait elapses.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		val, closeFn, err := dialValidator(ctx)
		if err != nil {
			return err
		}
		defer closeFn()

		p := payment.NewPoller(val, cfg.PollPolicy(), cfg.Payment.LookbackBlocks, logger)
		hash, err := p.FindPayment(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), hash)
		return nil
	},
}

func dialValidator(ctx context.Context) (*payment.Validator, func(), error) {
	client, err := chain.Dial(ctx, cfg.Chain.RPCURL, rpcOptions(cfg.Chain)...)
	if err != nil {
		return nil, nil, err
	}

	pc, err := cfg.ToPayment()
	if err != nil {
		client.Close()
		return nil, nil, err
	}
	v, err := payment.NewValidator(client, pc, logger)
	if err != nil {
		client.Close()
		return nil, nil, err
	}
	return v, client.Close, nil
}

func init() {
	rootCmd.AddCommand(verifyCmd, findCmd)
}
