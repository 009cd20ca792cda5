package main

import (
	"fmt"
	"os"

	"github.com/holiman/uint256"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"privacyPool/internal/amm"
	"privacyPool/internal/config"
)

type quoteOutput struct {
	Direction        string `json:"direction"`
	AmountIn         string `json:"amount_in"`
	AmountInAfterFee string `json:"amount_in_after_fee"`
	AmountOut        string `json:"amount_out"`
	Fee              string `json:"fee"`
	Reserve0After    string `json:"reserve0_after"`
	Reserve1After    string `json:"reserve1_after"`
}

func runQuote(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadQuote(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	reserve0, err := uint256.FromDecimal(cfg.Reserve0)
	if err != nil {
		return fmt.Errorf("parse reserve0: %w", err)
	}
	reserve1, err := uint256.FromDecimal(cfg.Reserve1)
	if err != nil {
		return fmt.Errorf("parse reserve1: %w", err)
	}
	amountIn, err := uint256.FromDecimal(cfg.AmountIn)
	if err != nil {
		return fmt.Errorf("parse amount-in: %w", err)
	}

	reserves := amm.Reserves{Reserve0: reserve0, Reserve1: reserve1}
	var q amm.Quote
	if cfg.Direction == "0to1" {
		q, err = amm.QuoteExactIn0(reserves, cfg.FeeBps, amountIn)
	} else {
		q, err = amm.QuoteExactOut0(reserves, cfg.FeeBps, amountIn)
	}
	if err != nil {
		return fmt.Errorf("quote: %w", err)
	}

	logger.Debug("quote computed",
		zap.String("direction", cfg.Direction),
		zap.String("amount_in", amountIn.Dec()),
		zap.String("amount_out", q.AmountOut.Dec()))

	return writeJSON(os.Stdout, quoteOutput{
		Direction:        cfg.Direction,
		AmountIn:         q.AmountIn.Dec(),
		AmountInAfterFee: q.AmountInAfterFee.Dec(),
		AmountOut:        q.AmountOut.Dec(),
		Fee:              q.FeeResidue().Dec(),
		Reserve0After:    q.Reserve0After.Dec(),
		Reserve1After:    q.Reserve1After.Dec(),
	})
}
