// Package config holds runtime settings injected into the services.
// Settings are plain values, not global mutable state: main builds one
// struct from flags and hands it to the constructors that need it.
package config

import (
	"time"

	"github.com/shopspring/decimal"
)

// Settings carries the knobs the ledger and metrics engine consume.
type Settings struct {
	// CurrencySymbol is display-only, used by reporting surfaces.
	CurrencySymbol string

	// PlotCostEstimate is the fixed per-plot cost used by project ROI.
	// An approximation pending a real cost-tracking model; kept as
	// explicit configuration rather than a buried constant.
	PlotCostEstimate decimal.Decimal

	// MaxRetries bounds optimistic-conflict retries on payment recording.
	MaxRetries int

	// TxTimeout aborts a ledger transaction that would otherwise hang.
	TxTimeout time.Duration
}

// Default returns the settings used when no flags override them.
func Default() Settings {
	return Settings{
		CurrencySymbol:   "KSh",
		PlotCostEstimate: decimal.NewFromInt(500000),
		MaxRetries:       3,
		TxTimeout:        5 * time.Second,
	}
}
