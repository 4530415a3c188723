package ports

import (
	"context"

	"fxSignalBot/internal/domain"
)

// SignalGenerator turns a quote plus per-symbol parameters into an optional
// trade intent. A nil intent means "no action" and is never an error.
type SignalGenerator interface {
	Evaluate(ctx context.Context, quote *domain.Quote, params domain.SymbolParams) *domain.TradeIntent
}
