package ports

import (
	"context"

	"fxSignalBot/internal/domain"
)

// PriceFeed supplies the latest price and indicator data for a symbol.
// A failed fetch is transient: callers skip the symbol for the current cycle
// and rely on the next scheduled cycle as the retry.
type PriceFeed interface {
	Fetch(ctx context.Context, symbol string) (*domain.Quote, error)
}
