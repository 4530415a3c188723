package domain

import "time"

// DCALevel is one dollar-cost-average level of a position. When price moves
// past TriggerPrice in the adverse direction the level is marked triggered and
// the position's average entry price is recomputed.
type DCALevel struct {
	Level        int     `json:"level"`        // 1-based, nearest to entry first
	TriggerPrice float64 `json:"triggerPrice"` // adverse-direction price that activates the level
	Triggered    bool    `json:"triggered"`
}

// Position represents one simulated trade tracked by the ledger.
// Positions are owned exclusively by the ledger; callers only ever see copies.
type Position struct {
	ID           string         `json:"id"` // symbol + open timestamp
	Symbol       string         `json:"symbol"`
	Direction    Direction      `json:"direction"`
	EntryPrice   float64        `json:"entryPrice"`
	CurrentPrice float64        `json:"currentPrice"`
	AveragePrice float64        `json:"averagePrice"` // mean of entry + triggered DCA prices
	DCALevels    []DCALevel     `json:"dcaLevels"`
	TakeProfit1  float64        `json:"takeProfit1"`
	TakeProfit2  float64        `json:"takeProfit2"`
	StopLoss     float64        `json:"stopLoss"`
	Leverage     int            `json:"leverage"`
	Status       PositionStatus `json:"status"`
	CloseReason  CloseReason    `json:"closeReason,omitempty"` // set only when Status is closed
	ProfitPct    float64        `json:"profitPct"`             // leveraged percent, set on close
	OpenedAt     time.Time      `json:"openedAt"`
	ClosedAt     time.Time      `json:"closedAt,omitempty"`
	Events       []string       `json:"events"` // append-only human-readable transitions
}

// IsOpen checks if the position status is open.
func (p *Position) IsOpen() bool {
	return p.Status == StatusOpen
}

// TriggeredDCACount returns the number of DCA levels that have fired.
func (p *Position) TriggeredDCACount() int {
	n := 0
	for _, lvl := range p.DCALevels {
		if lvl.Triggered {
			n++
		}
	}
	return n
}

// UpdateResult describes what a single price update did to a position.
type UpdateResult struct {
	DCATriggered bool        // at least one DCA level fired during this update
	Closed       bool        // an exit condition matched
	CloseReason  CloseReason // set only when Closed
	ProfitPct    float64     // leveraged percent profit, set only when Closed
	Position     *Position   // snapshot taken after the update
}
