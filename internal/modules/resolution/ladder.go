package resolution

import (
	"fmt"

	"github.com/aristath/governor/internal/domain"
)

// buyLadderRuleID names the bound in violations and overrides
const buyLadderRuleID = "buy_ladder_order"

// BoundBuyLadder holds generated BUY limit orders to the buy ladder bound: limits
// strictly descending, positive and at most price × ceilingMultiplier. A rung that
// breaks the bound is dropped and described; the rungs after it are compared
// against the last kept limit. Orders without a limit price are kept. The ceiling
// is skipped when price is unknown.
func BoundBuyLadder(buys []domain.OrderSpec, price, ceilingMultiplier float64) (kept []domain.OrderSpec, dropped []string) {
	ceiling := 0.0
	if usable(price) && usable(ceilingMultiplier) {
		ceiling = round2(price * ceilingMultiplier)
	}

	var last *float64
	for i, o := range buys {
		if o.LimitPrice == nil {
			kept = append(kept, o)
			continue
		}
		limit := *o.LimitPrice
		switch {
		case !usable(limit):
			dropped = append(dropped, fmt.Sprintf("buy %d at %.2f not positive", i+1, limit))
		case ceiling > 0 && limit > ceiling:
			dropped = append(dropped, fmt.Sprintf("buy %d at %.2f above ceiling %.2f", i+1, limit, ceiling))
		case last != nil && limit >= *last:
			dropped = append(dropped, fmt.Sprintf("buy %d at %.2f not below %.2f", i+1, limit, *last))
		default:
			kept = append(kept, o)
			last = ptr(limit)
		}
	}
	return kept, dropped
}
