package resolution

import (
	"fmt"
	"math"
	"strings"

	"github.com/aristath/governor/internal/domain"
	"github.com/google/uuid"
)

// Order defaults applied to AI plan entries that leave them out
const (
	DefaultTimeInForce         = "GTC"
	DefaultExecutionPreference = "LIMIT_ONLY"
)

// orderNamespace scopes the name-based order ids
var orderNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("governor/orders"))

// OrderID returns the deterministic id of the order at label (B1, S2, ...) for one
// ticker and strategy version. Re-running a cycle yields the same ids.
func OrderID(ticker, strategyVersion, label string) string {
	return uuid.NewSHA1(orderNamespace, []byte(ticker+"/"+strategyVersion+"/"+label)).String()
}

// planRejection explains why an AI order plan cannot be used. Empty means usable.
func planRejection(plan []domain.OrderPlanEntry) string {
	if len(plan) == 0 {
		return "empty"
	}
	for i, entry := range plan {
		side := domain.TradeSide(strings.ToUpper(strings.TrimSpace(string(entry.Side))))
		if !side.IsValid() {
			return fmt.Sprintf("entry %d has side %q", i+1, entry.Side)
		}
		if strings.TrimSpace(entry.OrderType) == "" {
			return fmt.Sprintf("entry %d has no order_type", i+1)
		}
	}
	return ""
}

// normalizePlan converts AI plan entries into order specs split by side. Plan order
// is kept within each side.
func normalizePlan(plan []domain.OrderPlanEntry) (buys, sells []domain.OrderSpec) {
	for _, entry := range plan {
		side := domain.TradeSide(strings.ToUpper(strings.TrimSpace(string(entry.Side))))
		orderType := strings.ToUpper(strings.TrimSpace(entry.OrderType))

		spec := domain.OrderSpec{
			OrderID:             strings.TrimSpace(entry.OrderID),
			Side:                side,
			OrderType:           orderType,
			LimitPrice:          positive(entry.LimitPrice),
			Trigger:             positive(entry.Trigger),
			QtyPercent:          fraction(entry.QtyPercent),
			TimeInForce:         orDefault(strings.ToUpper(strings.TrimSpace(entry.TimeInForce)), DefaultTimeInForce),
			ExpirationDate:      entry.ExpirationDate,
			OrderValidity:       entry.OrderValidity,
			OCOGroupID:          entry.OCOGroupID,
			AttachedOrders:      append([]domain.AttachedOrder(nil), entry.AttachedOrders...),
			ExecutionPreference: orDefault(strings.ToUpper(strings.TrimSpace(entry.ExecutionPreference)), DefaultExecutionPreference),
		}
		spec.Formula = formulaFor(spec)
		spec.IsTrailing = side == domain.TradeSideSell && isTrailing(orderType)

		if side == domain.TradeSideBuy {
			buys = append(buys, spec)
		} else {
			sells = append(sells, spec)
		}
	}
	return buys, sells
}

func formulaFor(o domain.OrderSpec) string {
	switch {
	case o.Side == domain.TradeSideSell && isTrailing(o.OrderType):
		return "TRAILING_STOP"
	case o.OrderType == "STOP" && o.Trigger != nil:
		return fmt.Sprintf("STOP @ %.2f", *o.Trigger)
	case o.OrderType == "STOP_LIMIT" && o.Trigger != nil && o.LimitPrice != nil:
		return fmt.Sprintf("STOP_LIMIT @ %.2f (limit: %.2f)", *o.Trigger, *o.LimitPrice)
	case o.OrderType == "LIMIT" && o.LimitPrice != nil:
		return fmt.Sprintf("LIMIT @ %.2f", *o.LimitPrice)
	default:
		return o.OrderType
	}
}

func isTrailing(orderType string) bool {
	return orderType == "TRAIL" || orderType == "TRAILING_STOP"
}

// assignOrderIDs gives every order a deterministic id from its position: buys are
// B1..Bn and sells S1..Sn. AI-supplied ids are kept when unique within the action.
func assignOrderIDs(ticker, strategyVersion string, buys, sells []domain.OrderSpec) {
	seen := make(map[string]bool)
	assign := func(orders []domain.OrderSpec, prefix string) {
		for i := range orders {
			id := orders[i].OrderID
			if id == "" || seen[id] {
				id = OrderID(ticker, strategyVersion, fmt.Sprintf("%s%d", prefix, i+1))
			}
			seen[id] = true
			orders[i].OrderID = id
		}
	}
	assign(buys, "B")
	assign(sells, "S")
}

// positive drops non-finite and non-positive prices
func positive(v *float64) *float64 {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) || *v <= 0 {
		return nil
	}
	out := *v
	return &out
}

// fraction keeps quantity percentages within (0, 1]
func fraction(v *float64) *float64 {
	p := positive(v)
	if p == nil {
		return nil
	}
	if *p > 1 {
		*p = 1
	}
	return p
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func ptr(v float64) *float64 {
	return &v
}
