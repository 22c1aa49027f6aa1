package domain

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTradeSide_IsValid(t *testing.T) {
	assert.True(t, TradeSideBuy.IsValid())
	assert.True(t, TradeSideSell.IsValid())
	assert.False(t, TradeSide("SHORT").IsValid())
	assert.False(t, TradeSide("").IsValid())
}

func TestParsePercent(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"+10%", 0.10},
		{"-15%", -0.15},
		{" 7.5 % ", 0.075},
		{"20", 0.20},
		{"", 0},
		{"abc%", 0},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.InDelta(t, tt.want, ParsePercent(tt.in).Float64(), 1e-12)
		})
	}
}

func TestParameterAdjustmentVector_AcceptsNumbersAndPercentStrings(t *testing.T) {
	raw := `{"buy_bias":0.5,"sell_bias":-0.2,"ladder_spacing_adjustment":"+10%","trailing_stop_tightness":-0.05}`

	var v ParameterAdjustmentVector
	require.NoError(t, json.Unmarshal([]byte(raw), &v))

	assert.Equal(t, 0.5, v.BuyBias)
	assert.Equal(t, -0.2, v.SellBias)
	assert.InDelta(t, 0.10, v.LadderSpacingAdjustment.Float64(), 1e-12)
	assert.InDelta(t, -0.05, v.TrailingStopTightness.Float64(), 1e-12)
}

func TestPercent_MalformedDecodesAsZero(t *testing.T) {
	var v ParameterAdjustmentVector
	require.NoError(t, json.Unmarshal([]byte(`{"ladder_spacing_adjustment":"wide","trailing_stop_tightness":null}`), &v))

	assert.Zero(t, v.LadderSpacingAdjustment.Float64())
	assert.Zero(t, v.TrailingStopTightness.Float64())
}

func TestTradeAction_NormalizeProducesEmptyArrays(t *testing.T) {
	action := TradeAction{Ticker: "XYZ", RiskFrame: &RiskFrame{}}
	action.Normalize()

	data, err := json.Marshal(action)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))

	for _, key := range []string{"previous_orders", "new_orders", "escalation_reason", "constraint_overrides", "violations", "programmatic_overrides", "guidance_notes"} {
		assert.Equal(t, []interface{}{}, decoded[key], key)
	}
	riskFrame := decoded["risk_frame"].(map[string]interface{})
	assert.Equal(t, []interface{}{}, riskFrame["invalidation_levels"])
}

func TestTradeAction_OrdersBySide(t *testing.T) {
	action := TradeAction{NewOrders: []OrderSpec{
		{OrderID: "b1", Side: TradeSideBuy},
		{OrderID: "s1", Side: TradeSideSell},
		{OrderID: "b2", Side: TradeSideBuy},
	}}

	buys := action.Orders(TradeSideBuy)
	require.Len(t, buys, 2)
	assert.Equal(t, "b1", buys[0].OrderID)
	assert.Equal(t, "b2", buys[1].OrderID)
	assert.Len(t, action.Orders(TradeSideSell), 1)
}

func TestSafetyLockResult_Summary(t *testing.T) {
	maxExposure := 0.26
	result := SafetyLockResult{Active: true, MortalityRate: 0.6, MaxExposure: &maxExposure, Reason: "r", Analogues: 20}

	summary := result.Summary()
	assert.True(t, summary.Active)
	assert.Equal(t, 0.6, summary.MortalityRate)
	assert.Equal(t, &maxExposure, summary.MaxExposure)
	assert.Equal(t, 20, summary.Analogues)
}

func TestInstrumentInput_MalformedSectionsAreAbsent(t *testing.T) {
	raw := `{
		"ticker": "XYZ",
		"context": {"ticker": "XYZ", "defcon_level": 2, "current_price": 100},
		"proposal": {"cat": "Cat2", "max_U": "lots"},
		"market": [1, 2, 3],
		"key_levels": {"support_1": 95},
		"previous_orders": [{"order_id": "old-1", "type": "BUY"}]
	}`

	var in InstrumentInput
	require.NoError(t, json.Unmarshal([]byte(raw), &in))

	assert.Equal(t, "XYZ", in.Ticker)
	assert.Equal(t, 2, in.Context.DefconLevel)
	assert.Nil(t, in.Proposal)
	assert.Nil(t, in.Market)
	require.NotNil(t, in.KeyLevels)
	assert.Equal(t, 95.0, *in.KeyLevels.Support1)
	require.Len(t, in.PreviousOrders, 1)
	assert.Equal(t, "BUY", in.PreviousOrders[0].Side)
}

func TestInstrumentInput_MalformedContextIsRecorded(t *testing.T) {
	raw := `{
		"context": {"ticker": "XYZ", "defcon_level": "1"},
		"bars": "daily",
		"previous_orders": [{"order_id": "old-1", "type": "BUY"}]
	}`

	var in InstrumentInput
	require.NoError(t, json.Unmarshal([]byte(raw), &in))

	assert.Equal(t, "XYZ", in.Context.Ticker)
	assert.Zero(t, in.Context.DefconLevel)
	assert.Nil(t, in.Bars)
	assert.Len(t, in.PreviousOrders, 1)
	require.Error(t, in.DecodeError())
	assert.Contains(t, in.DecodeError().Error(), "context:")
	assert.NotContains(t, in.DecodeError().Error(), "bars")
}

func TestInstrumentInput_WellFormedHasNoDecodeError(t *testing.T) {
	var in InstrumentInput
	require.NoError(t, json.Unmarshal([]byte(`{"ticker":"XYZ","context":{"defcon_level":2}}`), &in))
	assert.NoError(t, in.DecodeError())
	assert.Error(t, MalformedInput(errors.New("not an object")).DecodeError())
}

func TestInstrumentInput_RejectsNonObject(t *testing.T) {
	var in InstrumentInput
	assert.Error(t, json.Unmarshal([]byte(`"XYZ"`), &in))
}
