package constraints

import (
	"math"
	"strings"
	"testing"

	"github.com/aristath/governor/internal/config"
	"github.com/aristath/governor/internal/domain"
	testingpkg "github.com/aristath/governor/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func evaluateAndApply(ec domain.EvaluationContext, proposal *domain.AIStrategyProposal) (Evaluation, AdjustedProposal) {
	params := config.DefaultParams()
	evaluator := NewEvaluator(DefaultCatalog(params), zerolog.Nop())
	applier := NewApplier(params, zerolog.Nop())

	result := evaluator.Evaluate(ec, proposal)
	return result, applier.Apply(proposal, result.Adjustments, ec)
}

func hasOverride(overrides []string, prefix string) bool {
	for _, o := range overrides {
		if strings.HasPrefix(o, prefix) {
			return true
		}
	}
	return false
}

func TestApply_LateStageHighRiskCat3(t *testing.T) {
	ec := testingpkg.NewCalmContext("XYZ")
	ec.TimePosition = domain.TimePositionLate
	ec.TurningPointRisk = domain.RiskHigh

	proposal := testingpkg.NewProposalFixture()
	proposal.Cat = domain.Cat3

	_, out := evaluateAndApply(ec, proposal)

	assert.Equal(t, domain.Cat2, out.Cat)
	assert.Equal(t, 0.50, out.MaxU)
	assert.Equal(t, 0.05, out.MaxPositionCap)
	assert.Contains(t, out.ConstraintOverrides, "cat: Cat3 → Cat2 [late_stage_high_risk]")
	assert.Contains(t, out.ConstraintOverrides, "max_U: 0.80 → 0.50 [late_stage_high_risk]")
	assert.Contains(t, out.ConstraintOverrides, "max_position_cap: 0.10 → 0.05 [late_stage_high_risk]")

	// the input proposal is untouched
	assert.Equal(t, domain.Cat3, proposal.Cat)
	assert.Equal(t, 0.8, *proposal.MaxU)
}

func TestApply_Defcon1HaltsBuys(t *testing.T) {
	ec := testingpkg.NewCalmContext("XYZ")
	ec.DefconLevel = 1

	_, out := evaluateAndApply(ec, testingpkg.NewProposalFixture())

	assert.Equal(t, domain.ActionHold, out.RecommendedAction)
	assert.True(t, out.SuppressBuys)
	assert.True(t, out.ForceDefensive)
	assert.Equal(t, 0.30, out.MaxU)
	assert.Equal(t, "defcon_1", out.HaltReason)
	assert.Contains(t, out.ConstraintOverrides, "action: BUY → HOLD [defcon_1]")
}

func TestApply_CapsNeverLoosen(t *testing.T) {
	ec := testingpkg.NewCalmContext("XYZ")
	ec.TimePosition = domain.TimePositionLate
	ec.TurningPointRisk = domain.RiskHigh

	proposal := testingpkg.NewProposalFixture()
	proposal.MaxU = testingpkg.Float(0.2)
	proposal.MaxPositionCap = testingpkg.Float(0.02)

	_, out := evaluateAndApply(ec, proposal)

	assert.Equal(t, 0.2, out.MaxU)
	assert.Equal(t, 0.02, out.MaxPositionCap)
	assert.False(t, hasOverride(out.ConstraintOverrides, "max_U"))
	assert.False(t, hasOverride(out.ConstraintOverrides, "max_position_cap"))
}

func TestApply_TightestCapWins(t *testing.T) {
	ec := testingpkg.NewCalmContext("XYZ")
	ec.TimePosition = domain.TimePositionLate
	ec.TurningPointRisk = domain.RiskHigh
	ec.InsiderSellingAlert = true
	ec.SafetyLockActive = true
	ec.SafetyLockMaxExposure = testingpkg.Float(0.26)

	_, out := evaluateAndApply(ec, testingpkg.NewProposalFixture())

	assert.Equal(t, 0.03, out.MaxPositionCap)
	assert.Contains(t, out.ConstraintOverrides, "max_position_cap: 0.10 → 0.03 [insider_selling]")
	assert.True(t, out.EscalationForced)
	assert.Contains(t, out.EscalationReason, "hard constraint: insider_selling")
}

func TestApply_Defaults(t *testing.T) {
	_, out := evaluateAndApply(testingpkg.NewCalmContext("XYZ"), nil)

	assert.Equal(t, 1.0, out.MaxU)
	assert.Equal(t, 0.15, out.MaxPositionCap)
	assert.Empty(t, out.ConstraintOverrides)
	assert.NotNil(t, out.EscalationReason)
}

func TestApply_PositionCapRangeClamp(t *testing.T) {
	tests := []struct {
		name string
		cap  float64
		want float64
	}{
		{"above range", 0.35, 0.20},
		{"below range", 0.005, 0.01},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			proposal := testingpkg.NewProposalFixture()
			proposal.MaxPositionCap = testingpkg.Float(tt.cap)

			result, out := evaluateAndApply(testingpkg.NewCalmContext("XYZ"), proposal)

			assert.Equal(t, []string{"position_cap_range"}, ruleIDs(result.Violations))
			assert.Equal(t, tt.want, out.MaxPositionCap)
			assert.True(t, hasOverride(out.ConstraintOverrides, "max_position_cap:"))
		})
	}
}

func TestApply_MaxUClampedToUnitRange(t *testing.T) {
	proposal := testingpkg.NewProposalFixture()
	proposal.MaxU = testingpkg.Float(1.7)

	_, out := evaluateAndApply(testingpkg.NewCalmContext("XYZ"), proposal)
	assert.Equal(t, 1.0, out.MaxU)

	proposal.MaxU = testingpkg.Float(math.NaN())
	_, out = evaluateAndApply(testingpkg.NewCalmContext("XYZ"), proposal)
	assert.Equal(t, 1.0, out.MaxU)
}

func TestApply_NormalizeWeights(t *testing.T) {
	proposal := testingpkg.NewProposalFixture()
	proposal.FactorWeights = map[string]float64{"fundamental": 0.3, "chips": 0.3, "tech": 0.3}

	_, out := evaluateAndApply(testingpkg.NewCalmContext("XYZ"), proposal)

	sum := 0.0
	for _, w := range out.FactorWeights {
		sum += w
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
	assert.InDelta(t, 1.0/3, out.FactorWeights["chips"], 1e-9)
	assert.True(t, hasOverride(out.ConstraintOverrides, "factor_weights: normalized"))
}

func TestApply_NormalizeWeightsFallsBackToBaseline(t *testing.T) {
	proposal := testingpkg.NewProposalFixture()
	proposal.FactorWeights = map[string]float64{"fundamental": 1.2, "chips": -0.2, "tech": 0.3}

	_, out := evaluateAndApply(testingpkg.NewCalmContext("XYZ"), proposal)

	assert.Equal(t, BaselineWeights(), out.FactorWeights)
	assert.True(t, hasOverride(out.ConstraintOverrides, "factor_weights: replaced with baseline"))
}

func TestApply_RejectsBuyLadder(t *testing.T) {
	proposal := testingpkg.NewProposalFixture()
	proposal.BuyLadder = &domain.BuyLadder{Buy1: 95, Buy2: 98, Buy3: 90}

	_, out := evaluateAndApply(testingpkg.NewCalmContext("XYZ"), proposal)

	assert.Nil(t, out.BuyLadder)
	assert.Contains(t, out.ConstraintOverrides, "buy_ladder: REJECTED [buy_ladder_order]")
	require.NotNil(t, proposal.BuyLadder)
}

func TestApply_DivergenceDowngradesOnce(t *testing.T) {
	tests := []struct {
		name     string
		cat      domain.Category
		lateHigh bool
		want     domain.Category
	}{
		{"Cat2 to Cat1", domain.Cat2, false, domain.Cat1},
		{"Cat3 to Cat2", domain.Cat3, false, domain.Cat2},
		{"Cat1 stays", domain.Cat1, false, domain.Cat1},
		{"Cat3 with forbid stays Cat2", domain.Cat3, true, domain.Cat2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ec := testingpkg.NewCalmContext("XYZ")
			ec.DivergenceAlert = true
			if tt.lateHigh {
				ec.TimePosition = domain.TimePositionLate
				ec.TurningPointRisk = domain.RiskHigh
			}
			proposal := testingpkg.NewProposalFixture()
			proposal.Cat = tt.cat

			_, out := evaluateAndApply(ec, proposal)

			assert.Equal(t, tt.want, out.Cat)
			assert.Equal(t, 2, out.RiskOverlayLevel)
		})
	}
}

func TestApply_IndustryPhaseOutKeepsAction(t *testing.T) {
	ec := testingpkg.NewCalmContext("XYZ")
	ec.IndustryAdvantageLost = true

	_, out := evaluateAndApply(ec, testingpkg.NewProposalFixture())

	assert.Equal(t, domain.ActionBuy, out.RecommendedAction)
	assert.True(t, out.SuppressBuys)
	assert.True(t, out.PhaseOutMode)
	assert.Equal(t, 0.10, out.WeeklyReduceRate)
	assert.Equal(t, "industry_phase_out", out.HaltReason)
}

func TestApply_EmergencyExit(t *testing.T) {
	ec := testingpkg.NewCalmContext("XYZ")
	ec.EmergencyExitTriggered = true

	_, out := evaluateAndApply(ec, testingpkg.NewProposalFixture())

	assert.Equal(t, domain.ActionHold, out.RecommendedAction)
	assert.True(t, out.SuppressBuys)
	assert.True(t, out.ExecuteExitPlan)
}

func TestApply_NilAdjustments(t *testing.T) {
	applier := NewApplier(nil, zerolog.Nop())
	out := applier.Apply(testingpkg.NewProposalFixture(), nil, testingpkg.NewCalmContext("XYZ"))

	assert.Equal(t, domain.Cat2, out.Cat)
	assert.Equal(t, 0.8, out.MaxU)
	assert.Equal(t, 0.10, out.MaxPositionCap)
	assert.Empty(t, out.ConstraintOverrides)
}
