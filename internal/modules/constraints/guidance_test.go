package constraints

import (
	"testing"

	"github.com/aristath/governor/internal/domain"
	testingpkg "github.com/aristath/governor/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuidance_Suggestions(t *testing.T) {
	g := NewGuidance()

	ec := testingpkg.NewCalmContext("XYZ")
	assert.Empty(t, g.Suggestions(ec))

	ec.EarningsInDays = testingpkg.Int(7)
	ec.TechnicalCategory = domain.Cat3
	ec.VolumeSurge = true
	ec.VIX = testingpkg.Float(28)
	ec.MilestonePending = true

	suggestions := g.Suggestions(ec)
	require.Len(t, suggestions, 4)
	assert.Equal(t, "earnings_window", suggestions[0].Name)
	assert.Equal(t, 0.35, suggestions[0].SuggestedWeights[FactorChips])
	assert.Equal(t, "breakout_pattern", suggestions[1].Name)
	assert.Equal(t, 0.40, suggestions[1].SuggestedWeights[FactorTech])
	assert.Equal(t, "high_volatility", suggestions[2].Name)
	assert.Equal(t, 0.20, suggestions[2].SuggestedWeights[FactorMacro])
	assert.Equal(t, "milestone_verification", suggestions[3].Name)
	assert.Equal(t, 0.45, suggestions[3].SuggestedWeights[FactorFundamental])
}

func TestGuidance_EarningsWindowBoundary(t *testing.T) {
	g := NewGuidance()
	ec := testingpkg.NewCalmContext("XYZ")

	ec.EarningsInDays = testingpkg.Int(14)
	assert.Len(t, g.Suggestions(ec), 1)

	ec.EarningsInDays = testingpkg.Int(15)
	assert.Empty(t, g.Suggestions(ec))
}

func TestGuidance_ReviewFlagsDeviation(t *testing.T) {
	g := NewGuidance()
	proposal := testingpkg.NewProposalFixture()
	proposal.FactorWeights = map[string]float64{
		"fundamental": 0.05,
		"chips":       0.25,
		"tech":        0.50,
		"macro":       0.10,
		"sentiment":   0.10,
	}

	notes := g.Review(testingpkg.NewCalmContext("XYZ"), proposal)

	require.Len(t, notes, 2)
	assert.Contains(t, notes[0], "weight fundamental 0.05")
	assert.Contains(t, notes[1], "weight tech 0.50")
}

func TestGuidance_ReviewUsesScenarioExpectations(t *testing.T) {
	g := NewGuidance()
	ec := testingpkg.NewCalmContext("XYZ")
	ec.TechnicalCategory = domain.Cat3
	ec.VolumeSurge = true

	proposal := testingpkg.NewProposalFixture()
	proposal.FactorWeights = map[string]float64{
		"fundamental": 0.20,
		"chips":       0.30,
		"tech":        0.40,
		"macro":       0.10,
		"sentiment":   0.00,
	}

	notes := g.Review(ec, proposal)

	require.Len(t, notes, 1)
	assert.Equal(t, "scenario breakout_pattern: Cat3 breakout on a volume surge", notes[0])
	assert.Equal(t, 0.40, g.Expected(ec)[FactorTech])
}

func TestGuidance_ReviewNeverModifiesProposal(t *testing.T) {
	g := NewGuidance()
	proposal := testingpkg.NewProposalFixture()
	proposal.FactorWeights["tech"] = 0.9

	g.Review(testingpkg.NewCalmContext("XYZ"), proposal)

	assert.Equal(t, 0.9, proposal.FactorWeights["tech"])
}
