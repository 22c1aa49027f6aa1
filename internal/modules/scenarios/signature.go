// Package scenarios provides the scenario signature, the append-only scenario
// memory log with similarity search, and the Safety Lock built on top of it.
package scenarios

import (
	"math"
	"sort"

	"github.com/aristath/governor/internal/domain"
	"gonum.org/v1/gonum/stat"
)

// VIX buckets
const (
	VIXLow     = "LOW"
	VIXMedium  = "MEDIUM"
	VIXHigh    = "HIGH"
	VIXExtreme = "EXTREME"
	VIXUnknown = "UNKNOWN"
)

// News sentiment buckets
const (
	SentimentPositive = "POSITIVE"
	SentimentNeutral  = "NEUTRAL"
	SentimentNegative = "NEGATIVE"
)

// Tags derived from a signature and stored on scenario records
const (
	TagVIXHigh    = "VIX_HIGH"
	TagBearMarket = "BEAR_MARKET"
	TagVolatile   = "VOLATILE"
)

const (
	unknown         = "UNKNOWN"
	regimeUncertain = "UNCERTAIN"
	sentimentCutoff = 0.3
)

// SectorRotation summarizes weekly sector fund flows
type SectorRotation struct {
	DominantSector string  `json:"dominant_sector"`
	TotalFlow      float64 `json:"total_flow"`
	SectorCount    int     `json:"sector_count"`
}

// TechnicalSignals carries the market-wide technical state
type TechnicalSignals struct {
	MarketTrend      string `json:"market_trend"`
	VolatilityRegime string `json:"volatility_regime"`
}

// Signature is the compact categorical fingerprint of the market state
type Signature struct {
	VIXLevel         string                 `json:"vix_level"`
	MarketRegime     string                 `json:"market_regime"`
	SectorRotation   SectorRotation         `json:"sector_rotation"`
	MacroIndicators  domain.MacroIndicators `json:"macro_indicators"`
	NewsSentiment    string                 `json:"news_sentiment"`
	TechnicalSignals TechnicalSignals       `json:"technical_signals"`
	TimePosition     string                 `json:"p0_7_time_position,omitempty"`
	TurningPointRisk string                 `json:"p0_7_turning_point_risk,omitempty"`
	DefconLevel      int                    `json:"defcon_level,omitempty"`
}

// Extract derives the signature of ec. It performs no I/O.
func Extract(ec domain.EvaluationContext) Signature {
	technical := TechnicalSignals{
		MarketTrend:      orDefault(ec.MarketTrend, unknown),
		VolatilityRegime: orDefault(ec.VolatilityRegime, unknown),
	}

	return Signature{
		VIXLevel:         VIXLevel(ec.VIX),
		MarketRegime:     orDefault(ec.MarketRegime, regimeUncertain),
		SectorRotation:   sectorRotation(ec.SectorFlows, ec.TotalSectorFlow),
		MacroIndicators:  ec.Macro,
		NewsSentiment:    NewsSentiment(ec.NewsSentimentScores),
		TechnicalSignals: technical,
		TimePosition:     ec.TimePosition,
		TurningPointRisk: ec.TurningPointRisk,
		DefconLevel:      ec.DefconLevel,
	}
}

// Tags returns the tag set used for similarity search
func (s Signature) Tags() []string {
	tags := make([]string, 0, 3)
	if s.VIXLevel == VIXHigh || s.VIXLevel == VIXExtreme {
		tags = append(tags, TagVIXHigh)
	}
	if s.MarketRegime == domain.MarketRegimeBear {
		tags = append(tags, TagBearMarket)
	}
	if s.TurningPointRisk == domain.RiskHigh {
		tags = append(tags, TagVolatile)
	}
	return tags
}

// VIXLevel buckets a VIX reading. Missing or non-positive readings are UNKNOWN.
func VIXLevel(vix *float64) string {
	if vix == nil || math.IsNaN(*vix) || *vix <= 0 {
		return VIXUnknown
	}
	switch v := *vix; {
	case v < 15:
		return VIXLow
	case v < 20:
		return VIXMedium
	case v < 30:
		return VIXHigh
	default:
		return VIXExtreme
	}
}

// NewsSentiment buckets the mean of the per-article sentiment scores
func NewsSentiment(scores []float64) string {
	finite := make([]float64, 0, len(scores))
	for _, s := range scores {
		if !math.IsNaN(s) && !math.IsInf(s, 0) {
			finite = append(finite, s)
		}
	}
	if len(finite) == 0 {
		return SentimentNeutral
	}

	mean := stat.Mean(finite, nil)
	switch {
	case mean > sentimentCutoff:
		return SentimentPositive
	case mean < -sentimentCutoff:
		return SentimentNegative
	default:
		return SentimentNeutral
	}
}

// sectorRotation picks the sector with the largest weekly flow; ties go to the
// alphabetically first sector.
func sectorRotation(flows map[string]float64, total float64) SectorRotation {
	rotation := SectorRotation{DominantSector: unknown, TotalFlow: total, SectorCount: len(flows)}

	sectors := make([]string, 0, len(flows))
	for sector := range flows {
		sectors = append(sectors, sector)
	}
	sort.Strings(sectors)

	for i, sector := range sectors {
		if i == 0 || flows[sector] > flows[rotation.DominantSector] {
			rotation.DominantSector = sector
		}
	}
	return rotation
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
