package domain

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Percent is a fractional adjustment that accepts either a JSON number (0.10) or a
// signed percentage string ("+10%"). Unparseable values decode as zero.
type Percent float64

// UnmarshalJSON implements json.Unmarshaler
func (p *Percent) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*p = 0
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			*p = 0
			return nil
		}
		*p = ParsePercent(s)
		return nil
	}

	v, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		*p = 0
		return nil
	}
	*p = Percent(v)
	return nil
}

// Float64 returns the fraction as a float64
func (p Percent) Float64() float64 {
	return float64(p)
}

// ParsePercent parses strings like "+10%", "-15 %" or "7.5" (percent units) into a fraction
func ParsePercent(s string) Percent {
	cleaned := strings.TrimSpace(strings.ReplaceAll(s, "%", ""))
	cleaned = strings.ReplaceAll(cleaned, " ", "")
	if cleaned == "" {
		return 0
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0
	}
	return Percent(v / 100.0)
}
