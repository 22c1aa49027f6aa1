// Package utils holds small helpers shared by the HTTP and CLI surfaces.
package utils

import "strings"

// ParseCSV splits a comma-separated string and returns the trimmed non-empty
// values. Empty input yields nil.
func ParseCSV(s string) []string {
	if s == "" {
		return nil
	}

	var result []string
	for _, v := range strings.Split(s, ",") {
		trimmed := strings.TrimSpace(v)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	if len(result) == 0 {
		return nil
	}

	return result
}
