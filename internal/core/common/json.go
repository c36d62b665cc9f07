package common

import (
	"encoding/json"
	"fmt"
	"strings"

	jsonrepair "github.com/kaptinlin/jsonrepair"
)

// ParseJSON cleans and unmarshals a JSON object from an LLM response into T.
// It strips surrounding prose and markdown fences, and falls back to repairing
// near-JSON output before giving up.
func ParseJSON[T any](response string) (T, error) {
	var zero T

	jsonStr := extractObject(response)
	if jsonStr == "" {
		return zero, fmt.Errorf("no JSON object found in response")
	}

	var result T
	if err := json.Unmarshal([]byte(jsonStr), &result); err == nil {
		return result, nil
	}

	repaired, repairErr := jsonrepair.JSONRepair(jsonStr)
	if repairErr != nil {
		return zero, fmt.Errorf("failed to unmarshal JSON: %s", truncate(jsonStr, 200))
	}
	if err := json.Unmarshal([]byte(repaired), &result); err != nil {
		return zero, fmt.Errorf("failed to unmarshal repaired JSON: %w", err)
	}
	return result, nil
}

func extractObject(s string) string {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start == -1 || end <= start {
		return ""
	}
	return s[start : end+1]
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
