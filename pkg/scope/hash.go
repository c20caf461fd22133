// Package scope computes the canonical identity hash the expansion
// engine deduplicates jobs by (spec §4.1 Phase VIII: "deduplicated by
// (job_name, config_id, variables)").
package scope

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

type jobIdentityPayload struct {
	JobName   string         `json:"job_name"`
	ConfigID  int64          `json:"config_id"`
	Variables map[string]any `json:"variables"`
}

// Hash computes a canonical sha256 hex digest over (job_name, config_id,
// variables). encoding/json sorts map[string]any keys on marshal, so the
// digest is stable regardless of map iteration order.
func Hash(jobName string, configID int64, variables map[string]any) (string, error) {
	payload := jobIdentityPayload{JobName: jobName, ConfigID: configID, Variables: variables}
	b, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal job identity payload: %w", err)
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}
