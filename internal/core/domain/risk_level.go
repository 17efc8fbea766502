package domain

import (
	"fmt"
	"strings"
)

const (
	// RiskScoreMin is the lowest assignable risk score.
	RiskScoreMin = 0
	// RiskScoreMax is the highest assignable risk score.
	RiskScoreMax = 100
)

// RiskLevel captures how suspicious an authentication attempt looks. The score is
// a bounded heuristic used for reporting, not for gating decisions.
type RiskLevel struct {
	score  int
	reason string
}

// NewRiskLevel validates the score bounds and normalises the reason text.
func NewRiskLevel(score int, reason string) (RiskLevel, error) {
	if score < RiskScoreMin || score > RiskScoreMax {
		return RiskLevel{}, NewValidationError("risk_score", fmt.Sprintf("must be between %d and %d, got %d", RiskScoreMin, RiskScoreMax, score))
	}
	trimmed := strings.TrimSpace(reason)
	if trimmed == "" {
		trimmed = "unspecified"
	}
	return RiskLevel{score: score, reason: trimmed}, nil
}

// Score returns the bounded risk score.
func (r RiskLevel) Score() int {
	return r.score
}

// Reason returns the textual explanation attached to the score.
func (r RiskLevel) Reason() string {
	return r.reason
}
