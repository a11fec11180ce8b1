package models

import (
	"testing"
)

func TestCycleStatsBalanced(t *testing.T) {
	stats := NewCycleStats("cycle_1", "regular")
	stats.Fetched = 12
	stats.AlertsSent = 2
	stats.AlertsFailed = 1
	stats.Skip(SkipStale)
	stats.Skip(SkipSeen)
	stats.Skip(SkipSeen)
	stats.Skip(SkipDuplicate)
	stats.Skip(SkipLowScore)
	stats.Skip(SkipPriceCeiling)
	stats.Deferred = 2
	stats.DroppedError = 1

	if !stats.Balanced() {
		t.Errorf("accounting should balance: fetched=%d sent=%d failed=%d skipped=%d deferred=%d dropped=%d",
			stats.Fetched, stats.AlertsSent, stats.AlertsFailed, stats.SkippedTotal(), stats.Deferred, stats.DroppedError)
	}

	stats.Fetched++
	if stats.Balanced() {
		t.Error("unaccounted item should break the identity")
	}
}

func TestCycleStatsEmpty(t *testing.T) {
	stats := NewCycleStats("cycle_2", "closed")
	if !stats.Empty() {
		t.Error("zero-activity cycle should be empty")
	}

	stats.Fetched = 3
	stats.Skip(SkipSeen)
	stats.Skip(SkipSeen)
	stats.Skip(SkipDuplicate)
	if !stats.Empty() {
		t.Error("cycle of only replays should still count as empty")
	}

	stats.Fetched++
	stats.AlertsSent++
	if stats.Empty() {
		t.Error("cycle with an alert is not empty")
	}
}

func TestDynamicWeightsLookup(t *testing.T) {
	weights := &DynamicWeights{
		Weights:  map[string]float64{"fda": 3.0, "offering": 0.2},
		Baseline: 0.50,
	}

	if got := weights.Weight("fda"); got != 3.0 {
		t.Errorf("fda weight = %v, expected 3.0", got)
	}
	if got := weights.Weight("merger"); got != 0.50 {
		t.Errorf("missing category = %v, expected baseline 0.50", got)
	}

	var nilWeights *DynamicWeights
	if got := nilWeights.Weight("fda"); got != 0.50 {
		t.Errorf("nil table = %v, expected default 0.50", got)
	}
}

func TestClampScore(t *testing.T) {
	tests := []struct {
		raw      float64
		expected float64
	}{
		{-1.5, 0},
		{0, 0},
		{4.5, 4.5},
		{10, 10},
		{17.2, 10},
	}
	for _, tt := range tests {
		if got := ClampScore(tt.raw); got != tt.expected {
			t.Errorf("ClampScore(%v) = %v, expected %v", tt.raw, got, tt.expected)
		}
	}
}
