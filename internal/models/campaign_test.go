package models

import "testing"

func TestIsValidCampaignTransition(t *testing.T) {
	tests := []struct {
		from     string
		to       string
		expected bool
	}{
		// Happy path
		{CampaignStatusActive, CampaignStatusFunded, true},
		{CampaignStatusFunded, CampaignStatusCompleted, true},

		// Failure / refund path
		{CampaignStatusActive, CampaignStatusFailed, true},
		{CampaignStatusFailed, CampaignStatusRefunding, true},

		// Administrative cancellation
		{CampaignStatusActive, CampaignStatusCancelled, true},
		{CampaignStatusFunded, CampaignStatusCancelled, true},
		{CampaignStatusCancelled, CampaignStatusRefunding, true},

		// No regressions
		{CampaignStatusFunded, CampaignStatusActive, false},
		{CampaignStatusCompleted, CampaignStatusActive, false},
		{CampaignStatusCompleted, CampaignStatusFunded, false},
		{CampaignStatusRefunding, CampaignStatusActive, false},
		{CampaignStatusRefunding, CampaignStatusFailed, false},

		// Invalid jumps
		{CampaignStatusActive, CampaignStatusCompleted, false},
		{CampaignStatusActive, CampaignStatusRefunding, false},
		{CampaignStatusFunded, CampaignStatusFailed, false},
		{CampaignStatusCompleted, CampaignStatusCancelled, false},
		{"nonexistent", CampaignStatusFunded, false},
		{CampaignStatusActive, "nonexistent", false},
	}

	for _, tt := range tests {
		t.Run(tt.from+"->"+tt.to, func(t *testing.T) {
			result := IsValidCampaignTransition(tt.from, tt.to)
			if result != tt.expected {
				t.Errorf("IsValidCampaignTransition(%q, %q) = %v, want %v", tt.from, tt.to, result, tt.expected)
			}
		})
	}
}

func TestAllStatusesHaveTransitionEntry(t *testing.T) {
	allStatuses := []string{
		CampaignStatusActive, CampaignStatusFunded, CampaignStatusCompleted,
		CampaignStatusFailed, CampaignStatusRefunding, CampaignStatusCancelled,
	}

	for _, status := range allStatuses {
		if _, ok := ValidCampaignTransitions[status]; !ok {
			t.Errorf("status %q missing from ValidCampaignTransitions map", status)
		}
	}
}

func TestIsValidCampaignKind(t *testing.T) {
	for _, k := range []CampaignKind{KindEnhancedInfo, KindAdvertising, KindBoost} {
		if !IsValidCampaignKind(k) {
			t.Errorf("IsValidCampaignKind(%q) = false, want true", k)
		}
	}
	if IsValidCampaignKind("premium") {
		t.Error(`IsValidCampaignKind("premium") = true, want false`)
	}
}
