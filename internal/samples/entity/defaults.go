package entity

import "time"

// DefaultRequests returns the fixed dataset used to seed an empty store and
// as the degraded-mode fallback when the live feed is unavailable. Timestamps
// are relative so the dashboard ordering stays sensible.
func DefaultRequests() []SampleRequest {
	now := time.Now()
	trackingLink := "https://track.sample.io/REQ-1002"
	return []SampleRequest{
		{
			ID:          "REQ-1001",
			CreatorName: "Anshu",
			Email:       "anshu@email.com",
			ChannelLink: "https://youtube.com/@anshu",
			ProductID:   "PROD-001",
			Status:      RequestStatusPending,
			CreatedAt:   now,
			UpdatedAt:   now,
		},
		{
			ID:           "REQ-1002",
			CreatorName:  "Sarah Chen",
			Email:        "sarah@creator.io",
			ChannelLink:  "https://instagram.com/sarahchen",
			ProductID:    "PROD-002",
			Status:       RequestStatusApproved,
			TrackingLink: &trackingLink,
			CreatedAt:    now.Add(-24 * time.Hour),
			UpdatedAt:    now.Add(-24 * time.Hour),
		},
	}
}
