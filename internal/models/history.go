package models

import (
	"encoding/json"
	"time"
)

// UsageRecord is one successful fetch kept in the history store
type UsageRecord struct {
	ID             string          `json:"id"`
	OrganizationID string          `json:"org_id"`
	FetchedAt      time.Time       `json:"fetched_at" badgerhold:"index"`
	FiveHour       float64         `json:"five_hour"`
	SevenDay       float64         `json:"seven_day"`
	SevenDayOpus   float64         `json:"seven_day_opus"`
	Raw            json.RawMessage `json:"raw,omitempty"`
}

// NewUsageRecord flattens a snapshot into a history record
func NewUsageRecord(id, orgID string, snap *UsageSnapshot, fetchedAt time.Time) *UsageRecord {
	return &UsageRecord{
		ID:             id,
		OrganizationID: orgID,
		FetchedAt:      fetchedAt,
		FiveHour:       snap.Utilization(WindowFiveHour),
		SevenDay:       snap.Utilization(WindowSevenDay),
		SevenDayOpus:   snap.Utilization(WindowSevenDayOpus),
		Raw:            append([]byte(nil), snap.Raw()...),
	}
}
