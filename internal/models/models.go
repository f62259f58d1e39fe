package models

import "time"

// Member is one observed account snapshot under one source group.
// ID alone is not unique in the store; the key is (ID, SourceGroup).
type Member struct {
	ID          int64  `json:"id"`
	Username    string `json:"username"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Phone       string `json:"phone"`
	IsPremium   bool   `json:"is_premium"`
	LastOnline  int64  `json:"last_online"`
	SourceGroup string `json:"source_group"`
}

// StoredMember is a Member plus the store-assigned timestamps.
type StoredMember struct {
	Member
	FirstRecordedAt time.Time `json:"first_recorded_at"`
	LastSeenAt      time.Time `json:"last_seen_at"`
}

// GroupStats summarizes the live rows for one source group.
type GroupStats struct {
	SourceGroup  string    `json:"source_group"`
	MemberCount  int64     `json:"member_count"`
	PremiumCount int64     `json:"premium_count"`
	LastSeenAt   time.Time `json:"last_seen_at"`
}
