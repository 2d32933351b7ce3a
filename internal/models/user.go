package models

import "time"

// User presence statuses. Status in the store is the last known value,
// not necessarily live-accurate; the connection registry is authoritative
// for liveness.
const (
	StatusOnline  = "ONLINE"
	StatusOffline = "OFFLINE"
	StatusAway    = "AWAY"
	StatusBusy    = "BUSY"
)

func ValidStatus(s string) bool {
	switch s {
	case StatusOnline, StatusOffline, StatusAway, StatusBusy:
		return true
	}
	return false
}

type User struct {
	ID          string    `bson:"_id" json:"id"`
	ExternalID  string    `bson:"external_id" json:"-"`
	Username    string    `bson:"username" json:"username"`
	DisplayName string    `bson:"display_name" json:"displayName"`
	Avatar      string    `bson:"avatar,omitempty" json:"avatar,omitempty"`
	Status      string    `bson:"status" json:"status"`
	LastSeen    time.Time `bson:"last_seen" json:"lastSeen"`
	CreatedAt   time.Time `bson:"created_at" json:"createdAt"`
}
