package backend

import "time"

// Room is the shared record identifying a matched pair. Its id doubles as
// the signaling topic name.
type Room struct {
	ID           string    `json:"id"`
	UserASession string    `json:"user_a_session"`
	UserBSession string    `json:"user_b_session"`
	CreatedAt    time.Time `json:"created_at"`
}

// Constraints describe what a searching session will accept.
type Constraints struct {
	HasVideo bool `json:"has_video"`
}

// QueueEntry is one session waiting for a partner. Keyed uniquely by
// SessionID; re-upserting refreshes LastPing.
type QueueEntry struct {
	SessionID   string      `json:"session_id"`
	Constraints Constraints `json:"constraints"`
	LastPing    time.Time   `json:"last_ping"`
}

// Match is the result of a successful active-match attempt.
type Match struct {
	RoomID           string `json:"room_id"`
	PartnerSessionID string `json:"partner_session_id"`
}

// Report is an abuse report. Fire-and-forget; storage is the server's
// concern.
type Report struct {
	ReporterID string `json:"reporter_id"`
	ReportedID string `json:"reported_id"`
	RoomID     string `json:"room_id"`
	Reason     string `json:"reason"`
}

// Stats is the peripheral online-users display data.
type Stats struct {
	Online  int `json:"online"`
	Waiting int `json:"waiting"`
	Rooms   int `json:"rooms"`
}
