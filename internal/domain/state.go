package domain

import "time"

// ClientState is one durable key/value pair of client-side state, such as the
// identifier of the job currently being tracked.
type ClientState struct {
	Key       string    `gorm:"column:state_key;type:text;primaryKey" json:"key"`
	Value     string    `gorm:"type:text" json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for ClientState.
func (ClientState) TableName() string {
	return "client_state"
}

// Notification is a broadcast job event written to durable storage so that other
// processes can pick it up on their own refresh cycle.
type Notification struct {
	ID        string    `gorm:"type:text;primaryKey" json:"id"`
	Type      string    `gorm:"type:text;not null" json:"type"`
	JobID     string    `gorm:"type:text;index" json:"job_id"`
	JobName   string    `gorm:"type:text" json:"job_name"`
	Origin    string    `gorm:"type:text" json:"origin"`
	CreatedAt time.Time `gorm:"index:idx_notifications_created" json:"created_at"`
}

// TableName returns the database table name for Notification.
func (Notification) TableName() string {
	return "notifications"
}
