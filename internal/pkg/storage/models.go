package storage

import "time"

// User - is model of how a user account is stored in DB
type User struct {
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Image - is model of how image metadata is stored in DB.
// UserEmail is empty for anonymous uploads; ExpirationDate is nil when the
// image has unbounded retention.
type Image struct {
	ID             int64      `json:"id"`
	Filename       string     `json:"filename"`
	OriginalName   string     `json:"original_name"`
	Size           int64      `json:"size"`
	UploadTime     time.Time  `json:"upload_time"`
	FileType       string     `json:"file_type"`
	UserEmail      string     `json:"user_email,omitempty"`
	ExpirationDate *time.Time `json:"expiration_date,omitempty"`
}

// StatEntry - append-only audit log row. Rows are only ever inserted,
// never mutated.
type StatEntry struct {
	ID             int64     `json:"id"`
	ActionType     string    `json:"action_type"`
	UserEmail      string    `json:"user_email,omitempty"`
	FileID         int64     `json:"file_id,omitempty"`
	IPAddress      string    `json:"ip_address,omitempty"`
	UserAgent      string    `json:"user_agent,omitempty"`
	AdditionalInfo string    `json:"additional_info,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// ActionCount - aggregate of statistics rows per action type.
type ActionCount struct {
	ActionType string `json:"action_type"`
	Count      int64  `json:"count"`
}
