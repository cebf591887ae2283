package models

import "time"

// Session is the client-side view of an authenticated user: profile plus the
// token pair issued by the backend. It never leaves this process except as
// the three persisted keyring entries.
type Session struct {
	UserEmail    string `json:"email"`
	FullName     string `json:"full_name"`
	Role         string `json:"role"`
	AccessToken  string `json:"-"`
	RefreshToken string `json:"-"`
}

// Authenticated reports whether the session carries enough state to issue
// authorized requests. Both the token and the identity must be present.
func (s *Session) Authenticated() bool {
	return s != nil && s.AccessToken != "" && s.UserEmail != ""
}

// IsAdmin reports whether the session belongs to an administrator.
func (s *Session) IsAdmin() bool {
	return s.Authenticated() && s.Role == RoleAdmin
}

// UserData is the JSON shape persisted under the user_data keyring entry.
type UserData struct {
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
}

// Booking mirrors the backend event/booking resource. The backend owns it;
// the client holds transient copies only.
type Booking struct {
	ID             int64     `json:"id"`
	EventName      string    `json:"event_name"`
	SpaceID        int64     `json:"space_id"`
	SpaceName      string    `json:"space_name,omitempty"`
	Start          time.Time `json:"start_datetime"`
	End            time.Time `json:"end_datetime"`
	OrganizerName  string    `json:"organizer_name"`
	OrganizerEmail string    `json:"organizer_email"`
	EventType      string    `json:"event_type"`
	Attendance     int       `json:"attendance"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at,omitempty"`
}

// Space mirrors the backend space resource.
type Space struct {
	ID           int64    `json:"id"`
	Name         string   `json:"name"`
	Location     string   `json:"location"`
	Capacity     int      `json:"capacity"`
	PricePerHour float64  `json:"price_per_hour"`
	Status       string   `json:"status"`
	Features     []string `json:"features,omitempty"`
	Images       []string `json:"images,omitempty"`
}

// SyncTask is a unit of spreadsheet mirror work queued for the worker.
type SyncTask struct {
	TaskType   string    `json:"task_type"`
	BookingID  int64     `json:"booking_id,omitempty"`
	Status     string    `json:"status,omitempty"`
	RetryCount int       `json:"retry_count"`
	CreatedAt  time.Time `json:"created_at"`
}

// Toast is a short-lived notification. Created, delivered, auto-dismissed;
// never persisted.
type Toast struct {
	ID       string
	Message  string
	Type     string
	Duration time.Duration
}
