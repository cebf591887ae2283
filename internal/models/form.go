package models

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

var emailRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// BookingForm carries user input for a booking request before it is sent to
// the backend. Local validation runs first; an invalid form never reaches
// the network.
type BookingForm struct {
	EventName      string    `json:"event_name"`
	SpaceID        int64     `json:"space_id"`
	Start          time.Time `json:"start_datetime"`
	End            time.Time `json:"end_datetime"`
	OrganizerName  string    `json:"organizer_name"`
	OrganizerEmail string    `json:"organizer_email"`
	EventType      string    `json:"event_type"`
	Attendance     int       `json:"attendance"`
}

// FieldErrors maps form field names to validation messages.
type FieldErrors map[string]string

func (e FieldErrors) Error() string {
	if len(e) == 0 {
		return "invalid form"
	}
	parts := make([]string, 0, len(e))
	for field, msg := range e {
		parts = append(parts, fmt.Sprintf("%s: %s", field, msg))
	}
	return strings.Join(parts, "; ")
}

// Validate checks the form against the given space. A nil space skips the
// capacity check (space not yet resolved).
func (f *BookingForm) Validate(space *Space, now time.Time) FieldErrors {
	errs := FieldErrors{}

	if strings.TrimSpace(f.EventName) == "" {
		errs["event_name"] = "Event name is required"
	}
	if f.SpaceID == 0 {
		errs["space_id"] = "Space is required"
	}
	if strings.TrimSpace(f.OrganizerName) == "" {
		errs["organizer_name"] = "Organizer name is required"
	}
	if f.OrganizerEmail == "" {
		errs["organizer_email"] = "Organizer email is required"
	} else if !emailRe.MatchString(f.OrganizerEmail) {
		errs["organizer_email"] = "Enter a valid email address"
	}

	switch {
	case f.Start.IsZero():
		errs["start_datetime"] = "Start time is required"
	case f.Start.Before(now):
		errs["start_datetime"] = "Start time cannot be in the past"
	}

	switch {
	case f.End.IsZero():
		errs["end_datetime"] = "End time is required"
	case !f.Start.IsZero() && !f.End.After(f.Start):
		errs["end_datetime"] = "End time must be after start time"
	}

	if f.Attendance <= 0 {
		errs["attendance"] = "Expected attendance is required"
	} else if space != nil && space.Capacity > 0 && f.Attendance > space.Capacity {
		errs["attendance"] = fmt.Sprintf("Attendance exceeds space capacity of %d", space.Capacity)
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}
