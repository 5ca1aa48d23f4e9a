package appointment

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	timePattern = regexp.MustCompile(`^\d{2}:\d{2}$`)
)

// Slot is a (date, time-of-day) pair on the 30-minute grid.
type Slot struct {
	Date string `json:"date"`
	Time string `json:"time"`
}

// Key identifies the slot for locking.
func (s Slot) Key() string {
	return "slot:" + s.Date + "T" + s.Time
}

// StartsAt resolves the slot to an absolute instant in loc, returned in UTC.
func (s Slot) StartsAt(loc *time.Location) (time.Time, error) {
	day, err := time.ParseInLocation("2006-01-02", s.Date, loc)
	if err != nil {
		return time.Time{}, err
	}
	hour, minute, err := splitClock(s.Time)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, loc).UTC(), nil
}

// Appointment is a booked slot owned by a user. Cancelled rows are kept but
// no longer occupy their slot.
type Appointment struct {
	ID          int64      `json:"id"`
	UserID      int64      `json:"user_id"`
	Name        string     `json:"name"`
	Email       string     `json:"email"`
	Date        string     `json:"date"`
	Time        string     `json:"time"`
	StartsAt    time.Time  `json:"starts_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
}

// Slot returns the appointment's slot.
func (a Appointment) Slot() Slot {
	return Slot{Date: a.Date, Time: a.Time}
}

// Active reports whether the appointment still occupies its slot.
func (a Appointment) Active() bool {
	return a.CancelledAt == nil
}

// ValidDate reports whether raw is YYYY-MM-DD and a real calendar day.
func ValidDate(raw string) bool {
	if !datePattern.MatchString(raw) {
		return false
	}
	_, err := time.Parse("2006-01-02", raw)
	return err == nil
}

// ValidTime reports whether raw is HH:MM with hour 0-23 and minute 00 or 30.
func ValidTime(raw string) bool {
	if !timePattern.MatchString(raw) {
		return false
	}
	_, _, err := splitClock(raw)
	return err == nil
}

func splitClock(raw string) (int, int, error) {
	hh, mm, ok := strings.Cut(raw, ":")
	if !ok {
		return 0, 0, fmt.Errorf("invalid time %q", raw)
	}
	hour, err := strconv.Atoi(hh)
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", raw)
	}
	minute, err := strconv.Atoi(mm)
	if err != nil || (minute != 0 && minute != 30) {
		return 0, 0, fmt.Errorf("minute must be 00 or 30 in %q", raw)
	}
	return hour, minute, nil
}
