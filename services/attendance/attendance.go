// Package attendance stores the student roster and per-day attendance sheets.
package attendance

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire and storage format of attendance dates.
const DateLayout = "2006-01-02"

// Attendance statuses.
const (
	StatusPresent = "present"
	StatusAbsent  = "absent"
	StatusLate    = "late"
	StatusExcused = "excused"
)

var validStatuses = map[string]struct{}{
	StatusPresent: {},
	StatusAbsent:  {},
	StatusLate:    {},
	StatusExcused: {},
}

var (
	// ErrInvalid wraps every input validation failure.
	ErrInvalid = errors.New("invalid attendance input")
	// ErrStudentNotFound is returned when a referenced student does not exist.
	ErrStudentNotFound = errors.New("student not found")
	// ErrExportUnavailable is returned when no object store is configured.
	ErrExportUnavailable = errors.New("history export is not configured")
)

// ValidStatus reports whether s is an accepted attendance status.
func ValidStatus(s string) bool {
	_, ok := validStatuses[s]
	return ok
}

// Entry marks one student on a sheet.
type Entry struct {
	StudentID int64  `json:"sr_no"`
	Status    string `json:"status"`
}

// Submission replaces every record a teacher holds for one date and division.
type Submission struct {
	Date         string
	Division     string
	TeacherID    int64
	RecorderName string
	Entries      []Entry
}

// Validate checks the submission and returns the parsed date.
func (s Submission) Validate() (time.Time, error) {
	day, err := ParseDate(s.Date)
	if err != nil {
		return time.Time{}, err
	}
	if strings.TrimSpace(s.Division) == "" {
		return time.Time{}, fmt.Errorf("%w: division is required", ErrInvalid)
	}
	if s.TeacherID <= 0 {
		return time.Time{}, fmt.Errorf("%w: teacher is required", ErrInvalid)
	}

	seen := make(map[int64]struct{}, len(s.Entries))
	for i, e := range s.Entries {
		if e.StudentID <= 0 {
			return time.Time{}, fmt.Errorf("%w: entry %d has no student", ErrInvalid, i)
		}
		if !ValidStatus(e.Status) {
			return time.Time{}, fmt.Errorf("%w: entry %d has unknown status %q", ErrInvalid, i, e.Status)
		}
		if _, dup := seen[e.StudentID]; dup {
			return time.Time{}, fmt.Errorf("%w: student %d listed twice", ErrInvalid, e.StudentID)
		}
		seen[e.StudentID] = struct{}{}
	}
	return day, nil
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(raw string) (time.Time, error) {
	day, err := time.Parse(DateLayout, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date must be YYYY-MM-DD", ErrInvalid)
	}
	return day, nil
}

// SheetRow is one roster line of a division sheet. Status is nil when the
// caller has not recorded the student for that date.
type SheetRow struct {
	StudentID     int64   `json:"sr_no" db:"sr_no"`
	RollNo        string  `json:"roll_no" db:"roll_no"`
	Name          string  `json:"name" db:"name"`
	Division      string  `json:"division" db:"division"`
	Status        *string `json:"status" db:"status"`
	ProfessorName *string `json:"professor_name" db:"professor_name"`
}

// HistoryRow summarises one submitted sheet.
type HistoryRow struct {
	Date          string `json:"date" db:"date"`
	Division      string `json:"division" db:"division"`
	ProfessorName string `json:"professor_name" db:"professor_name"`
	PresentCount  int64  `json:"present_count" db:"present_count"`
	TotalStudents int64  `json:"total_students" db:"total_students"`
}

// StudentRecord is one attendance mark of a single student.
type StudentRecord struct {
	Date          string `json:"date" db:"date"`
	Division      string `json:"division" db:"division"`
	Status        string `json:"status" db:"status"`
	ProfessorName string `json:"professor_name" db:"professor_name"`
	TeacherID     int64  `json:"teacher_id" db:"teacher_id"`
}
