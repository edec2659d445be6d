package attendance

import "time"

// Student change actions carried by StudentsChanged.
const (
	StudentCreated = "created"
	StudentUpdated = "updated"
	StudentDeleted = "deleted"
)

// Submitted is published after a sheet has been stored.
type Submitted struct {
	Date        string    `json:"date"`
	Division    string    `json:"division"`
	TeacherID   int64     `json:"teacher_id"`
	Recorder    string    `json:"recorder"`
	Entries     int       `json:"entries"`
	Present     int       `json:"present"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// NewSubmitted summarises sub for publication.
func NewSubmitted(sub Submission, at time.Time) Submitted {
	ev := Submitted{
		Date:        sub.Date,
		Division:    sub.Division,
		TeacherID:   sub.TeacherID,
		Recorder:    sub.RecorderName,
		Entries:     len(sub.Entries),
		SubmittedAt: at.UTC(),
	}
	for _, e := range sub.Entries {
		if e.Status == StatusPresent {
			ev.Present++
		}
	}
	return ev
}

// StudentsChanged is published whenever the roster changes.
type StudentsChanged struct {
	Action    string    `json:"action"`
	StudentID int64     `json:"sr_no"`
	Division  string    `json:"division,omitempty"`
	ChangedBy int64     `json:"changed_by"`
	ChangedAt time.Time `json:"changed_at"`
}
