package attendance

import (
	"context"
	"errors"
	"fmt"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"rollcall/pkg/db"
)

// Database is the subset of *pgxpool.Pool the store needs.
type Database interface {
	db.TxBeginner
	pgxscan.Querier
	db.Execer
}

// Store reads and writes attendance and roster rows.
type Store struct {
	db Database
}

func NewStore(database Database) (*Store, error) {
	if database == nil {
		return nil, errors.New("database is required")
	}
	return &Store{db: database}, nil
}

var attendanceColumns = []string{"date", "division", "student_id", "teacher_id", "status", "professor_name"}

// dayLockKey names the advisory lock that serialises writers of one sheet.
func dayLockKey(date, division string, teacherID int64) string {
	return fmt.Sprintf("attendance/%s/%s/%d", date, division, teacherID)
}

// Submit atomically replaces the caller's records for the submission's date
// and division. An empty entry list clears the day.
func (s *Store) Submit(ctx context.Context, sub Submission) error {
	day, err := sub.Validate()
	if err != nil {
		return err
	}

	rows := make([][]any, 0, len(sub.Entries))
	for _, e := range sub.Entries {
		rows = append(rows, []any{day, sub.Division, e.StudentID, sub.TeacherID, e.Status, sub.RecorderName})
	}

	date := day.Format(DateLayout)
	err = db.InTx(ctx, s.db, func(ctx context.Context, tx pgx.Tx) error {
		// Held until commit so concurrent submissions of the same sheet apply
		// one after the other instead of merging.
		const lock = `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`
		if _, err := tx.Exec(ctx, lock, dayLockKey(date, sub.Division, sub.TeacherID)); err != nil {
			return fmt.Errorf("lock attendance day: %w", err)
		}

		const del = `DELETE FROM attendance WHERE date = $1 AND division = $2 AND teacher_id = $3`
		if _, err := tx.Exec(ctx, del, date, sub.Division, sub.TeacherID); err != nil {
			return fmt.Errorf("clear attendance: %w", err)
		}
		if len(rows) == 0 {
			return nil
		}
		n, err := tx.CopyFrom(ctx, pgx.Identifier{"attendance"}, attendanceColumns, pgx.CopyFromRows(rows))
		if err != nil {
			return fmt.Errorf("insert attendance: %w", err)
		}
		if n != int64(len(rows)) {
			return fmt.Errorf("insert attendance: wrote %d of %d rows", n, len(rows))
		}
		return nil
	})
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return fmt.Errorf("%w: unknown student", ErrInvalid)
		}
		return err
	}
	return nil
}

// Sheet lists the division roster ordered by roll number with the caller's
// status for day.
func (s *Store) Sheet(ctx context.Context, date, division string, teacherID int64) ([]SheetRow, error) {
	day, err := ParseDate(date)
	if err != nil {
		return nil, err
	}
	if division == "" {
		return nil, fmt.Errorf("%w: division is required", ErrInvalid)
	}

	const q = `
		SELECT s.sr_no, s.roll_no, s.name, s.division, a.status, a.professor_name
		FROM students s
		LEFT JOIN attendance a ON a.student_id = s.sr_no
			AND a.date = $1 AND a.division = $2 AND a.teacher_id = $3
		WHERE s.division = $2
		ORDER BY s.roll_no, s.sr_no`

	rows := []SheetRow{}
	if err := db.Select(ctx, s.db, &rows, q, day.Format(DateLayout), division, teacherID); err != nil {
		return nil, fmt.Errorf("load sheet: %w", err)
	}
	return rows, nil
}

// Divisions lists the divisions the teacher has recorded attendance for.
func (s *Store) Divisions(ctx context.Context, teacherID int64) ([]string, error) {
	const q = `SELECT DISTINCT division FROM attendance WHERE teacher_id = $1 ORDER BY division`

	divisions := []string{}
	if err := db.Select(ctx, s.db, &divisions, q, teacherID); err != nil {
		return nil, fmt.Errorf("load divisions: %w", err)
	}
	return divisions, nil
}

// History summarises every sheet the teacher submitted, newest first.
func (s *Store) History(ctx context.Context, teacherID int64) ([]HistoryRow, error) {
	const q = `
		SELECT to_char(date, 'YYYY-MM-DD') AS date, division, professor_name,
			COUNT(*) FILTER (WHERE status = 'present') AS present_count,
			COUNT(*) AS total_students
		FROM attendance
		WHERE teacher_id = $1
		GROUP BY date, division, professor_name
		ORDER BY date DESC, division`

	rows := []HistoryRow{}
	if err := db.Select(ctx, s.db, &rows, q, teacherID); err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	return rows, nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	_, err := db.Exec(ctx, s.db, "SELECT 1")
	return err
}
