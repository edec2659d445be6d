package attendance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"rollcall/pkg/db"
)

// Student is a roster entry.
type Student struct {
	ID        int64     `json:"sr_no" db:"sr_no"`
	RollNo    string    `json:"roll_no" db:"roll_no"`
	Name      string    `json:"name" db:"name"`
	Division  string    `json:"division" db:"division"`
	Email     string    `json:"email" db:"email"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// StudentPatch carries the fields to change on a student. Nil fields are kept.
type StudentPatch struct {
	RollNo   *string
	Name     *string
	Division *string
	Email    *string
}

func (p StudentPatch) empty() bool {
	return p.RollNo == nil && p.Name == nil && p.Division == nil && p.Email == nil
}

const studentColumns = `sr_no, roll_no, name, division, email, created_at`

func normalizeStudent(st Student) (Student, error) {
	st.Name = strings.TrimSpace(st.Name)
	st.Division = strings.TrimSpace(st.Division)
	st.RollNo = strings.TrimSpace(st.RollNo)
	st.Email = strings.TrimSpace(st.Email)
	if st.Name == "" || st.Division == "" {
		return Student{}, fmt.Errorf("%w: name and division are required", ErrInvalid)
	}
	return st, nil
}

// ListStudents returns the roster, optionally limited to one division.
func (s *Store) ListStudents(ctx context.Context, division string) ([]Student, error) {
	q := `SELECT ` + studentColumns + ` FROM students`
	var args []any
	if division = strings.TrimSpace(division); division != "" {
		q += ` WHERE division = $1`
		args = append(args, division)
	}
	q += ` ORDER BY division, roll_no, sr_no`

	students := []Student{}
	if err := db.Select(ctx, s.db, &students, q, args...); err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	return students, nil
}

// GetStudent loads a single student.
func (s *Store) GetStudent(ctx context.Context, id int64) (Student, error) {
	var st Student
	err := db.Get(ctx, s.db, &st, `SELECT `+studentColumns+` FROM students WHERE sr_no = $1`, id)
	if err != nil {
		if pgxscan.NotFound(err) || errors.Is(err, pgx.ErrNoRows) {
			return Student{}, ErrStudentNotFound
		}
		return Student{}, fmt.Errorf("load student: %w", err)
	}
	return st, nil
}

// CreateStudent adds a student to the roster.
func (s *Store) CreateStudent(ctx context.Context, st Student) (Student, error) {
	st, err := normalizeStudent(st)
	if err != nil {
		return Student{}, err
	}

	const q = `INSERT INTO students (roll_no, name, division, email, created_at)
		VALUES ($1, $2, $3, $4, now())
		RETURNING ` + studentColumns

	var created Student
	if err := db.Get(ctx, s.db, &created, q, st.RollNo, st.Name, st.Division, st.Email); err != nil {
		return Student{}, fmt.Errorf("create student: %w", err)
	}
	return created, nil
}

// UpdateStudent applies patch to the student with id.
func (s *Store) UpdateStudent(ctx context.Context, id int64, patch StudentPatch) (Student, error) {
	if patch.empty() {
		return s.GetStudent(ctx, id)
	}
	for _, f := range []*string{patch.Name, patch.Division} {
		if f != nil && strings.TrimSpace(*f) == "" {
			return Student{}, fmt.Errorf("%w: name and division cannot be blank", ErrInvalid)
		}
	}

	const q = `UPDATE students SET
			roll_no = COALESCE($2, roll_no),
			name = COALESCE($3, name),
			division = COALESCE($4, division),
			email = COALESCE($5, email)
		WHERE sr_no = $1
		RETURNING ` + studentColumns

	var updated Student
	err := db.Get(ctx, s.db, &updated, q, id, trimmed(patch.RollNo), trimmed(patch.Name), trimmed(patch.Division), trimmed(patch.Email))
	if err != nil {
		if pgxscan.NotFound(err) || errors.Is(err, pgx.ErrNoRows) {
			return Student{}, ErrStudentNotFound
		}
		return Student{}, fmt.Errorf("update student: %w", err)
	}
	return updated, nil
}

// DeleteStudent removes a student together with its attendance records.
func (s *Store) DeleteStudent(ctx context.Context, id int64) error {
	tag, err := db.Exec(ctx, s.db, `DELETE FROM students WHERE sr_no = $1`, id)
	if err != nil {
		return fmt.Errorf("delete student: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrStudentNotFound
	}
	return nil
}

// StudentAttendance lists every record of one student, newest first.
func (s *Store) StudentAttendance(ctx context.Context, id int64) ([]StudentRecord, error) {
	if _, err := s.GetStudent(ctx, id); err != nil {
		return nil, err
	}

	const q = `
		SELECT to_char(date, 'YYYY-MM-DD') AS date, division, status, professor_name, teacher_id
		FROM attendance
		WHERE student_id = $1
		ORDER BY date DESC, teacher_id`

	records := []StudentRecord{}
	if err := db.Select(ctx, s.db, &records, q, id); err != nil {
		return nil, fmt.Errorf("load student attendance: %w", err)
	}
	return records, nil
}

func trimmed(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	return &t
}
