package admin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"rollcall/services/attendance"
)

// Roster is the YAML document accepted by "students import".
//
//	division: A
//	students:
//	  - roll_no: "01"
//	    name: Ada Lovelace
//	    email: ada@example.edu
//	  - roll_no: "02"
//	    name: Alan Turing
//	    division: B
type Roster struct {
	Division string          `yaml:"division"`
	Students []RosterStudent `yaml:"students"`
}

// RosterStudent is one roster line. An empty Division inherits the roster's.
type RosterStudent struct {
	RollNo   string `yaml:"roll_no"`
	Name     string `yaml:"name"`
	Division string `yaml:"division"`
	Email    string `yaml:"email"`
}

type studentCreator interface {
	CreateStudent(ctx context.Context, st attendance.Student) (attendance.Student, error)
}

// ParseRoster decodes and validates a roster document.
func ParseRoster(r io.Reader) (Roster, error) {
	var roster Roster
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&roster); err != nil {
		if errors.Is(err, io.EOF) {
			return Roster{}, errors.New("roster is empty")
		}
		return Roster{}, fmt.Errorf("decode roster: %w", err)
	}

	if len(roster.Students) == 0 {
		return Roster{}, errors.New("roster has no students")
	}
	for i := range roster.Students {
		st := &roster.Students[i]
		st.Name = strings.TrimSpace(st.Name)
		st.Division = strings.TrimSpace(st.Division)
		if st.Division == "" {
			st.Division = strings.TrimSpace(roster.Division)
		}
		if st.Name == "" {
			return Roster{}, fmt.Errorf("student %d: name is required", i+1)
		}
		if st.Division == "" {
			return Roster{}, fmt.Errorf("student %d (%s): division is required", i+1, st.Name)
		}
	}
	return roster, nil
}

// ImportRoster creates every student in roster and returns how many were stored.
// It stops at the first failure.
func ImportRoster(ctx context.Context, store studentCreator, roster Roster) (int, error) {
	created := 0
	for _, st := range roster.Students {
		_, err := store.CreateStudent(ctx, attendance.Student{
			RollNo:   st.RollNo,
			Name:     st.Name,
			Division: st.Division,
			Email:    st.Email,
		})
		if err != nil {
			return created, fmt.Errorf("import %s: %w", st.Name, err)
		}
		created++
	}
	return created, nil
}
