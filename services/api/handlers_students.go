package api

import (
	"net/http"

	"rollcall/services/attendance"
)

type createStudentRequest struct {
	RollNo   string `json:"roll_no"`
	Name     string `json:"name" validate:"required"`
	Division string `json:"division" validate:"required"`
	Email    string `json:"email" validate:"omitempty,email"`
}

type updateStudentRequest struct {
	RollNo   *string `json:"roll_no"`
	Name     *string `json:"name"`
	Division *string `json:"division"`
	Email    *string `json:"email" validate:"omitempty,email"`
}

func (a *API) handleListStudents(w http.ResponseWriter, r *http.Request) {
	students, err := a.attendance.ListStudents(r.Context(), r.URL.Query().Get("division"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, students)
}

func (a *API) handleCreateStudent(w http.ResponseWriter, r *http.Request) {
	claims, _ := IdentityFrom(r.Context())

	var req createStudentRequest
	if err := decodeValid(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}

	st, err := a.attendance.CreateStudent(r.Context(), attendance.Student{
		RollNo:   req.RollNo,
		Name:     req.Name,
		Division: req.Division,
		Email:    req.Email,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}

	a.publishStudentChange(r.Context(), attendance.StudentCreated, st, claims.AccountID)
	respondJSON(w, http.StatusCreated, st)
}

func (a *API) handleUpdateStudent(w http.ResponseWriter, r *http.Request) {
	claims, _ := IdentityFrom(r.Context())

	id, err := pathID(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}

	var req updateStudentRequest
	if err := decodeValid(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}

	st, err := a.attendance.UpdateStudent(r.Context(), id, attendance.StudentPatch{
		RollNo:   req.RollNo,
		Name:     req.Name,
		Division: req.Division,
		Email:    req.Email,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}

	a.publishStudentChange(r.Context(), attendance.StudentUpdated, st, claims.AccountID)
	respondJSON(w, http.StatusOK, st)
}

func (a *API) handleDeleteStudent(w http.ResponseWriter, r *http.Request) {
	claims, _ := IdentityFrom(r.Context())

	id, err := pathID(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}

	if err := a.attendance.DeleteStudent(r.Context(), id); err != nil {
		a.fail(w, r, err)
		return
	}

	a.publishStudentChange(r.Context(), attendance.StudentDeleted, attendance.Student{ID: id}, claims.AccountID)
	respondJSON(w, http.StatusOK, map[string]any{"message": "Student deleted"})
}

func (a *API) handleStudentAttendance(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}

	records, err := a.attendance.StudentAttendance(r.Context(), id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, records)
}
