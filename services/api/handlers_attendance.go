package api

import (
	"net/http"
	"strings"

	"rollcall/pkg/bus"
	"rollcall/services/attendance"
)

type submitRequest struct {
	Date          string        `json:"date" validate:"required"`
	ProfessorName string        `json:"professor_name"`
	Division      string        `json:"division" validate:"required"`
	Entries       []entryRecord `json:"attendance_data" validate:"required,dive"`
}

type entryRecord struct {
	StudentID int64  `json:"sr_no" validate:"required"`
	Status    string `json:"status" validate:"required"`
}

func (a *API) handleSheet(w http.ResponseWriter, r *http.Request) {
	claims, ok := IdentityFrom(r.Context())
	if !ok {
		respondUnauthenticated(w)
		return
	}

	q := r.URL.Query()
	rows, err := a.attendance.Sheet(r.Context(), q.Get("date"), strings.TrimSpace(q.Get("division")), claims.AccountID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, rows)
}

func (a *API) handleSubmit(w http.ResponseWriter, r *http.Request) {
	claims, ok := IdentityFrom(r.Context())
	if !ok {
		respondUnauthenticated(w)
		return
	}

	var req submitRequest
	if err := decodeValid(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}

	recorder := strings.TrimSpace(req.ProfessorName)
	if recorder == "" {
		recorder = claims.FullName
	}
	sub := attendance.Submission{
		Date:         strings.TrimSpace(req.Date),
		Division:     strings.TrimSpace(req.Division),
		TeacherID:    claims.AccountID,
		RecorderName: recorder,
		Entries:      make([]attendance.Entry, 0, len(req.Entries)),
	}
	for _, e := range req.Entries {
		sub.Entries = append(sub.Entries, attendance.Entry{
			StudentID: e.StudentID,
			Status:    strings.ToLower(strings.TrimSpace(e.Status)),
		})
	}

	if err := a.attendance.Submit(r.Context(), sub); err != nil {
		a.fail(w, r, err)
		return
	}
	a.metrics.submitted()
	a.publish(r.Context(), bus.AttendanceSubmittedSubject, attendance.NewSubmitted(sub, a.now()))

	respondJSON(w, http.StatusOK, map[string]any{
		"message": "Attendance saved successfully",
		"records": len(sub.Entries),
	})
}

func (a *API) handleDivisions(w http.ResponseWriter, r *http.Request) {
	claims, ok := IdentityFrom(r.Context())
	if !ok {
		respondUnauthenticated(w)
		return
	}

	divisions, err := a.attendance.Divisions(r.Context(), claims.AccountID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, divisions)
}

func (a *API) handleHistory(w http.ResponseWriter, r *http.Request) {
	claims, ok := IdentityFrom(r.Context())
	if !ok {
		respondUnauthenticated(w)
		return
	}

	rows, err := a.attendance.History(r.Context(), claims.AccountID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, rows)
}

func (a *API) handleExport(w http.ResponseWriter, r *http.Request) {
	claims, ok := IdentityFrom(r.Context())
	if !ok {
		respondUnauthenticated(w)
		return
	}
	if a.exporter == nil {
		a.fail(w, r, attendance.ErrExportUnavailable)
		return
	}

	out, err := a.exporter.Export(r.Context(), claims.AccountID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, out)
}
