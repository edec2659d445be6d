package api

import (
	"context"

	"rollcall/pkg/bus"
	"rollcall/services/attendance"
)

// publish is best effort: a failed publish never fails the request.
func (a *API) publish(ctx context.Context, subject string, payload any) {
	if a.publisher == nil || subject == "" {
		return
	}
	if err := a.publisher.Publish(ctx, subject, payload); err != nil {
		a.log.Warn().Err(err).Str("subject", subject).Msg("publish event")
	}
}

func (a *API) publishStudentChange(ctx context.Context, action string, st attendance.Student, by int64) {
	a.publish(ctx, bus.StudentsChangedSubject, attendance.StudentsChanged{
		Action:    action,
		StudentID: st.ID,
		Division:  st.Division,
		ChangedBy: by,
		ChangedAt: a.now().UTC(),
	})
}
