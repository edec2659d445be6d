package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"rollcall/pkg/token"
	"rollcall/services/attendance"
	"rollcall/services/auth"
)

const (
	tokenCookie     = "token"
	defaultTokenTTL = 24 * time.Hour
)

// Authenticator is the account and session surface the handlers need.
type Authenticator interface {
	Register(ctx context.Context, in auth.RegisterInput) (auth.Account, error)
	Login(ctx context.Context, username, password string) (auth.LoginResult, error)
	Logout(ctx context.Context, raw string) error
	Authenticate(ctx context.Context, raw string) (token.Claims, error)
	Account(ctx context.Context, id int64) (auth.Account, error)
}

// Attendance is the roster and attendance storage used by the handlers.
type Attendance interface {
	Submit(ctx context.Context, sub attendance.Submission) error
	Sheet(ctx context.Context, date, division string, teacherID int64) ([]attendance.SheetRow, error)
	Divisions(ctx context.Context, teacherID int64) ([]string, error)
	History(ctx context.Context, teacherID int64) ([]attendance.HistoryRow, error)

	ListStudents(ctx context.Context, division string) ([]attendance.Student, error)
	CreateStudent(ctx context.Context, st attendance.Student) (attendance.Student, error)
	UpdateStudent(ctx context.Context, id int64, patch attendance.StudentPatch) (attendance.Student, error)
	DeleteStudent(ctx context.Context, id int64) error
	StudentAttendance(ctx context.Context, id int64) ([]attendance.StudentRecord, error)

	Ping(ctx context.Context) error
}

// Exporter uploads history exports.
type Exporter interface {
	Export(ctx context.Context, teacherID int64) (attendance.Export, error)
}

// Publisher emits domain events. It is optional.
type Publisher interface {
	Publish(ctx context.Context, subject string, v any) error
}

// Config controls cookie and CORS behaviour for the API handlers.
type Config struct {
	TokenTTL       time.Duration
	CookieSecure   bool
	CookieDomain   string
	AllowedOrigins []string
}

// Options carries the optional collaborators of an API.
type Options struct {
	Exporter   Exporter
	Publisher  Publisher
	Metrics    *Metrics
	Gatherer   prometheus.Gatherer
	Middleware []func(http.Handler) http.Handler
	Logger     zerolog.Logger
}

// API wires dependencies and configuration for HTTP handlers.
type API struct {
	auth       Authenticator
	attendance Attendance
	exporter   Exporter
	publisher  Publisher
	metrics    *Metrics
	gatherer   prometheus.Gatherer
	middleware []func(http.Handler) http.Handler
	config     Config
	log        zerolog.Logger
	now        func() time.Time
}

// New initialises the API layer with defaults applied to cfg.
func New(authn Authenticator, store Attendance, cfg Config, opts Options) (*API, error) {
	if authn == nil {
		return nil, errors.New("authenticator is required")
	}
	if store == nil {
		return nil, errors.New("attendance store is required")
	}

	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = defaultTokenTTL
	}

	metrics, gatherer := opts.Metrics, opts.Gatherer
	if metrics == nil {
		reg := prometheus.NewRegistry()
		metrics = NewMetrics(reg)
		if gatherer == nil {
			gatherer = reg
		}
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	return &API{
		auth:       authn,
		attendance: store,
		exporter:   opts.Exporter,
		publisher:  opts.Publisher,
		metrics:    metrics,
		gatherer:   gatherer,
		middleware: opts.Middleware,
		config:     cfg,
		log:        opts.Logger.With().Str("component", "api").Logger(),
		now:        time.Now,
	}, nil
}
