package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"lectern/internal/domain"
	"lectern/internal/ports"
)

var (
	ErrStudentNameRequired = errors.New("student name is required")
	ErrTeacherNameRequired = errors.New("teacher name is required")
	ErrServerURLRequired   = errors.New("server URL is required")
)

// Reconciler resolves the local identity against the remote roster during
// onboarding and finishes first-run setup.
type Reconciler struct {
	directory ports.Directory
	store     ports.Store
	models    ports.ModelManager
	session   *SessionController
	sink      ports.EventSink
	logger    *zap.Logger
}

func NewReconciler(
	directory ports.Directory,
	store ports.Store,
	models ports.ModelManager,
	session *SessionController,
	sink ports.EventSink,
	logger *zap.Logger,
) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{
		directory: directory,
		store:     store,
		models:    models,
		session:   session,
		sink:      sink,
		logger:    logger,
	}
}

// Roster fetches the directory snapshot. Fetch failures and empty lists
// are not errors: the roster comes back with Available=false and the UI
// falls back to free-text entry.
func (r *Reconciler) Roster(ctx context.Context) domain.Roster {
	students, err := r.directory.Students(ctx)
	if err != nil {
		r.logger.Info("student roster unavailable", zap.Error(err))
		return domain.Roster{}
	}
	teachers, err := r.directory.Teachers(ctx)
	if err != nil {
		r.logger.Info("teacher roster unavailable", zap.Error(err))
		return domain.Roster{}
	}
	roster := domain.Roster{
		Students:  students,
		Teachers:  teachers,
		Available: len(students) > 0 || len(teachers) > 0,
	}
	return roster
}

// Complete finishes onboarding: validates the bound names, persists the
// identity, acquires and loads the model if needed, and auto-starts a
// recording session so the first capture is one tap away. A failure in
// model acquisition aborts with setup_complete left unset so the user is
// asked to retry.
func (r *Reconciler) Complete(ctx context.Context, studentName, teacherName, serverURL string) error {
	studentName = strings.TrimSpace(studentName)
	teacherName = strings.TrimSpace(teacherName)
	serverURL = strings.TrimSpace(serverURL)

	if studentName == "" {
		return ErrStudentNameRequired
	}
	if teacherName == "" {
		return ErrTeacherNameRequired
	}

	existing, err := r.store.Identity()
	if err != nil {
		return fmt.Errorf("read identity: %w", err)
	}
	if serverURL == "" {
		// Re-selections reuse the previously saved URL; only the very
		// first setup has nothing to fall back to.
		if existing.ServerURL == "" {
			return ErrServerURLRequired
		}
		serverURL = existing.ServerURL
	}

	identity := domain.Identity{
		StudentID:   SlugifyStudentID(studentName),
		StudentName: studentName,
		TeacherName: teacherName,
		ServerURL:   serverURL,
	}
	if err := r.store.SaveIdentity(identity); err != nil {
		return fmt.Errorf("save identity: %w", err)
	}

	if !r.models.Loaded() {
		if !r.models.CheckModelExists() {
			if err := r.models.DownloadModel(ctx); err != nil {
				r.sink.BackendError(domain.ErrorCodeModel, err.Error())
				return fmt.Errorf("download model: %w", err)
			}
		}
		if err := r.models.LoadModel(ctx); err != nil {
			r.sink.BackendError(domain.ErrorCodeModel, err.Error())
			return fmt.Errorf("load model: %w", err)
		}
	}

	if err := r.store.MarkSetupComplete(); err != nil {
		return fmt.Errorf("mark setup complete: %w", err)
	}

	// Classroom convenience: capture begins the moment setup finishes.
	if err := r.session.Start(ctx); err != nil {
		r.logger.Warn("auto-start after onboarding failed", zap.Error(err))
		r.sink.BackendError(domain.ErrorCodeRecording, err.Error())
	}

	r.logger.Info("onboarding complete", zap.String("student", identity.StudentID))
	return nil
}

// SlugifyStudentID derives a stable student id from the display name:
// lowercase alphanumeric words joined by dashes.
func SlugifyStudentID(name string) string {
	lowered := strings.ToLower(name)
	var cleaned strings.Builder
	for _, r := range lowered {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' {
			cleaned.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(cleaned.String()), "-")
}
