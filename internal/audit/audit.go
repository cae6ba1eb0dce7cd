// Package audit records every change to patient appointment data as a
// structured log event.
package audit

import (
	"context"
	"crypto/sha256"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/wolfman30/patient-appointments/internal/appointments"
	"github.com/wolfman30/patient-appointments/pkg/logging"
)

// EventType identifies what happened to the appointment data.
type EventType string

const (
	// EventAppointmentCreated is logged when an appointment is added.
	EventAppointmentCreated EventType = "appointment.created"
	// EventAppointmentDeleted is logged when an appointment is removed.
	EventAppointmentDeleted EventType = "appointment.deleted"
	// EventCollectionReplaced is logged when an import replaces every record.
	EventCollectionReplaced EventType = "appointments.replaced"
	// EventCollectionExported is logged when records are written to a user-chosen file.
	EventCollectionExported EventType = "appointments.exported"
)

// Event is one immutable audit record. Phone numbers are only ever carried
// as a hash.
type Event struct {
	ID            string    `json:"id"`
	EventType     EventType `json:"event_type"`
	AppointmentID int       `json:"appointment_id,omitempty"`
	PhoneHash     string    `json:"phone_hash,omitempty"`
	Procedure     string    `json:"procedure,omitempty"`
	Path          string    `json:"path,omitempty"`
	Count         int       `json:"count,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Logger writes audit events to a structured logger.
type Logger struct {
	logger  *logging.Logger
	now     func() time.Time
	enabled bool
}

var _ appointments.Auditor = (*Logger)(nil)

// NewLogger creates an audit logger. When enabled is false every call is a no-op.
func NewLogger(logger *logging.Logger, enabled bool) *Logger {
	if logger == nil {
		logger = logging.Default()
	}
	return &Logger{
		logger:  logger.With("component", "audit"),
		now:     time.Now,
		enabled: enabled,
	}
}

// LogEvent fills in the id and timestamp when missing and emits the event.
func (l *Logger) LogEvent(ctx context.Context, event Event) Event {
	if l == nil || !l.enabled {
		return event
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = l.now().UTC()
	}

	args := []any{
		"audit_id", event.ID,
		"event_type", string(event.EventType),
		"created_at", event.CreatedAt,
	}
	if event.AppointmentID != 0 {
		args = append(args, "appointment_id", event.AppointmentID)
	}
	if event.PhoneHash != "" {
		args = append(args, "phone_hash", event.PhoneHash)
	}
	if event.Procedure != "" {
		args = append(args, "procedure", event.Procedure)
	}
	if event.Path != "" {
		args = append(args, "path", event.Path)
	}
	if event.EventType == EventCollectionReplaced || event.EventType == EventCollectionExported {
		args = append(args, "count", event.Count)
	}
	l.logger.InfoContext(ctx, "audit event", args...)
	return event
}

func (l *Logger) AppointmentCreated(ctx context.Context, appt appointments.Appointment) {
	l.LogEvent(ctx, Event{
		EventType:     EventAppointmentCreated,
		AppointmentID: appt.ID,
		PhoneHash:     HashPhone(appt.PhoneNumber),
		Procedure:     appt.Procedure.Code(),
	})
}

func (l *Logger) AppointmentDeleted(ctx context.Context, appt appointments.Appointment) {
	l.LogEvent(ctx, Event{
		EventType:     EventAppointmentDeleted,
		AppointmentID: appt.ID,
		PhoneHash:     HashPhone(appt.PhoneNumber),
		Procedure:     appt.Procedure.Code(),
	})
}

func (l *Logger) CollectionReplaced(ctx context.Context, count int) {
	l.LogEvent(ctx, Event{EventType: EventCollectionReplaced, Count: count})
}

func (l *Logger) CollectionExported(ctx context.Context, path string, count int) {
	l.LogEvent(ctx, Event{EventType: EventCollectionExported, Path: path, Count: count})
}

// HashPhone returns the hex-encoded SHA-256 of the digits in phone, so the
// same number hashes identically however it was punctuated.
func HashPhone(phone string) string {
	digits := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, phone)
	if digits == "" {
		return ""
	}
	h := sha256.Sum256([]byte(digits))
	return fmt.Sprintf("%x", h)
}
