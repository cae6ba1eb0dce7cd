package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/patient-appointments/internal/appointments"
	"github.com/wolfman30/patient-appointments/pkg/logging"
)

func newTestLogger(enabled bool) (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	l := NewLogger(logging.NewWithOptions(logging.Options{Output: &buf}), enabled)
	l.now = func() time.Time { return time.Date(2025, 1, 5, 9, 30, 0, 0, time.UTC) }
	return l, &buf
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestAppointmentCreatedHashesPhone(t *testing.T) {
	l, buf := newTestLogger(true)
	l.AppointmentCreated(context.Background(), appointments.Appointment{
		ID:          4,
		PatientName: "John Doe",
		Procedure:   appointments.ProcedureCT,
		PhoneNumber: "555-123-4567",
	})

	assert.NotContains(t, buf.String(), "555-123-4567")
	assert.NotContains(t, buf.String(), "John Doe")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	entry := lines[0]
	assert.Equal(t, "audit event", entry["msg"])
	assert.Equal(t, "audit", entry["component"])
	assert.Equal(t, string(EventAppointmentCreated), entry["event_type"])
	assert.Equal(t, float64(4), entry["appointment_id"])
	assert.Equal(t, "CT", entry["procedure"])
	assert.Equal(t, HashPhone("(555) 123 4567"), entry["phone_hash"])

	_, err := uuid.Parse(entry["audit_id"].(string))
	assert.NoError(t, err)
}

func TestCollectionEvents(t *testing.T) {
	l, buf := newTestLogger(true)
	ctx := context.Background()
	l.CollectionReplaced(ctx, 0)
	l.CollectionExported(ctx, "/tmp/backup.json", 3)
	l.AppointmentDeleted(ctx, appointments.Appointment{ID: 2, PhoneNumber: "+15551234567"})

	lines := decodeLines(t, buf)
	require.Len(t, lines, 3)
	assert.Equal(t, string(EventCollectionReplaced), lines[0]["event_type"])
	assert.Equal(t, float64(0), lines[0]["count"])
	assert.Equal(t, string(EventCollectionExported), lines[1]["event_type"])
	assert.Equal(t, "/tmp/backup.json", lines[1]["path"])
	assert.Equal(t, float64(3), lines[1]["count"])
	assert.Equal(t, string(EventAppointmentDeleted), lines[2]["event_type"])
	assert.NotContains(t, lines[2], "procedure")
}

func TestLogEventKeepsProvidedIDAndTime(t *testing.T) {
	l, _ := newTestLogger(true)
	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	event := l.LogEvent(context.Background(), Event{ID: "fixed", EventType: EventAppointmentCreated, CreatedAt: at})
	assert.Equal(t, "fixed", event.ID)
	assert.Equal(t, at, event.CreatedAt)

	event = l.LogEvent(context.Background(), Event{EventType: EventAppointmentCreated})
	assert.NotEmpty(t, event.ID)
	assert.Equal(t, time.Date(2025, 1, 5, 9, 30, 0, 0, time.UTC), event.CreatedAt)
}

func TestDisabledLoggerIsSilent(t *testing.T) {
	l, buf := newTestLogger(false)
	l.AppointmentCreated(context.Background(), appointments.Appointment{ID: 1, PhoneNumber: "5551234567"})
	assert.Zero(t, buf.Len())

	var nilLogger *Logger
	nilLogger.LogEvent(context.Background(), Event{EventType: EventAppointmentCreated})
}

func TestHashPhone(t *testing.T) {
	assert.Equal(t, HashPhone("555-123-4567"), HashPhone("(555) 123 4567"))
	assert.NotEqual(t, HashPhone("5551234567"), HashPhone("5551234568"))
	assert.Len(t, HashPhone("5551234567"), 64)
	assert.Empty(t, HashPhone("n/a"))
}
