// Package persistence reads and writes the appointment collection as a
// single JSON document on local disk.
package persistence

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/patient-appointments/internal/appointments"
	"github.com/wolfman30/patient-appointments/pkg/logging"
)

var tracer = otel.Tracer("appointments.internal.persistence")

// documentMode is applied to written documents; temp files start at 0600.
const documentMode fs.FileMode = 0o644

// JSONFile is the file-backed gateway. Every Save rewrites the whole
// document through a temp file and rename, so readers never observe a
// partially written file.
type JSONFile struct {
	logger *logging.Logger
}

var _ appointments.Gateway = (*JSONFile)(nil)

// NewJSONFile creates a gateway. A nil logger falls back to logging.Default().
func NewJSONFile(logger *logging.Logger) *JSONFile {
	if logger == nil {
		logger = logging.Default()
	}
	return &JSONFile{logger: logger}
}

// Load reads the document at path. A missing file is the first-run state and
// yields an empty collection.
func (g *JSONFile) Load(ctx context.Context, path string) (records []appointments.Appointment, err error) {
	ctx, span := tracer.Start(ctx, "persistence.load")
	defer func() { endSpan(span, len(records), err) }()
	span.SetAttributes(attribute.String("appointments.path", path))

	records, err = g.read(ctx, path)
	if errors.Is(err, fs.ErrNotExist) {
		g.logger.Debug("appointments document absent, starting empty", "path", path)
		return []appointments.Appointment{}, nil
	}
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	return records, nil
}

// ImportFrom reads a user-chosen document. Unlike Load, the file must exist.
func (g *JSONFile) ImportFrom(ctx context.Context, path string) (records []appointments.Appointment, err error) {
	ctx, span := tracer.Start(ctx, "persistence.import")
	defer func() { endSpan(span, len(records), err) }()
	span.SetAttributes(attribute.String("appointments.path", path))

	records, err = g.read(ctx, path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	g.logger.Info("appointments document read for import", "path", path, "count", len(records))
	return records, nil
}

// Save writes records as an indented JSON array, replacing path atomically.
func (g *JSONFile) Save(ctx context.Context, path string, records []appointments.Appointment) (err error) {
	_, span := tracer.Start(ctx, "persistence.save")
	defer func() { endSpan(span, len(records), err) }()
	span.SetAttributes(attribute.String("appointments.path", path))

	if err := ctx.Err(); err != nil {
		return &SaveError{Path: path, Err: err}
	}
	data, err := encode(records)
	if err != nil {
		return &SaveError{Path: path, Err: err}
	}
	if err := writeAtomic(path, data); err != nil {
		return &SaveError{Path: path, Err: err}
	}
	g.logger.Debug("appointments document saved", "path", path, "count", len(records), "bytes", len(data))
	return nil
}

func (g *JSONFile) read(ctx context.Context, path string) ([]appointments.Appointment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return decode(data)
}

func encode(records []appointments.Appointment) ([]byte, error) {
	if records == nil {
		records = []appointments.Appointment{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode appointments: %w", err)
	}
	return append(data, '\n'), nil
}

// decode accepts only a top-level array (or null) of appointment objects with
// positive, distinct ids.
func decode(data []byte) ([]appointments.Appointment, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	var records []appointments.Appointment
	if err := dec.Decode(&records); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedDocument, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data after array", ErrMalformedDocument)
	}

	seen := make(map[int]struct{}, len(records))
	for i, r := range records {
		if r.ID <= 0 {
			return nil, fmt.Errorf("%w: element %d has no positive id", ErrMalformedDocument, i)
		}
		if _, dup := seen[r.ID]; dup {
			return nil, fmt.Errorf("%w: id %d appears more than once", ErrMalformedDocument, r.ID)
		}
		seen[r.ID] = struct{}{}
	}
	if records == nil {
		records = []appointments.Appointment{}
	}
	return records, nil
}

func writeAtomic(path string, data []byte) (err error) {
	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	tmp, err := os.CreateTemp(dir, "."+base+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Chmod(tmpName, documentMode); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

func endSpan(span trace.Span, count int, err error) {
	span.SetAttributes(attribute.Int("appointments.count", count))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
