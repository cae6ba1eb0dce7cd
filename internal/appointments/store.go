package appointments

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/wolfman30/patient-appointments/pkg/logging"
)

// Gateway reads and writes the whole collection as one document.
type Gateway interface {
	Load(ctx context.Context, path string) ([]Appointment, error)
	Save(ctx context.Context, path string, records []Appointment) error
	ImportFrom(ctx context.Context, path string) ([]Appointment, error)
}

// Recorder receives operation outcomes for metrics.
type Recorder interface {
	ObserveOperation(operation, result string)
	SetRecordCount(n int)
	ObserveFlush(seconds float64, ok bool)
}

// Auditor is told about every change to patient data.
type Auditor interface {
	AppointmentCreated(ctx context.Context, appt Appointment)
	AppointmentDeleted(ctx context.Context, appt Appointment)
	CollectionReplaced(ctx context.Context, count int)
	CollectionExported(ctx context.Context, path string, count int)
}

// Operation outcome labels reported to the Recorder.
const (
	ResultOK         = "ok"
	ResultInvalid    = "invalid"
	ResultNotFound   = "not_found"
	ResultSaveFailed = "save_failed"
	ResultError      = "error"
)

// Store owns the appointment collection. It is not safe for concurrent use;
// exactly one caller drives it.
type Store struct {
	gateway  Gateway
	path     string
	records  []Appointment
	now      func() time.Time
	location *time.Location
	logger   *logging.Logger
	recorder Recorder
	auditor  Auditor
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for created_at and default dates.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLocation sets the zone created_at is rendered in.
func WithLocation(loc *time.Location) Option {
	return func(s *Store) {
		if loc != nil {
			s.location = loc
		}
	}
}

// WithLogger sets the store logger.
func WithLogger(logger *logging.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRecorder attaches operation metrics.
func WithRecorder(r Recorder) Option {
	return func(s *Store) {
		if r != nil {
			s.recorder = r
		}
	}
}

// WithAuditor attaches an audit trail.
func WithAuditor(a Auditor) Option {
	return func(s *Store) {
		if a != nil {
			s.auditor = a
		}
	}
}

// NewStore creates an empty store that flushes to path through gateway after
// every mutation. A nil gateway keeps the collection in memory only.
func NewStore(gateway Gateway, path string, opts ...Option) *Store {
	s := &Store{
		gateway:  gateway,
		path:     path,
		now:      time.Now,
		location: time.Local,
		logger:   logging.Default(),
		recorder: nopRecorder{},
		auditor:  nopAuditor{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the default document the store flushes to.
func (s *Store) Path() string { return s.path }

// Load replaces the collection with the default document. A missing document
// leaves the store empty. On failure the store is emptied and the error is
// returned so the caller can decide whether to continue.
func (s *Store) Load(ctx context.Context) error {
	if s.gateway == nil {
		return nil
	}
	records, err := s.gateway.Load(ctx, s.path)
	if err != nil {
		s.records = nil
		s.recorder.SetRecordCount(0)
		s.recorder.ObserveOperation("load", ResultError)
		s.logger.Warn("failed to load appointments, starting empty", "path", s.path, "error", err)
		return err
	}
	s.records = records
	s.recorder.SetRecordCount(len(s.records))
	s.recorder.ObserveOperation("load", ResultOK)
	s.logger.Info("appointments loaded", "path", s.path, "count", len(s.records))
	return nil
}

// Add validates req, assigns the next id and appends the new appointment.
// Validation failures return a *ValidationError and change nothing. If the
// record is stored but the flush fails, the record is returned together with
// the save error; the in-memory collection keeps it.
func (s *Store) Add(ctx context.Context, req AddRequest) (Appointment, error) {
	req = req.trimmed()
	procedure, err := validateAddRequest(req)
	if err != nil {
		s.recorder.ObserveOperation("add", ResultInvalid)
		s.logger.Debug("appointment rejected", "error", err)
		return Appointment{}, err
	}

	now := s.now().In(s.location)
	date := req.AppointmentDate
	if date.IsZero() {
		date = now
	}

	appt := Appointment{
		ID:              s.nextID(),
		PatientName:     req.PatientName,
		Procedure:       procedure,
		PhoneNumber:     req.PhoneNumber,
		Clinic:          req.Clinic,
		AppointmentDate: date.Format(DateLayout),
		CreatedAt:       now.Format(TimestampLayout),
	}
	s.records = append(s.records, appt)
	s.recorder.SetRecordCount(len(s.records))
	s.auditor.AppointmentCreated(ctx, appt)
	s.logger.Info("appointment added", "appointment_id", appt.ID, "procedure", appt.Procedure.Code())

	if err := s.flush(ctx); err != nil {
		s.recorder.ObserveOperation("add", ResultSaveFailed)
		return appt, err
	}
	s.recorder.ObserveOperation("add", ResultOK)
	return appt, nil
}

// nextID is one past the largest id held, so an id freed by a delete is
// never handed to a new record while another record still carries it.
func (s *Store) nextID() int {
	highest := 0
	for _, r := range s.records {
		highest = max(highest, r.ID)
	}
	return highest + 1
}

// List returns a copy of the collection in insertion order.
func (s *Store) List() []Appointment {
	out := make([]Appointment, len(s.records))
	copy(out, s.records)
	return out
}

// Len returns the number of appointments held.
func (s *Store) Len() int { return len(s.records) }

// Get returns the appointment with the given id.
func (s *Store) Get(id int) (Appointment, bool) {
	i := s.indexOf(id)
	if i < 0 {
		return Appointment{}, false
	}
	return s.records[i], true
}

func (s *Store) indexOf(id int) int {
	return slices.IndexFunc(s.records, func(a Appointment) bool { return a.ID == id })
}

// Delete removes the appointment with the given id. Remaining ids are not
// renumbered.
func (s *Store) Delete(ctx context.Context, id int) error {
	i := s.indexOf(id)
	if i < 0 {
		s.recorder.ObserveOperation("delete", ResultNotFound)
		return &NotFoundError{ID: id}
	}
	removed := s.records[i]
	s.records = slices.Delete(s.records, i, i+1)
	s.recorder.SetRecordCount(len(s.records))
	s.auditor.AppointmentDeleted(ctx, removed)
	s.logger.Info("appointment deleted", "appointment_id", id)

	if err := s.flush(ctx); err != nil {
		s.recorder.ObserveOperation("delete", ResultSaveFailed)
		return err
	}
	s.recorder.ObserveOperation("delete", ResultOK)
	return nil
}

// Search returns, in insertion order, every appointment whose patient name
// contains term case-insensitively or whose phone number contains the
// lower-cased term verbatim. No match yields an empty slice.
func (s *Store) Search(term string) ([]Appointment, error) {
	lower := cases.Lower(language.Und)
	term = lower.String(strings.TrimSpace(term))
	if term == "" {
		s.recorder.ObserveOperation("search", ResultInvalid)
		return nil, ErrEmptySearchTerm
	}

	results := []Appointment{}
	for _, appt := range s.records {
		if strings.Contains(lower.String(appt.PatientName), term) || strings.Contains(appt.PhoneNumber, term) {
			results = append(results, appt)
		}
	}
	s.recorder.ObserveOperation("search", ResultOK)
	return results, nil
}

// ReplaceAll swaps the whole collection for records without validating
// individual fields. Records must carry distinct ids; otherwise nothing
// changes and ErrDuplicateID is returned.
func (s *Store) ReplaceAll(ctx context.Context, records []Appointment) error {
	seen := make(map[int]struct{}, len(records))
	for _, r := range records {
		if _, dup := seen[r.ID]; dup {
			s.recorder.ObserveOperation("replace_all", ResultInvalid)
			return ErrDuplicateID
		}
		seen[r.ID] = struct{}{}
	}

	s.records = make([]Appointment, len(records))
	copy(s.records, records)
	s.recorder.SetRecordCount(len(s.records))
	s.auditor.CollectionReplaced(ctx, len(s.records))
	s.logger.Info("appointments replaced", "count", len(s.records))

	if err := s.flush(ctx); err != nil {
		s.recorder.ObserveOperation("replace_all", ResultSaveFailed)
		return err
	}
	s.recorder.ObserveOperation("replace_all", ResultOK)
	return nil
}

// Export writes the current collection to a user-chosen path.
func (s *Store) Export(ctx context.Context, path string) error {
	if len(s.records) == 0 {
		s.recorder.ObserveOperation("export", ResultInvalid)
		return ErrNothingToExport
	}
	if s.gateway == nil {
		return errors.New("appointments: no persistence gateway configured")
	}
	if err := s.gateway.Save(ctx, path, s.List()); err != nil {
		s.recorder.ObserveOperation("export", ResultSaveFailed)
		s.logger.Error("failed to export appointments", "path", path, "error", err)
		return err
	}
	s.auditor.CollectionExported(ctx, path, len(s.records))
	s.recorder.ObserveOperation("export", ResultOK)
	s.logger.Info("appointments exported", "path", path, "count", len(s.records))
	return nil
}

// Import reads a document without touching the store. The caller confirms
// with the user and then hands the result to ReplaceAll.
func (s *Store) Import(ctx context.Context, path string) ([]Appointment, error) {
	if s.gateway == nil {
		return nil, errors.New("appointments: no persistence gateway configured")
	}
	records, err := s.gateway.ImportFrom(ctx, path)
	if err != nil {
		s.recorder.ObserveOperation("import", ResultError)
		s.logger.Error("failed to import appointments", "path", path, "error", err)
		return nil, err
	}
	s.recorder.ObserveOperation("import", ResultOK)
	return records, nil
}

func (s *Store) flush(ctx context.Context) error {
	if s.gateway == nil {
		return nil
	}
	start := time.Now()
	err := s.gateway.Save(ctx, s.path, s.records)
	s.recorder.ObserveFlush(time.Since(start).Seconds(), err == nil)
	if err != nil {
		s.logger.Error("failed to save appointments, changes kept in memory", "path", s.path, "error", err)
		return err
	}
	return nil
}

type nopRecorder struct{}

func (nopRecorder) ObserveOperation(string, string) {}
func (nopRecorder) SetRecordCount(int) {}
func (nopRecorder) ObserveFlush(float64, bool) {}

type nopAuditor struct{}

func (nopAuditor) AppointmentCreated(context.Context, Appointment) {}
func (nopAuditor) AppointmentDeleted(context.Context, Appointment) {}
func (nopAuditor) CollectionReplaced(context.Context, int) {}
func (nopAuditor) CollectionExported(context.Context, string, int) {}
