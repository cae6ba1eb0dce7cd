// Command appointments is a terminal front end for the patient appointment
// store. It loads the default document, runs one subcommand and exits.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/wolfman30/patient-appointments/internal/appointments"
	"github.com/wolfman30/patient-appointments/internal/audit"
	appconfig "github.com/wolfman30/patient-appointments/internal/config"
	"github.com/wolfman30/patient-appointments/internal/observability/metrics"
	"github.com/wolfman30/patient-appointments/internal/persistence"
	"github.com/wolfman30/patient-appointments/pkg/logging"
)

const usage = `usage: appointments <command> [flags]

commands:
  add         -name -procedure -phone -clinic [-date YYYY-MM-DD]
  list
  delete      -id [-yes]
  search      -term
  export      -path
  import      -path [-yes]
  procedures
`

type command struct {
	run      func(a *app, args []string) error
	mutating bool
}

var commands = map[string]command{
	"add":        {run: (*app).add, mutating: true},
	"list":       {run: (*app).list},
	"delete":     {run: (*app).delete, mutating: true},
	"search":     {run: (*app).search},
	"export":     {run: (*app).export},
	"import":     {run: (*app).importData, mutating: true},
	"procedures": {run: (*app).procedures},
}

type app struct {
	store    *appointments.Store
	logger   *logging.Logger
	in       *bufio.Reader
	out      io.Writer
	location *time.Location
	now      func() time.Time
}

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}
	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", args[0], usage)
		return 2
	}

	if err := appconfig.LoadDotEnv(os.Getenv("DOTENV_PATH")); err != nil {
		fmt.Fprintf(stderr, "failed to read .env: %v\n", err)
		return 1
	}
	cfg := appconfig.Load()
	logger := logging.NewWithOptions(logging.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Output: stderr,
	})

	registry := prometheus.NewRegistry()
	location := loadLocation(cfg.Timezone, logger)
	store := appointments.NewStore(
		persistence.NewJSONFile(logger),
		cfg.DataFile,
		appointments.WithLogger(logger),
		appointments.WithLocation(location),
		appointments.WithRecorder(metrics.NewStoreMetrics(registry)),
		appointments.WithAuditor(audit.NewLogger(logger, cfg.AuditEnabled)),
	)
	defer logOperationSummary(logger, registry)

	if err := store.Load(ctx); err != nil {
		fmt.Fprintf(stderr, "warning: could not load %s: %v\n", cfg.DataFile, err)
		// Flushing now would overwrite the unreadable document.
		if cmd.mutating {
			fmt.Fprintln(stderr, "refusing to modify appointments until the document is repaired or moved aside")
			return 1
		}
	}

	a := &app{
		store:    store,
		logger:   logger,
		in:       bufio.NewReader(stdin),
		out:      stdout,
		location: location,
		now:      time.Now,
	}
	if err := cmd.run(a, args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 2
		}
		fmt.Fprintf(stderr, "error: %s\n", describe(err))
		return 1
	}
	return 0
}

func (a *app) add(args []string) error {
	fs := newFlagSet("add")
	name := fs.String("name", "", "patient name")
	procedure := fs.String("procedure", string(appointments.ProcedureUnselected), "procedure label or code (CT, DX, US, MG)")
	phone := fs.String("phone", "", "phone number")
	clinic := fs.String("clinic", "", "clinic or hospital")
	date := fs.String("date", "", "appointment date YYYY-MM-DD (default today)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	day, err := a.appointmentDate(*date)
	if err != nil {
		return err
	}

	appt, err := a.store.Add(context.Background(), appointments.AddRequest{
		PatientName:     *name,
		Procedure:       *procedure,
		PhoneNumber:     *phone,
		Clinic:          *clinic,
		AppointmentDate: day,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Appointment saved successfully! ID: %d\n", appt.ID)
	return nil
}

// appointmentDate parses raw as a calendar date that is today or later.
func (a *app) appointmentDate(raw string) (time.Time, error) {
	today := a.now().In(a.location)
	today = time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, a.location)
	if strings.TrimSpace(raw) == "" {
		return today, nil
	}
	day, err := time.ParseInLocation(appointments.DateLayout, strings.TrimSpace(raw), a.location)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", raw)
	}
	if day.Before(today) {
		return time.Time{}, fmt.Errorf("appointment date %s is in the past", day.Format(appointments.DateLayout))
	}
	return day, nil
}

func (a *app) list(args []string) error {
	if err := newFlagSet("list").Parse(args); err != nil {
		return err
	}
	records := a.store.List()
	if len(records) == 0 {
		fmt.Fprintln(a.out, "No appointments.")
		return nil
	}
	return a.printTable(records)
}

func (a *app) delete(args []string) error {
	fs := newFlagSet("delete")
	id := fs.Int("id", 0, "appointment id")
	yes := fs.Bool("yes", false, "skip confirmation")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id <= 0 {
		return errors.New("-id is required")
	}
	if _, ok := a.store.Get(*id); !ok {
		return &appointments.NotFoundError{ID: *id}
	}
	if !*yes && !a.confirm(fmt.Sprintf("Are you sure you want to delete appointment %d?", *id)) {
		fmt.Fprintln(a.out, "Cancelled.")
		return nil
	}
	if err := a.store.Delete(context.Background(), *id); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Appointment deleted successfully!")
	return nil
}

func (a *app) search(args []string) error {
	fs := newFlagSet("search")
	term := fs.String("term", "", "name or phone fragment")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *term == "" && fs.NArg() > 0 {
		*term = strings.Join(fs.Args(), " ")
	}

	results, err := a.store.Search(*term)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Fprintln(a.out, "No matching appointments found!")
		return nil
	}
	fmt.Fprintf(a.out, "Found %d matching appointment(s)!\n", len(results))
	return a.printTable(results)
}

func (a *app) export(args []string) error {
	fs := newFlagSet("export")
	path := fs.String("path", "", "destination file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*path) == "" {
		return errors.New("-path is required")
	}
	if err := a.store.Export(context.Background(), *path); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Data exported to %s\n", *path)
	return nil
}

func (a *app) importData(args []string) error {
	fs := newFlagSet("import")
	path := fs.String("path", "", "source file")
	yes := fs.Bool("yes", false, "skip confirmation")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*path) == "" {
		return errors.New("-path is required")
	}

	ctx := context.Background()
	records, err := a.store.Import(ctx, *path)
	if err != nil {
		return err
	}
	if !*yes && !a.confirm("This will replace all current data. Continue?") {
		fmt.Fprintln(a.out, "Cancelled.")
		return nil
	}
	if err := a.store.ReplaceAll(ctx, records); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Data imported successfully! (%d appointments)\n", len(records))
	return nil
}

func (a *app) procedures(args []string) error {
	if err := newFlagSet("procedures").Parse(args); err != nil {
		return err
	}
	for _, p := range appointments.Procedures() {
		fmt.Fprintf(a.out, "%s\t%s\n", p.Code(), p)
	}
	return nil
}

func (a *app) confirm(question string) bool {
	fmt.Fprintf(a.out, "%s [y/N]: ", question)
	answer, err := a.in.ReadString('\n')
	if err != nil && answer == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	}
	return false
}

func (a *app) printTable(records []appointments.Appointment) error {
	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tPROCEDURE\tPHONE\tCLINIC\tDATE")
	for _, r := range records {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n", r.ID, r.PatientName, r.Procedure, r.PhoneNumber, r.Clinic, r.AppointmentDate)
	}
	return w.Flush()
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

// describe turns store errors into the messages an operator should see.
func describe(err error) string {
	var (
		saveErr *persistence.SaveError
		loadErr *persistence.LoadError
	)
	switch {
	case errors.Is(err, appointments.ErrMissingFields):
		return "please fill in all fields and select a procedure"
	case errors.Is(err, appointments.ErrUnknownProcedure):
		return "unknown procedure; run 'appointments procedures' for the list"
	case errors.Is(err, appointments.ErrInvalidPhone):
		return "please enter a valid phone number"
	case errors.Is(err, appointments.ErrNotFound):
		return err.Error()
	case errors.Is(err, appointments.ErrEmptySearchTerm):
		return "please enter a search term"
	case errors.Is(err, appointments.ErrNothingToExport):
		return "no appointments to export"
	case errors.As(err, &saveErr):
		return fmt.Sprintf("failed to save data to %s: %v", saveErr.Path, saveErr.Err)
	case errors.As(err, &loadErr):
		return fmt.Sprintf("failed to read %s: %v", loadErr.Path, loadErr.Err)
	}
	return err.Error()
}

func loadLocation(name string, logger *logging.Logger) *time.Location {
	if name == "" || strings.EqualFold(name, "local") {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		logger.Warn("unknown timezone, using local time", "timezone", name, "error", err)
		return time.Local
	}
	return loc
}

func logOperationSummary(logger *logging.Logger, gatherer prometheus.Gatherer) {
	counts, err := metrics.OperationCounts(gatherer)
	if err != nil {
		logger.Debug("failed to gather store metrics", "error", err)
		return
	}
	logger.Debug("store operation summary", "operations", counts)
}
