package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/patient-appointments/internal/appointments"
)

type cli struct {
	t        *testing.T
	dataFile string
}

func newCLI(t *testing.T) *cli {
	t.Helper()
	dir := t.TempDir()
	c := &cli{t: t, dataFile: filepath.Join(dir, "appointments.json")}
	t.Setenv("APPOINTMENTS_FILE", c.dataFile)
	t.Setenv("DOTENV_PATH", filepath.Join(dir, "absent.env"))
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("APPOINTMENTS_TZ", "UTC")
	return c
}

func (c *cli) run(stdin string, args ...string) (int, string, string) {
	c.t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, strings.NewReader(stdin), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func futureDate(days int) string {
	return time.Now().UTC().AddDate(0, 0, days).Format(appointments.DateLayout)
}

func (c *cli) addJohn() {
	c.t.Helper()
	code, out, errOut := c.run("", "add", "-name", "John Doe", "-procedure", "X-ray (DX)", "-phone", "555-123-4567", "-clinic", "City Clinic", "-date", futureDate(3))
	require.Equal(c.t, 0, code, errOut)
	require.Contains(c.t, out, "ID: 1")
}

func TestUsage(t *testing.T) {
	newCLI(t)
	var stdout, stderr bytes.Buffer
	assert.Equal(t, 2, run(context.Background(), nil, strings.NewReader(""), &stdout, &stderr))
	assert.Contains(t, stderr.String(), "usage: appointments")

	code, _, errOut := newCLI(t).run("", "reschedule")
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, `unknown command "reschedule"`)
}

func TestAddListAndPersist(t *testing.T) {
	c := newCLI(t)
	c.addJohn()

	code, out, _ := c.run("", "list")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "John Doe")
	assert.Contains(t, out, "X-ray (DX)")

	data, err := os.ReadFile(c.dataFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"patient_name": "John Doe"`)
}

func TestAddRejectsInvalidInput(t *testing.T) {
	c := newCLI(t)
	c.addJohn()

	code, _, errOut := c.run("", "add", "-name", "Jane Roe", "-procedure", "US", "-phone", "1234", "-clinic", "City Clinic", "-date", futureDate(4))
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "valid phone number")

	code, _, errOut = c.run("", "add", "-name", "Jane Roe", "-phone", "5551234567", "-clinic", "City Clinic")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "select a procedure")

	code, _, errOut = c.run("", "add", "-name", "Jane Roe", "-procedure", "US", "-phone", "5551234567", "-clinic", "City Clinic", "-date", "2001-01-01")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "in the past")

	_, out, _ := c.run("", "list")
	assert.NotContains(t, out, "Jane Roe")
}

func TestSearch(t *testing.T) {
	c := newCLI(t)
	c.addJohn()

	code, out, _ := c.run("", "search", "-term", "JOHN")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "Found 1 matching appointment(s)!")

	code, out, _ = c.run("", "search", "-term", "999")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "No matching appointments found!")

	code, _, errOut := c.run("", "search", "-term", "  ")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "search term")
}

func TestDeleteConfirmation(t *testing.T) {
	c := newCLI(t)
	c.addJohn()

	code, out, _ := c.run("n\n", "delete", "-id", "1")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "Cancelled.")

	code, out, _ = c.run("y\n", "delete", "-id", "1")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "deleted successfully")

	code, _, errOut := c.run("", "delete", "-id", "1", "-yes")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "appointment 1 not found")
}

func TestExportImport(t *testing.T) {
	c := newCLI(t)
	exportPath := filepath.Join(t.TempDir(), "backup.json")

	code, _, errOut := c.run("", "export", "-path", exportPath)
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "no appointments to export")

	c.addJohn()
	code, out, _ := c.run("", "export", "-path", exportPath)
	require.Equal(t, 0, code)
	assert.Contains(t, out, "Data exported to "+exportPath)

	code, _, _ = c.run("", "add", "-name", "Jane Roe", "-procedure", "US", "-phone", "5559876543", "-clinic", "City Clinic", "-date", futureDate(5))
	require.Equal(t, 0, code)

	code, out, _ = c.run("no\n", "import", "-path", exportPath)
	require.Equal(t, 0, code)
	assert.Contains(t, out, "Cancelled.")
	_, out, _ = c.run("", "list")
	assert.Contains(t, out, "Jane Roe")

	code, out, _ = c.run("yes\n", "import", "-path", exportPath)
	require.Equal(t, 0, code)
	assert.Contains(t, out, "(1 appointments)")
	_, out, _ = c.run("", "list")
	assert.Contains(t, out, "John Doe")
	assert.NotContains(t, out, "Jane Roe")
}

func TestCorruptDocumentBlocksMutations(t *testing.T) {
	c := newCLI(t)
	require.NoError(t, os.WriteFile(c.dataFile, []byte("{not json"), 0o644))

	code, out, errOut := c.run("", "list")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "No appointments.")
	assert.Contains(t, errOut, "could not load")

	code, _, errOut = c.run("", "add", "-name", "John Doe", "-procedure", "CT", "-phone", "5551234567", "-clinic", "City Clinic")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "refusing to modify")

	data, err := os.ReadFile(c.dataFile)
	require.NoError(t, err)
	assert.Equal(t, "{not json", string(data))
}

func TestProcedures(t *testing.T) {
	code, out, _ := newCLI(t).run("", "procedures")
	require.Equal(t, 0, code)
	for _, p := range appointments.Procedures() {
		assert.Contains(t, out, string(p))
	}
}
