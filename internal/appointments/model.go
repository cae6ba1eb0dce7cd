// Package appointments owns the patient appointment collection: the record
// type, field validation, and the Store that mutates and flushes it.
package appointments

import (
	"strings"
	"time"
)

const (
	// DateLayout is the stored form of appointment_date.
	DateLayout = "2006-01-02"
	// TimestampLayout is the stored form of created_at.
	TimestampLayout = "2006-01-02 15:04:05"
)

// Procedure is an imaging procedure from the closed set a clinic can book.
type Procedure string

const (
	ProcedureCT         Procedure = "Computed Tomography (CT)"
	ProcedureXRay       Procedure = "X-ray (DX)"
	ProcedureUltrasound Procedure = "Ultrasound (US)"
	ProcedureMammogram  Procedure = "Mammogram (MG)"

	// ProcedureUnselected is the placeholder a picker shows before a choice is made.
	ProcedureUnselected Procedure = "Select Procedure"
)

var procedures = []Procedure{
	ProcedureCT,
	ProcedureXRay,
	ProcedureUltrasound,
	ProcedureMammogram,
}

// Procedures returns the bookable procedures in display order.
func Procedures() []Procedure {
	out := make([]Procedure, len(procedures))
	copy(out, procedures)
	return out
}

// Code returns the modality code in parentheses, e.g. "CT" for ProcedureCT.
func (p Procedure) Code() string {
	s := string(p)
	open := strings.LastIndexByte(s, '(')
	if open < 0 || !strings.HasSuffix(s, ")") {
		return ""
	}
	return s[open+1 : len(s)-1]
}

func (p Procedure) String() string { return string(p) }

// Appointment is a single booked procedure. The JSON shape is the persisted
// document format.
type Appointment struct {
	ID              int       `json:"id"`
	PatientName     string    `json:"patient_name"`
	Procedure       Procedure `json:"procedure"`
	PhoneNumber     string    `json:"phone_number"`
	Clinic          string    `json:"clinic"`
	AppointmentDate string    `json:"appointment_date"`
	CreatedAt       string    `json:"created_at"`
}

// AddRequest carries the raw field values collected by the presentation layer.
type AddRequest struct {
	PatientName string
	Procedure   string
	PhoneNumber string
	Clinic      string
	// AppointmentDate is a calendar date; only year, month and day are kept.
	// The zero value books for today.
	AppointmentDate time.Time
}

func (r AddRequest) trimmed() AddRequest {
	r.PatientName = strings.TrimSpace(r.PatientName)
	r.Procedure = strings.TrimSpace(r.Procedure)
	r.PhoneNumber = strings.TrimSpace(r.PhoneNumber)
	r.Clinic = strings.TrimSpace(r.Clinic)
	return r
}
