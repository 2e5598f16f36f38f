// Package protocol implements the tagged wire format used by the Fauna
// query API. Ambiguous JSON values are annotated with type tags (@int,
// @long, @double, @date, @time, ...) so the driver can reconstruct exact
// native types on both sides of the wire.
package protocol

import (
	"fmt"
	"time"
)

// Reserved tag keys.
const (
	tagInt    = "@int"
	tagLong   = "@long"
	tagDouble = "@double"
	tagDate   = "@date"
	tagTime   = "@time"
	tagMod    = "@mod"
	tagRef    = "@ref"
	tagDoc    = "@doc"
	tagSet    = "@set"
	tagBytes  = "@bytes"
	tagObject = "@object"
)

// Wire formats for temporal values.
const (
	dateFormat     = "2006-01-02"
	timeWireFormat = "2006-01-02T15:04:05.000Z07:00"
)

// Module is a reference to a module, such as a collection or a built-in.
type Module struct {
	Name string
}

// Ref is a reference to a document identified by ID.
type Ref struct {
	ID         string
	Collection *Module
}

// NamedRef is a reference to a document identified by name, such as a
// collection definition or a user-defined function.
type NamedRef struct {
	Name       string
	Collection *Module
}

// Document is a materialized document: a reference plus the transaction
// time at which it was read and its user fields.
type Document struct {
	ID         string
	Collection *Module
	TS         *Time
	Data       map[string]interface{}
}

// NamedDocument is a materialized document identified by name. User fields
// live under a nested data object on the wire.
type NamedDocument struct {
	Name       string
	Collection *Module
	TS         *Time
	Data       map[string]interface{}
}

// NullDocument is a reference that could not be materialized. Cause
// explains why, for example "not found" or "permission denied".
type NullDocument struct {
	Ref   interface{} // *Ref or *NamedRef
	Cause string
}

// Page is one page of a set. An empty After cursor means the page is
// terminal.
type Page struct {
	Data  []interface{}
	After string
}

// Date is a calendar date with no time component and no zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDate constructs a Date from its components.
func NewDate(year int, month time.Month, day int) Date {
	return Date{Year: year, Month: month, Day: day}
}

// ParseDate parses a plain "YYYY-MM-DD" date string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateFormat, s)
	if err != nil {
		return Date{}, &DecodeError{Tag: tagDate, Message: fmt.Sprintf("invalid date %q", s), Cause: err}
	}
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}, nil
}

// String returns the wire form of the date.
func (d Date) String() string {
	return d.Time().Format(dateFormat)
}

// Time returns the date at midnight UTC.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// Time is an instant in time carried as the ISO-8601 string supplied at
// construction. The original sub-second precision and zone offset are
// preserved exactly, because the service can store more precision than
// time.Time-based formatting would keep.
type Time struct {
	iso string
	t   time.Time
}

// ParseTime parses an ISO-8601 instant with a zone offset. The input
// string is retained verbatim as the wire form.
func ParseTime(s string) (Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return Time{}, &DecodeError{Tag: tagTime, Message: fmt.Sprintf("invalid time %q", s), Cause: err}
	}
	return Time{iso: s, t: t}, nil
}

// TimeFromTime builds a Time from a native time.Time, normalized to UTC
// with millisecond precision. This is the one lossy construction path;
// time.Time callers that need more precision should supply the string
// form via ParseTime.
func TimeFromTime(t time.Time) Time {
	u := t.UTC()
	return Time{iso: u.Format(timeWireFormat), t: u}
}

// ISO returns the wire form of the instant, exactly as supplied.
func (t Time) ISO() string {
	return t.iso
}

// Time returns the parsed instant.
func (t Time) Time() time.Time {
	return t.t
}

// String implements fmt.Stringer.
func (t Time) String() string {
	return t.iso
}
