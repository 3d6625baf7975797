package codec

import (
	"encoding/binary"
	"fmt"
	"time"
)

const (
	// DateTimeSize is the serialized size of a date-time without day of week.
	DateTimeSize = 7
	// DayDateTimeSize adds the trailing day-of-week byte.
	DayDateTimeSize = 8
)

// DayOfWeek is the sensor's day numbering: 1 is Sunday, 7 is Saturday, 0 is
// unknown.
type DayOfWeek uint8

const (
	DayUnknown DayOfWeek = iota
	Sunday
	Monday
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
)

// DayOfWeekOf converts a time.Weekday into the sensor's numbering.
func DayOfWeekOf(w time.Weekday) DayOfWeek {
	return DayOfWeek(w) + 1
}

func (d DayOfWeek) String() string {
	if d == DayUnknown || d > Saturday {
		return "unknown"
	}
	return time.Weekday(d - 1).String()
}

// DateTime is a wall-clock date and time as carried by the sensor. It holds no
// location; Time attaches one.
type DateTime struct {
	Year      uint16
	Month     time.Month
	Day       uint8
	Hour      uint8
	Minute    uint8
	Second    uint8
	DayOfWeek DayOfWeek // DayUnknown when decoded from a 7-byte buffer
}

// DateTimeOf captures the wall clock of t, including its day of week.
func DateTimeOf(t time.Time) DateTime {
	return DateTime{
		Year:      uint16(t.Year()),
		Month:     t.Month(),
		Day:       uint8(t.Day()),
		Hour:      uint8(t.Hour()),
		Minute:    uint8(t.Minute()),
		Second:    uint8(t.Second()),
		DayOfWeek: DayOfWeekOf(t.Weekday()),
	}
}

// Time interprets the wall clock in loc. A nil loc means UTC.
func (d DateTime) Time(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(int(d.Year), d.Month, int(d.Day), int(d.Hour), int(d.Minute), int(d.Second), 0, loc)
}

func (d DateTime) String() string {
	return fmt.Sprintf("%04d-%02d-%02d %02d:%02d:%02d", d.Year, int(d.Month), d.Day, d.Hour, d.Minute, d.Second)
}

// DecodeDateTime decodes a 7-byte date-time or an 8-byte day-date-time.
func DecodeDateTime(b []byte) (DateTime, error) {
	if len(b) != DateTimeSize && len(b) != DayDateTimeSize {
		return DateTime{}, lengthError("date time", "7 or 8", len(b))
	}

	d := DateTime{
		Year:   binary.LittleEndian.Uint16(b[0:2]),
		Month:  time.Month(b[2]),
		Day:    b[3],
		Hour:   b[4],
		Minute: b[5],
		Second: b[6],
	}
	if len(b) == DayDateTimeSize {
		d.DayOfWeek = DayOfWeek(b[7])
	}
	return d, nil
}

// EncodeDateTime produces the 7-byte form.
func EncodeDateTime(d DateTime) ([]byte, error) {
	return appendDateTime(make([]byte, 0, DateTimeSize), d), nil
}

// EncodeDayDateTime produces the 8-byte form. An unknown day of week is
// derived from the date.
func EncodeDayDateTime(d DateTime) ([]byte, error) {
	dow := d.DayOfWeek
	if dow == DayUnknown && d.Year != 0 && d.Month != 0 && d.Day != 0 {
		dow = DayOfWeekOf(d.Time(time.UTC).Weekday())
	}
	return append(appendDateTime(make([]byte, 0, DayDateTimeSize), d), byte(dow)), nil
}

func appendDateTime(buf []byte, d DateTime) []byte {
	buf = binary.LittleEndian.AppendUint16(buf, d.Year)
	return append(buf, byte(d.Month), d.Day, d.Hour, d.Minute, d.Second)
}

// DecodeActiveAlarms decodes a count byte followed by that many 7-byte
// date-times.
func DecodeActiveAlarms(b []byte) ([]DateTime, error) {
	if len(b) < 1 {
		return nil, lengthError("active alarms", "at least 1", len(b))
	}

	count := int(b[0])
	want := 1 + count*DateTimeSize
	if len(b) != want {
		return nil, lengthError("active alarms", fmt.Sprintf("%d for %d alarms", want, count), len(b))
	}

	alarms := make([]DateTime, 0, count)
	for off := 1; off < want; off += DateTimeSize {
		d, err := DecodeDateTime(b[off : off+DateTimeSize])
		if err != nil {
			return nil, err
		}
		alarms = append(alarms, d)
	}
	return alarms, nil
}

// EncodeActiveAlarms is the inverse of DecodeActiveAlarms.
func EncodeActiveAlarms(alarms []DateTime) ([]byte, error) {
	if len(alarms) > 0xff {
		return nil, &FieldError{Value: "active alarms", Field: "count", Msg: fmt.Sprintf("%d alarms do not fit in one byte", len(alarms))}
	}
	buf := make([]byte, 0, 1+len(alarms)*DateTimeSize)
	buf = append(buf, byte(len(alarms)))
	for _, a := range alarms {
		buf = appendDateTime(buf, a)
	}
	return buf, nil
}
