package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/srg/angel/internal/angel"
	"github.com/srg/angel/internal/codec"
	"github.com/srg/angel/internal/device"
)

// record is one value printed by read and monitor.
type record struct {
	Time           time.Time `json:"time"`
	Service        string    `json:"service"`
	Characteristic string    `json:"characteristic"`
	UUID           string    `json:"uuid"`
	Value          any       `json:"value,omitempty"`
	Text           string    `json:"text,omitempty"`
	Error          string    `json:"error,omitempty"`
}

func newRecord(h device.CharacteristicHandle, at time.Time, value any, err error) record {
	r := record{
		Time:           at,
		Characteristic: h.Name(),
		UUID:           h.UUID(),
	}
	if svc := h.Service(); svc != nil {
		r.Service = svc.Name()
	}
	if err != nil {
		r.Error = err.Error()
		return r
	}
	r.Value = jsonValue(value)
	r.Text = formatValue(h.UUID(), value)
	return r
}

// jsonValue turns raw payloads into hex so they stay readable in JSON.
func jsonValue(v any) any {
	if b, ok := v.([]byte); ok {
		return hex.EncodeToString(b)
	}
	return v
}

// writeRecord prints r as a text line or a JSON object per line.
func (e *env) writeRecord(w io.Writer, r record) error {
	if e.format == "json" {
		return json.NewEncoder(w).Encode(r)
	}

	ts := e.pal.dim.Sprint(r.Time.Format("15:04:05.000"))
	name := e.pal.name.Sprint(r.Characteristic)
	if r.Error != "" {
		_, err := fmt.Fprintf(w, "%s %s: %s\n", ts, name, e.pal.warn.Sprint("error: "+r.Error))
		return err
	}
	_, err := fmt.Fprintf(w, "%s %s: %s\n", ts, name, e.pal.value.Sprint(r.Text))
	return err
}

// formatValue renders a decoded characteristic value for humans. uuid picks
// units where the Go type alone does not tell them.
func formatValue(uuid string, v any) string {
	switch x := v.(type) {
	case codec.HeartRateMeasurement:
		return formatHeartRate(x)
	case codec.TemperatureMeasurement:
		s := fmt.Sprintf("%.2f %s", x.Value, x.Unit)
		if x.HasType {
			s += fmt.Sprintf(" (%s)", x.Type)
		}
		if x.HasTimestamp {
			s += " at " + x.Timestamp.String()
		}
		return s
	case []codec.OpticalSample:
		if len(x) == 0 {
			return "0 samples"
		}
		return fmt.Sprintf("%d samples, first green=%d blue=%d", len(x), x[0].Green, x[0].Blue)
	case []uint32:
		parts := make([]string, len(x))
		for i, s := range x {
			parts[i] = fmt.Sprint(s)
		}
		return fmt.Sprintf("%d samples [%s]", len(x), strings.Join(parts, " "))
	case []codec.DateTime:
		if len(x) == 0 {
			return "none"
		}
		parts := make([]string, len(x))
		for i, d := range x {
			parts[i] = d.String()
		}
		return strings.Join(parts, ", ")
	case angel.AlarmControl:
		r := x.Response
		if r.HasValue {
			return fmt.Sprintf("%s: %s (%d)", r.Opcode, r.Code, r.Value)
		}
		return fmt.Sprintf("%s: %s", r.Opcode, r.Code)
	case []byte:
		if len(x) == 0 {
			return "(empty)"
		}
		return strings.ToUpper(hex.EncodeToString(x))
	case uint8:
		if uuid == angel.BatteryLevel.Identifier() {
			return fmt.Sprintf("%d%%", x)
		}
		return fmt.Sprint(x)
	case uint16:
		if uuid == angel.MeasurementInterval.Identifier() {
			return (time.Duration(x) * time.Second).String()
		}
		return fmt.Sprint(x)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(v)
	}
}

func formatHeartRate(m codec.HeartRateMeasurement) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d bpm", m.BeatsPerMinute)
	if m.SensorContact != codec.ContactNotSupported {
		fmt.Fprintf(&b, ", contact %s", m.SensorContact)
	}
	if m.HasEnergyExpended {
		fmt.Fprintf(&b, ", %d kJ", m.EnergyExpended)
	}
	if rr := m.RRDurations(); len(rr) > 0 {
		parts := make([]string, len(rr))
		for i, d := range rr {
			parts[i] = d.Round(time.Millisecond).String()
		}
		fmt.Fprintf(&b, ", RR %s", strings.Join(parts, " "))
	}
	return b.String()
}
