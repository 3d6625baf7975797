package codec

import (
	"encoding/binary"
	"fmt"
	"time"
)

// Heart rate measurement flag bits.
const (
	hrFlagValueUint16    = 0x01
	hrFlagContactStatus  = 0x06
	hrFlagEnergyExpended = 0x08
	hrFlagRRIntervals    = 0x10
)

// SensorContact is the sensor-contact status carried in flag bits 1-2.
type SensorContact uint8

const (
	ContactNotSupported SensorContact = iota // bits 0b00 and 0b01
	ContactNotDetected                       // 0b10
	ContactDetected                          // 0b11
)

func (c SensorContact) String() string {
	switch c {
	case ContactNotDetected:
		return "not detected"
	case ContactDetected:
		return "detected"
	default:
		return "not supported"
	}
}

// HeartRateMeasurement is the decoded 0x2A37 payload.
type HeartRateMeasurement struct {
	BeatsPerMinute    uint16
	SensorContact     SensorContact
	HasEnergyExpended bool
	EnergyExpended    uint16   // kilojoules
	RRIntervals       []uint16 // 1/1024 second units, nil when absent
}

// RRDurations converts RR intervals into durations.
func (m HeartRateMeasurement) RRDurations() []time.Duration {
	if m.RRIntervals == nil {
		return nil
	}
	out := make([]time.Duration, len(m.RRIntervals))
	for i, rr := range m.RRIntervals {
		out[i] = time.Duration(rr) * time.Second / 1024
	}
	return out
}

// DecodeHeartRateMeasurement decodes a heart rate measurement.
func DecodeHeartRateMeasurement(b []byte) (HeartRateMeasurement, error) {
	const name = "heart rate measurement"
	var m HeartRateMeasurement

	if err := need(name, b, 0, 1); err != nil {
		return m, err
	}
	flags := b[0]
	off := 1

	if flags&hrFlagValueUint16 != 0 {
		if err := need(name, b, off, 2); err != nil {
			return m, err
		}
		m.BeatsPerMinute = binary.LittleEndian.Uint16(b[off:])
		off += 2
	} else {
		if err := need(name, b, off, 1); err != nil {
			return m, err
		}
		m.BeatsPerMinute = uint16(b[off])
		off++
	}

	switch (flags & hrFlagContactStatus) >> 1 {
	case 2:
		m.SensorContact = ContactNotDetected
	case 3:
		m.SensorContact = ContactDetected
	}

	if flags&hrFlagEnergyExpended != 0 {
		if err := need(name, b, off, 2); err != nil {
			return m, err
		}
		m.HasEnergyExpended = true
		m.EnergyExpended = binary.LittleEndian.Uint16(b[off:])
		off += 2
	}

	rest := len(b) - off
	if flags&hrFlagRRIntervals == 0 {
		if rest != 0 {
			return m, lengthError(name, fmt.Sprint(off), len(b))
		}
		return m, nil
	}

	if rest%2 != 0 {
		return m, lengthError(name, fmt.Sprintf("%d plus an even number", off), len(b))
	}
	m.RRIntervals = make([]uint16, 0, rest/2)
	for ; off < len(b); off += 2 {
		m.RRIntervals = append(m.RRIntervals, binary.LittleEndian.Uint16(b[off:]))
	}
	return m, nil
}

// EncodeHeartRateMeasurement is the inverse of DecodeHeartRateMeasurement.
// The 16-bit value format is chosen only when the rate does not fit a byte.
func EncodeHeartRateMeasurement(m HeartRateMeasurement) ([]byte, error) {
	var flags byte
	buf := []byte{0}

	if m.BeatsPerMinute > 0xff {
		flags |= hrFlagValueUint16
		buf = binary.LittleEndian.AppendUint16(buf, m.BeatsPerMinute)
	} else {
		buf = append(buf, byte(m.BeatsPerMinute))
	}

	switch m.SensorContact {
	case ContactNotDetected:
		flags |= 2 << 1
	case ContactDetected:
		flags |= 3 << 1
	}

	if m.HasEnergyExpended {
		flags |= hrFlagEnergyExpended
		buf = binary.LittleEndian.AppendUint16(buf, m.EnergyExpended)
	}

	if m.RRIntervals != nil {
		flags |= hrFlagRRIntervals
		for _, rr := range m.RRIntervals {
			buf = binary.LittleEndian.AppendUint16(buf, rr)
		}
	}

	buf[0] = flags
	return buf, nil
}

// BodySensorLocation is the 0x2A38 enumeration.
type BodySensorLocation uint8

const (
	LocationOther BodySensorLocation = iota
	LocationChest
	LocationWrist
	LocationFinger
	LocationHand
	LocationEarLobe
	LocationFoot
)

var bodySensorLocationNames = [...]string{"other", "chest", "wrist", "finger", "hand", "ear lobe", "foot"}

func (l BodySensorLocation) String() string {
	if int(l) < len(bodySensorLocationNames) {
		return bodySensorLocationNames[l]
	}
	return fmt.Sprintf("reserved(%d)", uint8(l))
}

// DecodeBodySensorLocation decodes the single location byte.
func DecodeBodySensorLocation(b []byte) (BodySensorLocation, error) {
	v, err := DecodeUint8(b)
	return BodySensorLocation(v), err
}

// HeartRateResetEnergyExpended is the only heart rate control point command.
const HeartRateResetEnergyExpended uint8 = 0x01
