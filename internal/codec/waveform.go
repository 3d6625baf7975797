package codec

import "fmt"

const (
	// AccelerationSampleSize is the width of one acceleration waveform sample.
	AccelerationSampleSize = 3
	// OpticalSampleSize is the width of one green/blue optical sample pair.
	OpticalSampleSize = 6
)

// OpticalSample is one interleaved pair from the optical waveform.
type OpticalSample struct {
	Green int32
	Blue  int32
}

// DecodeAccelerationWaveform decodes consecutive 3-byte little-endian
// magnitudes. The channel is unsigned: no sign extension is applied.
func DecodeAccelerationWaveform(b []byte) ([]uint32, error) {
	if len(b)%AccelerationSampleSize != 0 {
		return nil, lengthError("acceleration waveform", fmt.Sprintf("a multiple of %d", AccelerationSampleSize), len(b))
	}

	samples := make([]uint32, 0, len(b)/AccelerationSampleSize)
	for off := 0; off < len(b); off += AccelerationSampleSize {
		samples = append(samples, uint24(b[off:]))
	}
	return samples, nil
}

// DecodeOpticalWaveform decodes interleaved green/blue 24-bit two's
// complement samples.
func DecodeOpticalWaveform(b []byte) ([]OpticalSample, error) {
	if len(b)%OpticalSampleSize != 0 {
		return nil, lengthError("optical waveform", fmt.Sprintf("a multiple of %d", OpticalSampleSize), len(b))
	}

	samples := make([]OpticalSample, 0, len(b)/OpticalSampleSize)
	for off := 0; off < len(b); off += OpticalSampleSize {
		samples = append(samples, OpticalSample{
			Green: signExtend24(uint24(b[off:])),
			Blue:  signExtend24(uint24(b[off+3:])),
		})
	}
	return samples, nil
}

// EncodeOpticalWaveform is the inverse of DecodeOpticalWaveform. Values are
// truncated to 24 bits.
func EncodeOpticalWaveform(samples []OpticalSample) ([]byte, error) {
	buf := make([]byte, 0, len(samples)*OpticalSampleSize)
	for _, s := range samples {
		buf = appendUint24(buf, uint32(s.Green))
		buf = appendUint24(buf, uint32(s.Blue))
	}
	return buf, nil
}

// EncodeAccelerationWaveform is the inverse of DecodeAccelerationWaveform.
func EncodeAccelerationWaveform(samples []uint32) ([]byte, error) {
	buf := make([]byte, 0, len(samples)*AccelerationSampleSize)
	for i, s := range samples {
		if s > 0xFFFFFF {
			return nil, &FieldError{Value: "acceleration waveform", Field: fmt.Sprintf("sample %d", i), Msg: "exceeds 24 bits"}
		}
		buf = appendUint24(buf, s)
	}
	return buf, nil
}

func uint24(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16
}

func appendUint24(buf []byte, v uint32) []byte {
	return append(buf, byte(v), byte(v>>8), byte(v>>16))
}
