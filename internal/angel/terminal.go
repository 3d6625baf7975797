package angel

import (
	"github.com/srg/angel/internal/codec"
	"github.com/srg/angel/internal/device"
)

// TerminalService exposes every characteristic of the terminal service as
// raw bytes, in discovery order.
type TerminalService struct {
	Characteristics []*device.Characteristic[[]byte]
}

// Characteristic returns the terminal characteristic with the given UUID,
// or nil.
func (s *TerminalService) Characteristic(uuid string) *device.Characteristic[[]byte] {
	id := device.NormalizeUUID(uuid)
	for _, c := range s.Characteristics {
		if c.UUID() == id {
			return c
		}
	}
	return nil
}

func rawKind(uuid string) *device.CharacteristicKind[[]byte] {
	return &device.CharacteristicKind[[]byte]{
		Name:   "Terminal " + device.ShortenUUID(uuid),
		UUID:   uuid,
		Decode: codec.DecodeRaw,
		Encode: codec.EncodeRaw,
	}
}

var Terminal = &device.ServiceKind[*TerminalService]{
	Name: "Terminal",
	UUID: "41e1bd6a-9e39-441c-9312-b6e862472480",
	New: func(s *device.Service) (*TerminalService, error) {
		var (
			svc TerminalService
			r   registrar
		)
		for _, rc := range s.Offered() {
			if c := register(&r, s, rawKind(rc.UUID())); c != nil {
				svc.Characteristics = append(svc.Characteristics, c)
			}
		}
		return &svc, r.err
	},
}
