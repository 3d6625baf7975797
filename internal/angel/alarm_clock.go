package angel

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/srg/angel/internal/codec"
	"github.com/srg/angel/internal/device"
)

// AlarmControl is the value of the alarm clock control point. Writes carry
// Request; indications carry Response.
type AlarmControl struct {
	Request  codec.AlarmRequest
	Response codec.AlarmResponse
}

func decodeAlarmControl(b []byte) (AlarmControl, error) {
	r, err := codec.DecodeAlarmResponse(b)
	return AlarmControl{Response: r}, err
}

func encodeAlarmControl(v AlarmControl) ([]byte, error) {
	return codec.EncodeAlarmRequest(v.Request)
}

var (
	ActiveAlarms = &device.CharacteristicKind[[]codec.DateTime]{
		Name:   "Active Alarms",
		UUID:   "5265e9d9-595e-4076-bcad-e9827e00b146",
		Decode: codec.DecodeActiveAlarms,
		Encode: codec.EncodeActiveAlarms,
	}
	AlarmControlPoint = &device.CharacteristicKind[AlarmControl]{
		Name:   "Alarm Control Point",
		UUID:   "e4616b0c-22d5-11e4-a7bf-b2227cce2b54",
		Decode: decodeAlarmControl,
		Encode: encodeAlarmControl,
	}
	CurrentDateTime = &device.CharacteristicKind[codec.DateTime]{
		Name:   "Current Date Time",
		UUID:   "2a0a",
		Decode: codec.DecodeDateTime,
		Encode: codec.EncodeDayDateTime,
	}
)

// AlarmResponseError reports a control point procedure the sensor refused.
type AlarmResponseError struct {
	Opcode codec.AlarmOpcode
	Code   codec.AlarmResponseCode
}

func (e *AlarmResponseError) Error() string {
	return fmt.Sprintf("alarm clock %s: %s", e.Opcode, e.Code)
}

type AlarmClockService struct {
	Alarms       *device.Characteristic[[]codec.DateTime]
	ControlPoint *device.Characteristic[AlarmControl]
	DateTime     *device.Characteristic[codec.DateTime]

	mu sync.Mutex // one control point procedure at a time
}

// Request runs one control point procedure: it enables indications, writes
// req and waits for the response carrying the same opcode. Request blocks
// and must not be called from a device callback.
func (s *AlarmClockService) Request(ctx context.Context, req codec.AlarmRequest) (codec.AlarmResponse, error) {
	if s.ControlPoint == nil {
		return codec.AlarmResponse{}, errNotOffered(AlarmClock, AlarmControlPoint)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	type result struct {
		resp codec.AlarmResponse
		err  error
	}
	results := make(chan result, 8)
	listener := func(v AlarmControl, err error) {
		select {
		case results <- result{resp: v.Response, err: err}:
		default:
		}
	}
	if err := s.ControlPoint.EnableNotifications(ctx, listener); err != nil {
		return codec.AlarmResponse{}, err
	}
	if err := s.ControlPoint.Write(AlarmControl{Request: req}); err != nil {
		return codec.AlarmResponse{}, err
	}

	for {
		select {
		case r := <-results:
			if r.err != nil {
				return codec.AlarmResponse{}, r.err
			}
			if r.resp.Opcode != req.Opcode {
				continue
			}
			if r.resp.Code != codec.AlarmResponseSuccess {
				return r.resp, &AlarmResponseError{Opcode: req.Opcode, Code: r.resp.Code}
			}
			return r.resp, nil
		case <-ctx.Done():
			return codec.AlarmResponse{}, ctx.Err()
		}
	}
}

// MaxAlarms asks how many alarms the sensor can hold.
func (s *AlarmClockService) MaxAlarms(ctx context.Context) (uint16, error) {
	resp, err := s.Request(ctx, codec.AlarmRequest{Opcode: codec.AlarmGetMaxAlarms})
	return resp.Value, err
}

func (s *AlarmClockService) AddAlarm(ctx context.Context, at time.Time) error {
	_, err := s.Request(ctx, codec.AlarmRequest{Opcode: codec.AlarmAddAlarm, When: codec.DateTimeOf(at)})
	return err
}

func (s *AlarmClockService) RemoveAlarm(ctx context.Context, id uint8) error {
	_, err := s.Request(ctx, codec.AlarmRequest{Opcode: codec.AlarmRemoveAlarm, AlarmID: id})
	return err
}

func (s *AlarmClockService) RemoveAllAlarms(ctx context.Context) error {
	_, err := s.Request(ctx, codec.AlarmRequest{Opcode: codec.AlarmRemoveAllAlarms})
	return err
}

// ReadAlarms reads the active alarm list.
func (s *AlarmClockService) ReadAlarms(ctx context.Context) ([]codec.DateTime, error) {
	if s.Alarms == nil {
		return nil, errNotOffered(AlarmClock, ActiveAlarms)
	}
	return s.Alarms.ReadValue(ctx)
}

// SetClock sets the sensor clock to the wall clock of t. The date time
// characteristic is written when offered; otherwise the control point
// SetClock procedure is used.
func (s *AlarmClockService) SetClock(ctx context.Context, t time.Time) error {
	if s.DateTime != nil && s.DateTime.Capabilities().CanWrite() {
		return s.DateTime.Write(codec.DateTimeOf(t))
	}
	_, err := s.Request(ctx, codec.AlarmRequest{Opcode: codec.AlarmSetClock, When: codec.DateTimeOf(t)})
	return err
}

var AlarmClock = &device.ServiceKind[*AlarmClockService]{
	Name: "Alarm Clock",
	UUID: "7cd50edd-8bab-44ff-a8e8-82e19393af10",
	New: func(s *device.Service) (*AlarmClockService, error) {
		var (
			svc AlarmClockService
			r   registrar
		)
		svc.Alarms = register(&r, s, ActiveAlarms)
		svc.ControlPoint = register(&r, s, AlarmControlPoint)
		svc.DateTime = register(&r, s, CurrentDateTime)
		return &svc, r.err
	},
}
