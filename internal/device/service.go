package device

import (
	"github.com/sirupsen/logrus"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// ServiceClass is a registrable service variant. The set of implementations
// is closed: only ServiceKind satisfies it.
type ServiceClass interface {
	Identifier() string
	ServiceName() string

	validate() error
	build(s *Service) (any, error)
}

// ServiceKind binds a service identifier to the constructor of its typed
// view. New receives the discovered Service and registers the
// characteristics it knows with RegisterCharacteristic. New runs during
// discovery and must not call back into the Device.
type ServiceKind[S any] struct {
	Name string
	UUID string
	New  func(s *Service) (S, error)
}

// Identifier returns the normalized service UUID.
func (k *ServiceKind[S]) Identifier() string { return NormalizeUUID(k.UUID) }

func (k *ServiceKind[S]) ServiceName() string { return k.Name }

func (k *ServiceKind[S]) validate() error {
	if k == nil {
		return &RegistrationError{Kind: "service", Reason: "nil kind", Err: ErrInvalidRegistration}
	}
	if k.Identifier() == "" {
		return &RegistrationError{Kind: "service", Name: k.Name, UUID: k.UUID, Reason: "malformed identifier", Err: ErrInvalidRegistration}
	}
	if k.New == nil {
		return &RegistrationError{Kind: "service", Name: k.Name, UUID: k.UUID, Reason: "missing constructor", Err: ErrInvalidRegistration}
	}
	return nil
}

func (k *ServiceKind[S]) build(s *Service) (any, error) {
	return k.New(s)
}

// Service is one discovered GATT service bound to a Device.
type Service struct {
	uuid   string
	name   string
	rs     RemoteService
	ops    operations
	logger *logrus.Logger

	offered         map[string]RemoteCharacteristic
	registered      map[string]struct{}
	characteristics *orderedmap.OrderedMap[string, CharacteristicHandle]
	instance        any
}

func newService(class ServiceClass, rs RemoteService, ops operations) *Service {
	s := &Service{
		uuid:            class.Identifier(),
		name:            class.ServiceName(),
		rs:              rs,
		ops:             ops,
		logger:          ops.log(),
		offered:         make(map[string]RemoteCharacteristic),
		registered:      make(map[string]struct{}),
		characteristics: orderedmap.New[string, CharacteristicHandle](),
	}
	for _, rc := range rs.Characteristics() {
		id := NormalizeUUID(rc.UUID())
		if _, dup := s.offered[id]; !dup {
			s.offered[id] = rc
		}
	}
	return s
}

func (s *Service) UUID() string { return s.uuid }
func (s *Service) Name() string { return s.name }

// Instance returns the typed view built by the ServiceKind constructor.
func (s *Service) Instance() any { return s.instance }

// Characteristics lists registered characteristics in registration order.
func (s *Service) Characteristics() []CharacteristicHandle {
	out := make([]CharacteristicHandle, 0, s.characteristics.Len())
	for pair := s.characteristics.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value)
	}
	return out
}

// Characteristic looks up a registered characteristic by UUID.
func (s *Service) Characteristic(uuid string) (CharacteristicHandle, error) {
	if h, ok := s.characteristics.Get(NormalizeUUID(uuid)); ok {
		return h, nil
	}
	return nil, &NotFoundError{Resource: "characteristic", UUIDs: []string{s.uuid, uuid}}
}

// Offered lists every characteristic the peripheral reported for this
// service, registered or not.
func (s *Service) Offered() []RemoteCharacteristic {
	out := make([]RemoteCharacteristic, 0, len(s.offered))
	for _, rc := range s.rs.Characteristics() {
		if s.offered[NormalizeUUID(rc.UUID())] == rc {
			out = append(out, rc)
		}
	}
	return out
}

// RegisterCharacteristic binds kind to the matching discovered
// characteristic. It returns (nil, nil) when the peripheral does not offer
// the characteristic and a RegistrationError when kind was already
// registered on s.
func RegisterCharacteristic[T any](s *Service, kind *CharacteristicKind[T]) (*Characteristic[T], error) {
	if err := kind.validate(); err != nil {
		return nil, err
	}

	id := kind.Identifier()
	if _, dup := s.registered[id]; dup {
		return nil, &RegistrationError{
			Kind:   "characteristic",
			Name:   kind.Name,
			UUID:   id,
			Reason: "already registered in service " + s.uuid,
			Err:    ErrDuplicateRegistration,
		}
	}
	s.registered[id] = struct{}{}

	rc, ok := s.offered[id]
	if !ok {
		s.logger.WithFields(logrus.Fields{
			"service_uuid": s.uuid,
			"char_uuid":    id,
		}).Debug("Characteristic not offered by peripheral")
		return nil, nil
	}

	c := newCharacteristic(kind, rc, s, s.ops)
	s.characteristics.Set(id, c)
	return c, nil
}
