package angel

import "github.com/srg/angel/internal/device"

// registrar keeps the first registration failure so service constructors
// can register their characteristics without an error check per line.
type registrar struct {
	err error
}

func register[T any](r *registrar, s *device.Service, kind *device.CharacteristicKind[T]) *device.Characteristic[T] {
	if r.err != nil {
		return nil
	}
	c, err := device.RegisterCharacteristic(s, kind)
	if err != nil {
		r.err = err
		return nil
	}
	return c
}

// errNotOffered reports a convenience call on a characteristic the
// peripheral did not offer.
func errNotOffered[S, T any](svc *device.ServiceKind[S], kind *device.CharacteristicKind[T]) error {
	return &device.NotFoundError{Resource: "characteristic", UUIDs: []string{svc.Identifier(), kind.Identifier()}}
}
