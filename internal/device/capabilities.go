package device

import "strings"

// Capabilities is the set of operations the peripheral reports for a
// characteristic.
type Capabilities uint8

const (
	CapRead Capabilities = 1 << iota
	CapWrite
	CapWriteWithoutResponse
	CapNotify
	CapIndicate
)

var capabilityNames = []struct {
	cap  Capabilities
	name string
}{
	{CapRead, "read"},
	{CapWrite, "write"},
	{CapWriteWithoutResponse, "write-without-response"},
	{CapNotify, "notify"},
	{CapIndicate, "indicate"},
}

// Has reports whether all of want are present.
func (c Capabilities) Has(want Capabilities) bool { return c&want == want }

func (c Capabilities) CanRead() bool { return c&CapRead != 0 }

func (c Capabilities) CanWrite() bool { return c&(CapWrite|CapWriteWithoutResponse) != 0 }

// CanNotify is true for notify or indicate.
func (c Capabilities) CanNotify() bool { return c&(CapNotify|CapIndicate) != 0 }

func (c Capabilities) String() string {
	if c == 0 {
		return "none"
	}
	names := make([]string, 0, len(capabilityNames))
	for _, n := range capabilityNames {
		if c&n.cap != 0 {
			names = append(names, n.name)
		}
	}
	return strings.Join(names, ",")
}

// ParseCapabilities parses a comma separated list such as "read,notify".
// Unknown names are ignored.
func ParseCapabilities(s string) Capabilities {
	var c Capabilities
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		for _, n := range capabilityNames {
			if n.name == part {
				c |= n.cap
			}
		}
	}
	return c
}
