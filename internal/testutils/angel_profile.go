package testutils

// NewAngelPeripheral describes a sensor offering every Angel service with
// plausible initial values.
func NewAngelPeripheral() *PeripheralBuilder {
	return NewPeripheralBuilder().
		WithService("180d").
		WithCharacteristic("2a37", "notify", nil).
		WithCharacteristic("2a38", "read", []byte{0x02}).
		WithCharacteristic("2a39", "write", nil).
		WithService("1809").
		WithCharacteristic("2a1c", "indicate", nil).
		WithCharacteristic("2a1d", "read", []byte{0x03}).
		WithCharacteristic("2a1e", "notify", nil).
		WithCharacteristic("2a21", "read,write,indicate", []byte{0x3c, 0x00}).
		WithService("180f").
		WithCharacteristic("2a19", "read,notify", []byte{85}).
		WithService("68b52738-4a04-40e1-8f83-337a29c3284d").
		WithCharacteristic("7a543305-6b9e-4878-ad67-29c5a9d99736", "read,notify", []byte{0xe8, 0x03, 0x00, 0x00}).
		WithCharacteristic("9e3bd0d7-bdd8-41fd-af1f-5e99679183ff", "read,notify", []byte{0x10, 0x27, 0x00, 0x00}).
		WithService("481d178c-10dd-11e4-b514-b2227cce2b54").
		WithCharacteristic("334c0be8-76f9-458b-bb2e-7df2b486b4d7", "notify", nil).
		WithCharacteristic("4e92f4ab-c01b-4b5a-b328-699856a7c2ee", "notify", nil).
		WithService("7cd50edd-8bab-44ff-a8e8-82e19393af10").
		WithCharacteristic("5265e9d9-595e-4076-bcad-e9827e00b146", "read", []byte{0x00}).
		WithCharacteristic("e4616b0c-22d5-11e4-a7bf-b2227cce2b54", "write,indicate", nil).
		WithCharacteristic("2a0a", "read,write", nil).
		WithService("41e1bd6a-9e39-441c-9312-b6e862472480").
		WithCharacteristic("a0e4a2ba-0000-8000-0000-00000000a001", "write-without-response", nil).
		WithCharacteristic("a0e4a2ba-0000-8000-0000-00000000a002", "notify", nil)
}
