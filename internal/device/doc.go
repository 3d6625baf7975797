// Package device provides the GATT client core: a Device session with its
// lifecycle state machine, typed services and characteristics, and the
// transport contract radio stacks implement.
//
// The package provides:
//   - Connection lifecycle management (connect, disconnect, reconnect)
//   - Matching discovered services against registered service kinds
//   - Typed characteristic read, write and notify operations
//   - Callback delivery on a dedicated goroutine, in transport event order
//   - Blocking notification setup bounded by a descriptor write timeout
//
// Service and characteristic kinds are declared as package variables:
//
//	var Battery = &device.ServiceKind[*BatteryService]{
//	    Name: "Battery",
//	    UUID: "180f",
//	    New:  newBatteryService,
//	}
//
// A kind's constructor registers the characteristics it knows with
// RegisterCharacteristic. Characteristics the peripheral does not offer are
// skipped.
package device
