//go:build !darwin

package main

const (
	exampleDeviceAddress = "00:07:80:1A:2B:3C"
	deviceAddressNote    = "Device address format: MAC address, e.g. 00:07:80:1A:2B:3C\n  Use 'angel scan' to discover sensors"
)
