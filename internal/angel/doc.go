// Package angel declares the GATT services and characteristics of the Angel
// wearable sensor as device kinds.
//
// Each service kind builds a typed view whose fields are nil for the
// characteristics a given firmware does not offer:
//
//	dev := device.NewDevice(factory, callbacks, nil, logger)
//	if err := angel.RegisterAll(dev); err != nil {
//		return err
//	}
//	// after OnServicesDiscovered
//	hr, err := device.GetService(dev, angel.HeartRate)
//	if err == nil && hr.Measurement != nil {
//		err = hr.Measurement.EnableNotifications(ctx, onHeartRate)
//	}
package angel
