// Package device holds the simulated devices the scheduler controls.
//
// Devices are created at startup from a fixed catalog (DefaultCatalog or the
// devices section of config.yaml) and live for the whole process. Only the
// command executor mutates them, through Registry.Apply.
//
// # Thread Safety
//
// The Registry serialises every mutation behind one lock. The device count
// is small, so a global lock costs nothing and rules out interleaved
// partial updates (status set without temperature, or the reverse).
// Reads return copies, never references into the registry.
//
// # Usage
//
//	reg, err := device.NewRegistry(device.DefaultCatalog())
//	if err != nil {
//	    return err
//	}
//	d, err := reg.Apply("light_1", func(d *device.Device) { d.Status = device.StatusOn })
package device
