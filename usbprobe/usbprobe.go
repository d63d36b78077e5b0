/*Package usbprobe lists USB3 Vision cameras attached to the host.

It reads descriptors only and never claims an interface, so it is safe to
run while the camera SDK holds the device.  It is how a camera that the SDK
does not enumerate is told apart from one that is not plugged in.
*/
package usbprobe

import (
	"fmt"

	"github.com/google/gousb"
)

const (
	// VendorAlliedVision is the USB vendor ID of Allied Vision
	VendorAlliedVision = 0x1ab2

	// ClassMiscellaneous is the interface class USB3 Vision devices use
	ClassMiscellaneous = 0xef

	// SubClassU3V is the USB3 Vision interface subclass
	SubClassU3V = 0x05
)

// Device is a USB device that looks like a camera
type Device struct {
	Bus     int    `json:"bus"`
	Address int    `json:"address"`
	Vendor  uint16 `json:"vendor"`
	Product uint16 `json:"product"`
	Speed   string `json:"speed"`

	// U3V is true if the device exposes a USB3 Vision interface
	U3V bool `json:"u3v"`
}

func (d Device) String() string {
	kind := "usb"
	if d.U3V {
		kind = "u3v"
	}
	return fmt.Sprintf("%03d:%03d %04x:%04x %s %s", d.Bus, d.Address, d.Vendor, d.Product, d.Speed, kind)
}

// IsU3V reports if any interface of any configuration of desc is a USB3
// Vision interface
func IsU3V(desc *gousb.DeviceDesc) bool {
	for _, cfg := range desc.Configs {
		for _, iface := range cfg.Interfaces {
			for _, alt := range iface.AltSettings {
				if alt.Class == ClassMiscellaneous && alt.SubClass == SubClassU3V {
					return true
				}
			}
		}
	}
	return false
}

// Classify returns the Device for desc and if it should be listed: any
// USB3 Vision device, or any device from vendor when vendor is not zero
func Classify(desc *gousb.DeviceDesc, vendor uint16) (Device, bool) {
	d := Device{
		Bus:     desc.Bus,
		Address: desc.Address,
		Vendor:  uint16(desc.Vendor),
		Product: uint16(desc.Product),
		Speed:   desc.Speed.String(),
		U3V:     IsU3V(desc)}
	return d, d.U3V || (vendor != 0 && d.Vendor == vendor)
}

// List walks the bus and returns every device Classify accepts
func List(vendor uint16) ([]Device, error) {
	ctx := gousb.NewContext()
	defer ctx.Close()

	var out []Device
	// the opener never opens anything, it only sees each descriptor
	_, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		if d, ok := Classify(desc, vendor); ok {
			out = append(out, d)
		}
		return false
	})
	return out, err
}
