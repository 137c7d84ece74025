//go:build linux

package linux

import (
	"os"
	"path/filepath"

	"github.com/usbgo/usbgo/backend"
)

// Standard USB descriptor type codes (USB 2.0 spec table 9-5).
const (
	descTypeDevice    = 1
	descTypeConfig    = 2
	descTypeInterface = 4
	descTypeEndpoint  = 5
)

// readDescriptors reads the raw descriptor blob the kernel publishes at
// /sys/.../<device>/descriptors: the device descriptor followed by the
// descriptors of every configuration, each self-delimited by its own
// bLength byte.
func readDescriptors(sysfsPath string) ([]byte, error) {
	return os.ReadFile(filepath.Join(sysfsPath, "descriptors"))
}

// deviceDescriptorFrom extracts the first 18 bytes of a descriptors blob,
// which is always the device descriptor.
func deviceDescriptorFrom(raw []byte) (out [18]byte, err error) {
	if len(raw) < 18 {
		return out, os.ErrInvalid
	}
	copy(out[:], raw[:18])
	return out, nil
}

// activeConfigDescriptorFrom parses the configuration immediately
// following the device descriptor: the kernel always lists the active
// configuration first in this file, so taking the first one is correct
// without needing USBDEVFS_GETCONFIG for the common single-configuration
// case this backend targets.
func activeConfigDescriptorFrom(raw []byte) (*backend.ConfigDescriptor, error) {
	if len(raw) < 18 {
		return nil, os.ErrInvalid
	}
	buf := raw[18:]
	if len(buf) < 9 || buf[1] != descTypeConfig {
		return nil, os.ErrInvalid
	}

	cd := &backend.ConfigDescriptor{
		ConfigurationValue: buf[5],
		NumInterfaces:      buf[4],
	}

	for i := int(buf[0]); i < len(buf); {
		if i+2 > len(buf) {
			break
		}
		length := int(buf[i])
		if length == 0 {
			break
		}
		typ := buf[i+1]
		switch typ {
		case descTypeConfig:
			// A second configuration descriptor ends the active one.
			return cd, nil
		case descTypeEndpoint:
			if i+7 <= len(buf) {
				cd.Endpoints = append(cd.Endpoints, backend.EndpointDescriptor{
					Address:       buf[i+2],
					Attributes:    buf[i+3],
					MaxPacketSize: uint16(buf[i+4]) | uint16(buf[i+5])<<8,
				})
			}
		}
		i += length
	}
	return cd, nil
}
