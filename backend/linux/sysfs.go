//go:build linux

package linux

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// sysfsUSBPath is where the kernel publishes one directory per USB
// device attachment.
const sysfsUSBPath = "/sys/bus/usb/devices"

// devfsUSBPath is the usbfs character-device tree matching sysfsUSBPath.
const devfsUSBPath = "/dev/bus/usb"

// usbDeviceInfo is what scanUSBDevices learns about one attachment
// before it becomes a backend.Device.
type usbDeviceInfo struct {
	sysfsPath         string
	devfsPath         string
	busNum            uint8
	devNum            uint8
	numConfigurations uint8
}

// scanUSBDevices walks sysfsUSBPath the way udev does, skipping root
// hub entries ("usbN") and interface entries (names containing ":").
func scanUSBDevices() ([]usbDeviceInfo, error) {
	entries, err := os.ReadDir(sysfsUSBPath)
	if err != nil {
		return nil, err
	}

	var devices []usbDeviceInfo
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, "usb") || strings.Contains(name, ":") {
			continue
		}

		info, err := parseUSBDevice(filepath.Join(sysfsUSBPath, name))
		if err != nil {
			continue
		}
		devices = append(devices, info)
	}
	return devices, nil
}

func parseUSBDevice(sysfsPath string) (usbDeviceInfo, error) {
	info := usbDeviceInfo{sysfsPath: sysfsPath}

	busNum, err := readSysfsUint8(filepath.Join(sysfsPath, "busnum"))
	if err != nil {
		return info, err
	}
	info.busNum = busNum

	devNum, err := readSysfsUint8(filepath.Join(sysfsPath, "devnum"))
	if err != nil {
		return info, err
	}
	info.devNum = devNum
	info.devfsPath = formatDevfsPath(busNum, devNum)

	if n, err := readSysfsUint8(filepath.Join(sysfsPath, "bNumConfigurations")); err == nil {
		info.numConfigurations = n
	}

	return info, nil
}

func formatDevfsPath(busNum, devNum uint8) string {
	return filepath.Join(devfsUSBPath, formatPadded3(busNum), formatPadded3(devNum))
}

func formatPadded3(v uint8) string {
	s := strconv.FormatUint(uint64(v), 10)
	for len(s) < 3 {
		s = "0" + s
	}
	return s
}

func readSysfsString(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func readSysfsUint8(path string) (uint8, error) {
	s, err := readSysfsString(path)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(s, 10, 8)
	if err != nil {
		return 0, err
	}
	return uint8(v), nil
}
