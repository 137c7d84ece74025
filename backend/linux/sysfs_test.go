//go:build linux

package linux

import (
	"os"
	"path/filepath"
	"testing"
)

func writeSysfsAttr(t *testing.T, dir, name, value string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(value+"\n"), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestParseUSBDeviceReadsBusDevNumAndConfigCount(t *testing.T) {
	dir := t.TempDir()
	writeSysfsAttr(t, dir, "busnum", "2")
	writeSysfsAttr(t, dir, "devnum", "7")
	writeSysfsAttr(t, dir, "bNumConfigurations", "1")

	info, err := parseUSBDevice(dir)
	if err != nil {
		t.Fatalf("parseUSBDevice: %v", err)
	}
	if info.busNum != 2 || info.devNum != 7 || info.numConfigurations != 1 {
		t.Fatalf("info = %+v, want bus=2 dev=7 cfg=1", info)
	}
	if info.devfsPath != "/dev/bus/usb/002/007" {
		t.Fatalf("devfsPath = %q, want /dev/bus/usb/002/007", info.devfsPath)
	}
}

func TestParseUSBDeviceRequiresBusAndDevNum(t *testing.T) {
	dir := t.TempDir()
	if _, err := parseUSBDevice(dir); err == nil {
		t.Fatalf("expected an error with no busnum/devnum files present")
	}
}

func TestFormatDevfsPathZeroPads(t *testing.T) {
	if got := formatDevfsPath(1, 3); got != "/dev/bus/usb/001/003" {
		t.Fatalf("formatDevfsPath(1,3) = %q", got)
	}
	if got := formatDevfsPath(123, 45); got != "/dev/bus/usb/123/045" {
		t.Fatalf("formatDevfsPath(123,45) = %q", got)
	}
}
