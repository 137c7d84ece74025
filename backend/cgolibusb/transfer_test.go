//go:build cgolibusb

package cgolibusb

import (
	"errors"
	"testing"

	"github.com/usbgo/usbgo/backend"
)

func TestStatusForLibusbErrClassifiesKnownStrings(t *testing.T) {
	cases := []struct {
		err  error
		want backend.Status
	}{
		{nil, backend.StatusCompleted},
		{errors.New("libusb: timeout [code -7]: LIBUSB_ERROR_TIMEOUT"), backend.StatusTimedOut},
		{errors.New("libusb: no device [code -4]: LIBUSB_ERROR_NO_DEVICE"), backend.StatusNoDevice},
		{errors.New("libusb: pipe [code -9]: LIBUSB_ERROR_PIPE"), backend.StatusStall},
		{errors.New("libusb: overflow [code -8]: LIBUSB_ERROR_OVERFLOW"), backend.StatusOverflow},
		{errors.New("libusb: io error"), backend.StatusError},
	}
	for _, c := range cases {
		if got := statusForLibusbErr(c.err); got != c.want {
			t.Errorf("statusForLibusbErr(%v) = %v, want %v", c.err, got, c.want)
		}
	}
}

func TestLeU16RoundTripsLittleEndianBytes(t *testing.T) {
	if got := leU16([]byte{0x34, 0x12}); got != 0x1234 {
		t.Fatalf("leU16 = %#x, want 0x1234", got)
	}
}

func TestLe16WritesLittleEndianBytes(t *testing.T) {
	var buf [2]byte
	le16(buf[:], 0x1234)
	if buf[0] != 0x34 || buf[1] != 0x12 {
		t.Fatalf("le16 = %v, want [0x34 0x12]", buf)
	}
}
