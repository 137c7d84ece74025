package usbgo

import "github.com/usbgo/usbgo/backend"

// TransferType and TransferStatus are re-exported from backend so
// callers never need to import that package directly for everyday use.
type (
	TransferType   = backend.TransferType
	TransferStatus = backend.Status
)

// Transfer type constants, mirrored from backend.
const (
	TransferControl     = backend.TransferControl
	TransferIsochronous = backend.TransferIsochronous
	TransferBulk        = backend.TransferBulk
	TransferInterrupt   = backend.TransferInterrupt
)

// Transfer status constants, mirrored from backend.
const (
	StatusCompleted = backend.StatusCompleted
	StatusError     = backend.StatusError
	StatusTimedOut  = backend.StatusTimedOut
	StatusCancelled = backend.StatusCancelled
	StatusStall     = backend.StatusStall
	StatusNoDevice  = backend.StatusNoDevice
	StatusOverflow  = backend.StatusOverflow
)

// TransferFlags control engine behavior around a single transfer.
type TransferFlags uint8

const (
	// FlagShortNotOk turns a successful transfer that moved fewer bytes
	// than the buffer holds into a StatusError completion.
	FlagShortNotOk TransferFlags = 1 << 0
	// FlagFreeBuffer drops the transfer's Data reference when it is
	// freed, letting the GC reclaim the buffer.
	FlagFreeBuffer TransferFlags = 1 << 1
	// FlagFreeTransfer frees the transfer automatically once its
	// callback returns.
	FlagFreeTransfer TransferFlags = 1 << 2
)

// engineFlags are private bookkeeping bits on Transfer, distinct from
// the user-visible TransferFlags above.
type engineFlags uint8

const (
	engineFlagTimedOut      engineFlags = 1 << 0
	engineFlagSyncCancelled engineFlags = 1 << 1
)

const (
	// ClaimedInterfaceBitmapWidth is the number of interfaces a single
	// DeviceHandle can track claim state for.
	ClaimedInterfaceBitmapWidth = 128

	controlSetupSize = 8

	// maxConfigurations bounds bNumConfigurations during enumeration
	// sanitization, matching libusb's own USB_MAXCONFIG: a byte field
	// reporting more configurations than a real device can have means
	// the descriptor is corrupt or the backend misread it.
	maxConfigurations = 8
)
