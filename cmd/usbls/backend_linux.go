//go:build linux && !cgolibusb

package main

import (
	"github.com/usbgo/usbgo/backend"
	usbfs "github.com/usbgo/usbgo/backend/linux"
)

func newBackend() backend.Backend { return usbfs.New() }

const backendName = "linux usbfs"
