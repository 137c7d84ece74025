//go:build cgolibusb

package main

import (
	"github.com/usbgo/usbgo/backend"
	"github.com/usbgo/usbgo/backend/cgolibusb"
)

func newBackend() backend.Backend { return cgolibusb.New() }

const backendName = "cgo libusb"
