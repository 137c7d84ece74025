// Command usbls enumerates attached USB devices and, with -open, opens
// the first one matching -vid/-pid and runs one GET_DESCRIPTOR control
// transfer against it as a smoke test of the active backend.
package main

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/oklog/run"

	"github.com/usbgo/usbgo"
	"github.com/usbgo/usbgo/internal/obs"
	"github.com/usbgo/usbgo/pkg/usbid"
	"github.com/usbgo/usbgo/registry"
)

func main() {
	if err := runMain(); err != nil {
		fmt.Fprintf(os.Stderr, "usbls: %v\n", err)
		os.Exit(1)
	}
}

func runMain() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if cfg.Verbose {
		obs.SetLogLevel(slog.LevelDebug)
	}
	if cfg.JSON {
		obs.SetLogFormat(obs.LogFormatJSON)
	}

	if cfg.CPUProfile != "" {
		stop, err := startCPUProfile(cfg.CPUProfile)
		if err != nil {
			return err
		}
		defer stop()
	}

	vendor, product, err := parseFilters(cfg.VendorID, cfg.ProductID)
	if err != nil {
		return err
	}

	c, err := usbgo.NewContext(newBackend())
	if err != nil {
		return fmt.Errorf("new context (backend=%s): %w", backendName, err)
	}
	defer c.Exit()

	ids := usbid.New()
	ids.Load()

	var g run.Group
	{
		runCtx, cancel := context.WithCancel(context.Background())
		g.Add(func() error {
			return listDevices(runCtx, c, ids, vendor, product, cfg.Open)
		}, func(error) {
			cancel()
		})
	}
	{
		term := make(chan os.Signal, 1)
		signal.Notify(term, syscall.SIGINT, syscall.SIGTERM)
		cancelCh := make(chan struct{})
		g.Add(func() error {
			select {
			case <-term:
				return nil
			case <-cancelCh:
				return nil
			}
		}, func(error) {
			close(cancelCh)
		})
	}

	return g.Run()
}

func parseFilters(vidHex, pidHex string) (vendor, product uint16, err error) {
	if vidHex != "" {
		v, err := strconv.ParseUint(vidHex, 16, 16)
		if err != nil {
			return 0, 0, fmt.Errorf("bad -vid %q: %w", vidHex, err)
		}
		vendor = uint16(v)
	}
	if pidHex != "" {
		p, err := strconv.ParseUint(pidHex, 16, 16)
		if err != nil {
			return 0, 0, fmt.Errorf("bad -pid %q: %w", pidHex, err)
		}
		product = uint16(p)
	}
	return vendor, product, nil
}

// listDevices enumerates every attached device, prints one line per
// match against the vid/pid filters, and optionally opens the first
// match to run a control transfer smoke test.
func listDevices(ctx context.Context, c *usbgo.Context, ids *usbid.Database, wantVendor, wantProduct uint16, open bool) error {
	list, err := c.GetDeviceList(ctx)
	if err != nil {
		return fmt.Errorf("get device list: %w", err)
	}
	defer c.FreeDeviceList(list, true)

	opened := false
	for _, d := range list {
		vendor, product, err := deviceIDs(c, d)
		if err != nil {
			obs.Warn(obs.ComponentBackend, "usbls: descriptor read failed",
				append(obs.BusAddrAttrs(d.BusNumber(), d.DeviceAddress()), "error", err)...)
			continue
		}

		if wantVendor != 0 && vendor != wantVendor {
			continue
		}
		if wantProduct != 0 && product != wantProduct {
			continue
		}

		vendorName := ids.LookupVendor(vendor)
		productName := ids.LookupProduct(vendor, product)
		printDevice(d, vendor, product, vendorName, productName)

		if open && !opened {
			opened = true
			if err := probeDevice(c, d); err != nil {
				obs.Warn(obs.ComponentBackend, "usbls: probe failed",
					"vendor", vendor, "product", product, "error", err)
			}
		}
	}
	return nil
}

func deviceIDs(c *usbgo.Context, d *registry.Device) (vendor, product uint16, err error) {
	raw, hostEndian, err := c.GetDeviceDescriptor(d)
	if err != nil {
		return 0, 0, err
	}
	if hostEndian {
		return binary.NativeEndian.Uint16(raw[8:10]), binary.NativeEndian.Uint16(raw[10:12]), nil
	}
	return binary.LittleEndian.Uint16(raw[8:10]), binary.LittleEndian.Uint16(raw[10:12]), nil
}

func printDevice(d *registry.Device, vendor, product uint16, vendorName, productName string) {
	line := fmt.Sprintf("Bus %03d Device %03d: ID %04x:%04x", d.BusNumber(), d.DeviceAddress(), vendor, product)
	switch {
	case vendorName != "" && productName != "":
		line += fmt.Sprintf(" %s %s", vendorName, productName)
	case vendorName != "":
		line += fmt.Sprintf(" %s", vendorName)
	}
	fmt.Println(line)
}

// probeDevice opens d, submits a GET_DESCRIPTOR control transfer for
// the device descriptor, and drives the event loop itself until the
// transfer completes, then closes the handle.
func probeDevice(c *usbgo.Context, d *registry.Device) error {
	h, err := c.Open(context.Background(), d)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer c.Close(h)

	buf := make([]byte, 8+18)
	buf[0] = 0x80 // device-to-host, standard, device
	buf[1] = 0x06 // GET_DESCRIPTOR
	binary.NativeEndian.PutUint16(buf[2:4], 0x0100)
	binary.NativeEndian.PutUint16(buf[4:6], 0)
	binary.NativeEndian.PutUint16(buf[6:8], 18)

	t := usbgo.AllocTransfer(c)
	done := make(chan struct{})
	t.Init(h, 0, usbgo.TransferControl, buf, 1000, func(*usbgo.Transfer) { close(done) }, nil)

	if err := c.SubmitTransfer(t); err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	for {
		select {
		case <-done:
			if t.Status != usbgo.StatusCompleted {
				return fmt.Errorf("control transfer status %v", t.Status)
			}
			obs.Info(obs.ComponentBackend, "usbls: probe succeeded", "bytes", t.ActualLength)
			return nil
		default:
			if err := c.PollTimeout(time.Second); err != nil {
				return err
			}
		}
	}
}
