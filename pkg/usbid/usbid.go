// Package usbid looks up vendor and product names from the standard
// USB ID database (usb.ids), the same file usbutils' lsusb reads.
package usbid

import (
	"bufio"
	"os"
	"strconv"
	"strings"
	"sync"
)

// DefaultPaths lists the standard locations for the USB ID database
// across common Linux distributions.
var DefaultPaths = []string{
	"/usr/share/hwdata/usb.ids",
	"/var/lib/usbutils/usb.ids",
	"/usr/share/misc/usb.ids",
}

// Database caches vendor and product names from the USB ID database.
type Database struct {
	vendors  map[uint16]string // VID -> vendor name
	products map[uint32]string // (VID<<16)|PID -> product name
	loaded   bool
	found    bool
	mu       sync.RWMutex
	paths    []string
}

// New creates a USB ID database that searches the default paths.
func New() *Database {
	return NewWithPaths(DefaultPaths)
}

// NewWithPaths creates a USB ID database that searches the given paths,
// in order, stopping at the first one that opens successfully.
func NewWithPaths(paths []string) *Database {
	return &Database{
		vendors:  make(map[uint16]string),
		products: make(map[uint32]string),
		paths:    paths,
	}
}

// Load parses the USB ID database file. It is idempotent: subsequent
// calls are no-ops once a load has been attempted, successful or not.
//
// Returns true if a database file was found and parsed.
func (db *Database) Load() bool {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.loaded {
		return db.found
	}
	db.loaded = true

	for _, path := range db.paths {
		file, err := os.Open(path)
		if err != nil {
			continue
		}
		db.parseDatabase(file)
		file.Close()
		db.found = true
		return true
	}
	return false
}

// parseDatabase parses the usb.ids text format: unindented "vid  name"
// vendor lines followed by tab-indented "pid  name" product lines.
func (db *Database) parseDatabase(file *os.File) {
	scanner := bufio.NewScanner(file)
	var currentVID uint16

	for scanner.Scan() {
		line := scanner.Text()
		if len(line) == 0 || line[0] == '#' {
			continue
		}

		if line[0] == '\t' {
			if currentVID == 0 {
				continue
			}
			line = line[1:]
			if len(line) < 6 || line[4] != ' ' {
				continue
			}
			pid, err := strconv.ParseUint(line[:4], 16, 16)
			if err != nil {
				continue
			}
			name := strings.TrimLeft(line[5:], " ")
			key := uint32(currentVID)<<16 | uint32(pid)
			db.products[key] = name
			continue
		}

		if len(line) < 6 {
			currentVID = 0
			continue
		}
		vid, err := strconv.ParseUint(line[:4], 16, 16)
		if err != nil {
			currentVID = 0
			continue
		}
		currentVID = uint16(vid)
		if line[4] == ' ' {
			db.vendors[currentVID] = strings.TrimLeft(line[5:], " ")
		}
	}
}

// LookupVendor returns the vendor name for vid, or "" if unknown.
func (db *Database) LookupVendor(vid uint16) string {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.vendors[vid]
}

// LookupProduct returns the product name for the vid/pid pair, or "" if
// unknown.
func (db *Database) LookupProduct(vid, pid uint16) string {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.products[uint32(vid)<<16|uint32(pid)]
}

// IsLoaded reports whether Load has been attempted.
func (db *Database) IsLoaded() bool {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.loaded
}

// VendorCount returns the number of distinct vendors loaded.
func (db *Database) VendorCount() int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return len(db.vendors)
}

// ProductCount returns the number of distinct vendor/product pairs
// loaded.
func (db *Database) ProductCount() int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return len(db.products)
}
