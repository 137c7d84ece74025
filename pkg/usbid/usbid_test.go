package usbid

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewUsesDefaultPaths(t *testing.T) {
	db := New()
	if len(db.paths) != len(DefaultPaths) {
		t.Errorf("paths = %d, want %d", len(db.paths), len(DefaultPaths))
	}
	if db.vendors == nil || db.products == nil {
		t.Error("maps not initialized")
	}
}

func TestNewWithPathsUsesGivenPaths(t *testing.T) {
	custom := []string{"/custom/path1", "/custom/path2"}
	db := NewWithPaths(custom)
	if len(db.paths) != len(custom) {
		t.Fatalf("paths = %d, want %d", len(db.paths), len(custom))
	}
	for i, p := range db.paths {
		if p != custom[i] {
			t.Errorf("paths[%d] = %q, want %q", i, p, custom[i])
		}
	}
}

func TestLoadReturnsFalseWhenNoFileFound(t *testing.T) {
	db := NewWithPaths([]string{"/nonexistent/path/usb.ids"})
	if db.Load() {
		t.Error("Load() = true, want false")
	}
	if !db.IsLoaded() {
		t.Error("IsLoaded() = false after Load attempt")
	}
}

func TestLoadIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "usb.ids")
	content := "1234  Test Vendor\n\t5678  Test Product\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	db := NewWithPaths([]string{path})
	if !db.Load() {
		t.Fatal("first Load() failed")
	}
	v1, p1 := db.VendorCount(), db.ProductCount()
	if !db.Load() {
		t.Fatal("second Load() failed")
	}
	if v1 != db.VendorCount() || p1 != db.ProductCount() {
		t.Error("second Load() modified the database")
	}
}

func TestLookupAgainstParsedDatabase(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "usb.ids")
	content := `# comment

1234  Test Vendor One
	5678  Test Product One
	9abc  Test Product Two
abcd  Test Vendor Two
	def0  Test Product Three
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	db := NewWithPaths([]string{path})
	if !db.Load() {
		t.Fatal("Load() failed")
	}

	cases := []struct {
		vid, pid    uint16
		wantVendor  string
		wantProduct string
	}{
		{0x1234, 0x5678, "Test Vendor One", "Test Product One"},
		{0x1234, 0x9abc, "Test Vendor One", "Test Product Two"},
		{0xabcd, 0xdef0, "Test Vendor Two", "Test Product Three"},
		{0xffff, 0x0000, "", ""},
		{0x1234, 0xffff, "Test Vendor One", ""},
	}
	for _, c := range cases {
		if got := db.LookupVendor(c.vid); got != c.wantVendor {
			t.Errorf("LookupVendor(%#04x) = %q, want %q", c.vid, got, c.wantVendor)
		}
		if got := db.LookupProduct(c.vid, c.pid); got != c.wantProduct {
			t.Errorf("LookupProduct(%#04x, %#04x) = %q, want %q", c.vid, c.pid, got, c.wantProduct)
		}
	}
}

func TestMalformedLinesAreSkipped(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "usb.ids")
	content := `1234  Valid Vendor
	5678  Valid Product
ZZZZ  Invalid VID
	YYYY  Invalid PID
12    Too short
9abc  Another Valid Vendor
	def0  Another Valid Product
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	db := NewWithPaths([]string{path})
	if !db.Load() {
		t.Fatal("Load() failed")
	}
	if got := db.VendorCount(); got != 2 {
		t.Errorf("VendorCount() = %d, want 2", got)
	}
	if got := db.ProductCount(); got != 2 {
		t.Errorf("ProductCount() = %d, want 2", got)
	}
}
