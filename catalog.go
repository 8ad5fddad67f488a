package imageset

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"
)

// QuarantineDir is the default quarantine directory name under the active root.
const QuarantineDir = "QUARANTINE"

// fileExt is the extension of every catalog file.
const fileExt = ".jpg"

// ErrUnsafeIdentifier is returned for keys that cannot be used as a file name.
var ErrUnsafeIdentifier = errors.New("imageset: identifier is not a safe file name")

// Catalog is the on-disk set of downloaded files, keyed by identifier.
// A key lives in at most one of the two roots.
type Catalog struct {
	Root       string // active files: {Root}/{id}.jpg
	Quarantine string // quarantined files: {Quarantine}/{id}.jpg
}

// NewCatalog returns a catalog rooted at root. An empty quarantine
// defaults to {root}/QUARANTINE.
func NewCatalog(root, quarantine string) Catalog {
	if quarantine == "" {
		quarantine = filepath.Join(root, QuarantineDir)
	}
	return Catalog{Root: root, Quarantine: quarantine}
}

// Location says which root holds a key.
type Location int

const (
	LocationNone Location = iota
	LocationActive
	LocationQuarantine
)

func (l Location) String() string {
	switch l {
	case LocationActive:
		return "active"
	case LocationQuarantine:
		return "quarantine"
	default:
		return "none"
	}
}

// Ensure creates both roots.
func (c Catalog) Ensure() error {
	for _, dir := range []string{c.Root, c.Quarantine} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("imageset: create %s: %w", dir, err)
		}
	}
	return nil
}

// ActivePath is the deterministic active path for key.
func (c Catalog) ActivePath(key string) string { return filepath.Join(c.Root, key+fileExt) }

// QuarantinePath is the deterministic quarantine path for key.
func (c Catalog) QuarantinePath(key string) string {
	return filepath.Join(c.Quarantine, key+fileExt)
}

// Present reports whether a non-empty regular file exists at path.
func Present(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.Mode().IsRegular() && fi.Size() > 0
}

// Locate reports which root holds a complete file for key.
func (c Catalog) Locate(key string) Location {
	switch {
	case Present(c.ActivePath(key)):
		return LocationActive
	case Present(c.QuarantinePath(key)):
		return LocationQuarantine
	default:
		return LocationNone
	}
}

// MoveToQuarantine moves the active file for key into the quarantine root.
// It returns fs.ErrNotExist when there is no active file, which callers
// treat as already curated.
func (c Catalog) MoveToQuarantine(key string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	src, dst := c.ActivePath(key), c.QuarantinePath(key)
	if err := os.MkdirAll(c.Quarantine, 0o755); err != nil {
		return fmt.Errorf("imageset: create %s: %w", c.Quarantine, err)
	}
	err := os.Rename(src, dst)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return err
	}
	if !errors.Is(err, syscall.EXDEV) {
		return fmt.Errorf("imageset: quarantine %s: %w", key, err)
	}
	// Roots sit on different devices.
	if err := copyFile(src, dst); err != nil {
		return fmt.Errorf("imageset: quarantine %s: %w", key, err)
	}
	if err := os.Remove(src); err != nil {
		return fmt.Errorf("imageset: quarantine %s: %w", key, err)
	}
	return nil
}

// copyFile copies src to dst through a temp file in dst's directory.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".*.part")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, dst); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

// checkKey rejects keys that are empty, contain path elements or hidden prefixes.
func checkKey(key string) error {
	if key == "" || key == "." || key == ".." ||
		strings.ContainsAny(key, `/\`) || strings.HasPrefix(key, ".") {
		return fmt.Errorf("%w: %q", ErrUnsafeIdentifier, key)
	}
	return nil
}
