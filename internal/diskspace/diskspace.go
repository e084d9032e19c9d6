// Package diskspace checks that a download fits on the destination disk
// before any bytes are written.
package diskspace

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/document-locker/locker/internal/constants"
)

// InsufficientSpaceError indicates that there is not enough disk space available.
type InsufficientSpaceError struct {
	Path           string
	RequiredBytes  int64
	AvailableBytes int64
}

func (e *InsufficientSpaceError) Error() string {
	requiredMB := float64(e.RequiredBytes) / (1024 * 1024)
	availableMB := float64(e.AvailableBytes) / (1024 * 1024)
	return fmt.Sprintf("insufficient disk space for %s: need %.2f MB, have %.2f MB available",
		e.Path, requiredMB, availableMB)
}

// availableFunc is swapped in tests.
var availableFunc = availableBytes

// CheckAvailableSpace checks the filesystem that will hold targetPath (which
// need not exist yet). safetyMargin is a fraction added on top of
// requiredBytes; pass 0 for the default margin. When free space cannot be
// determined the check passes and the write fails on its own if it must.
func CheckAvailableSpace(targetPath string, requiredBytes int64, safetyMargin float64) error {
	if requiredBytes <= 0 {
		return nil
	}
	if safetyMargin <= 0 {
		safetyMargin = constants.DiskSpaceSafetyMargin
	}

	available, err := availableFunc(filepath.Dir(targetPath))
	if err != nil {
		return nil
	}

	required := int64(float64(requiredBytes) * (1 + safetyMargin))
	if available < required {
		return &InsufficientSpaceError{
			Path:           targetPath,
			RequiredBytes:  required,
			AvailableBytes: available,
		}
	}
	return nil
}

// IsInsufficientSpaceError checks if an error is an InsufficientSpaceError.
func IsInsufficientSpaceError(err error) bool {
	var e *InsufficientSpaceError
	return errors.As(err, &e)
}
