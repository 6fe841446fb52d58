package services

import "fmt"

const (
	kib = 1024
	mib = 1024 * kib
	gib = 1024 * mib
)

// FormatSize renders a byte count with the largest fitting 1024-based unit
func FormatSize(size int64) string {
	switch {
	case size < kib:
		return fmt.Sprintf("%d bytes", size)
	case size < mib:
		return fmt.Sprintf("%.2f KiB", float64(size)/kib)
	case size < gib:
		return fmt.Sprintf("%.2f MiB", float64(size)/mib)
	default:
		return fmt.Sprintf("%.2f GiB", float64(size)/gib)
	}
}
