// Package bytefmt formats byte counts for humans.
package bytefmt

import "fmt"

// Format renders a byte count as "1.5 GB" style text with 1024-based units.
func Format(b int64) string {
	v := float64(b)
	for _, unit := range []string{"B", "KB", "MB", "GB"} {
		if v < 1024 {
			return fmt.Sprintf("%.1f %s", v, unit)
		}
		v /= 1024
	}
	return fmt.Sprintf("%.1f TB", v)
}
