package utils

import "fmt"

const (
	kib = 1024
	mib = kib * 1024
	gib = mib * 1024
	tib = gib * 1024
)

var units = []struct {
	size  int64
	long  string
	short string
}{
	{tib, "TB", "T"},
	{gib, "GB", "G"},
	{mib, "MB", "M"},
	{kib, "KB", "K"},
}

// HumanizeBytes formats a byte count into a readable string.
func HumanizeBytes(b int64) string {
	for _, u := range units {
		if b >= u.size {
			return fmt.Sprintf("%.2f %s", float64(b)/float64(u.size), u.long)
		}
	}
	return fmt.Sprintf("%d B", b)
}

// HumanizeBytesCompact formats a byte count to compact units without space, e.g., 1536 -> "1.50K", 2.25 GB -> "2.25G".
func HumanizeBytesCompact(b int64) string {
	for _, u := range units {
		if b >= u.size {
			return fmt.Sprintf("%.2f%s", float64(b)/float64(u.size), u.short)
		}
	}
	return fmt.Sprintf("%dB", b)
}

// Percent formats part as a percentage of total with one decimal.
// A zero total yields "-" rather than a division by zero.
func Percent(part, total int64) string {
	if total <= 0 {
		return "-"
	}
	return fmt.Sprintf("%.1f%%", 100*float64(part)/float64(total))
}
