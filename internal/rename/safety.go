package rename

import "strings"

// reservedWindowsNames are basenames (sans extension) that are illegal on
// Windows regardless of case; rejected everywhere since the store's
// canonical paths must be portable across the OSes the app targets.
var reservedWindowsNames = map[string]bool{
	"CON": true, "PRN": true, "AUX": true, "NUL": true,
	"COM1": true, "COM2": true, "COM3": true, "COM4": true, "COM5": true,
	"COM6": true, "COM7": true, "COM8": true, "COM9": true,
	"LPT1": true, "LPT2": true, "LPT3": true, "LPT4": true, "LPT5": true,
	"LPT6": true, "LPT7": true, "LPT8": true, "LPT9": true,
}

const illegalChars = "<>:\"/\\|?*"

// isSafeFilename rejects characters illegal for the target filesystem
// (spec.md §4.4.3's filename_safety_check), plus empty names, trailing
// dots/spaces, and the reserved Windows device names.
func isSafeFilename(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	if strings.ContainsAny(name, illegalChars) {
		return false
	}
	for _, r := range name {
		if r < 0x20 {
			return false
		}
	}
	if strings.HasSuffix(name, ".") || strings.HasSuffix(name, " ") {
		return false
	}
	stem := name
	if idx := strings.IndexByte(name, '.'); idx >= 0 {
		stem = name[:idx]
	}
	if reservedWindowsNames[strings.ToUpper(stem)] {
		return false
	}
	return true
}
