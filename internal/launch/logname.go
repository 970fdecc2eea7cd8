package launch

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// LogTimeLayout is the timestamp layout embedded in log file names.
const LogTimeLayout = "20060102_150405"

// LogExt is the extension of launch log files.
const LogExt = ".log"

const (
	maxTokenBytes     = 64
	maxUniqueAttempts = 1000
)

var reservedNames = map[string]bool{
	"CON": true, "PRN": true, "AUX": true, "NUL": true,
	"COM1": true, "COM2": true, "COM3": true, "COM4": true, "COM5": true,
	"COM6": true, "COM7": true, "COM8": true, "COM9": true,
	"LPT1": true, "LPT2": true, "LPT3": true, "LPT4": true, "LPT5": true,
	"LPT6": true, "LPT7": true, "LPT8": true, "LPT9": true,
}

// LogName returns the log file stem for a launch of name/version at now:
// <name>_<version>_<YYYYmmdd_HHMMSS>. Both tokens are sanitized so the
// result is a legal file name on every supported platform.
func LogName(name, version string, now time.Time) string {
	return SanitizeToken(name) + "_" + SanitizeToken(version) + "_" + now.Format(LogTimeLayout)
}

// SanitizeToken makes s safe to use as part of a file name. Path separators,
// characters Windows rejects, spaces and control characters become '_';
// trailing dots are dropped; a Windows device name gets a '_' prefix.
func SanitizeToken(s string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(s) {
		switch {
		case r == utf8.RuneError, unicode.IsControl(r), unicode.IsSpace(r):
			b.WriteByte('_')
		case strings.ContainsRune(`/\:*?"<>|`, r):
			b.WriteByte('_')
		default:
			b.WriteRune(r)
		}
	}

	out := strings.TrimRight(b.String(), ".")
	out = truncate(out, maxTokenBytes)
	if out == "" {
		return "unnamed"
	}

	stem := out
	if i := strings.IndexByte(stem, '.'); i >= 0 {
		stem = stem[:i]
	}
	if reservedNames[strings.ToUpper(stem)] {
		out = "_" + out
	}
	return out
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}

// createLogFile creates a new log file named stem in dir. If the name is
// taken, -1, -2, ... are appended until an unused name is found.
func createLogFile(dir, stem string) (*os.File, string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, "", fmt.Errorf("failed to create log directory: %w", err)
	}

	for n := 0; n < maxUniqueAttempts; n++ {
		name := stem
		if n > 0 {
			name = fmt.Sprintf("%s-%d", stem, n)
		}
		path := filepath.Join(dir, name+LogExt)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if err == nil {
			return f, path, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, "", fmt.Errorf("failed to create log file: %w", err)
		}
	}
	return nil, "", fmt.Errorf("no free log file name for %s after %d attempts", stem, maxUniqueAttempts)
}
