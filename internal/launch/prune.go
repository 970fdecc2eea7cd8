package launch

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"sotugyo/pkg/logging"
)

// logFilePattern splits a launch log name into its package prefix,
// timestamp and optional uniqueness suffix.
var logFilePattern = regexp.MustCompile(`^(.+)_(\d{8}_\d{6})(?:-(\d+))?\.log$`)

type logEntry struct {
	path   string
	prefix string
	stamp  string
	seq    int
}

func parseLogName(dir, name string) (logEntry, bool) {
	m := logFilePattern.FindStringSubmatch(name)
	if m == nil {
		return logEntry{}, false
	}
	seq := 0
	if m[3] != "" {
		seq, _ = strconv.Atoi(m[3])
	}
	return logEntry{path: filepath.Join(dir, name), prefix: m[1], stamp: m[2], seq: seq}, true
}

// Prune keeps the newest keep launch logs per package and version in dir
// and removes the rest. Files that do not look like launch logs are left
// alone. It returns the removed paths.
func Prune(dir string, keep int) ([]string, error) {
	if keep < 0 {
		return nil, fmt.Errorf("keep must not be negative, got %d", keep)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read log directory: %w", err)
	}

	groups := map[string][]logEntry{}
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		if le, ok := parseLogName(dir, entry.Name()); ok {
			groups[le.prefix] = append(groups[le.prefix], le)
		}
	}

	prefixes := make([]string, 0, len(groups))
	for p := range groups {
		prefixes = append(prefixes, p)
	}
	sort.Strings(prefixes)

	var removed []string
	var errs []error
	for _, prefix := range prefixes {
		logs := groups[prefix]
		sort.Slice(logs, func(i, j int) bool {
			if logs[i].stamp != logs[j].stamp {
				return logs[i].stamp > logs[j].stamp
			}
			return logs[i].seq > logs[j].seq
		})
		if len(logs) <= keep {
			continue
		}
		for _, le := range logs[keep:] {
			if err := os.Remove(le.path); err != nil {
				errs = append(errs, err)
				continue
			}
			removed = append(removed, le.path)
		}
	}

	logging.Debug("Launch", "Pruned %d log file(s) in %s", len(removed), dir)
	return removed, errors.Join(errs...)
}
