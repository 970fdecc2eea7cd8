package migrate

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"sotugyo/pkg/logging"
)

// Version0 is the implicit version of documents written before versioning.
const Version0 = 0

// Migration represents a single migration step on a decoded document.
type Migration interface {
	FromVersion() int
	ToVersion() int
	Description() string
	Migrate(doc map[string]interface{}) error
}

// Step is a Migration backed by a function.
type Step struct {
	From int
	To   int
	Desc string
	Fn   func(doc map[string]interface{}) error
}

func (s Step) FromVersion() int    { return s.From }
func (s Step) ToVersion() int      { return s.To }
func (s Step) Description() string { return s.Desc }

func (s Step) Migrate(doc map[string]interface{}) error {
	if s.Fn == nil {
		return nil
	}
	return s.Fn(doc)
}

// Chain migrates documents of one kind to their current schema version.
// The version lives in a top-level key of the document.
type Chain struct {
	versionKey string
	current    int
	steps      map[int]Migration
}

// NewChain returns a Chain whose documents carry their version under
// versionKey and whose newest version is current.
func NewChain(versionKey string, current int, steps ...Migration) *Chain {
	c := &Chain{
		versionKey: versionKey,
		current:    current,
		steps:      make(map[int]Migration, len(steps)),
	}
	for _, s := range steps {
		c.steps[s.FromVersion()] = s
	}
	return c
}

// CurrentVersion returns the version documents are migrated to.
func (c *Chain) CurrentVersion() int {
	return c.current
}

// DetectVersion determines the schema version of a decoded document.
// A missing or unreadable version field means Version0.
func (c *Chain) DetectVersion(doc map[string]interface{}) int {
	raw, ok := doc[c.versionKey]
	if !ok {
		return Version0
	}
	switch v := raw.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return Version0
}

// Apply brings doc to the current version in place. It reports the version
// the document had before migration and whether any step ran. Documents from
// a newer version are left untouched so that older clients can still read
// the fields they know about.
func (c *Chain) Apply(doc map[string]interface{}) (int, bool, error) {
	from := c.DetectVersion(doc)
	if from >= c.current {
		return from, false, nil
	}

	for _, m := range c.Path(from) {
		logging.Debug("Migrate", "Applying migration: %s", m.Description())
		if err := m.Migrate(doc); err != nil {
			return from, false, fmt.Errorf("migration v%d→v%d failed: %w", m.FromVersion(), m.ToVersion(), err)
		}
		doc[c.versionKey] = m.ToVersion()
	}

	if got := c.DetectVersion(doc); got != c.current {
		return from, false, fmt.Errorf("no migration path from v%d to v%d (stopped at v%d)", from, c.current, got)
	}
	return from, true, nil
}

// Path returns the sequence of migrations needed to go from fromVersion to
// the current version. It stops early when a step is missing.
func (c *Chain) Path(fromVersion int) []Migration {
	var chain []Migration
	current := fromVersion

	for current < c.current {
		m, ok := c.steps[current]
		if !ok {
			logging.Warn("Migrate", "No migration from v%d", current)
			break
		}
		chain = append(chain, m)
		current = m.ToVersion()
	}

	return chain
}

// Backup writes data next to path, tagged with the version it had and the
// time of the backup, and returns the backup path.
func Backup(path string, data []byte, fromVersion int, now time.Time) (string, error) {
	backupName := fmt.Sprintf("%s.backup.v%d.%s", filepath.Base(path), fromVersion, now.Format("20060102-150405"))
	backupPath := filepath.Join(filepath.Dir(path), backupName)

	if err := os.WriteFile(backupPath, data, 0644); err != nil {
		return "", fmt.Errorf("create backup: %w", err)
	}
	logging.Info("Migrate", "Backed up %s to %s", path, backupPath)
	return backupPath, nil
}
