package migrate

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func renameKey(from, to string) func(map[string]interface{}) error {
	return func(doc map[string]interface{}) error {
		if v, ok := doc[from]; ok {
			doc[to] = v
			delete(doc, from)
		}
		return nil
	}
}

func testChain() *Chain {
	return NewChain("schemaVersion", 2,
		Step{From: 0, To: 1, Desc: "rename last_project", Fn: renameKey("last_project", "lastSelected")},
		Step{From: 1, To: 2, Desc: "rename items", Fn: renameKey("items", "projects")},
	)
}

func TestDetectVersion(t *testing.T) {
	c := testChain()

	tests := []struct {
		name string
		doc  map[string]interface{}
		want int
	}{
		{"missing", map[string]interface{}{}, 0},
		{"int", map[string]interface{}{"schemaVersion": 1}, 1},
		{"float from json", map[string]interface{}{"schemaVersion": float64(2)}, 2},
		{"string", map[string]interface{}{"schemaVersion": "1"}, 1},
		{"garbage", map[string]interface{}{"schemaVersion": []interface{}{}}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.DetectVersion(tt.doc))
		})
	}
}

func TestApplyFullChain(t *testing.T) {
	c := testChain()
	doc := map[string]interface{}{"last_project": "/p", "items": []interface{}{"a"}}

	from, migrated, err := c.Apply(doc)
	require.NoError(t, err)
	assert.Equal(t, 0, from)
	assert.True(t, migrated)
	assert.Equal(t, 2, doc["schemaVersion"])
	assert.Equal(t, "/p", doc["lastSelected"])
	assert.Equal(t, []interface{}{"a"}, doc["projects"])
	assert.NotContains(t, doc, "items")
}

func TestApplyCurrentAndNewer(t *testing.T) {
	c := testChain()

	doc := map[string]interface{}{"schemaVersion": 2, "items": "kept"}
	_, migrated, err := c.Apply(doc)
	require.NoError(t, err)
	assert.False(t, migrated)
	assert.Equal(t, "kept", doc["items"])

	newer := map[string]interface{}{"schemaVersion": 7, "future": true}
	from, migrated, err := c.Apply(newer)
	require.NoError(t, err)
	assert.Equal(t, 7, from)
	assert.False(t, migrated)
}

func TestApplyStepFailure(t *testing.T) {
	c := NewChain("v", 1, Step{From: 0, To: 1, Desc: "boom", Fn: func(map[string]interface{}) error {
		return errors.New("boom")
	}})

	_, migrated, err := c.Apply(map[string]interface{}{})
	require.Error(t, err)
	assert.False(t, migrated)
	assert.Contains(t, err.Error(), "v0→v1")
}

func TestApplyMissingStep(t *testing.T) {
	c := NewChain("v", 3, Step{From: 0, To: 1, Desc: "first"})

	_, _, err := c.Apply(map[string]interface{}{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no migration path")
	assert.Len(t, c.Path(0), 1)
}

func TestBackup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "projects.yaml")
	now := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)

	backup, err := Backup(path, []byte("old"), 0, now)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "projects.yaml.backup.v0.20240301-123000"), backup)

	data, err := os.ReadFile(backup)
	require.NoError(t, err)
	assert.Equal(t, "old", string(data))
}
