package registry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sigsyaml "sigs.k8s.io/yaml"

	"sotugyo/internal/migrate"
	"sotugyo/pkg/logging"
)

// legacyChain upgrades the JSON registry of earlier releases:
//
//	{"records": [{"name": "...", "root": "..."}], "last_project": "<root>"}
//
// to the current document layout.
func (r *Registry) legacyChain() *migrate.Chain {
	return migrate.NewChain("schemaVersion", SchemaVersion, migrate.Step{
		From: migrate.Version0,
		To:   1,
		Desc: "assign project ids and select by id",
		Fn:   r.migrateV0ToV1,
	})
}

func (r *Registry) migrateV0ToV1(doc map[string]interface{}) error {
	records, _ := doc["records"].([]interface{})
	lastRoot, _ := doc["last_project"].(string)
	created := r.now().UTC().Truncate(time.Second).Format(time.RFC3339)

	var projects []interface{}
	lastID := ""
	for _, raw := range records {
		rec, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		root, _ := rec["root"].(string)
		name, _ := rec["name"].(string)
		if strings.TrimSpace(root) == "" {
			continue
		}
		if strings.TrimSpace(name) == "" {
			name = filepath.Base(root)
		}
		id := r.newID()
		if lastRoot != "" && samePath(lastRoot, root) {
			lastID = id
		}
		projects = append(projects, map[string]interface{}{
			"id":        id,
			"name":      name,
			"root":      filepath.Clean(root),
			"createdAt": created,
		})
	}

	delete(doc, "records")
	delete(doc, "last_project")
	doc["projects"] = projects
	if lastID != "" {
		doc["lastSelected"] = lastID
	}
	return nil
}

// importLegacyLocked builds the registry from the legacy JSON document when
// one exists, persisting the result in the current format. A missing legacy
// document yields an empty registry.
func (r *Registry) importLegacyLocked() (*Document, error) {
	empty := &Document{SchemaVersion: SchemaVersion}
	if r.legacyPath == "" {
		return empty, nil
	}

	data, err := os.ReadFile(r.legacyPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logging.Warn("Registry", "Ignoring unreadable legacy registry %s: %v", r.legacyPath, err)
		}
		return empty, nil
	}

	raw := map[string]interface{}{}
	if err := sigsyaml.Unmarshal(data, &raw); err != nil {
		r.recordCorrupt(&RegistryCorruptWarning{Path: r.legacyPath, Err: err})
		return empty, nil
	}

	from, _, err := r.legacyChain().Apply(raw)
	if err != nil {
		r.recordCorrupt(&RegistryCorruptWarning{Path: r.legacyPath, Err: err})
		return empty, nil
	}

	converted, err := sigsyaml.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to re-encode legacy registry: %w", err)
	}
	var doc Document
	if err := sigsyaml.Unmarshal(converted, &doc); err != nil {
		r.recordCorrupt(&RegistryCorruptWarning{Path: r.legacyPath, Err: err})
		return empty, nil
	}
	doc.normalize()

	if _, err := migrate.Backup(r.legacyPath, data, from, r.now()); err != nil {
		logging.Warn("Registry", "Could not back up legacy registry: %v", err)
	}
	if err := r.saveLocked(&doc); err != nil {
		return nil, err
	}

	logging.Info("Registry", "Imported %d project(s) from legacy registry %s", len(doc.Projects), r.legacyPath)
	return &doc, nil
}
