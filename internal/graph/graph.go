package graph

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"sigs.k8s.io/yaml"

	"sotugyo/internal/migrate"
)

// RelativePath is where the node graph lives inside a project root.
const RelativePath = "config/node_graph.json"

// SchemaVersion is the node graph layout this package understands.
const SchemaVersion = 1

// ToolEnvironmentType is the node type identifier of tool environment nodes.
const ToolEnvironmentType = "sotugyo.tooling.ToolEnvironmentNode"

// Kind is the variant tag of a Node.
type Kind string

const (
	KindToolEnvironment Kind = "ToolEnvironment"
	KindOther           Kind = "Other"
)

// Document is a project node graph. It is read-only here; the editor that
// owns the graph is the only writer.
type Document struct {
	SchemaVersion int          `json:"schemaVersion"`
	Nodes         []Node       `json:"nodes"`
	Connections   []Connection `json:"connections"`
}

// Node is one graph node. Tool is set for tool environment nodes; every
// other node keeps its properties untyped.
type Node struct {
	ID         int                    `json:"id"`
	UUID       string                 `json:"uuid,omitempty"`
	Name       string                 `json:"name"`
	Type       string                 `json:"type"`
	Position   []float64              `json:"position,omitempty"`
	Properties map[string]interface{} `json:"properties,omitempty"`

	Tool *ToolEnvironment `json:"-"`
}

// Kind returns the node's variant tag.
func (n Node) Kind() Kind {
	if n.Tool != nil {
		return KindToolEnvironment
	}
	return KindOther
}

// ToolEnvironment is the typed payload of a tool environment node.
type ToolEnvironment struct {
	EnvironmentID  string
	ToolID         string
	ToolName       string
	VersionLabel   string
	ExecutablePath string
	// Package is the explicit package name, when the node carries one.
	Package string
}

// PackageName returns the package this node refers to: the explicit package
// property, else the tool id with dots replaced by underscores, else the
// tool name.
func (t ToolEnvironment) PackageName() string {
	switch {
	case strings.TrimSpace(t.Package) != "":
		return strings.TrimSpace(t.Package)
	case strings.TrimSpace(t.ToolID) != "":
		return strings.ReplaceAll(strings.TrimSpace(t.ToolID), ".", "_")
	default:
		return strings.TrimSpace(t.ToolName)
	}
}

// Connection links an output port of one node to an input port of another.
type Connection struct {
	Source     int    `json:"source"`
	SourceUUID string `json:"source_uuid,omitempty"`
	SourcePort string `json:"source_port,omitempty"`
	Target     int    `json:"target"`
	TargetUUID string `json:"target_uuid,omitempty"`
	TargetPort string `json:"target_port,omitempty"`
}

// NodeNotFoundError is returned when no node matches a name or uuid.
type NodeNotFoundError struct {
	Ref string
}

func (e *NodeNotFoundError) Error() string {
	return fmt.Sprintf("node %q not found in graph", e.Ref)
}

// NotToolEnvironmentError is returned when a node exists but does not
// reference a tool package.
type NotToolEnvironmentError struct {
	Ref  string
	Type string
}

func (e *NotToolEnvironmentError) Error() string {
	return fmt.Sprintf("node %q is a %s, not a tool environment", e.Ref, e.Type)
}

// PathFor returns the node graph path for a project root.
func PathFor(root string) string {
	return filepath.Join(root, filepath.FromSlash(RelativePath))
}

var chain = migrate.NewChain("schemaVersion", SchemaVersion, migrate.Step{
	From: migrate.Version0,
	To:   1,
	Desc: "move custom_properties to properties",
	Fn:   migrateV0ToV1,
})

// migrateV0ToV1 converts the editor's original layout, where each node's
// user properties sit under "custom_properties".
func migrateV0ToV1(doc map[string]interface{}) error {
	nodes, _ := doc["nodes"].([]interface{})
	for i, raw := range nodes {
		node, ok := raw.(map[string]interface{})
		if !ok {
			return fmt.Errorf("node #%d is not an object", i)
		}
		if props, ok := node["custom_properties"]; ok {
			if _, exists := node["properties"]; !exists {
				node["properties"] = props
			}
			delete(node, "custom_properties")
		}
	}
	if _, ok := doc["nodes"]; !ok {
		doc["nodes"] = []interface{}{}
	}
	if _, ok := doc["connections"]; !ok {
		doc["connections"] = []interface{}{}
	}
	return nil
}

// Load reads the node graph of a project root. A missing file yields an
// empty document. Older layouts are migrated in memory only.
func Load(root string) (*Document, error) {
	data, err := os.ReadFile(PathFor(root))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Document{SchemaVersion: SchemaVersion}, nil
		}
		return nil, err
	}
	return Parse(data)
}

// Parse decodes a node graph document of any known version.
func Parse(data []byte) (*Document, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return &Document{SchemaVersion: SchemaVersion}, nil
	}

	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse node graph: %w", err)
	}
	if raw == nil {
		raw = map[string]interface{}{}
	}
	if _, _, err := chain.Apply(raw); err != nil {
		return nil, fmt.Errorf("failed to migrate node graph: %w", err)
	}

	normalized, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var doc Document
	if err := json.Unmarshal(normalized, &doc); err != nil {
		return nil, fmt.Errorf("invalid node graph: %w", err)
	}
	for i := range doc.Nodes {
		doc.Nodes[i].Tool = toolPayload(doc.Nodes[i])
	}
	return &doc, nil
}

func toolPayload(n Node) *ToolEnvironment {
	if n.Type != ToolEnvironmentType && !strings.HasSuffix(n.Type, ".ToolEnvironmentNode") {
		return nil
	}
	str := func(key string) string {
		switch v := n.Properties[key].(type) {
		case string:
			return v
		case nil:
			return ""
		default:
			return fmt.Sprint(v)
		}
	}
	return &ToolEnvironment{
		EnvironmentID:  str("environment_id"),
		ToolID:         str("tool_id"),
		ToolName:       str("tool_name"),
		VersionLabel:   firstNonEmpty(str("version_label"), str("version")),
		ExecutablePath: str("executable_path"),
		Package:        str("package"),
	}
}

// ToolEnvironments returns the tool environment nodes in document order.
func (d *Document) ToolEnvironments() []Node {
	var out []Node
	for _, n := range d.Nodes {
		if n.Tool != nil {
			out = append(out, n)
		}
	}
	return out
}

// Find returns the node whose uuid or name equals ref. UUIDs are matched
// first; names are compared case-insensitively.
func (d *Document) Find(ref string) (*Node, bool) {
	for i := range d.Nodes {
		if d.Nodes[i].UUID != "" && d.Nodes[i].UUID == ref {
			return &d.Nodes[i], true
		}
	}
	for i := range d.Nodes {
		if strings.EqualFold(d.Nodes[i].Name, ref) {
			return &d.Nodes[i], true
		}
	}
	return nil, false
}

// PackageRef resolves a node to the package name and version it launches.
func (d *Document) PackageRef(ref string) (name, version string, err error) {
	n, ok := d.Find(ref)
	if !ok {
		return "", "", &NodeNotFoundError{Ref: ref}
	}
	if n.Tool == nil {
		return "", "", &NotToolEnvironmentError{Ref: ref, Type: n.Type}
	}
	name = n.Tool.PackageName()
	if name == "" {
		return "", "", fmt.Errorf("node %q does not name a tool package", ref)
	}
	return name, strings.TrimSpace(n.Tool.VersionLabel), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
