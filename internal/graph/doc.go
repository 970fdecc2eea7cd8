// Package graph reads the tool environment nodes of a project's node graph
// (config/node_graph.json) so that a node can be launched by name.
//
// The graph belongs to the node editor; this package never writes it.
// Documents without a schemaVersion use the editor's original layout and
// are migrated in memory.
package graph
