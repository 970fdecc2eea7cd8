package graph

// endpoint identifies one side of a connection: the uuid when the
// connection carries one, else the integer node id.
func (d *Document) endpoint(uuid string, id int) (int, bool) {
	for i, n := range d.Nodes {
		if uuid != "" && n.UUID == uuid {
			return i, true
		}
	}
	if uuid != "" {
		return 0, false
	}
	for i, n := range d.Nodes {
		if n.ID == id {
			return i, true
		}
	}
	return 0, false
}

// Upstream returns the nodes with a connection into n, in connection order.
// Connections whose source no longer exists are skipped.
func (d *Document) Upstream(n Node) []Node {
	var out []Node
	seen := map[int]bool{}
	for _, c := range d.Connections {
		target, ok := d.endpoint(c.TargetUUID, c.Target)
		if !ok || !d.same(target, n) {
			continue
		}
		if source, ok := d.endpoint(c.SourceUUID, c.Source); ok && !seen[source] {
			seen[source] = true
			out = append(out, d.Nodes[source])
		}
	}
	return out
}

// Downstream returns the nodes n has a connection into, in connection order.
func (d *Document) Downstream(n Node) []Node {
	var out []Node
	seen := map[int]bool{}
	for _, c := range d.Connections {
		source, ok := d.endpoint(c.SourceUUID, c.Source)
		if !ok || !d.same(source, n) {
			continue
		}
		if target, ok := d.endpoint(c.TargetUUID, c.Target); ok && !seen[target] {
			seen[target] = true
			out = append(out, d.Nodes[target])
		}
	}
	return out
}

func (d *Document) same(i int, n Node) bool {
	if n.UUID != "" {
		return d.Nodes[i].UUID == n.UUID
	}
	return d.Nodes[i].ID == n.ID
}

// NodeNames returns the display names of nodes.
func NodeNames(nodes []Node) []string {
	names := make([]string, len(nodes))
	for i, n := range nodes {
		names[i] = n.Name
	}
	return names
}
