package scene

import (
	"strings"

	"shelfcore/pkg/domain"
)

// PathSeparator separates node names in hierarchy paths.
const PathSeparator = "/"

// Children returns a copy of a node's child IDs in insertion order.
func (r *Registry) Children(id NodeID) []NodeID {
	n, ok := r.nodes[id]
	if !ok {
		return nil
	}
	return append([]NodeID(nil), n.Children...)
}

// Descendants returns every node below id in depth-first pre-order.
func (r *Registry) Descendants(id NodeID) []NodeID {
	var out []NodeID
	r.walk(id, func(n *Node) bool {
		out = append(out, n.ID)
		return true
	})
	return out
}

// walk visits the subtree below id depth-first. Returning false from fn stops the walk.
func (r *Registry) walk(id NodeID, fn func(*Node) bool) bool {
	n, ok := r.nodes[id]
	if !ok {
		return true
	}
	for _, c := range n.Children {
		child, ok := r.nodes[c]
		if !ok {
			continue
		}
		if !fn(child) {
			return false
		}
		if !r.walk(c, fn) {
			return false
		}
	}
	return true
}

// FindDescendant returns the first node below id, in depth-first order, accepted by match.
func (r *Registry) FindDescendant(id NodeID, match func(*Node) bool) (NodeID, bool) {
	var found NodeID
	r.walk(id, func(n *Node) bool {
		if match(n) {
			found = n.ID
			return false
		}
		return true
	})
	return found, found != 0
}

// IsAncestor reports whether anc is a strict ancestor of id.
func (r *Registry) IsAncestor(anc, id NodeID) bool {
	n, ok := r.nodes[id]
	for ok && n.Parent != 0 {
		if n.Parent == anc {
			return true
		}
		n, ok = r.nodes[n.Parent]
	}
	return false
}

// NearestAncestor returns the closest strict ancestor whose kind is one of kinds.
func (r *Registry) NearestAncestor(id NodeID, kinds ...domain.NodeKind) (NodeID, bool) {
	n, ok := r.nodes[id]
	for ok && n.Parent != 0 {
		p, pok := r.nodes[n.Parent]
		if !pok {
			return 0, false
		}
		for _, k := range kinds {
			if p.Kind == k {
				return p.ID, true
			}
		}
		n, ok = p, pok
	}
	return 0, false
}

// PathFrom returns the slash-joined names from just below anc down to id.
func (r *Registry) PathFrom(anc, id NodeID) (string, bool) {
	var parts []string
	n, ok := r.nodes[id]
	for ok {
		if n.ID == anc {
			for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
				parts[i], parts[j] = parts[j], parts[i]
			}
			return strings.Join(parts, PathSeparator), true
		}
		parts = append(parts, n.Name)
		if n.Parent == 0 {
			break
		}
		n, ok = r.nodes[n.Parent]
	}
	return "", false
}

// FindPath walks path segment by segment from root using exact name equality.
func (r *Registry) FindPath(root NodeID, path string) (NodeID, bool) {
	return r.FindPathFunc(root, path, func(name, segment string) bool { return name == segment })
}

// FindPathFunc walks path from root, choosing at each level the first child whose
// name satisfies eq.
func (r *Registry) FindPathFunc(root NodeID, path string, eq func(name, segment string) bool) (NodeID, bool) {
	if _, ok := r.nodes[root]; !ok {
		return 0, false
	}
	cur := root
	for _, seg := range strings.Split(strings.Trim(path, PathSeparator), PathSeparator) {
		if seg == "" {
			continue
		}
		next := NodeID(0)
		for _, c := range r.nodes[cur].Children {
			if child, ok := r.nodes[c]; ok && eq(child.Name, seg) {
				next = c
				break
			}
		}
		if next == 0 {
			return 0, false
		}
		cur = next
	}
	return cur, cur != root || strings.Trim(path, PathSeparator) == ""
}
