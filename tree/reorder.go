// Package tree turns drag gestures over the collection tree into move
// operations.
package tree

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrIllegalDrop is returned for drops that must not change the tree.
var ErrIllegalDrop = errors.New("illegal drop")

type Kind string

const (
	KindCollection Kind = "collection"
	KindDocument   Kind = "document"
)

// Node is one entry of the ordered, parent-referencing hierarchy. IDs are
// unique among collections; a document may share an ID with a collection.
type Node struct {
	ID       string
	Title    string
	Kind     Kind
	Children []Node
}

func (n Node) IsDocument() bool {
	return n.Kind == KindDocument
}

// Position is where the pointer sits inside a target's bounding box.
type Position int

const (
	PositionTop Position = iota
	PositionMiddle
	PositionBottom
)

func (p Position) String() string {
	switch p {
	case PositionTop:
		return "top"
	case PositionMiddle:
		return "middle"
	case PositionBottom:
		return "bottom"
	default:
		return "Position(" + strconv.Itoa(int(p)) + ")"
	}
}

// ParsePosition accepts the names returned by Position.String.
func ParsePosition(s string) (Position, error) {
	switch s {
	case "top":
		return PositionTop, nil
	case "middle":
		return PositionMiddle, nil
	case "bottom":
		return PositionBottom, nil
	}
	return 0, fmt.Errorf("unknown drop position %q", s)
}

const (
	topFraction    = 0.3
	bottomFraction = 0.7
)

// PositionFor buckets pointer y into the top 30%, middle 40% or bottom 30% of
// a box starting at top with the given height.
func PositionFor(y, top, height float64) Position {
	rel := y - top
	switch {
	case rel < height*topFraction:
		return PositionTop
	case rel > height*bottomFraction:
		return PositionBottom
	default:
		return PositionMiddle
	}
}

// Rect is a rendered node's bounding box.
type Rect struct {
	Left, Top, Width, Height float64
}

func (r Rect) Position(y float64) Position {
	return PositionFor(y, r.Top, r.Height)
}

// Outside reports whether the pointer left r by more than tolerance on any
// side. Pointer jitter along an edge should not end a hover.
func (r Rect) Outside(x, y, tolerance float64) bool {
	return x < r.Left-tolerance ||
		x >= r.Left+r.Width+tolerance ||
		y < r.Top-tolerance ||
		y >= r.Top+r.Height+tolerance
}

// Move is the intent of a drop. An empty TargetParentID means the root; an
// empty InsertBeforeID means append after the last sibling.
type Move struct {
	NodeID         string
	TargetParentID string
	InsertBeforeID string
}

// Resolve decides what dropping draggedID onto targetID at pos means. It
// never modifies nodes.
func Resolve(nodes []Node, draggedID, targetID string, pos Position) (Move, error) {
	dragged, _, _, ok := locate(nodes, draggedID)
	if !ok {
		return Move{}, fmt.Errorf("%w: collection %s not found", ErrIllegalDrop, draggedID)
	}
	target, parentID, siblings, ok := locate(nodes, targetID)
	if !ok {
		return Move{}, fmt.Errorf("%w: drop target %s is not a collection", ErrIllegalDrop, targetID)
	}
	if draggedID == targetID {
		return Move{}, fmt.Errorf("%w: cannot drop %s onto itself", ErrIllegalDrop, draggedID)
	}
	if contains(dragged, targetID) {
		return Move{}, fmt.Errorf("%w: cannot drop %s into its own descendant %s", ErrIllegalDrop, draggedID, targetID)
	}

	switch pos {
	case PositionMiddle:
		return Move{NodeID: draggedID, TargetParentID: target.ID}, nil

	case PositionTop:
		return Move{NodeID: draggedID, TargetParentID: parentID, InsertBeforeID: target.ID}, nil

	case PositionBottom:
		return Move{NodeID: draggedID, TargetParentID: parentID, InsertBeforeID: nextSibling(siblings, targetID, draggedID)}, nil
	}
	return Move{}, fmt.Errorf("%w: unknown position %s", ErrIllegalDrop, pos)
}

// TargetPosition converts a move into the index the backend expects: the
// position among the new parent's collection children, not counting the
// dragged node. An unknown or empty InsertBeforeID appends.
func TargetPosition(nodes []Node, m Move) int {
	siblings := nodes
	if m.TargetParentID != "" {
		parent, _, _, ok := locate(nodes, m.TargetParentID)
		if !ok {
			return 0
		}
		siblings = parent.Children
	}

	idx := 0
	for _, s := range siblings {
		if s.IsDocument() || s.ID == m.NodeID {
			continue
		}
		if s.ID == m.InsertBeforeID {
			return idx
		}
		idx++
	}
	return idx
}

// Apply returns a copy of nodes with m carried out, for display before the
// backend confirms. nodes is left untouched.
func Apply(nodes []Node, m Move) ([]Node, error) {
	dragged, _, _, ok := locate(nodes, m.NodeID)
	if !ok {
		return nil, fmt.Errorf("%w: collection %s not found", ErrIllegalDrop, m.NodeID)
	}
	if m.TargetParentID == m.NodeID || (m.TargetParentID != "" && contains(dragged, m.TargetParentID)) {
		return nil, fmt.Errorf("%w: cannot move %s under itself", ErrIllegalDrop, m.NodeID)
	}
	if m.TargetParentID != "" {
		if _, _, _, ok := locate(nodes, m.TargetParentID); !ok {
			return nil, fmt.Errorf("%w: collection %s not found", ErrIllegalDrop, m.TargetParentID)
		}
	}

	moved := clone(dragged)
	out := remove(nodes, m.NodeID)
	if m.TargetParentID == "" {
		return insertBefore(out, moved, m.InsertBeforeID), nil
	}
	out, _ = mapCollection(out, m.TargetParentID, func(parent Node) Node {
		parent.Children = insertBefore(parent.Children, moved, m.InsertBeforeID)
		return parent
	})
	return out, nil
}

// Flatten lists nodes depth first together with their depth.
func Flatten(nodes []Node) []FlatNode {
	var out []FlatNode
	var walk func([]Node, int)
	walk = func(ns []Node, depth int) {
		for _, n := range ns {
			out = append(out, FlatNode{Node: n, Depth: depth})
			walk(n.Children, depth+1)
		}
	}
	walk(nodes, 0)
	return out
}

// FlatNode is a node with its depth in the tree.
type FlatNode struct {
	Node
	Depth int
}

// locate finds a collection by id, returning it along with its parent's id
// and its sibling list.
func locate(nodes []Node, id string) (Node, string, []Node, bool) {
	var search func(ns []Node, parentID string) (Node, string, []Node, bool)
	search = func(ns []Node, parentID string) (Node, string, []Node, bool) {
		for _, n := range ns {
			if n.IsDocument() {
				continue
			}
			if n.ID == id {
				return n, parentID, ns, true
			}
			if found, pid, sibs, ok := search(n.Children, n.ID); ok {
				return found, pid, sibs, true
			}
		}
		return Node{}, "", nil, false
	}
	return search(nodes, "")
}

// contains reports whether id is root itself or one of its collection
// descendants.
func contains(root Node, id string) bool {
	if root.ID == id {
		return true
	}
	for _, c := range root.Children {
		if c.IsDocument() {
			continue
		}
		if contains(c, id) {
			return true
		}
	}
	return false
}

// nextSibling returns the collection after targetID, skipping the dragged
// node, or "" if target is the last one.
func nextSibling(siblings []Node, targetID, draggedID string) string {
	seen := false
	for _, s := range siblings {
		if s.IsDocument() {
			continue
		}
		if seen && s.ID != draggedID {
			return s.ID
		}
		if s.ID == targetID {
			seen = true
		}
	}
	return ""
}

func clone(n Node) Node {
	if n.Children != nil {
		children := make([]Node, len(n.Children))
		for i, c := range n.Children {
			children[i] = clone(c)
		}
		n.Children = children
	}
	return n
}

func remove(nodes []Node, id string) []Node {
	if nodes == nil {
		return nil
	}
	out := make([]Node, 0, len(nodes))
	for _, n := range nodes {
		if !n.IsDocument() && n.ID == id {
			continue
		}
		n.Children = remove(n.Children, id)
		out = append(out, n)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func insertBefore(nodes []Node, n Node, beforeID string) []Node {
	out := make([]Node, 0, len(nodes)+1)
	inserted := false
	for _, s := range nodes {
		if !inserted && beforeID != "" && !s.IsDocument() && s.ID == beforeID {
			out = append(out, n)
			inserted = true
		}
		out = append(out, s)
	}
	if !inserted {
		out = append(out, n)
	}
	return out
}

// mapCollection replaces the collection with the given id by fn(node).
func mapCollection(nodes []Node, id string, fn func(Node) Node) ([]Node, bool) {
	for i, n := range nodes {
		if n.IsDocument() {
			continue
		}
		if n.ID == id {
			nodes[i] = fn(n)
			return nodes, true
		}
		if children, ok := mapCollection(n.Children, id, fn); ok {
			nodes[i].Children = children
			return nodes, true
		}
	}
	return nodes, false
}
