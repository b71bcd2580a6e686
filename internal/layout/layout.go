// Package layout implements the split-pane tree that arranges terminal
// sessions inside a workspace. The tree is a value: every mutation returns
// a new root and leaves the input untouched.
package layout

import (
	"encoding/json"
	"fmt"
)

// Direction is the axis of a split node.
type Direction string

const (
	// DirectionHorizontal arranges children left-to-right
	DirectionHorizontal Direction = "horizontal"
	// DirectionVertical arranges children top-to-bottom
	DirectionVertical Direction = "vertical"
)

// Position is where a new pane lands relative to its target.
type Position string

const (
	PositionTop    Position = "top"
	PositionBottom Position = "bottom"
	PositionLeft   Position = "left"
	PositionRight  Position = "right"
)

// Node is a layout tree node: either a Terminal leaf or a Split.
type Node interface {
	isNode()
}

// Terminal is a leaf wrapping exactly one session id.
type Terminal struct {
	SessionID string
}

// Split arranges two or more children along one axis. Sizes are
// proportional weights, one per child.
type Split struct {
	Direction Direction
	Children  []Node
	Sizes     []float64
}

func (Terminal) isNode() {}
func (Split) isNode()    {}

// MarshalJSON emits the tagged-union wire form used by the persisted
// workspace layout.
func (t Terminal) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type      string `json:"type"`
		SessionID string `json:"sessionId"`
	}{Type: "terminal", SessionID: t.SessionID})
}

// MarshalJSON emits the tagged-union wire form.
func (s Split) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type      string    `json:"type"`
		Direction Direction `json:"direction"`
		Children  []Node    `json:"children"`
		Sizes     []float64 `json:"sizes"`
	}{Type: "split", Direction: s.Direction, Children: s.Children, Sizes: s.Sizes})
}

// Unmarshal decodes a layout node from its JSON form. A JSON null decodes
// to a nil Node (empty tree).
func Unmarshal(data []byte) (Node, error) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("decoding layout node: %w", err)
	}

	switch probe.Type {
	case "":
		// JSON null or an object without a tag
		var isNull any
		if err := json.Unmarshal(data, &isNull); err == nil && isNull == nil {
			return nil, nil
		}
		return nil, fmt.Errorf("layout node missing type tag")

	case "terminal":
		var t struct {
			SessionID string `json:"sessionId"`
		}
		if err := json.Unmarshal(data, &t); err != nil {
			return nil, fmt.Errorf("decoding terminal node: %w", err)
		}
		return Terminal{SessionID: t.SessionID}, nil

	case "split":
		var s struct {
			Direction Direction         `json:"direction"`
			Children  []json.RawMessage `json:"children"`
			Sizes     []float64         `json:"sizes"`
		}
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("decoding split node: %w", err)
		}
		children := make([]Node, 0, len(s.Children))
		for _, raw := range s.Children {
			child, err := Unmarshal(raw)
			if err != nil {
				return nil, err
			}
			if child != nil {
				children = append(children, child)
			}
		}
		return Split{Direction: s.Direction, Children: children, Sizes: s.Sizes}, nil

	default:
		return nil, fmt.Errorf("unknown layout node type %q", probe.Type)
	}
}

// Insert places newID next to targetID, splitting the target leaf in the
// axis implied by position. An empty tree becomes a lone Terminal leaf for
// newID regardless of target. The result is simplified: a freshly created
// split that shares its parent's direction is flattened into the parent.
func Insert(tree Node, targetID, newID string, position Position) Node {
	leaf := Terminal{SessionID: newID}

	if tree == nil {
		return leaf
	}

	var insert func(node Node) Node
	insert = func(node Node) Node {
		switch n := node.(type) {
		case Terminal:
			if n.SessionID != targetID {
				return n
			}
			direction := DirectionVertical
			if position == PositionLeft || position == PositionRight {
				direction = DirectionHorizontal
			}
			children := []Node{n, leaf}
			if position == PositionLeft || position == PositionTop {
				children = []Node{leaf, n}
			}
			return Split{
				Direction: direction,
				Children:  children,
				Sizes:     []float64{50, 50},
			}

		case Split:
			children := make([]Node, len(n.Children))
			for i, child := range n.Children {
				children[i] = insert(child)
			}
			return Split{Direction: n.Direction, Children: children, Sizes: n.Sizes}

		default:
			return node
		}
	}

	return simplify(insert(tree))
}

// Remove drops the leaf matching sessionID. Splits whose children all
// vanish propagate emptiness upward; a split left with one child collapses
// to that child; otherwise remaining children share the space evenly.
// Removing an id that is not in the tree returns the tree unchanged.
func Remove(tree Node, sessionID string) Node {
	switch n := tree.(type) {
	case nil:
		return nil

	case Terminal:
		if n.SessionID == sessionID {
			return nil
		}
		return n

	case Split:
		children := make([]Node, 0, len(n.Children))
		for _, child := range n.Children {
			if kept := Remove(child, sessionID); kept != nil {
				children = append(children, kept)
			}
		}
		switch len(children) {
		case 0:
			return nil
		case 1:
			return children[0]
		}
		if len(children) == len(n.Children) {
			// Nothing removed below this split; keep its sizes.
			return Split{Direction: n.Direction, Children: children, Sizes: n.Sizes}
		}
		return Split{Direction: n.Direction, Children: children, Sizes: evenSizes(len(children))}

	default:
		return tree
	}
}

// UpdateSizes replaces the sizes of the split addressed by path, a
// root-to-node chain of child indexes. The caller's sizes are stored
// verbatim; this persists a manual divider drag. Invalid paths leave the
// tree unchanged.
func UpdateSizes(tree Node, path []int, sizes []float64) Node {
	switch n := tree.(type) {
	case nil:
		return nil

	case Terminal:
		return n

	case Split:
		if len(path) == 0 {
			if len(sizes) != len(n.Children) {
				return n
			}
			return Split{Direction: n.Direction, Children: n.Children, Sizes: sizes}
		}
		index := path[0]
		if index < 0 || index >= len(n.Children) {
			return n
		}
		children := make([]Node, len(n.Children))
		copy(children, n.Children)
		children[index] = UpdateSizes(children[index], path[1:], sizes)
		return Split{Direction: n.Direction, Children: children, Sizes: n.Sizes}

	default:
		return tree
	}
}

// SessionIDs returns every Terminal leaf's session id in pre-order.
func SessionIDs(tree Node) []string {
	switch n := tree.(type) {
	case nil:
		return nil
	case Terminal:
		return []string{n.SessionID}
	case Split:
		var ids []string
		for _, child := range n.Children {
			ids = append(ids, SessionIDs(child)...)
		}
		return ids
	default:
		return nil
	}
}

// Contains reports whether sessionID appears in the tree.
func Contains(tree Node, sessionID string) bool {
	switch n := tree.(type) {
	case nil:
		return false
	case Terminal:
		return n.SessionID == sessionID
	case Split:
		for _, child := range n.Children {
			if Contains(child, sessionID) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// simplify restores the canonical form: no split with a single child, no
// split whose direct child is a split of the same direction. Flattened
// splits get their space redistributed evenly; untouched splits keep their
// sizes.
func simplify(node Node) Node {
	split, ok := node.(Split)
	if !ok {
		return node
	}

	children := make([]Node, len(split.Children))
	for i, child := range split.Children {
		children[i] = simplify(child)
	}

	if len(children) == 1 {
		return children[0]
	}

	flattened := make([]Node, 0, len(children))
	for _, child := range children {
		if cs, ok := child.(Split); ok && cs.Direction == split.Direction {
			flattened = append(flattened, cs.Children...)
		} else {
			flattened = append(flattened, child)
		}
	}

	if len(flattened) == len(split.Children) {
		return Split{Direction: split.Direction, Children: flattened, Sizes: split.Sizes}
	}
	return Split{Direction: split.Direction, Children: flattened, Sizes: evenSizes(len(flattened))}
}

func evenSizes(count int) []float64 {
	sizes := make([]float64, count)
	share := 100 / float64(count)
	for i := range sizes {
		sizes[i] = share
	}
	return sizes
}
