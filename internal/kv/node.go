// Package kv implements the flat key/value projection of the entity
// graph: walking a graph down to a KV store's key layout, and
// reflecting the KV store's contents back up into a generic tree.
package kv

// Kind tags which shape a Node holds.
type Kind int

const (
	KindLeaf Kind = iota
	KindMap
	KindSeq
)

// Node is the tagged variant the design notes call for: a finite,
// acyclic tree of maps, ordered sequences, and string leaves, used as
// the intermediate result of Reflect before it is decoded into typed
// entities.
type Node struct {
	Kind Kind
	Map  map[string]*Node
	Seq  []*Node
	Leaf string
}

// ToInterface converts a Node into a plain Go value tree
// (map[string]interface{} / []interface{} / string), the same shape
// Walk's input is expressed in, so that Reflect(Walk(g)) can be
// compared directly against g.
func (n *Node) ToInterface() interface{} {
	if n == nil {
		return nil
	}
	switch n.Kind {
	case KindMap:
		m := make(map[string]interface{}, len(n.Map))
		for k, v := range n.Map {
			m[k] = v.ToInterface()
		}
		return m
	case KindSeq:
		s := make([]interface{}, len(n.Seq))
		for i, v := range n.Seq {
			if v != nil {
				s[i] = v.ToInterface()
			}
		}
		return s
	default:
		return n.Leaf
	}
}
