package kv

import (
	"sort"
	"strconv"
	"strings"
)

// Reflect rebuilds a Node tree from a flat key/value projection
// rooted at prefix. Each key is split on '/' and walked segment by
// segment, creating intermediate mappings or sequences as needed. A
// segment composed entirely of decimal digits denotes a sequence
// index; any other segment denotes a mapping key. The container kind
// at each level is decided by looking one segment ahead.
func Reflect(prefix string, flat map[string]string) *Node {
	prefix = strings.Trim(prefix, "/")
	var root *Node
	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		rel := strings.TrimPrefix(strings.Trim(key, "/"), prefix)
		rel = strings.Trim(rel, "/")
		if rel == "" {
			continue
		}
		segs := strings.Split(rel, "/")
		root = insert(root, segs, flat[key])
	}
	if root == nil {
		root = &Node{Kind: KindMap, Map: map[string]*Node{}}
	}
	return root
}

func insert(node *Node, segs []string, value string) *Node {
	if node == nil {
		node = &Node{}
	}
	if len(segs) == 0 {
		node.Kind = KindLeaf
		node.Leaf = value
		return node
	}
	head, rest := segs[0], segs[1:]
	if isDecimal(head) {
		node.Kind = KindSeq
		idx, _ := strconv.Atoi(head)
		for len(node.Seq) <= idx {
			node.Seq = append(node.Seq, nil)
		}
		node.Seq[idx] = insert(node.Seq[idx], rest, value)
		return node
	}
	node.Kind = KindMap
	if node.Map == nil {
		node.Map = map[string]*Node{}
	}
	node.Map[head] = insert(node.Map[head], rest, value)
	return node
}

func isDecimal(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
