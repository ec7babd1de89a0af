package menus

import "sort"

// BuildTree arranges a flat menu list into a forest. Children are ordered
// by Sort then ID under each parent, and root ordering follows the same
// rule. Entries pointing at a missing parent surface as roots so a partial
// selection still renders.
func BuildTree(items []Menu) []*Node {
	nodes := make(map[int64]*Node, len(items))
	for _, m := range items {
		nodes[m.ID] = &Node{Menu: m}
	}

	var roots []*Node
	for _, m := range items {
		node := nodes[m.ID]
		if m.ParentID == nil {
			roots = append(roots, node)
			continue
		}
		parent, ok := nodes[*m.ParentID]
		if !ok || *m.ParentID == m.ID {
			roots = append(roots, node)
			continue
		}
		parent.Children = append(parent.Children, node)
	}

	sortNodes(roots)
	for _, node := range nodes {
		sortNodes(node.Children)
	}
	return roots
}

func sortNodes(nodes []*Node) {
	sort.SliceStable(nodes, func(i, j int) bool {
		if nodes[i].Sort != nodes[j].Sort {
			return nodes[i].Sort < nodes[j].Sort
		}
		return nodes[i].ID < nodes[j].ID
	})
}

// wouldCycle reports whether re-parenting id under newParent creates a
// cycle, walking up from newParent through the parent chain.
func wouldCycle(parents map[int64]*int64, id int64, newParent *int64) bool {
	for cursor := newParent; cursor != nil; {
		if *cursor == id {
			return true
		}
		next, ok := parents[*cursor]
		if !ok {
			return false
		}
		cursor = next
	}
	return false
}
