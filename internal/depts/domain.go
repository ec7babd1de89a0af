package depts

import (
	"sort"
	"time"
)

// Status values for a department.
const (
	StatusDisabled = 0
	StatusEnabled  = 1
)

// Dept is an organizational unit.
type Dept struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	ParentID  *int64    `json:"parent_id,omitempty"`
	Sort      int       `json:"sort"`
	Leader    string    `json:"leader,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Email     string    `json:"email,omitempty"`
	Status    int       `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// Node is a department with its resolved children.
type Node struct {
	Dept
	Children []*Node `json:"children,omitempty"`
}

// BuildTree arranges a flat department list into a forest ordered by Sort
// then ID. Entries with a missing parent surface as roots.
func BuildTree(items []Dept) []*Node {
	nodes := make(map[int64]*Node, len(items))
	for _, d := range items {
		nodes[d.ID] = &Node{Dept: d}
	}

	var roots []*Node
	for _, d := range items {
		node := nodes[d.ID]
		if d.ParentID == nil {
			roots = append(roots, node)
			continue
		}
		parent, ok := nodes[*d.ParentID]
		if !ok || *d.ParentID == d.ID {
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
