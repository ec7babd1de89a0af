package menus

import "testing"

func ptr(v int64) *int64 { return &v }

func TestBuildTreeOrdersBySortThenID(t *testing.T) {
	items := []Menu{
		{ID: 3, Title: "System", Sort: 2},
		{ID: 1, Title: "Dashboard", Sort: 1},
		{ID: 4, Title: "Users", ParentID: ptr(3), Sort: 2},
		{ID: 5, Title: "Roles", ParentID: ptr(3), Sort: 1},
		{ID: 6, Title: "Menus", ParentID: ptr(3), Sort: 1},
	}

	roots := BuildTree(items)
	if len(roots) != 2 {
		t.Fatalf("expected 2 roots, got %d", len(roots))
	}
	if roots[0].ID != 1 || roots[1].ID != 3 {
		t.Fatalf("root order wrong: %d, %d", roots[0].ID, roots[1].ID)
	}
	children := roots[1].Children
	if len(children) != 3 {
		t.Fatalf("expected 3 children, got %d", len(children))
	}
	// Equal sort falls back to id order.
	if children[0].ID != 5 || children[1].ID != 6 || children[2].ID != 4 {
		t.Fatalf("child order wrong: %d, %d, %d", children[0].ID, children[1].ID, children[2].ID)
	}
}

func TestBuildTreeOrphanBecomesRoot(t *testing.T) {
	items := []Menu{
		{ID: 10, Title: "Detached", ParentID: ptr(99)},
	}
	roots := BuildTree(items)
	if len(roots) != 1 || roots[0].ID != 10 {
		t.Fatalf("orphan not surfaced as root: %+v", roots)
	}
}

func TestBuildTreeSelfParentDoesNotRecurse(t *testing.T) {
	items := []Menu{
		{ID: 7, Title: "Loop", ParentID: ptr(7)},
	}
	roots := BuildTree(items)
	if len(roots) != 1 || len(roots[0].Children) != 0 {
		t.Fatalf("self parent mishandled: %+v", roots)
	}
}

func TestWouldCycle(t *testing.T) {
	// 1 -> 2 -> 3 chain, parent pointers child to parent.
	parents := map[int64]*int64{
		1: nil,
		2: ptr(1),
		3: ptr(2),
	}

	if !wouldCycle(parents, 1, ptr(3)) {
		t.Fatal("moving an ancestor under its descendant must cycle")
	}
	if !wouldCycle(parents, 2, ptr(3)) {
		t.Fatal("direct child adoption must cycle")
	}
	if wouldCycle(parents, 3, ptr(1)) {
		t.Fatal("moving a leaf under the root is legal")
	}
	if wouldCycle(parents, 3, nil) {
		t.Fatal("detaching to root is legal")
	}
}
