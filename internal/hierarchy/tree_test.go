package hierarchy

import (
	"math/rand"
	"testing"

	"github.com/google/uuid"

	"github.com/uplinepay/uplinepay-backend/internal/types"
)

func user(name string, parent *types.User) *types.User {
	u := &types.User{ID: uuid.New(), Username: name}
	if parent != nil {
		pid := parent.ID
		u.ParentID = &pid
	}
	return u
}

// shape flattens a forest into parent->child username edges plus root names,
// giving an order-insensitive fingerprint for isomorphism checks.
func shape(roots []*Node) map[string]string {
	out := make(map[string]string)
	Walk(roots, func(n *Node, depth int) {
		if n.User.ParentID == nil {
			out[n.User.Username] = ""
		}
		for _, c := range n.Children {
			out[c.User.Username] = n.User.Username
		}
	})
	return out
}

func TestBuildTreePermutationIndependence(t *testing.T) {
	root := user("root", nil)
	a := user("a", root)
	b := user("b", root)
	a1 := user("a1", a)
	a2 := user("a2", a)
	b1 := user("b1", b)
	records := []*types.User{root, a, b, a1, a2, b1}

	want := shape(BuildTree(records, uuid.Nil))
	if len(want) != len(records) {
		t.Fatalf("baseline shape has %d entries, want %d", len(want), len(records))
	}

	rng := rand.New(rand.NewSource(1))
	for trial := 0; trial < 20; trial++ {
		shuffled := append([]*types.User(nil), records...)
		rng.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})

		got := shape(BuildTree(shuffled, uuid.Nil))
		if len(got) != len(want) {
			t.Fatalf("trial %d: %d nodes, want %d", trial, len(got), len(want))
		}
		for child, parent := range want {
			if got[child] != parent {
				t.Fatalf("trial %d: %s attached to %q, want %q", trial, child, got[child], parent)
			}
		}
	}
}

func TestBuildTreeOrphanBecomesRoot(t *testing.T) {
	outside := user("outside", nil)
	orphan := user("orphan", outside)
	child := user("child", orphan)

	// The declared parent is not part of the record set.
	roots := BuildTree([]*types.User{orphan, child}, uuid.Nil)
	if len(roots) != 1 {
		t.Fatalf("roots = %d, want 1", len(roots))
	}
	if roots[0].User.Username != "orphan" {
		t.Fatalf("root = %s, want orphan", roots[0].User.Username)
	}
	if len(roots[0].Children) != 1 || roots[0].Children[0].User.Username != "child" {
		t.Fatalf("orphan subtree not preserved: %+v", roots[0].Children)
	}
}

func TestBuildTreeViewerChildrenAreRoots(t *testing.T) {
	viewer := user("viewer", nil)
	a := user("a", viewer)
	b := user("b", viewer)
	a1 := user("a1", a)

	// Downline view: the viewer itself is excluded, its children lead the forest.
	roots := BuildTree([]*types.User{a, b, a1}, viewer.ID)
	if len(roots) != 2 {
		t.Fatalf("roots = %d, want 2", len(roots))
	}
	if Count(roots) != 3 {
		t.Fatalf("count = %d, want 3", Count(roots))
	}
}

func TestBuildTreeEmptyAndNil(t *testing.T) {
	if got := BuildTree(nil, uuid.Nil); len(got) != 0 {
		t.Fatalf("nil input produced %d roots", len(got))
	}
	if got := BuildTree([]*types.User{nil, {}}, uuid.Nil); len(got) != 0 {
		t.Fatalf("nil/zero records produced %d roots", len(got))
	}
}

func TestWalkDepths(t *testing.T) {
	root := user("root", nil)
	a := user("a", root)
	a1 := user("a1", a)
	roots := BuildTree([]*types.User{root, a, a1}, uuid.Nil)

	depths := make(map[string]int)
	Walk(roots, func(n *Node, depth int) {
		depths[n.User.Username] = depth
	})
	want := map[string]int{"root": 0, "a": 1, "a1": 2}
	for name, d := range want {
		if depths[name] != d {
			t.Fatalf("depth of %s = %d, want %d", name, depths[name], d)
		}
	}
}
