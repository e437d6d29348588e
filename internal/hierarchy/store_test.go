package hierarchy

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	sqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/uplinepay/uplinepay-backend/internal/logger"
	"github.com/uplinepay/uplinepay-backend/internal/repos"
	"github.com/uplinepay/uplinepay-backend/internal/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	t.Cleanup(log.Sync)

	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := gdb.AutoMigrate(&types.User{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return NewStore(log, repos.NewUserRepo(gdb, log))
}

func seed(t *testing.T, store *Store, name string, parentID *uuid.UUID) *types.User {
	t.Helper()
	u, err := store.Upsert(context.Background(), &types.User{
		ID:       uuid.New(),
		Username: name,
		Email:    name + "@example.com",
		Role:     types.UserRoleUser,
		ParentID: parentID,
		IsActive: true,
	})
	if err != nil {
		t.Fatalf("seed %s: %v", name, err)
	}
	return u
}

// root -> a -> a1, root -> b
func seedChain(t *testing.T, store *Store) (root, a, a1, b *types.User) {
	t.Helper()
	root = seed(t, store, "root", nil)
	a = seed(t, store, "a", &root.ID)
	a1 = seed(t, store, "a1", &a.ID)
	b = seed(t, store, "b", &root.ID)
	return
}

func TestUpsertRejectsMissingParent(t *testing.T) {
	store := newTestStore(t)
	ghost := uuid.New()
	_, err := store.Upsert(context.Background(), &types.User{
		ID:       uuid.New(),
		Username: "child",
		ParentID: &ghost,
	})
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("error = %v, want ErrUserNotFound", err)
	}
}

func TestUpsertRejectsCycles(t *testing.T) {
	store := newTestStore(t)
	root, _, a1, _ := seedChain(t, store)

	t.Run("self parent", func(t *testing.T) {
		root.ParentID = &root.ID
		if _, err := store.Upsert(context.Background(), root); !errors.Is(err, ErrCycleDetected) {
			t.Fatalf("error = %v, want ErrCycleDetected", err)
		}
	})

	t.Run("reparent under own descendant", func(t *testing.T) {
		root.ParentID = &a1.ID
		if _, err := store.Upsert(context.Background(), root); !errors.Is(err, ErrCycleDetected) {
			t.Fatalf("error = %v, want ErrCycleDetected", err)
		}
	})

	// The failed upserts must not have persisted anything.
	got, err := store.userRepo.GetByID(context.Background(), nil, root.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.ParentID != nil {
		t.Fatalf("rejected upsert persisted parent %v", got.ParentID)
	}
}

func TestImmediateChildren(t *testing.T) {
	store := newTestStore(t)
	root, a, a1, _ := seedChain(t, store)

	kids, err := store.ImmediateChildren(context.Background(), root.ID)
	if err != nil {
		t.Fatalf("ImmediateChildren: %v", err)
	}
	if len(kids) != 2 {
		t.Fatalf("children = %d, want 2", len(kids))
	}

	ok, err := store.IsImmediateChild(context.Background(), root.ID, a.ID)
	if err != nil || !ok {
		t.Fatalf("IsImmediateChild(root, a) = %v, %v", ok, err)
	}
	// Grandchild is not an immediate child.
	ok, err = store.IsImmediateChild(context.Background(), root.ID, a1.ID)
	if err != nil || ok {
		t.Fatalf("IsImmediateChild(root, a1) = %v, %v", ok, err)
	}
	if _, err := store.IsImmediateChild(context.Background(), root.ID, uuid.New()); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("unknown child error = %v, want ErrUserNotFound", err)
	}
}

func TestDownline(t *testing.T) {
	store := newTestStore(t)
	root, a, a1, _ := seedChain(t, store)

	forest, err := store.Downline(context.Background(), root.ID)
	if err != nil {
		t.Fatalf("Downline: %v", err)
	}
	if len(forest) != 2 {
		t.Fatalf("forest roots = %d, want 2", len(forest))
	}
	if Count(forest) != 3 {
		t.Fatalf("downline size = %d, want 3", Count(forest))
	}
	// a comes first (created before b) and carries a1.
	if forest[0].User.ID != a.ID || len(forest[0].Children) != 1 || forest[0].Children[0].User.ID != a1.ID {
		t.Fatalf("unexpected forest layout: %+v", forest[0])
	}

	if _, err := store.Downline(context.Background(), uuid.New()); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("unknown user error = %v, want ErrUserNotFound", err)
	}
}

func TestDescendantsOfRestartable(t *testing.T) {
	store := newTestStore(t)
	root, _, _, _ := seedChain(t, store)

	seq, err := store.DescendantsOf(context.Background(), root.ID)
	if err != nil {
		t.Fatalf("DescendantsOf: %v", err)
	}

	collect := func() []string {
		var names []string
		for u := range seq {
			names = append(names, u.Username)
		}
		return names
	}
	first := collect()
	if len(first) != 3 {
		t.Fatalf("descendants = %v, want 3 users", first)
	}
	// Ranging again replays the same snapshot.
	second := collect()
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("restart diverged: %v vs %v", first, second)
		}
	}

	// Early break must not poison later iteration.
	for range seq {
		break
	}
	if got := collect(); len(got) != 3 {
		t.Fatalf("post-break iteration = %v, want 3 users", got)
	}
}

func TestAncestorsOfAndLevelOf(t *testing.T) {
	store := newTestStore(t)
	root, a, a1, _ := seedChain(t, store)

	seq, err := store.AncestorsOf(context.Background(), a1.ID)
	if err != nil {
		t.Fatalf("AncestorsOf: %v", err)
	}
	var names []string
	for u := range seq {
		names = append(names, u.Username)
	}
	if len(names) != 2 || names[0] != "a" || names[1] != "root" {
		t.Fatalf("ancestors of a1 = %v, want [a root]", names)
	}

	for _, tc := range []struct {
		user *types.User
		want int
	}{
		{root, 0}, {a, 1}, {a1, 2},
	} {
		level, err := store.LevelOf(context.Background(), tc.user.ID)
		if err != nil {
			t.Fatalf("LevelOf(%s): %v", tc.user.Username, err)
		}
		if level != tc.want {
			t.Fatalf("LevelOf(%s) = %d, want %d", tc.user.Username, level, tc.want)
		}
	}
}
