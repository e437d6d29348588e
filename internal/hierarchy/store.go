package hierarchy

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sort"

	"github.com/google/uuid"

	"github.com/uplinepay/uplinepay-backend/internal/logger"
	"github.com/uplinepay/uplinepay-backend/internal/repos"
	"github.com/uplinepay/uplinepay-backend/internal/types"
)

var (
	ErrCycleDetected = errors.New("cycle detected in hierarchy")
	ErrUserNotFound  = errors.New("user not found")
)

// Store answers parent/child queries over the user table. No mutable tree is
// kept between calls: every traversal loads a snapshot and rebuilds, which
// keeps the concurrency story trivial at the price of a scan per query.
type Store struct {
	log      *logger.Logger
	userRepo repos.UserRepo
}

func NewStore(baseLog *logger.Logger, userRepo repos.UserRepo) *Store {
	storeLog := baseLog.With("service", "HierarchyStore")
	return &Store{log: storeLog, userRepo: userRepo}
}

// Upsert inserts or replaces a user record. The declared parent must exist,
// and attaching to it must not close a cycle; on either failure the store is
// left unchanged.
func (s *Store) Upsert(ctx context.Context, user *types.User) (*types.User, error) {
	if user == nil || user.ID == uuid.Nil {
		return nil, fmt.Errorf("upsert: %w", ErrUserNotFound)
	}

	if user.ParentID != nil {
		if *user.ParentID == user.ID {
			return nil, fmt.Errorf("upsert %s: parent is self: %w", user.ID, ErrCycleDetected)
		}
		snapshot, err := s.snapshot(ctx)
		if err != nil {
			return nil, err
		}
		parent, ok := snapshot[*user.ParentID]
		if !ok {
			return nil, fmt.Errorf("upsert %s: parent %s: %w", user.ID, *user.ParentID, ErrUserNotFound)
		}
		// Walk the would-be ancestor chain; reaching the user itself means
		// the new parent pointer closes a cycle. Bounded by snapshot size so
		// pre-existing corruption cannot hang the walk.
		cursor := parent
		for steps := 0; steps <= len(snapshot); steps++ {
			if cursor.ID == user.ID {
				return nil, fmt.Errorf("upsert %s: %w", user.ID, ErrCycleDetected)
			}
			if cursor.ParentID == nil {
				break
			}
			next, ok := snapshot[*cursor.ParentID]
			if !ok {
				break
			}
			cursor = next
		}
	}

	saved, err := s.userRepo.Save(ctx, nil, user)
	if err != nil {
		s.log.Error("Failed to upsert user", "userID", user.ID, "error", err)
		return nil, err
	}
	return saved, nil
}

// ImmediateChildren returns the depth-1 downline of a user, the only scope a
// transfer may target.
func (s *Store) ImmediateChildren(ctx context.Context, userID uuid.UUID) ([]*types.User, error) {
	return s.userRepo.GetChildren(ctx, nil, userID)
}

// IsImmediateChild reports whether child sits exactly one level below parent.
func (s *Store) IsImmediateChild(ctx context.Context, parentID, childID uuid.UUID) (bool, error) {
	child, err := s.userRepo.GetByID(ctx, nil, childID)
	if err != nil {
		return false, err
	}
	if child == nil {
		return false, fmt.Errorf("user %s: %w", childID, ErrUserNotFound)
	}
	return child.ParentID != nil && *child.ParentID == parentID, nil
}

// Downline loads the full descendant set of a user and materializes it as a
// forest of the user's direct children.
func (s *Store) Downline(ctx context.Context, userID uuid.UUID) ([]*Node, error) {
	snapshot, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if _, ok := snapshot[userID]; !ok {
		return nil, fmt.Errorf("user %s: %w", userID, ErrUserNotFound)
	}

	descendants := collectDescendants(snapshot, userID)
	return BuildTree(descendants, userID), nil
}

// DescendantsOf returns a restartable depth-first traversal of every user
// below userID. The sequence iterates over a snapshot taken at call time;
// ranging over it again replays the same snapshot.
func (s *Store) DescendantsOf(ctx context.Context, userID uuid.UUID) (iter.Seq[*types.User], error) {
	snapshot, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if _, ok := snapshot[userID]; !ok {
		return nil, fmt.Errorf("user %s: %w", userID, ErrUserNotFound)
	}

	descendants := collectDescendants(snapshot, userID)
	return func(yield func(*types.User) bool) {
		for _, u := range descendants {
			if !yield(u) {
				return
			}
		}
	}, nil
}

// AncestorsOf returns the chain from userID's parent up to its root, nearest
// first, as a restartable sequence over a call-time snapshot.
func (s *Store) AncestorsOf(ctx context.Context, userID uuid.UUID) (iter.Seq[*types.User], error) {
	snapshot, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	start, ok := snapshot[userID]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", userID, ErrUserNotFound)
	}

	var chain []*types.User
	cursor := start
	for steps := 0; steps <= len(snapshot); steps++ {
		if cursor.ParentID == nil {
			break
		}
		parent, ok := snapshot[*cursor.ParentID]
		if !ok {
			break
		}
		chain = append(chain, parent)
		cursor = parent
	}

	return func(yield func(*types.User) bool) {
		for _, u := range chain {
			if !yield(u) {
				return
			}
		}
	}, nil
}

// LevelOf recomputes a user's depth from its nearest root.
func (s *Store) LevelOf(ctx context.Context, userID uuid.UUID) (int, error) {
	ancestors, err := s.AncestorsOf(ctx, userID)
	if err != nil {
		return 0, err
	}
	level := 0
	for range ancestors {
		level++
	}
	return level, nil
}

func (s *Store) snapshot(ctx context.Context) (map[uuid.UUID]*types.User, error) {
	all, err := s.userRepo.GetAll(ctx, nil)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]*types.User, len(all))
	for _, u := range all {
		byID[u.ID] = u
	}
	return byID, nil
}

// collectDescendants runs a breadth-first sweep below rootID over an indexed
// snapshot, returning users in discovery order (parents before children).
func collectDescendants(snapshot map[uuid.UUID]*types.User, rootID uuid.UUID) []*types.User {
	children := make(map[uuid.UUID][]*types.User, len(snapshot))
	for _, u := range snapshot {
		if u.ParentID != nil {
			children[*u.ParentID] = append(children[*u.ParentID], u)
		}
	}
	for _, siblings := range children {
		sort.Slice(siblings, func(i, j int) bool {
			if siblings[i].CreatedAt.Equal(siblings[j].CreatedAt) {
				return siblings[i].ID.String() < siblings[j].ID.String()
			}
			return siblings[i].CreatedAt.Before(siblings[j].CreatedAt)
		})
	}

	var out []*types.User
	queue := append([]*types.User(nil), children[rootID]...)
	for len(queue) > 0 {
		head := queue[0]
		queue = queue[1:]
		out = append(out, head)
		queue = append(queue, children[head.ID]...)
	}
	return out
}
