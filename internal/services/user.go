package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/uplinepay/uplinepay-backend/internal/aggregation"
	"github.com/uplinepay/uplinepay-backend/internal/hierarchy"
	"github.com/uplinepay/uplinepay-backend/internal/logger"
	"github.com/uplinepay/uplinepay-backend/internal/repos"
	"github.com/uplinepay/uplinepay-backend/internal/types"
)

// DownlineNode is the nested boundary shape of a hierarchy subtree.
type DownlineNode struct {
	User     types.UserView `json:"user"`
	Children []DownlineNode `json:"children"`
}

type UserService interface {
	GetByID(ctx context.Context, userID uuid.UUID) (*types.User, error)
	Downline(ctx context.Context, userID uuid.UUID) ([]DownlineNode, int, error)
	ImmediateDownline(ctx context.Context, userID uuid.UUID) ([]types.UserView, error)
	AllUsers(ctx context.Context) ([]types.UserView, error)
	Upsert(ctx context.Context, user *types.User) (*types.User, error)
}

type userService struct {
	log         *logger.Logger
	userRepo    repos.UserRepo
	store       *hierarchy.Store
	aggregation *aggregation.Service
}

func NewUserService(baseLog *logger.Logger, userRepo repos.UserRepo, store *hierarchy.Store, agg *aggregation.Service) UserService {
	serviceLog := baseLog.With("service", "UserService")
	return &userService{log: serviceLog, userRepo: userRepo, store: store, aggregation: agg}
}

func (us *userService) GetByID(ctx context.Context, userID uuid.UUID) (*types.User, error) {
	user, err := us.userRepo.GetByID(ctx, nil, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("user %s: %w", userID, hierarchy.ErrUserNotFound)
	}
	return user, nil
}

// Downline materializes the caller's descendant forest with levels counted
// from the caller's own depth.
func (us *userService) Downline(ctx context.Context, userID uuid.UUID) ([]DownlineNode, int, error) {
	baseLevel, err := us.store.LevelOf(ctx, userID)
	if err != nil {
		return nil, 0, err
	}

	forest, err := us.store.Downline(ctx, userID)
	if err != nil {
		return nil, 0, err
	}

	nodes := convertForest(forest, baseLevel+1)
	return nodes, hierarchy.Count(forest), nil
}

func (us *userService) ImmediateDownline(ctx context.Context, userID uuid.UUID) ([]types.UserView, error) {
	baseLevel, err := us.store.LevelOf(ctx, userID)
	if err != nil {
		return nil, err
	}
	children, err := us.store.ImmediateChildren(ctx, userID)
	if err != nil {
		return nil, err
	}
	views := make([]types.UserView, 0, len(children))
	for _, c := range children {
		views = append(views, c.View(baseLevel+1))
	}
	return views, nil
}

func (us *userService) AllUsers(ctx context.Context) ([]types.UserView, error) {
	all, err := us.userRepo.GetAll(ctx, nil)
	if err != nil {
		return nil, err
	}
	roots := hierarchy.BuildTree(all, uuid.Nil)
	views := make([]types.UserView, 0, len(all))
	hierarchy.Walk(roots, func(n *hierarchy.Node, depth int) {
		views = append(views, n.User.View(depth))
	})
	return views, nil
}

// Upsert writes through the hierarchy store. Moving a subtree changes every
// rollup above it, so cached aggregates are invalidated on success.
func (us *userService) Upsert(ctx context.Context, user *types.User) (*types.User, error) {
	saved, err := us.store.Upsert(ctx, user)
	if err != nil {
		return nil, err
	}
	us.aggregation.Invalidate()
	return saved, nil
}

func convertForest(forest []*hierarchy.Node, level int) []DownlineNode {
	nodes := make([]DownlineNode, 0, len(forest))
	for _, n := range forest {
		nodes = append(nodes, DownlineNode{
			User:     n.User.View(level),
			Children: convertForest(n.Children, level+1),
		})
	}
	return nodes
}
