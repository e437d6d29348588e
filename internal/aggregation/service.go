package aggregation

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/uplinepay/uplinepay-backend/internal/hierarchy"
	"github.com/uplinepay/uplinepay-backend/internal/logger"
	"github.com/uplinepay/uplinepay-backend/internal/repos"
)

// Rollup aggregates a whole subtree, root included. Monetary totals are in
// minor units.
type Rollup struct {
	TotalBalance    int64 `json:"-"`
	TotalCommission int64 `json:"-"`
	ActiveCount     int   `json:"activeCount"`
	InactiveCount   int   `json:"inactiveCount"`
}

type RollupView struct {
	TotalBalance    decimal.Decimal `json:"totalBalance"`
	TotalCommission decimal.Decimal `json:"totalCommission"`
	ActiveCount     int             `json:"activeCount"`
	InactiveCount   int             `json:"inactiveCount"`
}

func (r Rollup) View() RollupView {
	return RollupView{
		TotalBalance:    decimal.New(r.TotalBalance, -2),
		TotalCommission: decimal.New(r.TotalCommission, -2),
		ActiveCount:     r.ActiveCount,
		InactiveCount:   r.InactiveCount,
	}
}

// Summary is the dashboard aggregate over a subtree.
type Summary struct {
	TotalBalance    decimal.Decimal `json:"totalBalance"`
	TotalCommission decimal.Decimal `json:"totalCommission"`
	UserCount       int             `json:"userCount"`
	AverageBalance  decimal.Decimal `json:"averageBalance"`
}

type cachedRollup struct {
	version int64
	rollup  Rollup
}

// Service computes subtree rollups on demand with a single depth-first
// traversal. Results are cached per root, keyed by a version counter that
// every ledger commit and hierarchy mutation bumps; correctness never
// depends on the cache, only latency does.
type Service struct {
	log     *logger.Logger
	store   *hierarchy.Store
	users   repos.UserRepo
	version atomic.Int64

	mu    sync.Mutex
	cache map[uuid.UUID]cachedRollup
}

func NewService(baseLog *logger.Logger, store *hierarchy.Store, users repos.UserRepo) *Service {
	serviceLog := baseLog.With("service", "AggregationService")
	return &Service{
		log:   serviceLog,
		store: store,
		users: users,
		cache: make(map[uuid.UUID]cachedRollup),
	}
}

// Invalidate bumps the version counter; cached rollups computed before the
// bump are dead.
func (s *Service) Invalidate() {
	s.version.Add(1)
}

// RollupOf aggregates the subtree rooted at rootID. An unresolvable root
// fails the whole computation; no partial result is ever returned.
func (s *Service) RollupOf(ctx context.Context, rootID uuid.UUID) (Rollup, error) {
	current := s.version.Load()
	s.mu.Lock()
	if hit, ok := s.cache[rootID]; ok && hit.version == current {
		s.mu.Unlock()
		return hit.rollup, nil
	}
	s.mu.Unlock()

	root, err := s.users.GetByID(ctx, nil, rootID)
	if err != nil {
		return Rollup{}, err
	}
	if root == nil {
		return Rollup{}, fmt.Errorf("rollup root %s: %w", rootID, hierarchy.ErrUserNotFound)
	}

	forest, err := s.store.Downline(ctx, rootID)
	if err != nil {
		return Rollup{}, err
	}

	var rollup Rollup
	rollup.TotalBalance = root.Balance
	rollup.TotalCommission = root.CommissionEarned
	if root.IsActive {
		rollup.ActiveCount++
	} else {
		rollup.InactiveCount++
	}
	hierarchy.Walk(forest, func(n *hierarchy.Node, _ int) {
		rollup.TotalBalance += n.User.Balance
		rollup.TotalCommission += n.User.CommissionEarned
		if n.User.IsActive {
			rollup.ActiveCount++
		} else {
			rollup.InactiveCount++
		}
	})

	s.mu.Lock()
	s.cache[rootID] = cachedRollup{version: current, rollup: rollup}
	s.mu.Unlock()

	return rollup, nil
}

// SummaryOf derives the dashboard summary from a fresh rollup.
func (s *Service) SummaryOf(ctx context.Context, rootID uuid.UUID) (Summary, error) {
	rollup, err := s.RollupOf(ctx, rootID)
	if err != nil {
		return Summary{}, err
	}

	count := rollup.ActiveCount + rollup.InactiveCount
	total := decimal.New(rollup.TotalBalance, -2)
	average := decimal.Zero
	if count > 0 {
		average = total.DivRound(decimal.NewFromInt(int64(count)), 2)
	}
	return Summary{
		TotalBalance:    total,
		TotalCommission: decimal.New(rollup.TotalCommission, -2),
		UserCount:       count,
		AverageBalance:  average,
	}, nil
}
