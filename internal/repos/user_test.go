package repos

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	sqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/uplinepay/uplinepay-backend/internal/logger"
	"github.com/uplinepay/uplinepay-backend/internal/types"
)

func newTestUserRepo(t *testing.T) UserRepo {
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
	return NewUserRepo(gdb, log)
}

// The is_active column must store exactly what was given: an inactive record
// coming back active would corrupt every rollup count built on it.
func TestCreateRoundTripsIsActive(t *testing.T) {
	repo := newTestUserRepo(t)

	cases := []struct {
		name   string
		active bool
	}{
		{name: "active", active: true},
		{name: "inactive", active: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			user := &types.User{
				ID:       uuid.New(),
				Username: "roundtrip-" + tc.name,
				Email:    "roundtrip-" + tc.name + "@example.com",
				Role:     types.UserRoleUser,
				IsActive: tc.active,
			}
			if _, err := repo.Create(context.Background(), nil, []*types.User{user}); err != nil {
				t.Fatalf("Create: %v", err)
			}

			got, err := repo.GetByID(context.Background(), nil, user.ID)
			if err != nil {
				t.Fatalf("GetByID: %v", err)
			}
			if got == nil {
				t.Fatalf("user not found after create")
			}
			if got.IsActive != tc.active {
				t.Fatalf("IsActive = %v, want %v", got.IsActive, tc.active)
			}
		})
	}
}

func TestUpdateBalancesUnknownUser(t *testing.T) {
	repo := newTestUserRepo(t)

	err := repo.UpdateBalances(context.Background(), nil, uuid.New(), 100, 0)
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("error = %v, want ErrRecordNotFound", err)
	}
}
