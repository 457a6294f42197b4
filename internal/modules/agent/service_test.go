package agent_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"courier/internal/modules/agent"
	"courier/internal/types"
)

func newAgent(verified bool) *agent.DeliveryAgent {
	return &agent.DeliveryAgent{
		Name:        "Ravi",
		Phone:       "+919999999999",
		VehicleType: "bike",
		IsVerified:  verified,
		CreatedAt:   time.Now(),
	}
}

func TestCanAssignBoundary(t *testing.T) {
	svc := agent.NewService(agent.NewMemStore(), 5)

	cases := []struct {
		current    int
		additional int
		want       bool
	}{
		{0, 1, true},
		{4, 1, true},
		{5, 1, false},
		{0, 5, true},
		{0, 6, false},
		{3, 2, true},
		{3, 3, false},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, svc.CanAssign(tc.current, tc.additional),
			"CanAssign(%d, %d)", tc.current, tc.additional)
	}
}

func TestEligibleRejectsBlockedAndUnverified(t *testing.T) {
	ctx := context.Background()
	store := agent.NewMemStore()
	svc := agent.NewService(store, 5)

	ok := newAgent(true)
	require.NoError(t, svc.Register(ctx, ok))
	_, err := svc.Eligible(ctx, ok.ID)
	require.NoError(t, err)

	unverified := newAgent(false)
	require.NoError(t, svc.Register(ctx, unverified))
	_, err = svc.Eligible(ctx, unverified.ID)
	require.ErrorIs(t, err, agent.ErrNotVerified)

	blocked := newAgent(true)
	blocked.IsBlocked = true
	blocked.BlockReason = "fraud review"
	require.NoError(t, svc.Register(ctx, blocked))
	_, err = svc.Eligible(ctx, blocked.ID)
	require.ErrorIs(t, err, agent.ErrBlocked)

	_, err = svc.Eligible(ctx, types.NewID())
	require.ErrorIs(t, err, agent.ErrNotFound)
}

func TestRecordDeliveryRunningMean(t *testing.T) {
	ctx := context.Background()
	store := agent.NewMemStore()
	svc := agent.NewService(store, 5)

	a := newAgent(true)
	require.NoError(t, svc.Register(ctx, a))

	require.NoError(t, svc.RecordDelivery(ctx, a.ID, 30, types.Rupees(4000)))
	require.NoError(t, svc.RecordDelivery(ctx, a.ID, 10, types.Rupees(4000)))
	require.NoError(t, svc.RecordDelivery(ctx, a.ID, 20, types.Rupees(2000)))

	got, err := svc.Get(ctx, a.ID)
	require.NoError(t, err)
	require.InDelta(t, 20.0, got.Stats.AvgDeliveryTimeMin, 0.001)
	require.Equal(t, 3, got.Stats.TotalDeliveries)
	require.Equal(t, 3, got.Stats.DeliveriesCompleted)
	require.Equal(t, int64(10000), got.Stats.TotalEarnings.Amount)
}

func TestApplyStatsDeltas(t *testing.T) {
	ctx := context.Background()
	store := agent.NewMemStore()
	svc := agent.NewService(store, 5)

	a := newAgent(true)
	require.NoError(t, svc.Register(ctx, a))

	require.NoError(t, svc.ApplyStats(ctx, a.ID, agent.StatsDelta{Assigned: 1}))
	require.NoError(t, svc.ApplyStats(ctx, a.ID, agent.StatsDelta{Accepted: 1}))
	require.NoError(t, svc.ApplyStats(ctx, a.ID, agent.StatsDelta{Assigned: 1}))
	require.NoError(t, svc.ApplyStats(ctx, a.ID, agent.StatsDelta{Assigned: -1}))

	got, err := svc.Get(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, 1, got.Stats.Assigned)
	require.Equal(t, 1, got.Stats.Accepted)
}
