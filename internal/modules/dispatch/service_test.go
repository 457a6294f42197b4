package dispatch_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"courier/internal/modules/agent"
	"courier/internal/modules/dispatch"
	"courier/internal/modules/notify"
	"courier/internal/modules/order"
	"courier/internal/modules/payment"
	"courier/internal/types"
)

type noopSMS struct{}

func (noopSMS) SendOTP(context.Context, string, string) error { return nil }

type paidQR struct{}

func (paidQR) GenerateDynamicQR(_ context.Context, _ types.Money, ref, _ string) (payment.QR, error) {
	return payment.QR{PaymentID: "qr-" + ref}, nil
}

func (paidQR) CheckPaymentStatus(_ context.Context, id string) (payment.QRStatusResult, error) {
	return payment.QRStatusResult{Status: payment.QRStatusPaid, TransactionID: "txn-" + id}, nil
}

type env struct {
	dispatch *dispatch.Service
	orders   *order.Service
	agents   *agent.Service
	payments *payment.Service
	broker   *notify.MemBroker
}

func newEnv(t *testing.T, maxOrders int) *env {
	t.Helper()
	log := zap.NewNop()
	payments := payment.NewService(payment.NewMemStore(), noopSMS{}, paidQR{}, 0, 0, log)
	orders := order.NewService(order.NewMemStore(), payments)
	agents := agent.NewService(agent.NewMemStore(), maxOrders)
	broker := notify.NewMemBroker()
	return &env{
		dispatch: dispatch.NewService(orders, agents, notify.NewFanout(broker, log), log),
		orders:   orders,
		agents:   agents,
		payments: payments,
		broker:   broker,
	}
}

func (e *env) registerAgent(t *testing.T) types.ID {
	t.Helper()
	a := &agent.DeliveryAgent{Name: "Ravi", IsVerified: true, CreatedAt: time.Now()}
	require.NoError(t, e.agents.Register(context.Background(), a))
	return a.ID
}

func (e *env) approvedOrder(t *testing.T) *order.Order {
	t.Helper()
	ctx := context.Background()
	o, err := e.orders.Create(ctx, order.CreateCommand{
		BuyerID:       types.NewID(),
		BuyerPhone:    "+911112223334",
		SellerID:      types.NewID(),
		PaymentMethod: order.PaymentPrepaid,
		Amount:        types.Rupees(10000),
		DeliveryFee:   types.Rupees(3000),
	})
	require.NoError(t, err)
	require.NoError(t, e.dispatch.Approve(ctx, o.ID, types.NewID()))
	return o
}

func TestAssignEnforcesCapacity(t *testing.T) {
	e := newEnv(t, 2)
	ctx := context.Background()
	agentID := e.registerAgent(t)

	first := e.approvedOrder(t)
	second := e.approvedOrder(t)
	third := e.approvedOrder(t)

	require.NoError(t, e.dispatch.Assign(ctx, first.ID, agentID))
	require.NoError(t, e.dispatch.Assign(ctx, second.ID, agentID))
	err := e.dispatch.Assign(ctx, third.ID, agentID)
	require.ErrorIs(t, err, dispatch.ErrCapacityExceeded)

	// A rejection frees a slot.
	require.NoError(t, e.dispatch.Reject(ctx, second.ID, agentID, "vehicle issue"))
	require.NoError(t, e.dispatch.Assign(ctx, third.ID, agentID))
}

func TestAssignRequiresEligibleAgent(t *testing.T) {
	e := newEnv(t, 5)
	ctx := context.Background()
	o := e.approvedOrder(t)

	blocked := &agent.DeliveryAgent{Name: "X", IsVerified: true, IsBlocked: true, CreatedAt: time.Now()}
	require.NoError(t, e.agents.Register(ctx, blocked))
	require.ErrorIs(t, e.dispatch.Assign(ctx, o.ID, blocked.ID), agent.ErrBlocked)

	unverified := &agent.DeliveryAgent{Name: "Y", CreatedAt: time.Now()}
	require.NoError(t, e.agents.Register(ctx, unverified))
	require.ErrorIs(t, e.dispatch.Assign(ctx, o.ID, unverified.ID), agent.ErrNotVerified)
}

func TestAcceptAndRejectMoveStats(t *testing.T) {
	e := newEnv(t, 5)
	ctx := context.Background()
	agentID := e.registerAgent(t)

	accepted := e.approvedOrder(t)
	rejected := e.approvedOrder(t)
	require.NoError(t, e.dispatch.Assign(ctx, accepted.ID, agentID))
	require.NoError(t, e.dispatch.Assign(ctx, rejected.ID, agentID))

	require.NoError(t, e.dispatch.Accept(ctx, accepted.ID, agentID))
	require.NoError(t, e.dispatch.Reject(ctx, rejected.ID, agentID, "too far"))

	a, err := e.agents.Get(ctx, agentID)
	require.NoError(t, err)
	// 2 assigned, 1 withdrawn by rejection, 1 moved to accepted.
	require.Equal(t, 0, a.Stats.Assigned)
	require.Equal(t, 1, a.Stats.Accepted)

	fresh, err := e.orders.Get(ctx, rejected.ID)
	require.NoError(t, err)
	require.Nil(t, fresh.Agent.AgentID)
	require.NotNil(t, fresh.Agent.RejectionReason)
	require.Equal(t, "too far", *fresh.Agent.RejectionReason)
}

func TestBulkAcceptPartialSuccess(t *testing.T) {
	e := newEnv(t, 10)
	ctx := context.Background()
	agentID := e.registerAgent(t)

	mine1 := e.approvedOrder(t)
	mine2 := e.approvedOrder(t)
	someoneElses := e.approvedOrder(t)
	other := e.registerAgent(t)

	require.NoError(t, e.dispatch.Assign(ctx, mine1.ID, agentID))
	require.NoError(t, e.dispatch.Assign(ctx, mine2.ID, agentID))
	require.NoError(t, e.dispatch.Assign(ctx, someoneElses.ID, other))

	res := e.dispatch.BulkAccept(ctx, agentID, []types.ID{
		mine1.ID, someoneElses.ID, mine2.ID, types.NewID(),
	})
	require.Equal(t, 4, res.Total)
	require.ElementsMatch(t, []types.ID{mine1.ID, mine2.ID}, res.Succeeded)
	require.Len(t, res.Failed, 2)

	reasons := map[types.ID]string{}
	for _, f := range res.Failed {
		reasons[f.OrderID] = f.Reason
	}
	require.Equal(t, "NOT_ASSIGNED_TO_AGENT", reasons[someoneElses.ID])

	// Repeating the bulk accept fails every order without disturbing state.
	res = e.dispatch.BulkAccept(ctx, agentID, []types.ID{mine1.ID, mine2.ID})
	require.Empty(t, res.Succeeded)
	require.Len(t, res.Failed, 2)
	for _, f := range res.Failed {
		require.Equal(t, "ALREADY_RESPONDED", f.Reason)
	}
}

func TestQueueIsOldestFirst(t *testing.T) {
	e := newEnv(t, 10)
	ctx := context.Background()
	agentID := e.registerAgent(t)

	var ids []types.ID
	for i := 0; i < 3; i++ {
		o := e.approvedOrder(t)
		require.NoError(t, e.dispatch.Assign(ctx, o.ID, agentID))
		ids = append(ids, o.ID)
		time.Sleep(time.Millisecond)
	}

	queue, err := e.dispatch.Queue(ctx, agentID)
	require.NoError(t, err)
	require.Len(t, queue, 3)
	for i, o := range queue {
		require.Equal(t, ids[i], o.ID)
	}
}

func TestAvailableListsUnassignedApprovedOrders(t *testing.T) {
	e := newEnv(t, 10)
	ctx := context.Background()
	agentID := e.registerAgent(t)

	free := e.approvedOrder(t)
	taken := e.approvedOrder(t)
	require.NoError(t, e.dispatch.Assign(ctx, taken.ID, agentID))

	available, err := e.dispatch.Available(ctx, 10)
	require.NoError(t, err)
	require.Len(t, available, 1)
	require.Equal(t, free.ID, available[0].ID)
}

func TestTransitionsNotifyParties(t *testing.T) {
	e := newEnv(t, 10)
	ctx := context.Background()
	agentID := e.registerAgent(t)

	o := e.approvedOrder(t)
	agentCh := e.broker.Subscribe(notify.AgentChannel(agentID))
	defer e.broker.Unsubscribe(notify.AgentChannel(agentID), agentCh)
	buyerCh := e.broker.Subscribe(notify.BuyerChannel(o.BuyerID))
	defer e.broker.Unsubscribe(notify.BuyerChannel(o.BuyerID), buyerCh)

	require.NoError(t, e.dispatch.Assign(ctx, o.ID, agentID))
	evt := recvEvent(t, agentCh)
	require.Equal(t, "order.assigned", evt.Type)
	require.Equal(t, o.OrderNumber, evt.Payload["orderNumber"])

	require.NoError(t, e.dispatch.Accept(ctx, o.ID, agentID))
	evt = recvEvent(t, buyerCh)
	require.Equal(t, "order.accepted", evt.Type)
}

func TestRejectNotifiesSeller(t *testing.T) {
	e := newEnv(t, 10)
	ctx := context.Background()
	agentID := e.registerAgent(t)
	o := e.approvedOrder(t)
	require.NoError(t, e.dispatch.Assign(ctx, o.ID, agentID))

	sellerCh := e.broker.Subscribe(notify.SellerChannel(o.SellerID))
	defer e.broker.Unsubscribe(notify.SellerChannel(o.SellerID), sellerCh)

	require.NoError(t, e.dispatch.Reject(ctx, o.ID, agentID, "too far"))
	evt := recvEvent(t, sellerCh)
	require.Equal(t, "order.rejected", evt.Type)
	require.Equal(t, o.OrderNumber, evt.Payload["orderNumber"])
	require.Equal(t, "too far", evt.Payload["reason"])
}

func TestFullDeliveryUpdatesAgentRecord(t *testing.T) {
	e := newEnv(t, 10)
	ctx := context.Background()
	agentID := e.registerAgent(t)
	o := e.approvedOrder(t)

	require.NoError(t, e.dispatch.Assign(ctx, o.ID, agentID))
	require.NoError(t, e.dispatch.Accept(ctx, o.ID, agentID))
	require.NoError(t, e.dispatch.MarkSellerReached(ctx, o.ID, agentID))
	require.NoError(t, e.dispatch.CompletePickup(ctx, o.ID, agentID, o.OrderNumber, "handed over"))

	pd, err := e.dispatch.MarkCustomerReached(ctx, o.ID, agentID, "")
	require.NoError(t, err)
	require.Equal(t, "otp", pd.Kind)

	// Pull the code straight from the collaborator record.
	rec, err := e.payments.GetOTP(ctx, pd.OTPID)
	require.NoError(t, err)
	res, err := e.dispatch.CompleteDelivery(ctx, order.CompleteDeliveryCommand{
		OrderID: o.ID, AgentID: agentID, OTPCode: rec.Code,
	})
	require.NoError(t, err)
	require.GreaterOrEqual(t, res.DurationMin, 0)

	a, err := e.agents.Get(ctx, agentID)
	require.NoError(t, err)
	require.Equal(t, 1, a.Stats.PickupsCompleted)
	require.Equal(t, 1, a.Stats.DeliveriesCompleted)
	require.Equal(t, int64(3000), a.Stats.TotalEarnings.Amount)
}

func recvEvent(t *testing.T, ch chan notify.Event) notify.Event {
	t.Helper()
	select {
	case evt := <-ch:
		return evt
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for notification")
		return notify.Event{}
	}
}
