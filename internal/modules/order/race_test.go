package order_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"courier/internal/modules/order"
	"courier/internal/modules/payment"
	"courier/internal/types"
)

// Concurrent assignment of one order to many agents must admit exactly one.
func TestConcurrentAssignSingleWinner(t *testing.T) {
	e := newEnv(t, payment.QRStatusPaid)
	ctx := context.Background()
	o := e.createOrder(t, order.PaymentPrepaid)
	if err := e.orders.Approve(ctx, order.ApproveCommand{OrderID: o.ID, ApproverID: types.NewID()}); err != nil {
		t.Fatal(err)
	}

	const agents = 16
	var (
		wg   sync.WaitGroup
		errs = make([]error, agents)
	)
	for i := 0; i < agents; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = e.orders.Assign(ctx, order.AssignCommand{OrderID: o.ID, AgentID: types.NewID()})
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, order.ErrAlreadyAssigned), errors.Is(err, order.ErrConflict):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("want exactly 1 successful assignment, got %d", wins)
	}
}

// Concurrent duplicate accepts of one assignment must succeed exactly once.
func TestConcurrentAcceptSingleWinner(t *testing.T) {
	e := newEnv(t, payment.QRStatusPaid)
	ctx := context.Background()
	agentID := types.NewID()

	o := e.createOrder(t, order.PaymentPrepaid)
	if err := e.orders.Approve(ctx, order.ApproveCommand{OrderID: o.ID, ApproverID: types.NewID()}); err != nil {
		t.Fatal(err)
	}
	if err := e.orders.Assign(ctx, order.AssignCommand{OrderID: o.ID, AgentID: agentID}); err != nil {
		t.Fatal(err)
	}

	const attempts = 16
	var (
		wg   sync.WaitGroup
		errs = make([]error, attempts)
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = e.orders.Respond(ctx, order.RespondCommand{
				OrderID: o.ID, AgentID: agentID, Decision: order.DecisionAccepted,
			})
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, order.ErrAlreadyResponded), errors.Is(err, order.ErrConflict):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("want exactly 1 successful accept, got %d", wins)
	}

	fresh, err := e.orders.Get(ctx, o.ID)
	if err != nil {
		t.Fatal(err)
	}
	if fresh.Agent.Status != order.AgentAccepted {
		t.Fatalf("want accepted, got %q", fresh.Agent.Status)
	}
}

// Concurrent delivery completions must stamp the order exactly once.
func TestConcurrentCompleteDeliverySingleWinner(t *testing.T) {
	e := newEnv(t, payment.QRStatusPaid)
	ctx := context.Background()
	agentID := types.NewID()
	o := e.readyOrder(t, order.PaymentPrepaid, agentID)

	if err := e.orders.CompletePickup(ctx, order.CompletePickupCommand{
		OrderID: o.ID, AgentID: agentID, OrderNumberVerification: o.OrderNumber,
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := e.orders.MarkCustomerLocationReached(ctx, order.LocationReachedCommand{
		OrderID: o.ID, AgentID: agentID,
	}); err != nil {
		t.Fatal(err)
	}
	code := e.sms.lastCode("+911234567890")

	const attempts = 8
	var (
		wg   sync.WaitGroup
		errs = make([]error, attempts)
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = e.orders.CompleteDelivery(ctx, order.CompleteDeliveryCommand{
				OrderID: o.ID, AgentID: agentID, OTPCode: code,
			})
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, order.ErrAlreadyDelivered), errors.Is(err, order.ErrConflict):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("want exactly 1 successful delivery, got %d", wins)
	}
}
