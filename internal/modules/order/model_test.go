package order_test

import (
	"testing"

	"courier/internal/modules/order"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		name string
		from order.AgentStatus
		to   order.AgentStatus
		want bool
	}{
		{"unassigned to assigned", order.AgentUnassigned, order.AgentAssigned, true},
		{"assigned to accepted", order.AgentAssigned, order.AgentAccepted, true},
		{"assigned to rejected", order.AgentAssigned, order.AgentRejected, true},
		{"accepted to pickup", order.AgentAccepted, order.AgentPickupCompleted, true},
		{"pickup to location", order.AgentPickupCompleted, order.AgentLocationReached, true},
		{"pickup straight to delivered", order.AgentPickupCompleted, order.AgentDeliveryCompleted, true},
		{"location to delivered", order.AgentLocationReached, order.AgentDeliveryCompleted, true},

		{"assigned cannot skip to pickup", order.AgentAssigned, order.AgentPickupCompleted, false},
		{"accepted cannot reject", order.AgentAccepted, order.AgentRejected, false},
		{"accepted cannot skip to delivered", order.AgentAccepted, order.AgentDeliveryCompleted, false},
		{"delivered is terminal", order.AgentDeliveryCompleted, order.AgentLocationReached, false},
		{"rejected is an exit", order.AgentRejected, order.AgentAccepted, false},
		{"no backwards moves", order.AgentLocationReached, order.AgentPickupCompleted, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := order.CanTransition(tc.from, tc.to); got != tc.want {
				t.Errorf("CanTransition(%q, %q) = %v, want %v", tc.from, tc.to, got, tc.want)
			}
		})
	}
}

func TestAssignable(t *testing.T) {
	agentID := mustID(t)
	o := &order.Order{Status: order.StatusProcessing}

	if o.Assignable() {
		t.Error("unapproved order must not be assignable")
	}
	o.AdminApproval.Status = order.ApprovalApproved
	if !o.Assignable() {
		t.Error("approved unassigned order in Processing must be assignable")
	}
	o.Agent.AgentID = &agentID
	if o.Assignable() {
		t.Error("order with an agent must not be assignable")
	}
	o.Agent.AgentID = nil
	o.Status = order.StatusOutForDelivery
	if o.Assignable() {
		t.Error("dispatched order must not be assignable")
	}
}
