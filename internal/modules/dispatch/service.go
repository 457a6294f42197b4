// README: Dispatch orchestrates assignment and agent workflow steps around the
// order state machine: eligibility and capacity gates, agent stats, and
// notification fan-out after each committed transition.
package dispatch

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"courier/internal/modules/agent"
	"courier/internal/modules/notify"
	"courier/internal/modules/order"
	"courier/internal/types"
)

type Service struct {
	orders *order.Service
	agents *agent.Service
	fanout *notify.Fanout
	log    *zap.Logger
}

func NewService(orders *order.Service, agents *agent.Service, fanout *notify.Fanout, log *zap.Logger) *Service {
	return &Service{orders: orders, agents: agents, fanout: fanout, log: log}
}

// Approve runs the admin approval and tells the parties the order is moving.
func (s *Service) Approve(ctx context.Context, orderID, adminID types.ID) error {
	if err := s.orders.Approve(ctx, order.ApproveCommand{OrderID: orderID, ApproverID: adminID}); err != nil {
		return err
	}
	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return err
	}
	s.fanout.Notify(ctx,
		[]string{notify.BuyerChannel(o.BuyerID), notify.SellerChannel(o.SellerID), notify.AdminChannel},
		"order.approved",
		notify.OrderPayload(o.OrderNumber, string(o.Status), nil))
	return nil
}

// Cancel withdraws a pre-pickup order and tells everyone who was involved.
func (s *Service) Cancel(ctx context.Context, orderID, actorID types.ID, actorType, reason string) error {
	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return err
	}
	if err := s.orders.Cancel(ctx, order.CancelCommand{
		OrderID: orderID, ActorType: actorType, ActorID: actorID, Reason: reason,
	}); err != nil {
		return err
	}
	channels := []string{notify.BuyerChannel(o.BuyerID), notify.SellerChannel(o.SellerID), notify.AdminChannel}
	if o.Agent.AgentID != nil {
		channels = append(channels, notify.AgentChannel(*o.Agent.AgentID))
	}
	s.fanout.Notify(ctx, channels, "order.cancelled",
		notify.OrderPayload(o.OrderNumber, string(order.StatusCancelled), map[string]any{"reason": reason}))
	return nil
}

// Assign hands an approved order to an agent after the eligibility and
// capacity gates. The capacity count is derived live from the agent's active
// orders; there is no separate assignment list to fall out of sync.
func (s *Service) Assign(ctx context.Context, orderID, agentID types.ID) error {
	a, err := s.agents.Eligible(ctx, agentID)
	if err != nil {
		return err
	}
	active, err := s.orders.ActiveCount(ctx, agentID)
	if err != nil {
		return err
	}
	if !s.agents.CanAssign(active, 1) {
		return ErrCapacityExceeded
	}
	if err := s.orders.Assign(ctx, order.AssignCommand{OrderID: orderID, AgentID: agentID}); err != nil {
		return err
	}
	if err := s.agents.ApplyStats(ctx, agentID, agent.StatsDelta{Assigned: 1}); err != nil {
		s.log.Warn("assign stats update failed", zap.String("agentId", string(agentID)), zap.Error(err))
	}
	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return err
	}
	s.fanout.Notify(ctx,
		[]string{notify.AgentChannel(agentID), notify.AdminChannel},
		"order.assigned",
		notify.OrderPayload(o.OrderNumber, string(o.Agent.Status), map[string]any{
			"agentName":  a.Name,
			"buyerName":  o.BuyerName,
			"sellerName": o.SellerName,
		}))
	return nil
}

// Accept records the agent's acceptance of a single assignment.
func (s *Service) Accept(ctx context.Context, orderID, agentID types.ID) error {
	if err := s.orders.Respond(ctx, order.RespondCommand{
		OrderID: orderID, AgentID: agentID, Decision: order.DecisionAccepted,
	}); err != nil {
		return err
	}
	// Acceptance moves the order out of the pending-assignment bucket.
	if err := s.agents.ApplyStats(ctx, agentID, agent.StatsDelta{Accepted: 1, Assigned: -1}); err != nil {
		s.log.Warn("accept stats update failed", zap.String("agentId", string(agentID)), zap.Error(err))
	}
	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return err
	}
	s.fanout.Notify(ctx,
		[]string{notify.BuyerChannel(o.BuyerID), notify.SellerChannel(o.SellerID), notify.AdminChannel},
		"order.accepted",
		notify.OrderPayload(o.OrderNumber, string(o.Agent.Status), nil))
	return nil
}

// Reject returns the assignment; the order becomes assignable again.
func (s *Service) Reject(ctx context.Context, orderID, agentID types.ID, reason string) error {
	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return err
	}
	if err := s.orders.Respond(ctx, order.RespondCommand{
		OrderID: orderID, AgentID: agentID, Decision: order.DecisionRejected, Reason: reason,
	}); err != nil {
		return err
	}
	// The assignment was withdrawn, so it no longer counts toward the agent.
	if err := s.agents.ApplyStats(ctx, agentID, agent.StatsDelta{Assigned: -1}); err != nil {
		s.log.Warn("reject stats update failed", zap.String("agentId", string(agentID)), zap.Error(err))
	}
	s.fanout.Notify(ctx, []string{notify.AdminChannel, notify.SellerChannel(o.SellerID)}, "order.rejected",
		notify.OrderPayload(o.OrderNumber, string(order.AgentRejected), map[string]any{"reason": reason}))
	return nil
}

// BulkAccept processes each order independently and reports a partial-success
// summary. Eligibility and state are re-derived per order from a fresh read.
func (s *Service) BulkAccept(ctx context.Context, agentID types.ID, orderIDs []types.ID) BulkResult {
	res := BulkResult{Total: len(orderIDs)}
	for _, id := range orderIDs {
		if err := s.Accept(ctx, id, agentID); err != nil {
			res.Failed = append(res.Failed, Failure{OrderID: id, Reason: reasonOf(err)})
			continue
		}
		res.Succeeded = append(res.Succeeded, id)
	}
	return res
}

// BulkReject mirrors BulkAccept for rejections.
func (s *Service) BulkReject(ctx context.Context, agentID types.ID, orderIDs []types.ID, reason string) BulkResult {
	res := BulkResult{Total: len(orderIDs)}
	for _, id := range orderIDs {
		if err := s.Reject(ctx, id, agentID, reason); err != nil {
			res.Failed = append(res.Failed, Failure{OrderID: id, Reason: reasonOf(err)})
			continue
		}
		res.Succeeded = append(res.Succeeded, id)
	}
	return res
}

// MarkSellerReached stamps arrival at the seller; repeats are no-ops.
func (s *Service) MarkSellerReached(ctx context.Context, orderID, agentID types.ID) error {
	if err := s.orders.MarkSellerLocationReached(ctx, order.SellerReachedCommand{
		OrderID: orderID, AgentID: agentID,
	}); err != nil {
		return err
	}
	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return err
	}
	s.fanout.Notify(ctx, []string{notify.SellerChannel(o.SellerID)}, "order.seller_reached",
		notify.OrderPayload(o.OrderNumber, string(o.Agent.Status), nil))
	return nil
}

// CompletePickup verifies the order number with the seller and dispatches.
func (s *Service) CompletePickup(ctx context.Context, orderID, agentID types.ID, verification, notes string) error {
	if err := s.orders.CompletePickup(ctx, order.CompletePickupCommand{
		OrderID: orderID, AgentID: agentID, OrderNumberVerification: verification, Notes: notes,
	}); err != nil {
		return err
	}
	if err := s.agents.ApplyStats(ctx, agentID, agent.StatsDelta{PickupsCompleted: 1}); err != nil {
		s.log.Warn("pickup stats update failed", zap.String("agentId", string(agentID)), zap.Error(err))
	}
	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return err
	}
	s.fanout.Notify(ctx,
		[]string{notify.BuyerChannel(o.BuyerID), notify.SellerChannel(o.SellerID), notify.AdminChannel},
		"order.pickup_completed",
		notify.OrderPayload(o.OrderNumber, string(o.Status), nil))
	return nil
}

// MarkCustomerReached stamps arrival at the buyer and returns the payment
// identifiers (OTP for prepaid, QR for COD). Idempotent on repeat.
func (s *Service) MarkCustomerReached(ctx context.Context, orderID, agentID types.ID, notes string) (order.PaymentData, error) {
	pd, err := s.orders.MarkCustomerLocationReached(ctx, order.LocationReachedCommand{
		OrderID: orderID, AgentID: agentID, Notes: notes,
	})
	if err != nil {
		return order.PaymentData{}, err
	}
	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return pd, err
	}
	s.fanout.Notify(ctx, []string{notify.BuyerChannel(o.BuyerID)}, "order.location_reached",
		notify.OrderPayload(o.OrderNumber, string(o.Agent.Status), map[string]any{"paymentKind": pd.Kind}))
	return pd, nil
}

// ConfirmQRPayment polls the COD QR and, once paid, returns the verification OTP data.
func (s *Service) ConfirmQRPayment(ctx context.Context, orderID, agentID types.ID) (order.PaymentData, error) {
	return s.orders.ConfirmQRPayment(ctx, order.ConfirmQRCommand{OrderID: orderID, AgentID: agentID})
}

// CompleteDelivery closes the order, records the agent's delivery stats with
// the delivery fee as earning, and notifies every party.
func (s *Service) CompleteDelivery(ctx context.Context, cmd order.CompleteDeliveryCommand) (order.DeliveryResult, error) {
	o, err := s.orders.Get(ctx, cmd.OrderID)
	if err != nil {
		return order.DeliveryResult{}, err
	}
	res, err := s.orders.CompleteDelivery(ctx, cmd)
	if err != nil {
		return order.DeliveryResult{}, err
	}
	if err := s.agents.RecordDelivery(ctx, cmd.AgentID, res.DurationMin, o.DeliveryFee); err != nil {
		s.log.Warn("delivery stats update failed", zap.String("agentId", string(cmd.AgentID)), zap.Error(err))
	}
	s.fanout.Notify(ctx,
		[]string{
			notify.BuyerChannel(o.BuyerID), notify.SellerChannel(o.SellerID),
			notify.AgentChannel(cmd.AgentID), notify.AdminChannel,
		},
		"order.delivered",
		notify.OrderPayload(o.OrderNumber, string(order.StatusDelivered), map[string]any{
			"durationMin": res.DurationMin,
		}))
	return res, nil
}

// Queue is the agent's active work, oldest assignment first.
func (s *Service) Queue(ctx context.Context, agentID types.ID) ([]order.Order, error) {
	return s.orders.AssignedToAgent(ctx, agentID)
}

// Available lists approved unassigned orders, oldest first.
func (s *Service) Available(ctx context.Context, limit int) ([]order.Order, error) {
	return s.orders.Assignable(ctx, limit)
}

func reasonOf(err error) string {
	switch {
	case errors.Is(err, order.ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, order.ErrNotAssignedToAgent):
		return "NOT_ASSIGNED_TO_AGENT"
	case errors.Is(err, order.ErrAlreadyResponded):
		return "ALREADY_RESPONDED"
	case errors.Is(err, order.ErrConflict):
		return "CONFLICT"
	case errors.Is(err, order.ErrInvalidState):
		return "INVALID_STATE"
	default:
		return err.Error()
	}
}
