// README: Postgres Store. Every transition is one conditional UPDATE whose
// WHERE clause re-checks the precondition; rows-affected decides the winner.
package order

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"courier/internal/types"
)

type PgStore struct {
	pool *pgxpool.Pool
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

const orderColumns = `
	id, order_number,
	buyer_id, buyer_name, buyer_phone, seller_id, seller_name,
	status, status_version, payment_method, amount, delivery_fee, currency,
	approval_status, approved_by, approved_at,
	agent_id, agent_status, assigned_at, accepted_at,
	agent_pickup_completed_at, agent_delivery_completed_at, delivery_duration_min, rejection_reason,
	pickup_completed, pickup_completed_at, seller_reached_at, pickup_notes, pickup_completed_by,
	delivery_completed, delivery_completed_at, location_reached_at, location_notes, delivered_by,
	otp_required, otp_id, otp_generated_at, otp_expires_at, otp_verified, otp_verified_at,
	cod_method, cod_status, cod_collected_amount, cod_transaction_id, cod_qr_payment_id,
	created_at, delivered_at`

func (s *PgStore) Create(ctx context.Context, o *Order) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO orders (
			id, order_number,
			buyer_id, buyer_name, buyer_phone, seller_id, seller_name,
			status, status_version, payment_method, amount, delivery_fee, currency,
			approval_status, agent_status, cod_status, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`,
		o.ID, o.OrderNumber,
		o.BuyerID, o.BuyerName, o.BuyerPhone, o.SellerID, o.SellerName,
		o.Status, o.StatusVersion, o.PaymentMethod, o.Amount.Amount, o.DeliveryFee.Amount, o.Amount.Currency,
		o.AdminApproval.Status, o.Agent.Status, o.COD.Status, o.CreatedAt,
	)
	return err
}

func (s *PgStore) Get(ctx context.Context, id types.ID) (*Order, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	return scanOrder(row)
}

func (s *PgStore) GetByNumber(ctx context.Context, number string) (*Order, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE order_number = $1`, number)
	return scanOrder(row)
}

func (s *PgStore) NextSequence(ctx context.Context, day string) (int, error) {
	var seq int
	err := s.pool.QueryRow(ctx, `
		INSERT INTO order_sequences (day, seq) VALUES ($1, 1)
		ON CONFLICT (day) DO UPDATE SET seq = order_sequences.seq + 1
		RETURNING seq`, day).Scan(&seq)
	return seq, err
}

func (s *PgStore) Approve(ctx context.Context, id, approver types.ID, at time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE orders SET
			approval_status = 'approved', approved_by = $2, approved_at = $3,
			status = CASE WHEN status = 'Pending' THEN 'Processing' ELSE status END,
			status_version = status_version + 1
		WHERE id = $1 AND approval_status = 'pending'`,
		id, approver, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PgStore) Cancel(ctx context.Context, id types.ID, reason string, at time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE orders SET
			status = 'Cancelled', status_version = status_version + 1
		WHERE id = $1
		  AND status IN ('Pending','Processing','Confirmed','Pickup_Ready')
		  AND pickup_completed = FALSE`,
		id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PgStore) Assign(ctx context.Context, id, agentID types.ID, at time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE orders SET
			agent_id = $2, agent_status = 'assigned', assigned_at = $3,
			accepted_at = NULL, rejection_reason = NULL,
			status_version = status_version + 1
		WHERE id = $1
		  AND approval_status = 'approved'
		  AND agent_id IS NULL
		  AND status IN ('Processing','Confirmed','Pickup_Ready')`,
		id, agentID, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PgStore) Accept(ctx context.Context, id, agentID types.ID, at time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE orders SET
			agent_status = 'accepted', accepted_at = $3,
			status_version = status_version + 1
		WHERE id = $1 AND agent_id = $2 AND agent_status = 'assigned'`,
		id, agentID, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PgStore) Reject(ctx context.Context, id, agentID types.ID, reason string, at time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE orders SET
			agent_id = NULL, agent_status = '', assigned_at = NULL,
			rejection_reason = $3,
			status_version = status_version + 1
		WHERE id = $1 AND agent_id = $2 AND agent_status = 'assigned'`,
		id, agentID, reason)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PgStore) MarkSellerReached(ctx context.Context, id, agentID types.ID, at time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE orders SET seller_reached_at = $3
		WHERE id = $1 AND agent_id = $2 AND agent_status = 'accepted'
		  AND seller_reached_at IS NULL`,
		id, agentID, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PgStore) CompletePickup(ctx context.Context, id, agentID types.ID, notes string, at time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE orders SET
			pickup_completed = TRUE, pickup_completed_at = $3, pickup_notes = $4, pickup_completed_by = $2,
			agent_status = 'pickup_completed', agent_pickup_completed_at = $3,
			status = CASE WHEN status IN ('Processing','Confirmed','Pickup_Ready')
				THEN 'Out for Delivery' ELSE status END,
			status_version = status_version + 1
		WHERE id = $1 AND agent_id = $2 AND agent_status = 'accepted'
		  AND pickup_completed = FALSE`,
		id, agentID, at, notes)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PgStore) MarkLocationReached(ctx context.Context, id, agentID types.ID, notes string, at time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE orders SET
			agent_status = 'location_reached',
			location_reached_at = $3, location_notes = $4,
			status_version = status_version + 1
		WHERE id = $1 AND agent_id = $2 AND agent_status = 'pickup_completed'`,
		id, agentID, at, notes)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PgStore) CompleteDelivery(ctx context.Context, id, agentID types.ID, durationMin int, cod *CODCapture, at time.Time) (bool, error) {
	var (
		codMethod *CODMethod
		codAmount *int64
		codTxn    *string
	)
	if cod != nil {
		codMethod = &cod.Method
		codAmount = &cod.CollectedAmount.Amount
		if cod.TransactionID != "" {
			codTxn = &cod.TransactionID
		}
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE orders SET
			agent_status = 'delivery_completed', agent_delivery_completed_at = $3,
			delivery_duration_min = $4,
			delivery_completed = TRUE, delivery_completed_at = $3, delivered_by = $2,
			status = 'Delivered', delivered_at = $3,
			cod_method = COALESCE($5, cod_method),
			cod_status = CASE WHEN $5 IS NOT NULL THEN 'paid' ELSE cod_status END,
			cod_collected_amount = COALESCE($6, cod_collected_amount),
			cod_transaction_id = COALESCE($7, cod_transaction_id),
			status_version = status_version + 1
		WHERE id = $1 AND agent_id = $2
		  AND agent_status IN ('pickup_completed','location_reached')
		  AND pickup_completed = TRUE`,
		id, agentID, at, durationMin, codMethod, codAmount, codTxn)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PgStore) SetOTPLink(ctx context.Context, id, otpID types.ID, generatedAt, expiresAt time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE orders SET
			otp_required = TRUE, otp_id = $2, otp_generated_at = $3, otp_expires_at = $4
		WHERE id = $1`,
		id, otpID, generatedAt, expiresAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PgStore) MarkOTPVerified(ctx context.Context, id types.ID, at time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE orders SET otp_verified = TRUE, otp_verified_at = $2
		WHERE id = $1`, id, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PgStore) SetCODQR(ctx context.Context, id types.ID, paymentID string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE orders SET cod_method = 'upi', cod_status = 'pending', cod_qr_payment_id = $2
		WHERE id = $1`, id, paymentID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PgStore) SetCODPaid(ctx context.Context, id types.ID, transactionID string, at time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE orders SET cod_status = 'paid', cod_transaction_id = $2
		WHERE id = $1`, id, transactionID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PgStore) AppendEvent(ctx context.Context, e *Event) error {
	return s.pool.QueryRow(ctx, `
		INSERT INTO order_events (order_id, from_status, to_status, actor_type, actor_id, notes, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING id`,
		e.OrderID, e.FromStatus, e.ToStatus, e.ActorType, e.ActorID, e.Notes, e.CreatedAt,
	).Scan(&e.ID)
}

func (s *PgStore) ListEvents(ctx context.Context, orderID types.ID) ([]Event, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, order_id, from_status, to_status, actor_type, actor_id, notes, created_at
		FROM order_events WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var (
			e       Event
			actorID *string
		)
		if err := rows.Scan(&e.ID, &e.OrderID, &e.FromStatus, &e.ToStatus, &e.ActorType, &actorID, &e.Notes, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.ActorID = idPtr(actorID)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *PgStore) ListByAgent(ctx context.Context, agentID types.ID, statuses []AgentStatus) ([]Order, error) {
	ss := make([]string, 0, len(statuses))
	for _, st := range statuses {
		ss = append(ss, string(st))
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE agent_id = $1 AND agent_status = ANY($2)
		ORDER BY assigned_at`, agentID, ss)
	if err != nil {
		return nil, err
	}
	return collectOrders(rows)
}

func (s *PgStore) ListAssignable(ctx context.Context, limit int) ([]Order, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE approval_status = 'approved' AND agent_id IS NULL
		  AND status IN ('Processing','Confirmed','Pickup_Ready')
		ORDER BY created_at
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	return collectOrders(rows)
}

func (s *PgStore) CountActiveByAgent(ctx context.Context, agentID types.ID) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `
		SELECT count(*) FROM orders
		WHERE agent_id = $1
		  AND agent_status IN ('assigned','accepted','pickup_completed','location_reached')`,
		agentID).Scan(&n)
	return n, err
}

func collectOrders(rows pgx.Rows) ([]Order, error) {
	defer rows.Close()
	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

func scanOrder(row pgx.Row) (*Order, error) {
	var (
		o          Order
		currency   string
		codAmount  int64
		approvedBy *string
		agentID    *string
		pickupBy   *string
		deliverBy  *string
		otpID      *string
	)
	err := row.Scan(
		&o.ID, &o.OrderNumber,
		&o.BuyerID, &o.BuyerName, &o.BuyerPhone, &o.SellerID, &o.SellerName,
		&o.Status, &o.StatusVersion, &o.PaymentMethod, &o.Amount.Amount, &o.DeliveryFee.Amount, &currency,
		&o.AdminApproval.Status, &approvedBy, &o.AdminApproval.ApprovedAt,
		&agentID, &o.Agent.Status, &o.Agent.AssignedAt, &o.Agent.AcceptedAt,
		&o.Agent.PickupCompletedAt, &o.Agent.DeliveryCompletedAt, &o.Agent.DeliveryDurationMin, &o.Agent.RejectionReason,
		&o.Pickup.IsCompleted, &o.Pickup.CompletedAt, &o.Pickup.SellerLocationReachedAt, &o.Pickup.Notes, &pickupBy,
		&o.Delivery.IsCompleted, &o.Delivery.CompletedAt, &o.Delivery.LocationReachedAt, &o.Delivery.LocationNotes, &deliverBy,
		&o.OTP.IsRequired, &otpID, &o.OTP.GeneratedAt, &o.OTP.ExpiresAt, &o.OTP.IsVerified, &o.OTP.VerifiedAt,
		&o.COD.Method, &o.COD.Status, &codAmount, &o.COD.TransactionID, &o.COD.QRPaymentID,
		&o.CreatedAt, &o.DeliveredAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	o.Amount.Currency = currency
	o.DeliveryFee.Currency = currency
	o.COD.CollectedAmount = types.Money{Amount: codAmount, Currency: currency}
	o.AdminApproval.ApprovedBy = idPtr(approvedBy)
	o.Agent.AgentID = idPtr(agentID)
	o.Pickup.CompletedBy = idPtr(pickupBy)
	o.Delivery.CompletedBy = idPtr(deliverBy)
	o.OTP.OTPID = idPtr(otpID)
	return &o, nil
}

func idPtr(s *string) *types.ID {
	if s == nil {
		return nil
	}
	id := types.ID(*s)
	return &id
}
