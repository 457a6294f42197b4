package handlers

import (
	"time"

	"courier/internal/modules/order"
	"courier/internal/types"
)

// orderView is the wire shape of an order. Money is exposed in minor units.
type orderView struct {
	ID          types.ID `json:"id"`
	OrderNumber string   `json:"orderNumber"`
	BuyerID     types.ID `json:"buyerId"`
	BuyerName   string   `json:"buyerName"`
	SellerID    types.ID `json:"sellerId"`
	SellerName  string   `json:"sellerName"`

	Status        order.Status        `json:"status"`
	PaymentMethod order.PaymentMethod `json:"paymentMethod"`
	Amount        int64               `json:"amount"`
	DeliveryFee   int64               `json:"deliveryFee"`
	Currency      string              `json:"currency"`

	ApprovalStatus order.ApprovalStatus `json:"approvalStatus"`
	AgentID        *types.ID            `json:"agentId,omitempty"`
	AgentStatus    order.AgentStatus    `json:"agentStatus,omitempty"`
	AssignedAt     *time.Time           `json:"assignedAt,omitempty"`

	PickupCompleted bool       `json:"pickupCompleted"`
	OTPRequired     bool       `json:"otpRequired"`
	OTPVerified     bool       `json:"otpVerified"`
	CODStatus       string     `json:"codStatus,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	DeliveredAt     *time.Time `json:"deliveredAt,omitempty"`
}

func toOrderView(o *order.Order) orderView {
	return orderView{
		ID:              o.ID,
		OrderNumber:     o.OrderNumber,
		BuyerID:         o.BuyerID,
		BuyerName:       o.BuyerName,
		SellerID:        o.SellerID,
		SellerName:      o.SellerName,
		Status:          o.Status,
		PaymentMethod:   o.PaymentMethod,
		Amount:          o.Amount.Amount,
		DeliveryFee:     o.DeliveryFee.Amount,
		Currency:        o.Amount.Currency,
		ApprovalStatus:  o.AdminApproval.Status,
		AgentID:         o.Agent.AgentID,
		AgentStatus:     o.Agent.Status,
		AssignedAt:      o.Agent.AssignedAt,
		PickupCompleted: o.Pickup.IsCompleted,
		OTPRequired:     o.OTP.IsRequired,
		OTPVerified:     o.OTP.IsVerified,
		CODStatus:       o.COD.Status,
		CreatedAt:       o.CreatedAt,
		DeliveredAt:     o.DeliveredAt,
	}
}

func toOrderViews(os []order.Order) []orderView {
	out := make([]orderView, 0, len(os))
	for i := range os {
		out = append(out, toOrderView(&os[i]))
	}
	return out
}

type eventView struct {
	FromStatus string     `json:"fromStatus"`
	ToStatus   string     `json:"toStatus"`
	ActorType  string     `json:"actorType"`
	ActorID    *types.ID  `json:"actorId,omitempty"`
	Notes      string     `json:"notes,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
}

func toEventViews(es []order.Event) []eventView {
	out := make([]eventView, 0, len(es))
	for _, e := range es {
		out = append(out, eventView{
			FromStatus: e.FromStatus,
			ToStatus:   e.ToStatus,
			ActorType:  e.ActorType,
			ActorID:    e.ActorID,
			Notes:      e.Notes,
			CreatedAt:  e.CreatedAt,
		})
	}
	return out
}

type paymentDataView struct {
	Kind         string     `json:"kind"`
	OTPID        types.ID   `json:"otpId,omitempty"`
	OTPExpiresAt *time.Time `json:"otpExpiresAt,omitempty"`
	QRPaymentID  string     `json:"qrPaymentId,omitempty"`
	QRCode       string     `json:"qrCode,omitempty"`
}

func toPaymentDataView(pd order.PaymentData) paymentDataView {
	return paymentDataView{
		Kind:         pd.Kind,
		OTPID:        pd.OTPID,
		OTPExpiresAt: pd.OTPExpiresAt,
		QRPaymentID:  pd.QRPaymentID,
		QRCode:       pd.QRCode,
	}
}
