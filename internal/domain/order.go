package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

type OrderKind string

const (
	OrderKindPickup  OrderKind = "pickup"
	OrderKindQuote   OrderKind = "quote"
	OrderKindPayment OrderKind = "payment"
)

func (k OrderKind) Valid() bool {
	switch k {
	case OrderKindPickup, OrderKindQuote, OrderKindPayment:
		return true
	}
	return false
}

type OrderStatus string

const (
	OrderStatusNew        OrderStatus = "new"
	OrderStatusVerified   OrderStatus = "verified"
	OrderStatusInvalid    OrderStatus = "invalid"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusDone       OrderStatus = "done"
)

// OrderStatuses lists every status an admin may set.
var OrderStatuses = []OrderStatus{
	OrderStatusNew,
	OrderStatusVerified,
	OrderStatusInvalid,
	OrderStatusProcessing,
	OrderStatusDone,
}

func (s OrderStatus) Valid() bool {
	for _, status := range OrderStatuses {
		if s == status {
			return true
		}
	}
	return false
}

type PickupRequest struct {
	Name    string `json:"name" validate:"required,min=1"`
	Email   string `json:"email" validate:"required,email"`
	Phone   string `json:"phone" validate:"required,min=10"`
	Address string `json:"address" validate:"required,min=5"`
	Items   string `json:"items" validate:"required,min=10"`
}

type QuoteRequest struct {
	Company       string `json:"company" validate:"required,min=1"`
	ContactPerson string `json:"contactPerson" validate:"required,min=1"`
	Email         string `json:"email" validate:"required,email"`
	Phone         string `json:"phone,omitempty"`
	Requirements  string `json:"requirements" validate:"required,min=10"`
	Volume        string `json:"volume,omitempty"`
	Frequency     string `json:"frequency,omitempty"`
}

// OrderPayload holds exactly one variant, selected by the owning order's kind.
// Payment notifications keep the raw gateway body because its shape is not ours.
type OrderPayload struct {
	Pickup  *PickupRequest
	Quote   *QuoteRequest
	Payment json.RawMessage
}

func (p OrderPayload) MarshalJSON() ([]byte, error) {
	switch {
	case p.Pickup != nil:
		return json.Marshal(p.Pickup)
	case p.Quote != nil:
		return json.Marshal(p.Quote)
	case len(p.Payment) > 0:
		return p.Payment, nil
	}
	return []byte("null"), nil
}

// DecodePayload turns a stored payload back into its typed variant.
func DecodePayload(kind OrderKind, data []byte) (OrderPayload, error) {
	var p OrderPayload
	if len(data) == 0 || string(data) == "null" {
		return p, nil
	}

	switch kind {
	case OrderKindPickup:
		p.Pickup = &PickupRequest{}
		if err := json.Unmarshal(data, p.Pickup); err != nil {
			return p, fmt.Errorf("decode pickup payload: %w", err)
		}
	case OrderKindQuote:
		p.Quote = &QuoteRequest{}
		if err := json.Unmarshal(data, p.Quote); err != nil {
			return p, fmt.Errorf("decode quote payload: %w", err)
		}
	case OrderKindPayment:
		p.Payment = append(json.RawMessage(nil), data...)
	default:
		return p, fmt.Errorf("unknown order kind %q", kind)
	}

	return p, nil
}

type Order struct {
	ID        string       `json:"id"`
	Kind      OrderKind    `json:"kind"`
	Email     string       `json:"email,omitempty"`
	Status    OrderStatus  `json:"status"`
	Payload   OrderPayload `json:"payload"`
	PaymentID string       `json:"paymentId,omitempty"`
	Signature string       `json:"signature,omitempty"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

func (o *Order) UnmarshalJSON(data []byte) error {
	type plain Order
	var aux struct {
		*plain
		Payload json.RawMessage `json:"payload"`
	}
	aux.plain = (*plain)(o)

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	payload, err := DecodePayload(o.Kind, aux.Payload)
	if err != nil {
		return err
	}
	o.Payload = payload
	return nil
}

// OrderFilter narrows an order listing. Zero values mean "no filter";
// From and To are inclusive bounds on CreatedAt.
type OrderFilter struct {
	Kind   OrderKind
	Status OrderStatus
	From   time.Time
	To     time.Time
}

// MaxOrderListSize caps every order listing; there is no cursor.
const MaxOrderListSize = 100
