package domain

import "time"

type OrderReceivedEvent struct {
	OrderID   string      `json:"order_id"`
	Kind      OrderKind   `json:"kind"`
	Status    OrderStatus `json:"status"`
	Email     string      `json:"email,omitempty"`
	Name      string      `json:"name,omitempty"`
	PaymentID string      `json:"payment_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

func NewOrderReceivedEvent(order *Order) OrderReceivedEvent {
	event := OrderReceivedEvent{
		OrderID:   order.ID,
		Kind:      order.Kind,
		Status:    order.Status,
		Email:     order.Email,
		PaymentID: order.PaymentID,
		Timestamp: order.CreatedAt,
	}

	switch {
	case order.Payload.Pickup != nil:
		event.Name = order.Payload.Pickup.Name
	case order.Payload.Quote != nil:
		event.Name = order.Payload.Quote.ContactPerson
	}

	return event
}
