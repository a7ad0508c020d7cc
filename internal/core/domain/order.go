package domain

import (
	"strings"
	"time"
)

type OrderStatus string

const (
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusPreparing  OrderStatus = "preparing"
	OrderStatusDelivering OrderStatus = "delivering"
	OrderStatusReady      OrderStatus = "ready"
	OrderStatusCompleted  OrderStatus = "completed"
)

// AllStatuses lists every status in display order.
var AllStatuses = []OrderStatus{
	OrderStatusConfirmed,
	OrderStatusPreparing,
	OrderStatusDelivering,
	OrderStatusReady,
	OrderStatusCompleted,
}

func ParseStatus(s string) (OrderStatus, bool) {
	for _, st := range AllStatuses {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

func (s OrderStatus) Label() string {
	switch s {
	case OrderStatusConfirmed:
		return "Confirmado"
	case OrderStatusPreparing:
		return "Em Preparo"
	case OrderStatusDelivering:
		return "Saiu p/ Entrega"
	case OrderStatusReady:
		return "Pronto p/ Retirada"
	case OrderStatusCompleted:
		return "Concluído"
	}
	return string(s)
}

type DeliveryType string

const (
	DeliveryTypeDelivery DeliveryType = "delivery"
	DeliveryTypePickup   DeliveryType = "pickup"
)

func ParseDeliveryType(s string) (DeliveryType, bool) {
	switch DeliveryType(s) {
	case DeliveryTypeDelivery, DeliveryTypePickup:
		return DeliveryType(s), true
	}
	return "", false
}

func (d DeliveryType) Label() string {
	if d == DeliveryTypeDelivery {
		return "Entrega"
	}
	return "Retirada"
}

// EstimatedTime is assigned once when the order is created.
func (d DeliveryType) EstimatedTime() string {
	if d == DeliveryTypeDelivery {
		return "40-50 min"
	}
	return "25-35 min"
}

type PaymentMethod string

const (
	PaymentMethodPix  PaymentMethod = "pix"
	PaymentMethodCard PaymentMethod = "card"
	PaymentMethodCash PaymentMethod = "cash"
)

func ParsePaymentMethod(s string) (PaymentMethod, bool) {
	switch PaymentMethod(s) {
	case PaymentMethodPix, PaymentMethodCard, PaymentMethodCash:
		return PaymentMethod(s), true
	}
	return "", false
}

func (p PaymentMethod) Label() string {
	switch p {
	case PaymentMethodPix:
		return "PIX"
	case PaymentMethodCard:
		return "Cartão"
	case PaymentMethodCash:
		return "Dinheiro"
	}
	return "N/A"
}

type Customer struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Address string `json:"address,omitempty"`
}

// Submission is the finalized payload built by the wizard.
type Submission struct {
	Items         []OrderItem   `json:"items"`
	DeliveryType  DeliveryType  `json:"deliveryType"`
	PaymentMethod PaymentMethod `json:"paymentMethod"`
	Customer      Customer      `json:"customer"`
	CashChange    *Money        `json:"cashChange,omitempty"`
	Subtotal      Money         `json:"subtotal"`
	DeliveryFee   Money         `json:"deliveryFee"`
	Total         Money         `json:"total"`
}

// Ready reports whether the submission carries everything checkout needs.
func (s Submission) Ready() bool {
	if strings.TrimSpace(s.Customer.Name) == "" || strings.TrimSpace(s.Customer.Phone) == "" {
		return false
	}
	if s.DeliveryType == DeliveryTypeDelivery && strings.TrimSpace(s.Customer.Address) == "" {
		return false
	}
	if _, ok := ParsePaymentMethod(string(s.PaymentMethod)); !ok {
		return false
	}
	_, ok := ParseDeliveryType(string(s.DeliveryType))
	return ok && len(s.Items) > 0
}

type Order struct {
	ID            string        `json:"id"`
	Number        int64         `json:"orderNumber"`
	UserID        string        `json:"userId,omitempty"`
	GuestID       string        `json:"guestId,omitempty"`
	Status        OrderStatus   `json:"status"`
	DeliveryType  DeliveryType  `json:"deliveryType"`
	PaymentMethod PaymentMethod `json:"paymentMethod"`
	Items         []OrderItem   `json:"items"`
	Subtotal      Money         `json:"subtotal"`
	DeliveryFee   Money         `json:"deliveryFee"`
	Total         Money         `json:"total"`
	CustomerName  string        `json:"customerName"`
	CustomerPhone string        `json:"customerPhone"`
	Address       string        `json:"customerAddress,omitempty"`
	CashChange    *Money        `json:"cashChange,omitempty"`
	EstimatedTime string        `json:"estimatedTime"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`

	// Pending is set while a status change has not been confirmed by the
	// store. It is never persisted.
	Pending bool `json:"pendingConfirmation,omitempty"`
}

// Clone returns a deep copy of o.
func (o Order) Clone() Order {
	out := o
	out.Items = CloneItems(o.Items)
	if o.CashChange != nil {
		c := *o.CashChange
		out.CashChange = &c
	}
	return out
}

func CloneItems(items []OrderItem) []OrderItem {
	if items == nil {
		return nil
	}
	out := make([]OrderItem, len(items))
	for i, it := range items {
		out[i] = it
		if it.Customizations != nil {
			c := it.Customizations.clone()
			out[i].Customizations = &c
		}
	}
	return out
}

func (o Order) IsActive() bool {
	return o.Status != OrderStatusCompleted
}
