package wizard

import (
	"github.com/rl1809/pizzeria/internal/core/domain"
	"github.com/rl1809/pizzeria/internal/core/pricing"
)

// View is the JSON snapshot of a session rendered by the API.
type View struct {
	ID              string               `json:"id"`
	Step            Step                 `json:"step"`
	Size            domain.Size          `json:"size,omitempty"`
	SizeLabel       string               `json:"sizeLabel,omitempty"`
	MaxFlavors      int                  `json:"maxFlavors"`
	Flavors         []string             `json:"flavors"`
	CanAddFlavor    bool                 `json:"canAddFlavor"`
	SweetSize       domain.Size          `json:"sweetSize,omitempty"`
	SweetLabel      string               `json:"sweetSizeLabel,omitempty"`
	SweetMaxFlavors int                  `json:"sweetMaxFlavors"`
	SweetFlavors    []string             `json:"sweetFlavors"`
	PendingDrinks   []DrinkSelection     `json:"pendingDrinks"`
	Cart            []domain.OrderItem   `json:"cart"`
	DeliveryType    domain.DeliveryType  `json:"deliveryType,omitempty"`
	Customer        domain.Customer      `json:"customer"`
	PaymentMethod   domain.PaymentMethod `json:"paymentMethod,omitempty"`
	CashChange      *domain.Money        `json:"cashChange,omitempty"`
	Quote           pricing.Breakdown    `json:"quote"`
	ReadyToSubmit   bool                 `json:"readyToSubmit"`
	AlcoholWarning  bool                 `json:"alcoholWarning"`
}

func (s *Session) View() View {
	v := View{
		ID:              s.ID,
		Step:            s.step,
		Size:            s.size,
		SizeLabel:       s.sizeLabel,
		MaxFlavors:      s.MaxFlavors(),
		Flavors:         s.Flavors(),
		CanAddFlavor:    s.CanAddFlavor(),
		SweetSize:       s.sweetSize,
		SweetLabel:      s.sweetLabel,
		SweetMaxFlavors: s.SweetMaxFlavors(),
		SweetFlavors:    s.SweetFlavors(),
		PendingDrinks:   s.PendingDrinks(),
		Cart:            s.cart.Items(),
		DeliveryType:    s.deliveryType,
		Customer:        s.customer,
		PaymentMethod:   s.payment,
		Quote:           s.Quote(),
		ReadyToSubmit:   s.IsReadyToSubmit(),
		AlcoholWarning:  s.step == StepDrinks && s.menu.HasAlcoholicDrinks(),
	}
	if s.cashChange != nil {
		c := *s.cashChange
		v.CashChange = &c
	}
	return v
}
