// Package wizard implements the step-gated order builder. A Session is owned
// by a single customer and is not safe for concurrent use; callers serialise
// access (see service.SessionStore).
//
// Every operation returns false and leaves the session untouched when it is
// not valid for the current step or input.
package wizard

import (
	"slices"
	"strings"

	"github.com/rl1809/pizzeria/internal/core/domain"
	"github.com/rl1809/pizzeria/internal/core/pricing"
)

type Step string

const (
	StepSize         Step = "size"
	StepCombos       Step = "combos"
	StepFlavors      Step = "flavors"
	StepSweetSize    Step = "sweetSize"
	StepSweetFlavors Step = "sweetFlavors"
	StepCustomize    Step = "customize"
	StepDrinks       Step = "drinks"
	StepDelivery     Step = "delivery"
	StepCheckout     Step = "checkout"
)

// DrinkSelection is a pending (drink, size, quantity) tuple.
type DrinkSelection struct {
	ProductID string `json:"productId"`
	Size      string `json:"size"`
	Quantity  int    `json:"quantity"`
}

type Session struct {
	ID   string
	menu *domain.Menu
	step Step

	size      domain.Size
	sizeLabel string
	flavors   []string
	basePrice domain.Money

	sweetSize      domain.Size
	sweetLabel     string
	sweetFlavors   []string
	sweetBasePrice domain.Money

	drinks []DrinkSelection
	cart   domain.Cart

	deliveryType domain.DeliveryType
	customer     domain.Customer
	payment      domain.PaymentMethod
	cashChange   *domain.Money
}

// NewSession starts a wizard at the size step over a menu snapshot.
func NewSession(id string, menu *domain.Menu) *Session {
	if menu == nil {
		menu = domain.NewMenu(nil, nil, nil)
	}
	return &Session{ID: id, menu: menu, step: StepSize}
}

func (s *Session) Step() Step             { return s.step }
func (s *Session) Menu() *domain.Menu     { return s.menu }
func (s *Session) Size() domain.Size      { return s.size }
func (s *Session) SweetSize() domain.Size { return s.sweetSize }
func (s *Session) Flavors() []string      { return slices.Clone(s.flavors) }
func (s *Session) SweetFlavors() []string { return slices.Clone(s.sweetFlavors) }
func (s *Session) Cart() domain.Cart      { return slices.Clone(s.cart) }

// PendingDrinks returns the drink tuples chosen but not yet confirmed.
func (s *Session) PendingDrinks() []DrinkSelection { return slices.Clone(s.drinks) }

// MaxFlavors is the flavor cap of the selected size, 0 before a size is chosen.
func (s *Session) MaxFlavors() int {
	if s.size == "" {
		return 0
	}
	return domain.MaxFlavors(s.size)
}

func (s *Session) SweetMaxFlavors() int {
	if s.sweetSize == "" {
		return 0
	}
	return domain.SweetMaxFlavors(s.sweetSize)
}

func (s *Session) SelectSize(size domain.Size, label string) bool {
	if s.step != StepSize {
		return false
	}
	if _, ok := domain.ParseSize(string(size)); !ok {
		return false
	}
	if size != s.size {
		s.flavors = nil
		s.basePrice = 0
	}
	if label == "" {
		label = size.Label()
	}
	s.size, s.sizeLabel = size, label
	s.step = StepFlavors
	return true
}

// CanAddFlavor reports whether another flavor fits under the size cap.
func (s *Session) CanAddFlavor() bool {
	return s.step == StepFlavors && len(s.flavors) < s.MaxFlavors()
}

// ToggleFlavor adds or removes a savory flavor. Adding beyond the cap is
// ignored.
func (s *Session) ToggleFlavor(id string) bool {
	if s.step != StepFlavors {
		return false
	}
	if _, ok := s.menu.Flavor(id); !ok {
		return false
	}
	next, ok := toggle(s.flavors, id, s.MaxFlavors())
	if !ok {
		return false
	}
	s.flavors = next
	return true
}

func toggle(selected []string, id string, limit int) ([]string, bool) {
	if i := slices.Index(selected, id); i >= 0 {
		return slices.Delete(slices.Clone(selected), i, i+1), true
	}
	if len(selected) >= limit {
		return selected, false
	}
	return append(slices.Clone(selected), id), true
}

func (s *Session) ConfirmFlavors() bool {
	if s.step != StepFlavors || len(s.flavors) == 0 {
		return false
	}
	s.basePrice = pricing.AveragePrice(s.products(s.flavors, s.menu.Flavor), s.size)
	s.step = StepSweetSize
	return true
}

func (s *Session) OpenCombos() bool {
	if s.step != StepSize {
		return false
	}
	s.step = StepCombos
	return true
}

// SelectCombo appends the combo at its flat price and jumps to drinks.
func (s *Session) SelectCombo(id string) bool {
	if s.step != StepCombos {
		return false
	}
	c, ok := s.menu.Combo(id)
	if !ok {
		return false
	}
	s.cart = append(s.cart, domain.ComboLine{ComboID: c.ID, ComboName: c.Name, FlatPrice: pricing.ComboPrice(c)})
	s.step = StepDrinks
	return true
}

func (s *Session) SelectSweetSize(size domain.Size, label string) bool {
	if s.step != StepSweetSize || !domain.IsSweetSize(size) {
		return false
	}
	if size != s.sweetSize {
		s.sweetFlavors = nil
		s.sweetBasePrice = 0
	}
	if label == "" {
		label = size.Label()
	}
	s.sweetSize, s.sweetLabel = size, label
	s.step = StepSweetFlavors
	return true
}

func (s *Session) ToggleSweetFlavor(id string) bool {
	if s.step != StepSweetFlavors {
		return false
	}
	if _, ok := s.menu.SweetFlavor(id); !ok {
		return false
	}
	next, ok := toggle(s.sweetFlavors, id, s.SweetMaxFlavors())
	if !ok {
		return false
	}
	s.sweetFlavors = next
	return true
}

func (s *Session) ConfirmSweetFlavors() bool {
	if s.step != StepSweetFlavors || len(s.sweetFlavors) == 0 {
		return false
	}
	s.sweetBasePrice = pricing.AveragePrice(s.products(s.sweetFlavors, s.menu.SweetFlavor), s.sweetSize)
	s.step = StepCustomize
	return true
}

// SkipSweet drops any partial sweet pizza and moves on to customization.
func (s *Session) SkipSweet() bool {
	if s.step != StepSweetSize && s.step != StepSweetFlavors {
		return false
	}
	s.clearSweet()
	s.step = StepCustomize
	return true
}

// ConfirmCustomization commits the pending pizza, plus the sweet pizza when
// one was chosen, and moves to drinks. The empty customization is valid.
func (s *Session) ConfirmCustomization(c domain.Customization) bool {
	if s.step != StepCustomize {
		return false
	}
	if len(s.flavors) > 0 {
		c = domain.Customization{Add: dedupe(c.Add), Remove: dedupe(c.Remove)}
		s.cart = append(s.cart, domain.PizzaLine{
			Flavors:       s.names(s.flavors, s.menu.Flavor),
			Size:          s.size,
			Label:         s.sizeLabel,
			BasePrice:     s.basePrice,
			ExtrasFee:     pricing.ExtrasFee(c.Add, s.menu.Extras),
			Customization: c,
		})
		if len(s.sweetFlavors) > 0 && s.sweetSize != "" {
			s.cart = append(s.cart, domain.PizzaLine{
				Flavors:   s.names(s.sweetFlavors, s.menu.SweetFlavor),
				Sweet:     true,
				Size:      s.sweetSize,
				Label:     s.sweetLabel,
				BasePrice: s.sweetBasePrice,
			})
		}
		s.clearPizza()
	}
	s.step = StepDrinks
	return true
}

// SkipToDrinks commits the pending pizza without customization, or just
// moves to drinks when nothing is pending.
func (s *Session) SkipToDrinks() bool {
	return s.ConfirmCustomization(domain.Customization{})
}

// AddDrink increments the pending quantity of a drink at size.
func (s *Session) AddDrink(productID, size string) bool {
	if s.step != StepDrinks {
		return false
	}
	d, ok := s.menu.Drink(productID)
	if !ok {
		return false
	}
	if _, ok := d.PriceFor(size); !ok {
		return false
	}
	for i := range s.drinks {
		if s.drinks[i].ProductID == productID && s.drinks[i].Size == size {
			s.drinks[i].Quantity++
			return true
		}
	}
	s.drinks = append(s.drinks, DrinkSelection{ProductID: productID, Size: size, Quantity: 1})
	return true
}

// RemoveDrink decrements the pending quantity; the tuple is dropped at zero.
func (s *Session) RemoveDrink(productID, size string) bool {
	if s.step != StepDrinks {
		return false
	}
	for i := range s.drinks {
		if s.drinks[i].ProductID != productID || s.drinks[i].Size != size {
			continue
		}
		if s.drinks[i].Quantity > 1 {
			s.drinks[i].Quantity--
		} else {
			s.drinks = slices.Delete(s.drinks, i, i+1)
		}
		return true
	}
	return false
}

// ConfirmDrinks appends one line per tuple and moves to delivery. With no
// arguments the pending selection built by AddDrink/RemoveDrink is used.
// Tuples with unknown drinks, sizes or non-positive quantities are skipped.
func (s *Session) ConfirmDrinks(selections ...DrinkSelection) bool {
	if s.step != StepDrinks {
		return false
	}
	if len(selections) == 0 {
		selections = s.drinks
	}
	for _, sel := range selections {
		if sel.Quantity < 1 {
			continue
		}
		d, ok := s.menu.Drink(sel.ProductID)
		if !ok {
			continue
		}
		unit, ok := d.PriceFor(sel.Size)
		if !ok {
			continue
		}
		s.cart = append(s.cart, domain.DrinkLine{
			ProductID:   d.ID,
			ProductName: d.Name,
			Size:        sel.Size,
			UnitPrice:   unit,
			Quantity:    sel.Quantity,
		})
	}
	s.drinks = nil
	s.step = StepDelivery
	return true
}

func (s *Session) SelectDeliveryType(t domain.DeliveryType) bool {
	if s.step != StepDelivery {
		return false
	}
	if _, ok := domain.ParseDeliveryType(string(t)); !ok {
		return false
	}
	s.deliveryType = t
	s.step = StepCheckout
	return true
}

// GoToDelivery is the floating cart shortcut.
func (s *Session) GoToDelivery() bool {
	if len(s.cart) == 0 || s.step == StepDelivery || s.step == StepCheckout {
		return false
	}
	s.drinks = nil
	s.step = StepDelivery
	return true
}

func (s *Session) SetCustomer(name, phone string) bool {
	if s.step != StepCheckout {
		return false
	}
	s.customer.Name, s.customer.Phone = name, phone
	return true
}

func (s *Session) SetAddress(address string) bool {
	if s.step != StepCheckout {
		return false
	}
	s.customer.Address = address
	return true
}

func (s *Session) SetPaymentMethod(m domain.PaymentMethod) bool {
	if s.step != StepCheckout {
		return false
	}
	if _, ok := domain.ParsePaymentMethod(string(m)); !ok {
		return false
	}
	s.payment = m
	return true
}

// SetCashChange records the note the customer pays with. A nil amount
// clears it.
func (s *Session) SetCashChange(amount *domain.Money) bool {
	if s.step != StepCheckout {
		return false
	}
	if amount == nil {
		s.cashChange = nil
		return true
	}
	if *amount < 0 {
		return false
	}
	v := *amount
	s.cashChange = &v
	return true
}

// RemoveCartItem drops the line at index i. Leaving checkout when the cart
// empties is up to the caller.
func (s *Session) RemoveCartItem(i int) bool {
	next, ok := s.cart.Remove(i)
	if !ok {
		return false
	}
	s.cart = next
	return true
}

// IsReadyToSubmit checks the checkout form: name and phone present, address
// present for delivery, payment method chosen.
func (s *Session) IsReadyToSubmit() bool {
	if strings.TrimSpace(s.customer.Name) == "" || strings.TrimSpace(s.customer.Phone) == "" {
		return false
	}
	if s.deliveryType == "" {
		return false
	}
	if s.deliveryType == domain.DeliveryTypeDelivery && strings.TrimSpace(s.customer.Address) == "" {
		return false
	}
	return s.payment != ""
}

func (s *Session) Quote() pricing.Breakdown {
	return pricing.Quote(s.cart, s.deliveryType)
}

// Submission snapshots the cart and checkout form. Items are deep copies;
// cash change is kept only for cash payments and the address only for
// delivery.
func (s *Session) Submission() domain.Submission {
	q := s.Quote()
	sub := domain.Submission{
		Items:         s.cart.Items(),
		DeliveryType:  s.deliveryType,
		PaymentMethod: s.payment,
		Customer: domain.Customer{
			Name:  strings.TrimSpace(s.customer.Name),
			Phone: strings.TrimSpace(s.customer.Phone),
		},
		Subtotal:    q.Subtotal,
		DeliveryFee: q.DeliveryFee,
		Total:       q.Total,
	}
	if s.deliveryType == domain.DeliveryTypeDelivery {
		sub.Customer.Address = strings.TrimSpace(s.customer.Address)
	}
	if s.payment == domain.PaymentMethodCash && s.cashChange != nil {
		v := *s.cashChange
		sub.CashChange = &v
	}
	return sub
}

// Complete resets the session after a successful submission.
func (s *Session) Complete() {
	*s = Session{ID: s.ID, menu: s.menu, step: StepSize}
}

// Back returns to the logical predecessor of the current step. Committed
// cart lines are kept; only the current step's in-progress selection is
// dropped.
func (s *Session) Back() bool {
	switch s.step {
	case StepFlavors:
		s.flavors = nil
		s.basePrice = 0
		s.step = StepSize
	case StepCombos:
		s.step = StepSize
	case StepSweetSize:
		s.step = StepFlavors
	case StepSweetFlavors:
		s.sweetFlavors = nil
		s.sweetBasePrice = 0
		s.step = StepSweetSize
	case StepCustomize:
		if len(s.sweetFlavors) > 0 {
			s.step = StepSweetFlavors
		} else {
			s.step = StepSweetSize
		}
	case StepDrinks:
		s.drinks = nil
		s.step = StepCustomize
	case StepDelivery:
		s.step = StepDrinks
	case StepCheckout:
		s.step = StepDelivery
	default:
		return false
	}
	return true
}

func (s *Session) clearSweet() {
	s.sweetSize, s.sweetLabel = "", ""
	s.sweetFlavors = nil
	s.sweetBasePrice = 0
}

func (s *Session) clearPizza() {
	s.flavors = nil
	s.basePrice = 0
	s.clearSweet()
}

func (s *Session) products(ids []string, lookup func(string) (domain.Product, bool)) []domain.Product {
	out := make([]domain.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := lookup(id); ok {
			out = append(out, p)
		}
	}
	return out
}

func (s *Session) names(ids []string, lookup func(string) (domain.Product, bool)) []string {
	ps := s.products(ids, lookup)
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.Name
	}
	return out
}

func dedupe(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != "" && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}
