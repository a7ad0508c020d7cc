package domain

import (
	"fmt"
	"strings"
)

type LineKind string

const (
	LineKindPizza LineKind = "pizza"
	LineKindDrink LineKind = "drink"
	LineKindCombo LineKind = "combo"
)

// Customization holds ingredient ids added (paid extras) and removed (free).
type Customization struct {
	Add    []string `json:"add"`
	Remove []string `json:"remove"`
}

func (c Customization) IsEmpty() bool {
	return len(c.Add) == 0 && len(c.Remove) == 0
}

// clone never yields nil slices so an untouched pizza encodes as [].
func (c Customization) clone() Customization {
	return Customization{
		Add:    append(make([]string, 0, len(c.Add)), c.Add...),
		Remove: append(make([]string, 0, len(c.Remove)), c.Remove...),
	}
}

// CartLine is a priced line of the in-progress cart. The set of
// implementations is closed: PizzaLine, DrinkLine and ComboLine.
type CartLine interface {
	Kind() LineKind
	Name() string
	SizeLabel() string
	Price() Money
	Item() OrderItem
	cartLine()
}

type PizzaLine struct {
	Flavors       []string
	Sweet         bool
	Size          Size
	Label         string
	BasePrice     Money
	ExtrasFee     Money
	Customization Customization
}

func (l PizzaLine) Kind() LineKind    { return LineKindPizza }
func (l PizzaLine) SizeLabel() string { return l.Label }
func (l PizzaLine) Price() Money      { return l.BasePrice + l.ExtrasFee }
func (PizzaLine) cartLine()           {}

func (l PizzaLine) Name() string {
	prefix := "Pizza "
	if l.Sweet {
		prefix = "Pizza Doce "
	}
	return prefix + strings.Join(l.Flavors, " + ")
}

func (l PizzaLine) Item() OrderItem {
	item := OrderItem{
		Kind:     LineKindPizza,
		Name:     l.Name(),
		Size:     l.Label,
		Price:    l.Price(),
		Quantity: 1,
	}
	if !l.Sweet {
		c := l.Customization.clone()
		item.Customizations = &c
	}
	return item
}

type DrinkLine struct {
	ProductID   string
	ProductName string
	Size        string
	UnitPrice   Money
	Quantity    int
}

func (l DrinkLine) Kind() LineKind    { return LineKindDrink }
func (l DrinkLine) SizeLabel() string { return l.Size }
func (l DrinkLine) Price() Money      { return l.UnitPrice.Mul(l.Quantity) }
func (DrinkLine) cartLine()           {}

func (l DrinkLine) Name() string {
	return fmt.Sprintf("%s (%s) x%d", l.ProductName, l.Size, l.Quantity)
}

func (l DrinkLine) Item() OrderItem {
	return OrderItem{
		Kind:     LineKindDrink,
		Name:     l.Name(),
		Price:    l.Price(),
		Quantity: l.Quantity,
	}
}

type ComboLine struct {
	ComboID   string
	ComboName string
	FlatPrice Money
}

func (l ComboLine) Kind() LineKind    { return LineKindCombo }
func (l ComboLine) Name() string      { return l.ComboName }
func (l ComboLine) SizeLabel() string { return "" }
func (l ComboLine) Price() Money      { return l.FlatPrice }
func (ComboLine) cartLine()           {}

func (l ComboLine) Item() OrderItem {
	return OrderItem{
		Kind:     LineKindCombo,
		Name:     l.ComboName,
		Price:    l.FlatPrice,
		Quantity: 1,
	}
}

// OrderItem is the flat snapshot of a cart line that is persisted and sent
// to the notification channel.
type OrderItem struct {
	Kind           LineKind       `json:"kind,omitempty"`
	Name           string         `json:"name"`
	Size           string         `json:"size,omitempty"`
	Price          Money          `json:"price"`
	Quantity       int            `json:"quantity,omitempty"`
	Customizations *Customization `json:"customizations,omitempty"`
}

// IsPizza reports whether the item counts towards loyalty badges.
func (i OrderItem) IsPizza() bool {
	return strings.Contains(strings.ToLower(i.Name), "pizza")
}

// Cart is the ordered list of lines of the current session.
type Cart []CartLine

func (c Cart) Subtotal() Money {
	var sum Money
	for _, l := range c {
		sum += l.Price()
	}
	return sum
}

// Remove returns the cart without the line at index i.
func (c Cart) Remove(i int) (Cart, bool) {
	if i < 0 || i >= len(c) {
		return c, false
	}
	out := make(Cart, 0, len(c)-1)
	out = append(out, c[:i]...)
	return append(out, c[i+1:]...), true
}

// Items snapshots every line into independent OrderItems.
func (c Cart) Items() []OrderItem {
	items := make([]OrderItem, len(c))
	for i, l := range c {
		items[i] = l.Item()
	}
	return items
}
