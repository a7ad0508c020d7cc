// Package pricing holds the price rules of the order builder. Every function
// is pure and works on integer centavos.
package pricing

import "github.com/rl1809/pizzeria/internal/core/domain"

// DeliverySurcharge is the flat fee for delivery orders.
const DeliverySurcharge = domain.Money(500)

// Breakdown is the price summary shown at checkout and stored on the order.
type Breakdown struct {
	Subtotal    domain.Money `json:"subtotal"`
	DeliveryFee domain.Money `json:"deliveryFee"`
	Total       domain.Money `json:"total"`
}

// AveragePrice prices a multi-flavor pizza as the mean of each flavor's price
// at size. A flavor without a price at that size contributes zero.
func AveragePrice(flavors []domain.Product, size domain.Size) domain.Money {
	if len(flavors) == 0 {
		return 0
	}
	var sum domain.Money
	for _, f := range flavors {
		p, _ := f.PriceFor(string(size))
		sum += p
	}
	return sum.DivRound(len(flavors))
}

// ExtrasFee sums the fee of each chosen extra. Unknown ids cost nothing.
func ExtrasFee(ids []string, schedule []domain.Extra) domain.Money {
	var sum domain.Money
	for _, id := range ids {
		for _, e := range schedule {
			if e.ID == id {
				sum += e.Fee
				break
			}
		}
	}
	return sum
}

// DrinkLinePrice is the size-specific unit price times quantity.
func DrinkLinePrice(drink domain.Product, size string, qty int) domain.Money {
	unit, _ := drink.PriceFor(size)
	return unit.Mul(qty)
}

func ComboPrice(c domain.Combo) domain.Money {
	return c.Price
}

func Subtotal(lines []domain.CartLine) domain.Money {
	return domain.Cart(lines).Subtotal()
}

func DeliveryFee(t domain.DeliveryType) domain.Money {
	if t == domain.DeliveryTypeDelivery {
		return DeliverySurcharge
	}
	return 0
}

func Total(subtotal domain.Money, t domain.DeliveryType) domain.Money {
	return subtotal + DeliveryFee(t)
}

// Quote prices a cart for the given fulfillment type.
func Quote(lines []domain.CartLine, t domain.DeliveryType) Breakdown {
	sub := Subtotal(lines)
	return Breakdown{
		Subtotal:    sub,
		DeliveryFee: DeliveryFee(t),
		Total:       Total(sub, t),
	}
}

// QuoteItems prices already snapshotted order items.
func QuoteItems(items []domain.OrderItem, t domain.DeliveryType) Breakdown {
	var sub domain.Money
	for _, it := range items {
		sub += it.Price
	}
	return Breakdown{
		Subtotal:    sub,
		DeliveryFee: DeliveryFee(t),
		Total:       Total(sub, t),
	}
}
