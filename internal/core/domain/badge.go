package domain

type BadgeLevel string

const (
	BadgeIron    BadgeLevel = "ferro"
	BadgeSilver  BadgeLevel = "prata"
	BadgeGold    BadgeLevel = "ouro"
	BadgeCrystal BadgeLevel = "cristal"
)

// Badge describes a customer's loyalty level.
type Badge struct {
	Level        BadgeLevel  `json:"level"`
	PizzaCount   int         `json:"pizzaCount"`
	NextLevel    *BadgeLevel `json:"nextLevel,omitempty"`
	PizzasNeeded int         `json:"pizzasNeeded"`
	Progress     int         `json:"progress"` // percent towards NextLevel
}

func BadgeLevelFor(pizzaCount int) BadgeLevel {
	switch {
	case pizzaCount >= 200:
		return BadgeCrystal
	case pizzaCount >= 100:
		return BadgeGold
	case pizzaCount >= 50:
		return BadgeSilver
	}
	return BadgeIron
}

// NextBadge returns the level after l and the pizza count it requires.
func NextBadge(l BadgeLevel) (BadgeLevel, int, bool) {
	switch l {
	case BadgeIron:
		return BadgeSilver, 50, true
	case BadgeSilver:
		return BadgeGold, 100, true
	case BadgeGold:
		return BadgeCrystal, 200, true
	}
	return "", 0, false
}

func NewBadge(pizzaCount int) Badge {
	b := Badge{Level: BadgeLevelFor(pizzaCount), PizzaCount: pizzaCount, Progress: 100}
	next, needed, ok := NextBadge(b.Level)
	if !ok {
		return b
	}
	b.NextLevel = &next
	b.PizzasNeeded = needed - pizzaCount
	b.Progress = min(100, pizzaCount*100/needed)
	return b
}

// CountPizzas counts the pizza items across orders.
func CountPizzas(orders []Order) int {
	n := 0
	for _, o := range orders {
		for _, it := range o.Items {
			if it.IsPizza() {
				n++
			}
		}
	}
	return n
}
