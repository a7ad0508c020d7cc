package domain

// Size identifies a pizza size. The token is the exact value stored in the
// price tables, so it doubles as the lookup key for Product.PriceFor.
type Size string

const (
	SizeP       Size = "P (25cm)"
	SizeM       Size = "M (30cm)"
	SizeG       Size = "G (40cm)"
	SizeGG      Size = "GG (50cm)"
	SizeFamilia Size = "Família (60cm)"
)

// SizeOption is a selectable size with its display label.
type SizeOption struct {
	Size        Size   `json:"size"`
	Label       string `json:"label"`
	Description string `json:"description"`
}

// PizzaSizes lists the savory pizza sizes in display order.
var PizzaSizes = []SizeOption{
	{Size: SizeP, Label: "Pequena", Description: "25cm - Ideal para 1 pessoa"},
	{Size: SizeM, Label: "Média", Description: "30cm - Ideal para 2 pessoas"},
	{Size: SizeG, Label: "Grande", Description: "40cm - Ideal para 3-4 pessoas"},
	{Size: SizeGG, Label: "Gigante", Description: "50cm - Ideal para 4-5 pessoas"},
	{Size: SizeFamilia, Label: "Família", Description: "60cm - Para toda a família!"},
}

// SweetPizzaSizes lists the sizes offered for the sweet pizza add-on.
var SweetPizzaSizes = []SizeOption{
	{Size: SizeP, Label: "Pequena", Description: "25cm - Ideal para 1 pessoa"},
	{Size: SizeM, Label: "Média", Description: "30cm - Ideal para 2 pessoas"},
	{Size: SizeG, Label: "Grande", Description: "40cm - Ideal para 3-4 pessoas"},
}

// ParseSize matches a size token exactly.
func ParseSize(token string) (Size, bool) {
	for _, opt := range PizzaSizes {
		if string(opt.Size) == token {
			return opt.Size, true
		}
	}
	return "", false
}

// IsSweetSize reports whether s is offered for sweet pizzas.
func IsSweetSize(s Size) bool {
	for _, opt := range SweetPizzaSizes {
		if opt.Size == s {
			return true
		}
	}
	return false
}

// MaxFlavors is the number of flavors a savory pizza of size s may combine.
func MaxFlavors(s Size) int {
	switch s {
	case SizeGG, SizeFamilia:
		return 4
	case SizeG:
		return 3
	case SizeM:
		return 2
	default:
		return 1
	}
}

// SweetMaxFlavors is the flavor cap for sweet pizzas, which top out at 3.
func SweetMaxFlavors(s Size) int {
	switch s {
	case SizeG, SizeGG, SizeFamilia:
		return 3
	case SizeM:
		return 2
	default:
		return 1
	}
}

// Label returns the display label of s, or the raw token when unknown.
func (s Size) Label() string {
	for _, opt := range PizzaSizes {
		if opt.Size == s {
			return opt.Label
		}
	}
	return string(s)
}
