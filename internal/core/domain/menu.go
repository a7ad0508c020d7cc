package domain

import "time"

type Category string

const (
	CategorySavory   Category = "salgadas"
	CategorySweet    Category = "doces"
	CategoryCombos   Category = "combos"
	CategoryCalzones Category = "calzones"
	CategoryDrinks   Category = "bebidas"
)

type CategoryInfo struct {
	ID           Category `json:"id"`
	Label        string   `json:"label"`
	Icon         string   `json:"icon"`
	DisplayOrder int      `json:"displayOrder"`
}

// PriceOption is the price of a product at one size. Pizza sizes use the
// Size tokens; drinks use free-form sizes such as "350ml" or "2L".
type PriceOption struct {
	Size  string `json:"size"`
	Price Money  `json:"price"`
}

type Product struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	ImageURL    string        `json:"image"`
	Category    Category      `json:"category"`
	Prices      []PriceOption `json:"prices"`
	Alcoholic   bool          `json:"isAlcoholic,omitempty"`
	Available   bool          `json:"available"`
}

// PriceFor returns the product price at size.
func (p Product) PriceFor(size string) (Money, bool) {
	for _, opt := range p.Prices {
		if opt.Size == size {
			return opt.Price, true
		}
	}
	return 0, false
}

type Combo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Price       Money  `json:"price"`
	ImageURL    string `json:"image"`
	Available   bool   `json:"available"`
}

// Extra is a paid add-on ingredient.
type Extra struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Fee  Money  `json:"fee"`
}

// Ingredient is a common ingredient the customer may ask to leave out.
type Ingredient struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

var DefaultExtras = []Extra{
	{ID: "bacon-extra", Name: "Bacon extra", Fee: Reais(5, 0)},
	{ID: "queijo-extra", Name: "Queijo extra", Fee: Reais(6, 0)},
	{ID: "catupiry-extra", Name: "Catupiry extra", Fee: Reais(7, 0)},
	{ID: "borda-recheada", Name: "Borda recheada", Fee: Reais(10, 0)},
}

var CommonIngredients = []Ingredient{
	{ID: "cebola", Name: "Cebola"},
	{ID: "azeitona", Name: "Azeitona"},
	{ID: "ervilha", Name: "Ervilha"},
	{ID: "milho", Name: "Milho"},
	{ID: "oregano", Name: "Orégano extra"},
	{ID: "pimenta", Name: "Pimenta"},
}

// Menu is a read-only snapshot of the catalogue. Callers must not mutate it;
// a refresh produces a new snapshot.
type Menu struct {
	Categories []CategoryInfo `json:"categories"`
	Savory     []Product      `json:"pizzasSalgadas"`
	Sweet      []Product      `json:"pizzasDoces"`
	Calzones   []Product      `json:"calzones"`
	Drinks     []Product      `json:"bebidas"`
	Combos     []Combo        `json:"combos"`
	Extras     []Extra        `json:"extras"`
	Removable  []Ingredient   `json:"removable"`
	LoadedAt   time.Time      `json:"loadedAt"`
}

// NewMenu groups available products by category.
func NewMenu(categories []CategoryInfo, products []Product, combos []Combo) *Menu {
	m := &Menu{
		Categories: categories,
		Extras:     DefaultExtras,
		Removable:  CommonIngredients,
		LoadedAt:   time.Now(),
	}
	for _, p := range products {
		if !p.Available {
			continue
		}
		switch p.Category {
		case CategorySavory:
			m.Savory = append(m.Savory, p)
		case CategorySweet:
			m.Sweet = append(m.Sweet, p)
		case CategoryCalzones:
			m.Calzones = append(m.Calzones, p)
		case CategoryDrinks:
			m.Drinks = append(m.Drinks, p)
		}
	}
	for _, c := range combos {
		if c.Available {
			m.Combos = append(m.Combos, c)
		}
	}
	return m
}

func findProduct(list []Product, id string) (Product, bool) {
	for _, p := range list {
		if p.ID == id {
			return p, true
		}
	}
	return Product{}, false
}

func (m *Menu) Flavor(id string) (Product, bool)      { return findProduct(m.Savory, id) }
func (m *Menu) SweetFlavor(id string) (Product, bool) { return findProduct(m.Sweet, id) }
func (m *Menu) Drink(id string) (Product, bool)       { return findProduct(m.Drinks, id) }

func (m *Menu) Combo(id string) (Combo, bool) {
	for _, c := range m.Combos {
		if c.ID == id {
			return c, true
		}
	}
	return Combo{}, false
}

// ProductsIn returns every product of the snapshot in category c.
func (m *Menu) ProductsIn(c Category) []Product {
	switch c {
	case CategorySavory:
		return m.Savory
	case CategorySweet:
		return m.Sweet
	case CategoryCalzones:
		return m.Calzones
	case CategoryDrinks:
		return m.Drinks
	}
	return nil
}

// HasAlcoholicDrinks reports whether the drinks step needs the age warning.
func (m *Menu) HasAlcoholicDrinks() bool {
	for _, d := range m.Drinks {
		if d.Alcoholic {
			return true
		}
	}
	return false
}
