package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// FoodCategory is the coarse grouping a food belongs to.
type FoodCategory string

// Food categories.
const (
	CategoryProtein   FoodCategory = "protein"
	CategoryCarb      FoodCategory = "carb"
	CategoryVegetable FoodCategory = "vegetable"
	CategoryFruit     FoodCategory = "fruit"
	CategoryFat       FoodCategory = "fat"
	CategoryDairy     FoodCategory = "dairy"
	CategoryGrain     FoodCategory = "grain"
)

// FoodCategories lists every known category.
var FoodCategories = []FoodCategory{
	CategoryProtein, CategoryCarb, CategoryVegetable, CategoryFruit,
	CategoryFat, CategoryDairy, CategoryGrain,
}

// Valid reports whether c is a known category.
func (c FoodCategory) Valid() bool {
	for _, k := range FoodCategories {
		if c == k {
			return true
		}
	}
	return false
}

// Allergen is an allergen class a user can declare.
type Allergen string

// Declarable allergens.
const (
	AllergenPeanuts Allergen = "peanuts"
	AllergenLactose Allergen = "lactose"
	AllergenSoy     Allergen = "soy"
	AllergenSeafood Allergen = "seafood"
)

// Allergens lists every known allergen in bit order.
var Allergens = []Allergen{AllergenPeanuts, AllergenLactose, AllergenSoy, AllergenSeafood}

// ParseAllergen converts a string into an Allergen.
func ParseAllergen(s string) (Allergen, error) {
	a := Allergen(strings.ToLower(strings.TrimSpace(s)))
	if a.bit() == 0 {
		return "", fmt.Errorf("%w: unknown allergen %q", ErrInvalidInput, s)
	}
	return a, nil
}

func (a Allergen) bit() AllergenSet {
	for i, k := range Allergens {
		if a == k {
			return 1 << i
		}
	}
	return 0
}

// AllergenSet is a set of allergens. The zero value is empty.
type AllergenSet uint8

// NewAllergenSet builds a set from the given allergens. Unknown values are ignored.
func NewAllergenSet(as ...Allergen) AllergenSet {
	var s AllergenSet
	for _, a := range as {
		s |= a.bit()
	}
	return s
}

// Has reports whether a is in the set.
func (s AllergenSet) Has(a Allergen) bool {
	b := a.bit()
	return b != 0 && s&b == b
}

// Union returns the allergens in s or o.
func (s AllergenSet) Union(o AllergenSet) AllergenSet { return s | o }

// Intersect returns the allergens in both s and o.
func (s AllergenSet) Intersect(o AllergenSet) AllergenSet { return s & o }

// Empty reports whether the set has no members.
func (s AllergenSet) Empty() bool { return s == 0 }

// List returns the members in canonical order.
func (s AllergenSet) List() []Allergen {
	out := make([]Allergen, 0, len(Allergens))
	for _, a := range Allergens {
		if s.Has(a) {
			out = append(out, a)
		}
	}
	return out
}

// MarshalJSON encodes the set as an array of allergen names.
func (s AllergenSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.List())
}

// UnmarshalJSON decodes an array of allergen names.
func (s *AllergenSet) UnmarshalJSON(b []byte) error {
	var names []string
	if err := json.Unmarshal(b, &names); err != nil {
		return err
	}
	set, err := ParseAllergenSet(names)
	if err != nil {
		return err
	}
	*s = set
	return nil
}

// ParseAllergenSet converts names into a set, failing on the first unknown name.
func ParseAllergenSet(names []string) (AllergenSet, error) {
	var s AllergenSet
	for _, n := range names {
		a, err := ParseAllergen(n)
		if err != nil {
			return 0, err
		}
		s |= a.bit()
	}
	return s, nil
}

// Food is a catalog entry with a per-100g nutrient profile.
type Food struct {
	ID             int64           `json:"id"`
	Name           string          `json:"name"`
	NormalizedName string          `json:"normalizedName"`
	Category       FoodCategory    `json:"category"`
	Nutrients      NutrientProfile `json:"nutrients"`
	CreatedAt      time.Time       `json:"createdAt"`
}

// NormalizeName produces the unique lookup key for a food name.
func NormalizeName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

// FoodRepository is the port for food persistence.
type FoodRepository interface {
	CreateFood(ctx context.Context, f Food) (*Food, error)
	GetFood(ctx context.Context, id int64) (*Food, error)
	GetFoodByName(ctx context.Context, normalizedName string) (*Food, error)
	// ListFoods returns all foods, or only those in category when it is non-empty.
	ListFoods(ctx context.Context, category FoodCategory) ([]Food, error)
	// DeleteFood fails with ErrReferentialConflict while any ingredient use or
	// replacement record references the food.
	DeleteFood(ctx context.Context, id int64) error
}

// SortFoods orders foods by ID.
func SortFoods(fs []Food) {
	sort.Slice(fs, func(i, j int) bool { return fs[i].ID < fs[j].ID })
}
