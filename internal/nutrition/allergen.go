package nutrition

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"nutriplan/internal/domain"
)

// AllergenTable is the fixed association between foods and allergen classes.
// A food carries the tags of its category plus any listed for its normalized name.
type AllergenTable struct {
	categories map[domain.FoodCategory]domain.AllergenSet
	foods      map[string]domain.AllergenSet
}

// NewAllergenTable builds a table from category and food-name associations.
// Food names are normalized with domain.NormalizeName.
func NewAllergenTable(categories map[domain.FoodCategory]domain.AllergenSet, foods map[string]domain.AllergenSet) *AllergenTable {
	t := &AllergenTable{
		categories: make(map[domain.FoodCategory]domain.AllergenSet, len(categories)),
		foods:      make(map[string]domain.AllergenSet, len(foods)),
	}
	for c, s := range categories {
		t.categories[c] = s
	}
	for name, s := range foods {
		key := domain.NormalizeName(name)
		t.foods[key] = t.foods[key].Union(s)
	}
	return t
}

// DefaultAllergenTable returns the built-in associations.
func DefaultAllergenTable() *AllergenTable {
	seafood := domain.NewAllergenSet(domain.AllergenSeafood)
	peanuts := domain.NewAllergenSet(domain.AllergenPeanuts)
	soy := domain.NewAllergenSet(domain.AllergenSoy)
	lactose := domain.NewAllergenSet(domain.AllergenLactose)

	foods := map[string]domain.AllergenSet{}
	for _, n := range []string{"salmon", "tuna", "cod", "shrimp", "prawns", "crab", "lobster", "mussels", "oysters", "scallops", "sardines", "anchovies", "tilapia", "mackerel"} {
		foods[n] = seafood
	}
	for _, n := range []string{"peanuts", "peanut butter", "peanut oil", "satay sauce"} {
		foods[n] = peanuts
	}
	for _, n := range []string{"tofu", "tempeh", "edamame", "soy milk", "soy sauce", "soybeans", "miso"} {
		foods[n] = soy
	}
	for _, n := range []string{"butter", "ghee", "whey protein", "cream"} {
		foods[n] = lactose
	}

	return NewAllergenTable(map[domain.FoodCategory]domain.AllergenSet{
		domain.CategoryDairy: lactose,
	}, foods)
}

type allergenTableFile struct {
	Categories map[string][]string `yaml:"categories"`
	Foods      map[string][]string `yaml:"foods"`
}

// LoadAllergenTable reads a table from YAML of the form
//
//	categories:
//	  dairy: [lactose]
//	foods:
//	  salmon: [seafood]
func LoadAllergenTable(r io.Reader) (*AllergenTable, error) {
	var f allergenTableFile
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("decode allergen table: %w", err)
	}

	cats := make(map[domain.FoodCategory]domain.AllergenSet, len(f.Categories))
	for name, tags := range f.Categories {
		c := domain.FoodCategory(name)
		if !c.Valid() {
			return nil, fmt.Errorf("allergen table: %w: unknown category %q", domain.ErrInvalidInput, name)
		}
		set, err := domain.ParseAllergenSet(tags)
		if err != nil {
			return nil, fmt.Errorf("allergen table: category %s: %w", name, err)
		}
		cats[c] = set
	}

	foods := make(map[string]domain.AllergenSet, len(f.Foods))
	for name, tags := range f.Foods {
		set, err := domain.ParseAllergenSet(tags)
		if err != nil {
			return nil, fmt.Errorf("allergen table: food %s: %w", name, err)
		}
		foods[name] = set
	}
	return NewAllergenTable(cats, foods), nil
}

// Tags returns the allergen classes associated with f.
func (t *AllergenTable) Tags(f domain.Food) domain.AllergenSet {
	key := f.NormalizedName
	if key == "" {
		key = domain.NormalizeName(f.Name)
	}
	return t.categories[f.Category].Union(t.foods[key])
}

// Conflicts returns the allergens f shares with the user's set.
func (t *AllergenTable) Conflicts(f domain.Food, user domain.AllergenSet) domain.AllergenSet {
	return t.Tags(f).Intersect(user)
}

// IsAdmissible reports whether f is safe for a user with the given allergens.
func (t *AllergenTable) IsAdmissible(f domain.Food, user domain.AllergenSet) bool {
	return t.Conflicts(f, user).Empty()
}
