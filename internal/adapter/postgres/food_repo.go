package postgres

import (
	"context"
	"fmt"
	"time"

	"nutriplan/internal/domain"
)

const nutrientColumns = "vitamin_c_mg, vitamin_b11_mg, sodium_mg, calcium_mg, iron_mg, carbs_g, fat_g, fiber_g, protein_g, sugar_g, calories, health_score"

const foodColumns = "id, name, normalized_name, category, " + nutrientColumns + ", created_at"

// foodColumnsAs prefixes every food column with alias.
func foodColumnsAs(alias string) string {
	return fmt.Sprintf("%[1]s.id, %[1]s.name, %[1]s.normalized_name, %[1]s.category, "+
		"%[1]s.vitamin_c_mg, %[1]s.vitamin_b11_mg, %[1]s.sodium_mg, %[1]s.calcium_mg, %[1]s.iron_mg, "+
		"%[1]s.carbs_g, %[1]s.fat_g, %[1]s.fiber_g, %[1]s.protein_g, %[1]s.sugar_g, %[1]s.calories, "+
		"%[1]s.health_score, %[1]s.created_at", alias)
}

// foodDest returns scan destinations matching foodColumns.
func foodDest(f *domain.Food) []any {
	n := &f.Nutrients
	return []any{
		&f.ID, &f.Name, &f.NormalizedName, &f.Category,
		&n.VitaminCMg, &n.VitaminB11Mg, &n.SodiumMg, &n.CalciumMg, &n.IronMg,
		&n.CarbsG, &n.FatG, &n.FiberG, &n.ProteinG, &n.SugarG, &n.Calories, &n.HealthScore,
		&f.CreatedAt,
	}
}

// CreateFood inserts a food.
func (d *DB) CreateFood(ctx context.Context, f domain.Food) (*domain.Food, error) {
	if f.NormalizedName == "" {
		f.NormalizedName = domain.NormalizeName(f.Name)
	}
	n := f.Nutrients
	var out domain.Food
	err := d.sql.QueryRowContext(ctx,
		"INSERT INTO foods (name, normalized_name, category, "+nutrientColumns+", created_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16) RETURNING "+foodColumns,
		f.Name, f.NormalizedName, string(f.Category),
		n.VitaminCMg, n.VitaminB11Mg, n.SodiumMg, n.CalciumMg, n.IronMg,
		n.CarbsG, n.FatG, n.FiberG, n.ProteinG, n.SugarG, n.Calories, n.HealthScore,
		time.Now().UTC(),
	).Scan(foodDest(&out)...)
	if err != nil {
		return nil, mapErr(err, "food "+f.NormalizedName)
	}
	return &out, nil
}

// GetFood retrieves a food by ID.
func (d *DB) GetFood(ctx context.Context, id int64) (*domain.Food, error) {
	var f domain.Food
	err := d.sql.QueryRowContext(ctx, "SELECT "+foodColumns+" FROM foods WHERE id = $1", id).Scan(foodDest(&f)...)
	if err != nil {
		return nil, mapErr(err, fmt.Sprintf("food %d", id))
	}
	return &f, nil
}

// GetFoodByName retrieves a food by normalized name.
func (d *DB) GetFoodByName(ctx context.Context, normalizedName string) (*domain.Food, error) {
	var f domain.Food
	err := d.sql.QueryRowContext(ctx, "SELECT "+foodColumns+" FROM foods WHERE normalized_name = $1", normalizedName).Scan(foodDest(&f)...)
	if err != nil {
		return nil, mapErr(err, "food "+normalizedName)
	}
	return &f, nil
}

// ListFoods lists foods ordered by ID, optionally restricted to one category.
func (d *DB) ListFoods(ctx context.Context, category domain.FoodCategory) ([]domain.Food, error) {
	rows, err := d.sql.QueryContext(ctx,
		"SELECT "+foodColumns+" FROM foods WHERE $1 = '' OR category = $1 ORDER BY id", string(category))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Food
	for rows.Next() {
		var f domain.Food
		if err := rows.Scan(foodDest(&f)...); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// DeleteFood deletes a food. Foreign keys refuse the delete while an
// ingredient use or replacement record references it.
func (d *DB) DeleteFood(ctx context.Context, id int64) error {
	res, err := d.sql.ExecContext(ctx, "DELETE FROM foods WHERE id = $1", id)
	if err != nil {
		return mapErr(err, fmt.Sprintf("food %d", id))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("food %d: %w", id, domain.ErrNotFound)
	}
	return nil
}
