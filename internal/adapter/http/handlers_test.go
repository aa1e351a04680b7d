package adapthttp_test

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strconv"
	"testing"

	adapthttp "nutriplan/internal/adapter/http"
	"nutriplan/internal/adapter/memory"
	"nutriplan/internal/app"
	"nutriplan/internal/nutrition"
)

// ---------------------------------------------------------------------------
// Test-server helpers
// ---------------------------------------------------------------------------

func newServices(db *memory.DB) adapthttp.Services {
	table := nutrition.DefaultAllergenTable()
	composer := nutrition.NewComposer(table)
	return adapthttp.Services{
		Foods:         app.NewFoodService(db, table, nil),
		Recipes:       app.NewRecipeService(db, db, db, db, composer, nil),
		Substitutions: app.NewSubstitutionService(db, db, db, db, composer.Resolver(), nil),
		Plans:         app.NewPlanService(db, db, db, composer, nil),
		Users:         app.NewUserService(db),
		Auth:          app.NewAuthService(db, db.NewSessionRepo(), 0),
	}
}

// newTestServer starts a server with auth disabled, acting as a fresh user
// named username in db.
func newTestServer(t *testing.T, db *memory.DB, username string) *httptest.Server {
	t.Helper()

	user, err := db.Create(context.Background(), username, "")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	srv := adapthttp.New(newServices(db)).WithoutAuth(user)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func do(t *testing.T, client *http.Client, method, url string, body any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() }) //nolint:errcheck
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
	return m
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		var body bytes.Buffer
		_, _ = body.ReadFrom(resp.Body)
		t.Fatalf("%s %s: expected %d, got %d: %s", resp.Request.Method, resp.Request.URL.Path, want, resp.StatusCode, body.String())
	}
}

func createFood(t *testing.T, base, name, category string, kcal float64) int64 {
	t.Helper()
	resp := do(t, nil, http.MethodPost, base+"/api/foods", map[string]any{
		"name":      name,
		"category":  category,
		"nutrients": map[string]any{"calories": kcal, "proteinG": 10, "healthScore": 50},
	})
	expectStatus(t, resp, http.StatusCreated)
	return int64(decodeBody(t, resp)["id"].(float64))
}

func createRecipe(t *testing.T, base, name string, ingredients ...map[string]any) map[string]any {
	t.Helper()
	resp := do(t, nil, http.MethodPost, base+"/api/recipes", map[string]any{
		"name":        name,
		"portions":    2,
		"ingredients": ingredients,
	})
	expectStatus(t, resp, http.StatusCreated)
	return decodeBody(t, resp)
}

func ing(foodID int64, grams float64) map[string]any {
	return map[string]any{"foodId": foodID, "quantityG": grams}
}

func idOf(m map[string]any) int64 { return int64(m["id"].(float64)) }

func itoa(n int64) string { return strconv.FormatInt(n, 10) }

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t, memory.New(), "alice")

	resp := do(t, nil, http.MethodGet, ts.URL+"/api/health", nil)
	expectStatus(t, resp, http.StatusOK)

	body := decodeBody(t, resp)
	if body["ok"] != true {
		t.Fatalf("expected ok=true, got %v", body["ok"])
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Fatal("expected X-Request-ID header")
	}
	if resp.Header.Get("Cache-Control") != "no-store" {
		t.Fatalf("expected no-store, got %q", resp.Header.Get("Cache-Control"))
	}
}

func TestFoodsCatalog(t *testing.T) {
	ts := newTestServer(t, memory.New(), "alice")

	chicken := createFood(t, ts.URL, "Chicken Breast", "protein", 165)
	createFood(t, ts.URL, "Whole Milk", "dairy", 61)
	createFood(t, ts.URL, "Butter", "fat", 717)

	t.Run("duplicate name", func(t *testing.T) {
		resp := do(t, nil, http.MethodPost, ts.URL+"/api/foods", map[string]any{
			"name": "  chicken   BREAST ", "category": "protein",
		})
		expectStatus(t, resp, http.StatusConflict)
	})

	t.Run("unknown category", func(t *testing.T) {
		resp := do(t, nil, http.MethodPost, ts.URL+"/api/foods", map[string]any{
			"name": "Rock", "category": "mineral",
		})
		expectStatus(t, resp, http.StatusBadRequest)
	})

	t.Run("missing name fails validation", func(t *testing.T) {
		resp := do(t, nil, http.MethodPost, ts.URL+"/api/foods", map[string]any{"category": "protein"})
		expectStatus(t, resp, http.StatusBadRequest)
	})

	t.Run("unknown field", func(t *testing.T) {
		resp := do(t, nil, http.MethodPost, ts.URL+"/api/foods", map[string]any{
			"name": "Egg", "category": "protein", "colour": "white",
		})
		expectStatus(t, resp, http.StatusBadRequest)
	})

	t.Run("get by id", func(t *testing.T) {
		resp := do(t, nil, http.MethodGet, ts.URL+"/api/foods/"+itoa(chicken), nil)
		expectStatus(t, resp, http.StatusOK)
		if got := decodeBody(t, resp)["normalizedName"]; got != "chicken breast" {
			t.Fatalf("normalizedName = %v", got)
		}
	})

	t.Run("missing id", func(t *testing.T) {
		resp := do(t, nil, http.MethodGet, ts.URL+"/api/foods/999", nil)
		expectStatus(t, resp, http.StatusNotFound)
	})

	tests := []struct {
		name  string
		query string
		want  int
	}{
		{"all", "", 3},
		{"by category", "?category=dairy", 1},
		{"by allergen", "?allergen=lactose", 2},
		{"by name", "?name=whole%20milk", 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp := do(t, nil, http.MethodGet, ts.URL+"/api/foods"+tc.query, nil)
			expectStatus(t, resp, http.StatusOK)
			items := decodeBody(t, resp)["items"].([]any)
			if len(items) != tc.want {
				t.Fatalf("expected %d foods, got %d", tc.want, len(items))
			}
		})
	}

	t.Run("bad allergen", func(t *testing.T) {
		resp := do(t, nil, http.MethodGet, ts.URL+"/api/foods?allergen=gluten", nil)
		expectStatus(t, resp, http.StatusBadRequest)
	})
}

func TestRecipeTotalFollowsIngredientEdits(t *testing.T) {
	ts := newTestServer(t, memory.New(), "alice")

	chicken := createFood(t, ts.URL, "Chicken", "protein", 165)
	rice := createFood(t, ts.URL, "Rice", "grain", 130)

	recipe := createRecipe(t, ts.URL, "Chicken and rice", ing(chicken, 200), ing(rice, 150))
	if got := recipe["totalCalories"].(float64); got != 525 {
		t.Fatalf("totalCalories = %v, want 525", got)
	}
	base := ts.URL + "/api/recipes/" + itoa(idOf(recipe))

	uses := recipe["ingredients"].([]any)
	riceUse := int64(uses[1].(map[string]any)["id"].(float64))

	resp := do(t, nil, http.MethodPut, base+"/ingredients/"+itoa(riceUse), map[string]any{"quantityG": 300})
	expectStatus(t, resp, http.StatusOK)
	if got := decodeBody(t, resp)["totalCalories"].(float64); got != 720 {
		t.Fatalf("after update totalCalories = %v, want 720", got)
	}

	resp = do(t, nil, http.MethodPut, base+"/ingredients/"+itoa(riceUse), map[string]any{"quantityG": 0})
	expectStatus(t, resp, http.StatusBadRequest)

	resp = do(t, nil, http.MethodDelete, base+"/ingredients/"+itoa(riceUse), nil)
	expectStatus(t, resp, http.StatusOK)
	if got := decodeBody(t, resp)["totalCalories"].(float64); got != 330 {
		t.Fatalf("after remove totalCalories = %v, want 330", got)
	}

	resp = do(t, nil, http.MethodPost, base+"/ingredients", ing(rice, 100))
	expectStatus(t, resp, http.StatusCreated)

	resp = do(t, nil, http.MethodGet, base, nil)
	expectStatus(t, resp, http.StatusOK)
	if got := decodeBody(t, resp)["totalCalories"].(float64); got != 460 {
		t.Fatalf("after add totalCalories = %v, want 460", got)
	}

	resp = do(t, nil, http.MethodGet, base+"/nutrition", nil)
	expectStatus(t, resp, http.StatusOK)
	body := decodeBody(t, resp)
	perPortion := body["perPortion"].(map[string]any)
	if got := perPortion["calories"].(float64); got != 230 {
		t.Fatalf("per-portion calories = %v, want 230", got)
	}

	resp = do(t, nil, http.MethodPost, ts.URL+"/api/recipes", map[string]any{
		"name": "Broken", "ingredients": []any{ing(chicken, -5)},
	})
	expectStatus(t, resp, http.StatusBadRequest)
}

func TestSafeNutritionAndSubstitution(t *testing.T) {
	ts := newTestServer(t, memory.New(), "alice")

	milk := createFood(t, ts.URL, "Whole Milk", "dairy", 61)
	oats := createFood(t, ts.URL, "Oat Milk", "grain", 48)
	recipe := createRecipe(t, ts.URL, "Porridge", ing(milk, 200))
	base := ts.URL + "/api/recipes/" + itoa(idOf(recipe))
	useID := int64(recipe["ingredients"].([]any)[0].(map[string]any)["id"].(float64))

	resp := do(t, nil, http.MethodPut, ts.URL+"/api/me", map[string]any{
		"goal": "maintenance", "allergens": []string{"lactose"},
	})
	expectStatus(t, resp, http.StatusOK)

	resp = do(t, nil, http.MethodGet, base+"/nutrition?safe=true", nil)
	expectStatus(t, resp, http.StatusUnprocessableEntity)
	body := decodeBody(t, resp)
	if body["foodName"] != "Whole Milk" {
		t.Fatalf("expected failing ingredient Whole Milk, got %v", body["foodName"])
	}
	if int64(body["useId"].(float64)) != useID {
		t.Fatalf("useId = %v, want %d", body["useId"], useID)
	}

	resp = do(t, nil, http.MethodGet, base+"/ingredients/"+itoa(useID)+"/substitution", nil)
	expectStatus(t, resp, http.StatusOK)
	if got := decodeBody(t, resp)["outcome"]; got != "no_admissible_candidate" {
		t.Fatalf("outcome = %v", got)
	}

	resp = do(t, nil, http.MethodPost, ts.URL+"/api/replacements", map[string]any{
		"originalFoodId":    milk,
		"replacementFoodId": oats,
		"quantityG":         200,
		"similarityScore":   0.8,
		"justification":     "lactose free",
	})
	expectStatus(t, resp, http.StatusCreated)
	if got := decodeBody(t, resp)["reason"]; got != "allergen" {
		t.Fatalf("reason = %v, want allergen default", got)
	}

	resp = do(t, nil, http.MethodGet, base+"/ingredients/"+itoa(useID)+"/replacements", nil)
	expectStatus(t, resp, http.StatusOK)
	if n := len(decodeBody(t, resp)["items"].([]any)); n != 1 {
		t.Fatalf("expected 1 candidate, got %d", n)
	}

	resp = do(t, nil, http.MethodGet, base+"/nutrition?safe=true", nil)
	expectStatus(t, resp, http.StatusOK)
	body = decodeBody(t, resp)
	// Oat milk is swapped in at caloric parity, so the energy is unchanged.
	totals := body["totals"].(map[string]any)
	if got := totals["calories"].(float64); math.Abs(got-122) > 1e-6 {
		t.Fatalf("safe calories = %v, want 122", got)
	}
	if got := totals["massG"].(float64); math.Abs(got-200*61.0/48) > 1e-6 {
		t.Fatalf("safe mass = %v, want %v", got, 200*61.0/48)
	}

	resp = do(t, nil, http.MethodGet, base+"/ingredients/"+itoa(useID)+"/substitution", nil)
	expectStatus(t, resp, http.StatusOK)
	if got := decodeBody(t, resp)["outcome"]; got != "substituted" {
		t.Fatalf("outcome = %v", got)
	}

	// The stored recipe is unchanged by a safe read.
	resp = do(t, nil, http.MethodGet, base, nil)
	expectStatus(t, resp, http.StatusOK)
	if got := decodeBody(t, resp)["totalCalories"].(float64); got != 122 {
		t.Fatalf("stored totalCalories = %v, want 122", got)
	}

	resp = do(t, nil, http.MethodPost, ts.URL+"/api/replacements", map[string]any{
		"originalFoodId": milk, "replacementFoodId": milk, "quantityG": 100, "similarityScore": 1,
	})
	expectStatus(t, resp, http.StatusBadRequest)
}

func TestPlanProgress(t *testing.T) {
	db := memory.New()
	ts := newTestServer(t, db, "alice")
	other := newTestServer(t, db, "bob")

	chicken := createFood(t, ts.URL, "Chicken", "protein", 165)
	rice := createFood(t, ts.URL, "Rice", "grain", 130)
	recipe := createRecipe(t, ts.URL, "Chicken and rice", ing(chicken, 200), ing(rice, 150))

	resp := do(t, nil, http.MethodPost, ts.URL+"/api/plans", map[string]any{
		"name": "Week 1", "startDay": "2026-03-02", "endDay": "2026-03-08", "calorieGoal": 2000,
	})
	expectStatus(t, resp, http.StatusCreated)
	planID := idOf(decodeBody(t, resp))
	planURL := ts.URL + "/api/plans/" + itoa(planID)

	addMeal := func(day string) int64 {
		resp := do(t, nil, http.MethodPost, planURL+"/meals", map[string]any{"type": "lunch", "day": day})
		expectStatus(t, resp, http.StatusCreated)
		mealID := idOf(decodeBody(t, resp))
		resp = do(t, nil, http.MethodPost, ts.URL+"/api/meals/"+itoa(mealID)+"/recipes", map[string]any{"recipeId": idOf(recipe)})
		expectStatus(t, resp, http.StatusCreated)
		return mealID
	}
	mealID := addMeal("2026-03-03")
	addMeal("2026-04-01")

	resp = do(t, nil, http.MethodPost, ts.URL+"/api/meals/"+itoa(mealID)+"/recipes", map[string]any{"recipeId": idOf(recipe)})
	expectStatus(t, resp, http.StatusConflict)

	resp = do(t, nil, http.MethodGet, planURL+"/progress", nil)
	expectStatus(t, resp, http.StatusOK)
	body := decodeBody(t, resp)
	if got := body["consumedCalories"].(float64); got != 1050 {
		t.Fatalf("consumedCalories = %v, want 1050", got)
	}
	if body["status"] != "under" {
		t.Fatalf("status = %v, want under", body["status"])
	}

	resp = do(t, nil, http.MethodGet, planURL+"/progress?withinDates=true", nil)
	expectStatus(t, resp, http.StatusOK)
	body = decodeBody(t, resp)
	if got := body["consumedCalories"].(float64); got != 525 {
		t.Fatalf("withinDates consumedCalories = %v, want 525", got)
	}
	if got := body["excludedMeals"].(float64); got != 1 {
		t.Fatalf("excludedMeals = %v, want 1", got)
	}

	resp = do(t, nil, http.MethodGet, planURL+"/meals", nil)
	expectStatus(t, resp, http.StatusOK)
	if n := len(decodeBody(t, resp)["items"].([]any)); n != 2 {
		t.Fatalf("expected 2 meals, got %d", n)
	}

	t.Run("recipe in a meal cannot be deleted", func(t *testing.T) {
		resp := do(t, nil, http.MethodDelete, ts.URL+"/api/recipes/"+itoa(idOf(recipe)), nil)
		expectStatus(t, resp, http.StatusConflict)
	})

	t.Run("plans are private", func(t *testing.T) {
		resp := do(t, nil, http.MethodGet, other.URL+"/api/plans/"+itoa(planID), nil)
		expectStatus(t, resp, http.StatusNotFound)

		resp = do(t, nil, http.MethodGet, other.URL+"/api/plans", nil)
		expectStatus(t, resp, http.StatusOK)
		if n := len(decodeBody(t, resp)["items"].([]any)); n != 0 {
			t.Fatalf("expected no plans for bob, got %d", n)
		}
	})

	t.Run("end before start", func(t *testing.T) {
		resp := do(t, nil, http.MethodPost, ts.URL+"/api/plans", map[string]any{
			"name": "Bad", "startDay": "2026-03-08", "endDay": "2026-03-02", "calorieGoal": 2000,
		})
		expectStatus(t, resp, http.StatusBadRequest)
	})
}

func TestAuthFlow(t *testing.T) {
	db := memory.New()
	ts := httptest.NewServer(adapthttp.New(newServices(db)).Handler())
	defer ts.Close()

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatal(err)
	}
	client := &http.Client{Jar: jar}

	resp := do(t, client, http.MethodGet, ts.URL+"/api/me", nil)
	expectStatus(t, resp, http.StatusUnauthorized)

	resp = do(t, client, http.MethodGet, ts.URL+"/api/config", nil)
	expectStatus(t, resp, http.StatusOK)
	if got := decodeBody(t, resp)["sso_enabled"]; got != false {
		t.Fatalf("sso_enabled = %v", got)
	}

	resp = do(t, client, http.MethodPost, ts.URL+"/api/setup", map[string]any{"username": "alice", "password": "s3cret"})
	expectStatus(t, resp, http.StatusCreated)

	resp = do(t, client, http.MethodPost, ts.URL+"/api/setup", map[string]any{"username": "mallory", "password": "x"})
	expectStatus(t, resp, http.StatusConflict)

	resp = do(t, client, http.MethodPost, ts.URL+"/api/login", map[string]any{"username": "alice", "password": "wrong"})
	expectStatus(t, resp, http.StatusUnauthorized)

	resp = do(t, client, http.MethodPost, ts.URL+"/api/login", map[string]any{"username": "alice", "password": "s3cret"})
	expectStatus(t, resp, http.StatusOK)

	resp = do(t, client, http.MethodGet, ts.URL+"/api/me", nil)
	expectStatus(t, resp, http.StatusOK)
	body := decodeBody(t, resp)
	if body["username"] != "alice" || body["goal"] != "maintenance" {
		t.Fatalf("unexpected profile %v", body)
	}

	resp = do(t, client, http.MethodPost, ts.URL+"/api/logout", nil)
	expectStatus(t, resp, http.StatusOK)

	resp = do(t, client, http.MethodGet, ts.URL+"/api/me", nil)
	expectStatus(t, resp, http.StatusUnauthorized)
}

func TestForwardAuthHeader(t *testing.T) {
	ts := httptest.NewServer(adapthttp.New(newServices(memory.New())).Handler())
	defer ts.Close()

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/me", nil)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Remote-User", "proxy-user")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	expectStatus(t, resp, http.StatusOK)
	if got := decodeBody(t, resp)["username"]; got != "proxy-user" {
		t.Fatalf("username = %v", got)
	}
}

func TestSSODisabled(t *testing.T) {
	ts := newTestServer(t, memory.New(), "alice")

	for _, path := range []string{"/api/sso/login", "/api/sso/callback"} {
		resp := do(t, nil, http.MethodGet, ts.URL+path, nil)
		expectStatus(t, resp, http.StatusNotFound)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	ts := newTestServer(t, memory.New(), "alice")

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodDelete, "/api/foods"},
		{http.MethodPut, "/api/recipes"},
		{http.MethodGet, "/api/login"},
		{http.MethodPost, "/api/plans/1/progress"},
		{http.MethodDelete, "/api/me"},
	}
	for _, tc := range tests {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			resp := do(t, nil, tc.method, ts.URL+tc.path, nil)
			expectStatus(t, resp, http.StatusMethodNotAllowed)
		})
	}
}

func TestBadPathID(t *testing.T) {
	ts := newTestServer(t, memory.New(), "alice")

	for _, path := range []string{"/api/foods/abc", "/api/recipes/0", "/api/plans/-3"} {
		resp := do(t, nil, http.MethodGet, ts.URL+path, nil)
		expectStatus(t, resp, http.StatusBadRequest)
	}
}
