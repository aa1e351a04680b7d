package app

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("nutriplan/app")

var (
	substitutionOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nutriplan_substitution_outcomes_total",
		Help: "Ingredient substitution resolutions by outcome",
	}, []string{"outcome"})

	recipeRecomputes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nutriplan_recipe_total_recomputes_total",
		Help: "Recipe calorie cache recomputations by triggering operation",
	}, []string{"operation"})

	unresolvableRecipes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nutriplan_unresolvable_allergen_total",
		Help: "Recipe computations refused because an ingredient could not be made allergen safe",
	})
)

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// endSpan records err on span, if any, and ends it.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func orDefault(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}
