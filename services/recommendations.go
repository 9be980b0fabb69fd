package services

import (
	"fmt"
	"math"
	"sort"
	"time"

	"insightflow/api/models"
)

var priorityRank = map[models.Priority]int{
	models.PriorityCritical: 0,
	models.PriorityHigh:     1,
	models.PriorityMedium:   2,
	models.PriorityLow:      3,
}

// HealthScore starts at 100 and subtracts capped penalties for churn,
// bounce, conversion shortfall below 5% and average funnel drop-off above
// 25%. The result is clamped to [0, 100].
func HealthScore(journey *models.JourneyMetrics, conversion *models.ConversionMetrics) int {
	score := 100.0

	score -= math.Min(float64(journey.ChurnRate), 30)
	score -= math.Min(float64(conversion.BounceRate)*0.5, 25)

	if rate := float64(conversion.OverallConversionRate); rate < 5 {
		score -= math.Min((5-rate)*5, 25)
	}
	if avg := averageFunnelDropOff(conversion.FunnelSteps); avg > 25 {
		score -= math.Min(avg-25, 20)
	}

	return int(math.Max(0, math.Min(100, math.Round(score))))
}

// averageFunnelDropOff averages over steps that saw traffic; empty steps
// have no meaningful rate.
func averageFunnelDropOff(steps []models.FunnelStep) float64 {
	var sum float64
	var n int
	for _, s := range steps {
		if s.Entered == 0 {
			continue
		}
		sum += s.DropOffRate
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// BuildRecommendations turns the two snapshots into a prioritised report.
// It has no side effects.
func BuildRecommendations(journey *models.JourneyMetrics, conversion *models.ConversionMetrics, now time.Time) models.RecommendationsReport {
	recs := make([]models.Recommendation, 0)
	recs = append(recs, journeyRecommendations(journey)...)
	recs = append(recs, conversionRecommendations(conversion)...)
	sort.SliceStable(recs, func(i, k int) bool {
		return priorityRank[recs[i].Priority] < priorityRank[recs[k].Priority]
	})

	summary := models.RecommendationSummary{
		TotalRecommendations: len(recs),
		HealthScore:          HealthScore(journey, conversion),
	}
	for _, r := range recs {
		switch r.Priority {
		case models.PriorityCritical:
			summary.CriticalCount++
		case models.PriorityHigh:
			summary.HighCount++
		}
	}

	return models.RecommendationsReport{
		Recommendations: recs,
		Summary:         summary,
		GeneratedAt:     now.UTC().Format(time.RFC3339),
	}
}

func journeyRecommendations(j *models.JourneyMetrics) []models.Recommendation {
	var recs []models.Recommendation

	switch churn := float64(j.ChurnRate); {
	case churn > 25:
		recs = append(recs, models.Recommendation{
			ID:          "churn-critical",
			Category:    "retention",
			Priority:    models.PriorityCritical,
			Title:       "Re-engage inactive customers",
			Description: fmt.Sprintf("%d%% of sessions belong to customers who have not returned. Start a win-back campaign aimed at lapsed buyers.", j.ChurnRate),
			Metric:      "churnRate",
			Value:       churn,
		})
	case churn > 15:
		recs = append(recs, models.Recommendation{
			ID:          "churn-elevated",
			Category:    "retention",
			Priority:    models.PriorityMedium,
			Title:       "Improve retention with loyalty perks",
			Description: "Churn is creeping up. Reward repeat visits so returning is worth it.",
			Metric:      "churnRate",
			Value:       churn,
		})
	}

	if j.TotalSessions > 0 {
		switch avg := float64(j.AvgSessionDuration); {
		case avg < 60:
			recs = append(recs, models.Recommendation{
				ID:          "sessions-short",
				Category:    "engagement",
				Priority:    models.PriorityHigh,
				Title:       "Visitors leave within a minute",
				Description: "Average sessions last under a minute. Check landing page load time and make the first screen answer why the visitor came.",
				Metric:      "avgSessionDuration",
				Value:       avg,
			})
		case avg < 300:
			recs = append(recs, models.Recommendation{
				ID:          "sessions-brief",
				Category:    "engagement",
				Priority:    models.PriorityMedium,
				Title:       "Keep shoppers engaged longer",
				Description: "Sessions are shorter than five minutes. Add related products and richer product stories to extend browsing.",
				Metric:      "avgSessionDuration",
				Value:       avg,
			})
		case avg > 600:
			recs = append(recs, models.Recommendation{
				ID:          "sessions-long",
				Category:    "engagement",
				Priority:    models.PriorityLow,
				Title:       "Capitalize on engaged browsers",
				Description: "Visitors browse for a long time. Offer bundles on product pages to turn browsing into larger orders.",
				Metric:      "avgSessionDuration",
				Value:       avg,
			})
		}
	}

	if len(j.DropOffPoints) > 0 {
		worst := j.DropOffPoints[0]
		priority := models.Priority("")
		switch {
		case worst.DropOffRate > 15:
			priority = models.PriorityHigh
		case worst.DropOffRate > 10:
			priority = models.PriorityMedium
		}
		if priority != "" {
			recs = append(recs, models.Recommendation{
				ID:          "dropoff-page",
				Category:    "journey",
				Priority:    priority,
				Title:       fmt.Sprintf("Reduce exits on %s", worst.Page),
				Description: fmt.Sprintf("%.2f%% of tracked activity ends on %s without a purchase. Review that page for friction.", worst.DropOffRate, worst.Page),
				Metric:      "dropOffRate",
				Value:       worst.DropOffRate,
			})
		}
	}

	return recs
}

func conversionRecommendations(c *models.ConversionMetrics) []models.Recommendation {
	var recs []models.Recommendation

	switch bounce := float64(c.BounceRate); {
	case bounce > 70:
		recs = append(recs, models.Recommendation{
			ID:          "bounce-critical",
			Category:    "conversion",
			Priority:    models.PriorityCritical,
			Title:       "Most visitors bounce after one step",
			Description: fmt.Sprintf("%d%% of users generate a single event. Align campaign messaging with the landing page and put a clear call to action above the fold.", c.BounceRate),
			Metric:      "bounceRate",
			Value:       bounce,
		})
	case bounce > 50:
		recs = append(recs, models.Recommendation{
			ID:          "bounce-high",
			Category:    "conversion",
			Priority:    models.PriorityHigh,
			Title:       "Lower the bounce rate",
			Description: fmt.Sprintf("%d%% of users bounce. Speed up the landing page and test a stronger headline.", c.BounceRate),
			Metric:      "bounceRate",
			Value:       bounce,
		})
	}

	switch rate := float64(c.OverallConversionRate); {
	case rate < 2:
		recs = append(recs, models.Recommendation{
			ID:          "conversion-critical",
			Category:    "conversion",
			Priority:    models.PriorityCritical,
			Title:       "Conversion is far below target",
			Description: fmt.Sprintf("Only %d%% of users purchase. Offer guest checkout and show total cost before the payment step.", c.OverallConversionRate),
			Metric:      "overallConversionRate",
			Value:       rate,
		})
	case rate < 5:
		recs = append(recs, models.Recommendation{
			ID:          "conversion-low",
			Category:    "conversion",
			Priority:    models.PriorityHigh,
			Title:       "Lift the conversion rate",
			Description: fmt.Sprintf("%d%% of users purchase. Add trust signals and more payment methods at checkout.", c.OverallConversionRate),
			Metric:      "overallConversionRate",
			Value:       rate,
		})
	}

	if step, ok := worstFunnelStep(c.FunnelSteps); ok && step.DropOffRate > 50 {
		recs = append(recs, models.Recommendation{
			ID:          "funnel-step",
			Category:    "funnel",
			Priority:    models.PriorityHigh,
			Title:       fmt.Sprintf("Fix the %s step", step.Step),
			Description: fmt.Sprintf("%.1f%% of users who reach %s do not complete it.", step.DropOffRate, step.Step),
			Metric:      "dropOffRate",
			Value:       step.DropOffRate,
		})
	} else if avg := averageFunnelDropOff(c.FunnelSteps); avg > 25 {
		recs = append(recs, models.Recommendation{
			ID:          "funnel-average",
			Category:    "funnel",
			Priority:    models.PriorityMedium,
			Title:       "Smooth the conversion funnel",
			Description: fmt.Sprintf("Funnel steps lose %.1f%% of users on average. Add progress indicators and trim required fields.", avg),
			Metric:      "avgFunnelDropOff",
			Value:       math.Round(avg*10) / 10,
		})
	}

	if c.RevenueMetrics.TotalRevenue > 0 && c.RevenueMetrics.AvgOrderValue < 50 {
		recs = append(recs, models.Recommendation{
			ID:          "order-value",
			Category:    "revenue",
			Priority:    models.PriorityLow,
			Title:       "Grow average order value",
			Description: "Orders are small. Show a free-shipping threshold and suggest add-ons in the cart.",
			Metric:      "avgOrderValue",
			Value:       float64(c.RevenueMetrics.AvgOrderValue),
		})
	}

	return recs
}

func worstFunnelStep(steps []models.FunnelStep) (models.FunnelStep, bool) {
	var worst models.FunnelStep
	found := false
	for _, s := range steps {
		if s.Entered == 0 {
			continue
		}
		if !found || s.DropOffRate > worst.DropOffRate {
			worst = s
			found = true
		}
	}
	return worst, found
}
