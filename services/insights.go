package services

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"insightflow/api/logger"
	"insightflow/api/models"
)

const insightSystemPrompt = `You are an analytics assistant for an e-commerce dashboard. Analyze the metrics you are given and provide actionable insights. Be concise, specific and data-driven. Format your response as:

1. ANALYSIS: Brief analysis of the current state (2-3 sentences)
2. KEY FINDINGS: 2-3 bullet points of important observations
3. RECOMMENDATIONS: 2-3 specific, actionable steps to improve

Keep the total response under 250 words.`

const (
	generatedConfidence = 0.85
	fallbackConfidence  = 0.7
	genericConfidence   = 0.5
)

var questions = []models.Question{
	{ID: "j1", Category: "journey", Question: "What are the main drop-off points in the user journey?", Context: "Analyze drop-off points to identify where users are leaving the store"},
	{ID: "j2", Category: "journey", Question: "Which activities take the longest time?", Context: "Analyze time spent on activities to identify potential UX issues"},
	{ID: "j3", Category: "journey", Question: "What is causing user churn?", Context: "Analyze churn patterns to identify reasons users stop returning"},
	{ID: "j4", Category: "journey", Question: "How can I improve user engagement?", Context: "Provide recommendations to increase engagement based on journey data"},
	{ID: "c1", Category: "conversion", Question: "Why is my bounce rate high?", Context: "Analyze bounce rate factors and provide actionable improvements"},
	{ID: "c2", Category: "conversion", Question: "Where are users abandoning the conversion funnel?", Context: "Identify funnel drop-off points and suggest optimizations"},
	{ID: "c3", Category: "conversion", Question: "How can I increase conversion rates?", Context: "Provide data-driven recommendations to improve conversions"},
	{ID: "c4", Category: "conversion", Question: "What is the most effective conversion path?", Context: "Analyze user paths that lead to successful conversions"},
	{ID: "g1", Category: "general", Question: "Give me a summary of my analytics", Context: "Provide a comprehensive overview of all key metrics"},
	{ID: "g2", Category: "general", Question: "What should I prioritize to improve?", Context: "Identify the most impactful areas for improvement based on all data"},
}

type fallbackAnswer struct {
	answer          string
	recommendations []string
}

var fallbacks = map[string]fallbackAnswer{
	"j1": {
		answer: "The main drop-off points tend to be pages with complex forms or unclear navigation. Checkout and registration pages usually show the highest abandonment.",
		recommendations: []string{
			"Simplify form fields and reduce required inputs",
			"Add progress indicators for multi-step processes",
			"Implement exit-intent prompts with helpful offers",
		},
	},
	"j2": {
		answer: "The longest activities usually involve decisions or data entry. Search and comparison features often have extended engagement times.",
		recommendations: []string{
			"Add autocomplete and smart suggestions",
			"Provide comparison tools to speed up decisions",
			"Consider progressive disclosure for complex features",
		},
	},
	"c1": {
		answer: "High bounce rates usually come from slow page loads, unclear value propositions or a mismatch between marketing and the landing page.",
		recommendations: []string{
			"Optimize page load times to under 3 seconds",
			"Ensure marketing messages align with landing page content",
			"Add clear calls-to-action above the fold",
		},
	},
	"c2": {
		answer: "Users commonly abandon the funnel at the cart and payment stages, which points to checkout friction or costs that appear late.",
		recommendations: []string{
			"Show total costs early including shipping",
			"Offer guest checkout options",
			"Provide multiple payment methods",
		},
	},
	"g1": {
		answer: "Engagement looks healthy with room to improve conversion. Focus on reducing checkout friction and improving first-visit onboarding.",
		recommendations: []string{
			"Prioritize checkout flow optimization",
			"Run A/B tests on landing pages",
			"Set up automated emails for cart abandonment",
		},
	},
}

var genericFallback = fallbackAnswer{
	answer: "Analysis is not available right now. Focus on reducing friction in the user journey and optimizing conversion touchpoints.",
	recommendations: []string{
		"Review your analytics dashboard for specific insights",
		"Conduct user testing to identify pain points",
		"Implement incremental improvements and measure results",
	},
}

// InsightService answers the predefined dashboard questions. When no
// generator is configured or generation fails it returns a canned answer.
type InsightService struct {
	metrics   *MetricsService
	generator TextGenerator
	log       *logger.Logger
}

func NewInsightService(metrics *MetricsService, generator TextGenerator, log *logger.Logger) *InsightService {
	return &InsightService{
		metrics:   metrics,
		generator: generator,
		log:       log.With("service", "InsightService"),
	}
}

func (s *InsightService) Questions() []models.Question {
	out := make([]models.Question, len(questions))
	copy(out, questions)
	return out
}

func findQuestion(id string) (models.Question, bool) {
	for _, q := range questions {
		if q.ID == id {
			return q, true
		}
	}
	return models.Question{}, false
}

func (s *InsightService) Insight(ctx context.Context, questionID string, metricsData map[string]any) (*models.Insight, error) {
	question, ok := findQuestion(questionID)
	if !ok {
		return nil, validationError("invalid question id %q", questionID)
	}
	if s.generator == nil {
		return fallbackInsight(question), nil
	}

	answer, err := s.generate(ctx, question, metricsData)
	if err != nil {
		s.log.Warn("Insight generation failed, using fallback", "question_id", question.ID, "error", err)
		return fallbackInsight(question), nil
	}
	if strings.TrimSpace(answer) == "" {
		answer = "Unable to generate insight at this time."
	}
	return &models.Insight{
		Question:        question.Question,
		Answer:          answer,
		Recommendations: extractRecommendations(answer),
		Confidence:      generatedConfidence,
	}, nil
}

func (s *InsightService) generate(ctx context.Context, question models.Question, metricsData map[string]any) (string, error) {
	data := metricsData
	if data == nil {
		var err error
		if data, err = s.collectMetrics(ctx, question.Category); err != nil {
			return "", err
		}
	}

	payload, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode metrics: %w", err)
	}
	userPrompt := fmt.Sprintf("Question: %s\n\nContext: %s\n\nCurrent Metrics Data:\n%s\n\nPlease analyze this data and provide insights.",
		question.Question, question.Context, payload)

	return s.generator.GenerateText(ctx, insightSystemPrompt, userPrompt)
}

func (s *InsightService) collectMetrics(ctx context.Context, category string) (map[string]any, error) {
	data := map[string]any{}
	if category == "journey" || category == "general" {
		journey, _, err := s.metrics.JourneyMetrics(ctx)
		if err != nil {
			return nil, err
		}
		data["journey"] = journey
	}
	if category == "conversion" || category == "general" {
		conversion, _, err := s.metrics.ConversionMetrics(ctx)
		if err != nil {
			return nil, err
		}
		data["conversion"] = conversion
	}
	return data, nil
}

func fallbackInsight(q models.Question) *models.Insight {
	fb, ok := fallbacks[q.ID]
	confidence := fallbackConfidence
	if !ok {
		fb = genericFallback
		confidence = genericConfidence
	}
	recs := make([]string, len(fb.recommendations))
	copy(recs, fb.recommendations)
	return &models.Insight{
		Question:        q.Question,
		Answer:          fb.answer,
		Recommendations: recs,
		Confidence:      confidence,
	}
}

var (
	listItem   = regexp.MustCompile(`^(-|•|\d+\.)`)
	listPrefix = regexp.MustCompile(`^(-|•|\d+\.)\s*`)
)

// extractRecommendations picks list items that follow the first line
// mentioning recommendations. At most three items longer than ten
// characters are kept.
func extractRecommendations(answer string) []string {
	recs := []string{}
	inSection := false
	for _, line := range strings.Split(answer, "\n") {
		if strings.Contains(strings.ToLower(line), "recommendation") {
			inSection = true
			continue
		}
		if !inSection || !listItem.MatchString(line) {
			continue
		}
		item := strings.TrimSpace(listPrefix.ReplaceAllString(line, ""))
		if len([]rune(item)) > 10 {
			recs = append(recs, item)
		}
		if len(recs) == 3 {
			break
		}
	}
	return recs
}
