package models

type JourneyMetrics struct {
	TotalSessions      int64               `json:"totalSessions"`
	AvgSessionDuration int64               `json:"avgSessionDuration"`
	ChurnRate          int64               `json:"churnRate"`
	DropOffPoints      []DropOffPoint      `json:"dropOffPoints"`
	ActivityBreakdown  []ActivityBreakdown `json:"activityBreakdown"`
	TimePerActivity    []TimePerActivity   `json:"timePerActivity"`
}

type DropOffPoint struct {
	Page         string  `json:"page"`
	DropOffCount int64   `json:"dropOffCount"`
	DropOffRate  float64 `json:"dropOffRate"`
}

type ActivityBreakdown struct {
	Activity   string  `json:"activity"`
	Count      int64   `json:"count"`
	Percentage float64 `json:"percentage"`
}

type TimePerActivity struct {
	Activity    string  `json:"activity"`
	AvgDuration float64 `json:"avgDuration"`
	TotalTime   int64   `json:"totalTime"`
}

type ConversionMetrics struct {
	BounceRate            int64             `json:"bounceRate"`
	OverallConversionRate int64             `json:"overallConversionRate"`
	FunnelSteps           []FunnelStep      `json:"funnelSteps"`
	DailyConversions      []DailyConversion `json:"dailyConversions"`
	RevenueMetrics        RevenueMetrics    `json:"revenueMetrics"`
}

type FunnelStep struct {
	Step        string  `json:"step"`
	StepOrder   int     `json:"stepOrder"`
	Entered     int64   `json:"entered"`
	Completed   int64   `json:"completed"`
	DropOffRate float64 `json:"dropOffRate"`
}

type DailyConversion struct {
	Date        string `json:"date"`
	Visitors    int64  `json:"visitors"`
	Conversions int64  `json:"conversions"`
	Rate        int64  `json:"rate"`
}

type RevenueMetrics struct {
	TotalRevenue    float64 `json:"totalRevenue"`
	AvgOrderValue   int64   `json:"avgOrderValue"`
	ConversionValue float64 `json:"conversionValue"`
}

type SessionDay struct {
	Date     string `json:"date"`
	Sessions int64  `json:"sessions"`
	Churned  int64  `json:"churned"`
}

type PageTransition struct {
	FromPage    string `json:"fromPage"`
	ToPage      string `json:"toPage"`
	Transitions int64  `json:"transitions"`
}

type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

type Recommendation struct {
	ID          string   `json:"id"`
	Category    string   `json:"category"`
	Priority    Priority `json:"priority"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Metric      string   `json:"metric"`
	Value       float64  `json:"value"`
}

type RecommendationSummary struct {
	CriticalCount        int `json:"criticalCount"`
	HighCount            int `json:"highCount"`
	TotalRecommendations int `json:"totalRecommendations"`
	HealthScore          int `json:"healthScore"`
}

type RecommendationsReport struct {
	Recommendations []Recommendation      `json:"recommendations"`
	Summary         RecommendationSummary `json:"summary"`
	GeneratedAt     string                `json:"generatedAt"`
}

type Question struct {
	ID       string `json:"id"`
	Category string `json:"category"`
	Question string `json:"question"`
	Context  string `json:"-"`
}

type Insight struct {
	Question        string   `json:"question"`
	Answer          string   `json:"answer"`
	Recommendations []string `json:"recommendations"`
	Confidence      float64  `json:"confidence"`
}
