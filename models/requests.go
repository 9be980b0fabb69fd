package models

type StartSessionRequest struct {
	UserID         string `json:"userId"`
	DeviceType     string `json:"deviceType" binding:"omitempty,oneof=desktop mobile tablet"`
	Browser        string `json:"browser"`
	ReferrerSource string `json:"referrerSource"`
	UserAgent      string `json:"userAgent"`
}

type StartSessionResponse struct {
	SessionID string `json:"sessionId"`
	UserID    string `json:"userId"`
	StartedAt string `json:"startedAt"`
}

type EndSessionRequest struct {
	SessionID string `json:"sessionId" binding:"required"`
}

type RecordActivityRequest struct {
	SessionID       string       `json:"sessionId" binding:"required"`
	ActivityName    string       `json:"activityName" binding:"required"`
	ActivityType    ActivityType `json:"activityType" binding:"omitempty,oneof=page_view action event"`
	PagePath        string       `json:"pagePath" binding:"required"`
	DurationSeconds int          `json:"durationSeconds" binding:"min=0"`
	Metadata        Metadata     `json:"metadata"`
}

// UpdateDurationRequest uses a pointer so an explicit 0 is distinguishable
// from an omitted field.
type UpdateDurationRequest struct {
	DurationSeconds *int `json:"durationSeconds" binding:"required,min=0"`
}

type RecordEventRequest struct {
	SessionID  string    `json:"sessionId" binding:"required"`
	UserID     string    `json:"userId" binding:"required"`
	EventType  EventType `json:"eventType" binding:"required,oneof=page_view signup add_to_cart checkout purchase"`
	FunnelStep int       `json:"funnelStep" binding:"min=0"`
	Completed  *bool     `json:"completed"`
	Revenue    *float64  `json:"revenue"`
	Metadata   Metadata  `json:"metadata"`
}

type RecordFeedbackRequest struct {
	UserID       string  `json:"userId" binding:"required"`
	SessionID    *string `json:"sessionId"`
	FeedbackType string  `json:"feedbackType" binding:"required,oneof=rating comment nps survey"`
	Rating       *int    `json:"rating"`
	Comment      *string `json:"comment"`
	PagePath     *string `json:"pagePath"`
}

type InsightRequest struct {
	QuestionID  string         `json:"questionId" binding:"required"`
	MetricsData map[string]any `json:"metricsData"`
}
