package models

import "time"

type ActivityType string

const (
	ActivityPageView ActivityType = "page_view"
	ActivityAction   ActivityType = "action"
	ActivityEvent    ActivityType = "event"
)

type EventType string

const (
	EventPageView  EventType = "page_view"
	EventSignup    EventType = "signup"
	EventAddToCart EventType = "add_to_cart"
	EventCheckout  EventType = "checkout"
	EventPurchase  EventType = "purchase"
)

var funnelStepByEvent = map[EventType]int{
	EventPageView:  1,
	EventSignup:    2,
	EventAddToCart: 3,
	EventCheckout:  4,
	EventPurchase:  5,
}

// FunnelStepForEvent maps a valid event type onto its canonical funnel
// ordinal. It returns 0 for types that fail Valid.
func FunnelStepForEvent(t EventType) int {
	return funnelStepByEvent[t]
}

func (t EventType) Valid() bool {
	_, ok := funnelStepByEvent[t]
	return ok
}

func (t ActivityType) Valid() bool {
	switch t {
	case ActivityPageView, ActivityAction, ActivityEvent:
		return true
	}
	return false
}

var feedbackTypes = map[string]bool{"rating": true, "comment": true, "nps": true, "survey": true}

func ValidFeedbackType(t string) bool {
	return feedbackTypes[t]
}

// DefaultFunnelSteps are seeded into the rollup table on first start.
var DefaultFunnelSteps = []FunnelStepRollup{
	{StepOrder: 1, StepName: "Page View"},
	{StepOrder: 2, StepName: "Sign Up"},
	{StepOrder: 3, StepName: "Add to Cart"},
	{StepOrder: 4, StepName: "Checkout"},
	{StepOrder: 5, StepName: "Purchase"},
}

type Session struct {
	ID             string     `json:"id"`
	UserID         string     `json:"userId"`
	DeviceType     string     `json:"deviceType"`
	Browser        string     `json:"browser"`
	ReferrerSource string     `json:"referrerSource"`
	StartedAt      time.Time  `json:"startedAt"`
	EndedAt        *time.Time `json:"endedAt,omitempty"`
	IsChurned      bool       `json:"isChurned"`
}

type Activity struct {
	ID              string       `json:"id"`
	SessionID       string       `json:"sessionId"`
	ActivityName    string       `json:"activityName"`
	ActivityType    ActivityType `json:"activityType"`
	PagePath        string       `json:"pagePath"`
	DurationSeconds int          `json:"durationSeconds"`
	Timestamp       time.Time    `json:"timestamp"`
	DropOff         bool         `json:"dropOff"`
	Metadata        Metadata     `json:"metadata,omitempty"`
}

type ConversionEvent struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"sessionId"`
	UserID     string    `json:"userId"`
	EventType  EventType `json:"eventType"`
	FunnelStep int       `json:"funnelStep"`
	Completed  bool      `json:"completed"`
	Revenue    *float64  `json:"revenue,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	Metadata   Metadata  `json:"metadata,omitempty"`
}

type Feedback struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userId"`
	SessionID    *string   `json:"sessionId,omitempty"`
	FeedbackType string    `json:"feedbackType"`
	Rating       *int      `json:"rating,omitempty"`
	Comment      *string   `json:"comment,omitempty"`
	PagePath     *string   `json:"pagePath,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// FunnelStepRollup is the denormalised per-step counter row.
type FunnelStepRollup struct {
	StepOrder      int       `json:"stepOrder"`
	StepName       string    `json:"stepName"`
	UsersEntered   int64     `json:"usersEntered"`
	UsersCompleted int64     `json:"usersCompleted"`
	DropOffCount   int64     `json:"dropOffCount"`
	UpdatedAt      time.Time `json:"updatedAt"`
}
