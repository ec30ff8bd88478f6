package models

import "time"

// EndpointClass groups routes that share a request budget.
type EndpointClass string

const (
	// ClassSubmission covers provider applications: POST /providers.
	ClassSubmission EndpointClass = "submission"
	// ClassEngagement covers ledger writes: donations, testimonials, stories.
	ClassEngagement EndpointClass = "engagement"
)

// Policy is the budget of one endpoint class: Limit requests per Window.
type Policy struct {
	Limit  int
	Window time.Duration
}

// Result reports the outcome of one rate limit check.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter int // seconds
}

// ExceededResponse is the API response when a client exhausts its budget.
type ExceededResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retry_after"`
}

// Key builds the bucket key for a client within a class.
func Key(class EndpointClass, client string) string {
	return "mindlink:ratelimit:" + string(class) + ":" + client
}

// RetryAfterSeconds rounds the wait until resetAt up to whole seconds, minimum one.
func RetryAfterSeconds(now, resetAt time.Time) int {
	wait := resetAt.Sub(now)
	secs := int((wait + time.Second - 1) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}
