package bench

import (
	"time"
)

// AggregatedResponse accumulates the timing of one streaming request as its
// token deltas arrive. It is owned by the backend call that produces it until
// it is sent on the scheduler's channel, after which only the results
// accumulator touches it.
//
// Lifecycle: NewAggregatedResponse → Start → AddTokens* → Stop or Fail.
// Once the response has ended, further mutation calls are no-ops.
type AggregatedResponse struct {
	// StartTime is stamped by Start. Zero until then.
	StartTime time.Time `json:"start_time"`
	// EndTime is stamped by Stop or Fail. Zero until then.
	EndTime time.Time `json:"end_time"`

	NumPromptTokens    int  `json:"num_prompt_tokens"`
	NumGeneratedTokens int  `json:"num_generated_tokens"`
	Failed             bool `json:"failed"`

	// TimesBetweenTokens holds, per AddTokens call, the time elapsed since
	// the previous call (or since Start for the first one).
	TimesBetweenTokens []time.Duration `json:"times_between_tokens"`

	lastTokenTime time.Time
}

// NewAggregatedResponse returns an empty response, ready to be started.
func NewAggregatedResponse() *AggregatedResponse {
	return &AggregatedResponse{}
}

// Start stamps the request's start time and records the prompt token count.
func (r *AggregatedResponse) Start(numPromptTokens int) {
	if r.Ended() {
		return
	}
	now := time.Now()
	r.StartTime = now
	r.lastTokenTime = now
	r.NumPromptTokens = numPromptTokens
}

// AddTokens records the arrival of n generated tokens, appending the delta
// since the previous arrival.
func (r *AggregatedResponse) AddTokens(n int) {
	if r.Ended() {
		return
	}
	now := time.Now()
	r.NumGeneratedTokens += n
	r.TimesBetweenTokens = append(r.TimesBetweenTokens, now.Sub(r.lastTokenTime))
	r.lastTokenTime = now
}

// Stop marks the response as successfully completed.
func (r *AggregatedResponse) Stop() {
	if r.Ended() {
		return
	}
	r.EndTime = time.Now()
}

// Fail marks the response as failed and completed.
func (r *AggregatedResponse) Fail() {
	if r.Ended() {
		return
	}
	r.EndTime = time.Now()
	r.Failed = true
}

// Ended reports whether the response has reached its terminal state.
func (r *AggregatedResponse) Ended() bool {
	return !r.EndTime.IsZero()
}

// TimeToFirstToken returns the latency from request start to the first token
// delta. If no token arrived, the time from the start to the end time is
// returned, or to now while the response has not ended. The second return is
// false when the response was never started.
func (r *AggregatedResponse) TimeToFirstToken() (time.Duration, bool) {
	if r.StartTime.IsZero() {
		return 0, false
	}
	if len(r.TimesBetweenTokens) > 0 {
		return r.TimesBetweenTokens[0], true
	}
	if r.Ended() {
		return r.EndTime.Sub(r.StartTime), true
	}
	return time.Since(r.StartTime), true
}

// InterTokenLatency returns the mean inter-token arrival time after the first
// token. With exactly one token it is zero; with none it is undefined and the
// second return is false.
func (r *AggregatedResponse) InterTokenLatency() (time.Duration, bool) {
	switch len(r.TimesBetweenTokens) {
	case 0:
		return 0, false
	case 1:
		return 0, true
	default:
		var total time.Duration
		for _, d := range r.TimesBetweenTokens[1:] {
			total += d
		}
		return total / time.Duration(len(r.TimesBetweenTokens)-1), true
	}
}

// EndToEndLatency returns the total request duration, valid once the response
// has both start and end times.
func (r *AggregatedResponse) EndToEndLatency() (time.Duration, bool) {
	if r.StartTime.IsZero() || r.EndTime.IsZero() {
		return 0, false
	}
	return r.EndTime.Sub(r.StartTime), true
}
