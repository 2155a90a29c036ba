package bonito

import (
	"time"
)

// Version
const (
	Version = "v0.1.0"
)

// Default values
const (
	// About the average time of response from fcm. That value is not accurate
	// because that is defined heuristically.
	AverageResponseTime = time.Millisecond * 150
	// RetryAfterSecond is the Retry-After header value returned when the queue is full.
	RetryAfterSecond = time.Second * 10
	// FlowRateInterval is the designed value to enable to delivery notifications
	// for that value seconds.
	FlowRateInterval = time.Second * 10
	// Wait millisecond interval when to shutdown.
	ShutdownWaitTime = time.Millisecond * 10
	// That is the count while request counter is 0 in the 'ShutdownWaitTime' period.
	RestartWaitCount = 50
)

// Supports Content-Type
const (
	ApplicationJSON = "application/json"
)
