package bonito

import (
	"os"
	"sync/atomic"
	"time"

	"github.com/kayac/Bonito/fcmv1"
)

// number of error classifications: the kinds without payload and every server error code
const errorStatSize = int(fcmv1.KindServer) + int(fcmv1.ThirdPartyAuthError) + 1

// Stats stores metrics
type Stats struct {
	Pid                  int              `json:"pid"`
	DebugPort            int              `json:"debug_port"`
	Uptime               int64            `json:"uptime"`
	StartAt              int64            `json:"start_at"`
	ServiceUnavailableAt int64            `json:"su_at"`
	Period               int64            `json:"period"`
	RetryAfter           int64            `json:"retry_after"`
	Workers              int64            `json:"workers"`
	QueueSize            int64            `json:"queue_size"`
	WorkersQueueSize     int64            `json:"workers_queue_size"`
	CommandQueueSize     int64            `json:"cmdq_queue_size"`
	RequestCount         int64            `json:"req_count"`
	SentCount            int64            `json:"sent_count"`
	ErrCount             int64            `json:"err_count"`
	ErrCounts            map[string]int64 `json:"err_counts"`

	errCounts [errorStatSize]int64
}

// NewStats initialize Stats
func NewStats() Stats {
	return Stats{
		Pid:        os.Getpid(),
		StartAt:    time.Now().Unix(),
		RetryAfter: int64(RetryAfterSecond / time.Second),
	}
}

// Snapshot returns a copy of the current stats which is safe to encode.
func (st *Stats) Snapshot() Stats {
	uptime := time.Now().Unix() - st.StartAt
	preUptime := atomic.SwapInt64(&st.Uptime, uptime)

	snap := Stats{
		Pid:                  st.Pid,
		DebugPort:            st.DebugPort,
		Uptime:               uptime,
		StartAt:              st.StartAt,
		ServiceUnavailableAt: atomic.LoadInt64(&st.ServiceUnavailableAt),
		Period:               uptime - preUptime,
		RetryAfter:           atomic.LoadInt64(&st.RetryAfter),
		Workers:              atomic.LoadInt64(&st.Workers),
		QueueSize:            atomic.LoadInt64(&st.QueueSize),
		WorkersQueueSize:     atomic.LoadInt64(&st.WorkersQueueSize),
		CommandQueueSize:     atomic.LoadInt64(&st.CommandQueueSize),
		RequestCount:         atomic.LoadInt64(&st.RequestCount),
		SentCount:            atomic.LoadInt64(&st.SentCount),
		ErrCount:             atomic.LoadInt64(&st.ErrCount),
		ErrCounts:            make(map[string]int64, errorStatSize),
	}
	for i := range st.errCounts {
		if n := atomic.LoadInt64(&st.errCounts[i]); n > 0 {
			snap.ErrCounts[errorStatLabel(i)] = n
		}
	}
	return snap
}

// countError counts up ErrCount and the counter of err's classification.
func (st *Stats) countError(err error) {
	atomic.AddInt64(&st.ErrCount, 1)
	e, ok := fcmv1.AsError(err)
	if !ok {
		return
	}
	atomic.AddInt64(&st.errCounts[errorStatIndex(e)], 1)
}

// errorStatIndex maps unknown kinds to server errors and unknown codes to Unspecified,
// as Error and ErrorCode render them.
func errorStatIndex(e fcmv1.Error) int {
	if e.Kind >= 0 && e.Kind < fcmv1.KindServer {
		return int(e.Kind)
	}
	code := e.Server.Code
	if code < fcmv1.Unspecified || code > fcmv1.ThirdPartyAuthError {
		code = fcmv1.Unspecified
	}
	return int(fcmv1.KindServer) + int(code)
}

func errorStatLabel(i int) string {
	if i < int(fcmv1.KindServer) {
		return fcmv1.Kind(i).String()
	}
	return fcmv1.ErrorCode(i - int(fcmv1.KindServer)).Status()
}
