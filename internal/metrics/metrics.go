package metrics

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Simple Prometheus-style metrics for HTTP requests and the job
// pipeline. This is intentionally minimal and in-memory only.

var (
	mu             sync.RWMutex
	requestsTotal  = make(map[reqKey]int64)
	latencyMsSum   = make(map[latKey]int64)
	latencyMsCount = make(map[latKey]int64)

	jobsCompletedTotal  int64
	jobsFailedTotal     = make(map[string]int64)
	transcribeMsSum     int64
	transcribeMsCount   int64
	streamSubscribers   int64
	sessionsEndedTotal  int64
	sessionFilesDeleted int64
)

type reqKey struct {
	Method string
	Path   string
	Status int
}

type latKey struct {
	Method string
	Path   string
}

// RecordRequest increments request counter and records latency.
func RecordRequest(method, path string, status int, latencyMs int64) {
	mu.Lock()
	defer mu.Unlock()

	rk := reqKey{Method: method, Path: path, Status: status}
	requestsTotal[rk]++

	lk := latKey{Method: method, Path: path}
	latencyMsSum[lk] += latencyMs
	latencyMsCount[lk]++
}

// RecordJobCompleted counts a successful job and its end-to-end
// pipeline duration.
func RecordJobCompleted(durationMs int64) {
	mu.Lock()
	defer mu.Unlock()
	jobsCompletedTotal++
	transcribeMsSum += durationMs
	transcribeMsCount++
}

// RecordJobFailed counts a failed job by the stage it failed in.
func RecordJobFailed(stage string) {
	mu.Lock()
	defer mu.Unlock()
	jobsFailedTotal[stage]++
}

// StreamSubscribed adjusts the live SSE subscriber gauge by delta
// (+1 on connect, -1 on disconnect).
func StreamSubscribed(delta int64) {
	mu.Lock()
	defer mu.Unlock()
	streamSubscribers += delta
	if streamSubscribers < 0 {
		streamSubscribers = 0
	}
}

// RecordSessionEnd counts a session teardown and the files it
// deleted.
func RecordSessionEnd(filesDeleted int64) {
	mu.Lock()
	defer mu.Unlock()
	sessionsEndedTotal++
	sessionFilesDeleted += filesDeleted
}

// Export renders all metrics in Prometheus text exposition format.
func Export() string {
	mu.RLock()
	defer mu.RUnlock()

	var b strings.Builder

	b.WriteString("# HELP scribe_http_requests_total Total HTTP requests.\n")
	b.WriteString("# TYPE scribe_http_requests_total counter\n")
	reqKeys := make([]reqKey, 0, len(requestsTotal))
	for k := range requestsTotal {
		reqKeys = append(reqKeys, k)
	}
	sort.Slice(reqKeys, func(i, j int) bool {
		a, bk := reqKeys[i], reqKeys[j]
		if a.Method != bk.Method {
			return a.Method < bk.Method
		}
		if a.Path != bk.Path {
			return a.Path < bk.Path
		}
		return a.Status < bk.Status
	})
	for _, k := range reqKeys {
		fmt.Fprintf(&b, "scribe_http_requests_total{method=%q,path=%q,status=\"%d\"} %d\n",
			k.Method, k.Path, k.Status, requestsTotal[k])
	}

	b.WriteString("# HELP scribe_http_request_latency_ms Summed request latency in milliseconds.\n")
	b.WriteString("# TYPE scribe_http_request_latency_ms counter\n")
	latKeys := make([]latKey, 0, len(latencyMsSum))
	for k := range latencyMsSum {
		latKeys = append(latKeys, k)
	}
	sort.Slice(latKeys, func(i, j int) bool {
		a, bk := latKeys[i], latKeys[j]
		if a.Method != bk.Method {
			return a.Method < bk.Method
		}
		return a.Path < bk.Path
	})
	for _, k := range latKeys {
		fmt.Fprintf(&b, "scribe_http_request_latency_ms_sum{method=%q,path=%q} %d\n",
			k.Method, k.Path, latencyMsSum[k])
		fmt.Fprintf(&b, "scribe_http_request_latency_ms_count{method=%q,path=%q} %d\n",
			k.Method, k.Path, latencyMsCount[k])
	}

	b.WriteString("# HELP scribe_jobs_completed_total Jobs that reached the completed state.\n")
	b.WriteString("# TYPE scribe_jobs_completed_total counter\n")
	fmt.Fprintf(&b, "scribe_jobs_completed_total %d\n", jobsCompletedTotal)

	b.WriteString("# HELP scribe_jobs_failed_total Jobs that reached the failed state, by stage.\n")
	b.WriteString("# TYPE scribe_jobs_failed_total counter\n")
	stages := make([]string, 0, len(jobsFailedTotal))
	for s := range jobsFailedTotal {
		stages = append(stages, s)
	}
	sort.Strings(stages)
	for _, s := range stages {
		fmt.Fprintf(&b, "scribe_jobs_failed_total{stage=%q} %d\n", s, jobsFailedTotal[s])
	}

	b.WriteString("# HELP scribe_pipeline_duration_ms Summed pipeline duration for completed jobs.\n")
	b.WriteString("# TYPE scribe_pipeline_duration_ms counter\n")
	fmt.Fprintf(&b, "scribe_pipeline_duration_ms_sum %d\n", transcribeMsSum)
	fmt.Fprintf(&b, "scribe_pipeline_duration_ms_count %d\n", transcribeMsCount)

	b.WriteString("# HELP scribe_stream_subscribers Live SSE progress subscribers.\n")
	b.WriteString("# TYPE scribe_stream_subscribers gauge\n")
	fmt.Fprintf(&b, "scribe_stream_subscribers %d\n", streamSubscribers)

	b.WriteString("# HELP scribe_sessions_ended_total Sessions torn down.\n")
	b.WriteString("# TYPE scribe_sessions_ended_total counter\n")
	fmt.Fprintf(&b, "scribe_sessions_ended_total %d\n", sessionsEndedTotal)

	b.WriteString("# HELP scribe_session_files_deleted_total Files removed by session teardown.\n")
	b.WriteString("# TYPE scribe_session_files_deleted_total counter\n")
	fmt.Fprintf(&b, "scribe_session_files_deleted_total %d\n", sessionFilesDeleted)

	return b.String()
}

// Reset clears all metric state. Test helper.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	requestsTotal = make(map[reqKey]int64)
	latencyMsSum = make(map[latKey]int64)
	latencyMsCount = make(map[latKey]int64)
	jobsCompletedTotal = 0
	jobsFailedTotal = make(map[string]int64)
	transcribeMsSum = 0
	transcribeMsCount = 0
	streamSubscribers = 0
	sessionsEndedTotal = 0
	sessionFilesDeleted = 0
}
