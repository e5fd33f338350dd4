package jobs

// Request carries the submission parameters a worker needs to run
// one job. It is fixed at submission time.
type Request struct {
	SessionID         string
	MediaPath         string
	MediaFilename     string
	Language          string
	IncludeTimestamps bool
}

// Segment is a single timestamped piece of transcript text.
type Segment struct {
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
	Text      string  `json:"text"`
}

// Result is the final payload of a completed job. It is set exactly
// once, at the transition into completed, and is immutable after.
type Result struct {
	Text              string    `json:"text"`
	Timestamps        []Segment `json:"timestamps,omitempty"`
	MediaFilename     string    `json:"media_filename"`
	IncludeTimestamps bool      `json:"include_timestamps"`
}

// Snapshot is the immutable point-in-time view of a job. It is what
// the progress bus delivers to subscribers and what the status
// endpoint returns; Result and Error are mutually exclusive and only
// present in terminal states.
type Snapshot struct {
	JobID    string  `json:"job_id"`
	Status   Status  `json:"status"`
	Progress int     `json:"progress"`
	Message  string  `json:"message"`
	Result   *Result `json:"result,omitempty"`
	Error    string  `json:"error,omitempty"`
}
