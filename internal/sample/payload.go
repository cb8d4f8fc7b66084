package sample

// Collector resource paths.
const (
	PathRequests = "/requests"
	PathJobs     = "/jobs"
	PathErrors   = "/errors"
)

// ViewStat is the per-template entry of a request's views object.
type ViewStat struct {
	File    string  `json:"file"`
	Runtime float64 `json:"runtime"`
	Times   int     `json:"times"`
}

// RequestSample is the finalized form of a request measurement.
type RequestSample struct {
	Name         string              `json:"name"`
	Path         string              `json:"path,omitempty"`
	StartedAt    int64               `json:"started_at"`
	Runtime      float64             `json:"runtime"`
	DBRuntime    float64             `json:"db_runtime"`
	ViewRuntime  float64             `json:"view_runtime"`
	OtherRuntime float64             `json:"other_runtime"`
	Queries      []QueryStat         `json:"queries"`
	Sections     []Section           `json:"sections"`
	Views        map[string]ViewStat `json:"views"`
	Error        *ErrorRecord        `json:"error,omitempty"`
}

// JobSample is the finalized form of a job measurement.
type JobSample struct {
	Name      string       `json:"name"`
	StartedAt int64        `json:"started_at"`
	Runtime   float64      `json:"runtime"`
	Queries   []QueryStat  `json:"queries"`
	Sections  []Section    `json:"sections"`
	Error     *ErrorRecord `json:"error,omitempty"`
}

// RequestPayload is the body posted to PathRequests.
type RequestPayload struct {
	Request RequestSample `json:"request"`
}

// JobPayload is the body posted to PathJobs.
type JobPayload struct {
	Job JobSample `json:"job"`
}

// ErrorPayload is the body posted to PathErrors.
type ErrorPayload struct {
	Error ErrorRecord `json:"error"`
}

// Views converts aggregated view stats into the wire form keyed by template
// file. Stats of the same file at different lines are summed.
func Views(stats []QueryStat) map[string]ViewStat {
	views := make(map[string]ViewStat, len(stats))
	for _, s := range stats {
		v := views[s.File]
		v.File = s.File
		v.Runtime += s.Runtime
		v.Times += s.Times
		views[s.File] = v
	}
	return views
}

// Sections copies section pointers into values for serialization.
func Sections(list []*Section) []Section {
	out := make([]Section, 0, len(list))
	for _, s := range list {
		out = append(out, *s)
	}
	return out
}
