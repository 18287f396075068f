package dispatch

import (
	"math"
	"strconv"
	"strings"

	"github.com/zulandar/graderqueue/internal/apperr"
	"github.com/zulandar/graderqueue/internal/auth"
	"github.com/zulandar/graderqueue/internal/job"
	"github.com/zulandar/graderqueue/internal/tags"
)

// Command is one parsed client request.
type Command interface {
	name() string
}

// SendJob queues a caller-supplied job descriptor.
type SendJob struct {
	JobData  string
	JobName  string
	Priority int
	Tags     []string
}

// SendSolution queues a job built from solution parameters.
type SendSolution struct {
	Params   job.SolutionParams
	Priority int
	Tags     []string
}

// GetJob looks up one of the caller's jobs.
type GetJob struct {
	JobID uint
}

// Test echoes the resolved identity.
type Test struct{}

// Wakeup wakes a specific worker.
type Wakeup struct {
	ServerID uint
}

func (SendJob) name() string      { return "sendjob" }
func (SendSolution) name() string { return "sendsolution" }
func (GetJob) name() string       { return "getjob" }
func (Test) name() string         { return "test" }
func (Wakeup) name() string       { return "wakeup" }

// Client-facing messages.
const (
	MsgNoRequest      = "No request made."
	MsgNoJobID        = "No jobid given."
	MsgInvalidJobID   = "Invalid jobid."
	MsgJobDataMissing = "jobdata missing from request."
	MsgNotAllowed     = "Request not allowed for this identity."
)

// ParseCommand turns an authenticated request into a typed command.
func ParseCommand(req auth.Request) (Command, error) {
	kind, _ := req.Get("request")
	switch kind {
	case "sendjob":
		data, ok := req.Get("jobdata")
		if !ok {
			return nil, apperr.Validation(MsgJobDataMissing)
		}
		name, _ := req.Get("jobname")
		if name == "" {
			name = job.DefaultRawJobName
		}
		return SendJob{
			JobData:  data,
			JobName:  name,
			Priority: intField(req, "priority"),
			Tags:     tags.ParseNames(req.Fields["tags"]),
		}, nil

	case "sendsolution":
		p := job.SolutionParams{
			TaskPath:   req.Fields["taskpath"],
			Language:   req.Fields["lang"],
			JobName:    req.Fields["jobname"],
			SolPath:    req.Fields["solpath"],
			SolContent: req.Fields["solcontent"],
			Upload:     req.Upload,
		}
		if v, ok := req.Get("memlimit"); ok {
			n := intval(v)
			p.MemLimit = &n
		}
		if v, ok := req.Get("timelimit"); ok {
			n := intval(v)
			p.TimeLimit = &n
		}
		return SendSolution{
			Params:   p,
			Priority: intField(req, "priority"),
			Tags:     tags.ParseNames(req.Fields["tags"]),
		}, nil

	case "getjob":
		raw, ok := req.Get("jobid")
		if !ok || raw == "" {
			return nil, apperr.Validation(MsgNoJobID)
		}
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || strconv.FormatUint(id, 10) != raw || id > math.MaxUint32 {
			return nil, apperr.Validation(MsgInvalidJobID)
		}
		return GetJob{JobID: uint(id)}, nil

	case "test":
		return Test{}, nil

	case "wakeup":
		return Wakeup{ServerID: uint(max(0, intField(req, "serverid")))}, nil
	}
	return nil, apperr.Validation(MsgNoRequest)
}

func intField(req auth.Request, key string) int {
	return intval(req.Fields[key])
}

// intval reads the leading decimal integer of s, ignoring whatever follows.
// Strings without one yield 0; out-of-range values saturate.
func intval(s string) int {
	s = strings.TrimLeft(s, " \t\n\r\v\f")
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0
	}
	n, err := strconv.ParseInt(s[:end], 10, 32)
	if err != nil {
		if s[0] == '-' {
			return math.MinInt32
		}
		return math.MaxInt32
	}
	return int(n)
}
