package job

import (
	"encoding/json"
	"path"
	"strings"

	"github.com/zulandar/graderqueue/internal/apperr"
)

// Policy floors applied to numeric limits.
const (
	MinMemoryLimit = 4
	MinTimeLimit   = 1
	MinPriority    = 0
)

// DefaultRawJobName names raw submissions without an explicit name.
const DefaultRawJobName = "api-sendjob"

// FallbackExtensionKey is the extension table entry used for unknown languages.
const FallbackExtensionKey = "[default]"

// DefaultExtensions is the builtin language to source extension table.
var DefaultExtensions = map[string]string{
	"c":                  ".c",
	"cpp":                ".cpp",
	"cpp11":              ".cpp",
	"python":             ".py",
	"python2":            ".py",
	"python3":            ".py",
	"ocaml":              ".ml",
	"java":               ".java",
	"javascool":          ".jvs",
	"pascal":             ".pas",
	"shell":              ".sh",
	"node":               ".js",
	FallbackExtensionKey: ".txt",
}

// Upload is a solution file received alongside the request.
type Upload struct {
	Name    string
	Content []byte
}

// SolutionParams are the fields of a sendsolution request. Pointer limits are
// nil when the field was absent from the request.
type SolutionParams struct {
	TaskPath   string
	MemLimit   *int
	TimeLimit  *int
	Language   string
	JobName    string
	SolPath    string
	SolContent string
	Upload     *Upload
}

// ExecParams are the limits shared by the compilation and execution phases.
type ExecParams struct {
	TimeLimitMs      int      `json:"timeLimitMs"`
	MemoryLimitKb    int      `json:"memoryLimitKb"`
	UseCache         bool     `json:"useCache"`
	StdoutTruncateKb int      `json:"stdoutTruncateKb"`
	StderrTruncateKb int      `json:"stderrTruncateKb"`
	GetFiles         []string `json:"getFiles"`
}

// SolutionExtraParams is the extraParams block of a solution job.
type SolutionExtraParams struct {
	SolutionFilename          string     `json:"solutionFilename"`
	SolutionPath              string     `json:"solutionPath,omitempty"`
	SolutionContent           string     `json:"solutionContent,omitempty"`
	SolutionID                string     `json:"solutionId"`
	SolutionExecID            string     `json:"solutionExecId"`
	SolutionLanguage          string     `json:"solutionLanguage"`
	SolutionDependencies      string     `json:"solutionDependencies"`
	DefaultSolutionCompParams ExecParams `json:"defaultSolutionCompParams"`
	DefaultSolutionExecParams ExecParams `json:"defaultSolutionExecParams"`
}

// SolutionJob is the descriptor layout produced from solution parameters.
type SolutionJob struct {
	TaskPath    string              `json:"taskPath"`
	ExtraParams SolutionExtraParams `json:"extraParams"`
}

// Builder builds descriptors. It is safe for concurrent use.
type Builder struct {
	exts map[string]string
}

// NewBuilder returns a Builder using the builtin extension table overlaid
// with overrides.
func NewBuilder(overrides map[string]string) *Builder {
	exts := make(map[string]string, len(DefaultExtensions)+len(overrides))
	for k, v := range DefaultExtensions {
		exts[k] = v
	}
	for k, v := range overrides {
		exts[k] = v
	}
	return &Builder{exts: exts}
}

// FromRaw parses jobdata as a descriptor verbatim.
func (b *Builder) FromRaw(jobdata string) (Descriptor, error) {
	var d Descriptor
	if err := json.Unmarshal([]byte(jobdata), &d); err != nil {
		return nil, apperr.Parse("Error while decoding job JSON : "+err.Error(), err)
	}
	if d == nil {
		return nil, apperr.Parse("Error while decoding job JSON : job data must be a JSON object", nil)
	}
	return d, nil
}

// FromSolution builds a descriptor from solution parameters and returns it
// with the job name to use.
func (b *Builder) FromSolution(p SolutionParams) (Descriptor, string, error) {
	switch {
	case p.TaskPath == "":
		return nil, "", missing("taskpath")
	case p.MemLimit == nil:
		return nil, "", missing("memlimit")
	case p.TimeLimit == nil:
		return nil, "", missing("timelimit")
	case p.Language == "":
		return nil, "", missing("lang")
	}

	extra := SolutionExtraParams{SolutionLanguage: p.Language}
	switch {
	case p.SolPath != "":
		extra.SolutionFilename = path.Base(p.SolPath)
		extra.SolutionPath = p.SolPath
	case p.SolContent != "":
		extra.SolutionFilename = "main" + b.extension(p.Language)
		extra.SolutionContent = p.SolContent
	case p.Upload != nil:
		extra.SolutionFilename = uploadFilename(p.Upload.Name)
		if extra.SolutionFilename == "" {
			extra.SolutionFilename = "main" + b.extension(p.Language)
		}
		extra.SolutionContent = string(p.Upload.Content)
	default:
		return nil, "", apperr.Validation("Solution missing from request.")
	}

	exec := ExecParams{
		TimeLimitMs:      max(MinTimeLimit, *p.TimeLimit),
		MemoryLimitKb:    max(MinMemoryLimit, *p.MemLimit),
		UseCache:         true,
		StdoutTruncateKb: -1,
		StderrTruncateKb: -1,
		GetFiles:         []string{},
	}
	extra.SolutionID = "sol-" + extra.SolutionFilename
	extra.SolutionExecID = "exec-" + extra.SolutionFilename
	extra.SolutionDependencies = "@defaultDependencies-" + p.Language
	extra.DefaultSolutionCompParams = exec
	extra.DefaultSolutionExecParams = exec

	d, err := toDescriptor(SolutionJob{TaskPath: p.TaskPath, ExtraParams: extra})
	if err != nil {
		return nil, "", err
	}

	name := p.JobName
	if name == "" {
		name = "api-" + extra.SolutionFilename
	}
	return d, name, nil
}

// ClampPriority raises negative priorities to the floor.
func ClampPriority(p int) int {
	return max(MinPriority, p)
}

func (b *Builder) extension(lang string) string {
	if ext, ok := b.exts[lang]; ok {
		return ext
	}
	return b.exts[FallbackExtensionKey]
}

// uploadFilename strips any client-side directory from a declared file name.
func uploadFilename(name string) string {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == "/" {
		return ""
	}
	return base
}

func missing(field string) error {
	return apperr.Validation(field + " missing from request.")
}
