package job

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/zulandar/graderqueue/internal/apperr"
)

func intp(v int) *int { return &v }

func validParams() SolutionParams {
	return SolutionParams{
		TaskPath:   "$ROOT/tasks/sum",
		MemLimit:   intp(64000),
		TimeLimit:  intp(1000),
		Language:   "python",
		SolContent: "print(sum(map(int, input().split())))",
	}
}

func decodeSolution(t *testing.T, d Descriptor) SolutionJob {
	t.Helper()
	s, err := d.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var job SolutionJob
	if err := json.Unmarshal([]byte(s), &job); err != nil {
		t.Fatalf("decode descriptor: %v", err)
	}
	return job
}

func TestFromRaw_Verbatim(t *testing.T) {
	b := NewBuilder(nil)
	raw := `{"taskPath":"/tasks/a","extraParams":{"nested":[1,2,{"x":null}]},"executions":[]}`

	d, err := b.FromRaw(raw)
	if err != nil {
		t.Fatalf("FromRaw: %v", err)
	}
	if got := string(d["extraParams"]); got != `{"nested":[1,2,{"x":null}]}` {
		t.Errorf("extraParams = %s, want verbatim nested member", got)
	}
	if got := string(d["taskPath"]); got != `"/tasks/a"` {
		t.Errorf("taskPath = %s, want \"/tasks/a\"", got)
	}
}

func TestFromRaw_Malformed(t *testing.T) {
	b := NewBuilder(nil)
	tests := []struct {
		name string
		raw  string
	}{
		{"truncated", `{"taskPath":`},
		{"array", `[1,2,3]`},
		{"null", `null`},
		{"empty", ``},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := b.FromRaw(tt.raw)
			if err == nil {
				t.Fatal("expected parse error")
			}
			if !apperr.Is(err, apperr.KindParse) {
				t.Errorf("error kind = %v, want parse", err)
			}
			if !strings.HasPrefix(apperr.Message(err), "Error while decoding job JSON : ") {
				t.Errorf("message = %q", apperr.Message(err))
			}
		})
	}
}

func TestFromSolution_MissingFields(t *testing.T) {
	b := NewBuilder(nil)
	tests := []struct {
		name   string
		mutate func(*SolutionParams)
		want   string
	}{
		{"taskpath", func(p *SolutionParams) { p.TaskPath = "" }, "taskpath missing from request."},
		{"memlimit", func(p *SolutionParams) { p.MemLimit = nil }, "memlimit missing from request."},
		{"timelimit", func(p *SolutionParams) { p.TimeLimit = nil }, "timelimit missing from request."},
		{"lang", func(p *SolutionParams) { p.Language = "" }, "lang missing from request."},
		{"no source", func(p *SolutionParams) { p.SolContent = "" }, "Solution missing from request."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validParams()
			tt.mutate(&p)
			_, _, err := b.FromSolution(p)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !apperr.Is(err, apperr.KindValidation) {
				t.Errorf("error kind = %v, want validation", err)
			}
			if apperr.Message(err) != tt.want {
				t.Errorf("message = %q, want %q", apperr.Message(err), tt.want)
			}
		})
	}
}

func TestFromSolution_InlineContent(t *testing.T) {
	b := NewBuilder(nil)
	d, name, err := b.FromSolution(validParams())
	if err != nil {
		t.Fatalf("FromSolution: %v", err)
	}
	if name != "api-main.py" {
		t.Errorf("name = %q, want api-main.py", name)
	}

	job := decodeSolution(t, d)
	ep := job.ExtraParams
	if job.TaskPath != "$ROOT/tasks/sum" {
		t.Errorf("TaskPath = %q", job.TaskPath)
	}
	if ep.SolutionFilename != "main.py" {
		t.Errorf("SolutionFilename = %q, want main.py", ep.SolutionFilename)
	}
	if ep.SolutionID != "sol-main.py" || ep.SolutionExecID != "exec-main.py" {
		t.Errorf("ids = %q, %q", ep.SolutionID, ep.SolutionExecID)
	}
	if ep.SolutionDependencies != "@defaultDependencies-python" {
		t.Errorf("SolutionDependencies = %q", ep.SolutionDependencies)
	}
	if ep.SolutionPath != "" {
		t.Errorf("SolutionPath = %q, want empty", ep.SolutionPath)
	}
	if ep.DefaultSolutionCompParams.TimeLimitMs != 1000 || ep.DefaultSolutionCompParams.MemoryLimitKb != 64000 {
		t.Errorf("comp params = %+v", ep.DefaultSolutionCompParams)
	}
	exec := ep.DefaultSolutionExecParams
	if !exec.UseCache || exec.StdoutTruncateKb != -1 || exec.StderrTruncateKb != -1 {
		t.Errorf("exec params = %+v", exec)
	}
	if exec.GetFiles == nil || len(exec.GetFiles) != 0 {
		t.Errorf("GetFiles = %v, want empty list", exec.GetFiles)
	}
	if string(d["extraParams"]) == "" || !strings.Contains(string(d["extraParams"]), `"getFiles":[]`) {
		t.Errorf("getFiles not serialized as empty list: %s", d["extraParams"])
	}
}

func TestFromSolution_SourcePrecedence(t *testing.T) {
	b := NewBuilder(nil)

	p := validParams()
	p.SolPath = "/srv/solutions/fast.cpp"
	p.Upload = &Upload{Name: "upload.c", Content: []byte("int main(){}")}
	d, name, err := b.FromSolution(p)
	if err != nil {
		t.Fatalf("FromSolution: %v", err)
	}
	ep := decodeSolution(t, d).ExtraParams
	if ep.SolutionFilename != "fast.cpp" || ep.SolutionPath != "/srv/solutions/fast.cpp" {
		t.Errorf("path source: filename=%q path=%q", ep.SolutionFilename, ep.SolutionPath)
	}
	if ep.SolutionContent != "" {
		t.Errorf("path source should not carry content, got %q", ep.SolutionContent)
	}
	if name != "api-fast.cpp" {
		t.Errorf("name = %q, want api-fast.cpp", name)
	}

	// Content wins over upload.
	p.SolPath = ""
	d, _, err = b.FromSolution(p)
	if err != nil {
		t.Fatalf("FromSolution: %v", err)
	}
	ep = decodeSolution(t, d).ExtraParams
	if ep.SolutionFilename != "main.py" {
		t.Errorf("content source filename = %q, want main.py", ep.SolutionFilename)
	}

	// Upload is used last.
	p.SolContent = ""
	d, _, err = b.FromSolution(p)
	if err != nil {
		t.Fatalf("FromSolution: %v", err)
	}
	ep = decodeSolution(t, d).ExtraParams
	if ep.SolutionFilename != "upload.c" || ep.SolutionContent != "int main(){}" {
		t.Errorf("upload source: filename=%q content=%q", ep.SolutionFilename, ep.SolutionContent)
	}
}

func TestFromSolution_UploadNameStripsDirectories(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{`C:\Users\me\sol.py`, "sol.py"},
		{"../../etc/passwd", "passwd"},
		{"", "main.py"},
	}
	b := NewBuilder(nil)
	for _, tt := range tests {
		p := validParams()
		p.SolContent = ""
		p.Upload = &Upload{Name: tt.name, Content: []byte("x")}
		d, _, err := b.FromSolution(p)
		if err != nil {
			t.Fatalf("FromSolution(%q): %v", tt.name, err)
		}
		if got := decodeSolution(t, d).ExtraParams.SolutionFilename; got != tt.want {
			t.Errorf("upload %q: filename = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestFromSolution_Clamping(t *testing.T) {
	b := NewBuilder(nil)
	p := validParams()
	p.MemLimit = intp(0)
	p.TimeLimit = intp(0)

	d, _, err := b.FromSolution(p)
	if err != nil {
		t.Fatalf("FromSolution: %v", err)
	}
	exec := decodeSolution(t, d).ExtraParams.DefaultSolutionExecParams
	if exec.MemoryLimitKb != 4 {
		t.Errorf("MemoryLimitKb = %d, want 4", exec.MemoryLimitKb)
	}
	if exec.TimeLimitMs != 1 {
		t.Errorf("TimeLimitMs = %d, want 1", exec.TimeLimitMs)
	}

	p.MemLimit = intp(-100)
	p.TimeLimit = intp(-3)
	d, _, _ = b.FromSolution(p)
	exec = decodeSolution(t, d).ExtraParams.DefaultSolutionCompParams
	if exec.MemoryLimitKb != 4 || exec.TimeLimitMs != 1 {
		t.Errorf("negative limits not clamped: %+v", exec)
	}
}

func TestClampPriority(t *testing.T) {
	tests := []struct{ in, want int }{{-5, 0}, {0, 0}, {7, 7}}
	for _, tt := range tests {
		if got := ClampPriority(tt.in); got != tt.want {
			t.Errorf("ClampPriority(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestFromSolution_ExtensionTable(t *testing.T) {
	b := NewBuilder(map[string]string{"rust": ".rs", FallbackExtensionKey: ".src"})
	tests := []struct {
		lang string
		want string
	}{
		{"cpp", "main.cpp"},
		{"rust", "main.rs"},
		{"brainfuck", "main.src"},
	}
	for _, tt := range tests {
		p := validParams()
		p.Language = tt.lang
		d, _, err := b.FromSolution(p)
		if err != nil {
			t.Fatalf("FromSolution(%s): %v", tt.lang, err)
		}
		if got := decodeSolution(t, d).ExtraParams.SolutionFilename; got != tt.want {
			t.Errorf("lang %s: filename = %q, want %q", tt.lang, got, tt.want)
		}
	}

	// Builtin fallback without overrides.
	p := validParams()
	p.Language = "whitespace"
	d, _, _ := NewBuilder(nil).FromSolution(p)
	if got := decodeSolution(t, d).ExtraParams.SolutionFilename; got != "main.txt" {
		t.Errorf("fallback filename = %q, want main.txt", got)
	}
}

func TestFromSolution_ExplicitJobName(t *testing.T) {
	p := validParams()
	p.JobName = "contest-42"
	_, name, err := NewBuilder(nil).FromSolution(p)
	if err != nil {
		t.Fatalf("FromSolution: %v", err)
	}
	if name != "contest-42" {
		t.Errorf("name = %q, want contest-42", name)
	}
}

func TestDescriptor_SetAndClone(t *testing.T) {
	d := Descriptor{"taskPath": json.RawMessage(`"/t"`)}
	c := d.Clone()
	if err := c.Set("restrictToPaths", []string{"/a", "/b"}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, ok := d["restrictToPaths"]; ok {
		t.Error("Set on clone leaked into original")
	}
	s, err := c.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if s != `{"restrictToPaths":["/a","/b"],"taskPath":"/t"}` {
		t.Errorf("Marshal() = %s", s)
	}
}
