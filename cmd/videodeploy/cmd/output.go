package cmd

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ambicuity/Cloud-Native-Streaming-Data-Pipeline-for-Video-Analytics/pkg/deployment"
	"github.com/ambicuity/Cloud-Native-Streaming-Data-Pipeline-for-Video-Analytics/pkg/orchestration"
	"github.com/ambicuity/Cloud-Native-Streaming-Data-Pipeline-for-Video-Analytics/pkg/servicemanager"
	"github.com/fatih/color"
)

// printer writes the human-facing progress lines. Logs go to stderr separately.
type printer struct {
	w      io.Writer
	green  *color.Color
	red    *color.Color
	yellow *color.Color
	cyan   *color.Color
	gray   *color.Color
	bold   *color.Color
}

func newPrinter(w io.Writer) *printer {
	return &printer{
		w:      w,
		green:  color.New(color.FgGreen),
		red:    color.New(color.FgRed),
		yellow: color.New(color.FgYellow),
		cyan:   color.New(color.FgCyan),
		gray:   color.New(color.FgHiBlack),
		bold:   color.New(color.Bold),
	}
}

func (p *printer) Success(format string, a ...any) {
	fmt.Fprintf(p.w, "%s %s\n", p.green.Sprint("✓"), fmt.Sprintf(format, a...))
}

func (p *printer) Info(format string, a ...any) {
	fmt.Fprintf(p.w, "%s %s\n", p.cyan.Sprint("→"), fmt.Sprintf(format, a...))
}

func (p *printer) Warn(format string, a ...any) {
	fmt.Fprintf(p.w, "%s %s\n", p.yellow.Sprint("⚠"), fmt.Sprintf(format, a...))
}

func (p *printer) Fail(format string, a ...any) {
	fmt.Fprintf(p.w, "%s %s\n", p.red.Sprint("✗"), fmt.Sprintf(format, a...))
}

func (p *printer) Bold(s string) string { return p.bold.Sprint(s) }

// StepEvent prints step transitions as they happen.
func (p *printer) StepEvent(e orchestration.StepEvent) {
	switch e.State {
	case orchestration.StepStarted:
		p.Info("%s", e.Step)
	case orchestration.StepSucceeded:
		p.Success("%s %s", e.Step, p.gray.Sprint(e.Report.Duration.Round(time.Millisecond)))
	case orchestration.StepSkipped:
		p.Warn("%s skipped", e.Step)
	case orchestration.StepFailed:
		p.Fail("%s: %v", e.Step, e.Report.Err)
	}
}

// Summary prints one line per resource the run touched.
func (p *printer) Summary(report *orchestration.Report) {
	fmt.Fprintln(p.w)
	for _, step := range report.Steps {
		for _, o := range step.Outcomes {
			fmt.Fprintf(p.w, "  %-10s %-60s %s\n", p.gray.Sprint(step.Name), o.Resource, p.kind(o.Kind))
		}
	}
	fmt.Fprintf(p.w, "\n  created %d, already existed %d, applied %d  %s\n\n",
		report.Count(servicemanager.Created),
		report.Count(servicemanager.AlreadyExists),
		report.Count(servicemanager.Applied),
		p.gray.Sprint("run "+report.RunID))
}

func (p *printer) kind(k servicemanager.OutcomeKind) string {
	switch k {
	case servicemanager.Created:
		return p.green.Sprint(k)
	case servicemanager.AlreadyExists:
		return p.yellow.Sprint(k)
	case servicemanager.Failed:
		return p.red.Sprint(k)
	default:
		return string(k)
	}
}

// NextCommand prints the command that starts the streaming job.
func (p *printer) NextCommand(c deployment.Command) {
	fmt.Fprintln(p.w)
	p.Info("Start the pipeline with:")
	lines := append([]string{c.Name}, c.Args...)
	fmt.Fprintf(p.w, "    %s\n", strings.Join(lines, " \\\n      "))
}
