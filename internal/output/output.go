package output

import (
	"fmt"
	"io"
	"os"

	"github.com/dshills/promptcoach/internal/review"
)

// Writer writes reviews in a specific format.
type Writer interface {
	WriteResult(w io.Writer, res *review.Result) error
	WriteComparison(w io.Writer, cmp *review.Comparison) error
	WriteBatch(w io.Writer, outcomes []review.Outcome) error
}

// Formats lists the supported format names.
func Formats() []string {
	return []string{"text", "json", "markdown"}
}

// GetWriter returns a writer for the specified format.
func GetWriter(format string) (Writer, error) {
	switch format {
	case "text", "":
		return &TextWriter{}, nil
	case "json":
		return &JSONWriter{}, nil
	case "markdown", "md":
		return &MarkdownWriter{}, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

// WriteResult writes res to the specified output (file path or stdout).
func WriteResult(res *review.Result, format, outPath string) error {
	return write(format, outPath, func(wr Writer, w io.Writer) error { return wr.WriteResult(w, res) })
}

// WriteComparison writes cmp to the specified output (file path or stdout).
func WriteComparison(cmp *review.Comparison, format, outPath string) error {
	return write(format, outPath, func(wr Writer, w io.Writer) error { return wr.WriteComparison(w, cmp) })
}

// WriteBatch writes batch outcomes to the specified output (file path or stdout).
func WriteBatch(outcomes []review.Outcome, format, outPath string) error {
	return write(format, outPath, func(wr Writer, w io.Writer) error { return wr.WriteBatch(w, outcomes) })
}

func write(format, outPath string, fn func(Writer, io.Writer) error) error {
	writer, err := GetWriter(format)
	if err != nil {
		return err
	}

	if outPath == "" {
		return fn(writer, os.Stdout)
	}
	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	if err := fn(writer, f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// outcomeView is the serialised form of a batch or comparison outcome.
type outcomeView struct {
	Label   string         `json:"label,omitempty"`
	Prompt  string         `json:"prompt"`
	Persona string         `json:"persona"`
	Result  *review.Result `json:"result,omitempty"`
	Error   string         `json:"error,omitempty"`
}

func viewOf(o review.Outcome) outcomeView {
	v := outcomeView{
		Label:   o.Job.Label,
		Prompt:  o.Job.Prompt,
		Persona: string(o.Job.Persona),
		Error:   o.ErrorText(),
	}
	if o.Err == nil {
		res := o.Result
		v.Result = &res
	}
	return v
}

func outcomeLabel(i int, o review.Outcome) string {
	if o.Job.Label != "" {
		return o.Job.Label
	}
	return fmt.Sprintf("#%d", i+1)
}
