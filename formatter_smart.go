package edgelog

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

var levelColorMap = map[string]*color.Color{
	string(LogLevelDebug):    color.New(color.FgCyan),
	string(LogLevelInfo):     color.New(color.FgGreen),
	string(LogLevelWarn):     color.New(color.FgYellow),
	string(LogLevelError):    color.New(color.FgRed),
	string(LogLevelCritical): color.New(color.FgRed, color.Bold),
}

// smartFormatter formats log entries as human-readable text. Request and
// response entries get indented detail lines below the header.
type smartFormatter struct {
	cfg   *Config
	color bool
}

// SmartFormatterOption configures a smartFormatter.
type SmartFormatterOption func(*smartFormatter)

// WithColor forces severity coloring on or off. The default is to color
// only when stderr is a terminal.
func WithColor(enabled bool) SmartFormatterOption {
	return func(f *smartFormatter) {
		f.color = enabled
	}
}

// NewSmartFormatter creates a new SmartFormatter. A nil cfg uses DefaultConfig.
func NewSmartFormatter(cfg *Config, opts ...SmartFormatterOption) *smartFormatter {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	f := &smartFormatter{
		cfg:   cfg,
		color: isatty.IsTerminal(os.Stderr.Fd()),
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// Format converts an Entry to text. The first line carries the timestamp,
// severity and message; request/response entries follow with indented data
// lines, except the start of an outgoing call, which has nothing to show yet.
func (f *smartFormatter) Format(e *Entry) ([]byte, error) {
	var b bytes.Buffer

	b.WriteString(e.Time.Format(time.RFC3339))
	b.WriteString(" ")
	b.WriteString(f.severityTag(e.Severity))
	b.WriteString(" ")
	b.WriteString(strings.TrimRight(e.Message, "\n"))

	if !e.Smart {
		return b.Bytes(), nil
	}

	if e.Direction == DirectionOutgoing && e.Edge == EdgeStart {
		return b.Bytes(), nil
	}

	if data := requestField(e.Request, "data"); data != nil {
		b.WriteString("\n  Request Data: ")
		b.WriteString(f.limitedRepr(data))
	}

	if headers := requestField(e.Request, "headers"); headers != nil {
		b.WriteString("\n  Request Headers: ")
		b.WriteString(f.limitedRepr(headers))
	}

	if e.Response != nil {
		b.WriteString("\n  Response Data: ")

		if data := requestField(e.Response, "data"); data != nil {
			b.WriteString(f.limitedRepr(data))
		} else {
			b.WriteString("(empty)")
		}
	}

	// Detail blocks end with a blank line.
	b.WriteString("\n")

	return b.Bytes(), nil
}

func (f *smartFormatter) severityTag(severity string) string {
	tag := "[" + severity + "]"

	if !f.color {
		return tag
	}

	c, ok := levelColorMap[severity]
	if !ok {
		return tag
	}

	return c.Sprint(tag)
}

// limitedRepr renders a value with %v, cut at MaxVerboseOutputLength.
func (f *smartFormatter) limitedRepr(v any) string {
	s := fmt.Sprintf("%v", v)

	limit := f.cfg.MaxVerboseOutputLength
	if limit > 0 && len(s) > limit {
		return s[:limit] + "..."
	}

	return s
}

func requestField(m map[string]any, key string) any {
	if m == nil {
		return nil
	}

	return m[key]
}
