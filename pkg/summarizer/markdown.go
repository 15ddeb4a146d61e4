package summarizer

import (
	"fmt"
	"strings"
	"time"

	"github.com/user/framegrab/pkg/ports"
)

// MarkdownFormatter renders a Summary as a Markdown report.
type MarkdownFormatter struct {
	translate func(string) string
}

// MarkdownOption configures a MarkdownFormatter.
type MarkdownOption func(*MarkdownFormatter)

// WithTranslator sets the function used for headings and labels.
func WithTranslator(t func(string) string) MarkdownOption {
	return func(f *MarkdownFormatter) {
		f.translate = t
	}
}

// NewMarkdownFormatter creates a formatter. Labels are left untranslated
// unless WithTranslator is given.
func NewMarkdownFormatter(opts ...MarkdownOption) *MarkdownFormatter {
	f := &MarkdownFormatter{translate: func(s string) string { return s }}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Format implements Formatter.
func (f *MarkdownFormatter) Format(s *Summary) string {
	t := f.translate
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", t("Capture Summary"))
	fmt.Fprintf(&b, "%s: %s\n\n", t("Generated"), s.GeneratedAt.Format(time.RFC3339))

	f.section(&b, t("Source"), [][2]string{
		{t("Name"), orNA(s.Source.Name)},
		{t("Kind"), orNA(s.Source.Kind)},
		{t("Format"), formatPixel(s.Source.Pixel, s.Source.Codec)},
		{t("Resolution"), formatResolution(s.Source.Resolution.Width, s.Source.Resolution.Height)},
		{t("Nominal Frame Rate"), formatRate(s.Source.FrameRate)},
	})

	result := t("Completed")
	if s.Capture.Err != nil {
		result = fmt.Sprintf("%s: %v", t("Failed"), s.Capture.Err)
	}
	f.section(&b, t("Capture"), [][2]string{
		{t("Result"), result},
		{t("Duration"), s.Capture.Duration.Round(time.Millisecond).String()},
		{t("Last Frame"), fmt.Sprintf("%d", s.Capture.LastFrame)},
		{t("Grabbed"), fmt.Sprintf("%d", s.Capture.Grabbed)},
		{t("Committed"), fmt.Sprintf("%d", s.Capture.Commits)},
		{t("Missing"), formatShare(s.Capture.Missing, s.Capture.Grabbed)},
		{t("Measured Frame Rate"), formatRate(s.Capture.FrameRate)},
		{t("Transient Failures"), fmt.Sprintf("%d", s.Capture.Transient)},
		{t("Reclaimed Slots"), fmt.Sprintf("%d", s.Capture.Reclaimed)},
		{t("Forced Releases"), fmt.Sprintf("%d", s.Capture.ForcedReleases)},
	})

	f.section(&b, t("Display"), [][2]string{
		{t("Painted"), formatShare(s.Display.Painted, s.Capture.Commits)},
		{t("Never Shown"), fmt.Sprintf("%d", s.Display.Skipped)},
		{t("Suppressed Notifications"), fmt.Sprintf("%d", s.Display.Suppressed)},
		{t("Snapshots"), fmt.Sprintf("%d", s.Display.Snapshots)},
	})

	dropping := t("Off")
	if s.Settings.DropFrames {
		dropping = t("On")
	}
	f.section(&b, t("Settings"), [][2]string{
		{t("Slots"), fmt.Sprintf("%d", s.Settings.Capacity)},
		{t("Write Policy"), orNA(s.Settings.WritePolicy)},
		{t("Pending Cap"), fmt.Sprintf("%d", s.Settings.PendingCap)},
		{t("Frame Dropping"), dropping},
		{t("Display Rate"), formatRate(s.Settings.DisplayFPS)},
	})

	fmt.Fprintf(&b, "---\n%s framegrab\n", t("Generated by"))
	return b.String()
}

func (f *MarkdownFormatter) section(b *strings.Builder, title string, rows [][2]string) {
	fmt.Fprintf(b, "## %s\n\n", title)
	fmt.Fprintf(b, "| %s | %s |\n", f.translate("Item"), f.translate("Value"))
	b.WriteString("|---|---|\n")
	for _, r := range rows {
		fmt.Fprintf(b, "| %s | %s |\n", r[0], r[1])
	}
	b.WriteString("\n")
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

func formatPixel(pixel ports.PixelFormat, codec string) string {
	p := string(pixel)
	if p == "" {
		return "N/A"
	}
	if codec != "" {
		return fmt.Sprintf("%s (%s)", p, codec)
	}
	return p
}

func formatResolution(w, h int) string {
	if w == 0 && h == 0 {
		return "N/A"
	}
	return fmt.Sprintf("%dx%d", w, h)
}

func formatRate(fps float64) string {
	if fps <= 0 {
		return "N/A"
	}
	return fmt.Sprintf("%.2f fps", fps)
}

// formatShare renders n with its percentage of total.
func formatShare(n, total uint64) string {
	if total == 0 {
		return fmt.Sprintf("%d", n)
	}
	return fmt.Sprintf("%d (%.1f%%)", n, float64(n)*100/float64(total))
}
