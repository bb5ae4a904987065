package console

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"

	"zexplorer/core"
	"zexplorer/download"
)

// Renderer turns workflow progress events into colored terminal output with
// a live bar during diffusion. It is driven from a single consumer goroutine
// (stream.Relay.Forward) and is not safe for concurrent use.
type Renderer struct {
	out io.Writer
	bar *progressbar.ProgressBar

	phase   *color.Color
	detail  *color.Color
	success *color.Color
	warn    *color.Color
	fail    *color.Color
}

// NewRenderer writes to out (normally os.Stdout).
func NewRenderer(out io.Writer) *Renderer {
	return &Renderer{
		out:     out,
		phase:   color.New(color.FgCyan, color.Bold),
		detail:  color.New(color.Faint),
		success: color.New(color.FgGreen),
		warn:    color.New(color.FgYellow),
		fail:    color.New(color.FgRed),
	}
}

// Handle renders one event. It never returns an error so it can feed
// Relay.Forward directly.
func (r *Renderer) Handle(ev core.ProgressEvent) error {
	switch ev.Stage {
	case core.StageDiffusionStep:
		r.step(ev)
		return nil
	case core.StageImageSaved:
		r.finishBar()
		r.success.Fprintf(r.out, "✓ %s\n", ev.Message)
	case core.StageError:
		r.finishBar()
		r.fail.Fprintf(r.out, "✗ %s\n", ev.Message)
	case core.StageStarting, core.StagePhase1Complete, core.StageLoadingImageModel:
		r.phase.Fprintln(r.out, ev.Message)
	case core.StageEnhancing, core.StageVarGenerating, core.StageGeneratingImage:
		fmt.Fprintln(r.out, ev.Message)
	case core.StageVarMissing:
		r.warn.Fprintln(r.out, ev.Message)
	case core.StageVarSaved, core.StageEnhanced:
		r.success.Fprintf(r.out, "✓ %s\n", ev.Message)
	case core.StageFinalPrompt:
		r.detail.Fprintf(r.out, "Prompt: %s\n", ev.Message)
	case core.StageComplete:
		r.finishBar()
		r.phase.Fprintln(r.out, ev.Message)
	default:
		r.detail.Fprintln(r.out, ev.Message)
	}
	return nil
}

// step drives the diffusion bar from the event's overall percentage.
func (r *Renderer) step(ev core.ProgressEvent) {
	if ev.Progress == nil {
		return
	}
	if r.bar == nil {
		r.bar = progressbar.NewOptions(100,
			progressbar.OptionSetWriter(r.out),
			progressbar.OptionSetDescription("Generating"),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}
	r.bar.Set(*ev.Progress)
}

func (r *Renderer) finishBar() {
	if r.bar != nil {
		r.bar.Finish()
		r.bar = nil
		fmt.Fprintln(r.out)
	}
}

// Summary prints the batch outcome after the relay drains.
func (r *Renderer) Summary(result core.GenerationResult) {
	r.finishBar()
	fmt.Fprintln(r.out)

	if result.Success {
		r.success.Fprintf(r.out, "Generated %d image(s)\n", len(result.Images))
		for i, path := range result.Images {
			seed := int64(-1)
			if i < len(result.SeedsUsed) {
				seed = result.SeedsUsed[i]
			}
			r.detail.Fprintf(r.out, "  %s (seed %d)\n", path, seed)
		}
	} else {
		r.fail.Fprintln(r.out, "Generation failed")
	}

	for _, msg := range result.Errors {
		r.warn.Fprintf(r.out, "  %s\n", msg)
	}
}

// DownloadProgress returns a callback for download.Fetch that renders a
// byte-accurate bar with speed and ETA.
func DownloadProgress(out io.Writer, name string) func(download.ProgressInfo) {
	var bar *progressbar.ProgressBar
	return func(info download.ProgressInfo) {
		if bar == nil {
			bar = progressbar.NewOptions64(info.Total,
				progressbar.OptionSetWriter(out),
				progressbar.OptionSetDescription("Downloading "+name),
				progressbar.OptionShowBytes(true),
				progressbar.OptionClearOnFinish(),
			)
		}
		bar.Set64(info.Downloaded)
	}
}
