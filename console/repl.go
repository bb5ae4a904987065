package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"go.uber.org/zap"

	"zexplorer/core"
	"zexplorer/metrics"
	"zexplorer/stream"
)

// replKeepalive is how often the spinner line refreshes while the worker is
// silent (model load, long LLM calls).
const replKeepalive = 500 * time.Millisecond

// GenerateFunc runs one batch synchronously. core.Generator.Generate
// satisfies it.
type GenerateFunc func(ctx context.Context, req core.GenerationRequest, onProgress core.ProgressFunc) core.GenerationResult

// Unloader frees engine memory on demand.
type Unloader interface {
	UnloadAll() error
}

// Deps are the REPL's collaborators. Generate is required; nil optional
// collaborators disable their commands.
type Deps struct {
	Generate  GenerateFunc
	Variables core.VariableStore
	Text      core.TextEngine
	GPU       metrics.GPUReader
	Engines   Unloader
}

// REPL is the interactive prompt loop.
type REPL struct {
	deps     Deps
	logger   *zap.Logger
	in       io.Reader
	out      io.Writer
	renderer *Renderer
	version  string

	// Session state mutated by slash commands.
	seed *int64
	size BatchParams

	preview bool
}

// Option configures the REPL.
type Option func(*REPL)

// WithIO overrides the input and output streams (tests).
func WithIO(in io.Reader, out io.Writer) Option {
	return func(r *REPL) {
		r.in = in
		r.out = out
	}
}

// WithVersion sets the version shown by /version and the banner.
func WithVersion(v string) Option {
	return func(r *REPL) { r.version = v }
}

// WithPreview toggles terminal image previews after each saved image.
func WithPreview(enabled bool) Option {
	return func(r *REPL) { r.preview = enabled }
}

// NewREPL builds the loop. logger may be nil.
func NewREPL(deps Deps, logger *zap.Logger, opts ...Option) (*REPL, error) {
	if deps.Generate == nil {
		return nil, fmt.Errorf("console: Deps.Generate is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &REPL{
		deps:    deps,
		logger:  logger,
		size:    DefaultBatchParams(),
		preview: true,
		version: "dev",
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.in == nil || r.out == nil {
		return nil, fmt.Errorf("console: IO streams are required")
	}
	r.renderer = NewRenderer(r.out)
	return r, nil
}

// Run prints the banner and processes input until EOF, /quit, or ctx
// cancellation.
func (r *REPL) Run(ctx context.Context) error {
	r.banner()
	r.printHelp()

	scanner := bufio.NewScanner(r.in)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		fmt.Fprint(r.out, "\n>>> ")
		if !scanner.Scan() {
			return scanner.Err()
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			if quit := r.runCommand(ctx, input); quit {
				return nil
			}
			continue
		}

		r.generate(ctx, input)
	}
}

func (r *REPL) banner() {
	color.New(color.FgMagenta, color.Bold).Fprintln(r.out, "zexplorer")
	color.New(color.Faint).Fprintf(r.out,
		"v%s - offline image generation, local text + image models\n", r.version)
	r.gpuStatus()
}

// runCommand handles one slash command, returning true for quit.
func (r *REPL) runCommand(ctx context.Context, input string) bool {
	cmd, args, _ := strings.Cut(input, " ")
	cmd = strings.ToLower(cmd)
	args = strings.TrimSpace(args)

	switch cmd {
	case "/quit", "/q", "/exit":
		color.New(color.Faint).Fprintln(r.out, "Goodbye!")
		return true
	case "/help":
		r.printHelp()
	case "/vars":
		r.listVariables()
	case "/enhance":
		r.enhance(ctx, args)
	case "/seed":
		r.setSeed(args)
	case "/size":
		r.setSize(args)
	case "/gpu":
		r.gpuStatus()
	case "/unload":
		r.unload()
	case "/version":
		fmt.Fprintf(r.out, "zexplorer v%s\n", r.version)
	default:
		color.New(color.FgRed).Fprintf(r.out, "Unknown command: %s\n", cmd)
		color.New(color.Faint).Fprintln(r.out, "Type /help for available commands")
	}
	return false
}

func (r *REPL) printHelp() {
	dim := color.New(color.Faint)
	green := color.New(color.FgGreen)

	fmt.Fprintln(r.out, "\nCommands:")
	for _, row := range [][2]string{
		{"/help", "Show this help"},
		{"/vars", "List available prompt variables"},
		{"/enhance <prompt>", "Enhance a prompt without generating"},
		{"/seed <number>", "Set seed for next generations (empty resets)"},
		{"/size <WxH>", "Set output size (e.g. 1024x1024)"},
		{"/gpu", "Show GPU status"},
		{"/unload", "Unload models to free GPU memory"},
		{"/version", "Show version"},
		{"/quit or /q", "Exit"},
	} {
		green.Fprintf(r.out, "  %-20s", row[0])
		fmt.Fprintln(r.out, row[1])
	}

	dim.Fprintln(r.out, "\nTips:")
	dim.Fprintln(r.out, "  Use __variable__ for random substitution (missing ones are auto-generated)")
	dim.Fprintln(r.out, "  Add ' > instruction' to enhance (e.g. 'a cat > make it magical')")
	dim.Fprintln(r.out, "  Add batch params with ':' (e.g. 'prompt : x10,h832,w1216')")
}

func (r *REPL) listVariables() {
	if r.deps.Variables == nil {
		color.New(color.FgYellow).Fprintln(r.out, "Variable store not available")
		return
	}
	vars, err := r.deps.Variables.LoadAll()
	if err != nil {
		color.New(color.FgRed).Fprintf(r.out, "Failed to load variables: %v\n", err)
		return
	}
	if len(vars) == 0 {
		color.New(color.FgYellow).Fprintln(r.out, "No prompt variables found")
		return
	}

	ids := make([]string, 0, len(vars))
	for id := range vars {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		v := vars[id]
		sample := v.Values
		if len(sample) > 5 {
			sample = sample[:5]
		}
		preview := strings.Join(sample, ", ")
		if len(v.Values) > 5 {
			preview += fmt.Sprintf("... (+%d more)", len(v.Values)-5)
		}
		color.New(color.FgCyan).Fprintf(r.out, "  %-24s", id)
		color.New(color.Faint).Fprintln(r.out, preview)
	}
}

func (r *REPL) enhance(ctx context.Context, prompt string) {
	if prompt == "" {
		color.New(color.FgYellow).Fprintln(r.out, "Usage: /enhance <prompt>")
		return
	}
	if r.deps.Text == nil {
		color.New(color.FgYellow).Fprintln(r.out, "Text engine not available")
		return
	}

	fmt.Fprintln(r.out, "Enhancing prompt...")
	enhanced, err := r.deps.Text.Enhance(ctx, prompt, "")
	if err != nil {
		color.New(color.FgRed).Fprintf(r.out, "Enhancement failed: %v\n", err)
		return
	}
	color.New(color.FgGreen).Fprintln(r.out, "Enhanced prompt:")
	fmt.Fprintln(r.out, enhanced)
}

func (r *REPL) setSeed(args string) {
	if args == "" {
		r.seed = nil
		color.New(color.Faint).Fprintln(r.out, "Seed reset to random")
		return
	}
	seed, err := strconv.ParseInt(args, 10, 64)
	if err != nil || seed < 0 {
		color.New(color.FgRed).Fprintln(r.out, "Invalid seed (must be a non-negative number)")
		return
	}
	r.seed = &seed
	color.New(color.FgGreen).Fprintf(r.out, "Seed set to: %d\n", seed)
}

func (r *REPL) setSize(args string) {
	if args == "" {
		color.New(color.Faint).Fprintf(r.out, "Current size: %dx%d\n", r.size.Width, r.size.Height)
		return
	}
	w, h, ok := strings.Cut(strings.ToLower(args), "x")
	if !ok {
		color.New(color.FgRed).Fprintln(r.out, "Invalid size format. Use: /size 1024x1024")
		return
	}
	width, errW := strconv.Atoi(strings.TrimSpace(w))
	height, errH := strconv.Atoi(strings.TrimSpace(h))
	if errW != nil || errH != nil {
		color.New(color.FgRed).Fprintln(r.out, "Invalid size format. Use: /size 1024x1024")
		return
	}
	r.size.Width = width
	r.size.Height = height
	color.New(color.FgGreen).Fprintf(r.out, "Size set to: %dx%d\n", width, height)
}

func (r *REPL) gpuStatus() {
	if r.deps.GPU == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	info, err := r.deps.GPU.ReadGPU(ctx)
	if err != nil {
		color.New(color.FgYellow).Fprintln(r.out, "No GPU detected - generation will be slow")
		return
	}
	color.New(color.Faint).Fprintf(r.out, "GPU: %s, %.0f MB free / %.0f MB total, %.0f%% busy\n",
		info.Name, info.MemoryFreeMB(), info.MemoryTotalMB, info.Utilization)
}

func (r *REPL) unload() {
	if r.deps.Engines == nil {
		return
	}
	if err := r.deps.Engines.UnloadAll(); err != nil {
		color.New(color.FgRed).Fprintf(r.out, "Unload failed: %v\n", err)
		return
	}
	color.New(color.FgGreen).Fprintln(r.out, "✓ Models unloaded")
	r.gpuStatus()
}

// generate parses batch parameters, runs the workflow through the relay, and
// renders events live.
func (r *REPL) generate(ctx context.Context, input string) {
	prompt, params := ParseBatchParamsFrom(input, BatchParams{
		Count:  1,
		Width:  r.size.Width,
		Height: r.size.Height,
	})

	if params.Count > 1 || params.Width != core.DefaultWidth || params.Height != core.DefaultHeight {
		color.New(color.Faint).Fprintf(r.out, "Batch: %d image(s) @ %dx%d\n",
			params.Count, params.Width, params.Height)
	}

	req := core.GenerationRequest{
		Prompt: prompt,
		Count:  params.Count,
		Width:  params.Width,
		Height: params.Height,
		Seed:   r.seed,
	}
	if err := req.Validate(); err != nil {
		color.New(color.FgRed).Fprintf(r.out, "Invalid request: %v\n", err)
		return
	}

	relay := stream.Run(func(emit core.ProgressFunc) core.GenerationResult {
		return r.deps.Generate(ctx, req, emit)
	}, stream.WithLogger(r.logger))

	result, _, err := relay.Forward(ctx, replKeepalive, r.renderer.Handle, nil)
	if err != nil {
		color.New(color.FgRed).Fprintf(r.out, "Generation interrupted: %v\n", err)
		return
	}

	r.renderer.Summary(result)

	if r.preview {
		for _, path := range result.Images {
			ShowPreview(r.out, path, DefaultPreviewWidth)
		}
	}
}
