package generator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dshills/codememory-mcp/pkg/types"
)

// Disclaimer prefixes every generated document
const Disclaimer = "> **AI-generated content:** May contain inaccuracies. Verify against source code."

// Summary is the outcome of one file generation
type Summary struct {
	Path     string        `json:"path"`
	Task     Task          `json:"task"`
	Profile  string        `json:"profile"`
	Pressure int           `json:"memory_pressure"`
	Output   string        `json:"output"`
	Duration time.Duration `json:"duration"`
}

// Summarizer turns file context into generated Markdown
type Summarizer struct {
	client Client
	logger *slog.Logger
}

// NewSummarizer creates a summarizer over client
func NewSummarizer(client Client, logger *slog.Logger) *Summarizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Summarizer{client: client, logger: logger}
}

// SummarizeFile generates task output for one file. A transient backend
// failure or a refusal is retried once with the compact profile.
func (s *Summarizer) SummarizeFile(ctx context.Context, task Task, fm types.FileMemory, rm types.RelevantMemory, idx types.SourceIndex) (*Summary, error) {
	if task.ProjectScoped() {
		return nil, fmt.Errorf("%w: %s needs project context", ErrTaskScope, task)
	}
	start := time.Now()

	input := BuildFileInput(fm, rm, idx, ProfileStandard)
	out, err := s.generate(ctx, task, input)

	switch {
	case err != nil && IsTransient(err):
		s.logger.Warn("generation failed with transient error; retrying with compact context",
			"file", fm.Path, "error", err)
	case err != nil:
		return nil, err
	case IsRefusal(out):
		s.logger.Warn("refusal detected; retrying with compact context", "file", fm.Path)
	default:
		return s.summary(task, input, out, start), nil
	}

	input = BuildFileInput(fm, rm, idx, ProfileCompact)
	out, err = s.generate(ctx, task, input)
	if err != nil {
		return nil, err
	}
	if IsRefusal(out) {
		return nil, fmt.Errorf("%w: %s", ErrRefused, fm.Path)
	}
	return s.summary(task, input, out, start), nil
}

func (s *Summarizer) generate(ctx context.Context, task Task, input FileInput) (string, error) {
	prompt, err := RenderPrompt(task, input)
	if err != nil {
		return "", err
	}
	s.logger.Debug("file prompt",
		"file", input.Path,
		"profile", input.Profile,
		"memory_pressure", input.Pressure,
		"prompt_bytes", len(prompt))
	return s.client.Generate(ctx, task, prompt)
}

func (s *Summarizer) summary(task Task, input FileInput, out string, start time.Time) *Summary {
	return &Summary{
		Path:     input.Path,
		Task:     task,
		Profile:  input.Profile,
		Pressure: input.Pressure,
		Output:   EnsureDisclaimer(out),
		Duration: time.Since(start),
	}
}

var refusalMarkers = []string{
	"i cannot", "i can't", "i'm unable", "as an ai", "i don't have",
	"i do not have", "i am not able", "cannot help", "can't help",
	"not allowed", "not permitted", "against my",
}

// IsRefusal reports whether out looks like the model declined the task
func IsRefusal(out string) bool {
	lower := strings.ToLower(out)
	for _, m := range refusalMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// EnsureDisclaimer prefixes out with Disclaimer unless already present
func EnsureDisclaimer(out string) string {
	trimmed := strings.TrimSpace(out)
	lower := strings.ToLower(trimmed)
	if strings.HasPrefix(lower, "> **ai-generated content:**") || strings.HasPrefix(lower, "**ai-generated content:**") {
		return trimmed
	}
	if trimmed == "" {
		return Disclaimer
	}
	return Disclaimer + "\n\n" + trimmed
}
