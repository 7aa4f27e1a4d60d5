package generator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"time"
)

// Common errors
var (
	ErrEmptyPrompt    = errors.New("prompt cannot be empty")
	ErrEmptyOutput    = errors.New("generation returned empty output")
	ErrProviderFailed = errors.New("generation provider failed")
	ErrLockTimeout    = errors.New("timeout acquiring generation lock")
	ErrRefused        = errors.New("generation refused the request")
	ErrTaskScope      = errors.New("task does not apply to this input")
)

// DefaultModel is used for every task unless overridden
const DefaultModel = "phi4-mini:3.8b"

// Task selects the generation profile
type Task string

const (
	TaskSummarize      Task = "summarize"
	TaskDocumentation  Task = "documentation"
	TaskProjectSummary Task = "project_summary"
	TaskArchitecture   Task = "architecture"
)

// ParseTask validates a task name
func ParseTask(s string) (Task, error) {
	switch t := Task(s); t {
	case TaskSummarize, TaskDocumentation, TaskProjectSummary, TaskArchitecture:
		return t, nil
	default:
		return "", fmt.Errorf("unknown task %q", s)
	}
}

// ProjectScoped reports whether the task describes the whole project
// rather than one file
func (t Task) ProjectScoped() bool {
	return t == TaskProjectSummary || t == TaskArchitecture
}

// TaskProfile holds the model parameters of one task
type TaskProfile struct {
	Model       string
	Temperature float64
	NumCtx      int
	NumPredict  int
}

// DefaultProfiles returns the per-task profiles, all using model
func DefaultProfiles(model string) map[Task]TaskProfile {
	if model == "" {
		model = DefaultModel
	}
	return map[Task]TaskProfile{
		TaskDocumentation:  {Model: model, Temperature: 0.1, NumCtx: 4096, NumPredict: 900},
		TaskProjectSummary: {Model: model, Temperature: 0.1, NumCtx: 4096, NumPredict: 700},
		TaskArchitecture:   {Model: model, Temperature: 0.1, NumCtx: 6144, NumPredict: 1000},
		TaskSummarize:      {Model: model, Temperature: 0.2, NumCtx: 4096, NumPredict: 300},
	}
}

// Client generates text for a task
type Client interface {
	Generate(ctx context.Context, task Task, prompt string) (string, error)
}

// Options configures an OllamaClient
type Options struct {
	URL           string        `toml:"url"`
	Model         string        `toml:"model"`
	Timeout       time.Duration `toml:"timeout"`      // Per request; 0 disables
	LockTimeout   time.Duration `toml:"lock_timeout"` // 0 waits until ctx is done
	MaxRetries    int           `toml:"max_retries"`
	RatePerSecond float64       `toml:"rate_per_second"` // 0 disables limiting
	Burst         int           `toml:"burst"`
	CacheSize     int           `toml:"cache_size"` // 0 disables the response cache
	KeepAlive     string        `toml:"keep_alive"`
}

// DefaultOptions returns options for a local Ollama daemon
func DefaultOptions() Options {
	return Options{
		URL:           "http://localhost:11434",
		Model:         DefaultModel,
		Timeout:       120 * time.Second,
		LockTimeout:   30 * time.Second,
		MaxRetries:    MaxRetries,
		RatePerSecond: 2,
		Burst:         1,
		CacheSize:     256,
		KeepAlive:     "30m",
	}
}

// Validate checks option ranges
func (o Options) Validate() error {
	if o.URL == "" {
		return errors.New("generator url must not be empty")
	}
	if o.Timeout < 0 || o.LockTimeout < 0 {
		return errors.New("generator timeouts must not be negative")
	}
	if o.MaxRetries < 1 {
		return fmt.Errorf("generator max_retries must be >= 1, got %d", o.MaxRetries)
	}
	if o.RatePerSecond < 0 || o.Burst < 0 || o.CacheSize < 0 {
		return errors.New("generator rate, burst and cache_size must not be negative")
	}
	return nil
}

// StatusError is a non-2xx response from the backend
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Code, e.Body)
}

// IsTransient reports whether err is worth retrying, possibly with a
// smaller prompt
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrLockTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code == 429 || se.Code >= 500
	}
	var ne net.Error
	return errors.As(err, &ne)
}

// cacheKey identifies a response by model, task and prompt
func cacheKey(model string, task Task, prompt string) string {
	h := sha256.New()
	h.Write([]byte(model))
	h.Write([]byte{0})
	h.Write([]byte(task))
	h.Write([]byte{0})
	h.Write([]byte(prompt))
	return hex.EncodeToString(h.Sum(nil))
}
