package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"
)

// OllamaClient implements Client against the Ollama HTTP API. Calls are
// serialized: only one generation runs at a time.
type OllamaClient struct {
	baseURL    string
	keepAlive  string
	profiles   map[Task]TaskProfile
	httpClient *http.Client
	retry      RetryConfig

	lock        chan struct{}
	lockTimeout time.Duration
	limiter     *rate.Limiter
	cache       *lru.Cache[string, string]
	logger      *slog.Logger
}

// NewOllamaClient creates a client from opts
func NewOllamaClient(opts Options, logger *slog.Logger) (*OllamaClient, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	c := &OllamaClient{
		baseURL:   strings.TrimRight(opts.URL, "/"),
		keepAlive: opts.KeepAlive,
		profiles:  DefaultProfiles(opts.Model),
		httpClient: &http.Client{
			Timeout: opts.Timeout,
		},
		retry:       DefaultRetryConfig(),
		lock:        make(chan struct{}, 1),
		lockTimeout: opts.LockTimeout,
		logger:      logger,
	}
	c.retry.MaxRetries = opts.MaxRetries

	if opts.RatePerSecond > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.RatePerSecond), burst)
	}

	if opts.CacheSize > 0 {
		cache, err := lru.New[string, string](opts.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("create response cache: %w", err)
		}
		c.cache = cache
	}

	return c, nil
}

// Profile returns the profile used for task
func (c *OllamaClient) Profile(task Task) TaskProfile {
	if p, ok := c.profiles[task]; ok {
		return p
	}
	return c.profiles[TaskSummarize]
}

// Generate runs one non-streaming completion for task
func (c *OllamaClient) Generate(ctx context.Context, task Task, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", ErrEmptyPrompt
	}
	profile := c.Profile(task)

	key := cacheKey(profile.Model, task, prompt)
	if c.cache != nil {
		if out, ok := c.cache.Get(key); ok {
			c.logger.Debug("generation cache hit", "task", task, "model", profile.Model)
			return out, nil
		}
	}

	release, err := c.acquire(ctx)
	if err != nil {
		return "", fmt.Errorf("%s (%s): %w", task, profile.Model, err)
	}
	defer release()

	start := time.Now()
	out, err := retryWithBackoff(ctx, c.retry, IsTransient, func() (string, error) {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return "", err
			}
		}
		return c.callAPI(ctx, generateRequest{
			Model:     profile.Model,
			Prompt:    prompt,
			Stream:    false,
			KeepAlive: c.keepAlive,
			Options: &modelOptions{
				Temperature: profile.Temperature,
				NumCtx:      profile.NumCtx,
				NumPredict:  profile.NumPredict,
			},
		})
	})
	if err != nil {
		return "", fmt.Errorf("%w (%s): %w", ErrProviderFailed, profile.Model, err)
	}

	out = StripCodeFence(out)
	if strings.TrimSpace(out) == "" {
		return "", fmt.Errorf("%w for task %s (%s)", ErrEmptyOutput, task, profile.Model)
	}

	c.logger.Debug("generation complete",
		"task", task,
		"model", profile.Model,
		"prompt_bytes", len(prompt),
		"output_bytes", len(out),
		"duration_ms", time.Since(start).Milliseconds())

	if c.cache != nil {
		c.cache.Add(key, out)
	}
	return out, nil
}

// Unload asks the backend to evict the model used by task
func (c *OllamaClient) Unload(ctx context.Context, task Task) error {
	profile := c.Profile(task)

	release, err := c.acquire(ctx)
	if err != nil {
		return fmt.Errorf("unload %s: %w", profile.Model, err)
	}
	defer release()

	_, err = c.callAPI(ctx, generateRequest{Model: profile.Model, KeepAlive: "0"})
	if err != nil {
		return fmt.Errorf("unload %s: %w", profile.Model, err)
	}
	return nil
}

// acquire takes the single-flight lock, giving up after lockTimeout
func (c *OllamaClient) acquire(ctx context.Context) (func(), error) {
	var timeout <-chan time.Time
	if c.lockTimeout > 0 {
		timer := time.NewTimer(c.lockTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case c.lock <- struct{}{}:
		return func() { <-c.lock }, nil
	case <-timeout:
		return nil, fmt.Errorf("%w after %s", ErrLockTimeout, c.lockTimeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type modelOptions struct {
	Temperature float64 `json:"temperature"`
	NumCtx      int     `json:"num_ctx,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type generateRequest struct {
	Model     string        `json:"model"`
	Prompt    string        `json:"prompt"`
	Stream    bool          `json:"stream"`
	KeepAlive string        `json:"keep_alive,omitempty"`
	Options   *modelOptions `json:"options,omitempty"`
}

type generateResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

func (c *OllamaClient) callAPI(ctx context.Context, reqBody generateRequest) (string, error) {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("api call: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(bodyBytes))}
	}

	var apiResp generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if apiResp.Error != "" {
		return "", fmt.Errorf("api error: %s", apiResp.Error)
	}
	return apiResp.Response, nil
}

// StripCodeFence removes a code fence wrapping the whole output, along
// with a bare language tag on its first line
func StripCodeFence(out string) string {
	trimmed := strings.TrimSpace(out)
	if !strings.HasPrefix(trimmed, "```") || !strings.HasSuffix(trimmed, "```") || len(trimmed) < 6 {
		return trimmed
	}

	inner := strings.TrimSuffix(strings.TrimPrefix(trimmed, "```"), "```")
	lines := strings.Split(inner, "\n")
	if len(lines) > 0 && isLanguageTag(strings.TrimSpace(lines[0])) {
		lines = lines[1:]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func isLanguageTag(s string) bool {
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return false
		}
	}
	return true
}
