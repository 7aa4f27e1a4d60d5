package generator

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, mutate func(*Options)) *OllamaClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	opts := DefaultOptions()
	opts.URL = srv.URL
	opts.RatePerSecond = 0
	if mutate != nil {
		mutate(&opts)
	}
	c, err := NewOllamaClient(opts, nil)
	require.NoError(t, err)
	c.retry.BaseDelay = time.Millisecond
	c.retry.MaxDelay = 2 * time.Millisecond
	return c
}

func writeResponse(w http.ResponseWriter, text string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(generateResponse{Response: text, Done: true})
}

func TestOllamaGenerate(t *testing.T) {
	var got generateRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeResponse(w, "## Purpose\nParses things.")
	}, nil)

	out, err := c.Generate(context.Background(), TaskDocumentation, "describe parser.go")
	require.NoError(t, err)
	assert.Equal(t, "## Purpose\nParses things.", out)

	assert.Equal(t, DefaultModel, got.Model)
	assert.False(t, got.Stream)
	assert.Equal(t, "30m", got.KeepAlive)
	require.NotNil(t, got.Options)
	assert.Equal(t, 0.1, got.Options.Temperature)
	assert.Equal(t, 4096, got.Options.NumCtx)
	assert.Equal(t, 900, got.Options.NumPredict)
}

func TestOllamaGenerateEmptyPrompt(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	}, nil)

	_, err := c.Generate(context.Background(), TaskSummarize, "   ")
	assert.ErrorIs(t, err, ErrEmptyPrompt)
}

func TestOllamaGenerateCache(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeResponse(w, "cached answer")
	}, nil)

	for range 3 {
		out, err := c.Generate(context.Background(), TaskSummarize, "same prompt")
		require.NoError(t, err)
		assert.Equal(t, "cached answer", out)
	}
	assert.Equal(t, int32(1), calls.Load())

	// Different task means a different profile and key
	_, err := c.Generate(context.Background(), TaskArchitecture, "same prompt")
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestOllamaGenerateCacheDisabled(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeResponse(w, "answer")
	}, func(o *Options) { o.CacheSize = 0 })

	for range 2 {
		_, err := c.Generate(context.Background(), TaskSummarize, "prompt")
		require.NoError(t, err)
	}
	assert.Equal(t, int32(2), calls.Load())
}

func TestOllamaGenerateRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		writeResponse(w, "recovered")
	}, nil)

	out, err := c.Generate(context.Background(), TaskSummarize, "prompt")
	require.NoError(t, err)
	assert.Equal(t, "recovered", out)
	assert.Equal(t, int32(3), calls.Load())
}

func TestOllamaGenerateExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}, nil)

	_, err := c.Generate(context.Background(), TaskSummarize, "prompt")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProviderFailed)
	assert.True(t, IsTransient(err))
	assert.Equal(t, int32(MaxRetries), calls.Load())
}

func TestOllamaGenerateClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "model not found", http.StatusBadRequest)
	}, nil)

	_, err := c.Generate(context.Background(), TaskSummarize, "prompt")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProviderFailed)
	assert.False(t, IsTransient(err))
	assert.Equal(t, int32(1), calls.Load())

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadRequest, se.Code)
	assert.Contains(t, se.Body, "model not found")
}

func TestOllamaGenerateEmptyOutput(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeResponse(w, "```\n```")
	}, nil)

	_, err := c.Generate(context.Background(), TaskSummarize, "prompt")
	assert.ErrorIs(t, err, ErrEmptyOutput)
}

func TestOllamaGenerateLockTimeout(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeResponse(w, "never reached")
	}, func(o *Options) { o.LockTimeout = 20 * time.Millisecond })

	// Hold the lock as if another generation were running
	release, err := c.acquire(context.Background())
	require.NoError(t, err)
	defer release()

	_, err = c.Generate(context.Background(), TaskSummarize, "prompt")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLockTimeout)
	assert.True(t, IsTransient(err))
}

func TestOllamaGenerateContextCanceledWhileWaiting(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeResponse(w, "never reached")
	}, func(o *Options) { o.LockTimeout = 0 })

	release, err := c.acquire(context.Background())
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.Generate(ctx, TaskSummarize, "prompt")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestOllamaUnload(t *testing.T) {
	var got generateRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeResponse(w, "")
	}, nil)

	require.NoError(t, c.Unload(context.Background(), TaskSummarize))
	assert.Equal(t, "0", got.KeepAlive)
	assert.Equal(t, DefaultModel, got.Model)
}

func TestNewOllamaClientInvalidOptions(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxRetries = 0
	_, err := NewOllamaClient(opts, nil)
	assert.Error(t, err)

	opts = DefaultOptions()
	opts.URL = ""
	_, err = NewOllamaClient(opts, nil)
	assert.Error(t, err)
}

func TestStripCodeFence(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "  hello  ", "hello"},
		{"fenced", "```\nbody\n```", "body"},
		{"language tag", "```markdown\n## Purpose\ntext\n```", "## Purpose\ntext"},
		{"inner fence kept", "text\n```go\nx := 1\n```", "text\n```go\nx := 1\n```"},
		{"first line not a tag", "```not a tag\nbody\n```", "not a tag\nbody"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripCodeFence(tt.in))
		})
	}
}

func TestIsTransient(t *testing.T) {
	assert.False(t, IsTransient(nil))
	assert.True(t, IsTransient(ErrLockTimeout))
	assert.True(t, IsTransient(context.DeadlineExceeded))
	assert.True(t, IsTransient(&StatusError{Code: 429}))
	assert.True(t, IsTransient(&StatusError{Code: 502}))
	assert.False(t, IsTransient(&StatusError{Code: 404}))
	assert.False(t, IsTransient(errors.New("bad")))
	assert.False(t, IsTransient(context.Canceled))
}

func TestParseTask(t *testing.T) {
	task, err := ParseTask("architecture")
	require.NoError(t, err)
	assert.Equal(t, TaskArchitecture, task)

	_, err = ParseTask("poetry")
	assert.Error(t, err)
}
