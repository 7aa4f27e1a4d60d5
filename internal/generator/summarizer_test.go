package generator

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/codememory-mcp/pkg/types"
)

type fakeClient struct {
	outputs []string
	errs    []error
	prompts []string
}

func (f *fakeClient) Generate(_ context.Context, _ Task, prompt string) (string, error) {
	i := len(f.prompts)
	f.prompts = append(f.prompts, prompt)
	var out string
	var err error
	if i < len(f.outputs) {
		out = f.outputs[i]
	}
	if i < len(f.errs) {
		err = f.errs[i]
	}
	return out, err
}

func summarize(t *testing.T, client Client) (*Summary, error) {
	t.Helper()
	s := NewSummarizer(client, nil)
	return s.SummarizeFile(context.Background(), TaskSummarize,
		makeMemory("a.go", 3, 1), types.RelevantMemory{}, makeIndex(2, 100))
}

func TestSummarizeFile(t *testing.T) {
	client := &fakeClient{outputs: []string{"## Purpose\nDoes work."}}

	sum, err := summarize(t, client)
	require.NoError(t, err)
	assert.Len(t, client.prompts, 1)
	assert.Equal(t, "standard", sum.Profile)
	assert.Equal(t, "a.go", sum.Path)
	assert.True(t, strings.HasPrefix(sum.Output, Disclaimer))
	assert.Contains(t, sum.Output, "## Purpose")
}

func TestSummarizeFileCompactRetryOnTransient(t *testing.T) {
	client := &fakeClient{
		outputs: []string{"", "## Purpose\nShort."},
		errs:    []error{&StatusError{Code: 503}, nil},
	}

	sum, err := summarize(t, client)
	require.NoError(t, err)
	assert.Len(t, client.prompts, 2)
	assert.Equal(t, "compact", sum.Profile)
	assert.Contains(t, client.prompts[1], `"profile":"compact"`)
}

func TestSummarizeFileCompactRetryOnRefusal(t *testing.T) {
	client := &fakeClient{outputs: []string{"I cannot help with that.", "## Purpose\nOK."}}

	sum, err := summarize(t, client)
	require.NoError(t, err)
	assert.Equal(t, "compact", sum.Profile)
}

func TestSummarizeFilePersistentRefusal(t *testing.T) {
	client := &fakeClient{outputs: []string{"As an AI I won't.", "I'm unable to do this."}}

	_, err := summarize(t, client)
	assert.ErrorIs(t, err, ErrRefused)
	assert.Len(t, client.prompts, 2)
}

func TestSummarizeFilePermanentErrorNotRetried(t *testing.T) {
	bad := errors.New("bad request")
	client := &fakeClient{errs: []error{bad}}

	_, err := summarize(t, client)
	assert.ErrorIs(t, err, bad)
	assert.Len(t, client.prompts, 1)
}

func TestSummarizeFileCompactAlsoFails(t *testing.T) {
	client := &fakeClient{errs: []error{ErrLockTimeout, ErrLockTimeout}}

	_, err := summarize(t, client)
	assert.ErrorIs(t, err, ErrLockTimeout)
	assert.Len(t, client.prompts, 2)
}

func TestEnsureDisclaimer(t *testing.T) {
	assert.Equal(t, Disclaimer, EnsureDisclaimer("  "))
	assert.Equal(t, Disclaimer+"\n\nbody", EnsureDisclaimer("body"))

	already := Disclaimer + "\n\nbody"
	assert.Equal(t, already, EnsureDisclaimer(already))
}

func TestIsRefusal(t *testing.T) {
	assert.True(t, IsRefusal("Sorry, I can't do that"))
	assert.False(t, IsRefusal("## Purpose\nHandles requests."))
}
