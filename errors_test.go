package hyperbridge

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizedError_Retryable(t *testing.T) {
	retryable := []ErrorKind{KindTimeout, KindConnection, KindRateLimited, KindUpstream5xx}
	for _, kind := range retryable {
		assert.True(t, (&NormalizedError{Kind: kind}).Retryable(), "kind %s", kind)
	}

	terminal := []ErrorKind{KindUpstream4xx, KindSerialization}
	for _, kind := range terminal {
		assert.False(t, (&NormalizedError{Kind: kind}).Retryable(), "kind %s", kind)
	}
}

func TestNewUpstreamError_Classification(t *testing.T) {
	cases := []struct {
		status int
		kind   ErrorKind
	}{
		{400, KindUpstream4xx},
		{404, KindUpstream4xx},
		{429, KindRateLimited},
		{500, KindUpstream5xx},
		{503, KindUpstream5xx},
	}
	for _, tc := range cases {
		ne := newUpstreamError(tc.status, []byte(`{"error":"x"}`))
		assert.Equal(t, tc.kind, ne.Kind, "status %d", tc.status)
		assert.Equal(t, tc.status, ne.StatusCode)
	}
}

func TestNormalizedError_ErrorStringCarriesStatus(t *testing.T) {
	ne := newUpstreamError(502, nil)
	assert.Contains(t, ne.Error(), "502")
	assert.Contains(t, ne.Error(), string(KindUpstream5xx))
}

func TestAsNormalizedError_UnwrapsThroughWrapping(t *testing.T) {
	cause := errors.New("boom")
	ne := newConnectionError("dial upstream", cause)
	wrapped := fmt.Errorf("handler layer: %w", ne)

	got, ok := AsNormalizedError(wrapped)
	require.True(t, ok)
	assert.Equal(t, KindConnection, got.Kind)
	assert.ErrorIs(t, wrapped, cause)

	_, ok = AsNormalizedError(errors.New("plain"))
	assert.False(t, ok)
}

func TestBodySnippet_CapsLargeBodies(t *testing.T) {
	big := bytes.Repeat([]byte("a"), maxErrorBodyBytes*2)
	ne := newUpstreamError(500, big)
	assert.Len(t, ne.Body, maxErrorBodyBytes)

	small := []byte("tiny")
	assert.Equal(t, small, newUpstreamError(500, small).Body)
}
