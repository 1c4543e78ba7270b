// Copyright (C) 2026 Mentora Labs (dev@mentora.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package streamclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newSSEServer serves the given lines as an SSE response, flushing after
// each one.
func newSSEServer(t *testing.T, lines ...string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher, ok := w.(http.Flusher)
		require.True(t, ok)
		for _, line := range lines {
			fmt.Fprintf(w, "%s\n\n", line)
			flusher.Flush()
		}
	}))
}

// collect drains the event channel into a slice.
func collect(t *testing.T, events <-chan Event) []Event {
	t.Helper()
	var got []Event
	for ev := range events {
		got = append(got, ev)
	}
	return got
}

func userSays(content string) Request {
	return Request{Messages: []Message{{Role: "user", Content: content}}}
}

func TestStream_CumulativeDeltasAndCompletion(t *testing.T) {
	srv := newSSEServer(t,
		`data: {"choices":[{"delta":{"content":"A"}}]}`,
		`data: {"choices":[{"delta":{"content":"B"}}]}`,
		`data: [DONE]`,
	)
	defer srv.Close()

	events, err := New(WithBaseURL(srv.URL)).Stream(context.Background(), userSays("hi"))
	require.NoError(t, err)
	got := collect(t, events)

	require.Len(t, got, 3)
	assert.Equal(t, Delta{Text: "A"}, got[0])
	assert.Equal(t, Delta{Text: "AB"}, got[1])
	done, ok := got[2].(Done)
	require.True(t, ok, "last event must be Done")
	assert.Equal(t, "AB", done.Text)
	assert.Equal(t, ConfidenceHigh, done.Confidence)
}

func TestStream_EarlyEOFCompletesWithPartialText(t *testing.T) {
	// No terminator: the server closes the connection after one delta.
	srv := newSSEServer(t, `data: {"choices":[{"delta":{"content":"partial"}}]}`)
	defer srv.Close()

	events, err := New(WithBaseURL(srv.URL)).Stream(context.Background(), userSays("hi"))
	require.NoError(t, err)
	got := collect(t, events)

	var dones, fails int
	for _, ev := range got {
		switch ev.(type) {
		case Done:
			dones++
		case Failed:
			fails++
		}
	}
	assert.Equal(t, 1, dones, "completion fires exactly once")
	assert.Zero(t, fails, "early EOF is not an error")
	assert.Equal(t, "partial", got[len(got)-1].(Done).Text)
}

func TestStream_LenientlySkipsMalformedLines(t *testing.T) {
	srv := newSSEServer(t,
		`: keep-alive comment`,
		`data: not json at all`,
		`data: {"choices":[{"delta":{"content":"ok"}}]}`,
		`retry: 3000`,
		`data: {"unrelated":true}`,
		`data: [DONE]`,
	)
	defer srv.Close()

	events, err := New(WithBaseURL(srv.URL)).Stream(context.Background(), userSays("hi"))
	require.NoError(t, err)
	got := collect(t, events)

	require.Len(t, got, 2)
	assert.Equal(t, Delta{Text: "ok"}, got[0])
	assert.Equal(t, "ok", got[1].(Done).Text)
}

func TestStream_AbandonmentDeliversNothingAfterCancel(t *testing.T) {
	// A paced 5-chunk stream; the consumer walks away after the second
	// chunk, as when the user switches conversations mid-flight.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for i := 0; i < 5; i++ {
			fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":\"c%d\"}}]}\n\n", i)
			flusher.Flush()
			time.Sleep(20 * time.Millisecond)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
		flusher.Flush()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, err := New(WithBaseURL(srv.URL)).Stream(ctx, userSays("hi"))
	require.NoError(t, err)

	oldConversation := ""
	newConversation := "untouched"
	received := 0
	for ev := range events {
		if d, ok := ev.(Delta); ok {
			oldConversation = d.Text
			received++
			if received == 2 {
				cancel()
				break
			}
		}
	}
	// Give the abandoned task time to observe cancellation; nothing may
	// arrive in the meantime because nobody is receiving.
	time.Sleep(100 * time.Millisecond)

	late := collect(t, events)
	assert.Empty(t, late, "no events after abandonment")
	assert.Equal(t, "c0c1", oldConversation)
	assert.Equal(t, "untouched", newConversation)
}

func TestStream_NonSuccessStatusReturnsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":"rate limit exceeded, please try again in a moment"}`)
	}))
	defer srv.Close()

	_, err := New(WithBaseURL(srv.URL)).Stream(context.Background(), userSays("hi"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit exceeded")
	assert.Contains(t, err.Error(), "429")
}

func TestStream_IdleTimeoutFailsSilentUpstream(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.(http.Flusher).Flush()
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	client := New(WithBaseURL(srv.URL), WithIdleTimeout(50*time.Millisecond))
	events, err := client.Stream(context.Background(), userSays("hi"))
	require.NoError(t, err)

	got := collect(t, events)
	require.Len(t, got, 1)
	failed, ok := got[0].(Failed)
	require.True(t, ok)
	assert.ErrorIs(t, failed.Err, ErrIdleTimeout)
}

func TestStream_RequestCarriesPersonalization(t *testing.T) {
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		gotBody = string(data)
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	req := userSays("explain fractions")
	req.UserPreferences = &Preferences{LearningStyle: "visual", Difficulty: "easy"}
	req.LearningContext = &LearningContext{Accuracy: 55, Engagement: 40, Topic: "fractions"}

	events, err := New(WithBaseURL(srv.URL)).Stream(context.Background(), req)
	require.NoError(t, err)
	collect(t, events)

	assert.Contains(t, gotBody, `"learningStyle":"visual"`)
	assert.Contains(t, gotBody, `"topic":"fractions"`)
	assert.Contains(t, gotBody, `"content":"explain fractions"`)
}
