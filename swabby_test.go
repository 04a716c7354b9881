package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingExpirer struct {
	cutoffs chan time.Time
}

func (r *recordingExpirer) Expire(before time.Time) []string {
	select {
	case r.cutoffs <- before:
	default:
	}
	return []string{"244123456"}
}

func TestSwabbyDerelictVessels(t *testing.T) {
	e := &recordingExpirer{cutoffs: make(chan time.Time, 1)}
	s := Swabby{Enable: true, Schedule: time.Minute, Expiry: 30 * time.Minute}

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	removed := s.derelictVessels(now, e, nil)

	assert.Equal(t, []string{"244123456"}, removed)
	assert.Equal(t, now.Add(-30*time.Minute), <-e.cutoffs)
}

func TestSwabbyCleanupRunsOnSchedule(t *testing.T) {
	e := &recordingExpirer{cutoffs: make(chan time.Time, 4)}
	s := Swabby{Enable: true, Schedule: 10 * time.Millisecond, Expiry: time.Minute}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Cleanup(ctx, e, nil) }()

	select {
	case <-e.cutoffs:
	case <-time.After(5 * time.Second):
		t.Fatal("cleanup never ran")
	}
	cancel()
	require.NoError(t, <-done)
}

func TestSwabbyDisabled(t *testing.T) {
	e := &recordingExpirer{cutoffs: make(chan time.Time, 1)}
	s := Swabby{Enable: false, Schedule: time.Millisecond, Expiry: time.Minute}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.NoError(t, s.Cleanup(ctx, e, nil))
	assert.Empty(t, e.cutoffs)
}
