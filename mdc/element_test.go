package mdc

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInstallMergesOverAmbientState(t *testing.T) {
	s := NewState()
	s.Set("env", "prod")

	e := New(Map{"traceId": "abc123"})
	saved := e.Install(s)

	v, ok := s.Get("traceId")
	require.True(t, ok)
	require.Equal(t, "abc123", v)

	// Ambient keys absent from the element survive installation.
	v, ok = s.Get("env")
	require.True(t, ok)
	require.Equal(t, "prod", v)

	e.Restore(s, saved)
	require.Equal(t, Map{"env": "prod"}, s.Snapshot())
}

func TestRestoreClearsKeysAddedDuringExecution(t *testing.T) {
	s := NewState()
	s.Set("env", "prod")

	e := New(Map{"traceId": "abc123"})
	saved := e.Install(s)

	// The task mutates ambient state while running.
	s.Set("step", "2")
	require.Equal(t, Map{"env": "prod", "traceId": "abc123", "step": "2"}, s.Snapshot())

	e.Restore(s, saved)
	require.Equal(t, Map{"env": "prod"}, s.Snapshot())
}

func TestRestoreReinstatesDeletedKeys(t *testing.T) {
	s := NewState()
	s.Set("env", "prod")
	s.Set("region", "eu-west-1")

	e := New(Map{"traceId": "abc123"})
	saved := e.Install(s)
	s.Delete("region")

	e.Restore(s, saved)
	require.Equal(t, Map{"env": "prod", "region": "eu-west-1"}, s.Snapshot())
}

func TestSequentialTasksDoNotLeak(t *testing.T) {
	s := NewState()
	s.Set("host", "worker-1")

	a := New(Map{"traceId": "run-a"})
	savedA := a.Install(s)
	s.Set("scratch", "a")
	a.Restore(s, savedA)

	b := New(Map{"requestId": "run-b"})
	savedB := b.Install(s)

	_, ok := s.Get("traceId")
	require.False(t, ok, "previous task context leaked into the worker")
	_, ok = s.Get("scratch")
	require.False(t, ok)

	v, ok := s.Get("requestId")
	require.True(t, ok)
	require.Equal(t, "run-b", v)

	b.Restore(s, savedB)
	require.Equal(t, Map{"host": "worker-1"}, s.Snapshot())
}

func TestElementReuseIsIdempotent(t *testing.T) {
	s := NewState()
	s.Set("env", "prod")
	e := New(Map{"traceId": "abc123"})

	saved := e.Install(s)
	e.Restore(s, saved)
	first := s.Snapshot()

	saved = e.Install(s)
	e.Restore(s, saved)
	require.Equal(t, first, s.Snapshot())
}

func TestBindRestoresOnError(t *testing.T) {
	s := NewState()
	s.Set("env", "prod")
	e := New(Map{"traceId": "abc123"})

	errBoom := errors.New("boom")
	err := e.Bind(s, func() error {
		s.Set("step", "2")
		return errBoom
	})
	require.ErrorIs(t, err, errBoom)
	require.Equal(t, Map{"env": "prod"}, s.Snapshot())
}

func TestBindRestoresOnPanic(t *testing.T) {
	s := NewState()
	s.Set("env", "prod")
	e := New(Map{"traceId": "abc123"})

	require.Panics(t, func() {
		_ = e.Bind(s, func() error {
			s.Set("step", "2")
			panic("boom")
		})
	})
	require.Equal(t, Map{"env": "prod"}, s.Snapshot())
}

func TestElementCopiesSourceMap(t *testing.T) {
	src := Map{"traceId": "abc123"}
	e := New(src)
	src["traceId"] = "mutated"

	s := NewState()
	saved := e.Install(s)
	v, _ := s.Get("traceId")
	require.Equal(t, "abc123", v)
	e.Restore(s, saved)
}

func TestEmptyElementLeavesStateUntouched(t *testing.T) {
	s := NewState()
	s.Set("env", "prod")

	e := New(nil)
	saved := e.Install(s)
	require.Equal(t, Map{"env": "prod"}, s.Snapshot())
	e.Restore(s, saved)
	require.Equal(t, Map{"env": "prod"}, s.Snapshot())
}
