package koyomilog

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/fx/fxevent"
)

func TestFxAdapter_LogEvent_HandlesEveryEventTypeWithoutPanicking(t *testing.T) {
	l := NewFxAdapter()
	events := []fxevent.Event{
		&fxevent.OnStartExecuting{FunctionName: "pkg.New.func1"},
		&fxevent.OnStartExecuted{FunctionName: "pkg.New.func1"},
		&fxevent.OnStartExecuted{FunctionName: "pkg.New.func1", Err: errors.New("boom")},
		&fxevent.OnStopExecuting{FunctionName: "pkg.Close.func1"},
		&fxevent.OnStopExecuted{FunctionName: "pkg.Close.func1", Err: errors.New("boom")},
		&fxevent.Provided{Err: errors.New("boom")},
		&fxevent.Invoked{FunctionName: "pkg.Run", Err: errors.New("boom")},
		&fxevent.Started{},
		&fxevent.Started{Err: errors.New("boom")},
		&fxevent.Stopped{Err: errors.New("boom")},
	}

	for _, e := range events {
		assert.NotPanics(t, func() { l.LogEvent(e) })
	}
}

func TestShortName_StripsClosureSuffix(t *testing.T) {
	assert.Equal(t, "pkg.New", shortName("pkg.New.func1"))
	assert.Equal(t, "pkg.Run", shortName("pkg.Run"))
}
