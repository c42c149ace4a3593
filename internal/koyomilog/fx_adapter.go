package koyomilog

import (
	"strings"

	"go.uber.org/fx/fxevent"
)

// FxAdapter routes fx's internal lifecycle events through the engine's own
// logger instead of fx's default stderr logger.
type FxAdapter struct{}

// NewFxAdapter creates a new FxAdapter.
func NewFxAdapter() fxevent.Logger {
	return &FxAdapter{}
}

// LogEvent implements fxevent.Logger.
func (l *FxAdapter) LogEvent(event fxevent.Event) {
	switch e := event.(type) {
	case *fxevent.OnStartExecuting:
		Debugf("fx: OnStart executing %s", shortName(e.FunctionName))
	case *fxevent.OnStartExecuted:
		if e.Err != nil {
			Errorf("fx: OnStart failed %s: %v", shortName(e.FunctionName), e.Err)
		} else {
			Debugf("fx: OnStart executed %s", shortName(e.FunctionName))
		}
	case *fxevent.OnStopExecuting:
		Debugf("fx: OnStop executing %s", shortName(e.FunctionName))
	case *fxevent.OnStopExecuted:
		if e.Err != nil {
			Errorf("fx: OnStop failed %s: %v", shortName(e.FunctionName), e.Err)
		}
	case *fxevent.Provided:
		if e.Err != nil {
			Errorf("fx: provide failed: %v", e.Err)
		}
	case *fxevent.Invoked:
		if e.Err != nil {
			Errorf("fx: invoke failed %s: %v", e.FunctionName, e.Err)
		}
	case *fxevent.Started:
		if e.Err != nil {
			Errorf("fx: start failed: %v", e.Err)
		} else {
			Infof("fx: application started")
		}
	case *fxevent.Stopped:
		if e.Err != nil {
			Errorf("fx: stop failed: %v", e.Err)
		}
	}
}

func shortName(fn string) string {
	if idx := strings.LastIndex(fn, ".func"); idx != -1 {
		return fn[:idx]
	}
	return fn
}
