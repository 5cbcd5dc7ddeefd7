package appmgr

import "fmt"

// FatalError represents a protocol violation: something the coordinator
// cannot recover from locally. It is always returned, never panicked, so the embedding driver
// decides how to log and abort.
type FatalError struct {
	Msg string
	AppID int
	CtxID int
	CoreID int
	HasApp bool
	HasCtx bool
	HasCore bool
}

func (e *FatalError) Error() string {
	s := "AppMgr: " + e.Msg
	if e.HasApp {
		s += fmt.Sprintf(" (app=%d)", e.AppID)
	}
	if e.HasCtx {
		s += fmt.Sprintf(" (ctx=%d)", e.CtxID)
	}
	if e.HasCore {
		s += fmt.Sprintf(" (core=%d)", e.CoreID)
	}
	return s
}

func fatal(msg string) error {
	return &FatalError{Msg: msg}
}

func fatalApp(msg string, app int) error {
	return &FatalError{Msg: msg, AppID: app, HasApp: true}
}

func fatalCtx(msg string, ctx int) error {
	return &FatalError{Msg: msg, CtxID: ctx, HasCtx: true}
}

func fatalAppCtx(msg string, app, ctx int) error {
	return &FatalError{Msg: msg, AppID: app, HasApp: true, CtxID: ctx, HasCtx: true}
}

func fatalAppCore(msg string, app, core int) error {
	return &FatalError{Msg: msg, AppID: app, HasApp: true, CoreID: core, HasCore: true}
}

// UnknownIDError is returned by Registry lookups on an id that doesn't
// exist.
type UnknownIDError struct {
	Kind string // "app", "ctx", or "core"
	ID int
}

func (e *UnknownIDError) Error() string {
	return fmt.Sprintf("appmgr: unknown %s id %d", e.Kind, e.ID)
}

// NoCandidateError is returned by queries that pick among candidates (e.g.
// least_loaded_core) when none qualify.
type NoCandidateError struct {
	Reason string
}

func (e *NoCandidateError) Error() string {
	return "appmgr: no candidate: " + e.Reason
}

// ConfigError reports a configuration problem found by the coordinator
// itself: AlterMutableMapSched returns one when the context scheduler is
// not MutableMap. policy.Build and appmgr.New report bad configuration as
// plain errors, not as ConfigError.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string { return "AppMgr config: " + e.Msg }

func configErr(format string, args ...any) error {
	return &ConfigError{Msg: fmt.Sprintf(format, args...)}
}
