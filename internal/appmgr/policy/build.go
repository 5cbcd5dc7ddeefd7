package policy

import "fmt"

// Config holds the configuration keys that select and parameterize
// policies. Field names mirror the TOML keys (SchedApp <- "sched_app",
// etc.) the same way the top-level config package's fields do.
type Config struct {
	SchedApp string // "OldestApp"
	SchedCtx string // "FirstIdle" | "LightestLoad" | "LeastIpc" | "Static" | "StaticSetAffin" | "MutableMap"
	Swap string // "IfProcFull" | "IfCoreFull" | "IfNotSolo" | "Always" | "Never" | "IfCoreOversubscribed"

	CschedDeductNonrun bool
	SwapgateDeductNonrun bool
	SwapgateDeductSwapout bool

	StaticSchedMap map[int]int // "StaticSched/A<n>"
	StaticAllowMissingApps bool // "StaticSched/allow_missing_apps"
	StaticAffinMap map[int][]int // "StaticAffin/A<n>"
	StaticAffinForceSched bool // "StaticAffin/force_sched"
	MutableMapInit map[int]int // "MutableMap/A<n>"
}

// Policies bundles the three built, ready-to-use policy instances.
type Policies struct {
	AppSched AppScheduler
	CtxSched CtxScheduler
	SwapGate SwapGate
	// MutableMapRef is non-nil only when SchedCtx=="MutableMap"; exposed so
	// the coordinator can route alter_mutablemap_sched calls to it without
	// a type assertion.
	MutableMapRef *MutableMap
}

// Build maps configuration strings to concrete policy variants once, at
// construction time rather than dispatching by name on every call. v is
// the ManagerView-shaped dependency CtxScheduler/SwapGate variants
// consult; appCount/ctxCount/activeCount are small accessor closures so
// this package never has to import the appmgr package itself.
func Build(cfg Config, v View, appCount, ctxCount func() int, activeCount func(core int, deductNonrun, deductSwapout bool) int, ctxCountTotal int) (*Policies, error) {
	appSched, err := buildAppScheduler(cfg)
	if err != nil {
		return nil, err
	}

	ctxSched, mm, err := buildCtxScheduler(cfg, v, ctxCountTotal)
	if err != nil {
		return nil, err
	}

	gate, err := buildSwapGate(cfg, v, appCount, ctxCount, activeCount, mm)
	if err != nil {
		return nil, err
	}

	return &Policies{AppSched: appSched, CtxSched: ctxSched, SwapGate: gate, MutableMapRef: mm}, nil
}

func buildAppScheduler(cfg Config) (AppScheduler, error) {
	switch cfg.SchedApp {
		case "", "OldestApp":
		return NewOldestApp(), nil
		default:
		return nil, fmt.Errorf("policy: unknown sched_app %q", cfg.SchedApp)
	}
}

func buildCtxScheduler(cfg Config, v View, ctxCountTotal int) (CtxScheduler, *MutableMap, error) {
	switch cfg.SchedCtx {
		case "", "FirstIdle":
		return NewFirstIdle(), nil, nil
		case "LightestLoad":
		return NewLightestLoad(v), nil, nil
		case "LeastIpc":
		return NewLeastIpc(v), nil, nil
		case "Static":
		s, err := NewStatic(cfg.StaticSchedMap, cfg.StaticAllowMissingApps, ctxCountTotal)
		if err != nil {
			return nil, nil, err
		}
		return s, nil, nil
		case "StaticSetAffin":
		return NewStaticSetAffin(v, cfg.StaticAffinMap, cfg.StaticAffinForceSched), nil, nil
		case "MutableMap":
		mm := NewMutableMap(v)
		for app, core := range cfg.MutableMapInit {
			mm.SchedAddApp(app, core)
		}
		return mm, mm, nil
		default:
		return nil, nil, fmt.Errorf("policy: unknown sched_ctx %q", cfg.SchedCtx)
	}
}

func buildSwapGate(cfg Config, v View, appCount, ctxCount func() int, activeCount func(core int, deductNonrun, deductSwapout bool) int, mm *MutableMap) (SwapGate, error) {
	switch cfg.Swap {
		case "", "IfProcFull":
		return NewIfProcFull(appCount, ctxCount), nil
		case "IfCoreFull":
		return NewIfCoreFull(v, cfg.SwapgateDeductNonrun, cfg.SwapgateDeductSwapout), nil
		case "IfNotSolo":
		return NewIfNotSolo(v, activeCount, cfg.SwapgateDeductNonrun, cfg.SwapgateDeductSwapout), nil
		case "Always":
		return Always{}, nil
		case "Never":
		return Never{}, nil
		case "IfCoreOversubscribed":
		if mm == nil {
			return nil, fmt.Errorf("policy: swap=IfCoreOversubscribed requires sched_ctx=MutableMap")
		}
		return NewIfCoreOversubscribed(mm), nil
		default:
		return nil, fmt.Errorf("policy: unknown swap %q", cfg.Swap)
	}
}
