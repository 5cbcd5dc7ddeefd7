// Package config loads and validates the flat, TOML-shaped configuration
// AppMgr runs on: the policy selection strings, the swap/spill/fill
// tunables, and the per-policy static mappings, converted into the
// appmgr.Config the coordinator is built from.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/pelletier/go-toml/v2"

	"github.com/jbrown-smtsim/appmgr/internal/appmgr"
	"github.com/jbrown-smtsim/appmgr/internal/appmgr/policy"
)

// StaticSchedConfig is the TOML table backing the Static context scheduler.
type StaticSchedConfig struct {
	AllowMissingApps bool           `toml:"allow_missing_apps"`
	Map              map[string]int `toml:"map"`
}

// StaticAffinConfig is the TOML table backing the StaticSetAffin scheduler.
type StaticAffinConfig struct {
	ForceSched bool             `toml:"force_sched"`
	Map        map[string][]int `toml:"map"`
}

// Config is the flat configuration surface. Field names mirror the string
// keys AppMgr reads, one field per key, so a TOML document can set them
// directly by name.
type Config struct {
	SchedApp string `toml:"sched_app"`
	SchedCtx string `toml:"sched_ctx"`
	Swap     string `toml:"swap"`

	SwapSuppressGuess      bool `toml:"swap_suppress_guess"`
	CschedDeductNonrun     bool `toml:"csched_deduct_nonrun"`
	SwapgateDeductNonrun   bool `toml:"swapgate_deduct_nonrun"`
	SwapgateDeductSwapout  bool `toml:"swapgate_deduct_swapout"`

	InstSpillFill      bool `toml:"inst_spill_fill"`
	InstSpillFillEarly bool `toml:"inst_spill_fill_early"`
	SpillDirtyOnly     bool `toml:"spill_dirty_only"`
	SpillGHR           bool `toml:"spill_ghr"`
	SpillRetstackSize  int  `toml:"spill_retstack_size"`
	SpillDTLBSize      int  `toml:"spill_dtlb_size"`
	RegsPerSFBlock     int  `toml:"regs_per_sf_block"`

	ThreadSwapinCyc  int64 `toml:"thread_swapin_cyc"`
	ThreadSwapoutCyc int64 `toml:"thread_swapout_cyc"`
	MinSwapinCommits int64 `toml:"min_swapin_commits"`
	MinSwapinCyc     int64 `toml:"min_swapin_cyc"`

	MigrateFillsAreFree bool  `toml:"migrate_fills_are_free"`
	BusAccessTime       int64 `toml:"bus_access_time"`

	// CtxCountHint tells the Static scheduler how many contexts will
	// eventually be registered, so its mapping can be bounds-checked at
	// construction time rather than waiting for every RegisterIdleCtx call.
	CtxCountHint int `toml:"ctx_count_hint"`

	StaticSched StaticSchedConfig `toml:"static_sched"`
	StaticAffin StaticAffinConfig `toml:"static_affin"`
	MutableMap  map[string]int    `toml:"mutable_map"`
}

// Default returns a Config with the same defaults policy.Build already
// falls back to for an empty string (OldestApp/FirstIdle/IfProcFull), plus
// zero-value tunables -- callers building one programmatically (tests, the
// demo CLI) can start here and override only what they need.
func Default() *Config {
	return &Config{}
}

// Load reads and validates a TOML configuration file.
func Load(path string) (*Config, error) {
	if ext := filepath.Ext(path); ext != ".toml" {
		return nil, fmt.Errorf("%w: unsupported config format %q, only .toml is supported", ErrFailedToLoadConfig, ext)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedToLoadConfig, err)
	}
	return LoadFromBytes(data)
}

// LoadFromReader reads and validates TOML configuration from r.
func LoadFromReader(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedToLoadConfig, err)
	}
	return LoadFromBytes(data)
}

// LoadFromBytes unmarshals and validates a TOML document.
func LoadFromBytes(data []byte) (*Config, error) {
	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedToLoadConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the numeric tunables are in range and the static mapping
// tables are well formed. Policy name validity is left to policy.Build,
// which already returns a descriptive error for an unknown name; Validate
// only catches what would otherwise surface as a confusing panic or a
// silently-wrong simulation.
func (c *Config) Validate() error {
	var errs []error

	if c.SpillRetstackSize < 0 {
		errs = append(errs, fmt.Errorf("%w: spill_retstack_size must be >= 0, got %d", ErrInvalidValue, c.SpillRetstackSize))
	}
	if c.SpillDTLBSize < 0 {
		errs = append(errs, fmt.Errorf("%w: spill_dtlb_size must be >= 0, got %d", ErrInvalidValue, c.SpillDTLBSize))
	}
	if c.RegsPerSFBlock < 0 {
		errs = append(errs, fmt.Errorf("%w: regs_per_sf_block must be >= 0, got %d", ErrInvalidValue, c.RegsPerSFBlock))
	}
	if c.ThreadSwapinCyc < 0 {
		errs = append(errs, fmt.Errorf("%w: thread_swapin_cyc must be >= 0, got %d", ErrInvalidValue, c.ThreadSwapinCyc))
	}
	if c.ThreadSwapoutCyc < 0 {
		errs = append(errs, fmt.Errorf("%w: thread_swapout_cyc must be >= 0, got %d", ErrInvalidValue, c.ThreadSwapoutCyc))
	}
	if c.MinSwapinCommits < 0 {
		errs = append(errs, fmt.Errorf("%w: min_swapin_commits must be >= 0, got %d", ErrInvalidValue, c.MinSwapinCommits))
	}
	if c.MinSwapinCyc < 0 {
		errs = append(errs, fmt.Errorf("%w: min_swapin_cyc must be >= 0, got %d", ErrInvalidValue, c.MinSwapinCyc))
	}
	if c.BusAccessTime < 0 {
		errs = append(errs, fmt.Errorf("%w: bus_access_time must be >= 0, got %d", ErrInvalidValue, c.BusAccessTime))
	}
	if c.CtxCountHint < 0 {
		errs = append(errs, fmt.Errorf("%w: ctx_count_hint must be >= 0, got %d", ErrInvalidValue, c.CtxCountHint))
	}

	if _, err := intKeyedMap(c.StaticSched.Map); err != nil {
		errs = append(errs, fmt.Errorf("%w: static_sched.map: %w", ErrInvalidValue, err))
	}
	if _, err := intKeyedSliceMap(c.StaticAffin.Map); err != nil {
		errs = append(errs, fmt.Errorf("%w: static_affin.map: %w", ErrInvalidValue, err))
	}
	if _, err := intKeyedMap(c.MutableMap); err != nil {
		errs = append(errs, fmt.Errorf("%w: mutable_map: %w", ErrInvalidValue, err))
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrFailedToValidateConfig, joinErrs(errs))
}

// ToAppmgrConfig converts the TOML-shaped configuration into the
// appmgr.Config the Coordinator is built from.
func (c *Config) ToAppmgrConfig() (appmgr.Config, error) {
	staticSchedMap, err := intKeyedMap(c.StaticSched.Map)
	if err != nil {
		return appmgr.Config{}, err
	}
	staticAffinMap, err := intKeyedSliceMap(c.StaticAffin.Map)
	if err != nil {
		return appmgr.Config{}, err
	}
	mutableMapInit, err := intKeyedMap(c.MutableMap)
	if err != nil {
		return appmgr.Config{}, err
	}

	return appmgr.Config{
		Policy: policy.Config{
			SchedApp: c.SchedApp,
			SchedCtx: c.SchedCtx,
			Swap:     c.Swap,

			CschedDeductNonrun:    c.CschedDeductNonrun,
			SwapgateDeductNonrun:  c.SwapgateDeductNonrun,
			SwapgateDeductSwapout: c.SwapgateDeductSwapout,

			StaticSchedMap:         staticSchedMap,
			StaticAllowMissingApps: c.StaticSched.AllowMissingApps,
			StaticAffinMap:         staticAffinMap,
			StaticAffinForceSched:  c.StaticAffin.ForceSched,
			MutableMapInit:         mutableMapInit,
		},

		CtxCountHint: c.CtxCountHint,

		SwapSuppressGuess: c.SwapSuppressGuess,

		InstSpillFill:      c.InstSpillFill,
		InstSpillFillEarly: c.InstSpillFillEarly,
		SpillDirtyOnly:     c.SpillDirtyOnly,
		SpillGHR:           c.SpillGHR,
		SpillRetstackSize:  c.SpillRetstackSize,
		SpillDTLBSize:      c.SpillDTLBSize,
		RegsPerSFBlock:     c.RegsPerSFBlock,

		ThreadSwapinCyc:  c.ThreadSwapinCyc,
		ThreadSwapoutCyc: c.ThreadSwapoutCyc,
		MinSwapinCommits: c.MinSwapinCommits,
		MinSwapinCyc:     c.MinSwapinCyc,

		MigrateFillsAreFree: c.MigrateFillsAreFree,
		BusAccessTime:       c.BusAccessTime,
	}, nil
}

func intKeyedMap(m map[string]int) (map[int]int, error) {
	if len(m) == 0 {
		return nil, nil
	}
	out := make(map[int]int, len(m))
	for k, v := range m {
		id, err := strconv.Atoi(k)
		if err != nil {
			return nil, fmt.Errorf("key %q is not an integer app id: %w", k, err)
		}
		out[id] = v
	}
	return out, nil
}

func intKeyedSliceMap(m map[string][]int) (map[int][]int, error) {
	if len(m) == 0 {
		return nil, nil
	}
	out := make(map[int][]int, len(m))
	for k, v := range m {
		id, err := strconv.Atoi(k)
		if err != nil {
			return nil, fmt.Errorf("key %q is not an integer app id: %w", k, err)
		}
		cp := make([]int, len(v))
		copy(cp, v)
		out[id] = cp
	}
	return out, nil
}

// joinErrs concatenates validation errors into a single deterministic
// message, sorting the messages first so the combined text does not depend
// on map iteration order.
func joinErrs(errs []error) error {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	sort.Strings(msgs)
	combined := msgs[0]
	for _, m := range msgs[1:] {
		combined += "; " + m
	}
	return fmt.Errorf("%s", combined)
}
