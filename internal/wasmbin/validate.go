package wasmbin

import (
	"errors"
	"fmt"
	"strings"
)

// Validation errors, per spec.md §4.1 "Reject on:" list.
var (
	ErrInconsistentImportType = errors.New("wasmbin: inconsistent type signature for repeated import")
	ErrReexport               = errors.New("wasmbin: export name collides with an import name")
	ErrReservedPrefix         = errors.New("wasmbin: import/export uses reserved \"stylus\" prefix")
	ErrTooManyMemories        = errors.New("wasmbin: more than one memory")
	ErrMemoryTooLarge         = errors.New("wasmbin: minimum memory exceeds page limit")
	ErrNoFunctions            = errors.New("wasmbin: module has no functions")
	ErrUserStartFunc          = errors.New("wasmbin: user program may not declare a start function")
	ErrLimitExceeded          = errors.New("wasmbin: module exceeds an anti-DoS limit")
)

// Limits_ holds the anti-DoS limits applied to user (Stylus) programs, per
// spec.md §4.1. The replay program itself is not subject to these (it is
// a single, operator-controlled binary) but is subject to the general
// parse/feature rules enforced by Parse and the first half of Validate.
type Limits_ struct {
	MaxMemories        int
	MaxDatas           int
	MaxElements        int
	MaxExports         int
	MaxFunctions       int
	MaxGlobals         int
	MaxLocalsPerFunc   int
	MaxOpcodesPerBody  int
	MaxTableEntries    int
	MaxElementEntries  int
	MaxNameLen         int
	PageLimit          uint32
}

// DefaultUserLimits are the limits named in spec.md §4.1 for user programs.
func DefaultUserLimits() Limits_ {
	return Limits_{
		MaxMemories:       1,
		MaxDatas:          128,
		MaxElements:       128,
		MaxExports:        1024,
		MaxFunctions:      4096,
		MaxGlobals:        32768,
		MaxLocalsPerFunc:  348,
		MaxOpcodesPerBody: 65536,
		MaxTableEntries:   4096,
		MaxElementEntries: 4096,
		MaxNameLen:        512,
		PageLimit:         128, // conservative default footprint cap; overridable by callers
	}
}

// ValidateShared applies the rules common to both the replay program and
// user programs: consistent import signatures, no export/import name
// collisions, the reserved "stylus" import/export prefix, at most one
// memory, and a non-empty function set.
func ValidateShared(m *Module) error {
	importNames := map[string]bool{}
	importFuncSigByName := map[string]FunctionType{}
	for _, imp := range m.Imports {
		key := imp.Module + "\x00" + imp.Name
		if strings.HasPrefix(imp.Module, "stylus") || strings.HasPrefix(imp.Name, "stylus") {
			return fmt.Errorf("%w: import %s.%s", ErrReservedPrefix, imp.Module, imp.Name)
		}
		importNames[imp.Name] = true
		if imp.Kind == ImportFunc {
			ft := m.Types[imp.TypeIdx]
			if prev, ok := importFuncSigByName[key]; ok && !prev.Equal(ft) {
				return fmt.Errorf("%w: %s.%s", ErrInconsistentImportType, imp.Module, imp.Name)
			}
			importFuncSigByName[key] = ft
		}
	}
	for _, exp := range m.Exports {
		if strings.HasPrefix(exp.Name, "stylus") {
			return fmt.Errorf("%w: export %s", ErrReservedPrefix, exp.Name)
		}
		if importNames[exp.Name] {
			return fmt.Errorf("%w: %s", ErrReexport, exp.Name)
		}
	}
	if len(m.Memories) > 1 {
		return ErrTooManyMemories
	}
	if len(m.Functions) == 0 && m.NumImportedFuncs() == 0 {
		return ErrNoFunctions
	}
	return nil
}

// ValidateUserProgram additionally enforces the anti-DoS limits and the
// no-start-function rule that apply only to user (Stylus) programs, per
// spec.md §4.1.
func ValidateUserProgram(m *Module, lim Limits_) error {
	if err := ValidateShared(m); err != nil {
		return err
	}
	if m.HasStart {
		return ErrUserStartFunc
	}
	for _, mem := range m.Memories {
		if mem.Limits.Min > lim.PageLimit {
			return ErrMemoryTooLarge
		}
	}
	counts := map[string]int{
		"memories": len(m.Memories),
		"datas":    len(m.Datas),
		"elements": len(m.Elements),
		"exports":  len(m.Exports),
		"functions": len(m.Functions) + m.NumImportedFuncs(),
		"globals":  len(m.Globals),
	}
	limits := map[string]int{
		"memories":  lim.MaxMemories,
		"datas":     lim.MaxDatas,
		"elements":  lim.MaxElements,
		"exports":   lim.MaxExports,
		"functions": lim.MaxFunctions,
		"globals":   lim.MaxGlobals,
	}
	for k, v := range counts {
		if v > limits[k] {
			return fmt.Errorf("%w: %s count %d exceeds limit %d", ErrLimitExceeded, k, v, limits[k])
		}
	}
	for _, fn := range m.Functions {
		if len(fn.Locals) > lim.MaxLocalsPerFunc {
			return fmt.Errorf("%w: function has %d locals (limit %d)", ErrLimitExceeded, len(fn.Locals), lim.MaxLocalsPerFunc)
		}
		if len(fn.Body) > lim.MaxOpcodesPerBody {
			return fmt.Errorf("%w: function body has %d opcodes (limit %d)", ErrLimitExceeded, len(fn.Body), lim.MaxOpcodesPerBody)
		}
	}
	totalTableEntries := 0
	for _, t := range m.Tables {
		totalTableEntries += int(t.Limits.Min)
	}
	if totalTableEntries > lim.MaxTableEntries {
		return fmt.Errorf("%w: table initial entries %d exceeds limit %d", ErrLimitExceeded, totalTableEntries, lim.MaxTableEntries)
	}
	totalElemEntries := 0
	for _, e := range m.Elements {
		totalElemEntries += len(e.FuncIdxs)
	}
	if totalElemEntries > lim.MaxElementEntries {
		return fmt.Errorf("%w: element entries %d exceeds limit %d", ErrLimitExceeded, totalElemEntries, lim.MaxElementEntries)
	}
	for _, imp := range m.Imports {
		if len(imp.Name) > lim.MaxNameLen || len(imp.Module) > lim.MaxNameLen {
			return fmt.Errorf("%w: import name exceeds %d bytes", ErrLimitExceeded, lim.MaxNameLen)
		}
	}
	for _, exp := range m.Exports {
		if len(exp.Name) > lim.MaxNameLen {
			return fmt.Errorf("%w: export name exceeds %d bytes", ErrLimitExceeded, lim.MaxNameLen)
		}
	}
	return nil
}

// RequiredExports checks that a user program exports user_entrypoint(i32)->i32
// and a memory named "memory", per spec.md §6.
func RequiredExports(m *Module) error {
	haveEntry, haveMem := false, false
	for _, exp := range m.Exports {
		if exp.Kind == ImportFunc && exp.Name == "user_entrypoint" {
			ft := m.Types[m.FuncTypes[exp.Idx]]
			if len(ft.Params) == 1 && ft.Params[0] == ValI32 && len(ft.Results) == 1 && ft.Results[0] == ValI32 {
				haveEntry = true
			}
		}
		if exp.Kind == ImportMemory && exp.Name == "memory" {
			haveMem = true
		}
	}
	if !haveEntry {
		return errors.New("wasmbin: missing required export user_entrypoint(i32) -> i32")
	}
	if !haveMem {
		return errors.New("wasmbin: missing required memory export \"memory\"")
	}
	return nil
}

// AllowedImportModule reports whether mod is one of the import modules a
// guest may import from, per spec.md §6.
func AllowedImportModule(mod string) bool {
	switch mod {
	case "wavmio", "arbcompress", "programs", "console", "debug", "hooks",
		"wasi_snapshot_preview1", "env", "hostio":
		return true
	default:
		return false
	}
}
