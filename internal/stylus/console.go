package stylus

import "fmt"

// The debug-only console surface (spec.md §4.4's `console_*`, `null_host`,
// `start/end_benchmark` row), compiled into a Stylus program only when
// Env.Debug is set -- release builds import none of these, matching the
// original's behavior of dropping them entirely outside its debug
// feature, per SPEC_FULL.md §C.5.
//
// Grounded on _examples/original_source/arbitrator/prover/src/print.rs.
type ConsoleSink func(string)

func (e *Env) ConsoleLogText(text []byte) {
	if !e.Debug {
		return
	}
	e.consoleWrite(string(text))
}

func (e *Env) ConsoleLogI32(v int32) {
	if !e.Debug {
		return
	}
	e.consoleWrite(fmt.Sprintf("%d", v))
}

func (e *Env) ConsoleLogI64(v int64) {
	if !e.Debug {
		return
	}
	e.consoleWrite(fmt.Sprintf("%d", v))
}

// NullHost is a no-op import satisfied only so a program compiled with
// debug imports still links when run outside a debug host.
func (e *Env) NullHost() {}

// StartBenchmark / EndBenchmark bracket a region for the debug host's own
// timing; they carry no ink cost and do nothing outside Debug mode.
func (e *Env) StartBenchmark() {
	if e.Debug {
		e.benchmarkDepth++
	}
}

func (e *Env) EndBenchmark() {
	if e.Debug && e.benchmarkDepth > 0 {
		e.benchmarkDepth--
	}
}

func (e *Env) consoleWrite(s string) {
	if e.Console != nil {
		e.Console(s)
	}
}
