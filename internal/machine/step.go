package machine

import "github.com/stepchain/wavm-prover/internal/wavm"

// PreimageResolver looks up a previously recorded preimage by its keccak
// hash, per spec.md §4.1's ReadPreImage operation. It never fails for a
// well-formed proof: the hash proven against is always one the prover
// already committed to resolving.
type PreimageResolver func(hash [32]byte) ([]byte, bool)

// InboxResolver returns the raw bytes of inbox message `position`, or
// false if no such message exists yet -- the caller is expected to have
// proven it up to the chain's current inbox head, at which point reading
// past it is the TooFar case rather than an error (spec.md §3.1, §4.1).
type InboxResolver func(position uint64) ([]byte, bool)

// Step executes exactly one WAVM instruction. Per spec.md's step-proof
// model, each call advances the machine by one instruction only; callers
// proving a dispute drive this in a loop, serializing a Proof (proof.go)
// before each call.
func (m *Machine) Step(preimages PreimageResolver, inbox InboxResolver) error {
	if m.Status != StatusRunning {
		return ErrAlreadyHalted
	}
	if m.Steps >= MaxSteps {
		return ErrTooManySteps
	}
	m.Steps++

	mod := m.CurrentModule()
	if m.FuncIdx >= uint32(len(mod.Functions)) {
		m.fail("function index out of range")
		return nil
	}
	fn := mod.Functions[m.FuncIdx]
	if m.PC >= uint64(len(fn.Code)) {
		m.fail("program counter out of range")
		return nil
	}
	ins := fn.Code[m.PC]
	m.PC++

	m.dispatch(ins, preimages, inbox)
	return nil
}

func (m *Machine) dispatch(ins wavm.Instruction, preimages PreimageResolver, inbox InboxResolver) {
	switch ins.Opcode {
	case wavm.OpUnreachable:
		m.fail("unreachable")

	case wavm.OpNop, wavm.OpInternalBlock, wavm.OpInternalLoop:
		// no-ops at the value-stack level; block/loop bookkeeping is
		// carried entirely by the BlockStack pushes the lowering stage
		// emits as separate Block/Loop markers where needed.

	case wavm.OpDrop:
		m.ValueStack.Pop()

	case wavm.OpSelect:
		cond := m.ValueStack.Pop()
		b := m.ValueStack.Pop()
		a := m.ValueStack.Pop()
		if cond.AsU32() != 0 {
			m.ValueStack.Push(a)
		} else {
			m.ValueStack.Push(b)
		}

	case wavm.OpLocalGet:
		frame := m.currentFrame()
		m.ValueStack.Push(frame.Locals[ins.ArgumentData])
	case wavm.OpLocalSet:
		frame := m.currentFrame()
		frame.Locals[ins.ArgumentData] = m.ValueStack.Pop()
	case wavm.OpGlobalGet:
		m.ValueStack.Push(m.CurrentModule().Globals[ins.ArgumentData])
	case wavm.OpGlobalSet:
		m.CurrentModule().Globals[ins.ArgumentData] = m.ValueStack.Pop()

	case wavm.OpI32Const:
		m.ValueStack.Push(I32(uint32(ins.ArgumentData)))
	case wavm.OpI64Const:
		m.ValueStack.Push(I64(ins.ArgumentData))

	case wavm.OpI32Load, wavm.OpI64Load,
		wavm.OpI32Load8S, wavm.OpI32Load8U, wavm.OpI32Load16S, wavm.OpI32Load16U,
		wavm.OpI64Load8S, wavm.OpI64Load8U, wavm.OpI64Load16S, wavm.OpI64Load16U,
		wavm.OpI64Load32S, wavm.OpI64Load32U,
		wavm.OpI32Store, wavm.OpI64Store,
		wavm.OpI32Store8, wavm.OpI32Store16, wavm.OpI64Store8, wavm.OpI64Store16, wavm.OpI64Store32:
		m.execMemOp(ins)

	case wavm.OpMemorySize:
		m.ValueStack.Push(I32(m.CurrentModule().Memory.Pages()))
	case wavm.OpMemoryGrow:
		delta := m.ValueStack.Pop().AsU32()
		prev, ok := m.CurrentModule().Memory.Grow(delta)
		if !ok {
			m.ValueStack.Push(I32(^uint32(0)))
			return
		}
		m.ValueStack.Push(I32(prev))

	case wavm.OpInternalEndBlock:
		m.BlockStack.Pop()
	case wavm.OpInternalEndBlockIf:
		if m.ValueStack.Peek().AsU32() == 0 {
			m.BlockStack.Pop()
		}
	case wavm.OpInternalArbJump:
		m.PC = ins.ArgumentData
	case wavm.OpInternalArbJumpIf:
		if m.ValueStack.Pop().AsU32() == 0 {
			m.PC = ins.ArgumentData
		}
	case wavm.OpInternalIsStackBoundary:
		v := m.ValueStack.Peek()
		if v.Type == TypeStackBoundary {
			m.ValueStack.Push(I32(1))
		} else {
			m.ValueStack.Push(I32(0))
		}

	case wavm.OpInternalMoveToInternal:
		m.InternalStack.Push(m.ValueStack.Pop())
	case wavm.OpInternalMoveFromInternal:
		m.ValueStack.Push(m.InternalStack.Pop())
	case wavm.OpInternalDup:
		m.ValueStack.Push(m.ValueStack.Peek())

	case wavm.OpCall:
		m.call(m.ModuleIdx, uint32(ins.ArgumentData))
	case wavm.OpInternalCrossModuleCall:
		targetModule := uint32(ins.ArgumentData >> 32)
		targetFunc := uint32(ins.ArgumentData)
		m.call(targetModule, targetFunc)
	case wavm.OpInternalCallerModuleInternalCall:
		if len(m.FrameStack.Frames) == 0 {
			m.fail("caller_module_internal_call with no caller frame")
			return
		}
		caller := m.FrameStack.Frames[len(m.FrameStack.Frames)-1]
		m.call(caller.ReturnModule, uint32(ins.ArgumentData))

	case wavm.OpReturn:
		m.doReturn()

	case wavm.OpInternalGetGlobalStateU64:
		idx := ins.ArgumentData
		if idx > 1 {
			m.fail("global state u64 index out of range")
			return
		}
		m.ValueStack.Push(I64(m.GlobalState.U64Vals[idx]))
	case wavm.OpInternalSetGlobalStateU64:
		idx := ins.ArgumentData
		if idx > 1 {
			m.fail("global state u64 index out of range")
			return
		}
		m.GlobalState.U64Vals[idx] = m.ValueStack.Pop().Payload
	case wavm.OpInternalGetGlobalStateBytes32:
		idx := ins.ArgumentData
		if idx > 1 {
			m.fail("global state bytes32 index out of range")
			return
		}
		b := m.GlobalState.Bytes32Vals[idx]
		m.ValueStack.Push(I64(beU64(b[24:32])))
		m.ValueStack.Push(I64(beU64(b[16:24])))
		m.ValueStack.Push(I64(beU64(b[8:16])))
		m.ValueStack.Push(I64(beU64(b[0:8])))
	case wavm.OpInternalSetGlobalStateBytes32:
		idx := ins.ArgumentData
		if idx > 1 {
			m.fail("global state bytes32 index out of range")
			return
		}
		var b [32]byte
		putBEU64(b[0:8], m.ValueStack.Pop().Payload)
		putBEU64(b[8:16], m.ValueStack.Pop().Payload)
		putBEU64(b[16:24], m.ValueStack.Pop().Payload)
		putBEU64(b[24:32], m.ValueStack.Pop().Payload)
		m.GlobalState.Bytes32Vals[idx] = b

	case wavm.OpInternalReadPreImage:
		// Stack (top to bottom): offset, ptr. ptr points at the 32-byte
		// hash to resolve; the preimage bytes starting at `offset` are
		// written back over that same 32-byte window, per
		// original_source/arbitrator/prover/src/machine.rs's ReadPreImage.
		offset := m.ValueStack.Pop().AsU32()
		ptr := m.ValueStack.Pop().AsU32()
		hashBytes, ok := m.CurrentModule().Memory.Load(ptr, 32)
		if !ok {
			m.fail("read_pre_image: out of bounds hash pointer")
			return
		}
		var hash [32]byte
		copy(hash[:], hashBytes)
		data, ok := preimages(hash)
		if !ok {
			m.fail("preimage not available")
			return
		}
		start := min(int(offset), len(data))
		end := min(start+32, len(data))
		if !m.CurrentModule().Memory.Store(ptr, data[start:end]) {
			m.fail("read_pre_image: failed to write back previously read memory")
			return
		}
		m.ValueStack.Push(I32(uint32(end - start)))

	case wavm.OpInternalReadInboxMessage:
		// Stack (top to bottom): offset, ptr, msg_num.
		offset := m.ValueStack.Pop().AsU32()
		ptr := m.ValueStack.Pop().AsU32()
		position := m.ValueStack.Pop().Payload
		data, ok := inbox(position)
		if !ok {
			m.Status = StatusTooFar
			return
		}
		start := min(int(offset), len(data))
		end := min(start+32, len(data))
		if !m.CurrentModule().Memory.Store(ptr, data[start:end]) {
			m.fail("read_inbox_message: out of bounds pointer")
			return
		}
		m.ValueStack.Push(I32(uint32(end - start)))

	case wavm.OpInternalHaltAndSetFinished:
		m.Status = StatusFinished

	// The programs.* scheduler surface (spec.md §4.3): linking/unlinking
	// a child module and switching execution into/out of it are, from
	// the proving interpreter's point of view, just more native calls --
	// the attached HostDispatcher (internal/jit's Executor, backed by
	// internal/scheduler) maintains the child stack and its mailbox.
	case wavm.OpInternalLinkModule:
		m.dispatchScheduler("link_module", 4, 1)
	case wavm.OpInternalUnlinkModule:
		m.dispatchScheduler("unlink_module", 0, 0)
	case wavm.OpInternalNewCoThread:
		m.dispatchScheduler("new_cothread", 1, 1)
	case wavm.OpInternalPopCoThread:
		m.dispatchScheduler("pop_cothread", 0, 0)
	case wavm.OpInternalSwitchThread:
		m.dispatchScheduler("switch_thread", 1, 1)

	default:
		m.execArith(ins)
	}
}

func (m *Machine) currentFrame() *Frame {
	if len(m.FrameStack.Frames) == 0 {
		return &Frame{}
	}
	return &m.FrameStack.Frames[len(m.FrameStack.Frames)-1]
}

func (m *Machine) call(moduleIdx, funcIdx uint32) {
	if nf, ok := m.Modules[moduleIdx].nativeFunc(funcIdx); ok {
		// Native calls are synchronous leaves: no frame, no PC change --
		// the caller's next instruction runs immediately after, exactly
		// as if this were a cheap builtin rather than a cross-module jump.
		m.callNative(nf)
		return
	}
	m.FrameStack.Push(Frame{ReturnModule: m.ModuleIdx, ReturnFunction: m.FuncIdx, ReturnPC: m.PC})
	m.ValueStack.Push(StackBoundary())
	m.ModuleIdx = moduleIdx
	m.FuncIdx = funcIdx
	m.PC = 0
}

func (m *Machine) doReturn() {
	if len(m.FrameStack.Frames) == 0 {
		m.fail("return with empty frame stack")
		return
	}
	frame := m.FrameStack.Pop()
	m.ModuleIdx = frame.ReturnModule
	m.FuncIdx = frame.ReturnFunction
	m.PC = frame.ReturnPC
}

func beU64(b []byte) uint64 {
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v
}

func putBEU64(b []byte, v uint64) {
	for i := len(b) - 1; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
}
