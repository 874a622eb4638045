package wasmbin

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Parse errors. Build-time errors per spec.md §7 are returned synchronously
// and no Module/Machine is ever constructed.
var (
	ErrBadMagic         = errors.New("wasmbin: bad magic bytes")
	ErrBadVersion       = errors.New("wasmbin: unsupported binary version")
	ErrTruncated        = errors.New("wasmbin: truncated input")
	ErrBadLEB           = errors.New("wasmbin: malformed LEB128 integer")
	ErrBadSection       = errors.New("wasmbin: malformed section")
	ErrDuplicateSection = errors.New("wasmbin: duplicate non-custom section")
	ErrSectionOrder     = errors.New("wasmbin: sections out of order")
	ErrBadOpcode        = errors.New("wasmbin: unrecognized or disallowed opcode")
)

const (
	wasmMagic   = 0x6D736100
	wasmVersion = 1
)

type reader struct {
	buf []byte
	pos int
}

func (r *reader) remaining() int { return len(r.buf) - r.pos }

func (r *reader) byte() (byte, error) {
	if r.remaining() < 1 {
		return 0, ErrTruncated
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

func (r *reader) bytesN(n uint32) ([]byte, error) {
	if uint32(r.remaining()) < n {
		return nil, ErrTruncated
	}
	b := r.buf[r.pos : r.pos+int(n)]
	r.pos += int(n)
	return b, nil
}

func (r *reader) u32le() (uint32, error) {
	b, err := r.bytesN(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// uleb reads an unsigned LEB128 value up to 64 bits.
func (r *reader) uleb() (uint64, error) {
	var result uint64
	var shift uint
	for {
		b, err := r.byte()
		if err != nil {
			return 0, err
		}
		if shift >= 64 {
			return 0, ErrBadLEB
		}
		result |= uint64(b&0x7F) << shift
		if b&0x80 == 0 {
			return result, nil
		}
		shift += 7
	}
}

// sleb reads a signed LEB128 value up to 64 bits.
func (r *reader) sleb() (int64, error) {
	var result int64
	var shift uint
	var b byte
	var err error
	for {
		b, err = r.byte()
		if err != nil {
			return 0, err
		}
		result |= int64(b&0x7F) << shift
		shift += 7
		if b&0x80 == 0 {
			break
		}
		if shift >= 64 {
			return 0, ErrBadLEB
		}
	}
	if shift < 64 && b&0x40 != 0 {
		result |= -1 << shift
	}
	return result, nil
}

func (r *reader) u32() (uint32, error) {
	v, err := r.uleb()
	if err != nil {
		return 0, err
	}
	if v > math.MaxUint32 {
		return 0, ErrBadLEB
	}
	return uint32(v), nil
}

func (r *reader) valtype() (ValType, error) {
	b, err := r.byte()
	if err != nil {
		return 0, err
	}
	switch ValType(b) {
	case ValI32, ValI64, ValF32, ValF64, ValFuncRef:
		return ValType(b), nil
	default:
		return 0, fmt.Errorf("%w: valtype %#x", ErrBadSection, b)
	}
}

func (r *reader) name() (string, error) {
	n, err := r.u32()
	if err != nil {
		return "", err
	}
	b, err := r.bytesN(n)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *reader) limits() (Limits, error) {
	flag, err := r.byte()
	if err != nil {
		return Limits{}, err
	}
	min, err := r.u32()
	if err != nil {
		return Limits{}, err
	}
	l := Limits{Min: min}
	if flag == 1 {
		max, err := r.u32()
		if err != nil {
			return Limits{}, err
		}
		l.Max = max
		l.HasMax = true
	} else if flag != 0 {
		return Limits{}, fmt.Errorf("%w: bad limits flag %d", ErrBadSection, flag)
	}
	return l, nil
}

// Parse decodes a WASM binary module into an AST, enforcing the feature
// subset of spec.md §4.1 ("Parse & validate"). It does not run the
// anti-DoS limit checks or the user-program-only restrictions; call
// Validate for those, since the limits differ for the replay program vs.
// user (Stylus) programs.
func Parse(b []byte) (*Module, error) {
	r := &reader{buf: b}
	magic, err := r.u32le()
	if err != nil {
		return nil, err
	}
	if magic != wasmMagic {
		return nil, ErrBadMagic
	}
	version, err := r.u32le()
	if err != nil {
		return nil, err
	}
	if version != wasmVersion {
		return nil, ErrBadVersion
	}

	m := &Module{Names: NameSection{FuncNames: map[uint32]string{}}}
	var seen [13]bool
	var lastNonCustom byte = 0
	var pendingCodeBodies [][]byte
	var pendingLocalDecls [][]ValType

	for r.remaining() > 0 {
		id, err := r.byte()
		if err != nil {
			return nil, err
		}
		size, err := r.u32()
		if err != nil {
			return nil, err
		}
		payload, err := r.bytesN(size)
		if err != nil {
			return nil, err
		}
		if id == 0 {
			if err := parseCustomSection(m, payload); err != nil {
				return nil, err
			}
			continue
		}
		if id > 12 {
			return nil, fmt.Errorf("%w: id %d", ErrBadSection, id)
		}
		if id < lastNonCustom {
			return nil, ErrSectionOrder
		}
		if seen[id] {
			return nil, ErrDuplicateSection
		}
		seen[id] = true
		lastNonCustom = id

		sr := &reader{buf: payload}
		switch id {
		case 1: // type
			if err := parseTypeSection(sr, m); err != nil {
				return nil, err
			}
		case 2: // import
			if err := parseImportSection(sr, m); err != nil {
				return nil, err
			}
		case 3: // function
			if err := parseFunctionSection(sr, m); err != nil {
				return nil, err
			}
		case 4: // table
			if err := parseTableSection(sr, m); err != nil {
				return nil, err
			}
		case 5: // memory
			if err := parseMemorySection(sr, m); err != nil {
				return nil, err
			}
		case 6: // global
			if err := parseGlobalSection(sr, m); err != nil {
				return nil, err
			}
		case 7: // export
			if err := parseExportSection(sr, m); err != nil {
				return nil, err
			}
		case 8: // start
			idx, err := sr.u32()
			if err != nil {
				return nil, err
			}
			m.StartFunc = idx
			m.HasStart = true
		case 9: // element
			if err := parseElementSection(sr, m); err != nil {
				return nil, err
			}
		case 10: // code
			bodies, locals, err := parseCodeSectionRaw(sr)
			if err != nil {
				return nil, err
			}
			pendingCodeBodies = bodies
			pendingLocalDecls = locals
		case 11: // data
			if err := parseDataSection(sr, m); err != nil {
				return nil, err
			}
		case 12: // datacount
			n, err := sr.u32()
			if err != nil {
				return nil, err
			}
			m.DataCount = n
			m.HasDataCnt = true
		}
	}

	if len(pendingCodeBodies) > 0 {
		if len(pendingCodeBodies) != len(m.FuncTypes)-m.NumImportedFuncs() {
			return nil, fmt.Errorf("%w: code/function section count mismatch", ErrBadSection)
		}
		for i, body := range pendingCodeBodies {
			ops, err := parseOperators(body)
			if err != nil {
				return nil, err
			}
			m.Functions = append(m.Functions, Function{
				TypeIdx: m.FuncTypes[m.NumImportedFuncs()+i],
				Locals:  pendingLocalDecls[i],
				Body:    ops,
			})
		}
	}
	return m, nil
}

func parseTypeSection(r *reader, m *Module) error {
	n, err := r.u32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < n; i++ {
		tag, err := r.byte()
		if err != nil {
			return err
		}
		if tag != 0x60 {
			return fmt.Errorf("%w: type tag %#x", ErrBadSection, tag)
		}
		np, err := r.u32()
		if err != nil {
			return err
		}
		params := make([]ValType, np)
		for j := range params {
			if params[j], err = r.valtype(); err != nil {
				return err
			}
		}
		nr, err := r.u32()
		if err != nil {
			return err
		}
		results := make([]ValType, nr)
		for j := range results {
			if results[j], err = r.valtype(); err != nil {
				return err
			}
		}
		m.Types = append(m.Types, FunctionType{Params: params, Results: results})
	}
	return nil
}

func parseImportSection(r *reader, m *Module) error {
	n, err := r.u32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < n; i++ {
		mod, err := r.name()
		if err != nil {
			return err
		}
		name, err := r.name()
		if err != nil {
			return err
		}
		kind, err := r.byte()
		if err != nil {
			return err
		}
		imp := Import{Module: mod, Name: name, Kind: ImportKind(kind)}
		switch ImportKind(kind) {
		case ImportFunc:
			idx, err := r.u32()
			if err != nil {
				return err
			}
			imp.TypeIdx = idx
			m.FuncTypes = append(m.FuncTypes, idx)
		case ImportTable:
			et, err := r.valtype()
			if err != nil {
				return err
			}
			lim, err := r.limits()
			if err != nil {
				return err
			}
			imp.TableLimits = lim
			_ = et
		case ImportMemory:
			lim, err := r.limits()
			if err != nil {
				return err
			}
			imp.MemLimits = lim
		case ImportGlobal:
			gt, err := r.valtype()
			if err != nil {
				return err
			}
			mut, err := r.byte()
			if err != nil {
				return err
			}
			imp.GlobalType = gt
			imp.GlobalMutable = mut == 1
		default:
			return fmt.Errorf("%w: import kind %d", ErrBadSection, kind)
		}
		m.Imports = append(m.Imports, imp)
	}
	return nil
}

func parseFunctionSection(r *reader, m *Module) error {
	n, err := r.u32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < n; i++ {
		idx, err := r.u32()
		if err != nil {
			return err
		}
		m.FuncTypes = append(m.FuncTypes, idx)
	}
	return nil
}

func parseTableSection(r *reader, m *Module) error {
	n, err := r.u32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < n; i++ {
		et, err := r.valtype()
		if err != nil {
			return err
		}
		lim, err := r.limits()
		if err != nil {
			return err
		}
		m.Tables = append(m.Tables, Table{ElemType: et, Limits: lim})
	}
	return nil
}

func parseMemorySection(r *reader, m *Module) error {
	n, err := r.u32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < n; i++ {
		lim, err := r.limits()
		if err != nil {
			return err
		}
		m.Memories = append(m.Memories, Memory{Limits: lim})
	}
	return nil
}

// constExpr evaluates a restricted constant expression: a single const op
// (or global.get referencing an already-resolved import global) followed by
// `end`. This matches the feature subset in spec.md §4.1.
func constExpr(r *reader, m *Module) (uint64, ValType, error) {
	op, err := r.byte()
	if err != nil {
		return 0, 0, err
	}
	var val uint64
	var vt ValType
	switch Opcode(op) {
	case OpI32Const:
		v, err := r.sleb()
		if err != nil {
			return 0, 0, err
		}
		val, vt = uint64(uint32(int32(v))), ValI32
	case OpI64Const:
		v, err := r.sleb()
		if err != nil {
			return 0, 0, err
		}
		val, vt = uint64(v), ValI64
	case OpF32Const:
		b, err := r.bytesN(4)
		if err != nil {
			return 0, 0, err
		}
		val, vt = uint64(binary.LittleEndian.Uint32(b)), ValF32
	case OpF64Const:
		b, err := r.bytesN(8)
		if err != nil {
			return 0, 0, err
		}
		val, vt = binary.LittleEndian.Uint64(b), ValF64
	case OpGlobalGet:
		idx, err := r.u32()
		if err != nil {
			return 0, 0, err
		}
		if int(idx) >= len(m.Globals)+countImportedGlobals(m) {
			return 0, 0, fmt.Errorf("%w: global.get index out of range in const expr", ErrBadSection)
		}
		// Only imported globals may be referenced (forward-declared
		// module-defined globals cannot be, per the WASM MVP rule).
		val, vt, err = resolveImportedGlobalConst(m, idx)
		if err != nil {
			return 0, 0, err
		}
	default:
		return 0, 0, fmt.Errorf("%w: const expr opcode %#x", ErrBadSection, op)
	}
	end, err := r.byte()
	if err != nil {
		return 0, 0, err
	}
	if Opcode(end) != OpEnd {
		return 0, 0, fmt.Errorf("%w: const expr missing end", ErrBadSection)
	}
	return val, vt, nil
}

func countImportedGlobals(m *Module) int {
	n := 0
	for _, imp := range m.Imports {
		if imp.Kind == ImportGlobal {
			n++
		}
	}
	return n
}

func resolveImportedGlobalConst(m *Module, idx uint32) (uint64, ValType, error) {
	i := uint32(0)
	for _, imp := range m.Imports {
		if imp.Kind != ImportGlobal {
			continue
		}
		if i == idx {
			// Imported globals have no statically known value; this
			// substrate only accepts them when their value is supplied
			// out-of-band at module-build time (library modules). We
			// record the type and leave the value for the caller to
			// patch in via Module.Globals before use.
			return 0, imp.GlobalType, nil
		}
		i++
	}
	return 0, 0, fmt.Errorf("%w: global.get references non-import index %d", ErrBadSection, idx)
}

func parseGlobalSection(r *reader, m *Module) error {
	n, err := r.u32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < n; i++ {
		gt, err := r.valtype()
		if err != nil {
			return err
		}
		mut, err := r.byte()
		if err != nil {
			return err
		}
		val, _, err := constExpr(r, m)
		if err != nil {
			return err
		}
		m.Globals = append(m.Globals, Global{Type: gt, Mutable: mut == 1, Init: val})
	}
	return nil
}

func parseExportSection(r *reader, m *Module) error {
	n, err := r.u32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < n; i++ {
		name, err := r.name()
		if err != nil {
			return err
		}
		kind, err := r.byte()
		if err != nil {
			return err
		}
		idx, err := r.u32()
		if err != nil {
			return err
		}
		m.Exports = append(m.Exports, Export{Name: name, Kind: ExportKind(kind), Idx: idx})
	}
	return nil
}

func parseElementSection(r *reader, m *Module) error {
	n, err := r.u32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < n; i++ {
		flags, err := r.u32()
		if err != nil {
			return err
		}
		if flags != 0 {
			return fmt.Errorf("%w: only active element segments (mode 0) are supported", ErrBadSection)
		}
		tableIdx := uint32(0)
		offVal, _, err := constExpr(r, m)
		if err != nil {
			return err
		}
		cnt, err := r.u32()
		if err != nil {
			return err
		}
		funcs := make([]uint32, cnt)
		for j := range funcs {
			if funcs[j], err = r.u32(); err != nil {
				return err
			}
		}
		m.Elements = append(m.Elements, ElementSegment{
			TableIdx: tableIdx,
			Offset:   uint32(offVal),
			FuncIdxs: funcs,
		})
	}
	return nil
}

func parseDataSection(r *reader, m *Module) error {
	n, err := r.u32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < n; i++ {
		flags, err := r.u32()
		if err != nil {
			return err
		}
		if flags != 0 {
			return fmt.Errorf("%w: only active data segments (mode 0) are supported", ErrBadSection)
		}
		offVal, _, err := constExpr(r, m)
		if err != nil {
			return err
		}
		sz, err := r.u32()
		if err != nil {
			return err
		}
		data, err := r.bytesN(sz)
		if err != nil {
			return err
		}
		cp := make([]byte, len(data))
		copy(cp, data)
		m.Datas = append(m.Datas, DataSegment{MemIdx: 0, Offset: uint32(offVal), Bytes: cp})
	}
	return nil
}

// parseCodeSectionRaw splits the code section into per-function (locals,
// body-bytes) pairs without decoding operators yet; the caller decodes each
// body afterwards with parseOperators, which needs only the body bytes.
func parseCodeSectionRaw(r *reader) ([][]byte, [][]ValType, error) {
	n, err := r.u32()
	if err != nil {
		return nil, nil, err
	}
	bodies := make([][]byte, n)
	localsList := make([][]ValType, n)
	for i := uint32(0); i < n; i++ {
		size, err := r.u32()
		if err != nil {
			return nil, nil, err
		}
		body, err := r.bytesN(size)
		if err != nil {
			return nil, nil, err
		}
		fr := &reader{buf: body}
		nDecls, err := fr.u32()
		if err != nil {
			return nil, nil, err
		}
		var locals []ValType
		for d := uint32(0); d < nDecls; d++ {
			cnt, err := fr.u32()
			if err != nil {
				return nil, nil, err
			}
			vt, err := fr.valtype()
			if err != nil {
				return nil, nil, err
			}
			for c := uint32(0); c < cnt; c++ {
				locals = append(locals, vt)
			}
		}
		bodies[i] = fr.buf[fr.pos:]
		localsList[i] = locals
	}
	return bodies, localsList, nil
}

func parseCustomSection(m *Module, payload []byte) error {
	r := &reader{buf: payload}
	name, err := r.name()
	if err != nil {
		// Malformed custom sections are tolerated (they are not
		// semantically significant); skip silently.
		return nil
	}
	if name != "name" {
		return nil
	}
	for r.remaining() > 0 {
		subID, err := r.byte()
		if err != nil {
			return nil
		}
		size, err := r.u32()
		if err != nil {
			return nil
		}
		sub, err := r.bytesN(size)
		if err != nil {
			return nil
		}
		if subID == 0 { // module name
			sr := &reader{buf: sub}
			if n, err := sr.name(); err == nil {
				m.Names.ModuleName = n
			}
		} else if subID == 1 { // function names
			sr := &reader{buf: sub}
			cnt, err := sr.u32()
			if err != nil {
				continue
			}
			for i := uint32(0); i < cnt; i++ {
				idx, err := sr.u32()
				if err != nil {
					break
				}
				nm, err := sr.name()
				if err != nil {
					break
				}
				if len(nm) > 0 {
					m.Names.FuncNames[idx] = nm
				}
			}
		}
	}
	return nil
}
