package stylus

import "github.com/holiman/uint256"

// Math implements the five 256-bit arithmetic hostios (spec.md §4.4:
// math_div/mod/pow/add_mod/mul_mod), each returning its result as a new
// 32-byte word. uint256.Int is the pack's own 256-bit word type (already a
// teacher dependency via evmapi's go-ethereum import graph), used here
// instead of math/big for the same reason the teacher reaches for it in
// its EVM interpreter: fixed-width, allocation-free arithmetic.
type Math struct{ env *Env }

func NewMath(env *Env) *Math { return &Math{env: env} }

func (m *Math) Div(a, b [32]byte) ([32]byte, error) {
	if err := m.env.charge("math_div", 0); err != nil {
		return [32]byte{}, err
	}
	x, y := uint256.NewInt(0).SetBytes(a[:]), uint256.NewInt(0).SetBytes(b[:])
	if y.IsZero() {
		return [32]byte{}, nil
	}
	return x.Div(x, y).Bytes32(), nil
}

func (m *Math) Mod(a, b [32]byte) ([32]byte, error) {
	if err := m.env.charge("math_mod", 0); err != nil {
		return [32]byte{}, err
	}
	x, y := uint256.NewInt(0).SetBytes(a[:]), uint256.NewInt(0).SetBytes(b[:])
	if y.IsZero() {
		return [32]byte{}, nil
	}
	return x.Mod(x, y).Bytes32(), nil
}

// Pow charges an additional per-byte surcharge for the exponent's
// significant length, per spec.md §4.4's "pow: per-byte cost of
// exponent".
func (m *Math) Pow(base, exp [32]byte) ([32]byte, error) {
	e := uint256.NewInt(0).SetBytes(exp[:])
	if err := m.env.charge("math_pow", uint64(byteLen(e))*3); err != nil {
		return [32]byte{}, err
	}
	b := uint256.NewInt(0).SetBytes(base[:])
	return b.Exp(b, e).Bytes32(), nil
}

func (m *Math) AddMod(a, b, n [32]byte) ([32]byte, error) {
	if err := m.env.charge("math_add_mod", 0); err != nil {
		return [32]byte{}, err
	}
	x, y, mod := uint256.NewInt(0).SetBytes(a[:]), uint256.NewInt(0).SetBytes(b[:]), uint256.NewInt(0).SetBytes(n[:])
	if mod.IsZero() {
		return [32]byte{}, nil
	}
	return x.AddMod(x, y, mod).Bytes32(), nil
}

func (m *Math) MulMod(a, b, n [32]byte) ([32]byte, error) {
	if err := m.env.charge("math_mul_mod", 0); err != nil {
		return [32]byte{}, err
	}
	x, y, mod := uint256.NewInt(0).SetBytes(a[:]), uint256.NewInt(0).SetBytes(b[:]), uint256.NewInt(0).SetBytes(n[:])
	if mod.IsZero() {
		return [32]byte{}, nil
	}
	return x.MulMod(x, y, mod).Bytes32(), nil
}

func byteLen(v *uint256.Int) int {
	bits := v.BitLen()
	return (bits + 7) / 8
}
