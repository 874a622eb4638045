package stylus

import (
	"testing"

	"github.com/holiman/uint256"
)

func newMathEnv() *Env {
	return &Env{Ink: &InkTracker{Left: 1_000_000}, Price: InkPrice{InkPerGas: 1}}
}

func TestMathDivModByZero(t *testing.T) {
	m := NewMath(newMathEnv())
	a := uint256.NewInt(10).Bytes32()
	zero := uint256.NewInt(0).Bytes32()

	got, err := m.Div(a, zero)
	if err != nil {
		t.Fatal(err)
	}
	if got != ([32]byte{}) {
		t.Fatalf("expected zero result dividing by zero, got %x", got)
	}

	got, err = m.Mod(a, zero)
	if err != nil {
		t.Fatal(err)
	}
	if got != ([32]byte{}) {
		t.Fatalf("expected zero result modding by zero, got %x", got)
	}
}

func TestMathPowChargesPerExponentByte(t *testing.T) {
	env := newMathEnv()
	m := NewMath(env)
	base := uint256.NewInt(2).Bytes32()
	exp := uint256.NewInt(10).Bytes32()

	got, err := m.Pow(base, exp)
	if err != nil {
		t.Fatal(err)
	}
	want := uint256.NewInt(1024).Bytes32()
	if got != want {
		t.Fatalf("2**10 = %x, want %x", got, want)
	}
	// math_pow base 20 plus 3 per exponent byte; 10 fits in one byte.
	if env.Ink.Left != 1_000_000-23 {
		t.Fatalf("ink left = %d, want %d", env.Ink.Left, 1_000_000-23)
	}
}

func TestMathAddModMulMod(t *testing.T) {
	m := NewMath(newMathEnv())
	a := uint256.NewInt(8).Bytes32()
	b := uint256.NewInt(9).Bytes32()
	n := uint256.NewInt(10).Bytes32()

	sum, err := m.AddMod(a, b, n)
	if err != nil {
		t.Fatal(err)
	}
	if sum != uint256.NewInt(7).Bytes32() {
		t.Fatalf("(8+9)%%10 = %x, want 7", sum)
	}

	prod, err := m.MulMod(a, b, n)
	if err != nil {
		t.Fatal(err)
	}
	if prod != uint256.NewInt(2).Bytes32() {
		t.Fatalf("(8*9)%%10 = %x, want 2", prod)
	}
}
