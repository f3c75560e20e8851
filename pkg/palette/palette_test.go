package palette

import (
	"errors"
	"fmt"
	"image/color"
	"testing"

	"pgregory.net/rapid"
)

func TestAssign_FirstSeenFirstAssigned(t *testing.T) {
	a := NewAssigner(nil)
	for i, term := range []string{"a", "b", "c"} {
		c, err := a.Assign(term)
		if err != nil {
			t.Fatalf("Assign(%q): %v", term, err)
		}
		if c != Tableau10[i] {
			t.Errorf("Assign(%q) = %s, want %s", term, c, Tableau10[i])
		}
	}
	again, _ := a.Assign("a")
	if again != Tableau10[0] {
		t.Errorf("Assign is not idempotent: %s", again)
	}
	if a.Len() != 3 {
		t.Errorf("Len = %d, want 3", a.Len())
	}
}

func TestRelease_ReusedFirst(t *testing.T) {
	a := NewAssigner(nil)
	a.Assign("a")
	b, _ := a.Assign("b")
	a.Assign("c")

	if !a.Release("b") {
		t.Fatal("Release(b) returned false")
	}
	if got := a.Available()[0]; got != b {
		t.Errorf("front of pool = %s, want released %s", got, b)
	}
	d, _ := a.Assign("d")
	if d != b {
		t.Errorf("next assignment = %s, want reused %s", d, b)
	}
}

func TestRelease_Unknown(t *testing.T) {
	a := NewAssigner(nil)
	if a.Release("ghost") {
		t.Error("releasing an unassigned term should be a no-op")
	}
	if len(a.Available()) != len(Tableau10) {
		t.Errorf("pool grew to %d", len(a.Available()))
	}
}

func TestAssign_Exhausted(t *testing.T) {
	a := NewAssigner([]string{"#000000", "#ffffff"})
	a.Assign("a")
	a.Assign("b")
	_, err := a.Assign("c")
	if !errors.Is(err, ErrPaletteExhausted) {
		t.Fatalf("expected ErrPaletteExhausted, got %v", err)
	}
	a.Release("a")
	if _, err := a.Assign("c"); err != nil {
		t.Errorf("Assign after release: %v", err)
	}
}

func TestRemoveOnlyTerm_PoolFull(t *testing.T) {
	a := NewAssigner(nil)
	a.Assign("x")
	a.Release("x")
	if got := len(a.Available()); got != 10 {
		t.Errorf("pool size = %d, want 10", got)
	}
	if a.Len() != 0 {
		t.Errorf("Len = %d, want 0", a.Len())
	}
}

func TestReset(t *testing.T) {
	a := NewAssigner(nil)
	a.Assign("a")
	a.Assign("b")
	a.Release("a")
	a.Reset()
	if got := a.Available(); got[0] != Tableau10[0] || len(got) != 10 {
		t.Errorf("Reset did not restore palette order: %v", got)
	}
	if len(a.Terms()) != 0 {
		t.Errorf("Terms after Reset = %v", a.Terms())
	}
}

// No two live terms ever hold the same colour, and pool + live always
// partition the palette.
func TestAssigner_NoSharedColors(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := NewAssigner(nil)
		terms := []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k", "l"}
		steps := rapid.IntRange(1, 80).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			term := rapid.SampledFrom(terms).Draw(t, fmt.Sprintf("term%d", i))
			if rapid.Bool().Draw(t, fmt.Sprintf("add%d", i)) {
				_, err := a.Assign(term)
				if err != nil && !errors.Is(err, ErrPaletteExhausted) {
					t.Fatalf("unexpected error: %v", err)
				}
			} else {
				a.Release(term)
			}

			seen := map[string]string{}
			for tm, c := range a.Assignments() {
				if other, dup := seen[c]; dup {
					t.Fatalf("terms %q and %q share %s", tm, other, c)
				}
				seen[c] = tm
			}
			if a.Len()+len(a.Available()) != a.Cap() {
				t.Fatalf("live %d + pool %d != cap %d", a.Len(), len(a.Available()), a.Cap())
			}
		}
	})
}

func TestParseHex(t *testing.T) {
	c, err := ParseHex("#4e79a7")
	if err != nil {
		t.Fatal(err)
	}
	if c != (color.RGBA{0x4e, 0x79, 0xa7, 0xff}) {
		t.Errorf("ParseHex = %+v", c)
	}
	if Hex(c) != "#4e79a7" {
		t.Errorf("Hex round trip = %s", Hex(c))
	}
	short, err := ParseHex("#fff")
	if err != nil || short != (color.RGBA{255, 255, 255, 255}) {
		t.Errorf("short form = %+v, %v", short, err)
	}
	if _, err := ParseHex("blue"); err == nil {
		t.Error("expected error for named colour")
	}
}
