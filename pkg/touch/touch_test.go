package touch

import "testing"

func TestParseKind(t *testing.T) {
	cases := map[string]Kind{
		"down": Down,
		"DOWN": Down,
		" m ":  Move,
		"up":   Up,
		"u":    Up,
	}
	for in, want := range cases {
		got, err := ParseKind(in)
		if err != nil {
			t.Fatalf("ParseKind(%q): %v", in, err)
		}
		if got != want {
			t.Errorf("ParseKind(%q) = %v, want %v", in, got, want)
		}
	}
	if _, err := ParseKind("press"); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestKindText(t *testing.T) {
	var k Kind
	if err := k.UnmarshalText([]byte("move")); err != nil {
		t.Fatalf("UnmarshalText: %v", err)
	}
	if k != Move {
		t.Fatalf("expected Move, got %v", k)
	}
	b, err := Up.MarshalText()
	if err != nil || string(b) != "up" {
		t.Fatalf("MarshalText = %q, %v", b, err)
	}
	if _, err := Kind(9).MarshalText(); err == nil {
		t.Error("expected error for out-of-range kind")
	}
}

func TestActionString(t *testing.T) {
	a := Action{Pointer: 0, Position: Point{X: 100, Y: 200}, Kind: Down}
	if got := a.String(); got != "down@(100,200)/slot0" {
		t.Errorf("unexpected action string %q", got)
	}
}
