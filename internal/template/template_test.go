package template

import (
	"errors"
	"strings"
	"testing"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry()
	if err := r.Value("name", "clip"); err != nil {
		t.Fatalf("Value: %v", err)
	}
	if err := r.Register("upper", strings.ToUpper); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.Value("braces", "{name}"); err != nil {
		t.Fatalf("Value: %v", err)
	}
	return r
}

func TestExpand(t *testing.T) {
	r := newTestRegistry(t)

	tests := []struct {
		name    string
		pattern string
		want    string
	}{
		{"no tokens", "plain.gif", "plain.gif"},
		{"single token", "{name}.gif", "clip.gif"},
		{"repeated token", "{name}/{name}", "clip/clip"},
		{"argument", "{upper:abc}", "ABC"},
		{"argument trimmed", "{upper:  abc  }", "ABC"},
		{"split on first colon", "{upper:a:b}", "A:B"},
		{"empty argument", "{upper:}", ""},
		{"unknown token kept", "{name}_{invalid}.gif", "clip_{invalid}.gif"},
		{"unknown token with argument kept", "{nope:3}", "{nope:3}"},
		{"no recursion", "{braces}", "{name}"},
		{"non greedy", "{name}}{name}", "clip}clip"},
		{"unbalanced open", "{{name}", "{{name}"},
		{"empty braces", "{}", "{}"},
		{"empty pattern", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Expand(tt.pattern, r)
			if got != tt.want {
				t.Errorf("Expand(%q) = %q, want %q", tt.pattern, got, tt.want)
			}
		})
	}
}

func TestExpandNilRegistryKeepsTokens(t *testing.T) {
	if got := Expand("{a}-{b:c}", nil); got != "{a}-{b:c}" {
		t.Errorf("Expand with nil registry = %q", got)
	}
}

func TestScan(t *testing.T) {
	tokens := Scan("x{a}y{b: 1 }z")
	if len(tokens) != 2 {
		t.Fatalf("Scan returned %d tokens, want 2", len(tokens))
	}

	if tokens[0].Name != "a" || tokens[0].Arg != "" || tokens[0].Start != 1 || tokens[0].End != 4 {
		t.Errorf("first token = %+v", tokens[0])
	}
	if tokens[1].Name != "b" || tokens[1].Arg != "1" || tokens[1].Raw != "{b: 1 }" {
		t.Errorf("second token = %+v", tokens[1])
	}
}

func TestResolve(t *testing.T) {
	r := newTestRegistry(t)

	matched := Resolve(Token{Raw: "{name}", Name: "name"}, r)
	if matched.Kind != Matched || matched.Text != "clip" {
		t.Errorf("Resolve(name) = %+v", matched)
	}

	unmatched := Resolve(Token{Raw: "{missing:1}", Name: "missing", Arg: "1"}, r)
	if unmatched.Kind != Unmatched || unmatched.Text != "{missing:1}" {
		t.Errorf("Resolve(missing) = %+v", unmatched)
	}
	if unmatched.Kind.String() != "unmatched" || matched.Kind.String() != "matched" {
		t.Errorf("unexpected Kind strings %q %q", unmatched.Kind, matched.Kind)
	}
}

func TestPlaceholders(t *testing.T) {
	got := Placeholders("{basename}/{uuid}_{date:YYYY}_{uuid}.{ext}")
	want := []string{"basename", "uuid", "date", "ext"}
	if len(got) != len(want) {
		t.Fatalf("Placeholders = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Placeholders[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestRegistryFreeze(t *testing.T) {
	r := NewRegistry()
	if err := r.Value("a", "1"); err != nil {
		t.Fatalf("Value before freeze: %v", err)
	}

	r.Freeze()
	if !r.Frozen() {
		t.Fatal("expected registry to be frozen")
	}

	err := r.Value("b", "2")
	if !errors.Is(err, ErrRegistryFrozen) {
		t.Fatalf("Value after freeze error = %v, want ErrRegistryFrozen", err)
	}
	if _, ok := r.Lookup("b"); ok {
		t.Error("frozen registry accepted a new entry")
	}
	if got := Expand("{a}{b}", r); got != "1{b}" {
		t.Errorf("Expand on frozen registry = %q", got)
	}
}

func TestRegistryRejectsNilReplacer(t *testing.T) {
	if err := NewRegistry().Register("x", nil); err == nil {
		t.Error("expected error for nil replacer")
	}
}

func TestRegistryNames(t *testing.T) {
	r := newTestRegistry(t)
	names := r.Names()
	want := []string{"braces", "name", "upper"}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("Names()[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}
