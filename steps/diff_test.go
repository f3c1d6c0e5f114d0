package steps

import "testing"

func named(ids ...string) Sequence {
	seq := make(Sequence, len(ids))
	for i, id := range ids {
		seq[i] = Step{ID: id, Source: "op:" + id}
	}
	return seq
}

func tracked(seq Sequence) []*TrackedEntry {
	entries := make([]*TrackedEntry, len(seq))
	for i, st := range seq {
		entries[i] = newEntry(st)
	}
	return entries
}

func TestDiff(t *testing.T) {
	tests := []struct {
		name       string
		old, next  Sequence
		wantPrefix int
		wantSuffix int
	}{
		{"both empty", named(), named(), 0, 0},
		{"initial", named(), named("A", "B"), 0, 0},
		{"cleared", named("A", "B"), named(), 0, 0},
		{"tail edit", named("A", "B", "C"), named("A", "B", "D"), 2, 0},
		{"middle edit", named("A", "B", "C"), named("A", "X", "C"), 1, 1},
		{"head edit", named("A", "B", "C"), named("X", "B", "C"), 0, 2},
		{"append", named("A", "B"), named("A", "B", "C"), 2, 0},
		{"prepend", named("A", "B"), named("X", "A", "B"), 0, 2},
		{"truncate", named("A", "B", "C"), named("A", "B"), 2, 0},
		{"disjoint", named("A", "B"), named("X", "Y"), 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, policy := range []OverlapPolicy{AllowOverlap, ClampOverlap} {
				got := Diff(tracked(tt.old), tt.next, policy)
				if got.UnchangedPrefix != tt.wantPrefix || got.UnchangedSuffix != tt.wantSuffix {
					t.Errorf("%s: expected prefix=%d suffix=%d, got prefix=%d suffix=%d",
						policy, tt.wantPrefix, tt.wantSuffix, got.UnchangedPrefix, got.UnchangedSuffix)
				}
			}
		})
	}
}

func TestDiff_Overlap(t *testing.T) {
	old := tracked(named("A", "B", "A", "B"))
	next := named("A", "B")

	t.Run("allow keeps raw scans", func(t *testing.T) {
		got := Diff(old, next, AllowOverlap)
		if got.UnchangedPrefix != 2 || got.UnchangedSuffix != 2 || got.RawSuffix != 2 {
			t.Errorf("expected 2/2/2, got %+v", got)
		}
	})

	t.Run("clamp bounds prefix plus suffix", func(t *testing.T) {
		got := Diff(old, next, ClampOverlap)
		if got.UnchangedPrefix != 2 || got.UnchangedSuffix != 0 {
			t.Errorf("expected prefix=2 suffix=0, got %+v", got)
		}
		if got.RawSuffix != 2 {
			t.Errorf("expected raw suffix 2, got %d", got.RawSuffix)
		}
	})

	t.Run("identical sequences", func(t *testing.T) {
		seq := named("A", "B", "C")
		allow := Diff(tracked(seq), seq, AllowOverlap)
		if allow.UnchangedPrefix != 3 || allow.UnchangedSuffix != 3 {
			t.Errorf("allow: expected 3/3, got %+v", allow)
		}
		clamp := Diff(tracked(seq), seq, ClampOverlap)
		if clamp.UnchangedPrefix != 3 || clamp.UnchangedSuffix != 0 {
			t.Errorf("clamp: expected 3/0, got %+v", clamp)
		}
	})
}

func TestDiff_IgnoresState(t *testing.T) {
	old := tracked(named("A", "B"))
	old[0].State = StepState{Kind: Ran, Result: "x"}
	old[1].State = StepState{Kind: Undone}

	got := Diff(old, named("A", "B"), AllowOverlap)
	if got.UnchangedPrefix != 2 {
		t.Errorf("expected prefix 2, got %d", got.UnchangedPrefix)
	}
}

func TestParseOverlapPolicy(t *testing.T) {
	for _, tt := range []struct {
		in   string
		want OverlapPolicy
		ok   bool
	}{
		{"", AllowOverlap, true},
		{"allow", AllowOverlap, true},
		{"clamp", ClampOverlap, true},
		{"bogus", AllowOverlap, false},
	} {
		got, ok := ParseOverlapPolicy(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseOverlapPolicy(%q) = %s, %v; expected %s, %v", tt.in, got, ok, tt.want, tt.ok)
		}
		if ok && tt.in != "" && got.String() != tt.in {
			t.Errorf("expected %q to round-trip, got %q", tt.in, got.String())
		}
	}
}
