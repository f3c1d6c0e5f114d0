package steps

// OverlapPolicy decides what happens when the unchanged prefix and the
// unchanged suffix found by Diff cover the same positions.
//
// The suffix only lowers the index Apply advances to, and advancing never
// moves the cursor backward, so an overlap can at worst leave steps
// unexecuted. Clamping trades that for re-running a paused tail: with
// ClampOverlap, re-applying an unchanged sequence whose tail was never run
// (prefix == len) clamps the suffix to zero and runs the tail.
type OverlapPolicy int

const (
	// AllowOverlap keeps both scans independent and unclamped.
	AllowOverlap OverlapPolicy = iota

	// ClampOverlap limits the suffix so that prefix+suffix never exceeds
	// the length of the shorter sequence.
	ClampOverlap
)

// String returns the configuration name of the policy.
func (p OverlapPolicy) String() string {
	if p == ClampOverlap {
		return "clamp"
	}
	return "allow"
}

// ParseOverlapPolicy parses "allow" or "clamp". The empty string is allow.
func ParseOverlapPolicy(s string) (OverlapPolicy, bool) {
	switch s {
	case "", "allow":
		return AllowOverlap, true
	case "clamp":
		return ClampOverlap, true
	}
	return AllowOverlap, false
}

// DiffResult describes the unchanged regions shared by the tracked
// sequence and a new one.
type DiffResult struct {
	// UnchangedPrefix is the number of leading steps equal in both.
	UnchangedPrefix int

	// UnchangedSuffix is the number of trailing steps equal in both,
	// after the overlap policy was applied.
	UnchangedSuffix int

	// RawSuffix is the trailing count before the overlap policy.
	RawSuffix int
}

// Diff compares the tracked entries against next using the default
// Comparator.
func Diff(old []*TrackedEntry, next Sequence, policy OverlapPolicy) DiffResult {
	return diff(old, next, policy, Comparator{}.StepsEqual)
}

func diff(old []*TrackedEntry, next Sequence, policy OverlapPolicy, same func(a, b Step) bool) DiffResult {
	match := func(oldIdx, newIdx int) bool {
		if oldIdx < 0 || oldIdx >= len(old) || old[oldIdx] == nil {
			return false
		}
		if newIdx < 0 || newIdx >= len(next) {
			return false
		}
		return same(old[oldIdx].Step, next[newIdx])
	}

	prefix := 0
	for i := 0; i < len(next); i++ {
		if !match(i, i) {
			break
		}
		prefix++
	}

	suffix := 0
	for k := 1; k <= len(next); k++ {
		if !match(len(old)-k, len(next)-k) {
			break
		}
		suffix++
	}

	res := DiffResult{UnchangedPrefix: prefix, UnchangedSuffix: suffix, RawSuffix: suffix}
	if policy == ClampOverlap {
		limit := min(len(old), len(next)) - prefix
		if res.UnchangedSuffix > limit {
			res.UnchangedSuffix = limit
		}
	}
	return res
}
