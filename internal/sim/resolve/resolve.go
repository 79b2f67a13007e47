// Package resolve picks the single rule a node runs for the signals it
// accumulated during one tick.
package resolve

import "dominoes.run/internal/sim/catalogs"

// Signal is one trigger with the OR of every direction it was signaled from.
type Signal struct {
	Trigger catalogs.Trigger
	Mask    catalogs.Mask
}

// Match is the winning rule. Dir is the input direction derived from the
// matched signal; DirKnown is false when the signal carried zero or several
// directions, in which case Dir is Right.
type Match struct {
	Rule     *catalogs.Rule
	Trigger  catalogs.Trigger
	Dir      catalogs.Direction
	DirKnown bool
}

// Eligible reports whether r fires for an accumulated mask. Masks match
// exactly; a zero rule mask matches any signal of its trigger.
func Eligible(r *catalogs.Rule, mask catalogs.Mask) bool {
	return r.Mask == 0 || r.Mask == mask
}

// Resolve ranks every eligible rule by priority, then by mask specificity.
// Remaining ties keep the first rule found in scan order.
func Resolve(events *catalogs.EventSet, signals []Signal) (Match, bool) {
	var best Match
	found := false
	for _, sig := range signals {
		rules := events.Rules(sig.Trigger)
		for i := range rules {
			r := &rules[i]
			if !Eligible(r, sig.Mask) {
				continue
			}
			if found && !outranks(r, best.Rule) {
				continue
			}
			dir, ok := sig.Mask.Single()
			best = Match{Rule: r, Trigger: sig.Trigger, Dir: dir, DirKnown: ok}
			found = true
		}
	}
	return best, found
}

func outranks(cand, cur *catalogs.Rule) bool {
	if cand.Priority != cur.Priority {
		return cand.Priority > cur.Priority
	}
	return cand.MaskBits > cur.MaskBits
}
