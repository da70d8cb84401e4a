package cache

import "strings"

// ItemAction is the verdict of an ItemPolicy at a milestone.
type ItemAction int

const (
	// ActionNeutral defers to the cache-wide decision.
	ActionNeutral ItemAction = iota
	// ActionPreserve keeps the entity.
	ActionPreserve
	// ActionRemove evicts the entity.
	ActionRemove
)

func (a ItemAction) String() string {
	switch a {
	case ActionNeutral:
		return "neutral"
	case ActionPreserve:
		return "preserve"
	case ActionRemove:
		return "remove"
	default:
		return "unknown"
	}
}

// Milestone is a point in a cached entity's life at which its ItemPolicy may
// be consulted. Milestones are bit flags so a policy can declare several.
type Milestone uint8

const (
	// OnCacheHit is consulted when a Read finds the entity in the store. A
	// Remove verdict turns the hit into a miss.
	OnCacheHit Milestone = 1 << iota
	// OnCacheCleanup is consulted for every entity at the start of Cleanup.
	// A Remove verdict evicts the entity unconditionally.
	OnCacheCleanup
	// OnReplacement is consulted when the replacement policy picks the
	// entity as a victim. A Preserve verdict vetoes the eviction.
	OnReplacement

	// AllMilestones is the union of every milestone.
	AllMilestones = OnCacheHit | OnCacheCleanup | OnReplacement
)

// Has reports whether every flag of o is set in m.
func (m Milestone) Has(o Milestone) bool {
	return o != 0 && m&o == o
}

func (m Milestone) String() string {
	if m == 0 {
		return "none"
	}
	var names []string
	if m.Has(OnCacheHit) {
		names = append(names, "cache-hit")
	}
	if m.Has(OnCacheCleanup) {
		names = append(names, "cache-cleanup")
	}
	if m.Has(OnReplacement) {
		names = append(names, "replacement")
	}
	return strings.Join(names, "|")
}

// ItemPolicy overrides the cache-wide eviction decision for one entity.
type ItemPolicy interface {
	// RelevantMilestones returns the milestones the policy wants to be
	// consulted at. Other milestones are treated as ActionNeutral.
	RelevantMilestones() Milestone
	// Action returns the verdict for a milestone.
	Action(m Milestone) ItemAction
}

type itemPolicyFunc struct {
	relevant Milestone
	fn       func(Milestone) ItemAction
}

func (p *itemPolicyFunc) RelevantMilestones() Milestone { return p.relevant }

func (p *itemPolicyFunc) Action(m Milestone) ItemAction { return p.fn(m) }

// ItemPolicyFunc returns an ItemPolicy relevant at the given milestones that
// delegates its verdicts to fn.
func ItemPolicyFunc(relevant Milestone, fn func(Milestone) ItemAction) ItemPolicy {
	return &itemPolicyFunc{relevant: relevant, fn: fn}
}

// consult asks p for its verdict at m, skipping the call when p is nil or
// does not care about m.
func consult(p ItemPolicy, m Milestone) ItemAction {
	if p == nil || !p.RelevantMilestones().Has(m) {
		return ActionNeutral
	}
	return p.Action(m)
}
