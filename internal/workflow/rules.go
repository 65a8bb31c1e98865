// Package workflow defines the review state machine: which status changes
// are legal per artifact kind, who may trigger them, and what each one emits.
package workflow

import (
	"comply/internal/activity"
	"comply/internal/authz"
	id "comply/pkg/domain"
)

// Rule is one legal transition: the capability that gates it, the review
// action it records, and the notification template it fires. An empty
// template marks the transition silent (bookkeeping only, no notification).
type Rule struct {
	From       id.Status
	To         id.Status
	Capability authz.Capability
	Action     activity.Action
	Template   string
}

// baseRules is the transition table shared by all kinds.
var baseRules = []Rule{
	{From: id.StatusDraft, To: id.StatusSubmitted, Capability: authz.CapSubmit, Action: activity.ActionSubmitted, Template: "artifact_submitted"},
	{From: id.StatusSubmitted, To: id.StatusUnderReview, Capability: authz.CapReview, Action: activity.ActionReviewBegan, Template: "artifact_under_review"},
	{From: id.StatusUnderReview, To: id.StatusApproved, Capability: authz.CapReview, Action: activity.ActionApproved, Template: "artifact_approved"},
	{From: id.StatusUnderReview, To: id.StatusRejected, Capability: authz.CapReview, Action: activity.ActionRejected, Template: "artifact_rejected"},
	{From: id.StatusUnderReview, To: id.StatusBlocked, Capability: authz.CapBlock, Action: activity.ActionBlocked, Template: "artifact_blocked"},
	// Clearing a block is internal bookkeeping: no notification fires.
	{From: id.StatusBlocked, To: id.StatusSubmitted, Capability: authz.CapClearBlock, Action: activity.ActionUnblocked},
}

// resubmissionRules reopen a decided cycle. Work permits deliberately omit
// these: a permit cycle is one-shot and a new permit must be created instead.
var resubmissionRules = []Rule{
	{From: id.StatusApproved, To: id.StatusSubmitted, Capability: authz.CapSubmit, Action: activity.ActionResubmitted, Template: "artifact_resubmitted"},
	{From: id.StatusRejected, To: id.StatusSubmitted, Capability: authz.CapSubmit, Action: activity.ActionResubmitted, Template: "artifact_resubmitted"},
}

// rulesByKind is the per-kind transition configuration. Each kind gets its
// own table rather than one shared table so kind policies can diverge
// without conditionals in the engine.
var rulesByKind = map[id.ArtifactKind][]Rule{
	id.KindDocument:              append(append([]Rule{}, baseRules...), resubmissionRules...),
	id.KindStartupFolderDocument: append(append([]Rule{}, baseRules...), resubmissionRules...),
	id.KindWorkPermit:            append([]Rule{}, baseRules...),
}

// FindRule returns the rule for a (kind, from, to) triple, or false when the
// transition is not in the kind's table.
func FindRule(kind id.ArtifactKind, from, to id.Status) (Rule, bool) {
	for _, rule := range rulesByKind[kind] {
		if rule.From == from && rule.To == to {
			return rule, true
		}
	}
	return Rule{}, false
}

// AllowedTargets lists the statuses reachable from the given state for a
// kind. Used by the API to tell clients what they may request next.
func AllowedTargets(kind id.ArtifactKind, from id.Status) []id.Status {
	var targets []id.Status
	for _, rule := range rulesByKind[kind] {
		if rule.From == from {
			targets = append(targets, rule.To)
		}
	}
	return targets
}
