// Package authorizer implements C6: evaluating the workload and/or user
// principal views against a single policy set and entity set, then
// combining their outcomes per the configured operator.
package authorizer

import (
	"github.com/cedar-policy/cedar-go"
	"github.com/cedar-policy/cedar-go/types"

	"github.com/cedar-pdp/pdp/pkg/pdperrors"
)

// ViewState is the per-view state machine outcome: a view that was never
// enabled is Disabled; one that was enabled runs through Validating and
// lands on Allow, Deny, or Error.
type ViewState string

const (
	ViewDisabled ViewState = "disabled"
	ViewAllow    ViewState = "allow"
	ViewDeny     ViewState = "deny"
	ViewError    ViewState = "error"
)

// ViewResult carries one principal view's outcome plus the policy ids Cedar
// attributes the decision to, for the decision log.
type ViewResult struct {
	State          ViewState
	ReasonPolicyID []string
	ErrorPolicyID  []string
	Err            error
}

// Operator selects how two present views combine into one decision.
type Operator string

const (
	// OperatorAND denies unless every enabled view allows; a disabled view
	// counts as allow (it contributes no opinion).
	OperatorAND Operator = "AND"
	// OperatorOR allows if any enabled view allows.
	OperatorOR Operator = "OR"
)

// Request bundles everything one authorize() call needs to evaluate both
// views. Workload/User are nil when that view is disabled for the request.
type Request struct {
	Entities types.Entities
	Action   types.EntityUID
	Resource types.EntityUID
	Context  types.Record

	Workload *types.EntityUID
	User     *types.EntityUID
}

// Result is the combined outcome of both views.
type Result struct {
	Workload *ViewResult
	User     *ViewResult
	Allowed  bool
}

// Authorizer evaluates requests against a fixed policy set.
type Authorizer struct {
	policies *cedar.PolicySet
	operator Operator
}

// New constructs an Authorizer over policies, combining enabled views with
// operator.
func New(policies *cedar.PolicySet, operator Operator) *Authorizer {
	if operator == "" {
		operator = OperatorAND
	}
	return &Authorizer{policies: policies, operator: operator}
}

// Authorize evaluates req's enabled views and combines them.
func (a *Authorizer) Authorize(req Request) (*Result, error) {
	res := &Result{}

	if req.Workload != nil {
		res.Workload = a.evaluate(req.Entities, *req.Workload, req.Action, req.Resource, req.Context)
	} else {
		res.Workload = &ViewResult{State: ViewDisabled}
	}

	if req.User != nil {
		res.User = a.evaluate(req.Entities, *req.User, req.Action, req.Resource, req.Context)
	} else {
		res.User = &ViewResult{State: ViewDisabled}
	}

	res.Allowed = combine(a.operator, res.Workload, res.User)
	return res, nil
}

// evaluate runs one principal view through Cedar and translates the
// decision/diagnostic into a ViewResult.
func (a *Authorizer) evaluate(
	entities types.Entities,
	principal, action, resource types.EntityUID,
	ctxRecord types.Record,
) *ViewResult {
	creq := cedar.Request{
		Principal: principal,
		Action:    action,
		Resource:  resource,
		Context:   ctxRecord,
	}

	decision, diag := cedar.Authorize(a.policies, entities, creq)

	vr := &ViewResult{}
	for _, r := range diag.Reasons {
		vr.ReasonPolicyID = append(vr.ReasonPolicyID, string(r.PolicyID))
	}
	for _, e := range diag.Errors {
		vr.ErrorPolicyID = append(vr.ErrorPolicyID, string(e.PolicyID))
	}

	switch {
	case len(diag.Errors) > 0 && decision != cedar.Allow:
		vr.State = ViewError
		vr.Err = pdperrors.New(pdperrors.KindEntities, "policy evaluation produced errors").WithPolicyIDs(vr.ErrorPolicyID)
	case decision == cedar.Allow:
		vr.State = ViewAllow
	default:
		vr.State = ViewDeny
	}

	return vr
}

// combine applies operator to the two (possibly disabled) view outcomes.
// A disabled view never blocks or grants on its own; if both are disabled
// the request is denied, since no principal view was evaluated.
func combine(op Operator, workload, user *ViewResult) bool {
	wEnabled := workload.State != ViewDisabled
	uEnabled := user.State != ViewDisabled

	if !wEnabled && !uEnabled {
		return false
	}

	switch op {
	case OperatorOR:
		return (wEnabled && workload.State == ViewAllow) || (uEnabled && user.State == ViewAllow)
	default: // OperatorAND
		if wEnabled && workload.State != ViewAllow {
			return false
		}
		if uEnabled && user.State != ViewAllow {
			return false
		}
		return true
	}
}
