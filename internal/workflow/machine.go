package workflow

import (
	"github.com/noah-isme/college-eapproval-api/internal/models"
	appErrors "github.com/noah-isme/college-eapproval-api/pkg/errors"
)

// Decision is the computed outcome of a single workflow step. The caller
// persists Next atomically keyed on Prior (compare-and-swap), so a lost
// race surfaces as zero rows updated rather than a double-applied decision.
type Decision struct {
	Stage            models.Stage
	Action           models.Action
	Prior            models.StageTriple
	Next             models.StageTriple
	OverallStatus    string
	GenerateDocument bool
}

// Apply validates an action by the given role against the current
// stage-status triple and computes the next state. It performs no I/O.
//
// Failure modes, in evaluation order:
//   - the stored triple is unreachable: consistency fault (state machine
//     bug upstream, surfaced loudly and never corrected here)
//   - the role owns no stage: Unauthorized
//   - the owned stage is no longer Pending, or its prerequisite is not
//     Approved: InvalidTransition (reported to callers in the same terms as
//     an authorization failure)
func Apply(role models.Role, t models.StageTriple, action models.Action) (*Decision, error) {
	if !Reachable(t) {
		return nil, consistencyFault(t)
	}

	stage, ok := models.StageForRole(role)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "role may not act on approval requests")
	}
	if action != models.ActionApprove && action != models.ActionReject {
		return nil, appErrors.Clone(appErrors.ErrValidation, "action must be approve or reject")
	}

	if !CanAct(role, t, stage, action) {
		if t.Get(stage).Terminal() {
			return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "decision for this stage is already recorded")
		}
		return nil, appErrors.ErrInvalidTransition
	}

	status := models.StatusApproved
	if action == models.ActionReject {
		status = models.StatusRejected
	}
	next := t.With(stage, status)

	overall, err := OverallStatus(next)
	if err != nil {
		return nil, err
	}

	return &Decision{
		Stage:            stage,
		Action:           action,
		Prior:            t,
		Next:             next,
		OverallStatus:    overall,
		GenerateDocument: stage == models.StagePrincipal && action == models.ActionApprove && next.FullyApproved(),
	}, nil
}
