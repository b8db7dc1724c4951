package workflow

import (
	"fmt"

	"github.com/noah-isme/college-eapproval-api/internal/models"
	appErrors "github.com/noah-isme/college-eapproval-api/pkg/errors"
)

// Overall status labels derived from the stage-status triple. These are
// display strings, never independently settable.
const (
	OverallPendingClassTeacher  = "Pending Class Teacher"
	OverallRejectedClassTeacher = "Rejected by Class Teacher"
	OverallPendingHOD           = "Pending HOD"
	OverallRejectedHOD          = "Rejected by HOD"
	OverallPendingPrincipal     = "Pending Principal"
	OverallRejectedPrincipal    = "Rejected by Principal"
	OverallApproved             = "Approved"
)

// OverallStatus derives the display label for a stage-status triple. The
// derivation is total over reachable states; an unreachable combination
// (e.g. hod Approved while class_teacher Pending) indicates a state machine
// bug and yields a consistency fault instead of a guess.
func OverallStatus(t models.StageTriple) (string, error) {
	if !Reachable(t) {
		return "", consistencyFault(t)
	}

	switch {
	case t.ClassTeacher == models.StatusPending:
		return OverallPendingClassTeacher, nil
	case t.ClassTeacher == models.StatusRejected:
		return OverallRejectedClassTeacher, nil
	case t.HOD == models.StatusPending:
		return OverallPendingHOD, nil
	case t.HOD == models.StatusRejected:
		return OverallRejectedHOD, nil
	case t.Principal == models.StatusPending:
		return OverallPendingPrincipal, nil
	case t.Principal == models.StatusRejected:
		return OverallRejectedPrincipal, nil
	default:
		return OverallApproved, nil
	}
}

// Reachable reports whether the triple can occur under the monotonic
// ordering invariant: a later stage leaves Pending only after the earlier
// stage is Approved.
func Reachable(t models.StageTriple) bool {
	if !t.ClassTeacher.Valid() || !t.HOD.Valid() || !t.Principal.Valid() {
		return false
	}
	if t.HOD != models.StatusPending && t.ClassTeacher != models.StatusApproved {
		return false
	}
	if t.Principal != models.StatusPending && t.HOD != models.StatusApproved {
		return false
	}
	return true
}

// Terminal reports whether no further transition is possible: any rejection,
// or full approval.
func Terminal(t models.StageTriple) bool {
	if t.ClassTeacher == models.StatusRejected || t.HOD == models.StatusRejected || t.Principal == models.StatusRejected {
		return true
	}
	return t.FullyApproved()
}

func consistencyFault(t models.StageTriple) error {
	return appErrors.Wrap(
		fmt.Errorf("unreachable stage-status triple (%s, %s, %s)", t.ClassTeacher, t.HOD, t.Principal),
		appErrors.ErrConsistencyFault.Code,
		appErrors.ErrConsistencyFault.Status,
		appErrors.ErrConsistencyFault.Message,
	)
}
