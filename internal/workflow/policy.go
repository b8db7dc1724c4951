package workflow

import "github.com/noah-isme/college-eapproval-api/internal/models"

// Prerequisite returns the stage that must be Approved before the given
// stage unlocks. The class teacher stage has none.
func Prerequisite(stage models.Stage) (models.Stage, bool) {
	switch stage {
	case models.StageHOD:
		return models.StageClassTeacher, true
	case models.StagePrincipal:
		return models.StageHOD, true
	}
	return "", false
}

// CanAct is the role policy: a pure predicate deciding whether a role may
// perform the action on the given stage of a request in state t. It never
// mutates anything. Rules:
//   - the role must own the stage (students own none)
//   - the stage must still be Pending
//   - the prerequisite stage, if any, must be Approved
func CanAct(role models.Role, t models.StageTriple, stage models.Stage, action models.Action) bool {
	if action != models.ActionApprove && action != models.ActionReject {
		return false
	}
	owned, ok := models.StageForRole(role)
	if !ok || owned != stage {
		return false
	}
	if t.Get(stage) != models.StatusPending {
		return false
	}
	if prereq, has := Prerequisite(stage); has && t.Get(prereq) != models.StatusApproved {
		return false
	}
	return true
}
