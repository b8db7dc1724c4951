package workflow

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/college-eapproval-api/internal/models"
	appErrors "github.com/noah-isme/college-eapproval-api/pkg/errors"
)

func requireErrCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, code, appErr.Code)
}

func TestApplyHappyPathToFullApproval(t *testing.T) {
	state := models.NewStageTriple()

	decision, err := Apply(models.RoleClassTeacher, state, models.ActionApprove)
	require.NoError(t, err)
	require.Equal(t, models.StageClassTeacher, decision.Stage)
	require.Equal(t, triple(models.StatusApproved, models.StatusPending, models.StatusPending), decision.Next)
	require.Equal(t, OverallPendingHOD, decision.OverallStatus)
	require.False(t, decision.GenerateDocument)

	decision, err = Apply(models.RoleHOD, decision.Next, models.ActionApprove)
	require.NoError(t, err)
	require.Equal(t, OverallPendingPrincipal, decision.OverallStatus)
	require.False(t, decision.GenerateDocument)

	decision, err = Apply(models.RolePrincipal, decision.Next, models.ActionApprove)
	require.NoError(t, err)
	require.Equal(t, triple(models.StatusApproved, models.StatusApproved, models.StatusApproved), decision.Next)
	require.Equal(t, OverallApproved, decision.OverallStatus)
	require.True(t, decision.GenerateDocument)
}

func TestApplyRejectionIsTerminalForTheChain(t *testing.T) {
	state := models.NewStageTriple()

	decision, err := Apply(models.RoleClassTeacher, state, models.ActionApprove)
	require.NoError(t, err)

	decision, err = Apply(models.RoleHOD, decision.Next, models.ActionReject)
	require.NoError(t, err)
	require.Equal(t, triple(models.StatusApproved, models.StatusRejected, models.StatusPending), decision.Next)
	require.Equal(t, OverallRejectedHOD, decision.OverallStatus)
	require.False(t, decision.GenerateDocument)

	// Principal can no longer act on the rejected chain.
	_, err = Apply(models.RolePrincipal, decision.Next, models.ActionApprove)
	requireErrCode(t, err, appErrors.ErrInvalidTransition.Code)
}

func TestApplyStudentIsUnauthorized(t *testing.T) {
	_, err := Apply(models.RoleStudent, models.NewStageTriple(), models.ActionApprove)
	requireErrCode(t, err, appErrors.ErrUnauthorized.Code)
}

func TestApplyOutOfOrderIsInvalidTransition(t *testing.T) {
	state := models.NewStageTriple()

	_, err := Apply(models.RoleHOD, state, models.ActionApprove)
	requireErrCode(t, err, appErrors.ErrInvalidTransition.Code)

	_, err = Apply(models.RolePrincipal, state, models.ActionReject)
	requireErrCode(t, err, appErrors.ErrInvalidTransition.Code)
}

func TestApplyTerminalStageCannotBeReDecided(t *testing.T) {
	state := models.NewStageTriple().With(models.StageClassTeacher, models.StatusApproved)

	// Approving twice: the second call fails and the state is untouched.
	_, err := Apply(models.RoleClassTeacher, state, models.ActionApprove)
	requireErrCode(t, err, appErrors.ErrInvalidTransition.Code)

	_, err = Apply(models.RoleClassTeacher, state, models.ActionReject)
	requireErrCode(t, err, appErrors.ErrInvalidTransition.Code)
}

func TestApplyRejectsUnknownAction(t *testing.T) {
	_, err := Apply(models.RoleClassTeacher, models.NewStageTriple(), "escalate")
	requireErrCode(t, err, appErrors.ErrValidation.Code)
}

func TestApplySurfacesConsistencyFault(t *testing.T) {
	corrupt := triple(models.StatusPending, models.StatusApproved, models.StatusPending)

	_, err := Apply(models.RoleClassTeacher, corrupt, models.ActionApprove)
	requireErrCode(t, err, appErrors.ErrConsistencyFault.Code)
}

func TestApplyDocumentOnlyOnPrincipalApproval(t *testing.T) {
	readyForPrincipal := triple(models.StatusApproved, models.StatusApproved, models.StatusPending)

	decision, err := Apply(models.RolePrincipal, readyForPrincipal, models.ActionReject)
	require.NoError(t, err)
	require.False(t, decision.GenerateDocument)

	decision, err = Apply(models.RolePrincipal, readyForPrincipal, models.ActionApprove)
	require.NoError(t, err)
	require.True(t, decision.GenerateDocument)
}
