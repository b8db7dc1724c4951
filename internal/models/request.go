package models

import "time"

// Stage identifies one of the three sequential approval checkpoints.
type Stage string

const (
	StageClassTeacher Stage = "class_teacher"
	StageHOD          Stage = "hod"
	StagePrincipal    Stage = "principal"
)

// StageForRole maps a staff role onto the stage it may act on. Students act
// on no stage.
func StageForRole(role Role) (Stage, bool) {
	switch role {
	case RoleClassTeacher:
		return StageClassTeacher, true
	case RoleHOD:
		return StageHOD, true
	case RolePrincipal:
		return StagePrincipal, true
	}
	return "", false
}

// StageStatus captures the per-stage outcome.
type StageStatus string

const (
	StatusPending  StageStatus = "Pending"
	StatusApproved StageStatus = "Approved"
	StatusRejected StageStatus = "Rejected"
)

// Valid reports whether the status belongs to the closed set.
func (s StageStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Terminal reports whether the status can never change again.
func (s StageStatus) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// Action is a reviewer decision scoped to a stage.
type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
)

// StageTriple is the full approval state of a request. The workflow package
// owns the transition rules over this value.
type StageTriple struct {
	ClassTeacher StageStatus `db:"class_teacher_status" json:"class_teacher_status"`
	HOD          StageStatus `db:"hod_status" json:"hod_status"`
	Principal    StageStatus `db:"principal_status" json:"principal_status"`
}

// NewStageTriple returns the initial state of a freshly created request.
func NewStageTriple() StageTriple {
	return StageTriple{
		ClassTeacher: StatusPending,
		HOD:          StatusPending,
		Principal:    StatusPending,
	}
}

// Get returns the status of the named stage.
func (t StageTriple) Get(stage Stage) StageStatus {
	switch stage {
	case StageClassTeacher:
		return t.ClassTeacher
	case StageHOD:
		return t.HOD
	case StagePrincipal:
		return t.Principal
	}
	return ""
}

// With returns a copy of the triple with the named stage replaced.
func (t StageTriple) With(stage Stage, status StageStatus) StageTriple {
	switch stage {
	case StageClassTeacher:
		t.ClassTeacher = status
	case StageHOD:
		t.HOD = status
	case StagePrincipal:
		t.Principal = status
	}
	return t
}

// FullyApproved reports whether every stage has signed off.
func (t StageTriple) FullyApproved() bool {
	return t.ClassTeacher == StatusApproved && t.HOD == StatusApproved && t.Principal == StatusApproved
}

// ApprovalRequest is the central workflow entity. Title, description,
// creator and created_at are immutable after creation; only the stage
// statuses (and the derived overall status) change, and only through the
// workflow state machine.
type ApprovalRequest struct {
	ID                 string      `db:"id" json:"id"`
	Title              string      `db:"title" json:"title"`
	Description        string      `db:"description" json:"description"`
	CreatedBy          string      `db:"created_by" json:"created_by"`
	CreatorName        string      `db:"creator_name" json:"creator_name"`
	ClassTeacherStatus StageStatus `db:"class_teacher_status" json:"class_teacher_status"`
	HODStatus          StageStatus `db:"hod_status" json:"hod_status"`
	PrincipalStatus    StageStatus `db:"principal_status" json:"principal_status"`
	OverallStatus      string      `db:"overall_status" json:"overall_status"`
	CreatedAt          time.Time   `db:"created_at" json:"created_at"`
}

// Triple bundles the stage statuses for the state machine.
func (r *ApprovalRequest) Triple() StageTriple {
	return StageTriple{
		ClassTeacher: r.ClassTeacherStatus,
		HOD:          r.HODStatus,
		Principal:    r.PrincipalStatus,
	}
}

// SetTriple writes the stage statuses back onto the entity.
func (r *ApprovalRequest) SetTriple(t StageTriple) {
	r.ClassTeacherStatus = t.ClassTeacher
	r.HODStatus = t.HOD
	r.PrincipalStatus = t.Principal
}

// RequestFilter constrains listing queries. Role scoping is resolved by the
// service before the filter reaches the repository.
type RequestFilter struct {
	CreatedBy            string
	ClassTeacherApproved bool
	HODApproved          bool
	Search               string
}

// DashboardKPIs summarises the currently visible request set.
type DashboardKPIs struct {
	Total            int `json:"total"`
	PendingPrincipal int `json:"pending_principal"`
	Approved         int `json:"approved"`
}
