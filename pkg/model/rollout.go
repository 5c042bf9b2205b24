package model

import "time"

type RolloutStatus string

const (
	RolloutStatusCreating           RolloutStatus = "creating"
	RolloutStatusReady              RolloutStatus = "ready"
	RolloutStatusWaitingForApproval RolloutStatus = "waiting_for_approval"
	RolloutStatusApprovalDenied     RolloutStatus = "approval_denied"
	RolloutStatusStarting           RolloutStatus = "starting"
	RolloutStatusRunning            RolloutStatus = "running"
	RolloutStatusPaused             RolloutStatus = "paused"
	RolloutStatusStopping           RolloutStatus = "stopping"
	RolloutStatusStopped            RolloutStatus = "stopped"
	RolloutStatusFinished           RolloutStatus = "finished"
	RolloutStatusDeleting           RolloutStatus = "deleting"
	RolloutStatusDeleted            RolloutStatus = "deleted"
)

type RolloutGroupStatus string

const (
	RolloutGroupStatusCreating  RolloutGroupStatus = "creating"
	RolloutGroupStatusReady     RolloutGroupStatus = "ready"
	RolloutGroupStatusScheduled RolloutGroupStatus = "scheduled"
	RolloutGroupStatusRunning   RolloutGroupStatus = "running"
	RolloutGroupStatusFinished  RolloutGroupStatus = "finished"
	RolloutGroupStatusError     RolloutGroupStatus = "error"
)

// Condition and action names of rollout groups.
const (
	ConditionThreshold = "THRESHOLD"
	ActionNextGroup    = "NEXTGROUP"
	ActionPause        = "PAUSE"
)

type Rollout struct {
	Base
	Tenant            string `gorm:"size:40;uniqueIndex:idx_rollout_name"`
	Name              string `gorm:"size:128;uniqueIndex:idx_rollout_name"`
	Description       string `gorm:"size:512"`
	TargetFilterQuery string `gorm:"size:1024"`
	DistributionSetID uint   `gorm:"index"`
	DistributionSet   *DistributionSet
	Status            RolloutStatus `gorm:"size:32;index"`
	Type              ActionType    `gorm:"size:16"`
	ForceTime         int64
	Weight            *int
	StartAt           *time.Time
	Dynamic           bool
	TotalTargets      int64
	ApprovalRemark    string `gorm:"size:512"`
	ApprovalDecidedBy string `gorm:"size:64"`
	Deleted           bool
	Groups            []RolloutGroup `gorm:"constraint:OnDelete:CASCADE"`
}

type RolloutGroup struct {
	Base
	Tenant               string             `gorm:"size:40;index"`
	RolloutID            uint               `gorm:"index"`
	Name                 string             `gorm:"size:128"`
	Description          string             `gorm:"size:512"`
	Status               RolloutGroupStatus `gorm:"size:32"`
	TargetPercentage     float64
	TargetFilterQuery    string `gorm:"size:1024"`
	TotalTargets         int64
	SuccessCondition     string `gorm:"size:16"`
	SuccessConditionExp  string `gorm:"size:512"`
	SuccessAction        string `gorm:"size:16"`
	SuccessActionExp     string `gorm:"size:512"`
	ErrorCondition       string `gorm:"size:16"`
	ErrorConditionExp    string `gorm:"size:512"`
	ErrorAction          string `gorm:"size:16"`
	ErrorActionExp       string `gorm:"size:512"`
	ConfirmationRequired bool
}

// RolloutGroupTarget is the membership of a target in a rollout group.
type RolloutGroupTarget struct {
	RolloutGroupID uint `gorm:"primaryKey"`
	TargetID       uint `gorm:"primaryKey;index"`
}

type TargetFilterQuery struct {
	Base
	Tenant                      string `gorm:"size:40;uniqueIndex:idx_target_filter_name"`
	Name                        string `gorm:"size:128;uniqueIndex:idx_target_filter_name"`
	Query                       string `gorm:"size:1024"`
	AutoAssignDistributionSetID *uint  `gorm:"index"`
	AutoAssignDistributionSet   *DistributionSet
	AutoAssignActionType        ActionType `gorm:"size:16"`
	AutoAssignWeight            *int
	AutoAssignInitiatedBy       string `gorm:"size:64"`
	ConfirmationRequired        bool
}

// TenantConfiguration is a tenant specific value of a configuration key, overriding its default.
type TenantConfiguration struct {
	Base
	Tenant string `gorm:"size:40;uniqueIndex:idx_tenant_configuration_key"`
	Key    string `gorm:"size:128;uniqueIndex:idx_tenant_configuration_key"`
	Value  string `gorm:"size:512"`
}
