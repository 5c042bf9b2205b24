package model

import "time"

type ActionType string

const (
	ActionTypeForced       ActionType = "forced"
	ActionTypeSoft         ActionType = "soft"
	ActionTypeTimeForced   ActionType = "timeforced"
	ActionTypeDownloadOnly ActionType = "downloadonly"
)

// ParseActionType returns the action type of s. An empty s is a forced action.
func ParseActionType(s string) (ActionType, bool) {
	switch ActionType(s) {
	case "":
		return ActionTypeForced, true
	case ActionTypeForced, ActionTypeSoft, ActionTypeTimeForced, ActionTypeDownloadOnly:
		return ActionType(s), true
	}
	return "", false
}

type ActionStatusType string

const (
	ActionStatusScheduled           ActionStatusType = "scheduled"
	ActionStatusRunning             ActionStatusType = "running"
	ActionStatusFinished            ActionStatusType = "finished"
	ActionStatusError               ActionStatusType = "error"
	ActionStatusWarning             ActionStatusType = "warning"
	ActionStatusRetrieved           ActionStatusType = "retrieved"
	ActionStatusDownload            ActionStatusType = "download"
	ActionStatusDownloaded          ActionStatusType = "downloaded"
	ActionStatusCanceling           ActionStatusType = "canceling"
	ActionStatusCanceled            ActionStatusType = "canceled"
	ActionStatusCancelRejected      ActionStatusType = "cancel_rejected"
	ActionStatusWaitForConfirmation ActionStatusType = "wait_for_confirmation"
)

// Action is the deployment of a distribution set to a target.
type Action struct {
	Base
	Tenant               string `gorm:"size:40;index"`
	TargetID             uint   `gorm:"index"`
	Target               *Target
	DistributionSetID    uint `gorm:"index"`
	DistributionSet      *DistributionSet
	Type                 ActionType `gorm:"size:16"`
	ForceTime            int64
	Weight               *int
	Status               ActionStatusType `gorm:"size:32;index"`
	Active               bool             `gorm:"index"`
	RolloutID            *uint            `gorm:"index"`
	Rollout              *Rollout
	RolloutGroupID       *uint `gorm:"index"`
	LastStatusCode       *int
	ExternalRef          string `gorm:"size:512"`
	InitiatedBy          string `gorm:"size:64"`
	MaintenanceSchedule  string `gorm:"size:128"`
	MaintenanceDuration  string `gorm:"size:16"`
	MaintenanceTimeZone  string `gorm:"size:8"`
	ConfirmationRequired bool
}

// IsCancelingOrCanceled returns true once a cancellation was requested for the action.
func (a Action) IsCancelingOrCanceled() bool {
	return a.Status == ActionStatusCanceling || a.Status == ActionStatusCanceled
}

// HasMaintenanceWindow returns true if the action can only be installed within a window.
func (a Action) HasMaintenanceWindow() bool {
	return a.MaintenanceSchedule != ""
}

// ActionStatus is an entry of an actions status history.
type ActionStatus struct {
	ID         uint `gorm:"primarykey"`
	CreatedAt  time.Time
	Tenant     string           `gorm:"size:40;index"`
	ActionID   uint             `gorm:"index"`
	Status     ActionStatusType `gorm:"size:32"`
	Code       *int
	Messages   []string `gorm:"serializer:json;type:jsonb"`
	OccurredAt time.Time
}
