package model

import "time"

type UpdateStatus string

const (
	UpdateStatusUnknown    UpdateStatus = "unknown"
	UpdateStatusRegistered UpdateStatus = "registered"
	UpdateStatusPending    UpdateStatus = "pending"
	UpdateStatusInSync     UpdateStatus = "in_sync"
	UpdateStatusError      UpdateStatus = "error"
)

// Target is a device which can be provisioned with distribution sets.
type Target struct {
	Base
	Tenant                     string `gorm:"size:40;uniqueIndex:idx_target_controller_id"`
	ControllerID               string `gorm:"size:256;uniqueIndex:idx_target_controller_id"`
	Name                       string `gorm:"size:128"`
	Description                string `gorm:"size:512"`
	Address                    string `gorm:"size:512"`
	SecurityToken              string `gorm:"size:128"`
	RequestAttributes          bool
	UpdateStatus               UpdateStatus `gorm:"size:16;default:unknown"`
	InstalledAt                *time.Time
	LastControllerRequestAt    *time.Time
	Group                      string `gorm:"column:target_group;size:256"`
	TargetTypeID               *uint
	TargetType                 *TargetType
	AssignedDistributionSetID  *uint
	AssignedDistributionSet    *DistributionSet
	InstalledDistributionSetID *uint
	InstalledDistributionSet   *DistributionSet
	Tags                       []Tag             `gorm:"many2many:target_tag_assignments;constraint:OnDelete:CASCADE"`
	Attributes                 map[string]string `gorm:"serializer:json;type:jsonb"`
	AutoConfirmInitiator       string            `gorm:"size:64"`
	AutoConfirmRemark          string            `gorm:"size:512"`
	AutoConfirmActivatedAt     *time.Time
}

// AutoConfirmActive returns true if actions assigned to the target are confirmed on its behalf.
func (t Target) AutoConfirmActive() bool {
	return t.AutoConfirmActivatedAt != nil
}
