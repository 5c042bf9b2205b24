package model

// TargetType restricts which distribution set types can be assigned to targets of the type.
type TargetType struct {
	Base
	Tenant               string                `gorm:"size:40;uniqueIndex:idx_target_type_key;uniqueIndex:idx_target_type_name"`
	Key                  string                `gorm:"size:64;uniqueIndex:idx_target_type_key"`
	Name                 string                `gorm:"size:128;uniqueIndex:idx_target_type_name"`
	Description          string                `gorm:"size:512"`
	Colour               string                `gorm:"size:16"`
	DistributionSetTypes []DistributionSetType `gorm:"many2many:target_type_distribution_set_types;constraint:OnDelete:CASCADE"`
}

// IsCompatible returns true if distribution sets of given type can be assigned to targets of this
// type.
func (t TargetType) IsCompatible(distributionSetTypeID uint) bool {
	for _, dsType := range t.DistributionSetTypes {
		if dsType.ID == distributionSetTypeID {
			return true
		}
	}
	return false
}

type SoftwareModuleType struct {
	Base
	Tenant         string `gorm:"size:40;uniqueIndex:idx_sm_type_key;uniqueIndex:idx_sm_type_name"`
	Key            string `gorm:"size:64;uniqueIndex:idx_sm_type_key"`
	Name           string `gorm:"size:128;uniqueIndex:idx_sm_type_name"`
	Description    string `gorm:"size:512"`
	Colour         string `gorm:"size:16"`
	MaxAssignments int    `gorm:"default:1"`
	Deleted        bool
}

type DistributionSetType struct {
	Base
	Tenant      string                       `gorm:"size:40;uniqueIndex:idx_ds_type_key;uniqueIndex:idx_ds_type_name"`
	Key         string                       `gorm:"size:64;uniqueIndex:idx_ds_type_key"`
	Name        string                       `gorm:"size:128;uniqueIndex:idx_ds_type_name"`
	Description string                       `gorm:"size:512"`
	Colour      string                       `gorm:"size:16"`
	Deleted     bool                         `gorm:"index"`
	Elements    []DistributionSetTypeElement `gorm:"constraint:OnDelete:CASCADE"`
}

// DistributionSetTypeElement links a software module type to a distribution set type as either a
// mandatory or an optional module type.
type DistributionSetTypeElement struct {
	DistributionSetTypeID uint `gorm:"primaryKey"`
	SoftwareModuleTypeID  uint `gorm:"primaryKey"`
	SoftwareModuleType    SoftwareModuleType
	Mandatory             bool
}

// ModuleTypes returns the mandatory or the optional software module types.
func (t DistributionSetType) ModuleTypes(mandatory bool) []SoftwareModuleType {
	var types []SoftwareModuleType
	for _, element := range t.Elements {
		if element.Mandatory == mandatory {
			types = append(types, element.SoftwareModuleType)
		}
	}
	return types
}

// AllowsModuleType returns true if modules of given software module type can be part of
// distribution sets of this type.
func (t DistributionSetType) AllowsModuleType(softwareModuleTypeID uint) bool {
	for _, element := range t.Elements {
		if element.SoftwareModuleTypeID == softwareModuleTypeID {
			return true
		}
	}
	return false
}

// IsComplete returns true if modules contain at least one module of every mandatory module type.
func (t DistributionSetType) IsComplete(modules []SoftwareModule) bool {
	for _, element := range t.Elements {
		if !element.Mandatory {
			continue
		}
		found := false
		for _, module := range modules {
			if module.TypeID == element.SoftwareModuleTypeID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
