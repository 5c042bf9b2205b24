package model

type SoftwareModule struct {
	Base
	Tenant      string `gorm:"size:40;uniqueIndex:idx_software_module"`
	Name        string `gorm:"size:128;uniqueIndex:idx_software_module"`
	Version     string `gorm:"size:64;uniqueIndex:idx_software_module"`
	TypeID      uint   `gorm:"uniqueIndex:idx_software_module"`
	Type        SoftwareModuleType
	Vendor      string `gorm:"size:256"`
	Description string `gorm:"size:512"`
	Encrypted   bool
	Locked      bool
	Deleted     bool       `gorm:"index"`
	Artifacts   []Artifact `gorm:"constraint:OnDelete:CASCADE"`
}

// Artifact is a binary of a software module kept in the artifact store under ObjectKey.
type Artifact struct {
	Base
	Tenant           string `gorm:"size:40;index"`
	SoftwareModuleID uint   `gorm:"index"`
	Filename         string `gorm:"size:256"`
	Size             int64
	MD5              string `gorm:"column:md5;size:32"`
	SHA1             string `gorm:"column:sha1;size:40"`
	SHA256           string `gorm:"column:sha256;size:64"`
	ObjectKey        string `gorm:"size:512"`
}

type DistributionSet struct {
	Base
	Tenant                string `gorm:"size:40;uniqueIndex:idx_distribution_set"`
	Name                  string `gorm:"size:128;uniqueIndex:idx_distribution_set"`
	Version               string `gorm:"size:64;uniqueIndex:idx_distribution_set"`
	TypeID                uint
	Type                  DistributionSetType
	Description           string `gorm:"size:512"`
	RequiredMigrationStep bool
	Complete              bool
	Locked                bool
	Valid                 bool             `gorm:"default:true"`
	Deleted               bool             `gorm:"index"`
	Modules               []SoftwareModule `gorm:"many2many:distribution_set_modules;constraint:OnDelete:CASCADE"`
	Tags                  []Tag            `gorm:"many2many:distribution_set_tag_assignments;constraint:OnDelete:CASCADE"`
}

// Assignable returns true if the set can be assigned to targets.
func (ds DistributionSet) Assignable() bool {
	return ds.Complete && ds.Valid && !ds.Deleted
}
