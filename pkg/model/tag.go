package model

type TagKind string

const (
	TargetTagKind          TagKind = "target"
	DistributionSetTagKind TagKind = "distributionset"
)

type Tag struct {
	Base
	Tenant      string  `gorm:"size:40;uniqueIndex:idx_tag_name"`
	Kind        TagKind `gorm:"size:16;uniqueIndex:idx_tag_name"`
	Name        string  `gorm:"size:64;uniqueIndex:idx_tag_name"`
	Description string  `gorm:"size:512"`
	Colour      string  `gorm:"size:16"`
}

type MetadataOwner string

const (
	TargetMetadata          MetadataOwner = "target"
	DistributionSetMetadata MetadataOwner = "distributionset"
	SoftwareModuleMetadata  MetadataOwner = "softwaremodule"
)

// Metadata is a key/value pair attached to a target, a distribution set or a software module.
type Metadata struct {
	Base
	Tenant    string        `gorm:"size:40;uniqueIndex:idx_metadata_key"`
	OwnerKind MetadataOwner `gorm:"size:16;uniqueIndex:idx_metadata_key"`
	OwnerID   uint          `gorm:"uniqueIndex:idx_metadata_key"`
	Key       string        `gorm:"size:128;uniqueIndex:idx_metadata_key"`
	Value     string        `gorm:"size:4000"`
	// TargetVisible is only used by software module metadata which is then sent to targets.
	TargetVisible bool
}
