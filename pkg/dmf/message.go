package dmf

import "github.com/dhis2-sre/update-manager/pkg/model"

// Header keys of DMF messages.
const (
	HeaderType        = "type"
	HeaderTopic       = "topic"
	HeaderThingID     = "thingId"
	HeaderTenant      = "tenant"
	HeaderContentType = "content-type"
)

type MessageType string

const (
	MessageTypeEvent        MessageType = "EVENT"
	MessageTypeThingDeleted MessageType = "THING_DELETED"
)

type Topic string

const (
	TopicDownloadAndInstall      Topic = "DOWNLOAD_AND_INSTALL"
	TopicDownload                Topic = "DOWNLOAD"
	TopicConfirm                 Topic = "CONFIRM"
	TopicCancelDownload          Topic = "CANCEL_DOWNLOAD"
	TopicRequestAttributesUpdate Topic = "REQUEST_ATTRIBUTES_UPDATE"
)

// TopicOf returns the topic of the message announcing action to its target.
func TopicOf(action model.Action) Topic {
	switch {
	case action.IsCancelingOrCanceled():
		return TopicCancelDownload
	case action.Status == model.ActionStatusWaitForConfirmation:
		return TopicConfirm
	case action.Type == model.ActionTypeDownloadOnly:
		return TopicDownload
	}
	return TopicDownloadAndInstall
}

type ActionRequest struct {
	ActionID uint `json:"actionId"`
}

type DownloadAndUpdateRequest struct {
	ActionID            uint             `json:"actionId"`
	TargetSecurityToken string           `json:"targetSecurityToken"`
	SoftwareModules     []SoftwareModule `json:"softwareModules"`
}

type SoftwareModule struct {
	ModuleID      uint       `json:"moduleId"`
	ModuleType    string     `json:"moduleType"`
	ModuleVersion string     `json:"moduleVersion"`
	Encrypted     *bool      `json:"encrypted,omitempty"`
	Artifacts     []Artifact `json:"artifacts"`
	Metadata      []Metadata `json:"metadata,omitempty"`
}

type Artifact struct {
	Filename     string            `json:"filename"`
	Hashes       ArtifactHash      `json:"hashes"`
	Size         int64             `json:"size"`
	LastModified int64             `json:"lastModified"`
	URLs         map[string]string `json:"urls,omitempty"`
}

type ArtifactHash struct {
	SHA1 string `json:"sha1"`
	MD5  string `json:"md5"`
}

type Metadata struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Assignment is an action of a target together with the software modules of its distribution
// set. Metadata holds the target visible metadata of the modules keyed by module id.
type Assignment struct {
	Target   model.Target
	Action   model.Action
	Modules  []model.SoftwareModule
	Metadata map[uint][]model.Metadata
}
