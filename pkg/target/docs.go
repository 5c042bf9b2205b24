package target

import "github.com/dhis2-sre/update-manager/internal/handler"

// swagger:parameters findTarget updateTarget deleteTarget assignTargetType unassignTargetType findTargetAttributes findTargetTags findAssignedDistributionSet findInstalledDistributionSet assignDistributionSets findAutoConfirm activateAutoConfirm deactivateAutoConfirm assignTargetTagTo unassignTargetTagFrom
type _ struct {
	// in: path
	// required: true
	TargetID string `json:"targetId"`
}

// swagger:parameters findTaggedTargets assignTargetTag unassignTargetTag assignTargetTagTo unassignTargetTagFrom
type _ struct {
	// in: path
	// required: true
	TagID uint `json:"tagId"`
}

// swagger:parameters findAssignedTargets findInstalledTargets assignTargets
type _ struct {
	// in: path
	// required: true
	DistributionSetID uint `json:"distributionSetId"`
}

// swagger:parameters assignDistributionSets assignTargets
type _ struct {
	// Record the distribution sets as installed without creating running actions
	// in: query
	Offline bool `json:"offline"`
}

// swagger:parameters createTargets
type _ struct {
	// in: body
	// required: true
	Body []CreateRequest
}

// swagger:parameters updateTarget
type _ struct {
	// in: body
	// required: true
	Body UpdateRequest
}

// swagger:parameters assignTargetType
type _ struct {
	// in: body
	// required: true
	Body TargetTypeReference
}

// swagger:parameters assignDistributionSets
type _ struct {
	// in: body
	// required: true
	Body []AssignmentRequest
}

// swagger:parameters assignTargets
type _ struct {
	// in: body
	// required: true
	Body []TargetAssignmentRequest
}

// swagger:parameters assignTargetTag unassignTargetTag
type _ struct {
	// Controller ids of the targets
	// in: body
	// required: true
	Body []string
}

// swagger:parameters activateAutoConfirm
type _ struct {
	// in: body
	Body ActivateAutoConfirmRequest
}

// swagger:response Target
type _ struct {
	// in: body
	_ Response
}

// swagger:response TargetList
type _ struct {
	// in: body
	_ []Response
}

// swagger:response TargetPage
type _ struct {
	// in: body
	_ handler.PagedList[Response]
}

// swagger:response TargetAttributes
type _ struct {
	// in: body
	_ map[string]string
}

// swagger:response Assignment
type _ struct {
	// in: body
	_ AssignmentResponse
}

// swagger:response AutoConfirm
type _ struct {
	// in: body
	_ AutoConfirmResponse
}
