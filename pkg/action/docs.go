package action

import "github.com/dhis2-sre/update-manager/internal/handler"

// swagger:parameters findAction deleteAction findActionOfTarget cancelAction updateAction confirmAction findActionStatuses
type _ struct {
	// in: path
	// required: true
	ActionID uint `json:"actionId"`
}

// swagger:parameters findAllActionsOfTarget findActionOfTarget cancelAction updateAction confirmAction findActionStatuses
type _ struct {
	// Controller id of the target
	// in: path
	// required: true
	TargetID string `json:"targetId"`
}

// swagger:parameters findAllActions findAllActionsOfTarget
type _ struct {
	// in: query
	// enum: compact,full
	Representation string `json:"representation"`
}

// swagger:parameters deleteActions
type _ struct {
	// Comma separated ids of the actions to delete
	// in: query
	ActionIDs string `json:"actionIds"`
}

// swagger:parameters cancelAction
type _ struct {
	// in: query
	Force bool `json:"force"`
}

// swagger:parameters updateAction
type _ struct {
	// in: body
	// required: true
	Body UpdateRequest
}

// swagger:parameters confirmAction
type _ struct {
	// in: body
	// required: true
	Body ConfirmationRequest
}

// swagger:response Action
type _ struct {
	// in: body
	_ Response
}

// swagger:response ActionPage
type _ struct {
	// in: body
	_ handler.PagedList[Response]
}

// swagger:response ActionStatusPage
type _ struct {
	// in: body
	_ handler.PagedList[StatusResponse]
}
