package rollout

import "github.com/dhis2-sre/update-manager/internal/handler"

// swagger:parameters findRollout updateRollout deleteRollout approveRollout denyRollout startRollout pauseRollout resumeRollout stopRollout triggerNextRolloutGroup retryRollout findRolloutGroups findRolloutGroup findRolloutGroupTargets
type _ struct {
	// in: path
	// required: true
	RolloutID uint `json:"rolloutId"`
}

// swagger:parameters findRolloutGroup findRolloutGroupTargets
type _ struct {
	// in: path
	// required: true
	GroupID uint `json:"groupId"`
}

// swagger:parameters approveRollout denyRollout
type _ struct {
	// in: query
	Remark string `json:"remark"`
}

// swagger:parameters findAllRollouts
type _ struct {
	// Either compact or full, full includes the target counts per status
	// in: query
	Representation string `json:"representation"`
}

// swagger:parameters createRollout
type _ struct {
	// in: body
	// required: true
	Body CreateRequest
}

// swagger:parameters updateRollout
type _ struct {
	// in: body
	// required: true
	Body UpdateRequest
}

// swagger:response Rollout
type _ struct {
	// in: body
	_ Response
}

// swagger:response RolloutPage
type _ struct {
	// in: body
	_ handler.PagedList[Response]
}

// swagger:response RolloutGroup
type _ struct {
	// in: body
	_ GroupResponse
}

// swagger:response RolloutGroupPage
type _ struct {
	// in: body
	_ handler.PagedList[GroupResponse]
}
