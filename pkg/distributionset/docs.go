package distributionset

import "github.com/dhis2-sre/update-manager/internal/handler"

// swagger:parameters findDistributionSet updateDistributionSet deleteDistributionSet findDistributionSetModules assignDistributionSetModules unassignDistributionSetModule invalidateDistributionSet findDistributionSetStatistics findDistributionSetActionStatistics findDistributionSetRolloutStatistics findDistributionSetAutoAssignmentStatistics assignDistributionSetTagTo unassignDistributionSetTagFrom
type _ struct {
	// in: path
	// required: true
	DistributionSetID uint `json:"distributionSetId"`
}

// swagger:parameters unassignDistributionSetModule
type _ struct {
	// in: path
	// required: true
	SoftwareModuleID uint `json:"softwareModuleId"`
}

// swagger:parameters findDistributionSetsByTag assignDistributionSetTag unassignDistributionSetTag assignDistributionSetTagTo unassignDistributionSetTagFrom
type _ struct {
	// in: path
	// required: true
	TagID uint `json:"tagId"`
}

// swagger:parameters createDistributionSets
type _ struct {
	// in: body
	// required: true
	Body []CreateRequest
}

// swagger:parameters updateDistributionSet
type _ struct {
	// in: body
	// required: true
	Body UpdateRequest
}

// swagger:parameters assignDistributionSetModules
type _ struct {
	// in: body
	// required: true
	Body []ModuleReference
}

// swagger:parameters assignDistributionSetTag unassignDistributionSetTag
type _ struct {
	// Ids of the distribution sets
	// in: body
	// required: true
	Body []uint
}

// swagger:parameters invalidateDistributionSet
type _ struct {
	// in: body
	// required: true
	Body InvalidateRequest
}

// swagger:response DistributionSet
type _ struct {
	// in: body
	_ Response
}

// swagger:response DistributionSetList
type _ struct {
	// in: body
	_ []Response
}

// swagger:response DistributionSetPage
type _ struct {
	// in: body
	_ handler.PagedList[Response]
}

// swagger:response DistributionSetStatistics
type _ struct {
	// in: body
	_ StatisticsResponse
}
