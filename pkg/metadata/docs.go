package metadata

import "github.com/dhis2-sre/update-manager/internal/handler"

// swagger:route GET /targets/{targetId}/metadata findTargetMetadata
//
// Find target metadata
//
// Find the metadata of a target, paged and filterable by key and value.
//
// security:
//   oauth2:
//
// responses:
//   200: MetadataPage
//   400: Error
//   401: Error
//   403: Error
//   404: Error

// swagger:route POST /targets/{targetId}/metadata createTargetMetadata
//
// Create target metadata
//
// Create one or more metadata entries of a target. Keys must be unique per target.
//
// security:
//   oauth2:
//
// responses:
//   201: MetadataList
//   400: Error
//   401: Error
//   403: Error
//   404: Error
//   409: Error
//   415: Error

// swagger:route GET /targets/{targetId}/metadata/{key} findTargetMetadataByKey
//
// Find target metadata by key
//
// security:
//   oauth2:
//
// responses:
//   200: Metadata
//   401: Error
//   403: Error
//   404: Error

// swagger:route PUT /targets/{targetId}/metadata/{key} updateTargetMetadata
//
// Update target metadata
//
// security:
//   oauth2:
//
// responses:
//   200: Metadata
//   400: Error
//   401: Error
//   403: Error
//   404: Error
//   415: Error

// swagger:route DELETE /targets/{targetId}/metadata/{key} deleteTargetMetadata
//
// Delete target metadata
//
// security:
//   oauth2:
//
// responses:
//   200:
//   401: Error
//   403: Error
//   404: Error

// swagger:parameters findTargetMetadata createTargetMetadata findTargetMetadataByKey updateTargetMetadata deleteTargetMetadata
type _ struct {
	// in: path
	// required: true
	TargetID string `json:"targetId"`
}

// swagger:route GET /distributionsets/{distributionSetId}/metadata findDistributionSetMetadata
//
// Find distribution set metadata
//
// Find the metadata of a distribution set, paged and filterable by key and value.
//
// security:
//   oauth2:
//
// responses:
//   200: MetadataPage
//   400: Error
//   401: Error
//   403: Error
//   404: Error

// swagger:route POST /distributionsets/{distributionSetId}/metadata createDistributionSetMetadata
//
// Create distribution set metadata
//
// Create one or more metadata entries of a distribution set. Keys must be unique per distribution set.
//
// security:
//   oauth2:
//
// responses:
//   201: MetadataList
//   400: Error
//   401: Error
//   403: Error
//   404: Error
//   409: Error
//   415: Error

// swagger:route GET /distributionsets/{distributionSetId}/metadata/{key} findDistributionSetMetadataByKey
//
// Find distribution set metadata by key
//
// security:
//   oauth2:
//
// responses:
//   200: Metadata
//   401: Error
//   403: Error
//   404: Error

// swagger:route PUT /distributionsets/{distributionSetId}/metadata/{key} updateDistributionSetMetadata
//
// Update distribution set metadata
//
// security:
//   oauth2:
//
// responses:
//   200: Metadata
//   400: Error
//   401: Error
//   403: Error
//   404: Error
//   415: Error

// swagger:route DELETE /distributionsets/{distributionSetId}/metadata/{key} deleteDistributionSetMetadata
//
// Delete distribution set metadata
//
// security:
//   oauth2:
//
// responses:
//   200:
//   401: Error
//   403: Error
//   404: Error

// swagger:parameters findDistributionSetMetadata createDistributionSetMetadata findDistributionSetMetadataByKey updateDistributionSetMetadata deleteDistributionSetMetadata
type _ struct {
	// in: path
	// required: true
	DistributionSetID string `json:"distributionSetId"`
}

// swagger:route GET /softwaremodules/{softwareModuleId}/metadata findSoftwareModuleMetadata
//
// Find software module metadata
//
// Find the metadata of a software module, paged and filterable by key and value.
//
// security:
//   oauth2:
//
// responses:
//   200: MetadataPage
//   400: Error
//   401: Error
//   403: Error
//   404: Error

// swagger:route POST /softwaremodules/{softwareModuleId}/metadata createSoftwareModuleMetadata
//
// Create software module metadata
//
// Create one or more metadata entries of a software module. Keys must be unique per software module.
//
// security:
//   oauth2:
//
// responses:
//   201: MetadataList
//   400: Error
//   401: Error
//   403: Error
//   404: Error
//   409: Error
//   415: Error

// swagger:route GET /softwaremodules/{softwareModuleId}/metadata/{key} findSoftwareModuleMetadataByKey
//
// Find software module metadata by key
//
// security:
//   oauth2:
//
// responses:
//   200: Metadata
//   401: Error
//   403: Error
//   404: Error

// swagger:route PUT /softwaremodules/{softwareModuleId}/metadata/{key} updateSoftwareModuleMetadata
//
// Update software module metadata
//
// security:
//   oauth2:
//
// responses:
//   200: Metadata
//   400: Error
//   401: Error
//   403: Error
//   404: Error
//   415: Error

// swagger:route DELETE /softwaremodules/{softwareModuleId}/metadata/{key} deleteSoftwareModuleMetadata
//
// Delete software module metadata
//
// security:
//   oauth2:
//
// responses:
//   200:
//   401: Error
//   403: Error
//   404: Error

// swagger:parameters findSoftwareModuleMetadata createSoftwareModuleMetadata findSoftwareModuleMetadataByKey updateSoftwareModuleMetadata deleteSoftwareModuleMetadata
type _ struct {
	// in: path
	// required: true
	SoftwareModuleID string `json:"softwareModuleId"`
}

// swagger:parameters findTargetMetadataByKey updateTargetMetadata deleteTargetMetadata findDistributionSetMetadataByKey updateDistributionSetMetadata deleteDistributionSetMetadata findSoftwareModuleMetadataByKey updateSoftwareModuleMetadata deleteSoftwareModuleMetadata
type _ struct {
	// in: path
	// required: true
	Key string `json:"key"`
}

// swagger:parameters createTargetMetadata createDistributionSetMetadata createSoftwareModuleMetadata
type _ struct {
	// in: body
	// required: true
	Body []CreateRequest
}

// swagger:parameters updateTargetMetadata updateDistributionSetMetadata updateSoftwareModuleMetadata
type _ struct {
	// in: body
	// required: true
	Body UpdateRequest
}

// swagger:response Metadata
type _ struct {
	// in: body
	_ Response
}

// swagger:response MetadataList
type _ struct {
	// in: body
	_ []Response
}

// swagger:response MetadataPage
type _ struct {
	// in: body
	_ handler.PagedList[Response]
}
