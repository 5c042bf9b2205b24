package softwaremodule

import "github.com/dhis2-sre/update-manager/internal/handler"

// swagger:parameters findSoftwareModule updateSoftwareModule deleteSoftwareModule uploadArtifact findArtifacts findArtifact downloadArtifact deleteArtifact
type _ struct {
	// in: path
	// required: true
	SoftwareModuleID uint `json:"softwareModuleId"`
}

// swagger:parameters findArtifact downloadArtifact deleteArtifact
type _ struct {
	// in: path
	// required: true
	ArtifactID uint `json:"artifactId"`
}

// swagger:parameters createSoftwareModules
type _ struct {
	// in: body
	// required: true
	Body []CreateRequest
}

// swagger:parameters updateSoftwareModule
type _ struct {
	// in: body
	// required: true
	Body UpdateRequest
}

// swagger:parameters uploadArtifact
type _ struct {
	// in: formData
	// required: true
	// swagger:file
	File []byte `json:"file"`
	// in: formData
	Filename string `json:"filename"`
	// in: formData
	MD5Sum string `json:"md5sum"`
	// in: formData
	SHA1Sum string `json:"sha1sum"`
	// in: formData
	SHA256Sum string `json:"sha256sum"`
}

// swagger:response SoftwareModule
type _ struct {
	// in: body
	_ Response
}

// swagger:response SoftwareModuleList
type _ struct {
	// in: body
	_ []Response
}

// swagger:response SoftwareModulePage
type _ struct {
	// in: body
	_ handler.PagedList[Response]
}

// swagger:response Artifact
type _ struct {
	// in: body
	_ ArtifactResponse
}

// swagger:response ArtifactList
type _ struct {
	// in: body
	_ []ArtifactResponse
}

// swagger:response DownloadArtifactResponse
type _ struct {
	// in: body
	//
	// swagger:file
	_ []byte
}
