package model

const (
	ReadTarget   = "READ_TARGET"
	CreateTarget = "CREATE_TARGET"
	UpdateTarget = "UPDATE_TARGET"
	DeleteTarget = "DELETE_TARGET"

	ReadRepository   = "READ_REPOSITORY"
	CreateRepository = "CREATE_REPOSITORY"
	UpdateRepository = "UPDATE_REPOSITORY"
	DeleteRepository = "DELETE_REPOSITORY"

	ReadRollout    = "READ_ROLLOUT"
	CreateRollout  = "CREATE_ROLLOUT"
	UpdateRollout  = "UPDATE_ROLLOUT"
	DeleteRollout  = "DELETE_ROLLOUT"
	HandleRollout  = "HANDLE_ROLLOUT"
	ApproveRollout = "APPROVE_ROLLOUT"

	TenantConfigurationPermission = "TENANT_CONFIGURATION"
)

var AllPermissions = []string{
	ReadTarget, CreateTarget, UpdateTarget, DeleteTarget,
	ReadRepository, CreateRepository, UpdateRepository, DeleteRepository,
	ReadRollout, CreateRollout, UpdateRollout, DeleteRollout, HandleRollout, ApproveRollout,
	TenantConfigurationPermission,
}
