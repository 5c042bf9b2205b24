package tenantconfig

// swagger:parameters findTenantConfiguration updateTenantConfiguration deleteTenantConfiguration
type _ struct {
	// in: path
	// required: true
	Key string `json:"key"`
}

// swagger:parameters updateTenantConfiguration
type _ struct {
	// in: body
	// required: true
	Body UpdateValueRequest
}

// swagger:parameters updateTenantConfigurations
type _ struct {
	// Values keyed by configuration key
	// in: body
	// required: true
	Body map[string]any
}

// swagger:response TenantConfigurationValue
type _ struct {
	// in: body
	_ ValueResponse
}

// swagger:response TenantConfigurationValues
type _ struct {
	// in: body
	_ map[string]ValueResponse
}
