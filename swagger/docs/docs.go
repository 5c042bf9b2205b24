package docs

import "github.com/dhis2-sre/update-manager/internal/middleware"

// Error returned by every endpoint on failure
// swagger:response Error
type _ struct {
	// in: body
	_ middleware.ErrorResponse
}
