// Package health serves the liveness and readiness endpoints.
package health

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Health responds with 200 as long as the service is able to handle requests.
func Health(c *gin.Context) {
	// swagger:route GET /health health
	//
	// Service health
	//
	// Show service health status
	//
	// responses:
	//   200: Health
	c.JSON(http.StatusOK, gin.H{
		"status": true,
	})
}

// Check returns an error if a dependency is not usable.
type Check func(ctx context.Context) error

// NewReadiness creates a readiness handler running given named checks.
func NewReadiness(checks map[string]Check) Readiness {
	return Readiness{checks: checks}
}

type Readiness struct {
	checks map[string]Check
}

// Ready responds with 200 if all checks pass and 503 with the failed checks otherwise.
func (r Readiness) Ready(c *gin.Context) {
	// swagger:route GET /ready ready
	//
	// Service readiness
	//
	// Show whether the service and its dependencies are ready
	//
	// responses:
	//   200: Ready
	//   503: Ready
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(r.checks))
	for name, check := range r.checks {
		if err := check(ctx); err != nil {
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	c.JSON(status, gin.H{
		"status": status == http.StatusOK,
		"checks": checks,
	})
}
