// Package endpoint holds the operational routes of the run service.
package endpoint

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Pret-a-LLOD/Fintan/observability"
	"github.com/Pret-a-LLOD/Fintan/version"
)

// Check is one named health check.
type Check struct {
	Name string
	Fn   observability.CheckFunc
}

// Health reports service health. activeRuns may be nil.
func Health(service string, activeRuns func() int64, checks ...Check) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := observability.NewServiceHealth(service, version.Get().Short())
		if activeRuns != nil {
			h.ActiveRuns = activeRuns()
		}
		ctx := c.Request.Context()
		for _, ch := range checks {
			h.Check(ctx, ch.Name, ch.Fn)
		}
		status := http.StatusOK
		if h.Status == observability.HealthStatusDown {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, h)
	}
}

// DirCheck reports down when dir cannot be listed.
func DirCheck(list func() ([]string, error)) observability.CheckFunc {
	return func(context.Context) error {
		_, err := list()
		return err
	}
}
