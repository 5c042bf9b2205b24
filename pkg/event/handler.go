package event

import (
	"io"
	"strconv"

	"github.com/dhis2-sre/update-manager/internal/errdef"
	"github.com/dhis2-sre/update-manager/internal/handler"
	"github.com/gin-gonic/gin"
)

func NewHandler(broker broker) Handler {
	return Handler{broker}
}

type Handler struct {
	broker broker
}

type broker interface {
	Subscribe(tenant string) (string, <-chan Event)
	Unsubscribe(id string)
}

// Subscribe streams the events of the users tenant as server-sent events until the client
// disconnects.
func (h Handler) Subscribe(c *gin.Context) {
	// swagger:route GET /events streamEvents
	//
	// Stream events
	//
	// Stream changes of actions as server-sent events. Events are filtered to the given target if
	// the targetId query parameter is set.
	//
	// responses:
	//   200: Stream
	//   400: Error
	//   401: Error
	//   403: Error
	//
	// security:
	//   oauth2:
	user, err := handler.GetUserFromContext(c)
	if err != nil {
		_ = c.Error(err)
		return
	}

	var targetID uint
	if param := c.Query("targetId"); param != "" {
		id, err := strconv.ParseUint(param, 10, 32)
		if err != nil {
			_ = c.Error(errdef.NewBadRequest("invalid targetId %q", param))
			return
		}
		targetID = uint(id)
	}

	id, events := h.broker.Subscribe(user.Tenant)
	defer h.broker.Unsubscribe(id)

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case event, ok := <-events:
			if !ok {
				return false
			}
			if targetID != 0 && event.TargetID != targetID {
				return true
			}
			c.SSEvent(event.Type, event)
			return true
		}
	})
}
