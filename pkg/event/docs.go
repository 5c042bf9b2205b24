package event

// swagger:parameters streamEvents
type _ struct {
	// Only stream events of this target
	// in: query
	// required: false
	TargetID uint `json:"targetId"`
}

// Stream of server-sent events. The data of each event is a JSON encoded event.
// swagger:response Stream
type _ struct {
	// in: body
	_ Event
}
