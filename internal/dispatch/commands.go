package dispatch

import "strings"

const (
	VerbApprove   = "approve"
	VerbReject    = "reject"
	VerbReady     = "ready"
	VerbDelivered = "delivered"

	EntityOrder   = "order"
	EntityPayment = "payment"
)

// Command is the button payload the bot transport echoes back on click. The
// wire shape stays `verb_entity_id` for compatibility with the transport, but
// both directions go through this codec: encoding joins exactly once per
// field and parsing cuts from the left, so the trailing id may itself contain
// underscores. For kitchen buttons Entity carries the department id and ID
// the order id (ready_<departmentId>_<orderId>).
type Command struct {
	Verb   string
	Entity string
	ID     string
}

func (c Command) Encode() string {
	return c.Verb + "_" + c.Entity + "_" + c.ID
}

func ParseCommand(raw string) (Command, bool) {
	verb, rest, ok := strings.Cut(strings.TrimSpace(raw), "_")
	if !ok || verb == "" {
		return Command{}, false
	}
	entity, id, ok := strings.Cut(rest, "_")
	if !ok || entity == "" || id == "" {
		return Command{}, false
	}
	return Command{Verb: verb, Entity: entity, ID: id}, true
}
