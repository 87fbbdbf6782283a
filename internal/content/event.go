package content

// Action is the kind of change a storage collaborator reports
type Action int

const (
	ActionPublished Action = iota
	ActionUnpublished
	ActionSaved
	ActionDeleted
)

func (a Action) String() string {
	switch a {
	case ActionPublished:
		return "published"
	case ActionUnpublished:
		return "unpublished"
	case ActionSaved:
		return "saved"
	case ActionDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// Event describes a change to a servable object. Draft saves of pages do
// not produce events since the served content is unchanged.
type Event struct {
	Kind   Kind
	ID     int
	Action Action
}

// EventHandler receives change events from a store
type EventHandler func(Event)
