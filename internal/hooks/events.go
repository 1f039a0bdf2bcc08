package hooks

import "github.com/MrSnakeDoc/serverlist/internal/domain"

// Kind identifies an event variant.
type Kind string

const (
	KindAddServer    Kind = "add-server"
	KindRemoveServer Kind = "remove-server"
	KindUpdateQuery  Kind = "update-query-data"
	KindRemoveQuery  Kind = "remove-query-data"
)

// Event is a proposed registry mutation. Listeners may rewrite the exported
// fields of the concrete event, or cancel it.
type Event interface {
	Kind() Kind
	Cancel()
	Cancelled() bool
}

type cancellable struct {
	cancelled bool
}

func (c *cancellable) Cancel()         { c.cancelled = true }
func (c *cancellable) Cancelled() bool { return c.cancelled }

// AddServerEvent is dispatched before a server definition is stored.
type AddServerEvent struct {
	cancellable
	ID     string
	Server domain.Server
}

func (*AddServerEvent) Kind() Kind { return KindAddServer }

// RemoveServerEvent is dispatched before a server definition is removed.
type RemoveServerEvent struct {
	cancellable
	ID string
}

func (*RemoveServerEvent) Kind() Kind { return KindRemoveServer }

// UpdateQueryEvent is dispatched before a status result is cached.
type UpdateQueryEvent struct {
	cancellable
	ID      string
	Tag     string
	Payload domain.Payload
}

func (*UpdateQueryEvent) Kind() Kind { return KindUpdateQuery }

// RemoveQueryEvent is dispatched before cached status results are dropped.
// AllTags means every tag of ID is removed and Tag is ignored.
type RemoveQueryEvent struct {
	cancellable
	ID      string
	Tag     string
	AllTags bool
}

func (*RemoveQueryEvent) Kind() Kind { return KindRemoveQuery }
