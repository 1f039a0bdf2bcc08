package hooks

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/serverlist/internal/domain"
)

func TestDispatchWithoutListenersApproves(t *testing.T) {
	p := NewPipeline(nil)
	ev := &RemoveServerEvent{ID: "alpha"}

	assert.True(t, p.Dispatch(context.Background(), ev))
	assert.False(t, ev.Cancelled())
}

func TestDispatchRunsListenersInOrder(t *testing.T) {
	p := NewPipeline(nil)
	var order []int
	for i := 1; i <= 3; i++ {
		p.Register(func(context.Context, Event) { order = append(order, i) })
	}

	require.True(t, p.Dispatch(context.Background(), &RemoveServerEvent{ID: "a"}))
	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestDispatchStopsAtFirstCancel(t *testing.T) {
	p := NewPipeline(nil)
	var calls []string
	p.Register(func(_ context.Context, ev Event) {
		calls = append(calls, "first")
		ev.Cancel()
	})
	p.Register(func(context.Context, Event) { calls = append(calls, "second") })

	assert.False(t, p.Dispatch(context.Background(), &RemoveServerEvent{ID: "a"}))
	assert.Equal(t, []string{"first"}, calls)
}

func TestListenersRewriteEvent(t *testing.T) {
	p := NewPipeline(nil)
	p.OnAddServer(func(_ context.Context, ev *AddServerEvent) {
		ev.ID = "renamed"
		ev.Server.Port = 19200
	})

	ev := &AddServerEvent{ID: "alpha", Server: domain.NewServer("10.0.0.5")}
	require.True(t, p.Dispatch(context.Background(), ev))
	assert.Equal(t, "renamed", ev.ID)
	assert.Equal(t, 19200, ev.Server.Port)
}

func TestTypedHelpersFilterByKind(t *testing.T) {
	p := NewPipeline(nil)
	var seen []Kind
	p.OnRemoveQuery(func(_ context.Context, ev *RemoveQueryEvent) { seen = append(seen, ev.Kind()) })
	p.OnUpdateQuery(func(_ context.Context, ev *UpdateQueryEvent) { seen = append(seen, ev.Kind()) })

	ctx := context.Background()
	p.Dispatch(ctx, &AddServerEvent{ID: "a"})
	p.Dispatch(ctx, &UpdateQueryEvent{ID: "a", Tag: "ping"})
	p.Dispatch(ctx, &RemoveQueryEvent{ID: "a", AllTags: true})

	assert.Equal(t, []Kind{KindUpdateQuery, KindRemoveQuery}, seen)
}

func TestUnregister(t *testing.T) {
	p := NewPipeline(nil)
	calls := 0
	unregister := p.Register(func(context.Context, Event) { calls++ })
	p.Register(func(context.Context, Event) {})
	require.Equal(t, 2, p.Len())

	unregister()
	unregister()
	assert.Equal(t, 1, p.Len())

	p.Dispatch(context.Background(), &RemoveServerEvent{ID: "a"})
	assert.Zero(t, calls)
}

func TestListenerContextIsMarked(t *testing.T) {
	p := NewPipeline(nil)
	var inside bool
	p.Register(func(ctx context.Context, _ Event) { inside = InDispatch(ctx) })

	ctx := context.Background()
	assert.False(t, InDispatch(ctx))
	p.Dispatch(ctx, &RemoveServerEvent{ID: "a"})
	assert.True(t, inside)
}
