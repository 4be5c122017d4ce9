package realtime

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TRIPCOLLAB_BACK-END/internal/models"
)

func event(planID uuid.UUID, table, id string) models.ChangeEvent {
	return models.ChangeEvent{ID: id, Table: table, Type: models.ChangeInsert, PlanID: planID}
}

func drain(ch <-chan models.ChangeEvent) []models.ChangeEvent {
	var out []models.ChangeEvent
	for {
		select {
		case ev := <-ch:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func TestHub_RoutesByPlanAndTable(t *testing.T) {
	h := NewHub(zerolog.Nop())
	planA, planB := uuid.New(), uuid.New()

	all := h.Subscribe(planA)
	defer all.Close()
	votesOnly := h.Subscribe(planA, models.TableVotes)
	defer votesOnly.Close()
	other := h.Subscribe(planB)
	defer other.Close()
	assert.Equal(t, 2, h.Subscribers(planA))

	h.Publish(event(planA, models.TableProposals, "1"))
	h.Publish(event(planA, models.TableVotes, "2"))
	h.Publish(event(planB, models.TableVotes, "3"))

	got := drain(all.Events)
	require.Len(t, got, 2)
	assert.Equal(t, "1", got[0].ID)
	assert.Equal(t, "2", got[1].ID)

	got = drain(votesOnly.Events)
	require.Len(t, got, 1)
	assert.Equal(t, "2", got[0].ID)

	got = drain(other.Events)
	require.Len(t, got, 1)
	assert.Equal(t, "3", got[0].ID)
}

func TestHub_DropsDuplicateIDs(t *testing.T) {
	h := NewHub(zerolog.Nop(), WithDedupeWindow(2))
	plan := uuid.New()
	sub := h.Subscribe(plan)
	defer sub.Close()

	h.Publish(event(plan, models.TableVotes, "a"))
	h.Publish(event(plan, models.TableVotes, "a"))
	h.Publish(event(plan, models.TableVotes, "b"))
	h.Publish(event(plan, models.TableVotes, "c"))
	// "a" fell out of the window
	h.Publish(event(plan, models.TableVotes, "a"))
	h.Publish(event(plan, models.TableVotes, ""))
	h.Publish(event(plan, models.TableVotes, ""))

	ids := make([]string, 0)
	for _, ev := range drain(sub.Events) {
		ids = append(ids, ev.ID)
	}
	assert.Equal(t, []string{"a", "b", "c", "a", "", ""}, ids)
}

func TestHub_OverflowDropsOldest(t *testing.T) {
	h := NewHub(zerolog.Nop(), WithSubscriberBuffer(3))
	plan := uuid.New()
	sub := h.Subscribe(plan)
	defer sub.Close()

	for i := range 5 {
		h.Publish(event(plan, models.TableMessages, fmt.Sprint(i)))
	}

	got := drain(sub.Events)
	require.Len(t, got, 3)
	assert.Equal(t, "2", got[0].ID)
	assert.Equal(t, "4", got[2].ID)
}

func TestHub_CloseEndsSubscriptions(t *testing.T) {
	h := NewHub(zerolog.Nop())
	plan := uuid.New()
	sub := h.Subscribe(plan)

	sub.Close()
	_, ok := <-sub.Events
	assert.False(t, ok)
	assert.Zero(t, h.Subscribers(plan))
	sub.Close()

	other := h.Subscribe(plan)
	h.Close()
	_, ok = <-other.Events
	assert.False(t, ok)
	h.Publish(event(plan, models.TableVotes, "late"))
}

type scriptedFeed struct {
	events []models.ChangeEvent
	err    error
}

func (f scriptedFeed) Listen(ctx context.Context, fn func(models.ChangeEvent)) error {
	for _, ev := range f.events {
		fn(ev)
	}
	if f.err != nil {
		return f.err
	}
	<-ctx.Done()
	return ctx.Err()
}

func TestHub_Run(t *testing.T) {
	h := NewHub(zerolog.Nop())
	plan := uuid.New()
	sub := h.Subscribe(plan)
	defer sub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- h.Run(ctx, scriptedFeed{events: []models.ChangeEvent{
			event(plan, models.TableProposals, "p1"),
			event(uuid.New(), models.TableProposals, "p2"),
		}})
	}()

	select {
	case ev := <-sub.Events:
		assert.Equal(t, "p1", ev.ID)
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
	cancel()
	assert.NoError(t, <-done, "cancellation is a clean stop")

	broken := errors.New("connection lost")
	err := h.Run(context.Background(), scriptedFeed{err: broken})
	assert.ErrorIs(t, err, broken)
}
