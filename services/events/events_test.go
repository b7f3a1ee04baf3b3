package eventsvc

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kcci/portal/core"
)

func Test_newMessages(t *testing.T) {
	evt := core.NewEvent(core.EventSettlementCreated, "admin-1", map[string]string{"settlement_id": "s-1"})

	msgs, err := newMessages([]core.Event{evt})
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, []byte(core.EventSettlementCreated), msgs[0].Key)
	assert.Equal(t, evt.OccurredAt, msgs[0].Time)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(msgs[0].Value, &got))
	assert.Equal(t, evt.ID, got["id"])
	assert.Equal(t, "admin-1", got["actor_id"])
	assert.Equal(t, map[string]interface{}{"settlement_id": "s-1"}, got["data"])

	_, err = newMessages([]core.Event{core.NewEvent("bad", "", make(chan int))})
	assert.Error(t, err)
}

func TestPublisherMock(t *testing.T) {
	p := NewPublisherMock()
	ctx := context.Background()

	require.NoError(t, p.Publish(ctx,
		core.NewEvent(core.EventApplicationSubmitted, "", nil),
		core.NewEvent(core.EventApplicationApproved, "admin-1", nil),
	))
	require.NoError(t, p.Publish(ctx, core.NewEvent(core.EventApplicationSubmitted, "", nil)))

	assert.Len(t, p.Events(), 3)
	assert.Len(t, p.Events(core.EventApplicationSubmitted), 2)
	assert.Len(t, p.Events(core.EventApplicationApproved, core.EventApplicationRejected), 1)
	assert.Empty(t, p.Events(core.EventSettlementCreated))

	p.Reset()
	assert.Empty(t, p.Events())
}
