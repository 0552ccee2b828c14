package queue

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStream struct {
	groupErr error
	read     []redis.XStream
	readErr  error
	pending  []redis.XPendingExt
	claimed  map[string]redis.XMessage
	acked    []string
}

func (f *fakeStream) XGroupCreateMkStream(context.Context, string, string, string) *redis.StatusCmd {
	return redis.NewStatusResult("OK", f.groupErr)
}

func (f *fakeStream) XReadGroup(context.Context, *redis.XReadGroupArgs) *redis.XStreamSliceCmd {
	return redis.NewXStreamSliceCmdResult(f.read, f.readErr)
}

func (f *fakeStream) XAck(_ context.Context, _ string, _ string, ids ...string) *redis.IntCmd {
	f.acked = append(f.acked, ids...)
	return redis.NewIntResult(int64(len(ids)), nil)
}

func (f *fakeStream) XPendingExt(ctx context.Context, _ *redis.XPendingExtArgs) *redis.XPendingExtCmd {
	cmd := redis.NewXPendingExtCmd(ctx)
	cmd.SetVal(f.pending)
	return cmd
}

func (f *fakeStream) XClaim(_ context.Context, a *redis.XClaimArgs) *redis.XMessageSliceCmd {
	var msgs []redis.XMessage
	for _, id := range a.Messages {
		if msg, ok := f.claimed[id]; ok {
			msgs = append(msgs, msg)
		}
	}
	return redis.NewXMessageSliceCmdResult(msgs, nil)
}

type recordingHandler struct {
	seen []string
	errs map[string]error
}

func (h *recordingHandler) Handle(_ context.Context, msg redis.XMessage) error {
	h.seen = append(h.seen, msg.ID)
	return h.errs[msg.ID]
}

func newTestConsumer(client StreamClient, handler MessageHandler) *Consumer {
	return NewConsumer(client, "mail:outbound", "mail-workers", "w1", time.Minute, zerolog.Nop(), handler)
}

func TestConsumer_ReadAcksHandledAndPermanent(t *testing.T) {
	stream := &fakeStream{read: []redis.XStream{{
		Stream: "mail:outbound",
		Messages: []redis.XMessage{
			{ID: "1-0"},
			{ID: "2-0"},
			{ID: "3-0"},
		},
	}}}
	handler := &recordingHandler{errs: map[string]error{
		"2-0": errors.New("smtp timeout"),
		"3-0": fmt.Errorf("%w: bad payload", ErrPermanent),
	}}

	require.NoError(t, newTestConsumer(stream, handler).read(context.Background()))

	assert.Equal(t, []string{"1-0", "2-0", "3-0"}, handler.seen)
	assert.Equal(t, []string{"1-0", "3-0"}, stream.acked)
}

func TestConsumer_ReadEmptyAndErrors(t *testing.T) {
	stream := &fakeStream{readErr: redis.Nil}
	assert.NoError(t, newTestConsumer(stream, &recordingHandler{}).read(context.Background()))

	stream.readErr = errors.New("connection refused")
	assert.Error(t, newTestConsumer(stream, &recordingHandler{}).read(context.Background()))
}

func TestConsumer_ClaimStalled(t *testing.T) {
	stream := &fakeStream{
		pending: []redis.XPendingExt{
			{ID: "1-0", Idle: 2 * time.Minute, RetryCount: 1},
			{ID: "2-0", Idle: 2 * time.Minute, RetryCount: MaxDeliveries},
		},
		claimed: map[string]redis.XMessage{"1-0": {ID: "1-0"}},
	}
	handler := &recordingHandler{}

	require.NoError(t, newTestConsumer(stream, handler).claimStalled(context.Background()))

	assert.Equal(t, []string{"1-0"}, handler.seen)
	assert.ElementsMatch(t, []string{"1-0", "2-0"}, stream.acked)
}

func TestConsumer_EnsureGroup(t *testing.T) {
	stream := &fakeStream{groupErr: errors.New("BUSYGROUP Consumer Group name already exists")}
	assert.NoError(t, newTestConsumer(stream, &recordingHandler{}).EnsureGroup(context.Background()))

	stream.groupErr = errors.New("NOPERM")
	assert.Error(t, newTestConsumer(stream, &recordingHandler{}).EnsureGroup(context.Background()))
}

func TestConsumer_StartStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := newTestConsumer(&fakeStream{readErr: redis.Nil}, &recordingHandler{}).Start(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
