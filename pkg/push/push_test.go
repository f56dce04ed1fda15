package push

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"firebase.google.com/go/v4/messaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMulticaster struct {
	calls    [][]string
	failures map[string]error
	err      error
}

func (f *fakeMulticaster) SendEachForMulticast(_ context.Context, msg *messaging.MulticastMessage) (*messaging.BatchResponse, error) {
	f.calls = append(f.calls, msg.Tokens)
	if f.err != nil {
		return nil, f.err
	}
	resp := &messaging.BatchResponse{}
	for _, token := range msg.Tokens {
		if err, ok := f.failures[token]; ok {
			resp.FailureCount++
			resp.Responses = append(resp.Responses, &messaging.SendResponse{Error: err})
			continue
		}
		resp.SuccessCount++
		resp.Responses = append(resp.Responses, &messaging.SendResponse{Success: true, MessageID: "m-" + token})
	}
	return resp, nil
}

func TestSendMulticastChunksTokens(t *testing.T) {
	fake := &fakeMulticaster{}
	client := &Client{fcm: fake, batchSize: MaxMulticastTokens, enabled: true}

	tokens := make([]string, 1201)
	for i := range tokens {
		tokens[i] = fmt.Sprintf("tok-%d", i)
	}

	results, err := client.SendMulticast(context.Background(), tokens, Message{Title: "New order"})
	require.NoError(t, err)
	require.Len(t, results, 1201)
	require.Len(t, fake.calls, 3)
	assert.Len(t, fake.calls[0], 500)
	assert.Len(t, fake.calls[1], 500)
	assert.Len(t, fake.calls[2], 201)
	assert.Equal(t, "m-tok-1200", results[1200].MessageID)
}

func TestSendMulticastPartitionsFailures(t *testing.T) {
	fake := &fakeMulticaster{failures: map[string]error{"bad": errors.New("quota exceeded")}}
	client := &Client{fcm: fake, batchSize: 2, enabled: true}

	results, err := client.SendMulticast(context.Background(), []string{"ok", "bad", "ok2"}, Message{})
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.NoError(t, results[0].Err)
	assert.Error(t, results[1].Err)
	assert.False(t, results[1].Permanent)
	assert.Equal(t, "ok2", results[2].Token)
}

func TestSendMulticastTransportError(t *testing.T) {
	client := &Client{fcm: &fakeMulticaster{err: errors.New("unavailable")}, batchSize: 500, enabled: true}

	_, err := client.SendMulticast(context.Background(), []string{"a"}, Message{})
	assert.Error(t, err)
}

func TestSendMulticastDisabledOrEmpty(t *testing.T) {
	fake := &fakeMulticaster{}
	disabled := &Client{fcm: fake, batchSize: 500}
	results, err := disabled.SendMulticast(context.Background(), []string{"a"}, Message{})
	require.NoError(t, err)
	assert.Nil(t, results)

	enabled := &Client{fcm: fake, batchSize: 500, enabled: true}
	results, err = enabled.SendMulticast(context.Background(), nil, Message{})
	require.NoError(t, err)
	assert.Nil(t, results)
	assert.Empty(t, fake.calls)
}

func TestClampBatch(t *testing.T) {
	assert.Equal(t, 500, clampBatch(0))
	assert.Equal(t, 500, clampBatch(1000))
	assert.Equal(t, 100, clampBatch(100))
}

func TestIsPermanentPlainError(t *testing.T) {
	assert.False(t, IsPermanent(nil))
	assert.False(t, IsPermanent(errors.New("boom")))
}
