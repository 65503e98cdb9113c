package messaging

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	NopPublisher
	subject string
	data    []byte
	err     error
}

func (p *recordingPublisher) Publish(_ context.Context, subject string, data []byte) error {
	p.subject = subject
	p.data = data
	return p.err
}

func TestPublishJSON(t *testing.T) {
	p := &recordingPublisher{}

	err := PublishJSON(context.Background(), p, SubjectPerformanceAlertsCreated, map[string]string{"severity": "high"})
	require.NoError(t, err)

	assert.Equal(t, SubjectPerformanceAlertsCreated, p.subject)
	assert.JSONEq(t, `{"severity":"high"}`, string(p.data))
}

func TestPublishJSON_MarshalError(t *testing.T) {
	p := &recordingPublisher{}

	err := PublishJSON(context.Background(), p, "a.b.c", make(chan int))
	assert.Error(t, err)
	assert.Empty(t, p.subject)
}

func TestPublishJSON_PublishError(t *testing.T) {
	p := &recordingPublisher{err: errors.New("disconnected")}

	err := PublishJSON(context.Background(), p, "a.b.c", 1)
	assert.EqualError(t, err, "disconnected")
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = NopPublisher{}

	assert.NoError(t, p.Publish(context.Background(), "a.b.c", nil))
	assert.NoError(t, p.PublishMsg(context.Background(), &Message{Subject: "a.b.c"}))
	assert.NoError(t, p.Close())
}
