package kafka

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "mindlink/pkg/platform/audit"
)

func TestEncodeKeysBySubject(t *testing.T) {
	event := audit.Event{
		Category:  audit.CategoryCompliance,
		Timestamp: time.Date(2026, 1, 5, 8, 30, 0, 0, time.UTC),
		Subject:   "provider-42",
		Action:    string(audit.EventProviderApproved),
		ActorID:   "admin",
	}

	record, err := encode("mindlink.audit", event)
	require.NoError(t, err)

	assert.Equal(t, "mindlink.audit", record.Topic)
	assert.Equal(t, []byte("provider-42"), record.Key)
	require.Len(t, record.Headers, 2)
	assert.Equal(t, "compliance", string(record.Headers[0].Value))

	var decoded audit.Event
	require.NoError(t, json.Unmarshal(record.Value, &decoded))
	assert.Equal(t, event, decoded)
}

func TestNewRequiresBrokers(t *testing.T) {
	_, err := New(nil, "mindlink.audit")
	assert.Error(t, err)
}

func TestPublishGivesUpWhenBrokerUnreachable(t *testing.T) {
	pub, err := New([]string{"127.0.0.1:1"}, "mindlink.audit")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	err = pub.Publish(ctx, audit.Event{Subject: "provider-42", Action: string(audit.EventProviderApproved)})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)

	closed := make(chan struct{})
	go func() {
		pub.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not return")
	}
}
