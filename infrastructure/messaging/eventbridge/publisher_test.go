package eventbridge

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"synergy-backend/domain/events"
)

type MockClient struct {
	mock.Mock
}

func (m *MockClient) PutEvents(ctx context.Context, params *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*eventbridge.PutEventsOutput), args.Error(1)
}

func quietConfig() Config {
	return Config{
		EventBusName:   "synergy-bus",
		BufferSize:     64,
		FlushInterval:  time.Hour,
		PublishTimeout: time.Second,
	}
}

func TestPublisher_BatchesByTenAndDrainsOnClose(t *testing.T) {
	client := new(MockClient)
	client.On("PutEvents", mock.Anything, mock.MatchedBy(func(in *eventbridge.PutEventsInput) bool {
		return len(in.Entries) == 10
	})).Return(&eventbridge.PutEventsOutput{}, nil).Once()
	client.On("PutEvents", mock.Anything, mock.MatchedBy(func(in *eventbridge.PutEventsInput) bool {
		return len(in.Entries) == 2 &&
			aws.ToString(in.Entries[0].EventBusName) == "synergy-bus" &&
			aws.ToString(in.Entries[0].Source) == events.Source &&
			aws.ToString(in.Entries[0].DetailType) == events.TypeEdgeAdmitted
	})).Return(&eventbridge.PutEventsOutput{}, nil).Once()

	p := NewPublisher(client, quietConfig(), zap.NewNop())
	for i := 0; i < 12; i++ {
		p.Emit(context.Background(), events.NewEdgeAdmitted("a", fmt.Sprintf("t%d", i), 0.9, false, time.Now()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, p.Close(ctx))
	client.AssertExpectations(t)

	// Emitting after close is ignored
	p.Emit(context.Background(), events.NewEdgeAdmitted("a", "late", 0.9, false, time.Now()))
	client.AssertNumberOfCalls(t, "PutEvents", 2)
}

func TestPublisher_DropsWhenBufferFull(t *testing.T) {
	client := new(MockClient)
	block := make(chan struct{})
	client.On("PutEvents", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { <-block }).
		Return(&eventbridge.PutEventsOutput{}, nil)

	cfg := quietConfig()
	cfg.BufferSize = 1
	p := NewPublisher(client, cfg, zap.NewNop())

	for i := 0; i < 50; i++ {
		p.Emit(context.Background(), events.NewEdgeRemoved("a", "b", events.RemovalExplicit, time.Now()))
	}
	assert.Greater(t, p.Dropped(), int64(0))

	close(block)
	require.NoError(t, p.Close(context.Background()))
}

func TestPublishBatch_ReportsFailedEntries(t *testing.T) {
	client := new(MockClient)
	client.On("PutEvents", mock.Anything, mock.Anything).Return(&eventbridge.PutEventsOutput{
		FailedEntryCount: 1,
		Entries: []types.PutEventsResultEntry{
			{EventId: aws.String("1")},
			{ErrorCode: aws.String("InternalFailure"), ErrorMessage: aws.String("boom")},
		},
	}, nil)

	p := NewPublisher(client, quietConfig(), zap.NewNop())
	defer p.Close(context.Background())

	err := p.PublishBatch(context.Background(), []events.DomainEvent{
		events.NewDomainRemoved("a", 1, time.Now()),
		events.NewDomainRemoved("b", 2, time.Now()),
	})
	assert.EqualError(t, err, "1 events failed to publish")
}

func TestPublishBatch_ClientError(t *testing.T) {
	client := new(MockClient)
	boom := errors.New("throttled")
	client.On("PutEvents", mock.Anything, mock.Anything).Return(nil, boom)

	p := NewPublisher(client, quietConfig(), zap.NewNop())
	defer p.Close(context.Background())

	err := p.PublishBatch(context.Background(), []events.DomainEvent{events.NewDomainRemoved("a", 1, time.Now())})
	assert.ErrorIs(t, err, boom)
}
