package main

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/marketplace-orders/pkg/config"
	"github.com/angelmondragon/marketplace-orders/pkg/logger"
)

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

type fakeRunner struct {
	err   error
	calls int
}

func (f *fakeRunner) Run(context.Context) error {
	f.calls++
	return f.err
}

func newParams(consumer *fakeRunner) ServiceParams {
	return ServiceParams{
		Config:               &config.Config{},
		Logger:               logger.New(logger.Options{ServiceName: "worker-test", Output: io.Discard}),
		DB:                   fakePinger{},
		Redis:                fakePinger{},
		PubSub:               fakePinger{},
		NotificationConsumer: consumer,
	}
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	params := newParams(&fakeRunner{})
	params.Redis = nil
	_, err := NewService(params)
	assert.EqualError(t, err, "redis client is required")
}

func TestRunStopsWhenDependencyIsDown(t *testing.T) {
	consumer := &fakeRunner{}
	params := newParams(consumer)
	params.PubSub = fakePinger{err: errors.New("unavailable")}
	svc, err := NewService(params)
	require.NoError(t, err)

	err = svc.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pubsub ping failed")
	assert.Equal(t, 0, consumer.calls)
}

func TestRunReturnsConsumerError(t *testing.T) {
	consumer := &fakeRunner{err: errors.New("subscription deleted")}
	svc, err := NewService(newParams(consumer))
	require.NoError(t, err)

	err = svc.Run(context.Background())
	assert.EqualError(t, err, "subscription deleted")
	assert.Equal(t, 1, consumer.calls)
}
