package events_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cuemby/clustercore/pkg/events"
)

func TestBrokerDeliversPublishedEventToSubscriber(t *testing.T) {
	b := events.NewBroker()
	b.Start()
	defer b.Stop()

	sub := b.Subscribe()
	defer b.Unsubscribe(sub)

	b.Publish(&events.Event{Type: events.EventJobSubmitted, Message: "job j1 submitted"})

	select {
	case evt := <-sub:
		require.Equal(t, events.EventJobSubmitted, evt.Type)
		require.False(t, evt.Timestamp.IsZero())
	case <-time.After(time.Second):
		t.Fatal("event was not delivered")
	}
}

func TestBrokerFansOutToAllSubscribers(t *testing.T) {
	b := events.NewBroker()
	b.Start()
	defer b.Stop()

	sub1 := b.Subscribe()
	sub2 := b.Subscribe()
	defer b.Unsubscribe(sub1)
	defer b.Unsubscribe(sub2)
	require.Equal(t, 2, b.SubscriberCount())

	b.Publish(&events.Event{Type: events.EventWorkerDown})

	for _, sub := range []events.Subscriber{sub1, sub2} {
		select {
		case evt := <-sub:
			require.Equal(t, events.EventWorkerDown, evt.Type)
		case <-time.After(time.Second):
			t.Fatal("event was not delivered to all subscribers")
		}
	}
}

func TestBrokerUnsubscribeStopsDelivery(t *testing.T) {
	b := events.NewBroker()
	b.Start()
	defer b.Stop()

	sub := b.Subscribe()
	b.Unsubscribe(sub)
	require.Equal(t, 0, b.SubscriberCount())

	_, ok := <-sub
	require.False(t, ok, "unsubscribed channel should be closed")
}
