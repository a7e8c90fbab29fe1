package event

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_SubscribePublish(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	got := make(chan Event, 1)
	bus.Subscribe(MCPConnected, func(e Event) { got <- e })

	bus.Publish(Event{Type: MCPConnected, Data: MCPConnectedData{Name: "search", ToolCount: 3}})

	select {
	case e := <-got:
		data, ok := e.Data.(MCPConnectedData)
		require.True(t, ok)
		assert.Equal(t, "search", data.Name)
		assert.Equal(t, 3, data.ToolCount)
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestBus_TypeFiltering(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	var mu sync.Mutex
	var seen []Type
	bus.Subscribe(MCPDisconnected, func(e Event) {
		mu.Lock()
		seen = append(seen, e.Type)
		mu.Unlock()
	})

	bus.PublishSync(Event{Type: MCPConnected})
	bus.PublishSync(Event{Type: MCPDisconnected})

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []Type{MCPDisconnected}, seen)
}

func TestBus_SubscribeAll(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	var count int
	bus.SubscribeAll(func(Event) { count++ })

	bus.PublishSync(Event{Type: TurnDelta})
	bus.PublishSync(Event{Type: TurnDone})

	assert.Equal(t, 2, count)
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	var count int
	unsub := bus.Subscribe(TurnDelta, func(Event) { count++ })

	bus.PublishSync(Event{Type: TurnDelta})
	unsub()
	bus.PublishSync(Event{Type: TurnDelta})

	assert.Equal(t, 1, count)
}

func TestBus_PublishAfterCloseIsNoop(t *testing.T) {
	bus := NewBus()

	var count int
	bus.Subscribe(TurnDone, func(Event) { count++ })

	require.NoError(t, bus.Close())
	bus.PublishSync(Event{Type: TurnDone})

	assert.Equal(t, 0, count)
	// Subscribing after close hands back an inert unsubscribe.
	unsub := bus.Subscribe(TurnDone, func(Event) {})
	unsub()
}

func TestBus_ConcurrentPublish(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	var mu sync.Mutex
	count := 0
	bus.Subscribe(TurnDelta, func(Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				bus.PublishSync(Event{Type: TurnDelta})
			}
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 500, count)
}
