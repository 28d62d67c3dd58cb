package eventpubsub

import (
	"fmt"
	"sync"

	"github.com/asaskevich/EventBus"
	log "github.com/sirupsen/logrus"
)

// Bus fans out gym lifecycle events. Subscribers run asynchronously; call
// WaitAsync before reading what they collected.
type Bus struct {
	bus EventBus.Bus
}

func NewBus() *Bus {
	return &Bus{bus: EventBus.New()}
}

func (b *Bus) Publish(topic EventName, event interface{}) {
	log.Debugf("Published to topic %s", topic)
	b.bus.Publish(string(topic), event)
}

func (b *Bus) Subscribe(subscriberName string, topic EventName, callbackFn interface{}) error {
	if err := b.bus.SubscribeAsync(string(topic), callbackFn, false); err != nil {
		return fmt.Errorf("[%v] failed to subscribe to %s: %w", subscriberName, topic, err)
	}

	log.Infof("[%v] Subscribed to topic %s", subscriberName, topic)
	return nil
}

func (b *Bus) WaitAsync() {
	b.bus.WaitAsync()
}

var (
	bus     *Bus
	busOnce sync.Once
)

// Init creates the process wide bus. Calls after the first are no-ops.
func Init() {
	busOnce.Do(func() {
		bus = NewBus()
	})
}

// Default returns the process wide bus, creating it on first use.
func Default() *Bus {
	Init()
	return bus
}
