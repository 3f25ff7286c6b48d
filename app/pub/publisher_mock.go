package pub

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// MockNodeEventPublisher collects everything handed to it. Test only.
type MockNodeEventPublisher struct {
	BlockEventsPublished []*BlockEvent
	PeerEventsPublished  []*PeerEvent

	Lock             *sync.Mutex
	MessagePublished uint32 // atomic counter of accepted messages
	Stopped          uint32 // atomic flag set by Stop
}

func (publisher *MockNodeEventPublisher) publish(msg AvroOrJsonMsg, tpe msgType, seq int64, timestamp int64) {
	publisher.Lock.Lock()
	defer publisher.Lock.Unlock()

	switch tpe {
	case blockEventTpe:
		publisher.BlockEventsPublished = append(publisher.BlockEventsPublished, msg.(*BlockEvent))
	case peerEventTpe:
		publisher.PeerEventsPublished = append(publisher.PeerEventsPublished, msg.(*PeerEvent))
	default:
		panic(fmt.Errorf("does not support type %s", tpe.String()))
	}

	atomic.AddUint32(&publisher.MessagePublished, 1)
}

func (publisher *MockNodeEventPublisher) Stop() {
	atomic.StoreUint32(&publisher.Stopped, 1)
}

func NewMockNodeEventPublisher() *MockNodeEventPublisher {
	return &MockNodeEventPublisher{
		make([]*BlockEvent, 0),
		make([]*PeerEvent, 0),
		&sync.Mutex{},
		0,
		0,
	}
}
