package pub

import (
	"fmt"
	"time"

	"github.com/cairnchain/node/app/config"
	"github.com/cairnchain/node/common/log"
)

const (
	// EventCollectionChannelSize bounds the number of events waiting on a
	// slow publisher. Enqueueing never blocks the caller; overflow is
	// dropped and counted.
	EventCollectionChannelSize = 4000
)

var (
	Logger      log.Logger
	Cfg         *config.PublicationConfig
	ToPublishCh chan eventEnvelope
	IsLive      bool

	publishDone chan struct{}
)

// NodeEventPublisher delivers node events to one sink, Kafka topics or a
// local file depending on configuration.
type NodeEventPublisher interface {
	publish(msg AvroOrJsonMsg, tpe msgType, seq int64, timestamp int64)
	Stop()
}

// eventEnvelope pairs a message with its routing metadata. seq keys the
// Kafka message: block height for block events, peer id for peer events.
type eventEnvelope struct {
	msg       AvroOrJsonMsg
	tpe       msgType
	seq       int64
	timestamp int64 // unix milliseconds at enqueue time
}

// Start wires the package level publication state and spawns the publishing
// loop. It must be called once, before any Enqueue.
func Start(logger log.Logger, cfg *config.PublicationConfig, metrics *Metrics, publisher NodeEventPublisher) {
	Logger = logger
	Cfg = cfg
	ToPublishCh = make(chan eventEnvelope, EventCollectionChannelSize)
	publishDone = make(chan struct{})
	IsLive = true
	go func() {
		Publish(publisher, metrics, ToPublishCh)
		close(publishDone)
	}()
}

// Publish drains toPublishCh into the publisher until the channel closes.
func Publish(publisher NodeEventPublisher, metrics *Metrics, toPublishCh <-chan eventEnvelope) {
	for env := range toPublishCh {
		Logger.Debug("publisher queue status", "size", len(toPublishCh))
		if metrics != nil {
			metrics.PublicationQueueSize.Set(float64(len(toPublishCh)))
		}

		publishTime := Timer(Logger, fmt.Sprintf("publish %s, seq=%d", env.tpe.String(), env.seq), func() {
			publisher.publish(env.msg, env.tpe, env.seq, env.timestamp)
		})

		if metrics != nil {
			switch env.tpe {
			case blockEventTpe:
				metrics.PublicationHeight.Set(float64(env.seq))
				metrics.PublishBlockEventTimeMs.Set(float64(publishTime))
			case peerEventTpe:
				metrics.PublishPeerEventTimeMs.Set(float64(publishTime))
			}
		}
	}
}

// Stop closes the publication queue, waits for the loop to drain and stops
// the underlying publisher.
func Stop(publisher NodeEventPublisher) {
	if !IsLive {
		Logger.Error("publication module has already been stopped")
		return
	}
	IsLive = false

	close(ToPublishCh)
	<-publishDone

	publisher.Stop()
}

// EnqueueBlockEvent hands a block event to the publishing loop.
func EnqueueBlockEvent(metrics *Metrics, event *BlockEvent) bool {
	return enqueue(metrics, eventEnvelope{event, blockEventTpe, event.Height, time.Now().UnixMilli()})
}

// EnqueuePeerEvent hands a peer event to the publishing loop.
func EnqueuePeerEvent(metrics *Metrics, event *PeerEvent) bool {
	return enqueue(metrics, eventEnvelope{event, peerEventTpe, event.PeerId, time.Now().UnixMilli()})
}

func enqueue(metrics *Metrics, env eventEnvelope) bool {
	if !IsLive {
		return false
	}
	select {
	case ToPublishCh <- env:
		return true
	default:
		Logger.Error("publication queue full, dropping event", "msg", env.msg.String())
		if metrics != nil {
			metrics.DroppedEvents.Add(1)
		}
		return false
	}
}

func Timer(logger log.Logger, description string, op func()) (durationMs int64) {
	start := time.Now()
	op()
	durationMs = time.Since(start).Nanoseconds() / int64(time.Millisecond)
	logger.Debug(description, "durationMs", durationMs)
	return durationMs
}
