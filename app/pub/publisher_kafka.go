package pub

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Shopify/sarama"
	prometheusmetrics "github.com/deathowl/go-metrics-prometheus"
	"github.com/eapache/go-resiliency/breaker"
	"github.com/linkedin/goavro"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/cairnchain/node/common/log"
)

const (
	KafkaBrokerSep = ";"
)

type KafkaNodeEventPublisher struct {
	blockEventsCodec *goavro.Codec
	peerEventsCodec  *goavro.Codec

	producers map[string]sarama.SyncProducer // topic -> producer
}

func (publisher *KafkaNodeEventPublisher) newProducers() (config *sarama.Config, err error) {
	config = sarama.NewConfig()
	if config.Version, err = sarama.ParseKafkaVersion(Cfg.KafkaVersion); err != nil {
		return
	}
	if config.ClientID, err = os.Hostname(); err != nil {
		return
	}

	config.Producer.Partitioner = sarama.NewRandomPartitioner
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Return.Successes = true
	config.Producer.Retry.Max = 20
	config.Producer.Compression = sarama.CompressionGZIP

	// kafka java client's max.in.flight.requests.per.connection equivalent,
	// keeps messages in publish order
	config.Net.MaxOpenRequests = 1

	if Cfg.PublishBlockEvents {
		if _, ok := publisher.producers[Cfg.BlockEventsTopic]; !ok {
			publisher.producers[Cfg.BlockEventsTopic], err =
				publisher.connectWithRetry(strings.Split(Cfg.BlockEventsKafka, KafkaBrokerSep), config)
		}
		if err != nil {
			Logger.Error("failed to create block events producer", "err", err)
			return
		}
	}
	if Cfg.PublishPeerEvents {
		if _, ok := publisher.producers[Cfg.PeerEventsTopic]; !ok {
			publisher.producers[Cfg.PeerEventsTopic], err =
				publisher.connectWithRetry(strings.Split(Cfg.PeerEventsKafka, KafkaBrokerSep), config)
		}
		if err != nil {
			Logger.Error("failed to create peer events producer", "err", err)
			return
		}
	}
	return
}

func (publisher *KafkaNodeEventPublisher) prepareMessage(
	topic string,
	msgId string,
	timeStamp int64,
	msgTpe msgType,
	message []byte) *sarama.ProducerMessage {
	msg := &sarama.ProducerMessage{
		Topic:     topic,
		Partition: -1,
		Key:       sarama.StringEncoder(fmt.Sprintf("%s_%d_%s", msgId, timeStamp, msgTpe.String())),
		Value:     sarama.ByteEncoder(message),
	}

	return msg
}

func (publisher *KafkaNodeEventPublisher) publish(avroMessage AvroOrJsonMsg, tpe msgType, seq, timestamp int64) {
	var topic string
	switch tpe {
	case blockEventTpe:
		topic = Cfg.BlockEventsTopic
	case peerEventTpe:
		topic = Cfg.PeerEventsTopic
	}

	if msg, err := publisher.marshal(avroMessage, tpe); err == nil {
		kafkaMsg := publisher.prepareMessage(topic, strconv.FormatInt(seq, 10), timestamp, tpe, msg)
		if partition, offset, err := publisher.publishWithRetry(kafkaMsg, topic); err == nil {
			Logger.Info("published", "topic", topic, "msg", avroMessage.String(), "offset", offset, "partition", partition)
		} else {
			Logger.Error("failed to publish", "topic", topic, "msg", avroMessage.String(), "err", err)
		}
	} else {
		Logger.Error("failed to publish", "topic", topic, "msg", avroMessage.String(), "err", err)
	}
}

func (publisher *KafkaNodeEventPublisher) Stop() {
	Logger.Debug("start to stop KafkaNodeEventPublisher")
	for topic, producer := range publisher.producers {
		// nil check because this method would be called when we failed to create producer
		if producer != nil {
			if err := producer.Close(); err != nil {
				Logger.Error("failed to stop producer for topic", "topic", topic, "err", err)
			}
		}
	}
	Logger.Debug("finished stop KafkaNodeEventPublisher")
}

// endlessly retry on retriable errors, the abnormal situation should be reported by prometheus alarm
func (publisher *KafkaNodeEventPublisher) connectWithRetry(
	hostports []string,
	config *sarama.Config) (producer sarama.SyncProducer, err error) {
	backOffInSeconds := time.Duration(1)

	for {
		if producer, err = sarama.NewSyncProducer(hostports, config); err == sarama.ErrOutOfBrokers || err == breaker.ErrBreakerOpen {
			backOffInSeconds <<= 1
			Logger.Error("encountered retriable error, retrying...", "after", backOffInSeconds, "err", err)
			time.Sleep(backOffInSeconds * time.Second)
		} else {
			return
		}
	}
}

// endlessly retry on retriable errors, the abnormal situation should be reported by prometheus alarm
func (publisher *KafkaNodeEventPublisher) publishWithRetry(
	message *sarama.ProducerMessage,
	topic string) (partition int32, offset int64, err error) {
	backOffInSeconds := time.Duration(1)

	for {
		if partition, offset, err = publisher.producers[topic].SendMessage(message); err == sarama.ErrOutOfBrokers || err == breaker.ErrBreakerOpen {
			backOffInSeconds <<= 1
			Logger.Error("encountered retriable error, retrying...", "after", backOffInSeconds, "err", err)
			time.Sleep(backOffInSeconds * time.Second)
		} else {
			return
		}
	}
}

func (publisher *KafkaNodeEventPublisher) marshal(msg AvroOrJsonMsg, tpe msgType) ([]byte, error) {
	native := msg.ToNativeMap()
	var codec *goavro.Codec
	switch tpe {
	case blockEventTpe:
		codec = publisher.blockEventsCodec
	case peerEventTpe:
		codec = publisher.peerEventsCodec
	default:
		return nil, fmt.Errorf("doesn't support marshal kafka msg tpe: %s", tpe.String())
	}
	bb, err := codec.BinaryFromNative(nil, native)
	if err != nil {
		Logger.Error("failed to serialize message", "msg", msg, "err", err)
	}
	return bb, err
}

func (publisher *KafkaNodeEventPublisher) initAvroCodecs() (err error) {
	if publisher.blockEventsCodec, err = goavro.NewCodec(blockEventSchema); err != nil {
		return err
	} else if publisher.peerEventsCodec, err = goavro.NewCodec(peerEventSchema); err != nil {
		return err
	}
	return nil
}

func NewKafkaNodeEventPublisher(logger log.Logger) (publisher *KafkaNodeEventPublisher) {
	sarama.Logger = saramaLogger{logger}
	publisher = &KafkaNodeEventPublisher{
		producers: make(map[string]sarama.SyncProducer),
	}

	if err := publisher.initAvroCodecs(); err != nil {
		logger.Error("failed to initialize avro codec", "err", err)
		panic(err)
	}

	if saramaCfg, err := publisher.newProducers(); err != nil {
		logger.Error("failed to create new kafka producer", "err", err)
		panic(err)
	} else {
		// share the default prometheus registerer with the rest of the node
		// so every subsystem scrapes from the same instrumentation endpoint
		prometheusRegistry := prometheus.DefaultRegisterer
		metricsRegistry := saramaCfg.MetricRegistry
		pClient := prometheusmetrics.NewPrometheusProvider(
			metricsRegistry,
			"",
			"publication",
			prometheusRegistry,
			1*time.Second)
		go pClient.UpdatePrometheusMetrics()
	}

	return publisher
}
