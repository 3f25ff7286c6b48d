package pub

import (
	"encoding/json"
	"fmt"
	stdlog "log"

	"github.com/natefinch/lumberjack"

	"github.com/cairnchain/node/app/config"
	"github.com/cairnchain/node/common/log"
)

// LocalNodeEventPublisher writes node events to an events dir in the node
// home, one json message per line. Files are compressed and auto-rotated.
type LocalNodeEventPublisher struct {
	producer *stdlog.Logger
	logger   log.Logger
}

func (publisher *LocalNodeEventPublisher) publish(msg AvroOrJsonMsg, tpe msgType, seq int64, timestamp int64) {
	if jsonBytes, err := json.Marshal(msg); err == nil {
		if err := publisher.producer.Output(2, fmt.Sprintln(string(jsonBytes))); err != nil {
			publisher.logger.Error("failed to publish msg", "err", err, "seq", seq, "msg", msg.String())
		}
	} else {
		publisher.logger.Error("failed to publish msg", "err", err, "seq", seq, "msg", msg.String())
	}
}

func (publisher *LocalNodeEventPublisher) Stop() {
	publisher.logger.Info("local publisher stopped")
}

func NewLocalNodeEventPublisher(
	dataPath string,
	logger log.Logger,
	config *config.PublicationConfig) (publisher *LocalNodeEventPublisher) {
	fileWriter := &lumberjack.Logger{
		Filename: fmt.Sprintf("%s/events/events.json", dataPath),
		MaxSize:  config.LocalMaxSize,
		MaxAge:   config.LocalMaxAge,
		Compress: true,
	}
	producer := stdlog.New(fileWriter, "", 0)
	publisher = &LocalNodeEventPublisher{
		producer,
		logger,
	}

	return
}
