package pub

import (
	"fmt"

	"github.com/cairnchain/node/common/log"
)

// saramaLogger delegates sarama.StdLogger to common/log. The method bodies
// mirror the same name methods of the std Logger.
type saramaLogger struct {
	log.Logger
}

func (slogger saramaLogger) Print(v ...interface{}) {
	slogger.Debug(fmt.Sprint(v...))
}

func (slogger saramaLogger) Printf(format string, v ...interface{}) {
	slogger.Debug(fmt.Sprintf(format, v...))
}

func (slogger saramaLogger) Println(v ...interface{}) {
	slogger.Debug(fmt.Sprintln(v...))
}
