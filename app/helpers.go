package app

import (
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cairnchain/node/app/config"
	"github.com/cairnchain/node/common/log"
	"github.com/cairnchain/node/version"
)

// FlagHome names the persistent flag selecting the node home directory.
const FlagHome = "home"

// ConfigFileName is the TOML file loaded from <home>/config.
const ConfigFileName = "cairn"

// ServerContext carries the daemon-wide configuration, populated by
// PersistentPreRunEFn before any command body runs.
var ServerContext = config.NewDefaultContext()

// DefaultNodeHome is the fallback home directory, ~/.cairnd.
var DefaultNodeHome = func() string {
	home, err := homedir.Dir()
	if err != nil {
		return ".cairnd"
	}
	return filepath.Join(home, ".cairnd")
}()

// PersistentPreRunEFn loads (or seeds) the node configuration under the home
// directory and initializes logging, leaving both on context.
func PersistentPreRunEFn(context *config.CairnContext) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == version.Cmd.Name() {
			return nil
		}
		homeDir := viper.GetString(FlagHome)
		if err := interceptLoadConfigInPlace(context, homeDir); err != nil {
			return err
		}

		logger := newLogger(context, homeDir).With("module", "main")
		log.InitLogger(logger)
		context.Logger = logger
		return nil
	}
}

// interceptLoadConfigInPlace seeds a default config file on first start and
// parses an existing one into the context otherwise.
func interceptLoadConfigInPlace(context *config.CairnContext, homeDir string) error {
	configFilePath := filepath.Join(homeDir, "config", ConfigFileName+".toml")
	if _, err := os.Stat(configFilePath); os.IsNotExist(err) {
		return config.WriteConfigFile(configFilePath, context.Config)
	}

	viper.SetConfigFile(configFilePath)
	if err := viper.ReadInConfig(); err != nil {
		return err
	}
	_, err := context.ParseConfig()
	return err
}

func newLogger(ctx *config.CairnContext, homeDir string) log.Logger {
	base := ctx.Config.Base
	if base.LogToConsole {
		return log.NewConsoleLogger()
	}
	logFilePath := base.LogFile
	if logFilePath == "" {
		logFilePath = "cairn.log"
	}
	if !filepath.IsAbs(logFilePath) {
		logFilePath = path.Join(homeDir, logFilePath)
	}
	if err := os.MkdirAll(path.Dir(logFilePath), 0755); err != nil {
		panic(fmt.Sprintf("create log dir failed, err=%s", err.Error()))
	}
	return log.NewAsyncFileLogger(logFilePath, base.LogBuffSize)
}
