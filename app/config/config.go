package config

import (
	"bytes"
	"os"
	"path/filepath"
	"text/template"

	"github.com/spf13/viper"

	"github.com/cairnchain/node/common/log"
)

type CairnContext struct {
	Config *CairnConfig
	Logger log.Logger
}

func NewDefaultContext() *CairnContext {
	return &CairnContext{DefaultCairnConfig(), log.NewConsoleLogger()}
}

func (context *CairnContext) ParseConfig() (*CairnConfig, error) {
	err := viper.Unmarshal(context.Config)
	if err != nil {
		return nil, err
	}
	return context.Config, err
}

type CairnConfig struct {
	Base            *BaseConfig            `mapstructure:"base"`
	RPC             *RPCConfig             `mapstructure:"rpc"`
	P2P             *P2PConfig             `mapstructure:"p2p"`
	Publication     *PublicationConfig     `mapstructure:"publication"`
	Instrumentation *InstrumentationConfig `mapstructure:"instrumentation"`
}

func DefaultCairnConfig() *CairnConfig {
	return &CairnConfig{
		Base:            DefaultBaseConfig(),
		RPC:             DefaultRPCConfig(),
		P2P:             DefaultP2PConfig(),
		Publication:     DefaultPublicationConfig(),
		Instrumentation: DefaultInstrumentationConfig(),
	}
}

type BaseConfig struct {
	// Network selects the chain parameters: mainnet, testnet or regtest.
	Network string `mapstructure:"network"`
	// Moniker is a human readable name for this node.
	Moniker string `mapstructure:"moniker"`

	LogToConsole bool   `mapstructure:"logToConsole"`
	LogFile      string `mapstructure:"logFile"`
	LogBuffSize  int64  `mapstructure:"logBuffSize"`
}

func DefaultBaseConfig() *BaseConfig {
	return &BaseConfig{
		Network:      "mainnet",
		Moniker:      "anonymous",
		LogToConsole: true,
		LogFile:      "",
		LogBuffSize:  10000,
	}
}

type RPCConfig struct {
	// ListenAddr is the host:port the JSON-RPC server binds to.
	ListenAddr string `mapstructure:"listenAddr"`
	// Username and Password gate every request via HTTP basic auth.
	// The server refuses to start when either is empty.
	Username string `mapstructure:"rpcUser"`
	Password string `mapstructure:"rpcPassword"`
	// MaxPostSize bounds the request body in bytes. Zero keeps the
	// server default.
	MaxPostSize int64 `mapstructure:"maxPostSize"`
	// RateLimit caps dispatched requests per second. Zero disables the cap.
	RateLimit int `mapstructure:"rateLimit"`
}

func DefaultRPCConfig() *RPCConfig {
	return &RPCConfig{
		ListenAddr:  "127.0.0.1:8332",
		Username:    "",
		Password:    "",
		MaxPostSize: 0,
		RateLimit:   0,
	}
}

type P2PConfig struct {
	// AddNodes are endpoints dialed at startup, same syntax as the
	// addnode RPC argument.
	AddNodes []string `mapstructure:"addNodes"`
	// DialTimeoutSeconds bounds each outbound connection attempt.
	DialTimeoutSeconds int `mapstructure:"dialTimeoutSeconds"`
	// NetworkActive toggles outbound connectivity at startup.
	NetworkActive bool `mapstructure:"networkActive"`
}

func DefaultP2PConfig() *P2PConfig {
	return &P2PConfig{
		AddNodes:           []string{},
		DialTimeoutSeconds: 5,
		NetworkActive:      true,
	}
}

type PublicationConfig struct {
	PublishBlockEvents bool   `mapstructure:"publishBlockEvents"`
	BlockEventsTopic   string `mapstructure:"blockEventsTopic"`
	BlockEventsKafka   string `mapstructure:"blockEventsKafka"`

	PublishPeerEvents bool   `mapstructure:"publishPeerEvents"`
	PeerEventsTopic   string `mapstructure:"peerEventsTopic"`
	PeerEventsKafka   string `mapstructure:"peerEventsKafka"`

	// KafkaVersion is the broker protocol version handed to the client.
	KafkaVersion string `mapstructure:"kafkaVersion"`

	// PublishLocal redirects every enabled stream into a rotated json
	// file under the node home instead of Kafka.
	PublishLocal bool `mapstructure:"publishLocal"`
	LocalMaxSize int  `mapstructure:"localMaxSize"` // megabytes per file
	LocalMaxAge  int  `mapstructure:"localMaxAge"`  // days to retain
}

func DefaultPublicationConfig() *PublicationConfig {
	return &PublicationConfig{
		PublishBlockEvents: false,
		BlockEventsTopic:   "blocks",
		BlockEventsKafka:   "127.0.0.1:9092",

		PublishPeerEvents: false,
		PeerEventsTopic:   "peers",
		PeerEventsKafka:   "127.0.0.1:9092",

		KafkaVersion: "2.1.0",

		PublishLocal: false,
		LocalMaxSize: 1024,
		LocalMaxAge:  7,
	}
}

func (pubCfg *PublicationConfig) ShouldPublishAny() bool {
	return pubCfg.PublishBlockEvents || pubCfg.PublishPeerEvents
}

type InstrumentationConfig struct {
	// Prometheus turns on the metrics endpoint.
	Prometheus bool `mapstructure:"prometheus"`
	// PrometheusListenAddr is the address the metrics endpoint binds to.
	PrometheusListenAddr string `mapstructure:"prometheusListenAddr"`
}

func DefaultInstrumentationConfig() *InstrumentationConfig {
	return &InstrumentationConfig{
		Prometheus:           false,
		PrometheusListenAddr: "127.0.0.1:28660",
	}
}

var configTemplate *template.Template

func init() {
	var err error
	if configTemplate, err = template.New("configFileTemplate").Parse(defaultConfigTemplate); err != nil {
		panic(err)
	}
}

// WriteConfigFile renders config into a TOML file at configFilePath,
// creating the parent directory when needed.
func WriteConfigFile(configFilePath string, config *CairnConfig) error {
	var buffer bytes.Buffer
	if err := configTemplate.Execute(&buffer, config); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(configFilePath), 0700); err != nil {
		return err
	}
	return os.WriteFile(configFilePath, buffer.Bytes(), 0644)
}

const defaultConfigTemplate = `# This is a TOML config file for cairnd.

[base]
# Chain to follow: mainnet, testnet or regtest.
network = "{{ .Base.Network }}"
# Human readable name for this node.
moniker = "{{ .Base.Moniker }}"
logToConsole = {{ .Base.LogToConsole }}
# When set, logs are written to this file (relative to the node home)
# instead of stdout.
logFile = "{{ .Base.LogFile }}"
logBuffSize = {{ .Base.LogBuffSize }}

[rpc]
listenAddr = "{{ .RPC.ListenAddr }}"
# Both must be set or the server refuses to start.
rpcUser = "{{ .RPC.Username }}"
rpcPassword = "{{ .RPC.Password }}"
maxPostSize = {{ .RPC.MaxPostSize }}
rateLimit = {{ .RPC.RateLimit }}

[p2p]
addNodes = [{{ range $i, $n := .P2P.AddNodes }}{{ if $i }}, {{ end }}"{{ $n }}"{{ end }}]
dialTimeoutSeconds = {{ .P2P.DialTimeoutSeconds }}
networkActive = {{ .P2P.NetworkActive }}

[publication]
publishBlockEvents = {{ .Publication.PublishBlockEvents }}
blockEventsTopic = "{{ .Publication.BlockEventsTopic }}"
blockEventsKafka = "{{ .Publication.BlockEventsKafka }}"
publishPeerEvents = {{ .Publication.PublishPeerEvents }}
peerEventsTopic = "{{ .Publication.PeerEventsTopic }}"
peerEventsKafka = "{{ .Publication.PeerEventsKafka }}"
kafkaVersion = "{{ .Publication.KafkaVersion }}"
publishLocal = {{ .Publication.PublishLocal }}
localMaxSize = {{ .Publication.LocalMaxSize }}
localMaxAge = {{ .Publication.LocalMaxAge }}

[instrumentation]
prometheus = {{ .Instrumentation.Prometheus }}
prometheusListenAddr = "{{ .Instrumentation.PrometheusListenAddr }}"
`
