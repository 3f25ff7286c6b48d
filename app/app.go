package app

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cairnchain/node/app/config"
	"github.com/cairnchain/node/app/pub"
	"github.com/cairnchain/node/chain"
	"github.com/cairnchain/node/common/log"
	"github.com/cairnchain/node/mining"
	"github.com/cairnchain/node/p2p"
	"github.com/cairnchain/node/rpc"
)

const (
	serverName = "cairnd"

	instrumentationShutdownTimeout = 3 * time.Second
)

// CairnNode owns every subsystem of a running node: the header index, the
// miner, the connection registry, the JSON-RPC server and the optional
// publication pipeline.
type CairnNode struct {
	Logger log.Logger

	cfg     *config.CairnConfig
	homeDir string

	params  *chain.Params
	index   *chain.Index
	miner   *mining.Miner
	connMgr *p2p.ConnManager

	rpcServer *rpc.Server

	publisher  pub.NodeEventPublisher
	pubMetrics *pub.Metrics

	instrumentationSrv *http.Server

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewCairnNode wires a node from its parsed configuration. homeDir anchors
// file outputs such as the local event publisher.
func NewCairnNode(ctx *config.CairnContext, homeDir string) (*CairnNode, error) {
	cfg := ctx.Config

	params, ok := chain.ParamsForNetwork(cfg.Base.Network)
	if !ok {
		return nil, errors.Errorf("unknown network %q", cfg.Base.Network)
	}

	node := &CairnNode{
		Logger:  ctx.Logger.With("module", "node"),
		cfg:     cfg,
		homeDir: homeDir,
		params:  params,
		stopCh:  make(chan struct{}),
	}

	node.index = chain.NewIndex(params)
	node.miner = mining.New(node.index)
	node.connMgr = p2p.NewConnManager(p2p.Config{
		Dialer:      p2p.TCPDialer{},
		DialTimeout: time.Duration(cfg.P2P.DialTimeoutSeconds) * time.Second,
	})

	var rpcMetrics *rpc.Metrics
	if cfg.Instrumentation.Prometheus {
		rpcMetrics = rpc.PrometheusMetrics()
	}

	rpcServer, err := rpc.NewServer(rpc.Config{
		ListenAddr:  cfg.RPC.ListenAddr,
		Credentials: rpc.Credentials{Username: cfg.RPC.Username, Password: cfg.RPC.Password},
		DefaultPort: params.DefaultPort,
		MaxPostSize: cfg.RPC.MaxPostSize,
		RateLimit:   cfg.RPC.RateLimit,
		ServerName:  serverName,
		OnStop:      node.Stop,
		Metrics:     rpcMetrics,
	}, node.index, node.miner, node.connMgr)
	if err != nil {
		return nil, errors.Wrap(err, "rpc server")
	}
	node.rpcServer = rpcServer

	if cfg.Publication.ShouldPublishAny() {
		node.setupPublication()
	}

	return node, nil
}

// Network returns the name of the chain the node follows.
func (node *CairnNode) Network() string {
	return node.params.Name
}

// Start brings the RPC server up, then connects the configured peers in the
// background. It returns once the node is serving.
func (node *CairnNode) Start() error {
	if err := node.rpcServer.Start(); err != nil {
		return errors.Wrap(err, "rpc server")
	}

	if node.cfg.Instrumentation.Prometheus {
		node.startInstrumentation()
	}

	node.connMgr.SetNetworkActive(false)
	for _, raw := range node.cfg.P2P.AddNodes {
		ep, err := p2p.ParseEndpoint(raw, node.params.DefaultPort)
		if err != nil {
			node.Logger.Error("skipping malformed addNodes entry", "addr", raw, "err", err)
			continue
		}
		node.connMgr.AddNode(ep)
	}
	if node.cfg.P2P.NetworkActive {
		node.connMgr.SetNetworkActive(true)
		go node.connMgr.DialConfiguredNodes(context.Background())
	}

	node.Logger.Info("node started", "network", node.params.Name, "rpc", node.cfg.RPC.ListenAddr)
	return nil
}

// Stop tears the node down in dependency order. It is safe to call more than
// once and from the RPC stop command.
func (node *CairnNode) Stop() {
	node.stopOnce.Do(func() {
		node.Logger.Info("stopping node")

		if err := node.rpcServer.Stop(); err != nil {
			node.Logger.Error("rpc server stop failed", "err", err)
		}
		node.connMgr.Stop()

		if node.instrumentationSrv != nil {
			ctx, cancel := context.WithTimeout(context.Background(), instrumentationShutdownTimeout)
			defer cancel()
			if err := node.instrumentationSrv.Shutdown(ctx); err != nil {
				node.Logger.Error("instrumentation server stop failed", "err", err)
			}
		}

		// publication drains last so disconnect events still go out
		if node.publisher != nil {
			pub.Stop(node.publisher)
		}

		close(node.stopCh)
	})
}

// Wait blocks until Stop completes.
func (node *CairnNode) Wait() {
	<-node.stopCh
}

func (node *CairnNode) setupPublication() {
	cfg := node.cfg
	pub.Logger = node.Logger.With("module", "pub")
	pub.Cfg = cfg.Publication

	if cfg.Instrumentation.Prometheus {
		node.pubMetrics = pub.PrometheusMetrics()
	}

	if cfg.Publication.PublishLocal {
		node.publisher = pub.NewLocalNodeEventPublisher(node.homeDir, pub.Logger, cfg.Publication)
	} else {
		node.publisher = pub.NewKafkaNodeEventPublisher(pub.Logger)
	}
	pub.Start(pub.Logger, cfg.Publication, node.pubMetrics, node.publisher)

	if cfg.Publication.PublishBlockEvents {
		node.index.Subscribe(func(header chain.BlockHeader, height int64, source string) {
			pub.EnqueueBlockEvent(node.pubMetrics, pub.NewBlockEvent(header, height, source))
		})
	}
	if cfg.Publication.PublishPeerEvents {
		node.connMgr.OnPeerEvent(func(ev p2p.PeerEvent) {
			pub.EnqueuePeerEvent(node.pubMetrics, pub.NewPeerEvent(ev))
		})
	}
}

func (node *CairnNode) startInstrumentation() {
	node.instrumentationSrv = &http.Server{
		Addr: node.cfg.Instrumentation.PrometheusListenAddr,
		Handler: promhttp.InstrumentMetricHandler(
			prometheus.DefaultRegisterer, promhttp.HandlerFor(
				prometheus.DefaultGatherer,
				promhttp.HandlerOpts{MaxRequestsInFlight: 10},
			),
		),
	}
	go func() {
		if err := node.instrumentationSrv.ListenAndServe(); err != http.ErrServerClosed {
			node.Logger.Error("instrumentation server stopped", "err", err)
		}
	}()
}
