package p2p

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/cairnchain/node/common/log"
	"github.com/cairnchain/node/common/utils"
)

const (
	defaultDialTimeout = 5 * time.Second
	dialConcurrency    = 4
)

// NodeRecord is the external view of one configured (AddNode list) entry.
type NodeRecord struct {
	AddedNode string `json:"addednode"`
	Connected bool   `json:"connected"`
}

// PeerInfo is the external view of one live connection. IDs are assigned in
// connection order starting at 0 and stay stable for the connection lifetime.
type PeerInfo struct {
	ID       int32  `json:"id"`
	Addr     string `json:"addr"`
	ConnTime int64  `json:"conntime"`
	Inbound  bool   `json:"inbound"`
}

// PeerEventKind discriminates connection registry transitions.
type PeerEventKind int

const (
	PeerNodeAdded PeerEventKind = iota
	PeerConnected
	PeerDisconnected
)

func (k PeerEventKind) String() string {
	switch k {
	case PeerNodeAdded:
		return "added"
	case PeerConnected:
		return "connected"
	case PeerDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// PeerEvent describes one registry transition. PeerID is -1 when no live
// connection is involved.
type PeerEvent struct {
	Kind     PeerEventKind
	Endpoint Endpoint
	PeerID   int32
	Time     time.Time
}

// PeerListener observes registry transitions. Listeners run outside the
// manager lock on the mutating goroutine and must not block for long.
type PeerListener func(PeerEvent)

type nodeRecord struct {
	ep      Endpoint
	addedAt time.Time
}

type peer struct {
	id       int32
	ep       Endpoint
	conn     Conn
	connTime time.Time
	inbound  bool
}

func (p *peer) info() PeerInfo {
	return PeerInfo{
		ID:       p.id,
		Addr:     p.ep.String(),
		ConnTime: p.connTime.Unix(),
		Inbound:  p.inbound,
	}
}

// Config carries the connection manager knobs from the [p2p] config section.
type Config struct {
	// Dialer performs outbound handshakes. Defaults to TCPDialer.
	Dialer Dialer
	// DialTimeout bounds each outbound attempt. Defaults to 5s.
	DialTimeout time.Duration
}

// ConnManager owns the configured AddNode list and the live peer set. The
// configured list records which peers have been requested; the live set
// reflects actual network state and is fed only through the Dialer handshake
// path (or AcceptConnection for inbound). All reads return copies.
type ConnManager struct {
	dialer      Dialer
	dialTimeout time.Duration

	mtx           sync.RWMutex
	added         []nodeRecord
	peers         []*peer
	nextPeerID    int32
	networkActive bool
	listeners     []PeerListener
}

func NewConnManager(cfg Config) *ConnManager {
	dialer := cfg.Dialer
	if dialer == nil {
		dialer = TCPDialer{}
	}
	timeout := cfg.DialTimeout
	if timeout <= 0 {
		timeout = defaultDialTimeout
	}
	return &ConnManager{
		dialer:        dialer,
		dialTimeout:   timeout,
		networkActive: true,
	}
}

// OnPeerEvent registers a listener for future registry transitions.
func (cm *ConnManager) OnPeerEvent(fn PeerListener) {
	cm.mtx.Lock()
	defer cm.mtx.Unlock()
	cm.listeners = append(cm.listeners, fn)
}

// AddNode appends the endpoint to the configured list and, when the network
// is active, kicks off an asynchronous connection attempt. Adding an already
// configured endpoint is a no-op; the configured list never holds the same
// (address, port) pair twice.
func (cm *ConnManager) AddNode(ep Endpoint) bool {
	cm.mtx.Lock()
	for _, rec := range cm.added {
		if rec.ep.Equal(ep) {
			cm.mtx.Unlock()
			return false
		}
	}
	cm.added = append(cm.added, nodeRecord{ep: ep, addedAt: time.Now()})
	active := cm.networkActive
	listeners := cm.copyListenersLocked()
	cm.mtx.Unlock()

	notify(listeners, PeerEvent{Kind: PeerNodeAdded, Endpoint: ep, PeerID: -1, Time: time.Now()})

	if active {
		go func() {
			if err := cm.ConnectNode(context.Background(), ep); err != nil {
				log.Debug("addnode connection attempt failed", "peer", ep.String(), "err", err)
			}
		}()
	}
	return true
}

// ConfiguredNodes returns the AddNode list in insertion order, with each
// entry's current connection status.
func (cm *ConnManager) ConfiguredNodes() []NodeRecord {
	cm.mtx.RLock()
	defer cm.mtx.RUnlock()
	out := make([]NodeRecord, 0, len(cm.added))
	for _, rec := range cm.added {
		out = append(out, NodeRecord{
			AddedNode: rec.ep.String(),
			Connected: cm.connectedLocked(rec.ep),
		})
	}
	return out
}

func (cm *ConnManager) connectedLocked(ep Endpoint) bool {
	for _, p := range cm.peers {
		if p.ep.Equal(ep) {
			return true
		}
	}
	return false
}

// LiveConnections returns the live peer set in connection order.
func (cm *ConnManager) LiveConnections() []PeerInfo {
	cm.mtx.RLock()
	defer cm.mtx.RUnlock()
	out := make([]PeerInfo, 0, len(cm.peers))
	for _, p := range cm.peers {
		out = append(out, p.info())
	}
	return out
}

// ConnectionCount returns the number of live connections.
func (cm *ConnManager) ConnectionCount() int {
	cm.mtx.RLock()
	defer cm.mtx.RUnlock()
	return len(cm.peers)
}

// NetworkActive reports whether outbound dialing is enabled.
func (cm *ConnManager) NetworkActive() bool {
	cm.mtx.RLock()
	defer cm.mtx.RUnlock()
	return cm.networkActive
}

// SetNetworkActive toggles outbound dialing and returns the new state. The
// configured list and existing connections are left untouched.
func (cm *ConnManager) SetNetworkActive(active bool) bool {
	cm.mtx.Lock()
	defer cm.mtx.Unlock()
	cm.networkActive = active
	return cm.networkActive
}

// ConnectNode synchronously dials and registers one peer. It fails when the
// network is inactive or the endpoint already has a live connection.
func (cm *ConnManager) ConnectNode(ctx context.Context, ep Endpoint) error {
	cm.mtx.RLock()
	active := cm.networkActive
	dup := cm.connectedLocked(ep)
	cm.mtx.RUnlock()
	if !active {
		return errors.New("network is not active")
	}
	if dup {
		return errors.Errorf("already connected to %s", ep)
	}

	dctx, cancel := context.WithTimeout(ctx, cm.dialTimeout)
	defer cancel()
	conn, err := cm.dialer.Dial(dctx, ep)
	if err != nil {
		return err
	}
	if _, err := cm.register(conn, false); err != nil {
		_ = conn.Close()
		return err
	}
	return nil
}

// AcceptConnection registers an inbound connection delivered by the listener
// side of the handshake subsystem.
func (cm *ConnManager) AcceptConnection(conn Conn) (PeerInfo, error) {
	return cm.register(conn, true)
}

func (cm *ConnManager) register(conn Conn, inbound bool) (PeerInfo, error) {
	ep := conn.RemoteEndpoint()

	cm.mtx.Lock()
	if cm.connectedLocked(ep) {
		cm.mtx.Unlock()
		return PeerInfo{}, errors.Errorf("already connected to %s", ep)
	}
	p := &peer{
		id:       cm.nextPeerID,
		ep:       ep,
		conn:     conn,
		connTime: time.Now(),
		inbound:  inbound,
	}
	cm.nextPeerID++
	cm.peers = append(cm.peers, p)
	listeners := cm.copyListenersLocked()
	cm.mtx.Unlock()

	log.Info("peer connected", "peer", ep.String(), "id", p.id, "inbound", inbound)
	notify(listeners, PeerEvent{Kind: PeerConnected, Endpoint: ep, PeerID: p.id, Time: p.connTime})
	return p.info(), nil
}

// DisconnectPeer closes and removes the live connection with the given id.
func (cm *ConnManager) DisconnectPeer(id int32) error {
	cm.mtx.Lock()
	var target *peer
	for i, p := range cm.peers {
		if p.id == id {
			target = p
			cm.peers = append(cm.peers[:i], cm.peers[i+1:]...)
			break
		}
	}
	listeners := cm.copyListenersLocked()
	cm.mtx.Unlock()

	if target == nil {
		return errors.Errorf("no peer with id %d", id)
	}
	if err := target.conn.Close(); err != nil {
		log.Debug("peer close failed", "peer", target.ep.String(), "err", err)
	}
	log.Info("peer disconnected", "peer", target.ep.String(), "id", target.id)
	notify(listeners, PeerEvent{Kind: PeerDisconnected, Endpoint: target.ep, PeerID: target.id, Time: time.Now()})
	return nil
}

// DialConfiguredNodes attempts a connection to every configured endpoint,
// fanning out over a bounded worker pool. It blocks until every attempt has
// finished.
func (cm *ConnManager) DialConfiguredNodes(ctx context.Context) {
	if !cm.NetworkActive() {
		return
	}
	cm.mtx.RLock()
	eps := make([]Endpoint, 0, len(cm.added))
	for _, rec := range cm.added {
		eps = append(eps, rec.ep)
	}
	cm.mtx.RUnlock()
	if len(eps) == 0 {
		return
	}

	concurrency := dialConcurrency
	if len(eps) < concurrency {
		concurrency = len(eps)
	}
	jobs := make(chan Endpoint, len(eps))
	utils.ConcurrentExecuteSync(concurrency,
		func() {
			for _, ep := range eps {
				jobs <- ep
			}
			close(jobs)
		},
		func() {
			for ep := range jobs {
				if err := cm.ConnectNode(ctx, ep); err != nil {
					log.Debug("dial configured node failed", "peer", ep.String(), "err", err)
				}
			}
		})
}

// Stop closes every live connection, emitting a disconnect event for each.
func (cm *ConnManager) Stop() {
	cm.mtx.Lock()
	peers := cm.peers
	cm.peers = nil
	listeners := cm.copyListenersLocked()
	cm.mtx.Unlock()

	for _, p := range peers {
		if err := p.conn.Close(); err != nil {
			log.Debug("peer close failed", "peer", p.ep.String(), "err", err)
		}
		notify(listeners, PeerEvent{Kind: PeerDisconnected, Endpoint: p.ep, PeerID: p.id, Time: time.Now()})
	}
}

func (cm *ConnManager) copyListenersLocked() []PeerListener {
	out := make([]PeerListener, len(cm.listeners))
	copy(out, cm.listeners)
	return out
}

func notify(listeners []PeerListener, ev PeerEvent) {
	for _, fn := range listeners {
		fn(ev)
	}
}
