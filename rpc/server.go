package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"go.uber.org/ratelimit"

	"github.com/cairnchain/node/common/log"
	"github.com/cairnchain/node/common/utils"
)

const (
	defaultMaxPostSize int64 = 1024 * 512 // ~500KB
	defaultServerName        = "cairnd"
	recentCommandsCap        = 32
	shutdownTimeout          = 5 * time.Second
)

// Config carries the RPC server knobs from the [rpc] config section.
type Config struct {
	ListenAddr  string
	Credentials Credentials

	// DefaultPort completes port-less peer addresses in addnode arguments.
	DefaultPort uint16

	// MaxPostSize bounds request bodies. Zero takes the default.
	MaxPostSize int64

	// RateLimit smooths dispatches per second once a request is
	// authenticated. Zero disables limiting.
	RateLimit int

	// ServerName is reported by the stop command.
	ServerName string

	// OnStop is invoked on its own goroutine when a stop command is
	// dispatched. May be nil.
	OnStop func()

	// Metrics may be nil to disable instrumentation.
	Metrics *Metrics
}

type activeCommand struct {
	method string
	start  time.Time
}

// Server is the authenticated command-dispatch front of the node: transport
// decode, credential gate, registry lookup, argument coercion, handler
// invocation and response encoding, in that order.
type Server struct {
	cfg     Config
	router  *mux.Router
	reg     *registry
	coercer *coercer
	gate    *authGate
	limiter ratelimit.Limiter

	chain ChainQuerier
	miner BlockProducer
	peers PeerManager

	startTime time.Time
	httpSrv   *http.Server

	// cmdMtx guards the dispatch bookkeeping getrpcinfo reads.
	cmdMtx  sync.Mutex
	active  map[uint64]*activeCommand
	nextSeq uint64
	recent  *utils.FixedSizeRing
}

// NewServer wires the command table against its collaborators. Credentials
// are mandatory: a server with no credential pair refuses to construct
// rather than serve unauthenticated.
func NewServer(cfg Config, chainView ChainQuerier, miner BlockProducer, peers PeerManager) (*Server, error) {
	if cfg.Credentials.Username == "" || cfg.Credentials.Password == "" {
		return nil, errors.New("rpc credentials must be configured")
	}
	if cfg.MaxPostSize <= 0 {
		cfg.MaxPostSize = defaultMaxPostSize
	}
	if cfg.ServerName == "" {
		cfg.ServerName = defaultServerName
	}
	var limiter ratelimit.Limiter
	if cfg.RateLimit > 0 {
		limiter = ratelimit.New(cfg.RateLimit)
	} else {
		limiter = ratelimit.NewUnlimited()
	}

	s := &Server{
		cfg:       cfg,
		router:    mux.NewRouter(),
		reg:       newRegistry(),
		coercer:   &coercer{defaultPort: cfg.DefaultPort},
		gate:      newAuthGate(cfg.Credentials),
		limiter:   limiter,
		chain:     chainView,
		miner:     miner,
		peers:     peers,
		startTime: time.Now(),
		active:    make(map[uint64]*activeCommand),
		recent:    utils.NewFixedSizedRing(recentCommandsCap),
	}
	s.bindCommands()
	s.bindRoutes()
	return s, nil
}

func (s *Server) bindRoutes() {
	s.router.HandleFunc("/", s.withAuth(s.limitReqSize(s.handleRPC))).Methods("POST")
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Handler returns the routed HTTP handler, ready for an http.Server or an
// httptest one.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start binds the listen address and serves in the background. Bind errors
// surface synchronously.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return errors.Wrapf(err, "listen on %s", s.cfg.ListenAddr)
	}
	s.httpSrv = &http.Server{Handler: s.router}
	go func() {
		if err := s.httpSrv.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Error("rpc server terminated", "err", err)
		}
	}()
	log.Info("rpc server started", "listen", ln.Addr().String())
	return nil
}

// Stop drains in-flight requests and closes the listener.
func (s *Server) Stop() error {
	if s.httpSrv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.httpSrv.Shutdown(ctx)
}

// middleware

func (s *Server) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.gate.authenticate(r) {
			if s.cfg.Metrics != nil {
				s.cfg.Metrics.AuthFailures.Add(1)
			}
			w.Header().Set("WWW-Authenticate", `Basic realm="cairn RPC"`)
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (s *Server) limitReqSize(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// reject suspiciously large posts
		if r.ContentLength > s.cfg.MaxPostSize {
			http.Error(w, "request too large", http.StatusExpectationFailed)
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxPostSize)
		next(w, r)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	s.limiter.Take()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeResponse(w, Response{Error: NewError(ErrCodeParse, "failed to read request: %v", err)})
		return
	}
	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		s.writeResponse(w, Response{Error: NewError(ErrCodeParse, "failed to parse request: %v", err)})
		return
	}
	if req.Method == "" {
		s.writeResponse(w, Response{ID: req.ID, Error: NewError(ErrCodeInvalidRequest, "missing method")})
		return
	}
	s.writeResponse(w, s.dispatch(r.Context(), &req))
}

func (s *Server) writeResponse(w http.ResponseWriter, resp Response) {
	if resp.Error != nil && s.cfg.Metrics != nil {
		s.cfg.Metrics.RequestErrors.With("code", strconv.Itoa(int(resp.Error.Code))).Add(1)
	}
	raw, err := json.Marshal(resp)
	if err != nil {
		log.Error("encode response failed", "err", err)
		raw = []byte(`{"result":null,"error":{"code":-32603,"message":"failed to encode response"},"id":null}`)
	}
	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(raw); err != nil {
		// The caller may already be gone; delivery failure is never fatal.
		log.Debug("response delivery failed", "err", err)
	}
}

// dispatch resolves, coerces and invokes one decoded request. Handler panics
// are recovered into internal errors so no dispatch path can take the server
// down.
func (s *Server) dispatch(ctx context.Context, req *Request) (resp Response) {
	resp.ID = req.ID
	defer func() {
		if rec := recover(); rec != nil {
			log.Error("handler panic recovered", "method", req.Method, "panic", fmt.Sprintf("%v", rec))
			resp.Result = nil
			resp.Error = NewError(ErrCodeInternal, "internal server error")
		}
	}()

	if s.cfg.Metrics != nil {
		s.cfg.Metrics.RequestsServed.With("method", req.Method).Add(1)
		s.cfg.Metrics.InflightRequests.Add(1)
		defer s.cfg.Metrics.InflightRequests.Add(-1)
	}

	cmd, ok := s.reg.lookup(req.Method)
	if !ok {
		resp.Error = errMethodNotFound()
		return resp
	}
	args, rpcErr := s.coercer.coerceAll(cmd, req.Params)
	if rpcErr != nil {
		resp.Error = rpcErr
		return resp
	}

	seq := s.trackCommand(req.Method)
	result, err := cmd.handler(ctx, args)
	s.finishCommand(seq)

	if err != nil {
		resp.Error = wireError(err)
		return resp
	}
	raw, err := EncodeResult(result)
	if err != nil {
		log.Error("encode result failed", "method", req.Method, "err", err)
		resp.Error = NewError(ErrCodeInternal, "failed to encode result")
		return resp
	}
	resp.Result = raw
	return resp
}

func (s *Server) trackCommand(method string) uint64 {
	s.cmdMtx.Lock()
	defer s.cmdMtx.Unlock()
	seq := s.nextSeq
	s.nextSeq++
	s.active[seq] = &activeCommand{method: method, start: time.Now()}
	return seq
}

func (s *Server) finishCommand(seq uint64) {
	s.cmdMtx.Lock()
	defer s.cmdMtx.Unlock()
	cmd, ok := s.active[seq]
	if !ok {
		return
	}
	delete(s.active, seq)
	s.recent.Push(recentCommandInfo{
		Method:         cmd.method,
		DurationMicros: time.Since(cmd.start).Microseconds(),
	})
}
