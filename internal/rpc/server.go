// Package rpc serves the wallet daemon's JSON-RPC 2.0 API over HTTP.
//
// Methods are grouped by prefix. wallet_* and sync are always served;
// node_* and devnet_* exist only after SetNode and SetFaucet, so a daemon
// talking to a remote node answers them with method-not-found.
package rpc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/Klingon-tech/klingwallet/config"
	"github.com/Klingon-tech/klingwallet/internal/devnet"
	"github.com/Klingon-tech/klingwallet/internal/engine"
	klog "github.com/Klingon-tech/klingwallet/internal/log"
	"github.com/Klingon-tech/klingwallet/pkg/types"
)

// Faucet is the devnet-only surface behind devnet_fund and devnet_mine.
type Faucet interface {
	Fund(addr types.Address, value uint64, viewKeys ...[]byte) (types.Hash, error)
	Mine() (*devnet.Block, error)
}

// method is one JSON-RPC entry point.
type method func(ctx context.Context, req *Request) (any, *Error)

// Server is the JSON-RPC HTTP server.
type Server struct {
	addr   string
	engine *engine.Engine
	node   engine.Node
	faucet Faucet
	logger zerolog.Logger

	mu      sync.RWMutex
	methods map[string]method

	access *accessPolicy
	http   *http.Server
	ln     net.Listener
}

// New builds a server for eng. The optional RPCConfig supplies the client
// allowlist and CORS origins; without it every client is accepted and no
// CORS headers are sent.
func New(addr string, eng *engine.Engine, rpcCfg ...config.RPCConfig) *Server {
	initPrometheusMetrics()

	s := &Server{
		addr:   addr,
		engine: eng,
		logger: klog.For(klog.RPC),
	}
	var rc config.RPCConfig
	if len(rpcCfg) > 0 {
		rc = rpcCfg[0]
	}
	s.access = newAccessPolicy(rc.AllowedIPs, rc.CORSOrigins, s.logger)

	s.methods = map[string]method{
		"wallet_create":                s.handleWalletCreate,
		"wallet_restore":               s.handleWalletRestore,
		"wallet_open":                  s.handleWalletOpen,
		"wallet_close":                 s.handleWalletClose,
		"wallet_lock":                  s.handleWalletLock,
		"wallet_unlock":                s.handleWalletUnlock,
		"wallet_list":                  s.handleWalletList,
		"wallet_createTransferAddress": s.handleWalletCreateTransferAddress,
		"wallet_createStakingAddress":  s.handleWalletCreateStakingAddress,
		"wallet_listAddresses":         s.handleWalletListAddresses,
		"wallet_getViewKey":            s.handleWalletGetViewKey,
		"wallet_sendToAddress":         s.handleWalletSendToAddress,
		"wallet_balance":               s.handleWalletBalance,
		"wallet_transactions":          s.handleWalletTransactions,
		"wallet_transactionCount":      s.handleWalletTransactionCount,
		"wallet_outputs":               s.handleWalletOutputs,
		"wallet_waitConfirmed":         s.handleWalletWaitConfirmed,
		"sync":                         s.handleSync,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.serveRPC)
	mux.Handle("/metrics", promhttp.Handler())

	s.http = &http.Server{
		Handler:           s.access.wrap(mux),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// wallet_waitConfirmed and sync may hold a request open.
		WriteTimeout: 10 * time.Minute,
	}
	return s
}

// SetNode serves node_submit, node_confirmedSince and node_txStatus from n.
func (s *Server) SetNode(n engine.Node) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.node = n
	s.methods["node_submit"] = s.handleNodeSubmit
	s.methods["node_confirmedSince"] = s.handleNodeConfirmedSince
	s.methods["node_txStatus"] = s.handleNodeTxStatus
}

// SetFaucet serves devnet_fund and devnet_mine from f.
func (s *Server) SetFaucet(f Faucet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faucet = f
	s.methods["devnet_fund"] = s.handleDevnetFund
	s.methods["devnet_mine"] = s.handleDevnetMine
}

func (s *Server) lookup(name string) (method, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.methods[name]
	return m, ok
}

// Start binds the listener and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("rpc listen %s: %w", s.addr, err)
	}
	s.ln = ln
	go func() {
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("RPC server stopped")
		}
	}()
	return nil
}

// Addr is the bound address once started, the configured one before.
func (s *Server) Addr() string {
	if s.ln != nil {
		return s.ln.Addr().String()
	}
	return s.addr
}

// Stop drains in-flight requests for up to five seconds.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.http.Shutdown(ctx)
}

// Handler exposes the full HTTP handler, access policy included.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// call runs one request and records its outcome.
func (s *Server) call(ctx context.Context, req *Request) (any, *Error) {
	m, ok := s.lookup(req.Method)
	if !ok {
		observeCall("unknown", time.Now(), CodeMethodNotFound)
		return nil, &Error{Code: CodeMethodNotFound, Message: fmt.Sprintf("method %q not found", req.Method)}
	}
	start := time.Now()
	result, rpcErr := m(ctx, req)

	code := 0
	if rpcErr != nil {
		code = rpcErr.Code
	}
	observeCall(req.Method, start, code)

	ev := s.logger.Debug()
	if code == CodeInternalError {
		ev = s.logger.Warn().Str("error", rpcErr.Message)
	}
	ev.Str("method", req.Method).Int("code", code).Dur("took", time.Since(start)).Msg("RPC call")
	return result, rpcErr
}
