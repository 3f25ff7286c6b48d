package rpc

import (
	"context"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/cairnchain/node/chain"
	"github.com/cairnchain/node/common/log"
	"github.com/cairnchain/node/p2p"
)

// blockHeaderResult is the verbose getblockheader result. Re-serializing the
// six header fields and double-SHA-256 hashing them reproduces Hash
// bit-for-bit.
type blockHeaderResult struct {
	Hash              string `json:"hash"`
	Height            int64  `json:"height"`
	Version           int32  `json:"version"`
	PreviousBlockHash string `json:"previousblockhash"`
	MerkleRoot        string `json:"merkleroot"`
	Time              uint32 `json:"time"`
	Bits              string `json:"bits"`
	Nonce             uint32 `json:"nonce"`
}

type activeCommandInfo struct {
	Method   string `json:"method"`
	Duration int64  `json:"duration"`
}

type recentCommandInfo struct {
	Method         string `json:"method"`
	DurationMicros int64  `json:"durationmicros"`
}

type rpcInfoResult struct {
	ActiveCommands []activeCommandInfo `json:"activecommands"`
	RecentCommands []recentCommandInfo `json:"recentcommands"`
}

func (s *Server) bindCommands() {
	s.reg.register(&command{
		name:    "addnode",
		params:  []paramSpec{{name: "address", typ: paramAddress, required: true}},
		help:    "request a connection attempt to the given peer endpoint",
		handler: s.handleAddNode(),
	})
	s.reg.register(&command{
		name:    "getaddednodeinfo",
		help:    "list configured peer endpoints and their connection status",
		handler: s.handleGetAddedNodeInfo(),
	})
	s.reg.register(&command{
		name:    "getpeerinfo",
		help:    "list live peer connections",
		handler: s.handleGetPeerInfo(),
	})
	s.reg.register(&command{
		name:    "getconnectioncount",
		help:    "number of live peer connections",
		handler: s.handleGetConnectionCount(),
	})
	s.reg.register(&command{
		name:    "setnetworkactive",
		params:  []paramSpec{{name: "state", typ: paramBool, required: true}},
		help:    "enable or disable outbound peer dialing",
		handler: s.handleSetNetworkActive(),
	})
	s.reg.register(&command{
		name:    "getbestblockhash",
		help:    "hash of the current chain tip",
		handler: s.handleGetBestBlockHash(),
	})
	s.reg.register(&command{
		name:    "getblockhash",
		params:  []paramSpec{{name: "height", typ: paramInteger, required: true}},
		help:    "block hash at the given height",
		handler: s.handleGetBlockHash(),
	})
	s.reg.register(&command{
		name: "getblockheader",
		params: []paramSpec{
			{name: "hash_or_height", typ: paramString, required: true},
			{name: "verbose", typ: paramBool, def: true},
		},
		help:    "block header by hash or height, structured or as hex",
		handler: s.handleGetBlockHeader(),
	})
	s.reg.register(&command{
		name:    "getblockcount",
		help:    "height of the current chain tip",
		handler: s.handleGetBlockCount(),
	})
	s.reg.register(&command{
		name:    "generate",
		params:  []paramSpec{{name: "count", typ: paramInteger, required: true}},
		help:    "produce the given number of blocks and return their hashes",
		handler: s.handleGenerate(),
	})
	s.reg.register(&command{
		name:    "uptime",
		help:    "seconds the server has been running",
		handler: s.handleUptime(),
	})
	s.reg.register(&command{
		name:    "getrpcinfo",
		help:    "active and recently completed commands",
		handler: s.handleGetRPCInfo(),
	})
	s.reg.register(&command{
		name:    "help",
		params:  []paramSpec{{name: "command", typ: paramString, def: ""}},
		help:    "usage for one command, or all commands",
		handler: s.handleHelp(),
	})
	s.reg.register(&command{
		name:    "stop",
		help:    "request node shutdown",
		handler: s.handleStop(),
	})
}

func (s *Server) handleAddNode() handlerFunc {
	return func(_ context.Context, args []interface{}) (interface{}, error) {
		ep := args[0].(p2p.Endpoint)
		// Duplicate adds are an idempotent no-op, void result either way.
		s.peers.AddNode(ep)
		return nil, nil
	}
}

func (s *Server) handleGetAddedNodeInfo() handlerFunc {
	return func(_ context.Context, _ []interface{}) (interface{}, error) {
		return s.peers.ConfiguredNodes(), nil
	}
}

func (s *Server) handleGetPeerInfo() handlerFunc {
	return func(_ context.Context, _ []interface{}) (interface{}, error) {
		return s.peers.LiveConnections(), nil
	}
}

func (s *Server) handleGetConnectionCount() handlerFunc {
	return func(_ context.Context, _ []interface{}) (interface{}, error) {
		return s.peers.ConnectionCount(), nil
	}
}

func (s *Server) handleSetNetworkActive() handlerFunc {
	return func(_ context.Context, args []interface{}) (interface{}, error) {
		state := args[0].(bool)
		return s.peers.SetNetworkActive(state), nil
	}
}

func (s *Server) handleGetBestBlockHash() handlerFunc {
	return func(_ context.Context, _ []interface{}) (interface{}, error) {
		return s.chain.BestHash().String(), nil
	}
}

func (s *Server) handleGetBlockHash() handlerFunc {
	return func(_ context.Context, args []interface{}) (interface{}, error) {
		height := args[0].(int64)
		hash, err := s.chain.HashAt(height)
		if err != nil {
			if errors.Cause(err) == chain.ErrHeaderNotFound {
				return nil, NewError(ErrCodeInvalidParameter, "Block height out of range")
			}
			return nil, err
		}
		return hash.String(), nil
	}
}

func (s *Server) handleGetBlockHeader() handlerFunc {
	return func(_ context.Context, args []interface{}) (interface{}, error) {
		header, height, rpcErr := s.resolveHeader(args[0].(string))
		if rpcErr != nil {
			return nil, rpcErr
		}
		if verbose := args[1].(bool); !verbose {
			return hex.EncodeToString(header.Serialize()), nil
		}
		return blockHeaderResult{
			Hash:              header.BlockHash().String(),
			Height:            height,
			Version:           header.Version,
			PreviousBlockHash: header.PrevBlock.String(),
			MerkleRoot:        header.MerkleRoot.String(),
			Time:              header.Timestamp,
			Bits:              fmt.Sprintf("%08x", header.Bits),
			Nonce:             header.Nonce,
		}, nil
	}
}

// resolveHeader treats a 64-char argument as a block hash and a decimal
// argument as a height.
func (s *Server) resolveHeader(arg string) (chain.BlockHeader, int64, *Error) {
	if len(arg) == chain.HashSize*2 {
		hash, err := chain.NewHashFromStr(arg)
		if err != nil {
			return chain.BlockHeader{}, 0, NewError(ErrCodeInvalidParameter, "invalid block hash %q", arg)
		}
		header, height, err := s.chain.HeaderByHash(hash)
		if err != nil {
			if errors.Cause(err) == chain.ErrHeaderNotFound {
				return chain.BlockHeader{}, 0, NewError(ErrCodeNotFound, "Block not found")
			}
			return chain.BlockHeader{}, 0, wireError(err)
		}
		return header, height, nil
	}
	if height, err := strconv.ParseInt(arg, 10, 64); err == nil {
		header, err := s.chain.HeaderAt(height)
		if err != nil {
			if errors.Cause(err) == chain.ErrHeaderNotFound {
				return chain.BlockHeader{}, 0, NewError(ErrCodeInvalidParameter, "Block height out of range")
			}
			return chain.BlockHeader{}, 0, wireError(err)
		}
		return header, height, nil
	}
	return chain.BlockHeader{}, 0, NewError(ErrCodeInvalidParameter,
		"hash_or_height must be a block hash or height")
}

func (s *Server) handleGetBlockCount() handlerFunc {
	return func(_ context.Context, _ []interface{}) (interface{}, error) {
		return s.chain.Height(), nil
	}
}

func (s *Server) handleGenerate() handlerFunc {
	return func(ctx context.Context, args []interface{}) (interface{}, error) {
		count := args[0].(int64)
		if count < 1 {
			return nil, NewError(ErrCodeInvalidParameter, "count must be a positive integer")
		}
		start := time.Now()
		hashes, err := s.miner.ProduceBlocks(ctx, int(count))
		if s.cfg.Metrics != nil {
			s.cfg.Metrics.GenerateTimeMs.Set(float64(time.Since(start).Milliseconds()))
		}
		if err != nil {
			return nil, err
		}
		out := make([]string, 0, len(hashes))
		for _, h := range hashes {
			out = append(out, h.String())
		}
		return out, nil
	}
}

func (s *Server) handleUptime() handlerFunc {
	return func(_ context.Context, _ []interface{}) (interface{}, error) {
		return int64(time.Since(s.startTime) / time.Second), nil
	}
}

func (s *Server) handleGetRPCInfo() handlerFunc {
	return func(_ context.Context, _ []interface{}) (interface{}, error) {
		return s.rpcInfo(), nil
	}
}

func (s *Server) rpcInfo() rpcInfoResult {
	s.cmdMtx.Lock()
	defer s.cmdMtx.Unlock()

	active := make([]activeCommandInfo, 0, len(s.active))
	for _, c := range s.active {
		active = append(active, activeCommandInfo{
			Method:   c.method,
			Duration: time.Since(c.start).Microseconds(),
		})
	}
	// Longest running first; map iteration order is not stable.
	sort.Slice(active, func(i, j int) bool { return active[i].Duration > active[j].Duration })

	elems := s.recent.Elements()
	recent := make([]recentCommandInfo, 0, len(elems))
	for _, e := range elems {
		recent = append(recent, e.(recentCommandInfo))
	}
	return rpcInfoResult{ActiveCommands: active, RecentCommands: recent}
}

func (s *Server) handleHelp() handlerFunc {
	return func(_ context.Context, args []interface{}) (interface{}, error) {
		name := args[0].(string)
		if name == "" {
			var b strings.Builder
			for i, n := range s.reg.names() {
				cmd, _ := s.reg.lookup(n)
				if i > 0 {
					b.WriteByte('\n')
				}
				fmt.Fprintf(&b, "%s - %s", cmd.usage(), cmd.help)
			}
			return b.String(), nil
		}
		cmd, ok := s.reg.lookup(name)
		if !ok {
			return fmt.Sprintf("help: unknown command %q", name), nil
		}
		return fmt.Sprintf("%s - %s", cmd.usage(), cmd.help), nil
	}
}

func (s *Server) handleStop() handlerFunc {
	return func(_ context.Context, _ []interface{}) (interface{}, error) {
		log.Info("shutdown requested over rpc")
		if s.cfg.OnStop != nil {
			go s.cfg.OnStop()
		}
		return s.cfg.ServerName + " stopping", nil
	}
}
