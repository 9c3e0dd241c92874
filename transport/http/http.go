// Package http is a stdlib net/http + encoding/json raft.PeerTransport,
// the plain-JSON-over-HTTP shape this codebase's simpler services use
// when a full RPC framework would be overkill for two request types.
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	raft "github.com/gitter-badger/raft"
)

// envelope is the wire shape of a request: a typed RPC name plus its
// JSON-encoded payload, which the receiving Server decodes into the
// right Go struct (decodeArgs). Replies travel as the bare JSON reply.
type envelope struct {
	Type    raft.RPCType    `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Transport dials a single peer reachable at baseURL (e.g.
// "http://10.0.0.2:7000").
type Transport struct {
	baseURL string
	client  *http.Client
}

// New returns a Transport for one peer. client may be nil to use a
// default with a five-second timeout.
func New(baseURL string, client *http.Client) *Transport {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return &Transport{baseURL: baseURL, client: client}
}

func (t *Transport) Connect(ctx context.Context) error {
	return nil // HTTP is dialed per-request; nothing to warm up here.
}

func (t *Transport) Invoke(ctx context.Context, rpcType raft.RPCType, args any) (any, error) {
	payload, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("raft/transport/http: encode request: %w", err)
	}
	body, err := json.Marshal(envelope{Type: rpcType, Payload: payload})
	if err != nil {
		return nil, fmt.Errorf("raft/transport/http: encode envelope: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/raft/rpc", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("raft/transport/http: peer responded %s", resp.Status)
	}
	return decodeReply(rpcType, resp.Body)
}

func decodeReply(rpcType raft.RPCType, r io.Reader) (any, error) {
	dec := json.NewDecoder(r)
	switch rpcType {
	case raft.RPCRequestVote:
		var reply raft.RequestVoteReply
		if err := dec.Decode(&reply); err != nil {
			return nil, err
		}
		return &reply, nil
	case raft.RPCAppendEntries:
		var reply raft.AppendEntriesReply
		if err := dec.Decode(&reply); err != nil {
			return nil, err
		}
		return &reply, nil
	default:
		return nil, &raft.ErrUnknownRPC{Type: rpcType}
	}
}

// Server answers inbound RPCs by forwarding them into a Node (via its
// HandleRPC method) and writing back whatever reply it produces.
type Server struct {
	handle func(ctx context.Context, rpcType raft.RPCType, args any) (any, error)
}

// NewServer wraps a handler -- typically (*raft.Node).HandleRPC -- as an
// http.Handler mountable at "/raft/rpc".
func NewServer(handle func(ctx context.Context, rpcType raft.RPCType, args any) (any, error)) *Server {
	return &Server{handle: handle}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var env envelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	args, err := decodeArgs(env.Type, env.Payload)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	reply, err := s.handle(r.Context(), env.Type, args)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(reply)
}

func decodeArgs(rpcType raft.RPCType, payload json.RawMessage) (any, error) {
	switch rpcType {
	case raft.RPCRequestVote:
		var args raft.RequestVoteArgs
		if err := json.Unmarshal(payload, &args); err != nil {
			return nil, err
		}
		return &args, nil
	case raft.RPCAppendEntries:
		var args raft.AppendEntriesArgs
		if err := json.Unmarshal(payload, &args); err != nil {
			return nil, err
		}
		return &args, nil
	default:
		return nil, &raft.ErrUnknownRPC{Type: rpcType}
	}
}
