package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	apperrors "github.com/copyleftdev/landscape/internal/errors"
)

// JSON-RPC 2.0 error codes.
const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServerError    = -32000
)

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// sessionParams addresses a session and optionally one of its algorithms.
type sessionParams struct {
	ID    string `json:"id"`
	Index *int   `json:"index,omitempty"`
}

// handleJSONRPC handles JSON-RPC 2.0 requests
func (s *Server) handleJSONRPC(w http.ResponseWriter, r *http.Request) {
	var request rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		s.respondWithError(w, codeParseError, "Parse error", nil)
		return
	}

	// Validate JSON-RPC 2.0 request
	if request.JSONRPC != "2.0" || request.Method == "" {
		s.respondWithError(w, codeInvalidRequest, "Invalid Request", request.ID)
		return
	}

	handler, ok := s.rpcMethods()[request.Method]
	if !ok {
		s.respondWithError(w, codeMethodNotFound, "Method not found", request.ID)
		return
	}

	result, err := handler(r.Context(), request.Params)
	if err != nil {
		code := codeServerError
		if apperrors.KindOf(err) == apperrors.KindInvalid {
			code = codeInvalidParams
		}
		s.respondWithError(w, code, err.Error(), request.ID)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      request.ID,
		"result":  result,
	})
}

type rpcHandler func(ctx context.Context, params json.RawMessage) (interface{}, error)

func (s *Server) rpcMethods() map[string]rpcHandler {
	return map[string]rpcHandler{
		"functions.list": func(context.Context, json.RawMessage) (interface{}, error) {
			return listFunctions(), nil
		},
		"functions.grid": s.rpcGrid,
		"session.create": s.rpcCreate,
		"session.status": s.rpcStatus,
		"session.frames": s.rpcFrames,
		"session.select": s.rpcSelect,
		"session.restart": func(_ context.Context, raw json.RawMessage) (interface{}, error) {
			st, i, err := s.rpcAlgorithm(raw)
			if err != nil {
				return nil, err
			}
			return st.Restart(i)
		},
		"session.probe": func(_ context.Context, raw json.RawMessage) (interface{}, error) {
			st, i, err := s.rpcAlgorithm(raw)
			if err != nil {
				return nil, err
			}
			v, err := st.Probe(i)
			if err != nil {
				return nil, err
			}
			return map[string]interface{}{"index": i, "probe": v}, nil
		},
		"session.forever": func(_ context.Context, raw json.RawMessage) (interface{}, error) {
			st, err := s.rpcSession(raw, nil)
			if err != nil {
				return nil, err
			}
			return map[string]interface{}{"forever": st.ToggleForever()}, nil
		},
		"session.close": func(_ context.Context, raw json.RawMessage) (interface{}, error) {
			var p sessionParams
			if err := decodeParams(raw, &p); err != nil {
				return nil, err
			}
			if err := s.CloseSession(p.ID); err != nil {
				return nil, err
			}
			return map[string]interface{}{"closed": p.ID}, nil
		},
	}
}

// decodeParams accepts params as an object or as a one-element array
// holding the object.
func decodeParams(raw json.RawMessage, v interface{}) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	if raw[0] == '[' {
		var list []json.RawMessage
		if err := json.Unmarshal(raw, &list); err != nil {
			return apperrors.Wrap(err, "invalid params").WithKind(apperrors.KindInvalid)
		}
		if len(list) == 0 {
			return nil
		}
		if len(list) > 1 {
			return apperrors.Invalidf("expected at most one positional param, got %d", len(list))
		}
		raw = list[0]
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return apperrors.Wrap(err, "invalid params").WithKind(apperrors.KindInvalid)
	}
	return nil
}

// rpcSession decodes params into v, which must embed the session id, and
// resolves the session. A nil v decodes sessionParams.
func (s *Server) rpcSession(raw json.RawMessage, v interface{ sessionID() string }) (*sessionState, error) {
	if v == nil {
		var p sessionParams
		if err := decodeParams(raw, &p); err != nil {
			return nil, err
		}
		return s.lookup(p.ID)
	}
	if err := decodeParams(raw, v); err != nil {
		return nil, err
	}
	return s.lookup(v.sessionID())
}

func (s *Server) rpcAlgorithm(raw json.RawMessage) (*sessionState, int, error) {
	var p sessionParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, 0, err
	}
	st, err := s.lookup(p.ID)
	if err != nil {
		return nil, 0, err
	}
	if p.Index == nil {
		return st, st.Info().Active, nil
	}
	return st, *p.Index, nil
}

func (s *Server) rpcCreate(_ context.Context, raw json.RawMessage) (interface{}, error) {
	var req SessionRequest
	if err := decodeParams(raw, &req); err != nil {
		return nil, err
	}
	sess, err := s.CreateSession(req)
	if err != nil {
		return nil, err
	}
	return sess.Info(), nil
}

func (s *Server) rpcStatus(_ context.Context, raw json.RawMessage) (interface{}, error) {
	var p sessionParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	st, err := s.lookup(p.ID)
	if err != nil {
		return nil, err
	}
	if p.Index != nil {
		return st.Status(*p.Index)
	}
	s.sessionsMu.RLock()
	defer s.sessionsMu.RUnlock()
	return s.summary(st), nil
}

type framesParams struct {
	ID string `json:"id"`
	FramesRequest
}

func (p *framesParams) sessionID() string { return p.ID }

func (s *Server) rpcFrames(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	p := framesParams{FramesRequest: FramesRequest{Count: 1}}
	st, err := s.rpcSession(raw, &p)
	if err != nil {
		return nil, err
	}
	return runFrames(ctx, st.Session, p.FramesRequest)
}

type selectParams struct {
	ID string `json:"id"`
	SelectRequest
}

func (p *selectParams) sessionID() string { return p.ID }

func (s *Server) rpcSelect(_ context.Context, raw json.RawMessage) (interface{}, error) {
	var p selectParams
	st, err := s.rpcSession(raw, &p)
	if err != nil {
		return nil, err
	}
	return selectAlgorithm(st.Session, p.SelectRequest)
}

// respondWithError sends a JSON-RPC 2.0 error response
func (s *Server) respondWithError(w http.ResponseWriter, code int, message string, id interface{}) {
	s.logger.Warn("RPC request error", map[string]interface{}{
		"code":    code,
		"message": message,
	})

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"jsonrpc": "2.0",
		"error": map[string]interface{}{
			"code":    code,
			"message": message,
		},
		"id": id,
	})
}
