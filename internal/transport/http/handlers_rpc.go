package httptransport

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/justQrius/companion-network-sub000/internal/proposal"
	dErrors "github.com/justQrius/companion-network-sub000/pkg/domain-errors"
	"github.com/justQrius/companion-network-sub000/pkg/platform/httputil"
)

var errUnknownTool = errors.New("unknown tool")

// JSON-RPC 2.0 error codes.
const (
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInternalError  = -32603
)

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  rpcParams       `json:"params"`
}

type rpcParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// HandleRun serves the peer-facing JSON-RPC 2.0 endpoint. Business-level
// denials (invalid input, access denied) travel inside the result, the way
// peers expect them; only framing problems and internal failures use the
// JSON-RPC error object.
func (h *Handler) HandleRun(w http.ResponseWriter, r *http.Request) {
	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeRPCError(w, http.StatusBadRequest, nil, codeInvalidRequest, "Invalid Request: malformed JSON")
		return
	}
	if req.JSONRPC != "2.0" {
		h.writeRPCError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "Invalid Request: jsonrpc must be '2.0'")
		return
	}
	if req.Method != "tools/call" {
		h.writeRPCError(w, http.StatusOK, req.ID, codeMethodNotFound, "Method not found: "+req.Method)
		return
	}

	result, err := h.dispatch(r, req.Params)
	if err != nil {
		if errors.Is(err, errUnknownTool) {
			h.writeRPCError(w, http.StatusOK, req.ID, codeMethodNotFound, "Method not found: "+req.Params.Name)
			return
		}
		if business, ok := businessResult(err); ok {
			result = business
		} else {
			h.logger.Error("operation failed",
				"operation", req.Params.Name,
				"error", err,
			)
			h.writeRPCError(w, http.StatusInternalServerError, req.ID, codeInternalError, "Internal error")
			return
		}
	}
	httputil.WriteJSON(w, http.StatusOK, rpcResponse{JSONRPC: "2.0", ID: req.ID, Result: result})
}

// dispatch routes one tool call to the service.
func (h *Handler) dispatch(r *http.Request, params rpcParams) (any, error) {
	ctx := r.Context()
	args := arguments(params.Arguments)

	switch params.Name {
	case "check_availability":
		return h.svc.CheckAvailability(ctx,
			args.str("timeframe"),
			args.str("event_type"),
			args.integer("duration_minutes"),
			args.str("requester"),
		)
	case "propose_event":
		return h.svc.ProposeEvent(ctx, proposal.Input{
			Title:        args.str("event_name"),
			Time:         args.str("datetime"),
			Location:     args.str("location"),
			Participants: args.strList("participants"),
			Proposer:     args.str("requester"),
			Counters:     args.str("counters_event_id"),
		})
	case "share_context":
		return h.svc.ShareContext(ctx,
			args.str("category"),
			args.str("purpose"),
			args.str("requester"),
		)
	case "relay_message":
		return h.svc.RelayMessage(ctx,
			args.str("message"),
			args.str("urgency"),
			args.str("sender"),
		)
	default:
		return nil, errUnknownTool
	}
}

func (h *Handler) writeRPCError(w http.ResponseWriter, status int, id json.RawMessage, code int, message string) {
	httputil.WriteJSON(w, status, rpcResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &rpcError{Code: code, Message: message},
	})
}

// businessResult maps caller-fault errors to the error-dict result shape
// peers consume. Internal failures return false and stay out of the wire.
func businessResult(err error) (map[string]string, bool) {
	switch dErrors.CodeOf(err) {
	case dErrors.CodeValidation:
		return map[string]string{"error": "Invalid input", "message": dErrors.MessageOf(err)}, true
	case dErrors.CodeAccessDenied:
		return map[string]string{"error": "Access denied", "message": dErrors.MessageOf(err)}, true
	case dErrors.CodeNotFound:
		return map[string]string{"error": "Not found", "message": dErrors.MessageOf(err)}, true
	case dErrors.CodeConflict:
		return map[string]string{"error": "Conflict", "message": dErrors.MessageOf(err)}, true
	case dErrors.CodeProtocol:
		return map[string]string{"error": "Invalid request", "message": dErrors.MessageOf(err)}, true
	default:
		return nil, false
	}
}

// arguments reads loosely typed JSON-RPC arguments without panicking on
// missing or mistyped fields; validation happens in the service layer.
type arguments map[string]any

func (a arguments) str(key string) string {
	s, _ := a[key].(string)
	return s
}

func (a arguments) integer(key string) int {
	switch v := a[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}

func (a arguments) strList(key string) []string {
	items, ok := a[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
