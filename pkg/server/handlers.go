package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"

	"sparkie-hq/relay/pkg/keypool"
	"sparkie-hq/relay/pkg/router"
	"sparkie-hq/relay/pkg/upstream"
)

// maxRequestBody caps client request bodies at 4 MB.
const maxRequestBody = 4 << 20

// RequestRouter routes one generation request through the credential pool.
type RequestRouter interface {
	Handle(ctx context.Context, req *upstream.GenerateRequest) (*upstream.GenerateResponse, error)
}

// CapacityReporter reports how many credentials can serve traffic soon.
type CapacityReporter interface {
	UsableCapacity(now time.Time) int
}

// GenerateHandler serves POST /v1/generate.
type GenerateHandler struct {
	router RequestRouter
	logger *slog.Logger
}

// NewGenerateHandler creates the generation endpoint handler.
func NewGenerateHandler(rt RequestRouter, logger *slog.Logger) *GenerateHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &GenerateHandler{
		router: rt,
		logger: logger,
	}
}

func (h *GenerateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "invalid_request", "method not allowed")
		return
	}

	var req GenerateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	upstreamReq, err := toUpstreamRequest(&req, GetRequestID(r.Context()))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	resp, err := h.router.Handle(r.Context(), upstreamReq)
	if err != nil {
		h.writeRoutingError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// writeRoutingError maps routing failures to HTTP statuses. An empty or
// fully unavailable pool is 503 so load balancers back off; exhausted
// retries mean the upstream kept failing, which is a 502.
func (h *GenerateHandler) writeRoutingError(w http.ResponseWriter, r *http.Request, err error) {
	requestID := GetRequestID(r.Context())

	switch {
	case errors.Is(err, router.ErrAllCredentialsUnavailable):
		h.logger.WarnContext(r.Context(), "no credential available for request",
			"request_id", requestID,
		)
		writeError(w, http.StatusServiceUnavailable, "pool_exhausted",
			"no credential is currently able to serve the request")

	case errors.Is(err, router.ErrRetriesExhausted):
		h.logger.WarnContext(r.Context(), "retries exhausted for request",
			"request_id", requestID,
			"error", err,
		)
		writeError(w, http.StatusBadGateway, "upstream_error",
			"the upstream service kept failing; please retry later")

	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		// Client went away; the status is best-effort.
		writeError(w, http.StatusGatewayTimeout, "timeout", "request cancelled or timed out")

	default:
		h.logger.ErrorContext(r.Context(), "routing failed",
			"request_id", requestID,
			"error", err,
		)
		writeError(w, http.StatusInternalServerError, "internal_error",
			"An internal error occurred. Please try again later.")
	}
}

// toUpstreamRequest converts the wire request to the router's form.
func toUpstreamRequest(req *GenerateRequest, requestID string) (*upstream.GenerateRequest, error) {
	out := &upstream.GenerateRequest{
		Model:           req.Model,
		Temperature:     req.Temperature,
		MaxOutputTokens: req.MaxOutputTokens,
		Metadata:        map[string]string{"request_id": requestID},
	}

	switch {
	case len(req.Contents) > 0:
		for _, c := range req.Contents {
			parts := make([]upstream.Part, 0, len(c.Text))
			for _, t := range c.Text {
				parts = append(parts, upstream.Part{Text: t})
			}
			out.Contents = append(out.Contents, upstream.Content{Role: c.Role, Parts: parts})
		}
	case req.Prompt != "":
		out.Contents = []upstream.Content{{
			Role:  "user",
			Parts: []upstream.Part{{Text: req.Prompt}},
		}}
	default:
		return nil, errors.New("request must include a prompt or contents")
	}

	return out, nil
}

// KeysHandler serves POST /v1/keys (admit) and GET /v1/keys (list).
type KeysHandler struct {
	pool     *keypool.Pool
	validate *validator.Validate
	logger   *slog.Logger
}

// NewKeysHandler creates the credential management handler.
func NewKeysHandler(pool *keypool.Pool, logger *slog.Logger) *KeysHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &KeysHandler{
		pool:     pool,
		validate: validator.New(),
		logger:   logger,
	}
}

func (h *KeysHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.admit(w, r)
	case http.MethodGet:
		h.list(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "invalid_request", "method not allowed")
	}
}

func (h *KeysHandler) admit(w http.ResponseWriter, r *http.Request) {
	var req AdmitKeyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	if err := h.validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", validationMessage(err))
		return
	}

	cred, err := h.pool.Admit(req.ID, req.Key)
	if err != nil {
		if errors.Is(err, keypool.ErrDuplicateID) {
			writeError(w, http.StatusConflict, "duplicate_id",
				"a credential with this id already exists")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", "admission failed")
		return
	}

	h.logger.InfoContext(r.Context(), "credential admitted",
		"credential_id", cred.ID(),
		"key", cred.MaskedSecret(),
	)

	writeJSON(w, http.StatusCreated, &AdmitKeyResponse{
		ID:        cred.ID(),
		MaskedKey: cred.MaskedSecret(),
		State:     cred.State().String(),
	})
}

func (h *KeysHandler) list(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	creds := h.pool.All()

	resp := &KeyListResponse{
		Keys:  make([]KeyStatus, 0, len(creds)),
		Total: len(creds),
	}
	for _, c := range creds {
		resp.Keys = append(resp.Keys, KeyStatus{
			ID:                  c.ID(),
			MaskedKey:           c.MaskedSecret(),
			State:               c.State().String(),
			ConsecutiveFailures: c.ConsecutiveFailures(),
			TotalRequests:       c.TotalRequests(),
			WindowCount:         c.WindowCount(now),
			CooldownUntil:       timePtr(c.CooldownUntil()),
			LastUsedAt:          timePtr(c.LastUsedAt()),
			LastSuccessAt:       timePtr(c.LastSuccessAt()),
		})
	}
	sort.Slice(resp.Keys, func(i, j int) bool { return resp.Keys[i].ID < resp.Keys[j].ID })

	writeJSON(w, http.StatusOK, resp)
}

// HealthHandler serves GET /health with the pool census.
type HealthHandler struct {
	pool     *keypool.Pool
	capacity CapacityReporter
}

// NewHealthHandler creates the health endpoint handler. capacity may be nil.
func NewHealthHandler(pool *keypool.Pool, capacity CapacityReporter) *HealthHandler {
	return &HealthHandler{pool: pool, capacity: capacity}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "invalid_request", "method not allowed")
		return
	}

	now := time.Now()
	states := h.pool.States()

	census := make(map[string]int, len(states))
	for state, count := range states {
		census[state.String()] = count
	}

	usable := 0
	if h.capacity != nil {
		usable = h.capacity.UsableCapacity(now)
	} else {
		usable = states[keypool.StateActive]
	}

	status := "ok"
	code := http.StatusOK
	if usable == 0 {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, &HealthResponse{
		Status:         status,
		PoolSize:       h.pool.Len(),
		UsableCapacity: usable,
		States:         census,
	})
}

// decodeJSON decodes a request body with a size cap and strict fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return errors.New("request body is not valid JSON: " + err.Error())
	}
	return nil
}

// validationMessage flattens validator errors into one readable message.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "invalid request"
	}
	msg := "invalid request:"
	for _, fe := range verrs {
		msg += " field '" + fe.Field() + "' failed '" + fe.Tag() + "' validation;"
	}
	return msg
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, errType, message string) {
	writeJSON(w, status, NewErrorResponse(errType, message))
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
