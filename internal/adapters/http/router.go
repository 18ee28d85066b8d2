package httpadapter

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/kirillkom/receipt-assistant/internal/config"
	"github.com/kirillkom/receipt-assistant/internal/core/domain"
	"github.com/kirillkom/receipt-assistant/internal/core/ports"
)

const (
	statusSuccess = "success"
	statusFailed  = "failed"
)

// envelope is the response shape of every /v1 endpoint.
type envelope struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

// Observer receives pipeline and traffic observations. *metrics.HTTPServerMetrics implements it.
type Observer interface {
	Middleware(service string, next http.Handler) http.Handler
	Handler() http.Handler
	RecordRejected(service, reason string)
	RecordReceipt(service, endpoint, status string, duration time.Duration)
	RecordResolution(service string, resolved, rejected int, distances []float64)
}

type Router struct {
	service  string
	receipts ports.ReceiptProcessor
	catalog  ports.CatalogReloader
	embedder ports.Embedder
	observer Observer

	maxUploadBytes   int64
	rateLimitRPS     float64
	rateLimitBurst   int
	maxInFlight      int
	backpressureWait time.Duration
}

func NewRouter(
	cfg config.Config,
	receipts ports.ReceiptProcessor,
	catalog ports.CatalogReloader,
	embedder ports.Embedder,
	observer Observer,
) *Router {
	service := cfg.AppName
	if service == "" {
		service = "api"
	}
	maxUpload := cfg.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = 10 << 20
	}
	return &Router{
		service:          service,
		receipts:         receipts,
		catalog:          catalog,
		embedder:         embedder,
		observer:         observer,
		maxUploadBytes:   maxUpload,
		rateLimitRPS:     cfg.APIRateLimitRPS,
		rateLimitBurst:   cfg.APIRateLimitBurst,
		maxInFlight:      cfg.APIMaxInFlight,
		backpressureWait: 250 * time.Millisecond,
	}
}

func (rt *Router) Handler() http.Handler {
	v1 := http.NewServeMux()
	v1.HandleFunc("POST /v1/receipts", rt.processReceipt)
	v1.HandleFunc("POST /v1/receipts/text", rt.processReceiptText)
	v1.HandleFunc("POST /v1/embeddings", rt.embedProductName)
	v1.HandleFunc("GET /v1/catalog", rt.catalogStatus)
	v1.HandleFunc("POST /v1/catalog/reload", rt.reloadCatalog)

	var api http.Handler = v1
	api = backpressureMiddleware(api, rt.maxInFlight, rt.backpressureWait, rt.onReject)
	api = rateLimitMiddleware(api, rt.rateLimitRPS, rt.rateLimitBurst, rt.onReject)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	if rt.observer != nil {
		mux.Handle("GET /metrics", rt.observer.Handler())
	}
	mux.Handle("/v1/", api)

	var handler http.Handler = mux
	if rt.observer != nil {
		handler = rt.observer.Middleware(rt.service, handler)
	}
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message_code":        200,
		"message_description": "Service is up and running WELL",
		"response_data":       map[string]any{},
	})
}

func (rt *Router) onReject(reason string) {
	if rt.observer != nil {
		rt.observer.RecordRejected(rt.service, reason)
	}
}

func (rt *Router) observeReceipt(endpoint string, started time.Time, resolution *domain.Resolution, err error) {
	if rt.observer == nil {
		return
	}
	status := "ok"
	switch {
	case err != nil:
		status = "failed"
	case resolution.Degraded:
		status = "degraded"
	}
	rt.observer.RecordReceipt(rt.service, endpoint, status, time.Since(started))
	if err != nil {
		return
	}
	distances := make([]float64, 0, len(resolution.Matches))
	for _, match := range resolution.Matches {
		distances = append(distances, match.Distance)
	}
	rt.observer.RecordResolution(rt.service, resolution.Resolved, resolution.Rejected, distances)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeSuccess(w http.ResponseWriter, message string, data any) {
	writeJSON(w, http.StatusOK, envelope{Status: statusSuccess, Message: message, Data: data})
}

func writeFailure(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, envelope{Status: statusFailed, Message: message, Data: nil})
}
