package httpadapter

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kirillkom/receipt-assistant/internal/core/domain"
	"github.com/kirillkom/receipt-assistant/internal/observability/logging"
)

const (
	receiptProcessedMessage = "Receipt processed successfully"
	receiptFailedMessage    = "Failed to process receipt. Please try again."
	degradedHeader          = "X-Catalog-Degraded"
)

func (rt *Router) processReceipt(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	r.Body = http.MaxBytesReader(w, r.Body, rt.maxUploadBytes)
	if err := r.ParseMultipartForm(rt.maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeFailure(w, http.StatusRequestEntityTooLarge, "Receipt image is too large.")
			return
		}
		writeFailure(w, http.StatusBadRequest, "multipart form with user_id and image is required")
		return
	}

	userID := strings.TrimSpace(r.FormValue("user_id"))
	if userID == "" {
		writeFailure(w, http.StatusBadRequest, "Invalid user_id")
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		writeFailure(w, http.StatusBadRequest, "multipart field 'image' is required")
		return
	}
	defer file.Close()

	if !strings.HasPrefix(header.Header.Get("Content-Type"), "image/") {
		writeFailure(w, http.StatusBadRequest, "Invalid file type. Please upload an image.")
		return
	}
	image, err := io.ReadAll(file)
	if err != nil {
		writeFailure(w, http.StatusBadRequest, "could not read image")
		return
	}

	resolution, err := rt.receipts.Process(r.Context(), userID, image)
	rt.observeReceipt("receipts", started, resolution, err)
	rt.respondReceipt(w, r, userID, resolution, err)
}

func (rt *Router) processReceiptText(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	var req struct {
		UserID    string   `json:"user_id"`
		Fragments []string `json:"fragments"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, rt.maxUploadBytes)).Decode(&req); err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid json")
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		writeFailure(w, http.StatusBadRequest, "Invalid user_id")
		return
	}

	resolution, err := rt.receipts.ProcessText(r.Context(), req.UserID, req.Fragments)
	rt.observeReceipt("receipts_text", started, resolution, err)
	rt.respondReceipt(w, r, req.UserID, resolution, err)
}

func (rt *Router) respondReceipt(w http.ResponseWriter, r *http.Request, userID string, resolution *domain.Resolution, err error) {
	logger := logging.FromContext(r.Context())
	if err != nil {
		status := mapErrorToHTTPStatus(err)
		logger.Error("receipt_failed", "user_id", userID, "status", status, "error", err.Error())
		writeFailure(w, status, receiptFailedMessage)
		return
	}

	w.Header().Set(degradedHeader, strconv.FormatBool(resolution.Degraded))
	writeSuccess(w, receiptProcessedMessage, resolution.Order)
}
