package httpadapter

import (
	"encoding/json"
	"mime"
	"net/http"
	"strings"

	"github.com/kirillkom/receipt-assistant/internal/observability/logging"
)

func (rt *Router) embedProductName(w http.ResponseWriter, r *http.Request) {
	productName, ok := readProductName(r)
	if !ok {
		writeFailure(w, http.StatusBadRequest, "Invalid product_name")
		return
	}

	vector, err := rt.embedder.EmbedQuery(r.Context(), productName)
	if err != nil {
		logging.FromContext(r.Context()).Error("embedding_failed", "error", err.Error())
		writeFailure(w, mapErrorToHTTPStatus(err), "Failed to generate embeddings. Please try again.")
		return
	}
	writeSuccess(w, "Embeddings generated successfully", map[string]any{
		"product_name": productName,
		"embeddings":   vector,
	})
}

// readProductName accepts a JSON body or a form field.
func readProductName(r *http.Request) (string, bool) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	var name string
	if mediaType == "application/json" {
		var req struct {
			ProductName string `json:"product_name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return "", false
		}
		name = req.ProductName
	} else {
		name = r.FormValue("product_name")
	}
	name = strings.TrimSpace(name)
	return name, name != ""
}

func (rt *Router) catalogStatus(w http.ResponseWriter, _ *http.Request) {
	writeSuccess(w, "Catalog status", rt.catalog.Status())
}

func (rt *Router) reloadCatalog(w http.ResponseWriter, r *http.Request) {
	if err := rt.catalog.Reload(r.Context()); err != nil {
		logging.FromContext(r.Context()).Warn("catalog_reload_failed", "error", err.Error())
		writeJSON(w, http.StatusServiceUnavailable, envelope{
			Status:  statusFailed,
			Message: "Catalog reload failed; the previous catalog is still served.",
			Data:    rt.catalog.Status(),
		})
		return
	}
	writeSuccess(w, "Catalog reloaded", rt.catalog.Status())
}
