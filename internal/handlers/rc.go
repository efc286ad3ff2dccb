package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"appeloffres/api/internal/services"
)

const maxRCUploadSize = 20 << 20 // 20MB

// HandleAnalyzeRC handles POST /rc/analyze. The body is a PDF, plain text, or {"text": "..."}.
func HandleAnalyzeRC(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRCUploadSize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "document too large")
			return
		}
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	var text string
	switch {
	case mediaType == "application/pdf" || bytes.HasPrefix(body, []byte("%PDF-")):
		text, err = services.ExtractPDFText(bytes.NewReader(body), int64(len(body)))
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	case mediaType == "application/json":
		var in struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal(body, &in); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
			return
		}
		text = in.Text
	default:
		text = string(body)
	}

	if strings.TrimSpace(text) == "" {
		writeError(w, http.StatusBadRequest, "document contains no text")
		return
	}
	WriteJSON(w, http.StatusOK, services.AnalyzeRC(text))
}
