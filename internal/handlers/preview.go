package handlers

import (
	"net/http"

	"appeloffres/api/internal/services"
)

// HandlePreview handles POST /preview: {"content": "..."} -> rendered HTML and parsed blocks.
func HandlePreview(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Content string `json:"content"`
	}
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"html":   services.MarkdownToHTML(in.Content),
		"blocks": services.ParseMarkdownContent(in.Content),
	})
}
