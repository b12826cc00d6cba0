package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/markdave123-py/ragline/internal/core"
	"github.com/markdave123-py/ragline/internal/logger"
	"github.com/markdave123-py/ragline/internal/services"
)

type ChatHandler struct {
	query *services.QueryService
}

func NewChatHandler(query *services.QueryService) *ChatHandler {
	return &ChatHandler{query: query}
}

type ChatRequest struct {
	Question string `json:"question"`
	TopK     int    `json:"top_k"`
}

// Query answers a question from the indexed documents. Clients sending
// Accept: text/event-stream get the answer as server-sent events.
func (h *ChatHandler) Query(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	if strings.Contains(r.Header.Get("Accept"), "text/event-stream") {
		h.stream(w, r, req)
		return
	}

	ans, err := h.query.Answer(r.Context(), req.Question, req.TopK, nil)
	if err != nil {
		logger.FromContext(r.Context()).Warn("query failed", "error", err)
		writeError(w, core.HTTPStatusCode(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ans)
}

func (h *ChatHandler) stream(w http.ResponseWriter, r *http.Request, req ChatRequest) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	started := false
	start := func() {
		if started {
			return
		}
		started = true
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
	}

	ans, err := h.query.Answer(r.Context(), req.Question, req.TopK, func(fragment string) error {
		start()
		writeEvent(w, "", fragment)
		flusher.Flush()
		return r.Context().Err()
	})
	if err != nil {
		logger.FromContext(r.Context()).Warn("streamed query failed", "error", err)
		if !started {
			// nothing sent yet, so a proper status code is still possible
			writeError(w, core.HTTPStatusCode(err), err.Error())
			return
		}
		if !errors.Is(err, r.Context().Err()) {
			writeEvent(w, "error", err.Error())
			flusher.Flush()
		}
		return
	}

	start()
	sources, _ := json.Marshal(ans.Sources)
	writeEvent(w, "sources", string(sources))
	flusher.Flush()
}

// writeEvent writes one SSE event; multi-line data becomes several data lines.
func writeEvent(w http.ResponseWriter, event, data string) {
	if event != "" {
		fmt.Fprintf(w, "event: %s\n", event)
	}
	for _, line := range strings.Split(data, "\n") {
		fmt.Fprintf(w, "data: %s\n", line)
	}
	fmt.Fprint(w, "\n")
}
