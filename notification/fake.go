package notification

import (
	"encoding/json"
	"io"
	"net/http"
	"sync"

	"github.com/datametry/edr/pkg/logger"
)

// FakeHandler accepts webhook posts and logs them.  It stands in for Slack during --dev runs.
type FakeHandler struct {
	mu       sync.Mutex
	received []map[string]any
}

func NewFakeHandler() *FakeHandler {
	return &FakeHandler{}
}

func (h *FakeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b, err := io.ReadAll(r.Body)
	if err != nil {
		logger.Errorf("Failed to read request body: %s", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	var payload map[string]any
	if err := json.Unmarshal(b, &payload); err != nil {
		logger.Errorf("Failed to unmarshal request body: %s", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	h.mu.Lock()
	h.received = append(h.received, payload)
	h.mu.Unlock()

	logger.Infof("Fake notification received: %s", string(b))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Received returns the payloads accepted so far.
func (h *FakeHandler) Received() []map[string]any {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]map[string]any(nil), h.received...)
}
