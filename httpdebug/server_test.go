package httpdebug_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sarchlab/patchc/debugidx"
	"github.com/sarchlab/patchc/debugmap"
	"github.com/sarchlab/patchc/httpdebug"
	"github.com/sarchlab/patchc/ir"
	"github.com/sarchlab/patchc/patch"
)

func buildService(t *testing.T) *debugmap.Service {
	t.Helper()
	p := patch.New()
	if err := p.AddBlock(patch.Block{ID: "src", Type: "Const"}); err != nil {
		t.Fatalf("AddBlock: %v", err)
	}
	if err := p.AddBlock(patch.Block{ID: "dst", Type: "Camera"}); err != nil {
		t.Fatalf("AddBlock: %v", err)
	}
	if err := p.AddEdge(patch.Edge{ID: "e1", SourceBlock: "src", SourcePort: "out", DestBlock: "dst", DestPort: "in"}); err != nil {
		t.Fatalf("AddEdge: %v", err)
	}

	idx := &debugidx.Index{
		BlockMap:   map[string]string{"src": "Const", "dst": "Camera"},
		SlotToPort: map[ir.Slot]string{5: "src:out"}, // SlotToPort only ever holds output-port addresses
	}

	svc := debugmap.NewService()
	svc.Rebuild(p, idx)
	return svc
}

func TestHandlePortResolvesAllocatedSlot(t *testing.T) {
	svc := buildService(t)
	srv := httpdebug.NewServer(svc)

	req := httptest.NewRequest(http.MethodGet, "/ports/src/out", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if body["slot"].(float64) != 5 {
		t.Fatalf("expected slot 5, got %v", body["slot"])
	}
}

func TestHandlePortUnknownAddressIs404(t *testing.T) {
	svc := buildService(t)
	srv := httpdebug.NewServer(svc)

	req := httptest.NewRequest(http.MethodGet, "/ports/dst/nonexistent", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestHandleEdgeResolvesSlotFromPort(t *testing.T) {
	svc := buildService(t)
	srv := httpdebug.NewServer(svc)

	req := httptest.NewRequest(http.MethodGet, "/edges/e1", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestHandlePinThenHistoryReturnsTrackedSamples(t *testing.T) {
	svc := buildService(t)
	srv := httpdebug.NewServer(svc)

	pinReq := httptest.NewRequest(http.MethodPost, "/history/src:out/pin", nil)
	pinW := httptest.NewRecorder()
	srv.ServeHTTP(pinW, pinReq)
	if pinW.Code != http.StatusNoContent {
		t.Fatalf("expected 204 from pin, got %d", pinW.Code)
	}

	svc.OnSlotWrite(5, 1.5)

	histReq := httptest.NewRequest(http.MethodGet, "/history/src:out", nil)
	histW := httptest.NewRecorder()
	srv.ServeHTTP(histW, histReq)
	if histW.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", histW.Code, histW.Body.String())
	}
	var body struct {
		Samples []float32 `json:"samples"`
	}
	if err := json.Unmarshal(histW.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if len(body.Samples) != 1 || body.Samples[0] != 1.5 {
		t.Fatalf("expected one sample of 1.5, got %v", body.Samples)
	}
}
