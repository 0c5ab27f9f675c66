// Package httpdebug implements the debug HTTP surface (component C11): a
// gorilla/mux router exposing a debugmap.Service to an external editor
// process as plain JSON, grounded in the SnellerInc elasticproxy's
// mux.NewRouter()/mux.Vars() wiring style.
package httpdebug

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sarchlab/patchc/debugmap"
)

// Server wraps a debugmap.Service behind the route table SPEC_FULL.md §4.11
// names. It performs no locking of its own — debugmap.Service is the single
// lock boundary; this layer only transcodes.
type Server struct {
	svc    *debugmap.Service
	router *mux.Router
}

// NewServer builds a Server routing against svc.
func NewServer(svc *debugmap.Service) *Server {
	s := &Server{svc: svc, router: mux.NewRouter()}
	s.router.HandleFunc("/edges/{edgeId}", s.handleEdge).Methods(http.MethodGet)
	s.router.HandleFunc("/ports/{blockId}/{portName}", s.handlePort).Methods(http.MethodGet)
	s.router.HandleFunc("/history/{slot}/pin", s.handlePin).Methods(http.MethodPost)
	s.router.HandleFunc("/history/{slot}/pin", s.handleUnpin).Methods(http.MethodDelete)
	s.router.HandleFunc("/history/{slot}", s.handleHistory).Methods(http.MethodGet)
	return s
}

// ServeHTTP lets Server plug directly into http.ListenAndServe.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

type unmappedEdgeResponse struct {
	EdgeID string `json:"edgeId"`
	Reason string `json:"reason"`
}

func (s *Server) handleEdge(w http.ResponseWriter, r *http.Request) {
	edgeID := mux.Vars(r)["edgeId"]
	slot, ok := s.svc.SlotForEdge(edgeID)
	if !ok {
		for _, u := range s.svc.UnmappedEdges() {
			if u.EdgeID == edgeID {
				writeJSON(w, http.StatusNotFound, unmappedEdgeResponse{EdgeID: u.EdgeID, Reason: string(u.Reason)})
				return
			}
		}
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"edgeId": edgeID, "slot": slot})
}

func (s *Server) handlePort(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	address := vars["blockId"] + ":" + vars["portName"]
	slot, ok := s.svc.SlotForAddress(address)
	if !ok {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"address": address, "slot": slot})
}

func (s *Server) handlePin(w http.ResponseWriter, r *http.Request) {
	s.svc.Track(mux.Vars(r)["slot"], true)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUnpin(w http.ResponseWriter, r *http.Request) {
	s.svc.Untrack(mux.Vars(r)["slot"])
	w.WriteHeader(http.StatusNoContent)
}

type historyResponse struct {
	WriteIndex int       `json:"writeIndex"`
	Filled     bool      `json:"filled"`
	Samples    []float32 `json:"samples"`
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	address := mux.Vars(r)["slot"]
	samples, ok := s.svc.History(address)
	if !ok {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, historyResponse{
		WriteIndex: len(samples) % ringCapacityHint,
		Filled:     len(samples) >= ringCapacityHint,
		Samples:    samples,
	})
}

// ringCapacityHint mirrors debugmap's unexported ring size for the
// writeIndex/filled fields the wire contract promises; debugmap does not
// export it directly since History already returns samples oldest-first.
const ringCapacityHint = 128

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
