// Copyright 2025 Certen Protocol
//
// Package api serves the Calendar block engine's proof retrieval surface:
// the `/calendar/<id>/hash` and `/calendar/<id>/data` URIs every proof
// segment's anchorUri points at (spec §4.7 step 5, §4.8 steps 5 and 7).
//
// Grounded on the teacher's pkg/server handler shape (a Handlers struct
// wrapping a backing store, one Handle* method per route, stable JSON
// error bodies).
package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/chainpoint-network/calendar-core/pkg/proofstore"
)

// ProofHandlers serves proof segments out of a proofstore.Store.
type ProofHandlers struct {
	proofs *proofstore.Store
}

// NewProofHandlers constructs ProofHandlers over proofs.
func NewProofHandlers(proofs *proofstore.Store) *ProofHandlers {
	return &ProofHandlers{proofs: proofs}
}

type proofView struct {
	AnchorURI string `json:"anchor_uri"`
	Ops       any    `json:"ops"`
}

// HandleHash serves `/calendar/<id>/hash`, looking the proof up by the
// `anchor:<id>` key the Anchor Engine publishes each cal block's anchor
// segment under (id is the cal block id). The Calendar Writer's per-root
// proofs are keyed by aggregation id and are not served here.
func (h *ProofHandlers) HandleHash(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r.URL.Path, "/calendar/", "/hash")
	if !ok {
		http.Error(w, `{"error":"malformed calendar hash path"}`, http.StatusBadRequest)
		return
	}
	h.serve(w, "anchor:"+id)
}

// HandleData serves `/calendar/<id>/data`, looking the proof up by the
// `btctx:<txid>` key the Confirmer publishes under: the path's id segment
// is used as the btc tx id, not as a calendar block id.
func (h *ProofHandlers) HandleData(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r.URL.Path, "/calendar/", "/data")
	if !ok {
		http.Error(w, `{"error":"malformed calendar data path"}`, http.StatusBadRequest)
		return
	}
	h.serve(w, "btctx:"+id)
}

func (h *ProofHandlers) serve(w http.ResponseWriter, key string) {
	proof, ok := h.proofs.Get(key)
	if !ok {
		http.Error(w, `{"error":"proof not found"}`, http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(proofView{AnchorURI: proof.AnchorURI, Ops: proof.Ops})
}

func pathID(path, prefix, suffix string) (string, bool) {
	if !strings.HasPrefix(path, prefix) || !strings.HasSuffix(path, suffix) {
		return "", false
	}
	id := strings.TrimSuffix(strings.TrimPrefix(path, prefix), suffix)
	return id, id != ""
}
