// Copyright 2025 Certen Protocol
package registry

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/chainpoint-network/calendar-core/pkg/corerr"
)

// Handlers exposes the Node Registry's external HTTP surface (spec §6).
type Handlers struct {
	store              *Store
	minNewNodeVersion  int
	minExistingVersion int
}

// NewHandlers constructs Handlers over store.
func NewHandlers(store *Store, minNewNodeVersion, minExistingVersion int) *Handlers {
	return &Handlers{store: store, minNewNodeVersion: minNewNodeVersion, minExistingVersion: minExistingVersion}
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(apiError{Code: code, Message: message})
}

// statusForKind maps a corerr.Kind to its HTTP status per spec §6/§7. The
// stable `code` string itself comes from corerr.Error.Code().
var statusForKind = map[corerr.Kind]int{
	corerr.Validation:            http.StatusBadRequest,
	corerr.Conflict:              http.StatusConflict,
	corerr.CapacityExceeded:      http.StatusForbidden,
	corerr.AuthFailure:           http.StatusForbidden,
	corerr.VersionTooLow:         http.StatusUpgradeRequired,
	corerr.NotFound:              http.StatusNotFound,
	corerr.DependencyUnavailable: http.StatusInternalServerError,
	corerr.Transient:             http.StatusInternalServerError,
	corerr.Fatal:                 http.StatusInternalServerError,
}

// writeStoreError maps a Store error to its stable code and status per
// spec §6/§7.
func writeStoreError(w http.ResponseWriter, err error) {
	var ce *corerr.Error
	if errors.As(err, &ce) {
		status, ok := statusForKind[ce.Kind]
		if !ok {
			status = http.StatusInternalServerError
		}
		writeError(w, status, ce.Code(), err.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, "InternalServerError", err.Error())
}

type randomNodeView struct {
	PublicURI string `json:"public_uri"`
}

// HandleRandom serves GET /nodes/random.
func (h *Handlers) HandleRandom(w http.ResponseWriter, r *http.Request) {
	n := 25
	if raw := r.URL.Query().Get("n"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			n = parsed
		}
	}

	nodes, err := h.store.RandomHealthy(r.Context(), n)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	out := make([]randomNodeView, 0, len(nodes))
	for _, node := range nodes {
		if node.PublicURI == "" {
			continue
		}
		out = append(out, randomNodeView{PublicURI: node.PublicURI})
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "public, max-age=60")
	json.NewEncoder(w).Encode(out)
}

// HandleBlacklist serves GET /nodes/blacklist.
func (h *Handlers) HandleBlacklist(w http.ResponseWriter, r *http.Request) {
	list, err := h.store.Blacklist(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "public, max-age=600")
	json.NewEncoder(w).Encode(map[string][]string{"blacklist": list})
}

type createNodeRequest struct {
	TntAddr   string `json:"tnt_addr"`
	PublicURI string `json:"public_uri"`
}

type updateNodeRequest struct {
	PublicURI string `json:"public_uri"`
	HMAC      string `json:"hmac"`
}

type nodeView struct {
	TntAddr    string `json:"tnt_addr"`
	PublicURI  string `json:"public_uri,omitempty"`
	TntCredit  int64  `json:"tnt_credit"`
	AuditScore int    `json:"audit_score"`
}

func nodeViewOf(n *Node) nodeView {
	return nodeView{TntAddr: n.TntAddr, PublicURI: n.PublicURI, TntCredit: n.TntCredit, AuditScore: n.AuditScore}
}

// HandleCreate serves POST /node.
func (h *Handlers) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createNodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "InvalidArgumentError", "malformed request body")
		return
	}
	if req.TntAddr == "" {
		writeError(w, http.StatusBadRequest, "InvalidArgumentError", "tnt_addr is required")
		return
	}

	version, err := nodeVersionHeader(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "InvalidArgumentError", err.Error())
		return
	}

	node, err := h.store.Create(r.Context(), req.TntAddr, req.PublicURI, version, h.minNewNodeVersion)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(nodeViewOf(node))
}

// HandleUpdate serves PUT /node/:tnt_addr.
func (h *Handlers) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	tntAddr := strings.TrimPrefix(r.URL.Path, "/node/")
	if tntAddr == "" {
		writeError(w, http.StatusBadRequest, "InvalidArgumentError", "tnt_addr path segment is required")
		return
	}

	var req updateNodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "InvalidArgumentError", "malformed request body")
		return
	}

	version, err := nodeVersionHeader(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "InvalidArgumentError", err.Error())
		return
	}

	node, err := h.store.Update(r.Context(), tntAddr, req.PublicURI, req.HMAC, version, h.minExistingVersion)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(nodeViewOf(node))
}

func nodeVersionHeader(r *http.Request) (int, error) {
	raw := r.Header.Get("x-node-version")
	if raw == "" {
		return 0, errors.New("x-node-version header is required")
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New("x-node-version header must be an integer")
	}
	return v, nil
}
