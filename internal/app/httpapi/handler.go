// Package httpapi exposes the protocol services over REST plus a websocket
// event stream.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/MissionForge/escrow_layer/internal/app"
	"github.com/MissionForge/escrow_layer/internal/app/domain/achievement"
	"github.com/MissionForge/escrow_layer/internal/app/domain/dispute"
	"github.com/MissionForge/escrow_layer/internal/app/domain/guild"
	"github.com/MissionForge/escrow_layer/internal/app/domain/identity"
	"github.com/MissionForge/escrow_layer/internal/app/domain/mission"
	"github.com/MissionForge/escrow_layer/internal/app/metrics"
	"github.com/MissionForge/escrow_layer/internal/app/services/achievements"
	"github.com/MissionForge/escrow_layer/internal/app/services/escrow"
	"github.com/MissionForge/escrow_layer/internal/app/services/factory"
	"github.com/MissionForge/escrow_layer/internal/app/services/feerouter"
	"github.com/MissionForge/escrow_layer/internal/app/services/guilds"
	"github.com/MissionForge/escrow_layer/internal/app/services/resolver"
	"github.com/MissionForge/escrow_layer/internal/app/storage"
	"github.com/MissionForge/escrow_layer/internal/middleware"
	"github.com/MissionForge/escrow_layer/pkg/logger"
)

// Handler serves the protocol API.
type Handler struct {
	app      *app.Application
	log      *logger.Logger
	started  time.Time
	upgrader websocket.Upgrader
}

// NewHandler creates the API handler over a wired application.
func NewHandler(application *app.Application, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.NewDefault("httpapi")
	}
	return &Handler{
		app:     application,
		log:     log,
		started: time.Now(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Router builds the route table.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", h.health).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/events/ws", h.eventStream).Methods(http.MethodGet)

	v1 := r.PathPrefix("/v1").Subrouter()

	v1.HandleFunc("/missions", h.createMission).Methods(http.MethodPost)
	v1.HandleFunc("/missions", h.listMissions).Methods(http.MethodGet)
	v1.HandleFunc("/missions/{id:[0-9]+}", h.getMission).Methods(http.MethodGet)
	v1.HandleFunc("/missions/{id:[0-9]+}/accept", h.acceptMission).Methods(http.MethodPost)
	v1.HandleFunc("/missions/{id:[0-9]+}/proof", h.submitProof).Methods(http.MethodPost)
	v1.HandleFunc("/missions/{id:[0-9]+}/approve", h.approveCompletion).Methods(http.MethodPost)
	v1.HandleFunc("/missions/{id:[0-9]+}/cancel", h.cancelMission).Methods(http.MethodPost)
	v1.HandleFunc("/missions/{id:[0-9]+}/claim-expired", h.claimExpired).Methods(http.MethodPost)

	v1.HandleFunc("/disputes", h.createDispute).Methods(http.MethodPost)
	v1.HandleFunc("/disputes", h.listDisputes).Methods(http.MethodGet)
	v1.HandleFunc("/disputes/{id:[0-9]+}", h.getDispute).Methods(http.MethodGet)
	v1.HandleFunc("/disputes/{id:[0-9]+}/evidence", h.submitEvidence).Methods(http.MethodPost)
	v1.HandleFunc("/disputes/{id:[0-9]+}/assign", h.assignResolver).Methods(http.MethodPost)
	v1.HandleFunc("/disputes/{id:[0-9]+}/resolve", h.resolveDispute).Methods(http.MethodPost)
	v1.HandleFunc("/disputes/{id:[0-9]+}/appeal", h.appealDispute).Methods(http.MethodPost)
	v1.HandleFunc("/disputes/{id:[0-9]+}/finalize", h.finalizeDispute).Methods(http.MethodPost)
	v1.HandleFunc("/disputes/{id:[0-9]+}/override", h.overrideDispute).Methods(http.MethodPost)

	v1.HandleFunc("/guilds", h.registerGuild).Methods(http.MethodPost)
	v1.HandleFunc("/guilds", h.listGuilds).Methods(http.MethodGet)
	v1.HandleFunc("/guilds/{address}", h.getGuild).Methods(http.MethodGet)

	v1.HandleFunc("/reputation/{address}", h.getReputation).Methods(http.MethodGet)

	v1.HandleFunc("/badges", h.createBadge).Methods(http.MethodPost)
	v1.HandleFunc("/badges", h.listBadges).Methods(http.MethodGet)
	v1.HandleFunc("/badges/{id}", h.getBadge).Methods(http.MethodGet)
	v1.HandleFunc("/badges/{id}/awards", h.awardBadge).Methods(http.MethodPost)
	v1.HandleFunc("/awards/{owner}", h.listAwards).Methods(http.MethodGet)

	return r
}

// --- Missions ---

type createMissionRequest struct {
	Reward       int64            `json:"reward"`
	Duration     string           `json:"duration"`
	Guild        identity.Address `json:"guild,omitempty"`
	MetadataHash string           `json:"metadata_hash"`
	LocationHash string           `json:"location_hash,omitempty"`
}

func (h *Handler) createMission(w http.ResponseWriter, r *http.Request) {
	var req createMissionRequest
	if !h.decode(w, r, &req) {
		return
	}
	duration, err := time.ParseDuration(req.Duration)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid duration: "+req.Duration)
		return
	}
	m, err := h.app.Factory.CreateMission(r.Context(), factory.CreateParams{
		Poster:       middleware.Caller(r.Context()),
		Reward:       req.Reward,
		Duration:     duration,
		Guild:        req.Guild,
		MetadataHash: req.MetadataHash,
		LocationHash: req.LocationHash,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, m)
}

func (h *Handler) listMissions(w http.ResponseWriter, r *http.Request) {
	var (
		out []mission.Mission
		err error
	)
	if posterParam := r.URL.Query().Get("poster"); posterParam != "" {
		poster, parseErr := identity.Parse(posterParam)
		if parseErr != nil {
			h.writeError(w, http.StatusBadRequest, "invalid poster address")
			return
		}
		out, err = h.app.Factory.ListByPoster(r.Context(), poster)
	} else {
		out, err = h.app.Factory.List(r.Context())
	}
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, out)
}

func (h *Handler) getMission(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	m, err := h.app.Factory.Get(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, m)
}

func (h *Handler) acceptMission(w http.ResponseWriter, r *http.Request) {
	h.missionAction(w, r, h.app.Escrow.Accept)
}

type submitProofRequest struct {
	ProofHash string `json:"proof_hash"`
}

func (h *Handler) submitProof(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req submitProofRequest
	if !h.decode(w, r, &req) {
		return
	}
	m, err := h.app.Escrow.SubmitProof(r.Context(), middleware.Caller(r.Context()), id, req.ProofHash)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, m)
}

func (h *Handler) approveCompletion(w http.ResponseWriter, r *http.Request) {
	h.missionAction(w, r, h.app.Escrow.ApproveCompletion)
}

func (h *Handler) cancelMission(w http.ResponseWriter, r *http.Request) {
	h.missionAction(w, r, h.app.Escrow.Cancel)
}

func (h *Handler) claimExpired(w http.ResponseWriter, r *http.Request) {
	h.missionAction(w, r, h.app.Escrow.ClaimExpired)
}

// missionAction runs a single-argument escrow transition for the
// authenticated caller.
func (h *Handler) missionAction(w http.ResponseWriter, r *http.Request, action func(context.Context, identity.Address, uint64) (mission.Mission, error)) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	m, err := action(r.Context(), middleware.Caller(r.Context()), id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, m)
}

// --- Disputes ---

type createDisputeRequest struct {
	MissionID uint64 `json:"mission_id"`
}

func (h *Handler) createDispute(w http.ResponseWriter, r *http.Request) {
	var req createDisputeRequest
	if !h.decode(w, r, &req) {
		return
	}
	d, err := h.app.Resolver.CreateDispute(r.Context(), middleware.Caller(r.Context()), req.MissionID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, d)
}

func (h *Handler) listDisputes(w http.ResponseWriter, r *http.Request) {
	state := dispute.State(r.URL.Query().Get("state"))
	out, err := h.app.Resolver.ListByState(r.Context(), state)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, out)
}

func (h *Handler) getDispute(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	d, err := h.app.Resolver.Get(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, d)
}

type submitEvidenceRequest struct {
	EvidenceHash string `json:"evidence_hash"`
}

func (h *Handler) submitEvidence(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req submitEvidenceRequest
	if !h.decode(w, r, &req) {
		return
	}
	d, err := h.app.Resolver.SubmitEvidence(r.Context(), middleware.Caller(r.Context()), id, req.EvidenceHash)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, d)
}

type assignResolverRequest struct {
	Resolver identity.Address `json:"resolver"`
}

func (h *Handler) assignResolver(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req assignResolverRequest
	if !h.decode(w, r, &req) {
		return
	}
	d, err := h.app.Resolver.AssignResolver(r.Context(), middleware.Caller(r.Context()), id, req.Resolver)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, d)
}

type resolveRequest struct {
	Outcome        dispute.Outcome `json:"outcome"`
	SplitBps       int64           `json:"split_bps"`
	ResolutionHash string          `json:"resolution_hash"`
}

func (h *Handler) resolveDispute(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req resolveRequest
	if !h.decode(w, r, &req) {
		return
	}
	d, err := h.app.Resolver.Resolve(r.Context(), middleware.Caller(r.Context()), id, req.Outcome, req.SplitBps, req.ResolutionHash)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, d)
}

func (h *Handler) appealDispute(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	d, err := h.app.Resolver.Appeal(r.Context(), middleware.Caller(r.Context()), id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, d)
}

func (h *Handler) finalizeDispute(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	d, err := h.app.Resolver.Finalize(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, d)
}

func (h *Handler) overrideDispute(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req resolveRequest
	if !h.decode(w, r, &req) {
		return
	}
	d, err := h.app.Resolver.Override(r.Context(), middleware.Caller(r.Context()), id, req.Outcome, req.SplitBps, req.ResolutionHash)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, d)
}

// --- Guilds ---

type registerGuildRequest struct {
	Address  identity.Address `json:"address"`
	Treasury identity.Address `json:"treasury,omitempty"`
	Name     string           `json:"name"`
	FeeBps   int64            `json:"fee_bps"`
}

func (h *Handler) registerGuild(w http.ResponseWriter, r *http.Request) {
	var req registerGuildRequest
	if !h.decode(w, r, &req) {
		return
	}
	g, err := h.app.Guilds.Register(r.Context(), middleware.Caller(r.Context()), guild.Guild{
		Address:  req.Address,
		Treasury: req.Treasury,
		Name:     req.Name,
		FeeBps:   req.FeeBps,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, g)
}

func (h *Handler) listGuilds(w http.ResponseWriter, r *http.Request) {
	out, err := h.app.Guilds.List(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, out)
}

func (h *Handler) getGuild(w http.ResponseWriter, r *http.Request) {
	addr, ok := h.pathAddress(w, r, "address")
	if !ok {
		return
	}
	g, err := h.app.Guilds.Get(r.Context(), addr)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, g)
}

// --- Reputation ---

func (h *Handler) getReputation(w http.ResponseWriter, r *http.Request) {
	addr, ok := h.pathAddress(w, r, "address")
	if !ok {
		return
	}
	rec, err := h.app.Reputation.Get(r.Context(), addr)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, rec)
}

// --- Achievements ---

type createBadgeRequest struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	SupplyCap   int64  `json:"supply_cap,omitempty"`
}

func (h *Handler) createBadge(w http.ResponseWriter, r *http.Request) {
	var req createBadgeRequest
	if !h.decode(w, r, &req) {
		return
	}
	b, err := h.app.Achievements.CreateBadge(r.Context(), middleware.Caller(r.Context()), achievement.Badge{
		ID:          req.ID,
		Name:        req.Name,
		Description: req.Description,
		SupplyCap:   req.SupplyCap,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, b)
}

func (h *Handler) listBadges(w http.ResponseWriter, r *http.Request) {
	out, err := h.app.Achievements.ListBadges(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, out)
}

func (h *Handler) getBadge(w http.ResponseWriter, r *http.Request) {
	b, err := h.app.Achievements.GetBadge(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, b)
}

type awardBadgeRequest struct {
	Owners     []identity.Address `json:"owners"`
	MissionIDs []uint64           `json:"mission_ids"`
}

func (h *Handler) awardBadge(w http.ResponseWriter, r *http.Request) {
	var req awardBadgeRequest
	if !h.decode(w, r, &req) {
		return
	}
	awards, err := h.app.Achievements.AwardBatch(r.Context(), middleware.Caller(r.Context()), mux.Vars(r)["id"], req.Owners, req.MissionIDs)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, awards)
}

func (h *Handler) listAwards(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.pathAddress(w, r, "owner")
	if !ok {
		return
	}
	out, err := h.app.Achievements.ListAwards(r.Context(), owner)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, out)
}

// --- Events ---

func (h *Handler) eventStream(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	events, cancel := h.app.Bus.Subscribe()
	defer cancel()

	// Drain client frames so pings and close handshakes are processed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	for ev := range events {
		if err := conn.WriteJSON(ev); err != nil {
			return
		}
	}
}

// --- Health ---

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	payload := map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(h.started).String(),
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		payload["memory_used_percent"] = vm.UsedPercent
	}
	h.writeJSON(w, http.StatusOK, payload)
}

// --- Helpers ---

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

func (h *Handler) pathAddress(w http.ResponseWriter, r *http.Request, key string) (identity.Address, bool) {
	addr, err := identity.Parse(mux.Vars(r)[key])
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid address")
		return identity.Zero, false
	}
	return addr, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.log.WithError(err).Error("Failed to encode response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]string{"error": msg})
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	h.writeError(w, statusFor(err), err.Error())
}

// statusFor maps service errors onto HTTP statuses: authorization failures to
// 403, state and timing conflicts to 409, validation to 400, unknown entities
// to 404.
func statusFor(err error) int {
	var missionState *mission.StateError
	var disputeState *dispute.StateError
	var bounds *mission.BoundsError

	switch {
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound

	case errors.Is(err, escrow.ErrNotPoster),
		errors.Is(err, escrow.ErrNotPerformer),
		errors.Is(err, escrow.ErrNotResolver),
		errors.Is(err, resolver.ErrNotParty),
		errors.Is(err, resolver.ErrNotDAO),
		errors.Is(err, resolver.ErrNotAssignedResolver),
		errors.Is(err, guilds.ErrNotDAO),
		errors.Is(err, achievements.ErrNotDAO),
		errors.Is(err, feerouter.ErrUnregisteredEscrow):
		return http.StatusForbidden

	case errors.As(err, &missionState),
		errors.As(err, &disputeState),
		errors.Is(err, escrow.ErrExpired),
		errors.Is(err, escrow.ErrNotExpired),
		errors.Is(err, escrow.ErrDisputeAlreadyRaised),
		errors.Is(err, escrow.ErrReentrancy),
		errors.Is(err, resolver.ErrDisputeActive),
		errors.Is(err, resolver.ErrResolverAssigned),
		errors.Is(err, resolver.ErrEvidenceSubmitted),
		errors.Is(err, resolver.ErrWinnerNotDeposited),
		errors.Is(err, resolver.ErrDepositsRequired),
		errors.Is(err, resolver.ErrAppealWindowClosed),
		errors.Is(err, resolver.ErrAppealWindowOpen),
		errors.Is(err, achievements.ErrSupplyExhausted),
		errors.Is(err, achievements.ErrAlreadyAwarded):
		return http.StatusConflict

	case errors.As(err, &bounds),
		errors.Is(err, escrow.ErrZeroCaller),
		errors.Is(err, escrow.ErrProofRequired),
		errors.Is(err, escrow.ErrInvalidSplit),
		errors.Is(err, escrow.ErrInvalidOutcome),
		errors.Is(err, factory.ErrZeroPoster),
		errors.Is(err, resolver.ErrZeroResolver),
		errors.Is(err, resolver.ErrEvidenceRequired),
		errors.Is(err, resolver.ErrInvalidOutcome),
		errors.Is(err, resolver.ErrInvalidSplit),
		errors.Is(err, guilds.ErrZeroGuild),
		errors.Is(err, guilds.ErrNameRequired),
		errors.Is(err, guilds.ErrFeeAboveCap),
		errors.Is(err, achievements.ErrBadgeIDRequired),
		errors.Is(err, achievements.ErrBatchMismatch):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
