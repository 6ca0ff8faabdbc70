package services

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/RobertxMiller/SafeBid/auction"
	"github.com/RobertxMiller/SafeBid/crypto"
	"github.com/RobertxMiller/SafeBid/fhe"
	"github.com/RobertxMiller/SafeBid/metrics"
	"github.com/RobertxMiller/SafeBid/protocol"
)

// ServiceConfig wires the auction service to its collaborators. House,
// Capability and Log are required; the rest are optional.
type ServiceConfig struct {
	House      *auction.AuctionHouse
	Capability fhe.Capability
	Log        *slog.Logger

	// Archiver serves the bid-history query when configured.
	Archiver *PostgresArchiver

	// Cache serves single-auction snapshot reads when configured.
	Cache *SnapshotCache

	// EnableDevEncrypt exposes POST /fhe/encrypt so demo clients without
	// their own capability endpoint can seal bids. Never enable this in
	// production: it lets the service see plaintext amounts.
	EnableDevEncrypt bool
}

// AuctionService exposes the auction house over HTTP. State-changing
// requests are signed envelopes; the recovered signer is the caller.
type AuctionService struct {
	cfg   *ServiceConfig
	house *auction.AuctionHouse
	log   *slog.Logger
}

// NewAuctionService creates the service and hooks the operational
// counters into the house's event stream.
func NewAuctionService(cfg *ServiceConfig) (*AuctionService, error) {
	if cfg.House == nil {
		return nil, errors.New("house cannot be nil")
	}
	if cfg.Capability == nil {
		return nil, errors.New("capability cannot be nil")
	}
	if cfg.Log == nil {
		return nil, errors.New("log cannot be nil")
	}

	cfg.House.AddSink(auction.EventSinkFunc(func(ev auction.Event) {
		switch ev.Type {
		case auction.EventAuctionCreated:
			metrics.IncAuctionsCreated()
		case auction.EventBidPlaced:
			metrics.IncBidsAccepted()
		case auction.EventAuctionEnded:
			metrics.IncAuctionsResolved()
		}
	}))

	return &AuctionService{
		cfg:   cfg,
		house: cfg.House,
		log:   cfg.Log,
	}, nil
}

// RegisterRoutes registers the auction API on the router.
func (s *AuctionService) RegisterRoutes(r chi.Router) {
	r.Post("/auctions", s.handleCreateAuction)
	r.Get("/auctions", s.handleListAuctions)
	r.Get("/auctions/{id}", s.handleGetAuction)
	r.Post("/auctions/{id}/bids", s.handlePlaceBid)
	r.Get("/auctions/{id}/bids", s.handleBidHistory)
	r.Post("/auctions/{id}/check-end", s.handleCheckEnd)
	r.Post("/auctions/{id}/end", s.handleEndAuction)
	r.Post("/auctions/{id}/emergency-stop", s.handleEmergencyStop)
	r.Post("/auctions/{id}/purchase", s.handleCompletePurchase)
	r.Get("/auctions/{id}/bid-count", s.handleBidCount)
	r.Get("/auctions/{id}/highest-bid", s.handleHighestBid)
	r.Get("/auctions/{id}/events", s.handleEvents)

	if s.cfg.EnableDevEncrypt {
		s.log.Warn("Development encrypt endpoint enabled; plaintext bids cross the wire")
		r.Post("/fhe/encrypt", s.handleDevEncrypt)
	}
}

func (s *AuctionService) handleCreateAuction(w http.ResponseWriter, r *http.Request) {
	req, seller, ok := recoverSigned[protocol.CreateAuctionRequest](w, r)
	if !ok {
		return
	}

	id, err := s.house.CreateAuction(seller, req.ItemName, req.StartPrice, unixTime(req.StartTime))
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, &protocol.CreateAuctionResponse{AuctionID: id})
}

func (s *AuctionService) handlePlaceBid(w http.ResponseWriter, r *http.Request) {
	id, ok := auctionID(w, r)
	if !ok {
		return
	}

	req, bidder, ok := recoverSigned[protocol.PlaceBidRequest](w, r)
	if !ok {
		return
	}
	if req.AuctionID != id {
		writeErrorBody(w, http.StatusBadRequest, "invalid_input", "auction id in body does not match path")
		return
	}

	idx, ts, err := s.house.PlaceBid(bidder, id, req.Amount, req.Proof)
	if err != nil {
		metrics.IncBidsRejected()
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, &protocol.PlaceBidResponse{
		AuctionID: id,
		BidIndex:  idx,
		Timestamp: ts.Unix(),
	})
}

func (s *AuctionService) handleCheckEnd(w http.ResponseWriter, r *http.Request) {
	id, ok := auctionID(w, r)
	if !ok {
		return
	}

	resolved, err := s.house.CheckAuctionEnd(id)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, &protocol.CheckEndResponse{Resolved: resolved})
}

func (s *AuctionService) handleEndAuction(w http.ResponseWriter, r *http.Request) {
	id, ok := auctionID(w, r)
	if !ok {
		return
	}

	req, caller, ok := recoverSigned[protocol.EndAuctionRequest](w, r)
	if !ok {
		return
	}
	if req.AuctionID != id {
		writeErrorBody(w, http.StatusBadRequest, "invalid_input", "auction id in body does not match path")
		return
	}

	if err := s.house.EndAuction(caller, id); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *AuctionService) handleEmergencyStop(w http.ResponseWriter, r *http.Request) {
	id, ok := auctionID(w, r)
	if !ok {
		return
	}

	req, caller, ok := recoverSigned[protocol.EmergencyStopRequest](w, r)
	if !ok {
		return
	}
	if req.AuctionID != id {
		writeErrorBody(w, http.StatusBadRequest, "invalid_input", "auction id in body does not match path")
		return
	}

	if err := s.house.EmergencyStop(caller, id); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *AuctionService) handleCompletePurchase(w http.ResponseWriter, r *http.Request) {
	id, ok := auctionID(w, r)
	if !ok {
		return
	}

	req, caller, ok := recoverSigned[protocol.CompletePurchaseRequest](w, r)
	if !ok {
		return
	}
	if req.AuctionID != id {
		writeErrorBody(w, http.StatusBadRequest, "invalid_input", "auction id in body does not match path")
		return
	}

	if err := s.house.CompletePurchase(caller, id, req.Payment); err != nil {
		s.writeError(w, err)
		return
	}

	metrics.IncSettlements()
	w.WriteHeader(http.StatusNoContent)
}

func (s *AuctionService) handleListAuctions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.house.ListAuctions())
}

func (s *AuctionService) handleGetAuction(w http.ResponseWriter, r *http.Request) {
	id, ok := auctionID(w, r)
	if !ok {
		return
	}

	if s.cfg.Cache != nil {
		if snap, err := s.cfg.Cache.Get(r.Context(), id); err == nil {
			writeJSON(w, http.StatusOK, snap)
			return
		}
	}

	snap, err := s.house.GetAuction(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *AuctionService) handleBidCount(w http.ResponseWriter, r *http.Request) {
	id, ok := auctionID(w, r)
	if !ok {
		return
	}

	count, err := s.house.GetBidCount(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"bid_count": count})
}

func (s *AuctionService) handleHighestBid(w http.ResponseWriter, r *http.Request) {
	id, ok := auctionID(w, r)
	if !ok {
		return
	}

	handle, err := s.house.GetHighestBid(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]fhe.Handle{"highest_bid": handle})
}

func (s *AuctionService) handleEvents(w http.ResponseWriter, r *http.Request) {
	id, ok := auctionID(w, r)
	if !ok {
		return
	}

	events, err := s.house.Events(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// handleBidHistory serves archived bid rows. It requires the Postgres
// archiver: the house itself only exposes the bid count, not the ledger.
func (s *AuctionService) handleBidHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := auctionID(w, r)
	if !ok {
		return
	}

	if s.cfg.Archiver == nil {
		writeErrorBody(w, http.StatusNotImplemented, "internal", "bid history archive not configured")
		return
	}

	rows, err := s.cfg.Archiver.BidHistory(r.Context(), id, 100)
	if err != nil {
		s.log.Error("Bid history query failed", "auction", id, "err", err)
		writeErrorBody(w, http.StatusInternalServerError, "internal", "bid history unavailable")
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *AuctionService) handleDevEncrypt(w http.ResponseWriter, r *http.Request) {
	req, err := protocol.DecodeMessage[protocol.EncryptRequest](r.Body)
	if err != nil {
		writeErrorBody(w, http.StatusBadRequest, "invalid_input", err.Error())
		return
	}

	owner, err := crypto.NewPublicKeyFromString(req.Owner)
	if err != nil {
		writeErrorBody(w, http.StatusBadRequest, "invalid_input", "invalid owner public key")
		return
	}

	handle, proof, err := s.cfg.Capability.Encrypt(req.Plain, owner)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, &protocol.EncryptResponse{Handle: handle, Proof: proof})
}

// writeError maps a domain error onto an HTTP status and the stable error
// code, logging anything that falls through to 500.
func (s *AuctionService) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, auction.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, auction.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, auction.ErrForbidden), errors.Is(err, auction.ErrNotWinner):
		status = http.StatusForbidden
	case errors.Is(err, auction.ErrNotActive),
		errors.Is(err, auction.ErrNotEnded),
		errors.Is(err, auction.ErrAlreadyEnded),
		errors.Is(err, auction.ErrTooEarly),
		errors.Is(err, auction.ErrAlreadySettled):
		status = http.StatusConflict
	case errors.Is(err, auction.ErrInvalidEncryption):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, auction.ErrInsufficientPayment):
		status = http.StatusPaymentRequired
	case errors.Is(err, auction.ErrTransferFailed):
		status = http.StatusBadGateway
	default:
		s.log.Error("Unclassified error", "err", err)
	}
	writeErrorBody(w, status, auction.Code(err), err.Error())
}

// recoverSigned decodes a signed envelope and verifies the signature,
// writing the error response itself on failure.
func recoverSigned[T any](w http.ResponseWriter, r *http.Request) (*T, crypto.PublicKey, bool) {
	var signed protocol.Signed[T]
	if err := json.NewDecoder(r.Body).Decode(&signed); err != nil {
		writeErrorBody(w, http.StatusBadRequest, "invalid_input", err.Error())
		return nil, nil, false
	}

	obj, signer, err := signed.Recover()
	if err != nil {
		writeErrorBody(w, http.StatusForbidden, "forbidden", "invalid signature")
		return nil, nil, false
	}
	return obj, signer, true
}

func unixTime(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}

func auctionID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeErrorBody(w, http.StatusBadRequest, "invalid_input", "invalid auction id")
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeErrorBody(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, &protocol.ErrorResponse{Code: code, Message: message})
}
