package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	signbroker "github.com/vaultsandbox/signbroker-go"
	"github.com/vaultsandbox/signbroker-go/internal/brokererr"
	"github.com/vaultsandbox/signbroker-go/internal/wire"
)

const maxBodyBytes = 64 << 10

func (s *Server) listPending(w http.ResponseWriter, r *http.Request) {
	reqs := s.auth.Pending()
	out := make([]wire.RequestSummary, 0, len(reqs))
	for _, req := range reqs {
		out = append(out, summarize(req))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getPending(w http.ResponseWriter, r *http.Request) {
	id, ok := requestID(w, r)
	if !ok {
		return
	}
	req, found := s.auth.Get(id)
	if !found {
		writeProblem(w, r, http.StatusNotFound, "Not Found", "no pending request "+strconv.FormatUint(id, 10), brokererr.CodeStaleRequest)
		return
	}
	writeJSON(w, http.StatusOK, summarize(req))
}

func (s *Server) approve(w http.ResponseWriter, r *http.Request) {
	id, ok := requestID(w, r)
	if !ok {
		return
	}

	var body wire.ApproveRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body); err != nil {
		writeProblem(w, r, http.StatusBadRequest, "Bad Request", "invalid JSON body", brokererr.CodeInvalidPayload)
		return
	}

	result, err := s.auth.Decide(r.Context(), id, signbroker.Approve(body.Secret))
	body.Secret = ""
	if err != nil {
		s.logger.InfoContext(r.Context(), "approval refused", "id", id, "code", brokererr.CodeOf(err))
		writeError(w, r, err)
		return
	}

	raw, err := json.Marshal(result)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wire.DecisionResponse{ID: id, Outcome: string(signbroker.OutcomeApproved), Result: raw})
}

func (s *Server) reject(w http.ResponseWriter, r *http.Request) {
	id, ok := requestID(w, r)
	if !ok {
		return
	}
	if _, err := s.auth.Decide(r.Context(), id, signbroker.Reject()); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wire.DecisionResponse{ID: id, Outcome: string(signbroker.OutcomeRejected)})
}

func (s *Server) currentReview(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.reviewState())
}

func (s *Server) navigate(w http.ResponseWriter, r *http.Request) {
	var body wire.NavigateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body); err != nil {
		writeProblem(w, r, http.StatusBadRequest, "Bad Request", "invalid JSON body", brokererr.CodeInvalidPayload)
		return
	}
	action, err := signbroker.ParseAction(body.Direction)
	if err != nil {
		writeProblem(w, r, http.StatusBadRequest, "Bad Request", err.Error(), brokererr.CodeInvalidPayload)
		return
	}
	s.review.Navigate(action)
	writeJSON(w, http.StatusOK, s.reviewState())
}

func (s *Server) reviewState() wire.ReviewState {
	list, i := s.review.Snapshot()
	state := wire.ReviewState{Index: i, Total: len(list)}
	if i < 0 {
		return state
	}
	sum := summarize(list[i])
	state.Request = &sum
	return state
}

func requestID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeProblem(w, r, http.StatusBadRequest, "Bad Request", "invalid request id", brokererr.CodeInvalidPayload)
		return 0, false
	}
	return id, true
}
