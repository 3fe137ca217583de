package internal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"

	"github.com/tradeease/workflowgate/internal/alert"
	"github.com/tradeease/workflowgate/internal/audit"
	"github.com/tradeease/workflowgate/internal/gateway"
	"github.com/tradeease/workflowgate/internal/workflowdef"
	"github.com/tradeease/workflowgate/pkg/cerr"
)

// workflowRequest is the wire shape of every workflow endpoint: the
// OperationRequest the gateway consumes, plus naming fields for create and
// update.
type workflowRequest struct {
	gateway.OperationRequest
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return cerr.New(cerr.KindValidation, "invalid request body", err)
	}
	return nil
}

// failOperation audits a failure raised outside the gateway pipeline and
// hands the error to the envelope middleware. The gateway audits its own
// pipeline runs; this covers decode, ownership and persistence errors, so
// every refused request still leaves exactly one audit record per error.
func (s *Server) failOperation(ctx context.Context, req *workflowRequest, err error) {
	e := cerr.Convert(err)
	status := audit.StatusFailure
	switch e.Kind {
	case cerr.KindSecurity, cerr.KindRateLimit:
		status = audit.StatusBlocked
	}

	entry := audit.Entry{Status: status, Err: e}
	if req != nil {
		entry.Operation = string(req.Grant.Operation)
		entry.UserID = req.Grant.UserID
		entry.NodeType = string(req.Content.NodeType)
		entry.DeviceID = req.Session.DeviceInfo.ID
		entry.ContentLength = utf8.RuneCountInString(req.Content.Text)
		entry.HasMetadata = req.Content.Metadata != nil
		entry.Context = string(req.Grant.Context)
		entry.ResourceID = req.ResourceID
	}
	s.audit.LogOperation(ctx, entry)
	cerr.SetJSONError(ctx, err)
}

func stringifyMetadata(m map[string]any) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = fmt.Sprint(v)
	}
	return out
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req workflowRequest
	if err := decodeJSON(r, &req); err != nil {
		s.failOperation(ctx, &req, err)
		return
	}

	if _, err := s.gateway.Create(ctx, &req.OperationRequest); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}

	name := req.Name
	if name == "" {
		name = req.Content.Text
	}
	now := time.Now()
	wf := &workflowdef.Workflow{
		ID:          ulid.Make().String(),
		OwnerID:     req.Grant.UserID,
		Name:        name,
		Description: req.Description,
		NodeType:    string(req.Content.NodeType),
		Content:     req.Content.Text,
		Metadata:    stringifyMetadata(req.Content.Metadata),
		Graph:       req.Content.Graph,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, wf); err != nil {
		s.failOperation(ctx, &req, err)
		return
	}
	cerr.SetJSONStatus(ctx, http.StatusCreated)
	cerr.SetJSONResponse(ctx, map[string]any{"workflow": wf})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req workflowRequest
	if err := decodeJSON(r, &req); err != nil {
		s.failOperation(ctx, &req, err)
		return
	}

	if _, err := s.gateway.View(ctx, &req.OperationRequest); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if req.ResourceID == "" {
		s.failOperation(ctx, &req, cerr.New(cerr.KindValidation, "missing target resource id", nil))
		return
	}

	wf, err := s.repo.Get(ctx, req.ResourceID)
	if err != nil {
		s.failOperation(ctx, &req, err)
		return
	}
	if err := workflowdef.EnsureOwner(wf, req.Grant.UserID); err != nil {
		s.failOperation(ctx, &req, err)
		return
	}
	cerr.SetJSONResponse(ctx, map[string]any{"workflow": wf})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req workflowRequest
	if err := decodeJSON(r, &req); err != nil {
		s.failOperation(ctx, &req, err)
		return
	}

	if _, err := s.gateway.View(ctx, &req.OperationRequest); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}

	limit, offset := 50, 0
	if req.Pagination != nil {
		if req.Pagination.Limit > 0 {
			limit = req.Pagination.Limit
		}
		offset = req.Pagination.Offset
	}
	workflows, total, err := s.repo.List(ctx, req.Grant.UserID, limit, offset)
	if err != nil {
		s.failOperation(ctx, &req, err)
		return
	}
	cerr.SetJSONResponse(ctx, map[string]any{
		"workflows": workflows,
		"total":     total,
		"limit":     limit,
		"offset":    offset,
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req workflowRequest
	if err := decodeJSON(r, &req); err != nil {
		s.failOperation(ctx, &req, err)
		return
	}

	// The search query rides in content.text so it passes through the same
	// scanning as any other user content.
	if _, err := s.gateway.Search(ctx, &req.OperationRequest); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}

	limit, offset := 50, 0
	if req.Pagination != nil {
		if req.Pagination.Limit > 0 {
			limit = req.Pagination.Limit
		}
		offset = req.Pagination.Offset
	}
	workflows, total, err := s.repo.Search(ctx, req.Grant.UserID, req.Content.Text, limit, offset)
	if err != nil {
		s.failOperation(ctx, &req, err)
		return
	}
	cerr.SetJSONResponse(ctx, map[string]any{
		"workflows": workflows,
		"total":     total,
		"limit":     limit,
		"offset":    offset,
	})
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req workflowRequest
	if err := decodeJSON(r, &req); err != nil {
		s.failOperation(ctx, &req, err)
		return
	}

	if _, err := s.gateway.Edit(ctx, &req.OperationRequest); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}

	wf, err := s.repo.Get(ctx, req.ResourceID)
	if err != nil {
		s.failOperation(ctx, &req, err)
		return
	}
	// Ownership sits between gateway allowance and the mutation.
	if err := workflowdef.EnsureOwner(wf, req.Grant.UserID); err != nil {
		s.failOperation(ctx, &req, err)
		return
	}

	if req.Name != "" {
		wf.Name = req.Name
	}
	if req.Description != "" {
		wf.Description = req.Description
	}
	wf.NodeType = string(req.Content.NodeType)
	wf.Content = req.Content.Text
	wf.Graph = req.Content.Graph
	if md := stringifyMetadata(req.Content.Metadata); md != nil {
		if wf.Metadata == nil {
			wf.Metadata = make(map[string]string, len(md))
		}
		for k, v := range md {
			wf.Metadata[k] = v
		}
	}
	wf.UpdatedAt = time.Now()

	if err := s.repo.Update(ctx, wf); err != nil {
		s.failOperation(ctx, &req, err)
		return
	}
	cerr.SetJSONResponse(ctx, map[string]any{"workflow": wf})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req workflowRequest
	if err := decodeJSON(r, &req); err != nil {
		s.failOperation(ctx, &req, err)
		return
	}

	if _, err := s.gateway.Delete(ctx, &req.OperationRequest); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}

	wf, err := s.repo.Get(ctx, req.ResourceID)
	if err != nil {
		s.failOperation(ctx, &req, err)
		return
	}
	if err := workflowdef.EnsureOwner(wf, req.Grant.UserID); err != nil {
		s.failOperation(ctx, &req, err)
		return
	}

	if err := s.repo.Delete(ctx, req.ResourceID); err != nil {
		s.failOperation(ctx, &req, err)
		return
	}
	cerr.SetJSONResponse(ctx, map[string]any{"deleted": req.ResourceID})
}

type batchRequest struct {
	Requests []workflowRequest `json:"requests"`
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var batch batchRequest
	if err := decodeJSON(r, &batch); err != nil {
		s.audit.LogOperation(ctx, audit.Entry{
			Operation: "batch",
			Status:    audit.StatusFailure,
			Err:       err,
		})
		cerr.SetJSONError(ctx, err)
		return
	}

	// The store only batches creates; reject mixed batches before any member
	// is authorized or audited.
	for i := range batch.Requests {
		if batch.Requests[i].Grant.Operation != gateway.OperationCreate {
			e := cerr.New(cerr.KindValidation, "batch endpoint accepts create operations only", nil)
			s.audit.LogOperation(ctx, audit.Entry{
				Operation: "batch",
				UserID:    batch.Requests[i].Grant.UserID,
				Status:    audit.StatusFailure,
				Err:       e,
			})
			cerr.SetJSONError(ctx, e)
			return
		}
	}

	reqs := make([]*gateway.OperationRequest, len(batch.Requests))
	for i := range batch.Requests {
		reqs[i] = &batch.Requests[i].OperationRequest
	}

	// Every member is validated before any is accepted; validation fails
	// atomically.
	if _, err := s.gateway.AuthorizeBatch(ctx, reqs); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}

	// Persistence is not transactional: a mid-batch write failure leaves the
	// members created so far in the store and reports the failing member.
	created := make([]*workflowdef.Workflow, 0, len(batch.Requests))
	now := time.Now()
	for i := range batch.Requests {
		req := &batch.Requests[i]
		name := req.Name
		if name == "" {
			name = req.Content.Text
		}
		wf := &workflowdef.Workflow{
			ID:          ulid.Make().String(),
			OwnerID:     req.Grant.UserID,
			Name:        name,
			Description: req.Description,
			NodeType:    string(req.Content.NodeType),
			Content:     req.Content.Text,
			Metadata:    stringifyMetadata(req.Content.Metadata),
			Graph:       req.Content.Graph,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.repo.Create(ctx, wf); err != nil {
			s.failOperation(ctx, req, err)
			return
		}
		created = append(created, wf)
	}
	cerr.SetJSONStatus(ctx, http.StatusCreated)
	cerr.SetJSONResponse(ctx, map[string]any{"workflows": created})
}

func (s *Server) handleUserMetrics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := chi.URLParam(r, "id")
	if userID == "" {
		cerr.SetNewJSONError(ctx, cerr.KindValidation, "missing user id", nil)
		return
	}
	cerr.SetJSONResponse(ctx, map[string]any{
		"userId":  userID,
		"metrics": s.gateway.UserMetrics(userID),
	})
}

func (s *Server) handleVAPIDPublicKey(w http.ResponseWriter, r *http.Request) {
	cerr.SetJSONResponse(r.Context(), map[string]string{
		"publicKey": s.vapid.VAPIDPublicKey,
	})
}

type subscriptionRequest struct {
	Endpoint string `json:"endpoint"`
	Keys     struct {
		P256dh string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
}

func (s *Server) handleCreateSubscription(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req subscriptionRequest
	if err := decodeJSON(r, &req); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if req.Endpoint == "" || req.Keys.P256dh == "" || req.Keys.Auth == "" {
		cerr.SetNewJSONError(ctx, cerr.KindValidation, "incomplete subscription", nil)
		return
	}

	sub := &alert.Subscription{
		ID:        ulid.Make().String(),
		Endpoint:  req.Endpoint,
		P256dhKey: req.Keys.P256dh,
		AuthKey:   req.Keys.Auth,
		CreatedAt: time.Now(),
	}
	if err := s.alertRepo.Create(ctx, sub); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONStatus(ctx, http.StatusCreated)
	cerr.SetJSONResponse(ctx, map[string]any{"id": sub.ID})
}
