package cerr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/tradeease/workflowgate/pkg/clog"
)

type responseReceiverKey struct{}

type responseReceiver struct {
	response any
	status   int
	err      error
}

func contextWithResponseReceiver(ctx context.Context, rr *responseReceiver) context.Context {
	return context.WithValue(ctx, responseReceiverKey{}, rr)
}

func responseReceiverFromContext(ctx context.Context) *responseReceiver {
	if rr, ok := ctx.Value(responseReceiverKey{}).(*responseReceiver); ok {
		return rr
	}
	return nil
}

// SetJSONResponse records the handler's success payload for the envelope
// middleware to serialize.
func SetJSONResponse(ctx context.Context, response any) {
	if rr := responseReceiverFromContext(ctx); rr != nil {
		rr.response = response
	}
}

// SetJSONStatus overrides the success status code (default 200).
func SetJSONStatus(ctx context.Context, status int) {
	if rr := responseReceiverFromContext(ctx); rr != nil {
		rr.status = status
	}
}

func SetJSONError(ctx context.Context, err error) {
	if rr := responseReceiverFromContext(ctx); rr != nil {
		rr.err = err
	}
}

func SetNewJSONError(ctx context.Context, kind Kind, msg string, err error) {
	SetJSONError(ctx, New(kind, msg, err))
}

// NewErrorEnvelopeMiddleware converts handler outcomes into the wire-format
// JSON envelope: {code, message} with the kind's HTTP status on failure.
func NewErrorEnvelopeMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			rr := &responseReceiver{status: http.StatusOK}
			ctx := contextWithResponseReceiver(r.Context(), rr)
			next.ServeHTTP(rw, r.WithContext(ctx))
			extractToHTTPResponse(ctx, rw, rr)
		})
	}
}

type httpError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func extractToHTTPResponse(ctx context.Context, rw http.ResponseWriter, rr *responseReceiver) {
	if rr.err == nil {
		writeJSON(ctx, rw, rr.status, rr.response)
		return
	}
	if errors.Is(rr.err, context.Canceled) {
		writeJSONError(ctx, rw, New(KindSystem, "connection closed", rr.err))
		return
	}

	clog.AddError(ctx, rr.err)
	e := Convert(rr.err)
	if e.Stack != "" {
		clog.AddStack(ctx, e.Stack)
	}
	writeJSONError(ctx, rw, e)
}

func writeJSON(ctx context.Context, rw http.ResponseWriter, status int, response any) {
	rw.Header().Set("Content-Type", "application/json; charset=utf-8")
	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(true)
	if err := enc.Encode(response); err != nil {
		writeJSONError(ctx, rw, New(KindSystem, "internal error", err))
		return
	}
	rw.WriteHeader(status)
	if _, err := rw.Write(buf.Bytes()); err != nil {
		clog.AddError(ctx, err)
	}
}

func writeJSONError(ctx context.Context, rw http.ResponseWriter, origErr *Error) {
	rw.Header().Set("Content-Type", "application/json; charset=utf-8")
	rw.WriteHeader(origErr.Kind.HTTPCode())
	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(true)
	if err := enc.Encode(httpError{Code: origErr.Kind.String(), Message: origErr.Msg}); err != nil {
		buf = bytes.NewBufferString(`{"code":"SYSTEM_ERROR","message":"internal error"}`)
		clog.AddError(ctx, errors.Join(origErr, err))
	}
	if _, err := rw.Write(buf.Bytes()); err != nil {
		clog.AddError(ctx, errors.Join(origErr, err))
	}
}
