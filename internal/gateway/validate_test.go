package gateway

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradeease/workflowgate/pkg/cerr"
)

const (
	testUserID    = "6ba7b810-9dad-11d1-80b4-00c04fd430c8"
	testSessionID = "f47ac10b-58cc-4372-a567-0e02b2c3d479"
)

func validRequest(at time.Time) *OperationRequest {
	return &OperationRequest{
		Grant: PermissionGrant{
			Operation: OperationCreate,
			Context:   ContextPersonal,
			UserID:    testUserID,
			IssuedAt:  at.UnixMilli(),
		},
		Content: ContentPayload{
			Text:     "approve invoice and notify owner",
			NodeType: NodeTypeTask,
		},
		Session: SessionContext{
			SessionID: testSessionID,
			CSRFToken: "csrf-token-value",
			DeviceInfo: DeviceInfo{
				ID:               "device-1",
				UserAgent:        "Mozilla/5.0",
				ScreenResolution: "1920x1080",
				Timezone:         "Australia/Sydney",
				Language:         "en-AU",
				Platform:         "MacIntel",
			},
		},
	}
}

func TestValidateRequest_Valid(t *testing.T) {
	assert.Nil(t, validateRequest(validRequest(time.Now())))
}

func TestValidateRequest_Nil(t *testing.T) {
	err := validateRequest(nil)
	require.NotNil(t, err)
	assert.Equal(t, cerr.KindValidation, err.Kind)
}

func TestValidateGrant(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*OperationRequest)
	}{
		{"unknown operation", func(r *OperationRequest) { r.Grant.Operation = "publish" }},
		{"empty operation", func(r *OperationRequest) { r.Grant.Operation = "" }},
		{"unknown context", func(r *OperationRequest) { r.Grant.Context = "global-workflow" }},
		{"user id not a uuid", func(r *OperationRequest) { r.Grant.UserID = "bob" }},
		{"empty user id", func(r *OperationRequest) { r.Grant.UserID = "" }},
		{"zero timestamp", func(r *OperationRequest) { r.Grant.IssuedAt = 0 }},
		{"negative timestamp", func(r *OperationRequest) { r.Grant.IssuedAt = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest(time.Now())
			tt.mutate(req)
			err := validateRequest(req)
			require.NotNil(t, err)
			assert.Equal(t, cerr.KindValidation, err.Kind)
		})
	}
}

func TestValidateContent_Length(t *testing.T) {
	req := validRequest(time.Now())

	req.Content.Text = ""
	err := validateRequest(req)
	require.NotNil(t, err)
	assert.Equal(t, cerr.KindValidation, err.Kind)

	// Boundaries are inclusive: exactly 1 and exactly 500 runes pass.
	req.Content.Text = "x"
	assert.Nil(t, validateRequest(req))

	req.Content.Text = strings.Repeat("x", 500)
	assert.Nil(t, validateRequest(req))

	req.Content.Text = strings.Repeat("x", 501)
	err = validateRequest(req)
	require.NotNil(t, err)
	assert.Equal(t, cerr.KindValidation, err.Kind)
}

func TestValidateContent_MultibyteRunes(t *testing.T) {
	req := validRequest(time.Now())

	// 500 runes, far more than 500 bytes.
	req.Content.Text = strings.Repeat("日", 500)
	assert.Nil(t, validateRequest(req))

	req.Content.Text = strings.Repeat("日", 501)
	assert.NotNil(t, validateRequest(req))
}

func TestValidateContent_NodeType(t *testing.T) {
	req := validRequest(time.Now())
	req.Content.NodeType = "webhook"
	err := validateRequest(req)
	require.NotNil(t, err)
	assert.Equal(t, cerr.KindValidation, err.Kind)
}

func TestValidateSession(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*OperationRequest)
	}{
		{"session id not a uuid", func(r *OperationRequest) { r.Session.SessionID = "sess-1" }},
		{"missing csrf token", func(r *OperationRequest) { r.Session.CSRFToken = "" }},
		{"missing device id", func(r *OperationRequest) { r.Session.DeviceInfo.ID = "" }},
		{"missing user agent", func(r *OperationRequest) { r.Session.DeviceInfo.UserAgent = "" }},
		{"missing screen resolution", func(r *OperationRequest) { r.Session.DeviceInfo.ScreenResolution = "" }},
		{"missing timezone", func(r *OperationRequest) { r.Session.DeviceInfo.Timezone = "" }},
		{"missing language", func(r *OperationRequest) { r.Session.DeviceInfo.Language = "" }},
		{"missing platform", func(r *OperationRequest) { r.Session.DeviceInfo.Platform = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest(time.Now())
			tt.mutate(req)
			err := validateRequest(req)
			require.NotNil(t, err)
			assert.Equal(t, cerr.KindValidation, err.Kind)
		})
	}
}
