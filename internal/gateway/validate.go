package gateway

import (
	"fmt"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/tradeease/workflowgate/pkg/cerr"
)

const (
	minContentLength = 1
	maxContentLength = 500
)

// validateRequest re-asserts the internal consistency of a request's grant,
// content and session. Pure function: no side effects, safe under any
// concurrency.
func validateRequest(req *OperationRequest) *cerr.Error {
	if req == nil {
		return cerr.New(cerr.KindValidation, "missing request", nil)
	}
	if err := validateGrant(&req.Grant); err != nil {
		return err
	}
	if err := validateContent(&req.Content); err != nil {
		return err
	}
	return validateSession(&req.Session)
}

func validateGrant(g *PermissionGrant) *cerr.Error {
	if !g.Operation.IsValid() {
		return cerr.New(cerr.KindValidation, fmt.Sprintf("invalid operation %q", g.Operation), nil)
	}
	if !g.Context.IsValid() {
		return cerr.New(cerr.KindValidation, fmt.Sprintf("invalid context %q", g.Context), nil)
	}
	if err := uuid.Validate(g.UserID); err != nil {
		return cerr.New(cerr.KindValidation, "user id is not a well-formed identifier", err)
	}
	if g.IssuedAt <= 0 {
		return cerr.New(cerr.KindValidation, "grant timestamp must be positive", nil)
	}
	return nil
}

func validateContent(c *ContentPayload) *cerr.Error {
	length := utf8.RuneCountInString(c.Text)
	if length < minContentLength {
		return cerr.New(cerr.KindValidation, "content must not be empty", nil)
	}
	if length > maxContentLength {
		return cerr.New(cerr.KindValidation,
			fmt.Sprintf("content exceeds %d characters", maxContentLength), nil)
	}
	if !c.NodeType.IsValid() {
		return cerr.New(cerr.KindValidation, fmt.Sprintf("invalid node type %q", c.NodeType), nil)
	}
	return nil
}

func validateSession(s *SessionContext) *cerr.Error {
	if err := uuid.Validate(s.SessionID); err != nil {
		return cerr.New(cerr.KindValidation, "session id is not a well-formed identifier", err)
	}
	if s.CSRFToken == "" {
		return cerr.New(cerr.KindValidation, "missing csrf token", nil)
	}
	d := s.DeviceInfo
	for _, field := range []struct {
		name  string
		value string
	}{
		{"device id", d.ID},
		{"user agent", d.UserAgent},
		{"screen resolution", d.ScreenResolution},
		{"timezone", d.Timezone},
		{"language", d.Language},
		{"platform", d.Platform},
	} {
		if field.value == "" {
			return cerr.New(cerr.KindValidation, fmt.Sprintf("missing %s in device info", field.name), nil)
		}
	}
	return nil
}
