package gateway

import (
	"github.com/tradeease/workflowgate/internal/workflowdef"
	"github.com/tradeease/workflowgate/pkg/cerr"
)

// Operation is the mutation kind a caller asserts for a single request.
type Operation string

const (
	OperationCreate Operation = "create"
	OperationEdit   Operation = "edit"
	OperationView   Operation = "view"
	OperationDelete Operation = "delete"
	OperationSearch Operation = "search"
)

func (o Operation) IsValid() bool {
	switch o {
	case OperationCreate, OperationEdit, OperationView, OperationDelete, OperationSearch:
		return true
	}
	return false
}

// PermissionContext scopes a grant to the surface the workflow lives on.
type PermissionContext string

const (
	ContextPersonal PermissionContext = "personal-workflow"
	ContextTask     PermissionContext = "task-workflow"
	ContextProject  PermissionContext = "project-workflow"
)

func (c PermissionContext) IsValid() bool {
	switch c {
	case ContextPersonal, ContextTask, ContextProject:
		return true
	}
	return false
}

type NodeType string

const (
	NodeTypeTask         NodeType = "task"
	NodeTypeCondition    NodeType = "condition"
	NodeTypeAction       NodeType = "action"
	NodeTypeTimer        NodeType = "timer"
	NodeTypeNotification NodeType = "notification"
)

func (n NodeType) IsValid() bool {
	switch n {
	case NodeTypeTask, NodeTypeCondition, NodeTypeAction, NodeTypeTimer, NodeTypeNotification:
		return true
	}
	return false
}

// PermissionGrant is the caller's asserted operation, context and identity.
// IssuedAt is Unix milliseconds.
type PermissionGrant struct {
	Operation Operation         `json:"operation"`
	Context   PermissionContext `json:"context"`
	UserID    string            `json:"userId"`
	IssuedAt  int64             `json:"issuedAt"`
}

type DeviceInfo struct {
	ID               string `json:"id"`
	UserAgent        string `json:"userAgent"`
	ScreenResolution string `json:"screenResolution"`
	Timezone         string `json:"timezone"`
	Language         string `json:"language"`
	Platform         string `json:"platform"`
}

type SessionContext struct {
	SessionID  string     `json:"sessionId"`
	CSRFToken  string     `json:"csrfToken"`
	DeviceInfo DeviceInfo `json:"deviceInfo"`
}

// ContentPayload is the free-form user content being written into the
// workflow store, plus the graph it implies, if any.
type ContentPayload struct {
	Text     string             `json:"text"`
	NodeType NodeType           `json:"nodeType"`
	Metadata map[string]any     `json:"metadata,omitempty"`
	Graph    *workflowdef.Graph `json:"graph,omitempty"`
}

type Pagination struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// OperationRequest is one inbound mutation/query: exactly one grant, one
// content payload and one session context, plus a target resource for
// edit/delete and pagination for list/search.
type OperationRequest struct {
	Grant      PermissionGrant `json:"grant"`
	Content    ContentPayload  `json:"content"`
	Session    SessionContext  `json:"session"`
	ResourceID string          `json:"resourceId,omitempty"`
	Pagination *Pagination     `json:"pagination,omitempty"`
}

// Outcome is the immutable result of one pipeline run.
type Outcome struct {
	Allowed bool      `json:"allowed"`
	Kind    cerr.Kind `json:"-"`
	Code    string    `json:"code,omitempty"`
	Message string    `json:"message,omitempty"`
	Meta    cerr.Meta `json:"-"`
}
