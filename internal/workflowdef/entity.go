package workflowdef

import (
	"time"

	"github.com/tradeease/workflowgate/pkg/cerr"
)

// Workflow is a stored automation graph owned by a user. The gateway protects
// mutations to these definitions; executing them is someone else's job.
type Workflow struct {
	ID          string            `yaml:"id" json:"id"`
	OwnerID     string            `yaml:"owner_id" json:"ownerId"`
	Name        string            `yaml:"name" json:"name"`
	Description string            `yaml:"description,omitempty" json:"description,omitempty"`
	NodeType    string            `yaml:"node_type" json:"nodeType"`
	Content     string            `yaml:"content" json:"content"`
	Metadata    map[string]string `yaml:"metadata,omitempty" json:"metadata,omitempty"`
	Graph       *Graph            `yaml:"graph,omitempty" json:"graph,omitempty"`
	CreatedAt   time.Time         `yaml:"created_at" json:"createdAt"`
	UpdatedAt   time.Time         `yaml:"updated_at" json:"updatedAt"`
}

// EnsureOwner confirms the stored definition belongs to userID. It sits
// between gateway allowance and the actual mutation for edit/delete.
func EnsureOwner(w *Workflow, userID string) error {
	if w.OwnerID == userID {
		return nil
	}
	e := cerr.New(cerr.KindPermission, "workflow belongs to another user", nil)
	return e.WithMeta(cerr.Meta{
		UserID:     userID,
		ResourceID: w.ID,
		Timestamp:  e.Meta.Timestamp,
	})
}
