package repositoryimpl

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tradeease/workflowgate/internal/workflowdef"
	"github.com/tradeease/workflowgate/pkg/cerr"
	"github.com/tradeease/workflowgate/pkg/storage"
)

const workflowsPrefix = "workflows"

type YAMLRepository struct {
	storage storage.Storage
}

func NewYAMLRepository(s storage.Storage) *YAMLRepository {
	return &YAMLRepository{storage: s}
}

func path(id string) string {
	return fmt.Sprintf("%s/%s.yaml", workflowsPrefix, id)
}

func wrapReadError(err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return cerr.New(cerr.KindWorkflow, "workflow not found", err)
	}
	return cerr.New(cerr.KindSystem, "internal error", fmt.Errorf("failed to read workflow: %w", err))
}

func (r *YAMLRepository) Create(ctx context.Context, w *workflowdef.Workflow) error {
	exists, err := r.storage.Exists(ctx, path(w.ID))
	if err != nil {
		return cerr.New(cerr.KindSystem, "internal error", fmt.Errorf("failed to check workflow: %w", err))
	}
	if exists {
		return cerr.New(cerr.KindWorkflow, "workflow already exists", nil)
	}
	data, err := yaml.Marshal(w)
	if err != nil {
		return cerr.New(cerr.KindSystem, "internal error", fmt.Errorf("failed to marshal workflow: %w", err))
	}
	if err := r.storage.Write(ctx, path(w.ID), data); err != nil {
		return cerr.New(cerr.KindSystem, "internal error", fmt.Errorf("failed to write workflow: %w", err))
	}
	return nil
}

func (r *YAMLRepository) Get(ctx context.Context, id string) (*workflowdef.Workflow, error) {
	data, err := r.storage.Read(ctx, path(id))
	if err != nil {
		return nil, wrapReadError(err)
	}
	var w workflowdef.Workflow
	if err := yaml.Unmarshal(data, &w); err != nil {
		return nil, cerr.New(cerr.KindSystem, "internal error", fmt.Errorf("failed to unmarshal workflow: %w", err))
	}
	return &w, nil
}

func (r *YAMLRepository) List(ctx context.Context, ownerID string, limit, offset int) ([]*workflowdef.Workflow, int, error) {
	return r.collect(ctx, ownerID, "", limit, offset)
}

func (r *YAMLRepository) Search(ctx context.Context, ownerID, query string, limit, offset int) ([]*workflowdef.Workflow, int, error) {
	return r.collect(ctx, ownerID, query, limit, offset)
}

func (r *YAMLRepository) collect(ctx context.Context, ownerID, query string, limit, offset int) ([]*workflowdef.Workflow, int, error) {
	paths, err := r.storage.List(ctx, workflowsPrefix)
	if err != nil {
		return nil, 0, cerr.New(cerr.KindSystem, "internal error", fmt.Errorf("failed to list workflows: %w", err))
	}

	sort.Strings(paths)

	lowerQuery := strings.ToLower(query)
	var all []*workflowdef.Workflow
	for _, p := range paths {
		data, err := r.storage.Read(ctx, p)
		if err != nil {
			continue
		}
		var w workflowdef.Workflow
		if err := yaml.Unmarshal(data, &w); err != nil {
			continue
		}
		if ownerID != "" && w.OwnerID != ownerID {
			continue
		}
		if lowerQuery != "" &&
			!strings.Contains(strings.ToLower(w.Name), lowerQuery) &&
			!strings.Contains(strings.ToLower(w.Content), lowerQuery) {
			continue
		}
		all = append(all, &w)
	}

	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	all = all[offset:]
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, total, nil
}

func (r *YAMLRepository) Update(ctx context.Context, w *workflowdef.Workflow) error {
	exists, err := r.storage.Exists(ctx, path(w.ID))
	if err != nil {
		return cerr.New(cerr.KindSystem, "internal error", fmt.Errorf("failed to check workflow: %w", err))
	}
	if !exists {
		return cerr.New(cerr.KindWorkflow, "workflow not found", nil)
	}
	data, err := yaml.Marshal(w)
	if err != nil {
		return cerr.New(cerr.KindSystem, "internal error", fmt.Errorf("failed to marshal workflow: %w", err))
	}
	if err := r.storage.Write(ctx, path(w.ID), data); err != nil {
		return cerr.New(cerr.KindSystem, "internal error", fmt.Errorf("failed to write workflow: %w", err))
	}
	return nil
}

func (r *YAMLRepository) Delete(ctx context.Context, id string) error {
	if err := r.storage.Delete(ctx, path(id)); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return cerr.New(cerr.KindWorkflow, "workflow not found", err)
		}
		return cerr.New(cerr.KindSystem, "internal error", fmt.Errorf("failed to delete workflow: %w", err))
	}
	return nil
}
