package repositoryimpl

import (
	"context"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/tradeease/workflowgate/internal/alert"
	"github.com/tradeease/workflowgate/pkg/cerr"
	"github.com/tradeease/workflowgate/pkg/storage"
)

const subscriptionsPrefix = "alert_subscriptions"

type YAMLRepository struct {
	storage storage.Storage
}

func NewYAMLRepository(s storage.Storage) *YAMLRepository {
	return &YAMLRepository{storage: s}
}

func path(id string) string {
	return fmt.Sprintf("%s/%s.yaml", subscriptionsPrefix, id)
}

func (r *YAMLRepository) Create(ctx context.Context, s *alert.Subscription) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return cerr.New(cerr.KindSystem, "internal error", fmt.Errorf("failed to marshal subscription: %w", err))
	}
	if err := r.storage.Write(ctx, path(s.ID), data); err != nil {
		return cerr.New(cerr.KindSystem, "internal error", fmt.Errorf("failed to write subscription: %w", err))
	}
	return nil
}

func (r *YAMLRepository) List(ctx context.Context) ([]*alert.Subscription, error) {
	paths, err := r.storage.List(ctx, subscriptionsPrefix)
	if err != nil {
		return nil, cerr.New(cerr.KindSystem, "internal error", fmt.Errorf("failed to list subscriptions: %w", err))
	}
	sort.Strings(paths)

	var subs []*alert.Subscription
	for _, p := range paths {
		data, err := r.storage.Read(ctx, p)
		if err != nil {
			continue
		}
		var s alert.Subscription
		if err := yaml.Unmarshal(data, &s); err != nil {
			continue
		}
		subs = append(subs, &s)
	}
	return subs, nil
}

func (r *YAMLRepository) Delete(ctx context.Context, id string) error {
	if err := r.storage.Delete(ctx, path(id)); err != nil {
		return cerr.New(cerr.KindSystem, "internal error", fmt.Errorf("failed to delete subscription: %w", err))
	}
	return nil
}
