package schema

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/taibuivan/inkwell/internal/platform/apperr"
	"github.com/taibuivan/inkwell/internal/platform/ctxutil"
	"github.com/taibuivan/inkwell/internal/platform/dberr"
)

// Service owns the lifecycle of the schema specification: cached reads and
// validated, optimistically-locked updates.
type Service struct {
	repo   Repository
	cache  *Cache
	logger *slog.Logger

	// group collapses concurrent cold reads into one repository round-trip.
	group singleflight.Group

	// memo keeps the last wrapped schema so the Published() projection is
	// computed once per specification version, not once per request.
	mu   sync.RWMutex
	memo *Schema
}

// NewService constructs the schema service. cache may be nil, in which case
// every cold read goes to the repository.
func NewService(repo Repository, cache *Cache, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		cache:  cache,
		logger: logger,
	}
}

/*
GetSchema returns the current schema wrapped for lookups.

Resolution order: in-process memo (by version), Redis cache, repository
(stampede-collapsed via singleflight). A repository with no stored
specification yet yields the empty schema at version 0, so a fresh
deployment is usable before the first updateSchemaSpecification call.
*/
func (service *Service) GetSchema(context context.Context) (*Schema, error) {
	if service.cache != nil {
		if spec, ok := service.cache.Get(context); ok {
			return service.wrap(spec)
		}
	}

	result, err, _ := service.group.Do("specification", func() (any, error) {
		spec, err := service.repo.GetSpecification(context)
		if errors.Is(err, dberr.ErrNotFound) {
			return Spec{}, nil
		}
		if err != nil {
			return nil, err
		}
		if service.cache != nil {
			service.cache.Set(context, spec)
		}
		return spec, nil
	})
	if err != nil {
		return nil, err
	}

	return service.wrap(result.(Spec))
}

// wrap returns the memoized schema for spec's version, building it on a
// version change.
func (service *Service) wrap(spec Spec) (*Schema, error) {
	service.mu.RLock()
	memo := service.memo
	service.mu.RUnlock()
	if memo != nil && memo.Version() == spec.Version {
		return memo, nil
	}

	schema := newSchema(spec, false)

	service.mu.Lock()
	service.memo = schema
	service.mu.Unlock()

	return schema, nil
}

// GetSpecification returns the current raw specification value.
func (service *Service) GetSpecification(context context.Context) (Spec, error) {
	schema, err := service.GetSchema(context)
	if err != nil {
		return Spec{}, err
	}
	return schema.Spec(), nil
}

/*
UpdateSpecification merges an additive update into the current schema,
validates the result, and stores it.

The write is guarded by the current version (optimistic concurrency): a
concurrent update surfaces as a BadRequest asking the caller to re-read.
An update that changes nothing is a no-op and returns the current spec.
*/
func (service *Service) UpdateSpecification(context context.Context, update Spec) (Spec, error) {
	session := ctxutil.GetSession(context)
	if session == nil {
		return Spec{}, apperr.Unauthorized("Authentication required")
	}
	if session.ReadOnly {
		return Spec{}, apperr.BadRequest("Read-only session cannot update the schema")
	}

	current, err := service.GetSchema(context)
	if err != nil {
		return Spec{}, err
	}

	merged, err := current.Merge(update)
	if err != nil {
		return Spec{}, err
	}
	if merged == current {
		return current.Spec(), nil
	}

	if err := service.repo.SaveSpecification(context, merged.Spec(), current.Version()); err != nil {
		if errors.Is(err, dberr.ErrConflict) {
			return Spec{}, apperr.BadRequest("Schema was updated concurrently, re-read and retry")
		}
		return Spec{}, err
	}

	if service.cache != nil {
		service.cache.Invalidate(context)
	}

	service.mu.Lock()
	service.memo = merged
	service.mu.Unlock()

	service.logger.Info("schema specification updated",
		slog.Int("version", merged.Version()),
		slog.String("subject", session.Subject),
	)

	return merged.Spec(), nil
}
