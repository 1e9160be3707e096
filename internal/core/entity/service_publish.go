package entity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/taibuivan/inkwell/internal/core/content"
	"github.com/taibuivan/inkwell/internal/core/schema"
	"github.com/taibuivan/inkwell/internal/platform/apperr"
	"github.com/taibuivan/inkwell/internal/platform/dberr"
	"github.com/taibuivan/inkwell/pkg/pointer"
)

// publishCandidate is one entity of a publish batch with everything loaded
// up front, so the commit phase cannot fail on validation.
type publishCandidate struct {
	record    *Record
	version   int
	collected content.CollectResult
	// skip marks an already-published requested version; it stays untouched.
	skip bool
}

/*
PublishEntities publishes a batch of entity versions atomically: either every
requested version becomes the published one, or nothing changes.

Cross-entity reference integrity is checked over the whole batch, so two
entities referencing each other can be published together.
*/
func (service *Service) PublishEntities(context context.Context, refs []VersionRef) ([]OperationResult, error) {
	session, err := writableSession(context)
	if err != nil {
		return nil, err
	}

	// 1. A batch must address each entity at most once
	refs, err = dedupeRefs(refs)
	if err != nil {
		return nil, err
	}
	if len(refs) == 0 {
		return nil, apperr.BadRequest("No entities to publish")
	}

	currentSchema, err := service.schemas.GetSchema(context)
	if err != nil {
		return nil, err
	}
	publishedSchema := currentSchema.Published()

	var results []OperationResult
	err = service.store.WithTransaction(context, func(tx Store) error {
		// 2. Load and lock every entity; report all missing ids at once
		candidates, err := service.loadPublishBatch(context, tx, refs)
		if err != nil {
			return err
		}

		// 3. Type and authorization gates
		if err := checkPublishable(currentSchema, candidates); err != nil {
			return err
		}
		for _, candidate := range candidates {
			if !session.CanAccess(candidate.record.Info.AuthKey) {
				return apperr.NotAuthorized("Not authorized for authKey " + candidate.record.Info.AuthKey)
			}
		}

		// 4. Validate every not-yet-published version
		batch := make(map[string]*publishCandidate, len(candidates))
		for _, candidate := range candidates {
			batch[candidate.record.ID] = candidate
		}
		for _, candidate := range candidates {
			if err := service.preparePublish(context, tx, currentSchema, publishedSchema, candidate); err != nil {
				return err
			}
		}

		// 5. Cross-entity reference integrity over the whole batch
		if err := checkReferenceIntegrity(context, tx, batch, candidates); err != nil {
			return err
		}

		// 6. Commit: flip published state, swap indexes, claim values
		results = make([]OperationResult, 0, len(candidates))
		var published []EventEntity
		for _, candidate := range candidates {
			record := candidate.record
			if candidate.skip {
				results = append(results, OperationResult{ID: record.ID, Status: record.Info.Status, Effect: EffectNone})
				continue
			}

			status := StatusPublished
			if candidate.version < record.Info.Version {
				status = StatusModified
			}
			if err := tx.SetPublished(context, record.ID, pointer.To(candidate.version), status, pointer.To(true)); err != nil {
				return err
			}
			if err := tx.ReplaceIndexes(context, record.ID, ScopePublished, indexDataOf(candidate.collected)); err != nil {
				return err
			}
			if err := claimUniqueValues(context, tx, record.ID, ScopePublished, candidate.collected.UniqueIndexValues); err != nil {
				return err
			}

			published = append(published, EventEntity{ID: record.ID, Version: candidate.version})
			results = append(results, OperationResult{ID: record.ID, Status: status, Effect: EffectPublished})
		}

		if len(published) == 0 {
			return nil
		}
		return tx.AppendEvent(context, service.newEvent(EventPublishEntities, session, published...))
	})
	if err != nil {
		return nil, err
	}

	service.logger.Info("entities published",
		slog.Int("count", len(results)),
		slog.String("subject", session.Subject),
	)
	return results, nil
}

/*
UnpublishEntities withdraws the published version of each entity. Entities
without a published version pass through unchanged.
*/
func (service *Service) UnpublishEntities(context context.Context, ids []string) ([]OperationResult, error) {
	session, err := writableSession(context)
	if err != nil {
		return nil, err
	}

	ids = dedupeIDs(ids)
	if len(ids) == 0 {
		return nil, apperr.BadRequest("No entities to unpublish")
	}

	var results []OperationResult
	err = service.store.WithTransaction(context, func(tx Store) error {
		candidates, err := service.loadPublishBatch(context, tx, idsToRefs(ids))
		if err != nil {
			return err
		}
		for _, candidate := range candidates {
			if !session.CanAccess(candidate.record.Info.AuthKey) {
				return apperr.NotAuthorized("Not authorized for authKey " + candidate.record.Info.AuthKey)
			}
		}

		results = make([]OperationResult, 0, len(candidates))
		var withdrawn []EventEntity
		for _, candidate := range candidates {
			record := candidate.record
			if !record.Info.Status.IsPublished() {
				results = append(results, OperationResult{ID: record.ID, Status: record.Info.Status, Effect: EffectNone})
				continue
			}

			if err := tx.SetPublished(context, record.ID, nil, StatusWithdrawn, nil); err != nil {
				return err
			}
			if err := tx.ReplaceIndexes(context, record.ID, ScopePublished, nil); err != nil {
				return err
			}
			if err := tx.ClaimUniqueValues(context, record.ID, ScopePublished, nil); err != nil {
				return err
			}

			version := pointer.Fallback(record.Info.PublishedVersion, record.Info.Version)
			withdrawn = append(withdrawn, EventEntity{ID: record.ID, Version: version})
			results = append(results, OperationResult{ID: record.ID, Status: StatusWithdrawn, Effect: EffectUnpublished})
		}

		if len(withdrawn) == 0 {
			return nil
		}
		return tx.AppendEvent(context, service.newEvent(EventUnpublishEntities, session, withdrawn...))
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// ArchiveEntity moves a draft or withdrawn entity to archived. Archiving is
// idempotent; a live published version must be withdrawn first.
func (service *Service) ArchiveEntity(context context.Context, id string) (*OperationResult, error) {
	return service.transition(context, id, EventArchiveEntity, func(record *Record) (Status, Effect, error) {
		switch {
		case record.Info.Status == StatusArchived:
			return StatusArchived, EffectNone, nil
		case record.Info.Status.CanArchive():
			return StatusArchived, EffectArchived, nil
		default:
			return "", "", apperr.BadRequest("Published entities must be unpublished before archiving")
		}
	})
}

// UnarchiveEntity moves an archived entity back to draft.
func (service *Service) UnarchiveEntity(context context.Context, id string) (*OperationResult, error) {
	return service.transition(context, id, EventUnarchiveEntity, func(record *Record) (Status, Effect, error) {
		if record.Info.Status != StatusArchived {
			return record.Info.Status, EffectNone, nil
		}
		return StatusDraft, EffectUnarchived, nil
	})
}

// transition runs a single-entity status change under a row lock.
func (service *Service) transition(ctx context.Context, id string, eventType EventType, decide func(*Record) (Status, Effect, error)) (*OperationResult, error) {
	session, err := writableSession(ctx)
	if err != nil {
		return nil, err
	}

	var result *OperationResult
	err = service.store.WithTransaction(ctx, func(tx Store) error {
		record, err := getRecord(ctx, tx, id, true)
		if err != nil {
			return err
		}
		if !session.CanAccess(record.Info.AuthKey) {
			return apperr.NotAuthorized("Not authorized for authKey " + record.Info.AuthKey)
		}

		status, effect, err := decide(record)
		if err != nil {
			return err
		}
		if effect == EffectNone {
			result = &OperationResult{ID: id, Status: record.Info.Status, Effect: EffectNone}
			return nil
		}

		if err := tx.SetStatus(ctx, id, status); err != nil {
			return err
		}
		if err := tx.AppendEvent(ctx, service.newEvent(eventType, session, EventEntity{ID: id, Version: record.Info.Version})); err != nil {
			return err
		}

		result = &OperationResult{ID: id, Status: status, Effect: effect}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// # Publish pipeline steps

// loadPublishBatch locks every addressed entity and aggregates missing ids
// into a single NotFound.
func (service *Service) loadPublishBatch(ctx context.Context, tx Store, refs []VersionRef) ([]*publishCandidate, error) {
	candidates := make([]*publishCandidate, 0, len(refs))
	var missing []string
	for _, ref := range refs {
		record, err := tx.GetRecord(ctx, ref.ID, true)
		if err != nil {
			if errors.Is(err, dberr.ErrNotFound) {
				missing = append(missing, ref.ID)
				continue
			}
			return nil, err
		}

		version := record.Info.Version
		if ref.Version != nil {
			version = *ref.Version
		}
		candidates = append(candidates, &publishCandidate{record: record, version: version})
	}
	if len(missing) > 0 {
		return nil, apperr.NotFoundf("Entities not found: %s", strings.Join(missing, ", "))
	}
	return candidates, nil
}

// checkPublishable rejects archived entities and non-publishable or
// adminOnly entity types, aggregating offenders into one message.
func checkPublishable(s *schema.Schema, candidates []*publishCandidate) error {
	var rejected []string
	for _, candidate := range candidates {
		record := candidate.record
		if record.Info.Status == StatusArchived {
			return apperr.BadRequestf("Entity %s is archived and cannot be published", record.ID)
		}
		entityType := s.EntityType(record.Info.Type)
		if entityType == nil || !entityType.Publishable || entityType.AdminOnly {
			rejected = append(rejected, fmt.Sprintf("%s (%s)", record.ID, record.Info.Type))
		}
	}
	if len(rejected) > 0 {
		return apperr.BadRequestf("Entities of non-publishable types: %s", strings.Join(rejected, ", "))
	}
	return nil
}

// preparePublish loads, migrates, and publish-validates one candidate's
// version, filling in its collected index data. An already-published version
// is marked skip; a previously failed publish of the same version fails
// fast so callers fix the content first.
func (service *Service) preparePublish(ctx context.Context, tx Store, full, published *schema.Schema, candidate *publishCandidate) error {
	record := candidate.record
	if record.Info.PublishedVersion != nil && *record.Info.PublishedVersion == candidate.version {
		if record.Info.ValidPublished != nil && !*record.Info.ValidPublished {
			return apperr.BadRequestf("Entity %s version %d failed validation on its last publish", record.ID, candidate.version)
		}
		candidate.skip = true
		return nil
	}
	if candidate.version < 0 || candidate.version > record.Info.Version {
		return apperr.BadRequestf("Entity %s has no version %d", record.ID, candidate.version)
	}

	fields, err := service.loadFields(ctx, tx, full, record, candidate.version)
	if err != nil {
		return err
	}

	collector := content.NewCollector()
	for node := range content.TraverseEntity(published, content.Path{}, record.Info.Type, fields) {
		if issue := content.ValidateNodeForPublish(full, node); issue != nil {
			return apperr.BadRequestf("Entity %s: %s", record.ID, issue.String())
		}
		collector.Visit(node)
	}
	candidate.collected = collector.Result()
	return nil
}

// checkReferenceIntegrity requires every referenced entity to either be part
// of the batch or already have a valid published version.
func checkReferenceIntegrity(ctx context.Context, tx Store, batch map[string]*publishCandidate, candidates []*publishCandidate) error {
	checked := make(map[string]*Record)
	for _, candidate := range candidates {
		var unpublished, invalid []string
		for _, targetID := range candidate.collected.ReferenceIDs {
			if _, inBatch := batch[targetID]; inBatch {
				continue
			}
			target, ok := checked[targetID]
			if !ok {
				record, err := tx.GetRecord(ctx, targetID, false)
				if err != nil && !errors.Is(err, dberr.ErrNotFound) {
					return err
				}
				target = record
				checked[targetID] = target
			}
			switch {
			case target == nil || target.Info.PublishedVersion == nil:
				unpublished = append(unpublished, targetID)
			case target.Info.ValidPublished != nil && !*target.Info.ValidPublished:
				invalid = append(invalid, targetID)
			}
		}
		if len(unpublished) > 0 {
			return apperr.BadRequestf("Entity %s: References unpublished entities: %s", candidate.record.ID, strings.Join(unpublished, ", "))
		}
		if len(invalid) > 0 {
			return apperr.BadRequestf("Entity %s: References invalid entities: %s", candidate.record.ID, strings.Join(invalid, ", "))
		}
	}
	return nil
}

// # Batch helpers

func dedupeRefs(refs []VersionRef) ([]VersionRef, error) {
	seen := make(map[string]bool, len(refs))
	deduped := make([]VersionRef, 0, len(refs))
	for _, ref := range refs {
		if ref.ID == "" {
			return nil, apperr.BadRequest("Entity id is required")
		}
		if seen[ref.ID] {
			return nil, apperr.BadRequestf("Duplicate entity id %s in batch", ref.ID)
		}
		seen[ref.ID] = true
		deduped = append(deduped, ref)
	}
	return deduped, nil
}

func dedupeIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	deduped := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		deduped = append(deduped, id)
	}
	return deduped
}

func idsToRefs(ids []string) []VersionRef {
	refs := make([]VersionRef, 0, len(ids))
	for _, id := range ids {
		refs = append(refs, VersionRef{ID: id})
	}
	return refs
}
