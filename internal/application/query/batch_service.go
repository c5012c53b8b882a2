// Package query provides the batch query gateway: bulk entity lookups used
// by the integrity verifier and the calendar aggregator so neither issues
// one query per id.
package query

import (
	"context"

	"github.com/dealflow/backend/internal/domain/allocation"
	"github.com/dealflow/backend/internal/domain/pipeline"
	"github.com/dealflow/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
)

// DefaultChunkSize bounds a single IN (...) query when no explicit chunk
// size is configured
const DefaultChunkSize = 100

// BatchService loads allocations, deals and funds in chunked IN queries.
// It is stateless; callers may retry freely.
type BatchService struct {
	allocationRepo allocation.AllocationRepository
	dealRepo       pipeline.DealRepository
	fundRepo       pipeline.FundRepository
	chunkSize      int
}

// BatchServiceOption is a functional option for BatchService
type BatchServiceOption func(*BatchService)

// WithBatchChunkSize overrides the maximum number of ids per IN query
func WithBatchChunkSize(size int) BatchServiceOption {
	return func(s *BatchService) {
		if size > 0 {
			s.chunkSize = size
		}
	}
}

// NewBatchService creates a new batch query service
func NewBatchService(
	allocationRepo allocation.AllocationRepository,
	dealRepo pipeline.DealRepository,
	fundRepo pipeline.FundRepository,
	opts ...BatchServiceOption,
) *BatchService {
	service := &BatchService{
		allocationRepo: allocationRepo,
		dealRepo:       dealRepo,
		fundRepo:       fundRepo,
		chunkSize:      DefaultChunkSize,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

// BatchRequest names the ids to load. Duplicate ids are collapsed before
// querying.
type BatchRequest struct {
	AllocationIDs []uuid.UUID
	DealIDs       []uuid.UUID
	FundIDs       []uuid.UUID
}

// BatchMisses lists requested ids that no row exists for, per entity type.
// A missing entity is a reportable condition for the caller, never a
// silent default.
type BatchMisses struct {
	AllocationIDs []uuid.UUID `json:"allocation_ids,omitempty"`
	DealIDs       []uuid.UUID `json:"deal_ids,omitempty"`
	FundIDs       []uuid.UUID `json:"fund_ids,omitempty"`
}

// IsEmpty reports whether every requested id was resolved
func (m BatchMisses) IsEmpty() bool {
	return len(m.AllocationIDs) == 0 && len(m.DealIDs) == 0 && len(m.FundIDs) == 0
}

// BatchResult holds the loaded entities keyed by id, plus the ids that
// could not be resolved
type BatchResult struct {
	Allocations map[uuid.UUID]*allocation.FundAllocation
	Deals       map[uuid.UUID]*pipeline.Deal
	Funds       map[uuid.UUID]*pipeline.Fund
	Missing     BatchMisses
}

// BatchFetch loads every requested entity with chunked IN queries. Ids
// absent from a chunk response are retried once individually before being
// reported in Missing, so a partial batch result from the store does not
// turn into a false miss.
func (s *BatchService) BatchFetch(ctx context.Context, req BatchRequest) (*BatchResult, error) {
	var result *BatchResult
	var operationErr error
	telemetry.WithProfilingLabels(ctx, telemetry.EngineOperationLabels(telemetry.OperationBatchFetch, ""), func(c context.Context) {
		result, operationErr = s.batchFetch(c, req)
	})
	return result, operationErr
}

func (s *BatchService) batchFetch(ctx context.Context, req BatchRequest) (*BatchResult, error) {
	result := &BatchResult{
		Allocations: make(map[uuid.UUID]*allocation.FundAllocation, len(req.AllocationIDs)),
		Deals:       make(map[uuid.UUID]*pipeline.Deal, len(req.DealIDs)),
		Funds:       make(map[uuid.UUID]*pipeline.Fund, len(req.FundIDs)),
	}

	missing, err := fetchChunked(ctx, req.AllocationIDs, s.chunkSize,
		s.allocationRepo.FindByIDs, s.allocationRepo.FindByID,
		func(a *allocation.FundAllocation) uuid.UUID { return a.ID },
		result.Allocations)
	if err != nil {
		return nil, err
	}
	result.Missing.AllocationIDs = missing

	missing, err = fetchChunked(ctx, req.DealIDs, s.chunkSize,
		s.dealRepo.FindByIDs, s.dealRepo.FindByID,
		func(d *pipeline.Deal) uuid.UUID { return d.ID },
		result.Deals)
	if err != nil {
		return nil, err
	}
	result.Missing.DealIDs = missing

	missing, err = fetchChunked(ctx, req.FundIDs, s.chunkSize,
		s.fundRepo.FindByIDs, s.fundRepo.FindByID,
		func(f *pipeline.Fund) uuid.UUID { return f.ID },
		result.Funds)
	if err != nil {
		return nil, err
	}
	result.Missing.FundIDs = missing

	return result, nil
}

// fetchChunked resolves ids into out using at most one IN query per chunk,
// then one FindByID per id the chunks failed to return. Loading N ids costs
// ceil(N/chunkSize) queries when the store is consistent.
func fetchChunked[T any](
	ctx context.Context,
	ids []uuid.UUID,
	chunkSize int,
	findByIDs func(context.Context, []uuid.UUID) ([]T, error),
	findByID func(context.Context, uuid.UUID) (*T, error),
	keyOf func(*T) uuid.UUID,
	out map[uuid.UUID]*T,
) ([]uuid.UUID, error) {
	unique := dedupeIDs(ids)
	if len(unique) == 0 {
		return nil, nil
	}

	var unresolved []uuid.UUID
	for start := 0; start < len(unique); start += chunkSize {
		end := start + chunkSize
		if end > len(unique) {
			end = len(unique)
		}
		chunk := unique[start:end]

		rows, err := findByIDs(ctx, chunk)
		if err != nil {
			return nil, err
		}
		for i := range rows {
			row := rows[i]
			out[keyOf(&row)] = &row
		}
		for _, id := range chunk {
			if _, ok := out[id]; !ok {
				unresolved = append(unresolved, id)
			}
		}
	}

	var missing []uuid.UUID
	for _, id := range unresolved {
		row, err := findByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if row == nil {
			missing = append(missing, id)
			continue
		}
		out[keyOf(row)] = row
	}
	return missing, nil
}

func dedupeIDs(ids []uuid.UUID) []uuid.UUID {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[uuid.UUID]bool, len(ids))
	unique := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil || seen[id] {
			continue
		}
		seen[id] = true
		unique = append(unique, id)
	}
	return unique
}
