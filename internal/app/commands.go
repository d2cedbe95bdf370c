package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"legal_reporting/internal/domain"
)

type PipelineService struct {
	source domain.RecordSource
	repo   domain.ReviewRepository
	schema domain.Schema
	lock   domain.RunLock // nil when runs are serialized externally
	newID  func() string
}

func NewPipelineService(src domain.RecordSource, r domain.ReviewRepository, s domain.Schema, lock domain.RunLock) *PipelineService {
	return &PipelineService{
		source: src,
		repo:   r,
		schema: s,
		lock:   lock,
		newID:  func() string { return uuid.NewString() },
	}
}

type StageResult struct {
	BatchID string
	Rows    int
}

type NormalizeResult struct {
	StagingRows int
	Users       int
	Businesses  int
	Reviews     int
}

type SetupResult struct {
	Stage     StageResult
	Normalize NormalizeResult
}

// Ingest creates the tables if needed, then merges every row of the file
// into users, businesses and reviews inside a single transaction. Any failing
// row rolls back the whole file.
func (s *PipelineService) Ingest(ctx context.Context, path string) (int, error) {
	var n int
	err := s.locked(ctx, func() error {
		if err := s.schema.Up(); err != nil {
			return fmt.Errorf("create tables: %w", err)
		}
		recs, err := s.source.Load(path, domain.LoadOptions{Strict: true})
		if err != nil {
			return err
		}
		err = s.repo.InTx(ctx, func(tx domain.UpsertTx) error {
			for i, rec := range recs {
				if err := upsertRecord(ctx, tx, rec); err != nil {
					var ie *domain.IntegrityError
					if errors.As(err, &ie) {
						ie.Row = i + 1
						return err
					}
					return fmt.Errorf("row %d: %w", i+1, err)
				}
			}
			return nil
		})
		if err != nil {
			log.Error().Err(err).Str("file", path).Msg("ingestion rolled back")
			return err
		}
		n = len(recs)
		return nil
	})
	if err != nil {
		return 0, err
	}
	log.Info().Str("file", path).Int("rows", n).Msg("ingestion complete")
	return n, nil
}

// Users and businesses go first so the review's foreign keys exist.
func upsertRecord(ctx context.Context, tx domain.UpsertTx, rec domain.StagingRecord) error {
	if err := tx.UpsertUser(ctx, rec.User()); err != nil {
		return err
	}
	if err := tx.UpsertBusiness(ctx, rec.Business()); err != nil {
		return err
	}
	return tx.UpsertReview(ctx, rec.Review())
}

// Stage appends the file to the staging table under a fresh batch id.
func (s *PipelineService) Stage(ctx context.Context, path string) (StageResult, error) {
	var res StageResult
	err := s.locked(ctx, func() error {
		var err error
		res, err = s.stage(ctx, path)
		return err
	})
	return res, err
}

// Normalize rebuilds users, businesses and reviews from the full staging
// history. Writes merge by primary key, so re-running on unchanged staging
// content leaves the row counts unchanged.
func (s *PipelineService) Normalize(ctx context.Context) (NormalizeResult, error) {
	var res NormalizeResult
	err := s.locked(ctx, func() error {
		var err error
		res, err = s.normalize(ctx)
		return err
	})
	return res, err
}

// Setup drops and recreates every table, stages the file and normalizes it.
func (s *PipelineService) Setup(ctx context.Context, path string) (SetupResult, error) {
	var res SetupResult
	err := s.locked(ctx, func() error {
		log.Info().Msg("resetting tables")
		if err := s.schema.Reset(); err != nil {
			return fmt.Errorf("reset tables: %w", err)
		}
		st, err := s.stage(ctx, path)
		if err != nil {
			return err
		}
		nr, err := s.normalize(ctx)
		if err != nil {
			return err
		}
		res = SetupResult{Stage: st, Normalize: nr}
		return nil
	})
	return res, err
}

// Reset drops and recreates every table, staging history included.
func (s *PipelineService) Reset(ctx context.Context) error {
	return s.locked(ctx, func() error {
		if err := s.schema.Reset(); err != nil {
			return fmt.Errorf("reset tables: %w", err)
		}
		return nil
	})
}

func (s *PipelineService) stage(ctx context.Context, path string) (StageResult, error) {
	start := time.Now()
	if err := s.schema.Up(); err != nil {
		return StageResult{}, fmt.Errorf("create tables: %w", err)
	}
	recs, err := s.source.Load(path, domain.LoadOptions{})
	if err != nil {
		return StageResult{}, err
	}

	batch := s.newID()
	for i := range recs {
		recs[i].BatchID = batch
		recs[i].BusinessCategory = nil
	}
	if err := s.repo.AppendStaging(ctx, recs); err != nil {
		return StageResult{}, fmt.Errorf("append staging: %w", err)
	}

	log.Info().
		Str("batch_id", batch).
		Str("file", path).
		Int("rows", len(recs)).
		Dur("duration", time.Since(start)).
		Msg("staging ingestion complete")
	return StageResult{BatchID: batch, Rows: len(recs)}, nil
}

func (s *PipelineService) normalize(ctx context.Context) (NormalizeResult, error) {
	start := time.Now()
	rows, err := s.repo.ReadStaging(ctx)
	if err != nil {
		return NormalizeResult{}, fmt.Errorf("read staging: %w", err)
	}
	n := Normalize(rows)
	if err := s.repo.WriteNormalized(ctx, n); err != nil {
		return NormalizeResult{}, fmt.Errorf("write normalized: %w", err)
	}
	res := NormalizeResult{
		StagingRows: len(rows),
		Users:       len(n.Users),
		Businesses:  len(n.Businesses),
		Reviews:     len(n.Reviews),
	}
	log.Info().
		Int("staging_rows", res.StagingRows).
		Int("users", res.Users).
		Int("businesses", res.Businesses).
		Int("reviews", res.Reviews).
		Dur("duration", time.Since(start)).
		Msg("normalisation complete")
	return res, nil
}

func (s *PipelineService) locked(ctx context.Context, fn func() error) error {
	if s.lock == nil {
		return fn()
	}
	release, err := s.lock.Acquire(ctx)
	if err != nil {
		return err
	}
	defer release()
	return fn()
}
