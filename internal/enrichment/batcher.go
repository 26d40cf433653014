package enrichment

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/parlamentwatch/member-ingestion-service/internal/config"
	"github.com/parlamentwatch/member-ingestion-service/internal/metrics"
	"github.com/parlamentwatch/member-ingestion-service/internal/models"
)

// DetailFetcher loads one member's biography from the parliament API
type DetailFetcher interface {
	FetchMemberDetail(ctx context.Context, memberID string) (*models.DetailPayload, error)
}

// MemberUpdater persists the fields extracted from a biography
type MemberUpdater interface {
	UpdateMemberDetail(ctx context.Context, memberID string, detail models.MemberDetail) error
}

type ItemStatus string

const (
	ItemSucceeded ItemStatus = "ok"
	ItemFailed    ItemStatus = "failed"
	ItemSkipped   ItemStatus = "skipped"
)

// ItemResult is the outcome for a single member
type ItemResult struct {
	MemberID string
	Status   ItemStatus
	Detail   models.MemberDetail
	Err      error
}

// Report summarizes one enrichment pass
type Report struct {
	Chunks  int
	Delays  int
	Results []ItemResult
}

func (r Report) count(status ItemStatus) int {
	n := 0
	for _, res := range r.Results {
		if res.Status == status {
			n++
		}
	}
	return n
}

func (r Report) Succeeded() int { return r.count(ItemSucceeded) }
func (r Report) Failed() int    { return r.count(ItemFailed) }
func (r Report) Skipped() int   { return r.count(ItemSkipped) }

// Batcher fetches member details in fixed-size chunks. Members inside a chunk are fetched
// concurrently; chunks run one after another with a pause in between.
type Batcher struct {
	fetcher       DetailFetcher
	updater       MemberUpdater
	maxConcurrent int
	delay         time.Duration
	logger        *logrus.Logger
	sleep         func(ctx context.Context, d time.Duration) error
}

// NewBatcher creates a batcher using the chunk size and delay from cfg
func NewBatcher(fetcher DetailFetcher, updater MemberUpdater, cfg config.IngestionConfig, logger *logrus.Logger) *Batcher {
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Batcher{
		fetcher:       fetcher,
		updater:       updater,
		maxConcurrent: maxConcurrent,
		delay:         cfg.BatchDelay,
		logger:        logger,
		sleep:         sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Run enriches members and never returns an error: every failure is recorded in the
// report. Members without an external id are skipped. If ctx is cancelled between
// chunks, the remaining members are recorded as failed.
func (b *Batcher) Run(ctx context.Context, members []models.Member) Report {
	var report Report
	var eligible []models.Member
	for _, m := range members {
		if m.ExternalID == "" {
			report.Results = append(report.Results, ItemResult{MemberID: m.ID, Status: ItemSkipped})
			metrics.DetailFetched(string(ItemSkipped))
			continue
		}
		eligible = append(eligible, m)
	}

	for start := 0; start < len(eligible); start += b.maxConcurrent {
		end := start + b.maxConcurrent
		if end > len(eligible) {
			end = len(eligible)
		}

		if start > 0 {
			report.Delays++
			if err := b.sleep(ctx, b.delay); err != nil {
				b.logger.WithError(err).WithField("remaining", len(eligible)-start).Warn("detail enrichment interrupted")
				for _, m := range eligible[start:] {
					report.Results = append(report.Results, ItemResult{MemberID: m.ID, Status: ItemFailed, Err: err})
					metrics.DetailFetched(string(ItemFailed))
				}
				return report
			}
		}

		report.Chunks++
		report.Results = append(report.Results, b.runChunk(ctx, eligible[start:end])...)

		b.logger.WithFields(logrus.Fields{
			"chunk":     report.Chunks,
			"processed": end,
			"total":     len(eligible),
		}).Debug("detail chunk finished")
	}

	b.logger.WithFields(logrus.Fields{
		"succeeded": report.Succeeded(),
		"failed":    report.Failed(),
		"skipped":   report.Skipped(),
	}).Info("detail enrichment finished")
	return report
}

func (b *Batcher) runChunk(ctx context.Context, chunk []models.Member) []ItemResult {
	results := make([]ItemResult, len(chunk))
	var g errgroup.Group
	for i, m := range chunk {
		i, m := i, m
		g.Go(func() error {
			results[i] = b.enrichOne(ctx, m)
			metrics.DetailFetched(string(results[i].Status))
			return nil
		})
	}
	g.Wait()
	return results
}

func (b *Batcher) enrichOne(ctx context.Context, m models.Member) ItemResult {
	log := b.logger.WithField("member_id", m.ID)

	payload, err := b.fetcher.FetchMemberDetail(ctx, m.ExternalID)
	if err != nil {
		log.WithError(err).Warn("failed to fetch member detail")
		return ItemResult{MemberID: m.ID, Status: ItemFailed, Err: err}
	}

	detail, birthParsed := ParseDetail(payload)
	if !birthParsed && payload != nil {
		log.WithField("gebtext", payload.Content.Biografie.Kurzbiografie.BirthText).Debug("birth info not recognized")
	}

	if err := b.updater.UpdateMemberDetail(ctx, m.ID, detail); err != nil {
		log.WithError(err).Warn("failed to store member detail")
		return ItemResult{MemberID: m.ID, Status: ItemFailed, Err: fmt.Errorf("failed to store detail: %w", err)}
	}
	return ItemResult{MemberID: m.ID, Status: ItemSucceeded, Detail: detail}
}
