package ingestion

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/parlamentwatch/member-ingestion-service/internal/config"
	"github.com/parlamentwatch/member-ingestion-service/internal/enrichment"
	"github.com/parlamentwatch/member-ingestion-service/internal/metrics"
	"github.com/parlamentwatch/member-ingestion-service/internal/models"
	"github.com/parlamentwatch/member-ingestion-service/internal/normalize"
	"github.com/parlamentwatch/member-ingestion-service/internal/roster"
	"github.com/parlamentwatch/member-ingestion-service/internal/session"
	"github.com/parlamentwatch/member-ingestion-service/internal/storage"
)

// ErrRunInProgress is returned when Run is called while another run in this process is active
var ErrRunInProgress = errors.New("an ingestion run is already in progress")

// RunError is a failed run together with the session it was recorded under
type RunError struct {
	SessionID string
	Err       error
}

func (e *RunError) Error() string { return e.Err.Error() }
func (e *RunError) Unwrap() error { return e.Err }

// Upstream is the parliament API as seen by the pipeline
type Upstream interface {
	FetchRoster(ctx context.Context) (*models.RosterResponse, error)
	enrichment.DetailFetcher
}

// Service handles data ingestion from the parliament API
type Service struct {
	config   config.IngestionConfig
	upstream Upstream
	parser   *roster.Parser
	storage  storage.Storage
	batcher  *enrichment.Batcher
	logger   *logrus.Logger
	running  sync.Mutex
	now      func() time.Time
	newID    func() string
}

// NewService creates a new ingestion service
func NewService(cfg config.IngestionConfig, upstream Upstream, parser *roster.Parser, store storage.Storage, logger *logrus.Logger) *Service {
	return &Service{
		config:   cfg,
		upstream: upstream,
		parser:   parser,
		storage:  store,
		batcher:  enrichment.NewBatcher(upstream, store, cfg, logger),
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
}

// Start runs ingestion on the configured interval until ctx is done. A zero interval
// disables scheduling.
func (s *Service) Start(ctx context.Context) error {
	if s.config.Interval <= 0 {
		s.logger.Info("scheduled ingestion disabled")
		return nil
	}

	// Perform initial ingestion
	s.runScheduled(ctx)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.runScheduled(ctx)
		}
	}
}

func (s *Service) runScheduled(ctx context.Context) {
	if _, err := s.Run(ctx); err != nil {
		// Log error but don't stop the service
		s.logger.WithError(err).Warn("scheduled ingestion did not complete")
	}
}

// Run performs one complete ingestion: fetch roster, wipe, reload reference data and
// members, then enrich members with biography details. Failures are returned as
// *RunError after the session has been marked failed.
func (s *Service) Run(ctx context.Context) (*models.RunResult, error) {
	if !s.running.TryLock() {
		return nil, ErrRunInProgress
	}
	defer s.running.Unlock()

	startedAt := s.now()
	tracker := session.NewTracker(s.storage, s.logger, s.newID(), startedAt)
	log := s.logger.WithField("session_id", tracker.SessionID())
	log.Info("starting import session")

	result, err := s.run(ctx, tracker, log)
	took := s.now().Sub(startedAt)
	if err != nil {
		// the failure must be recorded even when ctx was cancelled
		tracker.Fail(context.WithoutCancel(ctx), err)
		metrics.RunFinished(string(models.SessionFailed), took, 0)
		log.WithError(err).Error("ingestion run failed")
		return nil, &RunError{SessionID: tracker.SessionID(), Err: err}
	}

	metrics.RunFinished(string(models.SessionCompleted), took, result.ProcessedMembers)
	log.WithFields(logrus.Fields{
		"members":  result.ProcessedMembers,
		"detailed": result.DetailedDataFetched,
		"failed":   result.DetailedDataFailed,
		"took":     took.String(),
	}).Info("ingestion run completed")
	return result, nil
}

func (s *Service) run(ctx context.Context, tracker *session.Tracker, log *logrus.Entry) (*models.RunResult, error) {
	resp, err := s.upstream.FetchRoster(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch roster: %w", err)
	}

	if err := s.storage.WipeAll(ctx); err != nil {
		return nil, fmt.Errorf("failed to wipe existing data: %w", err)
	}
	if err := tracker.Start(ctx); err != nil {
		return nil, err
	}
	if err := tracker.SetTotal(ctx, resp.Count); err != nil {
		return nil, err
	}

	parsed := s.parser.ParseRows(resp.Rows)
	catalog := normalize.Build(parsed)
	log.WithFields(logrus.Fields{
		"rows":      len(parsed),
		"parties":   len(catalog.Parties()),
		"states":    len(catalog.States()),
		"districts": len(catalog.Districts()),
	}).Info("parsed roster")

	keys, err := s.insertReferences(ctx, catalog)
	if err != nil {
		return nil, err
	}

	fetchedAt := s.now()
	members, err := attachKeys(parsed, keys, fetchedAt, log)
	if err != nil {
		return nil, err
	}
	if err := s.storage.InsertMembers(ctx, members); err != nil {
		return nil, fmt.Errorf("failed to insert members: %w", err)
	}

	var report enrichment.Report
	if s.config.SkipDetails {
		log.Info("skipping detail enrichment")
	} else {
		report = s.batcher.Run(ctx, members)
	}

	if err := tracker.Complete(ctx, len(members)); err != nil {
		return nil, err
	}

	return &models.RunResult{
		SessionID:           tracker.SessionID(),
		TotalMembers:        resp.Count,
		ProcessedMembers:    len(members),
		DetailedDataFetched: report.Succeeded(),
		DetailedDataFailed:  report.Failed(),
		Pages:               resp.Pages,
		FetchedAt:           fetchedAt,
		SessionCompleted:    true,
	}, nil
}

// insertReferences stores parties, states and districts concurrently and returns the
// natural-key lookups built from the stored rows
func (s *Service) insertReferences(ctx context.Context, catalog *normalize.Catalog) (normalize.Keys, error) {
	var (
		parties   []models.Party
		states    []models.State
		districts []models.ElectoralDistrict
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		parties, err = s.storage.InsertParties(gctx, catalog.Parties())
		return err
	})
	g.Go(func() (err error) {
		states, err = s.storage.InsertStates(gctx, catalog.States())
		return err
	})
	g.Go(func() (err error) {
		districts, err = s.storage.InsertDistricts(gctx, catalog.Districts())
		return err
	})
	if err := g.Wait(); err != nil {
		return normalize.Keys{}, err
	}

	return normalize.NewKeys(parties, states, districts), nil
}

// attachKeys turns parsed rows into members with foreign keys. The parliament person id
// is the member id; rows without one get a positional id. Repeated ids keep the first row.
func attachKeys(parsed []models.ParsedMember, keys normalize.Keys, fetchedAt time.Time, log *logrus.Entry) ([]models.Member, error) {
	members := make([]models.Member, 0, len(parsed))
	seen := make(map[string]bool, len(parsed))

	for i, p := range parsed {
		id := p.ExternalID
		if id == "" {
			id = fmt.Sprintf("row-%d", i+1)
		}
		if seen[id] {
			log.WithField("member_id", id).Warn("duplicate member in roster, keeping first row")
			continue
		}
		seen[id] = true

		partyID, ok := keys.PartyIDs[p.Party]
		if !ok {
			return nil, fmt.Errorf("no stored party for %q", p.Party)
		}
		stateID, ok := keys.StateIDs[p.State]
		if !ok {
			return nil, fmt.Errorf("no stored state for %q", p.State)
		}
		districtCode := normalize.DistrictCode(p.District)
		districtID, ok := keys.DistrictIDs[districtCode]
		if !ok {
			return nil, fmt.Errorf("no stored electoral district for %q", districtCode)
		}

		members = append(members, models.Member{
			ID:                  id,
			ExternalID:          p.ExternalID,
			FullName:            p.FullName,
			FirstName:           models.StringPtr(p.FirstName),
			LastName:            p.LastName,
			Title:               models.StringPtr(p.Title),
			ProfileURL:          models.StringPtr(p.ProfileURL),
			DetailedInfo:        models.StringPtr(p.DetailedInfo),
			PartyID:             partyID,
			StateID:             stateID,
			ElectoralDistrictID: districtID,
			FetchedAt:           fetchedAt,
			IsActive:            true,
		})
	}
	return members, nil
}
