package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/parlamentwatch/member-ingestion-service/internal/config"
	"github.com/parlamentwatch/member-ingestion-service/internal/models"
)

// ErrNotFound is returned by UpdateMemberDetail and UpdateSession when the record to
// change does not exist. Get* lookups report a missing record as (nil, nil) instead.
var ErrNotFound = errors.New("not found")

// Storage interface defines the contract for data storage
type Storage interface {
	// WipeAll deletes members first, then the reference tables. Import sessions are kept
	// as run history.
	WipeAll(ctx context.Context) error

	// Insert* store the given reference entities and return every stored row with its
	// surrogate id.
	InsertParties(ctx context.Context, parties []models.Party) ([]models.Party, error)
	InsertStates(ctx context.Context, states []models.State) ([]models.State, error)
	InsertDistricts(ctx context.Context, districts []models.ElectoralDistrict) ([]models.ElectoralDistrict, error)

	InsertMembers(ctx context.Context, members []models.Member) error
	UpdateMemberDetail(ctx context.Context, memberID string, detail models.MemberDetail) error
	ListMembers(ctx context.Context) ([]models.Member, error)
	// GetMember returns nil, nil when no member has the id
	GetMember(ctx context.Context, id string) (*models.Member, error)

	ListParties(ctx context.Context) ([]models.Party, error)
	ListStates(ctx context.Context) ([]models.State, error)
	ListDistricts(ctx context.Context) ([]models.ElectoralDistrict, error)

	CreateSession(ctx context.Context, session models.ImportSession) error
	UpdateSession(ctx context.Context, session models.ImportSession) error
	// GetSession returns nil, nil when no session has the id
	GetSession(ctx context.Context, sessionID string) (*models.ImportSession, error)
	LatestSession(ctx context.Context) (*models.ImportSession, error)

	Ping(ctx context.Context) error
	Close() error
}

// NewStorage creates a new storage instance based on configuration
func NewStorage(ctx context.Context, cfg config.StorageConfig, logger *logrus.Logger) (Storage, error) {
	switch cfg.Type {
	case "postgresql":
		return NewSQLStorage(ctx, "postgres", cfg.PostgresURI, logger)
	case "mysql":
		return NewSQLStorage(ctx, "mysql", cfg.MySQLDSN, logger)
	case "mongodb":
		return NewMongoDBStorage(ctx, cfg, logger)
	case "dynamodb":
		return NewDynamoDBStorage(cfg, logger)
	case "memory":
		return NewMemoryStorage(), nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

// applyDetail copies the enrichment fields onto a member
func applyDetail(m *models.Member, detail models.MemberDetail) {
	m.BirthDate = models.StringPtr(detail.BirthDate)
	m.BirthPlace = models.StringPtr(detail.BirthPlace)
	m.Occupation = models.StringPtr(detail.Occupation)
	m.CareerHistory = listOrNil(detail.CareerHistory)
	m.Education = listOrNil(detail.Education)
	m.PoliticalFunctions = listOrNil(detail.PoliticalFunctions)
	m.SocialMedia = nil
	if len(detail.SocialMedia) > 0 {
		m.SocialMedia = models.SocialLinks(detail.SocialMedia)
	}
}

func listOrNil(in []string) models.StringList {
	if len(in) == 0 {
		return nil
	}
	return models.StringList(in)
}
