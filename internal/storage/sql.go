package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/sirupsen/logrus"

	"github.com/parlamentwatch/member-ingestion-service/internal/models"
)

// memberBatchSize keeps bulk inserts well under both drivers' placeholder limits
const memberBatchSize = 500

// SQLStorage implements Storage on PostgreSQL or MySQL through sqlx
type SQLStorage struct {
	db      *sqlx.DB
	dialect dialect
	logger  *logrus.Logger
}

// NewSQLStorage opens the database, tunes the pool and creates missing tables.
// driver is "postgres" or "mysql".
func NewSQLStorage(ctx context.Context, driver, dsn string, logger *logrus.Logger) (*SQLStorage, error) {
	d, ok := dialects[driver]
	if !ok {
		return nil, fmt.Errorf("unsupported sql driver: %s", driver)
	}

	if driver == "mysql" {
		// time columns must scan into time.Time, and an UPDATE that changes nothing must
		// still report the matched row
		mcfg, err := mysql.ParseDSN(dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to parse mysql dsn: %w", err)
		}
		mcfg.ParseTime = true
		mcfg.ClientFoundRows = true
		dsn = mcfg.FormatDSN()
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &SQLStorage{db: db, dialect: d, logger: logger}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	logger.WithField("driver", driver).Info("connected to database")
	return s, nil
}

func newSQLStorageFromDB(db *sqlx.DB, logger *logrus.Logger) *SQLStorage {
	return &SQLStorage{db: db, dialect: dialects[db.DriverName()], logger: logger}
}

func (s *SQLStorage) migrate(ctx context.Context) error {
	for _, stmt := range s.dialect.schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

// WipeAll clears members before the tables they reference
func (s *SQLStorage) WipeAll(ctx context.Context) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin wipe transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"parliament_member", "party", "state", "electoral_district"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to wipe %s: %w", table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit wipe: %w", err)
	}
	s.logger.Info("wiped existing parliament data")
	return nil
}

func (s *SQLStorage) InsertParties(ctx context.Context, parties []models.Party) ([]models.Party, error) {
	if len(parties) > 0 {
		query := s.dialect.insertIgnore("party", "(name, short_name, color) VALUES (:name, :short_name, :color)", "short_name")
		if _, err := s.db.NamedExecContext(ctx, query, parties); err != nil {
			return nil, fmt.Errorf("failed to insert parties: %w", err)
		}
	}
	return s.ListParties(ctx)
}

func (s *SQLStorage) InsertStates(ctx context.Context, states []models.State) ([]models.State, error) {
	if len(states) > 0 {
		query := s.dialect.insertIgnore("state", "(name, short_code) VALUES (:name, :short_code)", "name")
		if _, err := s.db.NamedExecContext(ctx, query, states); err != nil {
			return nil, fmt.Errorf("failed to insert states: %w", err)
		}
	}
	return s.ListStates(ctx)
}

func (s *SQLStorage) InsertDistricts(ctx context.Context, districts []models.ElectoralDistrict) ([]models.ElectoralDistrict, error) {
	if len(districts) > 0 {
		query := s.dialect.insertIgnore("electoral_district", "(code, name, full_name) VALUES (:code, :name, :full_name)", "code")
		if _, err := s.db.NamedExecContext(ctx, query, districts); err != nil {
			return nil, fmt.Errorf("failed to insert electoral districts: %w", err)
		}
	}
	return s.ListDistricts(ctx)
}

func (s *SQLStorage) InsertMembers(ctx context.Context, members []models.Member) error {
	query := s.dialect.insertIgnore("parliament_member", `(
		id, external_id, full_name, first_name, last_name, title, profile_url, profile_image_url,
		detailed_info, party_id, state_id, electoral_district_id, fetched_at, is_active,
		birth_date, birth_place, occupation, career_history, education, political_functions, social_media
	) VALUES (
		:id, :external_id, :full_name, :first_name, :last_name, :title, :profile_url, :profile_image_url,
		:detailed_info, :party_id, :state_id, :electoral_district_id, :fetched_at, :is_active,
		:birth_date, :birth_place, :occupation, :career_history, :education, :political_functions, :social_media
	)`, "id")

	for start := 0; start < len(members); start += memberBatchSize {
		end := start + memberBatchSize
		if end > len(members) {
			end = len(members)
		}
		if _, err := s.db.NamedExecContext(ctx, query, members[start:end]); err != nil {
			return fmt.Errorf("failed to insert members %d-%d: %w", start, end, err)
		}
	}
	return nil
}

func (s *SQLStorage) UpdateMemberDetail(ctx context.Context, memberID string, detail models.MemberDetail) error {
	var m models.Member
	applyDetail(&m, detail)
	query := s.db.Rebind(`UPDATE parliament_member SET birth_date = ?, birth_place = ?, occupation = ?,
		career_history = ?, education = ?, political_functions = ?, social_media = ? WHERE id = ?`)
	res, err := s.db.ExecContext(ctx, query, m.BirthDate, m.BirthPlace, m.Occupation,
		m.CareerHistory, m.Education, m.PoliticalFunctions, m.SocialMedia, memberID)
	if err != nil {
		return fmt.Errorf("failed to update member %s: %w", memberID, err)
	}
	return requireAffected(res, "member "+memberID)
}

const memberColumns = `id, external_id, full_name, first_name, last_name, title, profile_url, profile_image_url,
	detailed_info, party_id, state_id, electoral_district_id, fetched_at, is_active,
	birth_date, birth_place, occupation, career_history, education, political_functions, social_media`

func (s *SQLStorage) ListMembers(ctx context.Context) ([]models.Member, error) {
	var members []models.Member
	if err := s.db.SelectContext(ctx, &members, `SELECT `+memberColumns+` FROM parliament_member ORDER BY last_name, full_name`); err != nil {
		return nil, fmt.Errorf("failed to query members: %w", err)
	}
	return members, nil
}

func (s *SQLStorage) GetMember(ctx context.Context, id string) (*models.Member, error) {
	var m models.Member
	err := s.db.GetContext(ctx, &m, s.db.Rebind(`SELECT `+memberColumns+` FROM parliament_member WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get member %s: %w", id, err)
	}
	return &m, nil
}

func (s *SQLStorage) ListParties(ctx context.Context) ([]models.Party, error) {
	var parties []models.Party
	if err := s.db.SelectContext(ctx, &parties, `SELECT id, name, short_name, color FROM party ORDER BY id`); err != nil {
		return nil, fmt.Errorf("failed to query parties: %w", err)
	}
	return parties, nil
}

func (s *SQLStorage) ListStates(ctx context.Context) ([]models.State, error) {
	var states []models.State
	if err := s.db.SelectContext(ctx, &states, `SELECT id, name, short_code FROM state ORDER BY id`); err != nil {
		return nil, fmt.Errorf("failed to query states: %w", err)
	}
	return states, nil
}

func (s *SQLStorage) ListDistricts(ctx context.Context) ([]models.ElectoralDistrict, error) {
	var districts []models.ElectoralDistrict
	if err := s.db.SelectContext(ctx, &districts, `SELECT id, code, name, full_name FROM electoral_district ORDER BY id`); err != nil {
		return nil, fmt.Errorf("failed to query electoral districts: %w", err)
	}
	return districts, nil
}

func (s *SQLStorage) CreateSession(ctx context.Context, session models.ImportSession) error {
	_, err := s.db.NamedExecContext(ctx, `INSERT INTO data_import_session (
		session_id, total_records, imported_records, status, started_at, completed_at, error
	) VALUES (:session_id, :total_records, :imported_records, :status, :started_at, :completed_at, :error)`, session)
	if err != nil {
		return fmt.Errorf("failed to create import session %s: %w", session.SessionID, err)
	}
	return nil
}

func (s *SQLStorage) UpdateSession(ctx context.Context, session models.ImportSession) error {
	res, err := s.db.NamedExecContext(ctx, `UPDATE data_import_session SET
		total_records = :total_records,
		imported_records = :imported_records,
		status = :status,
		completed_at = :completed_at,
		error = :error
	WHERE session_id = :session_id`, session)
	if err != nil {
		return fmt.Errorf("failed to update import session %s: %w", session.SessionID, err)
	}
	return requireAffected(res, "session "+session.SessionID)
}

const sessionColumns = `session_id, total_records, imported_records, status, started_at, completed_at, error`

func (s *SQLStorage) GetSession(ctx context.Context, sessionID string) (*models.ImportSession, error) {
	var session models.ImportSession
	err := s.db.GetContext(ctx, &session, s.db.Rebind(`SELECT `+sessionColumns+` FROM data_import_session WHERE session_id = ?`), sessionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get import session %s: %w", sessionID, err)
	}
	return &session, nil
}

func (s *SQLStorage) LatestSession(ctx context.Context) (*models.ImportSession, error) {
	var session models.ImportSession
	err := s.db.GetContext(ctx, &session, `SELECT `+sessionColumns+` FROM data_import_session ORDER BY started_at DESC LIMIT 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest import session: %w", err)
	}
	return &session, nil
}

func (s *SQLStorage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection pool
func (s *SQLStorage) Close() error {
	return s.db.Close()
}

func requireAffected(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows for %s: %w", what, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return nil
}
