package storage

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parlamentwatch/member-ingestion-service/internal/logging"
	"github.com/parlamentwatch/member-ingestion-service/internal/models"
)

func newMockSQLStorage(t *testing.T, driver string) (*SQLStorage, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return newSQLStorageFromDB(sqlx.NewDb(db, driver), logging.Discard()), mock
}

func TestSQLStorage_WipeAll(t *testing.T) {
	s, mock := newMockSQLStorage(t, "postgres")

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM parliament_member").WillReturnResult(sqlmock.NewResult(0, 183))
	mock.ExpectExec("DELETE FROM party").WillReturnResult(sqlmock.NewResult(0, 6))
	mock.ExpectExec("DELETE FROM state").WillReturnResult(sqlmock.NewResult(0, 9))
	mock.ExpectExec("DELETE FROM electoral_district").WillReturnResult(sqlmock.NewResult(0, 39))
	mock.ExpectCommit()

	require.NoError(t, s.WipeAll(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStorage_WipeAll_RollsBackOnError(t *testing.T) {
	s, mock := newMockSQLStorage(t, "postgres")

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM parliament_member").WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	err := s.WipeAll(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to wipe parliament_member")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStorage_InsertParties_Postgres(t *testing.T) {
	s, mock := newMockSQLStorage(t, "postgres")

	mock.ExpectExec(`INSERT INTO party .* ON CONFLICT \(short_name\) DO NOTHING`).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectQuery("SELECT id, name, short_name, color FROM party").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "short_name", "color"}).
			AddRow(1, "SPÖ", "SPÖ", "#E31E24").
			AddRow(2, "NEOS", "NEOS", "#FF6B9D"))

	parties, err := s.InsertParties(context.Background(), []models.Party{
		{Name: "SPÖ", ShortName: "SPÖ", Color: "#E31E24"},
		{Name: "NEOS", ShortName: "NEOS", Color: "#FF6B9D"},
	})

	require.NoError(t, err)
	require.Len(t, parties, 2)
	assert.Equal(t, int64(2), parties[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStorage_InsertStates_MySQL(t *testing.T) {
	s, mock := newMockSQLStorage(t, "mysql")

	mock.ExpectExec(`INSERT IGNORE INTO state`).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery("SELECT id, name, short_code FROM state").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "short_code"}).AddRow(1, "Wien", "W"))

	states, err := s.InsertStates(context.Background(), []models.State{{Name: "Wien", ShortCode: "W"}})

	require.NoError(t, err)
	assert.Equal(t, []models.State{{ID: 1, Name: "Wien", ShortCode: "W"}}, states)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStorage_InsertMembers_Empty(t *testing.T) {
	s, mock := newMockSQLStorage(t, "postgres")

	require.NoError(t, s.InsertMembers(context.Background(), nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStorage_GetMember_NotFound(t *testing.T) {
	s, mock := newMockSQLStorage(t, "postgres")

	mock.ExpectQuery(`FROM parliament_member WHERE id = \$1`).
		WithArgs("99999").
		WillReturnError(sql.ErrNoRows)

	m, err := s.GetMember(context.Background(), "99999")

	assert.NoError(t, err)
	assert.Nil(t, m)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStorage_UpdateMemberDetail(t *testing.T) {
	s, mock := newMockSQLStorage(t, "postgres")

	mock.ExpectExec(`UPDATE parliament_member SET birth_date = \$1, .* social_media = \$7 WHERE id = \$8`).
		WithArgs("15.03.1975", "Wien", nil, `["Landwirt","Bürgermeister"]`, nil, nil,
			`[{"url":"https://x.com/abg","name":"X","type":"twitter"}]`, "12345").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE parliament_member`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ctx := context.Background()
	require.NoError(t, s.UpdateMemberDetail(ctx, "12345", models.MemberDetail{
		BirthDate:     "15.03.1975",
		BirthPlace:    "Wien",
		CareerHistory: []string{"Landwirt", "Bürgermeister"},
		SocialMedia:   []models.SocialMediaLink{{URL: "https://x.com/abg", Name: "X", Type: "twitter"}},
	}))

	err := s.UpdateMemberDetail(ctx, "missing", models.MemberDetail{})
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStorage_LatestSession(t *testing.T) {
	s, mock := newMockSQLStorage(t, "postgres")
	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`FROM data_import_session ORDER BY started_at DESC LIMIT 1`).
		WillReturnRows(sqlmock.NewRows([]string{"session_id", "total_records", "imported_records", "status", "started_at", "completed_at", "error"}).
			AddRow("abc", 183, 0, "processing", started, nil, nil))

	session, err := s.LatestSession(context.Background())

	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, models.SessionProcessing, session.Status)
	assert.Equal(t, 183, session.TotalRecords)
	assert.Nil(t, session.CompletedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStorage_UpdateSession_Missing(t *testing.T) {
	s, mock := newMockSQLStorage(t, "postgres")

	mock.ExpectExec(`UPDATE data_import_session SET`).WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.UpdateSession(context.Background(), models.ImportSession{SessionID: "gone", Status: models.SessionFailed})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDialects_InsertIgnore(t *testing.T) {
	assert.Equal(t,
		"INSERT INTO state (name) VALUES (:name) ON CONFLICT (name) DO NOTHING",
		dialects["postgres"].insertIgnore("state", "(name) VALUES (:name)", "name"))
	assert.Equal(t,
		"INSERT IGNORE INTO state (name) VALUES (:name)",
		dialects["mysql"].insertIgnore("state", "(name) VALUES (:name)", "name"))
}

func TestSQLStorage_GetMember_DecodesBiographyColumns(t *testing.T) {
	s, mock := newMockSQLStorage(t, "mysql")
	fetched := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`FROM parliament_member WHERE id = \?`).
		WithArgs("35518").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "external_id", "full_name", "first_name", "last_name", "title", "profile_url", "profile_image_url",
			"detailed_info", "party_id", "state_id", "electoral_district_id", "fetched_at", "is_active",
			"birth_date", "birth_place", "occupation", "career_history", "education", "political_functions", "social_media",
		}).AddRow(
			"35518", "35518", "Höfinger Johann", "Johann", "Höfinger", nil, nil, nil,
			nil, 1, 2, 3, fetched, true,
			"24.06.1969", "Linz", "Landwirt", []byte(`["Landwirt"]`), []byte(`["HTL Linz"]`), nil,
			[]byte(`[{"url":"https://x.com/jh","name":"X","type":"twitter"}]`),
		))

	m, err := s.GetMember(context.Background(), "35518")

	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, models.StringList{"Landwirt"}, m.CareerHistory)
	assert.Equal(t, models.StringList{"HTL Linz"}, m.Education)
	assert.Nil(t, m.PoliticalFunctions)
	require.Len(t, m.SocialMedia, 1)
	assert.Equal(t, "https://x.com/jh", m.SocialMedia[0].URL)
	assert.NoError(t, mock.ExpectationsWereMet())
}
