package ingestion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parlamentwatch/member-ingestion-service/internal/config"
	"github.com/parlamentwatch/member-ingestion-service/internal/logging"
	"github.com/parlamentwatch/member-ingestion-service/internal/models"
	"github.com/parlamentwatch/member-ingestion-service/internal/normalize"
	"github.com/parlamentwatch/member-ingestion-service/internal/roster"
	"github.com/parlamentwatch/member-ingestion-service/internal/storage"
	"github.com/parlamentwatch/member-ingestion-service/internal/upstream"
)

var (
	testParties = []string{"SPÖ", "ÖVP", "FPÖ", "GRÜNE", "NEOS", "Independent"}
	testStates  = []string{"Wien", "Niederösterreich", "Oberösterreich", "Steiermark", "Tirol", "Kärnten", "Salzburg", "Vorarlberg", "Burgenland"}
)

func rosterRows(n int) [][]string {
	rows := make([][]string, n)
	for i := range rows {
		party := testParties[i%len(testParties)]
		partyCell := fmt.Sprintf(`<span title="%s">%s</span>`, party, party)
		if party == "Independent" {
			partyCell = ""
		}
		state := testStates[i%len(testStates)]
		rows[i] = []string{
			fmt.Sprintf("Nachname%d Vorname%d, Mag.", i, i),
			partyCell,
			fmt.Sprintf("%d%c Wahlkreis %d", 1+i%9, 'A'+rune(i%4), i%36),
			fmt.Sprintf(`<span title="%s">%s</span>`, state, state[:1]),
			fmt.Sprintf("Nachname%d", i),
			"",
			"<div>Abgeordnete zum Nationalrat</div>",
			fmt.Sprintf("/person/%d", 10000+i),
		}
	}
	return rows
}

type fakeParliament struct {
	rosterStatus int
	rows         [][]string
	failDetail   string
	rosterCalls  atomic.Int32
	detailCalls  atomic.Int32
}

func (f *fakeParliament) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/Filter/api/json/post", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		f.rosterCalls.Add(1)
		if f.rosterStatus != 0 {
			w.WriteHeader(f.rosterStatus)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(models.RosterResponse{Count: len(f.rows), Pages: 1, Rows: f.rows})
	})
	mux.HandleFunc("/person/", func(w http.ResponseWriter, r *http.Request) {
		f.detailCalls.Add(1)
		id := strings.TrimPrefix(r.URL.Path, "/person/")
		if id == f.failDetail {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		var p models.DetailPayload
		p.Content.Biografie.Kurzbiografie.BirthText = "Geb.: 13.08.1980, Voitsberg (Steiermark)"
		p.Content.Biografie.Kurzbiografie.Occupation = "Juristin"
		p.Content.Biografie.Kurzbiografie.Education = []string{"Studium der Rechtswissenschaften", " "}
		p.Content.Banner.SocialMedia = []models.SocialMediaLink{{URL: "https://x.com/" + id, Name: "X", Type: "twitter"}}
		json.NewEncoder(w).Encode(p)
	})
	return mux
}

func newTestService(t *testing.T, f *fakeParliament, store storage.Storage, skipDetails bool) *Service {
	t.Helper()
	server := httptest.NewServer(f.handler())
	t.Cleanup(server.Close)

	logger := logging.Discard()
	client := upstream.NewClient(config.UpstreamConfig{
		BaseURL:    server.URL,
		FilterID:   "WFW_002",
		Chamber:    "NR",
		UserAgent:  "test",
		Timeout:    5 * time.Second,
		RetryCount: 1,
	}, logger)
	parser := roster.NewParser(roster.DefaultLayout, roster.RegexDecoder{}, client.BaseURL())

	cfg := config.IngestionConfig{MaxConcurrent: 5, BatchDelay: 0, SkipDetails: skipDetails}
	return NewService(cfg, client, parser, store, logger)
}

func TestService_Run_EndToEnd(t *testing.T) {
	f := &fakeParliament{rows: rosterRows(183), failDetail: "10007"}
	store := storage.NewMemoryStorage()
	svc := newTestService(t, f, store, false)

	result, err := svc.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 183, result.TotalMembers)
	assert.Equal(t, 183, result.ProcessedMembers)
	assert.Equal(t, 182, result.DetailedDataFetched)
	assert.Equal(t, 1, result.DetailedDataFailed)
	assert.Equal(t, 1, result.Pages)
	assert.True(t, result.SessionCompleted)
	assert.Equal(t, int32(183), f.detailCalls.Load())

	members, err := store.ListMembers(context.Background())
	require.NoError(t, err)
	require.Len(t, members, 183)
	for _, m := range members {
		assert.NotZero(t, m.PartyID, m.ID)
		assert.NotZero(t, m.StateID, m.ID)
		assert.NotZero(t, m.ElectoralDistrictID, m.ID)
	}

	parties, _ := store.ListParties(context.Background())
	assert.Len(t, parties, 6)

	enriched, err := store.GetMember(context.Background(), "10000")
	require.NoError(t, err)
	require.NotNil(t, enriched)
	require.NotNil(t, enriched.BirthDate)
	assert.Equal(t, "13.08.1980", *enriched.BirthDate)
	assert.Equal(t, "Juristin", *enriched.Occupation)
	assert.Equal(t, models.StringList{"Studium der Rechtswissenschaften"}, enriched.Education)
	require.Len(t, enriched.SocialMedia, 1)
	assert.Equal(t, "https://x.com/10000", enriched.SocialMedia[0].URL)

	failed, _ := store.GetMember(context.Background(), "10007")
	assert.Nil(t, failed.BirthDate)

	sess, err := store.GetSession(context.Background(), result.SessionID)
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, models.SessionCompleted, sess.Status)
	assert.Equal(t, 183, sess.TotalRecords)
	assert.Equal(t, 183, sess.ImportedRecords)
	assert.NotNil(t, sess.CompletedAt)
}

func TestService_Run_RerunReplacesData(t *testing.T) {
	f := &fakeParliament{rows: rosterRows(20)}
	store := storage.NewMemoryStorage()
	svc := newTestService(t, f, store, true)

	_, err := svc.Run(context.Background())
	require.NoError(t, err)

	f.rows = rosterRows(10)
	result, err := svc.Run(context.Background())
	require.NoError(t, err)

	members, _ := store.ListMembers(context.Background())
	assert.Len(t, members, 10)
	assert.Equal(t, 0, result.DetailedDataFetched)
	assert.Equal(t, int32(0), f.detailCalls.Load())
}

func TestService_Run_UpstreamFailure(t *testing.T) {
	f := &fakeParliament{rosterStatus: http.StatusServiceUnavailable}
	store := storage.NewMemoryStorage()
	svc := newTestService(t, f, store, false)

	result, err := svc.Run(context.Background())

	assert.Nil(t, result)
	require.Error(t, err)

	var runErr *RunError
	require.True(t, errors.As(err, &runErr))
	assert.NotEmpty(t, runErr.SessionID)

	var apiErr *upstream.UpstreamError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)

	sess, err := store.GetSession(context.Background(), runErr.SessionID)
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, models.SessionFailed, sess.Status)
	require.NotNil(t, sess.Error)
	assert.Contains(t, *sess.Error, "503")

	members, _ := store.ListMembers(context.Background())
	assert.Empty(t, members)
}

type failingStateStore struct {
	*storage.MemoryStorage
}

func (s failingStateStore) InsertStates(ctx context.Context, states []models.State) ([]models.State, error) {
	return nil, errors.New("failed to insert states: deadlock detected")
}

func TestService_Run_StorageFailureMarksSessionFailed(t *testing.T) {
	store := failingStateStore{storage.NewMemoryStorage()}
	svc := newTestService(t, &fakeParliament{rows: rosterRows(12)}, store, false)

	_, err := svc.Run(context.Background())

	require.Error(t, err)
	var runErr *RunError
	require.True(t, errors.As(err, &runErr))

	sess, _ := store.GetSession(context.Background(), runErr.SessionID)
	require.NotNil(t, sess)
	assert.Equal(t, models.SessionFailed, sess.Status)
	assert.Equal(t, 12, sess.TotalRecords)
	assert.Contains(t, *sess.Error, "deadlock detected")

	members, _ := store.ListMembers(context.Background())
	assert.Empty(t, members)
}

func TestService_Run_RejectsConcurrentRun(t *testing.T) {
	svc := newTestService(t, &fakeParliament{rows: rosterRows(1)}, storage.NewMemoryStorage(), true)

	svc.running.Lock()
	_, err := svc.Run(context.Background())
	svc.running.Unlock()

	assert.ErrorIs(t, err, ErrRunInProgress)

	_, err = svc.Run(context.Background())
	assert.NoError(t, err)
}

func TestService_Start_Disabled(t *testing.T) {
	svc := newTestService(t, &fakeParliament{}, storage.NewMemoryStorage(), true)

	assert.NoError(t, svc.Start(context.Background()))
}

func TestService_Start_RunsOnSchedule(t *testing.T) {
	f := &fakeParliament{rows: rosterRows(3)}
	svc := newTestService(t, f, storage.NewMemoryStorage(), true)
	svc.config.Interval = 10 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := svc.Start(ctx)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.GreaterOrEqual(t, f.rosterCalls.Load(), int32(2))
}

func TestAttachKeys_PositionalIDs(t *testing.T) {
	parsed := []models.ParsedMember{
		{FullName: "Ohne Profil", Party: "NEOS", State: "Wien", District: "9A Wien Nord"},
		{ExternalID: "1", FullName: "Mit Profil", Party: "NEOS", State: "Wien", District: "9A Wien Nord"},
		{ExternalID: "1", FullName: "Doppelt", Party: "NEOS", State: "Wien", District: "9A Wien Nord"},
	}
	keys := normalize.NewKeys(
		[]models.Party{{ID: 1, ShortName: "NEOS"}},
		[]models.State{{ID: 2, Name: "Wien"}},
		[]models.ElectoralDistrict{{ID: 3, Code: "9A"}},
	)

	members, err := attachKeys(parsed, keys, time.Now(), logging.Discard().WithField("test", true))

	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, "row-1", members[0].ID)
	assert.Empty(t, members[0].ExternalID)
	assert.Equal(t, "1", members[1].ID)
	assert.Equal(t, "Mit Profil", members[1].FullName)
	assert.True(t, members[1].IsActive)
}
