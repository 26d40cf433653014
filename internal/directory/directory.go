package directory

import (
	"context"
	"math"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"golang.org/x/sync/errgroup"

	"github.com/parlamentwatch/member-ingestion-service/internal/models"
	"github.com/parlamentwatch/member-ingestion-service/internal/storage"
)

const (
	DefaultLimit = 50
	MaxLimit     = 500
)

// MemberView is a member joined with its party, state and electoral district
type MemberView struct {
	models.Member
	Party    *models.Party             `json:"party,omitempty"`
	State    *models.State             `json:"state,omitempty"`
	District *models.ElectoralDistrict `json:"electoral_district,omitempty"`
}

// Filter narrows a member listing. Query must occur in the member's name, district or
// state; the other fields are exact. All comparisons ignore case and diacritics.
type Filter struct {
	Query    string
	Party    string
	State    string
	District string
	Limit    int
	Offset   int
}

type Page struct {
	Total   int          `json:"total"`
	Limit   int          `json:"limit"`
	Offset  int          `json:"offset"`
	Members []MemberView `json:"members"`
}

type PartyStat struct {
	models.Party
	MemberCount int     `json:"member_count"`
	Share       float64 `json:"share_percent"`
}

type StateStat struct {
	models.State
	MemberCount int `json:"member_count"`
}

type Stats struct {
	TotalMembers      int                   `json:"total_members"`
	TotalParties      int                   `json:"total_parties"`
	TotalStates       int                   `json:"total_states"`
	TotalDistricts    int                   `json:"total_districts"`
	WithBirthData     int                   `json:"members_with_birth_data"`
	PartyDistribution []PartyStat           `json:"party_distribution"`
	StateDistribution []StateStat           `json:"state_distribution"`
	LastImport        *models.ImportSession `json:"last_import,omitempty"`
}

// Directory answers read queries over the stored roster
type Directory struct {
	store storage.Storage
}

func New(store storage.Storage) *Directory {
	return &Directory{store: store}
}

type snapshot struct {
	members   []models.Member
	parties   map[int64]models.Party
	states    map[int64]models.State
	districts map[int64]models.ElectoralDistrict
	partyList []models.Party
	stateList []models.State
	distList  []models.ElectoralDistrict
}

func (d *Directory) load(ctx context.Context) (*snapshot, error) {
	s := &snapshot{}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		s.members, err = d.store.ListMembers(gctx)
		return err
	})
	g.Go(func() (err error) {
		s.partyList, err = d.store.ListParties(gctx)
		return err
	})
	g.Go(func() (err error) {
		s.stateList, err = d.store.ListStates(gctx)
		return err
	})
	g.Go(func() (err error) {
		s.distList, err = d.store.ListDistricts(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.parties = make(map[int64]models.Party, len(s.partyList))
	for _, p := range s.partyList {
		s.parties[p.ID] = p
	}
	s.states = make(map[int64]models.State, len(s.stateList))
	for _, st := range s.stateList {
		s.states[st.ID] = st
	}
	s.districts = make(map[int64]models.ElectoralDistrict, len(s.distList))
	for _, ed := range s.distList {
		s.districts[ed.ID] = ed
	}
	return s, nil
}

func (s *snapshot) view(m models.Member) MemberView {
	v := MemberView{Member: m}
	if p, ok := s.parties[m.PartyID]; ok {
		v.Party = &p
	}
	if st, ok := s.states[m.StateID]; ok {
		v.State = &st
	}
	if ed, ok := s.districts[m.ElectoralDistrictID]; ok {
		v.District = &ed
	}
	return v
}

// haystack is the searchable text: full name, district name and state name
func (v MemberView) haystack() string {
	parts := []string{v.FullName}
	if v.District != nil {
		parts = append(parts, v.District.Name)
	}
	if v.State != nil {
		parts = append(parts, v.State.Name)
	}
	return Fold(strings.Join(parts, " "))
}

func (f Filter) matches(v MemberView) bool {
	if f.Party != "" && (v.Party == nil || Fold(v.Party.ShortName) != Fold(f.Party)) {
		return false
	}
	if f.State != "" {
		if v.State == nil {
			return false
		}
		want := Fold(f.State)
		if Fold(v.State.Name) != want && Fold(v.State.ShortCode) != want {
			return false
		}
	}
	if f.District != "" && (v.District == nil || Fold(v.District.Code) != Fold(f.District)) {
		return false
	}
	return true
}

// Members lists joined members. Without a query they are ordered by last name; with a
// query by match quality.
func (d *Directory) Members(ctx context.Context, f Filter) (*Page, error) {
	s, err := d.load(ctx)
	if err != nil {
		return nil, err
	}

	var views []MemberView
	for _, m := range s.members {
		if v := s.view(m); f.matches(v) {
			views = append(views, v)
		}
	}
	if q := Fold(f.Query); q != "" {
		views = search(q, views)
	} else {
		sortByName(views)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	page := &Page{Total: len(views), Limit: limit, Offset: offset, Members: []MemberView{}}
	if offset < len(views) {
		end := offset + limit
		if end > len(views) {
			end = len(views)
		}
		page.Members = views[offset:end]
	}
	return page, nil
}

func sortByName(views []MemberView) {
	sort.SliceStable(views, func(i, j int) bool {
		if views[i].LastName != views[j].LastName {
			return views[i].LastName < views[j].LastName
		}
		return views[i].FullName < views[j].FullName
	})
}

// search keeps members whose haystack contains query and orders them by match
// distance, closest first
func search(query string, views []MemberView) []MemberView {
	var matched []MemberView
	var targets []string
	for _, v := range views {
		if h := v.haystack(); strings.Contains(h, query) {
			matched = append(matched, v)
			targets = append(targets, h)
		}
	}

	ranks := fuzzy.RankFindNormalizedFold(query, targets)
	sort.Stable(ranks)

	out := make([]MemberView, 0, len(ranks))
	for _, r := range ranks {
		out = append(out, matched[r.OriginalIndex])
	}
	return out
}

// Member returns one joined member, or nil if it does not exist
func (d *Directory) Member(ctx context.Context, id string) (*MemberView, error) {
	m, err := d.store.GetMember(ctx, id)
	if err != nil || m == nil {
		return nil, err
	}
	s, err := d.load(ctx)
	if err != nil {
		return nil, err
	}
	v := s.view(*m)
	return &v, nil
}

// All returns every joined member ordered by name
func (d *Directory) All(ctx context.Context) ([]MemberView, error) {
	s, err := d.load(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]MemberView, len(s.members))
	for i, m := range s.members {
		views[i] = s.view(m)
	}
	sortByName(views)
	return views, nil
}

// Parties returns all parties with member counts, largest first
func (d *Directory) Parties(ctx context.Context) ([]PartyStat, error) {
	s, err := d.load(ctx)
	if err != nil {
		return nil, err
	}
	return partyStats(s), nil
}

func partyStats(s *snapshot) []PartyStat {
	counts := make(map[int64]int, len(s.partyList))
	for _, m := range s.members {
		counts[m.PartyID]++
	}

	stats := make([]PartyStat, 0, len(s.partyList))
	for _, p := range s.partyList {
		stat := PartyStat{Party: p, MemberCount: counts[p.ID]}
		if len(s.members) > 0 {
			stat.Share = math.Round(float64(stat.MemberCount)*1000/float64(len(s.members))) / 10
		}
		stats = append(stats, stat)
	}
	sort.SliceStable(stats, func(i, j int) bool { return stats[i].MemberCount > stats[j].MemberCount })
	return stats
}

func (d *Directory) States(ctx context.Context) ([]models.State, error) {
	return d.store.ListStates(ctx)
}

func (d *Directory) Districts(ctx context.Context) ([]models.ElectoralDistrict, error) {
	return d.store.ListDistricts(ctx)
}

// Stats summarizes the current roster and the latest import
func (d *Directory) Stats(ctx context.Context) (*Stats, error) {
	s, err := d.load(ctx)
	if err != nil {
		return nil, err
	}
	last, err := d.store.LatestSession(ctx)
	if err != nil {
		return nil, err
	}

	stateCounts := make(map[int64]int, len(s.stateList))
	withBirth := 0
	for _, m := range s.members {
		stateCounts[m.StateID]++
		if m.BirthDate != nil {
			withBirth++
		}
	}
	stateStats := make([]StateStat, 0, len(s.stateList))
	for _, st := range s.stateList {
		stateStats = append(stateStats, StateStat{State: st, MemberCount: stateCounts[st.ID]})
	}
	sort.SliceStable(stateStats, func(i, j int) bool { return stateStats[i].MemberCount > stateStats[j].MemberCount })

	return &Stats{
		TotalMembers:      len(s.members),
		TotalParties:      len(s.partyList),
		TotalStates:       len(s.stateList),
		TotalDistricts:    len(s.distList),
		WithBirthData:     withBirth,
		PartyDistribution: partyStats(s),
		StateDistribution: stateStats,
		LastImport:        last,
	}, nil
}
