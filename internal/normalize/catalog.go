package normalize

import "github.com/parlamentwatch/member-ingestion-service/internal/models"

// Catalog collects the unique reference entities referenced by one run's rows.
// It is transient: built once per run, discarded after the bulk insert.
type Catalog struct {
	parties    map[string]models.Party
	partyKeys  []string
	states     map[string]models.State
	stateKeys  []string
	districts  map[string]models.ElectoralDistrict
	districtKs []string
}

// NewCatalog returns an empty catalog
func NewCatalog() *Catalog {
	return &Catalog{
		parties:   make(map[string]models.Party),
		states:    make(map[string]models.State),
		districts: make(map[string]models.ElectoralDistrict),
	}
}

// Build runs the single dedup pass over all parsed members
func Build(members []models.ParsedMember) *Catalog {
	c := NewCatalog()
	for _, m := range members {
		c.Add(m)
	}
	return c
}

// Add registers the party, state and district of one member if not yet seen
func (c *Catalog) Add(m models.ParsedMember) {
	if _, ok := c.parties[m.Party]; !ok {
		c.parties[m.Party] = models.Party{
			Name:      m.Party,
			ShortName: m.Party,
			Color:     PartyColor(m.Party),
		}
		c.partyKeys = append(c.partyKeys, m.Party)
	}

	if _, ok := c.states[m.State]; !ok {
		c.states[m.State] = models.State{
			Name:      m.State,
			ShortCode: StateShortCode(m.State),
		}
		c.stateKeys = append(c.stateKeys, m.State)
	}

	code := DistrictCode(m.District)
	if _, ok := c.districts[code]; !ok {
		c.districts[code] = models.ElectoralDistrict{
			Code:     code,
			Name:     DistrictName(m.District),
			FullName: m.District,
		}
		c.districtKs = append(c.districtKs, code)
	}
}

// Parties returns the unique parties in first-seen order
func (c *Catalog) Parties() []models.Party {
	out := make([]models.Party, len(c.partyKeys))
	for i, k := range c.partyKeys {
		out[i] = c.parties[k]
	}
	return out
}

// States returns the unique states in first-seen order
func (c *Catalog) States() []models.State {
	out := make([]models.State, len(c.stateKeys))
	for i, k := range c.stateKeys {
		out[i] = c.states[k]
	}
	return out
}

// Districts returns the unique districts in first-seen order
func (c *Catalog) Districts() []models.ElectoralDistrict {
	out := make([]models.ElectoralDistrict, len(c.districtKs))
	for i, k := range c.districtKs {
		out[i] = c.districts[k]
	}
	return out
}

// Keys maps natural keys to surrogate ids once the reference entities are stored
type Keys struct {
	PartyIDs    map[string]int64
	StateIDs    map[string]int64
	DistrictIDs map[string]int64
}

// NewKeys builds lookup maps from stored entities
func NewKeys(parties []models.Party, states []models.State, districts []models.ElectoralDistrict) Keys {
	k := Keys{
		PartyIDs:    make(map[string]int64, len(parties)),
		StateIDs:    make(map[string]int64, len(states)),
		DistrictIDs: make(map[string]int64, len(districts)),
	}
	for _, p := range parties {
		k.PartyIDs[p.ShortName] = p.ID
	}
	for _, s := range states {
		k.StateIDs[s.Name] = s.ID
	}
	for _, d := range districts {
		k.DistrictIDs[d.Code] = d.ID
	}
	return k
}
