package roster

import (
	"strings"

	"github.com/parlamentwatch/member-ingestion-service/internal/models"
	"github.com/parlamentwatch/member-ingestion-service/internal/upstream"
)

// Defaults substituted for missing or malformed cells
const (
	UnknownMember   = "Unknown Member"
	Independent     = "Independent"
	UnknownDistrict = "Unknown District"
	UnknownState    = "Unknown State"
)

// Parser turns raw roster rows into ParsedMember records
type Parser struct {
	layout  ColumnLayout
	decoder FragmentDecoder
	baseURL string
}

// NewParser creates a parser; baseURL is prefixed to relative profile paths
func NewParser(layout ColumnLayout, decoder FragmentDecoder, baseURL string) *Parser {
	if decoder == nil {
		decoder = RegexDecoder{}
	}
	return &Parser{
		layout:  layout,
		decoder: decoder,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Layout returns the column layout in use
func (p *Parser) Layout() ColumnLayout {
	return p.layout
}

// ParseRows parses every row, in order
func (p *Parser) ParseRows(rows [][]string) []models.ParsedMember {
	parsed := make([]models.ParsedMember, len(rows))
	for i, row := range rows {
		parsed[i] = p.ParseRow(row)
	}
	return parsed
}

// ParseRow never fails: missing cells fall back to the documented defaults.
func (p *Parser) ParseRow(row []string) models.ParsedMember {
	fullName := cell(row, p.layout.FullName)
	if fullName == "" {
		fullName = UnknownMember
	}

	party, ok := p.decoder.PartyName(cell(row, p.layout.Party))
	if !ok {
		party = Independent
	}

	district := cell(row, p.layout.District)
	if district == "" {
		district = UnknownDistrict
	}

	state, ok := p.decoder.StateName(cell(row, p.layout.State))
	if !ok {
		state = UnknownState
	}

	profilePath := cell(row, p.layout.ProfilePath)
	if profilePath == "" {
		profilePath = cell(row, p.layout.ProfilePathFallback)
	}
	var profileURL, externalID string
	if profilePath != "" {
		profileURL = p.absolute(profilePath)
		externalID, _ = upstream.ExtractMemberID(profilePath)
	}

	firstName, title := SplitName(fullName)

	return models.ParsedMember{
		ExternalID:   externalID,
		FullName:     fullName,
		FirstName:    firstName,
		LastName:     cell(row, p.layout.LastName),
		Title:        title,
		ProfileURL:   profileURL,
		DetailedInfo: cell(row, p.layout.DetailedInfo),
		Party:        party,
		State:        state,
		District:     district,
	}
}

func (p *Parser) absolute(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return p.baseURL + path
}

// SplitName decomposes "Last First, Title" into first name and title.
// The surname comes first in the export, so the first name is the second token before the
// comma; a single token is used as-is. Multi-word given names are not handled.
func SplitName(fullName string) (firstName, title string) {
	withoutTitle := fullName
	if idx := strings.Index(fullName, ","); idx >= 0 {
		withoutTitle = fullName[:idx]
		title = strings.TrimSpace(fullName[idx+1:])
	}

	parts := strings.Split(withoutTitle, " ")
	if len(parts) >= 2 && parts[1] != "" {
		firstName = parts[1]
	} else {
		firstName = parts[0]
	}
	return firstName, title
}
