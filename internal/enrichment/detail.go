package enrichment

import (
	"regexp"
	"strings"

	"github.com/parlamentwatch/member-ingestion-service/internal/models"
)

var (
	birthFullDate = regexp.MustCompile(`Geb\.: (\d{2}\.\d{2}\.\d{4}), (.+)`)
	birthYearOnly = regexp.MustCompile(`Geb\.: (\d{4}), (.+)`)
)

// ParseBirthInfo extracts date and place from texts like "Geb.: 13.08.1980, Voitsberg (Steiermark)".
// A year alone is accepted as the date. ok is false when neither form matches.
func ParseBirthInfo(text string) (date, place string, ok bool) {
	for _, re := range []*regexp.Regexp{birthFullDate, birthYearOnly} {
		if m := re.FindStringSubmatch(text); m != nil {
			return m[1], strings.TrimSpace(m[2]), true
		}
	}
	return "", "", false
}

// ParseDetail maps a biography payload onto the stored detail fields.
// birthParsed reports whether the birth text matched a known form.
func ParseDetail(p *models.DetailPayload) (detail models.MemberDetail, birthParsed bool) {
	if p == nil {
		return detail, false
	}
	bio := p.Content.Biografie.Kurzbiografie

	detail.BirthDate, detail.BirthPlace, birthParsed = ParseBirthInfo(bio.BirthText)
	detail.Occupation = strings.TrimSpace(bio.Occupation)
	detail.CareerHistory = nonEmpty(bio.CareerHistory)
	detail.Education = nonEmpty(bio.Education)
	detail.PoliticalFunctions = nonEmpty(bio.PoliticalFunctions)
	for _, link := range p.Content.Banner.SocialMedia {
		if link.URL != "" {
			detail.SocialMedia = append(detail.SocialMedia, link)
		}
	}
	return detail, birthParsed
}

func nonEmpty(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
