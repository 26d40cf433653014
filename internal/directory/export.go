package directory

// ExportRow is the flat CSV shape of a member
type ExportRow struct {
	ID           string `csv:"id"`
	FullName     string `csv:"full_name"`
	FirstName    string `csv:"first_name"`
	LastName     string `csv:"last_name"`
	Title        string `csv:"title"`
	Party        string `csv:"party"`
	State        string `csv:"state"`
	DistrictCode string `csv:"district_code"`
	DistrictName string `csv:"district_name"`
	BirthDate    string `csv:"birth_date"`
	BirthPlace   string `csv:"birth_place"`
	Occupation   string `csv:"occupation"`
	ProfileURL   string `csv:"profile_url"`
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// ExportRows flattens joined members for CSV export
func ExportRows(views []MemberView) []ExportRow {
	rows := make([]ExportRow, len(views))
	for i, v := range views {
		row := ExportRow{
			ID:         v.ID,
			FullName:   v.FullName,
			FirstName:  deref(v.FirstName),
			LastName:   v.LastName,
			Title:      deref(v.Title),
			BirthDate:  deref(v.BirthDate),
			BirthPlace: deref(v.BirthPlace),
			Occupation: deref(v.Occupation),
			ProfileURL: deref(v.ProfileURL),
		}
		if v.Party != nil {
			row.Party = v.Party.ShortName
		}
		if v.State != nil {
			row.State = v.State.Name
		}
		if v.District != nil {
			row.DistrictCode = v.District.Code
			row.DistrictName = v.District.Name
		}
		rows[i] = row
	}
	return rows
}
