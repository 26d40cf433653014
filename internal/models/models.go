package models

import "time"

// RosterResponse is the bulk member export returned by the parliament filter API
type RosterResponse struct {
	Count int        `json:"count"`
	Pages int        `json:"pages"`
	Rows  [][]string `json:"rows"`
}

// DetailPayload is the per-member biography object returned by /person/{id}?json=true
type DetailPayload struct {
	PageType string        `json:"pagetype"`
	Content  DetailContent `json:"content"`
}

type DetailContent struct {
	Biografie struct {
		Kurzbiografie ShortBiography `json:"kurzbiografie"`
	} `json:"biografie"`
	Banner struct {
		SocialMedia []SocialMediaLink `json:"socialMedia"`
	} `json:"banner"`
}

type ShortBiography struct {
	BirthText          string   `json:"gebtext"`
	Occupation         string   `json:"beruflicheTaetigkeit"`
	CareerHistory      []string `json:"beruflicherWerdegang"`
	Education          []string `json:"bildungsweg"`
	PoliticalFunctions []string `json:"politischeFunktionen"`
}

type SocialMediaLink struct {
	URL  string `json:"url" bson:"url"`
	Name string `json:"name" bson:"name"`
	Type string `json:"type" bson:"type"`
}

// ParsedMember is one roster row after decoding, before foreign keys exist
type ParsedMember struct {
	ExternalID   string
	FullName     string
	FirstName    string
	LastName     string
	Title        string
	ProfileURL   string
	DetailedInfo string
	Party        string
	State        string
	District     string // raw district string, e.g. "4D Traunviertel"
}

// MemberDetail holds the fields extracted from a DetailPayload
type MemberDetail struct {
	BirthDate          string            `json:"birth_date,omitempty"`
	BirthPlace         string            `json:"birth_place,omitempty"`
	Occupation         string            `json:"occupation,omitempty"`
	CareerHistory      []string          `json:"career_history,omitempty"`
	Education          []string          `json:"education,omitempty"`
	PoliticalFunctions []string          `json:"political_functions,omitempty"`
	SocialMedia        []SocialMediaLink `json:"social_media,omitempty"`
}

type Party struct {
	ID        int64  `json:"id" db:"id" bson:"id"`
	Name      string `json:"name" db:"name" bson:"name"`
	ShortName string `json:"short_name" db:"short_name" bson:"short_name"`
	Color     string `json:"color" db:"color" bson:"color"`
}

type State struct {
	ID        int64  `json:"id" db:"id" bson:"id"`
	Name      string `json:"name" db:"name" bson:"name"`
	ShortCode string `json:"short_code" db:"short_code" bson:"short_code"`
}

type ElectoralDistrict struct {
	ID       int64  `json:"id" db:"id" bson:"id"`
	Code     string `json:"code" db:"code" bson:"code"`
	Name     string `json:"name" db:"name" bson:"name"`
	FullName string `json:"full_name" db:"full_name" bson:"full_name"`
}

// Member is a stored parliament member. ExternalID is the parliament's person id and is
// empty when the roster row carried no profile path.
type Member struct {
	ID                  string    `json:"id" db:"id" bson:"id"`
	ExternalID          string    `json:"external_id,omitempty" db:"external_id" bson:"external_id,omitempty"`
	FullName            string    `json:"full_name" db:"full_name" bson:"full_name"`
	FirstName           *string   `json:"first_name,omitempty" db:"first_name" bson:"first_name,omitempty"`
	LastName            string    `json:"last_name" db:"last_name" bson:"last_name"`
	Title               *string   `json:"title,omitempty" db:"title" bson:"title,omitempty"`
	ProfileURL          *string   `json:"profile_url,omitempty" db:"profile_url" bson:"profile_url,omitempty"`
	ProfileImageURL     *string   `json:"profile_image_url,omitempty" db:"profile_image_url" bson:"profile_image_url,omitempty"`
	DetailedInfo        *string   `json:"detailed_info,omitempty" db:"detailed_info" bson:"detailed_info,omitempty"`
	PartyID             int64     `json:"party_id" db:"party_id" bson:"party_id"`
	StateID             int64     `json:"state_id" db:"state_id" bson:"state_id"`
	ElectoralDistrictID int64     `json:"electoral_district_id" db:"electoral_district_id" bson:"electoral_district_id"`
	FetchedAt           time.Time `json:"fetched_at" db:"fetched_at" bson:"fetched_at"`
	IsActive            bool      `json:"is_active" db:"is_active" bson:"is_active"`
	BirthDate           *string   `json:"birth_date,omitempty" db:"birth_date" bson:"birth_date,omitempty"`
	BirthPlace          *string   `json:"birth_place,omitempty" db:"birth_place" bson:"birth_place,omitempty"`
	Occupation          *string   `json:"occupation,omitempty" db:"occupation" bson:"occupation,omitempty"`

	CareerHistory      StringList  `json:"career_history,omitempty" db:"career_history" bson:"career_history,omitempty"`
	Education          StringList  `json:"education,omitempty" db:"education" bson:"education,omitempty"`
	PoliticalFunctions StringList  `json:"political_functions,omitempty" db:"political_functions" bson:"political_functions,omitempty"`
	SocialMedia        SocialLinks `json:"social_media,omitempty" db:"social_media" bson:"social_media,omitempty"`
}

// SessionStatus is the lifecycle state of an ImportSession
type SessionStatus string

const (
	SessionProcessing SessionStatus = "processing"
	SessionCompleted  SessionStatus = "completed"
	SessionFailed     SessionStatus = "failed"
)

// ImportSession tracks one ingestion run
type ImportSession struct {
	SessionID       string        `json:"session_id" db:"session_id" bson:"session_id"`
	TotalRecords    int           `json:"total_records" db:"total_records" bson:"total_records"`
	ImportedRecords int           `json:"imported_records" db:"imported_records" bson:"imported_records"`
	Status          SessionStatus `json:"status" db:"status" bson:"status"`
	StartedAt       time.Time     `json:"started_at" db:"started_at" bson:"started_at"`
	CompletedAt     *time.Time    `json:"completed_at,omitempty" db:"completed_at" bson:"completed_at,omitempty"`
	Error           *string       `json:"error,omitempty" db:"error" bson:"error,omitempty"`
}

// RunResult summarizes a completed ingestion run
type RunResult struct {
	SessionID           string    `json:"session_id"`
	TotalMembers        int       `json:"total_members"`
	ProcessedMembers    int       `json:"processed_members"`
	DetailedDataFetched int       `json:"detailed_data_fetched"`
	DetailedDataFailed  int       `json:"detailed_data_failed"`
	Pages               int       `json:"pages"`
	FetchedAt           time.Time `json:"fetched_at"`
	SessionCompleted    bool      `json:"import_session_completed"`
}

// StringPtr returns nil for empty strings so optional columns stay NULL
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
