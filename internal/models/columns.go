package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// StringList is a list of strings kept in a single JSON text column
type StringList []string

// Value stores an empty list as NULL
func (l StringList) Value() (driver.Value, error) {
	return jsonColumn(len(l), l)
}

func (l *StringList) Scan(src interface{}) error {
	return scanJSONColumn(src, l)
}

// SocialLinks is a member's social media profiles, kept in a single JSON text column
type SocialLinks []SocialMediaLink

func (l SocialLinks) Value() (driver.Value, error) {
	return jsonColumn(len(l), l)
}

func (l *SocialLinks) Scan(src interface{}) error {
	return scanJSONColumn(src, l)
}

func jsonColumn(n int, v interface{}) (driver.Value, error) {
	if n == 0 {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func scanJSONColumn(src interface{}, dst interface{}) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into a JSON column", src)
	}
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, dst)
}
