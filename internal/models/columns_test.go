package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringList_Value(t *testing.T) {
	v, err := StringList(nil).Value()
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = StringList{"Matura 1994", "Studium Rechtswissenschaften"}.Value()
	require.NoError(t, err)
	assert.Equal(t, `["Matura 1994","Studium Rechtswissenschaften"]`, v)
}

func TestStringList_Scan(t *testing.T) {
	tests := []struct {
		name string
		src  interface{}
		want StringList
	}{
		{"null", nil, nil},
		{"empty bytes", []byte{}, nil},
		{"bytes", []byte(`["a","b"]`), StringList{"a", "b"}},
		{"string", `["Bürgermeister"]`, StringList{"Bürgermeister"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var l StringList
			require.NoError(t, l.Scan(tt.src))
			assert.Equal(t, tt.want, l)
		})
	}

	var l StringList
	assert.Error(t, l.Scan(42))
	assert.Error(t, l.Scan("not json"))
}

func TestSocialLinks_ValueAndScan(t *testing.T) {
	links := SocialLinks{{URL: "https://x.com/abg", Name: "X", Type: "twitter"}}

	v, err := links.Value()
	require.NoError(t, err)

	var back SocialLinks
	require.NoError(t, back.Scan(v))
	assert.Equal(t, links, back)
}
