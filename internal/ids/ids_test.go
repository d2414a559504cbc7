package ids

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "lowercases", input: "Ministry Of Health", want: "ministryofhealth"},
		{name: "strips punctuation and whitespace", input: "ministry   of HEALTH!!", want: "ministryofhealth"},
		{name: "strips diacritics", input: "Café Société", want: "cafesociete"},
		{name: "keeps digits", input: "Huduma 2030", want: "huduma2030"},
		{name: "whitespace only", input: "  \t\n ", want: ""},
		{name: "empty", input: "", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Normalize(tt.input))
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{"Ministry Of Health", "Café Société", "a-b-c", "42", ""}
	for _, in := range inputs {
		once := Normalize(in)
		require.Equal(t, once, Normalize(once))
	}
}

func TestStableIDDeterministic(t *testing.T) {
	first := StableID("Ministry Of Health")
	second := StableID("Ministry Of Health")
	require.Equal(t, first, second)
	require.Len(t, first, Length)
}

func TestStableIDNormalizesInputs(t *testing.T) {
	require.Equal(t, StableID("Ministry Of Health"), StableID("ministry   of HEALTH!!"))
}

func TestStableIDScoping(t *testing.T) {
	ministryA := StableID("Ministry of Finance")
	ministryB := StableID("Ministry of Health")
	require.NotEqual(t, ministryA, ministryB)

	// Same department name under different ministries must differ.
	deptUnderA := StableID(ministryA, "Finance")
	deptUnderB := StableID(ministryB, "Finance")
	require.NotEqual(t, deptUnderA, deptUnderB)

	// Same name under the same parent is stable.
	require.Equal(t, deptUnderA, StableID(ministryA, "Finance"))
}

func TestStableIDCollisionCheck(t *testing.T) {
	corpus := [][]string{
		{"Ministry of Health"},
		{"Ministry of Education"},
		{"Ministry of Health", "Medical Services"},
		{"Ministry of Health", "Public Health"},
		{"Ministry of Health", "Medical Services", "Kenyatta National Hospital"},
		{"Ministry of Education", "Medical Services"},
	}
	seen := make(map[string][]string, len(corpus))
	for _, parts := range corpus {
		id := StableID(parts...)
		prev, dup := seen[id]
		require.False(t, dup, "identifier collision between %v and %v", prev, parts)
		seen[id] = parts
	}
}

func TestStableIDEmptyInput(t *testing.T) {
	require.Equal(t, StableID(""), StableID(""))
	require.Equal(t, "", StableID("!!!"))
}
