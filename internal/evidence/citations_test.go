package evidence

import (
	"reflect"
	"testing"
)

func TestExtractCitationKeys(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			"single author",
			"Watts reviewed forearm recovery kinetics in sport climbers.",
			[]string{"watts2004"},
		},
		{
			"case insensitive",
			"per MACLEOD, intermittent loading tolerance drops with sleep debt",
			[]string{"macleod2007"},
		},
		{
			"multiple authors sorted and deduplicated",
			"Schöffl and Lutter both report pulley injury recurrence; Schöffl again on taping.",
			[]string{"lutter2017", "schoeffl2010"},
		},
		{
			"ascii fallback spelling",
			"Balas et al. on climbing-specific finger flexor endurance",
			[]string{"balas2012"},
		},
		{
			"no known author",
			"consensus of the two reviewing coaches, no literature basis",
			nil,
		},
		{
			"empty text",
			"",
			nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractCitationKeys(tt.text)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ExtractCitationKeys(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestValidLevel(t *testing.T) {
	for _, lvl := range []EvidenceLevel{"1a", "1b", "2a", "2b", "3a", "3b", "4", "5"} {
		if !ValidLevel(lvl) {
			t.Errorf("expected %q to be valid", lvl)
		}
	}
	for _, lvl := range []EvidenceLevel{"", "1", "6", "A"} {
		if ValidLevel(lvl) {
			t.Errorf("expected %q to be invalid", lvl)
		}
	}
}

func TestKnownAuthorsSortedAndNonEmpty(t *testing.T) {
	authors := KnownAuthors()
	if len(authors) == 0 {
		t.Fatal("expected known authors")
	}
	for i := 1; i < len(authors); i++ {
		if authors[i] < authors[i-1] {
			t.Fatalf("authors not sorted: %q before %q", authors[i-1], authors[i])
		}
	}
}
