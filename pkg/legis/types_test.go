package legis

import "testing"

func TestInternalID(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"ITAA1997:Section:6-5", "ITAA1997_Section_6-5"},
		{"TAA1953:Schedule:1:Section:12-5", "TAA1953_Schedule_1_Section_12-5"},
		{"ACT:Part:III/2", "ACT_Part_III_2"},
		{"plain", "plain"},
	}
	for _, tc := range cases {
		if got := InternalID(tc.in); got != tc.want {
			t.Errorf("InternalID(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
