package handlers

import "testing"

func TestIfNoneMatchMatches(t *testing.T) {
	etag := etagFor([]byte(`{"cnt":1}`))

	cases := []struct {
		header string
		want   bool
	}{
		{"", false},
		{"*", true},
		{etag, true},
		{`"other", ` + etag, true},
		{"W/" + etag, true},
		{`"other"`, false},
	}

	for _, tc := range cases {
		if got := ifNoneMatchMatches(tc.header, etag); got != tc.want {
			t.Fatalf("header %q: got %v, want %v", tc.header, got, tc.want)
		}
	}
}
