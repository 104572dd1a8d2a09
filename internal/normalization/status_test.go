package normalization

import "testing"

func strPtr(s string) *string { return &s }

func TestNormalizeStatusCanonical(t *testing.T) {
	cases := []struct {
		raw  *string
		want Status
	}{
		{strPtr("completed"), StatusSuccess},
		{strPtr("success"), StatusSuccess},
		{strPtr(" Completed "), StatusSuccess},
		{strPtr("failed"), StatusFailed},
		{strPtr("processing"), StatusProcessing},
		{nil, StatusQueued},
		{strPtr(""), StatusQueued},
		{strPtr("   "), StatusQueued},
	}
	for _, tc := range cases {
		got := NormalizeStatus(tc.raw)
		if got != tc.want {
			name := "<nil>"
			if tc.raw != nil {
				name = *tc.raw
			}
			t.Fatalf("NormalizeStatus(%q): want=%q got=%q", name, tc.want, got)
		}
		if !got.Known() {
			t.Fatalf("expected %q to be known", got)
		}
	}
}

func TestNormalizeStatusUnknownIsNotCollapsed(t *testing.T) {
	for _, raw := range []string{"stalled", "cancelled", "done?", "SUCCESSFUL"} {
		got := NormalizeStatusString(raw)
		switch got {
		case StatusQueued, StatusSuccess, StatusFailed, StatusProcessing:
			t.Fatalf("%q collapsed into canonical status %q", raw, got)
		}
		if got.Known() {
			t.Fatalf("%q should be reported as unknown", raw)
		}
		if got.Raw() != ParseInputString(raw) {
			t.Fatalf("raw: want=%q got=%q", ParseInputString(raw), got.Raw())
		}
	}
}

func TestRawValuesFor(t *testing.T) {
	got := RawValuesFor(StatusSuccess)
	if len(got) != 2 || got[0] != "completed" || got[1] != "success" {
		t.Fatalf("success spellings: %#v", got)
	}
	if got := RawValuesFor(NormalizeStatusString("Stalled")); len(got) != 1 || got[0] != "stalled" {
		t.Fatalf("unknown spellings: %#v", got)
	}
}
