package main

import (
	"strings"
	"testing"
)

func TestExtractTicketIDsUnionOfColumnAndPattern(t *testing.T) {
	tab := NewTable(
		[]string{"Jira ticket number if escalated to PSE", "Description"},
		[][]string{
			{"ABC-123", "refer to PLT-456 for details"},
			{"", "no ids here"},
			{"  ", "PLT-456 mentioned again"},
		},
	)

	got := ExtractTicketIDs(tab, defaultJiraIDColumns)
	want := []string{"ABC-123", "PLT-456"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("ExtractTicketIDs = %v, want %v", got, want)
	}
}

func TestExtractColumnIDsWalksEveryCandidate(t *testing.T) {
	tab := NewTable(
		[]string{"DevRev ticket number", "Work ID"},
		[][]string{
			{"DON-1", "DON-2"},
			{"DON-1", ""},
		},
	)

	got := ExtractColumnIDs(tab, defaultDevRevIDColumns)
	want := []string{"DON-1", "DON-2"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("ExtractColumnIDs = %v, want %v", got, want)
	}
}

func TestExtractPatternIDsFindsKeysInFreeText(t *testing.T) {
	tab := NewTable(
		[]string{"Notes"},
		[][]string{
			{"see DON-10 and TKT-77"},
			{"DON-10 was reopened"},
			{"nothing relevant"},
		},
	)

	got := ExtractPatternIDs(tab)
	want := []string{"DON-10", "TKT-77"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("ExtractPatternIDs = %v, want %v", got, want)
	}
}

func TestLooksLikeWorkID(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"DON-123", true},
		{"PLT-456", true},
		{"WORK-9", true},
		{"ABC-123", false},
		{"DON-123x", false},
		{"DON-", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := LooksLikeWorkID(tt.id); got != tt.want {
			t.Errorf("LooksLikeWorkID(%q) = %v, want %v", tt.id, got, tt.want)
		}
	}
}

func TestSplitTrackerIDs(t *testing.T) {
	jira, devrev := SplitTrackerIDs([]string{"ABC-1", "DON-2", "XYZ-3", "TKT-4"})

	if strings.Join(jira, ",") != "ABC-1,XYZ-3" {
		t.Errorf("jira side = %v, want [ABC-1 XYZ-3]", jira)
	}
	if strings.Join(devrev, ",") != "DON-2,TKT-4" {
		t.Errorf("devrev side = %v, want [DON-2 TKT-4]", devrev)
	}
}
