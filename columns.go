package main

// Every export names the same semantic field differently, so each field
// carries an ordered candidate list. ResolveColumn is the single lookup
// used everywhere; no call site keeps its own fallback chain.

var defaultDateColumns = []string{
	"Date",
	"First response sent time",
	"JIRA created time",
	"Created date",
	"Date created",
	"Creation date",
	"Created",
	"Timestamp",
}

var defaultProductColumns = []string{
	"Product name",
	"Product",
}

var defaultAccountColumns = []string{
	"Account name",
	"Account",
	"Client",
}

var defaultJiraIDColumns = []string{
	"Jira ticket number if escalated to PSE",
	"JIRA ticket",
	"Jira Ticket",
	"Jira Ticket Number",
	"JIRA Ticket Number",
	"Ticket ID",
}

var defaultDevRevIDColumns = []string{
	"DevRev ticket number",
	"DevRev Ticket",
	"DevRev ID",
	"Work ID",
	"Ticket ID",
}

var defaultProductVariants = []string{
	"LoyaltyPro",
	"Loyalty_Pro",
	"Loyalty Pro",
	"loyaltypro",
}

var defaultAllowedClients = []string{
	"AU Bank",
	"Axis",
	"DBS Bank",
	"Extraordinary Weekends",
	"Fi Money",
	"HDFC Bank",
	"IDFC FIRST Bank",
	"Jana Bank",
	"Kotak Mahindra Bank",
	"SBI Aurum",
}

const defaultTrackerBaseURL = "https://razorpay.atlassian.net/browse/"

// DefaultFilterParams is the parameter set the chain runs with out of the
// box. Config overrides individual pieces; anything left empty falls back
// to these.
func DefaultFilterParams() FilterParams {
	return FilterParams{
		RecencyDays:     defaultRecencyDays,
		DateColumns:     defaultDateColumns,
		ProductColumns:  defaultProductColumns,
		ProductVariants: defaultProductVariants,
		AccountColumns:  defaultAccountColumns,
		AllowedClients:  defaultAllowedClients,
		TrackerColumns:  defaultJiraIDColumns,
		TrackerBaseURL:  defaultTrackerBaseURL,
		URLColumn:       defaultURLColumn,
	}
}

// ResolveColumn returns the first candidate that exists as an actual header,
// in candidate-list order. Exact match only: headers were stripped at load,
// and that is the whole of the normalization.
func ResolveColumn(t Table, candidates []string) (string, bool) {
	for _, name := range candidates {
		if t.ColumnIndex(name) >= 0 {
			return name, true
		}
	}
	return "", false
}
