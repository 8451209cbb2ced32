package domain

import "time"

// Submission is one captured lead form submission.
type Submission struct {
	ID        int64             `json:"id"`
	UUID      string            `json:"uuid"`
	PageID    int64             `json:"page_id"`
	FirstName string            `json:"first_name"`
	LastName  string            `json:"last_name"`
	Email     string            `json:"email"`
	Phone     string            `json:"phone"`
	Responses map[string]string `json:"responses,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// LeadEvent is the webhook payload sent for every new lead.
type LeadEvent struct {
	Event       string            `json:"event"` // "new_lead"
	Timestamp   string            `json:"timestamp"`
	Source      string            `json:"source"`
	Lead        LeadFields        `json:"lead"`
	Page        PageRef           `json:"page"`
	Property    map[string]string `json:"property,omitempty"`
	Realtor     map[string]string `json:"realtor,omitempty"`
	LoanOfficer map[string]string `json:"loan_officer,omitempty"`
	Submission  SubmissionRef     `json:"submission"`
}

type LeadFields struct {
	FirstName string            `json:"first_name"`
	LastName  string            `json:"last_name"`
	Email     string            `json:"email"`
	Phone     string            `json:"phone"`
	Responses map[string]string `json:"responses,omitempty"`
}

type PageRef struct {
	ID    int64  `json:"id"`
	Type  string `json:"type"`
	URL   string `json:"url"`
	Title string `json:"title"`
}

type SubmissionRef struct {
	ID int64 `json:"id"`
}

// NewLeadEvent assembles the webhook payload from a stored submission
// and its page. Attribute maps are split by prefix: property_*,
// realtor_* and loan_officer_* keys feed the corresponding sections.
func NewLeadEvent(source, pageURL string, page *Page, sub *Submission) *LeadEvent {
	ev := &LeadEvent{
		Event:     "new_lead",
		Timestamp: sub.CreatedAt.UTC().Format(time.RFC3339),
		Source:    source,
		Lead: LeadFields{
			FirstName: sub.FirstName,
			LastName:  sub.LastName,
			Email:     sub.Email,
			Phone:     sub.Phone,
			Responses: sub.Responses,
		},
		Page: PageRef{
			ID:    page.ID,
			Type:  "landing_page",
			URL:   pageURL,
			Title: page.Title,
		},
		Submission: SubmissionRef{ID: sub.ID},
	}

	for k, v := range page.Attributes {
		switch {
		case cutPrefix(k, "property_") != "":
			ev.Property = put(ev.Property, cutPrefix(k, "property_"), v)
		case cutPrefix(k, "realtor_") != "":
			ev.Realtor = put(ev.Realtor, cutPrefix(k, "realtor_"), v)
		case cutPrefix(k, "loan_officer_") != "":
			ev.LoanOfficer = put(ev.LoanOfficer, cutPrefix(k, "loan_officer_"), v)
		}
	}
	return ev
}

func cutPrefix(s, prefix string) string {
	if len(s) > len(prefix) && s[:len(prefix)] == prefix {
		return s[len(prefix):]
	}
	return ""
}

func put(m map[string]string, k, v string) map[string]string {
	if m == nil {
		m = make(map[string]string)
	}
	m[k] = v
	return m
}
