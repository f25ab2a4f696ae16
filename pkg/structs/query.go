package structs

const (
	queryLimitDefault = 100
	queryLimitMax     = 1000
)

// Query selects jobs. Results are ordered by (CreatedAt, ID) ascending, which
// is submission order.
type Query struct {
	Limit int `json:"limit,omitempty"`

	// PageToken continues a previous listing; it's the NextPageToken of the last page.
	PageToken string `json:"page_token,omitempty"`

	// Filters
	Owner  string   `json:"owner,omitempty"`
	States []Status `json:"states,omitempty"`
}

func (q *Query) Sanitize() {
	if q.Limit <= 0 {
		q.Limit = queryLimitDefault
	}
	if q.Limit > queryLimitMax {
		q.Limit = queryLimitMax
	}
	if len(q.States) == 0 {
		q.States = nil
	}
}
