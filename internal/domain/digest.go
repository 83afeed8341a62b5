package domain

import "time"

// DigestStatus tracks a digest through the approval workflow.
type DigestStatus string

const (
	DigestPending  DigestStatus = "pending"
	DigestSent     DigestStatus = "sent"
	DigestRejected DigestStatus = "rejected"
	DigestSkipped  DigestStatus = "skipped"
)

// Terminal reports whether no further decision may change the status.
func (s DigestStatus) Terminal() bool {
	return s != DigestPending
}

// Stats aggregates counters for one run.
type Stats struct {
	TotalFetched      int              `json:"total_fetched"`
	AfterDedup        int              `json:"after_dedup"`
	Verified          int              `json:"verified"`
	Unverified        int              `json:"unverified"`
	Conflicting       int              `json:"conflicting"`
	VerifiedAfterXref int              `json:"verified_after_xref"`
	Actionable        int              `json:"actionable"`
	ByCategory        map[Category]int `json:"by_category,omitempty"`
}

// Digest is the ranked, user-facing document produced by one run.
// Items are stored in display order: item N in the body is Items[N-1].
type Digest struct {
	RunID     string          `json:"run_id"`
	Items     []ValidatedItem `json:"items"`
	Body      string          `json:"body"`
	Stats     Stats           `json:"stats"`
	Status    DigestStatus    `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	SentAt    *time.Time      `json:"sent_at,omitempty"`
}

// Empty reports whether the digest carries nothing to deliver.
func (d Digest) Empty() bool {
	return len(d.Items) == 0 || d.Body == ""
}
