package database

// Card statuses. A card is created active and archived exactly once.
const (
	CardActive   = "active"
	CardArchived = "archived"
)

// Keyword is a user search term driving one independent pipeline
// invocation per report run. Only enabled keywords participate.
type Keyword struct {
	ID        int64
	Text      string
	Enabled   bool
	CreatedAt *string
}

// Card is one structured news item extracted from a model response.
type Card struct {
	ID          string
	ReportID    string
	Keyword     string
	Category    string
	Title       string
	Rating      float64
	Summary     string
	Source      *string
	URL         *string
	Date        *string
	GeneratedAt string
	ArchivedAt  *string
	Status      string
}

// ReportHistory is the aggregate outcome of one full multi-keyword run.
// ID equals the reportId stamped on the run's cards; it is the join key
// between cards and history.
type ReportHistory struct {
	ID                 string
	GeneratedAt        string
	Keywords           []string
	TotalCards         int
	ModelUsed          string
	CostSpent          float64
	Categories         []string
	AvgRating          float64
	RatingDistribution map[int]int
}

// Stats contains aggregate database statistics.
type Stats struct {
	ActiveCards     int
	ArchivedCards   int
	Keywords        int
	EnabledKeywords int
	Reports         int
	TotalCostSpent  float64
}
