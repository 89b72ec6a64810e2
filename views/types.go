package views

import "time"

// PostRow is one mirrored post in the dashboard table.
type PostRow struct {
	Slug      string
	Title     string
	Author    string
	Category  string
	Date      time.Time
	SourceURL string
	Published bool
	Link      string
}

// AuthorRow is one registered author.
type AuthorRow struct {
	Name        string
	EsaUsername string
}

// Dashboard carries everything the admin dashboard renders.
type Dashboard struct {
	SiteName string
	Team     string
	Target   string
	Message  string
	CSRF     string
	// Posts and Authors are nil when the target cannot list them.
	Posts   []PostRow
	Authors []AuthorRow
	// BulkRunning is set while a full resync is in progress.
	BulkRunning bool
}
