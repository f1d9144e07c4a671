package archive

import "time"

// Entity is one archived download outcome.
type Entity struct {
	Id        string    `json:"id"`
	Title     string    `json:"title"`
	Source    string    `json:"source"`
	Kind      string    `json:"kind"`
	FormatID  string    `json:"format_id"`
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	Success   bool      `json:"success"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// PaginatedResponse is a page of entities and the cursor of the next one.
type PaginatedResponse struct {
	Data   []Entity `json:"data"`
	Cursor int64    `json:"cursor"`
}
