package graph

// TweetState is the storage-side view of a tweet used by the merge policy.
type TweetState struct {
	Exists      bool
	IsTruncated bool
	HasAuthor   bool
}

// StoredTweet is a tweet as read back from the graph.
type StoredTweet struct {
	ID        string   `json:"id"`
	Text      string   `json:"text"`
	Truncated bool     `json:"truncated"`
	Author    string   `json:"author"`
	Hashtags  []string `json:"hashtags"`
	Themes    []string `json:"themes,omitempty"`
	Entities  []string `json:"entities,omitempty"`
	CreatedAt string   `json:"created_at,omitempty"`
}

// TweetPage is one page of tweets plus pagination metadata.
type TweetPage struct {
	Total   int64         `json:"total"`
	Limit   int           `json:"limit"`
	Offset  int           `json:"offset"`
	HasMore bool          `json:"has_more"`
	Tweets  []StoredTweet `json:"tweets"`
}

// SearchResult is one vector-search hit.
type SearchResult struct {
	ID       string   `json:"id"`
	Text     string   `json:"text"`
	Author   string   `json:"author"`
	Score    float64  `json:"score"`
	Hashtags []string `json:"hashtags"`
}

// RelatedNode is one node reached by graph traversal from a tweet.
type RelatedNode struct {
	Type         string                 `json:"type"`
	ID           string                 `json:"id,omitempty"`
	Properties   map[string]interface{} `json:"properties"`
	Relationship string                 `json:"relationship"`
}

// NamedCount pairs a theme or entity name with its tweet count.
type NamedCount struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

// Stats summarizes the graph's contents.
type Stats struct {
	Tweets        int64 `json:"tweets"`
	Users         int64 `json:"users"`
	Hashtags      int64 `json:"hashtags"`
	Themes        int64 `json:"themes"`
	Entities      int64 `json:"entities"`
	Relationships int64 `json:"relationships"`
}
