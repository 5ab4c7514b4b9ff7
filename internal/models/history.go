package models

// HistoryRecord is a persisted past exchange owned by the backend. The client
// never creates these; deletion is a remote mutation reflected by re-fetching.
type HistoryRecord struct {
	ID          int64   `json:"id"`
	UserQuery   string  `json:"user_query"`
	BotResponse string  `json:"bot_response"`
	Intent      string  `json:"intent"`
	Confidence  float64 `json:"confidence"`
	Timestamp   string  `json:"timestamp"`
}

// HistoryPage is one page of history records with its pagination cursor.
// Pages are 1-indexed; a page beyond TotalPages carries an empty record set.
type HistoryPage struct {
	Records     []HistoryRecord
	CurrentPage int
	TotalPages  int
}

// Conversation is the detail view of a single history record, including the
// processing time the backend measured for the exchange.
type Conversation struct {
	ID             int64   `json:"id"`
	UserQuery      string  `json:"user_query"`
	BotResponse    string  `json:"bot_response"`
	Intent         string  `json:"intent"`
	Confidence     float64 `json:"confidence"`
	ProcessingTime float64 `json:"processing_time"`
	Timestamp      string  `json:"timestamp"`
}

// Summary holds the dashboard counters. It is always derived state; the
// backend aggregation is the source of truth and the synchronizer is its
// sole local writer. AvgConfidence is a display percentage in 0..100.
type Summary struct {
	TotalChats       int
	AvgConfidence    float64
	MostCommonIntent string
	LastActive       string
}
