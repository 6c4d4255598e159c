package model

import "time"

type Event struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	CreatorID   *string   `json:"creator_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// EventDate is a candidate date row. Order is the column position in the poll table.
type EventDate struct {
	ID    string `json:"id"`
	Label string `json:"date_label"`
	Order int    `json:"column_order"`
}

// EventTime is a candidate time column. Order is the row position in the poll table.
type EventTime struct {
	ID    string `json:"id"`
	Label string `json:"time_label"`
	Order int    `json:"row_order"`
}

// CellStat counts the participants available for one (date, time) cell.
type CellStat struct {
	DateID    string `json:"event_date_id"`
	TimeID    string `json:"event_time_id"`
	Available int    `json:"available_count"`
}

type EventDetail struct {
	Event     Event       `json:"event"`
	Dates     []EventDate `json:"dates"`
	Times     []EventTime `json:"times"`
	VoteStats []CellStat  `json:"vote_stats"`
}

type NewEvent struct {
	Title       string
	Description string
	CreatorID   *string
	DateLabels  []string
	TimeLabels  []string
}

// Cell addresses one checked box of a vote.
type Cell struct {
	DateID string
	TimeID string
}
