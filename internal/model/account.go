package model

// Account summarizes one account found in a client's account history.
type Account struct {
	AccountID    string  `json:"account_id" yaml:"account_id"`
	Name         string  `json:"account_name" yaml:"account_name"`
	Type         string  `json:"account_type" yaml:"account_type"`
	CurrentValue float64 `json:"current_value" yaml:"current_value"`
	StartDate    string  `json:"start_date" yaml:"start_date"`
	EndDate      string  `json:"end_date" yaml:"end_date"`
	TotalRecords int64   `json:"total_records" yaml:"total_records"`
}

// HistoryPoint is one dated account value.
type HistoryPoint struct {
	AsOfDate string  `json:"as_of_date" yaml:"as_of_date"`
	Value    float64 `json:"value" yaml:"value"`
}

// Pagination describes a page of account history.
type Pagination struct {
	Limit   int   `json:"limit" yaml:"limit"`
	Offset  int   `json:"offset" yaml:"offset"`
	Total   int64 `json:"total" yaml:"total"`
	HasMore bool  `json:"has_more" yaml:"has_more"`
}

// AccountHistory is a page of history for one account.
type AccountHistory struct {
	History    []HistoryPoint `json:"history" yaml:"history"`
	Pagination Pagination     `json:"pagination" yaml:"pagination"`
}

// AccountSummary holds summary statistics for one account.
type AccountSummary struct {
	FirstDate    string  `json:"first_date" yaml:"first_date"`
	LastDate     string  `json:"last_date" yaml:"last_date"`
	MinValue     float64 `json:"min_value" yaml:"min_value"`
	MaxValue     float64 `json:"max_value" yaml:"max_value"`
	AverageValue float64 `json:"average_value" yaml:"average_value"`
	CurrentValue float64 `json:"current_value" yaml:"current_value"`
	TotalRecords int64   `json:"total_records" yaml:"total_records"`
}
