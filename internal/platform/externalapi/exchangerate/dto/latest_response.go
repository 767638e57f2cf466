// Package dto defines data transfer objects for the exchangerate-api responses.
package dto

// LatestResponse is the body of /v4/latest/{BASE}.
type LatestResponse struct {
	Base            string             `json:"base"`
	Date            string             `json:"date"`
	TimeLastUpdated int64              `json:"time_last_updated"`
	Rates           map[string]float64 `json:"rates"`
}
