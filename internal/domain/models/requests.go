package models

// Requests for the rates HTTP endpoints. Defined in domain for consistency
// and reuse.

type HistoryRequest struct {
	Currency string `query:"currency" json:"currency" validate:"required,len=3,alpha"`
	From     string `query:"from" json:"from" validate:"required"`
	To       string `query:"to" json:"to" validate:"required"`
}

type CachedRequest struct {
	Currency string `query:"currency" json:"currency" validate:"required,len=3,alpha"`
	From     string `query:"from" json:"from" validate:"required"`
	To       string `query:"to" json:"to" validate:"required"`
}

type BackfillRequest struct {
	Currency string `query:"currency" json:"currency" validate:"required,len=3,alpha"`
	From     string `query:"from" json:"from" validate:"required"`
	To       string `query:"to" json:"to" validate:"required"`
}

type ChartRequest struct {
	Base   string `query:"base" json:"base" validate:"required,len=3,alpha"`
	Target string `query:"target" json:"target" validate:"required,len=3,alpha"`
	From   string `query:"from" json:"from" validate:"required"`
	To     string `query:"to" json:"to" validate:"required"`
}
