package usecase

import (
	"context"

	"RateSync/internal/domain/models"
	applogger "RateSync/pkg/logger"
	"RateSync/pkg/queue"
)

// BackfillJobType is the queue message type for historical backfills.
const BackfillJobType = "rates.backfill"

// BackfillPayload describes one backfill request.
type BackfillPayload struct {
	Currency string `json:"currency"`
	From     string `json:"from"`
	To       string `json:"to"`
}

// BackfillJob loads large historical ranges in the background so API
// callers do not wait on multi-year fetches.
type BackfillJob struct {
	sync *SyncOrchestrator
	log  *applogger.Logger
}

func NewBackfillJob(sync *SyncOrchestrator, log *applogger.Logger) *BackfillJob {
	return &BackfillJob{sync: sync, log: log}
}

func (j *BackfillJob) Name() string { return "historical-backfill" }

func (j *BackfillJob) Type() string { return BackfillJobType }

func (j *BackfillJob) Handle(ctx context.Context, payload interface{}) error {
	p, err := queue.ParsePayload[BackfillPayload](payload)
	if err != nil {
		return err
	}
	from, err := models.ParseDay(p.From)
	if err != nil {
		return err
	}
	to, err := models.ParseDay(p.To)
	if err != nil {
		return err
	}

	res, err := j.sync.Load(ctx, p.Currency, models.DateRange{Start: from, End: to})
	if err != nil {
		return err
	}
	j.log.Info("backfill complete",
		applogger.String("currency", p.Currency),
		applogger.String("range", p.From+".."+p.To),
		applogger.Bool("fetched", res.NewDataFetched),
		applogger.Int("days", len(res.Series)),
	)
	return nil
}
