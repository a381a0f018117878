package ops

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hpungsan/cardbot/internal/board"
	"github.com/hpungsan/cardbot/internal/db"
	"github.com/hpungsan/cardbot/internal/errors"
	"github.com/hpungsan/cardbot/internal/resolve"
	"github.com/hpungsan/cardbot/internal/scrape"
	"github.com/hpungsan/cardbot/internal/ticket"
)

// DefaultEnrichTimeout bounds a detached enrichment job.
const DefaultEnrichTimeout = 2 * time.Minute

// FieldExtractor turns a message into ticket fields.
type FieldExtractor interface {
	Extract(ctx context.Context, message string) (ticket.Fields, error)
}

// Board is the part of the board API the pipeline writes to.
type Board interface {
	board.CardCreator
	board.Attacher
}

// AttachmentReporter records enrichment jobs. Start is called with a
// pending record, Finish with the same record carrying its outcome.
type AttachmentReporter interface {
	Start(ctx context.Context, a *ticket.Attachment) error
	Finish(ctx context.Context, a *ticket.Attachment) error
}

// DBReporter keeps the attachment log in SQLite.
type DBReporter struct {
	DB *sql.DB
}

// Start implements AttachmentReporter.
func (r DBReporter) Start(ctx context.Context, a *ticket.Attachment) error {
	return db.InsertAttachment(ctx, r.DB, a)
}

// Finish implements AttachmentReporter.
func (r DBReporter) Finish(ctx context.Context, a *ticket.Attachment) error {
	return db.UpdateAttachment(ctx, r.DB, a)
}

// Pipeline runs one intake request: extract, resolve, create, enrich.
// Use a *Pipeline; it tracks detached enrichment jobs.
type Pipeline struct {
	Extractor  FieldExtractor
	Vocabulary resolve.Provider
	Board      Board
	Fetcher    scrape.Fetcher
	Reporter   AttachmentReporter // optional
	Logger     logrus.FieldLogger // optional

	// Threshold is the fuzzy match threshold. Zero means resolve.DefaultThreshold.
	Threshold float64

	// Async detaches enrichment from the request. The response then carries
	// a pending outcome and the job id.
	Async bool

	// EnrichTimeout bounds a detached job. Zero means DefaultEnrichTimeout.
	EnrichTimeout time.Duration

	wg sync.WaitGroup
}

// IntakeInput contains parameters for the Intake operation.
type IntakeInput struct {
	Message string `json:"message"`
}

// IntakeOutput contains the result of the Intake operation.
type IntakeOutput struct {
	RequestID   string        `json:"request_id"`
	CardID      string        `json:"ticket_id"`
	CardURL     string        `json:"ticket_url"`
	Details     ticket.Fields `json:"details"`
	Resolutions Resolutions   `json:"resolutions"`
	Attachment  EnrichOutput  `json:"attachment"`
}

// Intake turns a free-text message into a card.
//
// Extraction, vocabulary and card-creation failures are returned as typed
// errors and stop the request before anything is written to the board.
// Enrichment never fails the request; its outcome is in Attachment.
func (p *Pipeline) Intake(ctx context.Context, input IntakeInput) (*IntakeOutput, error) {
	requestID, err := newULID()
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	log := p.logger().WithField("request_id", requestID)

	fields, err := p.Extractor.Extract(ctx, input.Message)
	if err != nil {
		log.WithError(err).WithField("stage", "extract").Warn("ticket extraction failed")
		return nil, err
	}
	log.WithFields(logrus.Fields{
		"stage":    "extract",
		"column":   fields.Column,
		"assignee": fields.Assignee,
		"label":    fields.Label,
	}).Debug("fields extracted")

	vocab, err := LoadVocabulary(ctx, p.Vocabulary)
	if err != nil {
		log.WithError(err).WithField("stage", "vocabulary").Error("board vocabulary unavailable")
		return nil, err
	}

	created, err := CreateCard(ctx, p.Board, CreateCardInput{
		Fields:     fields,
		Vocabulary: vocab,
		Threshold:  p.Threshold,
	})
	if err != nil {
		log.WithError(err).WithField("stage", "create").Warn("card creation failed")
		return nil, err
	}
	log = log.WithField("card_id", created.CardID)
	log.WithFields(logrus.Fields{
		"stage":       "create",
		"ticket_url":  created.CardURL,
		"column_kind": created.Resolutions.Column.Kind,
	}).Info("card created")

	return &IntakeOutput{
		RequestID:   requestID,
		CardID:      created.CardID,
		CardURL:     created.CardURL,
		Details:     created.Details,
		Resolutions: created.Resolutions,
		Attachment:  p.enrich(ctx, log, requestID, created.CardID, fields.SharingURL),
	}, nil
}

// Wait blocks until every detached enrichment job has finished.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}

func (p *Pipeline) enrich(ctx context.Context, log logrus.FieldLogger, requestID, cardID, sharingURL string) EnrichOutput {
	log = log.WithField("stage", "enrich")
	sharingURL = strings.TrimSpace(sharingURL)
	if sharingURL == "" {
		log.Debug("no sharing url, skipping screenshot")
		return EnrichOutput{Status: ticket.AttachSkipped}
	}

	jobID, err := newULID()
	if err != nil {
		return EnrichOutput{Status: ticket.AttachFailed, Reason: "internal error", Err: err}
	}
	now := time.Now().Unix()
	rec := &ticket.Attachment{
		ID:         jobID,
		RequestID:  requestID,
		CardID:     cardID,
		SharingURL: sharingURL,
		Status:     ticket.AttachPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	log = log.WithField("job_id", jobID)
	if p.Reporter != nil {
		if err := p.Reporter.Start(ctx, rec); err != nil {
			log.WithError(err).Warn("attachment log write failed")
		}
	}

	if !p.Async {
		out := p.runEnrich(ctx, log, rec)
		out.JobID = jobID
		return out
	}

	timeout := p.EnrichTimeout
	if timeout <= 0 {
		timeout = DefaultEnrichTimeout
	}
	detached := context.WithoutCancel(ctx)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		jobCtx, cancel := context.WithTimeout(detached, timeout)
		defer cancel()
		p.runEnrich(jobCtx, log, rec)
	}()
	return EnrichOutput{Status: ticket.AttachPending, JobID: jobID}
}

func (p *Pipeline) runEnrich(ctx context.Context, log logrus.FieldLogger, rec *ticket.Attachment) EnrichOutput {
	out := Enrich(ctx, p.Fetcher, p.Board, rec.CardID, rec.SharingURL)

	rec.Status = out.Status
	rec.ImageURL = out.ImageURL
	rec.Reason = out.Reason
	if p.Reporter != nil {
		// The outcome is recorded even when the job ran out of time.
		if err := p.Reporter.Finish(context.WithoutCancel(ctx), rec); err != nil {
			log.WithError(err).Warn("attachment log write failed")
		}
	}

	entry := log.WithField("status", out.Status)
	if out.Status == ticket.AttachAttached {
		entry.WithField("image_url", out.ImageURL).Info("screenshot attached")
	} else {
		entry.WithError(out.Err).WithField("reason", out.Reason).Warn("screenshot not attached")
	}
	return out
}

func (p *Pipeline) logger() logrus.FieldLogger {
	if p.Logger == nil {
		return logrus.StandardLogger()
	}
	return p.Logger
}
