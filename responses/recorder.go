// Package responses records survey submissions and reads them back for
// listings and statistics.
package responses

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/mbolis/survey-builder/builder"
	"github.com/mbolis/survey-builder/database"
	"github.com/mbolis/survey-builder/events"
	"github.com/mbolis/survey-builder/fault"
	"github.com/mbolis/survey-builder/log"
	"github.com/mbolis/survey-builder/model"
)

var ErrAlreadyResponded = fault.NewClientError("You have already responded to this form", fault.ErrConflict)

// Publishing is best effort and bounded, the response is already committed.
const publishTimeout = 3 * time.Second

// Meta is the audit information captured with a submission.
type Meta struct {
	IP         string
	UserAgent  string
	SessionKey string
	AccountID  *int64
}

type Recorder struct {
	db             *sqlx.DB
	events         events.Publisher
	now            func() time.Time
	publishTimeout time.Duration
}

func NewRecorder(db *sqlx.DB, publisher events.Publisher) *Recorder {
	return &Recorder{db: db, events: publisher, now: time.Now, publishTimeout: publishTimeout}
}

// Record stores sub as one complete response of form. The response and all
// of its answers are committed together.
func (r *Recorder) Record(ctx context.Context, form model.Form, sub *builder.Submission, meta Meta) (*model.Response, error) {
	now := r.now().UTC()
	resp := &model.Response{
		FormID:      form.ID,
		AccountID:   meta.AccountID,
		SessionKey:  meta.SessionKey,
		IsComplete:  true,
		SubmittedAt: now,
		UpdatedAt:   now,
		IPAddress:   meta.IP,
		UserAgent:   meta.UserAgent,
	}

	err := database.InTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if form.Settings.UniqueEntries && meta.AccountID != nil {
			responded, err := hasResponded(ctx, tx, form.ID, *meta.AccountID)
			if err != nil {
				return err
			}
			if responded {
				return ErrAlreadyResponded
			}
		}

		if err := resolveIdentity(ctx, tx, form.ID, sub, resp); err != nil {
			return err
		}
		if err := insertResponse(ctx, tx, resp); err != nil {
			return err
		}

		for _, a := range sub.Answers {
			value, err := json.Marshal(a.Value)
			if err != nil {
				return err
			}
			answer := model.Answer{ResponseID: resp.ID, QuestionID: a.QuestionID, Value: value, CreatedAt: now}
			err = tx.QueryRowxContext(ctx, tx.Rebind(`
				INSERT INTO response_answer (response_id, question_id, value, created_at)
				VALUES (?, ?, ?, ?)
				RETURNING id`),
				answer.ResponseID, answer.QuestionID, answer.Value, answer.CreatedAt,
			).Scan(&answer.ID)
			if err != nil {
				return database.Translate(err)
			}
			resp.Answers = append(resp.Answers, answer)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	ev := events.ResponseSubmitted{
		ResponseID:    resp.ID,
		FormID:        form.ID,
		FormSlug:      form.Slug,
		Answers:       len(resp.Answers),
		RecordID:      resp.RecordID,
		IsNewIdentity: resp.IsNewIdentity,
		SubmittedAt:   resp.SubmittedAt,
	}
	r.publish(ctx, ev)
	return resp, nil
}

// publish outlives a client that disconnects after the commit, but never
// holds the request longer than publishTimeout.
func (r *Recorder) publish(ctx context.Context, ev events.ResponseSubmitted) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.publishTimeout)
	defer cancel()
	if err := r.events.ResponseSubmitted(ctx, ev); err != nil {
		log.WithFields(log.Fields{"response": ev.ResponseID, "form": ev.FormID}).Warnf("publishing %s: %v", events.TypeResponseSubmitted, err)
	}
}

func hasResponded(ctx context.Context, tx *sqlx.Tx, formID, accountID int64) (bool, error) {
	var n int
	err := tx.GetContext(ctx, &n, tx.Rebind(`
		SELECT COUNT(*) FROM response WHERE form_id = ? AND account_id = ?`),
		formID, accountID,
	)
	return n > 0, err
}

// resolveIdentity links resp to the chosen record when it belongs to a
// dataset attached to the form. A record that cannot be found falls back to
// the new-identity payload, and then to no identity at all.
func resolveIdentity(ctx context.Context, tx *sqlx.Tx, formID int64, sub *builder.Submission, resp *model.Response) error {
	if sub.RecordID != nil {
		var id int64
		err := tx.GetContext(ctx, &id, tx.Rebind(`
			SELECT r.id
			FROM dataset_record r
			INNER JOIN form_attachment a ON (a.dataset_id = r.dataset_id)
			WHERE r.id = ? AND a.form_id = ?`),
			*sub.RecordID, formID,
		)
		switch {
		case err == nil:
			resp.RecordID = &id
			return nil
		case !errors.Is(err, sql.ErrNoRows):
			return err
		}
		log.Debugf("response to form %d names record %d outside its datasets", formID, *sub.RecordID)
	}

	if ni := sub.NewIdentity; ni != nil && len(ni.Data) > 0 {
		var attached int
		err := tx.GetContext(ctx, &attached, tx.Rebind(`
			SELECT COUNT(*) FROM form_attachment WHERE form_id = ? AND dataset_id = ?`),
			formID, ni.DatasetID,
		)
		if err != nil {
			return err
		}
		if attached > 0 {
			datasetID := ni.DatasetID
			resp.IsNewIdentity = true
			resp.NewIdentityData = ni.Data
			resp.NewIdentityDatasetID = &datasetID
		}
	}
	return nil
}

func insertResponse(ctx context.Context, tx *sqlx.Tx, resp *model.Response) error {
	var newIdentityData any
	if resp.IsNewIdentity {
		newIdentityData = resp.NewIdentityData
	}
	err := tx.QueryRowxContext(ctx, tx.Rebind(`
		INSERT INTO response (
			form_id, record_id, account_id, session_key, is_complete, submitted_at, updated_at,
			ip_address, user_agent, is_new_identity, new_identity_data, new_identity_dataset_id
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`),
		resp.FormID, resp.RecordID, resp.AccountID, resp.SessionKey, resp.IsComplete, resp.SubmittedAt, resp.UpdatedAt,
		resp.IPAddress, resp.UserAgent, resp.IsNewIdentity, newIdentityData, resp.NewIdentityDatasetID,
	).Scan(&resp.ID)
	return database.Translate(err)
}
