package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/mbolis/survey-builder/builder"
	"github.com/mbolis/survey-builder/database/dbtest"
	"github.com/mbolis/survey-builder/events"
	"github.com/mbolis/survey-builder/forms"
	"github.com/mbolis/survey-builder/masterdata"
	"github.com/mbolis/survey-builder/model"
	"github.com/mbolis/survey-builder/responses"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type fixture struct {
	ctx      context.Context
	db       *sqlx.DB
	forms    *forms.Store
	data     *masterdata.Store
	recorder *responses.Recorder
	exporter *Exporter

	form   *model.Form
	name   *model.Question
	pets   *model.Question
	people *model.Dataset
}

func setup(t *testing.T) *fixture {
	db := dbtest.Open(t)
	fx := &fixture{
		ctx:      context.Background(),
		db:       db,
		forms:    forms.NewStore(db, "https://forms.example.org"),
		data:     masterdata.NewStore(db),
		recorder: responses.NewRecorder(db, events.Nop{}),
	}
	fx.exporter = New(db, fx.forms)
	owner := model.Actor{ID: dbtest.Account(t, db, "owner", "form_creator"), Role: model.RoleFormCreator}

	var err error
	fx.form, err = fx.forms.Create(fx.ctx, owner, forms.FormInput{Title: "Health Survey"})
	require.NoError(t, err)
	fx.name, err = fx.forms.CreateQuestion(fx.ctx, fx.form.ID, model.Question{Text: "Your name", Type: model.TextInput})
	require.NoError(t, err)
	fx.pets, err = fx.forms.CreateQuestion(fx.ctx, fx.form.ID, model.Question{Text: "Pets", Type: model.MultiSelect, Options: []model.Option{
		{Text: "Cat"}, {Text: "Dog"},
	}})
	require.NoError(t, err)

	fx.people, err = fx.data.Create(fx.ctx, owner, model.Dataset{Name: "People", Columns: []model.Column{
		{Name: "Name"}, {Name: "Region"}, {Name: "InternalNotes"},
	}})
	require.NoError(t, err)
	att, err := fx.forms.Attach(fx.ctx, fx.form.ID, fx.people.ID)
	require.NoError(t, err)
	_, err = fx.forms.Configure(fx.ctx, fx.form.ID, att.ID, forms.AttachmentConfig{
		HiddenColumns: []string{"InternalNotes"},
		DisplayColumn: "Name",
	})
	require.NoError(t, err)
	return fx
}

func (fx *fixture) record(t *testing.T, sub *builder.Submission, meta responses.Meta) *model.Response {
	sub.FormID = fx.form.ID
	resp, err := fx.recorder.Record(fx.ctx, *fx.form, sub, meta)
	require.NoError(t, err)
	return resp
}

func (fx *fixture) export(t *testing.T) [][]string {
	plan, err := fx.exporter.Plan(fx.ctx, fx.form.ID)
	require.NoError(t, err)

	var buf bytes.Buffer
	n, err := fx.exporter.Write(fx.ctx, fx.form.ID, plan, NewCSV(&buf))
	require.NoError(t, err)

	require.True(t, strings.HasPrefix(buf.String(), utf8BOM))
	rows, err := csv.NewReader(strings.NewReader(strings.TrimPrefix(buf.String(), utf8BOM))).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, n, len(rows)-1)
	return rows
}

func TestExportHeaders(t *testing.T) {
	fx := setup(t)

	rows := fx.export(t)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{
		"submitted_at", "is_complete", "record_display", "is_new_identity",
		"People - Name", "People - Region",
		"Your name", "Pets",
	}, rows[0])
}

func TestExportRows(t *testing.T) {
	fx := setup(t)
	jane, err := fx.data.CreateRecord(fx.ctx, fx.people.ID, map[string]any{"Name": "Jane Doe", "Region": "North", "InternalNotes": "secret"})
	require.NoError(t, err)
	account := dbtest.Account(t, fx.db, "respondent1", "respondent")

	anon := fx.record(t, &builder.Submission{Answers: []builder.AnswerValue{
		{QuestionID: fx.name.ID, Value: "Nobody"},
		{QuestionID: fx.pets.ID, Value: []string{"Cat", "Dog"}},
	}}, responses.Meta{})
	fx.record(t, &builder.Submission{RecordID: &jane.ID, Answers: []builder.AnswerValue{
		{QuestionID: fx.name.ID, Value: "Jane"},
	}}, responses.Meta{})
	fx.record(t, &builder.Submission{NewIdentity: &builder.NewIdentity{
		DatasetID: fx.people.ID,
		Data:      model.Data{"Name": "Newcomer", "Region": "East", "InternalNotes": "leak"},
	}}, responses.Meta{})
	fx.record(t, &builder.Submission{RecordID: &jane.ID}, responses.Meta{AccountID: &account})

	_, err = fx.db.Exec(`UPDATE response SET submitted_at = ? WHERE id = ?`, time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC), anon.ID)
	require.NoError(t, err)

	rows := fx.export(t)
	require.Len(t, rows, 5)

	assert.Equal(t, []string{"2024-03-09 14:05:07", "Yes", "Anonymous", "No", "", "", "Nobody", `["Cat","Dog"]`}, rows[1])
	assert.Equal(t, []string{"Yes", "Jane Doe", "No", "Jane Doe", "North", "Jane", ""}, rows[2][1:])
	assert.Equal(t, []string{"Yes", "Newcomer", "Yes (Pending Approval)", "Newcomer", "East", "", ""}, rows[3][1:])
	assert.Equal(t, "respondent1", rows[4][2])

	for _, row := range rows {
		for _, cell := range row {
			assert.NotContains(t, cell, "InternalNotes")
			assert.NotContains(t, cell, "secret")
			assert.NotContains(t, cell, "leak")
		}
	}

	n, err := fx.exporter.Count(fx.ctx, fx.form.ID)
	require.NoError(t, err)
	assert.Equal(t, len(rows)-1, n)
}

func TestExportApprovedIdentity(t *testing.T) {
	fx := setup(t)
	resp := fx.record(t, &builder.Submission{NewIdentity: &builder.NewIdentity{
		DatasetID: fx.people.ID,
		Data:      model.Data{"Name": "Newcomer"},
	}}, responses.Meta{})
	rec, err := fx.data.CreateRecord(fx.ctx, fx.people.ID, map[string]any{"Name": "Approved Newcomer"})
	require.NoError(t, err)
	_, err = fx.db.Exec(`UPDATE response SET record_id = ? WHERE id = ?`, rec.ID, resp.ID)
	require.NoError(t, err)

	rows := fx.export(t)
	require.Len(t, rows, 2)
	assert.Equal(t, "Approved Newcomer", rows[1][2])
	assert.Equal(t, Approved, rows[1][3])
	assert.Equal(t, "Approved Newcomer", rows[1][4])
}

func TestExportNeverShowsHiddenDisplayColumn(t *testing.T) {
	fx := setup(t)
	jane, err := fx.data.CreateRecord(fx.ctx, fx.people.ID, map[string]any{"Name": "Jane", "InternalNotes": "secret"})
	require.NoError(t, err)
	fx.record(t, &builder.Submission{RecordID: &jane.ID}, responses.Meta{})

	// configured before hidden display columns were rejected
	_, err = fx.db.Exec(`UPDATE form_attachment SET display_column = 'InternalNotes' WHERE form_id = ?`, fx.form.ID)
	require.NoError(t, err)

	rows := fx.export(t)
	require.Len(t, rows, 2)
	assert.Equal(t, "Jane", rows[1][2])
	for _, cell := range rows[1] {
		assert.NotContains(t, cell, "secret")
	}
}

func TestExportLabelsRecordWithoutDisplayValue(t *testing.T) {
	fx := setup(t)
	rec, err := fx.data.CreateRecord(fx.ctx, fx.people.ID, map[string]any{"Region": "North"})
	require.NoError(t, err)
	fx.record(t, &builder.Submission{RecordID: &rec.ID}, responses.Meta{})

	rows := fx.export(t)
	require.Len(t, rows, 2)
	assert.Equal(t, "Record #"+strconv.FormatInt(rec.ID, 10), rows[1][2])
}

func TestExportDegradesMalformedCells(t *testing.T) {
	fx := setup(t)
	resp := fx.record(t, &builder.Submission{Answers: []builder.AnswerValue{
		{QuestionID: fx.name.ID, Value: "ok"},
		{QuestionID: fx.pets.ID, Value: []string{"Cat"}},
	}}, responses.Meta{})
	fx.record(t, &builder.Submission{Answers: []builder.AnswerValue{
		{QuestionID: fx.name.ID, Value: "second"},
	}}, responses.Meta{})

	_, err := fx.db.Exec(`UPDATE response_answer SET value = '{broken' WHERE response_id = ? AND question_id = ?`, resp.ID, fx.pets.ID)
	require.NoError(t, err)
	_, err = fx.db.Exec(`UPDATE response SET is_new_identity = TRUE, new_identity_dataset_id = ?, new_identity_data = 'nope' WHERE id = ?`, fx.people.ID, resp.ID)
	require.NoError(t, err)

	rows := fx.export(t)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Anonymous", PendingApproval, "", "", "ok", ""}, rows[1][2:])
	assert.Equal(t, "second", rows[2][6])
}

func TestExportXLSX(t *testing.T) {
	fx := setup(t)
	for i := 0; i < 3; i++ {
		fx.record(t, &builder.Submission{Answers: []builder.AnswerValue{{QuestionID: fx.name.ID, Value: "x"}}}, responses.Meta{})
	}

	plan, err := fx.exporter.Plan(fx.ctx, fx.form.ID)
	require.NoError(t, err)
	var buf bytes.Buffer
	w, err := NewWriter(XLSX, &buf)
	require.NoError(t, err)
	n, err := fx.exporter.Write(fx.ctx, fx.form.ID, plan, w)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, plan.Headers, rows[0])
	assert.Equal(t, "x", rows[3][6])
}

func TestFormats(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, CSV, f)
	f, err = ParseFormat("xlsx")
	require.NoError(t, err)
	assert.Equal(t, XLSX, f)
	_, err = ParseFormat("pdf")
	assert.Error(t, err)

	day := time.Date(2024, 3, 9, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, "health-1a2b-responses-2024-03-09.csv", Filename("health-1a2b", CSV, day))
	assert.Equal(t, "text/csv; charset=utf-8", CSV.ContentType())
}
