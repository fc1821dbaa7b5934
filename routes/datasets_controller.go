package routes

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/render"
	"github.com/mbolis/survey-builder/app"
	"github.com/mbolis/survey-builder/fault"
	"github.com/mbolis/survey-builder/forms"
	"github.com/mbolis/survey-builder/httpx"
	"github.com/mbolis/survey-builder/log"
	"github.com/mbolis/survey-builder/masterdata"
	"github.com/mbolis/survey-builder/model"
)

const (
	maxUploadSize = 32 << 20
	previewRows   = 50
)

func ListDatasets(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := app.MasterData.List(r.Context(), actor(r))
		if err != nil {
			httpx.LogInternalError(w, "db.list_datasets", err)
			return
		}
		render.JSON(w, r, list)
	}
}

func CreateDataset(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var ds model.Dataset
		if !decode(w, r, &ds) {
			return
		}
		saved, err := app.MasterData.Create(r.Context(), actor(r), ds)
		if err != nil {
			httpx.Fail(w, r, "db.insert_dataset", err)
			return
		}
		created(w, r, saved)
	}
}

func GetDataset(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		datasetID, ok := datasetParam(app, w, r, masterdata.ViewAccess)
		if !ok {
			return
		}
		ds, err := app.MasterData.Get(r.Context(), datasetID)
		if err != nil {
			httpx.Fail(w, r, "db.get_dataset", err)
			return
		}
		render.JSON(w, r, ds)
	}
}

func UpdateDataset(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		datasetID, ok := datasetParam(app, w, r, masterdata.EditAccess)
		if !ok {
			return
		}
		var body struct {
			Name        string `json:"name"`
			Description string `json:"description"`
		}
		if !decode(w, r, &body) {
			return
		}
		if err := app.MasterData.Update(r.Context(), datasetID, body.Name, body.Description); err != nil {
			httpx.Fail(w, r, "db.update_dataset", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// ownedDataset reads {datasetID} and lets only its owner (or an administrator) through.
func ownedDataset(app app.App, w http.ResponseWriter, r *http.Request) (int64, bool) {
	datasetID, ok := datasetParam(app, w, r, masterdata.ViewAccess)
	if !ok {
		return 0, false
	}
	ds, err := app.MasterData.Get(r.Context(), datasetID)
	if err != nil {
		httpx.Fail(w, r, "db.get_dataset", err)
		return 0, false
	}
	if a := actor(r); ds.OwnerID != a.ID && !a.Admin() {
		httpx.Fail(w, r, "datasets.require_owner", fault.ErrForbidden)
		return 0, false
	}
	return datasetID, true
}

func DeleteDataset(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		datasetID, ok := ownedDataset(app, w, r)
		if !ok {
			return
		}
		if err := app.MasterData.Delete(r.Context(), datasetID); err != nil {
			httpx.Fail(w, r, "db.delete_dataset", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func ListShares(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		datasetID, ok := ownedDataset(app, w, r)
		if !ok {
			return
		}
		list, err := app.MasterData.Shares(r.Context(), datasetID)
		if err != nil {
			httpx.LogInternalError(w, "db.list_shares", err)
			return
		}
		render.JSON(w, r, list)
	}
}

func ShareDataset(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		datasetID, ok := ownedDataset(app, w, r)
		if !ok {
			return
		}
		var body struct {
			Username string `json:"username"`
			CanEdit  bool   `json:"can_edit"`
		}
		if !decode(w, r, &body) {
			return
		}
		share, err := app.MasterData.Share(r.Context(), datasetID, body.Username, body.CanEdit)
		if err != nil {
			httpx.Fail(w, r, "db.share_dataset", err)
			return
		}
		created(w, r, share)
	}
}

func UnshareDataset(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		datasetID, ok := ownedDataset(app, w, r)
		if !ok {
			return
		}
		accountID, ok := idParam(w, r, "accountID")
		if !ok {
			return
		}
		if err := app.MasterData.Unshare(r.Context(), datasetID, accountID); err != nil {
			httpx.Fail(w, r, "db.unshare_dataset", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func ListColumns(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		datasetID, ok := datasetParam(app, w, r, masterdata.ViewAccess)
		if !ok {
			return
		}
		cols, err := app.MasterData.Columns(r.Context(), datasetID)
		if err != nil {
			httpx.LogInternalError(w, "db.list_columns", err)
			return
		}
		render.JSON(w, r, cols)
	}
}

func AddColumn(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		datasetID, ok := datasetParam(app, w, r, masterdata.EditAccess)
		if !ok {
			return
		}
		var c model.Column
		if !decode(w, r, &c) {
			return
		}
		saved, err := app.MasterData.AddColumn(r.Context(), datasetID, c)
		if err != nil {
			httpx.Fail(w, r, "db.insert_column", err)
			return
		}
		created(w, r, saved)
	}
}

func DeleteColumn(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		datasetID, ok := datasetParam(app, w, r, masterdata.EditAccess)
		if !ok {
			return
		}
		columnID, ok := idParam(w, r, "columnID")
		if !ok {
			return
		}
		if err := app.MasterData.DeleteColumn(r.Context(), datasetID, columnID); err != nil {
			httpx.Fail(w, r, "db.delete_column", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type recordPage struct {
	Total   int            `json:"total"`
	Limit   int            `json:"limit"`
	Offset  int            `json:"offset"`
	Records []model.Record `json:"records"`
}

func ListRecords(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		datasetID, ok := datasetParam(app, w, r, masterdata.ViewAccess)
		if !ok {
			return
		}
		limit, offset := httpx.Page(r, 100)
		list, total, err := app.MasterData.Records(r.Context(), datasetID, limit, offset)
		if err != nil {
			httpx.LogInternalError(w, "db.list_records", err)
			return
		}
		render.JSON(w, r, recordPage{total, limit, offset, list})
	}
}

func CreateRecord(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		datasetID, ok := datasetParam(app, w, r, masterdata.EditAccess)
		if !ok {
			return
		}
		var data map[string]any
		if !decode(w, r, &data) {
			return
		}
		rec, err := app.MasterData.CreateRecord(r.Context(), datasetID, data)
		if err != nil {
			httpx.Fail(w, r, "db.insert_record", err)
			return
		}
		created(w, r, rec)
	}
}

func GetRecord(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		datasetID, ok := datasetParam(app, w, r, masterdata.ViewAccess)
		if !ok {
			return
		}
		recordID, ok := idParam(w, r, "recordID")
		if !ok {
			return
		}
		rec, err := app.MasterData.Record(r.Context(), datasetID, recordID)
		if err != nil {
			httpx.Fail(w, r, "db.get_record", err)
			return
		}
		render.JSON(w, r, rec)
	}
}

func UpdateRecord(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		datasetID, ok := datasetParam(app, w, r, masterdata.EditAccess)
		if !ok {
			return
		}
		recordID, ok := idParam(w, r, "recordID")
		if !ok {
			return
		}
		var data map[string]any
		if !decode(w, r, &data) {
			return
		}
		if err := app.MasterData.UpdateRecord(r.Context(), datasetID, recordID, data); err != nil {
			httpx.Fail(w, r, "db.update_record", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func DeleteRecord(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		datasetID, ok := datasetParam(app, w, r, masterdata.EditAccess)
		if !ok {
			return
		}
		recordID, ok := idParam(w, r, "recordID")
		if !ok {
			return
		}
		if err := app.MasterData.DeleteRecord(r.Context(), datasetID, recordID); err != nil {
			httpx.Fail(w, r, "db.delete_record", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// uploadedTable reads the "file" part of a multipart upload.
func uploadedTable(w http.ResponseWriter, r *http.Request) (*masterdata.Table, bool) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		httpx.BadRequest(w, r, "expected a multipart upload")
		return nil, false
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		httpx.BadRequest(w, r, "missing file")
		return nil, false
	}
	defer file.Close()

	format, err := masterdata.FormatOf(header.Filename)
	if err != nil {
		httpx.Fail(w, r, "import.format", err)
		return nil, false
	}
	t, err := masterdata.ReadTable(file, format)
	if err != nil {
		httpx.Fail(w, r, "import.read", err)
		return nil, false
	}
	return t, true
}

func PreviewImport(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := datasetParam(app, w, r, masterdata.EditAccess); !ok {
			return
		}
		t, ok := uploadedTable(w, r)
		if !ok {
			return
		}
		render.JSON(w, r, map[string]any{
			"total":   len(t.Rows),
			"preview": t.Preview(previewRows),
		})
	}
}

// ImportRecords loads an uploaded sheet. The optional "mapping" field is a
// JSON object from sheet header to column name.
func ImportRecords(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		datasetID, ok := datasetParam(app, w, r, masterdata.EditAccess)
		if !ok {
			return
		}
		t, ok := uploadedTable(w, r)
		if !ok {
			return
		}
		var mapping map[string]string
		if raw := r.FormValue("mapping"); raw != "" {
			if err := json.Unmarshal([]byte(raw), &mapping); err != nil {
				httpx.BadRequest(w, r, "mapping must be a JSON object")
				return
			}
		}

		result, err := app.MasterData.Import(r.Context(), datasetID, t, mapping)
		if err != nil {
			httpx.Fail(w, r, "db.import_records", err)
			return
		}
		log.Infof("import: dataset %d, %d imported, %d skipped", datasetID, result.Imported, result.Skipped)
		render.JSON(w, r, result)
	}
}

func ExportRecords(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		datasetID, ok := datasetParam(app, w, r, masterdata.ViewAccess)
		if !ok {
			return
		}
		ds, err := app.MasterData.Get(r.Context(), datasetID)
		if err != nil {
			httpx.Fail(w, r, "db.get_dataset", err)
			return
		}
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="`+datasetFilename(ds.Name)+`.csv"`)
		if err := app.MasterData.WriteCSV(r.Context(), datasetID, w); err != nil {
			log.Errorf("export.dataset: %d: %s", datasetID, err)
		}
	}
}

func datasetFilename(name string) string {
	if slug := forms.Slugify(name); slug != "" {
		return slug
	}
	return "dataset"
}
