package http

import (
	"errors"
	"fmt"
	"html/template"
	"mime/multipart"
	"net/http"
	"strings"

	"consolida/internal/core"
	"consolida/internal/ledger"
	"consolida/internal/log"
	"consolida/internal/services"
	"consolida/internal/upload"
)

// maxListed caps how many offending codes or rows an error message names.
const maxListed = 20

type uploadView struct {
	Result      *services.UploadResult
	PeriodLabel string
}

type importView struct {
	Accounts    int
	Diagnostics ledger.TreeDiagnostics
}

// openUpload limits the body, parses the multipart form and returns the
// "file" part. The caller closes the file.
func (s *Server) openUpload(w http.ResponseWriter, r *http.Request) (multipart.File, *multipart.FileHeader, *HTMXResponseBuilder) {
	tooLargeErr := func() *HTMXResponseBuilder {
		return RequestEntityTooLargeError(fmt.Sprintf("File exceeds the %d KiB limit.", s.maxUpload>>10))
	}
	if r.ContentLength > s.maxUpload {
		return nil, nil, tooLargeErr()
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, nil, tooLargeErr()
		}
		return nil, nil, BadRequestError("Invalid upload form.")
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, nil, BadRequestError("Choose a file to upload.")
	}
	return file, header, nil
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.FromContext(ctx)

	file, header, fail := s.openUpload(w, r)
	if fail != nil {
		s.uploadsDenied.Add(1)
		fail.Write(w)
		return
	}
	defer file.Close()

	period, err := ParseUploadPeriod(r.MultipartForm.Value)
	if err != nil {
		s.uploadsDenied.Add(1)
		BadRequestError(err.Error()).Write(w)
		return
	}

	txs, err := s.parser.Parse(file, header.Filename)
	if err != nil {
		s.uploadsDenied.Add(1)
		logger.WarnContext(ctx, "Upload parse failed", log.FieldError, err, log.FieldOperation, log.OpParse, "filename", header.Filename)
		parseError(err).Write(w)
		return
	}

	res, err := s.uploads.Upload(ctx, services.UploadRequest{Period: period, Transactions: txs})
	if err != nil {
		s.uploadsDenied.Add(1)
		uploadError(err).Write(w)
		return
	}
	s.uploadsOK.Add(1)

	body, err := s.renderFragment("upload_result", uploadView{Result: res, PeriodLabel: periodLabel(res.Period, s.naming)})
	if err != nil {
		logger.ErrorContext(ctx, "Upload result render failed", log.FieldError, err)
		body = []byte(`<div class="success">Stored ` + template.HTMLEscapeString(res.Key) + `</div>`)
	}
	NewHTMXResponse().
		TriggerPeriodStored(res.Key, res.Period.Year, int(res.Period.Month)).
		TriggerFormReset().
		TriggerSuccessNotification(fmt.Sprintf("%s stored: %d rows", res.Key, res.Rows)).
		BodyHTML(body).
		Write(w)
}

func (s *Server) handleImportAccounts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	file, header, fail := s.openUpload(w, r)
	if fail != nil {
		fail.Write(w)
		return
	}
	defer file.Close()

	rows, err := upload.ParseAccounts(file, header.Filename)
	if err != nil {
		parseError(err).Write(w)
		return
	}
	diag, err := s.uploads.ImportAccounts(ctx, rows)
	if err != nil {
		log.FromContext(ctx).ErrorContext(ctx, "Chart import failed", log.FieldError, err)
		uploadError(err).Write(w)
		return
	}

	accounts := len(rows) - len(diag.Skipped) - len(diag.Duplicates)
	body, err := s.renderFragment("import_result", importView{Accounts: accounts, Diagnostics: diag})
	if err != nil {
		body = []byte(fmt.Sprintf(`<div class="success">Chart replaced: %d accounts</div>`, accounts))
	}
	NewHTMXResponse().
		TriggerAccountsImported(accounts).
		TriggerSuccessNotification(fmt.Sprintf("Chart replaced: %d accounts", accounts)).
		BodyHTML(body).
		Write(w)
}

// uploadError turns a rejected upload into a user-facing message. Gate
// failures are 422; anything unexpected is a store failure.
func uploadError(err error) *HTMXResponseBuilder {
	if b := gateError(err); b != nil {
		return b
	}
	return InternalServerError("Could not store the upload. Try again later.")
}

// parseError is uploadError for failures while reading the file, where an
// unclassified error means the file itself is unreadable.
func parseError(err error) *HTMXResponseBuilder {
	if b := gateError(err); b != nil {
		return b
	}
	return UnprocessableEntityError("Could not read the file: " + err.Error())
}

func gateError(err error) *HTMXResponseBuilder {
	var (
		integrity *core.IntegrityError
		bounds    *core.PeriodBoundsError
		columns   *upload.MissingColumnsError
	)
	switch {
	case errors.As(err, &integrity):
		return UnprocessableEntityError(fmt.Sprintf(
			"Upload rejected: %d account code(s) are not in the chart of accounts: %s",
			len(integrity.Missing), truncateList(integrity.Missing)))
	case errors.As(err, &bounds):
		rows := make([]string, len(bounds.Rows))
		for i, b := range bounds.Rows {
			rows[i] = fmt.Sprintf("row %d (%s)", b.Row, b.Format("02/01/2006"))
		}
		return UnprocessableEntityError(fmt.Sprintf(
			"Upload rejected: %d row(s) are dated outside %s or have unreadable dates: %s",
			len(bounds.Rows), bounds.Period, truncateList(rows)))
	case errors.As(err, &columns):
		return UnprocessableEntityError("Missing columns: " + strings.Join(columns.Columns, ", "))
	case errors.Is(err, core.ErrEmptyUpload):
		return UnprocessableEntityError("The file has no usable rows.")
	case errors.Is(err, upload.ErrUnsupportedFormat):
		return UnprocessableEntityError("Unsupported file type; upload .xlsx or .csv.")
	case errors.Is(err, core.ErrInvalidPeriod):
		return BadRequestError(err.Error())
	}
	return nil
}

func truncateList(items []string) string {
	if len(items) <= maxListed {
		return strings.Join(items, ", ")
	}
	return strings.Join(items[:maxListed], ", ") + fmt.Sprintf(" and %d more", len(items)-maxListed)
}
