package handler

import (
	"net/http"
	"time"

	"carledger/internal/apierror"
	"carledger/internal/dto"
	"carledger/internal/ingest"
	"carledger/internal/service"

	"github.com/gin-gonic/gin"
)

// ImportHandler receives snapshot reports and runs them through the
// reconcile service. Reconcile never fails the HTTP request: a batch-fatal
// error comes back as a 200 with zero counts and the Error field set, so
// upload tooling can retry the same file without special-casing status codes.
type ImportHandler struct {
	svc service.ReconcileService
}

func NewImportHandler(svc service.ReconcileService) *ImportHandler {
	return &ImportHandler{svc: svc}
}

// ImportSnapshot accepts a multipart xlsx upload:
//
//	file — the report workbook (first sheet is read)
//	date — snapshot date, YYYY-MM-DD
//	kind — "full" | "partial"
func (h *ImportHandler) ImportSnapshot(c *gin.Context) {
	kind := dto.SourceKind(c.PostForm("kind"))
	if kind != dto.SourceKindFull && kind != dto.SourceKindPartial {
		c.JSON(http.StatusBadRequest, apierror.New("kind must be \"full\" or \"partial\""))
		return
	}

	date, err := time.Parse("2006-01-02", c.PostForm("date"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("date must be YYYY-MM-DD"))
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("missing file upload"))
		return
	}
	f, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("cannot read file upload"))
		return
	}
	defer f.Close()

	rows, err := ingest.MapWorkbook(f, kind)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, apierror.New("cannot parse workbook: "+err.Error()))
		return
	}

	result := h.svc.Reconcile(c.Request.Context(), rows, date, kind)
	c.JSON(http.StatusOK, result)
}

// ImportRows accepts pre-normalized rows as JSON. Used by scripted loads
// and by sources that are not xlsx workbooks.
func (h *ImportHandler) ImportRows(c *gin.Context) {
	var req dto.ReconcileRowsRequest
	if !bindAndValidate(c, &req) {
		return
	}

	result := h.svc.Reconcile(c.Request.Context(), req.Rows, req.Date, req.Kind)
	c.JSON(http.StatusOK, result)
}
