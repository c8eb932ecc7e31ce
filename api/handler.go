package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"sales_billing/internal/billing"
	"sales_billing/internal/dashboard"
	"sales_billing/internal/sales"
)

// salesHandler holds the sales service and implements HTTP handlers for sale forms.
type salesHandler struct {
	salesService      *sales.Service
	catalog           sales.Catalog
	logger            *zap.Logger
	lowStockThreshold int
}

// NewSalesHandler creates a new sales handler.
func NewSalesHandler(salesService *sales.Service, catalog sales.Catalog, logger *zap.Logger, lowStockThreshold int) *salesHandler {
	return &salesHandler{
		salesService:      salesService,
		catalog:           catalog,
		logger:            logger,
		lowStockThreshold: lowStockThreshold,
	}
}

type itemRequest struct {
	ProductID string           `json:"product_id"`
	Quantity  int              `json:"quantity"`
	PriceTier string           `json:"price_tier" binding:"omitempty,oneof=regular bulk manual"`
	UnitPrice *decimal.Decimal `json:"unit_price"`
}

func (r itemRequest) input() sales.ItemInput {
	return sales.ItemInput{
		ProductID: r.ProductID,
		Quantity:  r.Quantity,
		Tier:      billing.PriceTier(r.PriceTier),
		UnitPrice: r.UnitPrice,
	}
}

type quoteRequest struct {
	Items      []itemRequest   `json:"items" binding:"dive"`
	AmountPaid decimal.Decimal `json:"amount_paid"`
}

type openFormRequest struct {
	BuyerID    string          `json:"buyer_id"`
	SaleDate   *time.Time      `json:"sale_date"`
	AmountPaid decimal.Decimal `json:"amount_paid"`
}

type patchFormRequest struct {
	BuyerID    *string          `json:"buyer_id"`
	SaleDate   *time.Time       `json:"sale_date"`
	AmountPaid *decimal.Decimal `json:"amount_paid"`
}

// bindJSON binds the request body, answering 400 itself on failure.
func (h *salesHandler) bindJSON(ctx *gin.Context, dst any) bool {
	err := ctx.ShouldBindJSON(dst)
	if err == nil {
		return true
	}
	h.logger.Warn("failed to bind JSON request", zap.Error(err))

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]billing.FieldError, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, billing.FieldError{Field: fe.Namespace(), Message: "failed on " + fe.Tag()})
		}
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload", "fields": fields})
		return false
	}
	ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
	return false
}

// respondError maps service errors to HTTP responses.
func (h *salesHandler) respondError(ctx *gin.Context, err error) {
	var verr *billing.ValidationError
	switch {
	case errors.As(err, &verr):
		ctx.JSON(http.StatusBadRequest, gin.H{"error": billing.ErrValidation.Error(), "fields": verr.Fields})
	case errors.Is(err, sales.ErrNotFound):
		ctx.JSON(http.StatusNotFound, gin.H{"error": "form not found"})
	case errors.Is(err, sales.ErrSaleNotFound):
		ctx.JSON(http.StatusNotFound, gin.H{"error": sales.ErrSaleNotFound.Error()})
	case errors.Is(err, sales.ErrUnknownProduct):
		ctx.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, sales.ErrItemIndex):
		ctx.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, sales.ErrSubmissionInProgress), errors.Is(err, sales.ErrFormClosed):
		ctx.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, sales.ErrPersistence), errors.Is(err, sales.ErrCatalog):
		_ = ctx.Error(err)
		ctx.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		_ = ctx.Error(err)
		h.logger.Error("unexpected error", zap.Error(err))
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func itemIndex(ctx *gin.Context) (int, bool) {
	index, err := strconv.Atoi(ctx.Param("index"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid item index"})
		return 0, false
	}
	return index, true
}

// handleQuote handles the POST /bills/quote endpoint.
func (h *salesHandler) handleQuote(ctx *gin.Context) {
	var req quoteRequest
	if !h.bindJSON(ctx, &req) {
		return
	}

	items := make([]sales.ItemInput, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, it.input())
	}
	bill, err := h.salesService.Quote(ctx.Request.Context(), items, req.AmountPaid)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, bill)
}

// handleOpenForm handles the POST /forms endpoint.
func (h *salesHandler) handleOpenForm(ctx *gin.Context) {
	var req openFormRequest
	if !h.bindJSON(ctx, &req) {
		return
	}

	in := sales.FormInput{BuyerID: req.BuyerID, AmountPaid: req.AmountPaid}
	if req.SaleDate != nil {
		in.SaleDate = *req.SaleDate
	} else {
		in.SaleDate = time.Now().UTC()
	}
	form, err := h.salesService.OpenForm(in)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, form.View())
}

// handleListSales handles the GET /sales endpoint.
func (h *salesHandler) handleListSales(ctx *gin.Context) {
	recs, err := h.salesService.ListSales(ctx.Request.Context())
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"results": recs})
}

// handleReopenSale handles the POST /sales/:id/form endpoint.
func (h *salesHandler) handleReopenSale(ctx *gin.Context) {
	form, err := h.salesService.ReopenSale(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, form.View())
}

func (h *salesHandler) handleListForms(ctx *gin.Context) {
	forms, err := h.salesService.ListForms()
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	views := make([]sales.FormView, 0, len(forms))
	for _, f := range forms {
		views = append(views, f.View())
	}
	ctx.JSON(http.StatusOK, gin.H{"results": views})
}

func (h *salesHandler) handleGetForm(ctx *gin.Context) {
	form, err := h.salesService.GetForm(ctx.Param("id"))
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, form.View())
}

// handlePatchForm handles the PATCH /forms/:id endpoint.
func (h *salesHandler) handlePatchForm(ctx *gin.Context) {
	var req patchFormRequest
	if !h.bindJSON(ctx, &req) {
		return
	}

	form, err := h.salesService.EditForm(ctx.Param("id"), sales.FormPatch{
		BuyerID:    req.BuyerID,
		SaleDate:   req.SaleDate,
		AmountPaid: req.AmountPaid,
	})
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, form.View())
}

func (h *salesHandler) handleDiscardForm(ctx *gin.Context) {
	if err := h.salesService.DiscardForm(ctx.Param("id")); err != nil {
		h.respondError(ctx, err)
		return
	}
	ctx.Status(http.StatusNoContent)
}

// handleAddItem handles the POST /forms/:id/items endpoint.
func (h *salesHandler) handleAddItem(ctx *gin.Context) {
	var req itemRequest
	if !h.bindJSON(ctx, &req) {
		return
	}

	form, err := h.salesService.AddItem(ctx.Request.Context(), ctx.Param("id"), req.input())
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, form.View())
}

// handleUpdateItem handles the PUT /forms/:id/items/:index endpoint.
func (h *salesHandler) handleUpdateItem(ctx *gin.Context) {
	index, ok := itemIndex(ctx)
	if !ok {
		return
	}
	var req itemRequest
	if !h.bindJSON(ctx, &req) {
		return
	}

	form, err := h.salesService.UpdateItem(ctx.Request.Context(), ctx.Param("id"), index, req.input())
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, form.View())
}

func (h *salesHandler) handleRemoveItem(ctx *gin.Context) {
	index, ok := itemIndex(ctx)
	if !ok {
		return
	}

	form, err := h.salesService.RemoveItem(ctx.Param("id"), index)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, form.View())
}

// handleSubmit handles the POST /forms/:id/submit endpoint. A new sale
// answers 201, an update of an existing one 200.
func (h *salesHandler) handleSubmit(ctx *gin.Context) {
	formID := ctx.Param("id")
	form, err := h.salesService.GetForm(formID)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	updating := form.Draft().ExistingID != ""

	rec, err := h.salesService.Submit(ctx.Request.Context(), formID)
	if err != nil {
		h.respondError(ctx, err)
		return
	}

	status := http.StatusCreated
	if updating {
		status = http.StatusOK
	}
	ctx.JSON(status, rec)
}

func (h *salesHandler) handleInvoice(ctx *gin.Context) {
	inv, err := h.salesService.Invoice(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, inv)
}

// handleDashboard handles the GET /dashboard endpoint.
func (h *salesHandler) handleDashboard(ctx *gin.Context) {
	products, err := h.catalog.ListProducts(ctx.Request.Context())
	if err != nil {
		h.logger.Error("failed to list products", zap.Error(err))
		h.respondError(ctx, errors.Join(sales.ErrCatalog, err))
		return
	}
	ctx.JSON(http.StatusOK, dashboard.Summarize(products, h.lowStockThreshold))
}

func (h *salesHandler) handleListProducts(ctx *gin.Context) {
	products, err := h.catalog.ListProducts(ctx.Request.Context())
	if err != nil {
		h.respondError(ctx, errors.Join(sales.ErrCatalog, err))
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"results": products})
}

func (h *salesHandler) handleListBuyers(ctx *gin.Context) {
	buyers, err := h.catalog.ListBuyers(ctx.Request.Context())
	if err != nil {
		h.respondError(ctx, errors.Join(sales.ErrCatalog, err))
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"results": buyers})
}

func (h *salesHandler) handleListTowns(ctx *gin.Context) {
	towns, err := h.catalog.ListTowns(ctx.Request.Context())
	if err != nil {
		h.respondError(ctx, errors.Join(sales.ErrCatalog, err))
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"results": towns})
}
