package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/giovaniif/e-commerce/inventory/domain"
	"github.com/giovaniif/e-commerce/inventory/domain/item"
	"github.com/giovaniif/e-commerce/inventory/domain/reservation"
	"github.com/giovaniif/e-commerce/inventory/infra/logging"
	"github.com/giovaniif/e-commerce/inventory/use_cases/admin"
	"github.com/giovaniif/e-commerce/inventory/use_cases/check"
	"github.com/giovaniif/e-commerce/inventory/use_cases/confirm"
	"github.com/giovaniif/e-commerce/inventory/use_cases/query"
	"github.com/giovaniif/e-commerce/inventory/use_cases/release"
	"github.com/giovaniif/e-commerce/inventory/use_cases/reserve"
)

type ReserveItem struct {
	Sku      string `json:"sku"`
	Quantity int32  `json:"quantity"`
}

type ReserveRequest struct {
	OrderId string        `json:"orderId"`
	Items   []ReserveItem `json:"items"`
}

type ReservationRequest struct {
	ReservationId string `json:"reservationId"`
}

type QuantityRequest struct {
	Quantity int32 `json:"quantity"`
}

type AddInventoryRequest struct {
	Sku               string `json:"sku"`
	ProductId         int64  `json:"productId"`
	QuantityOnHand    int32  `json:"quantityOnHand"`
	ReorderPoint      *int32 `json:"reorderPoint"`
	ReorderQuantity   *int32 `json:"reorderQuantity"`
	WarehouseId       string `json:"warehouseId"`
	WarehouseLocation string `json:"warehouseLocation"`
}

type ItemResponse struct {
	Sku               string     `json:"sku"`
	ProductId         int64      `json:"productId"`
	QuantityOnHand    int32      `json:"quantityOnHand"`
	QuantityReserved  int32      `json:"quantityReserved"`
	QuantityAvailable int32      `json:"quantityAvailable"`
	ReorderPoint      int32      `json:"reorderPoint"`
	ReorderQuantity   int32      `json:"reorderQuantity"`
	WarehouseId       string     `json:"warehouseId,omitempty"`
	WarehouseLocation string     `json:"warehouseLocation,omitempty"`
	Status            string     `json:"status"`
	NeedsReorder      bool       `json:"needsReorder"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
	LastRestockedAt   *time.Time `json:"lastRestockedAt,omitempty"`
	Version           int64      `json:"version"`
}

type ReservationResponse struct {
	ReservationId string        `json:"reservationId"`
	OrderId       string        `json:"orderId"`
	Items         []ReserveItem `json:"items"`
	Status        string        `json:"status"`
	CreatedAt     time.Time     `json:"createdAt"`
	ExpiresAt     time.Time     `json:"expiresAt"`
	ConfirmedAt   *time.Time    `json:"confirmedAt,omitempty"`
	ReleasedAt    *time.Time    `json:"releasedAt,omitempty"`
}

type ShortageResponse struct {
	Sku       string `json:"sku"`
	Available int32  `json:"available"`
	Requested int32  `json:"requested"`
}

type ReserveResponse struct {
	ReservationId *string           `json:"reservationId"`
	Success       bool              `json:"success"`
	Message       string            `json:"message"`
	ExpiresAt     *time.Time        `json:"expiresAt,omitempty"`
	Shortage      *ShortageResponse `json:"shortage,omitempty"`
}

type StockCheckResponse struct {
	Sku       string `json:"sku"`
	Available int32  `json:"available"`
	InStock   bool   `json:"inStock"`
}

type StatsResponse struct {
	InStock            int64 `json:"inStock"`
	LowStock           int64 `json:"lowStock"`
	OutOfStock         int64 `json:"outOfStock"`
	TotalQuantity      int64 `json:"totalQuantity"`
	TotalReserved      int64 `json:"totalReserved"`
	ActiveReservations int64 `json:"activeReservations"`
}

type Handlers struct {
	reserve *reserve.Reserve
	confirm *confirm.Confirm
	release *release.Release
	check   *check.Check
	admin   *admin.Admin
	query   *query.Query
	logger  *zap.Logger
}

func NewHandlers(
	reserveUseCase *reserve.Reserve,
	confirmUseCase *confirm.Confirm,
	releaseUseCase *release.Release,
	checkUseCase *check.Check,
	adminUseCase *admin.Admin,
	queryUseCase *query.Query,
	logger *zap.Logger,
) *Handlers {
	return &Handlers{
		reserve: reserveUseCase,
		confirm: confirmUseCase,
		release: releaseUseCase,
		check:   checkUseCase,
		admin:   adminUseCase,
		query:   queryUseCase,
		logger:  logger,
	}
}

func (h *Handlers) Register(r gin.IRouter) {
	g := r.Group("/api/v1/inventory")
	g.GET("/check", h.checkStock)
	g.POST("/reserve", h.reserveStock)
	g.POST("/release", h.releaseStock)
	g.POST("/confirm", h.confirmReservation)
	g.GET("/low-stock", h.lowStock)
	g.GET("/stats", h.stats)

	g.POST("/items", h.addInventory)
	g.GET("/items/:sku", h.getItem)
	g.PUT("/items/:sku/stock", h.updateStock)
	g.POST("/items/:sku/restock", h.restock)

	g.GET("/warehouses/:warehouseId/items", h.itemsByWarehouse)

	g.GET("/reservations", h.reservationsByOrder)
	g.GET("/reservations/:id", h.getReservation)
}

func (h *Handlers) checkStock(c *gin.Context) {
	var skus []string
	for _, raw := range c.QueryArray("skus") {
		for _, sku := range strings.Split(raw, ",") {
			if sku = strings.TrimSpace(sku); sku != "" {
				skus = append(skus, sku)
			}
		}
	}
	if len(skus) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "skus query parameter is required"})
		return
	}
	results, err := h.check.Check(c.Request.Context(), check.Input{Skus: skus})
	if err != nil {
		h.fail(c, err)
		return
	}
	out := make([]StockCheckResponse, len(results))
	for i, r := range results {
		out[i] = StockCheckResponse{Sku: r.Sku, Available: r.Available, InStock: r.InStock}
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handlers) reserveStock(c *gin.Context) {
	var req ReserveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	input := reserve.Input{OrderId: req.OrderId, Items: make([]reserve.Item, len(req.Items))}
	for i, it := range req.Items {
		input.Items[i] = reserve.Item{Sku: it.Sku, Quantity: it.Quantity}
	}

	out, err := h.reserve.Reserve(c.Request.Context(), input)
	if err != nil {
		h.fail(c, err)
		return
	}
	if !out.Success {
		c.JSON(http.StatusBadRequest, ReserveResponse{
			Success: false,
			Message: out.Message,
			Shortage: &ShortageResponse{
				Sku:       out.Shortage.Sku,
				Available: out.Shortage.Available,
				Requested: out.Shortage.Requested,
			},
		})
		return
	}
	c.JSON(http.StatusOK, ReserveResponse{
		ReservationId: &out.ReservationId,
		Success:       true,
		Message:       out.Message,
		ExpiresAt:     &out.ExpiresAt,
	})
}

func (h *Handlers) releaseStock(c *gin.Context) {
	var req ReservationRequest
	if !h.bindReservation(c, &req) {
		return
	}
	if err := h.release.Release(c.Request.Context(), release.Input{ReservationId: req.ReservationId}); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusOK)
}

func (h *Handlers) confirmReservation(c *gin.Context) {
	var req ReservationRequest
	if !h.bindReservation(c, &req) {
		return
	}
	if err := h.confirm.Confirm(c.Request.Context(), confirm.Input{ReservationId: req.ReservationId}); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusOK)
}

func (h *Handlers) bindReservation(c *gin.Context, req *ReservationRequest) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	if req.ReservationId == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "reservationId is required"})
		return false
	}
	return true
}

func (h *Handlers) addInventory(c *gin.Context) {
	var req AddInventoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	it, err := h.admin.AddInventory(c.Request.Context(), admin.AddInput{
		Sku:               req.Sku,
		ProductId:         req.ProductId,
		QuantityOnHand:    req.QuantityOnHand,
		ReorderPoint:      req.ReorderPoint,
		ReorderQuantity:   req.ReorderQuantity,
		WarehouseId:       req.WarehouseId,
		WarehouseLocation: req.WarehouseLocation,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, toItemResponse(it))
}

func (h *Handlers) getItem(c *gin.Context) {
	it, err := h.query.GetItem(c.Request.Context(), c.Param("sku"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toItemResponse(it))
}

func (h *Handlers) updateStock(c *gin.Context) {
	h.stockChange(c, h.admin.UpdateStock)
}

func (h *Handlers) restock(c *gin.Context) {
	h.stockChange(c, h.admin.Restock)
}

func (h *Handlers) stockChange(c *gin.Context, apply func(context.Context, admin.StockInput) (*item.Item, error)) {
	var req QuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	it, err := apply(c.Request.Context(), admin.StockInput{Sku: c.Param("sku"), Quantity: req.Quantity})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toItemResponse(it))
}

func (h *Handlers) lowStock(c *gin.Context) {
	items, err := h.query.LowStock(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	out := make([]ItemResponse, len(items))
	for i, it := range items {
		out[i] = toItemResponse(it)
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handlers) itemsByWarehouse(c *gin.Context) {
	items, err := h.query.ItemsByWarehouse(c.Request.Context(), c.Param("warehouseId"))
	if err != nil {
		h.fail(c, err)
		return
	}
	out := make([]ItemResponse, len(items))
	for i, it := range items {
		out[i] = toItemResponse(it)
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handlers) stats(c *gin.Context) {
	s, err := h.query.Stats(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, StatsResponse(s))
}

func (h *Handlers) getReservation(c *gin.Context) {
	res, err := h.query.GetReservation(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toReservationResponse(res))
}

func (h *Handlers) reservationsByOrder(c *gin.Context) {
	orderId := c.Query("orderId")
	if orderId == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "orderId query parameter is required"})
		return
	}
	found, err := h.query.ReservationsByOrder(c.Request.Context(), orderId)
	if err != nil {
		h.fail(c, err)
		return
	}
	out := make([]ReservationResponse, len(found))
	for i, res := range found {
		out[i] = toReservationResponse(res)
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handlers) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logging.FromContext(c.Request.Context(), h.logger).Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", status),
			zap.Error(err),
		)
	}
	if domain.IsRetriable(err) {
		c.Header("Retry-After", "1")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidQuantity):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInvalidState),
		errors.Is(err, domain.ErrConflict),
		errors.Is(err, domain.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvariant):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrBusy):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func toItemResponse(it *item.Item) ItemResponse {
	return ItemResponse{
		Sku:               it.Sku,
		ProductId:         it.ProductId,
		QuantityOnHand:    it.QuantityOnHand,
		QuantityReserved:  it.QuantityReserved,
		QuantityAvailable: it.QuantityAvailable,
		ReorderPoint:      it.ReorderPoint,
		ReorderQuantity:   it.ReorderQuantity,
		WarehouseId:       it.WarehouseId,
		WarehouseLocation: it.WarehouseLocation,
		Status:            string(it.Status),
		NeedsReorder:      it.NeedsReorder(),
		CreatedAt:         it.CreatedAt,
		UpdatedAt:         it.UpdatedAt,
		LastRestockedAt:   it.LastRestockedAt,
		Version:           it.Version,
	}
}

func toReservationResponse(res *reservation.Reservation) ReservationResponse {
	items := make([]ReserveItem, len(res.Items))
	for i, line := range res.Items {
		items[i] = ReserveItem{Sku: line.Sku, Quantity: line.Quantity}
	}
	return ReservationResponse{
		ReservationId: res.Id,
		OrderId:       res.OrderId,
		Items:         items,
		Status:        string(res.Status),
		CreatedAt:     res.CreatedAt,
		ExpiresAt:     res.ExpiresAt,
		ConfirmedAt:   res.ConfirmedAt,
		ReleasedAt:    res.ReleasedAt,
	}
}
