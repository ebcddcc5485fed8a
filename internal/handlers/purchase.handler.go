package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/fasthttp/router"

	gateway "github.com/Abdallahnangere/SaukinKarshe/internal/gateways"
	"github.com/Abdallahnangere/SaukinKarshe/internal/model"
	"github.com/Abdallahnangere/SaukinKarshe/internal/processor"
	"github.com/Abdallahnangere/SaukinKarshe/internal/repository"
	"github.com/Abdallahnangere/SaukinKarshe/internal/services"
	xhttp "github.com/Abdallahnangere/SaukinKarshe/pkg/http"
	"github.com/Abdallahnangere/SaukinKarshe/pkg/logger"
)

type PurchaseService interface {
	InitiateData(ctx context.Context, req model.DataPurchaseRequest) (*model.Purchase, *model.PaymentDetails, error)
	InitiateStore(ctx context.Context, req model.StorePurchaseRequest) (*model.Purchase, *model.PaymentDetails, error)
	Get(ctx context.Context, reference string) (*model.Purchase, error)
	Track(ctx context.Context, phone string, limit int) ([]*model.Purchase, error)
	Plans(ctx context.Context) ([]*model.DataPlan, error)
	Products(ctx context.Context) ([]*model.Product, error)
}

type ConfirmationProcessor interface {
	HandleConfirmation(ctx context.Context, reference string) (*model.Purchase, error)
}

type PurchaseHandler struct {
	svc       PurchaseService
	processor ConfirmationProcessor
}

func RegisterPurchaseRoutes(e *router.Group, h *PurchaseHandler) {
	e.POST("/purchases/data", h.InitiateData)
	e.POST("/purchases/store", h.InitiateStore)
	e.GET("/purchases/{reference}", h.GetPurchase)
	e.GET("/purchases/{reference}/verify", h.VerifyPurchase)
	e.GET("/purchases", h.TrackPurchases)
	e.GET("/plans", h.ListPlans)
	e.GET("/products", h.ListProducts)
}

func NewPurchaseHandler(svc PurchaseService, processor ConfirmationProcessor) *PurchaseHandler {
	return &PurchaseHandler{
		svc:       svc,
		processor: processor,
	}
}

type dataPurchaseRequest struct {
	PlanID int64  `json:"plan_id"`
	Phone  string `json:"phone"`
}

type storePurchaseRequest struct {
	ProductID int64  `json:"product_id"`
	Phone     string `json:"phone"`
	Name      string `json:"name"`
	State     string `json:"state"`
}

type initiateResponse struct {
	Purchase *model.Purchase       `json:"purchase"`
	Payment  *model.PaymentDetails `json:"payment"`
}

type trackResponse struct {
	Items []*model.Purchase `json:"items"`
}

/* --------------------------------- Routes ----------------------------------- */

func (h *PurchaseHandler) InitiateData(ctx *xhttp.RequestCtx) {
	var req dataPurchaseRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}
	purchase, payment, err := h.svc.InitiateData(ctx, model.DataPurchaseRequest{
		PlanID: req.PlanID,
		Phone:  req.Phone,
	})
	if err != nil {
		if errors.Is(err, services.ErrPlanNotFound) {
			writeError(ctx, 404, err.Error())
			return
		}
		writeError(ctx, 400, err.Error())
		return
	}
	writeJSON(ctx, 201, initiateResponse{Purchase: purchase, Payment: payment})
}

func (h *PurchaseHandler) InitiateStore(ctx *xhttp.RequestCtx) {
	var req storePurchaseRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}
	purchase, payment, err := h.svc.InitiateStore(ctx, model.StorePurchaseRequest{
		ProductID:     req.ProductID,
		Phone:         req.Phone,
		CustomerName:  req.Name,
		DeliveryState: req.State,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrProductNotFound):
			writeError(ctx, 404, err.Error())
		case errors.Is(err, services.ErrProductOutOfStock):
			writeError(ctx, 409, err.Error())
		default:
			writeError(ctx, 400, err.Error())
		}
		return
	}
	writeJSON(ctx, 201, initiateResponse{Purchase: purchase, Payment: payment})
}

func (h *PurchaseHandler) GetPurchase(ctx *xhttp.RequestCtx) {
	reference, ok := ctx.UserValue("reference").(string)
	if !ok || reference == "" {
		writeError(ctx, 400, "reference is required")
		return
	}
	purchase, err := h.svc.Get(ctx, reference)
	if err != nil {
		if errors.Is(err, services.ErrPurchaseNotFound) {
			writeError(ctx, 404, "purchase not found")
			return
		}
		writeInternalError(ctx, err)
		return
	}
	writeJSON(ctx, 200, purchase)
}

// VerifyPurchase is the client-poll confirmation path. Polling is a
// confirmation trigger, not a passive read: it checks the payment gateway
// and, on settlement, drives fulfillment before responding.
func (h *PurchaseHandler) VerifyPurchase(ctx *xhttp.RequestCtx) {
	reference, ok := ctx.UserValue("reference").(string)
	if !ok || reference == "" {
		writeError(ctx, 400, "reference is required")
		return
	}
	purchase, err := h.processor.HandleConfirmation(ctx, reference)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrPurchaseNotFound):
			writeError(ctx, 404, "purchase not found")
		case errors.Is(err, processor.ErrInvalidTransition):
			// Terminal failure; show the client where it landed.
			if current, gerr := h.svc.Get(ctx, reference); gerr == nil {
				writeJSON(ctx, 200, current)
				return
			}
			writeError(ctx, 409, err.Error())
		case errors.Is(err, gateway.ErrGatewayUnavailable):
			writeError(ctx, 502, "payment gateway unavailable, try again")
		default:
			writeInternalError(ctx, err)
		}
		return
	}
	writeJSON(ctx, 200, purchase)
}

func (h *PurchaseHandler) TrackPurchases(ctx *xhttp.RequestCtx) {
	phone := query(ctx, "phone")
	if phone == "" {
		writeError(ctx, 400, "phone is required")
		return
	}
	limit := 0
	if v := query(ctx, "limit"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			limit = n
		}
	}
	items, err := h.svc.Track(ctx, phone, limit)
	if err != nil {
		writeError(ctx, 400, err.Error())
		return
	}
	writeJSON(ctx, 200, trackResponse{Items: items})
}

func (h *PurchaseHandler) ListPlans(ctx *xhttp.RequestCtx) {
	plans, err := h.svc.Plans(ctx)
	if err != nil {
		writeInternalError(ctx, err)
		return
	}
	writeJSON(ctx, 200, plans)
}

func (h *PurchaseHandler) ListProducts(ctx *xhttp.RequestCtx) {
	products, err := h.svc.Products(ctx)
	if err != nil {
		writeInternalError(ctx, err)
		return
	}
	writeJSON(ctx, 200, products)
}

func readJSON(ctx *xhttp.RequestCtx, dst any) error {
	body := ctx.PostBody()
	return json.Unmarshal(body, dst)
}

func writeJSON(ctx *xhttp.RequestCtx, status int, v any) {
	b, _ := json.Marshal(v)
	ctx.Response.Header.Set("Content-Type", "application/json; charset=utf-8")
	ctx.Response.SetStatusCode(status)
	ctx.Response.SetBodyRaw(b)
}

func writeError(ctx *xhttp.RequestCtx, status int, msg string) {
	writeJSON(ctx, status, map[string]string{"error": msg})
}

// writeInternalError logs the cause and answers with a fixed body. Store and
// adapter failures carry hosts and credentials in their messages and must not
// reach a response.
func writeInternalError(ctx *xhttp.RequestCtx, err error) {
	logger.Error("Request failed", "path", string(ctx.Path()), "error", err)
	writeError(ctx, 500, "internal error")
}

func query(ctx *xhttp.RequestCtx, key string) string {
	return string(ctx.QueryArgs().Peek(key))
}
