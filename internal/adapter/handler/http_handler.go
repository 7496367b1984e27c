package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/rl1809/orderbot/internal/core/domain"
	"github.com/rl1809/orderbot/internal/core/service"
)

// Bot is the chat-facing use case surface the HTTP shell drives.
type Bot interface {
	HandleMessage(ctx context.Context, customerID string, msg domain.Message) (*service.Reply, error)
	HandleSearch(ctx context.Context, customerID, text string) ([]domain.Product, error)
	HandleAddItem(ctx context.Context, customerID, text string) (*domain.Confirmation, error)
	HandlePreview(ctx context.Context, customerID string) (*domain.Invoice, error)
	HandleFinalize(ctx context.Context, customerID string) (*domain.Invoice, error)
	HandleVoice(ctx context.Context, customerID string) error
}

type Catalog interface {
	UpsertProduct(ctx context.Context, p domain.Product) error
}

type HTTPHandler struct {
	bot     Bot
	catalog Catalog
	logger  zerolog.Logger
}

type MessageRequest struct {
	Text  string `json:"text"`
	Voice bool   `json:"voice"`
}

type AddItemRequest struct {
	Command string `json:"command"`
}

type ProductRequest struct {
	Name   string `json:"name"`
	Unit   string `json:"unit"`
	Price  int64  `json:"price"`
	Active *bool  `json:"active"`
}

type ProductView struct {
	Code  string `json:"code"`
	Name  string `json:"name"`
	Unit  string `json:"unit"`
	Price int64  `json:"price"`
}

type ConfirmationView struct {
	OrderID     int64  `json:"order_id"`
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
	LineTotal   int64  `json:"line_total"`
}

type BotResponse struct {
	Success      bool              `json:"success"`
	Kind         string            `json:"kind,omitempty"`
	Message      string            `json:"message"`
	Products     []ProductView     `json:"products,omitempty"`
	Confirmation *ConfirmationView `json:"confirmation,omitempty"`
}

const helpText = "Send a product name to search, or <code> <quantity> to order (example: 1001 5)."

func NewHTTPHandler(bot Bot, catalog Catalog, logger zerolog.Logger) *HTTPHandler {
	return &HTTPHandler{bot: bot, catalog: catalog, logger: logger}
}

// Routes builds the chi router with request logging and panic recovery.
func (h *HTTPHandler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(LoggerMiddleware(h.logger))

	r.Get("/health", h.HealthCheck)

	r.Route("/api/v1", func(r chi.Router) {
		r.Put("/products/{code}", h.UpsertProduct)

		r.Route("/customers/{customerID}", func(r chi.Router) {
			r.Post("/messages", h.Message)
			r.Get("/search", h.Search)
			r.Post("/items", h.AddItem)
			r.Get("/invoice", h.Preview)
			r.Post("/checkout", h.Checkout)
			r.Post("/voice", h.Voice)
		})
	})
	return r
}

func (h *HTTPHandler) Message(w http.ResponseWriter, r *http.Request) {
	var req MessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, BotResponse{Message: "invalid request body"})
		return
	}

	reply, err := h.bot.HandleMessage(r.Context(), customerID(r), domain.Message{Text: req.Text, Voice: req.Voice})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	switch reply.Kind {
	case service.ReplyProducts:
		writeJSON(w, http.StatusOK, searchResponse(reply.Products))
	case service.ReplyConfirmation:
		writeJSON(w, http.StatusOK, confirmationResponse(reply.Confirmation))
	default:
		writeJSON(w, http.StatusOK, BotResponse{Success: true, Kind: string(service.ReplyHelp), Message: helpText})
	}
}

func (h *HTTPHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeJSON(w, http.StatusBadRequest, BotResponse{Message: "missing query"})
		return
	}

	products, err := h.bot.HandleSearch(r.Context(), customerID(r), query)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, searchResponse(products))
}

func (h *HTTPHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, BotResponse{Message: "invalid request body"})
		return
	}

	c, err := h.bot.HandleAddItem(r.Context(), customerID(r), req.Command)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, confirmationResponse(c))
}

func (h *HTTPHandler) Preview(w http.ResponseWriter, r *http.Request) {
	inv, err := h.bot.HandlePreview(r.Context(), customerID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeImage(w, inv)
}

func (h *HTTPHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	inv, err := h.bot.HandleFinalize(r.Context(), customerID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeImage(w, inv)
}

func (h *HTTPHandler) Voice(w http.ResponseWriter, r *http.Request) {
	h.writeError(w, r, h.bot.HandleVoice(r.Context(), customerID(r)))
}

func (h *HTTPHandler) UpsertProduct(w http.ResponseWriter, r *http.Request) {
	var req ProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, BotResponse{Message: "invalid request body"})
		return
	}

	p := domain.Product{
		Code:   chi.URLParam(r, "code"),
		Name:   req.Name,
		Unit:   req.Unit,
		Price:  req.Price,
		Active: req.Active == nil || *req.Active,
	}
	if err := h.catalog.UpsertProduct(r.Context(), p); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, BotResponse{Success: true, Message: "product saved"})
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeError maps error kinds to a status and a user facing message. Storage
// failures are logged and reported generically.
func (h *HTTPHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	message := "internal error"

	switch {
	case errors.Is(err, domain.ErrInvalidFormat):
		status, message = http.StatusBadRequest, "send <code> <quantity>, for example 1001 5"
	case errors.Is(err, domain.ErrInvalidQuantity):
		status, message = http.StatusBadRequest, "quantity must be a positive number"
	case errors.Is(err, domain.ErrInvalidProduct):
		status, message = http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrInvalidCode):
		status, message = http.StatusNotFound, "invalid product code"
	case errors.Is(err, domain.ErrNoMatchFound):
		status, message = http.StatusNotFound, "no product found"
	case errors.Is(err, domain.ErrEmptyCart):
		status, message = http.StatusNotFound, "cart is empty"
	case errors.Is(err, domain.ErrOrderFinalized):
		status, message = http.StatusConflict, "order already finalized, please retry"
	case errors.Is(err, domain.ErrUnsupportedFeature):
		status, message = http.StatusNotImplemented, "voice search is not available yet"
	default:
		h.logger.Error().Err(err).
			Str("request_id", getRequestID(r)).
			Str("customer_id", chi.URLParam(r, "customerID")).
			Msg("request failed")
	}

	writeJSON(w, status, BotResponse{Success: false, Message: message})
}

func customerID(r *http.Request) string {
	return chi.URLParam(r, "customerID")
}

func searchResponse(products []domain.Product) BotResponse {
	var b strings.Builder
	b.WriteString("Results:\n\n")

	views := make([]ProductView, 0, len(products))
	for _, p := range products {
		views = append(views, ProductView{Code: p.Code, Name: p.Name, Unit: p.Unit, Price: p.Price})
		fmt.Fprintf(&b, "- %s [%s] (%s) | %d\n", p.Name, p.Code, p.Unit, p.Price)
	}
	b.WriteString("\nSend product code + quantity (example: 1001 5)")

	return BotResponse{Success: true, Kind: string(service.ReplyProducts), Message: b.String(), Products: views}
}

func confirmationResponse(c *domain.Confirmation) BotResponse {
	return BotResponse{
		Success: true,
		Kind:    string(service.ReplyConfirmation),
		Message: fmt.Sprintf("%s added", c.ProductName),
		Confirmation: &ConfirmationView{
			OrderID:     c.OrderID,
			ProductName: c.ProductName,
			Quantity:    c.Quantity,
			LineTotal:   c.LineTotal,
		},
	}
}

func writeImage(w http.ResponseWriter, inv *domain.Invoice) {
	w.Header().Set("Content-Type", inv.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=invoice_%d.png", inv.OrderID))
	w.WriteHeader(http.StatusOK)
	w.Write(inv.Image)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
