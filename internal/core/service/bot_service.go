package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/rl1809/orderbot/internal/core/domain"
)

type ReplyKind string

const (
	ReplyProducts     ReplyKind = "products"
	ReplyConfirmation ReplyKind = "confirmation"
	ReplyHelp         ReplyKind = "help"
)

// Reply is the outcome of a free-text message. Exactly one payload is set for
// the matching kind, none for ReplyHelp.
type Reply struct {
	Kind         ReplyKind
	Products     []domain.Product
	Confirmation *domain.Confirmation
}

// BotService is the entry point used by chat transports.
type BotService struct {
	catalog *CatalogService
	cart    *CartService
	logger  zerolog.Logger
}

func NewBotService(catalog *CatalogService, cart *CartService, logger zerolog.Logger) *BotService {
	return &BotService{catalog: catalog, cart: cart, logger: logger}
}

func (s *BotService) HandleSearch(ctx context.Context, customerID, text string) ([]domain.Product, error) {
	products, err := s.catalog.Search(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return nil, domain.ErrNoMatchFound
	}

	s.logger.Debug().Str("customer_id", customerID).Str("query", text).Int("results", len(products)).Msg("search")
	return products, nil
}

func (s *BotService) HandleAddItem(ctx context.Context, customerID, text string) (*domain.Confirmation, error) {
	return s.cart.AddItem(ctx, customerID, text)
}

func (s *BotService) HandlePreview(ctx context.Context, customerID string) (*domain.Invoice, error) {
	return s.cart.Preview(ctx, customerID)
}

func (s *BotService) HandleFinalize(ctx context.Context, customerID string) (*domain.Invoice, error) {
	return s.cart.Finalize(ctx, customerID)
}

// HandleVoice always reports that voice input is not available.
func (s *BotService) HandleVoice(ctx context.Context, customerID string) error {
	return domain.ErrUnsupportedFeature
}

// HandleText classifies a text message and dispatches it.
func (s *BotService) HandleText(ctx context.Context, customerID, text string) (*Reply, error) {
	return s.HandleMessage(ctx, customerID, domain.Message{Text: text})
}

// HandleMessage classifies a transport message and dispatches it.
func (s *BotService) HandleMessage(ctx context.Context, customerID string, msg domain.Message) (*Reply, error) {
	cmd := ClassifyMessage(msg)

	switch cmd.Kind {
	case domain.CommandAddItem:
		c, err := s.HandleAddItem(ctx, customerID, cmd.Code+" "+cmd.Quantity)
		if err != nil {
			return nil, err
		}
		return &Reply{Kind: ReplyConfirmation, Confirmation: c}, nil

	case domain.CommandSearch:
		products, err := s.HandleSearch(ctx, customerID, cmd.Text)
		if err != nil {
			return nil, err
		}
		return &Reply{Kind: ReplyProducts, Products: products}, nil

	case domain.CommandVoice:
		return nil, s.HandleVoice(ctx, customerID)
	}

	return &Reply{Kind: ReplyHelp}, nil
}
