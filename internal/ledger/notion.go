package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/finance-bot/internal/domain"
	"github.com/dvloznov/finance-bot/internal/logger"
	"github.com/jomei/notionapi"
)

// NotionService is the slice of the Notion API the mirror needs.
type NotionService interface {
	CreatePage(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error)
}

// NotionClient implements NotionService with the Notion SDK.
type NotionClient struct {
	client *notionapi.Client
}

var _ NotionService = (*NotionClient)(nil)

// NewNotionClient creates a NotionClient with the provided API token.
func NewNotionClient(token string) *NotionClient {
	return &NotionClient{
		client: notionapi.NewClient(notionapi.Token(token)),
	}
}

// CreatePage creates a page in a Notion database.
func (n *NotionClient) CreatePage(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error) {
	req := &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: notionapi.DatabaseID(databaseID),
		},
		Properties: properties,
	}

	page, err := n.client.Page.Create(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("CreatePage: %w", err)
	}

	return page, nil
}

// NotionMirror creates one Notion page per posted ledger row.
type NotionMirror struct {
	service    NotionService
	databaseID string
}

var _ Mirror = (*NotionMirror)(nil)

// NewNotionMirror creates a mirror writing into databaseID.
func NewNotionMirror(service NotionService, databaseID string) *NotionMirror {
	return &NotionMirror{service: service, databaseID: databaseID}
}

// MirrorRows creates a page for every row. It stops at the first failure.
func (m *NotionMirror) MirrorRows(ctx context.Context, rows []domain.LedgerRow) error {
	log := logger.FromContext(ctx)

	for i, row := range rows {
		page, err := m.service.CreatePage(ctx, m.databaseID, RowToNotionProperties(row))
		if err != nil {
			return fmt.Errorf("MirrorRows: row %d: %w", i, err)
		}
		log.Debug().Str("page_id", string(page.ID)).Msg("Mirrored ledger row to Notion")
	}
	return nil
}

// RowToNotionProperties maps a ledger row onto the mirror database columns.
func RowToNotionProperties(row domain.LedgerRow) notionapi.Properties {
	date := notionapi.Date(time.Date(row.Date.Year, row.Date.Month, row.Date.Day, 0, 0, 0, 0, time.UTC))

	props := notionapi.Properties{
		"Descripción": notionapi.TitleProperty{
			Title: richText(row.Description),
		},
		"Fecha": notionapi.DateProperty{
			Date: &notionapi.DateObject{Start: &date},
		},
		"Monto": notionapi.NumberProperty{
			Number: row.Amount.InexactFloat64(),
		},
		"Cuenta": selectOption(row.Account),
		"Tipo":   selectOption(string(row.MovementType)),
		"Moneda": selectOption(row.Currency),
	}

	if row.Category != "" {
		props["Categoría"] = selectOption(row.Category)
	}
	if row.Subcategory != "" {
		props["Subcategoría"] = selectOption(row.Subcategory)
	}
	if row.Asset != "" {
		props["Activo"] = notionapi.RichTextProperty{RichText: richText(row.Asset)}
		props["Cantidad"] = notionapi.NumberProperty{Number: row.Quantity.InexactFloat64()}
		props["Precio unitario"] = notionapi.NumberProperty{Number: row.UnitPrice.InexactFloat64()}
	}

	return props
}

func richText(s string) []notionapi.RichText {
	return []notionapi.RichText{
		{
			Type: notionapi.ObjectTypeText,
			Text: &notionapi.Text{Content: s},
		},
	}
}

func selectOption(name string) notionapi.SelectProperty {
	return notionapi.SelectProperty{Select: notionapi.Option{Name: name}}
}
