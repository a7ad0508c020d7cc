package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/rl1809/pizzeria/internal/core/domain"
)

const embedColor = 0xFF6B35

type embedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type embedFooter struct {
	Text string `json:"text"`
}

type embed struct {
	Title     string       `json:"title"`
	Color     int          `json:"color"`
	Fields    []embedField `json:"fields"`
	Timestamp string       `json:"timestamp"`
	Footer    embedFooter  `json:"footer"`
}

type webhookPayload struct {
	Content string  `json:"content,omitempty"`
	Embeds  []embed `json:"embeds"`
}

func buildPayload(o domain.Order, now time.Time) webhookPayload {
	items := make([]string, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, itemLine(it))
	}
	return webhookPayload{
		Embeds: []embed{{
			Title: "🍕 Novo Pedido D'Kasa",
			Color: embedColor,
			Fields: []embedField{
				{Name: "📋 Pedido", Value: OrderNumber(o.Number) + " - " + o.Status.Label(), Inline: true},
				{Name: "👤 Cliente", Value: o.CustomerName + "\n" + o.CustomerPhone, Inline: true},
				{Name: "🍕 Itens", Value: strings.Join(items, "\n")},
				{Name: "💰 Total", Value: o.Total.BRL(), Inline: true},
				{Name: "🚚 Tipo", Value: o.DeliveryType.Label(), Inline: true},
				{Name: "💳 Pagamento", Value: o.PaymentMethod.Label(), Inline: true},
			},
			Timestamp: now.UTC().Format(time.RFC3339),
			Footer:    embedFooter{Text: shopName},
		}},
	}
}

// Discord posts order embeds to a Discord webhook.
type Discord struct {
	url    string
	client *http.Client
	logger *zap.Logger
	now    func() time.Time
}

func NewDiscord(url string, timeout time.Duration, logger *zap.Logger) *Discord {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Discord{
		url: url,
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: logger,
		now:    time.Now,
	}
}

func (d *Discord) Notify(ctx context.Context, order domain.Order) error {
	body, err := json.Marshal(buildPayload(order, d.now()))
	if err != nil {
		return fmt.Errorf("encode discord payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build discord request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("post discord webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("discord webhook returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	d.logger.Debug("discord notification delivered",
		zap.String("order_id", order.ID),
		zap.Int64("order_number", order.Number),
	)
	return nil
}
