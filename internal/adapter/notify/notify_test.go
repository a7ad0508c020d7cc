package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/pizzeria/internal/core/domain"
)

func sampleOrder() domain.Order {
	cash := domain.Reais(100, 0)
	return domain.Order{
		ID:            "o-1",
		Number:        42,
		Status:        domain.OrderStatusConfirmed,
		DeliveryType:  domain.DeliveryTypeDelivery,
		PaymentMethod: domain.PaymentMethodCash,
		Items: []domain.OrderItem{
			{
				Name: "Pizza Calabresa / Mussarela", Size: "Média", Price: domain.Reais(50, 0), Quantity: 1,
				Customizations: &domain.Customization{Add: []string{"Bacon extra"}, Remove: []string{"Cebola"}},
			},
			{Name: "Refrigerante", Size: "2L", Price: domain.Reais(28, 0), Quantity: 2},
		},
		Subtotal:      domain.Reais(78, 0),
		DeliveryFee:   domain.Reais(5, 0),
		Total:         domain.Reais(83, 0),
		CustomerName:  "Ana",
		CustomerPhone: "11999999999",
		Address:       "Rua A, 1",
		CashChange:    &cash,
		EstimatedTime: "40-50 min",
		CreatedAt:     time.Date(2026, 3, 14, 22, 5, 0, 0, time.UTC),
	}
}

func TestOrderNumber(t *testing.T) {
	assert.Equal(t, "#000042", OrderNumber(42))
	assert.Equal(t, "#1234567", OrderNumber(1234567))
	assert.Equal(t, "#N/A", OrderNumber(0))
}

func TestMessage(t *testing.T) {
	msg := Message(sampleOrder())

	for _, want := range []string{
		"Número: #000042",
		"Tipo: Entrega",
		"Forma de Pagamento: Dinheiro",
		"Troco para: R$ 100,00",
		"Endereço: Rua A, 1",
		"1. Pizza Calabresa / Mussarela (Média) - R$ 50,00",
		"   + Adicionais: Bacon extra",
		"   - Sem: Cebola",
		"2. 2x Refrigerante (2L) - R$ 28,00",
		"Subtotal: R$ 78,00",
		"Taxa de Entrega: R$ 5,00",
		"Total: R$ 83,00",
		"40-50 min",
		"14/03/2026",
	} {
		assert.Contains(t, msg, want)
	}
}

func TestMessage_PickupOmitsFeeAndAddress(t *testing.T) {
	o := sampleOrder()
	o.DeliveryType, o.DeliveryFee, o.Address, o.EstimatedTime = domain.DeliveryTypePickup, 0, "", ""

	msg := Message(o)
	assert.Contains(t, msg, "Tipo: Retirada")
	assert.NotContains(t, msg, "Taxa de Entrega")
	assert.NotContains(t, msg, "Endereço")
	assert.Contains(t, msg, "A confirmar")
}

func TestDiscord_PostsEmbed(t *testing.T) {
	var got webhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	d := NewDiscord(srv.URL, time.Second, nil)
	require.NoError(t, d.Notify(context.Background(), sampleOrder()))

	require.Len(t, got.Embeds, 1)
	e := got.Embeds[0]
	assert.Equal(t, embedColor, e.Color)
	assert.Equal(t, shopName, e.Footer.Text)
	assert.Equal(t, "#000042 - Confirmado", e.Fields[0].Value)
	assert.True(t, strings.HasPrefix(e.Fields[2].Value, "Pizza Calabresa / Mussarela (Média)"))
	assert.Equal(t, "R$ 83,00", e.Fields[3].Value)
}

func TestDiscord_Non2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	err := NewDiscord(srv.URL, time.Second, nil).Notify(context.Background(), sampleOrder())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

type stubNotifier struct {
	err   error
	calls int
}

func (s *stubNotifier) Notify(context.Context, domain.Order) error {
	s.calls++
	return s.err
}

func TestMulti_CallsAllAndJoinsErrors(t *testing.T) {
	boom := errors.New("boom")
	a, b, c := &stubNotifier{}, &stubNotifier{err: boom}, &stubNotifier{}

	err := Multi{a, b, c, NewLog(nil)}.Notify(context.Background(), sampleOrder())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 1, c.calls)

	assert.NoError(t, Multi{a}.Notify(context.Background(), sampleOrder()))
}
