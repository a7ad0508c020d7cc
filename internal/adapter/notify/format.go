package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/rl1809/pizzeria/internal/core/domain"
)

const shopName = "D'Kasa Pizzaria"

var saoPaulo = loadLocation("America/Sao_Paulo", -3*60*60)

func loadLocation(name string, offset int) *time.Location {
	if loc, err := time.LoadLocation(name); err == nil {
		return loc
	}
	return time.FixedZone(name, offset)
}

// OrderNumber renders the number zero-padded to six digits.
func OrderNumber(n int64) string {
	if n <= 0 {
		return "#N/A"
	}
	return fmt.Sprintf("#%06d", n)
}

func itemLine(it domain.OrderItem) string {
	var b strings.Builder
	if it.Quantity > 1 {
		fmt.Fprintf(&b, "%dx ", it.Quantity)
	}
	b.WriteString(it.Name)
	if it.Size != "" {
		fmt.Fprintf(&b, " (%s)", it.Size)
	}
	b.WriteString(" - " + it.Price.BRL())
	return b.String()
}

// Message renders the plain-text notification sent to the kitchen channel.
func Message(o domain.Order) string {
	var b strings.Builder

	b.WriteString("🍕 *NOVO PEDIDO D'KASA*\n\n")
	b.WriteString("📋 *Informações do Pedido*\n")
	fmt.Fprintf(&b, "Número: %s\n", OrderNumber(o.Number))
	fmt.Fprintf(&b, "Status: %s\n", o.Status.Label())
	fmt.Fprintf(&b, "Tipo: %s\n", o.DeliveryType.Label())
	fmt.Fprintf(&b, "Forma de Pagamento: %s\n", o.PaymentMethod.Label())
	if o.CashChange != nil {
		fmt.Fprintf(&b, "Troco para: %s\n", o.CashChange.BRL())
	}

	b.WriteString("\n👤 *Dados do Cliente*\n")
	fmt.Fprintf(&b, "Nome: %s\n", o.CustomerName)
	fmt.Fprintf(&b, "Telefone: %s\n", o.CustomerPhone)
	if o.Address != "" {
		fmt.Fprintf(&b, "Endereço: %s\n", o.Address)
	}

	b.WriteString("\n🍕 *Itens do Pedido*\n")
	for i, it := range o.Items {
		fmt.Fprintf(&b, "%d. %s\n", i+1, itemLine(it))
		if c := it.Customizations; c != nil {
			if len(c.Add) > 0 {
				fmt.Fprintf(&b, "   + Adicionais: %s\n", strings.Join(c.Add, ", "))
			}
			if len(c.Remove) > 0 {
				fmt.Fprintf(&b, "   - Sem: %s\n", strings.Join(c.Remove, ", "))
			}
		}
	}

	b.WriteString("\n💰 *Resumo Financeiro*\n")
	fmt.Fprintf(&b, "Subtotal: %s\n", o.Subtotal.BRL())
	if o.DeliveryFee > 0 {
		fmt.Fprintf(&b, "Taxa de Entrega: %s\n", o.DeliveryFee.BRL())
	}
	fmt.Fprintf(&b, "Total: %s\n\n", o.Total.BRL())

	b.WriteString("⏰ *Tempo Estimado*\n")
	if o.EstimatedTime != "" {
		b.WriteString(o.EstimatedTime + "\n\n")
	} else {
		b.WriteString("A confirmar\n\n")
	}

	b.WriteString("📅 *Data do Pedido*\n")
	b.WriteString(o.CreatedAt.In(saoPaulo).Format("02/01/2006 15:04:05") + "\n\n")

	b.WriteString("*Por favor, confirme este pedido no sistema!*")
	return b.String()
}
