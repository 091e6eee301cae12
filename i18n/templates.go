package i18n

import (
	"fmt"
	"strings"
)

// Template names for notifications sent on order events.
const (
	TemplateOrderCreated   = "order_created"
	TemplateOrderConfirmed = "order_confirmed"
	TemplateOrderPreparing = "order_preparing"
	TemplateOrderReady     = "order_ready"
	TemplateOrderAssigned  = "order_assigned"
	TemplateOrderInTransit = "order_in_transit"
	TemplateOrderDelivered = "order_delivered"
	TemplateOrderCancelled = "order_cancelled"
)

// Message is a rendered notification.
type Message struct {
	Title string
	Body  string
}

// Templates is indexed by [template][language]. Bodies use {name} placeholders.
var Templates = map[string]map[string]Message{
	TemplateOrderCreated: {
		"en": {"New order", "Order {orderNumber} was placed for {total}."},
		"de": {"Neue Bestellung", "Bestellung {orderNumber} über {total} ist eingegangen."},
		"fr": {"Nouvelle commande", "La commande {orderNumber} de {total} a été passée."},
		"it": {"Nuovo ordine", "L'ordine {orderNumber} di {total} è stato effettuato."},
	},
	TemplateOrderConfirmed: {
		"en": {"Order confirmed", "Your order {orderNumber} has been confirmed."},
		"de": {"Bestellung bestätigt", "Ihre Bestellung {orderNumber} wurde bestätigt."},
		"fr": {"Commande confirmée", "Votre commande {orderNumber} a été confirmée."},
		"it": {"Ordine confermato", "Il tuo ordine {orderNumber} è stato confermato."},
	},
	TemplateOrderPreparing: {
		"en": {"Order in the kitchen", "Your order {orderNumber} is being prepared."},
		"de": {"Bestellung in Zubereitung", "Ihre Bestellung {orderNumber} wird zubereitet."},
		"fr": {"Commande en préparation", "Votre commande {orderNumber} est en préparation."},
		"it": {"Ordine in preparazione", "Il tuo ordine {orderNumber} è in preparazione."},
	},
	TemplateOrderReady: {
		"en": {"Order ready", "Order {orderNumber} is ready for pickup."},
		"de": {"Bestellung bereit", "Bestellung {orderNumber} ist abholbereit."},
		"fr": {"Commande prête", "La commande {orderNumber} est prête à être récupérée."},
		"it": {"Ordine pronto", "L'ordine {orderNumber} è pronto per il ritiro."},
	},
	TemplateOrderAssigned: {
		"en": {"Driver assigned", "A driver has been assigned to your order {orderNumber}."},
		"de": {"Fahrer zugewiesen", "Ihrer Bestellung {orderNumber} wurde ein Fahrer zugewiesen."},
		"fr": {"Livreur assigné", "Un livreur a été assigné à votre commande {orderNumber}."},
		"it": {"Fattorino assegnato", "Un fattorino è stato assegnato al tuo ordine {orderNumber}."},
	},
	TemplateOrderInTransit: {
		"en": {"On the way", "Your order {orderNumber} is on its way."},
		"de": {"Unterwegs", "Ihre Bestellung {orderNumber} ist unterwegs."},
		"fr": {"En route", "Votre commande {orderNumber} est en route."},
		"it": {"In arrivo", "Il tuo ordine {orderNumber} è in arrivo."},
	},
	TemplateOrderDelivered: {
		"en": {"Order delivered", "Your order {orderNumber} has been delivered. Enjoy your meal!"},
		"de": {"Bestellung geliefert", "Ihre Bestellung {orderNumber} wurde geliefert. En Guete!"},
		"fr": {"Commande livrée", "Votre commande {orderNumber} a été livrée. Bon appétit !"},
		"it": {"Ordine consegnato", "Il tuo ordine {orderNumber} è stato consegnato. Buon appetito!"},
	},
	TemplateOrderCancelled: {
		"en": {"Order cancelled", "Order {orderNumber} has been cancelled."},
		"de": {"Bestellung storniert", "Bestellung {orderNumber} wurde storniert."},
		"fr": {"Commande annulée", "La commande {orderNumber} a été annulée."},
		"it": {"Ordine annullato", "L'ordine {orderNumber} è stato annullato."},
	},
}

// Render fills a template for lang, falling back to English for unknown languages.
func Render(template, lang string, vars map[string]string) (Message, error) {
	byLang, ok := Templates[template]
	if !ok {
		return Message{}, fmt.Errorf("unknown notification template %q", template)
	}
	msg, ok := byLang[lang]
	if !ok {
		msg = byLang[DefaultLanguage]
	}
	for k, v := range vars {
		msg.Title = strings.ReplaceAll(msg.Title, "{"+k+"}", v)
		msg.Body = strings.ReplaceAll(msg.Body, "{"+k+"}", v)
	}
	return msg, nil
}
