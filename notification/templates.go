package notification

import (
	"strings"
	"text/template"
	"time"

	"fulfillment/entities"
)

type Template string

const (
	TemplateConfirmation        Template = "confirmation"
	TemplatePaymentSuccess      Template = "payment_success"
	TemplateTimeoutCancellation Template = "timeout_cancellation"
)

const orderDetails = `
Order number: {{.OrderNo}}
Product: {{.ProductID}}
Quantity: {{.Quantity}}
Unit price: {{.Price}}
Total: {{.Total}}
`

var templates = map[Template]struct {
	subject *template.Template
	body    *template.Template
}{
	TemplateConfirmation: {
		subject: template.Must(template.New("subject").Parse(`Order confirmation - {{.OrderNo}}`)),
		body: template.Must(template.New("body").Parse(`Dear customer,

thank you for your order. Please complete the payment within {{.PaymentWindow}}, otherwise the order will be cancelled automatically.
` + orderDetails)),
	},
	TemplatePaymentSuccess: {
		subject: template.Must(template.New("subject").Parse(`Payment success - {{.OrderNo}}`)),
		body: template.Must(template.New("body").Parse(`Dear customer,

we have received your payment. Your order is confirmed and will be shipped soon.
` + orderDetails)),
	},
	TemplateTimeoutCancellation: {
		subject: template.Must(template.New("subject").Parse(`Order timeout cancellation - {{.OrderNo}}`)),
		body: template.Must(template.New("body").Parse(`Dear customer,

your order was not paid within {{.PaymentWindow}} and has been cancelled. Please place a new order if you still want the product.
` + orderDetails)),
	},
}

type templateData struct {
	OrderNo       string
	ProductID     int64
	Quantity      int
	Price         string
	Total         string
	PaymentWindow string
}

func newTemplateData(order entities.Order, paymentWindow time.Duration) templateData {
	return templateData{
		OrderNo:       order.OrderNo,
		ProductID:     order.ProductID,
		Quantity:      order.Quantity,
		Price:         order.Price.StringFixed(2),
		Total:         order.Total().StringFixed(2),
		PaymentWindow: paymentWindow.String(),
	}
}

func render(name Template, data templateData) (subject string, body string, err error) {
	t := templates[name]

	var s, b strings.Builder
	if err := t.subject.Execute(&s, data); err != nil {
		return "", "", err
	}
	if err := t.body.Execute(&b, data); err != nil {
		return "", "", err
	}

	return s.String(), b.String(), nil
}
