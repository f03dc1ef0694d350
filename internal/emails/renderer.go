package emails

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
)

//go:embed templates/*.html
var templateFS embed.FS

// Kind selects which email template is rendered.
type Kind string

const (
	KindOrderPlaced    Kind = "order_placed"
	KindOrderShipped   Kind = "order_shipped"
	KindOrderCancelled Kind = "order_cancelled"
)

var subjects = map[Kind]string{
	KindOrderPlaced:    "Your order has been placed",
	KindOrderShipped:   "Your order has shipped",
	KindOrderCancelled: "Your order was cancelled",
}

var sellerSubjects = map[Kind]string{
	KindOrderPlaced:    "New order received",
	KindOrderShipped:   "Shipment confirmed",
	KindOrderCancelled: "Order cancelled",
}

// View is the data a template receives.
type View struct {
	Subject       string
	RecipientName string
	ForSeller     bool
	OrderID       string
	Items         []Item
	TotalPaise    int64
	ShowTotal     bool
	RefundedCoins int64
}

// Renderer owns one parsed template set per kind.
type Renderer struct {
	sets map[Kind]*template.Template
}

// NewRenderer parses every template once.
func NewRenderer() (*Renderer, error) {
	funcs := template.FuncMap{"rupees": FormatRupees}
	sets := make(map[Kind]*template.Template, len(subjects))
	for kind := range subjects {
		tmpl, err := template.New(string(kind)).Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/"+string(kind)+".html")
		if err != nil {
			return nil, fmt.Errorf("parse %s template: %w", kind, err)
		}
		sets[kind] = tmpl
	}
	return &Renderer{sets: sets}, nil
}

// Render returns the subject and HTML body for a view.
func (r *Renderer) Render(kind Kind, view View) (string, string, error) {
	tmpl, ok := r.sets[kind]
	if !ok {
		return "", "", fmt.Errorf("unknown email kind %q", kind)
	}
	if view.ForSeller {
		view.Subject = sellerSubjects[kind]
	} else {
		view.Subject = subjects[kind]
	}
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", view); err != nil {
		return "", "", fmt.Errorf("render %s: %w", kind, err)
	}
	return view.Subject, buf.String(), nil
}

// FormatRupees renders paise as a rupee amount with two decimals.
func FormatRupees(paise int64) string {
	sign := ""
	if paise < 0 {
		sign = "-"
		paise = -paise
	}
	return fmt.Sprintf("%s₹%d.%02d", sign, paise/100, paise%100)
}
