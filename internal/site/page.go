package site

import (
	"embed"
	"errors"
	"html/template"
	"io"
	"strings"

	"github.com/scastiel/parity.coffee/internal/domain"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

const (
	ModeAdjustedPrice = "with-adjusted-price"
	ModeDiscountCode  = "with-discount-code"
)

const introMarkdown = "This website is an example implementation of using **Purchasing Power Parity** to adjust the price of a product based on the user's location."

const footerMarkdown = `Although this website was made for educational purpose, the payment system in place is working. Feel free to offer me a coffee, or contribute to the small fees to host the application and the domain name.

[The website's source code is fully available on GitHub.](https://github.com/scastiel/parity.coffee)`

// Config describes the static parts of the landing page.
type Config struct {
	Meta            Meta
	ProductName     string
	Currency        string
	StripePublicKey string
}

// Renderer renders the landing page.
type Renderer struct {
	tmpl   *template.Template
	meta   Meta
	cfg    Config
	intro  template.HTML
	footer template.HTML
}

// NewRenderer parses the embedded templates and pre-renders the authored copy.
func NewRenderer(cfg Config) (*Renderer, error) {
	tmpl, err := template.New("home").ParseFS(templateFS, "templates/*.tmpl")
	if err != nil {
		return nil, err
	}
	intro, err := RenderMarkdown(introMarkdown)
	if err != nil {
		return nil, err
	}
	footer, err := RenderMarkdown(footerMarkdown)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.ProductName) == "" {
		cfg.ProductName = "One coffee"
	}
	return &Renderer{
		tmpl:   tmpl,
		meta:   cfg.Meta.withDefaults(),
		cfg:    cfg,
		intro:  intro,
		footer: footer,
	}, nil
}

// HomeData is the request-specific input of the landing page.
type HomeData struct {
	Mode      string
	Quote     domain.PriceQuote
	BasePrice int64
	Success   bool
}

type option struct {
	ID          string
	Title       string
	Description string
	Href        string
	Selected    bool
}

type homeView struct {
	Meta            Meta
	Intro           template.HTML
	Footer          template.HTML
	Options         []option
	Mode            string
	ProductName     string
	Price           string
	Message         message
	Success         bool
	CheckoutPath    string
	StripePublicKey string
}

// message covers the three states a visitor can be in: unknown country, known but not
// eligible, and eligible.
type message struct {
	Known       bool
	Eligible    bool
	Flag        string
	CountryName string
	Discount    int
	Code        string
	Price       string
	BasePrice   string
	CodeMode    bool
}

// Render writes the landing page for data to w.
func (r *Renderer) Render(w io.Writer, data HomeData) error {
	if r == nil || r.tmpl == nil {
		return errors.New("site: renderer not initialised")
	}
	return r.tmpl.ExecuteTemplate(w, "home.tmpl", r.view(data))
}

func (r *Renderer) view(data HomeData) homeView {
	mode := data.Mode
	if mode != ModeDiscountCode {
		mode = ModeAdjustedPrice
	}
	quote := data.Quote
	adjusted := quote.AdjustedPrice(data.BasePrice)

	price := Money(data.BasePrice, r.cfg.Currency)
	if mode == ModeAdjustedPrice {
		price = Money(adjusted, r.cfg.Currency)
	}

	msg := message{
		Known:     quote.HasCountry(),
		CodeMode:  mode == ModeDiscountCode,
		Price:     Money(adjusted, r.cfg.Currency),
		BasePrice: Money(data.BasePrice, r.cfg.Currency),
	}
	if msg.Known {
		msg.Flag = FlagEmoji(quote.Country)
		msg.CountryName = CountryName(quote.Country)
	}
	if percent, ok := quote.Discount(); ok && percent > 0 {
		msg.Eligible = true
		msg.Discount = percent
		msg.Code, _ = quote.Code()
	}

	return homeView{
		Meta:   r.meta,
		Intro:  r.intro,
		Footer: r.footer,
		Options: []option{
			{ID: ModeAdjustedPrice, Title: "Option #1", Description: "Adjust the price based on your location.", Href: "/?option=" + ModeAdjustedPrice, Selected: mode == ModeAdjustedPrice},
			{ID: ModeDiscountCode, Title: "Option #2", Description: "Offer a discount code that you are free to use or not.", Href: "/?option=" + ModeDiscountCode, Selected: mode == ModeDiscountCode},
		},
		Mode:            mode,
		ProductName:     r.cfg.ProductName,
		Price:           price,
		Message:         msg,
		Success:         data.Success,
		CheckoutPath:    "/api/" + mode + "/create-checkout-session",
		StripePublicKey: strings.TrimSpace(r.cfg.StripePublicKey),
	}
}
