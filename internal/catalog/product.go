package catalog

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MaxImages is the most images a product may reference.
const MaxImages = 3

// Product is one catalog entry as stored in the catalog document.
type Product struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Store       string   `json:"store"`
	Link        string   `json:"link"`
	Price       Price    `json:"price"`
	Images      []string `json:"images"`
}

// Validate checks the rules every persisted product must satisfy.
func (p *Product) Validate() error {
	var problems []string
	if strings.TrimSpace(p.ID) == "" {
		problems = append(problems, "id is required")
	}
	for field, v := range map[string]string{"name": p.Name, "category": p.Category, "store": p.Store, "link": p.Link} {
		if strings.TrimSpace(v) == "" {
			problems = append(problems, field+" is required")
		}
	}
	if p.Price.IsNegative() {
		problems = append(problems, "price must not be negative")
	}
	if n := len(p.Images); n < 1 || n > MaxImages {
		problems = append(problems, fmt.Sprintf("product needs 1 to %d images, has %d", MaxImages, n))
	}
	if len(problems) == 0 {
		return nil
	}
	sort.Strings(problems)
	return fmt.Errorf("%w: %s", ErrInvalidProduct, strings.Join(problems, "; "))
}

// NewID returns a time-based id with a random suffix. Ids are not checked
// for uniqueness against the catalog.
func NewID() string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return strconv.FormatInt(time.Now().UnixMilli(), 36) + "-" + suffix
}

// Price is a non-negative decimal amount. It is written to JSON as a bare
// number with at least two fractional digits, so 199.90 stays 199.90.
type Price struct {
	d decimal.Decimal
}

// Price bounds. The scale is checked before any arithmetic, since rescaling
// a decimal with an extreme exponent does not finish.
const (
	MaxPriceScale = 8
	maxPriceExp   = 12
)

var maxPrice = decimal.New(1, maxPriceExp)

// ParsePrice accepts "199.90", "199,90" and "199". Values with more than
// MaxPriceScale fractional digits or of 10^12 and above fail with
// ErrPriceOutOfRange.
func ParsePrice(s string) (Price, error) {
	s = strings.TrimSpace(s)
	if !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Price{}, fmt.Errorf("parse price %q: %w", s, err)
	}
	if exp := d.Exponent(); exp < -MaxPriceScale || exp > maxPriceExp {
		return Price{}, fmt.Errorf("%w: %q", ErrPriceOutOfRange, s)
	}
	if d.Abs().GreaterThanOrEqual(maxPrice) {
		return Price{}, fmt.Errorf("%w: %q", ErrPriceOutOfRange, s)
	}
	return Price{d: d}, nil
}

// MustPrice is ParsePrice for literals.
func MustPrice(s string) Price {
	p, err := ParsePrice(s)
	if err != nil {
		panic(err)
	}
	return p
}

func (p Price) Decimal() decimal.Decimal { return p.d }
func (p Price) IsNegative() bool         { return p.d.IsNegative() }
func (p Price) Equal(o Price) bool       { return p.d.Equal(o.d) }

func (p Price) String() string {
	places := -p.d.Exponent()
	if places < 2 {
		places = 2
	}
	return p.d.StringFixed(places)
}

func (p Price) MarshalJSON() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Price) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if string(b) == "null" {
		*p = Price{}
		return nil
	}
	parsed, err := ParsePrice(string(bytes.Trim(b, `"`)))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
