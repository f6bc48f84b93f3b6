package categorize

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/cleared-dev/tally/internal/model"
)

// KeywordConfidence is reported for every keyword match.
var KeywordConfidence = decimal.RequireFromString("0.75")

// Rule assigns Category when the description contains any keyword. A rule
// with a Direction only applies to rows in that direction.
type Rule struct {
	Category  string          `yaml:"category"`
	Direction model.Direction `yaml:"direction,omitempty"`
	Keywords  []string        `yaml:"keywords"`
}

type ruleFile struct {
	Rules []Rule `yaml:"rules"`
}

// Keyword matches descriptions against ordered rules. The first matching
// rule wins.
type Keyword struct {
	rules []Rule
}

// NewKeyword creates a Keyword categorizer. Keywords are compared lowercased.
func NewKeyword(rules []Rule) *Keyword {
	norm := make([]Rule, 0, len(rules))
	for _, r := range rules {
		kw := make([]string, 0, len(r.Keywords))
		for _, k := range r.Keywords {
			if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
				kw = append(kw, k)
			}
		}
		norm = append(norm, Rule{Category: r.Category, Direction: r.Direction, Keywords: kw})
	}
	return &Keyword{rules: norm}
}

func (k *Keyword) Categorize(_ context.Context, description string, _ decimal.Decimal, direction model.Direction) (Result, error) {
	desc := strings.ToLower(description)
	for _, r := range k.rules {
		if r.Direction != "" && r.Direction != direction {
			continue
		}
		for _, kw := range r.Keywords {
			if strings.Contains(desc, kw) {
				return Result{Category: r.Category, Confidence: KeywordConfidence}, nil
			}
		}
	}
	return Result{}, ErrNoMatch
}

// LoadRules reads a rules file.
func LoadRules(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rules: %w", err)
	}
	var f ruleFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing rules %s: %w", path, err)
	}
	for i, r := range f.Rules {
		if strings.TrimSpace(r.Category) == "" {
			return nil, fmt.Errorf("rules %s: rule %d has no category", path, i+1)
		}
		if r.Direction != "" && !r.Direction.Valid() {
			return nil, fmt.Errorf("rules %s: rule %d has unknown direction %q", path, i+1, r.Direction)
		}
	}
	return f.Rules, nil
}

// SaveRules writes rules to path, creating its directory.
func SaveRules(path string, rules []Rule) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating rules dir: %w", err)
	}
	data, err := yaml.Marshal(ruleFile{Rules: rules})
	if err != nil {
		return fmt.Errorf("marshaling rules: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// DefaultRules is the starter rule set written by init.
func DefaultRules() []Rule {
	return []Rule{
		{Category: "ATM Withdrawal", Direction: model.Debit, Keywords: []string{"atm", "cash wdl"}},
		{Category: "Food & Dining", Keywords: []string{"restaurant", "dining", "cafe", "pizza", "burger", "grocery", "swiggy", "zomato", "dominos", "kfc", "mcdonalds", "starbucks", "coffee", "bakery"}},
		{Category: "Transportation", Keywords: []string{"uber", "ola cabs", "rapido", "taxi", "metro", "fuel", "petrol", "diesel", "parking", "fastag", "toll"}},
		{Category: "Shopping", Keywords: []string{"amazon", "flipkart", "myntra", "ajio", "nykaa", "clothing", "fashion", "electronics"}},
		{Category: "Online Services", Keywords: []string{"netflix", "hotstar", "spotify", "prime video", "youtube", "google", "apple.com", "github", "subscription"}},
		{Category: "Entertainment", Keywords: []string{"movie", "cinema", "pvr", "inox", "bookmyshow", "concert", "gaming"}},
		{Category: "Healthcare", Keywords: []string{"hospital", "doctor", "medical", "pharmacy", "medicine", "apollo", "clinic", "diagnostic", "dental"}},
		{Category: "Utilities", Keywords: []string{"electricity", "water bill", "broadband", "wifi", "recharge", "prepaid", "postpaid", "bescom", "airtel", "jio"}},
		{Category: "Insurance", Keywords: []string{"insurance", "premium", "lic of india", "policy"}},
		{Category: "Investment", Keywords: []string{"mutual fund", "zerodha", "groww", "nps", "ppf", "fixed deposit"}},
		{Category: "Salary/Income", Direction: model.Credit, Keywords: []string{"salary", "sal cr", "payroll", "bonus", "interest", "dividend", "refund"}},
		{Category: "Education", Keywords: []string{"school", "college", "university", "tuition", "course", "udemy", "coursera"}},
		{Category: "Travel", Keywords: []string{"flight", "hotel", "irctc", "makemytrip", "goibibo", "airline", "indigo", "booking.com"}},
		{Category: "Gifts", Keywords: []string{"gift", "donation", "charity"}},
		{Category: "Transfer", Keywords: []string{"neft", "imps", "rtgs", "upi", "nach", "transfer"}},
	}
}
