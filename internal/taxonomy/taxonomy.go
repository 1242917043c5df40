// Package taxonomy loads the accounts and category trees the bot validates
// against. Every Load returns a fresh, immutable snapshot.
package taxonomy

import (
	"context"
	"fmt"
	"strings"

	"github.com/dvloznov/finance-bot/internal/domain"
)

// SubcategorySeparator joins a category and its leaf: "Auto > Nafta".
const SubcategorySeparator = " > "

// Provider returns the current taxonomy.
type Provider interface {
	Load(ctx context.Context) (*Taxonomy, error)
}

// Taxonomy is a read-only snapshot of the configuration table.
type Taxonomy struct {
	Accounts             []string
	AccountAssociations  map[string]string
	ExpenseCategories    Categories
	IncomeCategories     Categories
	InvestmentCategories Categories
}

// HasAccount reports whether name is a configured account.
func (t *Taxonomy) HasAccount(name string) bool {
	for _, a := range t.Accounts {
		if a == name {
			return true
		}
	}
	return false
}

// CategoriesFor returns the category tree used by kind. Transfers carry no
// categories and return false.
func (t *Taxonomy) CategoriesFor(kind domain.Kind) (Categories, bool) {
	switch kind {
	case domain.KindExpense:
		return t.ExpenseCategories, true
	case domain.KindIncome:
		return t.IncomeCategories, true
	case domain.KindInvestmentBuy, domain.KindInvestmentSell:
		return t.InvestmentCategories, true
	case domain.KindTransfer:
		return Categories{}, false
	default:
		panic(fmt.Sprintf("taxonomy: unhandled kind %q", string(kind)))
	}
}

// AllCategories merges expense, income and investment trees. On a name
// clash the first tree wins.
func (t *Taxonomy) AllCategories() Categories {
	var all Categories
	for _, c := range []Categories{t.ExpenseCategories, t.IncomeCategories, t.InvestmentCategories} {
		for _, name := range c.names {
			if all.Has(name) {
				continue
			}
			for _, sub := range c.subs[name] {
				all.add(name, sub)
			}
		}
	}
	return all
}

// Categories is an ordered category -> subcategories mapping. Subcategories
// are stored fully qualified ("Auto > Nafta").
type Categories struct {
	names []string
	subs  map[string][]string
}

// NewCategories builds a tree from category -> leaf-or-qualified names,
// preserving the given category order.
func NewCategories(order []string, tree map[string][]string) Categories {
	var c Categories
	for _, name := range order {
		for _, sub := range tree[name] {
			c.add(name, sub)
		}
	}
	return c
}

func (c *Categories) add(category, subcategory string) {
	category = strings.TrimSpace(category)
	subcategory = strings.TrimSpace(subcategory)
	if category == "" || subcategory == "" {
		return
	}
	if c.subs == nil {
		c.subs = make(map[string][]string)
	}
	if _, ok := c.subs[category]; !ok {
		c.names = append(c.names, category)
	}
	q := Qualify(category, subcategory)
	for _, existing := range c.subs[category] {
		if existing == q {
			return
		}
	}
	c.subs[category] = append(c.subs[category], q)
}

// Names lists categories in configuration order.
func (c Categories) Names() []string {
	out := make([]string, len(c.names))
	copy(out, c.names)
	return out
}

// Len is the number of categories.
func (c Categories) Len() int { return len(c.names) }

// Has reports whether category exists.
func (c Categories) Has(category string) bool {
	_, ok := c.subs[category]
	return ok
}

// Subcategories returns the qualified subcategories of category.
func (c Categories) Subcategories(category string) []string {
	subs := c.subs[category]
	out := make([]string, len(subs))
	copy(out, subs)
	return out
}

// HasSubcategory reports whether subcategory is listed under category.
func (c Categories) HasSubcategory(category, subcategory string) bool {
	for _, s := range c.subs[category] {
		if s == subcategory {
			return true
		}
	}
	return false
}

// Find looks a category up ignoring case and accents, so "credito" finds
// "Crédito".
func (c Categories) Find(search string) (string, bool) {
	if c.Has(search) {
		return search, true
	}
	key := foldKey(search)
	for _, name := range c.names {
		if foldKey(name) == key {
			return name, true
		}
	}
	return "", false
}

func foldKey(s string) string {
	return strings.ToLower(domain.FoldAccents(strings.TrimSpace(s)))
}

// Qualify returns "category > leaf". Values already qualified are returned as is.
func Qualify(category, subcategory string) string {
	if strings.Contains(subcategory, SubcategorySeparator) {
		return subcategory
	}
	return category + SubcategorySeparator + subcategory
}

// Leaf strips the category prefix: "Auto > Nafta" -> "Nafta".
func Leaf(subcategory string) string {
	if i := strings.Index(subcategory, SubcategorySeparator); i >= 0 {
		return subcategory[i+len(SubcategorySeparator):]
	}
	return subcategory
}
