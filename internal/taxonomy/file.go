package taxonomy

import (
	"context"
	"fmt"
	"os"

	"github.com/dvloznov/finance-bot/internal/domain"
	"gopkg.in/yaml.v3"
)

// FileProvider reads the taxonomy from a YAML file, for local development
// without a spreadsheet. The file is re-read on every Load.
//
//	accounts:
//	  - name: Visa
//	    associated: Banco Galicia
//	  - name: Efectivo
//	expenses:
//	  - category: Auto
//	    subcategories: [Nafta, Seguro]
//	income: [...]
//	investments: [...]
type FileProvider struct {
	path string
}

var _ Provider = (*FileProvider)(nil)

// NewFileProvider creates a provider for path.
func NewFileProvider(path string) *FileProvider {
	return &FileProvider{path: path}
}

type fileAccount struct {
	Name       string `yaml:"name"`
	Associated string `yaml:"associated"`
}

type fileCategory struct {
	Category      string   `yaml:"category"`
	Subcategories []string `yaml:"subcategories"`
}

type fileTaxonomy struct {
	Accounts    []fileAccount  `yaml:"accounts"`
	Expenses    []fileCategory `yaml:"expenses"`
	Income      []fileCategory `yaml:"income"`
	Investments []fileCategory `yaml:"investments"`
}

// Load parses the file.
func (p *FileProvider) Load(ctx context.Context) (*Taxonomy, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return nil, fmt.Errorf("FileProvider.Load: %w: %v", domain.ErrConfig, err)
	}
	return ParseYAML(data)
}

// ParseYAML decodes the file format documented on FileProvider.
func ParseYAML(data []byte) (*Taxonomy, error) {
	var f fileTaxonomy
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("ParseYAML: %w: %v", domain.ErrConfig, err)
	}
	if len(f.Accounts) == 0 {
		return nil, fmt.Errorf("ParseYAML: %w: no accounts", domain.ErrConfig)
	}

	t := &Taxonomy{AccountAssociations: make(map[string]string)}
	for _, a := range f.Accounts {
		if a.Name == "" {
			continue
		}
		t.Accounts = append(t.Accounts, a.Name)
		if a.Associated != "" {
			t.AccountAssociations[a.Name] = a.Associated
		}
	}
	t.ExpenseCategories = fromFile(f.Expenses)
	t.IncomeCategories = fromFile(f.Income)
	t.InvestmentCategories = fromFile(f.Investments)
	return t, nil
}

func fromFile(list []fileCategory) Categories {
	var c Categories
	for _, fc := range list {
		for _, sub := range fc.Subcategories {
			c.add(fc.Category, sub)
		}
	}
	return c
}
