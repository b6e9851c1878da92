package schema

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Default returns the sample sources the mortgage rule tool ships with.
func Default() []Source {
	return []Source{
		{Name: "sample_mortgage_accounts.csv", Fields: []string{"customer_id", "account_status", "loan_amount", "interest_rate", "start_date", "term"}},
		{Name: "sample_loan_repayments.csv", Fields: []string{"transaction_id", "customer_id", "payment_amount", "payment_date", "loan_id", "status"}},
		{Name: "sample_telco_billing.csv", Fields: []string{"bill_id", "customer_id", "amount", "due_date", "paid_date", "service_type"}},
		{Name: "sample_product_enrollments.csv", Fields: []string{"enrollment_id", "customer_id", "product_id", "enrollment_date", "status"}},
		{Name: "sample_customer_profiles.csv", Fields: []string{"customer_id", "name", "age", "income", "credit_score", "address"}},
		{Name: "sample_savings_account_transactions.csv", Fields: []string{"transaction_id", "account_id", "customer_id", "amount", "date", "transaction_type"}},
		{Name: "sample_credit_card_transactions.csv", Fields: []string{"transaction_id", "card_id", "customer_id", "amount", "date", "merchant", "category"}},
	}
}

// LoadCSVHeaders reads the header row of every *.csv file in dir.
// Only the first record is read; data rows are never parsed.
// Files are registered in lexical order under their base name.
func LoadCSVHeaders(dir string) ([]Source, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.csv"))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}
	sort.Strings(matches)

	sources := make([]Source, 0, len(matches))
	for _, path := range matches {
		fields, err := readHeader(path)
		if err != nil {
			return nil, err
		}
		sources = append(sources, Source{Name: filepath.Base(path), Fields: fields})
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("no csv files found in %s", dir)
	}
	return sources, nil
}

func readHeader(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%s has no header row", path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header of %s: %w", path, err)
	}

	fields := make([]string, 0, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		if h = strings.TrimSpace(h); h != "" {
			fields = append(fields, h)
		}
	}
	return fields, nil
}

// DateField picks the column eligibility periods are measured against.
// An explicit override wins; otherwise the first field named "date" or
// ending in "_date". Returns "" when the source has no date-like column.
// Override keys match source names case-insensitively; config loaders
// lower-case map keys.
func DateField(r *Registry, source string, overrides map[string]string) string {
	if f, ok := lookupFold(overrides, source); ok {
		if canon, ok := r.CanonicalIn(source, f); ok {
			return canon
		}
	}
	fields, err := r.ColumnsOf(source)
	if err != nil {
		return ""
	}
	for _, f := range fields {
		lower := strings.ToLower(f)
		if lower == "date" || strings.HasSuffix(lower, "_date") {
			return f
		}
	}
	return ""
}

func lookupFold(m map[string]string, key string) (string, bool) {
	if v, ok := m[key]; ok {
		return v, true
	}
	for k, v := range m {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return "", false
}
