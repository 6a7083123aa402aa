package parser

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	errTooFewColumns = errors.New("too few numeric columns")
	errEmptyNumber   = errors.New("empty number")
)

// ItemRowColumns are the positional numeric cells of an item row.
type ItemRowColumns struct {
	Quantity      decimal.Decimal
	UnitPrice     decimal.Decimal
	TaxableAmount decimal.Decimal
	SalePrice     decimal.Decimal
	VATCode       string
	VATAmount     decimal.Decimal
}

// TotalsRowColumns are the positional cells of a totals row.
type TotalsRowColumns struct {
	Items decimal.Decimal
	VAT   decimal.Decimal
	Total decimal.Decimal
}

// decodeItemColumns reads the current layout: quantity, unit price, taxable
// amount, sale price, VAT code, VAT amount.
func decodeItemColumns(cells []string) (ItemRowColumns, error) {
	if len(cells) < 6 {
		return ItemRowColumns{}, fmt.Errorf("%w: want 6, got %d", errTooFewColumns, len(cells))
	}
	nums, err := parseNumbers(cells[0], cells[1], cells[2], cells[3], cells[5])
	if err != nil {
		return ItemRowColumns{}, err
	}
	return ItemRowColumns{
		Quantity:      nums[0],
		UnitPrice:     nums[1],
		TaxableAmount: nums[2],
		SalePrice:     nums[3],
		VATCode:       cells[4],
		VATAmount:     nums[4],
	}, nil
}

// decodeLegacyItemColumns reads the legacy layout, which has no VAT cells:
// quantity, unit price, taxable amount, sale price.
func decodeLegacyItemColumns(cells []string) (ItemRowColumns, error) {
	if len(cells) < 4 {
		return ItemRowColumns{}, fmt.Errorf("%w: want 4, got %d", errTooFewColumns, len(cells))
	}
	nums, err := parseNumbers(cells[0], cells[1], cells[2], cells[3])
	if err != nil {
		return ItemRowColumns{}, err
	}
	return ItemRowColumns{
		Quantity:      nums[0],
		UnitPrice:     nums[1],
		TaxableAmount: nums[2],
		SalePrice:     nums[3],
		VATAmount:     decimal.Zero,
	}, nil
}

func decodeTotalsColumns(cells []string) (TotalsRowColumns, error) {
	if len(cells) < 3 {
		return TotalsRowColumns{}, fmt.Errorf("%w: want 3, got %d", errTooFewColumns, len(cells))
	}
	nums, err := parseNumbers(cells[0], cells[1], cells[2])
	if err != nil {
		return TotalsRowColumns{}, err
	}
	return TotalsRowColumns{Items: nums[0], VAT: nums[1], Total: nums[2]}, nil
}

var numberNoise = strings.NewReplacer(
	",", "",
	"\u20aa", "",
	"$", "",
	"\u20ac", "",
	"\u00a4", "",
	`ש"ח`, "",
	"\u05e9\u05f4\u05d7", "",
	" ", "",
	"\u00a0", "",
	"\u200e", "",
	"\u200f", "",
)

// parseNumber converts a printed amount, dropping thousands separators and
// currency symbols.
func parseNumber(raw string) (decimal.Decimal, error) {
	s := numberNoise.Replace(strings.TrimSpace(raw))
	if s == "" {
		return decimal.Zero, errEmptyNumber
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse number %q: %w", raw, err)
	}
	return d, nil
}

func parseNumbers(raw ...string) ([]decimal.Decimal, error) {
	out := make([]decimal.Decimal, len(raw))
	for i, r := range raw {
		d, err := parseNumber(r)
		if err != nil {
			return nil, err
		}
		out[i] = d
	}
	return out, nil
}
