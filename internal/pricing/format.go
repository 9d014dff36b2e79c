package pricing

import (
	"fmt"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Formatter renders minor currency units as a localized whole-unit amount.
// Grouping follows the locale, but the symbol always leads the amount, so
// locales that write it after the number (de-DE, fr-FR) read "€ 1.500".
type Formatter struct {
	printer *message.Printer
	unit    currency.Unit
}

func NewFormatter(locale, code string) (*Formatter, error) {
	tag, err := language.Parse(locale)
	if err != nil {
		return nil, fmt.Errorf("invalid locale %q: %w", locale, err)
	}
	unit, err := currency.ParseISO(code)
	if err != nil {
		return nil, fmt.Errorf("invalid currency %q: %w", code, err)
	}
	return &Formatter{printer: message.NewPrinter(tag), unit: unit}, nil
}

func (f *Formatter) Format(cents int64) string {
	major := float64(cents) / 100
	return f.printer.Sprintf("%v %v",
		currency.NarrowSymbol(f.unit),
		number.Decimal(major, number.MaxFractionDigits(0)),
	)
}
