package pipeline

import (
	"regexp"
	"strconv"
	"strings"
)

// Command is a recognized exact-command intent.
type Command string

const (
	CommandJoin Command = "join"
	CommandHelp Command = "help"
)

// CommandParser matches normalized input against fixed synonym sets.
// Matching is exact-set membership, not substring.
type CommandParser struct {
	joinWords map[string]struct{}
	helpWords map[string]struct{}
}

// NewCommandParser builds a parser from the configured synonym lists.
// Synonyms are normalized the same way inputs are.
func NewCommandParser(joinWords, helpWords []string) *CommandParser {
	p := &CommandParser{
		joinWords: make(map[string]struct{}, len(joinWords)),
		helpWords: make(map[string]struct{}, len(helpWords)),
	}
	for _, w := range joinWords {
		p.joinWords[normalizeCommand(w)] = struct{}{}
	}
	for _, w := range helpWords {
		p.helpWords[normalizeCommand(w)] = struct{}{}
	}
	return p
}

// Parse returns the command matching the input, if any.
func (p *CommandParser) Parse(text string) (Command, bool) {
	norm := normalizeCommand(text)
	if norm == "" {
		return "", false
	}
	if _, ok := p.joinWords[norm]; ok {
		return CommandJoin, true
	}
	if _, ok := p.helpWords[norm]; ok {
		return CommandHelp, true
	}
	return "", false
}

func normalizeCommand(text string) string {
	norm := strings.ToLower(strings.TrimSpace(text))
	norm = strings.TrimPrefix(norm, "/")
	return strings.Join(strings.Fields(norm), " ")
}

// CurrencyAmount is a parsed <number><currency-suffix> request, e.g. "7000twd".
type CurrencyAmount struct {
	Amount   float64
	Currency string // canonical uppercase, e.g. "TWD"
}

var currencyAmountRe = regexp.MustCompile(`^([0-9]+(?:\.[0-9]+)?)\s*([a-zA-Z]{3})$`)

// CurrencyParser recognizes amounts suffixed with a known fiat currency token.
type CurrencyParser struct {
	currencies map[string]struct{}
}

// NewCurrencyParser builds a parser accepting the given currency tokens
// (case-insensitive).
func NewCurrencyParser(currencies []string) *CurrencyParser {
	p := &CurrencyParser{currencies: make(map[string]struct{}, len(currencies))}
	for _, c := range currencies {
		p.currencies[strings.ToUpper(strings.TrimSpace(c))] = struct{}{}
	}
	return p
}

// Parse extracts an amount and currency from the input, if it matches.
func (p *CurrencyParser) Parse(text string) (*CurrencyAmount, bool) {
	m := currencyAmountRe.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return nil, false
	}

	currency := strings.ToUpper(m[2])
	if _, ok := p.currencies[currency]; !ok {
		return nil, false
	}

	amount, err := strconv.ParseFloat(m[1], 64)
	if err != nil || amount <= 0 {
		return nil, false
	}

	return &CurrencyAmount{Amount: amount, Currency: currency}, true
}

// SymbolParser recognizes known ticker aliases case-insensitively and
// normalizes them to a canonical uppercase symbol. A blacklist filters
// common words that merely look like tickers.
type SymbolParser struct {
	aliases   map[string]string
	blacklist map[string]struct{}
}

// NewSymbolParser builds a parser from the configured alias map and blacklist.
func NewSymbolParser(aliases map[string]string, blacklist []string) *SymbolParser {
	p := &SymbolParser{
		aliases:   make(map[string]string, len(aliases)),
		blacklist: make(map[string]struct{}, len(blacklist)),
	}
	for alias, canonical := range aliases {
		p.aliases[strings.ToLower(strings.TrimSpace(alias))] = strings.ToUpper(strings.TrimSpace(canonical))
	}
	for _, w := range blacklist {
		p.blacklist[strings.ToLower(strings.TrimSpace(w))] = struct{}{}
	}
	return p
}

// Parse returns the canonical symbol for the input, if it is a single known
// alias and not blacklisted.
func (p *SymbolParser) Parse(text string) (string, bool) {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(text)))
	if len(fields) != 1 {
		return "", false
	}
	token := fields[0]

	if _, blocked := p.blacklist[token]; blocked {
		return "", false
	}

	canonical, ok := p.aliases[token]
	if !ok || canonical == "" {
		return "", false
	}
	return canonical, true
}
