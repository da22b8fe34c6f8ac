package scripts

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var (
	creditScoreRegexp = regexp.MustCompile(`\b([3-8]\d{2})\b`)
	amountRegexp      = regexp.MustCompile(`(?i)\$?\s*(\d[\d,]*(?:\.\d+)?)\s*([km])?\b`)
	percentRegexp     = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*%`)
	numberRegexp      = regexp.MustCompile(`^\d+(?:\.\d+)?$`)
)

// KeyMetrics are the headline thresholds parsed from a program's values.
type KeyMetrics struct {
	MaxLoanAmount  int64   `json:"max_loan_amount,omitempty"`
	MinLoanAmount  int64   `json:"min_loan_amount,omitempty"`
	MinCreditScore int     `json:"min_credit_score,omitempty"`
	MaxLTV         float64 `json:"max_ltv,omitempty"`
	MaxDTI         float64 `json:"max_dti,omitempty"`
}

// ExtractKeyMetrics parses loan amount, credit score, LTV and DTI limits
// from program attribute values.
func ExtractKeyMetrics(attrs map[string]string) KeyMetrics {
	var m KeyMetrics
	if lo, hi, ok := AmountRange(attrs[ParamLoanAmount]); ok {
		m.MinLoanAmount, m.MaxLoanAmount = lo, hi
	}
	if score, ok := MinCreditScore(attrs[ParamCreditScore]); ok {
		m.MinCreditScore = score
	}
	if ltv, ok := MaxPercent(attrs[ParamLTV]); ok {
		m.MaxLTV = ltv
	}
	if dti, ok := MaxPercent(attrs[ParamDTI]); ok {
		m.MaxDTI = dti
	}
	return m
}

// MinCreditScore returns the first plausible credit score in s.
func MinCreditScore(s string) (int, bool) {
	match := creditScoreRegexp.FindStringSubmatch(s)
	if match == nil {
		return 0, false
	}
	score, err := strconv.Atoi(match[1])
	if err != nil {
		return 0, false
	}
	return score, true
}

// AmountRange returns the smallest and largest dollar amounts in s.
// Amounts below 1,000 without a k/m suffix are ignored as noise.
func AmountRange(s string) (int64, int64, bool) {
	var lo, hi int64
	found := false
	for _, match := range amountRegexp.FindAllStringSubmatch(s, -1) {
		amount, ok := scaleAmount(match[1], match[2])
		if !ok || (amount < 1000 && match[2] == "") {
			continue
		}
		if !found || amount < lo {
			lo = amount
		}
		if !found || amount > hi {
			hi = amount
		}
		found = true
	}
	return lo, hi, found
}

// ParseAmount parses a borrower loan amount such as "$500,000", "500k" or
// "1.2M".
func ParseAmount(s string) (int64, bool) {
	match := amountRegexp.FindStringSubmatch(strings.TrimSpace(s))
	if match == nil {
		return 0, false
	}
	return scaleAmount(match[1], match[2])
}

func scaleAmount(digits, suffix string) (int64, bool) {
	value, err := strconv.ParseFloat(strings.ReplaceAll(digits, ",", ""), 64)
	if err != nil {
		return 0, false
	}
	switch strings.ToLower(suffix) {
	case "k":
		value *= 1_000
	case "m":
		value *= 1_000_000
	}
	return int64(value + 0.5), true
}

// MaxPercent returns the largest percentage in s.
func MaxPercent(s string) (float64, bool) {
	var best float64
	found := false
	for _, match := range percentRegexp.FindAllStringSubmatch(s, -1) {
		value, err := strconv.ParseFloat(match[1], 64)
		if err != nil {
			continue
		}
		if !found || value > best {
			best = value
		}
		found = true
	}
	return best, found
}

// ParsePercent parses a borrower ratio such as "43%" or "43".
func ParsePercent(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if value, ok := MaxPercent(s); ok {
		return value, true
	}
	if numberRegexp.MatchString(s) {
		value, err := strconv.ParseFloat(s, 64)
		return value, err == nil
	}
	return 0, false
}

// FormatAmount renders a dollar amount with thousands separators.
func FormatAmount(amount int64) string {
	return message.NewPrinter(language.English).Sprintf("$%d", amount)
}

// FormatPercent renders a ratio without trailing zeros.
func FormatPercent(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64) + "%"
}
