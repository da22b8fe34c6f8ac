package router

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/pysugar/loanpilot/internal/scripts"
	"github.com/pysugar/loanpilot/internal/textnorm"
)

// KeywordThreshold is the minimum word-overlap score of a keyword match.
const KeywordThreshold = 0.3

// Pattern is a script's natural-language prompt used as a matching hint.
type Pattern struct {
	Name   string
	Prompt string
}

var (
	programSuffixRegexp = regexp.MustCompile(`(?i)((?:PRMG/|LoanStream)[A-Za-z0-9/\s\-]+?)\s+program\b`)
	programPrefixRegexp = regexp.MustCompile(`(?i)\b(?:program:?|for|by|of)\s+((?:PRMG/|LoanStream)[A-Za-z0-9/\s\-]*[A-Za-z0-9])`)
	acrossRegexp        = regexp.MustCompile(`(?i)\bacross\s+programs?\b`)
	paramRegexp         = regexp.MustCompile(`(?i)(\w+)\s+parameter`)
	findParamRegexp     = regexp.MustCompile(`(?i)(?:find|show)\s+(\w+)\s+(?:across|for)`)
	creditRegexp        = regexp.MustCompile(`(?i)(\d{3})\s*(?:fico|credit\s*score)|(?:fico|credit\s*score)\s*(?:of|is|:)?\s*(\d{3})`)
	loanAmountRegexp    = regexp.MustCompile(`(?i)\$?(\d[\d,]*(?:\.\d+)?\s*[km]?)\s*loan(?:\s*amount)?\b|loan\s*amount\s*(?:of|is|:)?\s*\$?(\d[\d,]*(?:\.\d+)?\s*[km]?)\b`)
	ltvRegexp           = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*%?\s*LTV|LTV\s*(?:of|is|:)?\s*(\d+(?:\.\d+)?)`)
	dtiRegexp           = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*%?\s*DTI|DTI\s*(?:of|is|:)?\s*(\d+(?:\.\d+)?)`)
	purchaseRegexp      = regexp.MustCompile(`(?i)\bpurchase\b`)
	cashOutRegexp       = regexp.MustCompile(`(?i)\bcash[\s-]*out\b`)
	rateTermRegexp      = regexp.MustCompile(`(?i)\brate\s*(?:and|&|/)?\s*term\b`)
	ownerRegexp         = regexp.MustCompile(`(?i)\b(?:owner\s*occupied|primary\s*residence)\b`)
	secondHomeRegexp    = regexp.MustCompile(`(?i)\bsecond\s*home\b`)
	investmentRegexp    = regexp.MustCompile(`(?i)\binvestment\b`)
)

// KeywordScore is |overlap| / max(|q|, |p|) over the word sets of query and
// prompt.
func KeywordScore(query, prompt string) float64 {
	q := textnorm.WordSet(query)
	p := textnorm.WordSet(prompt)
	if len(q) == 0 || len(p) == 0 {
		return 0
	}
	overlap := 0
	for w := range q {
		if _, ok := p[w]; ok {
			overlap++
		}
	}
	return float64(overlap) / float64(max(len(q), len(p)))
}

// MatchKeywords returns the pattern with the best score and the score. The
// first pattern wins ties. ok is false below KeywordThreshold.
func MatchKeywords(query string, patterns []Pattern) (Pattern, float64, bool) {
	query = StripMarker(query)
	var best Pattern
	bestScore := 0.0
	for _, p := range patterns {
		if score := KeywordScore(query, p.Prompt); score > bestScore {
			best, bestScore = p, score
		}
	}
	if bestScore < KeywordThreshold {
		return Pattern{}, bestScore, false
	}
	return best, bestScore, true
}

// Fallback routes query without a model: keyword matching over patterns,
// regex parameter extraction, parameter-name mapping onto columns and
// selection backfill. A parameter lookup without any servicer defaults to
// Prime.
func Fallback(query string, patterns []Pattern, columns []string, sel Selection) Decision {
	query = StripMarker(query)
	pattern, score, ok := MatchKeywords(query, patterns)
	if !ok {
		return noMatch(errNoMatch)
	}

	d := Decision{
		ScriptName: pattern.Name,
		Parameters: ExtractParameters(query),
		Confidence: score,
		Source:     SourceKeyword,
	}
	if name := d.Parameters.String(scripts.ParamName); name != "" {
		if column := MapParamName(name, columns); column != "" {
			d.Parameters[scripts.ParamName] = column
		}
	}
	Backfill(&d, sel)
	if d.Parameters.Has(scripts.ParamName) && !d.Parameters.Has(scripts.ParamServicer) {
		d.Parameters[scripts.ParamServicer] = ServicerPrime
	}
	return d
}

// ExtractParameters pulls script parameters out of free text.
func ExtractParameters(query string) scripts.Params {
	params := scripts.Params{}

	if servicer := extractServicer(query); servicer != "" {
		params[scripts.ParamServicer] = servicer
	}
	if program := extractProgram(query); program != "" {
		params[scripts.ParamProgram] = program
		if !params.Has(scripts.ParamServicer) {
			if servicer := ServicerForProgram(program); servicer != "" {
				params[scripts.ParamServicer] = servicer
			}
		}
	}
	if name := extractParamName(query); name != "" {
		params[scripts.ParamName] = name
	}

	if v := firstGroup(creditRegexp, query); v != "" {
		params[scripts.ParamCreditScore] = v
	}
	if v := firstGroup(loanAmountRegexp, query); v != "" {
		if amount, ok := scripts.ParseAmount(v); ok {
			params[scripts.ParamLoanAmount] = strconv.FormatInt(amount, 10)
		}
	}
	if v := firstGroup(ltvRegexp, query); v != "" {
		params[scripts.ParamLTV] = v
	}
	if v := firstGroup(dtiRegexp, query); v != "" {
		params[scripts.ParamDTI] = v
	}

	switch {
	case purchaseRegexp.MatchString(query):
		params[scripts.ParamTransactionType] = "Purchase"
	case cashOutRegexp.MatchString(query):
		params[scripts.ParamTransactionType] = "Cash Out"
	case rateTermRegexp.MatchString(query):
		params[scripts.ParamTransactionType] = "Rate & Term"
	}
	switch {
	case ownerRegexp.MatchString(query):
		params[scripts.ParamOccupancy] = "Primary Residence"
	case secondHomeRegexp.MatchString(query):
		params[scripts.ParamOccupancy] = "Second Home"
	case investmentRegexp.MatchString(query):
		params[scripts.ParamOccupancy] = "Investment"
	}
	return params
}

func extractServicer(query string) string {
	lower := strings.ToLower(query)
	switch {
	case strings.Contains(lower, "prime") || strings.Contains(lower, "prmg"):
		return ServicerPrime
	case strings.Contains(lower, "loanstream") || strings.Contains(lower, "loan stream"):
		return ServicerLoanStream
	}
	return ""
}

func extractProgram(query string) string {
	if acrossRegexp.MatchString(query) {
		return ""
	}
	if v := firstGroup(programSuffixRegexp, query); v != "" {
		return v
	}
	return firstGroup(programPrefixRegexp, query)
}

// notParamNames are words the parameter patterns capture that never name
// a column.
var notParamNames = map[string]bool{
	"all": true, "the": true, "each": true, "every": true,
	"program": true, "programs": true, "parameter": true, "parameters": true,
}

func extractParamName(query string) string {
	for _, re := range []*regexp.Regexp{paramRegexp, findParamRegexp} {
		if v := firstGroup(re, query); v != "" && !notParamNames[strings.ToLower(v)] {
			return v
		}
	}
	return ""
}

// firstGroup returns the first non-empty capture group of re in s.
func firstGroup(re *regexp.Regexp, s string) string {
	match := re.FindStringSubmatch(s)
	if match == nil {
		return ""
	}
	for _, group := range match[1:] {
		if group = strings.TrimSpace(group); group != "" {
			return group
		}
	}
	return ""
}
