package scripts

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/pysugar/loanpilot/internal/db"
)

// Criteria is a borrower profile matched against program limits. Zero
// fields are not checked.
type Criteria struct {
	CreditScore     int
	LoanAmount      int64
	LTV             float64
	DTI             float64
	TransactionType string
	Occupancy       string
}

// Empty reports whether no criterion is set.
func (c Criteria) Empty() bool {
	return c == Criteria{}
}

// ParseCriteria reads borrower criteria from params.
func ParseCriteria(params Params) (Criteria, error) {
	var c Criteria
	if raw := params.String(ParamCreditScore); raw != "" {
		score, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			score, ok := MinCreditScore(raw)
			if !ok {
				return c, fmt.Errorf("invalid %s %q", ParamCreditScore, raw)
			}
			c.CreditScore = score
		} else {
			c.CreditScore = score
		}
	}
	if raw := params.String(ParamLoanAmount); raw != "" {
		amount, ok := ParseAmount(raw)
		if !ok {
			return c, fmt.Errorf("invalid %s %q", ParamLoanAmount, raw)
		}
		c.LoanAmount = amount
	}
	if raw := params.String(ParamLTV); raw != "" {
		ltv, ok := ParsePercent(raw)
		if !ok {
			return c, fmt.Errorf("invalid %s %q", ParamLTV, raw)
		}
		c.LTV = ltv
	}
	if raw := params.String(ParamDTI); raw != "" {
		dti, ok := ParsePercent(raw)
		if !ok {
			return c, fmt.Errorf("invalid %s %q", ParamDTI, raw)
		}
		c.DTI = dti
	}
	c.TransactionType = params.String(ParamTransactionType)
	c.Occupancy = params.String(ParamOccupancy)
	return c, nil
}

// Exclusions returns why p does not fit c. A program value that is absent
// or unparseable never excludes.
func (c Criteria) Exclusions(p *db.Program) []string {
	var reasons []string
	if c.CreditScore > 0 {
		if minimum, ok := MinCreditScore(p.Value(ParamCreditScore)); ok && c.CreditScore < minimum {
			reasons = append(reasons, fmt.Sprintf("credit score %d below minimum %d", c.CreditScore, minimum))
		}
	}
	if c.LoanAmount > 0 {
		if lo, hi, ok := AmountRange(p.Value(ParamLoanAmount)); ok {
			switch {
			case c.LoanAmount > hi:
				reasons = append(reasons, fmt.Sprintf("loan amount %s above maximum %s", FormatAmount(c.LoanAmount), FormatAmount(hi)))
			case lo != hi && c.LoanAmount < lo:
				reasons = append(reasons, fmt.Sprintf("loan amount %s below minimum %s", FormatAmount(c.LoanAmount), FormatAmount(lo)))
			}
		}
	}
	if c.LTV > 0 {
		if maximum, ok := MaxPercent(p.Value(ParamLTV)); ok && c.LTV > maximum {
			reasons = append(reasons, fmt.Sprintf("LTV %s above maximum %s", FormatPercent(c.LTV), FormatPercent(maximum)))
		}
	}
	if c.DTI > 0 {
		if maximum, ok := MaxPercent(p.Value(ParamDTI)); ok && c.DTI > maximum {
			reasons = append(reasons, fmt.Sprintf("DTI %s above maximum %s", FormatPercent(c.DTI), FormatPercent(maximum)))
		}
	}
	if c.TransactionType != "" {
		if allowed := p.Value(ParamTransactionType); allowed != "" &&
			!strings.Contains(normalizeTransaction(allowed), transactionKey(c.TransactionType)) {
			reasons = append(reasons, fmt.Sprintf("transaction type %s not eligible", c.TransactionType))
		}
	}
	if c.Occupancy != "" {
		if allowed := p.Value(ParamOccupancy); allowed != "" &&
			!strings.Contains(strings.ToLower(allowed), occupancyKey(c.Occupancy)) {
			reasons = append(reasons, fmt.Sprintf("occupancy %s not eligible", c.Occupancy))
		}
	}
	return reasons
}

func normalizeTransaction(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "cash out", "cash-out")
	s = strings.ReplaceAll(s, "cashout", "cash-out")
	return strings.ReplaceAll(s, "rate and term", "rate/term")
}

func transactionKey(s string) string {
	s = strings.ToLower(s)
	switch {
	case strings.Contains(s, "cash"):
		return "cash-out"
	case strings.Contains(s, "rate") || strings.Contains(s, "term"):
		return "rate/term"
	case strings.Contains(s, "refi"):
		return "refinance"
	case strings.Contains(s, "purchase") || strings.Contains(s, "buy"):
		return "purchase"
	}
	return normalizeTransaction(strings.TrimSpace(s))
}

func occupancyKey(s string) string {
	s = strings.ToLower(s)
	switch {
	case strings.Contains(s, "invest") || strings.Contains(s, "rental") || strings.Contains(s, "non-owner"):
		return "investment"
	case strings.Contains(s, "second") || strings.Contains(s, "vacation"):
		return "second home"
	case strings.Contains(s, "primary") || strings.Contains(s, "owner"):
		return "primary residence"
	}
	return strings.TrimSpace(s)
}

func (c Criteria) lines() []string {
	var lines []string
	if c.CreditScore > 0 {
		lines = append(lines, fmt.Sprintf("Credit Score: %d", c.CreditScore))
	}
	if c.LoanAmount > 0 {
		lines = append(lines, "Loan Amount: "+FormatAmount(c.LoanAmount))
	}
	if c.LTV > 0 {
		lines = append(lines, "LTV: "+FormatPercent(c.LTV))
	}
	if c.DTI > 0 {
		lines = append(lines, "DTI: "+FormatPercent(c.DTI))
	}
	if c.TransactionType != "" {
		lines = append(lines, "Transaction Type: "+c.TransactionType)
	}
	if c.Occupancy != "" {
		lines = append(lines, "Occupancy: "+c.Occupancy)
	}
	return lines
}

func matchPrograms(_ context.Context, env *Env, params Params) error {
	criteria, err := ParseCriteria(params)
	if err != nil {
		return err
	}
	programs, err := db.ListProgramDetails(env.DB, params.String(ParamServicer), params.Strings(ParamSelectedPrograms))
	if err != nil {
		return err
	}

	env.Println("PROGRAM MATCHING RESULTS")
	env.Println(separator)
	env.Println("Borrower criteria:")
	if criteria.Empty() {
		env.Println("  (none provided, listing all programs)")
	}
	for _, line := range criteria.lines() {
		env.Printf("  %s\n", line)
	}
	env.Println(separator)

	if len(programs) == 0 {
		env.Println("No programs found.")
		return ErrEarlyExit
	}

	type exclusion struct {
		program db.ProgramRef
		reasons []string
	}
	var matched []db.ProgramRef
	var excluded []exclusion
	for i := range programs {
		if reasons := criteria.Exclusions(&programs[i]); len(reasons) > 0 {
			excluded = append(excluded, exclusion{programs[i].ProgramRef, reasons})
			continue
		}
		matched = append(matched, programs[i].ProgramRef)
	}

	env.Printf("MATCHING PROGRAMS (%d):\n", len(matched))
	if len(matched) == 0 {
		env.Println("  None")
	}
	for i, ref := range matched {
		env.Printf("%d. %s (%s)\n", i+1, ref.Program, ref.Servicer)
	}
	if len(excluded) > 0 {
		env.Println()
		env.Printf("EXCLUDED PROGRAMS (%d):\n", len(excluded))
		for _, ex := range excluded {
			env.Printf("- %s (%s): %s\n", ex.program.Program, ex.program.Servicer, strings.Join(ex.reasons, "; "))
		}
	}
	env.Println(separator)
	env.Printf("Total: %d programs\n", len(matched))
	return nil
}
