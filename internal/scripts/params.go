package scripts

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Parameter keys shared by the router and the handlers.
const (
	ParamName             = "param_name"
	ParamServicer         = "loan_servicer"
	ParamProgram          = "program_name"
	ParamSelectedPrograms = "selected_programs"
	ParamSummary          = "program_summary"
	ParamCreditScore      = "borrower_credit_score"
	ParamLoanAmount       = "loan_amount"
	ParamLTV              = "ltv"
	ParamDTI              = "dti"
	ParamTransactionType  = "transaction_type"
	ParamOccupancy        = "occupancy"
)

// Params are the extracted parameters of a routing decision. Values are
// strings or string lists.
type Params map[string]any

// NormalizeParams converts decoded JSON values into strings and string
// lists. Numbers keep their shortest decimal form and nulls are dropped.
func NormalizeParams(raw map[string]any) Params {
	out := make(Params, len(raw))
	for key, value := range raw {
		switch v := value.(type) {
		case nil:
		case string:
			out[key] = v
		case []string:
			out[key] = append([]string(nil), v...)
		case []any:
			list := make([]string, 0, len(v))
			for _, item := range v {
				if item == nil {
					continue
				}
				list = append(list, scalarString(item))
			}
			out[key] = list
		default:
			out[key] = scalarString(v)
		}
	}
	return out
}

func scalarString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}

// String returns the trimmed string value of key. A list yields its first
// element.
func (p Params) String(key string) string {
	switch v := p[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case []string:
		if len(v) > 0 {
			return strings.TrimSpace(v[0])
		}
	}
	return ""
}

// Strings returns the non-empty values of key as a list.
func (p Params) Strings(key string) []string {
	var raw []string
	switch v := p[key].(type) {
	case string:
		raw = []string{v}
	case []string:
		raw = v
	}
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Has reports whether key carries a non-empty value.
func (p Params) Has(key string) bool {
	return len(p.Strings(key)) > 0
}

// Clone returns a deep copy.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for key, value := range p {
		if list, ok := value.([]string); ok {
			out[key] = append([]string(nil), list...)
			continue
		}
		out[key] = value
	}
	return out
}

// Keys returns the parameter keys in sorted order.
func (p Params) Keys() []string {
	keys := make([]string, 0, len(p))
	for key := range p {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
