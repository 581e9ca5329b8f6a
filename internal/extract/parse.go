package extract

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/kaptinlin/jsonrepair"
	"github.com/soyeahso/validade/internal/domain"
	"github.com/soyeahso/validade/internal/llm"
	"github.com/soyeahso/validade/internal/textnorm"
)

var (
	productKeys  = []string{"produto", "product", "nome", "name", "item", "nome_produto", "product_name"}
	dateKeys     = []string{"validade", "expiry", "expiration", "expiration_date", "expiry_date", "expires_on", "data_validade", "vencimento", "best_before", "date", "data"}
	leadKeys     = []string{"diasantes", "dias_antes", "dias", "lead_days", "leaddays", "days_before", "antecedencia", "days"}
	wrapperKeys  = []string{"data", "result", "resultado", "output"}
	dayPartKeys  = []string{"dia", "day", "d"}
	monthKeys    = []string{"mes", "month", "m"}
	yearPartKeys = []string{"ano", "year", "y"}
)

var (
	fenceRe   = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*(.*?)```")
	leadIntRe = regexp.MustCompile(`^\s*(-?\d+)\b`)
)

// fieldsFromResponse probes the completion content first, then each tool
// call input, and returns the first object that yields any field.
func fieldsFromResponse(resp *llm.CompletionResponse) *domain.Fields {
	if resp == nil {
		return nil
	}
	candidates := []string{resp.Content}
	for _, tc := range resp.ToolCalls {
		candidates = append(candidates, tc.Input)
	}
	for _, c := range candidates {
		obj, ok := decodeObject(c)
		if !ok {
			continue
		}
		if f := fieldsFromObject(obj); !f.Empty() {
			return &f
		}
	}
	return nil
}

// locateJSON returns the body of the first code fence, else the outermost
// {...} span, else s.
func locateJSON(s string) string {
	if m := fenceRe.FindStringSubmatch(s); m != nil {
		s = m[1]
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	if start >= 0 {
		// Truncated output; let the repairer close it.
		return s[start:]
	}
	return s
}

// decodeObject parses a JSON object out of model output, repairing it
// when plain decoding fails.
func decodeObject(s string) (map[string]any, bool) {
	body := strings.TrimSpace(locateJSON(s))
	if !strings.HasPrefix(body, "{") {
		return nil, false
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(body), &obj); err == nil {
		return obj, true
	}
	repaired, err := jsonrepair.JSONRepair(body)
	if err != nil {
		return nil, false
	}
	if err := json.Unmarshal([]byte(repaired), &obj); err != nil {
		return nil, false
	}
	return obj, obj != nil
}

// fieldsFromObject reads the aliased keys from obj, descending one level
// into a wrapper object when the top level has nothing.
func fieldsFromObject(obj map[string]any) domain.Fields {
	f := probe(obj)
	if !f.Empty() {
		return f
	}
	keys := foldKeys(obj)
	for _, w := range wrapperKeys {
		if inner, ok := keys[w].(map[string]any); ok {
			if f := probe(inner); !f.Empty() {
				return f
			}
		}
	}
	return domain.Fields{}
}

func probe(obj map[string]any) domain.Fields {
	keys := foldKeys(obj)
	var f domain.Fields
	for _, k := range productKeys {
		if s, ok := stringValue(keys[k]); ok {
			f.Product = s
			break
		}
	}
	for _, k := range dateKeys {
		if s, ok := dateValue(keys[k]); ok {
			f.ExpiresOn = s
			break
		}
	}
	for _, k := range leadKeys {
		if n, ok := intValue(keys[k]); ok {
			f.LeadDays = domain.Days(n)
			break
		}
	}
	return f
}

// foldKeys indexes obj by lower-cased, accent-folded keys with spaces and
// dashes turned into underscores.
func foldKeys(obj map[string]any) map[string]any {
	out := make(map[string]any, len(obj))
	for k, v := range obj {
		key := textnorm.Key(k)
		key = strings.NewReplacer(" ", "_", "-", "_").Replace(key)
		out[key] = v
	}
	return out
}

func stringValue(v any) (string, bool) {
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "null", "none", "nenhum", "nenhuma", "n/a", "desconhecido", "unknown":
		return "", false
	}
	return s, true
}

// dateValue accepts a date string or a {dia, mes, ano} object. The object
// form is rendered as D/M[/Y] for the normalizer to validate.
func dateValue(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return stringValue(t)
	case map[string]any:
		keys := foldKeys(t)
		day, okD := firstInt(keys, dayPartKeys)
		month, okM := firstInt(keys, monthKeys)
		if !okD || !okM {
			return "", false
		}
		if year, ok := firstInt(keys, yearPartKeys); ok && year > 0 {
			return fmt.Sprintf("%d/%d/%d", day, month, year), true
		}
		return fmt.Sprintf("%d/%d", day, month), true
	}
	return "", false
}

func firstInt(keys map[string]any, names []string) (int, bool) {
	for _, k := range names {
		if n, ok := intValue(keys[k]); ok {
			return n, true
		}
	}
	return 0, false
}

// intValue accepts JSON numbers and strings that start with an integer
// ("7", "7 dias").
func intValue(v any) (int, bool) {
	switch t := v.(type) {
	case float64:
		if t != math.Trunc(t) || math.Abs(t) > math.MaxInt32 {
			return 0, false
		}
		return int(t), true
	case string:
		m := leadIntRe.FindStringSubmatch(t)
		if m == nil {
			return 0, false
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}
