package http

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"moneymanager/internal/core"
	"moneymanager/internal/form"
)

// maxBodyBytes caps form and JSON bodies.
const maxBodyBytes = 64 << 10

// dateLayout is the value format of <input type="date">.
const dateLayout = "2006-01-02"

// FilterForm echoes the ledger filter inputs back into the page.
type FilterForm struct {
	Division string
	Category string
	Start    string
	End      string
}

// ParseFilter reads the ledger filter from query parameters. Blank and "ALL"
// mean no filter. Dates are calendar days in loc.
func ParseFilter(q url.Values, loc *time.Location) (core.TransactionFilter, FilterForm, error) {
	ff := FilterForm{
		Division: strings.ToUpper(strings.TrimSpace(q.Get("division"))),
		Category: strings.TrimSpace(q.Get("category")),
		Start:    strings.TrimSpace(q.Get("start")),
		End:      strings.TrimSpace(q.Get("end")),
	}
	var f core.TransactionFilter
	verr := core.NewValidationError()

	if ff.Division != "" && ff.Division != "ALL" {
		d, err := core.ParseDivision(ff.Division)
		if err != nil {
			verr.Add("division", "Unknown division")
		}
		f.Division = d
	}
	if ff.Category != "" && !strings.EqualFold(ff.Category, "ALL") {
		known := false
		for _, c := range core.AllCategories() {
			if c == ff.Category {
				known = true
				break
			}
		}
		if !known {
			verr.Add("category", "Unknown category")
		}
		f.Category = ff.Category
	}
	if ff.Start != "" {
		t, err := time.ParseInLocation(dateLayout, ff.Start, loc)
		if err != nil {
			verr.Add("start", "Start must be a date")
		}
		f.Start = t
	}
	if ff.End != "" {
		t, err := time.ParseInLocation(dateLayout, ff.End, loc)
		if err != nil {
			verr.Add("end", "End must be a date")
		}
		f.End = t
	}
	if !f.Start.IsZero() && !f.End.IsZero() && f.End.Before(f.Start) {
		verr.Add("end", "End is before start")
	}
	if err := verr.OrNil(); err != nil {
		return core.TransactionFilter{}, ff, err
	}
	return f, ff, nil
}

// formFieldNames are the inputs a transaction form posts.
var formFieldNames = []string{
	form.FieldType,
	form.FieldAmount,
	form.FieldCategory,
	form.FieldDescription,
	form.FieldDivision,
	form.FieldFromAccountID,
	form.FieldToAccountID,
	form.FieldTimestamp,
}

// FormFields collects the transaction form inputs present in the body.
// Absent inputs are left out so they keep their current value.
func FormFields(r *http.Request) (map[string]string, error) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		return nil, err
	}
	out := make(map[string]string, len(formFieldNames))
	for _, name := range formFieldNames {
		if v, ok := p.Lookup(name); ok {
			out[name] = v
		}
	}
	return out, nil
}

// RequestBodyParser handles different content types for request body parsing.
// It supports both JSON and form-encoded data, commonly used with HTMX.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]any
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser creates a parser for the given request.
// It reads the body once and stores it for subsequent parsing.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}

	if r.Body == nil {
		return p
	}
	p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	if len(p.body) == 0 {
		p.formData = url.Values{}
		return nil
	}

	// Try JSON first if content looks like JSON
	if p.body[0] == '{' || p.body[0] == '[' {
		p.jsonData = make(map[string]any)
		if err := json.Unmarshal(p.body, &p.jsonData); err != nil {
			p.err = err
			return err
		}
		return nil
	}

	// Fall back to form parsing
	p.formData, p.err = url.ParseQuery(string(p.body))
	return p.err
}

// Get returns a string value from the parsed data (JSON or form).
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

// Lookup is Get that also reports whether the key was present.
func (p *RequestBodyParser) Lookup(key string) (string, bool) {
	if p.jsonData != nil {
		val, ok := p.jsonData[key]
		if !ok {
			return "", false
		}
		return sanitizeInput(stringValue(val)), true
	}
	if p.formData != nil {
		if _, ok := p.formData[key]; ok {
			return sanitizeInput(p.formData.Get(key)), true
		}
	}
	return "", false
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

// stringValue flattens a decoded JSON scalar.
func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// sanitizeInput trims and removes control characters except tab and newlines.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
}
