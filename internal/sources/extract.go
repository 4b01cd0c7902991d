package sources

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mitchellh/mapstructure"

	"github.com/spigell/job-radar/internal/jobs"
)

// errNoBlock means a strategy found nothing it knows how to read.
var errNoBlock = errors.New("no extractable block")

type strategy struct {
	name  string
	parse func(body []byte) ([]candidate, error)
}

// extract tries strategies in order and returns the first one that finds
// its block. An error is returned only when every strategy failed and at
// least one of them failed for a reason other than a missing block.
func extract(body []byte, strategies ...strategy) ([]candidate, error) {
	var errs []error
	for _, s := range strategies {
		cands, err := s.parse(body)
		if err == nil {
			return cands, nil
		}
		if !errors.Is(err, errNoBlock) {
			errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
		}
	}
	return nil, errors.Join(errs...)
}

// doc is an untrusted, loosely typed JSON object. Every accessor returns a
// zero value instead of failing on absent or oddly shaped fields.
type doc map[string]any

// get follows a dotted path. Arrays met on the way resolve to their first element.
func (d doc) get(path string) any {
	var cur any = map[string]any(d)
	for _, key := range strings.Split(path, ".") {
		cur = first(cur)
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = m[key]
	}
	return cur
}

func first(v any) any {
	if list, ok := v.([]any); ok {
		if len(list) == 0 {
			return nil
		}
		return list[0]
	}
	return v
}

// str returns the first non-empty value among paths, formatted as a string.
func (d doc) str(paths ...string) string {
	for _, path := range paths {
		switch v := first(d.get(path)).(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		case bool:
			return strconv.FormatBool(v)
		case json.Number:
			return v.String()
		}
	}
	return ""
}

func (d doc) num(paths ...string) float64 {
	for _, path := range paths {
		switch v := first(d.get(path)).(type) {
		case float64:
			if v != 0 {
				return v
			}
		case string:
			if f, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(v), ",", ""), 64); err == nil && f != 0 {
				return f
			}
		}
	}
	return 0
}

func (d doc) boolean(path string) bool {
	switch v := first(d.get(path)).(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	}
	return false
}

func (d doc) obj(path string) doc {
	if m, ok := first(d.get(path)).(map[string]any); ok {
		return doc(m)
	}
	return nil
}

func (d doc) list(path string) []doc {
	var out []doc
	switch v := d.get(path).(type) {
	case []any:
		for _, item := range v {
			if m, ok := item.(map[string]any); ok {
				out = append(out, doc(m))
			}
		}
	case map[string]any:
		out = append(out, doc(v))
	}
	return out
}

func (d doc) strs(path string) []string {
	var out []string
	switch v := d.get(path).(type) {
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
	case string:
		if s := strings.TrimSpace(v); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (d doc) isType(name string) bool {
	for _, t := range d.strs("@type") {
		if strings.EqualFold(t, name) {
			return true
		}
	}
	return false
}

// jsonLDPostings returns every JobPosting found in ld+json script blocks,
// including those nested in @graph arrays and ItemList elements.
func jsonLDPostings(body []byte) ([]doc, error) {
	page, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	scripts := page.Find(`script[type="application/ld+json"]`)
	if scripts.Length() == 0 {
		return nil, errNoBlock
	}

	var (
		postings  []doc
		parseErrs []error
	)
	scripts.Each(func(_ int, s *goquery.Selection) {
		var raw any
		if err := json.Unmarshal([]byte(strings.TrimSpace(s.Text())), &raw); err != nil {
			parseErrs = append(parseErrs, err)
			return
		}
		postings = append(postings, findJobPostings(raw)...)
	})

	if len(postings) == 0 {
		if len(parseErrs) > 0 {
			return nil, fmt.Errorf("ld+json: %w", errors.Join(parseErrs...))
		}
		return nil, errNoBlock
	}
	return postings, nil
}

func findJobPostings(v any) []doc {
	switch t := v.(type) {
	case []any:
		var out []doc
		for _, item := range t {
			out = append(out, findJobPostings(item)...)
		}
		return out
	case map[string]any:
		d := doc(t)
		if d.isType("JobPosting") {
			return []doc{d}
		}
		var out []doc
		for _, key := range []string{"@graph", "itemListElement", "item"} {
			if nested, ok := t[key]; ok {
				out = append(out, findJobPostings(nested)...)
			}
		}
		return out
	}
	return nil
}

// fromJobPosting maps a schema.org JobPosting onto a candidate.
func fromJobPosting(d doc) candidate {
	c := candidate{
		sourceID:        d.str("identifier.value", "identifier", "@id"),
		title:           d.str("title", "name"),
		company:         d.str("hiringOrganization.name", "hiringOrganization"),
		descriptionHTML: d.str("description"),
		posted:          d.str("datePosted"),
		applyURL:        d.str("url", "directApplyUrl", "sameAs"),
		employmentType:  strings.Join(d.strs("employmentType"), ", "),
		requirements:    d.str("qualifications", "experienceRequirements"),
	}

	locality := d.str("jobLocation.address.addressLocality")
	region := d.str("jobLocation.address.addressRegion")
	switch {
	case locality != "" && region != "":
		c.location = locality + ", " + region
	case locality != "":
		c.location = locality
	default:
		c.location = d.str("jobLocation.address.addressCountry", "applicantLocationRequirements.name")
	}
	if strings.EqualFold(d.str("jobLocationType"), "TELECOMMUTE") {
		c.remote = true
		if c.location == "" {
			c.location = "Remote"
		}
	}

	if t, err := time.Parse(time.RFC3339, c.posted); err == nil {
		c.postedAt = t
	}

	c.salaryMin = d.num("baseSalary.value.minValue", "baseSalary.value.value", "baseSalary.minValue")
	c.salaryMax = d.num("baseSalary.value.maxValue", "baseSalary.value.value", "baseSalary.maxValue")
	switch strings.ToUpper(d.str("baseSalary.value.unitText", "baseSalary.unitText")) {
	case "HOUR":
		c.salaryPeriod = jobs.SalaryHourly
	case "YEAR":
		c.salaryPeriod = jobs.SalaryAnnual
	}
	return c
}

func jsonLDStrategy() strategy {
	return strategy{name: "json-ld", parse: func(body []byte) ([]candidate, error) {
		docs, err := jsonLDPostings(body)
		if err != nil {
			return nil, err
		}
		cands := make([]candidate, 0, len(docs))
		for _, d := range docs {
			cands = append(cands, fromJobPosting(d))
		}
		return cands, nil
	}}
}

// embeddedObject returns the JSON object literal assigned right after marker
// in a page script.
func embeddedObject(body []byte, marker string) ([]byte, error) {
	idx := bytes.Index(body, []byte(marker))
	if idx < 0 {
		return nil, errNoBlock
	}
	rest := body[idx+len(marker):]
	start := bytes.IndexByte(rest, '{')
	if start < 0 {
		return nil, errNoBlock
	}
	rest = rest[start:]

	depth := 0
	inString, escaped := false, false
	for i, b := range rest {
		switch {
		case escaped:
			escaped = false
		case inString && b == '\\':
			escaped = true
		case b == '"':
			inString = !inString
		case inString:
		case b == '{':
			depth++
		case b == '}':
			depth--
			if depth == 0 {
				return rest[:i+1], nil
			}
		}
	}
	return nil, errors.New("unterminated embedded object")
}

// decodeItems converts loosely typed API items into out, a pointer to a
// slice of structs tagged with json names.
func decodeItems(items any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(items)
}

func text(s *goquery.Selection, selectors ...string) string {
	for _, sel := range selectors {
		if t := collapse(s.Find(sel).First().Text()); t != "" {
			return t
		}
	}
	return ""
}

func attr(s *goquery.Selection, selector, name string) string {
	v, _ := s.Find(selector).First().Attr(name)
	return strings.TrimSpace(v)
}

// absoluteURL resolves href against base when it is site-relative.
func absoluteURL(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(href, "/")
}
