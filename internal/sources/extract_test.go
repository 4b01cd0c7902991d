package sources

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractOrder(t *testing.T) {
	calls := []string{}
	missing := strategy{name: "missing", parse: func([]byte) ([]candidate, error) {
		calls = append(calls, "missing")
		return nil, errNoBlock
	}}
	broken := strategy{name: "broken", parse: func([]byte) ([]candidate, error) {
		calls = append(calls, "broken")
		return nil, errors.New("bad json")
	}}
	markup := strategy{name: "markup", parse: func([]byte) ([]candidate, error) {
		calls = append(calls, "markup")
		return []candidate{validCandidate(1)}, nil
	}}
	never := strategy{name: "never", parse: func([]byte) ([]candidate, error) {
		t.Fatalf("strategies after a success must not run")
		return nil, nil
	}}

	cands, err := extract(nil, missing, broken, markup, never)

	require.NoError(t, err)
	assert.Len(t, cands, 1)
	assert.Equal(t, []string{"missing", "broken", "markup"}, calls)
}

func TestExtractErrors(t *testing.T) {
	missing := strategy{name: "missing", parse: func([]byte) ([]candidate, error) { return nil, errNoBlock }}
	broken := strategy{name: "broken", parse: func([]byte) ([]candidate, error) { return nil, errors.New("bad json") }}

	cands, err := extract(nil, missing, missing)
	assert.NoError(t, err)
	assert.Empty(t, cands)

	_, err = extract(nil, broken, missing)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken: bad json")
}

func TestDocAccessors(t *testing.T) {
	var raw map[string]any
	require.NoError(t, json.Unmarshal([]byte(`{
		"title": " Go Developer ",
		"empty": "",
		"count": 3,
		"price": "1,250.5",
		"remote": "true",
		"org": {"name": "Acme"},
		"places": [{"city": "Austin"}, {"city": "Dallas"}],
		"tags": ["go", " ", "k8s"]
	}`), &raw))
	d := doc(raw)

	assert.Equal(t, "Go Developer", d.str("empty", "title"))
	assert.Equal(t, "3", d.str("count"))
	assert.Equal(t, "Acme", d.str("org.name"))
	assert.Equal(t, "Austin", d.str("places.city"))
	assert.Equal(t, "", d.str("org.missing.deeper"))
	assert.Equal(t, 1250.5, d.num("price"))
	assert.Equal(t, 3.0, d.num("missing", "count"))
	assert.True(t, d.boolean("remote"))
	assert.Equal(t, "Acme", d.obj("org").str("name"))
	assert.Len(t, d.list("places"), 2)
	assert.Len(t, d.list("org"), 1)
	assert.Equal(t, []string{"go", "k8s"}, d.strs("tags"))
	assert.Nil(t, d.obj("title"))
}

func TestEmbeddedObject(t *testing.T) {
	body := []byte(`var x = 1; window.data = {"a": "}{", "b": {"c": "\"}"}}; window.after = {}`)

	raw, err := embeddedObject(body, "window.data =")
	require.NoError(t, err)
	assert.Equal(t, `{"a": "}{", "b": {"c": "\"}"}}`, string(raw))

	_, err = embeddedObject(body, "window.missing =")
	assert.True(t, errors.Is(err, errNoBlock))

	_, err = embeddedObject([]byte(`window.data = {"a": {`), "window.data =")
	require.Error(t, err)
	assert.False(t, errors.Is(err, errNoBlock))
}

func TestJSONLDPostingsGraph(t *testing.T) {
	body := []byte(`<script type="application/ld+json">{"@graph":[{"@type":"Organization"},{"@type":["JobPosting"],"title":"SRE",
	"jobLocationType":"TELECOMMUTE","hiringOrganization":"Initech","url":"https://x/1","identifier":{"value":"j-1"}}]}</script>
	<script type="application/ld+json">{not json</script>`)

	docs, err := jsonLDPostings(body)
	require.NoError(t, err)
	require.Len(t, docs, 1)

	c := fromJobPosting(docs[0])
	assert.Equal(t, "j-1", c.sourceID)
	assert.Equal(t, "Initech", c.company)
	assert.Equal(t, "Remote", c.location)
	assert.True(t, c.remote)
}

func TestJSONLDPostingsErrors(t *testing.T) {
	_, err := jsonLDPostings([]byte(`<html><body>no scripts</body></html>`))
	assert.True(t, errors.Is(err, errNoBlock))

	_, err = jsonLDPostings([]byte(`<script type="application/ld+json">{broken</script>`))
	require.Error(t, err)
	assert.False(t, errors.Is(err, errNoBlock))

	_, err = jsonLDPostings([]byte(`<script type="application/ld+json">{"@type":"WebSite"}</script>`))
	assert.True(t, errors.Is(err, errNoBlock))
}

func TestAbsoluteURL(t *testing.T) {
	assert.Equal(t, "https://a.test/x/y", absoluteURL("https://a.test/", "/x/y"))
	assert.Equal(t, "https://b.test/z", absoluteURL("https://a.test", "https://b.test/z"))
	assert.Equal(t, "", absoluteURL("https://a.test", " "))
}
