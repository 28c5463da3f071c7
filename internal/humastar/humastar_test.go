package humastar

import (
	"strings"
	"testing"
)

func TestPaginationLinks(t *testing.T) {
	p := PageBody[int]{Total: 25, Offset: 10, Limit: 10}
	got := strings.Join(p.PaginationLinks("/items"), ", ")

	for _, want := range []string{
		`</items?offset=0&limit=10>; rel="first"`,
		`</items?offset=0&limit=10>; rel="prev"`,
		`</items?offset=20&limit=10>; rel="next"`,
		`</items?offset=20&limit=10>; rel="last"`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %s in %s", want, got)
		}
	}
}

func TestPaginationLinksFirstPage(t *testing.T) {
	got := strings.Join(PageBody[int]{Total: 5, Offset: 0, Limit: 10}.PaginationLinks("/items"), ", ")
	if strings.Contains(got, `rel="prev"`) || strings.Contains(got, `rel="next"`) {
		t.Errorf("unexpected prev/next: %s", got)
	}
	if (PageBody[int]{}).PaginationLinks("/items") != nil {
		t.Error("zero limit should produce no links")
	}
}

func TestParseSignals(t *testing.T) {
	s, err := ParseSignals([]byte(`{"focus":"parcela:3","zoom":12}`))
	if err != nil {
		t.Fatal(err)
	}
	if s.String("focus") != "parcela:3" || s.Int("zoom") != 12 || s.String("missing") != "" {
		t.Fatalf("signals=%v", s)
	}

	in := &SignalsInput{RawBody: []byte("{")}
	if _, err := in.MustParse(); err == nil {
		t.Fatal("expected error")
	}
}

func TestDataInit(t *testing.T) {
	pd, err := NewPageData(map[string]any{"error": ""}, "/a", "/b")
	if err != nil {
		t.Fatal(err)
	}
	if got := pd.DataInit(); got != "@get('/a'); @get('/b')" {
		t.Errorf("DataInit=%q", got)
	}
	if pd.Signals != `{"error":""}` {
		t.Errorf("Signals=%q", pd.Signals)
	}
}

func TestParseLinkHeader(t *testing.T) {
	rel, href := parseLinkHeader(`</health>; rel="up"`)
	if rel != "up" || href != "/health" {
		t.Fatalf("rel=%q href=%q", rel, href)
	}
}
