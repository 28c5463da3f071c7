package humastar

import (
	"fmt"
	"path"
	"strings"

	"github.com/danielgtaylor/huma/v2"
)

// Links holds RFC 8288 Link header values keyed by operation path.
type Links map[string][]string

// Discover walks the OpenAPI spec and fills l with hypermedia links between
// collections, their items and the /health entry point. Operations tagged
// "viewer" (Datastar SSE endpoints) are skipped. Call after all routes are
// registered; a Transformer created earlier sees the new links.
func (l Links) Discover(api huma.API) {
	oapi := api.OpenAPI()
	links := l

	var collections, items []string
	for p, pi := range oapi.Paths {
		if hasTag(primaryTags(pi), "viewer") {
			continue
		}
		if strings.Contains(p, "{") {
			items = append(items, p)
		} else {
			collections = append(collections, p)
		}
	}

	// Item → collection.
	for _, item := range items {
		parent := path.Dir(item)
		if _, ok := oapi.Paths[parent]; ok {
			links.add(item, parent, "collection")
			links.add(item, parent, "up")
		}
	}

	// Collection → item template, and sub-collections such as .../lista.
	for _, coll := range collections {
		for _, item := range items {
			if path.Dir(item) == coll {
				links.add(coll, item, "item")
			}
		}
		for _, sub := range collections {
			if sub != coll && path.Dir(sub) == coll {
				links.add(coll, sub, lastSegment(sub))
			}
		}
	}

	// Entry point.
	for _, coll := range collections {
		if coll == "/health" {
			continue
		}
		links.add(coll, "/health", "up")
		links.add("/health", coll, lastSegment(coll))
	}
	links.add("/health", "/openapi.json", "describedby")
	links.add("/health", "/openapi.json", "service-desc")
	links.add("/health", "/docs", "service-doc")

	// Document the relationships in the OpenAPI document too.
	for p, pi := range oapi.Paths {
		headers, ok := links[p]
		if !ok {
			continue
		}
		for _, op := range operationsOf(pi) {
			if op != nil {
				injectResponseLinks(op, headers)
			}
		}
	}
}

// Transformer returns a Huma Transformer that injects the Link headers at
// runtime, plus a self link for item endpoints and pagination links for
// [Pager] bodies.
func (l Links) Transformer() huma.Transformer {
	return func(ctx huma.Context, status string, v any) (any, error) {
		op := ctx.Operation()
		if op == nil {
			return v, nil
		}

		for _, link := range l[op.Path] {
			ctx.AppendHeader("Link", link)
		}

		if strings.Contains(op.Path, "{") {
			ctx.AppendHeader("Link", fmt.Sprintf(`<%s>; rel="self"`, ctx.URL().Path))
		}

		if p, ok := v.(Pager); ok {
			for _, link := range p.PaginationLinks(ctx.URL().Path) {
				ctx.AppendHeader("Link", link)
			}
		}

		return v, nil
	}
}

// Root returns the entry point links, for use by non-Huma handlers.
func (l Links) Root() []string {
	return l["/health"]
}

func (l Links) add(from, to, rel string) {
	val := fmt.Sprintf(`<%s>; rel="%s"`, to, rel)
	for _, existing := range l[from] {
		if existing == val {
			return
		}
	}
	l[from] = append(l[from], val)
}

func primaryTags(pi *huma.PathItem) []string {
	for _, op := range operationsOf(pi) {
		if op != nil && len(op.Tags) > 0 {
			return op.Tags
		}
	}
	return nil
}

func operationsOf(pi *huma.PathItem) []*huma.Operation {
	return []*huma.Operation{pi.Get, pi.Post, pi.Put, pi.Patch, pi.Delete}
}

func hasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}

func lastSegment(p string) string {
	parts := strings.Split(strings.TrimRight(p, "/"), "/")
	return parts[len(parts)-1]
}

// injectResponseLinks adds OpenAPI Link objects to the success response.
func injectResponseLinks(op *huma.Operation, headers []string) {
	if op.Responses == nil {
		return
	}
	var resp *huma.Response
	for code, r := range op.Responses {
		if strings.HasPrefix(code, "2") {
			resp = r
			break
		}
	}
	if resp == nil {
		return
	}
	if resp.Links == nil {
		resp.Links = map[string]*huma.Link{}
	}
	for _, h := range headers {
		rel, href := parseLinkHeader(h)
		if rel == "" {
			continue
		}
		resp.Links[rel] = &huma.Link{
			OperationRef: href,
			Description:  fmt.Sprintf("Related: %s", rel),
		}
	}
}

// parseLinkHeader splits `<url>; rel="name"`.
func parseLinkHeader(h string) (rel, href string) {
	parts := strings.SplitN(h, ";", 2)
	if len(parts) < 2 {
		return "", ""
	}
	href = strings.Trim(strings.TrimSpace(parts[0]), "<>")
	relPart := strings.TrimSpace(parts[1])
	if strings.HasPrefix(relPart, `rel="`) {
		rel = strings.Trim(relPart[4:], `"`)
	}
	return rel, href
}
