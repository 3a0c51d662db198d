// Package operations holds the static Operation Vocabulary: a table of
// every WordPress REST call the router knows how to execute, keyed by
// operation name, with its HTTP method, path template, parameter
// bindings, and cache/invalidation classification.
package operations

import (
	"sort"
	"strings"
)

// Method is the HTTP method an operation issues.
type Method string

const (
	MethodGET    Method = "GET"
	MethodPOST   Method = "POST"
	MethodPUT    Method = "PUT"
	MethodDELETE Method = "DELETE"
)

// CacheClass buckets an operation's response by how long it is safe to
// keep stale. "none" means the response is never cached.
type CacheClass string

const (
	CacheNone   CacheClass = "none"
	CacheShort  CacheClass = "short"  // 60s   — volatile lists, search
	CacheMedium CacheClass = "medium" // 15m   — single-resource reads
	CacheLong   CacheClass = "long"   // 60m   — rarely-changing collections
	CacheStatic CacheClass = "static" // 24h   — site settings
)

// InvalidationClass names the cascading-delete rule (see package
// invalidation) to run after a mutating operation succeeds.
type InvalidationClass string

const (
	InvalidateNone      InvalidationClass = ""
	InvalidatePosts     InvalidationClass = "posts"
	InvalidatePages     InvalidationClass = "pages"
	InvalidateMedia     InvalidationClass = "media"
	InvalidateUsers     InvalidationClass = "users"
	InvalidateComments  InvalidationClass = "comments"
	InvalidateTaxonomy  InvalidationClass = "taxonomy"
	InvalidateSettings  InvalidationClass = "settings"
	InvalidateAppPass   InvalidationClass = "app_passwords"
	InvalidateSEO       InvalidationClass = "seo"
)

// ParamKind describes where a named parameter is bound in the request.
type ParamKind string

const (
	ParamPath  ParamKind = "path"  // substituted into the path template
	ParamQuery ParamKind = "query" // appended as a query string parameter
	ParamBody  ParamKind = "body"  // marshalled into the JSON request body
)

// Param describes one bound parameter of an operation.
type Param struct {
	Name     string
	Kind     ParamKind
	Required bool
}

// Operation is one entry in the vocabulary.
type Operation struct {
	Name              string
	Method            Method
	PathTemplate      string // e.g. "/wp-json/wp/v2/posts/{id}"
	Params            []Param
	CacheClass        CacheClass
	InvalidationClass InvalidationClass
	RequiresSEOPlugin bool

	// Idempotent marks an operation as safe to replay: GET and DELETE
	// calls produce the same server state no matter how many times
	// they land, so the Request Manager may retry them on any
	// retriable upstream failure. POST-based creates and updates are
	// not idempotent and are retried only under the narrower rule in
	// wpclient.ExecuteConditional (a transport failure before any
	// response arrived, a server-provided Retry-After, or a 401 that a
	// credential refresh has just resolved).
	Idempotent bool
}

// Vocabulary is the static, immutable table of every operation the
// router can execute. It is built once at package init and never
// mutated at runtime.
var Vocabulary = buildVocabulary()

func buildVocabulary() map[string]Operation {
	ops := []Operation{
		// Posts
		{Name: "posts.list", Method: MethodGET, PathTemplate: "/wp-json/wp/v2/posts",
			Params: []Param{{"search", ParamQuery, false}, {"page", ParamQuery, false}, {"per_page", ParamQuery, false}, {"status", ParamQuery, false}, {"author", ParamQuery, false}},
			CacheClass: CacheShort, InvalidationClass: InvalidateNone},
		{Name: "posts.get", Method: MethodGET, PathTemplate: "/wp-json/wp/v2/posts/{id}",
			Params: []Param{{"id", ParamPath, true}},
			CacheClass: CacheMedium, InvalidationClass: InvalidateNone},
		{Name: "posts.create", Method: MethodPOST, PathTemplate: "/wp-json/wp/v2/posts",
			Params: []Param{{"title", ParamBody, true}, {"content", ParamBody, false}, {"status", ParamBody, false}},
			CacheClass: CacheNone, InvalidationClass: InvalidatePosts},
		{Name: "posts.update", Method: MethodPOST, PathTemplate: "/wp-json/wp/v2/posts/{id}",
			Params: []Param{{"id", ParamPath, true}, {"title", ParamBody, false}, {"content", ParamBody, false}, {"status", ParamBody, false}},
			CacheClass: CacheNone, InvalidationClass: InvalidatePosts},
		{Name: "posts.delete", Method: MethodDELETE, PathTemplate: "/wp-json/wp/v2/posts/{id}",
			Params: []Param{{"id", ParamPath, true}, {"force", ParamQuery, false}},
			CacheClass: CacheNone, InvalidationClass: InvalidatePosts},
		{Name: "posts.revisions", Method: MethodGET, PathTemplate: "/wp-json/wp/v2/posts/{id}/revisions",
			Params: []Param{{"id", ParamPath, true}},
			CacheClass: CacheShort, InvalidationClass: InvalidateNone},

		// Pages
		{Name: "pages.list", Method: MethodGET, PathTemplate: "/wp-json/wp/v2/pages",
			Params: []Param{{"search", ParamQuery, false}, {"page", ParamQuery, false}, {"per_page", ParamQuery, false}},
			CacheClass: CacheShort, InvalidationClass: InvalidateNone},
		{Name: "pages.get", Method: MethodGET, PathTemplate: "/wp-json/wp/v2/pages/{id}",
			Params: []Param{{"id", ParamPath, true}},
			CacheClass: CacheMedium, InvalidationClass: InvalidateNone},
		{Name: "pages.create", Method: MethodPOST, PathTemplate: "/wp-json/wp/v2/pages",
			Params: []Param{{"title", ParamBody, true}, {"content", ParamBody, false}, {"status", ParamBody, false}},
			CacheClass: CacheNone, InvalidationClass: InvalidatePages},
		{Name: "pages.update", Method: MethodPOST, PathTemplate: "/wp-json/wp/v2/pages/{id}",
			Params: []Param{{"id", ParamPath, true}, {"title", ParamBody, false}, {"content", ParamBody, false}},
			CacheClass: CacheNone, InvalidationClass: InvalidatePages},
		{Name: "pages.delete", Method: MethodDELETE, PathTemplate: "/wp-json/wp/v2/pages/{id}",
			Params: []Param{{"id", ParamPath, true}, {"force", ParamQuery, false}},
			CacheClass: CacheNone, InvalidationClass: InvalidatePages},

		// Media
		{Name: "media.list", Method: MethodGET, PathTemplate: "/wp-json/wp/v2/media",
			Params: []Param{{"page", ParamQuery, false}, {"per_page", ParamQuery, false}, {"media_type", ParamQuery, false}},
			CacheClass: CacheShort, InvalidationClass: InvalidateNone},
		{Name: "media.get", Method: MethodGET, PathTemplate: "/wp-json/wp/v2/media/{id}",
			Params: []Param{{"id", ParamPath, true}},
			CacheClass: CacheMedium, InvalidationClass: InvalidateNone},
		{Name: "media.upload", Method: MethodPOST, PathTemplate: "/wp-json/wp/v2/media",
			Params: []Param{{"file", ParamBody, true}, {"title", ParamBody, false}},
			CacheClass: CacheNone, InvalidationClass: InvalidateMedia},
		{Name: "media.delete", Method: MethodDELETE, PathTemplate: "/wp-json/wp/v2/media/{id}",
			Params: []Param{{"id", ParamPath, true}, {"force", ParamQuery, false}},
			CacheClass: CacheNone, InvalidationClass: InvalidateMedia},

		// Users
		{Name: "users.list", Method: MethodGET, PathTemplate: "/wp-json/wp/v2/users",
			Params: []Param{{"search", ParamQuery, false}, {"roles", ParamQuery, false}},
			CacheClass: CacheLong, InvalidationClass: InvalidateNone},
		{Name: "users.get", Method: MethodGET, PathTemplate: "/wp-json/wp/v2/users/{id}",
			Params: []Param{{"id", ParamPath, true}},
			CacheClass: CacheLong, InvalidationClass: InvalidateNone},
		{Name: "users.me", Method: MethodGET, PathTemplate: "/wp-json/wp/v2/users/me",
			CacheClass: CacheShort, InvalidationClass: InvalidateNone},
		{Name: "users.update", Method: MethodPOST, PathTemplate: "/wp-json/wp/v2/users/{id}",
			Params: []Param{{"id", ParamPath, true}, {"email", ParamBody, false}, {"roles", ParamBody, false}},
			CacheClass: CacheNone, InvalidationClass: InvalidateUsers},

		// Application passwords (self-service credential rotation)
		{Name: "app_passwords.list", Method: MethodGET, PathTemplate: "/wp-json/wp/v2/users/{user_id}/application-passwords",
			Params: []Param{{"user_id", ParamPath, true}},
			CacheClass: CacheShort, InvalidationClass: InvalidateNone},
		{Name: "app_passwords.create", Method: MethodPOST, PathTemplate: "/wp-json/wp/v2/users/{user_id}/application-passwords",
			Params: []Param{{"user_id", ParamPath, true}, {"name", ParamBody, true}},
			CacheClass: CacheNone, InvalidationClass: InvalidateAppPass},
		{Name: "app_passwords.delete", Method: MethodDELETE, PathTemplate: "/wp-json/wp/v2/users/{user_id}/application-passwords/{uuid}",
			Params: []Param{{"user_id", ParamPath, true}, {"uuid", ParamPath, true}},
			CacheClass: CacheNone, InvalidationClass: InvalidateAppPass},

		// Comments
		{Name: "comments.list", Method: MethodGET, PathTemplate: "/wp-json/wp/v2/comments",
			Params: []Param{{"post", ParamQuery, false}, {"status", ParamQuery, false}},
			CacheClass: CacheShort, InvalidationClass: InvalidateNone},
		{Name: "comments.create", Method: MethodPOST, PathTemplate: "/wp-json/wp/v2/comments",
			Params: []Param{{"post", ParamBody, true}, {"content", ParamBody, true}},
			CacheClass: CacheNone, InvalidationClass: InvalidateComments},
		{Name: "comments.update", Method: MethodPOST, PathTemplate: "/wp-json/wp/v2/comments/{id}",
			Params: []Param{{"id", ParamPath, true}, {"status", ParamBody, false}},
			CacheClass: CacheNone, InvalidationClass: InvalidateComments},
		{Name: "comments.delete", Method: MethodDELETE, PathTemplate: "/wp-json/wp/v2/comments/{id}",
			Params: []Param{{"id", ParamPath, true}, {"force", ParamQuery, false}},
			CacheClass: CacheNone, InvalidationClass: InvalidateComments},

		// Taxonomies (categories, tags)
		{Name: "categories.list", Method: MethodGET, PathTemplate: "/wp-json/wp/v2/categories",
			Params: []Param{{"search", ParamQuery, false}},
			CacheClass: CacheLong, InvalidationClass: InvalidateNone},
		{Name: "categories.create", Method: MethodPOST, PathTemplate: "/wp-json/wp/v2/categories",
			Params: []Param{{"name", ParamBody, true}},
			CacheClass: CacheNone, InvalidationClass: InvalidateTaxonomy},
		{Name: "tags.list", Method: MethodGET, PathTemplate: "/wp-json/wp/v2/tags",
			Params: []Param{{"search", ParamQuery, false}},
			CacheClass: CacheLong, InvalidationClass: InvalidateNone},
		{Name: "tags.create", Method: MethodPOST, PathTemplate: "/wp-json/wp/v2/tags",
			Params: []Param{{"name", ParamBody, true}},
			CacheClass: CacheNone, InvalidationClass: InvalidateTaxonomy},

		// Site settings
		{Name: "settings.get", Method: MethodGET, PathTemplate: "/wp-json/wp/v2/settings",
			CacheClass: CacheStatic, InvalidationClass: InvalidateNone},
		{Name: "settings.update", Method: MethodPOST, PathTemplate: "/wp-json/wp/v2/settings",
			Params: []Param{{"title", ParamBody, false}, {"description", ParamBody, false}},
			CacheClass: CacheNone, InvalidationClass: InvalidateSettings},

		// Search
		{Name: "search", Method: MethodGET, PathTemplate: "/wp-json/wp/v2/search",
			Params: []Param{{"search", ParamQuery, true}, {"type", ParamQuery, false}, {"subtype", ParamQuery, false}},
			CacheClass: CacheShort, InvalidationClass: InvalidateNone},

		// SEO (Yoast-compatible plugin surface; degrades gracefully if absent)
		{Name: "seo.get_meta", Method: MethodGET, PathTemplate: "/wp-json/yoast/v1/get_head",
			Params: []Param{{"url", ParamQuery, true}},
			CacheClass: CacheMedium, InvalidationClass: InvalidateNone, RequiresSEOPlugin: true},
		{Name: "seo.update_meta", Method: MethodPOST, PathTemplate: "/wp-json/wp/v2/posts/{id}",
			Params: []Param{{"id", ParamPath, true}, {"yoast_head_json", ParamBody, true}},
			CacheClass: CacheNone, InvalidationClass: InvalidateSEO, RequiresSEOPlugin: true},

		// Auth endpoints consulted directly by the Auth Manager, listed
		// here so the vocabulary documents the whole outbound surface.
		{Name: "auth.jwt_login", Method: MethodPOST, PathTemplate: "/wp-json/jwt-auth/v1/token",
			Params: []Param{{"username", ParamBody, true}, {"password", ParamBody, true}},
			CacheClass: CacheNone, InvalidationClass: InvalidateNone},
		{Name: "auth.oauth_token", Method: MethodPOST, PathTemplate: "/oauth/token",
			CacheClass: CacheNone, InvalidationClass: InvalidateNone},
	}

	table := make(map[string]Operation, len(ops))
	for _, op := range ops {
		op.Idempotent = op.Method == MethodGET || op.Method == MethodDELETE
		table[op.Name] = op
	}
	return table
}

// Lookup returns the named operation, or false if no such operation
// exists in the vocabulary.
func Lookup(name string) (Operation, bool) {
	op, ok := Vocabulary[name]
	return op, ok
}

// All returns every operation meant to be exposed as an MCP tool, sorted
// by name. The "auth."-prefixed entries are excluded: they document
// endpoints the Auth Manager calls directly and are never dispatched
// through Router.Execute.
func All() []Operation {
	ops := make([]Operation, 0, len(Vocabulary))
	for _, op := range Vocabulary {
		if strings.HasPrefix(op.Name, "auth.") {
			continue
		}
		ops = append(ops, op)
	}
	sort.Slice(ops, func(i, j int) bool { return ops[i].Name < ops[j].Name })
	return ops
}
