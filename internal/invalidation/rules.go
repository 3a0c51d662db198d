// Package invalidation implements the Invalidation Engine: a static
// rule table that, given the InvalidationClass of a just-completed
// mutation, deletes every cache key the mutation could have staled,
// then cascades into related classes up to a bounded depth.
package invalidation

import "github.com/docdyhr/mcp-wordpress/internal/operations"

// rule describes what one InvalidationClass deletes and what further
// classes it cascades into.
type rule struct {
	// patternTemplates are regex templates with a "{site}" placeholder
	// substituted with the regex-escaped site ID before compilation.
	patternTemplates []string
	cascadesTo       []operations.InvalidationClass
}

// ruleTable is the static, immutable invalidation rule table.
var ruleTable = map[operations.InvalidationClass]rule{
	operations.InvalidatePosts: {
		patternTemplates: []string{
			`^site:{site}\|op:posts\.`,
			`^site:{site}\|op:search\|`,
		},
	},
	operations.InvalidatePages: {
		patternTemplates: []string{
			`^site:{site}\|op:pages\.`,
			`^site:{site}\|op:search\|`,
		},
	},
	operations.InvalidateMedia: {
		patternTemplates: []string{
			`^site:{site}\|op:media\.`,
		},
		// a post or page listing may embed featured-media data
		cascadesTo: []operations.InvalidationClass{operations.InvalidatePosts, operations.InvalidatePages},
	},
	operations.InvalidateUsers: {
		patternTemplates: []string{
			`^site:{site}\|op:users\.`,
		},
	},
	operations.InvalidateComments: {
		patternTemplates: []string{
			`^site:{site}\|op:comments\.`,
		},
		// a post's comment count/embed can shift
		cascadesTo: []operations.InvalidationClass{operations.InvalidatePosts},
	},
	operations.InvalidateTaxonomy: {
		patternTemplates: []string{
			`^site:{site}\|op:categories\.`,
			`^site:{site}\|op:tags\.`,
		},
		cascadesTo: []operations.InvalidationClass{operations.InvalidatePosts, operations.InvalidatePages},
	},
	operations.InvalidateSettings: {
		patternTemplates: []string{
			`^site:{site}\|op:settings\.`,
		},
	},
	operations.InvalidateAppPass: {
		patternTemplates: []string{
			`^site:{site}\|op:app_passwords\.`,
		},
	},
	operations.InvalidateSEO: {
		patternTemplates: []string{
			`^site:{site}\|op:seo\.`,
		},
		cascadesTo: []operations.InvalidationClass{operations.InvalidatePosts},
	},
}
