package invalidation

import (
	"regexp"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/docdyhr/mcp-wordpress/internal/operations"
	wperrors "github.com/docdyhr/mcp-wordpress/pkg/errors"
)

// maxCascadeDepth bounds how many rounds of cascading the engine will
// follow before stopping, preventing a rule-table cycle from looping
// forever.
const maxCascadeDepth = 3

// patternDeleter is satisfied by wpcache.Store, kept narrow here so
// this package does not import wpcache and create a cycle.
type patternDeleter interface {
	DeletePattern(pattern *regexp.Regexp) int
}

// Engine runs the static rule table against a Store, caching compiled
// regexes per (class, site) pair the way the pack's pattern-matcher
// caches compiled patterns.
type Engine struct {
	store      patternDeleter
	logger     *zap.Logger
	regexCache sync.Map // map[string]*regexp.Regexp
}

// NewEngine builds an Engine over store.
func NewEngine(store patternDeleter, logger *zap.Logger) *Engine {
	return &Engine{store: store, logger: logger}
}

// Invalidate runs class's rule (and any cascades) against siteID's
// cache entries, returning the total number of keys deleted.
func (e *Engine) Invalidate(siteID string, class operations.InvalidationClass) (int, error) {
	if class == operations.InvalidateNone {
		return 0, nil
	}

	visited := make(map[operations.InvalidationClass]bool)
	total, err := e.invalidateDepth(siteID, class, visited, 0)
	if err != nil {
		return total, err
	}
	return total, nil
}

func (e *Engine) invalidateDepth(siteID string, class operations.InvalidationClass, visited map[operations.InvalidationClass]bool, depth int) (int, error) {
	if depth >= maxCascadeDepth || visited[class] {
		return 0, nil
	}
	visited[class] = true

	r, ok := ruleTable[class]
	if !ok {
		return 0, wperrors.New(wperrors.KindInvalidationFailed, "no invalidation rule for class "+string(class))
	}

	total := 0
	for _, tmpl := range r.patternTemplates {
		pattern := strings.ReplaceAll(tmpl, "{site}", regexp.QuoteMeta(siteID))
		re, err := e.compiledPattern(pattern)
		if err != nil {
			return total, wperrors.Wrap(wperrors.KindInvalidationFailed, "compiling invalidation pattern", err)
		}
		n := e.store.DeletePattern(re)
		total += n
	}

	e.logger.Debug("cache invalidation", zap.String("site_id", siteID), zap.String("class", string(class)), zap.Int("deleted", total), zap.Int("depth", depth))

	for _, next := range r.cascadesTo {
		n, err := e.invalidateDepth(siteID, next, visited, depth+1)
		total += n
		if err != nil {
			return total, err
		}
	}

	return total, nil
}

func (e *Engine) compiledPattern(pattern string) (*regexp.Regexp, error) {
	if cached, ok := e.regexCache.Load(pattern); ok {
		return cached.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	e.regexCache.Store(pattern, re)
	return re, nil
}
