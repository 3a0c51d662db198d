// Package wpcache implements the Cache Store (a TTL+LRU map with
// pattern-based bulk eviction) and the HTTP Cache Wrapper layered on
// top of it (key derivation, single-flight dedup, ETag/Last-Modified
// validators, and negative caching of 404s).
package wpcache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
)

// Key derives the deterministic cache key for one operation call:
// "site:{siteID}|op:{opName}|p:{sortedParamHash}". Key order in params
// never affects the derived key — params are sorted by name before
// hashing.
func Key(siteID, opName string, params map[string]interface{}) string {
	return fmt.Sprintf("site:%s|op:%s|p:%s", siteID, opName, paramHash(params))
}

func paramHash(params map[string]interface{}) string {
	if len(params) == 0 {
		return "-"
	}
	names := make([]string, 0, len(params))
	for k := range params {
		names = append(names, k)
	}
	sort.Strings(names)

	ordered := make([]interface{}, 0, len(names)*2)
	for _, name := range names {
		ordered = append(ordered, name, params[name])
	}

	// json.Marshal of a slice preserves insertion order, giving a
	// deterministic byte stream regardless of the input map's
	// iteration order.
	b, err := json.Marshal(ordered)
	if err != nil {
		// Parameters must be JSON-marshalable by construction (they
		// come from the operation vocabulary's bound param values);
		// fall back to a stable-but-degenerate hash rather than panic.
		b = []byte(fmt.Sprintf("%v", ordered))
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])[:16]
}
