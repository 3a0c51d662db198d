package wpclient

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/docdyhr/mcp-wordpress/internal/operations"
	wperrors "github.com/docdyhr/mcp-wordpress/pkg/errors"
)

// renderPath substitutes every "{name}" placeholder in the operation's
// path template with the bound path param of the same name, and
// returns the remaining (non-path) params split into query and body
// buckets according to the operation's declared param kinds.
func renderPath(op operations.Operation, params map[string]interface{}) (path string, query url.Values, body map[string]interface{}, err error) {
	path = op.PathTemplate
	query = url.Values{}
	body = make(map[string]interface{})

	bound := make(map[string]bool, len(op.Params))
	for _, p := range op.Params {
		v, present := params[p.Name]
		if !present {
			if p.Required {
				return "", nil, nil, wperrors.New(wperrors.KindParamInvalid, "missing required parameter "+p.Name)
			}
			continue
		}
		bound[p.Name] = true

		switch p.Kind {
		case operations.ParamPath:
			placeholder := "{" + p.Name + "}"
			if !strings.Contains(path, placeholder) {
				return "", nil, nil, wperrors.New(wperrors.KindParamInvalid, "path param "+p.Name+" has no placeholder in template")
			}
			path = strings.ReplaceAll(path, placeholder, fmt.Sprintf("%v", v))
		case operations.ParamQuery:
			query.Set(p.Name, fmt.Sprintf("%v", v))
		case operations.ParamBody:
			body[p.Name] = v
		}
	}

	if strings.Contains(path, "{") {
		return "", nil, nil, wperrors.New(wperrors.KindParamInvalid, "unresolved path placeholder in "+path)
	}

	for name := range params {
		if !bound[name] {
			return "", nil, nil, wperrors.New(wperrors.KindParamInvalid, "unknown parameter "+name+" for operation "+op.Name)
		}
	}

	return path, query, body, nil
}
