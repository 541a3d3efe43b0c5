package job

import (
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

var placeholderPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// InterpolateParams resolves ${dotted.path} placeholders in the parameter
// template against ctx. A value that is exactly one placeholder keeps the
// resolved value's type; placeholders embedded in longer strings are
// substituted textually. Unresolved placeholders stay verbatim and log a
// warning rather than failing the step.
func InterpolateParams(params map[string]interface{}, ctx map[string]interface{}, log *zap.Logger) map[string]interface{} {
	resolved := make(map[string]interface{}, len(params))
	for key, value := range params {
		resolved[key] = interpolateValue(value, ctx, log)
	}
	return resolved
}

func interpolateValue(value interface{}, ctx map[string]interface{}, log *zap.Logger) interface{} {
	switch v := value.(type) {
	case string:
		return interpolateString(v, ctx, log)
	case map[string]interface{}:
		return InterpolateParams(v, ctx, log)
	case []interface{}:
		result := make([]interface{}, len(v))
		for i, item := range v {
			result[i] = interpolateValue(item, ctx, log)
		}
		return result
	default:
		return value
	}
}

func interpolateString(s string, ctx map[string]interface{}, log *zap.Logger) interface{} {
	// Whole-string placeholder keeps the looked-up type.
	if matches := placeholderPattern.FindStringSubmatch(s); matches != nil && matches[0] == s {
		path := strings.TrimSpace(matches[1])
		if resolved, found := lookupPath(ctx, path); found {
			return resolved
		}
		log.Warn("template variable not found", zap.String("path", path))
		return s
	}

	return placeholderPattern.ReplaceAllStringFunc(s, func(match string) string {
		path := strings.TrimSpace(match[2 : len(match)-1])
		resolved, found := lookupPath(ctx, path)
		if !found {
			log.Warn("template variable not found", zap.String("path", path))
			return match
		}
		return fmt.Sprint(resolved)
	})
}
