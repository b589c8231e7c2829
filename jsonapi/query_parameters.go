package jsonapi

import (
	"fmt"
	"strings"
)

// SortField is one member of the "sort" query parameter.
type SortField struct {
	Field      string
	Descending bool
}

// QueryParameters is the validated form of the query parameters of a read request.
type QueryParameters struct {
	IncludePaths    [][]string
	SparseFieldSets map[string][]string
	SortFields      []SortField
	Page            map[string]string
	Filter          map[string]any
	Unrecognised    map[string]any
}

// NormalizeQueryParameters folds raw URL query parameters into the validated-data shape:
// "fields[posts]=a,b" becomes {"fields": {"posts": "a,b"}}, plain keys stay as they are.
func NormalizeQueryParameters(raw map[string]string) map[string]any {
	normalized := make(map[string]any, len(raw))

	for key, value := range raw {
		open := strings.Index(key, "[")
		if open <= 0 || !strings.HasSuffix(key, "]") {
			normalized[key] = value
			continue
		}

		family := key[:open]
		member := key[open+1 : len(key)-1]

		nested, ok := normalized[family].(map[string]any)
		if !ok {
			nested = map[string]any{}
			normalized[family] = nested
		}

		nested[member] = value
	}

	return normalized
}

// ParseQueryParameters turns validated query data into a QueryParameters value.
func ParseQueryParameters(validated map[string]any) QueryParameters {
	params := QueryParameters{
		SparseFieldSets: map[string][]string{},
		Page:            map[string]string{},
		Filter:          map[string]any{},
		Unrecognised:    map[string]any{},
	}

	for key, value := range validated {
		switch key {
		case "include":
			for _, path := range splitList(value) {
				params.IncludePaths = append(params.IncludePaths, strings.Split(path, "."))
			}
		case "fields":
			for resourceType, fields := range asMap(value) {
				params.SparseFieldSets[resourceType] = splitList(fields)
			}
		case "sort":
			for _, field := range splitList(value) {
				if strings.HasPrefix(field, "-") {
					params.SortFields = append(params.SortFields, SortField{Field: field[1:], Descending: true})
					continue
				}

				params.SortFields = append(params.SortFields, SortField{Field: field})
			}
		case "page":
			for member, v := range asMap(value) {
				params.Page[member] = fmt.Sprint(v)
			}
		case "filter":
			params.Filter = asMap(value)
		default:
			params.Unrecognised[key] = value
		}
	}

	return params
}

// IncludesPath reports whether path was requested in the include parameter.
func (p QueryParameters) IncludesPath(path ...string) bool {
	for _, included := range p.IncludePaths {
		if strings.Join(included, ".") == strings.Join(path, ".") {
			return true
		}
	}

	return false
}

func splitList(value any) []string {
	var items []string

	switch v := value.(type) {
	case string:
		items = strings.Split(v, ",")
	case []string:
		items = v
	case []any:
		for _, item := range v {
			items = append(items, fmt.Sprint(item))
		}
	default:
		return nil
	}

	cleaned := make([]string, 0, len(items))
	for _, item := range items {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}

	return cleaned
}

func asMap(value any) map[string]any {
	switch v := value.(type) {
	case map[string]any:
		return v
	case map[string]string:
		converted := make(map[string]any, len(v))
		for k, s := range v {
			converted[k] = s
		}

		return converted
	default:
		return map[string]any{}
	}
}
