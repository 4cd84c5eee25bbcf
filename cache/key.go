package cache

import (
	"fmt"
	"net/url"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Kind separates list and detail entries of one resource.
type Kind string

const (
	KindList   Kind = "list"
	KindDetail Kind = "detail"
)

// Key identifies one cache entry. Params holds the canonical parameter encoding.
type Key struct {
	Resource string
	Kind     Kind
	Params   string
}

// ListKey builds the key for a filtered list of resource.
func ListKey(resource string, params map[string]any) Key {
	return Key{Resource: resource, Kind: KindList, Params: Canonical(params)}
}

// DetailKey builds the key for one record of resource.
func DetailKey(resource, id string) Key {
	return Key{Resource: resource, Kind: KindDetail, Params: url.QueryEscape(id)}
}

func (k Key) String() string {
	return k.Resource + "|" + string(k.Kind) + "|" + k.Params
}

// Canonical encodes params with sorted keys and normalized values. Empty values are
// dropped so that absent and zero-valued filters share a key.
func Canonical(params map[string]any) string {
	return Values(params).Encode()
}

// Values normalizes params into query values. url.Values.Encode sorts by key.
func Values(params map[string]any) url.Values {
	out := make(url.Values, len(params))
	for k, v := range params {
		vals := normalize(v)
		if len(vals) == 0 {
			continue
		}
		out[k] = vals
	}
	return out
}

func normalize(v any) []string {
	switch x := v.(type) {
	case nil:
		return nil
	case string:
		x = strings.TrimSpace(x)
		if x == "" {
			return nil
		}
		return []string{x}
	case bool:
		return []string{strconv.FormatBool(x)}
	case int:
		return []string{strconv.Itoa(x)}
	case int64:
		return []string{strconv.FormatInt(x, 10)}
	case float64:
		return []string{strconv.FormatFloat(x, 'f', -1, 64)}
	case time.Time:
		if x.IsZero() {
			return nil
		}
		return []string{x.UTC().Format(time.RFC3339)}
	case fmt.Stringer:
		return normalize(x.String())
	case []string:
		return normalizeSlice(reflect.ValueOf(x))
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer:
		if rv.IsNil() {
			return nil
		}
		return normalize(rv.Elem().Interface())
	case reflect.Slice, reflect.Array:
		return normalizeSlice(rv)
	case reflect.String:
		return normalize(rv.String())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return []string{strconv.FormatInt(rv.Int(), 10)}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return []string{strconv.FormatUint(rv.Uint(), 10)}
	case reflect.Float32:
		return []string{strconv.FormatFloat(rv.Float(), 'f', -1, 32)}
	}
	return normalize(fmt.Sprint(v))
}

// Multi-valued filters are sets; their order does not matter.
func normalizeSlice(rv reflect.Value) []string {
	var out []string
	for i := 0; i < rv.Len(); i++ {
		out = append(out, normalize(rv.Index(i).Interface())...)
	}
	sort.Strings(out)
	return out
}
