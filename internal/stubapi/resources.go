package stubapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	goHMS "github.com/MrEthical07/goHMS"
	"github.com/MrEthical07/goHMS/permission"
)

const maxLimit = 100

// resourceDef describes how one collection is stored and owned.
type resourceDef[T any, In any] struct {
	name string
	// build creates or replaces a row from input. prev is nil on create.
	build func(id string, in In, now time.Time, prev *T) T
	// owner returns the user id that owns a row, for "own" scoped grants.
	owner func(T) string
	// defaults fills optional input fields before validation.
	defaults func(*In)
}

func mount[T any, In any](s *Server, g *echo.Group, def resourceDef[T, In], rows *table[T]) {
	h := &collectionHandler[T, In]{s: s, def: def, rows: rows}

	grp := g.Group("/"+def.name, s.guard)
	grp.GET("", h.list)
	grp.GET("/:id", h.get)
	grp.POST("", h.create)
	grp.PATCH("/:id", h.update)
	grp.DELETE("/:id", h.delete)
}

type collectionHandler[T any, In any] struct {
	s    *Server
	def  resourceDef[T, In]
	rows *table[T]
}

func (h *collectionHandler[T, In]) list(c echo.Context) error {
	claims := claimsFrom(c)
	if !h.s.roles.Allowed(claims.Role, h.def.name, permission.ActionView) {
		return forbidden()
	}
	scope, _ := h.s.roles.ScopeOf(claims.Role, h.def.name)

	q := c.QueryParams()
	page := positive(q.Get("page"), 1)
	limit := min(positive(q.Get("limit"), 20), maxLimit)
	search := strings.ToLower(strings.TrimSpace(q.Get("search")))

	var matched []T
	for _, row := range h.rows.all() {
		if scope == permission.ScopeOwn && h.ownerOf(row) != claims.UID {
			continue
		}
		fields := asMap(row)
		if search != "" && !containsText(fields, search) {
			continue
		}
		if !matchesFilters(fields, q) {
			continue
		}
		matched = append(matched, row)
	}

	total := len(matched)
	start := min((page-1)*limit, total)
	end := min(start+limit, total)

	return ok(c, http.StatusOK, goHMS.Page[T]{
		Items:      append([]T{}, matched[start:end]...),
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: (total + limit - 1) / limit,
	})
}

func (h *collectionHandler[T, In]) get(c echo.Context) error {
	row, err := h.load(c, permission.ActionView)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, row)
}

func (h *collectionHandler[T, In]) create(c echo.Context) error {
	claims := claimsFrom(c)
	if !h.s.roles.Allowed(claims.Role, h.def.name, permission.ActionCreate) {
		return forbidden()
	}

	in, err := h.bind(c)
	if err != nil {
		return err
	}

	id := uuid.NewString()
	row := h.def.build(id, in, time.Now().UTC(), nil)
	h.rows.put(id, row)
	return ok(c, http.StatusCreated, row)
}

func (h *collectionHandler[T, In]) update(c echo.Context) error {
	prev, err := h.load(c, permission.ActionUpdate)
	if err != nil {
		return err
	}

	in, err := h.bind(c)
	if err != nil {
		return err
	}

	id := c.Param("id")
	row := h.def.build(id, in, time.Now().UTC(), &prev)
	h.rows.put(id, row)
	return ok(c, http.StatusOK, row)
}

func (h *collectionHandler[T, In]) delete(c echo.Context) error {
	if _, err := h.load(c, permission.ActionDelete); err != nil {
		return err
	}
	h.rows.remove(c.Param("id"))
	return ok(c, http.StatusOK, map[string]string{"id": c.Param("id")})
}

// load fetches the row named by :id and checks action on it.
func (h *collectionHandler[T, In]) load(c echo.Context, action string) (T, error) {
	claims := claimsFrom(c)
	if !h.s.roles.Allowed(claims.Role, h.def.name, action) {
		var zero T
		return zero, forbidden()
	}

	row, found := h.rows.get(c.Param("id"))
	if !found {
		var zero T
		return zero, echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("%s not found", strings.TrimSuffix(h.def.name, "s")))
	}
	if !h.s.roles.CanAccess(claims.Role, h.def.name, action, claims.UID, h.ownerOf(row)) {
		var zero T
		return zero, forbidden()
	}
	return row, nil
}

func (h *collectionHandler[T, In]) bind(c echo.Context) (In, error) {
	var in In
	if err := json.NewDecoder(c.Request().Body).Decode(&in); err != nil {
		return in, echo.NewHTTPError(http.StatusBadRequest, "malformed body")
	}
	if h.def.defaults != nil {
		h.def.defaults(&in)
	}
	if err := h.s.validator.Struct(&in); err != nil {
		return in, err
	}
	return in, nil
}

func (h *collectionHandler[T, In]) ownerOf(row T) string {
	if h.def.owner == nil {
		return ""
	}
	return h.def.owner(row)
}

func forbidden() error {
	return echo.NewHTTPError(http.StatusForbidden, "You do not have permission to perform this action")
}

func positive(raw string, def int) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

// asMap views a row through its JSON field names.
func asMap(v any) map[string]any {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var out map[string]any
	_ = json.Unmarshal(data, &out)
	return out
}

func containsText(fields map[string]any, needle string) bool {
	for _, v := range fields {
		if s, isString := v.(string); isString && strings.Contains(strings.ToLower(s), needle) {
			return true
		}
	}
	return false
}

// matchesFilters treats every query key except page, limit and search as an
// equality filter. Repeated keys match any of their values.
func matchesFilters(fields map[string]any, q map[string][]string) bool {
	for key, want := range q {
		switch key {
		case "page", "limit", "search":
			continue
		}
		got, present := fields[key]
		if !present {
			return false
		}
		text := fmt.Sprint(got)
		hit := false
		for _, w := range want {
			if w == text {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}
	return true
}
