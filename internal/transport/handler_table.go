package transport

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/saborverde/opsboard/model"
)

func handleListEntities(d *Dashboard) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]any{
			"entities": d.Entities(),
		})
	}
}

func handleGetTable(d *Dashboard) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		desc, err := d.Table(chi.URLParam(r, "entity"))
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, desc)
	}
}

func handleGetTableData(d *Dashboard) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entityName := chi.URLParam(r, "entity")

		// The page query parameter is 1-based; controllers are 0-based.
		params := model.DataParams{
			PageIndex: queryInt(r, "page", 1) - 1,
			PageSize:  queryInt(r, "page_size", 0),
			SortBy:    r.URL.Query().Get("sort"),
			SortDir:   r.URL.Query().Get("sort_dir"),
			Filters:   queryMap(r, "filter"),
		}
		if params.PageIndex < 0 {
			params.PageIndex = 0
		}

		data, err := d.Data(r.Context(), entityName, params)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, data)
	}
}

// queryInt extracts an integer query param with a default.
func queryInt(r *http.Request, key string, def int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

// queryMap extracts all query params with a given prefix as a map.
// e.g., filter[city]=Blumenau → {"city": "Blumenau"}
func queryMap(r *http.Request, prefix string) map[string]string {
	result := make(map[string]string)
	for key, values := range r.URL.Query() {
		if len(key) > len(prefix)+2 && key[:len(prefix)+1] == prefix+"[" && key[len(key)-1] == ']' {
			field := key[len(prefix)+1 : len(key)-1]
			if len(values) > 0 {
				result[field] = values[0]
			}
		}
	}
	return result
}
