package transport

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/saborverde/opsboard/model"
)

// maxBodySize caps panel request bodies.
const maxBodySize = 1 << 20

func handleOpenPanel(d *Dashboard) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		desc, err := d.OpenPanel(r.Context(), chi.URLParam(r, "entity"), chi.URLParam(r, "rowId"))
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, desc)
	}
}

func handleGetPanel(d *Dashboard) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		desc, err := d.Panel(r.Context(), chi.URLParam(r, "entity"), chi.URLParam(r, "rowId"))
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, desc)
	}
}

func handleEditPanel(d *Dashboard) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Edits map[string]any `json:"edits"`
		}
		if err := decodeBody(r, &body); err != nil {
			WriteError(w, err)
			return
		}
		if len(body.Edits) == 0 {
			WriteError(w, model.NewBadRequestError("edits must not be empty"))
			return
		}

		desc, err := d.EditPanel(r.Context(), chi.URLParam(r, "entity"), chi.URLParam(r, "rowId"), body.Edits)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, desc)
	}
}

func handleSavePanel(d *Dashboard) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := d.SavePanel(r.Context(), chi.URLParam(r, "entity"), chi.URLParam(r, "rowId"))
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]string{"status": "saved"})
	}
}

func handleDeletePanel(d *Dashboard) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Confirmed bool `json:"confirmed"`
		}
		if err := decodeBody(r, &body); err != nil {
			WriteError(w, err)
			return
		}

		entityName := chi.URLParam(r, "entity")
		rowID := chi.URLParam(r, "rowId")

		if err := d.DeletePanel(r.Context(), entityName, rowID, body.Confirmed); err != nil {
			WriteError(w, err)
			return
		}
		if !body.Confirmed {
			WriteJSON(w, http.StatusAccepted, map[string]string{"status": "confirmation_required"})
			return
		}
		WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}

func handleClosePanel(d *Dashboard) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := d.ClosePanel(r.Context(), chi.URLParam(r, "entity"), chi.URLParam(r, "rowId"))
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]string{"status": "closed"})
	}
}

// decodeBody parses a JSON request body. An empty body decodes to the zero
// value so confirmationless deletes need no payload.
func decodeBody(r *http.Request, dst any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return model.NewBadRequestError("request body could not be read")
	}
	if len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return model.NewBadRequestError("request body is not valid JSON")
	}
	return nil
}
