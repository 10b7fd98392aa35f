package remote

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mark3labs/mcp-go/server"

	"github.com/aretw0/jotter/pkg/core"
)

// Handler serves Control over HTTP with JSON bodies. Notes are addressed by
// their id, the last segment of the note URI.
type Handler struct {
	control *Control
	mcp     *server.MCPServer
}

// NewHandler creates the HTTP transport. A nil mcpServer leaves /mcp
// unmounted.
func NewHandler(c *Control, mcpServer *server.MCPServer) *Handler {
	return &Handler{control: c, mcp: mcpServer}
}

// Routes returns the router.
func (h *Handler) Routes() *chi.Mux {
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)

	router.Route("/api", func(r chi.Router) {
		r.Get("/version", h.version)
		r.Get("/events", h.events)

		r.Get("/notes", h.listNotes)
		r.Post("/notes", h.createNote)
		r.Get("/notes/find", h.findNote)
		r.Get("/notes/start", h.findStartNote)

		r.Route("/notes/{id}", func(r chi.Router) {
			r.Get("/", h.getNote)
			r.Delete("/", h.deleteNote)
			r.Get("/contents", h.getContents)
			r.Put("/contents", h.setContents)
			r.Get("/xml", h.getContentsXML)
			r.Put("/xml", h.setContentsXML)
			r.Get("/complete", h.getCompleteXML)
			r.Put("/complete", h.setCompleteXML)
			r.Get("/tags", h.getTags)
			r.Post("/tags", h.addTag)
			r.Delete("/tags/{tag}", h.removeTag)
			r.Post("/display", h.displayNote)
			r.Post("/hide", h.hideNote)
		})

		r.Get("/tags/{tag}/notes", h.notesWithTag)
		r.Get("/search", h.searchNotes)
		r.Post("/search/display", h.displaySearch)
	})

	if h.mcp != nil {
		mcpHTTP := server.NewStreamableHTTPServer(h.mcp)
		router.Handle("/mcp", mcpHTTP)
	}

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	})
	return router
}

// NoteInfo is the summary returned for a single note.
type NoteInfo struct {
	URI                string   `json:"uri"`
	Title              string   `json:"title"`
	CreateDate         int64    `json:"create_date"`
	MetadataChangeDate int64    `json:"metadata_change_date"`
	Tags               []string `json:"tags"`
}

type createRequest struct {
	Title string `json:"title"`
}

type bodyRequest struct {
	Text string `json:"text"`
}

type tagRequest struct {
	Tag string `json:"tag"`
}

type searchRequest struct {
	Text string `json:"text"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}

func noteURI(r *http.Request) string {
	return core.URIScheme + chi.URLParam(r, "id")
}

// found writes 404 unless ok.
func found(w http.ResponseWriter, ok bool) bool {
	if !ok {
		writeError(w, http.StatusNotFound, core.ErrNoteNotFound.Error())
	}
	return ok
}

func (h *Handler) version(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.Write([]byte(h.control.Version()))
}

func (h *Handler) listNotes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.control.ListAllNotes())
}

func (h *Handler) createNote(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if r.ContentLength != 0 && !decode(w, r, &req) {
		return
	}

	var uri string
	if req.Title == "" {
		uri = h.control.CreateNote()
	} else {
		uri = h.control.CreateNamedNote(req.Title)
	}
	if uri == "" {
		writeError(w, http.StatusConflict, "note could not be created")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"uri": uri})
}

func (h *Handler) findNote(w http.ResponseWriter, r *http.Request) {
	uri := h.control.FindNote(r.URL.Query().Get("title"))
	if !found(w, uri != "") {
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"uri": uri})
}

func (h *Handler) findStartNote(w http.ResponseWriter, r *http.Request) {
	uri := h.control.FindStartHereNote()
	if !found(w, uri != "") {
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"uri": uri})
}

func (h *Handler) getNote(w http.ResponseWriter, r *http.Request) {
	uri := noteURI(r)
	if !found(w, h.control.NoteExists(uri)) {
		return
	}
	writeJSON(w, http.StatusOK, NoteInfo{
		URI:                uri,
		Title:              h.control.GetNoteTitle(uri),
		CreateDate:         h.control.GetNoteCreateDate(uri),
		MetadataChangeDate: h.control.GetNoteChangeDate(uri),
		Tags:               h.control.GetTagsForNote(uri),
	})
}

func (h *Handler) deleteNote(w http.ResponseWriter, r *http.Request) {
	if !found(w, h.control.DeleteNote(r.Context(), noteURI(r))) {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) getContents(w http.ResponseWriter, r *http.Request) {
	uri := noteURI(r)
	if !found(w, h.control.NoteExists(uri)) {
		return
	}
	writeJSON(w, http.StatusOK, bodyRequest{Text: h.control.GetNoteContents(uri)})
}

func (h *Handler) getContentsXML(w http.ResponseWriter, r *http.Request) {
	uri := noteURI(r)
	if !found(w, h.control.NoteExists(uri)) {
		return
	}
	writeJSON(w, http.StatusOK, bodyRequest{Text: h.control.GetNoteContentsXml(uri)})
}

func (h *Handler) getCompleteXML(w http.ResponseWriter, r *http.Request) {
	uri := noteURI(r)
	if !found(w, h.control.NoteExists(uri)) {
		return
	}
	w.Header().Set("Content-Type", "application/xml")
	w.Write([]byte(h.control.GetNoteCompleteXml(uri)))
}

// setter runs one of the Set* operations, telling a missing note apart
// from rejected input.
func (h *Handler) setter(set func(uri, text string) bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req bodyRequest
		if !decode(w, r, &req) {
			return
		}
		uri := noteURI(r)
		if !found(w, h.control.NoteExists(uri)) {
			return
		}
		if !set(uri, req.Text) {
			writeError(w, http.StatusUnprocessableEntity, "note content rejected")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *Handler) setContents(w http.ResponseWriter, r *http.Request) {
	h.setter(h.control.SetNoteContents)(w, r)
}

func (h *Handler) setContentsXML(w http.ResponseWriter, r *http.Request) {
	h.setter(h.control.SetNoteContentsXml)(w, r)
}

func (h *Handler) setCompleteXML(w http.ResponseWriter, r *http.Request) {
	h.setter(h.control.SetNoteCompleteXml)(w, r)
}

func (h *Handler) getTags(w http.ResponseWriter, r *http.Request) {
	uri := noteURI(r)
	if !found(w, h.control.NoteExists(uri)) {
		return
	}
	writeJSON(w, http.StatusOK, h.control.GetTagsForNote(uri))
}

func (h *Handler) addTag(w http.ResponseWriter, r *http.Request) {
	var req tagRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Tag == "" {
		writeError(w, http.StatusBadRequest, "tag is required")
		return
	}
	if !found(w, h.control.AddTagToNote(noteURI(r), req.Tag)) {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) removeTag(w http.ResponseWriter, r *http.Request) {
	if !found(w, h.control.RemoveTagFromNote(noteURI(r), chi.URLParam(r, "tag"))) {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) displayNote(w http.ResponseWriter, r *http.Request) {
	if !found(w, h.control.DisplayNoteWithSearch(noteURI(r), r.URL.Query().Get("search"))) {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) hideNote(w http.ResponseWriter, r *http.Request) {
	if !found(w, h.control.HideNote(noteURI(r))) {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) notesWithTag(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.control.GetAllNotesWithTag(chi.URLParam(r, "tag")))
}

func (h *Handler) searchNotes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	caseSensitive, _ := strconv.ParseBool(q.Get("case_sensitive"))
	writeJSON(w, http.StatusOK, h.control.SearchNotes(q.Get("q"), caseSensitive))
}

func (h *Handler) displaySearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if r.ContentLength != 0 && !decode(w, r, &req) {
		return
	}
	h.control.DisplaySearchWithText(req.Text)
	w.WriteHeader(http.StatusNoContent)
}

// events streams signals as server-sent events until the client leaves.
func (h *Handler) events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for s := range h.control.Signals(r.Context(), 0) {
		data, err := json.Marshal(s)
		if err != nil {
			continue
		}
		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", s.Kind, data); err != nil {
			return
		}
		flusher.Flush()
	}
}
