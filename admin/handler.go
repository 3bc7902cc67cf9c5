package admin

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/caasmo/banlog"
	"github.com/caasmo/banlog/addr"
	"github.com/caasmo/banlog/index"
	"github.com/julienschmidt/httprouter"
)

// maxBody bounds request bodies; they only carry a name or a path.
const maxBody = 4096

type handler struct {
	bans   Bans
	logger *slog.Logger
}

// NewHandler routes the admin API to bans:
//
//	GET    /status
//	GET    /bans
//	GET    /bans/:subnet
//	PUT    /bans/:subnet   {"name": "..."}
//	DELETE /bans/:subnet
//	POST   /dump
//	POST   /import         {"path": "..."}
//	POST   /save
func NewHandler(bans Bans, logger *slog.Logger) http.Handler {
	h := &handler{bans: bans, logger: logger}
	r := httprouter.New()
	r.GET("/status", h.status)
	r.GET("/bans", h.list)
	r.GET("/bans/:subnet", h.get)
	r.PUT("/bans/:subnet", h.add)
	r.DELETE("/bans/:subnet", h.remove)
	r.POST("/dump", h.dump)
	r.POST("/import", h.importFile)
	r.POST("/save", h.save)
	return r
}

func (h *handler) status(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	data := statusData{Available: h.bans.Available()}
	if data.Available {
		data.Entries = len(h.bans.Entries())
	}
	writeJsonOk(w, http.StatusOK, data)
}

func (h *handler) list(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if !h.bans.Available() {
		writeJsonError(w, banlog.ErrUnavailable, nil)
		return
	}
	entries := h.bans.Entries()
	out := make([]jsonEntry, len(entries))
	for i, e := range entries {
		out[i] = toJsonEntry(e)
	}
	writeJsonOk(w, http.StatusOK, out)
}

func (h *handler) get(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	k, ok := h.subnet(w, ps)
	if !ok {
		return
	}
	if !h.bans.Available() {
		writeJsonError(w, banlog.ErrUnavailable, nil)
		return
	}
	e, found := h.bans.Get(k)
	if !found {
		writeJsonError(w, fmt.Errorf("%w: %s", index.ErrNotFound, k), nil)
		return
	}
	writeJsonOk(w, http.StatusOK, toJsonEntry(e))
}

func (h *handler) add(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	k, ok := h.subnet(w, ps)
	if !ok {
		return
	}
	var req addRequest
	if !h.decode(w, r, &req) {
		return
	}
	e, err := h.bans.Add(k, req.Name)
	if err != nil {
		writeJsonError(w, err, nil)
		return
	}
	writeJsonOk(w, http.StatusCreated, toJsonEntry(e))
}

func (h *handler) remove(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	k, ok := h.subnet(w, ps)
	if !ok {
		return
	}
	e, err := h.bans.Remove(k)
	if err != nil {
		writeJsonError(w, err, nil)
		return
	}
	writeJsonOk(w, http.StatusOK, toJsonEntry(e))
}

func (h *handler) dump(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if err := h.bans.Dump(); err != nil {
		writeJsonError(w, err, nil)
		return
	}
	writeJsonOk(w, http.StatusOK, nil)
}

func (h *handler) importFile(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req importRequest
	if !h.decode(w, r, &req) {
		return
	}
	n, err := h.bans.Import(req.Path)
	if err != nil {
		writeJsonError(w, err, importData{Merged: n})
		return
	}
	h.logger.Info("Imported over admin socket", "path", req.Path, "merged", n)
	writeJsonOk(w, http.StatusOK, importData{Merged: n})
}

func (h *handler) save(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if err := h.bans.Save(); err != nil {
		writeJsonError(w, err, nil)
		return
	}
	writeJsonOk(w, http.StatusOK, nil)
}

func (h *handler) subnet(w http.ResponseWriter, ps httprouter.Params) (addr.Key, bool) {
	k, err := addr.Parse(ps.ByName("subnet"))
	if err != nil {
		writeJsonError(w, err, nil)
		return 0, false
	}
	return k, true
}

func (h *handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(v); err != nil {
		writeJson(w, http.StatusBadRequest, CodeErrorInvalidInput, "invalid request body: "+err.Error(), nil)
		return false
	}
	return true
}
