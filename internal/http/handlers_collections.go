package http

import (
	"net/http"
	"strconv"

	"mahal/internal/core"
	"mahal/internal/log"
)

func (s *Server) handleRecordCollection(w http.ResponseWriter, r *http.Request) {
	p, ok := parseBody(w, r)
	if !ok {
		return
	}
	in, err := collectionFromBody(p)
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	created, err := s.collections.Record(r.Context(), in)
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}

	bucket := s.reports.Normalizer().Normalize(created.Category)
	log.NewStructuredLogger(log.FromContext(r.Context())).LogCollectionRecorded(r.Context(),
		created.ID, created.ReceiptNumber, created.Amount.Cents, created.Category, string(bucket))

	NewJSONResponse().Status(http.StatusCreated).
		Header("Location", "/api/collections/"+strconv.FormatInt(created.ID, 10)).
		JSON(created).Write(w)
}

func (s *Server) handleListCollections(w http.ResponseWriter, r *http.Request) {
	list, err := s.collections.List(r.Context())
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	if list == nil {
		list = []core.FundCollection{}
	}
	NewJSONResponse().JSON(list).Write(w)
}

func (s *Server) handleGetCollection(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	c, err := s.collections.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	NewJSONResponse().JSON(c).Write(w)
}

func (s *Server) handleUpdateCollection(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	p, ok := parseBody(w, r)
	if !ok {
		return
	}
	in, err := collectionFromBody(p)
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	updated, err := s.collections.Update(r.Context(), id, in)
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	NewJSONResponse().JSON(updated).Write(w)
}

func (s *Server) handleDeleteCollection(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, log.OpDelete, err)
		return
	}
	if err := s.collections.Delete(r.Context(), id); err != nil {
		writeError(w, r, log.OpDelete, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}
