package fakeapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/dmitrymomot/stocksync/pkg/tables"
)

type tableInput struct {
	Name   *string        `json:"name"`
	Schema map[string]any `json:"schema"`
}

func (s *Server) listTables(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	out := append([]tables.Table{}, s.tables...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createTable(w http.ResponseWriter, r *http.Request) {
	var in tableInput
	if !decode(w, r, &in) {
		return
	}
	name := ""
	if in.Name != nil {
		name = strings.TrimSpace(*in.Name)
	}
	if name == "" {
		writeDetail(w, http.StatusBadRequest, "table name is required")
		return
	}

	s.mu.Lock()
	if s.tableByNameLocked(name, uuid.Nil) {
		s.mu.Unlock()
		writeDetail(w, http.StatusBadRequest, "table name already exists")
		return
	}
	s.mu.Unlock()

	schema := in.Schema
	if schema == nil {
		schema = map[string]any{"fields": []any{}}
	}
	t := s.SeedTable(tables.Table{Name: name, Schema: schema})
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) updateTable(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var in tableInput
	if !decode(w, r, &in) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.tableIndexLocked(id)
	if i < 0 {
		writeDetail(w, http.StatusNotFound, "table not found")
		return
	}
	t := s.tables[i]
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if s.tableByNameLocked(name, id) {
			writeDetail(w, http.StatusBadRequest, "table name already exists")
			return
		}
		t.Name = name
	}
	if in.Schema != nil {
		t.Schema = in.Schema
	}
	t.UpdatedAt = s.now().UTC()
	s.tables[i] = t
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) deleteTable(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	purge, _ := strconv.ParseBool(r.URL.Query().Get("purge_items"))

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.tableIndexLocked(id)
	if i < 0 {
		writeDetail(w, http.StatusNotFound, "table not found")
		return
	}

	count := 0
	for _, it := range s.items {
		if it.TableID == id {
			count++
		}
	}
	if count > 0 && !purge {
		writeDetail(w, http.StatusConflict, map[string]any{
			"code":        "TABLE_HAS_ITEMS",
			"message":     "table still holds items",
			"items_count": count,
		})
		return
	}
	if count > 0 {
		kept := s.items[:0]
		for _, it := range s.items {
			if it.TableID != id {
				kept = append(kept, it)
			}
		}
		s.items = kept
	}

	s.tables = append(s.tables[:i:i], s.tables[i+1:]...)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) tableIndexLocked(id uuid.UUID) int {
	for i := range s.tables {
		if s.tables[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Server) tableByNameLocked(name string, except uuid.UUID) bool {
	for _, t := range s.tables {
		if t.Name == name && t.ID != except {
			return true
		}
	}
	return false
}
