package fakeapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path"
	"slices"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dmitrymomot/stocksync/pkg/items"
)

// defaultScannedName names items created by a stock-in without a name.
const defaultScannedName = "NUM"

type itemUpdate struct {
	Name             *string        `json:"name"`
	Code             *string        `json:"code"`
	Quantity         *int           `json:"quantity"`
	ImageOriginal    *string        `json:"image_original"`
	ImageThumb       *string        `json:"image_thumb"`
	Notes            *string        `json:"notes"`
	Properties       map[string]any `json:"properties"`
	PropertiesPatch  map[string]any `json:"properties_patch"`
	PropertiesRemove []string       `json:"properties_remove"`
}

func (s *Server) listItems(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var tableID uuid.UUID
	if raw := q.Get("table_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeDetail(w, http.StatusUnprocessableEntity, "table_id is not a valid uuid")
			return
		}
		tableID = id
	}
	minQ, okMin := intParam(q.Get("min_quantity"))
	maxQ, okMax := intParam(q.Get("max_quantity"))
	search := strings.ToLower(strings.TrimSpace(q.Get("q")))
	code := q.Get("code")
	propKey := q.Get("property_key")
	propValue, hasPropValue := q.Get("property_value"), q.Has("property_value")

	s.mu.Lock()
	out := make([]items.Item, 0, len(s.items))
	for _, it := range s.items {
		switch {
		case tableID != uuid.Nil && it.TableID != tableID:
		case search != "" && !strings.Contains(strings.ToLower(it.Name), search) &&
			!strings.Contains(strings.ToLower(it.Code), search):
		case code != "" && it.Code != code:
		case okMin && it.Quantity < minQ:
		case okMax && it.Quantity > maxQ:
		case propKey != "" && !hasProperty(it, propKey, propValue, hasPropValue):
		default:
			out = append(out, it.Clone())
		}
	}
	s.mu.Unlock()

	slices.SortStableFunc(out, func(a, b items.Item) int {
		return b.UpdatedAt.Compare(a.UpdatedAt)
	})
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	it, found := s.Item(id)
	if !found {
		writeDetail(w, http.StatusNotFound, "item not found")
		return
	}
	writeJSON(w, http.StatusOK, it)
}

func (s *Server) createItem(w http.ResponseWriter, r *http.Request) {
	var in items.NewItem
	if !decode(w, r, &in) {
		return
	}

	s.mu.Lock()
	if s.tableIndexLocked(in.TableID) < 0 {
		s.mu.Unlock()
		writeDetail(w, http.StatusNotFound, "table not found")
		return
	}
	if s.itemByCodeLocked(in.TableID, in.Code) >= 0 {
		s.mu.Unlock()
		writeDetail(w, http.StatusBadRequest, "item code already exists in this table")
		return
	}
	s.mu.Unlock()

	it := s.SeedItem(items.Item{
		TableID:       in.TableID,
		Code:          in.Code,
		Name:          in.Name,
		Quantity:      in.Quantity,
		ImageOriginal: in.ImageOriginal,
		ImageThumb:    in.ImageThumb,
		Notes:         in.Notes,
		Properties:    in.Properties,
	})
	writeJSON(w, http.StatusCreated, it)
}

func (s *Server) updateItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var in itemUpdate
	if !decode(w, r, &in) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.itemIndexLocked(id)
	if i < 0 {
		writeDetail(w, http.StatusNotFound, "item not found")
		return
	}
	if in.Code != nil {
		if j := s.itemByCodeLocked(s.items[i].TableID, *in.Code); j >= 0 && j != i {
			writeDetail(w, http.StatusBadRequest, "update failed, code may be duplicated")
			return
		}
	}

	it := s.items[i].Clone()
	items.Patch{
		Name:             in.Name,
		Code:             in.Code,
		Quantity:         in.Quantity,
		ImageOriginal:    in.ImageOriginal,
		ImageThumb:       in.ImageThumb,
		Notes:            in.Notes,
		Properties:       in.Properties,
		PropertiesPatch:  in.PropertiesPatch,
		PropertiesRemove: in.PropertiesRemove,
	}.Apply(&it)
	it.UpdatedAt = s.now().UTC()
	s.items[i] = it

	writeJSON(w, http.StatusOK, it)
}

func (s *Server) deleteItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.itemIndexLocked(id)
	if i < 0 {
		writeDetail(w, http.StatusNotFound, "item not found")
		return
	}
	s.items = append(s.items[:i:i], s.items[i+1:]...)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) stockIn(w http.ResponseWriter, r *http.Request) {
	var mv items.StockMovement
	if !decode(w, r, &mv) {
		return
	}
	code := strings.TrimSpace(mv.Code)
	if mv.Quantity <= 0 {
		writeDetail(w, http.StatusUnprocessableEntity, "quantity must be positive")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tableIndexLocked(mv.TableID) < 0 {
		writeDetail(w, http.StatusNotFound, "table not found")
		return
	}
	if code == "" {
		writeDetail(w, http.StatusBadRequest, "code is required")
		return
	}

	now := s.now().UTC()
	i := s.itemByCodeLocked(mv.TableID, code)
	if i < 0 {
		name := strings.TrimSpace(mv.Name)
		if name == "" {
			name = defaultScannedName
		}
		props := mv.Properties
		if props == nil {
			props = map[string]any{}
		}
		it := items.Item{
			ID:         uuid.New(),
			TableID:    mv.TableID,
			Code:       code,
			Name:       name,
			Quantity:   mv.Quantity,
			Notes:      mv.Notes,
			Properties: props,
			UpdatedAt:  now,
		}
		s.items = append([]items.Item{it}, s.items...)
		writeJSON(w, http.StatusOK, it)
		return
	}

	it := s.items[i].Clone()
	it.Quantity += mv.Quantity
	if name := strings.TrimSpace(mv.Name); name != "" {
		it.Name = name
	}
	if mv.Notes != "" {
		it.Notes = mv.Notes
	}
	if len(mv.Properties) > 0 {
		items.Patch{PropertiesPatch: mv.Properties}.Apply(&it)
	}
	it.UpdatedAt = now
	s.items[i] = it
	writeJSON(w, http.StatusOK, it)
}

func (s *Server) stockOut(w http.ResponseWriter, r *http.Request) {
	var mv items.StockMovement
	if !decode(w, r, &mv) {
		return
	}
	code := strings.TrimSpace(mv.Code)
	if mv.Quantity <= 0 {
		writeDetail(w, http.StatusUnprocessableEntity, "quantity must be positive")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tableIndexLocked(mv.TableID) < 0 {
		writeDetail(w, http.StatusNotFound, "table not found")
		return
	}
	i := s.itemByCodeLocked(mv.TableID, code)
	if i < 0 {
		writeDetail(w, http.StatusNotFound, "item not found")
		return
	}
	if s.items[i].Quantity < mv.Quantity {
		writeDetail(w, http.StatusBadRequest, fmt.Sprintf("insufficient stock, current stock %d", s.items[i].Quantity))
		return
	}

	it := s.items[i].Clone()
	it.Quantity -= mv.Quantity
	if mv.Notes != "" {
		it.Notes = mv.Notes
	}
	it.UpdatedAt = s.now().UTC()
	s.items[i] = it
	writeJSON(w, http.StatusOK, it)
}

func (s *Server) upload(w http.ResponseWriter, r *http.Request) {
	f, fh, err := r.FormFile("file")
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "file is required")
		return
	}
	defer f.Close()

	if !strings.HasPrefix(fh.Header.Get("Content-Type"), "image/") {
		writeDetail(w, http.StatusBadRequest, "only images can be uploaded")
		return
	}
	data, err := io.ReadAll(f)
	if err != nil || len(data) == 0 {
		writeDetail(w, http.StatusBadRequest, "uploaded file is empty")
		return
	}

	ext := strings.ToLower(path.Ext(fh.Filename))
	if ext == "" {
		ext = ".jpg"
	}
	fileID := strings.ReplaceAll(uuid.NewString(), "-", "")
	original := "originals/" + fileID + ext
	thumb := "thumbs/" + fileID + ".jpg"

	s.mu.Lock()
	s.uploads[original] = data
	s.uploads[thumb] = data
	s.mu.Unlock()

	base := "http://" + r.Host + strings.TrimSuffix(r.RequestURI, r.URL.Path) + "/media/"
	writeJSON(w, http.StatusCreated, items.Upload{
		OriginalPath: original,
		ThumbPath:    thumb,
		OriginalURL:  base + original,
		ThumbURL:     base + thumb,
	})
}

func (s *Server) media(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")

	s.mu.Lock()
	data, ok := s.uploads[key]
	s.mu.Unlock()

	if !ok {
		writeDetail(w, http.StatusNotFound, "Not Found")
		return
	}
	w.Header().Set("Content-Type", http.DetectContentType(data))
	_, _ = w.Write(data)
}

func (s *Server) itemIndexLocked(id uuid.UUID) int {
	for i := range s.items {
		if s.items[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Server) itemByCodeLocked(tableID uuid.UUID, code string) int {
	for i := range s.items {
		if s.items[i].TableID == tableID && s.items[i].Code == code {
			return i
		}
	}
	return -1
}

func intParam(raw string) (int, bool) {
	if raw == "" {
		return 0, false
	}
	n, err := strconv.Atoi(raw)
	return n, err == nil
}

// hasProperty matches the key, and the value's text form when want is set.
func hasProperty(it items.Item, key, want string, matchValue bool) bool {
	v, ok := it.Properties[key]
	if !ok {
		return false
	}
	if !matchValue {
		return true
	}
	if s, isString := v.(string); isString {
		return s == want
	}
	data, err := json.Marshal(v)
	return err == nil && string(data) == want
}
