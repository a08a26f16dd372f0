package main

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/nci/gbathy/catalog"
	"github.com/nci/gbathy/utils"
	"github.com/nci/gomemcache/memcache"
	"go.uber.org/zap"
)

type apiServer struct {
	catalog catalog.Catalog
	mc      *memcache.Client
	log     *zap.SugaredLogger
}

func newRouter(s *apiServer) *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/intersects", s.intersects).Methods(http.MethodGet)
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpJSONError(w, fmt.Errorf("unknown operation; currently supported: /intersects"), http.StatusBadRequest)
	})
	return router
}

// Spit out a simple JSON-formatted error message for Content-Type: application/json
func httpJSONError(response http.ResponseWriter, err error, status int) {
	response.Header().Set("Content-Type", "application/json")
	response.WriteHeader(status)
	json.NewEncoder(response).Encode(&catalog.SceneResponse{Scenes: []*catalog.SceneRecord{}, Error: err.Error()})
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range []string{utils.ISOFormat, time.RFC3339Nano, utils.DateFormat} {
		t, err := time.ParseInLocation(layout, s, time.UTC)
		if err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time %q", s)
}

func parseSceneQuery(r *http.Request) (catalog.SceneQuery, error) {
	var q catalog.SceneQuery
	var err error

	q.Generation = r.FormValue("generation")
	if v := r.FormValue("time"); len(v) > 0 {
		if q.Start, err = parseTime(v); err != nil {
			return q, err
		}
	}
	if v := r.FormValue("until"); len(v) > 0 {
		if q.End, err = parseTime(v); err != nil {
			return q, err
		}
	}

	wkt, bbox := r.FormValue("wkt"), r.FormValue("bbox")
	switch {
	case len(wkt) > 0 && len(bbox) > 0:
		return q, fmt.Errorf("wkt and bbox are mutually exclusive")
	case len(wkt) > 0:
		q.BBox, err = catalog.BBoxFromWKT(wkt)
	case len(bbox) > 0:
		q.BBox, err = catalog.ParseBBox(bbox)
	}
	return q, err
}

func (s *apiServer) intersects(response http.ResponseWriter, request *http.Request) {
	response.Header().Set("Content-Type", "application/json")

	var hash string
	if s.mc != nil {
		buff := md5.Sum([]byte(request.URL.RequestURI()))
		hash = hex.EncodeToString(buff[:])

		if cached, ok := s.mc.Get(hash); ok == nil {
			response.Write(cached.Value)
			return
		}
	}

	q, err := parseSceneQuery(request)
	if err != nil {
		httpJSONError(response, err, http.StatusBadRequest)
		return
	}

	records, err := s.catalog.Query(request.Context(), q)
	if err != nil {
		s.log.Errorw("scene query failed", "uri", request.URL.RequestURI(), "error", err)
		httpJSONError(response, err, http.StatusBadRequest)
		return
	}
	if records == nil {
		records = []*catalog.SceneRecord{}
	}

	payload, err := json.Marshal(&catalog.SceneResponse{Scenes: records})
	if err != nil {
		httpJSONError(response, err, http.StatusInternalServerError)
		return
	}
	response.Write(payload)
	s.log.Debugw("scene query", "uri", request.URL.RequestURI(), "scenes", len(records))

	if s.mc != nil {
		// don't care about errors; memcache may not necessarily retain this anyway
		s.mc.Set(&memcache.Item{Key: hash, Value: payload})
	}
}
