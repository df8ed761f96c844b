// Package testutil provides a fake submission platform for exercising
// the outbound client against real HTTP.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/gorilla/mux"
)

// FakePlatform is an in-memory stand-in for a submission platform. It
// serves the two endpoints real platforms expose and records every
// payload batch it receives.
type FakePlatform struct {
	mu     sync.Mutex
	stores [][]map[string]string

	Fields      []string
	ListCalls   int
	StoreStatus int // non-zero forces this status on store

	// When Username is set, both endpoints require matching basic auth.
	Username string
	Password string
}

// NewFakePlatform creates a fake accepting the given field names.
func NewFakePlatform(fields ...string) *FakePlatform {
	return &FakePlatform{Fields: fields}
}

// Router builds the platform's route table.
func (f *FakePlatform) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/list-expected-fields", f.handleList).Methods("GET")
	r.HandleFunc("/store-sample-data", f.handleStore).Methods("POST")
	return r
}

// Start serves the fake over a test HTTP server. The caller closes it.
func (f *FakePlatform) Start() *httptest.Server {
	return httptest.NewServer(f.Router())
}

// Stores returns a copy of every batch stored so far.
func (f *FakePlatform) Stores() [][]map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]map[string]string, len(f.stores))
	copy(out, f.stores)
	return out
}

func (f *FakePlatform) handleList(w http.ResponseWriter, r *http.Request) {
	if !f.authorized(r) {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	f.mu.Lock()
	f.ListCalls++
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string][]string{"fields": f.Fields})
}

func (f *FakePlatform) handleStore(w http.ResponseWriter, r *http.Request) {
	if !f.authorized(r) {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	if f.StoreStatus != 0 && f.StoreStatus != http.StatusOK {
		w.WriteHeader(f.StoreStatus)
		return
	}

	var batch []map[string]string
	if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	f.stores = append(f.stores, batch)
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int{"stored": len(batch)})
}

func (f *FakePlatform) authorized(r *http.Request) bool {
	if f.Username == "" {
		return true
	}
	user, pass, ok := r.BasicAuth()
	return ok && user == f.Username && pass == f.Password
}
