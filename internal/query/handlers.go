package query

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fberger-xyz/orderbook-wtf/internal/catalogue"
	"github.com/fberger-xyz/orderbook-wtf/internal/orderbook"
	"github.com/fberger-xyz/orderbook-wtf/internal/types"
)

// Routes mounts the Query Surface's handlers onto r. The adapter is thin by
// design: every route only reads from store/builder and serializes, it
// never mutates catalogue state.
func Routes(r chi.Router, store *catalogue.Store, builder *orderbook.Builder) {
	r.Get("/status", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, Status(store))
	})
	r.Get("/tokens", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, Tokens(store))
	})
	r.Get("/components", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, Components(store))
	})
	r.Get("/orderbook/{token0}/{token1}", func(w http.ResponseWriter, req *http.Request) {
		t0, err := types.AddressFromHex(chi.URLParam(req, "token0"))
		if err != nil {
			http.Error(w, "invalid token0", http.StatusBadRequest)
			return
		}
		t1, err := types.AddressFromHex(chi.URLParam(req, "token1"))
		if err != nil {
			http.Error(w, "invalid token1", http.StatusBadRequest)
			return
		}
		if !store.Ready() {
			http.Error(w, "catalogue not yet ready", http.StatusServiceUnavailable)
			return
		}
		bundle := builder.BuildPair(t0, t1, nil)
		writeJSON(w, Orderbook(bundle))
	})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
