package http

import (
	"net/http"
	"strings"
)

type RouterConfig struct {
	Auth       *AuthHandler
	Members    *MemberHandler
	Facilities *FacilityHandler
	Bookings   *BookingHandler
	Events     *EventHandler
	Calendar   *CalendarHandler
	Health     http.Handler
	// Session guards every route except /healthz and POST /sessions.
	Session    func(http.Handler) http.Handler
	Middleware []func(http.Handler) http.Handler
}

func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	protect := func(fn http.HandlerFunc) http.Handler {
		if cfg.Session == nil {
			return fn
		}
		return cfg.Session(fn)
	}

	if cfg.Health != nil {
		mux.Handle("/healthz", cfg.Health)
	}

	if cfg.Auth != nil {
		mux.HandleFunc("/sessions", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				methodNotAllowed(w, http.MethodPost)
				return
			}
			cfg.Auth.CreateSession(w, r)
		})
		mux.Handle("/sessions/current", protect(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodDelete {
				methodNotAllowed(w, http.MethodDelete)
				return
			}
			cfg.Auth.DeleteCurrentSession(w, r)
		}))
		mux.Handle("/sessions/current/refresh", protect(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				methodNotAllowed(w, http.MethodPost)
				return
			}
			cfg.Auth.RefreshCurrentSession(w, r)
		}))
		mux.Handle("/sessions/", protect(func(w http.ResponseWriter, r *http.Request) {
			token := strings.TrimPrefix(r.URL.Path, "/sessions/")
			if token == "" {
				http.NotFound(w, r)
				return
			}
			if r.Method != http.MethodDelete {
				methodNotAllowed(w, http.MethodDelete)
				return
			}
			cfg.Auth.DeleteSession(w, r, token)
		}))
	}

	if cfg.Bookings != nil {
		mux.Handle("/bookings", protect(collection(cfg.Bookings.List, cfg.Bookings.Create)))
		mux.Handle("/bookings/", protect(func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimPrefix(r.URL.Path, "/bookings/")
			switch id {
			case "":
				http.NotFound(w, r)
				return
			case "series":
				if r.Method != http.MethodPost {
					methodNotAllowed(w, http.MethodPost)
					return
				}
				cfg.Bookings.CreateSeries(w, r)
				return
			case "check-availability":
				if r.Method != http.MethodPost {
					methodNotAllowed(w, http.MethodPost)
					return
				}
				cfg.Bookings.CheckAvailability(w, r)
				return
			}
			item(cfg.Bookings.Get, cfg.Bookings.Update, cfg.Bookings.Delete)(w, r.WithContext(ContextWithResourceID(r.Context(), id)))
		}))
	}

	if cfg.Members != nil {
		mux.Handle("/members", protect(collection(cfg.Members.List, cfg.Members.Create)))
		mux.Handle("/members/", protect(resource("/members/", cfg.Members.Get, cfg.Members.Update, cfg.Members.Delete)))
	}

	if cfg.Facilities != nil {
		mux.Handle("/facilities", protect(collection(cfg.Facilities.List, cfg.Facilities.Create)))
		mux.Handle("/facilities/", protect(resource("/facilities/", cfg.Facilities.Get, cfg.Facilities.Update, cfg.Facilities.Delete)))
	}

	if cfg.Events != nil {
		mux.Handle("/events", protect(collection(cfg.Events.List, cfg.Events.Create)))
		mux.Handle("/events/", protect(resource("/events/", cfg.Events.Get, cfg.Events.Update, cfg.Events.Delete)))
	}

	if cfg.Calendar != nil {
		mux.Handle("/calendar/day", protect(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				methodNotAllowed(w, http.MethodGet)
				return
			}
			cfg.Calendar.Day(w, r)
		}))
	}

	var handler http.Handler = mux
	if len(cfg.Middleware) > 0 {
		for i := len(cfg.Middleware) - 1; i >= 0; i-- {
			if cfg.Middleware[i] != nil {
				handler = cfg.Middleware[i](handler)
			}
		}
	}

	return handler
}

func collection(list, create http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			list(w, r)
		case http.MethodPost:
			create(w, r)
		default:
			methodNotAllowed(w, http.MethodGet, http.MethodPost)
		}
	}
}

// resource extracts the id after prefix and dispatches to the item handlers.
func resource(prefix string, get, update, remove http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, prefix)
		if id == "" || strings.Contains(id, "/") {
			http.NotFound(w, r)
			return
		}
		item(get, update, remove)(w, r.WithContext(ContextWithResourceID(r.Context(), id)))
	}
}

func item(get, update, remove http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			get(w, r)
		case http.MethodPut:
			update(w, r)
		case http.MethodDelete:
			remove(w, r)
		default:
			methodNotAllowed(w, http.MethodGet, http.MethodPut, http.MethodDelete)
		}
	}
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	if len(allowed) > 0 {
		w.Header().Set("Allow", strings.Join(allowed, ", "))
	}
	http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
}
