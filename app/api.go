package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/fiffu/feedwatch/config"
	"github.com/fiffu/feedwatch/lib"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func NewAPI(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger, svc *lib.Service) *http.Server {
	addr := fmt.Sprintf(":%d", cfg.ServerPort)
	srv := &http.Server{Addr: addr, Handler: router(cfg, log, svc)}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go srv.ListenAndServe()
			return nil
		},
		OnStop: srv.Shutdown,
	})

	return srv
}

func router(cfg *config.Config, log *zap.Logger, svc *lib.Service) http.Handler {
	ctrl := &controller{log, svc}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		if creds := cfg.GetCreds(); len(creds) > 0 {
			r.Use(middleware.BasicAuth("feedwatch", creds))
		} else {
			log.Sugar().Info("Auth is disabled since no credentials are defined")
		}

		r.Get("/items", ctrl.listItems)
		r.Post("/items/read-all", ctrl.markAllRead)
		r.Post("/items/{id}/read", ctrl.toggleRead)
		r.Put("/items/{id}/read", ctrl.markRead)
		r.Post("/items/{id}/favorite", ctrl.toggleFavorite)

		r.Get("/feeds", ctrl.listFeeds)
		r.Post("/feeds", ctrl.addFeed)
		r.Delete("/feeds", ctrl.removeFeed)
		r.Put("/feeds/category", ctrl.setCategory)

		r.Post("/refresh", ctrl.refresh)
	})

	return r
}

type controller struct {
	log *zap.Logger
	svc *lib.Service
}

func (ctrl *controller) reject(w http.ResponseWriter, status int, err error) {
	if err != nil {
		http.Error(w, err.Error(), status)
	} else {
		w.WriteHeader(status)
	}
}

func (ctrl *controller) resolve(w http.ResponseWriter, status int, body any) {
	if b, err := json.Marshal(body); err != nil {
		ctrl.reject(w, http.StatusInternalServerError, err)
		ctrl.log.Sugar().Errorw("Request failed", "error", err)
		return
	} else {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write(b)
	}
}

func (ctrl *controller) listItems(w http.ResponseWriter, r *http.Request) {
	unread := r.URL.Query().Get("unread") == "true"
	favorites := r.URL.Query().Get("favorites") == "true"

	items := ctrl.svc.Items(unread, favorites)
	views := make([]ItemView, 0, len(items))
	for _, item := range items {
		views = append(views, ItemView{}.From(item, ctrl.svc.IsRead(item.ID), ctrl.svc.IsFavorite(item.ID)))
	}
	ctrl.resolve(w, http.StatusOK, map[string]any{
		"items":   views,
		"warning": ctrl.svc.Warning(),
	})
}

func (ctrl *controller) markAllRead(w http.ResponseWriter, r *http.Request) {
	if err := ctrl.svc.MarkAllRead(); err != nil {
		ctrl.log.Sugar().Warnw("Failed to persist read marks", "err", err)
	}
	ctrl.resolve(w, http.StatusOK, map[string]any{"ok": true})
}

func (ctrl *controller) toggleRead(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	read, err := ctrl.svc.ToggleRead(id)
	if err != nil {
		// The in-memory flag flipped even if the write failed.
		ctrl.log.Sugar().Warnw("Failed to persist read mark", "err", err)
	}
	ctrl.resolve(w, http.StatusOK, map[string]any{"id": id, "read": read})
}

// markRead sets the read flag idempotently, for clients reporting that
// an item was opened. POST on the same path toggles instead.
func (ctrl *controller) markRead(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := ctrl.svc.MarkRead(id); err != nil {
		ctrl.log.Sugar().Warnw("Failed to persist read mark", "err", err)
	}
	ctrl.resolve(w, http.StatusOK, map[string]any{"id": id, "read": true})
}

func (ctrl *controller) toggleFavorite(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	favorite, err := ctrl.svc.ToggleFavorite(id)
	if err != nil {
		ctrl.log.Sugar().Warnw("Failed to persist favorite mark", "err", err)
	}
	ctrl.resolve(w, http.StatusOK, map[string]any{"id": id, "favorite": favorite})
}

func (ctrl *controller) listFeeds(w http.ResponseWriter, r *http.Request) {
	feeds := ctrl.svc.Feeds()
	views := make([]FeedView, 0, len(feeds))
	for _, feed := range feeds {
		views = append(views, FeedView{}.From(feed, ctrl.svc.Health(feed.URL), ctrl.svc.UnreadCount(feed.URL)))
	}
	ctrl.resolve(w, http.StatusOK, map[string]any{
		"feeds":      views,
		"categories": ctrl.svc.Categories(),
	})
}

func (ctrl *controller) addFeed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	url := r.FormValue("url")

	if url == "" {
		ctrl.reject(w, http.StatusBadRequest, errors.New("url is required"))
		return
	}

	src, err := ctrl.svc.AddFeed(ctx, url)
	if err != nil {
		ctrl.reject(w, http.StatusUnprocessableEntity, err)
		return
	}
	ctrl.resolve(w, http.StatusCreated, src)
}

func (ctrl *controller) removeFeed(w http.ResponseWriter, r *http.Request) {
	url := r.FormValue("url")
	if url == "" {
		url = r.URL.Query().Get("url")
	}
	if url == "" {
		ctrl.reject(w, http.StatusBadRequest, errors.New("url is required"))
		return
	}

	removed, err := ctrl.svc.RemoveFeed(url)
	if err != nil {
		ctrl.log.Sugar().Warnw("Failed to persist subscription removal", "err", err)
	}
	if !removed {
		ctrl.reject(w, http.StatusNotFound, nil)
		return
	}
	ctrl.resolve(w, http.StatusOK, map[string]any{"removed": url})
}

func (ctrl *controller) setCategory(w http.ResponseWriter, r *http.Request) {
	url := r.FormValue("url")
	category := r.FormValue("category")

	if url == "" {
		ctrl.reject(w, http.StatusBadRequest, errors.New("url is required"))
		return
	}

	ok, err := ctrl.svc.SetCategory(url, category)
	if err != nil {
		ctrl.log.Sugar().Warnw("Failed to persist category", "err", err)
	}
	if !ok {
		ctrl.reject(w, http.StatusNotFound, nil)
		return
	}
	ctrl.resolve(w, http.StatusOK, map[string]any{"url": url, "category": category})
}

func (ctrl *controller) refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	force := r.URL.Query().Get("force") == "true" || r.FormValue("force") == "true"

	if err := ctrl.svc.Refresh(ctx, force); err != nil {
		ctrl.reject(w, http.StatusInternalServerError, err)
		return
	}
	ctrl.resolve(w, http.StatusOK, map[string]any{"refreshed": true, "forced": force})
}
