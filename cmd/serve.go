package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/dvf-prices/internal/config"
	"github.com/sells-group/dvf-prices/internal/pipeline"
	"github.com/sells-group/dvf-prices/internal/prices"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the generated price files for local preview",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           buildRouter(cfg.Output.Dir, cfg.Output.Windows),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx) //nolint:errcheck
		}()

		zap.L().Info("starting server", zap.Int("port", port), zap.String("dir", cfg.Output.Dir))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// buildRouter exposes each window file under /prices/<months>.
func buildRouter(dir string, ws []config.WindowConfig) http.Handler {
	files := make(map[string]string, len(ws))
	for _, w := range ws {
		pw := pipeline.Window{Days: w.Days, File: w.File}
		files[strconv.Itoa(w.Days*12/365)] = filepath.Join(dir, pw.FileName())
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/prices/{months}", func(w http.ResponseWriter, r *http.Request) {
		path, ok := files[chi.URLParam(r, "months")]
		if !ok {
			writeError(w, http.StatusNotFound, "unknown window")
			return
		}
		data, err := os.ReadFile(path)
		if err != nil {
			fileError(w, path, err)
			return
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write(data) //nolint:errcheck
	})

	r.Get("/prices/{months}/{code}", func(w http.ResponseWriter, r *http.Request) {
		path, ok := files[chi.URLParam(r, "months")]
		if !ok {
			writeError(w, http.StatusNotFound, "unknown window")
			return
		}
		data, err := os.ReadFile(path)
		if err != nil {
			fileError(w, path, err)
			return
		}
		var doc prices.Document
		if err := json.Unmarshal(data, &doc); err != nil {
			zap.L().Error("serve: decode prices", zap.String("path", path), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "unreadable prices file")
			return
		}
		code := chi.URLParam(r, "code")
		entry, ok := doc.Data[code]
		if !ok {
			writeError(w, http.StatusNotFound, "unknown commune")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"code":    code,
			"periode": doc.Periode,
			"devise":  doc.Devise,
			"entry":   entry,
		})
	})

	return r
}

func fileError(w http.ResponseWriter, path string, err error) {
	if errors.Is(err, fs.ErrNotExist) {
		writeError(w, http.StatusNotFound, "prices file not generated yet")
		return
	}
	zap.L().Error("serve: read prices", zap.String("path", path), zap.Error(err))
	writeError(w, http.StatusInternalServerError, "unreadable prices file")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
