package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/eventscope/internal/model"
	"github.com/sells-group/eventscope/internal/queue"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and job workers",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		workersDone := make(chan error, 1)
		go func() {
			workersDone <- env.Workers.Run(ctx)
		}()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		// Assign through the interface only when configured so handleAsk's
		// nil check sees a nil interface, not a typed nil pointer.
		var pipeline asker
		if env.Pipeline != nil {
			pipeline = env.Pipeline
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           newRouter(env.Broker, pipeline, cfg.Auth.JWTSecret),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server",
			zap.Int("port", port),
			zap.Strings("platforms", env.Registry.Platforms()),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		// Let in-flight jobs finish before closing the broker and store.
		if err := <-workersDone; err != nil {
			zap.L().Warn("worker pool exited with error", zap.Error(err))
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// asker is the query surface of the RAG pipeline. nil when the pipeline is
// not configured.
type asker interface {
	Ask(ctx context.Context, query string, filter map[string]any) (*model.Answer, error)
}

// newRouter builds the HTTP API. pipeline may be nil when retrieval is not
// configured.
func newRouter(broker queue.Broker, pipeline asker, jwtSecret string) *chi.Mux {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}))
	r.Use(requestLogger)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(api chi.Router) {
		api.Use(jwtAuth(jwtSecret))

		api.Post("/scrape", handleScrape(broker))
		api.Get("/scrape/{jobID}", handleJobStatus(broker))
		api.Post("/ask", handleAsk(pipeline))
	})

	return r
}

func handleScrape(broker queue.Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			URL string `json:"url"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		payload := model.JobPayload{
			URL:         req.URL,
			RequesterID: requesterID(r.Context()),
		}
		job, err := broker.Enqueue(r.Context(), payload)
		if err != nil {
			if model.IsValidation(err) {
				writeError(w, http.StatusBadRequest, eris.Cause(err).Error())
				return
			}
			zap.L().Error("enqueue scrape job", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "enqueue failed")
			return
		}

		writeJSON(w, http.StatusAccepted, map[string]string{"job_id": job.ID})
	}
}

func handleJobStatus(broker queue.Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID := chi.URLParam(r, "jobID")

		job, err := broker.GetJob(r.Context(), jobID)
		if err != nil {
			if model.IsNotFound(err) {
				writeError(w, http.StatusNotFound, "job not found")
				return
			}
			zap.L().Error("get job", zap.String("job_id", jobID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "lookup failed")
			return
		}

		writeJSON(w, http.StatusOK, job.StatusView())
	}
}

func handleAsk(pipeline asker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if pipeline == nil {
			writeError(w, http.StatusServiceUnavailable, "retrieval is not configured")
			return
		}

		var req struct {
			Question string         `json:"question"`
			Filter   map[string]any `json:"filter"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if strings.TrimSpace(req.Question) == "" {
			writeError(w, http.StatusBadRequest, "question is required")
			return
		}

		answer, err := pipeline.Ask(r.Context(), req.Question, req.Filter)
		if err != nil {
			if model.IsValidation(err) {
				writeError(w, http.StatusBadRequest, eris.Cause(err).Error())
				return
			}
			zap.L().Error("answer question", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "retrieval failed")
			return
		}

		writeJSON(w, http.StatusOK, answer)
	}
}

type contextKey string

const requesterKey contextKey = "requester"

func requesterID(ctx context.Context) string {
	id, _ := ctx.Value(requesterKey).(string)
	return id
}

// jwtAuth validates a Bearer token signed with the shared secret and
// stashes its subject as the requester id.
func jwtAuth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				writeError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			token, err := jwt.Parse(strings.TrimPrefix(header, "Bearer "), func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, eris.Errorf("unexpected signing method %v", t.Header["alg"])
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid {
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			sub, _ := token.Claims.GetSubject()
			ctx := context.WithValue(r.Context(), requesterKey, sub)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		zap.L().Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
