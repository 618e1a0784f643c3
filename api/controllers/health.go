package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/upliftlabs/calculator-backend/api/responses"
	"github.com/upliftlabs/calculator-backend/pkg/config"
	"github.com/upliftlabs/calculator-backend/pkg/logger"
)

const envHeader = "X-Uplift-Env"

type pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady reports readiness of the optional backing services. A nil
// Redis pinger means the instance runs on in-process stores and is always
// ready.
func HealthReady(cfg *config.Config, logg *logger.Logger, redisPinger pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)

		status := map[string]string{"status": "ready"}
		if redisPinger != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := redisPinger.Ping(ctx); err != nil {
				if logg != nil {
					logg.Error(r.Context(), "redis ping failed", err)
				}
				status["status"] = "degraded"
				status["redis"] = "unreachable"
				responses.WriteSuccessStatus(w, http.StatusServiceUnavailable, status)
				return
			}
			status["redis"] = "ok"
		}

		responses.WriteSuccess(w, status)
	}
}
