package middleware

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/collabboard/collabboard/internal/logx"
)

func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ctx := logx.With(r.Context(),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("ip", r.RemoteAddr),
		)

		r = r.WithContext(ctx)
		next.ServeHTTP(w, r)

		logx.From(ctx).Info("http_request",
			zap.Duration("duration", time.Since(start)),
		)
	})
}
