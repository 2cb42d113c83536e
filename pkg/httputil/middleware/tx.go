package middleware

import (
	"bytes"
	"context"
	"net/http"

	"github.com/edgeflare/restable/pkg/httputil"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// TxBeginner starts transactions. *pgxpool.Pool satisfies it.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

const databaseError = "Database error"

// bufferedWriter holds status and body back until the transaction outcome is
// known. Headers go straight to the underlying writer.
type bufferedWriter struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (bw *bufferedWriter) WriteHeader(status int) {
	if bw.status == 0 {
		bw.status = status
	}
}

func (bw *bufferedWriter) Write(b []byte) (int, error) {
	if bw.status == 0 {
		bw.status = http.StatusOK
	}
	return bw.body.Write(b)
}

func (bw *bufferedWriter) flush() {
	if bw.status == 0 {
		bw.status = http.StatusOK
	}
	bw.ResponseWriter.WriteHeader(bw.status)
	_, _ = bw.ResponseWriter.Write(bw.body.Bytes())
}

// Tx runs every request inside one transaction begun on db and bound to the
// request context (see httputil.Tx). The transaction commits when the handler
// answers with a status below 400 and rolls back otherwise, when the handler
// panics, or when the request context is done. A failed commit is answered
// with 422 in place of the buffered response.
func Tx(db TxBeginner) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := LoggerFromContext(r.Context())
			// cleanup must run even when the client went away
			cleanupCtx := context.WithoutCancel(r.Context())

			tx, err := db.Begin(r.Context())
			if err != nil {
				logger.Error("begin transaction", zap.Error(err))
				httputil.ErrorWithDescription(w, http.StatusServiceUnavailable, http.StatusText(http.StatusServiceUnavailable), databaseError)
				return
			}

			rollback := func() {
				if err := tx.Rollback(cleanupCtx); err != nil && err != pgx.ErrTxClosed {
					logger.Warn("rollback transaction", zap.Error(err))
				}
			}

			defer func() {
				if p := recover(); p != nil {
					rollback()
					panic(p)
				}
			}()

			bw := &bufferedWriter{ResponseWriter: w}
			ctx := context.WithValue(r.Context(), httputil.PgTxCtxKey, tx)
			next.ServeHTTP(bw, r.WithContext(ctx))

			if err := r.Context().Err(); err != nil {
				rollback()
				logger.Debug("request cancelled, transaction rolled back", zap.Error(err))
				return
			}

			if bw.status >= http.StatusBadRequest {
				rollback()
				bw.flush()
				return
			}

			if err := tx.Commit(cleanupCtx); err != nil {
				rollback()
				logger.Warn("commit transaction", zap.Error(err))
				httputil.ErrorWithDescription(w, http.StatusUnprocessableEntity, http.StatusText(http.StatusUnprocessableEntity), databaseError)
				return
			}
			bw.flush()
		})
	}
}
