package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"golang.org/x/sync/errgroup"
)

// ListenAndServe runs the given servers until ctx is canceled or one of them
// stops unexpectedly, in which case the others are shut down. It returns the
// first error that made a server stop unexpectedly.
func ListenAndServe(ctx context.Context, servers ...*http.Server) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		<-ctx.Done()

		for _, s := range servers {
			if err := s.Shutdown(context.Background()); err != nil {
				logs.Warn(errors.New("shutting down the server failed").
					WithTag("addr", s.Addr).
					Wrap(err))
			}
		}
		return nil
	})

	for _, s := range servers {
		g.Go(func() error {
			logs.WithTag("addr", s.Addr).Info("starting server")

			switch err := s.ListenAndServe(); err {
			case nil, http.ErrServerClosed, context.Canceled:
				logs.WithTag("addr", s.Addr).Info("stopping server")
				return nil

			default:
				err = errors.New("server stopped").
					WithTag("addr", s.Addr).
					Wrap(err)
				logs.Error(err)
				return err
			}
		})
	}

	return g.Wait()
}

// MetricsPathFormatter returns empty string on HTTP 301, 400, 404 or 405
// statusCode. Scene names and object ids are replaced by placeholders.
func MetricsPathFormatter(statusCode int, path string) string {
	if statusCode == http.StatusMovedPermanently ||
		statusCode == http.StatusBadRequest ||
		statusCode == http.StatusNotFound ||
		statusCode == http.StatusMethodNotAllowed {
		return ""
	}

	segments := strings.Split(path, "/")
	for i := 1; i < len(segments); i++ {
		switch segments[i-1] {
		case "scenes":
			segments[i] = "{scene}"
		case "objects":
			segments[i] = "{id}"
		}
	}
	return strings.Join(segments, "/")
}
