// internal/bot/keepalive.go
package bot

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// KeepaliveServer answers health probes of the hosting platform.
type KeepaliveServer struct {
	srv    *http.Server
	logger *zap.Logger
}

// NewKeepaliveServer creates a server listening on addr.
func NewKeepaliveServer(addr string, logger *zap.Logger) *KeepaliveServer {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("Bot is running!"))
	})

	return &KeepaliveServer{
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger.Named("keepalive"),
	}
}

// Handler exposes the HTTP handler.
func (k *KeepaliveServer) Handler() http.Handler {
	return k.srv.Handler
}

// Run serves until ctx is cancelled.
func (k *KeepaliveServer) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", k.srv.Addr)
	if err != nil {
		return err
	}
	return k.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (k *KeepaliveServer) Serve(ctx context.Context, ln net.Listener) error {
	k.logger.Info("🌐 Keepalive server listening", zap.String("addr", ln.Addr().String()))

	errCh := make(chan error, 1)
	go func() {
		errCh <- k.srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := k.srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
