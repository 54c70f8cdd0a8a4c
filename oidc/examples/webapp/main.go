// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

// webapp is a small web application which signs its users in with an OIDC
// provider.  Configuration is read from the environment, and from a .env file
// in the working directory when present.
package main

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hashicorp/capsession/authn"
	"github.com/hashicorp/capsession/cookie"
	"github.com/hashicorp/capsession/oidc"
	"github.com/hashicorp/capsession/oidc/callback"
	"github.com/hashicorp/go-hclog"
	"github.com/joho/godotenv"
)

func main() {
	// a missing .env file is fine, the environment may be set already
	_ = godotenv.Load()

	c, err := envConfig(os.Getenv)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := hclog.New(&hclog.LoggerOptions{
		Name:  "webapp",
		Level: hclog.LevelFromString(c.logLevel),
	})
	if err := run(c, logger); err != nil {
		logger.Error("exiting", "error", err)
		os.Exit(1)
	}
}

func run(c *config, logger hclog.Logger) error {
	const op = "run"
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	app, err := oidc.NewApplication(ctx, c.baseURL, c.issuer, c.clientId, c.clientSecret,
		oidc.WithLogger(logger),
		oidc.WithProviderCA(c.providerCA),
		oidc.WithScopes("profile"),
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer app.Done()

	codec, err := cookie.NewCodec(c.cookieSecret)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	r, err := newRouter(app, codec)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	srv := &http.Server{
		Addr:              c.listen,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	srvCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", c.listen, "base_url", c.baseURL)
		srvCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-srvCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("%s: server closed with error: %w", op, err)
		}
		return nil
	case <-ctx.Done():
		logger.Info("interrupted, shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

var pageTmpl = template.Must(template.New("page").Parse(`<!doctype html>
<html><body>
{{if .User}}<p>Signed in as {{.Name}}{{with .User.PreferredUsername}} ({{.}}){{end}}.</p>
<p><a href="/dashboard">Dashboard</a></p>
{{else}}<p><a href="{{.SignIn}}">Sign in</a></p>{{end}}
</body></html>
`))

type page struct {
	User   *authn.User
	Name   string
	SignIn string
}

func newRouter(app *oidc.Application, codec *cookie.Codec) (chi.Router, error) {
	const op = "newRouter"
	r := chi.NewRouter()
	if err := callback.Attach(r, app, codec); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	r.With(authn.Middleware(app, codec)).Get("/", func(w http.ResponseWriter, req *http.Request) {
		p := page{SignIn: oidc.GotoAuthPath}
		if u, ok := authn.UserFromContext(req.Context()); ok {
			p.User = u
			p.Name = u.Subject
			if name, ok := u.Name(); ok {
				p.Name = name
			}
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_ = pageTmpl.Execute(w, p)
	})

	r.With(authn.Require(app, codec)).Get("/dashboard", func(w http.ResponseWriter, req *http.Request) {
		u, _ := authn.UserFromContext(req.Context())
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprintf(w, "dashboard of %s\n", u.Subject)
	})
	return r, nil
}
