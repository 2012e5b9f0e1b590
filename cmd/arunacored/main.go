// Command arunacored runs the Aruna metadata storage engine: it wires
// C1-C10 together behind a minimal HTTP front door (health, metrics
// and a token-checking /v1/whoami — the real read/write API is out of
// scope per spec.md), following erigon's one-cobra-root-per-binary
// convention.
package main

import (
	"context"
	"crypto"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ArunaStorage/aos-server/internal/apierror"
	"github.com/ArunaStorage/aos-server/internal/authz"
	"github.com/ArunaStorage/aos-server/internal/config"
	"github.com/ArunaStorage/aos-server/internal/controller"
	"github.com/ArunaStorage/aos-server/internal/engine"
	"github.com/ArunaStorage/aos-server/internal/graph"
	"github.com/ArunaStorage/aos-server/internal/kv"
	"github.com/ArunaStorage/aos-server/internal/logging"
	"github.com/ArunaStorage/aos-server/internal/metrics"
	"github.com/ArunaStorage/aos-server/internal/model"
	"github.com/ArunaStorage/aos-server/internal/token"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "arunacored",
		Short: "arunacored — the Aruna metadata server storage engine",
		Long: `arunacored hosts the storage engine behind an Aruna metadata
server: field-coded documents, an in-memory resource graph, token
verification, and the single-writer transactional commit pipeline.`,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "./arunastore.toml", "path to the TOML config file")

	root.AddCommand(newServeCmd(&configPath))
	root.AddCommand(newInitCmd())
	root.AddCommand(newInspectCmd(&configPath))
	root.AddCommand(newVersionCmd())

	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("arunacored %s (commit: %s)\n", version, commit)
		},
	}
}

func newInitCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "generate an Ed25519 signing key for the server's own token issuer",
		RunE: func(cmd *cobra.Command, args []string) error {
			pub, priv, err := ed25519.GenerateKey(rand.Reader)
			if err != nil {
				return fmt.Errorf("generating key: %w", err)
			}
			privBytes, err := x509.MarshalPKCS8PrivateKey(priv)
			if err != nil {
				return fmt.Errorf("marshaling private key: %w", err)
			}
			pubBytes, err := x509.MarshalPKIXPublicKey(pub)
			if err != nil {
				return fmt.Errorf("marshaling public key: %w", err)
			}
			privPEM := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privBytes})
			pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubBytes})

			fmt.Fprintln(cmd.OutOrStdout(), "# paste into arunastore.toml under [signing_key]")
			fmt.Fprintf(cmd.OutOrStdout(), "serial = 1\nprivate_key_pem = \"\"\"\n%s\"\"\"\npublic_key_pem = \"\"\"\n%s\"\"\"\n", privPEM, pubPEM)

			if out != "" {
				if err := os.WriteFile(out, privPEM, 0o600); err != nil {
					return fmt.Errorf("writing private key to %s: %w", out, err)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "also write the private key PEM to this file (mode 0600)")
	return cmd
}

func newInspectCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect",
		Short: "open the data directory and print basic counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			log, err := logging.New(cfg.Log)
			if err != nil {
				return err
			}
			defer log.Sync() //nolint:errcheck

			store, err := engine.Open(cfg.Path, log)
			if err != nil {
				return err
			}
			defer store.Close()

			rg := store.Graph().RLock()
			n := rg.NumVertices()
			rg.Unlock()

			fmt.Fprintf(cmd.OutOrStdout(), "path: %s\nvertices: %d\n", cfg.Path, n)
			return nil
		},
	}
}

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "run the storage engine and its HTTP front door",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), *configPath)
		},
	}
}

func serve(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log, err := logging.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer log.Sync() //nolint:errcheck

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store, err := engine.Open(cfg.Path, log)
	if err != nil {
		return fmt.Errorf("opening storage engine: %w", err)
	}
	defer store.Close()

	reg := prometheus.NewRegistry()
	eng := metrics.New(reg)
	store.InstallMetrics(eng)
	store.Issuers().InstallMetrics(eng)

	signingPriv, signingPub, err := config.DecodeSigningKey(cfg.SigningKey)
	if err != nil {
		return fmt.Errorf("decoding signing key: %w", err)
	}
	if err := installIssuers(store, cfg, keyID(cfg), signingPub); err != nil {
		return err
	}
	store.InstallTokenService(token.NewService(store.Issuers(), selfIssuerName(cfg), keyID(cfg), signingPriv))

	ctrl := controller.New(store, cfg.Workers)

	log.Info("arunacored starting",
		zap.String("version", version),
		zap.String("path", cfg.Path),
		zap.Int("workers", cfg.Workers),
	)

	var metricsSrv *http.Server
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})
		mux.HandleFunc("/v1/whoami", whoamiHandler(ctrl))
		metricsSrv = &http.Server{Addr: cfg.Metrics.ListenAddr, Handler: mux}
		go func() {
			log.Info("metrics server listening", zap.String("addr", cfg.Metrics.ListenAddr))
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("metrics server error", zap.Error(err))
				cancel()
			}
		}()
	}

	<-ctx.Done()
	log.Info("arunacored shutting down")

	if metricsSrv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			log.Warn("metrics server shutdown error", zap.Error(err))
		}
	}
	return nil
}

func installIssuers(store *engine.Store, cfg config.Config, selfKeyID string, selfPub ed25519.PublicKey) error {
	for _, ic := range cfg.Issuers {
		typ := model.IssuerOIDC
		var initialKeys map[string]crypto.PublicKey
		if ic.Type == "server" {
			typ = model.IssuerServer
			initialKeys = map[string]crypto.PublicKey{selfKeyID: selfPub}
		}
		store.Issuers().Install(model.Issuer{
			Name:      ic.Name,
			Type:      typ,
			Endpoint:  ic.Endpoint,
			Audiences: ic.Audiences,
		}, initialKeys)
	}
	return nil
}

func selfIssuerName(cfg config.Config) string {
	for _, ic := range cfg.Issuers {
		if ic.Type == "server" {
			return ic.Name
		}
	}
	return "arunastore"
}

func keyID(cfg config.Config) string {
	return fmt.Sprintf("%d", cfg.SigningKey.Serial)
}

// whoamiHandler is the one manual-testing endpoint this binary wires
// up: it proves a bearer token verifies and resolves to a requester,
// without exposing any of the read/write API spec.md leaves out of
// scope.
func whoamiHandler(ctrl *controller.Controller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bearer := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if bearer == "" {
			http.Error(w, "missing bearer token", http.StatusUnauthorized)
			return
		}

		result, err := ctrl.DispatchRead(r.Context(), bearer, []authz.Context{authz.Activated()},
			func(rtxn *kv.ROTxn, rg *graph.RGuard) (any, error) {
				return map[string]any{"activated": true}, nil
			})
		if err != nil {
			writeAPIError(w, err)
			return
		}
		fmt.Fprintf(w, "%v\n", result)
	}
}

func writeAPIError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var ae *apierror.Error
	if ok := asAPIError(err, &ae); ok {
		switch ae.Kind {
		case apierror.KindUnauthorized:
			status = http.StatusUnauthorized
		case apierror.KindForbidden:
			status = http.StatusForbidden
		case apierror.KindNotFound:
			status = http.StatusNotFound
		case apierror.KindConflict:
			status = http.StatusConflict
		}
	}
	http.Error(w, err.Error(), status)
}

func asAPIError(err error, target **apierror.Error) bool {
	ae, ok := err.(*apierror.Error)
	if ok {
		*target = ae
	}
	return ok
}
