// certctl opera o controle de certidões pela linha de comando: emissão,
// arquivamento manual, busca de pasta, resumo e migrações.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Werneck0live/controle-certidoes/internal/app"
	"github.com/Werneck0live/controle-certidoes/internal/config"
)

// exitErr carrega o código de saída pelo caminho de erro do cobra.
type exitErr struct {
	code int
	msg  string
}

func (e *exitErr) Error() string { return e.msg }

func codeError(code int, format string, args ...any) error {
	return &exitErr{code: code, msg: fmt.Sprintf(format, args...)}
}

func main() {
	cfg := config.Load()
	_ = config.InitLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRoot(cfg, connect)
	if err := root.ExecuteContext(ctx); err != nil {
		var ee *exitErr
		if errors.As(err, &ee) {
			fmt.Fprintln(os.Stderr, "Erro:", ee.msg)
			os.Exit(ee.code)
		}
		fmt.Fprintln(os.Stderr, "Erro:", err)
		os.Exit(1)
	}
}

// connector abre Mongo/RabbitMQ; os testes trocam por uma versão que falha.
type connector func(cfg *config.Config) (*app.App, error)

func connect(cfg *config.Config) (*app.App, error) {
	return app.New(cfg, app.Options{})
}

func newRoot(cfg *config.Config, conn connector) *cobra.Command {
	root := &cobra.Command{
		Use:           "certctl",
		Short:         "Controle de certidões negativas",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		emitCmd(cfg, conn),
		fileCmd(cfg, conn),
		folderCmd(cfg),
		statusCmd(cfg, conn),
		migrateCmd(cfg, conn),
		seedCmd(cfg, conn),
		cancelCmd(cfg),
	)
	return root
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
