package main

import (
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Werneck0live/controle-certidoes/internal/app"
	"github.com/Werneck0live/controle-certidoes/internal/config"
	"github.com/Werneck0live/controle-certidoes/internal/dashboard"
	"github.com/Werneck0live/controle-certidoes/internal/models"
	"github.com/Werneck0live/controle-certidoes/internal/utils"
)

func emitCmd(cfg *config.Config, conn connector) *cobra.Command {
	return &cobra.Command{
		Use:   "emitir <certidao-id>",
		Short: "Abre o portal, emite a certidão e arquiva o PDF na pasta da empresa",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := conn(cfg)
			if err != nil {
				return codeError(3, "conexão: %s", err)
			}
			defer a.Close()

			res, err := a.Runner.Emit(cmd.Context(), args[0])
			if err != nil {
				return codeError(2, "emissão: %s", err)
			}
			return writeJSON(cmd.OutOrStdout(), res)
		},
	}
}

func fileCmd(cfg *config.Config, conn connector) *cobra.Command {
	return &cobra.Command{
		Use:   "arquivar <certidao-id> <arquivo>",
		Short: "Arquiva um PDF já baixado e atualiza a validade",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := conn(cfg)
			if err != nil {
				return codeError(3, "conexão: %s", err)
			}
			defer a.Close()

			res, err := a.Runner.File(cmd.Context(), args[0], args[1])
			if err != nil {
				return codeError(2, "arquivamento: %s", err)
			}
			return writeJSON(cmd.OutOrStdout(), res)
		},
	}
}

// pasta não precisa de banco: só lê o compartilhamento.
func folderCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "pasta <nome-da-empresa> [cnpj]",
		Short: "Mostra qual pasta do compartilhamento seria usada para a empresa",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cnpj := ""
			if len(args) == 2 {
				cnpj = utils.SanitizeCNPJ(args[1])
			}
			f := app.NewFiler(cfg, slog.Default())
			m, err := f.FindCompanyFolder(args[0], cnpj)
			if err != nil {
				return codeError(2, "%s", err)
			}
			dir, err := f.ResolveCertificatesDir(m.Path)
			if err != nil {
				return codeError(2, "%s", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "pasta:     %s\n", m.Path)
			fmt.Fprintf(out, "método:    %s (%d)\n", m.Method, m.Score)
			fmt.Fprintf(out, "certidões: %s\n", dir)
			return nil
		},
	}
}

func statusCmd(cfg *config.Config, conn connector) *cobra.Command {
	var status, query string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Resumo das certidões por empresa",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := conn(cfg)
			if err != nil {
				return codeError(3, "conexão: %s", err)
			}
			defer a.Close()

			svc := &dashboard.Service{Companies: a.Companies, Certs: a.Certs}
			s, err := svc.Load(cmd.Context(), dashboard.ParseFilter(url.Values{"status": {status}, "q": {query}}))
			if err != nil {
				return codeError(2, "%s", err)
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), s)
			}
			return writeSummary(cmd.OutOrStdout(), s)
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "filtra por cor: vermelho, amarelo, verde ou cinza")
	cmd.Flags().StringVarP(&query, "busca", "q", "", "busca em nome, CNPJ ou cidade")
	cmd.Flags().BoolVar(&asJSON, "json", false, "saída em JSON")
	return cmd
}

func writeSummary(w io.Writer, s dashboard.Summary) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "EMPRESA\tCNPJ\tCERTIDÃO\tVALIDADE\tSTATUS")
	for _, r := range s.Rows {
		for _, c := range r.Certificates {
			validade := "-"
			switch {
			case c.StatusEspecial == models.StatusPendente:
				validade = "Pendente"
			case c.DataValidade != nil:
				validade = c.DataValidade.Format("02/01/2006")
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.Company.Nome, r.CNPJ, c.Label, validade, c.Status)
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "\n%d empresas", s.Total)
	for _, st := range models.AllStatuses {
		fmt.Fprintf(w, " | %s: %d", st, s.Counts[st])
	}
	fmt.Fprintln(w)
	return nil
}

func migrateCmd(cfg *config.Config, conn connector) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Migrações do banco",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Aplica as migrações pendentes",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				a, err := conn(cfg)
				if err != nil {
					return codeError(3, "conexão: %s", err)
				}
				defer a.Close()
				ran, err := a.Migrator().Up(cmd.Context())
				if err != nil {
					return codeError(2, "%s", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "aplicadas: %d %v\n", len(ran), ran)
				return nil
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Reverte a última migração aplicada",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				a, err := conn(cfg)
				if err != nil {
					return codeError(3, "conexão: %s", err)
				}
				defer a.Close()
				id, err := a.Migrator().Down(cmd.Context())
				if err != nil {
					return codeError(2, "%s", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "revertida: %s\n", id)
				return nil
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Lista as migrações e quando foram aplicadas",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				a, err := conn(cfg)
				if err != nil {
					return codeError(3, "conexão: %s", err)
				}
				defer a.Close()
				list, err := a.Migrator().Status(cmd.Context())
				if err != nil {
					return codeError(2, "%s", err)
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				for _, st := range list {
					when := "pendente"
					if st.AppliedAt != nil {
						when = st.AppliedAt.Format("2006-01-02 15:04")
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\n", st.ID, when, st.Description)
				}
				return tw.Flush()
			},
		},
	)
	return cmd
}

func seedCmd(cfg *config.Config, conn connector) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Grava municípios e empresas de exemplo",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := conn(cfg)
			if err != nil {
				return codeError(3, "conexão: %s", err)
			}
			defer a.Close()
			if err := a.Seed(cmd.Context()); err != nil {
				return codeError(2, "%s", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "seed concluído")
			return nil
		},
	}
}

// cancelar cria o sentinela; a emissão em andamento (em qualquer processo) para na próxima varredura.
func cancelCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "cancelar",
		Short: "Cancela a emissão em andamento (navegação ou espera do download)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.NewFiler(cfg, slog.Default()).Cancel(); err != nil {
				return codeError(2, "%s", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cancelamento solicitado (%s)\n", cfg.CancelSentinel)
			return nil
		},
	}
}
