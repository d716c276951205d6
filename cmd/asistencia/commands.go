package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/CristhianMorales19/sistema-gestion-agricola-sub003/internal/client"
	"github.com/CristhianMorales19/sistema-gestion-agricola-sub003/internal/dto"
)

// ────── registro ──────

func newEntryCmd(a *app) *cobra.Command {
	var date, clock, location string

	cmd := &cobra.Command{
		Use:   "entrada <trabajadorId>",
		Short: "Registra la entrada; sin conexión queda en la cola",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			workerID, err := parseWorkerID(args[0])
			if err != nil {
				return err
			}
			req := dto.RegisterEntryRequest{WorkerID: workerID, Date: date, EntryTime: clock}
			if location != "" {
				req.Location = &location
			}

			res, err := a.client.SubmitEntry(cmd.Context(), req)
			if err != nil {
				return err
			}
			if res.Offline {
				fmt.Fprintln(cmd.ErrOrStderr(), "Sin conexión: la entrada quedó en la cola offline")
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().StringVar(&date, "fecha", "", "fecha YYYY-MM-DD (por defecto hoy)")
	cmd.Flags().StringVar(&clock, "hora", "", "hora HH:mm o HH:mm:ss (por defecto ahora)")
	cmd.Flags().StringVar(&location, "ubicacion", "", "ubicación")
	return cmd
}

func newExitCmd(a *app) *cobra.Command {
	var clock, observation string

	cmd := &cobra.Command{
		Use:   "salida <trabajadorId>",
		Short: "Registra la salida (requiere conexión)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			workerID, err := parseWorkerID(args[0])
			if err != nil {
				return err
			}
			req := dto.RegisterExitRequest{WorkerID: workerID, ExitTime: clock}
			if observation != "" {
				req.Observation = &observation
			}

			res, err := a.client.SubmitExit(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().StringVar(&clock, "hora", "", "hora HH:mm o HH:mm:ss (por defecto ahora)")
	cmd.Flags().StringVar(&observation, "observacion", "", "observación")
	return cmd
}

// ────── sincronización ──────

func newSyncCmd(a *app) *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Envía las entradas pendientes de la cola offline",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if watch {
				interval := a.cfg.Client.SyncInterval
				fmt.Fprintf(cmd.ErrOrStderr(), "Sincronizando cada %s (Ctrl+C para salir)\n", interval)
				a.client.NotifyOnline()
				a.client.RunAutoSync(cmd.Context(), interval)
				return nil
			}

			n, err := a.client.SyncPending(cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(), "%d entrada(s) sincronizada(s)\n", n)
			return err
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", false, "sincronizar periódicamente hasta interrumpir")
	return cmd
}

// ────── consultas ──────

func newWorkersCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "trabajadores",
		Short: "Lista los trabajadores activos",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return printJSON(cmd.OutOrStdout(), a.client.ListActiveWorkers(cmd.Context()))
		},
	}
}

func newTodayCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "entradas-hoy",
		Short: "Lista las entradas del día",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return printJSON(cmd.OutOrStdout(), a.client.ListTodayEntries(cmd.Context()))
		},
	}
}

func newPendingCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "pendientes",
		Short: "Lista las entradas del día sin salida",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return printJSON(cmd.OutOrStdout(), a.client.ListPendingExits(cmd.Context()))
		},
	}
}

// ────── cola offline ──────

func newQueueCmd(a *app) *cobra.Command {
	var drop bool

	cmd := &cobra.Command{
		Use:   "cola",
		Short: "Muestra la cola offline",
		Long: "Muestra la cola offline en orden de envío.\n" +
			"Con --descartar elimina el primer elemento, útil cuando el servidor lo rechaza de forma permanente.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if drop {
				head, err := a.queue.DropHead(ctx)
				if err != nil {
					return err
				}
				if head == nil {
					return errors.New("la cola está vacía")
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Descartada la entrada del trabajador %d\n", head.WorkerID)
				return printJSON(cmd.OutOrStdout(), head)
			}

			items, err := a.client.Pending(ctx)
			if err != nil {
				return err
			}
			if items == nil {
				items = []client.QueuedEntry{}
			}
			return printJSON(cmd.OutOrStdout(), items)
		},
	}
	cmd.Flags().BoolVar(&drop, "descartar", false, "descarta el primer elemento de la cola")
	return cmd
}

// ────── utilidades ──────

func parseWorkerID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("trabajadorId inválido: %q", raw)
	}
	return id, nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
