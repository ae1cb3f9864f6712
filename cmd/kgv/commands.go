package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"kgv/backend/internal/dto"
	"kgv/backend/pkg/database"
)

// ────────────────────── migrate ──────────────────────

func migrateCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Datenbankschema verwalten",
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Alle ausstehenden Migrationen anwenden",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(configPath, func(a *app) error {
				sqlDB, err := a.db.DB()
				if err != nil {
					return err
				}
				return database.RunMigrations(sqlDB, a.logger)
			})
		},
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Migrationen zurückrollen",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(configPath, func(a *app) error {
				sqlDB, err := a.db.DB()
				if err != nil {
					return err
				}
				return database.RollbackMigrations(sqlDB, steps, a.logger)
			})
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "Anzahl der zurückzurollenden Versionen")

	cmd.AddCommand(up, down)
	return cmd
}

// ────────────────────── district ──────────────────────

func districtCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "district",
		Short: "Bezirke verwalten",
	}

	var list dto.DistrictListRequest
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "Bezirke auflisten",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(configPath, func(a *app) error {
				page, err := a.svc.District.List(cmd.Context(), &list)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), page)
			})
		},
	}
	listCmd.Flags().StringVar(&list.Search, "search", "", "Suchbegriff")
	listCmd.Flags().StringVar(&list.Status, "status", "", "Status (active, inactive, archived)")
	listCmd.Flags().BoolVar(&list.IncludeStatistics, "stats", false, "Parzellenstatistik anhängen")
	listCmd.Flags().IntVar(&list.Page, "page", 1, "Seite")
	listCmd.Flags().IntVar(&list.PageSize, "page-size", 20, "Einträge pro Seite")

	var create dto.CreateDistrictRequest
	createCmd := &cobra.Command{
		Use:   "create NAME",
		Short: "Bezirk anlegen",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			create.Name = args[0]
			return withApp(configPath, func(a *app) error {
				d, err := a.svc.District.Create(cmd.Context(), &create)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), d)
			})
		},
	}
	createCmd.Flags().StringVar(&create.DisplayName, "display-name", "", "Anzeigename")
	createCmd.Flags().StringVar(&create.Description, "description", "", "Beschreibung")
	createCmd.Flags().Float64Var(&create.TotalArea, "area", 0, "Gesamtfläche in m²")
	createCmd.Flags().StringVar(&create.CreatedBy, "by", "", "Bearbeiter")

	var del dto.DeleteRequest
	deleteCmd := &cobra.Command{
		Use:   "delete ID",
		Short: "Bezirk löschen (mit --force archivieren, falls Parzellen vorhanden)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(configPath, func(a *app) error {
				res, err := a.svc.District.Delete(cmd.Context(), args[0], &del)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			})
		},
	}
	deleteCmd.Flags().BoolVar(&del.Force, "force", false, "Bezirk mit Parzellen archivieren")
	deleteCmd.Flags().StringVar(&del.DeletedBy, "by", "", "Bearbeiter")

	cmd.AddCommand(listCmd, createCmd, deleteCmd)
	return cmd
}

// ────────────────────── plot ──────────────────────

func plotCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plot",
		Short: "Parzellen verwalten",
	}

	var create dto.CreatePlotRequest
	createCmd := &cobra.Command{
		Use:   "create DISTRICT_ID NUMBER",
		Short: "Parzelle anlegen",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			create.DistrictID, create.Number = args[0], args[1]
			return withApp(configPath, func(a *app) error {
				p, err := a.svc.Plot.Create(cmd.Context(), &create)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), p)
			})
		},
	}
	createCmd.Flags().Float64Var(&create.Area, "area", 0, "Fläche in m²")
	createCmd.Flags().BoolVar(&create.HasWater, "water", false, "Wasseranschluss")
	createCmd.Flags().BoolVar(&create.HasElectricity, "electricity", false, "Stromanschluss")
	createCmd.Flags().StringVar(&create.Gemarkung, "gemarkung", "", "Gemarkung")
	createCmd.Flags().StringVar(&create.Flur, "flur", "", "Flur")
	createCmd.Flags().StringVar(&create.CreatedBy, "by", "", "Bearbeiter")

	var assign dto.AssignPlotRequest
	assignCmd := &cobra.Command{
		Use:   "assign PLOT_ID",
		Short: "Parzelle einem Antrag zuweisen",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			assign.PlotID = args[0]
			return withApp(configPath, func(a *app) error {
				res, err := a.svc.Plot.Assign(cmd.Context(), &assign)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			})
		},
	}
	assignCmd.Flags().StringVar(&assign.PersonID, "person", "", "Antragsteller-ID (neuester offener Antrag)")
	assignCmd.Flags().StringVar(&assign.ApplicationID, "application", "", "Antrags-ID")
	assignCmd.Flags().StringVar(&assign.Notes, "notes", "", "Vermerk")
	assignCmd.Flags().BoolVar(&assign.Force, "force", false, "Zuweisung unabhängig vom Parzellenstatus erzwingen")
	assignCmd.Flags().StringVar(&assign.Reason, "reason", "", "Begründung (bei --force erforderlich)")
	assignCmd.Flags().StringVar(&assign.AssignedBy, "by", "", "Bearbeiter")
	assignCmd.MarkFlagsMutuallyExclusive("person", "application")

	var releaseBy string
	releaseCmd := &cobra.Command{
		Use:   "release PLOT_ID",
		Short: "Parzelle freigeben",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(configPath, func(a *app) error {
				p, err := a.svc.Plot.Release(cmd.Context(), args[0], releaseBy)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), p)
			})
		},
	}
	releaseCmd.Flags().StringVar(&releaseBy, "by", "", "Bearbeiter")

	cmd.AddCommand(createCmd, assignCmd, releaseCmd)
	return cmd
}

// ────────────────────── stats ──────────────────────

func statsCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats [DISTRICT_ID]",
		Short: "Statistik gesamt oder für einen Bezirk",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(configPath, func(a *app) error {
				if len(args) == 1 {
					s, err := a.svc.District.Statistics(cmd.Context(), args[0])
					if err != nil {
						return err
					}
					return printJSON(cmd.OutOrStdout(), s)
				}
				s, err := a.svc.Statistics.Overview(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), s)
			})
		},
	}
	return cmd
}

// ────────────────────── waitlist ──────────────────────

func waitlistCmd(configPath *string) *cobra.Command {
	var outDir string

	cmd := &cobra.Command{
		Use:   "waitlist DISTRICT_ID",
		Short: "Warteliste eines Bezirks anzeigen",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(configPath, func(a *app) error {
				list, err := a.svc.Application.WaitingList(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), list)
			})
		},
	}

	export := &cobra.Command{
		Use:   "export DISTRICT_ID",
		Short: "Warteliste als Excel-Datei exportieren",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(configPath, func(a *app) error {
				buf, filename, err := a.svc.Export.ExportWaitingList(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				path := filepath.Join(outDir, filename)
				if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
					return fmt.Errorf("Datei %s konnte nicht geschrieben werden: %w", path, err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), path)
				return nil
			})
		},
	}
	export.Flags().StringVarP(&outDir, "out", "o", ".", "Zielverzeichnis")

	cmd.AddCommand(export)
	return cmd
}
