package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/torfstack/chksum/internal/auth"
	"github.com/torfstack/chksum/internal/checksum"
	"github.com/torfstack/chksum/internal/config"
	"github.com/torfstack/chksum/internal/db"
	"github.com/torfstack/chksum/internal/logging"
	"github.com/torfstack/chksum/internal/remote"
	"github.com/torfstack/chksum/internal/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

type app struct {
	debug      bool
	configPath string
	cfg        config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}
	var rootCmd = &cobra.Command{
		Use:           "chksum",
		Short:         "File checksum tool with a local ledger",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logging.SetDebug(a.debug)
			if a.configPath != "" {
				config.SetPath(a.configPath)
			}
			if cmd.Name() == "init" {
				return nil
			}
			cfg, err := config.Get()
			if err != nil {
				return err
			}
			a.cfg = cfg
			return nil
		},
	}

	rootCmd.PersistentFlags().
		BoolVarP(&a.debug, "debug", "d", false, "Enable debug output")
	rootCmd.PersistentFlags().
		StringVarP(&a.configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(
		a.sumCmd(),
		a.manifestCmd(),
		a.checkCmd(),
		a.indexCmd(),
		a.verifyCmd(),
		a.watchCmd(),
		a.loginCmd(),
		a.driveCmd(),
		a.configCmd(),
	)
	return rootCmd
}

func (a *app) sumCmd() *cobra.Command {
	var alg, format string
	var tag bool
	cmd := &cobra.Command{
		Use:   "sum [file...]",
		Short: "Print checksums of files, standard input if none are given",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := service.SumOptions{Tag: tag}
			var err error
			if alg != "" {
				if opts.Algorithm, err = checksum.ParseAlgorithm(alg); err != nil {
					return err
				}
			}
			if format != "" {
				if opts.Format, err = checksum.ParseFormat(format); err != nil {
					return err
				}
			}
			return service.NewService(a.cfg, nil, cmd.OutOrStdout()).SumFiles(cmd.Context(), args, opts)
		},
	}
	cmd.Flags().StringVarP(&alg, "algorithm", "a", "", fmt.Sprintf("Checksum algorithm %v", checksum.Algorithms()))
	cmd.Flags().StringVarP(&format, "format", "f", "", "Digest encoding: hex, base64, multihash or cid")
	cmd.Flags().BoolVar(&tag, "tag", false, "Print BSD style checksum lines")
	return cmd
}

func (a *app) manifestCmd() *cobra.Command {
	var tag bool
	cmd := &cobra.Command{
		Use:   "manifest <dir>",
		Short: "Write a checksum manifest for every file below a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return service.NewService(a.cfg, nil, cmd.OutOrStdout()).WriteManifest(cmd.Context(), args[0], tag)
		},
	}
	cmd.Flags().BoolVar(&tag, "tag", false, "Write BSD style checksum lines")
	return cmd
}

func (a *app) checkCmd() *cobra.Command {
	var alg string
	var opts service.CheckOptions
	cmd := &cobra.Command{
		Use:   "check <manifest>",
		Short: "Verify files against a checksum manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if alg != "" {
				var err error
				if opts.Algorithm, err = checksum.ParseAlgorithm(alg); err != nil {
					return err
				}
			}
			return service.NewService(a.cfg, nil, cmd.OutOrStdout()).CheckManifest(cmd.Context(), args[0], opts)
		},
	}
	cmd.Flags().StringVarP(&alg, "algorithm", "a", "", "Algorithm of GNU style lines, guessed from length if empty")
	cmd.Flags().BoolVarP(&opts.Quiet, "quiet", "q", false, "Only print failures")
	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "Fail on improperly formatted lines")
	return cmd
}

func (a *app) indexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "index <dir>",
		Short: "Record checksums of every file below a directory in the ledger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withLedger(cmd, func(s *service.Service) error {
				report, err := s.Index(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), report)
				return err
			})
		},
	}
}

func (a *app) verifyCmd() *cobra.Command {
	var deep bool
	cmd := &cobra.Command{
		Use:   "verify <dir>",
		Short: "Compare files below a directory with the ledger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withLedger(cmd, func(s *service.Service) error {
				report, err := s.Verify(cmd.Context(), args[0], deep)
				if err != nil {
					return err
				}
				if err = s.PrintVerifyReport(report); err != nil {
					return err
				}
				if !report.Clean() {
					return service.ErrVerificationFailed
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&deep, "deep", false, "Rehash files even if size and modification time are unchanged")
	return cmd
}

func (a *app) watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch [dir]",
		Short: "Keep the ledger up to date while files change",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := a.cfg.WatchDir
			if len(args) == 1 {
				dir = args[0]
			}
			return a.withLedger(cmd, func(s *service.Service) error {
				return s.Watch(cmd.Context(), dir)
			})
		},
	}
}

func (a *app) loginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Authenticate with Google Drive",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := db.New(cmd.Context())
			if err != nil {
				return err
			}
			defer d.Close()
			if err = auth.Login(cmd.Context(), d); err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "Authentication successful.")
			return err
		},
	}
}

func (a *app) driveCmd() *cobra.Command {
	driveCmd := &cobra.Command{
		Use:   "drive",
		Short: "Google Drive checksum commands",
	}
	var folder string
	verifyCmd := &cobra.Command{
		Use:   "verify <local dir>",
		Short: "Compare local copies with the checksums Google Drive reports",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if folder == "" {
				folder = a.cfg.DriveFolder
			}
			d, err := db.New(cmd.Context())
			if err != nil {
				return err
			}
			defer d.Close()
			drv, err := auth.DriveService(cmd.Context(), d)
			if err != nil {
				return err
			}
			s := service.NewService(a.cfg, d, cmd.OutOrStdout())
			return s.VerifyRemote(cmd.Context(), remote.NewDriveLister(drv), folder, args[0])
		},
	}
	verifyCmd.Flags().StringVar(&folder, "folder", "", "Drive folder id to verify (default from config)")
	driveCmd.AddCommand(verifyCmd)
	return driveCmd
}

func (a *app) configCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or create the config file",
	}
	var interactive bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Create the config file if it does not exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			get := config.Get
			if interactive {
				get = config.GetInteractive
			}
			if _, err := get(); err != nil {
				return err
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), config.Path())
			return err
		},
	}
	initCmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Prompt for settings")
	pathCmd := &cobra.Command{
		Use:   "path",
		Short: "Print the config file location",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), config.Path())
			return err
		},
	}
	configCmd.AddCommand(initCmd, pathCmd)
	return configCmd
}

func (a *app) withLedger(cmd *cobra.Command, fn func(*service.Service) error) error {
	d, err := db.New(cmd.Context())
	if err != nil {
		return err
	}
	defer func() {
		if errClose := d.Close(); errClose != nil {
			logging.Error("could not close ledger", errClose)
		}
	}()
	err = fn(service.NewService(a.cfg, d, cmd.OutOrStdout()))
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
