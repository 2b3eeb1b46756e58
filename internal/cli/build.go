package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/forgebuild/forge/internal/action"
	"github.com/forgebuild/forge/internal/buildlog"
	"github.com/forgebuild/forge/internal/config"
	"github.com/forgebuild/forge/internal/executor"
	"github.com/forgebuild/forge/internal/ferror"
	"github.com/forgebuild/forge/internal/fingerprint"
	"github.com/forgebuild/forge/internal/forgepath"
	"github.com/forgebuild/forge/internal/process"
	"github.com/forgebuild/forge/internal/scan"
)

type buildFlags struct {
	jobs      int
	profile   string
	target    string
	toolchain string
	sysroot   string
	members   []string
}

func newBuildCmd() *cobra.Command {
	f := &buildFlags{}
	v := viper.New()
	cmd := &cobra.Command{
		Use:   "build [members...]",
		Short: "Resolve, scan, and build a project or workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			bindEnvOverrides(v, cmd.Flags())
			if !cmd.Flags().Changed("jobs") {
				f.jobs = v.GetInt("jobs")
			}
			if !cmd.Flags().Changed("profile") {
				f.profile = v.GetString("profile")
			}
			if !cmd.Flags().Changed("target") {
				f.target = v.GetString("target")
			}
			if !cmd.Flags().Changed("toolchain") {
				f.toolchain = v.GetString("toolchain")
			}
			if !cmd.Flags().Changed("sysroot") {
				f.sysroot = v.GetString("sysroot")
			}

			members := append([]string{}, args...)
			members = append(members, f.members...)
			return runBuild(cmd.Context(), f, members)
		},
	}
	flags := cmd.Flags()
	flags.IntVar(&f.jobs, "jobs", 0, "parallelism (default: config, then logical CPUs)")
	flags.StringVar(&f.profile, "profile", "", "named profile to build (default: config default_profile, then debug)")
	flags.StringVar(&f.target, "target", "", "cross-compilation target triple")
	flags.StringVar(&f.toolchain, "toolchain", "", "cross-compilation toolchain command prefix")
	flags.StringVar(&f.sysroot, "sysroot", "", "cross-compilation sysroot path")
	flags.StringArrayVar(&f.members, "member", nil, "restrict the build to this workspace member (repeatable)")
	return cmd
}

// bindEnvOverrides lets the --jobs, --profile, --target, --toolchain and
// --sysroot flags be set via a FORGE_-prefixed environment variable when the
// flag itself was left at its default (--member has no env form), the
// same env-override convention the teacher's own command layer resolves
// through viper ahead of falling back to a flag's zero value.
func bindEnvOverrides(v *viper.Viper, _ *pflag.FlagSet) {
	v.SetEnvPrefix("FORGE")
	v.AutomaticEnv()
}

func runBuild(ctx context.Context, f *buildFlags, members []string) error {
	fsys := afero.NewOsFs()
	logger := buildlog.New(nil)

	cwd, err := os.Getwd()
	if err != nil {
		return err
	}
	root, err := forgepath.New(cwd)
	if err != nil {
		return err
	}

	req := config.Request{
		Root:         root.String(),
		Members:      members,
		Profile:      f.profile,
		Jobs:         f.jobs,
		CrossTarget:  f.target,
		CrossChain:   f.toolchain,
		CrossSysroot: f.sysroot,
	}

	ecs, err := config.Resolve(fsys, req)
	if err != nil {
		return err
	}

	jobs := 1
	stores := make(map[string]*fingerprint.Store, len(ecs))
	var inputs []action.MemberInput
	for _, ec := range ecs {
		if ec.Jobs > jobs {
			jobs = ec.Jobs
		}
		store, err := fingerprint.Open(fsys, ec.BuildRoot)
		if err != nil {
			return err
		}
		stores[ec.Member] = store

		result, scanErr := scan.Scan(ec)
		if scanErr != nil && ferror.KindOf(scanErr) == ferror.NoSources && !ec.WarningsAsErrors {
			logger.Warn(scanErr.Error())
		} else if scanErr != nil {
			return scanErr
		}
		inputs = append(inputs, action.MemberInput{Config: ec, Scan: result})
	}

	cache := fingerprint.NewMultiStore(stores)
	probe := action.Inputs{
		Hash: func(path string) (string, error) { return fingerprint.HashFile(fsys, path) },
		Unchanged: func(path string, want fingerprint.FileStat) bool {
			return fingerprint.StatUnchanged(fsys, path, want)
		},
	}

	graph, err := action.Build(inputs, cache, probe)
	if err != nil {
		return err
	}

	var cancelled int32
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	defer signal.Stop(sigCh)
	go func() {
		if _, ok := <-sigCh; ok {
			atomic.StoreInt32(&cancelled, 1)
		}
	}()

	mgr := process.NewManager(logger)
	defer mgr.Close()
	runner := executor.NewSubprocessRunner(fsys, mgr, cache)

	reporter := NewReporter(os.Stdout)
	defer reporter.Close()

	report := executor.Execute(ctx, graph, jobs, runner, reporter.Event, func() bool {
		return atomic.LoadInt32(&cancelled) != 0
	})

	if flushErr := cache.Flush(); flushErr != nil {
		logger.Warn(flushErr.Error())
	}

	return reportToError(report)
}

func reportToError(r executor.Report) error {
	switch r.Status {
	case executor.Success:
		return nil
	case executor.Cancelled:
		return ferror.New(ferror.Cancelled, "build cancelled (%d dependent actions blocked)", r.Blocked)
	default:
		msg := fmt.Sprintf("%d action(s) failed, %d blocked", len(r.Failed), r.Blocked)
		if r.Err != nil {
			return ferror.Wrap(ferror.CompileFailed, r.Err, msg)
		}
		return ferror.New(ferror.CompileFailed, msg)
	}
}
