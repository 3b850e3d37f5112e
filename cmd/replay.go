package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"firestige.xyz/tzspd/internal/log"
	"firestige.xyz/tzspd/internal/metrics"
	"firestige.xyz/tzspd/internal/pipeline"
	"firestige.xyz/tzspd/internal/source/pcapfile"
)

var replayProfile string

var replayCmd = &cobra.Command{
	Use:   "replay <file.pcap>",
	Short: "Run recorded TZSP traffic through a profile pipeline",
	Long: `Read a pcap or pcapng capture of TZSP traffic and feed every UDP datagram
sent to the profile port through that profile's capture plan, as the
listener would. Counters are printed when the file is exhausted.

Examples:
  tzspd replay mirror.pcap
  tzspd replay -c tzspd.yml --profile edge mirror.pcapng`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReplay(cmd, args[0])
	},
}

func init() {
	replayCmd.Flags().StringVarP(&replayProfile, "profile", "p", "", "profile to replay through (first enabled profile when empty)")
}

func runReplay(cmd *cobra.Command, path string) (err error) {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := log.Init(cfg.Log); err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}
	defer func() { err = multierr.Append(err, log.Close()) }()

	listenerID := -1
	profiles := cfg.EnabledProfiles()
	for i, candidate := range profiles {
		if replayProfile == "" || candidate.Name == replayProfile {
			listenerID = i
			break
		}
	}
	if listenerID < 0 {
		return fmt.Errorf("no enabled profile %q", replayProfile)
	}

	src, err := pcapfile.Open(path, profiles[listenerID].Port)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, src.Close()) }()

	// only the replayed profile's actions are initialized
	p, err := pipeline.Build(listenerID, profiles[listenerID], cfg.CapturePlans)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if err := p.Start(ctx); err != nil {
		return err
	}

	for {
		d, readErr := src.Next()
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			err = readErr
			break
		}
		p.Handle(ctx, d)
	}
	err = multierr.Append(err, p.Stop(ctx))

	s := p.Stats()
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Profile: %s\r\n", p.Profile().Name)
	fmt.Fprintf(out, "Skipped packets: [%d]\r\n", src.Skipped())
	fmt.Fprintf(out, "Malformed: [%d]\r\nUnparsed: [%d]\r\nParsed: [%d]\r\n", s.Malformed, s.Unparsed, s.Parsed)
	fmt.Fprint(out, metrics.Global.String())
	return err
}
