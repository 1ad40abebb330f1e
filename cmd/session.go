package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/safeplate/safescan/internal/config"
	"github.com/safeplate/safescan/internal/model"
	"github.com/safeplate/safescan/internal/scan"
	"github.com/safeplate/safescan/internal/session"
)

var (
	sessionSubject   string
	sessionSymbology string
)

// stdinCapability satisfies the session capability interface for terminal
// use: there is no camera to acquire and permission is always granted.
type stdinCapability struct{}

func (stdinCapability) DeviceSupport() session.DeviceSupport {
	return session.DeviceSupport{Supported: true}
}

func (stdinCapability) CheckPermission(context.Context) (session.PermissionStatus, error) {
	return session.PermissionStatus{Granted: true, CanAskAgain: true}, nil
}

func (stdinCapability) RequestPermission(context.Context) (bool, error) { return true, nil }
func (stdinCapability) AcquireCamera(context.Context) error             { return nil }
func (stdinCapability) ReleaseCamera()                                  {}

// sessionConfig converts the configured timing knobs into controller
// settings. Zero values fall back to the controller defaults.
func sessionConfig(sc config.SessionConfig) session.Config {
	return session.Config{
		Debounce:      time.Duration(sc.DebounceMillis) * time.Millisecond,
		Cooldown:      time.Duration(sc.CooldownMillis) * time.Millisecond,
		LookupTimeout: time.Duration(sc.LookupTimeoutSecs) * time.Second,
	}
}

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Run an interactive scan session reading decodes from stdin",
	Long: `Starts a scan session and feeds it one decode per line from stdin.
Lines of the form SYMBOLOGY:CODE override the default symbology.
Commands: ack (acknowledge a blocking alert), pause, resume, quit.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "scan")
		if err != nil {
			return err
		}
		defer env.Close()
		if err := env.Store.Migrate(ctx); err != nil {
			return err
		}

		ctl := session.New(stdinCapability{}, env.Pipeline, sessionSubject, sessionConfig(cfg.Session))
		ctl.OnStateChange(func(s session.State) {
			fmt.Printf("-- session: %s\n", s)
		})
		ctl.OnResult(func(out *scan.Outcome) {
			printOutcome(out)
			if out.Assessment.Blocking() {
				fmt.Println("-- session locked; type 'ack' to resume scanning")
			}
		})

		if err := ctl.Start(ctx); err != nil {
			return err
		}
		defer ctl.Stop()

		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			switch strings.ToLower(line) {
			case "":
				continue
			case "quit", "exit", "stop":
				return nil
			case "ack":
				if !ctl.Acknowledge() {
					fmt.Println("-- nothing to acknowledge")
				}
				continue
			case "pause":
				ctl.Pause()
				continue
			case "resume":
				if err := ctl.Resume(ctx); err != nil {
					fmt.Printf("-- resume failed: %v\n", err)
				}
				continue
			}

			sym := model.Symbology(sessionSymbology)
			symbol := line
			if tag, code, ok := strings.Cut(line, ":"); ok {
				sym = model.Symbology(strings.ToUpper(tag))
				symbol = code
			}

			if !ctl.HandleDecode(symbol, sym) {
				if msg := ctl.Err(); msg != "" {
					fmt.Printf("-- rejected: %s\n", msg)
				} else {
					fmt.Println("-- rejected")
				}
			}
		}
		return scanner.Err()
	},
}

func init() {
	sessionCmd.Flags().StringVar(&sessionSubject, "subject", "default", "subject whose restrictions apply")
	sessionCmd.Flags().StringVar(&sessionSymbology, "symbology", string(model.SymbologyEAN13), "default symbology for bare codes")
	rootCmd.AddCommand(sessionCmd)
}
