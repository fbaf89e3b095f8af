// Command symbolize-demo drives a Symbolizer over a range of module
// offsets and prints whatever frames (or data records) come back, the way
// demo/simple_demo.c exercises the C ABI: one init, a sweep of offsets
// through code_send/code_read (or, with --data, through
// data_send/data_read instead), then fini.
//
// Shaped after lxd-export/main.go's cobra command: flags collected into
// local vars, a single Run closure.
package main

import (
	"fmt"
	"net/http"
	"os"

	systemd "github.com/coreos/go-systemd/v22/daemon"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/canonical/go-symbolizer"
	"github.com/canonical/go-symbolizer/internal/metrics"
)

func main() {
	var (
		toolPath    string
		modulePath  string
		headOffset  uint32
		tailOffset  uint32
		data        bool
		metricsAddr string
	)

	rootCmd := &cobra.Command{
		Use:   "symbolize-demo",
		Short: "Symbolize a range of module offsets against an external symbolizer",
		Long: `symbolize-demo drives go-symbolizer against a real llvm-symbolizer or
addr2line binary, sweeping a range of byte offsets in a module and printing
whatever source locations come back for each one.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if headOffset > tailOffset {
				return fmt.Errorf("head offset 0x%x is after tail offset 0x%x", headOffset, tailOffset)
			}

			metrics.MustRegister(prometheus.DefaultRegisterer)
			if metricsAddr != "" {
				mux := http.NewServeMux()
				mux.Handle("/metrics", promhttp.Handler())
				go func() { _ = http.ListenAndServe(metricsAddr, mux) }()
			}

			s := symbolizer.New()
			status := s.Init(toolPath)
			if err := status.Err(); err != nil {
				return fmt.Errorf("init %q: %w", toolPath, err)
			}
			defer s.Fini()

			// Under systemd's Type=notify supervision (a long fuzzing
			// campaign run as a unit), signal readiness once the backend
			// is up; a no-op everywhere else, same as k3s's own
			// SdNotify(true, "READY=1\n") call after its own startup.
			_, _ = systemd.SdNotify(false, systemd.SdNotifyReady)

			if data {
				return sweepData(cmd, s, modulePath, headOffset, tailOffset)
			}
			return sweepCode(cmd, s, modulePath, headOffset, tailOffset)
		},
	}

	rootCmd.Flags().StringVar(&toolPath, "tool", "", "path to llvm-symbolizer or addr2line (required)")
	rootCmd.Flags().StringVar(&modulePath, "module", "", "path to the module being symbolized (required)")
	rootCmd.Flags().Var(hexUint32{&headOffset}, "head", "first byte offset in the sweep")
	rootCmd.Flags().Var(hexUint32{&tailOffset}, "tail", "last byte offset in the sweep (inclusive)")
	rootCmd.Flags().BoolVar(&data, "data", false, "symbolize as data offsets instead of code offsets")
	rootCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (disabled if empty)")
	_ = rootCmd.MarkFlagRequired("tool")
	_ = rootCmd.MarkFlagRequired("module")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func sweepCode(cmd *cobra.Command, s *symbolizer.Symbolizer, module string, head, tail uint32) error {
	out := cmd.OutOrStdout()
	for offset := head; offset <= tail; offset++ {
		n, status := s.CodeSend(module, offset)
		if err := status.Err(); err != nil {
			fmt.Fprintf(out, "0x%x: %v\n", offset, err)
			if offset == tail {
				break
			}
			continue
		}
		for i := 0; i < n; i++ {
			file, fn, line, col, status := s.CodeRead(i)
			if err := status.Err(); err != nil {
				fmt.Fprintf(out, "0x%x: %v\n", offset, err)
				break
			}
			if fn == "" {
				fn = "??"
			}
			if file == "" {
				file = "??"
			}
			fmt.Fprintf(out, "0x%x: %s at %s:%d:%d\n", offset, fn, file, line, col)
		}
		s.CodeFree()
		if offset == tail {
			break
		}
	}
	return nil
}

func sweepData(cmd *cobra.Command, s *symbolizer.Symbolizer, module string, head, tail uint32) error {
	out := cmd.OutOrStdout()
	for offset := head; offset <= tail; offset++ {
		status := s.DataSend(module, offset)
		if err := status.Err(); err != nil {
			fmt.Fprintf(out, "0x%x: %v\n", offset, err)
			s.DataFree()
			if offset == tail {
				break
			}
			continue
		}
		file, name, line, start, size, status := s.DataRead()
		if err := status.Err(); err != nil {
			fmt.Fprintf(out, "0x%x: %v\n", offset, err)
		} else {
			if file == "" {
				file = "??"
			}
			fmt.Fprintf(out, "0x%x: %s in %s:%d, size=%d at 0x%x\n", offset, name, file, line, size, start)
		}
		s.DataFree()
		if offset == tail {
			break
		}
	}
	return nil
}

// hexUint32 implements pflag.Value so --head/--tail accept 0x-prefixed hex
// offsets the way the demo's SEC_HEAD_TEXT-style constants are written.
type hexUint32 struct{ v *uint32 }

func (h hexUint32) String() string {
	if h.v == nil {
		return "0x0"
	}
	return fmt.Sprintf("0x%x", *h.v)
}

func (h hexUint32) Set(s string) error {
	var parsed uint64
	_, err := fmt.Sscanf(s, "0x%x", &parsed)
	if err != nil {
		_, err = fmt.Sscanf(s, "%d", &parsed)
	}
	if err != nil {
		return fmt.Errorf("invalid offset %q", s)
	}
	*h.v = uint32(parsed)
	return nil
}

func (h hexUint32) Type() string { return "offset" }
