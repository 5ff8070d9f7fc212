// Command gatewayctl talks to a running camera gateway: it reads and writes
// camera configuration and saves published frames.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/labvisio/is-spinnaker-gateway/internal/bus"
)

type globalOptions struct {
	broker  string
	camera  int
	timeout time.Duration
}

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &globalOptions{}
	cmd := &cobra.Command{
		Use:           "gatewayctl",
		Short:         "Query and configure camera gateways",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.broker, "broker", "tcp://localhost:1883", "MQTT broker URI")
	cmd.PersistentFlags().IntVar(&opts.camera, "camera", 0, "camera id")
	cmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 3*time.Second, "reply timeout")

	cmd.AddCommand(
		newGetConfigCommand(opts),
		newSetConfigCommand(opts),
		newFramesCommand(opts),
	)
	return cmd
}

func dial(ctx context.Context, opts *globalOptions) (bus.Channel, error) {
	return bus.DialMQTT(ctx, bus.MQTTOptions{
		Broker:   opts.broker,
		ClientID: "gatewayctl-" + uuid.NewString()[:8],
	})
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
