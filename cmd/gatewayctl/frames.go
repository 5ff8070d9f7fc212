package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/labvisio/is-spinnaker-gateway/internal/bus"
	"github.com/labvisio/is-spinnaker-gateway/internal/gateway"
)

func newFramesCommand(opts *globalOptions) *cobra.Command {
	var (
		count int
		out   string
	)
	cmd := &cobra.Command{
		Use:   "frames",
		Short: "Save frames published by a camera",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := os.MkdirAll(out, 0o755); err != nil {
				return err
			}
			ch, err := dial(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer ch.Close()

			topic := gateway.Topic(opts.camera, gateway.Frame)
			if err := ch.Subscribe(cmd.Context(), topic); err != nil {
				return err
			}

			start := time.Now()
			for i := 0; i < count; i++ {
				msg, err := ch.Consume(opts.timeout)
				if errors.Is(err, bus.ErrTimeout) {
					return fmt.Errorf("no frame on %s within %s", topic, opts.timeout)
				}
				if err != nil {
					return err
				}
				var img gateway.Image
				if err := msg.Unpack(&img); err != nil {
					return err
				}
				name := filepath.Join(out, fmt.Sprintf("frame-%04d%s", i, extension(img.Data)))
				if err := os.WriteFile(name, img.Data, 0o644); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			if elapsed := time.Since(start); count > 1 {
				fmt.Fprintf(cmd.OutOrStdout(), "%d frames in %s (%.1f fps)\n",
					count, elapsed.Round(time.Millisecond), float64(count-1)/elapsed.Seconds())
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&count, "count", 1, "number of frames to save")
	cmd.Flags().StringVar(&out, "out", ".", "output directory")
	return cmd
}

// extension guesses the file extension from the payload.
func extension(data []byte) string {
	switch ct := http.DetectContentType(data); {
	case ct == "image/jpeg":
		return ".jpg"
	case ct == "image/png":
		return ".png"
	case ct == "image/webp":
		return ".webp"
	case strings.HasPrefix(ct, "image/"):
		return "." + strings.TrimPrefix(ct, "image/")
	default:
		return ".raw"
	}
}
